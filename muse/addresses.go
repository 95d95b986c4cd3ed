package muse

// OSC address patterns emitted by muse-io. Matching is exact; muse-io does
// not use OSC pattern wildcards.
const (
	AddrConfig        = "/muse/config"
	AddrEEG           = "/muse/eeg"
	AddrAccel         = "/muse/acc"
	AddrBattery       = "/muse/batt"
	AddrBlink         = "/muse/elements/blink"
	AddrAlphaRelative = "/muse/elements/alpha_relative"
	AddrBetaRelative  = "/muse/elements/beta_relative"
	AddrThetaRelative = "/muse/elements/theta_relative"
	AddrDeltaRelative = "/muse/elements/delta_relative"
	AddrMellow        = "/muse/elements/experimental/mellow"
	AddrConcentration = "/muse/elements/experimental/concentration"
)

// Category identifies one kind of telemetry on the stream. The string value
// is stable and appears in NATS subjects, metric labels and envelope types.
type Category string

const (
	CategoryConfig        Category = "config"
	CategoryEEG           Category = "eeg"
	CategoryAccel         Category = "accel"
	CategoryBattery       Category = "battery"
	CategoryBlink         Category = "blink"
	CategoryAlpha         Category = "alpha_relative"
	CategoryBeta          Category = "beta_relative"
	CategoryTheta         Category = "theta_relative"
	CategoryDelta         Category = "delta_relative"
	CategoryMellow        Category = "mellow"
	CategoryConcentration Category = "concentration"
)

var addressCategories = map[string]Category{
	AddrConfig:        CategoryConfig,
	AddrEEG:           CategoryEEG,
	AddrAccel:         CategoryAccel,
	AddrBattery:       CategoryBattery,
	AddrBlink:         CategoryBlink,
	AddrAlphaRelative: CategoryAlpha,
	AddrBetaRelative:  CategoryBeta,
	AddrThetaRelative: CategoryTheta,
	AddrDeltaRelative: CategoryDelta,
	AddrMellow:        CategoryMellow,
	AddrConcentration: CategoryConcentration,
}

// CategoryOf maps an OSC address pattern to its telemetry category.
// muse-io emits many more address patterns than this receiver handles
// (raw FFTs, horseshoe, DRL/REF); unknown addresses report ok == false
// and are dropped upstream without complaint.
func CategoryOf(address string) (cat Category, ok bool) {
	cat, ok = addressCategories[address]
	return cat, ok
}

// Categories returns every telemetry category the receiver demultiplexes,
// config included. Useful for pre-registering metric label values.
func Categories() []Category {
	return []Category{
		CategoryConfig,
		CategoryEEG,
		CategoryAccel,
		CategoryBattery,
		CategoryBlink,
		CategoryAlpha,
		CategoryBeta,
		CategoryTheta,
		CategoryDelta,
		CategoryMellow,
		CategoryConcentration,
	}
}
