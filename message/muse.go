package message

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/c360/musestreams/muse"
	"github.com/c360/musestreams/pkg/timestamp"
)

// Wire types for headset telemetry. The category component matches the
// muse.Category the demux routed, so a NATS consumer can reconstruct the
// full routing context from the type key alone.
var (
	TypeConfig        = Type{Domain: "muse", Category: string(muse.CategoryConfig), Version: "v1"}
	TypeEEG           = Type{Domain: "muse", Category: string(muse.CategoryEEG), Version: "v1"}
	TypeAccel         = Type{Domain: "muse", Category: string(muse.CategoryAccel), Version: "v1"}
	TypeBattery       = Type{Domain: "muse", Category: string(muse.CategoryBattery), Version: "v1"}
	TypeBlink         = Type{Domain: "muse", Category: string(muse.CategoryBlink), Version: "v1"}
	TypeAlpha         = Type{Domain: "muse", Category: string(muse.CategoryAlpha), Version: "v1"}
	TypeBeta          = Type{Domain: "muse", Category: string(muse.CategoryBeta), Version: "v1"}
	TypeTheta         = Type{Domain: "muse", Category: string(muse.CategoryTheta), Version: "v1"}
	TypeDelta         = Type{Domain: "muse", Category: string(muse.CategoryDelta), Version: "v1"}
	TypeMellow        = Type{Domain: "muse", Category: string(muse.CategoryMellow), Version: "v1"}
	TypeConcentration = Type{Domain: "muse", Category: string(muse.CategoryConcentration), Version: "v1"}
)

// TypeForCategory returns the wire type for a telemetry category.
func TypeForCategory(cat muse.Category) Type {
	return Type{Domain: "muse", Category: string(cat), Version: "v1"}
}

func init() {
	RegisterPayload(TypeConfig, func() Payload { return &ConfigPayload{} })
	RegisterPayload(TypeEEG, func() Payload { return &EEGPayload{} })
	RegisterPayload(TypeAccel, func() Payload { return &AccelPayload{} })
	RegisterPayload(TypeBattery, func() Payload { return &BatteryPayload{} })
	RegisterPayload(TypeBlink, func() Payload { return &BlinkPayload{} })
	for _, t := range []Type{TypeAlpha, TypeBeta, TypeTheta, TypeDelta} {
		RegisterPayload(t, func() Payload { return &BandPowerPayload{} })
	}
	RegisterPayload(TypeMellow, func() Payload { return &ScorePayload{} })
	RegisterPayload(TypeConcentration, func() Payload { return &ScorePayload{} })
}

// DeviceInfo identifies the headset a reading came from. Copied into every
// telemetry payload so each message is self-describing even when consumed
// in isolation.
type DeviceInfo struct {
	// ID is the stable headset identity: serial number when reported,
	// else MAC address, else "unknown".
	ID string `json:"id"`
	// Preset is the muse-io preset in effect for the session, when known.
	Preset string `json:"preset,omitempty"`
}

// DeviceInfoFrom derives wire device identity from a stored headset
// configuration. Nil-safe: a nil config yields the "unknown" device.
func DeviceInfoFrom(config *muse.Config) DeviceInfo {
	info := DeviceInfo{ID: config.DeviceID()}
	if config != nil {
		info.Preset = config.Preset
	}
	return info
}

// ConfigPayload announces a newly configured headset session. Published
// once per source, when the first data message for a device flows.
type ConfigPayload struct {
	Device     DeviceInfo   `json:"device"`
	Config     *muse.Config `json:"config"`
	CapturedAt int64        `json:"captured_at"` // Unix milliseconds at the receiver
}

// NewConfigPayload builds the session announcement for a headset.
func NewConfigPayload(config *muse.Config) *ConfigPayload {
	return &ConfigPayload{
		Device:     DeviceInfoFrom(config),
		Config:     config,
		CapturedAt: timestamp.Now(),
	}
}

func (p *ConfigPayload) Schema() Type { return TypeConfig }

func (p *ConfigPayload) Validate() error {
	if p.Device.ID == "" {
		return fmt.Errorf("device ID is required")
	}
	if p.Config == nil {
		return fmt.Errorf("headset config is required")
	}
	return nil
}

func (p *ConfigPayload) Timestamp() time.Time { return timestamp.ToTime(p.CapturedAt) }

func (p *ConfigPayload) MarshalJSON() ([]byte, error) {
	type Alias ConfigPayload
	return json.Marshal((*Alias)(p))
}

func (p *ConfigPayload) UnmarshalJSON(data []byte) error {
	type Alias ConfigPayload
	return json.Unmarshal(data, (*Alias)(p))
}

// EEGPayload carries one 4-channel EEG reading in microvolts. Timestamps
// are present only when the headset stamped the sample (seconds since the
// epoch plus microseconds).
type EEGPayload struct {
	Device     DeviceInfo `json:"device"`
	Values     []float32  `json:"values"`
	Timestamps []int32    `json:"timestamps,omitempty"`
	CapturedAt int64      `json:"captured_at"`
}

// NewEEGPayload copies the decoded sample into a publishable payload.
// The copy matters: the demux reuses its decode buffers across listeners.
func NewEEGPayload(config *muse.Config, values []float32, timestamps []int32) *EEGPayload {
	p := &EEGPayload{
		Device:     DeviceInfoFrom(config),
		Values:     append([]float32(nil), values...),
		CapturedAt: timestamp.Now(),
	}
	if timestamps != nil {
		p.Timestamps = append([]int32(nil), timestamps...)
	}
	return p
}

func (p *EEGPayload) Schema() Type { return TypeEEG }

func (p *EEGPayload) Validate() error {
	if p.Device.ID == "" {
		return fmt.Errorf("device ID is required")
	}
	if len(p.Values) != 4 {
		return fmt.Errorf("expected 4 EEG channels, got %d", len(p.Values))
	}
	if p.Timestamps != nil && len(p.Timestamps) != 2 {
		return fmt.Errorf("expected 2 timestamp values, got %d", len(p.Timestamps))
	}
	return nil
}

func (p *EEGPayload) Timestamp() time.Time { return timestamp.ToTime(p.CapturedAt) }

func (p *EEGPayload) MarshalJSON() ([]byte, error) {
	type Alias EEGPayload
	return json.Marshal((*Alias)(p))
}

func (p *EEGPayload) UnmarshalJSON(data []byte) error {
	type Alias EEGPayload
	return json.Unmarshal(data, (*Alias)(p))
}

// AccelPayload carries one 3-axis accelerometer reading in
// milli-g (forward/backward, up/down, left/right).
type AccelPayload struct {
	Device     DeviceInfo `json:"device"`
	Values     []float32  `json:"values"`
	Timestamps []int32    `json:"timestamps,omitempty"`
	CapturedAt int64      `json:"captured_at"`
}

// NewAccelPayload copies the decoded reading into a publishable payload.
func NewAccelPayload(config *muse.Config, values []float32, timestamps []int32) *AccelPayload {
	p := &AccelPayload{
		Device:     DeviceInfoFrom(config),
		Values:     append([]float32(nil), values...),
		CapturedAt: timestamp.Now(),
	}
	if timestamps != nil {
		p.Timestamps = append([]int32(nil), timestamps...)
	}
	return p
}

func (p *AccelPayload) Schema() Type { return TypeAccel }

func (p *AccelPayload) Validate() error {
	if p.Device.ID == "" {
		return fmt.Errorf("device ID is required")
	}
	if len(p.Values) != 3 {
		return fmt.Errorf("expected 3 accelerometer axes, got %d", len(p.Values))
	}
	if p.Timestamps != nil && len(p.Timestamps) != 2 {
		return fmt.Errorf("expected 2 timestamp values, got %d", len(p.Timestamps))
	}
	return nil
}

func (p *AccelPayload) Timestamp() time.Time { return timestamp.ToTime(p.CapturedAt) }

func (p *AccelPayload) MarshalJSON() ([]byte, error) {
	type Alias AccelPayload
	return json.Marshal((*Alias)(p))
}

func (p *AccelPayload) UnmarshalJSON(data []byte) error {
	type Alias AccelPayload
	return json.Unmarshal(data, (*Alias)(p))
}

// BlinkPayload marks a detected blink. Only confirmed detections are
// published, so Blink is always 1 on the wire.
type BlinkPayload struct {
	Device     DeviceInfo `json:"device"`
	Blink      int32      `json:"blink"`
	CapturedAt int64      `json:"captured_at"`
}

// NewBlinkPayload builds the payload for a confirmed blink.
func NewBlinkPayload(config *muse.Config, blink int32) *BlinkPayload {
	return &BlinkPayload{
		Device:     DeviceInfoFrom(config),
		Blink:      blink,
		CapturedAt: timestamp.Now(),
	}
}

func (p *BlinkPayload) Schema() Type { return TypeBlink }

func (p *BlinkPayload) Validate() error {
	if p.Device.ID == "" {
		return fmt.Errorf("device ID is required")
	}
	if p.Blink != muse.BlinkDetected {
		return fmt.Errorf("blink payload must carry a confirmed detection, got %d", p.Blink)
	}
	return nil
}

func (p *BlinkPayload) Timestamp() time.Time { return timestamp.ToTime(p.CapturedAt) }

func (p *BlinkPayload) MarshalJSON() ([]byte, error) {
	type Alias BlinkPayload
	return json.Marshal((*Alias)(p))
}

func (p *BlinkPayload) UnmarshalJSON(data []byte) error {
	type Alias BlinkPayload
	return json.Unmarshal(data, (*Alias)(p))
}

// BandPowerPayload carries one relative band power session score vector
// (values in 0..1, one per channel). Band names the frequency band and
// doubles as the wire category: alpha_relative, beta_relative,
// theta_relative or delta_relative.
type BandPowerPayload struct {
	Device     DeviceInfo `json:"device"`
	Band       string     `json:"band"`
	Values     []float32  `json:"values"`
	CapturedAt int64      `json:"captured_at"`
}

// NewBandPowerPayload copies a decoded band power vector into a
// publishable payload for the given category.
func NewBandPowerPayload(config *muse.Config, cat muse.Category, values []float32) *BandPowerPayload {
	return &BandPowerPayload{
		Device:     DeviceInfoFrom(config),
		Band:       string(cat),
		Values:     append([]float32(nil), values...),
		CapturedAt: timestamp.Now(),
	}
}

func (p *BandPowerPayload) Schema() Type {
	return Type{Domain: "muse", Category: p.Band, Version: "v1"}
}

func (p *BandPowerPayload) Validate() error {
	if p.Device.ID == "" {
		return fmt.Errorf("device ID is required")
	}
	switch muse.Category(p.Band) {
	case muse.CategoryAlpha, muse.CategoryBeta, muse.CategoryTheta, muse.CategoryDelta:
	default:
		return fmt.Errorf("unknown band %q", p.Band)
	}
	if len(p.Values) == 0 {
		return fmt.Errorf("band power vector is empty")
	}
	return nil
}

func (p *BandPowerPayload) Timestamp() time.Time { return timestamp.ToTime(p.CapturedAt) }

func (p *BandPowerPayload) MarshalJSON() ([]byte, error) {
	type Alias BandPowerPayload
	return json.Marshal((*Alias)(p))
}

func (p *BandPowerPayload) UnmarshalJSON(data []byte) error {
	type Alias BandPowerPayload
	return json.Unmarshal(data, (*Alias)(p))
}

// BatteryPayload carries the battery state vector exactly as the headset
// sent it: percent remaining (x100), fuel gauge millivolts, ADC millivolts
// and temperature, when present.
type BatteryPayload struct {
	Device     DeviceInfo `json:"device"`
	Values     []int32    `json:"values"`
	CapturedAt int64      `json:"captured_at"`
}

// NewBatteryPayload copies the battery vector into a publishable payload.
func NewBatteryPayload(config *muse.Config, values []int32) *BatteryPayload {
	return &BatteryPayload{
		Device:     DeviceInfoFrom(config),
		Values:     append([]int32(nil), values...),
		CapturedAt: timestamp.Now(),
	}
}

func (p *BatteryPayload) Schema() Type { return TypeBattery }

func (p *BatteryPayload) Validate() error {
	if p.Device.ID == "" {
		return fmt.Errorf("device ID is required")
	}
	if len(p.Values) == 0 {
		return fmt.Errorf("battery vector is empty")
	}
	return nil
}

func (p *BatteryPayload) Timestamp() time.Time { return timestamp.ToTime(p.CapturedAt) }

func (p *BatteryPayload) MarshalJSON() ([]byte, error) {
	type Alias BatteryPayload
	return json.Marshal((*Alias)(p))
}

func (p *BatteryPayload) UnmarshalJSON(data []byte) error {
	type Alias BatteryPayload
	return json.Unmarshal(data, (*Alias)(p))
}

// ScorePayload carries one experimental cognitive score in 0..1. Kind
// names the score and doubles as the wire category: mellow or
// concentration.
type ScorePayload struct {
	Device     DeviceInfo `json:"device"`
	Kind       string     `json:"kind"`
	Score      float32    `json:"score"`
	CapturedAt int64      `json:"captured_at"`
}

// NewScorePayload builds the payload for an experimental score vector as
// decoded (always one element).
func NewScorePayload(config *muse.Config, cat muse.Category, values []float32) *ScorePayload {
	p := &ScorePayload{
		Device:     DeviceInfoFrom(config),
		Kind:       string(cat),
		CapturedAt: timestamp.Now(),
	}
	if len(values) > 0 {
		p.Score = values[0]
	}
	return p
}

func (p *ScorePayload) Schema() Type {
	return Type{Domain: "muse", Category: p.Kind, Version: "v1"}
}

func (p *ScorePayload) Validate() error {
	if p.Device.ID == "" {
		return fmt.Errorf("device ID is required")
	}
	switch muse.Category(p.Kind) {
	case muse.CategoryMellow, muse.CategoryConcentration:
	default:
		return fmt.Errorf("unknown score kind %q", p.Kind)
	}
	return nil
}

func (p *ScorePayload) Timestamp() time.Time { return timestamp.ToTime(p.CapturedAt) }

func (p *ScorePayload) MarshalJSON() ([]byte, error) {
	type Alias ScorePayload
	return json.Marshal((*Alias)(p))
}

func (p *ScorePayload) UnmarshalJSON(data []byte) error {
	type Alias ScorePayload
	return json.Unmarshal(data, (*Alias)(p))
}
