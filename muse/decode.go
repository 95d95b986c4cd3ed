package muse

// Blink sentinel values. The headset reports a blink channel continuously;
// only an exact BlinkDetected reading is meaningful. NoBlink is what
// DecodeBlink reports for any message that does not carry exactly one
// argument, and it must never be forwarded to listeners.
const (
	BlinkDetected int32 = 1
	NoBlink       int32 = -1
)

const (
	eegChannels   = 4
	accelChannels = 3
	timestampLen  = 2
)

// floatValue coerces a single OSC argument to float32. muse-io emits 'f'
// typed arguments, but presets and intermediaries have been seen re-tagging
// values, so every numeric width is accepted. Non-numeric arguments decode
// as zero.
func floatValue(arg any) float32 {
	switch v := arg.(type) {
	case float32:
		return v
	case float64:
		return float32(v)
	case int32:
		return float32(v)
	case int64:
		return float32(v)
	}
	return 0
}

// intValue coerces a single OSC argument to int32, truncating floats.
func intValue(arg any) int32 {
	switch v := arg.(type) {
	case int32:
		return v
	case int64:
		return int32(v)
	case float32:
		return int32(v)
	case float64:
		return int32(v)
	}
	return 0
}

// DecodeEEG splits an /muse/eeg argument list into its 4 channel values and,
// when the argument count exceeds 4, the 2 trailing timestamp components.
// timestamps is nil for the plain 4-channel shape; the two shapes dispatch
// to different Listener callbacks. Short messages zero-pad, long messages
// ignore arguments past the sixth.
func DecodeEEG(args []any) (values []float32, timestamps []int32) {
	values = make([]float32, eegChannels)
	for i := 0; i < eegChannels && i < len(args); i++ {
		values[i] = floatValue(args[i])
	}
	if len(args) <= eegChannels {
		return values, nil
	}
	timestamps = make([]int32, timestampLen)
	for i := 0; i < timestampLen && eegChannels+i < len(args); i++ {
		timestamps[i] = intValue(args[eegChannels+i])
	}
	return values, timestamps
}

// DecodeAccel splits an /muse/acc argument list into its 3 channel values
// and, when the argument count exceeds 3, the 2 trailing timestamp
// components. Unlike EEG there is a single callback for both shapes;
// timestamps is nil when absent.
func DecodeAccel(args []any) (values []float32, timestamps []int32) {
	values = make([]float32, accelChannels)
	for i := 0; i < accelChannels && i < len(args); i++ {
		values[i] = floatValue(args[i])
	}
	if len(args) <= accelChannels {
		return values, nil
	}
	timestamps = make([]int32, timestampLen)
	for i := 0; i < timestampLen && accelChannels+i < len(args); i++ {
		timestamps[i] = intValue(args[accelChannels+i])
	}
	return values, timestamps
}

// DecodeBlink reports the blink reading of an /muse/elements/blink message.
// Any shape other than a single argument yields NoBlink.
func DecodeBlink(args []any) int32 {
	if len(args) != 1 {
		return NoBlink
	}
	return intValue(args[0])
}

// DecodeBandPower decodes a relative band power message
// (alpha/beta/theta/delta) at whatever channel width the headset sends.
func DecodeBandPower(args []any) []float32 {
	values := make([]float32, len(args))
	for i, arg := range args {
		values[i] = floatValue(arg)
	}
	return values
}

// DecodeBattery decodes an /muse/batt message at whatever width the headset
// sends. With the default preset the first component is percent remaining.
func DecodeBattery(args []any) []int32 {
	values := make([]int32, len(args))
	for i, arg := range args {
		values[i] = intValue(arg)
	}
	return values
}

// DecodeScore decodes the experimental mellow/concentration scores. The
// payload keeps the one-element array shape of the upstream protocol; a
// message that does not carry exactly one argument scores 0.
func DecodeScore(args []any) []float32 {
	score := make([]float32, 1)
	if len(args) == 1 {
		score[0] = floatValue(args[0])
	}
	return score
}
