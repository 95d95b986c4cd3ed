package muse

// Listener receives decoded telemetry for one headset. Every callback gets
// the device Config that was in force for the message's source, then the
// decoded payload.
//
// Callbacks run synchronously on the receiver's dispatch goroutine, in
// listener registration order; a slow callback delays everything behind it
// for that source. Payload slices are shared across the listeners of one
// dispatch, so callbacks must copy before retaining or mutating them.
//
// Implementations wanting only a subset of categories embed
// UnimplementedListener and override what they need.
type Listener interface {
	// ReceiveEEG delivers a 4-channel EEG reading without timestamps.
	ReceiveEEG(config *Config, eeg []float32)

	// ReceiveEEGWithTimestamps delivers a 4-channel EEG reading followed by
	// its 2 timestamp components. Which of the two EEG callbacks fires is
	// decided per message by the wire shape; see DecodeEEG.
	ReceiveEEGWithTimestamps(config *Config, eeg []float32, timestamps []int32)

	// ReceiveAccel delivers a 3-channel accelerometer reading. timestamps
	// is nil when the message carried no timestamp components.
	ReceiveAccel(config *Config, accel []float32, timestamps []int32)

	// ReceiveBlink fires only for a detected blink; the value is always
	// BlinkDetected.
	ReceiveBlink(config *Config, blink int32)

	// Relative band powers, one value per EEG channel.
	ReceiveAlpha(config *Config, alpha []float32)
	ReceiveBeta(config *Config, beta []float32)
	ReceiveTheta(config *Config, theta []float32)
	ReceiveDelta(config *Config, delta []float32)

	// ReceiveBattery delivers the battery state vector as sent.
	ReceiveBattery(config *Config, battery []int32)

	// Experimental session scores, one-element arrays in [0,1].
	ReceiveMellow(config *Config, mellow []float32)
	ReceiveConcentration(config *Config, concentration []float32)
}

// UnimplementedListener is an embeddable no-op implementation of Listener.
type UnimplementedListener struct{}

func (UnimplementedListener) ReceiveEEG(*Config, []float32)                          {}
func (UnimplementedListener) ReceiveEEGWithTimestamps(*Config, []float32, []int32)   {}
func (UnimplementedListener) ReceiveAccel(*Config, []float32, []int32)               {}
func (UnimplementedListener) ReceiveBlink(*Config, int32)                            {}
func (UnimplementedListener) ReceiveAlpha(*Config, []float32)                        {}
func (UnimplementedListener) ReceiveBeta(*Config, []float32)                         {}
func (UnimplementedListener) ReceiveTheta(*Config, []float32)                        {}
func (UnimplementedListener) ReceiveDelta(*Config, []float32)                        {}
func (UnimplementedListener) ReceiveBattery(*Config, []int32)                        {}
func (UnimplementedListener) ReceiveMellow(*Config, []float32)                       {}
func (UnimplementedListener) ReceiveConcentration(*Config, []float32)                {}

var _ Listener = UnimplementedListener{}
