package testutil

import (
	"fmt"
	"sync"
	"time"

	"github.com/hypebeast/go-osc/osc"

	"github.com/c360/musestreams/muse"
)

// ConfigJSON returns a muse-io style headset configuration document for
// the given serial number, matching what a Muse reports on /muse/config
// with the default preset.
func ConfigJSON(serial string) string {
	return fmt.Sprintf(`{
		"mac_addr": "00:06:66:6E:CD:12",
		"serial_number": %q,
		"preset": "14",
		"eeg_channel_count": 4,
		"eeg_channel_layout": "TP9 FP1 FP2 TP10",
		"eeg_units": "microvolts",
		"eeg_sample_frequency_hz": 220,
		"eeg_output_frequency_hz": 220,
		"eeg_sameples_bitwidth": 10,
		"eeg_downsample": 1,
		"eeg_conversion_factor": 0.4883,
		"notch_frequency_hz": 60,
		"afe_gain": 1961,
		"filters_enabled": true,
		"compression_enabled": false,
		"acc_data_enabled": true,
		"acc_units": "milli_g",
		"acc_sample_frequency_hz": 50,
		"acc_conversion_factor": 0.0610,
		"drlref_data_enabled": false,
		"drlref_conversion_factor": 1.0,
		"dspref_sample_frequency_hz": 10,
		"battery_data_enabled": true,
		"battery_percent_remaining": 86,
		"battery_millivolts": 4021,
		"error_data_enabled": false
	}`, serial)
}

// ConfigMessage builds the /muse/config OSC message announcing a headset.
func ConfigMessage(serial string) *osc.Message {
	return osc.NewMessage(muse.AddrConfig, ConfigJSON(serial))
}

// EEGMessage builds a plain 4-channel /muse/eeg message.
func EEGMessage(ch1, ch2, ch3, ch4 float32) *osc.Message {
	return osc.NewMessage(muse.AddrEEG, ch1, ch2, ch3, ch4)
}

// EEGMessageWithTimestamps builds a 6-argument /muse/eeg message carrying
// the trailing timestamp pair.
func EEGMessageWithTimestamps(ch1, ch2, ch3, ch4 float32, sec, usec int32) *osc.Message {
	return osc.NewMessage(muse.AddrEEG, ch1, ch2, ch3, ch4, sec, usec)
}

// AccelMessage builds a plain 3-axis /muse/acc message.
func AccelMessage(fb, ud, lr float32) *osc.Message {
	return osc.NewMessage(muse.AddrAccel, fb, ud, lr)
}

// BatteryMessage builds a /muse/batt message from the given components.
func BatteryMessage(values ...int32) *osc.Message {
	msg := osc.NewMessage(muse.AddrBattery)
	for _, v := range values {
		msg.Append(v)
	}
	return msg
}

// BlinkMessage builds a /muse/elements/blink message.
func BlinkMessage(value int32) *osc.Message {
	return osc.NewMessage(muse.AddrBlink, value)
}

// Delivery records one listener callback for assertions.
type Delivery struct {
	Category muse.Category
	Device   string
	Floats   []float32
	Ints     []int32
	Ts       []int32
	Blink    int32
}

// RecordingListener is a thread-safe muse.Listener that records every
// delivery it receives, in order. Component tests register it with a
// demux and assert on what arrived.
type RecordingListener struct {
	muse.UnimplementedListener

	mu         sync.Mutex
	deliveries []Delivery
}

// NewRecordingListener creates an empty RecordingListener.
func NewRecordingListener() *RecordingListener {
	return &RecordingListener{}
}

func (r *RecordingListener) record(d Delivery) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deliveries = append(r.deliveries, d)
}

func (r *RecordingListener) ReceiveEEG(config *muse.Config, eeg []float32) {
	r.record(Delivery{
		Category: muse.CategoryEEG,
		Device:   config.DeviceID(),
		Floats:   append([]float32(nil), eeg...),
	})
}

func (r *RecordingListener) ReceiveEEGWithTimestamps(config *muse.Config, eeg []float32, ts []int32) {
	r.record(Delivery{
		Category: muse.CategoryEEG,
		Device:   config.DeviceID(),
		Floats:   append([]float32(nil), eeg...),
		Ts:       append([]int32(nil), ts...),
	})
}

func (r *RecordingListener) ReceiveAccel(config *muse.Config, accel []float32, ts []int32) {
	d := Delivery{
		Category: muse.CategoryAccel,
		Device:   config.DeviceID(),
		Floats:   append([]float32(nil), accel...),
	}
	if ts != nil {
		d.Ts = append([]int32(nil), ts...)
	}
	r.record(d)
}

func (r *RecordingListener) ReceiveBlink(config *muse.Config, blink int32) {
	r.record(Delivery{Category: muse.CategoryBlink, Device: config.DeviceID(), Blink: blink})
}

func (r *RecordingListener) ReceiveBattery(config *muse.Config, battery []int32) {
	r.record(Delivery{
		Category: muse.CategoryBattery,
		Device:   config.DeviceID(),
		Ints:     append([]int32(nil), battery...),
	})
}

func (r *RecordingListener) ReceiveAlpha(config *muse.Config, relative []float32) {
	r.record(Delivery{
		Category: muse.CategoryAlpha,
		Device:   config.DeviceID(),
		Floats:   append([]float32(nil), relative...),
	})
}

// Deliveries returns a copy of everything recorded so far.
func (r *RecordingListener) Deliveries() []Delivery {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Delivery(nil), r.deliveries...)
}

// Count returns the number of recorded deliveries.
func (r *RecordingListener) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.deliveries)
}

// WaitForCount polls until at least n deliveries have been recorded or
// the timeout elapses. It reports whether the count was reached; callers
// assert on the result.
func (r *RecordingListener) WaitForCount(n int, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if r.Count() >= n {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return r.Count() >= n
}
