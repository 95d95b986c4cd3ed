package muse

import (
	"encoding/json"

	"github.com/c360/musestreams/errors"
)

// Config describes one headset session as reported by muse-io on
// /muse/config. The wire format is a single JSON object with
// lower_case_with_underscores keys; fields the headset does not report are
// left at their zero value and keys this struct does not know are ignored,
// so the receiver keeps working across muse-io releases.
type Config struct {
	// Identity
	MacAddr      string `json:"mac_addr"`
	SerialNumber string `json:"serial_number"`
	Preset       string `json:"preset"`

	// EEG signal chain
	EEGChannelCount      int     `json:"eeg_channel_count"`
	EEGChannelLayout     string  `json:"eeg_channel_layout"`
	EEGUnits             string  `json:"eeg_units"`
	EEGSampleFrequencyHz int     `json:"eeg_sample_frequency_hz"`
	EEGOutputFrequencyHz int     `json:"eeg_output_frequency_hz"`
	EEGSamplesBitwidth   int     `json:"eeg_samples_bitwidth"`
	EEGDownsample        int     `json:"eeg_downsample"`
	EEGConversionFactor  float64 `json:"eeg_conversion_factor"`
	NotchFrequencyHz     int     `json:"notch_frequency_hz"`
	AFEGain              int     `json:"afe_gain"`
	FiltersEnabled       bool    `json:"filters_enabled"`
	CompressionEnabled   bool    `json:"compression_enabled"`

	// Accelerometer
	AccDataEnabled      bool    `json:"acc_data_enabled"`
	AccUnits            string  `json:"acc_units"`
	AccSampleFrequencyHz int    `json:"acc_sample_frequency_hz"`
	AccConversionFactor float64 `json:"acc_conversion_factor"`

	// DRL/REF auxiliary channels
	DRLRefDataEnabled       bool    `json:"drlref_data_enabled"`
	DRLRefConversionFactor  float64 `json:"drlref_conversion_factor"`
	DSPRefSampleFrequencyHz int     `json:"dspref_sample_frequency_hz"`

	// Battery
	BatteryDataEnabled      bool `json:"battery_data_enabled"`
	BatteryPercentRemaining int  `json:"battery_percent_remaining"`
	BatteryMillivolts       int  `json:"battery_millivolts"`

	// Diagnostics
	ErrorDataEnabled bool `json:"error_data_enabled"`
}

// UnmarshalJSON accepts the bitwidth under both "eeg_samples_bitwidth"
// and "eeg_sameples_bitwidth" — the latter is the misspelled key muse-io
// actually emits. The corrected spelling wins when both are present.
func (c *Config) UnmarshalJSON(data []byte) error {
	type alias Config
	aux := struct {
		*alias
		EEGSameplesBitwidth int `json:"eeg_sameples_bitwidth"`
	}{alias: (*alias)(c)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if c.EEGSamplesBitwidth == 0 {
		c.EEGSamplesBitwidth = aux.EEGSameplesBitwidth
	}
	return nil
}

// ParseConfig decodes the JSON payload of a /muse/config message.
// A parse failure is classified invalid; retrying the same payload
// cannot succeed.
func ParseConfig(data []byte) (*Config, error) {
	var c Config
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, errors.WrapInvalid(err, "muse", "ParseConfig", "decode headset config")
	}
	return &c, nil
}

// DeviceID returns a stable identifier for the headset: the serial number
// when reported, else the MAC address, else "unknown". Used for telemetry
// subjects and session file names.
func (c *Config) DeviceID() string {
	if c == nil {
		return "unknown"
	}
	if c.SerialNumber != "" {
		return c.SerialNumber
	}
	if c.MacAddr != "" {
		return c.MacAddr
	}
	return "unknown"
}
