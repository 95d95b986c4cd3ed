package muse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/musestreams/errors"
)

// museIOConfigJSON is a config payload as muse-io reports it with the
// default preset.
const museIOConfigJSON = `{
	"mac_addr": "00:06:66:6E:44:A2",
	"serial_number": "1012-MPRW-44A2",
	"preset": "10",
	"eeg_channel_count": 4,
	"eeg_channel_layout": "TP9 FP1 FP2 TP10",
	"eeg_units": "microvolts",
	"eeg_sample_frequency_hz": 220,
	"eeg_output_frequency_hz": 220,
	"eeg_sameples_bitwidth": 10,
	"eeg_downsample": 1,
	"eeg_conversion_factor": 0.4808,
	"afe_gain": 1961,
	"notch_frequency_hz": 60,
	"filters_enabled": false,
	"compression_enabled": false,
	"acc_data_enabled": true,
	"acc_units": "milli_g",
	"acc_sample_frequency_hz": 50,
	"acc_conversion_factor": 0.0015,
	"battery_data_enabled": true,
	"battery_percent_remaining": 72,
	"battery_millivolts": 3865,
	"drlref_data_enabled": false,
	"drlref_conversion_factor": 0.0,
	"dspref_sample_frequency_hz": 10,
	"error_data_enabled": true
}`

func TestParseConfig_FullPayload(t *testing.T) {
	cfg, err := ParseConfig([]byte(museIOConfigJSON))
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "00:06:66:6E:44:A2", cfg.MacAddr)
	assert.Equal(t, "1012-MPRW-44A2", cfg.SerialNumber)
	assert.Equal(t, "10", cfg.Preset)
	assert.Equal(t, 4, cfg.EEGChannelCount)
	assert.Equal(t, "TP9 FP1 FP2 TP10", cfg.EEGChannelLayout)
	assert.Equal(t, "microvolts", cfg.EEGUnits)
	assert.Equal(t, 220, cfg.EEGSampleFrequencyHz)
	assert.Equal(t, 220, cfg.EEGOutputFrequencyHz)
	assert.Equal(t, 10, cfg.EEGSamplesBitwidth)
	assert.Equal(t, 1, cfg.EEGDownsample)
	assert.InDelta(t, 0.4808, cfg.EEGConversionFactor, 0.0001)
	assert.Equal(t, 1961, cfg.AFEGain)
	assert.Equal(t, 60, cfg.NotchFrequencyHz)
	assert.False(t, cfg.FiltersEnabled)
	assert.False(t, cfg.CompressionEnabled)
	assert.True(t, cfg.AccDataEnabled)
	assert.Equal(t, "milli_g", cfg.AccUnits)
	assert.Equal(t, 50, cfg.AccSampleFrequencyHz)
	assert.InDelta(t, 0.0015, cfg.AccConversionFactor, 0.00001)
	assert.True(t, cfg.BatteryDataEnabled)
	assert.Equal(t, 72, cfg.BatteryPercentRemaining)
	assert.Equal(t, 3865, cfg.BatteryMillivolts)
	assert.False(t, cfg.DRLRefDataEnabled)
	assert.Equal(t, 10, cfg.DSPRefSampleFrequencyHz)
	assert.True(t, cfg.ErrorDataEnabled)
}

func TestParseConfig_BitwidthKeySpellings(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    int
	}{
		{"muse-io misspelled key", `{"eeg_sameples_bitwidth": 10}`, 10},
		{"corrected key", `{"eeg_samples_bitwidth": 12}`, 12},
		{"corrected key wins over misspelled", `{"eeg_samples_bitwidth": 12, "eeg_sameples_bitwidth": 10}`, 12},
		{"neither key", `{}`, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := ParseConfig([]byte(tt.payload))
			require.NoError(t, err)
			assert.Equal(t, tt.want, cfg.EEGSamplesBitwidth)
		})
	}
}

func TestParseConfig_UnknownFieldsIgnored(t *testing.T) {
	cfg, err := ParseConfig([]byte(`{
		"mac_addr": "00:06:66:6E:44:A2",
		"future_field": "whatever",
		"another_unknown": {"nested": true}
	}`))
	require.NoError(t, err)
	assert.Equal(t, "00:06:66:6E:44:A2", cfg.MacAddr)
}

func TestParseConfig_MissingFieldsDefault(t *testing.T) {
	cfg, err := ParseConfig([]byte(`{}`))
	require.NoError(t, err)

	assert.Empty(t, cfg.SerialNumber)
	assert.Zero(t, cfg.EEGSampleFrequencyHz)
	assert.Zero(t, cfg.EEGConversionFactor)
	assert.False(t, cfg.AccDataEnabled)
}

func TestParseConfig_MalformedPayload(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{"truncated object", `{"mac_addr": "00:06`},
		{"not json", `mac_addr=00:06:66`},
		{"wrong field type", `{"eeg_channel_count": "four"}`},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			cfg, err := ParseConfig([]byte(test.payload))
			require.Error(t, err)
			assert.Nil(t, cfg)
			assert.True(t, errors.IsInvalid(err), "config decode failures must classify invalid")
		})
	}
}

func TestConfig_DeviceID(t *testing.T) {
	tests := []struct {
		name     string
		cfg      *Config
		expected string
	}{
		{"serial preferred", &Config{SerialNumber: "1012-MPRW-44A2", MacAddr: "00:06:66:6E:44:A2"}, "1012-MPRW-44A2"},
		{"mac fallback", &Config{MacAddr: "00:06:66:6E:44:A2"}, "00:06:66:6E:44:A2"},
		{"no identity", &Config{}, "unknown"},
		{"nil config", nil, "unknown"},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			assert.Equal(t, test.expected, test.cfg.DeviceID())
		})
	}
}
