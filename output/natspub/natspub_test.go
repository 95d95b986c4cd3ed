package natspub

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/musestreams/component"
	"github.com/c360/musestreams/message"
	"github.com/c360/musestreams/muse"
	"github.com/c360/musestreams/testutil"
)

func testConfig(t *testing.T, serial string) *muse.Config {
	t.Helper()
	cfg, err := muse.ParseConfig([]byte(testutil.ConfigJSON(serial)))
	require.NoError(t, err)
	return cfg
}

func startedOutput(t *testing.T) (*Output, *testutil.MockNATSClient) {
	t.Helper()
	client := testutil.NewMockNATSClient()
	out := NewOutput(Deps{
		Name:      "natspub-test",
		Config:    Config{SubjectPrefix: "muse"},
		Publisher: client,
	})
	require.NoError(t, out.Initialize())
	require.NoError(t, out.Start(context.Background()))
	return out, client
}

func TestOutput_InitializeRequiresPublisher(t *testing.T) {
	out := NewOutput(Deps{})
	assert.Error(t, out.Initialize())
}

func TestConfig_Validate(t *testing.T) {
	valid := Config{SubjectPrefix: "muse.lab"}
	assert.NoError(t, valid.Validate())

	invalid := Config{SubjectPrefix: "muse.>"}
	assert.Error(t, invalid.Validate())
}

func TestOutput_PublishesEEG(t *testing.T) {
	out, client := startedOutput(t)
	cfg := testConfig(t, "muse-1078")

	out.ReceiveEEG(cfg, []float32{812.4, 799.1, 820.6, 805.2})

	data := client.GetMessages("muse.muse-1078.eeg")
	require.Len(t, data, 1)

	var msg message.BaseMessage
	require.NoError(t, json.Unmarshal(data[0], &msg))
	assert.Equal(t, message.TypeEEG, msg.Type())

	payload, ok := msg.Payload().(*message.EEGPayload)
	require.True(t, ok)
	assert.Equal(t, []float32{812.4, 799.1, 820.6, 805.2}, payload.Values)
	assert.Nil(t, payload.Timestamps)
	assert.Equal(t, "muse-1078", payload.Device.ID)
}

func TestOutput_AnnouncesConfigOnce(t *testing.T) {
	out, client := startedOutput(t)
	cfg := testConfig(t, "muse-1078")

	out.ReceiveEEG(cfg, []float32{1, 2, 3, 4})
	out.ReceiveBattery(cfg, []int32{8317})
	out.ReceiveEEG(cfg, []float32{5, 6, 7, 8})

	announcements := client.GetMessages("muse.muse-1078.config")
	require.Len(t, announcements, 1)

	var msg message.BaseMessage
	require.NoError(t, json.Unmarshal(announcements[0], &msg))
	payload, ok := msg.Payload().(*message.ConfigPayload)
	require.True(t, ok)
	assert.Equal(t, "muse-1078", payload.Device.ID)
	assert.Equal(t, "14", payload.Config.Preset)
}

func TestOutput_PerDeviceSubjects(t *testing.T) {
	out, client := startedOutput(t)

	out.ReceiveBattery(testConfig(t, "muse-aaaa"), []int32{9000})
	out.ReceiveBattery(testConfig(t, "muse-bbbb"), []int32{8000})

	assert.Len(t, client.GetMessages("muse.muse-aaaa.battery"), 1)
	assert.Len(t, client.GetMessages("muse.muse-bbbb.battery"), 1)
}

func TestOutput_SanitizesDeviceToken(t *testing.T) {
	out, client := startedOutput(t)

	// No serial: identity falls back to the MAC address, whose colons
	// are invalid in NATS subjects.
	cfg, err := muse.ParseConfig([]byte(`{"mac_addr": "00:06:66:6E:CD:12"}`))
	require.NoError(t, err)

	out.ReceiveBlink(cfg, muse.BlinkDetected)

	assert.Len(t, client.GetMessages("muse.00-06-66-6E-CD-12.blink"), 1)
}

func TestOutput_DropsWhenStopped(t *testing.T) {
	out, client := startedOutput(t)
	cfg := testConfig(t, "muse-1078")

	require.NoError(t, out.Stop(time.Second))
	out.ReceiveEEG(cfg, []float32{1, 2, 3, 4})

	assert.Empty(t, client.GetMessages("muse.muse-1078.eeg"))
	assert.Empty(t, client.GetMessages("muse.muse-1078.config"))
}

func TestOutput_BandPowerAndScores(t *testing.T) {
	out, client := startedOutput(t)
	cfg := testConfig(t, "muse-1078")

	out.ReceiveAlpha(cfg, []float32{0.2, 0.3, 0.4, 0.5})
	out.ReceiveMellow(cfg, []float32{0.73})

	alpha := client.GetMessages("muse.muse-1078.alpha_relative")
	require.Len(t, alpha, 1)
	var alphaMsg message.BaseMessage
	require.NoError(t, json.Unmarshal(alpha[0], &alphaMsg))
	alphaPayload, ok := alphaMsg.Payload().(*message.BandPowerPayload)
	require.True(t, ok)
	assert.Equal(t, "alpha_relative", alphaPayload.Band)

	mellow := client.GetMessages("muse.muse-1078.mellow")
	require.Len(t, mellow, 1)
	var mellowMsg message.BaseMessage
	require.NoError(t, json.Unmarshal(mellow[0], &mellowMsg))
	mellowPayload, ok := mellowMsg.Payload().(*message.ScorePayload)
	require.True(t, ok)
	assert.InDelta(t, 0.73, float64(mellowPayload.Score), 1e-6)
}

func TestSubjectToken(t *testing.T) {
	assert.Equal(t, "unknown", subjectToken(""))
	assert.Equal(t, "muse-1078", subjectToken("muse-1078"))
	assert.Equal(t, "00-06-66-6E-CD-12", subjectToken("00:06:66:6E:CD:12"))
	assert.Equal(t, "my-headset", subjectToken("my headset"))
}

func TestCreateOutput_RequiresNATSClient(t *testing.T) {
	_, err := CreateOutput(nil, component.Dependencies{})
	assert.Error(t, err)
}

func TestRegister(t *testing.T) {
	registry := component.NewRegistry()
	require.NoError(t, Register(registry))

	_, ok := registry.GetFactory("natspub")
	assert.True(t, ok)
}
