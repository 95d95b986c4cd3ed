package wsfeed

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/musestreams/component"
	"github.com/c360/musestreams/message"
	"github.com/c360/musestreams/muse"
	"github.com/c360/musestreams/testutil"
)

func findAvailablePort(t *testing.T) int {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer listener.Close()
	return listener.Addr().(*net.TCPAddr).Port
}

func startedFeed(t *testing.T, cfg Config) *Output {
	t.Helper()
	if cfg.Port == 0 {
		cfg.Port = findAvailablePort(t)
	}
	out := NewOutput(Deps{Name: "wsfeed-test", Config: cfg})
	require.NoError(t, out.Initialize())
	require.NoError(t, out.Start(context.Background()))
	t.Cleanup(func() { _ = out.Stop(2 * time.Second) })
	return out
}

func dialFeed(t *testing.T, out *Output) *websocket.Conn {
	t.Helper()
	url := fmt.Sprintf("ws://127.0.0.1:%d%s", out.port, out.path)

	var conn *websocket.Conn
	require.Eventually(t, func() bool {
		c, _, err := websocket.DefaultDialer.Dial(url, nil)
		if err != nil {
			return false
		}
		conn = c
		return true
	}, 2*time.Second, 20*time.Millisecond)

	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readEnvelope(t *testing.T, conn *websocket.Conn) *message.BaseMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg message.BaseMessage
	require.NoError(t, json.Unmarshal(data, &msg))
	return &msg
}

func testConfig(t *testing.T, serial string) *muse.Config {
	t.Helper()
	cfg, err := muse.ParseConfig([]byte(testutil.ConfigJSON(serial)))
	require.NoError(t, err)
	return cfg
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"defaults", DefaultConfig(), false},
		{"port zero", Config{Port: 0, Path: "/ws", QueueSize: 16}, true},
		{"port too high", Config{Port: 70000, Path: "/ws", QueueSize: 16}, true},
		{"relative path", Config{Port: 8081, Path: "ws", QueueSize: 16}, true},
		{"zero queue", Config{Port: 8081, Path: "/ws", QueueSize: 0}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNewOutput_Defaults(t *testing.T) {
	out := NewOutput(Deps{})

	assert.Equal(t, 8081, out.port)
	assert.Equal(t, "/ws", out.path)
	assert.Equal(t, 256, out.queueSize)
}

func TestOutput_StartStop(t *testing.T) {
	out := startedFeed(t, Config{})

	assert.True(t, out.Health().Healthy)
	require.NoError(t, out.Stop(2*time.Second))
	assert.False(t, out.Health().Healthy)

	// Stop is idempotent.
	require.NoError(t, out.Stop(2*time.Second))
}

func TestOutput_StopWithoutStart(t *testing.T) {
	out := NewOutput(Deps{})
	assert.NoError(t, out.Stop(time.Second))
}

func TestOutput_PortConflict(t *testing.T) {
	port := findAvailablePort(t)
	listener, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
	require.NoError(t, err)
	defer listener.Close()

	out := NewOutput(Deps{Config: Config{Port: port}})
	require.NoError(t, out.Initialize())
	assert.Error(t, out.Start(context.Background()))
}

func TestOutput_BroadcastsToClient(t *testing.T) {
	out := startedFeed(t, Config{})
	conn := dialFeed(t, out)
	cfg := testConfig(t, "muse-1078")

	require.Eventually(t, func() bool {
		return out.ClientCount() == 1
	}, 2*time.Second, 10*time.Millisecond)

	out.ReceiveEEG(cfg, []float32{812.4, 799.1, 820.6, 805.2})

	// First frame is the session announcement, then the sample.
	announce := readEnvelope(t, conn)
	assert.Equal(t, message.TypeConfig, announce.Type())

	sample := readEnvelope(t, conn)
	require.Equal(t, message.TypeEEG, sample.Type())
	payload, ok := sample.Payload().(*message.EEGPayload)
	require.True(t, ok)
	assert.Equal(t, []float32{812.4, 799.1, 820.6, 805.2}, payload.Values)
	assert.Equal(t, "muse-1078", payload.Device.ID)
}

func TestOutput_ReplaysConfigToNewClient(t *testing.T) {
	out := startedFeed(t, Config{})
	cfg := testConfig(t, "muse-1078")

	// Telemetry flows before anyone is connected.
	out.ReceiveBattery(cfg, []int32{8317})

	conn := dialFeed(t, out)
	announce := readEnvelope(t, conn)
	require.Equal(t, message.TypeConfig, announce.Type())
	payload, ok := announce.Payload().(*message.ConfigPayload)
	require.True(t, ok)
	assert.Equal(t, "muse-1078", payload.Device.ID)
}

func TestOutput_AnnouncesEachDeviceOnce(t *testing.T) {
	out := startedFeed(t, Config{})
	conn := dialFeed(t, out)
	cfg := testConfig(t, "muse-1078")

	require.Eventually(t, func() bool {
		return out.ClientCount() == 1
	}, 2*time.Second, 10*time.Millisecond)

	out.ReceiveBattery(cfg, []int32{9000})
	out.ReceiveBattery(cfg, []int32{8900})

	types := []message.Type{
		readEnvelope(t, conn).Type(),
		readEnvelope(t, conn).Type(),
		readEnvelope(t, conn).Type(),
	}
	assert.Equal(t, []message.Type{message.TypeConfig, message.TypeBattery, message.TypeBattery}, types)
}

func TestOutput_SlowClientDoesNotBlockBroadcast(t *testing.T) {
	out := startedFeed(t, Config{QueueSize: 4})
	_ = dialFeed(t, out) // connected but never reads

	require.Eventually(t, func() bool {
		return out.ClientCount() == 1
	}, 2*time.Second, 10*time.Millisecond)

	cfg := testConfig(t, "muse-1078")
	start := time.Now()
	for i := 0; i < 500; i++ {
		out.ReceiveEEG(cfg, []float32{1, 2, 3, 4})
	}
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestOutput_ClientDisconnectDetected(t *testing.T) {
	out := startedFeed(t, Config{})
	conn := dialFeed(t, out)

	require.Eventually(t, func() bool {
		return out.ClientCount() == 1
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, conn.Close())

	require.Eventually(t, func() bool {
		return out.ClientCount() == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestOutput_DropsWhenStopped(t *testing.T) {
	out := startedFeed(t, Config{})
	require.NoError(t, out.Stop(2*time.Second))

	// Must not panic or block after shutdown.
	out.ReceiveEEG(testConfig(t, "muse-1078"), []float32{1, 2, 3, 4})
}

func TestCreateOutput_Factory(t *testing.T) {
	raw := json.RawMessage(`{"port": 9201, "path": "/feed", "queue_size": 64}`)
	created, err := CreateOutput(raw, component.Dependencies{})
	require.NoError(t, err)

	out, ok := created.(*Output)
	require.True(t, ok)
	assert.Equal(t, 9201, out.port)
	assert.Equal(t, "/feed", out.path)
	assert.Equal(t, 64, out.queueSize)
}

func TestCreateOutput_RejectsBadConfig(t *testing.T) {
	_, err := CreateOutput(json.RawMessage(`{"port": -1}`), component.Dependencies{})
	assert.Error(t, err)
}

func TestRegister(t *testing.T) {
	registry := component.NewRegistry()
	require.NoError(t, Register(registry))

	_, ok := registry.GetFactory("wsfeed")
	assert.True(t, ok)
}

// TestOutput_ComprehensiveLifecycle runs the shared lifecycle test suite.
func TestOutput_ComprehensiveLifecycle(t *testing.T) {
	factory := func() component.LifecycleComponent {
		return NewOutput(Deps{
			Name:   "wsfeed-test",
			Config: Config{Port: findAvailablePort(t), Path: "/feed"},
		})
	}
	component.StandardLifecycleTests(t, factory)
}

// TestOutput_ErrorInjection verifies the component stays stoppable when
// lifecycle calls fail.
func TestOutput_ErrorInjection(t *testing.T) {
	factory := func() component.LifecycleComponent {
		return NewOutput(Deps{
			Name:   "wsfeed-test",
			Config: Config{Port: findAvailablePort(t), Path: "/feed"},
		})
	}
	component.TestErrorInjection(t, factory)
}

func BenchmarkOutput_Lifecycle(b *testing.B) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		b.Fatal(err)
	}
	port := listener.Addr().(*net.TCPAddr).Port
	_ = listener.Close()

	factory := func() component.LifecycleComponent {
		return NewOutput(Deps{
			Name:   "wsfeed-bench",
			Config: Config{Port: port, Path: "/feed"},
		})
	}
	component.BenchmarkLifecycleMethods(b, factory)
}
