package oscudp

import (
	"context"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/hypebeast/go-osc/osc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/musestreams/component"
	"github.com/c360/musestreams/demux"
	"github.com/c360/musestreams/muse"
	"github.com/c360/musestreams/testutil"
)

func testInput(t *testing.T, port int) (*Input, *demux.Demux) {
	t.Helper()
	router := demux.New(nil, nil)
	in := NewInput(Deps{
		Name:   "oscudp-test",
		Config: Config{Port: port, Bind: "127.0.0.1"},
		Demux:  router,
	})
	require.NotNil(t, in)
	return in, router
}

func findAvailablePort(t *testing.T) int {
	t.Helper()
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	defer conn.Close()
	return conn.LocalAddr().(*net.UDPAddr).Port
}

func sendPacket(t *testing.T, port int, msg *osc.Message) {
	t.Helper()
	data, err := msg.MarshalBinary()
	require.NoError(t, err)

	conn, err := net.Dial("udp", net.JoinHostPort("127.0.0.1", strconv.Itoa(port)))
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write(data)
	require.NoError(t, err)
}

func TestNewInput_Defaults(t *testing.T) {
	router := demux.New(nil, nil)
	in := NewInput(Deps{Demux: router})

	assert.Equal(t, 5000, in.port)
	assert.Equal(t, "0.0.0.0", in.bind)
}

func TestInput_Meta(t *testing.T) {
	in, _ := testInput(t, 5000)

	meta := in.Meta()
	assert.Equal(t, "oscudp-test", meta.Name)
	assert.Equal(t, "input", meta.Type)
	assert.NotEmpty(t, meta.Description)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{name: "valid", config: Config{Port: 5000, Bind: "127.0.0.1"}},
		{name: "negative port", config: Config{Port: -1, Bind: "127.0.0.1"}, wantErr: true},
		{name: "port too high", config: Config{Port: 70000, Bind: "127.0.0.1"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestInput_InitializeRequiresDemux(t *testing.T) {
	in := NewInput(Deps{Config: Config{Port: 5000}})
	assert.Error(t, in.Initialize())
}

func TestInput_StopWithoutStart(t *testing.T) {
	in, _ := testInput(t, findAvailablePort(t))
	assert.NoError(t, in.Stop(time.Second))
}

func TestInput_StartStop(t *testing.T) {
	port := findAvailablePort(t)
	in, _ := testInput(t, port)

	require.NoError(t, in.Initialize())
	require.NoError(t, in.Start(context.Background()))

	health := in.Health()
	assert.True(t, health.Healthy)

	// Idempotent start
	require.NoError(t, in.Start(context.Background()))

	require.NoError(t, in.Stop(2*time.Second))
	assert.False(t, in.Health().Healthy)
}

func TestInput_RoutesMessagesToListeners(t *testing.T) {
	port := findAvailablePort(t)
	in, router := testInput(t, port)

	listener := testutil.NewRecordingListener()
	router.Register(listener)

	require.NoError(t, in.Initialize())
	require.NoError(t, in.Start(context.Background()))
	defer func() { _ = in.Stop(2 * time.Second) }()

	sendPacket(t, port, testutil.ConfigMessage("muse-1078"))
	sendPacket(t, port, testutil.EEGMessage(812.4, 799.1, 820.6, 805.2))
	sendPacket(t, port, testutil.BatteryMessage(8317, 4021))

	require.True(t, listener.WaitForCount(2, 2*time.Second),
		"expected EEG and battery deliveries, got %d", listener.Count())

	deliveries := listener.Deliveries()
	assert.Equal(t, muse.CategoryEEG, deliveries[0].Category)
	assert.Equal(t, "muse-1078", deliveries[0].Device)
	assert.Equal(t, []float32{812.4, 799.1, 820.6, 805.2}, deliveries[0].Floats)

	assert.Equal(t, muse.CategoryBattery, deliveries[1].Category)
	assert.Equal(t, []int32{8317, 4021}, deliveries[1].Ints)
}

func TestInput_DropsDataBeforeConfig(t *testing.T) {
	port := findAvailablePort(t)
	in, router := testInput(t, port)

	listener := testutil.NewRecordingListener()
	router.Register(listener)

	require.NoError(t, in.Initialize())
	require.NoError(t, in.Start(context.Background()))
	defer func() { _ = in.Stop(2 * time.Second) }()

	sendPacket(t, port, testutil.EEGMessage(812.4, 799.1, 820.6, 805.2))

	// Give the read loop time to process; nothing may arrive.
	assert.False(t, listener.WaitForCount(1, 300*time.Millisecond))
	assert.Equal(t, 0, listener.Count())
}

func TestInput_PortConflict(t *testing.T) {
	port := findAvailablePort(t)

	// Occupy the port so binding must fail after retries.
	conflict, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: port})
	require.NoError(t, err)
	defer conflict.Close()

	in, _ := testInput(t, port)
	in.retryConfig.MaxAttempts = 2
	in.retryConfig.InitialDelay = 10 * time.Millisecond

	require.NoError(t, in.Initialize())

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	assert.Error(t, in.Start(ctx))
}

func TestCreateInput_Factory(t *testing.T) {
	router := demux.New(nil, nil)
	deps := component.Dependencies{Demux: router}

	comp, err := CreateInput([]byte(`{"port": 5010, "bind": "127.0.0.1"}`), deps)
	require.NoError(t, err)

	in, ok := comp.(*Input)
	require.True(t, ok)
	assert.Equal(t, 5010, in.port)
	assert.Equal(t, "127.0.0.1", in.bind)
}

func TestCreateInput_RequiresDemux(t *testing.T) {
	_, err := CreateInput(nil, component.Dependencies{})
	assert.Error(t, err)
}

func TestRegister(t *testing.T) {
	registry := component.NewRegistry()
	require.NoError(t, Register(registry))

	_, ok := registry.GetFactory("oscudp")
	assert.True(t, ok)
}

// TestInput_ComprehensiveLifecycle runs the shared lifecycle test suite.
func TestInput_ComprehensiveLifecycle(t *testing.T) {
	factory := func() component.LifecycleComponent {
		in, _ := testInput(t, findAvailablePort(t))
		return in
	}
	component.StandardLifecycleTests(t, factory)
}
