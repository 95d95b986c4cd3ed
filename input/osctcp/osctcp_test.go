package osctcp

import (
	"context"
	"encoding/binary"
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
		Name:   "osctcp-test",
		Config: Config{Port: port, Bind: "127.0.0.1"},
		Demux:  router,
	})
	require.NotNil(t, in)
	return in, router
}

func findAvailablePort(t *testing.T) int {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer listener.Close()
	return listener.Addr().(*net.TCPAddr).Port
}

// writeFrame sends one length-prefixed OSC message on an open connection.
func writeFrame(t *testing.T, conn net.Conn, msg *osc.Message) {
	t.Helper()
	data, err := msg.MarshalBinary()
	require.NoError(t, err)

	var header [4]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(data)))
	_, err = conn.Write(header[:])
	require.NoError(t, err)
	_, err = conn.Write(data)
	require.NoError(t, err)
}

func dialInput(t *testing.T, port int) net.Conn {
	t.Helper()
	var conn net.Conn
	var err error
	for i := 0; i < 50; i++ {
		conn, err = net.Dial("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(port)))
		if err == nil {
			return conn
		}
		time.Sleep(10 * time.Millisecond)
	}
	require.NoError(t, err)
	return nil
}

func TestNewInput_Defaults(t *testing.T) {
	router := demux.New(nil, nil)
	in := NewInput(Deps{Demux: router})

	assert.Equal(t, 5001, in.port)
	assert.Equal(t, "0.0.0.0", in.bind)
}

func TestInput_InitializeRequiresDemux(t *testing.T) {
	in := NewInput(Deps{Config: Config{Port: 5001}})
	assert.Error(t, in.Initialize())
}

func TestInput_StartStop(t *testing.T) {
	in, _ := testInput(t, findAvailablePort(t))

	require.NoError(t, in.Initialize())
	require.NoError(t, in.Start(context.Background()))
	assert.True(t, in.Health().Healthy)

	require.NoError(t, in.Stop(2*time.Second))
	assert.False(t, in.Health().Healthy)
}

func TestInput_RoutesFramedMessages(t *testing.T) {
	port := findAvailablePort(t)
	in, router := testInput(t, port)

	listener := testutil.NewRecordingListener()
	router.Register(listener)

	require.NoError(t, in.Initialize())
	require.NoError(t, in.Start(context.Background()))
	defer func() { _ = in.Stop(2 * time.Second) }()

	conn := dialInput(t, port)
	defer conn.Close()

	writeFrame(t, conn, testutil.ConfigMessage("muse-0042"))
	writeFrame(t, conn, testutil.EEGMessage(812.4, 799.1, 820.6, 805.2))

	require.True(t, listener.WaitForCount(1, 2*time.Second))

	deliveries := listener.Deliveries()
	assert.Equal(t, muse.CategoryEEG, deliveries[0].Category)
	assert.Equal(t, "muse-0042", deliveries[0].Device)
}

func TestInput_PerConnectionSources(t *testing.T) {
	port := findAvailablePort(t)
	in, router := testInput(t, port)

	listener := testutil.NewRecordingListener()
	router.Register(listener)

	require.NoError(t, in.Initialize())
	require.NoError(t, in.Start(context.Background()))
	defer func() { _ = in.Stop(2 * time.Second) }()

	connA := dialInput(t, port)
	defer connA.Close()
	connB := dialInput(t, port)
	defer connB.Close()

	writeFrame(t, connA, testutil.ConfigMessage("muse-aaaa"))
	writeFrame(t, connB, testutil.ConfigMessage("muse-bbbb"))

	// Each sample must carry its own connection's identity.
	writeFrame(t, connA, testutil.EEGMessage(1, 2, 3, 4))
	writeFrame(t, connB, testutil.EEGMessage(5, 6, 7, 8))

	require.True(t, listener.WaitForCount(2, 2*time.Second))

	devices := map[string][]float32{}
	for _, d := range listener.Deliveries() {
		devices[d.Device] = d.Floats
	}
	assert.Equal(t, []float32{1, 2, 3, 4}, devices["muse-aaaa"])
	assert.Equal(t, []float32{5, 6, 7, 8}, devices["muse-bbbb"])
}

func TestInput_DisconnectEvictsConfig(t *testing.T) {
	port := findAvailablePort(t)
	in, router := testInput(t, port)

	require.NoError(t, in.Initialize())
	require.NoError(t, in.Start(context.Background()))
	defer func() { _ = in.Stop(2 * time.Second) }()

	conn := dialInput(t, port)
	writeFrame(t, conn, testutil.ConfigMessage("muse-gone"))

	require.Eventually(t, func() bool {
		return in.router.Stats().ConfiguredSources == 1
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, conn.Close())

	require.Eventually(t, func() bool {
		return router.Stats().ConfiguredSources == 0
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 0, in.ActiveConnections())
}

func TestInput_OversizedFrameDropsConnection(t *testing.T) {
	port := findAvailablePort(t)
	in, _ := testInput(t, port)

	require.NoError(t, in.Initialize())
	require.NoError(t, in.Start(context.Background()))
	defer func() { _ = in.Stop(2 * time.Second) }()

	conn := dialInput(t, port)
	defer conn.Close()

	require.Eventually(t, func() bool {
		return in.ActiveConnections() == 1
	}, 2*time.Second, 10*time.Millisecond)

	var header [4]byte
	binary.BigEndian.PutUint32(header[:], maxFrameSize+1)
	_, err := conn.Write(header[:])
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return in.ActiveConnections() == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestInput_HeaderStraddlingDeadlineKeepsConnection(t *testing.T) {
	port := findAvailablePort(t)
	in, router := testInput(t, port)

	listener := testutil.NewRecordingListener()
	router.Register(listener)

	require.NoError(t, in.Initialize())
	require.NoError(t, in.Start(context.Background()))
	defer func() { _ = in.Stop(2 * time.Second) }()

	conn := dialInput(t, port)
	defer conn.Close()

	data, err := testutil.ConfigMessage("muse-slow").MarshalBinary()
	require.NoError(t, err)

	var header [4]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(data)))

	// Deliver the length prefix in two halves with a pause longer than
	// the reader's 100ms deadline poll. The reader must resume
	// mid-header rather than restart and misread the stream.
	_, err = conn.Write(header[:2])
	require.NoError(t, err)
	time.Sleep(300 * time.Millisecond)
	_, err = conn.Write(header[2:])
	require.NoError(t, err)
	_, err = conn.Write(data)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return router.Stats().ConfiguredSources == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 1, in.ActiveConnections())

	// The stream stays in sync for subsequent frames.
	writeFrame(t, conn, testutil.EEGMessage(801.5, 795.2, 810.8, 799.9))
	require.True(t, listener.WaitForCount(1, 2*time.Second))
	assert.Equal(t, muse.CategoryEEG, listener.Deliveries()[0].Category)
}

func TestCreateInput_Factory(t *testing.T) {
	router := demux.New(nil, nil)
	comp, err := CreateInput([]byte(`{"port": 5011}`), component.Dependencies{Demux: router})
	require.NoError(t, err)

	in, ok := comp.(*Input)
	require.True(t, ok)
	assert.Equal(t, 5011, in.port)
}

func TestCreateInput_RequiresDemux(t *testing.T) {
	_, err := CreateInput(nil, component.Dependencies{})
	assert.Error(t, err)
}

func TestRegister(t *testing.T) {
	registry := component.NewRegistry()
	require.NoError(t, Register(registry))

	_, ok := registry.GetFactory("osctcp")
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
