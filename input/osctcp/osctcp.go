package osctcp

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hypebeast/go-osc/osc"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/musestreams/component"
	"github.com/c360/musestreams/demux"
	"github.com/c360/musestreams/errors"
	"github.com/c360/musestreams/metric"
	"github.com/c360/musestreams/pkg/retry"
)

// maxFrameSize caps a single length-prefixed OSC frame. The largest
// legitimate muse-io packet is the config announcement, well under 64KiB;
// anything bigger means a desynced or hostile stream.
const maxFrameSize = 1 << 20

// Metrics holds Prometheus metrics for the TCP OSC input component
type Metrics struct {
	connectionsTotal  prometheus.Counter
	connectionsActive prometheus.Gauge
	framesReceived    prometheus.Counter
	bytesReceived     prometheus.Counter
	frameErrors       prometheus.Counter
	parseErrors       prometheus.Counter
	messagesHandled   prometheus.Counter
}

// newMetrics creates and registers TCP OSC input metrics
func newMetrics(registry *metric.MetricsRegistry, port int) *Metrics {
	// Return nil if no registry provided (nil input = nil feature pattern)
	if registry == nil {
		return nil
	}

	metrics := &Metrics{
		connectionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "musestreams",
			Subsystem: "osctcp",
			Name:      "connections_total",
			Help:      "TCP connections accepted",
		}),
		connectionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "musestreams",
			Subsystem: "osctcp",
			Name:      "connections_active",
			Help:      "Currently open TCP connections",
		}),
		framesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "musestreams",
			Subsystem: "osctcp",
			Name:      "frames_received_total",
			Help:      "Length-prefixed OSC frames received",
		}),
		bytesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "musestreams",
			Subsystem: "osctcp",
			Name:      "bytes_received_total",
			Help:      "Frame payload bytes received",
		}),
		frameErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "musestreams",
			Subsystem: "osctcp",
			Name:      "frame_errors_total",
			Help:      "Connections dropped for framing violations",
		}),
		parseErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "musestreams",
			Subsystem: "osctcp",
			Name:      "parse_errors_total",
			Help:      "Frames that failed OSC packet parsing",
		}),
		messagesHandled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "musestreams",
			Subsystem: "osctcp",
			Name:      "messages_handled_total",
			Help:      "OSC messages handed to the demultiplexer",
		}),
	}

	serviceName := fmt.Sprintf("osctcp_%d", port)
	registry.RegisterCounter(serviceName, "connections", metrics.connectionsTotal)
	registry.RegisterGauge(serviceName, "connections_active", metrics.connectionsActive)
	registry.RegisterCounter(serviceName, "frames_received", metrics.framesReceived)
	registry.RegisterCounter(serviceName, "bytes_received", metrics.bytesReceived)
	registry.RegisterCounter(serviceName, "frame_errors", metrics.frameErrors)
	registry.RegisterCounter(serviceName, "parse_errors", metrics.parseErrors)
	registry.RegisterCounter(serviceName, "messages_handled", metrics.messagesHandled)

	return metrics
}

// Config holds configuration for the TCP OSC input component
type Config struct {
	// Port is the TCP port to listen on.
	Port int `json:"port"`
	// Bind is the local address to bind. Empty means all interfaces.
	Bind string `json:"bind,omitempty"`
}

// DefaultConfig returns sensible defaults for the TCP OSC input
func DefaultConfig() Config {
	return Config{
		Port: 5001,
		Bind: "0.0.0.0",
	}
}

// Validate implements component.Validatable for secure config validation
func (c *Config) Validate() error {
	if err := component.ValidateNetworkConfig(c.Port, c.Bind); err != nil {
		return errors.Wrap(err, "osctcp", "Validate", "network config validation")
	}
	return nil
}

// Deps holds runtime dependencies for the TCP OSC input component
type Deps struct {
	Name            string
	Config          Config
	Demux           *demux.Demux
	MetricsRegistry *metric.MetricsRegistry
	Logger          *slog.Logger
}

// Input accepts TCP connections carrying length-prefixed OSC frames and
// routes every message through the demultiplexer under a per-connection
// source key. Each connection is assumed to be exactly one headset.
type Input struct {
	name   string
	port   int
	bind   string
	router *demux.Demux
	logger *slog.Logger

	retryConfig retry.Config

	// Lifecycle management
	shutdown  chan struct{}
	done      chan struct{}
	running   atomic.Bool
	startTime time.Time
	mu        sync.RWMutex
	wg        sync.WaitGroup
	listener  net.Listener

	// Open connections by source key, closed on Stop
	conns   map[demux.SourceKey]net.Conn
	connsMu sync.Mutex
	connSeq atomic.Uint64

	messagesReceived atomic.Int64
	bytesReceived    atomic.Int64
	errorCount       atomic.Int64
	lastActivity     atomic.Value // stores time.Time

	metrics *Metrics
}

// Ensure Input implements all required interfaces
var _ component.Discoverable = (*Input)(nil)
var _ component.LifecycleComponent = (*Input)(nil)

// NewInput creates a TCP OSC input component
func NewInput(deps Deps) *Input {
	cfg := deps.Config
	if cfg.Port == 0 {
		cfg.Port = DefaultConfig().Port
	}
	if cfg.Bind == "" {
		cfg.Bind = DefaultConfig().Bind
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default().With("component", "osctcp-input", "port", cfg.Port)
	}

	in := &Input{
		name:        deps.Name,
		port:        cfg.Port,
		bind:        cfg.Bind,
		router:      deps.Demux,
		logger:      logger,
		retryConfig: retry.DefaultConfig(),
		startTime:   time.Now(),
		conns:       make(map[demux.SourceKey]net.Conn),
		metrics:     newMetrics(deps.MetricsRegistry, cfg.Port),
	}
	in.lastActivity.Store(time.Time{})
	return in
}

// Meta returns the component metadata
func (in *Input) Meta() component.Metadata {
	name := in.name
	if name == "" {
		name = fmt.Sprintf("osctcp-input-%d", in.port)
	}

	return component.Metadata{
		Name:        name,
		Type:        "input",
		Description: fmt.Sprintf("OSC over TCP input on %s:%d, one headset per connection", in.bind, in.port),
		Version:     "1.0.0",
	}
}

// Health returns the current health status of the component
func (in *Input) Health() component.HealthStatus {
	in.mu.RLock()
	listening := in.listener != nil
	in.mu.RUnlock()

	return component.HealthStatus{
		Healthy:    in.running.Load() && listening,
		LastCheck:  time.Now(),
		ErrorCount: int(in.errorCount.Load()),
		Uptime:     time.Since(in.startTime),
	}
}

// DataFlow returns the current data flow metrics
func (in *Input) DataFlow() component.FlowMetrics {
	messages := in.messagesReceived.Load()
	bytes := in.bytesReceived.Load()
	errorCount := in.errorCount.Load()
	lastActivity, _ := in.lastActivity.Load().(time.Time)

	var messagesPerSecond, bytesPerSecond, errorRate float64
	if uptime := time.Since(in.startTime).Seconds(); uptime > 0 {
		messagesPerSecond = float64(messages) / uptime
		bytesPerSecond = float64(bytes) / uptime
	}
	if messages > 0 {
		errorRate = float64(errorCount) / float64(messages)
	}

	return component.FlowMetrics{
		MessagesPerSecond: messagesPerSecond,
		BytesPerSecond:    bytesPerSecond,
		ErrorRate:         errorRate,
		LastActivity:      lastActivity,
	}
}

// ActiveConnections returns the number of open headset connections.
func (in *Input) ActiveConnections() int {
	in.connsMu.Lock()
	defer in.connsMu.Unlock()
	return len(in.conns)
}

// Initialize validates configuration but does not bind the listener
func (in *Input) Initialize() error {
	in.mu.Lock()
	defer in.mu.Unlock()

	if in.port < 0 || in.port > 65535 {
		return errors.WrapInvalid(fmt.Errorf("invalid port %d", in.port),
			"osctcp-input", "Initialize", "port validation")
	}

	if in.router == nil {
		return errors.WrapInvalid(fmt.Errorf("nil demultiplexer"),
			"osctcp-input", "Initialize", "demux validation")
	}

	return nil
}

// Start binds the TCP listener and begins accepting connections
func (in *Input) Start(ctx context.Context) error {
	in.mu.Lock()
	defer in.mu.Unlock()

	if in.running.Load() {
		return nil // Already running, idempotent
	}

	if err := component.ValidateStartContext(ctx, "osctcp-input"); err != nil {
		return err
	}

	in.shutdown = make(chan struct{})
	in.done = make(chan struct{})

	bind := func() error {
		listener, err := net.Listen("tcp", fmt.Sprintf("%s:%d", in.bind, in.port))
		if err != nil {
			return fmt.Errorf("failed to listen on TCP port %d: %w", in.port, err)
		}
		in.listener = listener
		return nil
	}
	if err := retry.Do(ctx, in.retryConfig, bind); err != nil {
		in.cleanupUnlocked()
		return errors.WrapTransient(err, "osctcp-input", "Start", "listener binding")
	}

	in.running.Store(true)
	in.startTime = time.Now()

	in.logger.Info("OSC TCP input listening",
		"bind", in.bind,
		"port", in.port)

	in.wg.Add(1)
	go func() {
		defer in.wg.Done()
		in.acceptLoop(ctx)
	}()

	go func() {
		in.wg.Wait()
		close(in.done)
	}()

	return nil
}

// Stop closes the listener and all open connections, then waits for the
// per-connection readers to drain within the timeout.
func (in *Input) Stop(timeout time.Duration) error {
	if !in.running.Load() {
		return nil
	}

	in.running.Store(false)

	in.mu.Lock()
	if in.shutdown != nil {
		select {
		case <-in.shutdown:
		default:
			close(in.shutdown)
		}
	}
	if in.listener != nil {
		_ = in.listener.Close()
	}
	done := in.done
	in.mu.Unlock()

	in.connsMu.Lock()
	for _, conn := range in.conns {
		_ = conn.Close()
	}
	in.connsMu.Unlock()

	if done != nil {
		select {
		case <-done:
		case <-time.After(timeout):
			return errors.WrapTransient(fmt.Errorf("stop timeout after %v", timeout),
				"osctcp-input", "Stop", "graceful shutdown")
		}
	}

	in.mu.Lock()
	in.cleanupUnlocked()
	in.mu.Unlock()
	return nil
}

// cleanupUnlocked releases resources. Callers hold in.mu.
func (in *Input) cleanupUnlocked() {
	if in.shutdown != nil {
		select {
		case <-in.shutdown:
		default:
			close(in.shutdown)
		}
		in.shutdown = nil
	}
	if in.listener != nil {
		_ = in.listener.Close()
		in.listener = nil
	}
}

// acceptLoop accepts connections until the listener closes.
func (in *Input) acceptLoop(ctx context.Context) {
	in.mu.RLock()
	listener := in.listener
	in.mu.RUnlock()
	if listener == nil {
		return
	}

	for {
		conn, err := listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
			case <-in.shutdown:
			default:
				if in.running.Load() {
					in.errorCount.Add(1)
					in.logger.Error("Accept failed, stopping input", "error", err)
				}
			}
			return
		}

		key := demux.SourceKey(fmt.Sprintf("tcp-%d-%s", in.connSeq.Add(1), conn.RemoteAddr()))

		in.connsMu.Lock()
		in.conns[key] = conn
		in.connsMu.Unlock()

		if in.metrics != nil {
			in.metrics.connectionsTotal.Inc()
			in.metrics.connectionsActive.Inc()
		}
		in.logger.Info("Headset connected",
			"source", string(key),
			"remote", conn.RemoteAddr().String())

		in.wg.Add(1)
		go func() {
			defer in.wg.Done()
			in.readConnection(ctx, key, conn)
		}()
	}
}

// readConnection reads length-prefixed OSC frames from one connection
// until it closes, then evicts the connection's source.
func (in *Input) readConnection(ctx context.Context, key demux.SourceKey, conn net.Conn) {
	defer func() {
		_ = conn.Close()

		in.connsMu.Lock()
		delete(in.conns, key)
		in.connsMu.Unlock()

		if in.metrics != nil {
			in.metrics.connectionsActive.Dec()
		}

		// Evict after the connection is gone so a reconnect never races
		// against the old configuration.
		in.router.HandleDisconnect(key)
		in.logger.Info("Headset disconnected", "source", string(key))
	}()

	var header [4]byte
	headerRead := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-in.shutdown:
			return
		default:
		}

		_ = conn.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
		n, err := io.ReadFull(conn, header[headerRead:])
		headerRead += n
		if err != nil {
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				// A header can straddle the deadline poll; keep the
				// bytes already consumed and resume mid-header.
				continue
			}
			if err != io.EOF {
				in.errorCount.Add(1)
				in.logger.Debug("Frame header read failed", "source", string(key), "error", err)
			}
			return
		}
		headerRead = 0

		frameLen := binary.BigEndian.Uint32(header[:])
		if frameLen == 0 || frameLen > maxFrameSize {
			in.errorCount.Add(1)
			if in.metrics != nil {
				in.metrics.frameErrors.Inc()
			}
			in.logger.Warn("Dropping connection with invalid frame length",
				"source", string(key),
				"frame_length", frameLen)
			return
		}

		frame := make([]byte, frameLen)
		// The payload follows immediately; allow a generous deadline so a
		// straddled TCP segment does not kill the connection.
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		if _, err := io.ReadFull(conn, frame); err != nil {
			in.errorCount.Add(1)
			if in.metrics != nil {
				in.metrics.frameErrors.Inc()
			}
			in.logger.Debug("Frame body read failed", "source", string(key), "error", err)
			return
		}

		now := time.Now()
		in.bytesReceived.Add(int64(frameLen))
		in.lastActivity.Store(now)
		if in.metrics != nil {
			in.metrics.framesReceived.Inc()
			in.metrics.bytesReceived.Add(float64(frameLen))
		}

		packet, err := osc.ParsePacket(string(frame))
		if err != nil {
			in.errorCount.Add(1)
			if in.metrics != nil {
				in.metrics.parseErrors.Inc()
			}
			in.logger.Debug("Discarding malformed OSC frame",
				"source", string(key),
				"bytes", frameLen,
				"error", err)
			continue
		}

		in.handlePacket(key, packet)
	}
}

// handlePacket routes every message in a packet, walking bundles
// recursively.
func (in *Input) handlePacket(key demux.SourceKey, packet osc.Packet) {
	switch p := packet.(type) {
	case *osc.Message:
		in.handleMessage(key, p)
	case *osc.Bundle:
		for _, msg := range p.Messages {
			in.handleMessage(key, msg)
		}
		for _, bundle := range p.Bundles {
			in.handlePacket(key, bundle)
		}
	}
}

func (in *Input) handleMessage(key demux.SourceKey, msg *osc.Message) {
	in.messagesReceived.Add(1)
	if in.metrics != nil {
		in.metrics.messagesHandled.Inc()
	}

	if err := in.router.Handle(key, msg); err != nil {
		in.errorCount.Add(1)
		in.logger.Warn("Message handling failed",
			"source", string(key),
			"address", msg.Address,
			"error", err)
	}
}

// CreateInput creates a TCP OSC input component from raw configuration
func CreateInput(rawConfig json.RawMessage, deps component.Dependencies) (component.Discoverable, error) {
	cfg := DefaultConfig()

	if len(rawConfig) > 0 {
		var userConfig Config
		if err := component.SafeUnmarshal(rawConfig, &userConfig); err != nil {
			return nil, errors.Wrap(err, "osctcp-input-factory", "create", "secure config parsing")
		}
		if userConfig.Port != 0 {
			cfg.Port = userConfig.Port
		}
		if userConfig.Bind != "" {
			cfg.Bind = userConfig.Bind
		}
	}

	if deps.Demux == nil {
		return nil, errors.WrapInvalid(fmt.Errorf("demultiplexer is required"),
			"osctcp-input-factory", "create", "demux validation")
	}

	return NewInput(Deps{
		Name:            "osctcp-input",
		Config:          cfg,
		Demux:           deps.Demux,
		MetricsRegistry: deps.MetricsRegistry,
		Logger:          deps.GetLoggerWithComponent("osctcp-input"),
	}), nil
}

// Register registers the TCP OSC input component with the given registry
func Register(registry *component.Registry) error {
	return registry.RegisterFactory("osctcp", &component.Registration{
		Name:        "osctcp",
		Type:        "input",
		Protocol:    "tcp",
		Description: "OSC over TCP input for muse-io telemetry (one headset per connection)",
		Version:     "1.0.0",
		Factory:     CreateInput,
	})
}
