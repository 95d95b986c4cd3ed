package oscudp

import (
	"context"
	"encoding/json"
	"fmt"
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

// Metrics holds Prometheus metrics for the UDP OSC input component
type Metrics struct {
	packetsReceived prometheus.Counter
	bytesReceived   prometheus.Counter
	messagesHandled prometheus.Counter
	parseErrors     prometheus.Counter
	socketErrors    prometheus.Counter
	lastActivity    prometheus.Gauge
}

// newMetrics creates and registers UDP OSC input metrics
func newMetrics(registry *metric.MetricsRegistry, port int) *Metrics {
	// Return nil if no registry provided (nil input = nil feature pattern)
	if registry == nil {
		return nil
	}

	metrics := &Metrics{
		packetsReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "musestreams",
			Subsystem: "oscudp",
			Name:      "packets_received_total",
			Help:      "UDP datagrams received",
		}),
		bytesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "musestreams",
			Subsystem: "oscudp",
			Name:      "bytes_received_total",
			Help:      "Bytes received from the UDP socket",
		}),
		messagesHandled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "musestreams",
			Subsystem: "oscudp",
			Name:      "messages_handled_total",
			Help:      "OSC messages handed to the demultiplexer",
		}),
		parseErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "musestreams",
			Subsystem: "oscudp",
			Name:      "parse_errors_total",
			Help:      "Datagrams that failed OSC packet parsing",
		}),
		socketErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "musestreams",
			Subsystem: "oscudp",
			Name:      "socket_errors_total",
			Help:      "Socket read errors encountered",
		}),
		lastActivity: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "musestreams",
			Subsystem: "oscudp",
			Name:      "last_activity_timestamp",
			Help:      "Unix timestamp of the last received datagram",
		}),
	}

	serviceName := fmt.Sprintf("oscudp_%d", port)
	registry.RegisterCounter(serviceName, "packets_received", metrics.packetsReceived)
	registry.RegisterCounter(serviceName, "bytes_received", metrics.bytesReceived)
	registry.RegisterCounter(serviceName, "messages_handled", metrics.messagesHandled)
	registry.RegisterCounter(serviceName, "parse_errors", metrics.parseErrors)
	registry.RegisterCounter(serviceName, "socket_errors", metrics.socketErrors)
	registry.RegisterGauge(serviceName, "last_activity", metrics.lastActivity)

	return metrics
}

// Config holds configuration for the UDP OSC input component
type Config struct {
	// Port is the UDP port to listen on. muse-io streams to 5000 by default.
	Port int `json:"port"`
	// Bind is the local address to bind. Empty means all interfaces.
	Bind string `json:"bind,omitempty"`
}

// DefaultConfig returns sensible defaults for the UDP OSC input
func DefaultConfig() Config {
	return Config{
		Port: 5000,
		Bind: "0.0.0.0",
	}
}

// Validate implements component.Validatable for secure config validation
func (c *Config) Validate() error {
	if err := component.ValidateNetworkConfig(c.Port, c.Bind); err != nil {
		return errors.Wrap(err, "oscudp", "Validate", "network config validation")
	}
	return nil
}

// Deps holds runtime dependencies for the UDP OSC input component
type Deps struct {
	Name            string                  // Instance name
	Config          Config                  // Business logic configuration
	Demux           *demux.Demux            // Runtime dependency
	MetricsRegistry *metric.MetricsRegistry // Runtime dependency
	Logger          *slog.Logger            // Runtime dependency
}

// Input receives OSC packets over UDP and routes every contained message
// through the demultiplexer. All datagrams share the demux.SoleSource key:
// UDP cannot tell headsets apart, so a UDP receiver serves one device.
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
	conn      *net.UDPConn

	messagesReceived atomic.Int64
	bytesReceived    atomic.Int64
	errorCount       atomic.Int64
	lastActivity     atomic.Value // stores time.Time

	metrics *Metrics
}

// Ensure Input implements all required interfaces
var _ component.Discoverable = (*Input)(nil)
var _ component.LifecycleComponent = (*Input)(nil)

// NewInput creates a UDP OSC input component
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
		logger = slog.Default().With("component", "oscudp-input", "port", cfg.Port)
	}

	in := &Input{
		name:        deps.Name,
		port:        cfg.Port,
		bind:        cfg.Bind,
		router:      deps.Demux,
		logger:      logger,
		retryConfig: retry.DefaultConfig(),
		startTime:   time.Now(),
		metrics:     newMetrics(deps.MetricsRegistry, cfg.Port),
	}
	in.lastActivity.Store(time.Time{})
	return in
}

// Meta returns the component metadata
func (in *Input) Meta() component.Metadata {
	name := in.name
	if name == "" {
		name = fmt.Sprintf("oscudp-input-%d", in.port)
	}

	return component.Metadata{
		Name:        name,
		Type:        "input",
		Description: fmt.Sprintf("OSC over UDP input on %s:%d feeding the demultiplexer", in.bind, in.port),
		Version:     "1.0.0",
	}
}

// Health returns the current health status of the component
func (in *Input) Health() component.HealthStatus {
	in.mu.RLock()
	connected := in.conn != nil
	in.mu.RUnlock()

	return component.HealthStatus{
		Healthy:    in.running.Load() && connected,
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

// Initialize validates configuration but does not bind the socket
func (in *Input) Initialize() error {
	in.mu.Lock()
	defer in.mu.Unlock()

	if in.port < 0 || in.port > 65535 {
		return errors.WrapInvalid(fmt.Errorf("invalid port %d", in.port),
			"oscudp-input", "Initialize", "port validation")
	}

	if in.router == nil {
		return errors.WrapInvalid(fmt.Errorf("nil demultiplexer"),
			"oscudp-input", "Initialize", "demux validation")
	}

	return nil
}

// Start binds the UDP socket and begins the read loop
func (in *Input) Start(ctx context.Context) error {
	in.mu.Lock()
	defer in.mu.Unlock()

	if in.running.Load() {
		return nil // Already running, idempotent
	}

	if err := component.ValidateStartContext(ctx, "oscudp-input"); err != nil {
		return err
	}

	in.shutdown = make(chan struct{})
	in.done = make(chan struct{})

	if err := retry.Do(ctx, in.retryConfig, in.bindSocket); err != nil {
		in.cleanupUnlocked()
		return errors.WrapTransient(err, "oscudp-input", "Start", "socket binding")
	}

	in.running.Store(true)
	in.startTime = time.Now()

	in.logger.Info("OSC UDP input listening",
		"bind", in.bind,
		"port", in.port)

	in.wg.Add(1)
	go func() {
		defer in.wg.Done()
		defer close(in.done)
		in.readLoop(ctx)
	}()

	return nil
}

// bindSocket creates and binds the UDP socket
func (in *Input) bindSocket() error {
	addr, err := net.ResolveUDPAddr("udp", fmt.Sprintf("%s:%d", in.bind, in.port))
	if err != nil {
		return fmt.Errorf("failed to resolve UDP address %s:%d: %w", in.bind, in.port, err)
	}

	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on UDP port %d: %w", in.port, err)
	}

	// Increase OS socket buffer: listener callbacks run inline, so a slow
	// consumer briefly leaves datagrams queued in the kernel.
	const socketBufferSize = 2 * 1024 * 1024
	if err := conn.SetReadBuffer(socketBufferSize); err != nil {
		in.logger.Warn("Could not set UDP buffer size",
			"buffer_size", socketBufferSize,
			"port", in.port,
			"error", err)
	}

	in.conn = conn
	return nil
}

// Stop gracefully stops the UDP listener with the specified timeout
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
	if in.conn != nil {
		_ = in.conn.Close()
	}
	done := in.done
	in.mu.Unlock()

	if done != nil {
		select {
		case <-done:
		case <-time.After(timeout):
			return errors.WrapTransient(fmt.Errorf("stop timeout after %v", timeout),
				"oscudp-input", "Stop", "graceful shutdown")
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
	if in.conn != nil {
		_ = in.conn.Close()
		in.conn = nil
	}
}

// readLoop reads datagrams and routes the contained OSC messages until
// shutdown. The 100ms read deadline keeps the loop responsive to Stop
// without busy-waiting.
func (in *Input) readLoop(ctx context.Context) {
	datagram := make([]byte, 65536)

	for in.running.Load() {
		select {
		case <-ctx.Done():
			return
		case <-in.shutdown:
			return
		default:
		}

		in.mu.RLock()
		conn := in.conn
		in.mu.RUnlock()
		if conn == nil {
			return
		}

		_ = conn.SetReadDeadline(time.Now().Add(100 * time.Millisecond))

		n, _, err := conn.ReadFromUDP(datagram)
		if err != nil {
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				continue
			}

			select {
			case <-ctx.Done():
				return
			case <-in.shutdown:
				return
			default:
				in.errorCount.Add(1)
				if in.metrics != nil {
					in.metrics.socketErrors.Inc()
				}
				if !errors.IsTransient(err) {
					in.logger.Error("UDP read failed, stopping input", "error", err)
					return
				}
				continue
			}
		}

		now := time.Now()
		in.bytesReceived.Add(int64(n))
		in.lastActivity.Store(now)
		if in.metrics != nil {
			in.metrics.packetsReceived.Inc()
			in.metrics.bytesReceived.Add(float64(n))
			in.metrics.lastActivity.Set(float64(now.Unix()))
		}

		packet, err := osc.ParsePacket(string(datagram[:n]))
		if err != nil {
			in.errorCount.Add(1)
			if in.metrics != nil {
				in.metrics.parseErrors.Inc()
			}
			in.logger.Debug("Discarding malformed OSC packet",
				"bytes", n,
				"error", err)
			continue
		}

		in.handlePacket(packet)
	}
}

// handlePacket routes every message in a packet, walking bundles
// recursively. muse-io sends plain messages, but OSC intermediaries may
// regroup them into timestamped bundles.
func (in *Input) handlePacket(packet osc.Packet) {
	switch p := packet.(type) {
	case *osc.Message:
		in.handleMessage(p)
	case *osc.Bundle:
		for _, msg := range p.Messages {
			in.handleMessage(msg)
		}
		for _, bundle := range p.Bundles {
			in.handlePacket(bundle)
		}
	}
}

// handleMessage hands one OSC message to the demultiplexer. Handle errors
// are operational (bad config payload, listener panic), already counted
// and scoped by the demux; log and keep reading.
func (in *Input) handleMessage(msg *osc.Message) {
	in.messagesReceived.Add(1)
	if in.metrics != nil {
		in.metrics.messagesHandled.Inc()
	}

	if err := in.router.Handle(demux.SoleSource, msg); err != nil {
		in.errorCount.Add(1)
		in.logger.Warn("Message handling failed",
			"address", msg.Address,
			"error", err)
	}
}

// CreateInput creates a UDP OSC input component from raw configuration
func CreateInput(rawConfig json.RawMessage, deps component.Dependencies) (component.Discoverable, error) {
	cfg := DefaultConfig()

	if len(rawConfig) > 0 {
		var userConfig Config
		if err := component.SafeUnmarshal(rawConfig, &userConfig); err != nil {
			return nil, errors.Wrap(err, "oscudp-input-factory", "create", "secure config parsing")
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
			"oscudp-input-factory", "create", "demux validation")
	}

	return NewInput(Deps{
		Name:            "oscudp-input",
		Config:          cfg,
		Demux:           deps.Demux,
		MetricsRegistry: deps.MetricsRegistry,
		Logger:          deps.GetLoggerWithComponent("oscudp-input"),
	}), nil
}

// Register registers the UDP OSC input component with the given registry
func Register(registry *component.Registry) error {
	return registry.RegisterFactory("oscudp", &component.Registration{
		Name:        "oscudp",
		Type:        "input",
		Protocol:    "udp",
		Description: "OSC over UDP input for muse-io telemetry (single headset)",
		Version:     "1.0.0",
		Factory:     CreateInput,
	})
}
