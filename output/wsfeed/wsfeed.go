package wsfeed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/musestreams/component"
	"github.com/c360/musestreams/errors"
	"github.com/c360/musestreams/message"
	"github.com/c360/musestreams/metric"
	"github.com/c360/musestreams/muse"
	"github.com/c360/musestreams/pkg/buffer"
	"github.com/c360/musestreams/pkg/security"
	"github.com/c360/musestreams/pkg/tlsutil"
)

const (
	writeTimeout = 10 * time.Second
	pingInterval = 30 * time.Second
	pongTimeout  = 90 * time.Second
)

// Metrics holds Prometheus metrics for the WebSocket feed component
type Metrics struct {
	clientsConnected prometheus.Gauge
	connectionsTotal prometheus.Counter
	samplesBroadcast *prometheus.CounterVec
	framesDropped    prometheus.Counter
	bytesSent        prometheus.Counter
	sendErrors       prometheus.Counter
}

// newMetrics creates and registers WebSocket feed metrics
func newMetrics(registry *metric.MetricsRegistry) *Metrics {
	// Return nil if no registry provided (nil input = nil feature pattern)
	if registry == nil {
		return nil
	}

	metrics := &Metrics{
		clientsConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "musestreams",
			Subsystem: "wsfeed",
			Name:      "clients_connected",
			Help:      "Currently connected WebSocket clients",
		}),
		connectionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "musestreams",
			Subsystem: "wsfeed",
			Name:      "client_connections_total",
			Help:      "Total client connections accepted",
		}),
		samplesBroadcast: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "musestreams",
			Subsystem: "wsfeed",
			Name:      "samples_broadcast_total",
			Help:      "Samples fanned out to client queues, by category",
		}, []string{"category"}),
		framesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "musestreams",
			Subsystem: "wsfeed",
			Name:      "frames_dropped_total",
			Help:      "Frames dropped from slow client queues",
		}),
		bytesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "musestreams",
			Subsystem: "wsfeed",
			Name:      "bytes_sent_total",
			Help:      "Bytes written to WebSocket clients",
		}),
		sendErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "musestreams",
			Subsystem: "wsfeed",
			Name:      "send_errors_total",
			Help:      "Failed WebSocket writes",
		}),
	}

	const serviceName = "wsfeed"
	registry.RegisterGauge(serviceName, "clients_connected", metrics.clientsConnected)
	registry.RegisterCounter(serviceName, "connections", metrics.connectionsTotal)
	registry.RegisterCounterVec(serviceName, "samples_broadcast", metrics.samplesBroadcast)
	registry.RegisterCounter(serviceName, "frames_dropped", metrics.framesDropped)
	registry.RegisterCounter(serviceName, "bytes_sent", metrics.bytesSent)
	registry.RegisterCounter(serviceName, "send_errors", metrics.sendErrors)

	return metrics
}

// Config holds configuration for the WebSocket feed component
type Config struct {
	// Port is the TCP port the feed server listens on.
	Port int `json:"port"`
	// Path is the WebSocket endpoint path.
	Path string `json:"path,omitempty"`
	// QueueSize caps the per-client frame queue. When a client falls
	// behind, the oldest queued frames are dropped.
	QueueSize int `json:"queue_size,omitempty"`
}

// DefaultConfig returns sensible defaults for the feed server
func DefaultConfig() Config {
	return Config{
		Port:      8081,
		Path:      "/ws",
		QueueSize: 256,
	}
}

// Validate implements component.Validatable
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return errors.WrapInvalid(fmt.Errorf("port %d out of range 1-65535", c.Port),
			"wsfeed", "Validate", "port validation")
	}
	if !strings.HasPrefix(c.Path, "/") {
		return errors.WrapInvalid(fmt.Errorf("path %q must start with /", c.Path),
			"wsfeed", "Validate", "path validation")
	}
	if c.QueueSize < 1 {
		return errors.WrapInvalid(fmt.Errorf("queue size %d must be positive", c.QueueSize),
			"wsfeed", "Validate", "queue size validation")
	}
	return nil
}

// Deps holds runtime dependencies for the WebSocket feed component
type Deps struct {
	Name            string
	Config          Config
	MetricsRegistry *metric.MetricsRegistry
	Logger          *slog.Logger
	Security        security.Config
}

// client is one connected WebSocket consumer. Frames are enqueued from
// the dispatch goroutine and drained by the client's writer goroutine.
type client struct {
	conn        *websocket.Conn
	queue       buffer.Buffer[[]byte]
	wake        chan struct{}
	connectedAt time.Time
	closed      atomic.Bool
	closeOnce   sync.Once
}

// notify wakes the writer goroutine without blocking the caller.
func (c *client) notify() {
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

// Output streams decoded headset telemetry to WebSocket clients.
//
// Listener callbacks run on the demultiplexer's dispatch goroutine and
// only marshal and enqueue; all socket writes happen on per-client
// writer goroutines.
type Output struct {
	name      string
	port      int
	path      string
	queueSize int
	security  security.Config
	logger    *slog.Logger

	server   *http.Server
	upgrader websocket.Upgrader

	clients   map[*client]struct{}
	clientsMu sync.RWMutex

	// configs holds the latest configuration envelope per device, replayed
	// to newly connected clients.
	configs   map[string][]byte
	configsMu sync.Mutex

	running     atomic.Bool
	startTime   time.Time
	shutdown    chan struct{}
	wg          *sync.WaitGroup
	lifecycleMu sync.Mutex

	framesSent   atomic.Int64
	bytesSent    atomic.Int64
	dropCount    atomic.Int64
	errorCount   atomic.Int64
	lastActivity atomic.Value // stores time.Time

	metrics *Metrics
}

// Ensure Output implements all required interfaces
var _ component.Discoverable = (*Output)(nil)
var _ component.LifecycleComponent = (*Output)(nil)
var _ muse.Listener = (*Output)(nil)

// NewOutput creates a WebSocket feed component
func NewOutput(deps Deps) *Output {
	cfg := deps.Config
	defaults := DefaultConfig()
	if cfg.Port == 0 {
		cfg.Port = defaults.Port
	}
	if cfg.Path == "" {
		cfg.Path = defaults.Path
	}
	if cfg.QueueSize == 0 {
		cfg.QueueSize = defaults.QueueSize
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default().With("component", "wsfeed-output")
	}

	out := &Output{
		name:      deps.Name,
		port:      cfg.Port,
		path:      cfg.Path,
		queueSize: cfg.QueueSize,
		security:  deps.Security,
		logger:    logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		clients:   make(map[*client]struct{}),
		configs:   make(map[string][]byte),
		startTime: time.Now(),
		metrics:   newMetrics(deps.MetricsRegistry),
	}
	out.lastActivity.Store(time.Time{})
	return out
}

// Meta returns the component metadata
func (o *Output) Meta() component.Metadata {
	name := o.name
	if name == "" {
		name = fmt.Sprintf("wsfeed-output-%d", o.port)
	}

	return component.Metadata{
		Name:        name,
		Type:        "output",
		Description: fmt.Sprintf("WebSocket telemetry feed at ws://:%d%s", o.port, o.path),
		Version:     "1.0.0",
	}
}

// Health returns the current health status of the component
func (o *Output) Health() component.HealthStatus {
	return component.HealthStatus{
		Healthy:    o.running.Load(),
		LastCheck:  time.Now(),
		ErrorCount: int(o.errorCount.Load()),
		Uptime:     time.Since(o.startTime),
	}
}

// DataFlow returns the current data flow metrics
func (o *Output) DataFlow() component.FlowMetrics {
	frames := o.framesSent.Load()
	bytes := o.bytesSent.Load()
	errorCount := o.errorCount.Load()
	lastActivity, _ := o.lastActivity.Load().(time.Time)

	var messagesPerSecond, bytesPerSecond, errorRate float64
	if uptime := time.Since(o.startTime).Seconds(); uptime > 0 {
		messagesPerSecond = float64(frames) / uptime
		bytesPerSecond = float64(bytes) / uptime
	}
	if frames > 0 {
		errorRate = float64(errorCount) / float64(frames)
	}

	return component.FlowMetrics{
		MessagesPerSecond: messagesPerSecond,
		BytesPerSecond:    bytesPerSecond,
		ErrorRate:         errorRate,
		LastActivity:      lastActivity,
	}
}

// ClientCount returns the number of currently connected clients.
func (o *Output) ClientCount() int {
	o.clientsMu.RLock()
	defer o.clientsMu.RUnlock()
	return len(o.clients)
}

// Initialize validates the configuration
func (o *Output) Initialize() error {
	cfg := Config{Port: o.port, Path: o.path, QueueSize: o.queueSize}
	return cfg.Validate()
}

// Start binds the feed server and begins accepting WebSocket clients
func (o *Output) Start(ctx context.Context) error {
	o.lifecycleMu.Lock()
	defer o.lifecycleMu.Unlock()

	if o.running.Load() {
		return nil
	}
	if err := component.ValidateStartContext(ctx, "wsfeed-output"); err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.HandleFunc(o.path, o.handleWebSocket)

	o.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", o.port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	if o.security.TLS.Server.Enabled {
		tlsConfig, err := tlsutil.LoadServerTLSConfigWithMTLS(
			o.security.TLS.Server,
			o.security.TLS.Server.MTLS,
		)
		if err != nil {
			return errors.WrapFatal(err, "wsfeed-output", "Start", "load server TLS config")
		}
		o.server.TLSConfig = tlsConfig
	}

	// Bind explicitly so Start can report a port conflict instead of the
	// server goroutine finding out later.
	listener, err := net.Listen("tcp", o.server.Addr)
	if err != nil {
		return errors.WrapTransient(err, "wsfeed-output", "Start",
			fmt.Sprintf("bind feed server on port %d", o.port))
	}

	o.shutdown = make(chan struct{})
	o.wg = &sync.WaitGroup{}
	o.running.Store(true)
	o.startTime = time.Now()

	o.wg.Add(1)
	go o.runServer(listener)

	o.logger.Info("WebSocket feed started",
		"port", o.port,
		"path", o.path,
		"tls", o.security.TLS.Server.Enabled)

	return nil
}

// runServer serves HTTP until Shutdown is called.
func (o *Output) runServer(listener net.Listener) {
	defer o.wg.Done()

	var err error
	if o.server.TLSConfig != nil {
		err = o.server.ServeTLS(listener, "", "")
	} else {
		err = o.server.Serve(listener)
	}

	if err != nil && err != http.ErrServerClosed {
		o.errorCount.Add(1)
		o.logger.Error("Feed server failed", "error", err)
	}
}

// Stop closes the server and all client connections
func (o *Output) Stop(timeout time.Duration) error {
	o.lifecycleMu.Lock()
	defer o.lifecycleMu.Unlock()

	if !o.running.Load() {
		return nil
	}
	o.running.Store(false)
	close(o.shutdown)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := o.server.Shutdown(shutdownCtx); err != nil {
		o.logger.Warn("Feed server shutdown error", "error", err)
	}

	o.closeAllClients()

	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
		o.logger.Warn("Feed goroutines did not exit within timeout")
	}

	o.server = nil
	o.logger.Info("WebSocket feed stopped")
	return nil
}

func (o *Output) closeAllClients() {
	o.clientsMu.Lock()
	clients := make([]*client, 0, len(o.clients))
	for cl := range o.clients {
		clients = append(clients, cl)
	}
	o.clientsMu.Unlock()

	for _, cl := range clients {
		o.removeClient(cl)
	}
}

// handleWebSocket upgrades a connection and attaches it to the feed
func (o *Output) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := o.upgrader.Upgrade(w, r, nil)
	if err != nil {
		o.errorCount.Add(1)
		return
	}

	queue, err := buffer.NewCircularBuffer[[]byte](o.queueSize,
		buffer.WithOverflowPolicy[[]byte](buffer.DropOldest),
		buffer.WithDropCallback[[]byte](func([]byte) {
			o.dropCount.Add(1)
			if o.metrics != nil {
				o.metrics.framesDropped.Inc()
			}
		}),
	)
	if err != nil {
		_ = conn.Close()
		o.errorCount.Add(1)
		return
	}

	cl := &client{
		conn:        conn,
		queue:       queue,
		wake:        make(chan struct{}, 1),
		connectedAt: time.Now(),
	}

	o.clientsMu.Lock()
	o.clients[cl] = struct{}{}
	count := len(o.clients)
	o.clientsMu.Unlock()

	if o.metrics != nil {
		o.metrics.connectionsTotal.Inc()
		o.metrics.clientsConnected.Set(float64(count))
	}

	// Replay known device configurations so the client has identity
	// context before the first sample.
	o.configsMu.Lock()
	for _, frame := range o.configs {
		_ = cl.queue.Write(frame)
	}
	o.configsMu.Unlock()
	cl.notify()

	o.logger.Info("Feed client connected",
		"remote", conn.RemoteAddr().String(),
		"clients", count)

	o.wg.Add(2)
	go o.writeLoop(cl)
	go o.readLoop(cl)
}

// removeClient detaches and closes a client exactly once
func (o *Output) removeClient(cl *client) {
	cl.closeOnce.Do(func() {
		cl.closed.Store(true)

		o.clientsMu.Lock()
		delete(o.clients, cl)
		count := len(o.clients)
		o.clientsMu.Unlock()

		if o.metrics != nil {
			o.metrics.clientsConnected.Set(float64(count))
		}

		_ = cl.conn.Close()
		_ = cl.queue.Close()
		cl.notify()
	})
}

// writeLoop drains the client's queue onto the socket and keeps the
// connection alive with pings. It is the only goroutine writing to the
// connection.
func (o *Output) writeLoop(cl *client) {
	defer o.wg.Done()
	defer o.removeClient(cl)

	pings := time.NewTicker(pingInterval)
	defer pings.Stop()

	for {
		select {
		case <-o.shutdown:
			return
		case <-pings.C:
			_ = cl.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := cl.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-cl.wake:
			if cl.closed.Load() {
				return
			}
			for _, frame := range cl.queue.ReadBatch(32) {
				_ = cl.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
				if err := cl.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
					o.errorCount.Add(1)
					if o.metrics != nil {
						o.metrics.sendErrors.Inc()
					}
					return
				}
				o.framesSent.Add(1)
				o.bytesSent.Add(int64(len(frame)))
				if o.metrics != nil {
					o.metrics.bytesSent.Add(float64(len(frame)))
				}
			}
			// More frames may have arrived while writing.
			if cl.queue.Size() > 0 {
				cl.notify()
			}
		}
	}
}

// readLoop consumes inbound frames so close and pong control messages
// are processed. Client data frames are discarded.
func (o *Output) readLoop(cl *client) {
	defer o.wg.Done()
	defer o.removeClient(cl)

	cl.conn.SetPongHandler(func(string) error {
		return cl.conn.SetReadDeadline(time.Now().Add(pongTimeout))
	})
	_ = cl.conn.SetReadDeadline(time.Now().Add(pongTimeout))

	for {
		if _, _, err := cl.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// ReceiveEEG broadcasts a plain EEG sample.
func (o *Output) ReceiveEEG(config *muse.Config, eeg []float32) {
	o.broadcast(config, muse.CategoryEEG, message.NewEEGPayload(config, eeg, nil))
}

// ReceiveEEGWithTimestamps broadcasts a timestamped EEG sample.
func (o *Output) ReceiveEEGWithTimestamps(config *muse.Config, eeg []float32, ts []int32) {
	o.broadcast(config, muse.CategoryEEG, message.NewEEGPayload(config, eeg, ts))
}

// ReceiveAccel broadcasts an accelerometer sample.
func (o *Output) ReceiveAccel(config *muse.Config, accel []float32, ts []int32) {
	o.broadcast(config, muse.CategoryAccel, message.NewAccelPayload(config, accel, ts))
}

// ReceiveBlink broadcasts a confirmed blink detection.
func (o *Output) ReceiveBlink(config *muse.Config, blink int32) {
	o.broadcast(config, muse.CategoryBlink, message.NewBlinkPayload(config, blink))
}

// ReceiveAlpha broadcasts an alpha relative band power vector.
func (o *Output) ReceiveAlpha(config *muse.Config, relative []float32) {
	o.broadcast(config, muse.CategoryAlpha, message.NewBandPowerPayload(config, muse.CategoryAlpha, relative))
}

// ReceiveBeta broadcasts a beta relative band power vector.
func (o *Output) ReceiveBeta(config *muse.Config, relative []float32) {
	o.broadcast(config, muse.CategoryBeta, message.NewBandPowerPayload(config, muse.CategoryBeta, relative))
}

// ReceiveTheta broadcasts a theta relative band power vector.
func (o *Output) ReceiveTheta(config *muse.Config, relative []float32) {
	o.broadcast(config, muse.CategoryTheta, message.NewBandPowerPayload(config, muse.CategoryTheta, relative))
}

// ReceiveDelta broadcasts a delta relative band power vector.
func (o *Output) ReceiveDelta(config *muse.Config, relative []float32) {
	o.broadcast(config, muse.CategoryDelta, message.NewBandPowerPayload(config, muse.CategoryDelta, relative))
}

// ReceiveBattery broadcasts a battery state vector.
func (o *Output) ReceiveBattery(config *muse.Config, battery []int32) {
	o.broadcast(config, muse.CategoryBattery, message.NewBatteryPayload(config, battery))
}

// ReceiveMellow broadcasts an experimental mellow score.
func (o *Output) ReceiveMellow(config *muse.Config, score []float32) {
	o.broadcast(config, muse.CategoryMellow, message.NewScorePayload(config, muse.CategoryMellow, score))
}

// ReceiveConcentration broadcasts an experimental concentration score.
func (o *Output) ReceiveConcentration(config *muse.Config, score []float32) {
	o.broadcast(config, muse.CategoryConcentration, message.NewScorePayload(config, muse.CategoryConcentration, score))
}

// broadcast marshals one envelope and enqueues it on every client.
func (o *Output) broadcast(config *muse.Config, category muse.Category, payload message.Payload) {
	if !o.running.Load() {
		return
	}

	o.rememberConfig(config)

	frame, err := o.marshalEnvelope(category, payload)
	if err != nil {
		o.errorCount.Add(1)
		o.logger.Warn("Feed envelope marshal failed", "category", string(category), "error", err)
		return
	}

	o.enqueueAll(frame)
	o.lastActivity.Store(time.Now())
	if o.metrics != nil {
		o.metrics.samplesBroadcast.WithLabelValues(string(category)).Inc()
	}
}

// rememberConfig caches and broadcasts a device's configuration envelope
// the first time telemetry for it flows.
func (o *Output) rememberConfig(config *muse.Config) {
	device := config.DeviceID()
	if device == "" {
		device = "unknown"
	}

	o.configsMu.Lock()
	if _, known := o.configs[device]; known {
		o.configsMu.Unlock()
		return
	}

	frame, err := o.marshalEnvelope(muse.CategoryConfig, message.NewConfigPayload(config))
	if err != nil {
		o.configsMu.Unlock()
		o.errorCount.Add(1)
		return
	}
	o.configs[device] = frame
	o.configsMu.Unlock()

	o.enqueueAll(frame)
	o.logger.Info("Feed announcing headset session", "device", device)
}

func (o *Output) marshalEnvelope(category muse.Category, payload message.Payload) ([]byte, error) {
	msg := message.NewBaseMessage(message.TypeForCategory(category), payload, o.sourceName())
	return json.Marshal(msg)
}

func (o *Output) sourceName() string {
	if o.name != "" {
		return o.name
	}
	return "wsfeed-output"
}

// enqueueAll writes one frame to every connected client's queue. Never
// blocks: full queues drop their oldest frames.
func (o *Output) enqueueAll(frame []byte) {
	o.clientsMu.RLock()
	clients := make([]*client, 0, len(o.clients))
	for cl := range o.clients {
		if !cl.closed.Load() {
			clients = append(clients, cl)
		}
	}
	o.clientsMu.RUnlock()

	for _, cl := range clients {
		if err := cl.queue.Write(frame); err != nil {
			continue // queue closed, client is going away
		}
		cl.notify()
	}
}

// CreateOutput creates a WebSocket feed component following the factory pattern
func CreateOutput(rawConfig json.RawMessage, deps component.Dependencies) (component.Discoverable, error) {
	cfg := DefaultConfig()

	if len(rawConfig) > 0 {
		var userConfig Config
		if err := component.SafeUnmarshal(rawConfig, &userConfig); err != nil {
			return nil, errors.WrapInvalid(err, "wsfeed-output-factory", "create", "secure config parsing")
		}
		if userConfig.Port != 0 {
			cfg.Port = userConfig.Port
		}
		if userConfig.Path != "" {
			cfg.Path = userConfig.Path
		}
		if userConfig.QueueSize != 0 {
			cfg.QueueSize = userConfig.QueueSize
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return NewOutput(Deps{
		Name:            "wsfeed-output",
		Config:          cfg,
		MetricsRegistry: deps.MetricsRegistry,
		Logger:          deps.GetLoggerWithComponent("wsfeed-output"),
		Security:        deps.Security,
	}), nil
}

// Register registers the WebSocket feed component with the given registry
func Register(registry *component.Registry) error {
	return registry.RegisterFactory("wsfeed", &component.Registration{
		Name:        "wsfeed",
		Type:        "output",
		Protocol:    "websocket",
		Description: "WebSocket feed broadcasting decoded headset telemetry",
		Version:     "1.0.0",
		Factory:     CreateOutput,
	})
}
