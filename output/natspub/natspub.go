package natspub

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/c360/musestreams/component"
	"github.com/c360/musestreams/errors"
	"github.com/c360/musestreams/message"
	"github.com/c360/musestreams/metric"
	"github.com/c360/musestreams/muse"
)

// Publisher is the messaging surface this output needs.
// *natsclient.Client satisfies it; tests substitute an in-memory mock.
type Publisher interface {
	Publish(ctx context.Context, subject string, data []byte) error
}

// Metrics holds Prometheus metrics for the NATS output component
type Metrics struct {
	samplesPublished *prometheus.CounterVec
	publishErrors    prometheus.Counter
	publishLatency   prometheus.Histogram
}

// newMetrics creates and registers NATS output metrics
func newMetrics(registry *metric.MetricsRegistry) *Metrics {
	// Return nil if no registry provided (nil input = nil feature pattern)
	if registry == nil {
		return nil
	}

	metrics := &Metrics{
		samplesPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "musestreams",
			Subsystem: "natspub",
			Name:      "samples_published_total",
			Help:      "Samples published to NATS, by category",
		}, []string{"category"}),
		publishErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "musestreams",
			Subsystem: "natspub",
			Name:      "publish_errors_total",
			Help:      "Failed NATS publishes",
		}),
		publishLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "musestreams",
			Subsystem: "natspub",
			Name:      "publish_duration_seconds",
			Help:      "Time to publish one sample",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
		}),
	}

	const serviceName = "natspub"
	registry.RegisterCounterVec(serviceName, "samples_published", metrics.samplesPublished)
	registry.RegisterCounter(serviceName, "publish_errors", metrics.publishErrors)
	registry.RegisterHistogram(serviceName, "publish_latency", metrics.publishLatency)

	return metrics
}

// Config holds configuration for the NATS output component
type Config struct {
	// SubjectPrefix is the leading subject token. Defaults to "muse".
	SubjectPrefix string `json:"subject_prefix,omitempty"`
}

// DefaultConfig returns sensible defaults for the NATS output
func DefaultConfig() Config {
	return Config{SubjectPrefix: "muse"}
}

// Validate implements component.Validatable
func (c *Config) Validate() error {
	if c.SubjectPrefix != "" && strings.ContainsAny(c.SubjectPrefix, " \t*>") {
		return errors.WrapInvalid(
			fmt.Errorf("subject prefix %q contains NATS wildcard or whitespace", c.SubjectPrefix),
			"natspub", "Validate", "subject prefix validation")
	}
	return nil
}

// Deps holds runtime dependencies for the NATS output component
type Deps struct {
	Name            string
	Config          Config
	Publisher       Publisher
	MetricsRegistry *metric.MetricsRegistry
	Logger          *slog.Logger
}

// Output republishes decoded headset telemetry onto NATS subjects.
//
// Callbacks run on the demultiplexer's dispatch goroutine; Publish on a
// connected core-NATS client is a non-blocking buffered write, so the
// pipeline is not stalled by the broker.
type Output struct {
	name   string
	prefix string
	pub    Publisher
	logger *slog.Logger

	running   atomic.Bool
	startTime time.Time

	// announced tracks which devices have had their configuration
	// published, so each session announces exactly once.
	mu        sync.Mutex
	announced map[string]bool

	samplesPublished atomic.Int64
	bytesPublished   atomic.Int64
	errorCount       atomic.Int64
	lastActivity     atomic.Value // stores time.Time

	errorLog rate.Sometimes

	metrics *Metrics
}

// Ensure Output implements all required interfaces
var _ component.Discoverable = (*Output)(nil)
var _ component.LifecycleComponent = (*Output)(nil)
var _ muse.Listener = (*Output)(nil)

// NewOutput creates a NATS output component
func NewOutput(deps Deps) *Output {
	cfg := deps.Config
	if cfg.SubjectPrefix == "" {
		cfg.SubjectPrefix = DefaultConfig().SubjectPrefix
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default().With("component", "natspub-output")
	}

	out := &Output{
		name:      deps.Name,
		prefix:    cfg.SubjectPrefix,
		pub:       deps.Publisher,
		logger:    logger,
		startTime: time.Now(),
		announced: make(map[string]bool),
		errorLog:  rate.Sometimes{First: 3, Interval: 10 * time.Second},
		metrics:   newMetrics(deps.MetricsRegistry),
	}
	out.lastActivity.Store(time.Time{})
	return out
}

// Meta returns the component metadata
func (o *Output) Meta() component.Metadata {
	name := o.name
	if name == "" {
		name = "natspub-output"
	}

	return component.Metadata{
		Name:        name,
		Type:        "output",
		Description: fmt.Sprintf("Publishes headset telemetry to NATS subjects under %q", o.prefix),
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
	samples := o.samplesPublished.Load()
	bytes := o.bytesPublished.Load()
	errorCount := o.errorCount.Load()
	lastActivity, _ := o.lastActivity.Load().(time.Time)

	var messagesPerSecond, bytesPerSecond, errorRate float64
	if uptime := time.Since(o.startTime).Seconds(); uptime > 0 {
		messagesPerSecond = float64(samples) / uptime
		bytesPerSecond = float64(bytes) / uptime
	}
	if samples > 0 {
		errorRate = float64(errorCount) / float64(samples)
	}

	return component.FlowMetrics{
		MessagesPerSecond: messagesPerSecond,
		BytesPerSecond:    bytesPerSecond,
		ErrorRate:         errorRate,
		LastActivity:      lastActivity,
	}
}

// Initialize validates dependencies
func (o *Output) Initialize() error {
	if o.pub == nil {
		return errors.WrapInvalid(fmt.Errorf("nil publisher"),
			"natspub-output", "Initialize", "publisher validation")
	}
	return nil
}

// Start marks the output ready. The NATS connection is managed by the
// shared client; there is nothing to bind here.
func (o *Output) Start(_ context.Context) error {
	o.running.Store(true)
	o.startTime = time.Now()
	return nil
}

// Stop marks the output stopped. Samples arriving afterwards are dropped.
func (o *Output) Stop(_ time.Duration) error {
	o.running.Store(false)
	return nil
}

// ReceiveEEG publishes a plain EEG sample.
func (o *Output) ReceiveEEG(config *muse.Config, eeg []float32) {
	o.publish(config, muse.CategoryEEG, message.NewEEGPayload(config, eeg, nil))
}

// ReceiveEEGWithTimestamps publishes a timestamped EEG sample.
func (o *Output) ReceiveEEGWithTimestamps(config *muse.Config, eeg []float32, ts []int32) {
	o.publish(config, muse.CategoryEEG, message.NewEEGPayload(config, eeg, ts))
}

// ReceiveAccel publishes an accelerometer sample.
func (o *Output) ReceiveAccel(config *muse.Config, accel []float32, ts []int32) {
	o.publish(config, muse.CategoryAccel, message.NewAccelPayload(config, accel, ts))
}

// ReceiveBlink publishes a confirmed blink detection.
func (o *Output) ReceiveBlink(config *muse.Config, blink int32) {
	o.publish(config, muse.CategoryBlink, message.NewBlinkPayload(config, blink))
}

// ReceiveAlpha publishes an alpha relative band power vector.
func (o *Output) ReceiveAlpha(config *muse.Config, relative []float32) {
	o.publish(config, muse.CategoryAlpha, message.NewBandPowerPayload(config, muse.CategoryAlpha, relative))
}

// ReceiveBeta publishes a beta relative band power vector.
func (o *Output) ReceiveBeta(config *muse.Config, relative []float32) {
	o.publish(config, muse.CategoryBeta, message.NewBandPowerPayload(config, muse.CategoryBeta, relative))
}

// ReceiveTheta publishes a theta relative band power vector.
func (o *Output) ReceiveTheta(config *muse.Config, relative []float32) {
	o.publish(config, muse.CategoryTheta, message.NewBandPowerPayload(config, muse.CategoryTheta, relative))
}

// ReceiveDelta publishes a delta relative band power vector.
func (o *Output) ReceiveDelta(config *muse.Config, relative []float32) {
	o.publish(config, muse.CategoryDelta, message.NewBandPowerPayload(config, muse.CategoryDelta, relative))
}

// ReceiveBattery publishes a battery state vector.
func (o *Output) ReceiveBattery(config *muse.Config, battery []int32) {
	o.publish(config, muse.CategoryBattery, message.NewBatteryPayload(config, battery))
}

// ReceiveMellow publishes an experimental mellow score.
func (o *Output) ReceiveMellow(config *muse.Config, score []float32) {
	o.publish(config, muse.CategoryMellow, message.NewScorePayload(config, muse.CategoryMellow, score))
}

// ReceiveConcentration publishes an experimental concentration score.
func (o *Output) ReceiveConcentration(config *muse.Config, score []float32) {
	o.publish(config, muse.CategoryConcentration, message.NewScorePayload(config, muse.CategoryConcentration, score))
}

// publish wraps one payload in the message envelope and sends it.
func (o *Output) publish(config *muse.Config, category muse.Category, payload message.Payload) {
	if !o.running.Load() {
		return
	}

	device := subjectToken(config.DeviceID())
	o.announceOnce(config, device)
	o.publishPayload(device, category, payload)
}

// announceOnce publishes the headset configuration the first time a
// device's telemetry flows through this output.
func (o *Output) announceOnce(config *muse.Config, device string) {
	o.mu.Lock()
	if o.announced[device] {
		o.mu.Unlock()
		return
	}
	o.announced[device] = true
	o.mu.Unlock()

	o.publishPayload(device, muse.CategoryConfig, message.NewConfigPayload(config))
	o.logger.Info("Announced headset session",
		"device", device,
		"subject", o.subject(device, muse.CategoryConfig))
}

func (o *Output) publishPayload(device string, category muse.Category, payload message.Payload) {
	msg := message.NewBaseMessage(message.TypeForCategory(category), payload, o.sourceName())

	data, err := json.Marshal(msg)
	if err != nil {
		o.fail(category, err, "envelope marshalling")
		return
	}

	start := time.Now()
	if err := o.pub.Publish(context.Background(), o.subject(device, category), data); err != nil {
		o.fail(category, err, "NATS publish")
		return
	}

	now := time.Now()
	o.samplesPublished.Add(1)
	o.bytesPublished.Add(int64(len(data)))
	o.lastActivity.Store(now)
	if o.metrics != nil {
		o.metrics.samplesPublished.WithLabelValues(string(category)).Inc()
		o.metrics.publishLatency.Observe(now.Sub(start).Seconds())
	}
}

func (o *Output) fail(category muse.Category, err error, action string) {
	o.errorCount.Add(1)
	if o.metrics != nil {
		o.metrics.publishErrors.Inc()
	}
	o.errorLog.Do(func() {
		o.logger.Warn("Sample publish failed",
			"category", string(category),
			"action", action,
			"error", err)
	})
}

func (o *Output) subject(device string, category muse.Category) string {
	return fmt.Sprintf("%s.%s.%s", o.prefix, device, category)
}

func (o *Output) sourceName() string {
	if o.name != "" {
		return o.name
	}
	return "natspub-output"
}

// subjectToken sanitizes a device identity for use as one NATS subject
// token. MAC addresses carry colons and some serials carry spaces;
// neither is valid subject grammar.
func subjectToken(id string) string {
	if id == "" {
		return "unknown"
	}
	var b strings.Builder
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('-')
		}
	}
	return b.String()
}

// CreateOutput creates a NATS output component from raw configuration
func CreateOutput(rawConfig json.RawMessage, deps component.Dependencies) (component.Discoverable, error) {
	cfg := DefaultConfig()

	if len(rawConfig) > 0 {
		var userConfig Config
		if err := component.SafeUnmarshal(rawConfig, &userConfig); err != nil {
			return nil, errors.Wrap(err, "natspub-output-factory", "create", "secure config parsing")
		}
		if userConfig.SubjectPrefix != "" {
			cfg.SubjectPrefix = userConfig.SubjectPrefix
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if deps.NATSClient == nil {
		return nil, errors.WrapInvalid(fmt.Errorf("NATS client is required"),
			"natspub-output-factory", "create", "NATS client validation")
	}

	return NewOutput(Deps{
		Name:            "natspub-output",
		Config:          cfg,
		Publisher:       deps.NATSClient,
		MetricsRegistry: deps.MetricsRegistry,
		Logger:          deps.GetLoggerWithComponent("natspub-output"),
	}), nil
}

// Register registers the NATS output component with the given registry
func Register(registry *component.Registry) error {
	return registry.RegisterFactory("natspub", &component.Registration{
		Name:        "natspub",
		Type:        "output",
		Protocol:    "nats",
		Description: "Publishes decoded headset telemetry to per-device NATS subjects",
		Version:     "1.0.0",
		Factory:     CreateOutput,
	})
}
