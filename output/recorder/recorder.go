package recorder

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/musestreams/component"
	"github.com/c360/musestreams/errors"
	"github.com/c360/musestreams/message"
	"github.com/c360/musestreams/metric"
	"github.com/c360/musestreams/muse"
)

// Metrics holds Prometheus metrics for the recorder component
type Metrics struct {
	samplesRecorded *prometheus.CounterVec
	bytesWritten    prometheus.Counter
	writeErrors     prometheus.Counter
	fileRotations   prometheus.Counter
}

// newMetrics creates and registers recorder metrics
func newMetrics(registry *metric.MetricsRegistry) *Metrics {
	// Return nil if no registry provided (nil input = nil feature pattern)
	if registry == nil {
		return nil
	}

	metrics := &Metrics{
		samplesRecorded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "musestreams",
			Subsystem: "recorder",
			Name:      "samples_recorded_total",
			Help:      "Samples appended to session files, by category",
		}, []string{"category"}),
		bytesWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "musestreams",
			Subsystem: "recorder",
			Name:      "bytes_written_total",
			Help:      "Bytes written to session files",
		}),
		writeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "musestreams",
			Subsystem: "recorder",
			Name:      "write_errors_total",
			Help:      "Failed session file writes",
		}),
		fileRotations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "musestreams",
			Subsystem: "recorder",
			Name:      "file_rotations_total",
			Help:      "Session files rotated at the size cap",
		}),
	}

	const serviceName = "recorder"
	registry.RegisterCounterVec(serviceName, "samples_recorded", metrics.samplesRecorded)
	registry.RegisterCounter(serviceName, "bytes_written", metrics.bytesWritten)
	registry.RegisterCounter(serviceName, "write_errors", metrics.writeErrors)
	registry.RegisterCounter(serviceName, "file_rotations", metrics.fileRotations)

	return metrics
}

// Config holds configuration for the recorder component
type Config struct {
	// Directory receives the session files. Created on Initialize.
	Directory string `json:"directory"`
	// FilePrefix names session files <prefix>-<unix-millis>.jsonl.
	FilePrefix string `json:"file_prefix,omitempty"`
	// MaxFileBytes rotates the session file once it grows past this size.
	MaxFileBytes int64 `json:"max_file_bytes,omitempty"`
	// BufferSize is the number of lines buffered before an early flush.
	BufferSize int `json:"buffer_size,omitempty"`
}

// DefaultConfig returns sensible defaults for the recorder
func DefaultConfig() Config {
	return Config{
		Directory:    "/var/lib/musestreams/recordings",
		FilePrefix:   "muse",
		MaxFileBytes: 128 << 20,
		BufferSize:   100,
	}
}

// Validate implements component.Validatable
func (c *Config) Validate() error {
	if c.Directory == "" {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "recorder", "Validate", "directory is required")
	}
	if c.MaxFileBytes < 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "recorder", "Validate",
			"max_file_bytes cannot be negative")
	}
	if c.BufferSize < 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "recorder", "Validate",
			"buffer_size cannot be negative")
	}
	return nil
}

// Deps holds runtime dependencies for the recorder component
type Deps struct {
	Name            string
	Config          Config
	MetricsRegistry *metric.MetricsRegistry
	Logger          *slog.Logger
}

// Output appends decoded headset telemetry to JSON Lines session files.
//
// Listener callbacks marshal and buffer; a flush goroutine owns the file
// writes, so recording keeps slow disks off the telemetry pipeline.
type Output struct {
	name         string
	directory    string
	filePrefix   string
	maxFileBytes int64
	bufferSize   int
	logger       *slog.Logger

	file     *os.File
	fileSize int64
	fileMu   sync.Mutex

	buffer   [][]byte
	bufferMu sync.Mutex

	running     atomic.Bool
	startTime   time.Time
	shutdown    chan struct{}
	wg          *sync.WaitGroup
	lifecycleMu sync.Mutex

	samplesRecorded atomic.Int64
	bytesWritten    atomic.Int64
	errorCount      atomic.Int64
	lastActivity    atomic.Value // stores time.Time

	metrics *Metrics
}

// Ensure Output implements all required interfaces
var _ component.Discoverable = (*Output)(nil)
var _ component.LifecycleComponent = (*Output)(nil)
var _ muse.Listener = (*Output)(nil)

// NewOutput creates a recorder component
func NewOutput(deps Deps) *Output {
	cfg := deps.Config
	defaults := DefaultConfig()
	if cfg.Directory == "" {
		cfg.Directory = defaults.Directory
	}
	if cfg.FilePrefix == "" {
		cfg.FilePrefix = defaults.FilePrefix
	}
	if cfg.MaxFileBytes == 0 {
		cfg.MaxFileBytes = defaults.MaxFileBytes
	}
	if cfg.BufferSize == 0 {
		cfg.BufferSize = defaults.BufferSize
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default().With("component", "recorder-output")
	}

	out := &Output{
		name:         deps.Name,
		directory:    cfg.Directory,
		filePrefix:   cfg.FilePrefix,
		maxFileBytes: cfg.MaxFileBytes,
		bufferSize:   cfg.BufferSize,
		logger:       logger,
		buffer:       make([][]byte, 0, cfg.BufferSize),
		startTime:    time.Now(),
		metrics:      newMetrics(deps.MetricsRegistry),
	}
	out.lastActivity.Store(time.Time{})
	return out
}

// Meta returns the component metadata
func (o *Output) Meta() component.Metadata {
	name := o.name
	if name == "" {
		name = "recorder-output"
	}

	return component.Metadata{
		Name:        name,
		Type:        "output",
		Description: fmt.Sprintf("Records headset telemetry to JSONL session files in %s", o.directory),
		Version:     "1.0.0",
	}
}

// Health returns the current health status of the component
func (o *Output) Health() component.HealthStatus {
	o.fileMu.Lock()
	fileOpen := o.file != nil
	o.fileMu.Unlock()

	return component.HealthStatus{
		Healthy:    o.running.Load() && fileOpen,
		LastCheck:  time.Now(),
		ErrorCount: int(o.errorCount.Load()),
		Uptime:     time.Since(o.startTime),
	}
}

// DataFlow returns the current data flow metrics
func (o *Output) DataFlow() component.FlowMetrics {
	samples := o.samplesRecorded.Load()
	bytes := o.bytesWritten.Load()
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

// CurrentFile returns the path of the open session file, or "" when
// stopped.
func (o *Output) CurrentFile() string {
	o.fileMu.Lock()
	defer o.fileMu.Unlock()
	if o.file == nil {
		return ""
	}
	return o.file.Name()
}

// Initialize creates the recording directory
func (o *Output) Initialize() error {
	cfg := Config{
		Directory:    o.directory,
		FilePrefix:   o.filePrefix,
		MaxFileBytes: o.maxFileBytes,
		BufferSize:   o.bufferSize,
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := os.MkdirAll(o.directory, 0o755); err != nil {
		return errors.WrapFatal(err, "recorder-output", "Initialize", "create recording directory")
	}
	return nil
}

// Start opens a fresh session file and begins the flush loop
func (o *Output) Start(ctx context.Context) error {
	o.lifecycleMu.Lock()
	defer o.lifecycleMu.Unlock()

	if o.running.Load() {
		return nil
	}

	if err := component.ValidateStartContext(ctx, "recorder-output"); err != nil {
		return err
	}

	file, err := o.openSessionFile()
	if err != nil {
		return err
	}

	o.fileMu.Lock()
	o.file = file
	o.fileSize = 0
	o.fileMu.Unlock()

	o.shutdown = make(chan struct{})
	o.wg = &sync.WaitGroup{}
	o.running.Store(true)
	o.startTime = time.Now()

	o.wg.Add(1)
	go o.flushLoop()

	o.logger.Info("Recording session started",
		"file", file.Name(),
		"max_file_bytes", o.maxFileBytes)

	return nil
}

// Stop flushes and fsyncs the session file
func (o *Output) Stop(timeout time.Duration) error {
	o.lifecycleMu.Lock()
	defer o.lifecycleMu.Unlock()

	if !o.running.Load() {
		return nil
	}
	o.running.Store(false)
	close(o.shutdown)

	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
		o.logger.Warn("Recorder flush loop did not exit within timeout")
	}

	o.flush()

	o.fileMu.Lock()
	defer o.fileMu.Unlock()
	if o.file != nil {
		if err := o.file.Sync(); err != nil {
			o.logger.Warn("Session file sync failed", "error", err, "file", o.file.Name())
		}
		if err := o.file.Close(); err != nil {
			o.logger.Warn("Session file close failed", "error", err, "file", o.file.Name())
		}
		o.logger.Info("Recording session closed", "file", o.file.Name())
		o.file = nil
	}

	return nil
}

// openSessionFile creates a new uniquely named session file.
func (o *Output) openSessionFile() (*os.File, error) {
	name := filepath.Join(o.directory,
		fmt.Sprintf("%s-%d.jsonl", o.filePrefix, time.Now().UnixMilli()))

	file, err := os.OpenFile(name, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o644)
	if err != nil {
		return nil, errors.WrapFatal(err, "recorder-output", "openSessionFile", "open session file")
	}
	return file, nil
}

// flushLoop writes the buffer to disk once a second.
func (o *Output) flushLoop() {
	defer o.wg.Done()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-o.shutdown:
			return
		case <-ticker.C:
			o.flush()
		}
	}
}

// flush appends all buffered lines to the session file, rotating at the
// size cap.
func (o *Output) flush() {
	o.bufferMu.Lock()
	if len(o.buffer) == 0 {
		o.bufferMu.Unlock()
		return
	}
	lines := o.buffer
	o.buffer = make([][]byte, 0, o.bufferSize)
	o.bufferMu.Unlock()

	o.fileMu.Lock()
	defer o.fileMu.Unlock()

	if o.file == nil {
		o.errorCount.Add(int64(len(lines)))
		return
	}

	for _, line := range lines {
		if o.maxFileBytes > 0 && o.fileSize+int64(len(line)) > o.maxFileBytes && o.fileSize > 0 {
			o.rotateLocked()
		}

		n, err := o.file.Write(line)
		if err != nil {
			o.errorCount.Add(1)
			if o.metrics != nil {
				o.metrics.writeErrors.Inc()
			}
			o.logger.Error("Session file write failed", "error", err, "file", o.file.Name())
			continue
		}

		o.fileSize += int64(n)
		o.bytesWritten.Add(int64(n))
		if o.metrics != nil {
			o.metrics.bytesWritten.Add(float64(n))
		}
	}
}

// rotateLocked closes the current session file and opens the next one.
// Caller holds fileMu.
func (o *Output) rotateLocked() {
	old := o.file.Name()
	if err := o.file.Sync(); err != nil {
		o.logger.Warn("Session file sync failed during rotation", "error", err, "file", old)
	}
	if err := o.file.Close(); err != nil {
		o.logger.Warn("Session file close failed during rotation", "error", err, "file", old)
	}

	file, err := o.openSessionFile()
	if err != nil {
		// Keep writing to a dead handle is worse than dropping; mark the
		// recorder unhealthy by clearing the file.
		o.file = nil
		o.fileSize = 0
		o.errorCount.Add(1)
		o.logger.Error("Session file rotation failed", "error", err)
		return
	}

	o.file = file
	o.fileSize = 0
	if o.metrics != nil {
		o.metrics.fileRotations.Inc()
	}
	o.logger.Info("Session file rotated", "previous", old, "file", file.Name())
}

// ReceiveEEG records a plain EEG sample.
func (o *Output) ReceiveEEG(config *muse.Config, eeg []float32) {
	o.record(config, muse.CategoryEEG, message.NewEEGPayload(config, eeg, nil))
}

// ReceiveEEGWithTimestamps records a timestamped EEG sample.
func (o *Output) ReceiveEEGWithTimestamps(config *muse.Config, eeg []float32, ts []int32) {
	o.record(config, muse.CategoryEEG, message.NewEEGPayload(config, eeg, ts))
}

// ReceiveAccel records an accelerometer sample.
func (o *Output) ReceiveAccel(config *muse.Config, accel []float32, ts []int32) {
	o.record(config, muse.CategoryAccel, message.NewAccelPayload(config, accel, ts))
}

// ReceiveBlink records a confirmed blink detection.
func (o *Output) ReceiveBlink(config *muse.Config, blink int32) {
	o.record(config, muse.CategoryBlink, message.NewBlinkPayload(config, blink))
}

// ReceiveAlpha records an alpha relative band power vector.
func (o *Output) ReceiveAlpha(config *muse.Config, relative []float32) {
	o.record(config, muse.CategoryAlpha, message.NewBandPowerPayload(config, muse.CategoryAlpha, relative))
}

// ReceiveBeta records a beta relative band power vector.
func (o *Output) ReceiveBeta(config *muse.Config, relative []float32) {
	o.record(config, muse.CategoryBeta, message.NewBandPowerPayload(config, muse.CategoryBeta, relative))
}

// ReceiveTheta records a theta relative band power vector.
func (o *Output) ReceiveTheta(config *muse.Config, relative []float32) {
	o.record(config, muse.CategoryTheta, message.NewBandPowerPayload(config, muse.CategoryTheta, relative))
}

// ReceiveDelta records a delta relative band power vector.
func (o *Output) ReceiveDelta(config *muse.Config, relative []float32) {
	o.record(config, muse.CategoryDelta, message.NewBandPowerPayload(config, muse.CategoryDelta, relative))
}

// ReceiveBattery records a battery state vector.
func (o *Output) ReceiveBattery(config *muse.Config, battery []int32) {
	o.record(config, muse.CategoryBattery, message.NewBatteryPayload(config, battery))
}

// ReceiveMellow records an experimental mellow score.
func (o *Output) ReceiveMellow(config *muse.Config, score []float32) {
	o.record(config, muse.CategoryMellow, message.NewScorePayload(config, muse.CategoryMellow, score))
}

// ReceiveConcentration records an experimental concentration score.
func (o *Output) ReceiveConcentration(config *muse.Config, score []float32) {
	o.record(config, muse.CategoryConcentration, message.NewScorePayload(config, muse.CategoryConcentration, score))
}

// record marshals one envelope and buffers the JSONL line.
func (o *Output) record(_ *muse.Config, category muse.Category, payload message.Payload) {
	if !o.running.Load() {
		return
	}

	msg := message.NewBaseMessage(message.TypeForCategory(category), payload, o.sourceName())
	line, err := json.Marshal(msg)
	if err != nil {
		o.errorCount.Add(1)
		o.logger.Warn("Recorder envelope marshal failed", "category", string(category), "error", err)
		return
	}
	line = append(line, '\n')

	o.bufferMu.Lock()
	o.buffer = append(o.buffer, line)
	shouldFlush := len(o.buffer) >= o.bufferSize
	o.bufferMu.Unlock()

	o.samplesRecorded.Add(1)
	o.lastActivity.Store(time.Now())
	if o.metrics != nil {
		o.metrics.samplesRecorded.WithLabelValues(string(category)).Inc()
	}

	if shouldFlush {
		o.flush()
	}
}

func (o *Output) sourceName() string {
	if o.name != "" {
		return o.name
	}
	return "recorder-output"
}

// CreateOutput creates a recorder component following the factory pattern
func CreateOutput(rawConfig json.RawMessage, deps component.Dependencies) (component.Discoverable, error) {
	cfg := DefaultConfig()

	if len(rawConfig) > 0 {
		var userConfig Config
		if err := component.SafeUnmarshal(rawConfig, &userConfig); err != nil {
			return nil, errors.WrapInvalid(err, "recorder-output-factory", "create", "secure config parsing")
		}
		if userConfig.Directory != "" {
			cfg.Directory = userConfig.Directory
		}
		if userConfig.FilePrefix != "" {
			cfg.FilePrefix = userConfig.FilePrefix
		}
		if userConfig.MaxFileBytes != 0 {
			cfg.MaxFileBytes = userConfig.MaxFileBytes
		}
		if userConfig.BufferSize != 0 {
			cfg.BufferSize = userConfig.BufferSize
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return NewOutput(Deps{
		Name:            "recorder-output",
		Config:          cfg,
		MetricsRegistry: deps.MetricsRegistry,
		Logger:          deps.GetLoggerWithComponent("recorder-output"),
	}), nil
}

// Register registers the recorder component with the given registry
func Register(registry *component.Registry) error {
	return registry.RegisterFactory("recorder", &component.Registration{
		Name:        "recorder",
		Type:        "output",
		Protocol:    "file",
		Description: "Appends decoded headset telemetry to JSONL session files",
		Version:     "1.0.0",
		Factory:     CreateOutput,
	})
}
