package demux

import (
	stderrors "errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hypebeast/go-osc/osc"
	"golang.org/x/time/rate"

	"github.com/c360/musestreams/errors"
	"github.com/c360/musestreams/metric"
	"github.com/c360/musestreams/muse"
)

// Demux routes OSC messages from headset sources to registered listeners.
//
// One Demux instance serializes all message handling: Handle holds an
// internal mutex for the full decode-and-broadcast cycle, so listeners see
// messages one at a time in arrival order even when several transports
// feed the same instance. Register and Unregister take a separate lock
// and are safe to call at any time, including from listener callbacks.
type Demux struct {
	mu        sync.Mutex // serializes Handle and HandleDisconnect
	store     *configStore
	listeners *listenerSet
	logger    *slog.Logger
	metrics   *Metrics

	// unknownLog throttles logging for addresses outside the routing
	// table; raw FFT streams alone would otherwise flood the log.
	unknownLog rate.Sometimes

	received uint64
	routed   uint64
	dropped  uint64
	panics   uint64
}

// Stats is a point-in-time snapshot of demux activity counters.
type Stats struct {
	Received          uint64 // messages passed to Handle
	Routed            uint64 // messages delivered to listeners
	Dropped           uint64 // messages dropped without delivery
	ListenerPanics    uint64 // panics recovered from listener callbacks
	ConfiguredSources int    // sources with a stored configuration
	Listeners         int    // currently registered listeners
}

// New creates a Demux. The logger defaults to slog.Default when nil; a nil
// registry disables Prometheus metrics (activity counters still work).
func New(logger *slog.Logger, registry *metric.MetricsRegistry) *Demux {
	if logger == nil {
		logger = slog.Default()
	}
	return &Demux{
		store:     newConfigStore(),
		listeners: newListenerSet(),
		logger:    logger.With("component", "demux"),
		metrics:   newMetrics(registry),
		unknownLog: rate.Sometimes{
			First:    3,
			Interval: 10 * time.Second,
		},
	}
}

// Register adds a listener to the delivery set. Listeners are invoked in
// registration order; registering the same listener twice has no effect.
// Safe to call from inside a listener callback.
func (d *Demux) Register(l muse.Listener) {
	d.listeners.Add(l)
	if d.metrics != nil {
		d.metrics.listenersActive.Set(float64(d.listeners.Len()))
	}
}

// Unregister removes a listener from the delivery set. Safe to call from
// inside a listener callback; the removed listener stops receiving
// messages after the in-flight broadcast completes.
func (d *Demux) Unregister(l muse.Listener) {
	d.listeners.Remove(l)
	if d.metrics != nil {
		d.metrics.listenersActive.Set(float64(d.listeners.Len()))
	}
}

// Handle routes one OSC message from the given source.
//
// Configuration messages are parsed and stored for the source; the first
// one wins and later ones are ignored. Every other recognized message is
// decoded and broadcast to all registered listeners together with the
// source's stored configuration. Messages from sources that have not yet
// configured, and messages with unrecognized addresses, are dropped and
// counted without error.
//
// The returned error is non-nil only for malformed configuration payloads
// and for listener panics; both leave the demux fully operational.
func (d *Demux) Handle(source SourceKey, msg *osc.Message) error {
	if msg == nil {
		return nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	atomic.AddUint64(&d.received, 1)

	category, ok := muse.CategoryOf(msg.Address)
	if !ok {
		d.drop(dropUnknownAddress)
		d.unknownLog.Do(func() {
			d.logger.Debug("Ignoring message with unrouted address",
				"address", msg.Address,
				"source", string(source))
		})
		return nil
	}

	if category == muse.CategoryConfig {
		return d.handleConfig(source, msg.Arguments)
	}

	config := d.store.Get(source)
	if config == nil {
		d.drop(dropUnconfigured)
		d.unknownLog.Do(func() {
			d.logger.Debug("Dropping message from unconfigured source",
				"address", msg.Address,
				"source", string(source))
		})
		return nil
	}

	deliver, forward := dispatch(category, config, msg.Arguments)
	if !forward {
		// Blink messages carry a detection flag; anything but a
		// confirmed blink is suppressed rather than broadcast.
		return nil
	}

	return d.broadcast(category, deliver)
}

// HandleDisconnect evicts the stored configuration for a source. Called by
// connection-oriented transports on teardown so a reconnecting headset
// starts unconfigured. Serialized with Handle, so it never interrupts an
// in-flight broadcast.
func (d *Demux) HandleDisconnect(source SourceKey) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.store.Evict(source) {
		d.logger.Info("Source disconnected, configuration evicted",
			"source", string(source))
		if d.metrics != nil {
			d.metrics.sourcesActive.Set(float64(d.store.Len()))
		}
	}
}

// Config returns the stored configuration for a source, or nil when the
// source has not configured yet.
func (d *Demux) Config(source SourceKey) *muse.Config {
	return d.store.Get(source)
}

// Stats returns a snapshot of activity counters.
func (d *Demux) Stats() Stats {
	return Stats{
		Received:          atomic.LoadUint64(&d.received),
		Routed:            atomic.LoadUint64(&d.routed),
		Dropped:           atomic.LoadUint64(&d.dropped),
		ListenerPanics:    atomic.LoadUint64(&d.panics),
		ConfiguredSources: d.store.Len(),
		Listeners:         d.listeners.Len(),
	}
}

// handleConfig parses and stores a configuration payload for source.
func (d *Demux) handleConfig(source SourceKey, args []any) error {
	// The first configuration wins for the source's lifetime. Checked
	// before parsing so a garbled re-announcement on a live connection
	// cannot disturb an already-configured source.
	if d.store.Has(source) {
		if d.metrics != nil {
			d.metrics.configsIgnored.Inc()
		}
		d.logger.Debug("Ignoring repeated configuration", "source", string(source))
		return nil
	}

	payload, ok := configPayload(args)
	if !ok {
		d.drop(dropBadConfig)
		return errors.WrapInvalid(errors.ErrInvalidData,
			"demux", "Handle", "extract configuration payload")
	}

	config, err := muse.ParseConfig([]byte(payload))
	if err != nil {
		d.drop(dropBadConfig)
		return err
	}

	if d.store.SetIfAbsent(source, config) {
		d.logger.Info("Headset configured",
			"source", string(source),
			"device", config.DeviceID(),
			"preset", config.Preset)
		if d.metrics != nil {
			d.metrics.configsStored.Inc()
			d.metrics.sourcesActive.Set(float64(d.store.Len()))
		}
	}
	return nil
}

// configPayload extracts the JSON document from a configuration message's
// arguments. The headset sends it as a single OSC string argument.
func configPayload(args []any) (string, bool) {
	if len(args) == 0 {
		return "", false
	}
	payload, ok := args[0].(string)
	return payload, ok
}

// dispatch decodes the message arguments for a category and returns the
// callback that delivers them, plus whether the message should be
// forwarded at all. The closure captures fully decoded values, so the
// per-listener cost is one virtual call.
func dispatch(category muse.Category, config *muse.Config, args []any) (func(muse.Listener), bool) {
	switch category {
	case muse.CategoryEEG:
		values, timestamps := muse.DecodeEEG(args)
		if timestamps != nil {
			return func(l muse.Listener) { l.ReceiveEEGWithTimestamps(config, values, timestamps) }, true
		}
		return func(l muse.Listener) { l.ReceiveEEG(config, values) }, true
	case muse.CategoryAccel:
		values, timestamps := muse.DecodeAccel(args)
		return func(l muse.Listener) { l.ReceiveAccel(config, values, timestamps) }, true
	case muse.CategoryBattery:
		values := muse.DecodeBattery(args)
		return func(l muse.Listener) { l.ReceiveBattery(config, values) }, true
	case muse.CategoryBlink:
		blink := muse.DecodeBlink(args)
		if blink != muse.BlinkDetected {
			return nil, false
		}
		return func(l muse.Listener) { l.ReceiveBlink(config, blink) }, true
	case muse.CategoryAlpha:
		values := muse.DecodeBandPower(args)
		return func(l muse.Listener) { l.ReceiveAlpha(config, values) }, true
	case muse.CategoryBeta:
		values := muse.DecodeBandPower(args)
		return func(l muse.Listener) { l.ReceiveBeta(config, values) }, true
	case muse.CategoryTheta:
		values := muse.DecodeBandPower(args)
		return func(l muse.Listener) { l.ReceiveTheta(config, values) }, true
	case muse.CategoryDelta:
		values := muse.DecodeBandPower(args)
		return func(l muse.Listener) { l.ReceiveDelta(config, values) }, true
	case muse.CategoryMellow:
		values := muse.DecodeScore(args)
		return func(l muse.Listener) { l.ReceiveMellow(config, values) }, true
	case muse.CategoryConcentration:
		values := muse.DecodeScore(args)
		return func(l muse.Listener) { l.ReceiveConcentration(config, values) }, true
	}
	return nil, false
}

// broadcast delivers one decoded message to every registered listener in
// registration order. A panicking listener is isolated: the panic is
// recovered and reported, and delivery continues with the next listener.
func (d *Demux) broadcast(category muse.Category, deliver func(muse.Listener)) error {
	start := time.Now()

	var errs []error
	for _, l := range d.listeners.Snapshot() {
		if err := d.deliverSafely(l, deliver); err != nil {
			errs = append(errs, err)
		}
	}

	atomic.AddUint64(&d.routed, 1)
	if d.metrics != nil {
		d.metrics.messagesRouted.WithLabelValues(string(category)).Inc()
		d.metrics.broadcastDuration.Observe(time.Since(start).Seconds())
	}
	return stderrors.Join(errs...)
}

// deliverSafely invokes the delivery callback on one listener, converting
// a panic into a classified error.
func (d *Demux) deliverSafely(l muse.Listener, deliver func(muse.Listener)) (err error) {
	defer func() {
		if r := recover(); r != nil {
			atomic.AddUint64(&d.panics, 1)
			if d.metrics != nil {
				d.metrics.listenerPanics.Inc()
			}
			d.logger.Error("Listener panicked during delivery",
				"listener", fmt.Sprintf("%T", l),
				"panic", r)
			err = errors.WrapInvalid(
				fmt.Errorf("listener %T panicked: %v", l, r),
				"demux", "Handle", "deliver message to listener")
		}
	}()
	deliver(l)
	return nil
}

// drop records one dropped message with a reason label.
func (d *Demux) drop(reason string) {
	atomic.AddUint64(&d.dropped, 1)
	if d.metrics != nil {
		d.metrics.messagesDropped.WithLabelValues(reason).Inc()
	}
}
