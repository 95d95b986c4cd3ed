package demux

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/musestreams/metric"
)

// Metrics holds Prometheus metrics for the demultiplexer
type Metrics struct {
	messagesRouted    *prometheus.CounterVec
	messagesDropped   *prometheus.CounterVec
	configsStored     prometheus.Counter
	configsIgnored    prometheus.Counter
	sourcesActive     prometheus.Gauge
	listenersActive   prometheus.Gauge
	listenerPanics    prometheus.Counter
	broadcastDuration prometheus.Histogram
}

// newMetrics creates and registers demux metrics
func newMetrics(registry *metric.MetricsRegistry) *Metrics {
	// Return nil if no registry provided (nil input = nil feature pattern)
	if registry == nil {
		return nil
	}

	// Only create metrics when registry is provided
	metrics := &Metrics{
		messagesRouted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "musestreams",
			Subsystem: "demux",
			Name:      "messages_routed_total",
			Help:      "Messages forwarded to listeners, by category",
		}, []string{"category"}),
		messagesDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "musestreams",
			Subsystem: "demux",
			Name:      "messages_dropped_total",
			Help:      "Messages dropped without delivery, by reason",
		}, []string{"reason"}),
		configsStored: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "musestreams",
			Subsystem: "demux",
			Name:      "configs_stored_total",
			Help:      "Headset configurations accepted and stored",
		}),
		configsIgnored: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "musestreams",
			Subsystem: "demux",
			Name:      "configs_ignored_total",
			Help:      "Repeated configurations ignored for already-configured sources",
		}),
		sourcesActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "musestreams",
			Subsystem: "demux",
			Name:      "sources_active",
			Help:      "Sources with a stored configuration",
		}),
		listenersActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "musestreams",
			Subsystem: "demux",
			Name:      "listeners_active",
			Help:      "Currently registered listeners",
		}),
		listenerPanics: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "musestreams",
			Subsystem: "demux",
			Name:      "listener_panics_total",
			Help:      "Panics recovered from listener callbacks",
		}),
		broadcastDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "musestreams",
			Subsystem: "demux",
			Name:      "broadcast_duration_seconds",
			Help:      "Time to deliver one message to all listeners",
			Buckets:   []float64{0.00001, 0.0001, 0.001, 0.005, 0.01, 0.05, 0.1},
		}),
	}

	// Register all metrics (no conditional needed since registry is guaranteed non-nil here)
	const serviceName = "demux"
	registry.RegisterCounterVec(serviceName, "messages_routed", metrics.messagesRouted)
	registry.RegisterCounterVec(serviceName, "messages_dropped", metrics.messagesDropped)
	registry.RegisterCounter(serviceName, "configs_stored", metrics.configsStored)
	registry.RegisterCounter(serviceName, "configs_ignored", metrics.configsIgnored)
	registry.RegisterGauge(serviceName, "sources_active", metrics.sourcesActive)
	registry.RegisterGauge(serviceName, "listeners_active", metrics.listenersActive)
	registry.RegisterCounter(serviceName, "listener_panics", metrics.listenerPanics)
	registry.RegisterHistogram(serviceName, "broadcast_duration", metrics.broadcastDuration)

	return metrics
}

// drop reasons for the messages_dropped counter
const (
	dropUnknownAddress = "unknown_address"
	dropUnconfigured   = "unconfigured_source"
	dropBadConfig      = "bad_config"
)
