package natsclient

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/musestreams/metric"
)

// connMetrics holds Prometheus metrics for the NATS connection itself:
// connect/reconnect churn, circuit breaker failures, and round-trip time.
// All methods are nil-safe so a client without a registry pays nothing.
type connMetrics struct {
	connects    prometheus.Counter
	reconnects  prometheus.Counter
	disconnects prometheus.Counter
	failures    prometheus.Counter
	connected   prometheus.Gauge
	rttSeconds  prometheus.Gauge
}

// newConnMetrics creates and registers connection metrics with the provided registry.
func newConnMetrics(registry *metric.MetricsRegistry) (*connMetrics, error) {
	if registry == nil {
		return nil, nil // Metrics disabled
	}

	m := &connMetrics{
		connects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "musestreams",
			Subsystem: "nats",
			Name:      "connects_total",
			Help:      "Successful NATS connection establishments",
		}),
		reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "musestreams",
			Subsystem: "nats",
			Name:      "reconnects_total",
			Help:      "Automatic NATS reconnections",
		}),
		disconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "musestreams",
			Subsystem: "nats",
			Name:      "disconnects_total",
			Help:      "NATS disconnection events",
		}),
		failures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "musestreams",
			Subsystem: "nats",
			Name:      "connection_failures_total",
			Help:      "Connection attempts that failed",
		}),
		connected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "musestreams",
			Subsystem: "nats",
			Name:      "connected",
			Help:      "Whether the client is currently connected (1) or not (0)",
		}),
		rttSeconds: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "musestreams",
			Subsystem: "nats",
			Name:      "rtt_seconds",
			Help:      "Round-trip time to the NATS server",
		}),
	}

	// Register all metrics
	if err := registry.RegisterCounter("nats", "connects", m.connects); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounter("nats", "reconnects", m.reconnects); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounter("nats", "disconnects", m.disconnects); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounter("nats", "connection_failures", m.failures); err != nil {
		return nil, err
	}
	if err := registry.RegisterGauge("nats", "connected", m.connected); err != nil {
		return nil, err
	}
	if err := registry.RegisterGauge("nats", "rtt_seconds", m.rttSeconds); err != nil {
		return nil, err
	}

	return m, nil
}

func (m *connMetrics) recordConnect() {
	if m != nil {
		m.connects.Inc()
		m.connected.Set(1)
	}
}

func (m *connMetrics) recordReconnect() {
	if m != nil {
		m.reconnects.Inc()
		m.connected.Set(1)
	}
}

func (m *connMetrics) recordDisconnect() {
	if m != nil {
		m.disconnects.Inc()
		m.connected.Set(0)
	}
}

func (m *connMetrics) recordFailure() {
	if m != nil {
		m.failures.Inc()
	}
}

// startPoller starts a background goroutine that samples the connection RTT
// periodically. Returns a cancel function to stop the poller.
func (m *connMetrics) startPoller(ctx context.Context, interval time.Duration, client *Client) context.CancelFunc {
	if m == nil {
		return func() {} // No-op if metrics disabled
	}

	ctx, cancel := context.WithCancel(ctx)

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				rtt, err := client.RTT()
				if err != nil {
					m.rttSeconds.Set(0)
					continue
				}
				m.rttSeconds.Set(rtt.Seconds())
			case <-ctx.Done():
				return
			}
		}
	}()

	return cancel
}
