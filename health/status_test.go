package health

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/musestreams/component"
)

func TestStatus_Predicates(t *testing.T) {
	assert.True(t, NewHealthy("oscudp-input", "listening").IsHealthy())
	assert.True(t, NewUnhealthy("natspub-output", "publish failed").IsUnhealthy())
	assert.True(t, NewDegraded("wsfeed-output", "clients dropping frames").IsDegraded())

	degraded := NewDegraded("wsfeed-output", "clients dropping frames")
	assert.False(t, degraded.Healthy)
	assert.False(t, degraded.IsHealthy())
	assert.False(t, degraded.IsUnhealthy())
}

func TestStatus_WithMetrics(t *testing.T) {
	base := NewHealthy("oscudp-input", "listening")
	withMetrics := base.WithMetrics(&Metrics{Uptime: time.Minute, ErrorCount: 2})

	require.NotNil(t, withMetrics.Metrics)
	assert.Equal(t, time.Minute, withMetrics.Metrics.Uptime)
	assert.Equal(t, 2, withMetrics.Metrics.ErrorCount)
	assert.Nil(t, base.Metrics, "original must be unchanged")
}

func TestStatus_WithSubStatusDoesNotShareSlice(t *testing.T) {
	parent := NewHealthy("musestreams", "ok")
	a := parent.WithSubStatus(NewHealthy("oscudp-input", "ok"))
	b := a.WithSubStatus(NewUnhealthy("natspub-output", "down"))

	assert.Len(t, parent.SubStatuses, 0)
	assert.Len(t, a.SubStatuses, 1)
	assert.Len(t, b.SubStatuses, 2)
	assert.Equal(t, "oscudp-input", a.SubStatuses[0].Component)
}

func TestFromComponentHealth(t *testing.T) {
	t.Run("healthy component", func(t *testing.T) {
		now := time.Now()
		status := FromComponentHealth("oscudp-input", component.HealthStatus{
			Healthy:   true,
			LastCheck: now,
			Uptime:    5 * time.Minute,
		})

		assert.Equal(t, "oscudp-input", status.Component)
		assert.True(t, status.Healthy)
		assert.Equal(t, "healthy", status.Status)
		assert.Equal(t, "Component healthy", status.Message)
		require.NotNil(t, status.Metrics)
		assert.Equal(t, 5*time.Minute, status.Metrics.Uptime)
		assert.Equal(t, now, status.Metrics.LastActivity)
	})

	t.Run("unhealthy component carries error count", func(t *testing.T) {
		status := FromComponentHealth("natspub-output", component.HealthStatus{
			Healthy:    false,
			ErrorCount: 7,
			LastError:  "connection refused",
		})

		assert.False(t, status.Healthy)
		assert.Equal(t, "unhealthy", status.Status)
		assert.Equal(t, "connection refused", status.Message)
		assert.Equal(t, 7, status.Metrics.ErrorCount)
	})
}

// Health output is served over HTTP, so error messages must not leak
// endpoints, paths, or credentials.
func TestFromComponentHealth_SanitizesLastError(t *testing.T) {
	tests := []struct {
		name      string
		lastError string
		want      string
	}{
		{
			"nats url",
			"dial nats://broker.local:4222 failed",
			"dial [URL] failed",
		},
		{
			"http url",
			"post to http://collector.local/ingest failed",
			"post to [URL] failed",
		},
		{
			"unix path",
			"open /var/lib/musestreams/session.jsonl failed",
			"open [PATH] failed",
		},
		{
			"ip and port",
			"read from 192.168.1.50:5000 timed out",
			"read from [IP][PORT] timed out",
		},
		{
			"credentials",
			"auth failed: token=abc123",
			"auth failed: [REDACTED]",
		},
		{
			"plain message untouched",
			"listener panicked",
			"listener panicked",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status := FromComponentHealth("test", component.HealthStatus{
				Healthy:   false,
				LastError: tt.lastError,
			})
			assert.Equal(t, tt.want, status.Message)
		})
	}
}
