// Package health provides health monitoring functionality for MuseStreams
// components and systems with thread-safe status tracking and aggregation.
//
// The health package enables tracking the health status of individual components
// and aggregating platform-wide health information for monitoring, alerting, and
// operational visibility.
//
// # Health States
//
// The package supports three health states:
//   - Healthy: component operating normally
//   - Degraded: component operating with reduced functionality
//   - Unhealthy: component not functioning properly
//
// This three-state model enables nuanced health reporting and appropriate
// operational responses. For example, a receiver that is bound but has seen no
// telemetry for a while might report degraded, while a receiver whose socket
// failed reports unhealthy and triggers immediate incident response.
//
// # Core Components
//
// Status: Individual component health state containing status level, descriptive
// message, timestamp, optional metrics, and hierarchical sub-statuses for complex
// systems.
//
// Monitor: Thread-safe centralized tracking system for multiple component health
// statuses with concurrent read/write access and automatic timestamp management.
//
// Helpers: Convenience functions for creating status objects and aggregating
// system health.
//
// # Basic Usage
//
// Creating and tracking component health:
//
//	monitor := health.NewMonitor()
//
//	// Update component health
//	monitor.UpdateHealthy("oscudp", "Listening on UDP port")
//	monitor.UpdateDegraded("natspub", "Reconnecting to NATS")
//	monitor.UpdateUnhealthy("osctcp", "Accept loop stopped")
//
//	// Check individual component health
//	if status, exists := monitor.Get("oscudp"); exists {
//	    if status.IsHealthy() {
//	        log.Println("UDP receiver is healthy")
//	    }
//	}
//
//	// Get all component statuses
//	allStatuses := monitor.GetAll()
//	for name, status := range allStatuses {
//	    log.Printf("%s: %s - %s", name, status.Status, status.Message)
//	}
//
// # System-Wide Health Aggregation
//
// Combining multiple component health statuses into platform-wide indicators:
//
//	// Aggregate all monitored components
//	systemHealth := monitor.AggregateHealth("musestreams")
//	if systemHealth.IsUnhealthy() {
//	    log.Printf("Platform unhealthy: %s", systemHealth.Message)
//	    // Trigger alerts, restart components, etc.
//	}
//
//	// Aggregation uses hierarchical rules:
//	// - Any unhealthy component → system unhealthy
//	// - Any degraded component (with no unhealthy) → system degraded
//	// - All healthy → system healthy
//
// # Hierarchical Status
//
// Building nested health status for composite components:
//
//	udpStatus := health.NewHealthy("oscudp", "Receiving telemetry")
//	tcpStatus := health.NewDegraded("osctcp", "No active connections")
//
//	receiverHealth := health.NewHealthy("receivers", "Receivers operational").
//	    WithSubStatus(udpStatus).
//	    WithSubStatus(tcpStatus)
//
// # Health Metrics
//
// Attaching operational metrics to health status:
//
//	metrics := &health.Metrics{
//	    Uptime:            time.Since(started),
//	    ErrorCount:        0,
//	    MessagesProcessed: 1500,
//	    LastActivity:      time.Now(),
//	}
//
//	status := health.NewHealthy("demux", "Routing telemetry").
//	    WithMetrics(metrics)
//
// # Integration with Components
//
// Converting component.HealthStatus to health.Status:
//
//	componentHealth := comp.GetHealth() // Returns component.HealthStatus
//
//	// Convert to health.Status with automatic error sanitization
//	healthStatus := health.FromComponentHealth("natspub", componentHealth)
//
//	// Error messages are automatically sanitized to remove:
//	// - URLs (http://, nats://, ws://)
//	// - File paths (Unix and Windows)
//	// - IP addresses and ports
//	// - Credentials (password, token, key, secret)
//
// # Thread Safety
//
// All Monitor operations are thread-safe and can be safely called from multiple
// goroutines. The Monitor uses an RWMutex internally to allow concurrent reads
// while protecting writes. Status objects are immutable - methods like
// WithMetrics and WithSubStatus return new copies rather than modifying the
// original.
//
// # Security
//
// Error messages passed through FromComponentHealth are automatically sanitized
// to remove potentially sensitive information:
//
//	// Original error with sensitive data
//	err := "failed to connect to nats://10.1.4.20:4222 with token=secret123"
//
//	// After sanitization via FromComponentHealth
//	// "failed to connect to [URL] with [REDACTED]"
//
// Sanitization patterns:
//   - URLs: http://, https://, nats://, ws://, wss:// → [URL]
//   - File paths: /path/to/file, C:\path\to\file → [PATH]
//   - IP addresses: 192.168.1.100 → [IP]
//   - Ports: :8080 → :[PORT]
//   - Credentials: password=X, token=X, key=X, secret=X → [REDACTED]
//
// This prevents accidental exposure of sensitive data in health dashboards and
// logs.
//
// # Error Handling Philosophy
//
// The health package does not return errors because it represents the *result*
// of error handling, not part of error propagation. Health status is an
// observability output.
//
// Components creating Status objects should wrap failures with the errors
// package before converting to health status messages. The health package then
// sanitizes these error messages for safe display.
//
// # Design Decisions
//
// Three-State Model: Chose healthy/degraded/unhealthy over binary
// healthy/unhealthy to enable nuanced operational responses. Degraded state
// allows the platform to continue streaming with reduced capacity while
// triggering attention rather than immediate failover.
//
// Automatic Sanitization: Error messages are sanitized by default (no opt-out)
// to prevent accidental credential exposure. This "secure by default" design
// prevents common security mistakes even if it occasionally over-redacts during
// debugging.
//
// Value-Based Status: Status is a struct, not *Status, making it immutable and
// preventing accidental mutation. Methods like WithMetrics return new copies.
//
// Conservative Aggregation: System health follows "worst case" rules - a single
// unhealthy component marks the entire system unhealthy. This conservative
// approach ensures problems are not masked by healthy components.
//
// # Examples
//
// HTTP health endpoint backed by a Monitor:
//
//	func healthHandler(monitor *health.Monitor) http.HandlerFunc {
//	    return func(w http.ResponseWriter, r *http.Request) {
//	        systemHealth := monitor.AggregateHealth("musestreams")
//
//	        statusCode := http.StatusOK
//	        if systemHealth.IsUnhealthy() {
//	            statusCode = http.StatusServiceUnavailable
//	        }
//
//	        w.Header().Set("Content-Type", "application/json")
//	        w.WriteHeader(statusCode)
//	        json.NewEncoder(w).Encode(systemHealth)
//	    }
//	}
package health
