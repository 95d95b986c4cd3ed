// Package component provides the core component infrastructure for MuseStreams,
// enabling component discovery, registration, lifecycle management, and
// instance creation.
//
// # Overview
//
// The component package defines fundamental abstractions for all MuseStreams
// components, supporting two component types: inputs (headset receivers) and
// outputs (telemetry sinks). Components are self-describing units that can be
// discovered at runtime, configured through JSON, and managed through their
// lifecycle.
//
// The Registry serves as the central component management system, handling both
// factory registration and instance management with thread-safe operations. The
// Manager drives the lifecycle of every configured instance.
//
// # Component Registration Pattern
//
// MuseStreams uses EXPLICIT registration rather than init() self-registration.
// This provides:
//   - Testability: Can create isolated registries for testing
//   - Explicitness: Clear component dependency graph
//   - Control: Main application controls what gets registered
//   - No side effects: No global state modification during package initialization
//
// Registration Flow:
//
//  1. Each component package exports a Register(*Registry) error function
//  2. main.go explicitly calls each Register() with a created Registry
//  3. Components are now available for instantiation
//
// Example component registration:
//
//	// In input/oscudp/udp.go
//	func Register(registry *component.Registry) error {
//		return registry.RegisterFactory("oscudp", &component.Registration{
//			Name:        "oscudp",
//			Factory:     NewReceiver,
//			Type:        "input",
//			Protocol:    "udp",
//			Description: "OSC-over-UDP headset receiver",
//			Version:     "1.0.0",
//		})
//	}
//
//	// In cmd/musestreams/main.go
//	registry := component.NewRegistry()
//	if err := oscudp.Register(registry); err != nil {
//		log.Fatal(err)
//	}
//
// # Quick Start
//
// Creating and using a component:
//
//	// Create component registry and register component factories
//	registry := component.NewRegistry()
//	if err := oscudp.Register(registry); err != nil {
//		return err
//	}
//
//	// Create component configuration
//	config := types.ComponentConfig{
//		Type:    types.ComponentTypeInput,
//		Name:    "oscudp",
//		Enabled: true,
//		Config:  json.RawMessage(`{"port": 5000, "bind": "0.0.0.0"}`),
//	}
//
//	// Prepare component dependencies
//	deps := component.Dependencies{
//		NATSClient: natsClient,
//		Platform: component.PlatformMeta{
//			Org:      "c360",
//			Platform: "muse-lab",
//		},
//		Logger: slog.Default(),
//	}
//
//	// Create component instance
//	instance, err := registry.CreateComponent("oscudp-main", config, deps)
//	if err != nil {
//		return err
//	}
//
//	// Component is now ready to use
//	meta := instance.Meta()
//	health := instance.Health()
//
// # Core Concepts
//
// Discoverable Interface:
//
// Every component must implement Discoverable, providing metadata, health
// status, and data flow metrics. This enables runtime introspection and
// management:
//
//	type Discoverable interface {
//		Meta() Metadata       // Component metadata (name, type, version)
//		Health() HealthStatus // Current health status
//		DataFlow() FlowMetrics // Data flow metrics (messages, bytes)
//	}
//
// Lifecycle:
//
// Components that own goroutines or sockets additionally implement
// LifecycleComponent:
//
//	Initialize() error                 // Setup/create only, NO context, no I/O
//	Start(ctx context.Context) error   // Open sockets, spawn loops
//	Stop(timeout time.Duration) error  // Graceful shutdown within timeout
//
// The Manager creates a child context per component, starts everything that
// implements the lifecycle, and stops components in reverse start order during
// shutdown. Components never store their context; it arrives as a parameter.
//
// Dependencies:
//
// All external dependencies (NATS client, metrics registry, logger, platform
// identity) are injected through the Dependencies struct, following clean
// dependency injection patterns.
//
// # Factory Pattern
//
// Component factories follow a consistent signature:
//
//	type Factory func(rawConfig json.RawMessage, deps Dependencies) (Discoverable, error)
//
// Example factory implementation:
//
//	func NewReceiver(rawConfig json.RawMessage, deps component.Dependencies) (component.Discoverable, error) {
//		// Parse component-specific configuration
//		var config Config
//		if err := component.SafeUnmarshal(rawConfig, &config); err != nil {
//			return nil, fmt.Errorf("parse receiver config: %w", err)
//		}
//
//		// Create component with dependencies
//		return &Receiver{
//			config:   config,
//			logger:   deps.GetLoggerWithComponent("oscudp"),
//			platform: deps.Platform,
//		}, nil
//	}
//
// Factories:
//   - Receive raw JSON configuration and parse it themselves
//   - Validate configuration before creating instances
//   - Never perform I/O; sockets open in Start()
//   - Return initialized components ready for lifecycle management
//
// # Configuration Security
//
// All configuration passes through validation before factory execution.
// ValidateFactoryConfig enforces JSON size, nesting depth, array size, and
// string content limits so a hostile config file cannot exhaust the process
// or smuggle injection payloads into component settings. SafeUnmarshal wraps
// this validation with type-checked unmarshaling and optional Validatable
// support for component config structs.
//
// # Registry Thread Safety
//
// All Registry operations are thread-safe:
//   - Factory registration uses write locks
//   - Component creation uses read locks for factory lookup
//   - Instance tracking uses write locks
//   - Listing operations use read locks
//
// Concurrency characteristics:
//   - Multiple goroutines can create components concurrently
//   - Factory registration blocks component creation temporarily
//   - ListAvailable() is safe to call during component creation
//   - No deadlocks due to ordered lock acquisition
//
// # Testing
//
// The explicit registration pattern makes testing straightforward:
//
//	// Create isolated test registry
//	registry := component.NewRegistry()
//
//	// Register only components needed for test
//	if err := oscudp.Register(registry); err != nil {
//		t.Fatal(err)
//	}
//
//	// Create test dependencies with mocks
//	deps := component.Dependencies{
//		Platform: component.PlatformMeta{
//			Org:      "test",
//			Platform: "test-platform",
//		},
//		Logger: slog.Default(),
//	}
//
//	// Test component creation
//	instance, err := registry.CreateComponent("test-1", config, deps)
//	if err != nil {
//		t.Fatal(err)
//	}
//
//	// Verify component behavior through Discoverable interface
//	assert.Equal(t, "input", instance.Meta().Type)
//
// Testing patterns:
//   - Use StandardLifecycleTests() for lifecycle compliance of new components
//   - Use real NATS via natsclient.NewTestClient() for integration tests
//   - Create isolated registries per test to avoid global state
//   - Test component behavior through Discoverable interface methods
//
// # Architecture Decisions
//
// Explicit Registration vs init() Self-Registration:
//
// Decision: Use explicit Register() functions called from main
//
// Benefits:
//   - Testability: Can create isolated registries without global state
//   - Explicitness: Clear component dependency graph in main
//   - Control: Main application controls what gets registered and when
//   - Deterministic: Registration order is explicit and controllable
//
// Dependency Injection via Struct:
//
// Decision: Use Dependencies struct instead of individual parameters
//
// Benefits:
//   - Avoids parameter proliferation in factory functions
//   - Easy to add new dependencies without breaking existing factories
//   - Enables easy testing with mock dependencies
//
// Factory Pattern for Component Creation:
//
// Decision: Constructors that parse their own configuration
//
// Benefits:
//   - Components handle their own configuration parsing
//   - Enables flexible configuration validation per component
//   - Centralizes configuration knowledge in component packages
//
// # Integration Points
//
// Dependencies:
//   - natsclient: NATS messaging for outputs and remote logging
//   - metric: Optional Prometheus metrics
//   - log/slog: Structured logging (defaults to slog.Default())
//
// Used By:
//   - input/oscudp, input/osctcp: Headset receivers register as inputs
//   - output/natspub, output/wsfeed, output/recorder: Telemetry sinks register as outputs
//   - cmd/musestreams: Application entry point creates and populates Registry
//
// Data Flow:
//
//	Configuration → Factory Lookup → Factory Execution → Component Instance → Manager
//
// # Examples
//
// See registry_test.go and manager_test.go for comprehensive examples including:
//   - Component registration and creation
//   - Factory validation
//   - Instance management
//   - Lifecycle orchestration
//   - Testing with isolated registries
package component
