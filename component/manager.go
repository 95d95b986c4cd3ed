package component

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/c360/musestreams/types"
)

// Manager handles lifecycle management of all components (inputs and outputs).
//
// Manager follows the unified lifecycle:
//
//	Initialize() - Create components but don't start them
//	Start(ctx)   - Start initialized components with context
//	Stop()       - Stop components in reverse order
type Manager struct {
	registry *Registry
	configs  map[string]types.ComponentConfig
	deps     Dependencies
	logger   *slog.Logger

	components map[string]*ManagedComponent
	startOrder []string // Track start order for reverse stop

	mu          sync.RWMutex
	initialized atomic.Bool
	started     atomic.Bool
	wg          sync.WaitGroup
}

// NewManager creates a component manager for the given instance configurations.
// Components are created lazily in Initialize, not here.
func NewManager(configs map[string]types.ComponentConfig, registry *Registry, deps Dependencies) *Manager {
	if registry == nil {
		registry = NewRegistry()
	}
	return &Manager{
		registry:   registry,
		configs:    configs,
		deps:       deps,
		logger:     deps.GetLoggerWithComponent("manager"),
		components: make(map[string]*ManagedComponent),
		startOrder: make([]string, 0),
	}
}

// Registry returns the component registry backing this manager.
func (m *Manager) Registry() *Registry {
	return m.registry
}

// Initialize creates all enabled components but does not start them.
// Creation failures are logged and skipped so one bad config does not
// take the whole rig down.
func (m *Manager) Initialize() error {
	if m.initialized.Load() {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for instanceName, cfg := range m.configs {
		if !cfg.Enabled {
			m.logger.Debug("Skipping disabled component", "instance", instanceName)
			continue
		}

		comp, err := m.registry.CreateComponent(instanceName, cfg, m.deps)
		if err != nil {
			m.logger.Error("Failed to create component from config",
				"instance", instanceName,
				"factory", cfg.Name,
				"type", cfg.Type,
				"error", err)
			continue
		}

		mc := &ManagedComponent{
			Component: comp,
			State:     StateCreated,
		}

		if lifecycle, ok := AsLifecycleComponent(comp); ok {
			if err := lifecycle.Initialize(); err != nil {
				m.registry.UnregisterInstance(instanceName)
				m.logger.Error("Failed to initialize component",
					"instance", instanceName, "error", err)
				continue
			}
			mc.State = StateInitialized
		}

		m.components[instanceName] = mc
		m.logger.Info("Component created",
			"instance", instanceName,
			"factory", cfg.Name,
			"type", cfg.Type)
	}

	m.initialized.Store(true)
	return nil
}

// Start starts all initialized components. Each component gets its own child
// context so it can be cancelled individually during shutdown.
func (m *Manager) Start(ctx context.Context) error {
	if !m.initialized.Load() {
		return fmt.Errorf("component manager not initialized")
	}
	if m.started.Load() {
		return nil
	}

	m.mu.Lock()
	m.startOrder = make([]string, 0, len(m.components))

	type startable struct {
		name      string
		mc        *ManagedComponent
		lifecycle LifecycleComponent
	}
	toStart := make([]startable, 0, len(m.components))

	for name, mc := range m.components {
		lifecycle, ok := AsLifecycleComponent(mc.Component)
		if !ok {
			continue
		}
		childCtx, cancel := context.WithCancel(ctx)
		mc.Context = childCtx
		mc.Cancel = cancel
		mc.StartOrder = len(m.startOrder)
		m.startOrder = append(m.startOrder, name)
		toStart = append(toStart, startable{name, mc, lifecycle})
	}
	m.mu.Unlock()

	// Start components without holding the main lock: Start calls may block
	// briefly on socket binds.
	for _, s := range toStart {
		m.wg.Add(1)
		go func(name string, mc *ManagedComponent, lc LifecycleComponent) {
			defer m.wg.Done()

			m.logger.Info("Starting component", "name", name, "type", mc.Component.Meta().Type)

			if err := lc.Start(mc.Context); err != nil {
				m.updateState(name, StateFailed, err)
				m.logger.Error("Component failed to start",
					"name", name, "type", mc.Component.Meta().Type, "error", err)
				return
			}

			m.updateState(name, StateStarted, nil)
			m.logger.Info("Component started", "name", name, "type", mc.Component.Meta().Type)
		}(s.name, s.mc, s.lifecycle)
	}

	m.started.Store(true)
	return nil
}

// Stop gracefully stops all components in reverse order of startup.
// Contexts are cancelled first to signal shutdown intent, then components
// are stopped in parallel within the timeout.
func (m *Manager) Stop(timeout time.Duration) error {
	if !m.started.Load() {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	m.mu.Lock()
	stopOrder := make([]string, len(m.startOrder))
	copy(stopOrder, m.startOrder)

	// Cancel all component contexts first
	for i := len(stopOrder) - 1; i >= 0; i-- {
		if mc, exists := m.components[stopOrder[i]]; exists && mc.Cancel != nil {
			mc.Cancel()
			mc.Cancel = nil
			mc.Context = nil
		}
	}
	m.mu.Unlock()

	// Stop components in parallel: each has its own timeout budget
	errorChan := make(chan error, len(stopOrder))
	var wg sync.WaitGroup

	for i := len(stopOrder) - 1; i >= 0; i-- {
		name := stopOrder[i]
		m.mu.RLock()
		mc, exists := m.components[name]
		m.mu.RUnlock()
		if !exists {
			continue
		}

		wg.Add(1)
		go func(name string, mc *ManagedComponent) {
			defer wg.Done()
			if err := m.stopComponent(ctx, name, mc); err != nil {
				errorChan <- err
			}
		}(name, mc)
	}

	wg.Wait()
	close(errorChan)

	var errs []error
	for err := range errorChan {
		errs = append(errs, err)
	}

	// Wait for start goroutines to drain
	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return fmt.Errorf("component stop timed out: %w", ctx.Err())
	}

	m.started.Store(false)

	if len(errs) > 0 {
		return fmt.Errorf("failed to stop %d components: %v", len(errs), errs)
	}
	return nil
}

func (m *Manager) stopComponent(ctx context.Context, name string, mc *ManagedComponent) error {
	lifecycle, ok := AsLifecycleComponent(mc.Component)
	if !ok {
		m.updateState(name, StateStopped, nil)
		return nil
	}

	timeout := 30 * time.Second
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining > 0 && remaining < timeout {
			timeout = remaining
		}
	}

	if err := lifecycle.Stop(timeout); err != nil {
		m.updateState(name, StateFailed, err)
		return fmt.Errorf("component '%s': %w", name, err)
	}

	m.updateState(name, StateStopped, nil)
	return nil
}

func (m *Manager) updateState(name string, state State, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if mc, exists := m.components[name]; exists {
		mc.State = state
		mc.LastError = err
	}
}

// IsInitialized returns true if the component manager is initialized
func (m *Manager) IsInitialized() bool {
	return m.initialized.Load()
}

// IsStarted returns true if the component manager is started
func (m *Manager) IsStarted() bool {
	return m.started.Load()
}

// Component retrieves a specific component instance by name
func (m *Manager) Component(name string) Discoverable {
	return m.registry.Component(name)
}

// ListComponents returns all registered component instances
func (m *Manager) ListComponents() map[string]Discoverable {
	return m.registry.ListComponents()
}

// GetComponentHealth returns current health status for all managed components
func (m *Manager) GetComponentHealth() map[string]HealthStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make(map[string]HealthStatus, len(m.components))
	for name, mc := range m.components {
		if mc.Component != nil {
			result[name] = mc.Component.Health()
		}
	}
	return result
}

// Status combines lifecycle state with health and flow metrics
type Status struct {
	Name      string       `json:"name"`
	State     string       `json:"state"`
	Health    HealthStatus `json:"health"`
	DataFlow  FlowMetrics  `json:"data_flow"`
	LastError string       `json:"last_error,omitempty"`
}

// GetComponentStatus returns combined lifecycle state and health status for all components
func (m *Manager) GetComponentStatus() map[string]Status {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make(map[string]Status, len(m.components))
	for name, mc := range m.components {
		status := Status{
			Name:  name,
			State: mc.State.String(),
		}
		if mc.LastError != nil {
			status.LastError = mc.LastError.Error()
		}
		if mc.Component != nil {
			status.Health = mc.Component.Health()
			status.DataFlow = mc.Component.DataFlow()
		}
		result[name] = status
	}
	return result
}

// StatusHandler returns an HTTP handler that serves component status as JSON.
// Mounted on the metrics server so operators can inspect the rig.
func (m *Manager) StatusHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(m.GetComponentStatus()); err != nil {
			http.Error(w, "encode status", http.StatusInternalServerError)
		}
	})
}
