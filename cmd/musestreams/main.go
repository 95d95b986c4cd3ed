// Package main implements the entry point for the MuseStreams receiver.
// MuseStreams listens for Muse headband OSC telemetry, demultiplexes it
// per device, and fans the decoded samples out to the configured outputs.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/c360/musestreams/component"
	"github.com/c360/musestreams/componentregistry"
	"github.com/c360/musestreams/config"
	"github.com/c360/musestreams/demux"
	"github.com/c360/musestreams/health"
	"github.com/c360/musestreams/metric"
	"github.com/c360/musestreams/muse"
	"github.com/c360/musestreams/natsclient"
	"github.com/c360/musestreams/types"
)

// Build information constants
const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "musestreams"
)

func main() {
	// Add panic recovery
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	// Run application with proper error handling
	if err := run(); err != nil {
		slog.Error("Application failed", "error", err, "exit_code", 1)
		os.Exit(1)
	}
}

func run() error {
	// Parse and validate CLI flags
	cliCfg, logger, shouldExit, err := initializeCLI()
	if shouldExit || err != nil {
		return err
	}

	// Load and validate configuration
	cfg, err := initializeConfiguration(cliCfg)
	if err != nil {
		return err
	}

	if cliCfg.Validate {
		slog.Info("Configuration is valid")
		return nil
	}

	// Setup core infrastructure
	ctx := context.Background()
	natsClient, metricsRegistry, platform, err := createCoreDependencies(cfg)
	if err != nil {
		return fmt.Errorf("create dependencies: %w", err)
	}
	defer func() { _ = natsClient.Close(ctx) }()

	if err := connectToNATS(ctx, natsClient); err != nil {
		return err
	}

	// Telemetry router shared by inputs and outputs
	router := demux.New(logger, metricsRegistry)

	// Component registry and manager
	manager, err := setupComponentManager(cfg, router, natsClient, metricsRegistry, logger, platform)
	if err != nil {
		return err
	}

	// Ops server (Prometheus metrics, health, component status)
	metricsServer := setupMetricsServer(cfg, metricsRegistry, manager)
	if metricsServer != nil {
		defer func() { _ = metricsServer.Stop() }()
	}

	// Run application with signal handling
	return runWithSignalHandling(ctx, manager, router, cliCfg.ShutdownTimeout)
}

// initializeCLI parses flags and sets up logging
func initializeCLI() (*CLIConfig, *slog.Logger, bool, error) {
	cliCfg := parseFlags()
	if err := validateFlags(cliCfg); err != nil {
		return nil, nil, false, fmt.Errorf("invalid flags: %w", err)
	}

	if cliCfg.ShowVersion {
		fmt.Printf("%s version %s\n", appName, Version)
		return nil, nil, true, nil
	}

	if cliCfg.ShowHelp {
		printDetailedHelp()
		return nil, nil, true, nil
	}

	logger := setupLogger(cliCfg.LogLevel, cliCfg.LogFormat)
	slog.SetDefault(logger)

	slog.Info("Starting MuseStreams (Muse OSC telemetry receiver)",
		"version", Version,
		"build_time", BuildTime,
		"config_path", cliCfg.ConfigPath)

	return cliCfg, logger, false, nil
}

// initializeConfiguration loads and validates configuration
func initializeConfiguration(cliCfg *CLIConfig) (*config.Config, error) {
	loader := config.NewLoader()
	cfg, err := loader.LoadFile(cliCfg.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// createCoreDependencies creates the NATS client, metrics registry, and
// platform identity shared by all components.
func createCoreDependencies(
	cfg *config.Config,
) (*natsclient.Client, *metric.MetricsRegistry, types.PlatformMeta, error) {
	natsURL := "nats://localhost:4222"

	// Environment variable override takes precedence
	if envURL := os.Getenv("MUSESTREAMS_NATS_URLS"); envURL != "" {
		natsURL = envURL
	} else if len(cfg.NATS.URLs) > 0 {
		natsURL = cfg.NATS.URLs[0]
	}

	natsClient, err := natsclient.NewClient(natsURL)
	if err != nil {
		return nil, nil, types.PlatformMeta{}, fmt.Errorf("create NATS client: %w", err)
	}

	metricsRegistry := metric.NewMetricsRegistry()

	platform := types.PlatformMeta{
		Org:      cfg.GetOrg(),
		Platform: cfg.GetPlatform(),
	}

	slog.Info("Platform identity configured",
		"org", platform.Org,
		"platform", platform.Platform,
		"environment", cfg.Platform.Environment)

	return natsClient, metricsRegistry, platform, nil
}

// connectToNATS establishes NATS connection and waits for it to be ready
func connectToNATS(ctx context.Context, natsClient *natsclient.Client) error {
	slog.Info("Connecting to NATS")
	if err := natsClient.Connect(ctx); err != nil {
		return fmt.Errorf("connect to NATS: %w", err)
	}

	connCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := natsClient.WaitForConnection(connCtx); err != nil {
		return fmt.Errorf("NATS connection timeout: %w", err)
	}

	return nil
}

// setupComponentManager registers the component factories and creates all
// enabled components from configuration.
func setupComponentManager(
	cfg *config.Config,
	router *demux.Demux,
	natsClient *natsclient.Client,
	metricsRegistry *metric.MetricsRegistry,
	logger *slog.Logger,
	platform types.PlatformMeta,
) (*component.Manager, error) {
	componentRegistry := component.NewRegistry()
	slog.Debug("Registering core component factories (OSC inputs, outputs)")
	if err := componentregistry.Register(componentRegistry); err != nil {
		return nil, fmt.Errorf("register components: %w", err)
	}

	factories := componentRegistry.ListFactories()
	slog.Info("core component factories registered", "count", len(factories))

	deps := component.Dependencies{
		Demux:           router,
		NATSClient:      natsClient,
		MetricsRegistry: metricsRegistry,
		Logger:          logger,
		Platform:        platform,
		Security:        cfg.Security,
	}

	manager := component.NewManager(cfg.Components, componentRegistry, deps)
	if err := manager.Initialize(); err != nil {
		return nil, fmt.Errorf("initialize components: %w", err)
	}

	return manager, nil
}

// attachListeners subscribes every output component that consumes decoded
// telemetry to the router. Inputs pull the router from Dependencies; outputs
// receive samples through the Listener interface.
func attachListeners(manager *component.Manager, router *demux.Demux) int {
	attached := 0
	for name, comp := range manager.ListComponents() {
		listener, ok := comp.(muse.Listener)
		if !ok {
			continue
		}
		router.Register(listener)
		attached++
		slog.Debug("Output attached to telemetry router", "instance", name)
	}
	return attached
}

// setupMetricsServer starts the ops HTTP server when metrics are enabled.
// The component status handler is mounted alongside the Prometheus endpoint.
func setupMetricsServer(
	cfg *config.Config,
	metricsRegistry *metric.MetricsRegistry,
	manager *component.Manager,
) *metric.Server {
	if !cfg.Metrics.Enabled {
		slog.Debug("Metrics server disabled in config")
		return nil
	}

	server := metric.NewServer(cfg.Metrics.Port, cfg.Metrics.Path, metricsRegistry, cfg.Security)
	server.Handle("/components", manager.StatusHandler())
	server.Handle("/healthz", healthHandler(manager))

	go func() {
		slog.Info("Starting metrics server", "address", server.Address())
		if err := server.Start(); err != nil {
			slog.Error("Metrics server stopped", "error", err)
		}
	}()

	return server
}

// healthHandler aggregates per-component health into a single system status.
// Returns 503 when any component reports unhealthy.
func healthHandler(manager *component.Manager) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		monitor := health.NewMonitor()
		for name, hs := range manager.GetComponentHealth() {
			monitor.Update(name, health.FromComponentHealth(name, hs))
		}
		overall := monitor.AggregateHealth(appName)

		w.Header().Set("Content-Type", "application/json")
		if !overall.Healthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(overall)
	})
}

// runWithSignalHandling starts components and handles shutdown signals
func runWithSignalHandling(
	ctx context.Context,
	manager *component.Manager,
	router *demux.Demux,
	shutdownTimeout time.Duration,
) error {
	signalCtx, signalCancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer signalCancel()

	attached := attachListeners(manager, router)
	slog.Info("Outputs attached to telemetry router", "count", attached)

	if err := manager.Start(signalCtx); err != nil {
		return fmt.Errorf("start components: %w", err)
	}
	slog.Info("MuseStreams started successfully (OSC telemetry flowing)")

	<-signalCtx.Done()
	slog.Info("Received shutdown signal")

	if err := manager.Stop(shutdownTimeout); err != nil {
		slog.Error("Error stopping components", "error", err)
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	slog.Info("MuseStreams shutdown complete")
	return nil
}
