package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/cuemby/edgerun/pkg/admitter"
	"github.com/cuemby/edgerun/pkg/config"
	"github.com/cuemby/edgerun/pkg/events"
	"github.com/cuemby/edgerun/pkg/log"
	"github.com/cuemby/edgerun/pkg/metrics"
	"github.com/cuemby/edgerun/pkg/pool"
	"github.com/cuemby/edgerun/pkg/types"
	"github.com/cuemby/edgerun/pkg/worker"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the edgerun pool, events worker, metrics server and HTTP admitter",
	Long: `serve boots the Worker Pool and an Event Worker, exposes Prometheus
metrics and health probes, and fronts the pool with a reference HTTP
admitter that maps a URL path prefix to a service bundle.

Examples:
  # Start edgerun listening on the defaults
  edgerun serve

  # Preboot a fixed set of user workers from a manifest
  edgerun serve --manifest services.yaml`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("addr", "127.0.0.1:8000", "Address for the HTTP admitter")
	serveCmd.Flags().String("metrics-addr", "127.0.0.1:9090", "Address for the metrics/health server")
	serveCmd.Flags().String("manifest", "", "YAML manifest of user workers to preboot")
}

func runServe(cmd *cobra.Command, _ []string) error {
	addr, _ := cmd.Flags().GetString("addr")
	metricsAddr, _ := cmd.Flags().GetString("metrics-addr")
	manifestPath, _ := cmd.Flags().GetString("manifest")

	logger := log.WithComponent("cmd")

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

	metrics.SetVersion(Version)
	metrics.RegisterComponent("pool", false, "starting")
	metrics.RegisterComponent("engine", false, "starting")

	eventsHost, _, eventsBoot := worker.BootEventWorker(
		context.Background(),
		types.WorkerInitOpts{},
		defaultEngineConstructor(),
		broker,
	)
	select {
	case res := <-eventsBoot:
		if res.Err != nil {
			return fmt.Errorf("edgerun: booting events worker: %w", res.Err)
		}
	case <-time.After(10 * time.Second):
		return fmt.Errorf("edgerun: events worker boot timed out")
	}
	defer eventsHost.RequestInbox().Close()
	metrics.RegisterComponent("engine", true, "ready")

	p := pool.New(defaultEngineConstructor(), broker)
	defer p.Close()
	metrics.RegisterComponent("pool", true, "ready")

	if manifestPath != "" {
		if err := preboot(p, manifestPath, logger); err != nil {
			return err
		}
	}

	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		mux.Handle("/health", metrics.HealthHandler())
		mux.Handle("/ready", metrics.ReadyHandler())
		mux.Handle("/live", metrics.LivenessHandler())
		logger.Info().Str("addr", metricsAddr).Msg("metrics server listening")
		if err := http.ListenAndServe(metricsAddr, mux); err != nil {
			logger.Error().Err(err).Msg("metrics server error")
		}
	}()

	admitterErrCh := make(chan error, 1)
	go func() {
		a := admitter.New(p)
		logger.Info().Str("addr", addr).Msg("admitter listening")
		if err := http.ListenAndServe(addr, a); err != nil {
			admitterErrCh <- fmt.Errorf("admitter server error: %w", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigCh:
		logger.Info().Msg("shutting down")
	case err := <-admitterErrCh:
		logger.Error().Err(err).Msg("admitter failed")
		return err
	}

	return nil
}

// preboot eagerly creates every service listed in the manifest at path.
func preboot(p *pool.Pool, path string, logger zerolog.Logger) error {
	m, err := config.LoadManifest(path)
	if err != nil {
		return err
	}

	for _, svc := range m.Services {
		key, err := p.Create(context.Background(), svc.WorkerInitOpts())
		if err != nil {
			return fmt.Errorf("edgerun: prebooting %q: %w", svc.ServicePath, err)
		}
		logger.Info().Str("service_path", svc.ServicePath).Uint64("worker_key", uint64(key)).Msg("preboot worker ready")
	}

	return nil
}
