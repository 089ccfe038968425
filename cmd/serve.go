package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/MC-Prison/PrisonRanks/internal/adapters/http/api"
	service "github.com/MC-Prison/PrisonRanks/internal/app"
	"github.com/MC-Prison/PrisonRanks/internal/command"
	"github.com/MC-Prison/PrisonRanks/pkg/logger"
	"github.com/MC-Prison/PrisonRanks/pkg/metrics"
	"github.com/spf13/cobra"
)

// HTTP server timeout constants.
const (
	readTimeout            = 10 * time.Second
	writeTimeout           = 10 * time.Second
	idleTimeout            = 60 * time.Second
	readHeaderTimeout      = 5 * time.Second
	shutdownTimeout        = 30 * time.Second
	systemMetricsInterval  = 10 * time.Second
	serviceMetricsInterval = 5 * time.Second
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the ranks HTTP API",
		Long: `Load ranks, ladders and players from the configured store and serve
the JSON API, the command endpoint and Prometheus metrics until interrupted.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			deps, err := bootstrap(cmd)
			if err != nil {
				return err
			}
			defer deps.Close()
			return serve(cmd.Context(), deps)
		},
	}
}

// newHandler builds the API mux over svc.
func newHandler(svc *service.Service, log logger.Logger) http.Handler {
	mux := http.NewServeMux()
	table := command.NewRanksTable(svc, command.WithLogger(log.Named("command")))
	api.NewServer(svc, svc, table).Register(mux)
	return mux
}

func serve(ctx context.Context, deps *runtimeDeps) error {
	log := deps.log

	go startSystemMetricsUpdater(ctx)
	go startServiceMetricsUpdater(ctx, deps.svc)

	srv := &http.Server{
		Addr:              deps.cfg.Addr,
		Handler:           newHandler(deps.svc, log),
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", deps.cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("HTTP server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(shutdownCtx, "server shutdown failed", logger.Error(err))
	}
	log.Info(shutdownCtx, "server stopped")
	return nil
}

// startSystemMetricsUpdater periodically records memory and goroutine gauges.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

// startServiceMetricsUpdater periodically refreshes the service gauges.
func startServiceMetricsUpdater(ctx context.Context, svc *service.Service) {
	ticker := time.NewTicker(serviceMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// GetStats refreshes the queue and worker gauges.
			_ = svc.GetStats()
		}
	}
}

func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())
}
