package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MC-Prison/PrisonRanks/internal/adapters/storage"
	service "github.com/MC-Prison/PrisonRanks/internal/app"
	"github.com/MC-Prison/PrisonRanks/internal/config"
	"github.com/MC-Prison/PrisonRanks/pkg/logger"
	"github.com/MC-Prison/PrisonRanks/pkg/metrics"
	"github.com/spf13/cobra"
)

func main() {
	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

// newRootCmd creates the root command. Configuration flags are persistent
// so every subcommand layers them over the file and environment.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "prisonranks",
		Short:        "Rank ladders and rank-ups for prison game servers",
		SilenceUsage: true,
	}
	config.BindFlags(cmd.PersistentFlags())

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newExecCmd())
	return cmd
}

// runtimeDeps is what every subcommand needs once configuration is loaded.
type runtimeDeps struct {
	cfg   *config.Config
	store storage.Store
	svc   *service.Service
	log   logger.Logger
}

func (d *runtimeDeps) Close() {
	d.svc.Stop()
	if err := d.store.Close(); err != nil {
		d.log.Error(context.Background(), "close store", logger.Error(err))
	}
}

// bootstrap loads configuration, initializes logging and metrics, opens the
// store and starts the service.
func bootstrap(cmd *cobra.Command) (*runtimeDeps, error) {
	ctx := cmd.Context()

	cfg, err := config.Load(ctx, cmd.Flags())
	if err != nil {
		return nil, err
	}

	if err := logger.Init(logger.WithFormat(cfg.LogFormat), logger.WithOutput(cmd.ErrOrStderr())); err != nil {
		return nil, fmt.Errorf("failed to initialize logging: %w", err)
	}
	log := logger.Get()
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	metrics.Init(
		metrics.WithMetricsEnabled(cfg.MetricsEnabled),
		metrics.WithNamespace(cfg.MetricsNamespace),
		metrics.WithSubsystem(cfg.MetricsSubsystem),
		metrics.WithCustomLabels(cfg.MetricsLabels),
	)

	store, err := openStore(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	// Validate already checked the starting balance.
	starting, _ := cfg.StartingBalanceDecimal()
	svc := service.New(
		service.WithStore(store),
		service.WithLogger(log),
		service.WithWorkerCount(cfg.WorkerCount),
		service.WithQueueSize(cfg.CommandQueueSize),
		service.WithDedupeSize(cfg.DedupeSize),
		service.WithStartingBalance(starting),
	)
	if err := svc.Start(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to start service: %w", err)
	}
	return &runtimeDeps{cfg: cfg, store: store, svc: svc, log: log}, nil
}

// openStore selects the store for the configured dialect. SQL stores are
// wrapped so transient failures are retried.
func openStore(ctx context.Context, cfg *config.Config, log logger.Logger) (storage.Store, error) {
	var (
		inner storage.Store
		err   error
	)
	switch cfg.StoreDialect {
	case config.DialectMemory:
		log.Warn(ctx, "using in-memory store; state is lost on exit")
		return storage.NewMemStore(), nil
	case config.DialectSQLite:
		inner, err = storage.OpenSQL(ctx, storage.DialectSQLite, cfg.SQLitePath)
	case config.DialectPostgres:
		inner, err = storage.OpenSQL(ctx, storage.DialectPostgres, cfg.PostgresDSN)
	default:
		return nil, fmt.Errorf("%w: %q", storage.ErrUnsupportedDialect, cfg.StoreDialect)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.StoreDialect, err)
	}
	log.Info(ctx, "store opened", logger.String("dialect", cfg.StoreDialect))
	return storage.NewRetrying(inner,
		storage.WithMaxRetries(cfg.StoreRetries),
		storage.WithBaseDelay(time.Duration(cfg.StoreRetryBaseMS)*time.Millisecond),
		storage.WithLogger(log.Named("store")),
	), nil
}
