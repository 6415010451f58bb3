package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/rezkam/mono/internal/config"
	"github.com/rezkam/mono/internal/engine"
	"github.com/rezkam/mono/internal/infrastructure/observability"
	"github.com/rezkam/mono/internal/infrastructure/persistence/postgres"
	"github.com/rezkam/mono/internal/storage/gcs"
)

// cmd/worker hosts the Poller + Executor + JobFinalizer loop (§4.6-§4.8):
// it never serves HTTP, and it is the only binary that ever touches the
// export procedure or object storage.
func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to run: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadWorkerConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	obsCfg := observability.Config{Enabled: cfg.Observability.OTelEnabled, ServiceName: cfg.Observability.ServiceName}

	lp, logger, err := observability.InitLogger(ctx, obsCfg)
	if err != nil {
		return fmt.Errorf("failed to init logger: %w", err)
	}
	defer shutdownWithTimeout(lp.Shutdown, "logger provider")
	slog.SetDefault(logger)

	tp, err := observability.InitTracerProvider(ctx, obsCfg)
	if err != nil {
		return fmt.Errorf("failed to init tracer provider: %w", err)
	}
	defer shutdownWithTimeout(tp.Shutdown, "tracer provider")

	mp, err := observability.InitMeterProvider(ctx, obsCfg)
	if err != nil {
		return fmt.Errorf("failed to init meter provider: %w", err)
	}
	defer shutdownWithTimeout(mp.Shutdown, "meter provider")

	workerID, err := workerIdentity()
	if err != nil {
		return fmt.Errorf("failed to determine worker identity: %w", err)
	}
	slog.InfoContext(ctx, "starting mono export worker", "worker_id", workerID)

	store, err := postgres.NewStoreWithConfig(ctx, postgres.DBConfig{
		DSN:             cfg.Database.DSN,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: time.Duration(cfg.Database.ConnMaxLifetime) * time.Second,
		ConnMaxIdleTime: time.Duration(cfg.Database.ConnMaxIdleTime) * time.Second,
	})
	if err != nil {
		return fmt.Errorf("failed to create store: %w", err)
	}

	objectStore, err := gcs.NewStore(ctx, cfg.ObjectStorage.Bucket)
	if err != nil {
		return fmt.Errorf("failed to create object store: %w", err)
	}
	defer func() {
		if err := objectStore.Close(); err != nil {
			slog.ErrorContext(ctx, "failed to close object store client", "error", err)
		}
	}()

	clock := engine.RealClock{}
	lease := engine.NewLeaseManager(store, clock, time.Duration(cfg.Lease.Seconds)*time.Second)
	retry := engine.NewRetryPolicy(engine.RetryConfig{
		MaxAttempts: cfg.Retry.MaxAttempts,
		BaseDelay:   cfg.Retry.BaseDelay,
		MaxDelay:    cfg.Retry.MaxDelay,
	})
	artifactIndex := engine.NewArtifactIndex(store, clock, engine.ReuseConfig{
		Enabled:  cfg.Reuse.Enabled,
		Days:     cfg.Reuse.Days,
		Location: cfg.Reuse.Location(),
	})
	exportSource := postgres.NewExportSource(store.Pool(), cfg.Export.ProcedureName)

	finalizer := engine.NewJobFinalizer(store, engine.FinalizerConfig{
		HolderID:     workerID,
		Interval:     cfg.Finalizer.Interval,
		RunLease:     cfg.Finalizer.RunLease,
		ScanPageSize: cfg.Finalizer.ScanPageSize,
	})

	executor := engine.NewExecutor(store, lease, artifactIndex, retry, exportSource, objectStore, finalizer, clock, engine.ExecutorConfig{
		WorkerID: workerID,
		BasePath: cfg.ObjectStorage.BasePath,
	})

	poller := engine.NewPoller(store, lease, executor, engine.PollerConfig{
		WorkerID:     workerID,
		BatchSize:    cfg.Poll.BatchSize,
		PollInterval: cfg.Poll.PollInterval,
		MaxInFlight:  cfg.Poll.MaxInFlight,
		DrainTimeout: cfg.Poll.DrainTimeout,
	})

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		if err := poller.Run(ctx); err != nil {
			slog.ErrorContext(ctx, "poller exited with error", "error", err)
		}
	}()
	go func() {
		defer wg.Done()
		if err := finalizer.Run(ctx); err != nil {
			slog.ErrorContext(ctx, "finalizer exited with error", "error", err)
		}
	}()

	<-ctx.Done()
	slog.InfoContext(ctx, "shutdown signal received, draining in-flight units", "worker_id", workerID)
	wg.Wait()
	slog.InfoContext(context.Background(), "worker stopped cleanly", "worker_id", workerID)
	return nil
}

// workerIdentity builds a per-process lease-owner identifier that is stable
// enough to show up usefully in logs and the dead-letter trail, but unique
// across concurrently running processes on the same host.
func workerIdentity() (string, error) {
	host, err := os.Hostname()
	if err != nil {
		host = "unknown-host"
	}
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate worker instance id: %w", err)
	}
	return fmt.Sprintf("%s-%d-%s", host, os.Getpid(), id.String()), nil
}

// shutdownWithTimeout runs an observability provider's Shutdown with a fixed
// grace period so a stalled collector never hangs process exit.
func shutdownWithTimeout(shutdown func(context.Context) error, what string) {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := shutdown(shutdownCtx); err != nil {
		slog.ErrorContext(shutdownCtx, "failed to shutdown "+what, "error", err)
	}
}
