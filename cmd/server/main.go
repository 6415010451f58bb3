package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rezkam/mono/internal/config"
	"github.com/rezkam/mono/internal/engine"
	monohttp "github.com/rezkam/mono/internal/http"
	"github.com/rezkam/mono/internal/infrastructure/observability"
	"github.com/rezkam/mono/internal/infrastructure/persistence/postgres"
)

// cmd/server hosts the synchronous submission/status/admin HTTP surface
// (§6): it never touches the export procedure or object storage, and never
// runs Poller or JobFinalizer — those belong to cmd/worker.
func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to run: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadServerConfig()
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

	slog.InfoContext(ctx, "starting mono export-submission server")

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

	clock := engine.RealClock{}
	submission := engine.NewSubmission(store, clock, engine.SubmissionConfig{
		MaxUnitsPerJob: cfg.Submission.MaxUnitsPerJob,
	})
	admin := engine.NewAdmin(store)

	handler := monohttp.NewHandler(submission, admin)
	router := monohttp.NewRouter(handler, monohttp.Config{MaxBodyBytes: cfg.HTTP.MaxBodyBytes})

	httpServer := &http.Server{
		Addr:              cfg.HTTP.Host + ":" + cfg.HTTP.Port,
		Handler:           router,
		ReadTimeout:       cfg.HTTP.ReadTimeout,
		WriteTimeout:      cfg.HTTP.WriteTimeout,
		IdleTimeout:       cfg.HTTP.IdleTimeout,
		ReadHeaderTimeout: cfg.HTTP.ReadHeaderTimeout,
		MaxHeaderBytes:    cfg.HTTP.MaxHeaderBytes,
	}

	errResult := make(chan error, 1)
	go func() {
		slog.InfoContext(ctx, "http server listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errResult <- fmt.Errorf("failed to serve http: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		slog.InfoContext(ctx, "shutting down")
		shutdownCtx, cancel := newShutdownContext(cfg.ShutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			slog.WarnContext(shutdownCtx, "http server shutdown timed out, forcing close", "error", err)
			_ = httpServer.Close()
		}
		return nil
	case err := <-errResult:
		return err
	}
}

func newShutdownContext(timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return context.WithTimeout(context.Background(), timeout)
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
