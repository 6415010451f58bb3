package config

import (
	"fmt"
	"time"

	"github.com/rezkam/mono/internal/env"
)

// WorkerConfig holds all configuration for the poller/executor/finalizer binary.
type WorkerConfig struct {
	Database      DatabaseConfig
	ObjectStorage ObjectStorageConfig
	Observability ObservabilityConfig
	Poll          PollConfig
	Lease         LeaseConfig
	Retry         RetryConfig
	Reuse         ReuseConfig
	Finalizer     FinalizerConfig
	Export        ExportConfig
}

// ExportConfig names the database export procedure the ExportSource adapter
// invokes for every GENERATE unit (§6 "Export procedure").
type ExportConfig struct {
	ProcedureName string `env:"MONO_EXPORT_PROCEDURE_NAME"`
}

// PollConfig governs the Poller loop (worker.poll.batchSize, worker.poll.intervalMs,
// worker.maxInFlight). PollInterval and DrainTimeout are Go duration strings
// (e.g. "2s"), parsed by env.Load's time.Duration support.
type PollConfig struct {
	BatchSize    int           `env:"MONO_WORKER_POLL_BATCH_SIZE"`
	PollInterval time.Duration `env:"MONO_WORKER_POLL_INTERVAL"`
	MaxInFlight  int           `env:"MONO_WORKER_MAX_IN_FLIGHT"`
	DrainTimeout time.Duration `env:"MONO_WORKER_DRAIN_TIMEOUT"`
}

// LeaseConfig governs the claim lease duration (worker.lease.seconds).
type LeaseConfig struct {
	Seconds int `env:"MONO_WORKER_LEASE_SECONDS"`
}

// RetryConfig governs RetryPolicy's bounded exponential backoff with full
// jitter (retry.maxAttempts, retry.baseDelayMs, retry.maxDelayMs). BaseDelay
// and MaxDelay are Go duration strings (e.g. "1s", "2m").
type RetryConfig struct {
	MaxAttempts int           `env:"MONO_RETRY_MAX_ATTEMPTS"`
	BaseDelay   time.Duration `env:"MONO_RETRY_BASE_DELAY"`
	MaxDelay    time.Duration `env:"MONO_RETRY_MAX_DELAY"`
}

// ReuseConfig governs the ArtifactIndex reuse decision (file.reuse.enabled,
// file.reuse.days, timezone).
type ReuseConfig struct {
	Enabled  bool   `env:"MONO_FILE_REUSE_ENABLED"`
	Days     int    `env:"MONO_FILE_REUSE_DAYS"`
	Timezone string `env:"MONO_TIMEZONE"`
}

// FinalizerConfig governs the periodic JobFinalizer sweep cadence
// (finalizer.intervalMs) and its exclusive-run lease window.
type FinalizerConfig struct {
	Interval     time.Duration `env:"MONO_FINALIZER_INTERVAL"`
	RunLease     time.Duration `env:"MONO_FINALIZER_RUN_LEASE"`
	ScanPageSize int           `env:"MONO_FINALIZER_SCAN_PAGE_SIZE"`
}

// LoadWorkerConfig loads and validates worker configuration from environment,
// applying the same defaults a freshly provisioned worker process would need
// to run safely without every operator having to set every knob.
func LoadWorkerConfig() (*WorkerConfig, error) {
	cfg := &WorkerConfig{}

	if err := env.Load(cfg); err != nil {
		return nil, fmt.Errorf("failed to load worker config: %w", err)
	}

	if cfg.Poll.BatchSize <= 0 {
		cfg.Poll.BatchSize = 50
	}
	if cfg.Poll.PollInterval <= 0 {
		cfg.Poll.PollInterval = 2 * time.Second
	}
	if cfg.Poll.MaxInFlight <= 0 {
		cfg.Poll.MaxInFlight = 8
	}
	if cfg.Poll.DrainTimeout <= 0 {
		cfg.Poll.DrainTimeout = 30 * time.Second
	}
	if cfg.Lease.Seconds <= 0 {
		cfg.Lease.Seconds = 300
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry.MaxAttempts = 5
	}
	if cfg.Retry.BaseDelay <= 0 {
		cfg.Retry.BaseDelay = time.Second
	}
	if cfg.Retry.MaxDelay <= 0 {
		cfg.Retry.MaxDelay = 2 * time.Minute
	}
	if cfg.Reuse.Days <= 0 {
		cfg.Reuse.Days = 7
	}
	if cfg.Reuse.Timezone == "" {
		cfg.Reuse.Timezone = "UTC"
	}
	if cfg.Finalizer.Interval <= 0 {
		cfg.Finalizer.Interval = 10 * time.Second
	}
	if cfg.Finalizer.RunLease <= 0 {
		cfg.Finalizer.RunLease = 8 * time.Second
	}
	if cfg.Finalizer.ScanPageSize <= 0 {
		cfg.Finalizer.ScanPageSize = 500
	}
	if cfg.Export.ProcedureName == "" {
		cfg.Export.ProcedureName = "export_rows"
	}

	return cfg, nil
}

// Location resolves the configured timezone name into a *time.Location,
// defaulting to UTC if the name is empty or unrecognized — ArtifactIndex's
// "today" computation must never silently operate in the server's local zone.
func (c ReuseConfig) Location() *time.Location {
	if c.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
