package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// FinalizerConfig governs the periodic reconciliation cadence
// (finalizer.intervalMs) and the run-lease window used to keep the full scan
// single-flight across worker processes.
type FinalizerConfig struct {
	HolderID     string
	Interval     time.Duration
	RunLease     time.Duration
	ScanPageSize int
}

// JobFinalizer drives jobs to COMPLETED or FAILED. TryComplete is the fast
// path invoked by Executor right after a terminal unit transition; Run is
// the periodic sweep that converges any job the fast path missed (a crashed
// worker, a dropped fast-path call, concurrent finalizers racing).
//
// The Fail guard (any unit DLQ) is always evaluated before the Complete
// guard, so a job that reached DLQ on one unit is never masked by a
// same-tick completion on the rest.
type JobFinalizer struct {
	store Store
	cfg   FinalizerConfig
}

func NewJobFinalizer(store Store, cfg FinalizerConfig) *JobFinalizer {
	return &JobFinalizer{store: store, cfg: cfg}
}

// TryComplete evaluates the Fail guard then the Complete guard for one job.
// Both are idempotent no-ops once the job is already terminal.
func (f *JobFinalizer) TryComplete(ctx context.Context, jobID string) error {
	failed, err := f.store.TryFailJobFromDLQ(ctx, jobID)
	if err != nil {
		return fmt.Errorf("fail guard: %w", err)
	}
	if failed {
		return nil
	}

	if _, err := f.store.TryCompleteJob(ctx, jobID); err != nil {
		return fmt.Errorf("complete guard: %w", err)
	}
	return nil
}

// Run blocks, sweeping non-terminal jobs on every tick until ctx is
// cancelled. Each tick first attempts the run lease (§3/§4.8); losing the
// race is expected and silent, since the guard predicates themselves are
// safe under concurrent evaluation from multiple finalizers — the lease is
// a throughput optimization, not a correctness dependency.
func (f *JobFinalizer) Run(ctx context.Context) error {
	ticker := time.NewTicker(f.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := f.sweepOnce(ctx); err != nil {
				slog.ErrorContext(ctx, "finalizer sweep failed", "error", err)
			}
		}
	}
}

func (f *JobFinalizer) sweepOnce(ctx context.Context) error {
	release, acquired, err := f.store.TryAcquireExclusiveRun(ctx, "job-finalizer", f.cfg.HolderID, f.cfg.RunLease)
	if err != nil {
		return fmt.Errorf("acquire run lease: %w", err)
	}
	if !acquired {
		return nil
	}
	defer release()

	candidates, err := f.store.ListNonTerminalJobIDs(ctx, f.cfg.ScanPageSize)
	if err != nil {
		return fmt.Errorf("list non-terminal jobs: %w", err)
	}

	for _, jobID := range candidates {
		if err := f.TryComplete(ctx, jobID); err != nil {
			slog.ErrorContext(ctx, "finalizer converge failed for job", "job_id", jobID, "error", err)
		}
	}
	return nil
}
