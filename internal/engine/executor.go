package engine

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/rezkam/mono/internal/domain"
)

// FastPathCompleter is the narrow slice of JobFinalizer the Executor depends
// on for opportunistic completion after a terminal unit transition.
type FastPathCompleter interface {
	TryComplete(ctx context.Context, jobID string) error
}

// ExecutorConfig bundles the handful of values Execute needs beyond its
// collaborators.
type ExecutorConfig struct {
	WorkerID string
	BasePath string
}

// Executor executes exactly one unit to terminal state: reuse-or-generate,
// stream rows to CSV, upload, finalize — grounded in the teacher's
// generation_worker.go claim -> heartbeat -> execute -> complete-or-handleError
// pipeline, generalized from recurring-task generation to export-unit
// execution.
type Executor struct {
	store     Store
	lease     *LeaseManager
	index     *ArtifactIndex
	retry     RetryPolicy
	source    ExportSource
	objects   ObjectStore
	finalizer FastPathCompleter
	cfg       ExecutorConfig
	clock     Clock
}

func NewExecutor(store Store, lease *LeaseManager, index *ArtifactIndex, retry RetryPolicy, source ExportSource, objects ObjectStore, finalizer FastPathCompleter, clock Clock, cfg ExecutorConfig) *Executor {
	return &Executor{
		store:     store,
		lease:     lease,
		index:     index,
		retry:     retry,
		source:    source,
		objects:   objects,
		finalizer: finalizer,
		cfg:       cfg,
		clock:     clock,
	}
}

// Execute runs unit to a terminal (or scheduled-retry) state. The returned
// error is for logging/metrics only — every outcome, including failure, is
// already durably recorded by the time Execute returns.
func (e *Executor) Execute(ctx context.Context, unit domain.Unit) error {
	stopHeartbeat := e.startHeartbeat(ctx, unit.ID)
	defer stopHeartbeat()

	err := e.executeWithRecovery(ctx, unit)
	if err == nil {
		e.tryFastPathComplete(ctx, unit.JobID)
		return nil
	}

	return e.handleFailure(ctx, unit, err)
}

// executeWithRecovery converts a panic during export/streaming into a
// PanicError so it is routed through the same terminal-state machine as any
// other permanent error, instead of killing the worker process.
func (e *Executor) executeWithRecovery(ctx context.Context, unit domain.Unit) (execErr error) {
	defer func() {
		if p := recover(); p != nil {
			execErr = PanicError{Value: p, StackTrace: string(debug.Stack())}
		}
	}()
	return e.run(ctx, unit)
}

func (e *Executor) run(ctx context.Context, unit domain.Unit) error {
	job, err := e.store.GetJob(ctx, unit.JobID)
	if err != nil {
		return Transient(fmt.Errorf("job guard lookup: %w", err))
	}
	if job != nil && job.Status.IsTerminal() {
		return JobTerminalError{}
	}

	effDate, err := domain.NewEffectiveDate(unit.EffectiveDate)
	if err != nil {
		return err // malformed data at this point is a programming error, not transient
	}

	decision, err := e.index.Decide(ctx, unit.NaturalKey(), effDate)
	if err != nil {
		return Transient(fmt.Errorf("artifact lookup: %w", err))
	}

	if decision.Reuse {
		ok, err := e.store.MarkSucceededReused(ctx, unit.ID, e.cfg.WorkerID, decision.S3Path)
		if err != nil {
			return Transient(fmt.Errorf("mark succeeded reused: %w", err))
		}
		if !ok {
			slog.WarnContext(ctx, "lost unit ownership marking reuse", "input_id", unit.ID, "worker_id", e.cfg.WorkerID)
		}
		return nil
	}

	path := domain.ObjectPath(e.cfg.BasePath, effDate, unit.IndexKey, unit.AsofIndicator, unit.JobID)

	if err := e.generateAndUpload(ctx, unit, path); err != nil {
		return err
	}

	if err := e.store.UpsertArtifact(ctx, domain.Artifact{
		IndexKey:      unit.IndexKey,
		EffectiveDate: unit.EffectiveDate,
		AsofIndicator: unit.AsofIndicator,
		S3Path:        path,
		SourceJobID:   unit.JobID,
		GeneratedAt:   e.clock.Now(),
	}); err != nil {
		return Transient(fmt.Errorf("upsert artifact: %w", err))
	}

	ok, err := e.store.MarkSucceededGenerated(ctx, unit.ID, e.cfg.WorkerID, path)
	if err != nil {
		return Transient(fmt.Errorf("mark succeeded generated: %w", err))
	}
	if !ok {
		slog.WarnContext(ctx, "lost unit ownership marking generated", "input_id", unit.ID, "worker_id", e.cfg.WorkerID)
	}
	return nil
}

// generateAndUpload invokes the export procedure and streams every row as a
// CSV line directly into the object-storage writer. Rows are never fully
// materialized: csv.Writer is fed one row at a time from the cursor, and the
// object-storage upload happens outside any database transaction.
func (e *Executor) generateAndUpload(ctx context.Context, unit domain.Unit, path string) error {
	rows, err := e.source.Stream(ctx, unit.IndexKey, unit.EffectiveDate, unit.AsofIndicator)
	if err != nil {
		return Transient(fmt.Errorf("export procedure: %w", err))
	}
	defer rows.Close()

	writer, err := e.objects.NewWriter(ctx, path)
	if err != nil {
		return Transient(fmt.Errorf("open object writer: %w", err))
	}

	bw := bufio.NewWriter(writer)
	csvw := csv.NewWriter(bw)

	for rows.Next() {
		if err := csvw.Write(rows.Values()); err != nil {
			_ = writer.Close()
			return Transient(fmt.Errorf("write csv row: %w", err))
		}
	}
	if err := rows.Err(); err != nil {
		_ = writer.Close()
		return Transient(fmt.Errorf("stream export rows: %w", err))
	}

	csvw.Flush()
	if err := csvw.Error(); err != nil {
		_ = writer.Close()
		return Transient(fmt.Errorf("flush csv: %w", err))
	}
	if err := bw.Flush(); err != nil {
		_ = writer.Close()
		return Transient(fmt.Errorf("flush object writer buffer: %w", err))
	}

	// Close is the durability boundary: the unit is successful only once this
	// returns nil. A crash before this point leaves the unit RUNNING until
	// lease expiry, at which point another worker re-runs and overwrites the
	// same deterministic path — the second write is idempotent.
	if err := writer.Close(); err != nil {
		return Transient(fmt.Errorf("close object writer: %w", err))
	}
	return nil
}

// handleFailure classifies err and either schedules a retry or moves the
// unit to DLQ (which fails the job, fail-fast). A job-terminal short-circuit
// always routes to DLQ with reason "job-terminal" regardless of classification.
func (e *Executor) handleFailure(ctx context.Context, unit domain.Unit, execErr error) error {
	if IsJobTerminal(execErr) {
		return e.moveToDLQ(ctx, unit, "job-terminal")
	}

	if IsPanic(execErr) {
		var panicErr PanicError
		errors.As(execErr, &panicErr)
		slog.ErrorContext(ctx, "unit execution panicked",
			"input_id", unit.ID, "job_id", unit.JobID, "panic", panicErr.Value, "stack", panicErr.StackTrace)
		return e.moveToDLQ(ctx, unit, panicErr.Error())
	}

	class := e.retry.Classify(execErr)
	decision := e.retry.Decide(class, unit.AttemptCount, e.clock.Now())

	if decision.Retry {
		ok, err := e.store.ScheduleRetry(ctx, unit.ID, e.cfg.WorkerID, decision.NextRetryAt, execErr.Error())
		if err != nil {
			return fmt.Errorf("schedule retry: %w", err)
		}
		if !ok {
			slog.WarnContext(ctx, "lost unit ownership scheduling retry", "input_id", unit.ID, "worker_id", e.cfg.WorkerID)
		}
		return nil
	}

	return e.moveToDLQ(ctx, unit, execErr.Error())
}

func (e *Executor) moveToDLQ(ctx context.Context, unit domain.Unit, reason string) error {
	ok, err := e.store.MoveToDLQ(ctx, unit, e.cfg.WorkerID, reason)
	if err != nil {
		return fmt.Errorf("move to dlq: %w", err)
	}
	if !ok {
		slog.WarnContext(ctx, "lost unit ownership moving to dlq", "input_id", unit.ID, "worker_id", e.cfg.WorkerID)
		return nil
	}
	e.tryFastPathComplete(ctx, unit.JobID)
	return nil
}

func (e *Executor) tryFastPathComplete(ctx context.Context, jobID string) {
	if err := e.finalizer.TryComplete(ctx, jobID); err != nil {
		slog.WarnContext(ctx, "fast-path job completion failed, periodic finalizer will converge", "job_id", jobID, "error", err)
	}
}

// startHeartbeat renews the unit's lease at leaseSeconds/2 for as long as the
// unit is being executed, so a slow-but-alive export call is not mistaken for
// a crashed worker. A failed heartbeat is logged only: the next tick, or
// eventual lease expiry, resolves the state.
func (e *Executor) startHeartbeat(ctx context.Context, inputID string) func() {
	interval := e.lease.HeartbeatInterval()
	if interval <= 0 {
		return func() {}
	}

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				ok, err := e.lease.Renew(ctx, inputID, e.cfg.WorkerID)
				if err != nil {
					slog.WarnContext(ctx, "lease renewal failed", "input_id", inputID, "error", err)
					continue
				}
				if !ok {
					slog.WarnContext(ctx, "lease renewal found ownership already lost", "input_id", inputID)
				}
			}
		}
	}()

	return func() {
		close(stop)
		wg.Wait()
	}
}
