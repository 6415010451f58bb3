package engine

import (
	"context"
	"time"

	"github.com/rezkam/mono/internal/domain"
)

// Store is the transactional interface over the relational database that the
// coordination engine depends on. It is owned by this package (the consumer),
// not by the storage implementation, so that Submission/Executor/Poller/
// JobFinalizer/Admin can be tested against a hand-rolled fake without pulling
// in a real database — mirrors the interface-segregation the teacher applies
// to worker.Repository / worker.GenerationCoordinator.
//
// Every mutation that can be raced by another worker is a conditional update
// returning the number of rows affected; a zero-row result is not an error,
// it is the signal that the unit was stolen, its lease expired, or it already
// reached a terminal state.
type Store interface {
	// CreateJob inserts one Job row and all Unit rows (PENDING, attempt 0) in
	// a single transaction. Returns domain.ErrJobKeyConflict if job.JobKey
	// already exists. CreateJob does not check the unit cap itself; Submission
	// rejects oversized requests with domain.ErrTooManyUnits before calling it.
	CreateJob(ctx context.Context, job domain.Job, units []domain.Unit) error

	// SelectEligible returns up to limit unit ids whose parent job is
	// non-terminal and which are PENDING, RETRY_WAIT with next_retry_at <= now,
	// or whose lease has expired (lease_until <= now). Ordered oldest job first
	// (requested_at ascending), then by input_id.
	SelectEligible(ctx context.Context, limit int, now time.Time) ([]string, error)

	// TryClaim atomically verifies eligibility and transitions a unit to
	// RUNNING under workerID's lease. Returns true iff exactly one row was
	// affected.
	TryClaim(ctx context.Context, inputID, workerID string, leaseUntil time.Time, now time.Time) (bool, error)

	// RenewLease extends lease_until while lease_owner = workerID. Returns
	// false (not an error) if ownership was lost.
	RenewLease(ctx context.Context, inputID, workerID string, leaseUntil time.Time) (bool, error)

	// MarkSucceededReused transitions RUNNING -> SUCCEEDED with is_reused=true
	// under the lease_owner guard.
	MarkSucceededReused(ctx context.Context, inputID, workerID, s3Path string) (bool, error)

	// MarkSucceededGenerated transitions RUNNING -> SUCCEEDED with
	// is_reused=false under the lease_owner guard.
	MarkSucceededGenerated(ctx context.Context, inputID, workerID, s3Path string) (bool, error)

	// ScheduleRetry transitions RUNNING -> RETRY_WAIT, clears the lease, and
	// records nextRetryAt/errorMessage, under the lease_owner guard.
	ScheduleRetry(ctx context.Context, inputID, workerID string, nextRetryAt time.Time, errMsg string) (bool, error)

	// MoveToDLQ transitions RUNNING -> DLQ under the lease_owner guard, inserts
	// the corresponding dead-letter record, and fails the parent job
	// (fail-fast) in the same transaction.
	MoveToDLQ(ctx context.Context, unit domain.Unit, workerID, errMsg string) (bool, error)

	// LookupArtifact returns the artifact registered for the natural key, or
	// nil if none exists.
	LookupArtifact(ctx context.Context, key domain.NaturalKey) (*domain.Artifact, error)

	// UpsertArtifact inserts or updates (on natural-key conflict) the artifact
	// row's s3_path/source_job_id/generated_at.
	UpsertArtifact(ctx context.Context, artifact domain.Artifact) error

	// FailJob is idempotent: no-op if the job is already FAILED or CANCELLED.
	FailJob(ctx context.Context, jobID, errMsg string) error

	// CancelJob marks a non-terminal job CANCELLED. Returns
	// domain.ErrJobNotCancellable if the job is already terminal.
	CancelJob(ctx context.Context, jobID string) error

	// TryCompleteJob applies the Complete guard predicate of JobFinalizer:
	// all units SUCCEEDED, none DLQ/PENDING/RUNNING/RETRY_WAIT. Idempotent.
	TryCompleteJob(ctx context.Context, jobID string) (bool, error)

	// TryFailJobFromDLQ applies the Fail guard predicate: any unit DLQ.
	// Idempotent; must be evaluated before TryCompleteJob by the periodic
	// finalizer so a DLQ is never masked by a late completion.
	TryFailJobFromDLQ(ctx context.Context, jobID string) (bool, error)

	// ResetUnitForRedrive moves a DLQ unit back to PENDING with
	// attempt_count=0, error_message=null, clearing lease fields.
	ResetUnitForRedrive(ctx context.Context, inputID string) error

	// JobCounts returns the aggregate projection by a single query.
	JobCounts(ctx context.Context, jobID string) (domain.JobCounts, error)

	// JobDetail returns the Job plus all of its Units.
	JobDetail(ctx context.Context, jobID string) (domain.JobDetail, error)

	// JobByKey resolves a client-visible job_key to its Job row, used by
	// Admin's lookups keyed on the client-visible handle.
	JobByKey(ctx context.Context, jobKey string) (*domain.Job, error)

	// GetJob returns the Job row by id. Executor's job guard (§4.5 step 1)
	// uses this to check whether the parent job is already terminal before
	// attempting any export work.
	GetJob(ctx context.Context, jobID string) (*domain.Job, error)

	// GetUnit returns the full Unit row by id, used by Poller to hydrate a
	// just-claimed input_id before dispatching it to Executor.
	GetUnit(ctx context.Context, inputID string) (*domain.Unit, error)

	// ListDeadLetterRecords returns up to limit unresolved dead-letter records.
	ListDeadLetterRecords(ctx context.Context, limit int) ([]domain.DeadLetterRecord, error)

	// ResolveDeadLetterRecord marks a dead-letter record resolved with the
	// given resolution ("redriven" | "discarded"). The note argument is
	// accepted but the postgres implementation does not store it.
	ResolveDeadLetterRecord(ctx context.Context, inputID, resolution, note string) error

	// NextJobSequence atomically allocates the next per-day sequence number
	// used to build the job_key convention "J<YYYYMMDD>_<seq>".
	NextJobSequence(ctx context.Context, yyyymmdd string) (int, error)

	// ListNonTerminalJobIDs returns up to limit job ids not yet COMPLETED,
	// FAILED, or CANCELLED, for the periodic JobFinalizer sweep.
	ListNonTerminalJobIDs(ctx context.Context, limit int) ([]string, error)

	// TryAcquireExclusiveRun is the run-lease used by the periodic
	// JobFinalizer so only one worker process runs the full reconciliation
	// scan per tick; this is a throughput optimization, not a correctness
	// requirement; it is safe for it to never succeed.
	TryAcquireExclusiveRun(ctx context.Context, runType, holderID string, leaseDuration time.Duration) (release func(), acquired bool, err error)
}
