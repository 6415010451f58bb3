package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rezkam/mono/internal/domain"
	"github.com/rezkam/mono/internal/engine"
)

var _ engine.Store = (*Store)(nil)

// Store is the pgx-backed implementation of engine.Store. Every mutation
// that can race another worker is a single conditional UPDATE/INSERT whose
// affected-row count is the only signal the caller gets back; a zero-row
// result is reported as (false, nil), never as an error.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wraps an already-configured pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Pool returns the underlying connection pool so collaborators that need
// raw SQL access alongside the Store contract - the export-procedure
// adapter, in particular - can share the same pool rather than open a
// second one.
func (s *Store) Pool() *pgxpool.Pool {
	return s.pool
}

// CreateJob inserts the job row and all unit rows in one transaction.
func (s *Store) CreateJob(ctx context.Context, job domain.Job, units []domain.Unit) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO jobs (id, job_key, status, total_inputs, requested_at)
		VALUES ($1, $2, $3, $4, $5)`,
		job.ID, job.JobKey, string(job.Status), job.TotalInputs, job.RequestedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrJobKeyConflict
		}
		return fmt.Errorf("insert job: %w", err)
	}

	batch := &pgx.Batch{}
	for _, u := range units {
		batch.Queue(`
			INSERT INTO units (id, job_id, index_key, effective_date, asof_indicator, status, attempt_count)
			VALUES ($1, $2, $3, $4, $5, $6, 0)`,
			u.ID, u.JobID, u.IndexKey, u.EffectiveDate, u.AsofIndicator, string(u.Status))
	}
	br := tx.SendBatch(ctx, batch)
	for range units {
		if _, err := br.Exec(); err != nil {
			br.Close()
			if isUniqueViolation(err) {
				return fmt.Errorf("%w: duplicate unit natural key", domain.ErrFieldRequired)
			}
			return fmt.Errorf("insert unit: %w", err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("close unit batch: %w", err)
	}

	return tx.Commit(ctx)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// SelectEligible returns up to limit candidate input_ids in fair FIFO order.
func (s *Store) SelectEligible(ctx context.Context, limit int, now time.Time) ([]string, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT u.id
		FROM units u
		JOIN jobs j ON j.id = u.job_id
		WHERE j.status NOT IN ('COMPLETED', 'FAILED', 'CANCELLED')
		  AND (
		        u.status = 'PENDING'
		     OR (u.status = 'RETRY_WAIT' AND u.next_retry_at <= $2)
		     OR (u.status = 'RUNNING' AND u.lease_until <= $2)
		  )
		ORDER BY j.requested_at ASC, u.id ASC
		LIMIT $1`, limit, now)
	if err != nil {
		return nil, fmt.Errorf("select eligible: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan eligible row: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// TryClaim is the conditional lease-acquisition update: it re-checks
// eligibility in the WHERE clause so a unit claimed between SelectEligible
// and this call is rejected instead of double-claimed. On a winning claim it
// also stamps the parent job's started_at (once) and moves it SUBMITTED ->
// RUNNING, in the same round trip via a CTE so the two writes stay atomic.
func (s *Store) TryClaim(ctx context.Context, inputID, workerID string, leaseUntil time.Time, now time.Time) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		WITH claimed AS (
			UPDATE units
			SET status = 'RUNNING', lease_owner = $2, lease_until = $3, attempt_count = attempt_count + 1
			WHERE id = $1
			  AND (status = 'PENDING'
			       OR (status = 'RETRY_WAIT' AND next_retry_at <= $4)
			       OR (status = 'RUNNING' AND lease_until <= $4))
			RETURNING job_id
		)
		UPDATE jobs
		SET started_at = COALESCE(started_at, $4),
		    status = CASE WHEN status = 'SUBMITTED' THEN 'RUNNING' ELSE status END
		WHERE id IN (SELECT job_id FROM claimed)`,
		inputID, workerID, leaseUntil, now)
	if err != nil {
		return false, fmt.Errorf("try claim: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// RenewLease extends lease_until while lease_owner still matches.
func (s *Store) RenewLease(ctx context.Context, inputID, workerID string, leaseUntil time.Time) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE units SET lease_until = $3
		WHERE id = $1 AND status = 'RUNNING' AND lease_owner = $2`,
		inputID, workerID, leaseUntil)
	if err != nil {
		return false, fmt.Errorf("renew lease: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// MarkSucceededReused transitions RUNNING -> SUCCEEDED (reused), lease-guarded.
func (s *Store) MarkSucceededReused(ctx context.Context, inputID, workerID, s3Path string) (bool, error) {
	return s.markSucceeded(ctx, inputID, workerID, s3Path, true)
}

// MarkSucceededGenerated transitions RUNNING -> SUCCEEDED (generated), lease-guarded.
func (s *Store) MarkSucceededGenerated(ctx context.Context, inputID, workerID, s3Path string) (bool, error) {
	return s.markSucceeded(ctx, inputID, workerID, s3Path, false)
}

func (s *Store) markSucceeded(ctx context.Context, inputID, workerID, s3Path string, reused bool) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE units
		SET status = 'SUCCEEDED', s3_path = $3, is_reused = $4, lease_owner = NULL, lease_until = NULL, error_message = NULL
		WHERE id = $1 AND status = 'RUNNING' AND lease_owner = $2`,
		inputID, workerID, s3Path, reused)
	if err != nil {
		return false, fmt.Errorf("mark succeeded: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// ScheduleRetry transitions RUNNING -> RETRY_WAIT, clears the lease.
func (s *Store) ScheduleRetry(ctx context.Context, inputID, workerID string, nextRetryAt time.Time, errMsg string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE units
		SET status = 'RETRY_WAIT', next_retry_at = $3, error_message = $4, lease_owner = NULL, lease_until = NULL
		WHERE id = $1 AND status = 'RUNNING' AND lease_owner = $2`,
		inputID, workerID, nextRetryAt, errMsg)
	if err != nil {
		return false, fmt.Errorf("schedule retry: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// MoveToDLQ transitions RUNNING -> DLQ, inserts the dead-letter record, and
// fails the parent job (fail-fast), all within one transaction.
func (s *Store) MoveToDLQ(ctx context.Context, unit domain.Unit, workerID, errMsg string) (bool, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	now := time.Now().UTC()
	tag, err := tx.Exec(ctx, `
		UPDATE units
		SET status = 'DLQ', error_message = $3, lease_owner = NULL, lease_until = NULL
		WHERE id = $1 AND status = 'RUNNING' AND lease_owner = $2`,
		unit.ID, workerID, errMsg)
	if err != nil {
		return false, fmt.Errorf("move to dlq: %w", err)
	}
	if tag.RowsAffected() != 1 {
		return false, tx.Commit(ctx)
	}

	attemptCount, err := s.attemptCount(ctx, tx, unit.ID)
	if err != nil {
		return false, err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO dead_letter_units (input_id, job_id, index_key, effective_date, asof_indicator, error_message, attempt_count, failed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (input_id) DO UPDATE
		SET error_message = EXCLUDED.error_message, attempt_count = EXCLUDED.attempt_count,
		    failed_at = EXCLUDED.failed_at, resolved_at = NULL, resolution = NULL`,
		unit.ID, unit.JobID, unit.IndexKey, unit.EffectiveDate, unit.AsofIndicator, errMsg, attemptCount, now)
	if err != nil {
		return false, fmt.Errorf("insert dead letter record: %w", err)
	}

	if err := s.failJobTx(ctx, tx, unit.JobID, "One or more inputs moved to DLQ"); err != nil {
		return false, err
	}

	return true, tx.Commit(ctx)
}

func (s *Store) attemptCount(ctx context.Context, tx pgx.Tx, inputID string) (int, error) {
	var attemptCount int
	err := tx.QueryRow(ctx, `SELECT attempt_count FROM units WHERE id = $1`, inputID).Scan(&attemptCount)
	if err != nil {
		return 0, fmt.Errorf("read attempt count: %w", err)
	}
	return attemptCount, nil
}

// LookupArtifact returns the artifact row for key, or nil if none exists.
func (s *Store) LookupArtifact(ctx context.Context, key domain.NaturalKey) (*domain.Artifact, error) {
	var a domain.Artifact
	err := s.pool.QueryRow(ctx, `
		SELECT index_key, effective_date, asof_indicator, s3_path, source_job_id, generated_at
		FROM artifacts WHERE index_key = $1 AND effective_date = $2 AND asof_indicator = $3`,
		key.IndexKey, key.EffectiveDate, key.AsofIndicator,
	).Scan(&a.IndexKey, &a.EffectiveDate, &a.AsofIndicator, &a.S3Path, &a.SourceJobID, &a.GeneratedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup artifact: %w", err)
	}
	return &a, nil
}

// UpsertArtifact inserts or overwrites the artifact row on natural-key conflict.
func (s *Store) UpsertArtifact(ctx context.Context, artifact domain.Artifact) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO artifacts (index_key, effective_date, asof_indicator, s3_path, source_job_id, generated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (index_key, effective_date, asof_indicator) DO UPDATE
		SET s3_path = EXCLUDED.s3_path, source_job_id = EXCLUDED.source_job_id, generated_at = EXCLUDED.generated_at`,
		artifact.IndexKey, artifact.EffectiveDate, artifact.AsofIndicator, artifact.S3Path, artifact.SourceJobID, artifact.GeneratedAt)
	if err != nil {
		return fmt.Errorf("upsert artifact: %w", err)
	}
	return nil
}

// FailJob is idempotent: a no-op if the job is already terminal.
func (s *Store) FailJob(ctx context.Context, jobID, errMsg string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)
	if err := s.failJobTx(ctx, tx, jobID, errMsg); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *Store) failJobTx(ctx context.Context, tx pgx.Tx, jobID, errMsg string) error {
	_, err := tx.Exec(ctx, `
		UPDATE jobs SET status = 'FAILED', error_message = $2, completed_at = now()
		WHERE id = $1 AND status NOT IN ('COMPLETED', 'FAILED', 'CANCELLED')`,
		jobID, errMsg)
	if err != nil {
		return fmt.Errorf("fail job: %w", err)
	}
	return nil
}

// CancelJob marks a non-terminal job CANCELLED.
func (s *Store) CancelJob(ctx context.Context, jobID string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE jobs SET status = 'CANCELLED', completed_at = now()
		WHERE id = $1 AND status NOT IN ('COMPLETED', 'FAILED', 'CANCELLED')`,
		jobID)
	if err != nil {
		return fmt.Errorf("cancel job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrJobNotCancellable
	}
	return nil
}

// TryCompleteJob applies the Complete guard: all units SUCCEEDED, none
// DLQ/PENDING/RUNNING/RETRY_WAIT.
func (s *Store) TryCompleteJob(ctx context.Context, jobID string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE jobs SET status = 'COMPLETED', completed_at = now()
		WHERE id = $1
		  AND status NOT IN ('COMPLETED', 'FAILED', 'CANCELLED')
		  AND NOT EXISTS (
		        SELECT 1 FROM units
		        WHERE job_id = $1 AND status != 'SUCCEEDED'
		  )`, jobID)
	if err != nil {
		return false, fmt.Errorf("try complete job: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// TryFailJobFromDLQ applies the Fail guard: any unit DLQ.
func (s *Store) TryFailJobFromDLQ(ctx context.Context, jobID string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE jobs SET status = 'FAILED', error_message = 'One or more inputs moved to DLQ', completed_at = now()
		WHERE id = $1
		  AND status NOT IN ('COMPLETED', 'FAILED', 'CANCELLED')
		  AND EXISTS (
		        SELECT 1 FROM units WHERE job_id = $1 AND status = 'DLQ'
		  )`, jobID)
	if err != nil {
		return false, fmt.Errorf("try fail job from dlq: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// ResetUnitForRedrive moves a DLQ unit back to PENDING.
func (s *Store) ResetUnitForRedrive(ctx context.Context, inputID string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE units
		SET status = 'PENDING', attempt_count = 0, error_message = NULL,
		    lease_owner = NULL, lease_until = NULL, next_retry_at = NULL
		WHERE id = $1 AND status = 'DLQ'`, inputID)
	if err != nil {
		return fmt.Errorf("reset unit for redrive: %w", err)
	}
	return nil
}

// JobCounts computes the aggregate projection in a single query.
func (s *Store) JobCounts(ctx context.Context, jobID string) (domain.JobCounts, error) {
	var c domain.JobCounts
	err := s.pool.QueryRow(ctx, `
		SELECT
		  count(*),
		  count(*) FILTER (WHERE status = 'PENDING'),
		  count(*) FILTER (WHERE status = 'RUNNING'),
		  count(*) FILTER (WHERE status = 'RETRY_WAIT'),
		  count(*) FILTER (WHERE status = 'SUCCEEDED'),
		  count(*) FILTER (WHERE status = 'DLQ'),
		  count(*) FILTER (WHERE status = 'SUCCEEDED' AND NOT is_reused),
		  count(*) FILTER (WHERE status = 'SUCCEEDED' AND is_reused)
		FROM units WHERE job_id = $1`, jobID,
	).Scan(&c.Total, &c.Pending, &c.Running, &c.RetryWait, &c.Done, &c.DLQ, &c.FilesGenerated, &c.FilesReused)
	if err != nil {
		return domain.JobCounts{}, fmt.Errorf("job counts: %w", err)
	}
	return c, nil
}

// JobDetail returns the job plus all of its units.
func (s *Store) JobDetail(ctx context.Context, jobID string) (domain.JobDetail, error) {
	job, err := s.GetJob(ctx, jobID)
	if err != nil {
		return domain.JobDetail{}, err
	}
	if job == nil {
		return domain.JobDetail{}, domain.ErrJobNotFound
	}
	counts, err := s.JobCounts(ctx, jobID)
	if err != nil {
		return domain.JobDetail{}, err
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, job_id, index_key, effective_date, asof_indicator, status, attempt_count,
		       next_retry_at, lease_owner, lease_until, s3_path, is_reused, error_message
		FROM units WHERE job_id = $1 ORDER BY index_key, effective_date, asof_indicator`, jobID)
	if err != nil {
		return domain.JobDetail{}, fmt.Errorf("list units: %w", err)
	}
	defer rows.Close()

	var units []domain.Unit
	for rows.Next() {
		u, err := scanUnit(rows)
		if err != nil {
			return domain.JobDetail{}, err
		}
		units = append(units, u)
	}
	if err := rows.Err(); err != nil {
		return domain.JobDetail{}, err
	}

	return domain.JobDetail{Job: *job, Counts: counts, Units: units}, nil
}

func scanUnit(row pgx.Row) (domain.Unit, error) {
	var u domain.Unit
	var status string
	err := row.Scan(&u.ID, &u.JobID, &u.IndexKey, &u.EffectiveDate, &u.AsofIndicator, &status, &u.AttemptCount,
		&u.NextRetryAt, &u.LeaseOwner, &u.LeaseUntil, &u.S3Path, &u.IsReused, &u.ErrorMessage)
	if err != nil {
		return domain.Unit{}, fmt.Errorf("scan unit: %w", err)
	}
	u.Status = domain.UnitStatus(status)
	return u, nil
}

// JobByKey resolves a client-visible job_key to the Job row.
func (s *Store) JobByKey(ctx context.Context, jobKey string) (*domain.Job, error) {
	return s.queryJob(ctx, `
		SELECT id, job_key, status, total_inputs, requested_at, started_at, completed_at, error_message
		FROM jobs WHERE job_key = $1`, jobKey)
}

// GetJob returns the Job row by id.
func (s *Store) GetJob(ctx context.Context, jobID string) (*domain.Job, error) {
	return s.queryJob(ctx, `
		SELECT id, job_key, status, total_inputs, requested_at, started_at, completed_at, error_message
		FROM jobs WHERE id = $1`, jobID)
}

func (s *Store) queryJob(ctx context.Context, query string, arg string) (*domain.Job, error) {
	var j domain.Job
	var status string
	err := s.pool.QueryRow(ctx, query, arg).Scan(
		&j.ID, &j.JobKey, &status, &j.TotalInputs, &j.RequestedAt, &j.StartedAt, &j.CompletedAt, &j.ErrorMessage)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query job: %w", err)
	}
	j.Status = domain.JobStatus(status)
	return &j, nil
}

// GetUnit returns the full Unit row by id.
func (s *Store) GetUnit(ctx context.Context, inputID string) (*domain.Unit, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, job_id, index_key, effective_date, asof_indicator, status, attempt_count,
		       next_retry_at, lease_owner, lease_until, s3_path, is_reused, error_message
		FROM units WHERE id = $1`, inputID)
	u, err := scanUnit(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// ListDeadLetterRecords returns up to limit unresolved dead-letter records.
func (s *Store) ListDeadLetterRecords(ctx context.Context, limit int) ([]domain.DeadLetterRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT input_id, job_id, index_key, effective_date, asof_indicator, error_message,
		       attempt_count, failed_at, resolved_at, resolution
		FROM dead_letter_units
		WHERE resolved_at IS NULL
		ORDER BY failed_at ASC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list dead letter records: %w", err)
	}
	defer rows.Close()

	var records []domain.DeadLetterRecord
	for rows.Next() {
		var r domain.DeadLetterRecord
		if err := rows.Scan(&r.InputID, &r.JobID, &r.IndexKey, &r.EffectiveDate, &r.AsofIndicator,
			&r.ErrorMessage, &r.AttemptCount, &r.FailedAt, &r.ResolvedAt, &r.Resolution); err != nil {
			return nil, fmt.Errorf("scan dead letter record: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// ResolveDeadLetterRecord marks a dead-letter record resolved.
func (s *Store) ResolveDeadLetterRecord(ctx context.Context, inputID, resolution, note string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE dead_letter_units
		SET resolved_at = now(), resolution = $2
		WHERE input_id = $1 AND resolved_at IS NULL`,
		inputID, resolution)
	if err != nil {
		return fmt.Errorf("resolve dead letter record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrDeadLetterNotFound
	}
	_ = note // dead_letter_units has no column for the note; it is not persisted
	return nil
}

// NextJobSequence atomically allocates the next per-day sequence number.
func (s *Store) NextJobSequence(ctx context.Context, yyyymmdd string) (int, error) {
	var seq int
	err := s.pool.QueryRow(ctx, `
		INSERT INTO job_sequences (day, seq) VALUES ($1, 1)
		ON CONFLICT (day) DO UPDATE SET seq = job_sequences.seq + 1
		RETURNING seq`, yyyymmdd).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("next job sequence: %w", err)
	}
	return seq, nil
}

// ListNonTerminalJobIDs returns up to limit job ids not yet terminal.
func (s *Store) ListNonTerminalJobIDs(ctx context.Context, limit int) ([]string, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id FROM jobs
		WHERE status NOT IN ('COMPLETED', 'FAILED', 'CANCELLED')
		ORDER BY requested_at ASC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list non-terminal jobs: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan job id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// TryAcquireExclusiveRun acquires (or steals an expired) run-lease row for
// runType. The release func clears the lease early so the next tick does not
// have to wait out the full lease window.
func (s *Store) TryAcquireExclusiveRun(ctx context.Context, runType, holderID string, leaseDuration time.Duration) (func(), bool, error) {
	now := time.Now().UTC()
	leaseUntil := now.Add(leaseDuration)

	tag, err := s.pool.Exec(ctx, `
		INSERT INTO run_leases (run_type, holder_id, lease_until)
		VALUES ($1, $2, $3)
		ON CONFLICT (run_type) DO UPDATE
		SET holder_id = EXCLUDED.holder_id, lease_until = EXCLUDED.lease_until
		WHERE run_leases.lease_until < $4`,
		runType, holderID, leaseUntil, now)
	if err != nil {
		return nil, false, fmt.Errorf("acquire exclusive run: %w", err)
	}
	if tag.RowsAffected() != 1 {
		return nil, false, nil
	}

	release := func() {
		_, _ = s.pool.Exec(context.Background(), `
			UPDATE run_leases SET lease_until = now()
			WHERE run_type = $1 AND holder_id = $2`, runType, holderID)
	}
	return release, true, nil
}
