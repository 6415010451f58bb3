package engine

import (
	"context"
	"fmt"

	"github.com/rezkam/mono/internal/domain"
)

// Admin exposes the status-projection and re-drive operations described as
// the Admin surface (§4.9): job status lookup by client-visible job_key, and
// dead-letter triage (list/redrive/discard).
type Admin struct {
	store Store
}

func NewAdmin(store Store) *Admin {
	return &Admin{store: store}
}

// JobStatusView is the externally-rendered job status, synthesizing the
// IN_PROGRESS view domain.ReportingStatus computes on top of the stored job
// state. Units is only populated by JobStatus, never by CancelJob's
// immediate-response path.
type JobStatusView struct {
	JobID          string
	JobKey         string
	Status         string
	TotalInputs    int
	Pending        int
	Running        int
	RetryWait      int
	Done           int
	DLQ            int
	FilesGenerated int
	FilesReused    int
	Units          []domain.Unit
}

// JobStatus resolves a client-visible job_key to its current reporting
// status, including the per-unit s3Path projection (§6: "when terminal,
// per-unit s3Path").
func (a *Admin) JobStatus(ctx context.Context, jobKey string) (JobStatusView, error) {
	job, err := a.store.JobByKey(ctx, jobKey)
	if err != nil {
		return JobStatusView{}, err
	}
	if job == nil {
		return JobStatusView{}, domain.ErrJobNotFound
	}

	detail, err := a.store.JobDetail(ctx, job.ID)
	if err != nil {
		return JobStatusView{}, err
	}

	return JobStatusView{
		JobID:          detail.Job.ID,
		JobKey:         detail.Job.JobKey,
		Status:         domain.ReportingStatus(detail.Job, detail.Counts),
		TotalInputs:    detail.Job.TotalInputs,
		Pending:        detail.Counts.Pending,
		Running:        detail.Counts.Running,
		RetryWait:      detail.Counts.RetryWait,
		Done:           detail.Counts.Done,
		DLQ:            detail.Counts.DLQ,
		FilesGenerated: detail.Counts.FilesGenerated,
		FilesReused:    detail.Counts.FilesReused,
		Units:          detail.Units,
	}, nil
}

// CancelJob marks a non-terminal job CANCELLED. In-flight units are not
// interrupted; they run to completion or failure and the Executor's job
// guard short-circuits anything still pending.
func (a *Admin) CancelJob(ctx context.Context, jobKey string) error {
	job, err := a.store.JobByKey(ctx, jobKey)
	if err != nil {
		return err
	}
	if job == nil {
		return domain.ErrJobNotFound
	}
	return a.store.CancelJob(ctx, job.ID)
}

// ListDeadLetterUnits returns up to limit unresolved dead-letter records for
// operator triage.
func (a *Admin) ListDeadLetterUnits(ctx context.Context, limit int) ([]domain.DeadLetterRecord, error) {
	return a.store.ListDeadLetterRecords(ctx, limit)
}

// RedriveUnit resets a dead-lettered unit back to PENDING (attempt_count=0,
// errors cleared) and records the dead-letter record as resolved, so the
// next Poller cycle picks it up as a fresh attempt.
func (a *Admin) RedriveUnit(ctx context.Context, inputID, note string) error {
	if err := a.store.ResetUnitForRedrive(ctx, inputID); err != nil {
		return fmt.Errorf("reset unit for redrive: %w", err)
	}
	return a.store.ResolveDeadLetterRecord(ctx, inputID, "redriven", note)
}

// DiscardDeadLetterUnit marks a dead-letter record resolved without
// resurrecting the unit; the unit stays DLQ permanently.
func (a *Admin) DiscardDeadLetterUnit(ctx context.Context, inputID, note string) error {
	return a.store.ResolveDeadLetterRecord(ctx, inputID, "discarded", note)
}
