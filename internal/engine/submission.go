package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/rezkam/mono/internal/domain"
)

// SubmissionConfig governs the per-job unit cap (submission.maxUnitsPerJob).
type SubmissionConfig struct {
	MaxUnitsPerJob int
}

// SubmitItem is one requested (indexKey, effectiveDate, asofIndicator) unit,
// as it arrives over the HTTP submission contract before validation.
type SubmitItem struct {
	IndexKey      string
	EffectiveDate int
	AsofIndicator string
}

// Submission validates a client request and atomically creates the Job plus
// its Units. It never touches export/object-storage collaborators: creating
// a job is a pure database transaction, grounded in the teacher's
// RunScheduleOnce/CreateGenerationJob pattern, generalized from a
// schedule-driven recurring job to a synchronous client-submitted one.
type Submission struct {
	store Store
	clock Clock
	cfg   SubmissionConfig
}

func NewSubmission(store Store, clock Clock, cfg SubmissionConfig) *Submission {
	return &Submission{store: store, clock: clock, cfg: cfg}
}

// Submit validates items, assigns job_id/job_key, and creates the job and
// its units in a single transaction. Returns the client-visible job_key.
func (s *Submission) Submit(ctx context.Context, items []SubmitItem) (string, error) {
	if len(items) == 0 {
		return "", fmt.Errorf("%w: items must not be empty", domain.ErrFieldRequired)
	}
	if len(items) > s.cfg.MaxUnitsPerJob {
		return "", domain.ErrTooManyUnits
	}

	now := s.clock.Now()
	seen := make(map[domain.NaturalKey]struct{}, len(items))
	units := make([]domain.Unit, 0, len(items))

	for _, item := range items {
		indexKey, err := domain.NewIndexKey(item.IndexKey)
		if err != nil {
			return "", err
		}
		asof, err := domain.NewAsofIndicator(item.AsofIndicator)
		if err != nil {
			return "", err
		}
		effDate, err := domain.NewEffectiveDate(item.EffectiveDate)
		if err != nil {
			return "", err
		}

		key := domain.NaturalKey{
			IndexKey:      indexKey.String(),
			EffectiveDate: effDate.Int(),
			AsofIndicator: asof.String(),
		}
		if _, dup := seen[key]; dup {
			return "", fmt.Errorf("%w: duplicate item (%s, %d, %s)", domain.ErrFieldRequired, key.IndexKey, key.EffectiveDate, key.AsofIndicator)
		}
		seen[key] = struct{}{}

		unitID, err := uuid.NewV7()
		if err != nil {
			return "", fmt.Errorf("generate unit id: %w", err)
		}
		units = append(units, domain.Unit{
			ID:            unitID.String(),
			IndexKey:      key.IndexKey,
			EffectiveDate: key.EffectiveDate,
			AsofIndicator: key.AsofIndicator,
			Status:        domain.UnitPending,
			AttemptCount:  0,
		})
	}

	jobKey, err := s.nextJobKey(ctx, now)
	if err != nil {
		return "", fmt.Errorf("allocate job key: %w", err)
	}

	jobUUID, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate job id: %w", err)
	}
	jobID := jobUUID.String()
	job := domain.Job{
		ID:          jobID,
		JobKey:      jobKey,
		Status:      domain.JobSubmitted,
		TotalInputs: len(units),
		RequestedAt: now,
	}
	for i := range units {
		units[i].JobID = jobID
	}

	if err := s.store.CreateJob(ctx, job, units); err != nil {
		return "", err
	}

	return jobKey, nil
}

// nextJobKey builds "J<YYYYMMDD>_<seq>" from a per-day sequence counter
// allocated by the store, so job keys stay monotonic and human-readable
// within a day without a second round trip to inspect existing keys.
func (s *Submission) nextJobKey(ctx context.Context, now time.Time) (string, error) {
	day := now.UTC().Format("20060102")
	seq, err := s.store.NextJobSequence(ctx, day)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("J%s_%d", day, seq), nil
}
