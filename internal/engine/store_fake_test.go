package engine

import (
	"context"
	"time"

	"github.com/rezkam/mono/internal/domain"
)

// fakeStore is a hand-rolled Store fake in the teacher's mockRepository
// style: every method is backed by an optional function field, defaulting to
// a harmless zero-value response when unset.
type fakeStore struct {
	createJobFunc          func(ctx context.Context, job domain.Job, units []domain.Unit) error
	selectEligibleFunc     func(ctx context.Context, limit int, now time.Time) ([]string, error)
	tryClaimFunc           func(ctx context.Context, inputID, workerID string, leaseUntil, now time.Time) (bool, error)
	renewLeaseFunc         func(ctx context.Context, inputID, workerID string, leaseUntil time.Time) (bool, error)
	markSucceededReused    func(ctx context.Context, inputID, workerID, s3Path string) (bool, error)
	markSucceededGenerated func(ctx context.Context, inputID, workerID, s3Path string) (bool, error)
	scheduleRetryFunc      func(ctx context.Context, inputID, workerID string, nextRetryAt time.Time, errMsg string) (bool, error)
	moveToDLQFunc          func(ctx context.Context, unit domain.Unit, workerID, errMsg string) (bool, error)
	lookupArtifactFunc     func(ctx context.Context, key domain.NaturalKey) (*domain.Artifact, error)
	upsertArtifactFunc     func(ctx context.Context, artifact domain.Artifact) error
	failJobFunc            func(ctx context.Context, jobID, errMsg string) error
	cancelJobFunc          func(ctx context.Context, jobID string) error
	tryCompleteJobFunc     func(ctx context.Context, jobID string) (bool, error)
	tryFailJobFromDLQFunc  func(ctx context.Context, jobID string) (bool, error)
	resetUnitForRedrive    func(ctx context.Context, inputID string) error
	jobCountsFunc          func(ctx context.Context, jobID string) (domain.JobCounts, error)
	jobDetailFunc          func(ctx context.Context, jobID string) (domain.JobDetail, error)
	jobByKeyFunc           func(ctx context.Context, jobKey string) (*domain.Job, error)
	getJobFunc             func(ctx context.Context, jobID string) (*domain.Job, error)
	getUnitFunc            func(ctx context.Context, inputID string) (*domain.Unit, error)
	listDeadLetterFunc     func(ctx context.Context, limit int) ([]domain.DeadLetterRecord, error)
	resolveDeadLetterFunc  func(ctx context.Context, inputID, resolution, note string) error
	nextJobSequenceFunc    func(ctx context.Context, yyyymmdd string) (int, error)
	listNonTerminalFunc    func(ctx context.Context, limit int) ([]string, error)
	tryAcquireExclusiveRun func(ctx context.Context, runType, holderID string, leaseDuration time.Duration) (func(), bool, error)
}

func (f *fakeStore) CreateJob(ctx context.Context, job domain.Job, units []domain.Unit) error {
	if f.createJobFunc != nil {
		return f.createJobFunc(ctx, job, units)
	}
	return nil
}

func (f *fakeStore) SelectEligible(ctx context.Context, limit int, now time.Time) ([]string, error) {
	if f.selectEligibleFunc != nil {
		return f.selectEligibleFunc(ctx, limit, now)
	}
	return nil, nil
}

func (f *fakeStore) TryClaim(ctx context.Context, inputID, workerID string, leaseUntil, now time.Time) (bool, error) {
	if f.tryClaimFunc != nil {
		return f.tryClaimFunc(ctx, inputID, workerID, leaseUntil, now)
	}
	return true, nil
}

func (f *fakeStore) RenewLease(ctx context.Context, inputID, workerID string, leaseUntil time.Time) (bool, error) {
	if f.renewLeaseFunc != nil {
		return f.renewLeaseFunc(ctx, inputID, workerID, leaseUntil)
	}
	return true, nil
}

func (f *fakeStore) MarkSucceededReused(ctx context.Context, inputID, workerID, s3Path string) (bool, error) {
	if f.markSucceededReused != nil {
		return f.markSucceededReused(ctx, inputID, workerID, s3Path)
	}
	return true, nil
}

func (f *fakeStore) MarkSucceededGenerated(ctx context.Context, inputID, workerID, s3Path string) (bool, error) {
	if f.markSucceededGenerated != nil {
		return f.markSucceededGenerated(ctx, inputID, workerID, s3Path)
	}
	return true, nil
}

func (f *fakeStore) ScheduleRetry(ctx context.Context, inputID, workerID string, nextRetryAt time.Time, errMsg string) (bool, error) {
	if f.scheduleRetryFunc != nil {
		return f.scheduleRetryFunc(ctx, inputID, workerID, nextRetryAt, errMsg)
	}
	return true, nil
}

func (f *fakeStore) MoveToDLQ(ctx context.Context, unit domain.Unit, workerID, errMsg string) (bool, error) {
	if f.moveToDLQFunc != nil {
		return f.moveToDLQFunc(ctx, unit, workerID, errMsg)
	}
	return true, nil
}

func (f *fakeStore) LookupArtifact(ctx context.Context, key domain.NaturalKey) (*domain.Artifact, error) {
	if f.lookupArtifactFunc != nil {
		return f.lookupArtifactFunc(ctx, key)
	}
	return nil, nil
}

func (f *fakeStore) UpsertArtifact(ctx context.Context, artifact domain.Artifact) error {
	if f.upsertArtifactFunc != nil {
		return f.upsertArtifactFunc(ctx, artifact)
	}
	return nil
}

func (f *fakeStore) FailJob(ctx context.Context, jobID, errMsg string) error {
	if f.failJobFunc != nil {
		return f.failJobFunc(ctx, jobID, errMsg)
	}
	return nil
}

func (f *fakeStore) CancelJob(ctx context.Context, jobID string) error {
	if f.cancelJobFunc != nil {
		return f.cancelJobFunc(ctx, jobID)
	}
	return nil
}

func (f *fakeStore) TryCompleteJob(ctx context.Context, jobID string) (bool, error) {
	if f.tryCompleteJobFunc != nil {
		return f.tryCompleteJobFunc(ctx, jobID)
	}
	return false, nil
}

func (f *fakeStore) TryFailJobFromDLQ(ctx context.Context, jobID string) (bool, error) {
	if f.tryFailJobFromDLQFunc != nil {
		return f.tryFailJobFromDLQFunc(ctx, jobID)
	}
	return false, nil
}

func (f *fakeStore) ResetUnitForRedrive(ctx context.Context, inputID string) error {
	if f.resetUnitForRedrive != nil {
		return f.resetUnitForRedrive(ctx, inputID)
	}
	return nil
}

func (f *fakeStore) JobCounts(ctx context.Context, jobID string) (domain.JobCounts, error) {
	if f.jobCountsFunc != nil {
		return f.jobCountsFunc(ctx, jobID)
	}
	return domain.JobCounts{}, nil
}

func (f *fakeStore) JobDetail(ctx context.Context, jobID string) (domain.JobDetail, error) {
	if f.jobDetailFunc != nil {
		return f.jobDetailFunc(ctx, jobID)
	}
	return domain.JobDetail{}, nil
}

func (f *fakeStore) JobByKey(ctx context.Context, jobKey string) (*domain.Job, error) {
	if f.jobByKeyFunc != nil {
		return f.jobByKeyFunc(ctx, jobKey)
	}
	return nil, nil
}

func (f *fakeStore) GetJob(ctx context.Context, jobID string) (*domain.Job, error) {
	if f.getJobFunc != nil {
		return f.getJobFunc(ctx, jobID)
	}
	return nil, nil
}

func (f *fakeStore) GetUnit(ctx context.Context, inputID string) (*domain.Unit, error) {
	if f.getUnitFunc != nil {
		return f.getUnitFunc(ctx, inputID)
	}
	return nil, nil
}

func (f *fakeStore) ListDeadLetterRecords(ctx context.Context, limit int) ([]domain.DeadLetterRecord, error) {
	if f.listDeadLetterFunc != nil {
		return f.listDeadLetterFunc(ctx, limit)
	}
	return nil, nil
}

func (f *fakeStore) ResolveDeadLetterRecord(ctx context.Context, inputID, resolution, note string) error {
	if f.resolveDeadLetterFunc != nil {
		return f.resolveDeadLetterFunc(ctx, inputID, resolution, note)
	}
	return nil
}

func (f *fakeStore) NextJobSequence(ctx context.Context, yyyymmdd string) (int, error) {
	if f.nextJobSequenceFunc != nil {
		return f.nextJobSequenceFunc(ctx, yyyymmdd)
	}
	return 1, nil
}

func (f *fakeStore) ListNonTerminalJobIDs(ctx context.Context, limit int) ([]string, error) {
	if f.listNonTerminalFunc != nil {
		return f.listNonTerminalFunc(ctx, limit)
	}
	return nil, nil
}

func (f *fakeStore) TryAcquireExclusiveRun(ctx context.Context, runType, holderID string, leaseDuration time.Duration) (func(), bool, error) {
	if f.tryAcquireExclusiveRun != nil {
		return f.tryAcquireExclusiveRun(ctx, runType, holderID, leaseDuration)
	}
	return func() {}, true, nil
}

var _ Store = (*fakeStore)(nil)
