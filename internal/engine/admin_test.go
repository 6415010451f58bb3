package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rezkam/mono/internal/domain"
)

func TestAdmin_JobStatus_ResolvesByJobKeyAndIncludesUnits(t *testing.T) {
	job := domain.Job{ID: "job-1", JobKey: "J20260729_1", Status: domain.JobRunning, TotalInputs: 2}
	units := []domain.Unit{
		{ID: "unit-1", JobID: "job-1", Status: domain.UnitSucceeded},
		{ID: "unit-2", JobID: "job-1", Status: domain.UnitPending},
	}
	store := &fakeStore{
		jobByKeyFunc: func(ctx context.Context, jobKey string) (*domain.Job, error) {
			require.Equal(t, "J20260729_1", jobKey)
			return &job, nil
		},
		jobDetailFunc: func(ctx context.Context, jobID string) (domain.JobDetail, error) {
			require.Equal(t, "job-1", jobID)
			return domain.JobDetail{
				Job:    job,
				Counts: domain.JobCounts{Total: 2, Pending: 1, Done: 1},
				Units:  units,
			}, nil
		},
	}
	admin := NewAdmin(store)

	status, err := admin.JobStatus(context.Background(), "J20260729_1")

	require.NoError(t, err)
	assert.Equal(t, "IN_PROGRESS", status.Status)
	assert.Equal(t, 1, status.Pending)
	assert.Equal(t, 1, status.Done)
	require.Len(t, status.Units, 2)
}

func TestAdmin_JobStatus_NotFound(t *testing.T) {
	store := &fakeStore{
		jobByKeyFunc: func(ctx context.Context, jobKey string) (*domain.Job, error) {
			return nil, nil
		},
	}
	admin := NewAdmin(store)

	_, err := admin.JobStatus(context.Background(), "does-not-exist")

	assert.ErrorIs(t, err, domain.ErrJobNotFound)
}

func TestAdmin_CancelJob_ResolvesJobKeyFirst(t *testing.T) {
	var cancelledID string
	store := &fakeStore{
		jobByKeyFunc: func(ctx context.Context, jobKey string) (*domain.Job, error) {
			return &domain.Job{ID: "job-1", JobKey: jobKey}, nil
		},
		cancelJobFunc: func(ctx context.Context, jobID string) error {
			cancelledID = jobID
			return nil
		},
	}
	admin := NewAdmin(store)

	err := admin.CancelJob(context.Background(), "J20260729_1")

	require.NoError(t, err)
	assert.Equal(t, "job-1", cancelledID)
}

func TestAdmin_RedriveUnit_ResetsThenResolves(t *testing.T) {
	var resetID, resolvedID, resolution string
	store := &fakeStore{
		resetUnitForRedrive: func(ctx context.Context, inputID string) error {
			resetID = inputID
			return nil
		},
		resolveDeadLetterFunc: func(ctx context.Context, inputID, res, note string) error {
			resolvedID = inputID
			resolution = res
			return nil
		},
	}
	admin := NewAdmin(store)

	err := admin.RedriveUnit(context.Background(), "unit-1", "operator retry")

	require.NoError(t, err)
	assert.Equal(t, "unit-1", resetID)
	assert.Equal(t, "unit-1", resolvedID)
	assert.Equal(t, "redriven", resolution)
}

func TestAdmin_DiscardDeadLetterUnit_DoesNotResetUnit(t *testing.T) {
	resetCalled := false
	store := &fakeStore{
		resetUnitForRedrive: func(ctx context.Context, inputID string) error {
			resetCalled = true
			return nil
		},
		resolveDeadLetterFunc: func(ctx context.Context, inputID, res, note string) error {
			assert.Equal(t, "discarded", res)
			return nil
		},
	}
	admin := NewAdmin(store)

	err := admin.DiscardDeadLetterUnit(context.Background(), "unit-1", "not actionable")

	require.NoError(t, err)
	assert.False(t, resetCalled)
}
