package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rezkam/mono/internal/domain"
	"github.com/rezkam/mono/internal/engine"
)

// withChiURLParam injects a chi route param directly, the way a request
// would arrive already parsed had it gone through the real mux - lets these
// tests call Handler methods without standing up the full router.
func withChiURLParam(r *http.Request, key, value string) *http.Request {
	routeCtx := chi.NewRouteContext()
	routeCtx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, routeCtx))
}

// fakeStore is a minimal hand-rolled engine.Store fake for exercising the
// HTTP surface end to end without a database, mirroring the teacher's
// function-field mock style.
type fakeStore struct {
	engine.Store
	createJobFunc      func(ctx context.Context, job domain.Job, units []domain.Unit) error
	jobByKeyFunc       func(ctx context.Context, jobKey string) (*domain.Job, error)
	jobDetailFunc      func(ctx context.Context, jobID string) (domain.JobDetail, error)
	cancelJobFunc      func(ctx context.Context, jobID string) error
	listDeadLetterFunc func(ctx context.Context, limit int) ([]domain.DeadLetterRecord, error)
}

func (f *fakeStore) CreateJob(ctx context.Context, job domain.Job, units []domain.Unit) error {
	if f.createJobFunc != nil {
		return f.createJobFunc(ctx, job, units)
	}
	return nil
}

func (f *fakeStore) NextJobSequence(ctx context.Context, yyyymmdd string) (int, error) {
	return 1, nil
}

func (f *fakeStore) JobByKey(ctx context.Context, jobKey string) (*domain.Job, error) {
	if f.jobByKeyFunc != nil {
		return f.jobByKeyFunc(ctx, jobKey)
	}
	return nil, nil
}

func (f *fakeStore) JobDetail(ctx context.Context, jobID string) (domain.JobDetail, error) {
	if f.jobDetailFunc != nil {
		return f.jobDetailFunc(ctx, jobID)
	}
	return domain.JobDetail{}, nil
}

func (f *fakeStore) CancelJob(ctx context.Context, jobID string) error {
	if f.cancelJobFunc != nil {
		return f.cancelJobFunc(ctx, jobID)
	}
	return nil
}

func (f *fakeStore) ListDeadLetterRecords(ctx context.Context, limit int) ([]domain.DeadLetterRecord, error) {
	if f.listDeadLetterFunc != nil {
		return f.listDeadLetterFunc(ctx, limit)
	}
	return nil, nil
}

func newTestHandler(store *fakeStore) *Handler {
	clock := engine.FixedClock{At: time.Date(2026, 7, 29, 12, 0, 0, 0, time.UTC)}
	submission := engine.NewSubmission(store, clock, engine.SubmissionConfig{MaxUnitsPerJob: 100})
	admin := engine.NewAdmin(store)
	return NewHandler(submission, admin)
}

func TestCreateJob_ReturnsAccepted(t *testing.T) {
	store := &fakeStore{}
	h := newTestHandler(store)

	body := `{"items":[{"indexKey":"ACC1","effectiveDate":20260701,"asofIndicator":"EOD"}]}`
	req := httptest.NewRequest(http.MethodPost, "/jobs", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()

	h.CreateJob(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)
	var resp submitResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "SUBMITTED", resp.Status)
	assert.NotEmpty(t, resp.JobID)
}

func TestCreateJob_MalformedBodyReturnsBadRequest(t *testing.T) {
	h := newTestHandler(&fakeStore{})

	req := httptest.NewRequest(http.MethodPost, "/jobs", bytes.NewBufferString("not json"))
	rec := httptest.NewRecorder()

	h.CreateJob(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateJob_EmptyItemsReturnsBadRequest(t *testing.T) {
	h := newTestHandler(&fakeStore{})

	req := httptest.NewRequest(http.MethodPost, "/jobs", bytes.NewBufferString(`{"items":[]}`))
	rec := httptest.NewRecorder()

	h.CreateJob(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetJob_TerminalJobIncludesUnitS3Paths(t *testing.T) {
	s3Path := "gs://bucket/exports/2026/07/01/job-1/ACC1_20260701_EOD.csv"
	job := domain.Job{ID: "job-1", JobKey: "J20260729_1", Status: domain.JobCompleted, TotalInputs: 1}
	store := &fakeStore{
		jobByKeyFunc: func(ctx context.Context, jobKey string) (*domain.Job, error) {
			return &job, nil
		},
		jobDetailFunc: func(ctx context.Context, jobID string) (domain.JobDetail, error) {
			return domain.JobDetail{
				Job:    job,
				Counts: domain.JobCounts{Total: 1, Done: 1},
				Units: []domain.Unit{
					{ID: "unit-1", JobID: "job-1", Status: domain.UnitSucceeded, S3Path: &s3Path},
				},
			}, nil
		},
	}
	h := newTestHandler(store)

	req := httptest.NewRequest(http.MethodGet, "/jobs/J20260729_1", nil)
	req = withChiURLParam(req, "jobId", "J20260729_1")
	rec := httptest.NewRecorder()

	h.GetJob(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp jobStatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "COMPLETED", resp.Status)
	require.Len(t, resp.Units, 1)
	require.NotNil(t, resp.Units[0].S3Path)
	assert.Equal(t, s3Path, *resp.Units[0].S3Path)
}

func TestGetJob_NonTerminalJobOmitsUnits(t *testing.T) {
	job := domain.Job{ID: "job-1", JobKey: "J20260729_1", Status: domain.JobRunning, TotalInputs: 1}
	store := &fakeStore{
		jobByKeyFunc: func(ctx context.Context, jobKey string) (*domain.Job, error) {
			return &job, nil
		},
		jobDetailFunc: func(ctx context.Context, jobID string) (domain.JobDetail, error) {
			return domain.JobDetail{
				Job:    job,
				Counts: domain.JobCounts{Total: 1, Running: 1},
				Units:  []domain.Unit{{ID: "unit-1", JobID: "job-1", Status: domain.UnitRunning}},
			}, nil
		},
	}
	h := newTestHandler(store)

	req := httptest.NewRequest(http.MethodGet, "/jobs/J20260729_1", nil)
	req = withChiURLParam(req, "jobId", "J20260729_1")
	rec := httptest.NewRecorder()

	h.GetJob(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp jobStatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Empty(t, resp.Units)
}

func TestGetJob_NotFoundReturns404(t *testing.T) {
	store := &fakeStore{
		jobByKeyFunc: func(ctx context.Context, jobKey string) (*domain.Job, error) {
			return nil, nil
		},
	}
	h := newTestHandler(store)

	req := httptest.NewRequest(http.MethodGet, "/jobs/missing", nil)
	req = withChiURLParam(req, "jobId", "missing")
	rec := httptest.NewRecorder()

	h.GetJob(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListDeadLetter_DefaultsLimit(t *testing.T) {
	var seenLimit int
	store := &fakeStore{
		listDeadLetterFunc: func(ctx context.Context, limit int) ([]domain.DeadLetterRecord, error) {
			seenLimit = limit
			return nil, nil
		},
	}
	h := newTestHandler(store)

	req := httptest.NewRequest(http.MethodGet, "/dead-letter", nil)
	rec := httptest.NewRecorder()

	h.ListDeadLetter(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 50, seenLimit)
}
