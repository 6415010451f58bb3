// Package http mounts the submission/status/admin HTTP surface over
// engine.Submission and engine.Admin. Request validation and serialization
// are deliberately thin: the contracts are fixed, but there is no generated
// OpenAPI layer behind them.
package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/rezkam/mono/internal/domain"
	"github.com/rezkam/mono/internal/engine"
	"github.com/rezkam/mono/internal/http/response"
)

// Handler adapts HTTP requests to the Submission/Admin application surface.
type Handler struct {
	submission *engine.Submission
	admin      *engine.Admin
}

// NewHandler builds a Handler over the given engine collaborators.
func NewHandler(submission *engine.Submission, admin *engine.Admin) *Handler {
	return &Handler{submission: submission, admin: admin}
}

type submitItem struct {
	IndexKey      string `json:"indexKey"`
	EffectiveDate int    `json:"effectiveDate"`
	AsofIndicator string `json:"asofIndicator"`
}

type submitOutput struct {
	Format string `json:"format"`
}

type submitRequest struct {
	Items  []submitItem  `json:"items"`
	Output *submitOutput `json:"output,omitempty"`
}

type submitResponse struct {
	JobID  string `json:"jobId"`
	Status string `json:"status"`
}

// CreateJob handles POST /jobs.
func (h *Handler) CreateJob(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "malformed request body")
		return
	}

	items := make([]engine.SubmitItem, len(req.Items))
	for i, it := range req.Items {
		items[i] = engine.SubmitItem{
			IndexKey:      it.IndexKey,
			EffectiveDate: it.EffectiveDate,
			AsofIndicator: it.AsofIndicator,
		}
	}

	jobKey, err := h.submission.Submit(r.Context(), items)
	if err != nil {
		response.FromDomainError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(submitResponse{JobID: jobKey, Status: "SUBMITTED"})
}

type unitView struct {
	InputID       string  `json:"inputId"`
	IndexKey      string  `json:"indexKey"`
	EffectiveDate int     `json:"effectiveDate"`
	AsofIndicator string  `json:"asofIndicator"`
	Status        string  `json:"status"`
	S3Path        *string `json:"s3Path,omitempty"`
	IsReused      bool    `json:"isReused"`
	ErrorMessage  *string `json:"errorMessage,omitempty"`
}

type jobStatusResponse struct {
	JobID          string     `json:"jobId"`
	Status         string     `json:"status"`
	TotalInputs    int        `json:"totalInputs"`
	Pending        int        `json:"pending"`
	Running        int        `json:"running"`
	RetryWait      int        `json:"retryWait"`
	Done           int        `json:"done"`
	DLQ            int        `json:"dlq"`
	FilesGenerated int        `json:"filesGenerated"`
	FilesReused    int        `json:"filesReused"`
	Units          []unitView `json:"units,omitempty"`
}

// GetJob handles GET /jobs/{jobId}.
func (h *Handler) GetJob(w http.ResponseWriter, r *http.Request) {
	jobKey := chi.URLParam(r, "jobId")

	status, err := h.admin.JobStatus(r.Context(), jobKey)
	if err != nil {
		response.FromDomainError(w, r, err)
		return
	}

	response.OK(w, toJobStatusResponse(status, domain.JobStatus(status.Status).IsTerminal()))
}

func toJobStatusResponse(status engine.JobStatusView, includeUnits bool) jobStatusResponse {
	resp := jobStatusResponse{
		JobID:          status.JobID,
		Status:         status.Status,
		TotalInputs:    status.TotalInputs,
		Pending:        status.Pending,
		Running:        status.Running,
		RetryWait:      status.RetryWait,
		Done:           status.Done,
		DLQ:            status.DLQ,
		FilesGenerated: status.FilesGenerated,
		FilesReused:    status.FilesReused,
	}
	if !includeUnits {
		return resp
	}
	resp.Units = make([]unitView, len(status.Units))
	for i, u := range status.Units {
		resp.Units[i] = unitView{
			InputID:       u.ID,
			IndexKey:      u.IndexKey,
			EffectiveDate: u.EffectiveDate,
			AsofIndicator: u.AsofIndicator,
			Status:        string(u.Status),
			S3Path:        u.S3Path,
			IsReused:      u.IsReused,
			ErrorMessage:  u.ErrorMessage,
		}
	}
	return resp
}

// CancelJob handles POST /jobs/{jobId}/cancel.
func (h *Handler) CancelJob(w http.ResponseWriter, r *http.Request) {
	jobKey := chi.URLParam(r, "jobId")

	if err := h.admin.CancelJob(r.Context(), jobKey); err != nil && err != domain.ErrJobNotCancellable {
		response.FromDomainError(w, r, err)
		return
	}

	status, err := h.admin.JobStatus(r.Context(), jobKey)
	if err != nil {
		response.FromDomainError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(toJobStatusResponse(status, domain.JobStatus(status.Status).IsTerminal()))
}

type deadLetterView struct {
	InputID       string  `json:"inputId"`
	JobID         string  `json:"jobId"`
	IndexKey      string  `json:"indexKey"`
	EffectiveDate int     `json:"effectiveDate"`
	AsofIndicator string  `json:"asofIndicator"`
	ErrorMessage  string  `json:"errorMessage"`
	AttemptCount  int     `json:"attemptCount"`
	Resolution    *string `json:"resolution,omitempty"`
}

// ListDeadLetter handles GET /dead-letter.
func (h *Handler) ListDeadLetter(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	records, err := h.admin.ListDeadLetterUnits(r.Context(), limit)
	if err != nil {
		response.FromDomainError(w, r, err)
		return
	}

	views := make([]deadLetterView, len(records))
	for i, rec := range records {
		views[i] = deadLetterView{
			InputID:       rec.InputID,
			JobID:         rec.JobID,
			IndexKey:      rec.IndexKey,
			EffectiveDate: rec.EffectiveDate,
			AsofIndicator: rec.AsofIndicator,
			ErrorMessage:  rec.ErrorMessage,
			AttemptCount:  rec.AttemptCount,
			Resolution:    rec.Resolution,
		}
	}
	response.OK(w, map[string]any{"records": views})
}

type resolveRequest struct {
	Note string `json:"note"`
}

// RedriveDeadLetter handles POST /dead-letter/{inputId}/redrive.
func (h *Handler) RedriveDeadLetter(w http.ResponseWriter, r *http.Request) {
	inputID := chi.URLParam(r, "inputId")
	var req resolveRequest
	_ = json.NewDecoder(r.Body).Decode(&req)

	if err := h.admin.RedriveUnit(r.Context(), inputID, req.Note); err != nil {
		slog.ErrorContext(r.Context(), "redrive failed", "input_id", inputID, "error", err)
		response.FromDomainError(w, r, err)
		return
	}
	response.NoContent(w)
}

// DiscardDeadLetter handles POST /dead-letter/{inputId}/discard.
func (h *Handler) DiscardDeadLetter(w http.ResponseWriter, r *http.Request) {
	inputID := chi.URLParam(r, "inputId")
	var req resolveRequest
	_ = json.NewDecoder(r.Body).Decode(&req)

	if err := h.admin.DiscardDeadLetterUnit(r.Context(), inputID, req.Note); err != nil {
		slog.ErrorContext(r.Context(), "discard failed", "input_id", inputID, "error", err)
		response.FromDomainError(w, r, err)
		return
	}
	response.NoContent(w)
}
