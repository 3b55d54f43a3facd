package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/forgo/planner/api/internal/model"
)

// JobAPI is the job service surface used by the HTTP layer
type JobAPI interface {
	SubmitJob(ctx context.Context, recruitmentID *string, problem model.ProblemData) (*model.Job, error)
	CancelJob(ctx context.Context, jobID string) (bool, error)
	GetJob(ctx context.Context, jobID string) (*model.Job, error)
	GetStatus(ctx context.Context, jobID string) (*model.JobStatusView, error)
	ListJobs(ctx context.Context, status model.JobStatus, limit int) ([]*model.Job, error)
	ListProgress(ctx context.Context, jobID string, limit int) ([]*model.ProgressRecord, error)
}

// JobHandler handles optimization job HTTP requests
type JobHandler struct {
	jobs   JobAPI
	logger *slog.Logger
}

// NewJobHandler creates a new job handler
func NewJobHandler(jobs JobAPI, logger *slog.Logger) *JobHandler {
	return &JobHandler{jobs: jobs, logger: logger}
}

// Submit handles POST /v1/jobs
func (h *JobHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req model.SubmitJobRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		WriteError(w, r, model.NewBadRequestError("invalid request body"))
		return
	}
	if errs := req.Validate(); len(errs) > 0 {
		WriteError(w, r, model.NewValidationError(errs))
		return
	}

	job, err := h.jobs.SubmitJob(r.Context(), nil, req.ProblemData)
	if err != nil {
		h.handleError(w, r, err, "submit job")
		return
	}

	WriteData(w, http.StatusCreated, job, jobLinks(job.ID))
}

// List handles GET /v1/jobs?status=&limit=
func (h *JobHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	status := model.JobStatus(q.Get("status"))

	limit, ok := parseLimit(w, r, q.Get("limit"))
	if !ok {
		return
	}

	jobs, err := h.jobs.ListJobs(r.Context(), status, limit)
	if err != nil {
		h.handleError(w, r, err, "list jobs")
		return
	}

	WriteCollection(w, http.StatusOK, jobs, len(jobs), nil)
}

// Get handles GET /v1/jobs/{jobId}
func (h *JobHandler) Get(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("jobId")

	job, err := h.jobs.GetJob(r.Context(), jobID)
	if err != nil {
		h.handleError(w, r, err, "get job")
		return
	}

	WriteData(w, http.StatusOK, job, jobLinks(job.ID))
}

// Status handles GET /v1/jobs/{jobId}/status
func (h *JobHandler) Status(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("jobId")

	view, err := h.jobs.GetStatus(r.Context(), jobID)
	if err != nil {
		h.handleError(w, r, err, "get job status")
		return
	}

	WriteData(w, http.StatusOK, view, nil)
}

// Cancel handles POST /v1/jobs/{jobId}/cancel
func (h *JobHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	jobID := r.PathValue("jobId")

	cancelled, err := h.jobs.CancelJob(ctx, jobID)
	if err != nil {
		h.handleError(w, r, err, "cancel job")
		return
	}

	if !cancelled {
		// Distinguish a missing job from a terminal one
		job, err := h.jobs.GetJob(ctx, jobID)
		if err != nil {
			h.handleError(w, r, err, "cancel job")
			return
		}
		WriteError(w, r, model.NewConflictError("job is already "+string(job.Status)))
		return
	}

	WriteData(w, http.StatusOK, model.CancelJobResponse{JobID: jobID, Cancelled: true}, nil)
}

// Progress handles GET /v1/jobs/{jobId}/progress
func (h *JobHandler) Progress(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("jobId")

	limit, ok := parseLimit(w, r, r.URL.Query().Get("limit"))
	if !ok {
		return
	}

	records, err := h.jobs.ListProgress(r.Context(), jobID, limit)
	if err != nil {
		h.handleError(w, r, err, "list progress")
		return
	}

	WriteCollection(w, http.StatusOK, records, len(records), map[string]string{"job": "/v1/jobs/" + jobID})
}

func (h *JobHandler) handleError(w http.ResponseWriter, r *http.Request, err error, operation string) {
	pd := MapServiceErrorWithContext(err, operation)
	if pd.Status >= http.StatusInternalServerError {
		h.logger.Error("request failed", "operation", operation, "path", r.URL.Path, "error", err)
	}
	WriteError(w, r, pd)
}

// parseLimit reads an optional positive limit. It writes a 422 and returns
// false when the value is malformed.
func parseLimit(w http.ResponseWriter, r *http.Request, raw string) (int, bool) {
	if raw == "" {
		return 0, true
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		WriteError(w, r, model.NewValidationError([]model.FieldError{
			{Field: "limit", Message: "must be a non-negative integer"},
		}))
		return 0, false
	}
	return limit, true
}
