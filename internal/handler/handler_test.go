package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/forgo/planner/api/internal/logging"
	"github.com/forgo/planner/api/internal/model"
)

// ============================================================================
// Mock JobAPI
// ============================================================================

type mockJobAPI struct {
	submitJobFunc    func(ctx context.Context, recruitmentID *string, problem model.ProblemData) (*model.Job, error)
	cancelJobFunc    func(ctx context.Context, jobID string) (bool, error)
	getJobFunc       func(ctx context.Context, jobID string) (*model.Job, error)
	getStatusFunc    func(ctx context.Context, jobID string) (*model.JobStatusView, error)
	listJobsFunc     func(ctx context.Context, status model.JobStatus, limit int) ([]*model.Job, error)
	listProgressFunc func(ctx context.Context, jobID string, limit int) ([]*model.ProgressRecord, error)
}

func (m *mockJobAPI) SubmitJob(ctx context.Context, recruitmentID *string, problem model.ProblemData) (*model.Job, error) {
	if m.submitJobFunc != nil {
		return m.submitJobFunc(ctx, recruitmentID, problem)
	}
	return nil, nil
}

func (m *mockJobAPI) CancelJob(ctx context.Context, jobID string) (bool, error) {
	if m.cancelJobFunc != nil {
		return m.cancelJobFunc(ctx, jobID)
	}
	return false, nil
}

func (m *mockJobAPI) GetJob(ctx context.Context, jobID string) (*model.Job, error) {
	if m.getJobFunc != nil {
		return m.getJobFunc(ctx, jobID)
	}
	return nil, nil
}

func (m *mockJobAPI) GetStatus(ctx context.Context, jobID string) (*model.JobStatusView, error) {
	if m.getStatusFunc != nil {
		return m.getStatusFunc(ctx, jobID)
	}
	return nil, nil
}

func (m *mockJobAPI) ListJobs(ctx context.Context, status model.JobStatus, limit int) ([]*model.Job, error) {
	if m.listJobsFunc != nil {
		return m.listJobsFunc(ctx, status, limit)
	}
	return nil, nil
}

func (m *mockJobAPI) ListProgress(ctx context.Context, jobID string, limit int) ([]*model.ProgressRecord, error) {
	if m.listProgressFunc != nil {
		return m.listProgressFunc(ctx, jobID, limit)
	}
	return nil, nil
}

// ============================================================================
// Mock RecruitmentAPI
// ============================================================================

type mockRecruitmentAPI struct {
	evaluateByIDFunc func(ctx context.Context, id string) (*model.RecruitmentEvaluation, error)
	triggerByIDFunc  func(ctx context.Context, id string) (*model.TriggerResult, error)
}

func (m *mockRecruitmentAPI) EvaluateByID(ctx context.Context, id string) (*model.RecruitmentEvaluation, error) {
	if m.evaluateByIDFunc != nil {
		return m.evaluateByIDFunc(ctx, id)
	}
	return nil, nil
}

func (m *mockRecruitmentAPI) TriggerByID(ctx context.Context, id string) (*model.TriggerResult, error) {
	if m.triggerByIDFunc != nil {
		return m.triggerByIDFunc(ctx, id)
	}
	return nil, nil
}

// ============================================================================
// Test Helpers
// ============================================================================

// newTestMux registers the job and recruitment routes the way the server does
func newTestMux(jobs JobAPI, recruitments RecruitmentAPI) *http.ServeMux {
	logger := logging.Discard()
	jh := NewJobHandler(jobs, logger)
	rh := NewRecruitmentHandler(recruitments, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/jobs", jh.Submit)
	mux.HandleFunc("GET /v1/jobs", jh.List)
	mux.HandleFunc("GET /v1/jobs/{jobId}", jh.Get)
	mux.HandleFunc("GET /v1/jobs/{jobId}/status", jh.Status)
	mux.HandleFunc("POST /v1/jobs/{jobId}/cancel", jh.Cancel)
	mux.HandleFunc("GET /v1/jobs/{jobId}/progress", jh.Progress)
	mux.HandleFunc("GET /v1/recruitments/{recruitmentId}/evaluation", rh.Evaluate)
	mux.HandleFunc("POST /v1/recruitments/{recruitmentId}/trigger", rh.Trigger)
	return mux
}

func serve(mux http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func newTestJob(id string, status model.JobStatus) *model.Job {
	now := time.Now()
	return &model.Job{
		ID:               id,
		Status:           status,
		MaxExecutionTime: model.DefaultMaxExecutionTime,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

func stringPtr(s string) *string {
	return &s
}
