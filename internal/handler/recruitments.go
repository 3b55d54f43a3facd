package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/forgo/planner/api/internal/model"
)

// RecruitmentAPI is the recruitment service surface used by the HTTP layer
type RecruitmentAPI interface {
	EvaluateByID(ctx context.Context, id string) (*model.RecruitmentEvaluation, error)
	TriggerByID(ctx context.Context, id string) (*model.TriggerResult, error)
}

// RecruitmentHandler handles recruitment lifecycle HTTP requests
type RecruitmentHandler struct {
	recruitments RecruitmentAPI
	logger       *slog.Logger
}

// NewRecruitmentHandler creates a new recruitment handler
func NewRecruitmentHandler(recruitments RecruitmentAPI, logger *slog.Logger) *RecruitmentHandler {
	return &RecruitmentHandler{recruitments: recruitments, logger: logger}
}

// Evaluate handles GET /v1/recruitments/{recruitmentId}/evaluation
func (h *RecruitmentHandler) Evaluate(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("recruitmentId")

	eval, err := h.recruitments.EvaluateByID(r.Context(), id)
	if err != nil {
		h.handleError(w, r, err, "evaluate recruitment")
		return
	}

	WriteData(w, http.StatusOK, eval, nil)
}

// Trigger handles POST /v1/recruitments/{recruitmentId}/trigger
func (h *RecruitmentHandler) Trigger(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("recruitmentId")

	result, err := h.recruitments.TriggerByID(r.Context(), id)
	if err != nil {
		h.handleError(w, r, err, "trigger recruitment")
		return
	}

	if !result.Triggered {
		WriteData(w, http.StatusOK, result, nil)
		return
	}
	WriteData(w, http.StatusCreated, result.Job, jobLinks(result.Job.ID))
}

func (h *RecruitmentHandler) handleError(w http.ResponseWriter, r *http.Request, err error, operation string) {
	pd := MapServiceErrorWithContext(err, operation)
	if pd.Status >= http.StatusInternalServerError {
		h.logger.Error("request failed", "operation", operation, "path", r.URL.Path, "error", err)
	}
	WriteError(w, r, pd)
}
