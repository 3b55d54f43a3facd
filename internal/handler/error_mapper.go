package handler

import (
	"errors"
	"net/http"

	"github.com/forgo/planner/api/internal/model"
	"github.com/forgo/planner/api/internal/service"
)

// MapServiceError converts a service error to a ProblemDetails response
func MapServiceError(err error) *model.ProblemDetails {
	if err == nil {
		return nil
	}

	// Errors that already carry a problem response pass through unchanged
	var pd *model.ProblemDetails
	if errors.As(err, &pd) {
		return pd
	}

	switch {
	// ===== Not Found Errors → 404 =====
	case errors.Is(err, service.ErrJobNotFound):
		return model.NewNotFoundError("job")
	case errors.Is(err, service.ErrRecruitmentNotFound):
		return model.NewNotFoundError("recruitment")

	// ===== Conflict Errors → 409 =====
	case errors.Is(err, service.ErrJobNotCancellable), errors.Is(err, service.ErrRecruitmentBusy):
		return model.NewConflictError(err.Error())

	// ===== Validation Errors → 422 =====
	case errors.Is(err, service.ErrNoConstraints):
		return model.NewValidationError([]model.FieldError{{Field: "constraints", Message: err.Error()}})

	// ===== Broker Errors → 503 =====
	case errors.Is(err, service.ErrPublishFailed):
		return model.NewBrokerError("job could not be queued for optimization")

	// ===== Default → 500 =====
	default:
		return model.NewInternalError("")
	}
}

// MapServiceErrorWithContext is MapServiceError with the failed operation
// named in place of any 5xx detail
func MapServiceErrorWithContext(err error, operation string) *model.ProblemDetails {
	pd := MapServiceError(err)
	if pd != nil && pd.Status == http.StatusInternalServerError {
		pd.Detail = operation + ": an unexpected error occurred"
	}
	return pd
}
