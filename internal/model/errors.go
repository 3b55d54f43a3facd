package model

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// ErrorCode is the machine-readable code carried in every problem response.
// The thousands digit groups codes: 3 resource, 4 input, 5 server side.
type ErrorCode int

const (
	ErrCodeNotFound ErrorCode = 3001
	ErrCodeConflict ErrorCode = 3003

	ErrCodeValidation   ErrorCode = 4001
	ErrCodeInvalidInput ErrorCode = 4002

	ErrCodeInternal    ErrorCode = 5001
	ErrCodeBroker      ErrorCode = 5003
	ErrCodeUnavailable ErrorCode = 5004
)

const problemTypeBase = "https://planner-api.forgo.software/errors/"

// ProblemDetails represents RFC 9457 Problem Details for HTTP APIs
type ProblemDetails struct {
	Type     string       `json:"type"`
	Title    string       `json:"title"`
	Status   int          `json:"status"`
	Detail   string       `json:"detail,omitempty"`
	Instance string       `json:"instance,omitempty"`
	Errors   []FieldError `json:"errors,omitempty"`
	Code     ErrorCode    `json:"code,omitempty"`
}

// FieldError represents a validation error on a specific field
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func newProblem(status int, slug string, code ErrorCode, detail string) *ProblemDetails {
	return &ProblemDetails{
		Type:   problemTypeBase + slug,
		Title:  http.StatusText(status),
		Status: status,
		Detail: detail,
		Code:   code,
	}
}

// Error implements the error interface
func (p *ProblemDetails) Error() string {
	return fmt.Sprintf("[%d] %s: %s", p.Status, p.Title, p.Detail)
}

// WithInstance returns a copy of the problem pointing at the request path
func (p *ProblemDetails) WithInstance(instance string) *ProblemDetails {
	cp := *p
	cp.Instance = instance
	return &cp
}

// WriteJSON writes the problem as an application/problem+json response
func (p *ProblemDetails) WriteJSON(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(p.Status)
	_ = json.NewEncoder(w).Encode(p)
}

// NewNotFoundError reports a missing job or recruitment
func NewNotFoundError(resource string) *ProblemDetails {
	return newProblem(http.StatusNotFound, "not-found", ErrCodeNotFound, resource+" not found")
}

// NewValidationError creates a 422 listing the failing fields. The detail
// names the first field and counts the rest.
func NewValidationError(errors []FieldError) *ProblemDetails {
	detail := "One or more fields failed validation"
	if len(errors) > 0 {
		detail = errors[0].Field + ": " + errors[0].Message
		if len(errors) > 1 {
			detail = fmt.Sprintf("%s (and %d more errors)", detail, len(errors)-1)
		}
	}
	p := newProblem(http.StatusUnprocessableEntity, "validation", ErrCodeValidation, detail)
	p.Title = "Validation Error"
	p.Errors = errors
	return p
}

// NewConflictError reports a request that contradicts the current job or
// recruitment state
func NewConflictError(detail string) *ProblemDetails {
	return newProblem(http.StatusConflict, "conflict", ErrCodeConflict, detail)
}

// NewInternalError creates a 500. An empty detail gets a generic message.
func NewInternalError(detail string) *ProblemDetails {
	if detail == "" {
		detail = "An unexpected error occurred"
	}
	return newProblem(http.StatusInternalServerError, "internal", ErrCodeInternal, detail)
}

// NewBadRequestError reports a body that could not be decoded
func NewBadRequestError(detail string) *ProblemDetails {
	return newProblem(http.StatusBadRequest, "bad-request", ErrCodeInvalidInput, detail)
}

// NewServiceUnavailableError creates a 503 for a missing dependency
func NewServiceUnavailableError(detail string) *ProblemDetails {
	return newProblem(http.StatusServiceUnavailable, "unavailable", ErrCodeUnavailable, detail)
}

// NewBrokerError reports a job that could not be handed to the optimizer queue
func NewBrokerError(detail string) *ProblemDetails {
	return newProblem(http.StatusServiceUnavailable, "broker", ErrCodeBroker, detail)
}
