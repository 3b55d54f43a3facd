package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrInvalidProgressMessage marks a progress payload that cannot be applied
var ErrInvalidProgressMessage = errors.New("invalid progress message")

// ControlAction names a cooperative instruction for a running worker
type ControlAction string

const (
	ControlActionCancel ControlAction = "cancel"
)

// WorkMessage is published to the optimizer work queue
type WorkMessage struct {
	JobID       string      `json:"job_id"`
	ProblemData ProblemData `json:"problem_data"`
	Timestamp   time.Time   `json:"timestamp"`
}

// ControlMessage is published to the control queue
type ControlMessage struct {
	JobID     string                 `json:"job_id"`
	Action    ControlAction          `json:"action"`
	Data      map[string]interface{} `json:"data"`
	Timestamp time.Time              `json:"timestamp"`
}

// MessageID is the broker message id for this control message
func (m ControlMessage) MessageID() string {
	return fmt.Sprintf("%s_%s", m.JobID, m.Action)
}

// ProgressMessage is a normalized progress report from a worker
type ProgressMessage struct {
	JobID        string
	Iteration    int
	BestSolution interface{}
	// Outcome is set when the worker reports the run finished (completed or failed)
	Outcome      JobStatus
	ErrorMessage string
}

// progressEnvelope accepts both the nested results form and the flat form
// emitted by the worker's progress reporter.
type progressEnvelope struct {
	JobID        *string `json:"job_id"`
	IterationNum *int    `json:"iteration_num"`
	Iteration    *int    `json:"iteration"`
	Results      *struct {
		BestSolution interface{} `json:"best_solution"`
	} `json:"results"`
	BestSolution interface{} `json:"best_solution"`
	Status       string      `json:"status"`
	ErrorMessage string      `json:"error_message"`
}

// DecodeProgressMessage parses and validates a raw progress payload
func DecodeProgressMessage(body []byte) (*ProgressMessage, error) {
	var env progressEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidProgressMessage, err)
	}

	if env.JobID == nil || *env.JobID == "" {
		return nil, fmt.Errorf("%w: missing job_id", ErrInvalidProgressMessage)
	}

	iteration := env.IterationNum
	if iteration == nil {
		iteration = env.Iteration
	}
	if iteration == nil {
		return nil, fmt.Errorf("%w: missing iteration_num", ErrInvalidProgressMessage)
	}
	if *iteration < 0 {
		return nil, fmt.Errorf("%w: negative iteration_num %d", ErrInvalidProgressMessage, *iteration)
	}

	msg := &ProgressMessage{
		JobID:        *env.JobID,
		Iteration:    *iteration,
		BestSolution: env.BestSolution,
		ErrorMessage: env.ErrorMessage,
	}
	if env.Results != nil {
		msg.BestSolution = env.Results.BestSolution
	}

	switch JobStatus(env.Status) {
	case "", JobStatusQueued, JobStatusRunning:
	case JobStatusCompleted, JobStatusFailed:
		msg.Outcome = JobStatus(env.Status)
	default:
		return nil, fmt.Errorf("%w: unsupported status %q", ErrInvalidProgressMessage, env.Status)
	}

	return msg, nil
}
