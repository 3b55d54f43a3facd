package model

import "time"

// JobStatus represents the lifecycle stage of an optimization job
type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// Execution time bounds for a single optimization round, in seconds
const (
	DefaultMaxExecutionTime = 300
	MinMaxExecutionTime     = 10
	MaxMaxExecutionTime     = 3600
)

// IsTerminal reports whether no further transitions are allowed
func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	}
	return false
}

// IsValid reports whether s is one of the known job statuses
func (s JobStatus) IsValid() bool {
	switch s {
	case JobStatusQueued, JobStatusRunning, JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	}
	return false
}

// Job is one asynchronous optimization run
type Job struct {
	ID               string      `json:"id"`
	RecruitmentID    *string     `json:"recruitment_id,omitempty"`
	Status           JobStatus   `json:"status"`
	ProblemData      ProblemData `json:"problem_data"`
	CurrentIteration int         `json:"current_iteration"`
	FinalSolution    interface{} `json:"final_solution,omitempty"`
	ErrorMessage     *string     `json:"error_message,omitempty"`
	MaxExecutionTime int         `json:"max_execution_time"`
	CreatedAt        time.Time   `json:"created_at"`
	UpdatedAt        time.Time   `json:"updated_at"`
	StartedAt        *time.Time  `json:"started_at,omitempty"`
	CompletedAt      *time.Time  `json:"completed_at,omitempty"`
}

// ProgressRecord is one immutable best-solution snapshot reported by a worker
type ProgressRecord struct {
	ID           string      `json:"id"`
	JobID        string      `json:"job_id"`
	Iteration    int         `json:"iteration"`
	BestSolution interface{} `json:"best_solution"`
	Timestamp    time.Time   `json:"timestamp"`
}

// JobStatusView is the compact status shape served from the status cache
type JobStatusView struct {
	JobID            string    `json:"job_id"`
	Status           JobStatus `json:"status"`
	CurrentIteration int       `json:"current_iteration"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// StatusView projects a job onto its cacheable status fields
func (j *Job) StatusView() *JobStatusView {
	return &JobStatusView{
		JobID:            j.ID,
		Status:           j.Status,
		CurrentIteration: j.CurrentIteration,
		CreatedAt:        j.CreatedAt,
		UpdatedAt:        j.UpdatedAt,
	}
}

// LatestProgress is the most recent progress record embedded in a snapshot
type LatestProgress struct {
	Iteration    int         `json:"iteration"`
	BestSolution interface{} `json:"best_solution"`
	Timestamp    time.Time   `json:"timestamp"`
}

// JobSnapshot is the full job state sent to live subscribers
type JobSnapshot struct {
	JobID            string          `json:"job_id"`
	Status           JobStatus       `json:"status"`
	CurrentIteration int             `json:"current_iteration"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
	StartedAt        *time.Time      `json:"started_at,omitempty"`
	CompletedAt      *time.Time      `json:"completed_at,omitempty"`
	ErrorMessage     *string         `json:"error_message,omitempty"`
	FinalSolution    interface{}     `json:"final_solution,omitempty"`
	LatestProgress   *LatestProgress `json:"latest_progress,omitempty"`
}

// NewJobSnapshot builds a snapshot from a job and its latest progress record, if any
func NewJobSnapshot(job *Job, latest *ProgressRecord) *JobSnapshot {
	snap := &JobSnapshot{
		JobID:            job.ID,
		Status:           job.Status,
		CurrentIteration: job.CurrentIteration,
		CreatedAt:        job.CreatedAt,
		UpdatedAt:        job.UpdatedAt,
		StartedAt:        job.StartedAt,
		CompletedAt:      job.CompletedAt,
		ErrorMessage:     job.ErrorMessage,
		FinalSolution:    job.FinalSolution,
	}
	if latest != nil {
		snap.LatestProgress = &LatestProgress{
			Iteration:    latest.Iteration,
			BestSolution: latest.BestSolution,
			Timestamp:    latest.Timestamp,
		}
	}
	return snap
}

// SubmitJobRequest is the body of POST /v1/jobs. Jobs owned by a recruitment
// are only started through the recruitment trigger, so RecruitmentID is
// decoded solely to reject it with a field error.
type SubmitJobRequest struct {
	RecruitmentID *string     `json:"recruitment_id,omitempty"`
	ProblemData   ProblemData `json:"problem_data"`
}

// Validate checks the submitted problem payload
func (r *SubmitJobRequest) Validate() []FieldError {
	var errors []FieldError
	if r.RecruitmentID != nil {
		errors = append(errors, FieldError{
			Field:   "recruitment_id",
			Message: "recruitment jobs are started with POST /v1/recruitments/{recruitmentId}/trigger",
		})
	}
	for _, fe := range r.ProblemData.Validate() {
		fe.Field = "problem_data." + fe.Field
		errors = append(errors, fe)
	}
	return errors
}

// CancelJobResponse is returned by POST /v1/jobs/{jobId}/cancel
type CancelJobResponse struct {
	JobID     string `json:"job_id"`
	Cancelled bool   `json:"cancelled"`
}
