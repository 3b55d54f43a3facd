package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/forgo/planner/api/internal/database"
	"github.com/forgo/planner/api/internal/model"
)

// activeJobFilter matches jobs that may still change state
const activeJobFilter = `status IN ["queued", "running"]`

// JobRepository handles optimization job data access
type JobRepository struct {
	db database.Database
}

// NewJobRepository creates a new job repository
func NewJobRepository(db database.Database) *JobRepository {
	return &JobRepository{db: db}
}

// Create inserts a new job and fills in its generated id and timestamps
func (r *JobRepository) Create(ctx context.Context, job *model.Job) error {
	problem, err := toDocument(job.ProblemData)
	if err != nil {
		return fmt.Errorf("failed to encode problem data: %w", err)
	}

	vars := map[string]interface{}{
		"status":             job.Status,
		"problem_data":       problem,
		"max_execution_time": job.MaxExecutionTime,
	}

	optionalFields := ""
	if job.RecruitmentID != nil && *job.RecruitmentID != "" {
		recID, ok := recordID("recruitment", *job.RecruitmentID)
		if !ok {
			return fmt.Errorf("invalid recruitment id %q", *job.RecruitmentID)
		}
		optionalFields += ",\n\t\t\trecruitment: type::record($recruitment_id)"
		vars["recruitment_id"] = recID
	}

	query := `
		CREATE job CONTENT {
			status: $status,
			problem_data: $problem_data,
			current_iteration: 0,
			max_execution_time: $max_execution_time,
			created_at: time::now(),
			updated_at: time::now()` + optionalFields + `
		}
	`

	result, err := r.db.Query(ctx, query, vars)
	if err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}

	records := statementRecords(result, 0)
	if len(records) == 0 {
		return errors.New("failed to create job: no record returned")
	}
	created, err := r.parseJob(records[0])
	if err != nil {
		return fmt.Errorf("failed to parse created job: %w", err)
	}

	job.ID = created.ID
	job.CurrentIteration = created.CurrentIteration
	job.CreatedAt = created.CreatedAt
	job.UpdatedAt = created.UpdatedAt
	return nil
}

// GetByID retrieves a job by ID. Returns nil, nil when it does not exist.
func (r *JobRepository) GetByID(ctx context.Context, id string) (*model.Job, error) {
	jobID, ok := recordID("job", id)
	if !ok {
		return nil, nil
	}

	result, err := r.db.QueryOne(ctx, `SELECT * FROM type::record($id)`, map[string]interface{}{"id": jobID})
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	return r.parseJob(result)
}

// ListByStatus returns jobs in the given status, newest first
func (r *JobRepository) ListByStatus(ctx context.Context, status model.JobStatus, limit int) ([]*model.Job, error) {
	query := `
		SELECT * FROM job
		WHERE status = $status
		ORDER BY created_at DESC
		LIMIT $limit
	`
	result, err := r.db.Query(ctx, query, map[string]interface{}{
		"status": status,
		"limit":  limit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}

	return r.parseJobs(result), nil
}

// HasActiveJob reports whether a recruitment owns a queued or running job
func (r *JobRepository) HasActiveJob(ctx context.Context, recruitmentID string) (bool, error) {
	recID, ok := recordID("recruitment", recruitmentID)
	if !ok {
		return false, fmt.Errorf("invalid recruitment id %q", recruitmentID)
	}

	query := `SELECT VALUE id FROM job WHERE recruitment = type::record($recruitment_id) AND ` + activeJobFilter + ` LIMIT 1`
	result, err := r.db.Query(ctx, query, map[string]interface{}{"recruitment_id": recID})
	if err != nil {
		return false, fmt.Errorf("failed to look up active jobs: %w", err)
	}
	return len(statementRecords(result, 0)) > 0, nil
}

// SaveProgress writes the iteration, solution, status and start time of a
// job that is still queued or running. The stored iteration never moves
// backwards and an existing start time is kept. Returns false when the job
// reached a terminal state or a newer iteration in the meantime.
func (r *JobRepository) SaveProgress(ctx context.Context, job *model.Job) (bool, error) {
	vars := map[string]interface{}{
		"id":                job.ID,
		"status":            job.Status,
		"current_iteration": job.CurrentIteration,
		"final_solution":    job.FinalSolution,
	}

	sets := "status = $status, current_iteration = $current_iteration, final_solution = $final_solution, updated_at = time::now()"
	if job.StartedAt != nil {
		sets += ", started_at = started_at ?? $started_at"
		vars["started_at"] = *job.StartedAt
	}

	query := `UPDATE type::record($id) SET ` + sets +
		` WHERE ` + activeJobFilter + ` AND current_iteration <= $current_iteration RETURN AFTER`
	result, err := r.db.Query(ctx, query, vars)
	if err != nil {
		return false, fmt.Errorf("failed to save job progress: %w", err)
	}

	records := statementRecords(result, 0)
	if len(records) == 0 {
		return false, nil
	}
	if updated, err := r.parseJob(records[0]); err == nil {
		job.StartedAt = updated.StartedAt
		job.UpdatedAt = updated.UpdatedAt
	}
	return true, nil
}

// Cancel moves a queued or running job to cancelled. Returns nil when the job
// is missing or already terminal.
func (r *JobRepository) Cancel(ctx context.Context, id string) (*model.Job, error) {
	jobID, ok := recordID("job", id)
	if !ok {
		return nil, nil
	}

	query := `
		UPDATE type::record($id) SET
			status = "cancelled",
			completed_at = time::now(),
			updated_at = time::now()
		WHERE ` + activeJobFilter + `
		RETURN AFTER
	`
	result, err := r.db.Query(ctx, query, map[string]interface{}{"id": jobID})
	if err != nil {
		return nil, fmt.Errorf("failed to cancel job: %w", err)
	}

	records := statementRecords(result, 0)
	if len(records) == 0 {
		return nil, nil
	}
	return r.parseJob(records[0])
}

// Finish records the worker's terminal outcome for a job that is still
// active. When the job completed and belongs to a recruitment, the
// recruitment moves from optimizing to active in the same transaction.
// Returns false when the job had already reached a terminal state.
func (r *JobRepository) Finish(ctx context.Context, job *model.Job) (bool, error) {
	jobVars := map[string]interface{}{
		"id":                job.ID,
		"status":            job.Status,
		"current_iteration": job.CurrentIteration,
		"final_solution":    job.FinalSolution,
	}
	sets := "status = $status, current_iteration = $current_iteration, final_solution = $final_solution, completed_at = time::now(), updated_at = time::now()"
	if job.ErrorMessage != nil {
		sets += ", error_message = $error_message"
		jobVars["error_message"] = *job.ErrorMessage
	}
	if job.StartedAt != nil {
		sets += ", started_at = started_at ?? $started_at"
		jobVars["started_at"] = *job.StartedAt
	}

	tb := database.NewTxBuilder()
	tb.Add(`LET $finished = (UPDATE type::record($id) SET `+sets+` WHERE `+activeJobFilter+` RETURN AFTER)`, jobVars)
	if job.Status == model.JobStatusCompleted && job.RecruitmentID != nil {
		tb.Add(`
			IF array::len($finished) > 0 {
				UPDATE type::record($recruitment_id) SET status = "active", updated_on = time::now()
				WHERE status = "optimizing"
			}
		`, map[string]interface{}{"recruitment_id": *job.RecruitmentID})
	}

	tb.AddRaw(`SELECT * FROM $finished`)

	result, err := database.ExecuteTransaction(ctx, r.db, tb)
	if err != nil {
		return false, fmt.Errorf("failed to finish job: %w", err)
	}

	records := statementRecords(result, len(result)-1)
	if len(records) == 0 {
		return false, nil
	}
	if stored, err := r.parseJob(records[0]); err == nil {
		job.StartedAt = stored.StartedAt
		job.CompletedAt = stored.CompletedAt
		job.UpdatedAt = stored.UpdatedAt
	}
	return true, nil
}

// MarkFailed moves a job straight to failed with an error message
func (r *JobRepository) MarkFailed(ctx context.Context, id, message string) error {
	query := `
		UPDATE type::record($id) SET
			status = "failed",
			error_message = $message,
			completed_at = time::now(),
			updated_at = time::now()
		WHERE ` + activeJobFilter
	if err := r.db.Execute(ctx, query, map[string]interface{}{"id": id, "message": message}); err != nil {
		return fmt.Errorf("failed to mark job failed: %w", err)
	}
	return nil
}

// Delete removes a job together with its progress history
func (r *JobRepository) Delete(ctx context.Context, id string) error {
	vars := map[string]interface{}{"id": id}
	batch := database.NewAtomicBatch().
		Add(`DELETE progress WHERE job = type::record($id)`, vars).
		Add(`DELETE type::record($id)`, vars)

	if err := batch.Execute(ctx, r.db); err != nil {
		return fmt.Errorf("failed to delete job: %w", err)
	}
	return nil
}

func (r *JobRepository) parseJob(result interface{}) (*model.Job, error) {
	data, ok := result.(map[string]interface{})
	if !ok {
		return nil, errors.New("unexpected result format")
	}

	job := &model.Job{
		ID:               convertSurrealID(data["id"]),
		Status:           model.JobStatus(getString(data, "status")),
		CurrentIteration: getInt(data, "current_iteration"),
		FinalSolution:    data["final_solution"],
		ErrorMessage:     getStringPtr(data, "error_message"),
		MaxExecutionTime: getInt(data, "max_execution_time"),
		StartedAt:        getTime(data, "started_at"),
		CompletedAt:      getTime(data, "completed_at"),
	}

	if recID := convertSurrealID(data["recruitment"]); recID != "" {
		job.RecruitmentID = &recID
	}
	if doc, ok := data["problem_data"]; ok && doc != nil {
		if err := fromDocument(doc, &job.ProblemData); err != nil {
			return nil, fmt.Errorf("failed to decode problem data: %w", err)
		}
	}
	if t := getTime(data, "created_at"); t != nil {
		job.CreatedAt = *t
	}
	if t := getTime(data, "updated_at"); t != nil {
		job.UpdatedAt = *t
	}

	return job, nil
}

func (r *JobRepository) parseJobs(result []interface{}) []*model.Job {
	jobs := make([]*model.Job, 0)
	for _, item := range allRecords(result) {
		job, err := r.parseJob(item)
		if err != nil {
			continue
		}
		jobs = append(jobs, job)
	}
	return jobs
}
