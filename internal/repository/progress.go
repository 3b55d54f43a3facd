package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/forgo/planner/api/internal/database"
	"github.com/forgo/planner/api/internal/model"
)

// ProgressRepository handles append-only progress history
type ProgressRepository struct {
	db database.Database
}

// NewProgressRepository creates a new progress repository
func NewProgressRepository(db database.Database) *ProgressRepository {
	return &ProgressRepository{db: db}
}

// Create appends a progress record. Record ids are time-ordered UUIDv7 values,
// so ties on timestamp still sort by arrival.
func (r *ProgressRepository) Create(ctx context.Context, rec *model.ProgressRecord) error {
	id, err := uuid.NewV7()
	if err != nil {
		return fmt.Errorf("failed to generate progress id: %w", err)
	}

	query := `
		CREATE type::thing("progress", $key) CONTENT {
			job: type::record($job_id),
			iteration: $iteration,
			best_solution: $best_solution,
			timestamp: $timestamp
		}
	`
	vars := map[string]interface{}{
		"key":           id.String(),
		"job_id":        rec.JobID,
		"iteration":     rec.Iteration,
		"best_solution": rec.BestSolution,
		"timestamp":     rec.Timestamp,
	}

	if err := r.db.Execute(ctx, query, vars); err != nil {
		return fmt.Errorf("failed to create progress record: %w", err)
	}

	rec.ID = "progress:" + id.String()
	return nil
}

// ListByJob returns a job's progress history in arrival order
func (r *ProgressRepository) ListByJob(ctx context.Context, jobID string, limit int) ([]*model.ProgressRecord, error) {
	id, ok := recordID("job", jobID)
	if !ok {
		return []*model.ProgressRecord{}, nil
	}

	query := `
		SELECT * FROM progress
		WHERE job = type::record($job_id)
		ORDER BY timestamp ASC, id ASC
		LIMIT $limit
	`
	result, err := r.db.Query(ctx, query, map[string]interface{}{
		"job_id": id,
		"limit":  limit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list progress: %w", err)
	}

	records := make([]*model.ProgressRecord, 0)
	for _, item := range allRecords(result) {
		rec, err := r.parseRecord(item)
		if err != nil {
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

// GetLatest returns the most recently appended record for a job, or nil
func (r *ProgressRepository) GetLatest(ctx context.Context, jobID string) (*model.ProgressRecord, error) {
	id, ok := recordID("job", jobID)
	if !ok {
		return nil, nil
	}

	query := `
		SELECT * FROM progress
		WHERE job = type::record($job_id)
		ORDER BY timestamp DESC, id DESC
		LIMIT 1
	`
	result, err := r.db.QueryOne(ctx, query, map[string]interface{}{"job_id": id})
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get latest progress: %w", err)
	}

	return r.parseRecord(result)
}

func (r *ProgressRepository) parseRecord(result interface{}) (*model.ProgressRecord, error) {
	data, ok := result.(map[string]interface{})
	if !ok {
		return nil, errors.New("unexpected result format")
	}

	rec := &model.ProgressRecord{
		ID:           convertSurrealID(data["id"]),
		JobID:        convertSurrealID(data["job"]),
		Iteration:    getInt(data, "iteration"),
		BestSolution: data["best_solution"],
	}
	if t := getTime(data, "timestamp"); t != nil {
		rec.Timestamp = *t
	}
	return rec, nil
}
