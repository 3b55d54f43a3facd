package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/forgo/planner/api/internal/database"
	"github.com/forgo/planner/api/internal/model"
)

// RecruitmentRepository handles recruitment lifecycle data access
type RecruitmentRepository struct {
	db database.Database
}

// NewRecruitmentRepository creates a new recruitment repository
func NewRecruitmentRepository(db database.Database) *RecruitmentRepository {
	return &RecruitmentRepository{db: db}
}

// GetByID retrieves a recruitment by ID. Returns nil, nil when it does not exist.
func (r *RecruitmentRepository) GetByID(ctx context.Context, id string) (*model.Recruitment, error) {
	recID, ok := recordID("recruitment", id)
	if !ok {
		return nil, nil
	}

	result, err := r.db.QueryOne(ctx, `SELECT * FROM type::record($id)`, map[string]interface{}{"id": recID})
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get recruitment: %w", err)
	}

	return r.parseRecruitment(result)
}

// ListByStatus returns every recruitment in the given status
func (r *RecruitmentRepository) ListByStatus(ctx context.Context, status model.RecruitmentStatus) ([]*model.Recruitment, error) {
	query := `
		SELECT * FROM recruitment
		WHERE status = $status
		ORDER BY created_on ASC
	`
	result, err := r.db.Query(ctx, query, map[string]interface{}{"status": status})
	if err != nil {
		return nil, fmt.Errorf("failed to list recruitments: %w", err)
	}

	recruitments := make([]*model.Recruitment, 0)
	for _, item := range allRecords(result) {
		rec, err := r.parseRecruitment(item)
		if err != nil {
			continue
		}
		recruitments = append(recruitments, rec)
	}
	return recruitments, nil
}

// CompareAndSwapStatus moves a recruitment from one status to another only if
// it is currently in the expected status. Returns whether the swap happened.
func (r *RecruitmentRepository) CompareAndSwapStatus(ctx context.Context, id string, from, to model.RecruitmentStatus) (bool, error) {
	recID, ok := recordID("recruitment", id)
	if !ok {
		return false, nil
	}

	query := `
		UPDATE type::record($id) SET
			status = $to,
			updated_on = time::now()
		WHERE status = $from
		RETURN AFTER
	`
	result, err := r.db.Query(ctx, query, map[string]interface{}{
		"id":   recID,
		"from": from,
		"to":   to,
	})
	if err != nil {
		return false, fmt.Errorf("failed to update recruitment status: %w", err)
	}

	return len(statementRecords(result, 0)) > 0, nil
}

func (r *RecruitmentRepository) parseRecruitment(result interface{}) (*model.Recruitment, error) {
	data, ok := result.(map[string]interface{})
	if !ok {
		return nil, errors.New("unexpected result format")
	}

	rec := &model.Recruitment{
		ID:                     convertSurrealID(data["id"]),
		Name:                   getString(data, "name"),
		Status:                 model.RecruitmentStatus(getString(data, "status")),
		HostPreferencesStart:   getTime(data, "host_preferences_start"),
		UserPreferencesStart:   getTime(data, "user_preferences_start"),
		OptimizationStart:      getTime(data, "optimization_start"),
		OptimizationEnd:        getTime(data, "optimization_end"),
		ExpirationDate:         getTime(data, "expiration_date"),
		ParticipationThreshold: getFloat(data, "participation_threshold"),
		SubmittedCount:         getInt(data, "submitted_count"),
		MaxRoundExecutionTime:  getInt(data, "max_round_execution_time"),
	}
	if t := getTime(data, "created_on"); t != nil {
		rec.CreatedOn = *t
	}
	if t := getTime(data, "updated_on"); t != nil {
		rec.UpdatedOn = *t
	}

	return rec, nil
}
