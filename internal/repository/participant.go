package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/forgo/planner/api/internal/database"
)

// ParticipantRepository counts the users enrolled in a recruitment
type ParticipantRepository struct {
	db database.Database
}

// NewParticipantRepository creates a new participant repository
func NewParticipantRepository(db database.Database) *ParticipantRepository {
	return &ParticipantRepository{db: db}
}

// CountEligible returns the number of users enrolled in the recruitment
func (r *ParticipantRepository) CountEligible(ctx context.Context, recruitmentID string) (int, error) {
	id, ok := recordID("recruitment", recruitmentID)
	if !ok {
		return 0, fmt.Errorf("invalid recruitment id %q", recruitmentID)
	}

	query := `
		SELECT count() AS count FROM user_recruitment
		WHERE recruitment = type::record($id)
		GROUP ALL
	`
	result, err := r.db.QueryOne(ctx, query, map[string]interface{}{"id": id})
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to count participants: %w", err)
	}

	data, ok := result.(map[string]interface{})
	if !ok {
		return 0, errors.New("unexpected result format")
	}
	return extractCountValue(data["count"]), nil
}
