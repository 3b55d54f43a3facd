package repository

import (
	"context"
	"fmt"

	"github.com/forgo/planner/api/internal/database"
	"github.com/forgo/planner/api/internal/model"
)

// Preference roles stored on user_preferences rows
const (
	PreferenceRoleHost        = "host"
	PreferenceRoleParticipant = "participant"
)

// PreferencesRepository reads the preference and constraint state that
// becomes an optimization problem
type PreferencesRepository struct {
	db database.Database
}

// NewPreferencesRepository creates a new preferences repository
func NewPreferencesRepository(db database.Database) *PreferencesRepository {
	return &PreferencesRepository{db: db}
}

// BuildProblem assembles the problem payload for a recruitment from its
// constraints, management preferences and submitted user preferences.
// Host preferences map to teachers, participant preferences to students.
func (r *PreferencesRepository) BuildProblem(ctx context.Context, rec *model.Recruitment) (model.ProblemData, error) {
	recID, ok := recordID("recruitment", rec.ID)
	if !ok {
		return model.ProblemData{}, fmt.Errorf("invalid recruitment id %q", rec.ID)
	}

	query := `
		SELECT constraints_data FROM constraints WHERE recruitment = type::record($id) LIMIT 1;
		SELECT preferences_data FROM management_preferences WHERE recruitment = type::record($id) LIMIT 1;
		SELECT preferences_data, role FROM user_preferences WHERE recruitment = type::record($id) ORDER BY created_on ASC;
	`
	result, err := r.db.Query(ctx, query, map[string]interface{}{"id": recID})
	if err != nil {
		return model.ProblemData{}, fmt.Errorf("failed to load preferences: %w", err)
	}

	problem := model.ProblemData{
		Preferences: model.ProblemPreferences{
			Students:   make([]interface{}, 0),
			Teachers:   make([]interface{}, 0),
			Management: make(map[string]interface{}),
		},
		MaxExecutionTime: clampExecutionTime(rec.MaxRoundExecutionTime),
	}

	constraints := statementRecords(result, 0)
	if len(constraints) == 0 {
		return model.ProblemData{}, fmt.Errorf("%w: constraints for %s", database.ErrNotFound, recID)
	}
	if row, ok := constraints[0].(map[string]interface{}); ok {
		if data, ok := row["constraints_data"].(map[string]interface{}); ok {
			problem.Constraints = data
		}
	}
	if problem.Constraints == nil {
		return model.ProblemData{}, fmt.Errorf("constraints for %s are not an object", recID)
	}

	if mgmt := statementRecords(result, 1); len(mgmt) > 0 {
		if row, ok := mgmt[0].(map[string]interface{}); ok {
			if data, ok := row["preferences_data"].(map[string]interface{}); ok {
				problem.Preferences.Management = data
			}
		}
	}

	for _, item := range statementRecords(result, 2) {
		row, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		prefs := row["preferences_data"]
		if prefs == nil {
			continue
		}
		if getString(row, "role") == PreferenceRoleHost {
			problem.Preferences.Teachers = append(problem.Preferences.Teachers, prefs)
		} else {
			problem.Preferences.Students = append(problem.Preferences.Students, prefs)
		}
	}

	return problem, nil
}

func clampExecutionTime(seconds int) int {
	switch {
	case seconds <= 0:
		return model.DefaultMaxExecutionTime
	case seconds < model.MinMaxExecutionTime:
		return model.MinMaxExecutionTime
	case seconds > model.MaxMaxExecutionTime:
		return model.MaxMaxExecutionTime
	}
	return seconds
}
