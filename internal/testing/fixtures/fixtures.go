package fixtures

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"testing"
	"time"

	"github.com/surrealdb/surrealdb.go/pkg/models"

	"github.com/forgo/planner/api/internal/database"
	"github.com/forgo/planner/api/internal/model"
)

// Factory creates test entities in the database
type Factory struct {
	db database.Database
}

// New creates a new fixture factory
func New(db database.Database) *Factory {
	return &Factory{db: db}
}

// randomID generates a random hex ID
func randomID() string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

// ctx returns a context with timeout
func ctx() context.Context {
	c, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	// Store cancel to prevent leak warning
	_ = cancel
	return c
}

// ============================================================================
// Recruitment Fixtures
// ============================================================================

// RecruitmentOpts customizes recruitment creation
type RecruitmentOpts struct {
	Name                   string
	Status                 model.RecruitmentStatus
	OptimizationStart      *time.Time
	OptimizationEnd        *time.Time
	ExpirationDate         *time.Time
	ParticipationThreshold float64
	SubmittedCount         int
	MaxRoundExecutionTime  int
}

// WithRecruitmentStatus sets the initial lifecycle status
func WithRecruitmentStatus(status model.RecruitmentStatus) func(*RecruitmentOpts) {
	return func(o *RecruitmentOpts) {
		o.Status = status
	}
}

// WithOptimizationWindow sets the optimization start and end dates
func WithOptimizationWindow(start, end time.Time) func(*RecruitmentOpts) {
	return func(o *RecruitmentOpts) {
		o.OptimizationStart = &start
		o.OptimizationEnd = &end
	}
}

// WithExpiration sets the expiration date
func WithExpiration(at time.Time) func(*RecruitmentOpts) {
	return func(o *RecruitmentOpts) {
		o.ExpirationDate = &at
	}
}

// WithParticipation sets the submitted count and threshold
func WithParticipation(submitted int, threshold float64) func(*RecruitmentOpts) {
	return func(o *RecruitmentOpts) {
		o.SubmittedCount = submitted
		o.ParticipationThreshold = threshold
	}
}

// CreateRecruitment creates a recruitment with optional customizations
func (f *Factory) CreateRecruitment(t *testing.T, opts ...func(*RecruitmentOpts)) *model.Recruitment {
	t.Helper()

	o := &RecruitmentOpts{
		Name:                   fmt.Sprintf("Recruitment %s", randomID()),
		Status:                 model.RecruitmentStatusDraft,
		ParticipationThreshold: 0.5,
		MaxRoundExecutionTime:  60,
	}
	for _, fn := range opts {
		fn(o)
	}

	query := `
		CREATE recruitment CONTENT {
			name: $name,
			status: $status,
			optimization_start: $optimization_start,
			optimization_end: $optimization_end,
			expiration_date: $expiration_date,
			participation_threshold: $participation_threshold,
			submitted_count: $submitted_count,
			max_round_execution_time: $max_round_execution_time,
			created_on: time::now(),
			updated_on: time::now()
		}
	`
	results, err := f.db.Query(ctx(), query, map[string]interface{}{
		"name":                     o.Name,
		"status":                   string(o.Status),
		"optimization_start":       o.OptimizationStart,
		"optimization_end":         o.OptimizationEnd,
		"expiration_date":          o.ExpirationDate,
		"participation_threshold":  o.ParticipationThreshold,
		"submitted_count":          o.SubmittedCount,
		"max_round_execution_time": o.MaxRoundExecutionTime,
	})
	if err != nil {
		t.Fatalf("fixtures: failed to create recruitment: %v", err)
	}

	return parseRecruitmentResult(t, results)
}

// AddParticipants enrolls count users in a recruitment
func (f *Factory) AddParticipants(t *testing.T, rec *model.Recruitment, count int) {
	t.Helper()

	for i := 0; i < count; i++ {
		query := `
			CREATE user_recruitment CONTENT {
				user: type::thing("user", $user),
				recruitment: type::record($recruitment),
				created_on: time::now()
			}
		`
		err := f.db.Execute(ctx(), query, map[string]interface{}{
			"user":        randomID(),
			"recruitment": rec.ID,
		})
		if err != nil {
			t.Fatalf("fixtures: failed to add participant: %v", err)
		}
	}
}

// ============================================================================
// Preference Fixtures
// ============================================================================

// SetConstraints stores the constraint document for a recruitment
func (f *Factory) SetConstraints(t *testing.T, rec *model.Recruitment, constraints map[string]interface{}) {
	t.Helper()

	query := `
		CREATE constraints CONTENT {
			recruitment: type::record($recruitment),
			constraints_data: $data,
			created_on: time::now()
		}
	`
	if err := f.db.Execute(ctx(), query, map[string]interface{}{
		"recruitment": rec.ID,
		"data":        constraints,
	}); err != nil {
		t.Fatalf("fixtures: failed to set constraints: %v", err)
	}
}

// SetManagementPreferences stores the management preference document
func (f *Factory) SetManagementPreferences(t *testing.T, rec *model.Recruitment, prefs map[string]interface{}) {
	t.Helper()

	query := `
		CREATE management_preferences CONTENT {
			recruitment: type::record($recruitment),
			preferences_data: $data,
			created_on: time::now()
		}
	`
	if err := f.db.Execute(ctx(), query, map[string]interface{}{
		"recruitment": rec.ID,
		"data":        prefs,
	}); err != nil {
		t.Fatalf("fixtures: failed to set management preferences: %v", err)
	}
}

// AddUserPreferences stores one user's preference document under a role
// ("host" or "participant")
func (f *Factory) AddUserPreferences(t *testing.T, rec *model.Recruitment, role string, prefs map[string]interface{}) {
	t.Helper()

	query := `
		CREATE user_preferences CONTENT {
			recruitment: type::record($recruitment),
			user: type::thing("user", $user),
			role: $role,
			preferences_data: $data,
			created_on: time::now()
		}
	`
	if err := f.db.Execute(ctx(), query, map[string]interface{}{
		"recruitment": rec.ID,
		"user":        randomID(),
		"role":        role,
		"data":        prefs,
	}); err != nil {
		t.Fatalf("fixtures: failed to add user preferences: %v", err)
	}
}

// ValidConstraints returns a constraint document carrying every required key
func ValidConstraints() map[string]interface{} {
	constraints := make(map[string]interface{}, len(model.RequiredConstraintKeys))
	for _, key := range model.RequiredConstraintKeys {
		constraints[key] = 1
	}
	return constraints
}

// ============================================================================
// Job Fixtures
// ============================================================================

// JobOpts customizes job creation
type JobOpts struct {
	Status           model.JobStatus
	CurrentIteration int
	Recruitment      *model.Recruitment
}

// WithJobStatus sets the initial job status
func WithJobStatus(status model.JobStatus) func(*JobOpts) {
	return func(o *JobOpts) {
		o.Status = status
	}
}

// WithJobRecruitment links the job to a recruitment
func WithJobRecruitment(rec *model.Recruitment) func(*JobOpts) {
	return func(o *JobOpts) {
		o.Recruitment = rec
	}
}

// CreateJob creates a job directly in the database
func (f *Factory) CreateJob(t *testing.T, opts ...func(*JobOpts)) *model.Job {
	t.Helper()

	o := &JobOpts{Status: model.JobStatusQueued}
	for _, fn := range opts {
		fn(o)
	}

	var recruitment *string
	if o.Recruitment != nil {
		recruitment = &o.Recruitment.ID
	}

	query := `
		CREATE job CONTENT {
			status: $status,
			problem_data: $problem_data,
			current_iteration: $current_iteration,
			max_execution_time: $max_execution_time,
			recruitment: IF $recruitment THEN type::record($recruitment) ELSE NONE END,
			created_at: time::now(),
			updated_at: time::now()
		}
	`
	results, err := f.db.Query(ctx(), query, map[string]interface{}{
		"status": string(o.Status),
		"problem_data": map[string]interface{}{
			"constraints": ValidConstraints(),
			"preferences": map[string]interface{}{
				"students":   []interface{}{},
				"teachers":   []interface{}{},
				"management": map[string]interface{}{},
			},
			"max_execution_time": model.DefaultMaxExecutionTime,
		},
		"current_iteration":  o.CurrentIteration,
		"max_execution_time": model.DefaultMaxExecutionTime,
		"recruitment":        recruitment,
	})
	if err != nil {
		t.Fatalf("fixtures: failed to create job: %v", err)
	}

	return parseJobResult(t, results)
}

// ============================================================================
// Result Parsers
// ============================================================================

func parseRecruitmentResult(t *testing.T, results []interface{}) *model.Recruitment {
	t.Helper()
	data := extractFirstResult(t, results)
	return &model.Recruitment{
		ID:                     getString(data, "id"),
		Name:                   getString(data, "name"),
		Status:                 model.RecruitmentStatus(getString(data, "status")),
		OptimizationStart:      getTimePtr(data, "optimization_start"),
		OptimizationEnd:        getTimePtr(data, "optimization_end"),
		ExpirationDate:         getTimePtr(data, "expiration_date"),
		ParticipationThreshold: getFloat(data, "participation_threshold"),
		SubmittedCount:         getInt(data, "submitted_count"),
		MaxRoundExecutionTime:  getInt(data, "max_round_execution_time"),
		CreatedOn:              getTime(data, "created_on"),
		UpdatedOn:              getTime(data, "updated_on"),
	}
}

func parseJobResult(t *testing.T, results []interface{}) *model.Job {
	t.Helper()
	data := extractFirstResult(t, results)
	job := &model.Job{
		ID:               getString(data, "id"),
		Status:           model.JobStatus(getString(data, "status")),
		CurrentIteration: getInt(data, "current_iteration"),
		MaxExecutionTime: getInt(data, "max_execution_time"),
		CreatedAt:        getTime(data, "created_at"),
		UpdatedAt:        getTime(data, "updated_at"),
	}
	if data["recruitment"] != nil {
		rec := getString(data, "recruitment")
		job.RecruitmentID = &rec
	}
	return job
}

// ============================================================================
// Data Extraction Helpers
// ============================================================================

func extractFirstResult(t *testing.T, results []interface{}) map[string]interface{} {
	t.Helper()
	if len(results) == 0 {
		t.Fatal("fixtures: no results returned")
	}

	// Handle SurrealDB response wrapper
	resp, ok := results[0].(map[string]interface{})
	if !ok {
		t.Fatalf("fixtures: unexpected result type: %T", results[0])
	}

	result, ok := resp["result"]
	if !ok {
		t.Fatal("fixtures: no result in response")
	}

	// Handle array result
	if arr, ok := result.([]interface{}); ok {
		if len(arr) == 0 {
			t.Fatal("fixtures: empty result array")
		}
		data, ok := arr[0].(map[string]interface{})
		if !ok {
			t.Fatalf("fixtures: unexpected array item type: %T", arr[0])
		}
		return data
	}

	// Handle single result
	data, ok := result.(map[string]interface{})
	if !ok {
		t.Fatalf("fixtures: unexpected result type: %T", result)
	}
	return data
}

func getString(data map[string]interface{}, key string) string {
	if v, ok := data[key].(string); ok {
		return v
	}
	// Handle SurrealDB 3 record ID type - could be a struct or map
	if v := data[key]; v != nil {
		// Try to get the ID as a map with "tb" (table) and "id" fields
		if m, ok := v.(map[string]interface{}); ok {
			if tb, ok := m["tb"].(string); ok {
				if id := m["id"]; id != nil {
					return fmt.Sprintf("%s:%v", tb, id)
				}
			}
		}
		// Fallback: use string conversion but fix the format if needed
		s := fmt.Sprintf("%v", v)
		// Convert "{table id}" to "table:id"
		if len(s) > 2 && s[0] == '{' && s[len(s)-1] == '}' {
			inner := s[1 : len(s)-1]
			for i, c := range inner {
				if c == ' ' {
					return inner[:i] + ":" + inner[i+1:]
				}
			}
		}
		return s
	}
	return ""
}

func getFloat(data map[string]interface{}, key string) float64 {
	switch v := data[key].(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	case uint64:
		return float64(v)
	}
	return 0
}

func getInt(data map[string]interface{}, key string) int {
	switch v := data[key].(type) {
	case float64:
		return int(v)
	case int64:
		return int(v)
	case uint64:
		return int(v)
	case int:
		return v
	}
	return 0
}

func getTime(data map[string]interface{}, key string) time.Time {
	switch v := data[key].(type) {
	case string:
		t, _ := time.Parse(time.RFC3339Nano, v)
		return t
	case time.Time:
		return v
	case models.CustomDateTime:
		return v.Time
	case *models.CustomDateTime:
		if v != nil {
			return v.Time
		}
	}
	return time.Time{}
}

func getTimePtr(data map[string]interface{}, key string) *time.Time {
	if t := getTime(data, key); !t.IsZero() {
		return &t
	}
	return nil
}
