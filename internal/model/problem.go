package model

import "fmt"

// RequiredConstraintKeys must all be present in a problem's constraints object
var RequiredConstraintKeys = []string{
	"timeslots_per_day",
	"groups_per_subject",
	"groups_soft_capacity",
	"students_subjects",
	"teachers_groups",
	"rooms_unavailability_timeslots",
}

// ProblemData is the optimization input handed to the external worker.
// Its inner structure belongs to the worker; only the top-level shape is checked here.
type ProblemData struct {
	Constraints      map[string]interface{} `json:"constraints"`
	Preferences      ProblemPreferences     `json:"preferences"`
	MaxExecutionTime int                    `json:"max_execution_time,omitempty"`
}

// ProblemPreferences groups the preference sets by who submitted them
type ProblemPreferences struct {
	Students   []interface{}          `json:"students"`
	Teachers   []interface{}          `json:"teachers"`
	Management map[string]interface{} `json:"management"`
}

// ExecutionTime returns the configured time budget or the default
func (p ProblemData) ExecutionTime() int {
	if p.MaxExecutionTime == 0 {
		return DefaultMaxExecutionTime
	}
	return p.MaxExecutionTime
}

// Validate checks the payload shape the worker relies on
func (p ProblemData) Validate() []FieldError {
	var errors []FieldError

	if p.Constraints == nil {
		errors = append(errors, FieldError{Field: "constraints", Message: "constraints is required"})
	} else {
		for _, key := range RequiredConstraintKeys {
			if _, ok := p.Constraints[key]; !ok {
				errors = append(errors, FieldError{
					Field:   "constraints." + key,
					Message: fmt.Sprintf("missing required constraint field: %s", key),
				})
			}
		}
	}

	if p.Preferences.Students == nil {
		errors = append(errors, FieldError{Field: "preferences.students", Message: "missing required preference field: students"})
	}
	if p.Preferences.Teachers == nil {
		errors = append(errors, FieldError{Field: "preferences.teachers", Message: "missing required preference field: teachers"})
	}
	if p.Preferences.Management == nil {
		errors = append(errors, FieldError{Field: "preferences.management", Message: "missing required preference field: management"})
	}

	if p.MaxExecutionTime != 0 && (p.MaxExecutionTime < MinMaxExecutionTime || p.MaxExecutionTime > MaxMaxExecutionTime) {
		errors = append(errors, FieldError{
			Field:   "max_execution_time",
			Message: fmt.Sprintf("must be between %d and %d seconds", MinMaxExecutionTime, MaxMaxExecutionTime),
		})
	}

	return errors
}
