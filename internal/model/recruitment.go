package model

import "time"

// RecruitmentStatus represents the lifecycle stage of a recruitment
type RecruitmentStatus string

const (
	RecruitmentStatusDraft      RecruitmentStatus = "draft"      // Collecting preferences
	RecruitmentStatusOptimizing RecruitmentStatus = "optimizing" // Optimization job in flight
	RecruitmentStatusActive     RecruitmentStatus = "active"     // Plan published
	RecruitmentStatusArchived   RecruitmentStatus = "archived"   // Expired
)

// Recruitment is one scheduling cycle with its own preference collection window
type Recruitment struct {
	ID                     string            `json:"id"`
	Name                   string            `json:"name"`
	Status                 RecruitmentStatus `json:"status"`
	HostPreferencesStart   *time.Time        `json:"host_preferences_start,omitempty"`
	UserPreferencesStart   *time.Time        `json:"user_preferences_start,omitempty"`
	OptimizationStart      *time.Time        `json:"optimization_start,omitempty"`
	OptimizationEnd        *time.Time        `json:"optimization_end,omitempty"`
	ExpirationDate         *time.Time        `json:"expiration_date,omitempty"`
	ParticipationThreshold float64           `json:"participation_threshold"` // Fraction in [0, 1]
	SubmittedCount         int               `json:"submitted_count"`
	MaxRoundExecutionTime  int               `json:"max_round_execution_time"` // Seconds
	CreatedOn              time.Time         `json:"created_on"`
	UpdatedOn              time.Time         `json:"updated_on"`
}

// recruitmentTransitions lists the forward edges of the recruitment lifecycle.
// optimizing -> draft is only used to roll back a failed job submission.
var recruitmentTransitions = map[RecruitmentStatus][]RecruitmentStatus{
	RecruitmentStatusDraft:      {RecruitmentStatusOptimizing},
	RecruitmentStatusOptimizing: {RecruitmentStatusActive, RecruitmentStatusDraft},
	RecruitmentStatusActive:     {RecruitmentStatusArchived},
}

// CanTransition reports whether a recruitment may move from one status to another
func (s RecruitmentStatus) CanTransition(to RecruitmentStatus) bool {
	for _, next := range recruitmentTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// IsExpired reports whether the expiration date has passed at now
func (r *Recruitment) IsExpired(now time.Time) bool {
	return r.ExpirationDate != nil && !now.Before(*r.ExpirationDate)
}

// RecruitmentEvaluation is the result of a trigger-condition check
type RecruitmentEvaluation struct {
	RecruitmentID string    `json:"recruitment_id"`
	ShouldTrigger bool      `json:"should_trigger"`
	EvaluatedAt   time.Time `json:"evaluated_at"`
}

// TriggerResult is returned by the manual trigger endpoint when nothing was triggered
type TriggerResult struct {
	Triggered bool `json:"triggered"`
	Job       *Job `json:"job,omitempty"`
}
