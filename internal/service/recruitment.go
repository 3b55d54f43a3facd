package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/forgo/planner/api/internal/database"
	"github.com/forgo/planner/api/internal/model"
)

// RecruitmentRepository defines the interface for recruitment storage
type RecruitmentRepository interface {
	GetByID(ctx context.Context, id string) (*model.Recruitment, error)
	ListByStatus(ctx context.Context, status model.RecruitmentStatus) ([]*model.Recruitment, error)
	CompareAndSwapStatus(ctx context.Context, id string, from, to model.RecruitmentStatus) (bool, error)
}

// ProblemBuilder assembles the optimization problem for a recruitment
type ProblemBuilder interface {
	BuildProblem(ctx context.Context, rec *model.Recruitment) (model.ProblemData, error)
}

// ParticipantCounter resolves how many users take part in a recruitment
type ParticipantCounter interface {
	CountEligible(ctx context.Context, recruitmentID string) (int, error)
}

// JobSubmitter submits optimization jobs
type JobSubmitter interface {
	SubmitJob(ctx context.Context, recruitmentID *string, problem model.ProblemData) (*model.Job, error)
}

// RecruitmentService decides when a recruitment is ready for optimization and
// drives it through the draft -> optimizing -> active -> archived lifecycle
type RecruitmentService struct {
	repo         RecruitmentRepository
	problems     ProblemBuilder
	participants ParticipantCounter
	jobs         JobSubmitter
	logger       *slog.Logger
	now          func() time.Time
}

// RecruitmentServiceConfig holds configuration for the recruitment service
type RecruitmentServiceConfig struct {
	RecruitmentRepo RecruitmentRepository
	Problems        ProblemBuilder
	Participants    ParticipantCounter
	Jobs            JobSubmitter
	Logger          *slog.Logger
	Now             func() time.Time
}

// NewRecruitmentService creates a new recruitment service
func NewRecruitmentService(cfg RecruitmentServiceConfig) *RecruitmentService {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &RecruitmentService{
		repo:         cfg.RecruitmentRepo,
		problems:     cfg.Problems,
		participants: cfg.Participants,
		jobs:         cfg.Jobs,
		logger:       cfg.Logger,
		now:          now,
	}
}

// ProcessResult summarizes one lifecycle pass
type ProcessResult struct {
	Evaluated int
	Triggered int
	Archived  int
	Failed    int
}

// Evaluate reports whether a recruitment should be optimized on now's date.
// It holds once the optimization start date is reached, or earlier during the
// user preference window when enough participants have submitted.
func (s *RecruitmentService) Evaluate(ctx context.Context, rec *model.Recruitment, now time.Time) bool {
	if rec.OptimizationStart == nil {
		return false
	}

	today := civilDay(now)
	optimizationStart := civilDay(*rec.OptimizationStart)
	if !today.Before(optimizationStart) {
		return true
	}

	if rec.UserPreferencesStart == nil || today.Before(civilDay(*rec.UserPreferencesStart)) {
		return false
	}
	return s.participationReached(ctx, rec)
}

func (s *RecruitmentService) participationReached(ctx context.Context, rec *model.Recruitment) bool {
	if s.participants == nil {
		return false
	}

	total, err := s.participants.CountEligible(ctx, rec.ID)
	if err != nil {
		s.logger.Warn("failed to count participants", "recruitment_id", rec.ID, "error", err)
		return false
	}
	if total <= 0 {
		return false
	}

	required := int(math.Ceil(float64(total) * rec.ParticipationThreshold))
	return rec.SubmittedCount >= required
}

// EvaluateByID loads a recruitment and evaluates it against the current time
func (s *RecruitmentService) EvaluateByID(ctx context.Context, id string) (*model.RecruitmentEvaluation, error) {
	rec, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	return &model.RecruitmentEvaluation{
		RecruitmentID: rec.ID,
		ShouldTrigger: rec.Status == model.RecruitmentStatusDraft && s.Evaluate(ctx, rec, now),
		EvaluatedAt:   now,
	}, nil
}

// Trigger starts optimization for a draft recruitment. It returns nil, nil
// when the recruitment is not a draft or another caller claimed it first. On
// failure the recruitment is returned to draft.
func (s *RecruitmentService) Trigger(ctx context.Context, rec *model.Recruitment) (*model.Job, error) {
	if rec.Status != model.RecruitmentStatusDraft {
		return nil, nil
	}

	claimed, err := s.repo.CompareAndSwapStatus(ctx, rec.ID, model.RecruitmentStatusDraft, model.RecruitmentStatusOptimizing)
	if err != nil {
		return nil, err
	}
	if !claimed {
		s.logger.Info("recruitment already claimed", "recruitment_id", rec.ID)
		return nil, nil
	}

	problem, err := s.problems.BuildProblem(ctx, rec)
	if err != nil {
		s.rollback(ctx, rec.ID)
		if errors.Is(err, database.ErrNotFound) {
			return nil, fmt.Errorf("%w: %v", ErrNoConstraints, err)
		}
		return nil, err
	}

	recruitmentID := rec.ID
	job, err := s.jobs.SubmitJob(ctx, &recruitmentID, problem)
	if err != nil {
		s.rollback(ctx, rec.ID)
		return nil, err
	}

	rec.Status = model.RecruitmentStatusOptimizing
	s.logger.Info("triggered optimization",
		"recruitment_id", rec.ID,
		"job_id", job.ID,
	)
	return job, nil
}

// TriggerByID loads a recruitment and triggers it
func (s *RecruitmentService) TriggerByID(ctx context.Context, id string) (*model.TriggerResult, error) {
	rec, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}

	job, err := s.Trigger(ctx, rec)
	if err != nil {
		return nil, err
	}
	return &model.TriggerResult{Triggered: job != nil, Job: job}, nil
}

// rollback returns a claimed recruitment to draft, even if ctx is done
func (s *RecruitmentService) rollback(ctx context.Context, id string) {
	ctx = context.WithoutCancel(ctx)
	reverted, err := s.repo.CompareAndSwapStatus(ctx, id, model.RecruitmentStatusOptimizing, model.RecruitmentStatusDraft)
	if err != nil {
		s.logger.Error("failed to roll back recruitment", "recruitment_id", id, "error", err)
		return
	}
	if !reverted {
		s.logger.Warn("recruitment left optimizing before rollback", "recruitment_id", id)
	}
}

// ProcessDue runs one lifecycle pass: every draft that meets its trigger
// condition is triggered and every expired active recruitment is archived.
// Individual failures are logged and counted; only listing errors abort.
func (s *RecruitmentService) ProcessDue(ctx context.Context) (ProcessResult, error) {
	var result ProcessResult
	now := s.now().UTC()

	drafts, err := s.repo.ListByStatus(ctx, model.RecruitmentStatusDraft)
	if err != nil {
		return result, fmt.Errorf("failed to list draft recruitments: %w", err)
	}

	for _, rec := range drafts {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		result.Evaluated++
		if !s.Evaluate(ctx, rec, now) {
			continue
		}

		job, err := s.Trigger(ctx, rec)
		if err != nil {
			result.Failed++
			s.logger.Error("failed to trigger recruitment", "recruitment_id", rec.ID, "error", err)
			continue
		}
		if job != nil {
			result.Triggered++
		}
	}

	active, err := s.repo.ListByStatus(ctx, model.RecruitmentStatusActive)
	if err != nil {
		return result, fmt.Errorf("failed to list active recruitments: %w", err)
	}

	for _, rec := range active {
		if !rec.IsExpired(now) {
			continue
		}
		archived, err := s.repo.CompareAndSwapStatus(ctx, rec.ID, model.RecruitmentStatusActive, model.RecruitmentStatusArchived)
		if err != nil {
			result.Failed++
			s.logger.Error("failed to archive recruitment", "recruitment_id", rec.ID, "error", err)
			continue
		}
		if archived {
			result.Archived++
			s.logger.Info("archived recruitment", "recruitment_id", rec.ID)
		}
	}

	return result, nil
}

func (s *RecruitmentService) get(ctx context.Context, id string) (*model.Recruitment, error) {
	rec, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, ErrRecruitmentNotFound
	}
	return rec, nil
}

// civilDay truncates t to midnight of its UTC calendar day
func civilDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
