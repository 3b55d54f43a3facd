package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/forgo/planner/api/internal/cache"
	"github.com/forgo/planner/api/internal/model"
)

// Default and maximum page sizes for job and progress listings
const (
	DefaultListLimit = 50
	MaxListLimit     = 500
)

// JobRepository defines the interface for job storage
type JobRepository interface {
	Create(ctx context.Context, job *model.Job) error
	GetByID(ctx context.Context, id string) (*model.Job, error)
	ListByStatus(ctx context.Context, status model.JobStatus, limit int) ([]*model.Job, error)
	HasActiveJob(ctx context.Context, recruitmentID string) (bool, error)
	SaveProgress(ctx context.Context, job *model.Job) (bool, error)
	Cancel(ctx context.Context, id string) (*model.Job, error)
	Finish(ctx context.Context, job *model.Job) (bool, error)
	MarkFailed(ctx context.Context, id, message string) error
	Delete(ctx context.Context, id string) error
}

// ProgressRepository defines the interface for progress history storage
type ProgressRepository interface {
	Create(ctx context.Context, rec *model.ProgressRecord) error
	ListByJob(ctx context.Context, jobID string, limit int) ([]*model.ProgressRecord, error)
	GetLatest(ctx context.Context, jobID string) (*model.ProgressRecord, error)
}

// JobPublisher sends work and control messages to optimizer workers
type JobPublisher interface {
	PublishJob(ctx context.Context, msg model.WorkMessage) error
	PublishControl(ctx context.Context, msg model.ControlMessage) error
}

// StatusCache is the read-through status view cache
type StatusCache interface {
	Get(ctx context.Context, jobID string) (*model.JobStatusView, error)
	Put(ctx context.Context, job *model.Job)
}

// Broadcaster fans job events out to live subscribers
type Broadcaster interface {
	Broadcast(jobID string, kind model.ServerMessageType, data interface{})
}

// JobService submits, cancels and reads optimization jobs
type JobService struct {
	jobs      JobRepository
	progress  ProgressRepository
	publisher JobPublisher
	cache     StatusCache
	events    Broadcaster
	logger    *slog.Logger
	now       func() time.Time
}

// JobServiceConfig holds configuration for the job service
type JobServiceConfig struct {
	JobRepo      JobRepository
	ProgressRepo ProgressRepository
	Publisher    JobPublisher
	Cache        StatusCache
	Events       Broadcaster
	Logger       *slog.Logger
	Now          func() time.Time
}

// NewJobService creates a new job service
func NewJobService(cfg JobServiceConfig) *JobService {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &JobService{
		jobs:      cfg.JobRepo,
		progress:  cfg.ProgressRepo,
		publisher: cfg.Publisher,
		cache:     cfg.Cache,
		events:    cfg.Events,
		logger:    cfg.Logger,
		now:       now,
	}
}

// SubmitJob persists a queued job and publishes it to the work queue. If the
// publish fails the job is removed and ErrPublishFailed is returned. A
// recruitment that still owns a queued or running job gets ErrRecruitmentBusy.
func (s *JobService) SubmitJob(ctx context.Context, recruitmentID *string, problem model.ProblemData) (*model.Job, error) {
	if errs := problem.Validate(); len(errs) > 0 {
		return nil, model.NewValidationError(errs)
	}

	if recruitmentID != nil {
		busy, err := s.jobs.HasActiveJob(ctx, *recruitmentID)
		if err != nil {
			return nil, err
		}
		if busy {
			return nil, fmt.Errorf("%w: %s", ErrRecruitmentBusy, *recruitmentID)
		}
	}

	job := &model.Job{
		RecruitmentID:    recruitmentID,
		Status:           model.JobStatusQueued,
		ProblemData:      problem,
		MaxExecutionTime: problem.ExecutionTime(),
	}
	if err := s.jobs.Create(ctx, job); err != nil {
		return nil, err
	}

	msg := model.WorkMessage{
		JobID:       job.ID,
		ProblemData: problem,
		Timestamp:   s.now().UTC(),
	}
	if err := s.publisher.PublishJob(ctx, msg); err != nil {
		s.logger.Error("failed to publish job", "job_id", job.ID, "error", err)
		s.discard(ctx, job.ID, err)
		return nil, fmt.Errorf("%w: %v", ErrPublishFailed, err)
	}

	if s.cache != nil {
		s.cache.Put(ctx, job)
	}

	s.logger.Info("submitted optimization job",
		"job_id", job.ID,
		"max_execution_time", job.MaxExecutionTime,
	)
	return job, nil
}

// discard removes a job whose publish failed, falling back to marking it failed
func (s *JobService) discard(ctx context.Context, jobID string, cause error) {
	err := s.jobs.Delete(ctx, jobID)
	if err == nil {
		return
	}
	s.logger.Error("failed to delete unpublished job", "job_id", jobID, "error", err)

	if err := s.jobs.MarkFailed(ctx, jobID, "publish failed: "+cause.Error()); err != nil {
		s.logger.Error("failed to mark unpublished job failed", "job_id", jobID, "error", err)
	}
}

// CancelJob moves a queued or running job to cancelled and asks the worker to
// stop. Returns false when the job is missing or already terminal. An owning
// recruitment is left optimizing, as after a failed run.
func (s *JobService) CancelJob(ctx context.Context, jobID string) (bool, error) {
	job, err := s.jobs.Cancel(ctx, jobID)
	if err != nil {
		return false, err
	}
	if job == nil {
		s.logger.Info("job not cancellable", "job_id", jobID)
		return false, nil
	}

	now := s.now().UTC()
	control := model.ControlMessage{
		JobID:     job.ID,
		Action:    model.ControlActionCancel,
		Data:      map[string]interface{}{},
		Timestamp: now,
	}
	if err := s.publisher.PublishControl(ctx, control); err != nil {
		// The job is already cancelled in the store; the worker will notice
		// at its next progress report.
		s.logger.Error("failed to publish cancel", "job_id", job.ID, "error", err)
	}

	if s.cache != nil {
		s.cache.Put(ctx, job)
	}

	if s.events != nil {
		s.events.Broadcast(job.ID, model.ServerMessageStatusChange, model.StatusChange{
			JobID:     job.ID,
			Status:    model.JobStatusCancelled,
			Timestamp: now,
		})
	}

	if job.RecruitmentID != nil {
		s.logger.Warn("recruitment stays optimizing after job cancel",
			"job_id", job.ID,
			"recruitment_id", *job.RecruitmentID,
		)
	}

	s.logger.Info("cancelled job", "job_id", job.ID)
	return true, nil
}

// GetJob returns a job by id
func (s *JobService) GetJob(ctx context.Context, jobID string) (*model.Job, error) {
	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, ErrJobNotFound
	}
	return job, nil
}

// GetStatus returns the cached status view of a job
func (s *JobService) GetStatus(ctx context.Context, jobID string) (*model.JobStatusView, error) {
	if s.cache == nil {
		job, err := s.GetJob(ctx, jobID)
		if err != nil {
			return nil, err
		}
		return job.StatusView(), nil
	}

	view, err := s.cache.Get(ctx, jobID)
	if errors.Is(err, cache.ErrNotFound) {
		return nil, ErrJobNotFound
	}
	return view, err
}

// ListJobs returns jobs in the given status, newest first
func (s *JobService) ListJobs(ctx context.Context, status model.JobStatus, limit int) ([]*model.Job, error) {
	if !status.IsValid() {
		return nil, model.NewValidationError([]model.FieldError{
			{Field: "status", Message: fmt.Sprintf("unknown job status %q", status)},
		})
	}
	return s.jobs.ListByStatus(ctx, status, clampLimit(limit))
}

// ListProgress returns a job's progress history in arrival order
func (s *JobService) ListProgress(ctx context.Context, jobID string, limit int) ([]*model.ProgressRecord, error) {
	if _, err := s.GetJob(ctx, jobID); err != nil {
		return nil, err
	}
	return s.progress.ListByJob(ctx, jobID, clampLimit(limit))
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	if limit > MaxListLimit {
		return MaxListLimit
	}
	return limit
}
