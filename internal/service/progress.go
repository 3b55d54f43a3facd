package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/forgo/planner/api/internal/model"
)

// defaultFailureMessage is stored when a worker reports failure without a reason
const defaultFailureMessage = "optimization failed"

// ProgressService applies worker progress reports to jobs and fans them out
// to live subscribers
type ProgressService struct {
	jobs     JobRepository
	progress ProgressRepository
	cache    StatusCache
	events   Broadcaster
	logger   *slog.Logger
	now      func() time.Time
}

// ProgressServiceConfig holds configuration for the progress service
type ProgressServiceConfig struct {
	JobRepo      JobRepository
	ProgressRepo ProgressRepository
	Cache        StatusCache
	Events       Broadcaster
	Logger       *slog.Logger
	Now          func() time.Time
}

// NewProgressService creates a new progress service
func NewProgressService(cfg ProgressServiceConfig) *ProgressService {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &ProgressService{
		jobs:     cfg.JobRepo,
		progress: cfg.ProgressRepo,
		cache:    cfg.Cache,
		events:   cfg.Events,
		logger:   cfg.Logger,
		now:      now,
	}
}

// HandleMessage decodes and applies one raw progress payload. Malformed
// payloads return an error wrapping model.ErrInvalidProgressMessage.
func (s *ProgressService) HandleMessage(ctx context.Context, body []byte) error {
	msg, err := model.DecodeProgressMessage(body)
	if err != nil {
		return err
	}
	return s.Apply(ctx, msg)
}

// Apply records a progress report. The job's iteration and solution only move
// forward, a queued job starts running on its first report, and a terminal job
// is never changed. A progress record is appended in every case.
func (s *ProgressService) Apply(ctx context.Context, msg *model.ProgressMessage) error {
	job, err := s.jobs.GetByID(ctx, msg.JobID)
	if err != nil {
		return err
	}
	if job == nil {
		return ErrJobNotFound
	}

	now := s.now().UTC()
	record := &model.ProgressRecord{
		JobID:        job.ID,
		Iteration:    msg.Iteration,
		BestSolution: msg.BestSolution,
		Timestamp:    now,
	}

	if job.Status.IsTerminal() {
		s.logger.Info("progress for terminal job",
			"job_id", job.ID,
			"status", job.Status,
			"iteration", msg.Iteration,
		)
		s.appendRecord(ctx, record)
		return nil
	}

	if msg.Iteration >= job.CurrentIteration {
		job.CurrentIteration = msg.Iteration
		job.FinalSolution = msg.BestSolution
	} else {
		s.logger.Warn("out of order progress",
			"job_id", job.ID,
			"iteration", msg.Iteration,
			"current_iteration", job.CurrentIteration,
		)
	}
	if job.Status == model.JobStatusQueued {
		job.Status = model.JobStatusRunning
		job.StartedAt = &now
	}

	s.appendRecord(ctx, record)

	if msg.Outcome != "" {
		return s.finish(ctx, job, msg, record)
	}

	saved, err := s.jobs.SaveProgress(ctx, job)
	if err != nil {
		return err
	}
	if !saved {
		s.logger.Info("progress superseded by a newer job state", "job_id", job.ID, "iteration", msg.Iteration)
		return nil
	}

	if s.cache != nil {
		s.cache.Put(ctx, job)
	}
	s.broadcast(job.ID, model.ServerMessageProgressUpdate, model.ProgressUpdate{
		JobID:        job.ID,
		Iteration:    job.CurrentIteration,
		BestSolution: job.FinalSolution,
		Timestamp:    now,
	})

	s.logger.Debug("applied progress", "job_id", job.ID, "iteration", msg.Iteration)
	return nil
}

func (s *ProgressService) finish(ctx context.Context, job *model.Job, msg *model.ProgressMessage, record *model.ProgressRecord) error {
	job.Status = msg.Outcome
	if msg.Outcome == model.JobStatusFailed {
		reason := msg.ErrorMessage
		if reason == "" {
			reason = defaultFailureMessage
		}
		job.ErrorMessage = &reason
	}

	finished, err := s.jobs.Finish(ctx, job)
	if err != nil {
		return err
	}
	if !finished {
		s.logger.Info("job finished before outcome was applied", "job_id", job.ID)
		return nil
	}

	if s.cache != nil {
		s.cache.Put(ctx, job)
	}

	if job.Status == model.JobStatusCompleted {
		s.broadcast(job.ID, model.ServerMessageJobCompleted, model.JobCompleted{
			JobID:            job.ID,
			CurrentIteration: job.CurrentIteration,
			FinalSolution:    job.FinalSolution,
			Timestamp:        record.Timestamp,
		})
	} else {
		s.broadcast(job.ID, model.ServerMessageJobError, model.JobError{
			JobID:        job.ID,
			ErrorMessage: *job.ErrorMessage,
			Timestamp:    record.Timestamp,
		})
	}

	s.logger.Info("job finished",
		"job_id", job.ID,
		"status", job.Status,
		"iteration", job.CurrentIteration,
	)
	return nil
}

func (s *ProgressService) appendRecord(ctx context.Context, record *model.ProgressRecord) {
	if err := s.progress.Create(ctx, record); err != nil {
		s.logger.Error("failed to append progress record",
			"job_id", record.JobID,
			"iteration", record.Iteration,
			"error", err,
		)
	}
}

func (s *ProgressService) broadcast(jobID string, kind model.ServerMessageType, data interface{}) {
	if s.events != nil {
		s.events.Broadcast(jobID, kind, data)
	}
}
