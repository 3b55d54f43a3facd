package service

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgo/planner/api/internal/logging"
	"github.com/forgo/planner/api/internal/model"
)

// storeJobRepo is an in-memory job table whose writes follow the same guards
// as the database queries
type storeJobRepo struct {
	mockJobRepo

	mu   sync.Mutex
	seq  int
	jobs map[string]*model.Job
}

func newStoreJobRepo() *storeJobRepo {
	return &storeJobRepo{jobs: make(map[string]*model.Job)}
}

func (r *storeJobRepo) Create(_ context.Context, job *model.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.seq++
	job.ID = fmt.Sprintf("job:%d", r.seq)
	job.CreatedAt = fixedNow
	job.UpdatedAt = fixedNow
	clone := *job
	r.jobs[job.ID] = &clone
	return nil
}

func (r *storeJobRepo) GetByID(_ context.Context, id string) (*model.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.jobs[id]
	if !ok {
		return nil, nil
	}
	clone := *stored
	return &clone, nil
}

func (r *storeJobRepo) HasActiveJob(_ context.Context, recruitmentID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, job := range r.jobs {
		if job.RecruitmentID != nil && *job.RecruitmentID == recruitmentID && !job.Status.IsTerminal() {
			return true, nil
		}
	}
	return false, nil
}

func (r *storeJobRepo) SaveProgress(_ context.Context, job *model.Job) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.jobs[job.ID]
	if !ok || stored.Status.IsTerminal() || stored.CurrentIteration > job.CurrentIteration {
		return false, nil
	}
	stored.Status = job.Status
	stored.CurrentIteration = job.CurrentIteration
	stored.FinalSolution = job.FinalSolution
	if stored.StartedAt == nil {
		stored.StartedAt = job.StartedAt
	}
	return true, nil
}

func (r *storeJobRepo) Cancel(_ context.Context, id string) (*model.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.jobs[id]
	if !ok || stored.Status.IsTerminal() {
		return nil, nil
	}
	stored.Status = model.JobStatusCancelled
	clone := *stored
	return &clone, nil
}

func (r *storeJobRepo) Finish(_ context.Context, job *model.Job) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.jobs[job.ID]
	if !ok || stored.Status.IsTerminal() {
		return false, nil
	}
	clone := *job
	r.jobs[job.ID] = &clone
	return true, nil
}

type pipeline struct {
	repo      *storeJobRepo
	progress  *mockProgressRepo
	publisher *mockPublisher
	hub       *RealtimeHub
	jobs      *JobService
	consumer  *ProgressService
}

func newPipeline() *pipeline {
	p := &pipeline{
		repo:      newStoreJobRepo(),
		progress:  &mockProgressRepo{},
		publisher: &mockPublisher{},
	}
	p.hub = NewRealtimeHub(RealtimeHubConfig{
		JobRepo:      p.repo,
		ProgressRepo: p.progress,
		Logger:       logging.Discard(),
	})
	p.jobs = NewJobService(JobServiceConfig{
		JobRepo:      p.repo,
		ProgressRepo: p.progress,
		Publisher:    p.publisher,
		Events:       p.hub,
		Logger:       logging.Discard(),
		Now:          clock,
	})
	p.consumer = NewProgressService(ProgressServiceConfig{
		JobRepo:      p.repo,
		ProgressRepo: p.progress,
		Events:       p.hub,
		Logger:       logging.Discard(),
		Now:          clock,
	})
	p.hub.SetCanceller(p.jobs)
	return p
}

func TestPipeline_ProgressReachesSubscriber(t *testing.T) {
	p := newPipeline()
	ctx := context.Background()

	problem := validProblem()
	job, err := p.jobs.SubmitJob(ctx, nil, problem)
	require.NoError(t, err)

	require.Len(t, p.publisher.jobs, 1)
	work := p.publisher.jobs[0]
	assert.Equal(t, job.ID, work.JobID)
	assert.Equal(t, problem, work.ProblemData)

	tr := newFakeTransport()
	sub, err := p.hub.Connect(ctx, job.ID, tr)
	require.NoError(t, err)
	defer p.hub.Disconnect(sub)
	require.Equal(t, model.ServerMessageCurrentStatus, tr.next(t).Type)

	body := fmt.Sprintf(`{"job_id":%q,"iteration_num":1,"results":{"best_solution":{"x":1}}}`, work.JobID)
	require.NoError(t, p.consumer.HandleMessage(ctx, []byte(body)))

	stored, err := p.jobs.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusRunning, stored.Status)
	assert.Equal(t, 1, stored.CurrentIteration)
	assert.NotNil(t, stored.StartedAt)

	frame := tr.next(t)
	require.Equal(t, model.ServerMessageProgressUpdate, frame.Type)
	update := frame.Data.(model.ProgressUpdate)
	assert.Equal(t, job.ID, update.JobID)
	assert.Equal(t, 1, update.Iteration)
	assert.Equal(t, map[string]interface{}{"x": float64(1)}, update.BestSolution)

	records, err := p.jobs.ListProgress(ctx, job.ID, 0)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, 1, records[0].Iteration)
}

func TestPipeline_OneActiveJobPerRecruitment(t *testing.T) {
	p := newPipeline()
	ctx := context.Background()
	recruitmentID := "recruitment:r1"

	first, err := p.jobs.SubmitJob(ctx, &recruitmentID, validProblem())
	require.NoError(t, err)

	_, err = p.jobs.SubmitJob(ctx, &recruitmentID, validProblem())
	assert.ErrorIs(t, err, ErrRecruitmentBusy)
	assert.Len(t, p.publisher.jobs, 1)

	body := fmt.Sprintf(`{"job_id":%q,"iteration_num":2,"status":"completed"}`, first.ID)
	require.NoError(t, p.consumer.HandleMessage(ctx, []byte(body)))

	next, err := p.jobs.SubmitJob(ctx, &recruitmentID, validProblem())
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, next.ID)
	assert.Len(t, p.publisher.jobs, 2)
}

func TestPipeline_CancelStopsLaterProgress(t *testing.T) {
	p := newPipeline()
	ctx := context.Background()

	job, err := p.jobs.SubmitJob(ctx, nil, validProblem())
	require.NoError(t, err)

	tr := newFakeTransport()
	sub, err := p.hub.Connect(ctx, job.ID, tr)
	require.NoError(t, err)
	defer p.hub.Disconnect(sub)
	tr.next(t)

	p.hub.HandleClientMessage(ctx, sub, []byte(`{"type":"cancel_job"}`))
	assert.Equal(t, model.ServerMessageStatusChange, tr.next(t).Type)
	assert.Equal(t, model.ServerMessageCancellationRequested, tr.next(t).Type)

	body := fmt.Sprintf(`{"job_id":%q,"iteration_num":3}`, job.ID)
	require.NoError(t, p.consumer.HandleMessage(ctx, []byte(body)))
	tr.expectNone(t)

	stored, err := p.jobs.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusCancelled, stored.Status)
	assert.Zero(t, stored.CurrentIteration)
	assert.Len(t, p.progress.records(), 1)
}
