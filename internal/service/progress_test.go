package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgo/planner/api/internal/logging"
	"github.com/forgo/planner/api/internal/model"
)

// memoryJobRepo keeps a single job and applies SaveProgress/Finish the way
// the store's guarded updates do
type memoryJobRepo struct {
	mockJobRepo
	job *model.Job
}

func newMemoryJobRepo(job *model.Job) *memoryJobRepo {
	m := &memoryJobRepo{job: job}
	m.getByIDFunc = func(ctx context.Context, id string) (*model.Job, error) {
		if m.job == nil || m.job.ID != id {
			return nil, nil
		}
		clone := *m.job
		return &clone, nil
	}
	m.saveProgressFunc = func(ctx context.Context, job *model.Job) (bool, error) {
		if m.job.Status.IsTerminal() {
			return false, nil
		}
		clone := *job
		m.job = &clone
		return true, nil
	}
	m.finishFunc = func(ctx context.Context, job *model.Job) (bool, error) {
		if m.job.Status.IsTerminal() {
			return false, nil
		}
		clone := *job
		m.job = &clone
		return true, nil
	}
	return m
}

func newTestProgressService(repo JobRepository, progress *mockProgressRepo, events *mockBroadcaster, c *mockCache) *ProgressService {
	return NewProgressService(ProgressServiceConfig{
		JobRepo:      repo,
		ProgressRepo: progress,
		Cache:        c,
		Events:       events,
		Logger:       logging.Discard(),
		Now:          clock,
	})
}

func TestHandleMessage_FirstProgressStartsJob(t *testing.T) {
	repo := newMemoryJobRepo(jobWithStatus("job:1", model.JobStatusQueued, 0))
	progress := &mockProgressRepo{}
	events := &mockBroadcaster{}
	c := &mockCache{}
	svc := newTestProgressService(repo, progress, events, c)

	body := []byte(`{"job_id":"job:1","iteration_num":1,"results":{"best_solution":{"fitness":10}}}`)
	require.NoError(t, svc.HandleMessage(context.Background(), body))

	assert.Equal(t, model.JobStatusRunning, repo.job.Status)
	assert.Equal(t, 1, repo.job.CurrentIteration)
	require.NotNil(t, repo.job.StartedAt)
	assert.Equal(t, fixedNow, *repo.job.StartedAt)

	require.Len(t, progress.records(), 1)
	assert.Equal(t, 1, progress.records()[0].Iteration)

	calls := events.all()
	require.Len(t, calls, 1)
	assert.Equal(t, model.ServerMessageProgressUpdate, calls[0].Kind)
	update := calls[0].Data.(model.ProgressUpdate)
	assert.Equal(t, 1, update.Iteration)
	assert.Equal(t, map[string]interface{}{"fitness": float64(10)}, update.BestSolution)

	require.Len(t, c.puts, 1)
	assert.Equal(t, model.JobStatusRunning, c.puts[0].Status)
}

func TestHandleMessage_StartedAtStampedOnce(t *testing.T) {
	repo := newMemoryJobRepo(jobWithStatus("job:1", model.JobStatusQueued, 0))
	svc := newTestProgressService(repo, &mockProgressRepo{}, &mockBroadcaster{}, &mockCache{})

	require.NoError(t, svc.HandleMessage(context.Background(), []byte(`{"job_id":"job:1","iteration_num":1}`)))
	started := *repo.job.StartedAt

	svc.now = func() time.Time { return fixedNow.Add(time.Hour) }
	require.NoError(t, svc.HandleMessage(context.Background(), []byte(`{"job_id":"job:1","iteration_num":2}`)))
	assert.Equal(t, started, *repo.job.StartedAt)
}

func TestHandleMessage_IterationNeverRegresses(t *testing.T) {
	repo := newMemoryJobRepo(jobWithStatus("job:1", model.JobStatusRunning, 5))
	repo.job.FinalSolution = "best-at-5"
	progress := &mockProgressRepo{}
	events := &mockBroadcaster{}
	svc := newTestProgressService(repo, progress, events, &mockCache{})

	body := []byte(`{"job_id":"job:1","iteration_num":3,"results":{"best_solution":"stale"}}`)
	require.NoError(t, svc.HandleMessage(context.Background(), body))

	assert.Equal(t, 5, repo.job.CurrentIteration)
	assert.Equal(t, "best-at-5", repo.job.FinalSolution)

	records := progress.records()
	require.Len(t, records, 1)
	assert.Equal(t, 3, records[0].Iteration)
	assert.Equal(t, "stale", records[0].BestSolution)

	calls := events.all()
	require.Len(t, calls, 1)
	update := calls[0].Data.(model.ProgressUpdate)
	assert.Equal(t, 5, update.Iteration)
	assert.Equal(t, "best-at-5", update.BestSolution)
}

func TestHandleMessage_EqualIterationReplacesSolution(t *testing.T) {
	repo := newMemoryJobRepo(jobWithStatus("job:1", model.JobStatusRunning, 5))
	svc := newTestProgressService(repo, &mockProgressRepo{}, &mockBroadcaster{}, &mockCache{})

	require.NoError(t, svc.HandleMessage(context.Background(), []byte(`{"job_id":"job:1","iteration_num":5,"results":{"best_solution":"again"}}`)))
	assert.Equal(t, "again", repo.job.FinalSolution)
}

func TestHandleMessage_TerminalJobUnchanged(t *testing.T) {
	for _, status := range []model.JobStatus{model.JobStatusCompleted, model.JobStatusFailed, model.JobStatusCancelled} {
		t.Run(string(status), func(t *testing.T) {
			repo := newMemoryJobRepo(jobWithStatus("job:1", status, 4))
			saved := false
			repo.saveProgressFunc = func(ctx context.Context, job *model.Job) (bool, error) {
				saved = true
				return true, nil
			}
			progress := &mockProgressRepo{}
			events := &mockBroadcaster{}
			svc := newTestProgressService(repo, progress, events, &mockCache{})

			require.NoError(t, svc.HandleMessage(context.Background(), []byte(`{"job_id":"job:1","iteration_num":9}`)))

			assert.False(t, saved)
			assert.Equal(t, status, repo.job.Status)
			assert.Equal(t, 4, repo.job.CurrentIteration)
			assert.Len(t, progress.records(), 1)
			assert.Empty(t, events.all())
		})
	}
}

func TestHandleMessage_CancelledWhileApplying(t *testing.T) {
	repo := newMemoryJobRepo(jobWithStatus("job:1", model.JobStatusRunning, 1))
	repo.saveProgressFunc = func(ctx context.Context, job *model.Job) (bool, error) {
		return false, nil
	}
	progress := &mockProgressRepo{}
	events := &mockBroadcaster{}
	svc := newTestProgressService(repo, progress, events, &mockCache{})

	require.NoError(t, svc.HandleMessage(context.Background(), []byte(`{"job_id":"job:1","iteration_num":2}`)))
	assert.Len(t, progress.records(), 1)
	assert.Empty(t, events.all())
}

func TestHandleMessage_SaveErrorKeepsRecord(t *testing.T) {
	dbErr := errors.New("write conflict")
	repo := newMemoryJobRepo(jobWithStatus("job:1", model.JobStatusRunning, 1))
	repo.saveProgressFunc = func(ctx context.Context, job *model.Job) (bool, error) {
		return false, dbErr
	}
	progress := &mockProgressRepo{}
	events := &mockBroadcaster{}
	svc := newTestProgressService(repo, progress, events, &mockCache{})

	err := svc.HandleMessage(context.Background(), []byte(`{"job_id":"job:1","iteration_num":2}`))
	assert.ErrorIs(t, err, dbErr)
	require.Len(t, progress.records(), 1)
	assert.Equal(t, 2, progress.records()[0].Iteration)
	assert.Empty(t, events.all())
}

func TestHandleMessage_FinishErrorKeepsRecord(t *testing.T) {
	dbErr := errors.New("write conflict")
	repo := newMemoryJobRepo(jobWithStatus("job:1", model.JobStatusRunning, 1))
	repo.finishFunc = func(ctx context.Context, job *model.Job) (bool, error) {
		return false, dbErr
	}
	progress := &mockProgressRepo{}
	svc := newTestProgressService(repo, progress, &mockBroadcaster{}, &mockCache{})

	err := svc.HandleMessage(context.Background(), []byte(`{"job_id":"job:1","iteration_num":4,"status":"completed"}`))
	assert.ErrorIs(t, err, dbErr)
	assert.Len(t, progress.records(), 1)
}

func TestHandleMessage_DuplicateOutcomeNotRebroadcast(t *testing.T) {
	repo := newMemoryJobRepo(jobWithStatus("job:1", model.JobStatusRunning, 1))
	repo.finishFunc = func(ctx context.Context, job *model.Job) (bool, error) {
		return false, nil
	}
	progress := &mockProgressRepo{}
	events := &mockBroadcaster{}
	c := &mockCache{}
	svc := newTestProgressService(repo, progress, events, c)

	require.NoError(t, svc.HandleMessage(context.Background(), []byte(`{"job_id":"job:1","iteration_num":4,"status":"completed"}`)))
	assert.Len(t, progress.records(), 1)
	assert.Empty(t, events.all())
	assert.Empty(t, c.puts)
}

func TestHandleMessage_Malformed(t *testing.T) {
	progress := &mockProgressRepo{}
	svc := newTestProgressService(&mockJobRepo{}, progress, &mockBroadcaster{}, &mockCache{})

	for _, body := range []string{
		`not json`,
		`{"iteration_num":1}`,
		`{"job_id":"job:1"}`,
		`{"job_id":"job:1","iteration_num":-2}`,
	} {
		err := svc.HandleMessage(context.Background(), []byte(body))
		assert.ErrorIs(t, err, model.ErrInvalidProgressMessage, body)
	}
	assert.Empty(t, progress.records())
}

func TestHandleMessage_UnknownJob(t *testing.T) {
	progress := &mockProgressRepo{}
	svc := newTestProgressService(newMemoryJobRepo(nil), progress, &mockBroadcaster{}, &mockCache{})

	err := svc.HandleMessage(context.Background(), []byte(`{"job_id":"job:ghost","iteration_num":1}`))
	assert.ErrorIs(t, err, ErrJobNotFound)
	assert.Empty(t, progress.records())
}

func TestHandleMessage_StoreError(t *testing.T) {
	dbErr := errors.New("db down")
	repo := &mockJobRepo{getByIDFunc: func(ctx context.Context, id string) (*model.Job, error) {
		return nil, dbErr
	}}
	svc := newTestProgressService(repo, &mockProgressRepo{}, &mockBroadcaster{}, &mockCache{})

	err := svc.HandleMessage(context.Background(), []byte(`{"job_id":"job:1","iteration_num":1}`))
	assert.ErrorIs(t, err, dbErr)
}

func TestHandleMessage_FlatWorkerForm(t *testing.T) {
	repo := newMemoryJobRepo(jobWithStatus("job:1", model.JobStatusRunning, 0))
	svc := newTestProgressService(repo, &mockProgressRepo{}, &mockBroadcaster{}, &mockCache{})

	require.NoError(t, svc.HandleMessage(context.Background(), []byte(`{"job_id":"job:1","iteration":7,"best_solution":[1,2]}`)))
	assert.Equal(t, 7, repo.job.CurrentIteration)
	assert.Equal(t, []interface{}{float64(1), float64(2)}, repo.job.FinalSolution)
}

func TestHandleMessage_CompletedOutcome(t *testing.T) {
	repo := newMemoryJobRepo(jobWithStatus("job:1", model.JobStatusRunning, 10))
	progress := &mockProgressRepo{}
	events := &mockBroadcaster{}
	c := &mockCache{}
	svc := newTestProgressService(repo, progress, events, c)

	body := []byte(`{"job_id":"job:1","iteration_num":12,"status":"completed","results":{"best_solution":"final"}}`)
	require.NoError(t, svc.HandleMessage(context.Background(), body))

	assert.Equal(t, model.JobStatusCompleted, repo.job.Status)
	assert.Equal(t, 12, repo.job.CurrentIteration)
	assert.Len(t, progress.records(), 1)

	calls := events.all()
	require.Len(t, calls, 1)
	assert.Equal(t, model.ServerMessageJobCompleted, calls[0].Kind)
	done := calls[0].Data.(model.JobCompleted)
	assert.Equal(t, "final", done.FinalSolution)
	assert.Equal(t, 12, done.CurrentIteration)
	require.Len(t, c.puts, 1)
	assert.Equal(t, model.JobStatusCompleted, c.puts[0].Status)
}

func TestHandleMessage_FailedOutcome(t *testing.T) {
	repo := newMemoryJobRepo(jobWithStatus("job:1", model.JobStatusRunning, 3))
	events := &mockBroadcaster{}
	svc := newTestProgressService(repo, &mockProgressRepo{}, events, &mockCache{})

	require.NoError(t, svc.HandleMessage(context.Background(), []byte(`{"job_id":"job:1","iteration_num":3,"status":"failed"}`)))

	assert.Equal(t, model.JobStatusFailed, repo.job.Status)
	require.NotNil(t, repo.job.ErrorMessage)
	assert.Equal(t, defaultFailureMessage, *repo.job.ErrorMessage)

	calls := events.all()
	require.Len(t, calls, 1)
	assert.Equal(t, model.ServerMessageJobError, calls[0].Kind)
	assert.Equal(t, defaultFailureMessage, calls[0].Data.(model.JobError).ErrorMessage)
}

func TestHandleMessage_RecordFailureStillBroadcasts(t *testing.T) {
	repo := newMemoryJobRepo(jobWithStatus("job:1", model.JobStatusRunning, 0))
	events := &mockBroadcaster{}
	svc := newTestProgressService(repo, &mockProgressRepo{createErr: errors.New("disk full")}, events, &mockCache{})

	require.NoError(t, svc.HandleMessage(context.Background(), []byte(`{"job_id":"job:1","iteration_num":1}`)))
	assert.Len(t, events.all(), 1)
}

func TestHandleMessage_SequenceKeepsArrivalOrder(t *testing.T) {
	repo := newMemoryJobRepo(jobWithStatus("job:1", model.JobStatusQueued, 0))
	progress := &mockProgressRepo{}
	svc := newTestProgressService(repo, progress, &mockBroadcaster{}, &mockCache{})

	for _, body := range []string{
		`{"job_id":"job:1","iteration_num":1}`,
		`{"job_id":"job:1","iteration_num":3}`,
		`{"job_id":"job:1","iteration_num":2}`,
	} {
		require.NoError(t, svc.HandleMessage(context.Background(), []byte(body)))
	}

	records := progress.records()
	require.Len(t, records, 3)
	assert.Equal(t, []int{1, 3, 2}, []int{records[0].Iteration, records[1].Iteration, records[2].Iteration})
	assert.Equal(t, 3, repo.job.CurrentIteration)
}
