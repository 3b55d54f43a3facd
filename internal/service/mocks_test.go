package service

import (
	"context"
	"sync"
	"time"

	"github.com/forgo/planner/api/internal/model"
)

// ============================================================================
// Mock Repositories
// ============================================================================

type mockJobRepo struct {
	createFunc       func(ctx context.Context, job *model.Job) error
	getByIDFunc      func(ctx context.Context, id string) (*model.Job, error)
	listByStatusFunc func(ctx context.Context, status model.JobStatus, limit int) ([]*model.Job, error)
	hasActiveFunc    func(ctx context.Context, recruitmentID string) (bool, error)
	saveProgressFunc func(ctx context.Context, job *model.Job) (bool, error)
	cancelFunc       func(ctx context.Context, id string) (*model.Job, error)
	finishFunc       func(ctx context.Context, job *model.Job) (bool, error)
	markFailedFunc   func(ctx context.Context, id, message string) error
	deleteFunc       func(ctx context.Context, id string) error
}

func (m *mockJobRepo) Create(ctx context.Context, job *model.Job) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, job)
	}
	job.ID = "job:new"
	return nil
}

func (m *mockJobRepo) GetByID(ctx context.Context, id string) (*model.Job, error) {
	if m.getByIDFunc != nil {
		return m.getByIDFunc(ctx, id)
	}
	return nil, nil
}

func (m *mockJobRepo) ListByStatus(ctx context.Context, status model.JobStatus, limit int) ([]*model.Job, error) {
	if m.listByStatusFunc != nil {
		return m.listByStatusFunc(ctx, status, limit)
	}
	return nil, nil
}

func (m *mockJobRepo) HasActiveJob(ctx context.Context, recruitmentID string) (bool, error) {
	if m.hasActiveFunc != nil {
		return m.hasActiveFunc(ctx, recruitmentID)
	}
	return false, nil
}

func (m *mockJobRepo) SaveProgress(ctx context.Context, job *model.Job) (bool, error) {
	if m.saveProgressFunc != nil {
		return m.saveProgressFunc(ctx, job)
	}
	return true, nil
}

func (m *mockJobRepo) Cancel(ctx context.Context, id string) (*model.Job, error) {
	if m.cancelFunc != nil {
		return m.cancelFunc(ctx, id)
	}
	return nil, nil
}

func (m *mockJobRepo) Finish(ctx context.Context, job *model.Job) (bool, error) {
	if m.finishFunc != nil {
		return m.finishFunc(ctx, job)
	}
	return true, nil
}

func (m *mockJobRepo) MarkFailed(ctx context.Context, id, message string) error {
	if m.markFailedFunc != nil {
		return m.markFailedFunc(ctx, id, message)
	}
	return nil
}

func (m *mockJobRepo) Delete(ctx context.Context, id string) error {
	if m.deleteFunc != nil {
		return m.deleteFunc(ctx, id)
	}
	return nil
}

type mockProgressRepo struct {
	mu        sync.Mutex
	created   []*model.ProgressRecord
	createErr error
	latest    *model.ProgressRecord
	latestErr error
}

func (m *mockProgressRepo) Create(_ context.Context, rec *model.ProgressRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	m.created = append(m.created, rec)
	return nil
}

func (m *mockProgressRepo) ListByJob(_ context.Context, jobID string, limit int) ([]*model.ProgressRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*model.ProgressRecord, 0)
	for _, rec := range m.created {
		if rec.JobID == jobID && len(out) < limit {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (m *mockProgressRepo) GetLatest(_ context.Context, _ string) (*model.ProgressRecord, error) {
	return m.latest, m.latestErr
}

func (m *mockProgressRepo) records() []*model.ProgressRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*model.ProgressRecord(nil), m.created...)
}

type mockRecruitmentRepo struct {
	getByIDFunc      func(ctx context.Context, id string) (*model.Recruitment, error)
	listByStatusFunc func(ctx context.Context, status model.RecruitmentStatus) ([]*model.Recruitment, error)
	casFunc          func(ctx context.Context, id string, from, to model.RecruitmentStatus) (bool, error)
}

func (m *mockRecruitmentRepo) GetByID(ctx context.Context, id string) (*model.Recruitment, error) {
	if m.getByIDFunc != nil {
		return m.getByIDFunc(ctx, id)
	}
	return nil, nil
}

func (m *mockRecruitmentRepo) ListByStatus(ctx context.Context, status model.RecruitmentStatus) ([]*model.Recruitment, error) {
	if m.listByStatusFunc != nil {
		return m.listByStatusFunc(ctx, status)
	}
	return nil, nil
}

func (m *mockRecruitmentRepo) CompareAndSwapStatus(ctx context.Context, id string, from, to model.RecruitmentStatus) (bool, error) {
	if m.casFunc != nil {
		return m.casFunc(ctx, id, from, to)
	}
	return true, nil
}

// statusStore is an in-memory recruitment status table with atomic CAS
type statusStore struct {
	mu       sync.Mutex
	statuses map[string]model.RecruitmentStatus
	swaps    []string
}

func newStatusStore(initial map[string]model.RecruitmentStatus) *statusStore {
	return &statusStore{statuses: initial}
}

func (s *statusStore) cas(_ context.Context, id string, from, to model.RecruitmentStatus) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.statuses[id] != from {
		return false, nil
	}
	s.statuses[id] = to
	s.swaps = append(s.swaps, string(from)+"->"+string(to))
	return true, nil
}

func (s *statusStore) status(id string) model.RecruitmentStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statuses[id]
}

type mockProblemBuilder struct {
	buildFunc func(ctx context.Context, rec *model.Recruitment) (model.ProblemData, error)
}

func (m *mockProblemBuilder) BuildProblem(ctx context.Context, rec *model.Recruitment) (model.ProblemData, error) {
	if m.buildFunc != nil {
		return m.buildFunc(ctx, rec)
	}
	return validProblem(), nil
}

type mockParticipantCounter struct {
	count int
	err   error
	calls int
}

func (m *mockParticipantCounter) CountEligible(_ context.Context, _ string) (int, error) {
	m.calls++
	return m.count, m.err
}

type mockJobSubmitter struct {
	mu         sync.Mutex
	submitFunc func(ctx context.Context, recruitmentID *string, problem model.ProblemData) (*model.Job, error)
	calls      int
}

func (m *mockJobSubmitter) SubmitJob(ctx context.Context, recruitmentID *string, problem model.ProblemData) (*model.Job, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.submitFunc != nil {
		return m.submitFunc(ctx, recruitmentID, problem)
	}
	return &model.Job{ID: "job:submitted", RecruitmentID: recruitmentID, Status: model.JobStatusQueued}, nil
}

// ============================================================================
// Mock Collaborators
// ============================================================================

type mockPublisher struct {
	mu         sync.Mutex
	jobs       []model.WorkMessage
	controls   []model.ControlMessage
	jobErr     error
	controlErr error
}

func (m *mockPublisher) PublishJob(_ context.Context, msg model.WorkMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.jobErr != nil {
		return m.jobErr
	}
	m.jobs = append(m.jobs, msg)
	return nil
}

func (m *mockPublisher) PublishControl(_ context.Context, msg model.ControlMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.controlErr != nil {
		return m.controlErr
	}
	m.controls = append(m.controls, msg)
	return nil
}

type mockCache struct {
	mu   sync.Mutex
	puts []model.JobStatusView
	get  func(ctx context.Context, jobID string) (*model.JobStatusView, error)
}

func (m *mockCache) Get(ctx context.Context, jobID string) (*model.JobStatusView, error) {
	if m.get != nil {
		return m.get(ctx, jobID)
	}
	return nil, nil
}

func (m *mockCache) Put(_ context.Context, job *model.Job) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.puts = append(m.puts, *job.StatusView())
}

type broadcastCall struct {
	JobID string
	Kind  model.ServerMessageType
	Data  interface{}
}

type mockBroadcaster struct {
	mu    sync.Mutex
	calls []broadcastCall
}

func (m *mockBroadcaster) Broadcast(jobID string, kind model.ServerMessageType, data interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, broadcastCall{JobID: jobID, Kind: kind, Data: data})
}

func (m *mockBroadcaster) all() []broadcastCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]broadcastCall(nil), m.calls...)
}

// ============================================================================
// Fixtures
// ============================================================================

var fixedNow = time.Date(2024, 9, 10, 14, 30, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

func validProblem() model.ProblemData {
	constraints := make(map[string]interface{})
	for _, key := range model.RequiredConstraintKeys {
		constraints[key] = 1
	}
	return model.ProblemData{
		Constraints: constraints,
		Preferences: model.ProblemPreferences{
			Students:   []interface{}{},
			Teachers:   []interface{}{},
			Management: map[string]interface{}{},
		},
	}
}

func jobWithStatus(id string, status model.JobStatus, iteration int) *model.Job {
	return &model.Job{
		ID:               id,
		Status:           status,
		CurrentIteration: iteration,
		CreatedAt:        fixedNow.Add(-time.Hour),
		UpdatedAt:        fixedNow.Add(-time.Minute),
	}
}
