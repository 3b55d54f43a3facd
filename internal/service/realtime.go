package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/forgo/planner/api/internal/model"
)

// Close codes sent to live subscribers
const (
	CloseGoingAway     = 1001
	CloseInternalError = 1011
)

// DefaultOutboundBuffer is the per-subscriber queue length. Events beyond it
// are dropped for that subscriber.
const DefaultOutboundBuffer = 64

// Transport is one live client connection
type Transport interface {
	// Accept completes the handshake
	Accept() error
	// Send writes one frame, blocking until written or failed
	Send(msg *model.ServerMessage) error
	// Close ends the connection with a close code
	Close(code int, reason string) error
}

// JobCanceller cancels jobs on behalf of live subscribers
type JobCanceller interface {
	CancelJob(ctx context.Context, jobID string) (bool, error)
}

// JobReader loads jobs for snapshots
type JobReader interface {
	GetByID(ctx context.Context, id string) (*model.Job, error)
}

// ProgressReader loads the latest progress record for snapshots
type ProgressReader interface {
	GetLatest(ctx context.Context, jobID string) (*model.ProgressRecord, error)
}

// Subscription is one registered transport watching one job
type Subscription struct {
	ID    string
	JobID string

	transport Transport
	outbound  chan *model.ServerMessage
	done      chan struct{}
	closeOnce sync.Once
}

// Done is closed when the subscription is removed from the hub
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// enqueue queues a frame without blocking. Returns false when the buffer is
// full or the subscription is closed.
func (s *Subscription) enqueue(msg *model.ServerMessage) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.outbound <- msg:
		return true
	default:
		return false
	}
}

// RealtimeHub groups live subscribers by job and fans job events out to them
type RealtimeHub struct {
	mu     sync.RWMutex
	groups map[string]map[string]*Subscription // jobID -> subscriptionID -> subscription

	jobs      JobReader
	progress  ProgressReader
	canceller JobCanceller
	buffer    int
	logger    *slog.Logger
}

// RealtimeHubConfig holds configuration for the realtime hub
type RealtimeHubConfig struct {
	JobRepo        JobReader
	ProgressRepo   ProgressReader
	OutboundBuffer int
	Logger         *slog.Logger
}

// NewRealtimeHub creates a new realtime hub
func NewRealtimeHub(cfg RealtimeHubConfig) *RealtimeHub {
	buffer := cfg.OutboundBuffer
	if buffer <= 0 {
		buffer = DefaultOutboundBuffer
	}
	return &RealtimeHub{
		groups:   make(map[string]map[string]*Subscription),
		jobs:     cfg.JobRepo,
		progress: cfg.ProgressRepo,
		buffer:   buffer,
		logger:   cfg.Logger,
	}
}

// SetCanceller wires the job service used for cancel_job requests. The hub
// and the job service reference each other, so this is set after both exist.
func (h *RealtimeHub) SetCanceller(c JobCanceller) {
	h.canceller = c
}

// Connect validates the job, registers the transport, accepts it and queues
// a current_status snapshot as its first frame. A missing job closes the
// transport with model.CloseJobNotFound before accepting.
func (h *RealtimeHub) Connect(ctx context.Context, jobID string, transport Transport) (*Subscription, error) {
	job, err := h.jobs.GetByID(ctx, jobID)
	if err != nil {
		h.logger.Error("failed to load job for subscriber", "job_id", jobID, "error", err)
		_ = transport.Close(CloseInternalError, "internal error")
		return nil, err
	}
	if job == nil {
		_ = transport.Close(model.CloseJobNotFound, "job not found")
		return nil, ErrJobNotFound
	}

	sub := &Subscription{
		ID:        uuid.NewString(),
		JobID:     job.ID,
		transport: transport,
		outbound:  make(chan *model.ServerMessage, h.buffer),
		done:      make(chan struct{}),
	}
	sub.outbound <- h.snapshotMessage(ctx, job)

	h.register(sub)
	if err := transport.Accept(); err != nil {
		h.Disconnect(sub)
		return nil, fmt.Errorf("failed to accept subscriber: %w", err)
	}

	go h.writeLoop(sub)

	h.logger.Debug("subscriber connected", "job_id", sub.JobID, "subscription_id", sub.ID)
	return sub, nil
}

// Disconnect removes a subscription from its group and stops its writer.
// Safe to call more than once.
func (h *RealtimeHub) Disconnect(sub *Subscription) {
	h.mu.Lock()
	if group, ok := h.groups[sub.JobID]; ok {
		delete(group, sub.ID)
		if len(group) == 0 {
			delete(h.groups, sub.JobID)
		}
	}
	h.mu.Unlock()

	sub.closeOnce.Do(func() {
		close(sub.done)
		h.logger.Debug("subscriber disconnected", "job_id", sub.JobID, "subscription_id", sub.ID)
	})
}

// HandleClientMessage answers one inbound frame from a subscriber. Replies go
// to that subscriber only.
func (h *RealtimeHub) HandleClientMessage(ctx context.Context, sub *Subscription, data []byte) {
	req, err := model.ParseClientMessage(data)
	if err != nil {
		h.reply(sub, model.NewErrorMessage("Invalid JSON format"))
		return
	}

	switch r := req.(type) {
	case model.GetStatusRequest:
		job, err := h.jobs.GetByID(ctx, sub.JobID)
		if err != nil {
			h.logger.Error("failed to load job for status request", "job_id", sub.JobID, "error", err)
			h.reply(sub, model.NewErrorMessage("Failed to load job status"))
			return
		}
		if job == nil {
			h.reply(sub, model.NewErrorMessage("Job not found"))
			return
		}
		h.reply(sub, h.snapshotMessage(ctx, job))

	case model.CancelJobRequest:
		h.handleCancel(ctx, sub)

	case model.UnknownRequest:
		h.reply(sub, model.NewErrorMessage(fmt.Sprintf("Unknown message type: %s", r.Type)))
	}
}

func (h *RealtimeHub) handleCancel(ctx context.Context, sub *Subscription) {
	if h.canceller == nil {
		h.reply(sub, model.NewErrorMessage("Failed to cancel job"))
		return
	}

	cancelled, err := h.canceller.CancelJob(ctx, sub.JobID)
	switch {
	case err != nil:
		h.logger.Error("live cancel failed", "job_id", sub.JobID, "error", err)
		h.reply(sub, model.NewErrorMessage("Failed to cancel job"))
	case !cancelled:
		h.reply(sub, model.NewErrorMessage("Job cannot be cancelled"))
	default:
		h.reply(sub, &model.ServerMessage{
			Type:    model.ServerMessageCancellationRequested,
			Message: "Job cancellation requested",
		})
	}
}

// Broadcast queues an event for every subscriber of a job. Subscribers whose
// buffer is full miss the event.
func (h *RealtimeHub) Broadcast(jobID string, kind model.ServerMessageType, data interface{}) {
	msg := &model.ServerMessage{Type: kind, Data: data}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, sub := range h.groups[jobID] {
		if !sub.enqueue(msg) {
			h.logger.Warn("dropped event for slow subscriber",
				"job_id", jobID,
				"subscription_id", sub.ID,
				"type", kind,
			)
		}
	}
}

// SubscriberCount returns the number of subscribers for a job
func (h *RealtimeHub) SubscriberCount(jobID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.groups[jobID])
}

// Close disconnects every subscriber with a normal close
func (h *RealtimeHub) Close() {
	h.mu.Lock()
	subs := make([]*Subscription, 0)
	for jobID, group := range h.groups {
		for _, sub := range group {
			subs = append(subs, sub)
		}
		delete(h.groups, jobID)
	}
	h.mu.Unlock()

	for _, sub := range subs {
		h.Disconnect(sub)
		_ = sub.transport.Close(CloseGoingAway, "server shutting down")
	}
}

func (h *RealtimeHub) register(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.groups[sub.JobID] == nil {
		h.groups[sub.JobID] = make(map[string]*Subscription)
	}
	h.groups[sub.JobID][sub.ID] = sub
}

func (h *RealtimeHub) reply(sub *Subscription, msg *model.ServerMessage) {
	if !sub.enqueue(msg) {
		h.logger.Warn("dropped reply for slow subscriber", "job_id", sub.JobID, "subscription_id", sub.ID)
	}
}

func (h *RealtimeHub) writeLoop(sub *Subscription) {
	for {
		select {
		case <-sub.done:
			return
		case msg := <-sub.outbound:
			if err := sub.transport.Send(msg); err != nil {
				if !errors.Is(err, ErrSubscriptionClosed) {
					h.logger.Debug("subscriber write failed", "job_id", sub.JobID, "error", err)
				}
				h.Disconnect(sub)
				return
			}
		}
	}
}

func (h *RealtimeHub) snapshotMessage(ctx context.Context, job *model.Job) *model.ServerMessage {
	var latest *model.ProgressRecord
	if h.progress != nil {
		rec, err := h.progress.GetLatest(ctx, job.ID)
		if err != nil {
			h.logger.Warn("failed to load latest progress", "job_id", job.ID, "error", err)
		} else {
			latest = rec
		}
	}
	return &model.ServerMessage{
		Type: model.ServerMessageCurrentStatus,
		Data: model.NewJobSnapshot(job, latest),
	}
}
