package jobs

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/forgo/planner/api/internal/model"
	"github.com/forgo/planner/api/internal/service"
)

// ErrSourceClosed is returned by Run when the delivery stream ends before
// the listener is stopped
var ErrSourceClosed = errors.New("progress source closed")

// ProgressSource delivers raw progress payloads from the progress queue
type ProgressSource interface {
	ConsumeProgress(ctx context.Context) (<-chan []byte, error)
}

// ProgressHandler applies one raw progress payload
type ProgressHandler interface {
	HandleMessage(ctx context.Context, body []byte) error
}

// ProgressListenerConfig holds configuration for the progress listener
type ProgressListenerConfig struct {
	Source  ProgressSource
	Handler ProgressHandler
	// StoreTimeout bounds the store work done for one message
	StoreTimeout time.Duration
	Logger       *slog.Logger
}

// ProgressListener consumes worker progress reports one at a time and hands
// them to the progress service. A failed message is logged and never stops
// the listener.
type ProgressListener struct {
	source       ProgressSource
	handler      ProgressHandler
	storeTimeout time.Duration
	logger       *slog.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	handled int
	failed  int
}

// NewProgressListener creates a new progress listener
func NewProgressListener(cfg ProgressListenerConfig) *ProgressListener {
	if cfg.StoreTimeout <= 0 {
		cfg.StoreTimeout = 10 * time.Second
	}
	return &ProgressListener{
		source:       cfg.Source,
		handler:      cfg.Handler,
		storeTimeout: cfg.StoreTimeout,
		logger:       cfg.Logger,
	}
}

// Run consumes until ctx is done or the source closes. It returns nil on
// cancellation and ErrSourceClosed when the stream ends on its own.
func (l *ProgressListener) Run(ctx context.Context) error {
	deliveries, err := l.source.ConsumeProgress(ctx)
	if err != nil {
		return err
	}

	l.logger.Info("progress listener consuming")
	for {
		select {
		case <-ctx.Done():
			return nil
		case body, ok := <-deliveries:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return ErrSourceClosed
			}
			l.handle(ctx, body)
		}
	}
}

func (l *ProgressListener) handle(ctx context.Context, body []byte) {
	msgCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), l.storeTimeout)
	defer cancel()

	err := l.handler.HandleMessage(msgCtx, body)

	l.mu.Lock()
	if err != nil {
		l.failed++
	} else {
		l.handled++
	}
	l.mu.Unlock()

	switch {
	case err == nil:
	case errors.Is(err, model.ErrInvalidProgressMessage):
		l.logger.Warn("discarding malformed progress message", "error", err, "size", len(body))
	case errors.Is(err, service.ErrJobNotFound):
		l.logger.Warn("progress for unknown job", "error", err)
	default:
		l.logger.Error("failed to apply progress message", "error", err)
	}
}

// Start runs the listener in the background
func (l *ProgressListener) Start() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	l.cancel = cancel
	l.done = make(chan struct{})

	go func(done chan struct{}) {
		defer close(done)
		if err := l.Run(ctx); err != nil {
			l.logger.Error("progress listener stopped", "error", err)
		}
	}(l.done)
}

// Stop cancels the background listener and waits for the in-flight message
func (l *ProgressListener) Stop() {
	l.mu.Lock()
	cancel, done := l.cancel, l.done
	l.cancel, l.done = nil, nil
	l.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	l.logger.Info("progress listener stopped")
}

// Stats returns how many messages were applied and how many failed
func (l *ProgressListener) Stats() (handled, failed int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.handled, l.failed
}
