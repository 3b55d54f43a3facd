package jobs

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/forgo/planner/api/internal/service"
)

// DueProcessor runs one recruitment lifecycle pass
type DueProcessor interface {
	ProcessDue(ctx context.Context) (service.ProcessResult, error)
}

// LifecycleProcessorConfig holds configuration for the lifecycle processor
type LifecycleProcessorConfig struct {
	Recruitments DueProcessor
	Interval     time.Duration
	// StartDelay postpones the first pass so dependencies can settle
	StartDelay time.Duration
	// PassTimeout bounds a single pass
	PassTimeout time.Duration
	Logger      *slog.Logger
}

// RecruitmentLifecycleProcessor periodically triggers due recruitments and
// archives expired ones
// - Transitions recruitments from draft -> optimizing when their trigger condition holds
// - Transitions recruitments from active -> archived once expiration_date is reached
type RecruitmentLifecycleProcessor struct {
	recruitments DueProcessor
	interval     time.Duration
	startDelay   time.Duration
	passTimeout  time.Duration
	logger       *slog.Logger
	stopCh       chan struct{}
	wg           sync.WaitGroup
	running      bool
	mu           sync.Mutex
}

// NewRecruitmentLifecycleProcessor creates a new lifecycle processor job
func NewRecruitmentLifecycleProcessor(cfg LifecycleProcessorConfig) *RecruitmentLifecycleProcessor {
	if cfg.Interval <= 0 {
		cfg.Interval = 1 * time.Minute
	}
	if cfg.PassTimeout <= 0 {
		cfg.PassTimeout = 2 * time.Minute
	}
	if cfg.StartDelay < 0 {
		cfg.StartDelay = 0
	}
	return &RecruitmentLifecycleProcessor{
		recruitments: cfg.Recruitments,
		interval:     cfg.Interval,
		startDelay:   cfg.StartDelay,
		passTimeout:  cfg.PassTimeout,
		logger:       cfg.Logger,
		stopCh:       make(chan struct{}),
	}
}

// Start begins the lifecycle processor job
func (p *RecruitmentLifecycleProcessor) Start() {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return
	}
	p.running = true
	p.mu.Unlock()

	p.wg.Add(1)
	go p.run()
	p.logger.Info("recruitment lifecycle processor started", "interval", p.interval)
}

// Stop gracefully stops the processor, waiting for an in-flight pass
func (p *RecruitmentLifecycleProcessor) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	p.mu.Unlock()

	close(p.stopCh)
	p.wg.Wait()
	p.logger.Info("recruitment lifecycle processor stopped")
}

func (p *RecruitmentLifecycleProcessor) run() {
	defer p.wg.Done()

	if p.startDelay > 0 {
		select {
		case <-time.After(p.startDelay):
		case <-p.stopCh:
			return
		}
	}
	p.process()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.process()
		case <-p.stopCh:
			return
		}
	}
}

func (p *RecruitmentLifecycleProcessor) process() {
	ctx, cancel := context.WithTimeout(context.Background(), p.passTimeout)
	defer cancel()

	go func() {
		select {
		case <-p.stopCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	if _, err := p.RunOnce(ctx); err != nil {
		p.logger.Error("recruitment lifecycle pass failed", "error", err)
	}
}

// RunOnce runs a single lifecycle pass (for testing or manual trigger)
func (p *RecruitmentLifecycleProcessor) RunOnce(ctx context.Context) (service.ProcessResult, error) {
	started := time.Now()
	result, err := p.recruitments.ProcessDue(ctx)
	if err != nil {
		return result, err
	}
	if result.Triggered > 0 || result.Archived > 0 || result.Failed > 0 {
		p.logger.Info("recruitment lifecycle pass",
			"evaluated", result.Evaluated,
			"triggered", result.Triggered,
			"archived", result.Archived,
			"failed", result.Failed,
			"duration", time.Since(started),
		)
	}
	return result, nil
}

// IsRunning returns whether the processor is running
func (p *RecruitmentLifecycleProcessor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}
