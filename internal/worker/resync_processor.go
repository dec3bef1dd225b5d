package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"rechnungen/internal/log"
)

// Resyncer is the unit of work the processor repeats.
type Resyncer interface {
	Resync(ctx context.Context) error
}

// ResyncProcessor calls Resync on a fixed interval until stopped.
type ResyncProcessor struct {
	target   Resyncer
	interval time.Duration
	logger   *log.Logger

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

var ErrAlreadyRunning = errors.New("resync processor is already running")

func NewResyncProcessor(target Resyncer, interval time.Duration, logger *log.Logger) *ResyncProcessor {
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	if logger == nil {
		logger = log.Discard()
	}
	return &ResyncProcessor{
		target:   target,
		interval: interval,
		logger:   logger.WithComponent(log.ComponentWorker),
	}
}

// Start begins the loop. The first resync happens after one interval.
func (p *ResyncProcessor) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return ErrAlreadyRunning
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})

	go p.runLoop(ctx, p.stopCh, p.doneCh)
	p.logger.InfoContext(ctx, "Resync processor started", "interval", p.interval)
	return nil
}

// Stop ends the loop and waits for the current resync to finish or ctx to expire.
func (p *ResyncProcessor) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	stopCh, doneCh := p.stopCh, p.doneCh
	p.running = false
	p.mu.Unlock()

	close(stopCh)
	select {
	case <-doneCh:
		p.logger.InfoContext(ctx, "Resync processor stopped")
		return nil
	case <-ctx.Done():
		p.logger.WarnContext(ctx, "Resync processor stop timed out")
		return ctx.Err()
	}
}

func (p *ResyncProcessor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *ResyncProcessor) runLoop(ctx context.Context, stopCh, doneCh chan struct{}) {
	defer close(doneCh)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := p.target.Resync(ctx); err != nil {
				p.logger.ErrorContext(ctx, "Periodic resync failed", log.FieldError, err)
			}
		}
	}
}
