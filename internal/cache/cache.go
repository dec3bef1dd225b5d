// Package cache provides small in-process caches with expiry.
package cache

import (
	"context"
	"sync"
	"time"

	"rechnungen/internal/log"
)

// Cache is a keyed store with per-entry expiry.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, data T)
	Delete(key string)
	Purge()
	Len() int
}

// Expirer is implemented by caches that can drop their expired entries on demand.
type Expirer interface {
	CleanExpired() int
}

// Janitor periodically expires entries of the registered caches.
type Janitor struct {
	logger *log.Logger

	mu      sync.Mutex
	caches  []Expirer
	stop    context.CancelFunc
	stopped chan struct{}
}

func NewJanitor(logger *log.Logger) *Janitor {
	if logger == nil {
		logger = log.Discard()
	}
	return &Janitor{logger: logger.WithComponent(log.ComponentCache)}
}

func (j *Janitor) Register(c Expirer) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.caches = append(j.caches, c)
}

// Start runs the cleanup loop until ctx is done or Stop is called.
// Calling Start on a running janitor is a no-op.
func (j *Janitor) Start(ctx context.Context, interval time.Duration) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.stop != nil {
		return
	}
	ctx, j.stop = context.WithCancel(ctx)
	j.stopped = make(chan struct{})
	go j.run(ctx, interval, j.stopped)
}

func (j *Janitor) run(ctx context.Context, interval time.Duration, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n := j.Sweep(); n > 0 {
				j.logger.Debug("Expired cache entries", "removed", n)
			}
		case <-ctx.Done():
			return
		}
	}
}

// Sweep expires entries of every registered cache once and returns how many were dropped.
func (j *Janitor) Sweep() int {
	j.mu.Lock()
	caches := append([]Expirer(nil), j.caches...)
	j.mu.Unlock()

	total := 0
	for _, c := range caches {
		total += c.CleanExpired()
	}
	return total
}

// Stop ends the cleanup loop and waits for it to exit.
func (j *Janitor) Stop() {
	j.mu.Lock()
	stop, stopped := j.stop, j.stopped
	j.stop, j.stopped = nil, nil
	j.mu.Unlock()

	if stop != nil {
		stop()
		<-stopped
	}
}
