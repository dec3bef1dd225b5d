// Package loader holds the in-memory invoice collection the views render from
// and controls loading and refreshing it.
package loader

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"rechnungen/internal/core"
	"rechnungen/internal/log"
	"rechnungen/internal/middleware/metrics"
	"rechnungen/internal/records"
)

// State is the load state of the collection.
type State int

const (
	StateIdle State = iota
	StateLoading
	StateReady
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return "idle"
	}
}

// ErrSuperseded is returned by Load when a newer Load started before this one
// finished. Its result has been discarded.
var ErrSuperseded = errors.New("load superseded by a newer load")

// Snapshot is a consistent copy of the loader state.
type Snapshot struct {
	State    State
	Records  []core.Record
	Err      error
	LoadedAt time.Time
}

// Loading reports whether a load is in flight.
func (s Snapshot) Loading() bool { return s.State == StateLoading }

// Loader owns the collection. Loads are re-entrant: every Load takes a new
// generation and cancels the one in flight, so a slow stale response never
// overwrites fresher state. A failed load keeps the last good collection.
type Loader struct {
	source records.Lister
	logger *log.Logger

	mu       sync.Mutex
	gen      uint64
	cancel   context.CancelFunc
	state    State
	records  []core.Record
	err      error
	loadedAt time.Time
	now      func() time.Time

	// removed holds ids dropped while a load was in flight. That load may
	// have been answered before the deletion, so its result is filtered.
	removed map[string]struct{}
}

func New(source records.Lister, logger *log.Logger) *Loader {
	if logger == nil {
		logger = log.Discard()
	}
	return &Loader{
		source:  source,
		logger:  logger.WithComponent(log.ComponentLoader),
		records: []core.Record{},
		now:     time.Now,
	}
}

// Load fetches the full collection. On success it replaces the collection and
// returns a copy of it.
func (l *Loader) Load(ctx context.Context) ([]core.Record, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	l.mu.Lock()
	if l.cancel != nil {
		l.cancel()
	}
	l.gen++
	gen := l.gen
	l.cancel = cancel
	l.state = StateLoading
	l.err = nil
	l.mu.Unlock()

	list, err := l.source.List(ctx)

	l.mu.Lock()
	defer l.mu.Unlock()
	if gen != l.gen {
		metrics.ObserveLoad("superseded")
		l.logger.DebugContext(ctx, "Discarding superseded load", log.FieldGeneration, gen)
		return nil, ErrSuperseded
	}
	l.cancel = nil
	removed := l.removed
	l.removed = nil
	if err != nil {
		l.state = StateFailed
		l.err = err
		metrics.ObserveLoad("failed")
		l.logger.WarnContext(ctx, "Loading invoices failed",
			log.FieldOperation, log.OpLoad,
			log.FieldGeneration, gen,
			log.FieldError, err)
		return nil, err
	}
	if list == nil {
		list = []core.Record{}
	}
	if len(removed) > 0 {
		list = slices.DeleteFunc(slices.Clone(list), func(r core.Record) bool {
			_, gone := removed[r.ID]
			return gone
		})
	}
	l.records = list
	l.state = StateReady
	l.loadedAt = l.now()
	metrics.ObserveLoad("ok")
	l.logger.DebugContext(ctx, "Loaded invoices",
		log.FieldOperation, log.OpLoad,
		log.FieldGeneration, gen,
		log.FieldRecordCount, len(list))
	return slices.Clone(list), nil
}

// Refresh is Load for callers that only care about the error.
func (l *Loader) Refresh(ctx context.Context) error {
	_, err := l.Load(ctx)
	return err
}

// Remove drops a record from the local collection without refetching.
// It reports whether the record was present. A load already in flight will
// not bring the record back.
func (l *Loader) Remove(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cancel != nil {
		if l.removed == nil {
			l.removed = map[string]struct{}{}
		}
		l.removed[id] = struct{}{}
	}
	before := len(l.records)
	l.records = slices.DeleteFunc(slices.Clone(l.records), func(r core.Record) bool {
		return r.ID == id
	})
	return len(l.records) != before
}

// Snapshot returns the current state with a copy of the collection.
func (l *Loader) Snapshot() Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	return Snapshot{
		State:    l.state,
		Records:  slices.Clone(l.records),
		Err:      l.err,
		LoadedAt: l.loadedAt,
	}
}

// Records returns a copy of the current collection.
func (l *Loader) Records() []core.Record {
	return l.Snapshot().Records
}
