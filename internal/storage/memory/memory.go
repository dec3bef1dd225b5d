// Package memory is a storage.Repository kept in process memory.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"rechnungen/internal/core"
	"rechnungen/internal/storage"
)

type Repository struct {
	mu    sync.RWMutex
	apps  map[string][]core.Record
	files []storage.FileInfo
}

var _ storage.Repository = (*Repository)(nil)

func New() *Repository {
	return &Repository{apps: map[string][]core.Record{}}
}

func (r *Repository) List(_ context.Context, appID string) ([]core.Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]core.Record, 0, len(r.apps[appID]))
	for _, rec := range r.apps[appID] {
		out = append(out, cloneRecord(rec))
	}
	return out, nil
}

func (r *Repository) Get(_ context.Context, appID, id string) (core.Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	i := r.index(appID, id)
	if i < 0 {
		return core.Record{}, storage.ErrNotFound
	}
	return cloneRecord(r.apps[appID][i]), nil
}

func (r *Repository) Insert(_ context.Context, appID string, rec core.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.index(appID, rec.ID) >= 0 {
		return fmt.Errorf("insert record: duplicate id %s", rec.ID)
	}
	r.apps[appID] = append(r.apps[appID], cloneRecord(rec))
	return nil
}

func (r *Repository) Update(_ context.Context, appID, id string, patch core.Patch, at time.Time) (core.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := r.index(appID, id)
	if i < 0 {
		return core.Record{}, storage.ErrNotFound
	}
	rec := r.apps[appID][i]
	rec.Fields = rec.Fields.Apply(patch)
	at = at.UTC()
	rec.UpdatedAt = &at
	r.apps[appID][i] = rec
	return cloneRecord(rec), nil
}

func (r *Repository) Delete(_ context.Context, appID, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := r.index(appID, id)
	if i < 0 {
		return storage.ErrNotFound
	}
	r.apps[appID] = slices.Delete(r.apps[appID], i, i+1)
	return nil
}

func (r *Repository) SaveFile(_ context.Context, f storage.FileInfo) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.files = append(r.files, f)
	return nil
}

// Files returns the recorded uploads.
func (r *Repository) Files() []storage.FileInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.files)
}

func (r *Repository) Close() error { return nil }

func (r *Repository) index(appID, id string) int {
	return slices.IndexFunc(r.apps[appID], func(rec core.Record) bool { return rec.ID == id })
}

func cloneRecord(rec core.Record) core.Record {
	rec.Fields = rec.Fields.Clone()
	if rec.UpdatedAt != nil {
		t := *rec.UpdatedAt
		rec.UpdatedAt = &t
	}
	return rec
}
