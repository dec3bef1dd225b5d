// Package memory is an in-process sheets.Mirror used when no spreadsheet is
// configured and in tests.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"rechnungen/internal/core"
	ports "rechnungen/internal/sheets"
)

type Store struct {
	mu   sync.Mutex
	rows [][]any
}

var _ ports.Mirror = (*Store)(nil)

func New() *Store {
	return &Store{}
}

// Upsert replaces the row holding r.ID or appends a new one.
func (s *Store) Upsert(_ context.Context, r core.Record) (string, error) {
	if r.ID == "" {
		return "", fmt.Errorf("record without id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	row := ports.Row(r)
	if i := s.find(r.ID); i >= 0 {
		s.rows[i] = row
		return fmt.Sprintf("mem:%d", i+2), nil
	}
	s.rows = append(s.rows, row)
	return fmt.Sprintf("mem:%d", len(s.rows)+1), nil
}

func (s *Store) Remove(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.find(id); i >= 0 {
		s.rows = slices.Delete(s.rows, i, i+1)
	}
	return nil
}

func (s *Store) Resync(_ context.Context, records []core.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = make([][]any, 0, len(records))
	for _, r := range records {
		s.rows = append(s.rows, ports.Row(r))
	}
	return nil
}

// IDs returns the mirrored ids in row order.
func (s *Store) IDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.rows))
	for i, row := range s.rows {
		out[i], _ = row[0].(string)
	}
	return out
}

// Row returns a copy of the row holding id.
func (s *Store) Row(id string) ([]any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.find(id)
	if i < 0 {
		return nil, false
	}
	return slices.Clone(s.rows[i]), true
}

func (s *Store) find(id string) int {
	return slices.IndexFunc(s.rows, func(row []any) bool {
		return len(row) > 0 && row[0] == id
	})
}
