// Package memory is the in-process report backend, used in tests and
// when no external backend is configured.
package memory

import (
	"context"
	"sync"

	"gestionale/internal/export"
)

type Store struct {
	mu      sync.Mutex
	reports []export.Report
}

var _ export.Writer = (*Store)(nil)

func New() *Store {
	return &Store{}
}

// WriteReport keeps only the latest report per model and year, matching
// the overwrite semantics of the sheet backend.
func (s *Store) WriteReport(_ context.Context, r export.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, have := range s.reports {
		if have.Model == r.Model && have.Year == r.Year {
			s.reports[i] = r
			return nil
		}
	}
	s.reports = append(s.reports, r)
	return nil
}

// Reports returns a copy of the stored reports.
func (s *Store) Reports() []export.Report {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]export.Report(nil), s.reports...)
}
