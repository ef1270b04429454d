package ingest

import (
	"context"
	"sort"
	"sync"

	"github.com/couchcryptid/incident-alert-service/internal/domain"
)

// MemoryReportStore is an in-process ReportStore.
type MemoryReportStore struct {
	mu      sync.RWMutex
	reports map[string]domain.Report
}

func NewMemoryReportStore() *MemoryReportStore {
	return &MemoryReportStore{reports: make(map[string]domain.Report)}
}

func (s *MemoryReportStore) Create(_ context.Context, r domain.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports[r.ID] = r
	return nil
}

func (s *MemoryReportStore) Get(_ context.Context, id string) (domain.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.reports[id]
	if !ok {
		return domain.Report{}, domain.ErrReportNotFound
	}
	return r, nil
}

func (s *MemoryReportStore) ListByStatus(_ context.Context, status domain.Status, limit int) ([]domain.Report, error) {
	s.mu.RLock()
	var out []domain.Report
	for _, r := range s.reports {
		if r.Status == status {
			out = append(out, r)
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].IngestedAt.After(out[j].IngestedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryReportStore) SetStatus(_ context.Context, id string, status domain.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reports[id]
	if !ok {
		return domain.ErrReportNotFound
	}
	r.Status = status
	s.reports[id] = r
	return nil
}
