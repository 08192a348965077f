package memory

import (
	"context"
	"sort"
	"sync"

	"hustle/internal/domain"
)

// ProgressStore is an in-memory implementation of app.ProgressRepository.
// It is only safe for a single process.
type ProgressStore struct {
	mu      sync.RWMutex
	records map[string]domain.Progress
}

func NewProgressStore() *ProgressStore {
	return &ProgressStore{records: make(map[string]domain.Progress)}
}

func (s *ProgressStore) Get(_ context.Context, teamID string) (domain.Progress, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.records[teamID]
	if !ok {
		return domain.Progress{}, domain.ErrNotFound
	}
	return p.Clone(), nil
}

func (s *ProgressStore) Create(_ context.Context, p domain.Progress) (domain.Progress, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.records[p.TeamID]; ok {
		return existing.Clone(), false, nil
	}
	p = p.Clone()
	p.Version = 1
	s.records[p.TeamID] = p
	return p.Clone(), true, nil
}

// Save replaces the record if p.Version matches the stored version.
func (s *ProgressStore) Save(_ context.Context, p domain.Progress) (domain.Progress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.records[p.TeamID]
	if !ok {
		return domain.Progress{}, domain.ErrNotFound
	}
	if current.Version != p.Version {
		return domain.Progress{}, domain.ErrConflict
	}
	p = p.Clone()
	p.Version++
	s.records[p.TeamID] = p
	return p.Clone(), nil
}

func (s *ProgressStore) List(_ context.Context) ([]domain.Progress, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Progress, 0, len(s.records))
	for _, p := range s.records {
		out = append(out, p.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TeamID < out[j].TeamID })
	return out, nil
}
