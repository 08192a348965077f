package memory

import (
	"context"
	"strings"
	"sync"

	"hustle/internal/domain"
)

// TeamStore is an in-memory implementation of app.TeamRepository.
// Team names are unique case-insensitively.
type TeamStore struct {
	mu     sync.RWMutex
	teams  map[string]domain.Team
	byName map[string]string
}

func NewTeamStore() *TeamStore {
	return &TeamStore{
		teams:  make(map[string]domain.Team),
		byName: make(map[string]string),
	}
}

func nameKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func (s *TeamStore) Create(_ context.Context, t domain.Team) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := nameKey(t.TeamName)
	if _, taken := s.byName[key]; taken {
		return domain.ErrTeamExists
	}
	if _, taken := s.teams[t.ID]; taken {
		return domain.ErrTeamExists
	}
	t.Version = 1
	s.teams[t.ID] = t
	s.byName[key] = t.ID
	return nil
}

func (s *TeamStore) Get(_ context.Context, id string) (domain.Team, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.teams[id]
	if !ok {
		return domain.Team{}, domain.ErrNotFound
	}
	return t, nil
}

func (s *TeamStore) GetByName(_ context.Context, name string) (domain.Team, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byName[nameKey(name)]
	if !ok {
		return domain.Team{}, domain.ErrNotFound
	}
	return s.teams[id], nil
}

// Update replaces an existing team when its stored version still equals
// t.Version. The team name cannot change.
func (s *TeamStore) Update(_ context.Context, t domain.Team) (domain.Team, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.teams[t.ID]
	if !ok {
		return domain.Team{}, domain.ErrNotFound
	}
	if current.Version != t.Version {
		return domain.Team{}, domain.ErrConflict
	}
	t.TeamName = current.TeamName
	t.Version++
	s.teams[t.ID] = t
	return t, nil
}

func (s *TeamStore) List(_ context.Context) ([]domain.Team, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Team, 0, len(s.teams))
	for _, t := range s.teams {
		out = append(out, t)
	}
	return out, nil
}
