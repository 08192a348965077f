package memory

import (
	"context"
	"sync"

	"hustle/internal/domain"
)

// SubmissionLog keeps submissions per team in arrival order.
type SubmissionLog struct {
	mu      sync.RWMutex
	entries map[string][]domain.Submission
}

func NewSubmissionLog() *SubmissionLog {
	return &SubmissionLog{entries: make(map[string][]domain.Submission)}
}

func (l *SubmissionLog) Append(_ context.Context, s domain.Submission) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries[s.TeamID] = append(l.entries[s.TeamID], s)
	return nil
}

func (l *SubmissionLog) ListByTeam(_ context.Context, teamID string) ([]domain.Submission, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]domain.Submission(nil), l.entries[teamID]...), nil
}
