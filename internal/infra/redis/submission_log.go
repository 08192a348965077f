package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"hustle/internal/domain"
)

// SubmissionLog appends JSON entries to RPUSH round2:submissions:{teamID}.
type SubmissionLog struct {
	client *redis.Client
}

func NewSubmissionLog(client *redis.Client) *SubmissionLog {
	return &SubmissionLog{client: client}
}

func submissionsKey(teamID string) string {
	return "round2:submissions:" + teamID
}

func (l *SubmissionLog) Append(ctx context.Context, s domain.Submission) error {
	data, err := json.Marshal(s)
	if err != nil {
		return err
	}
	if err := l.client.RPush(ctx, submissionsKey(s.TeamID), data).Err(); err != nil {
		return unavailable(err)
	}
	return nil
}

func (l *SubmissionLog) ListByTeam(ctx context.Context, teamID string) ([]domain.Submission, error) {
	raw, err := l.client.LRange(ctx, submissionsKey(teamID), 0, -1).Result()
	if err != nil {
		return nil, unavailable(err)
	}
	out := make([]domain.Submission, 0, len(raw))
	for _, item := range raw {
		var s domain.Submission
		if err := json.Unmarshal([]byte(item), &s); err != nil {
			return nil, fmt.Errorf("decode submission: %w", err)
		}
		out = append(out, s)
	}
	return out, nil
}
