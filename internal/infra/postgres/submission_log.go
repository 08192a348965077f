package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"

	"hustle/internal/domain"
)

// SubmissionLog appends rows to round2_submissions; seq keeps arrival order.
type SubmissionLog struct {
	pool *pgxpool.Pool
}

func NewSubmissionLog(pool *pgxpool.Pool) *SubmissionLog {
	return &SubmissionLog{pool: pool}
}

func (l *SubmissionLog) Append(ctx context.Context, s domain.Submission) error {
	data, err := json.Marshal(s)
	if err != nil {
		return err
	}
	_, err = l.pool.Exec(ctx,
		`INSERT INTO round2_submissions (id, team_id, data, submitted_at) VALUES ($1, $2, $3, $4)`,
		s.ID, s.TeamID, data, s.SubmittedAt)
	return classify("append submission", err)
}

func (l *SubmissionLog) ListByTeam(ctx context.Context, teamID string) ([]domain.Submission, error) {
	rows, err := l.pool.Query(ctx, `SELECT data FROM round2_submissions WHERE team_id=$1 ORDER BY seq`, teamID)
	if err != nil {
		return nil, classify("list submissions", err)
	}
	defer rows.Close()

	out := []domain.Submission{}
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, classify("scan submission", err)
		}
		var s domain.Submission
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, fmt.Errorf("unmarshal submission: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("list submissions", err)
	}
	return out, nil
}
