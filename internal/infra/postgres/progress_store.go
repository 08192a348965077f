package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"

	"hustle/internal/app"
	"hustle/internal/domain"
)

// ProgressStore keeps one JSONB document per team in round2_progress. The
// version column guards every write.
type ProgressStore struct {
	pool *pgxpool.Pool
}

func NewProgressStore(pool *pgxpool.Pool) *ProgressStore {
	return &ProgressStore{pool: pool}
}

func (s *ProgressStore) Get(ctx context.Context, teamID string) (domain.Progress, error) {
	var raw []byte
	var version int64
	err := s.pool.QueryRow(ctx, `SELECT version, data FROM round2_progress WHERE team_id=$1`, teamID).Scan(&version, &raw)
	if err != nil {
		return domain.Progress{}, classify("get progress", err)
	}
	return decodeProgress(raw, version)
}

func decodeProgress(raw []byte, version int64) (domain.Progress, error) {
	var p domain.Progress
	if err := json.Unmarshal(raw, &p); err != nil {
		return domain.Progress{}, fmt.Errorf("unmarshal progress: %w", err)
	}
	p.Version = version
	return p, nil
}

// Create inserts p unless the team already has a record.
func (s *ProgressStore) Create(ctx context.Context, p domain.Progress) (domain.Progress, bool, error) {
	p.Version = 1
	data, err := json.Marshal(p)
	if err != nil {
		return domain.Progress{}, false, err
	}
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO round2_progress (team_id, version, is_complete, total_score, elapsed_s, data, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (team_id) DO NOTHING`,
		p.TeamID, p.Version, p.IsComplete, p.TotalScore, p.TotalTimeElapsedSeconds, data, p.UpdatedAt)
	if err != nil {
		return domain.Progress{}, false, classify("create progress", err)
	}
	if tag.RowsAffected() == 0 {
		existing, err := s.Get(ctx, p.TeamID)
		return existing, false, err
	}
	return p, true, nil
}

// Save is UPDATE ... WHERE version = p.Version; no row means a lost race.
func (s *ProgressStore) Save(ctx context.Context, p domain.Progress) (domain.Progress, error) {
	next := p
	next.Version = p.Version + 1
	data, err := json.Marshal(next)
	if err != nil {
		return domain.Progress{}, err
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE round2_progress
		SET version=$3, is_complete=$4, total_score=$5, elapsed_s=$6, data=$7, updated_at=$8
		WHERE team_id=$1 AND version=$2`,
		p.TeamID, p.Version, next.Version, next.IsComplete, next.TotalScore, next.TotalTimeElapsedSeconds, data, updatedAt(next))
	if err != nil {
		return domain.Progress{}, classify("save progress", err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := s.Get(ctx, p.TeamID); err != nil {
			return domain.Progress{}, err
		}
		return domain.Progress{}, domain.ErrConflict
	}
	return next, nil
}

func updatedAt(p domain.Progress) time.Time {
	if p.UpdatedAt.IsZero() {
		return time.Now()
	}
	return p.UpdatedAt
}

func (s *ProgressStore) List(ctx context.Context) ([]domain.Progress, error) {
	return s.query(ctx, `SELECT version, data FROM round2_progress ORDER BY team_id`)
}

func (s *ProgressStore) query(ctx context.Context, sql string) ([]domain.Progress, error) {
	rows, err := s.pool.Query(ctx, sql)
	if err != nil {
		return nil, classify("list progress", err)
	}
	defer rows.Close()

	var out []domain.Progress
	for rows.Next() {
		var raw []byte
		var version int64
		if err := rows.Scan(&version, &raw); err != nil {
			return nil, classify("scan progress", err)
		}
		p, err := decodeProgress(raw, version)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("list progress", err)
	}
	return out, nil
}

// LoadLeaderboard reads only completed records, using the rank index.
func (s *ProgressStore) LoadLeaderboard(ctx context.Context) (domain.Leaderboard, error) {
	records, err := s.query(ctx, `
		SELECT version, data FROM round2_progress
		WHERE is_complete
		ORDER BY total_score DESC, elapsed_s ASC`)
	if err != nil {
		return domain.Leaderboard{}, err
	}
	return app.BuildLeaderboard(records, time.Now()), nil
}
