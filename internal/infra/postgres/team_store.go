package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v4/pgxpool"

	"hustle/internal/domain"
)

// TeamStore keeps teams as JSONB; name_key is the unique lower-cased name.
type TeamStore struct {
	pool *pgxpool.Pool
}

func NewTeamStore(pool *pgxpool.Pool) *TeamStore {
	return &TeamStore{pool: pool}
}

func nameKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func (s *TeamStore) Create(ctx context.Context, t domain.Team) error {
	t.Version = 1
	data, err := json.Marshal(t)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO teams (id, name_key, version, data, registered_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		t.ID, nameKey(t.TeamName), t.Version, data, t.RegisteredAt, t.UpdatedAt)
	if isUniqueViolation(err) {
		return domain.ErrTeamExists
	}
	return classify("create team", err)
}

func (s *TeamStore) Get(ctx context.Context, id string) (domain.Team, error) {
	return s.one(ctx, `SELECT version, data FROM teams WHERE id=$1`, id)
}

func (s *TeamStore) GetByName(ctx context.Context, name string) (domain.Team, error) {
	return s.one(ctx, `SELECT version, data FROM teams WHERE name_key=$1`, nameKey(name))
}

func (s *TeamStore) one(ctx context.Context, sql string, arg string) (domain.Team, error) {
	var raw []byte
	var version int64
	if err := s.pool.QueryRow(ctx, sql, arg).Scan(&version, &raw); err != nil {
		return domain.Team{}, classify("get team", err)
	}
	return decodeTeam(raw, version)
}

func decodeTeam(raw []byte, version int64) (domain.Team, error) {
	var t domain.Team
	if err := json.Unmarshal(raw, &t); err != nil {
		return domain.Team{}, fmt.Errorf("unmarshal team: %w", err)
	}
	t.Version = version
	return t, nil
}

// Update is UPDATE ... WHERE version = t.Version; no row means a lost race
// or a missing team.
func (s *TeamStore) Update(ctx context.Context, t domain.Team) (domain.Team, error) {
	next := t
	next.Version = t.Version + 1
	data, err := json.Marshal(next)
	if err != nil {
		return domain.Team{}, err
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE teams SET version=$3, data=$4, updated_at=$5 WHERE id=$1 AND version=$2`,
		t.ID, t.Version, next.Version, data, next.UpdatedAt)
	if err != nil {
		return domain.Team{}, classify("update team", err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := s.Get(ctx, t.ID); err != nil {
			return domain.Team{}, err
		}
		return domain.Team{}, domain.ErrConflict
	}
	return next, nil
}

func (s *TeamStore) List(ctx context.Context) ([]domain.Team, error) {
	rows, err := s.pool.Query(ctx, `SELECT version, data FROM teams ORDER BY registered_at DESC`)
	if err != nil {
		return nil, classify("list teams", err)
	}
	defer rows.Close()

	var out []domain.Team
	for rows.Next() {
		var raw []byte
		var version int64
		if err := rows.Scan(&version, &raw); err != nil {
			return nil, classify("scan team", err)
		}
		t, err := decodeTeam(raw, version)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("list teams", err)
	}
	return out, nil
}
