package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"hustle/internal/domain"
)

// TeamStore stores teams as JSON at team:{id}. The hash team:names maps the
// lower-cased team name to its id and enforces uniqueness with HSETNX.
type TeamStore struct {
	client *redis.Client
}

func NewTeamStore(client *redis.Client) *TeamStore {
	return &TeamStore{client: client}
}

const teamNamesKey = "team:names"

func teamKey(id string) string {
	return "team:" + id
}

func teamNameField(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func (s *TeamStore) Create(ctx context.Context, t domain.Team) error {
	t.Version = 1
	data, err := json.Marshal(t)
	if err != nil {
		return err
	}
	field := teamNameField(t.TeamName)
	ok, err := s.client.HSetNX(ctx, teamNamesKey, field, t.ID).Result()
	if err != nil {
		return unavailable(err)
	}
	if !ok {
		return domain.ErrTeamExists
	}
	if err := s.client.Set(ctx, teamKey(t.ID), data, 0).Err(); err != nil {
		// release the name so the team can register again
		_ = s.client.HDel(ctx, teamNamesKey, field).Err()
		return unavailable(err)
	}
	return nil
}

func (s *TeamStore) Get(ctx context.Context, id string) (domain.Team, error) {
	return getTeam(ctx, s.client, id)
}

func getTeam(ctx context.Context, c stringGetter, id string) (domain.Team, error) {
	raw, err := c.Get(ctx, teamKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.Team{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Team{}, unavailable(err)
	}
	var t domain.Team
	if err := json.Unmarshal(raw, &t); err != nil {
		return domain.Team{}, fmt.Errorf("decode team %s: %w", id, err)
	}
	return t, nil
}

func (s *TeamStore) GetByName(ctx context.Context, name string) (domain.Team, error) {
	id, err := s.client.HGet(ctx, teamNamesKey, teamNameField(name)).Result()
	if errors.Is(err, redis.Nil) {
		return domain.Team{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Team{}, unavailable(err)
	}
	return s.Get(ctx, id)
}

// Update writes t under WATCH when the stored version still equals t.Version.
func (s *TeamStore) Update(ctx context.Context, t domain.Team) (domain.Team, error) {
	key := teamKey(t.ID)
	var saved domain.Team
	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := getTeam(ctx, tx, t.ID)
		if err != nil {
			return err
		}
		if current.Version != t.Version {
			return domain.ErrConflict
		}
		next := t
		next.TeamName = current.TeamName
		next.Version = current.Version + 1
		data, err := json.Marshal(next)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			return nil
		})
		if err == nil {
			saved = next
		}
		return err
	}, key)
	switch {
	case err == nil:
		return saved, nil
	case errors.Is(err, redis.TxFailedErr):
		return domain.Team{}, domain.ErrConflict
	case errors.Is(err, domain.ErrConflict), errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrStorageUnavailable):
		return domain.Team{}, err
	default:
		return domain.Team{}, unavailable(err)
	}
}

func (s *TeamStore) List(ctx context.Context) ([]domain.Team, error) {
	ids, err := s.client.HVals(ctx, teamNamesKey).Result()
	if err != nil {
		return nil, unavailable(err)
	}
	out := make([]domain.Team, 0, len(ids))
	for _, id := range ids {
		t, err := s.Get(ctx, id)
		if errors.Is(err, domain.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}
