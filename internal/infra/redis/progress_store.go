package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"

	"hustle/internal/domain"
)

// ProgressStore keeps each team's record as a JSON document:
//
//	SET  round2:progress:{teamID} <json>
//	SADD round2:progress:index {teamID}
//
// Save runs under WATCH so concurrent writers on any instance see ErrConflict.
type ProgressStore struct {
	client *redis.Client
}

func NewProgressStore(client *redis.Client) *ProgressStore {
	return &ProgressStore{client: client}
}

const progressIndexKey = "round2:progress:index"

func progressKey(teamID string) string {
	return "round2:progress:" + teamID
}

func unavailable(err error) error {
	return fmt.Errorf("%w: redis: %v", domain.ErrStorageUnavailable, err)
}

func (s *ProgressStore) Get(ctx context.Context, teamID string) (domain.Progress, error) {
	return getProgress(ctx, s.client, teamID)
}

// stringGetter is satisfied by both *redis.Client and *redis.Tx.
type stringGetter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func getProgress(ctx context.Context, c stringGetter, teamID string) (domain.Progress, error) {
	raw, err := c.Get(ctx, progressKey(teamID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.Progress{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Progress{}, unavailable(err)
	}
	var p domain.Progress
	if err := json.Unmarshal(raw, &p); err != nil {
		return domain.Progress{}, fmt.Errorf("decode progress %s: %w", teamID, err)
	}
	return p, nil
}

func (s *ProgressStore) Create(ctx context.Context, p domain.Progress) (domain.Progress, bool, error) {
	p.Version = 1
	data, err := json.Marshal(p)
	if err != nil {
		return domain.Progress{}, false, err
	}
	// SADD runs in the same MULTI, and again when the record already exists,
	// so a record is never left out of the index.
	var setCmd *redis.BoolCmd
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		setCmd = pipe.SetNX(ctx, progressKey(p.TeamID), data, 0)
		pipe.SAdd(ctx, progressIndexKey, p.TeamID)
		return nil
	})
	if err != nil {
		return domain.Progress{}, false, unavailable(err)
	}
	if !setCmd.Val() {
		existing, err := s.Get(ctx, p.TeamID)
		return existing, false, err
	}
	return p, true, nil
}

// Save writes p when the stored version still equals p.Version.
func (s *ProgressStore) Save(ctx context.Context, p domain.Progress) (domain.Progress, error) {
	key := progressKey(p.TeamID)
	var saved domain.Progress
	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := getProgress(ctx, tx, p.TeamID)
		if err != nil {
			return err
		}
		if current.Version != p.Version {
			return domain.ErrConflict
		}
		next := p
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
		return domain.Progress{}, domain.ErrConflict
	case errors.Is(err, domain.ErrConflict), errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrStorageUnavailable):
		return domain.Progress{}, err
	default:
		return domain.Progress{}, unavailable(err)
	}
}

func (s *ProgressStore) List(ctx context.Context) ([]domain.Progress, error) {
	ids, err := s.client.SMembers(ctx, progressIndexKey).Result()
	if err != nil {
		return nil, unavailable(err)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	sort.Strings(ids)
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = progressKey(id)
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, unavailable(err)
	}
	out := make([]domain.Progress, 0, len(values))
	for i, v := range values {
		str, ok := v.(string)
		if !ok {
			continue
		}
		var p domain.Progress
		if err := json.Unmarshal([]byte(str), &p); err != nil {
			return nil, fmt.Errorf("decode progress %s: %w", ids[i], err)
		}
		out = append(out, p)
	}
	return out, nil
}
