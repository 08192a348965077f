package redis

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"hustle/internal/app"
	"hustle/internal/domain"
)

// LeaderboardCache shares the computed leaderboard between instances.
//
//	SET  round2:leaderboard     <json> EX ttl+jitter
//	INCR round2:leaderboard:gen on every invalidation
//
// A load only populates the cache if the generation it started under is still
// current, so a slow load cannot overwrite a newer invalidation.
type LeaderboardCache struct {
	client *redis.Client
	loader app.LeaderboardLoader
	ttl    time.Duration
	sf     singleflight.Group

	rndMu sync.Mutex
	rnd   *rand.Rand
}

const (
	leaderboardKey    = "round2:leaderboard"
	leaderboardGenKey = "round2:leaderboard:gen"
)

func NewLeaderboardCache(client *redis.Client, loader app.LeaderboardLoader, ttl time.Duration) *LeaderboardCache {
	return &LeaderboardCache{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *LeaderboardCache) GetLeaderboard(ctx context.Context) (domain.Leaderboard, error) {
	if lb, ok := c.cached(ctx); ok {
		return lb, nil
	}

	result, err, _ := c.sf.Do(leaderboardKey, func() (interface{}, error) {
		// Re-check in case another caller filled it.
		if lb, ok := c.cached(ctx); ok {
			return lb, nil
		}
		gen, genErr := c.client.Get(ctx, leaderboardGenKey).Result()
		if errors.Is(genErr, redis.Nil) {
			genErr = nil
		}

		lb, err := c.loader.LoadLeaderboard(ctx)
		if err != nil {
			return domain.Leaderboard{}, err
		}
		if genErr == nil {
			c.store(ctx, gen, lb)
		}
		return lb, nil
	})
	if err != nil {
		return domain.Leaderboard{}, err
	}
	return result.(domain.Leaderboard), nil
}

// Invalidate bumps the generation and drops the cached document.
func (c *LeaderboardCache) Invalidate(ctx context.Context) error {
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, leaderboardGenKey)
		pipe.Del(ctx, leaderboardKey)
		return nil
	})
	c.sf.Forget(leaderboardKey)
	if err != nil {
		return unavailable(err)
	}
	return nil
}

func (c *LeaderboardCache) cached(ctx context.Context) (domain.Leaderboard, bool) {
	raw, err := c.client.Get(ctx, leaderboardKey).Bytes()
	if err != nil {
		return domain.Leaderboard{}, false
	}
	var lb domain.Leaderboard
	if err := json.Unmarshal(raw, &lb); err != nil {
		return domain.Leaderboard{}, false
	}
	return lb, true
}

// store is best effort; a failed write only costs a reload.
func (c *LeaderboardCache) store(ctx context.Context, gen string, lb domain.Leaderboard) {
	ttl := c.ttlWithJitter()
	if ttl <= 0 {
		return
	}
	data, err := json.Marshal(lb)
	if err != nil {
		return
	}
	_ = c.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, leaderboardGenKey).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if current != gen {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, leaderboardKey, data, ttl)
			return nil
		})
		return err
	}, leaderboardGenKey)
}

func (c *LeaderboardCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	jitterMax := int64(c.ttl) / 10
	c.rndMu.Lock()
	defer c.rndMu.Unlock()
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
