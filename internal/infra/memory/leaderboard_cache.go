package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"hustle/internal/app"
	"hustle/internal/domain"
)

const leaderboardKey = "round2"

// LeaderboardCache caches the computed leaderboard with TTL so bursts of
// readers do not each rescan every progress record.
type LeaderboardCache struct {
	loader app.LeaderboardLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rndMu  sync.Mutex
	rnd    *rand.Rand

	mu        sync.RWMutex
	cached    *domain.Leaderboard
	expiresAt time.Time
	// generation changes on Invalidate so an in-flight load cannot
	// repopulate the cache with a snapshot taken before the write.
	generation uint64
}

func NewLeaderboardCache(loader app.LeaderboardLoader, ttl time.Duration) *LeaderboardCache {
	return &LeaderboardCache{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *LeaderboardCache) GetLeaderboard(ctx context.Context) (domain.Leaderboard, error) {
	if lb, ok := c.fresh(c.clock()); ok {
		return lb, nil
	}

	result, err, _ := c.sf.Do(leaderboardKey, func() (interface{}, error) {
		if lb, ok := c.fresh(c.clock()); ok {
			return lb, nil
		}
		c.mu.RLock()
		gen := c.generation
		c.mu.RUnlock()

		lb, err := c.loader.LoadLeaderboard(ctx)
		if err != nil {
			return domain.Leaderboard{}, err
		}

		ttl := c.ttlWithJitter()
		c.mu.Lock()
		if gen == c.generation && ttl > 0 {
			c.cached = &lb
			c.expiresAt = c.clock().Add(ttl)
		}
		c.mu.Unlock()
		return lb, nil
	})
	if err != nil {
		return domain.Leaderboard{}, err
	}
	return result.(domain.Leaderboard), nil
}

// Invalidate drops the cached leaderboard.
func (c *LeaderboardCache) Invalidate(_ context.Context) error {
	c.mu.Lock()
	c.cached = nil
	c.generation++
	c.mu.Unlock()
	c.sf.Forget(leaderboardKey)
	return nil
}

func (c *LeaderboardCache) fresh(now time.Time) (domain.Leaderboard, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.cached != nil && c.expiresAt.After(now) {
		return *c.cached, true
	}
	return domain.Leaderboard{}, false
}

func (c *LeaderboardCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// up to 10% jitter so replicas do not expire together
	jitterMax := int64(c.ttl) / 10
	c.rndMu.Lock()
	defer c.rndMu.Unlock()
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
