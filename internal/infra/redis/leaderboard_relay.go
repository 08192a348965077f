package redis

import (
	"context"

	"github.com/redis/go-redis/v9"
)

const leaderboardChannel = "round2:leaderboard:changed"

// LeaderboardRelay carries leaderboard change notices between instances over
// PUBLISH/SUBSCRIBE on round2:leaderboard:changed. Notices sent while an
// instance is not subscribed are lost; the next scoring write catches it up.
type LeaderboardRelay struct {
	client *redis.Client
}

func NewLeaderboardRelay(client *redis.Client) *LeaderboardRelay {
	return &LeaderboardRelay{client: client}
}

// NotifyLeaderboardChanged publishes a change notice to every subscribed instance.
func (r *LeaderboardRelay) NotifyLeaderboardChanged(ctx context.Context) error {
	if err := r.client.Publish(ctx, leaderboardChannel, "changed").Err(); err != nil {
		return unavailable(err)
	}
	return nil
}

// Run calls onChange for each notice until ctx is done.
func (r *LeaderboardRelay) Run(ctx context.Context, onChange func(context.Context)) error {
	sub := r.client.Subscribe(ctx, leaderboardChannel)
	defer sub.Close()

	// wait for the subscription to be confirmed
	if _, err := sub.Receive(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return unavailable(err)
	}
	notices := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-notices:
			if !ok {
				return nil
			}
			onChange(ctx)
		}
	}
}
