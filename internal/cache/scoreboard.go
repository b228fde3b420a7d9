// Package cache keeps short-lived copies of the public scoreboard reads.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "scoreboard:"

const LeaderboardKey = keyPrefix + "leaderboard"

func ActivityKey(limit int) string {
	return fmt.Sprintf("%sactivity:%d", keyPrefix, limit)
}

// Scoreboard stores JSON snapshots of leaderboard and activity reads.
// A miss is reported as (false, nil).
type Scoreboard interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, value any) error
	// Invalidate drops every scoreboard snapshot.
	Invalidate(ctx context.Context) error
}

type redisScoreboard struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisScoreboard(client *redis.Client, ttl time.Duration) Scoreboard {
	return &redisScoreboard{client: client, ttl: ttl}
}

func (r *redisScoreboard) Get(ctx context.Context, key string, dst any) (bool, error) {
	raw, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrapf(err, "get %s", key)
	}

	if err = json.Unmarshal(raw, dst); err != nil {
		return false, errors.Wrapf(err, "decode %s", key)
	}
	return true, nil
}

func (r *redisScoreboard) Set(ctx context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return errors.Wrapf(err, "encode %s", key)
	}
	return errors.Wrapf(r.client.Set(ctx, key, raw, r.ttl).Err(), "set %s", key)
}

func (r *redisScoreboard) Invalidate(ctx context.Context) error {
	iter := r.client.Scan(ctx, 0, keyPrefix+"*", 100).Iterator()

	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return errors.Wrap(err, "scan scoreboard keys")
	}
	if len(keys) == 0 {
		return nil
	}
	return errors.Wrap(r.client.Del(ctx, keys...).Err(), "delete scoreboard keys")
}

type nopScoreboard struct{}

// NewNopScoreboard returns a cache that never hits. Used when Redis is not configured.
func NewNopScoreboard() Scoreboard {
	return nopScoreboard{}
}

func (nopScoreboard) Get(context.Context, string, any) (bool, error) { return false, nil }
func (nopScoreboard) Set(context.Context, string, any) error         { return nil }
func (nopScoreboard) Invalidate(context.Context) error               { return nil }
