// Package resultcache keeps confirmed results in Redis for quick lookup by
// match id and announces them on a pub/sub channel for other consumers.
package resultcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/DoyleJ11/nabi-draft/internal/drafterr"
	"github.com/DoyleJ11/nabi-draft/internal/result"
)

const (
	// Key prefixes for Redis
	resultKeyPrefix  = "draft:result:"
	recentResultsKey = "draft:results:recent"
	// ConfirmedChannel receives the match id of each confirmed result.
	ConfirmedChannel = "draft:confirmed"

	recentLimit = 50
)

var ErrResultNotCached = fmt.Errorf("%w: cached result", drafterr.ErrNotFound)

type Config struct {
	RedisClient *redis.Client
	// TTL bounds how long a result stays cached; zero keeps it forever.
	TTL time.Duration
}

type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

func New(cfg *Config) (*Cache, error) {
	if cfg == nil {
		return nil, errors.New("config cannot be nil")
	}
	if cfg.RedisClient == nil {
		return nil, errors.New("redis client cannot be nil")
	}
	if err := cfg.RedisClient.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return &Cache{client: cfg.RedisClient, ttl: cfg.TTL}, nil
}

// Record stores final under its match id and publishes that id.
func (c *Cache) Record(ctx context.Context, final result.Final) error {
	if final.MatchID == "" {
		return fmt.Errorf("%w: result %s has no match id", drafterr.ErrInvalidInput, final.SessionID)
	}
	data, err := json.Marshal(final)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}

	score := float64(time.Now().Unix())
	if final.ConfirmedAt != nil {
		score = float64(final.ConfirmedAt.Unix())
	}

	pipe := c.client.TxPipeline()
	pipe.Set(ctx, resultKeyPrefix+final.MatchID, data, c.ttl)
	pipe.ZAdd(ctx, recentResultsKey, redis.Z{Score: score, Member: final.MatchID})
	pipe.ZRemRangeByRank(ctx, recentResultsKey, 0, -recentLimit-1)
	pipe.Publish(ctx, ConfirmedChannel, final.MatchID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to cache result: %w", err)
	}
	return nil
}

func (c *Cache) Get(ctx context.Context, matchID string) (result.Final, error) {
	data, err := c.client.Get(ctx, resultKeyPrefix+matchID).Bytes()
	if errors.Is(err, redis.Nil) {
		return result.Final{}, fmt.Errorf("%w: %s", ErrResultNotCached, matchID)
	}
	if err != nil {
		return result.Final{}, fmt.Errorf("failed to get result: %w", err)
	}
	var final result.Final
	if err := json.Unmarshal(data, &final); err != nil {
		return result.Final{}, fmt.Errorf("failed to unmarshal result: %w", err)
	}
	return final, nil
}

// Recent returns up to n match ids, newest first.
func (c *Cache) Recent(ctx context.Context, n int) ([]string, error) {
	if n <= 0 {
		return nil, nil
	}
	ids, err := c.client.ZRevRange(ctx, recentResultsKey, 0, int64(n-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list recent results: %w", err)
	}
	return ids, nil
}
