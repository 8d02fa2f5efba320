// Package cache keeps map marker query results in Redis.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"community-help/logger"
	"community-help/models"

	"github.com/go-redis/redis/v8"
)

const (
	keyPrefix     = "markers:"
	generationKey = keyPrefix + "gen"
)

type kv interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Incr(ctx context.Context, key string) *redis.IntCmd
}

// MarkerCache stores entries under a generation number. Invalidate bumps
// the generation, so every older entry is orphaned and left to expire.
type MarkerCache struct {
	rdb    kv
	closer func() error
	ttl    time.Duration
}

// NewRedisCache connects to the Redis server at url (redis://host:port/db).
func NewRedisCache(ctx context.Context, url string, ttl time.Duration) (*MarkerCache, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping Redis: %w", err)
	}
	logger.Log.WithField("addr", opts.Addr).Info("Connected to Redis")
	return &MarkerCache{rdb: client, closer: client.Close, ttl: ttl}, nil
}

func (c *MarkerCache) Close() error {
	if c.closer == nil {
		return nil
	}
	return c.closer()
}

// Get looks key up in the current generation and returns that generation
// for the matching Set.
func (c *MarkerCache) Get(ctx context.Context, key string) ([]models.Marker, int64, bool, error) {
	gen, err := c.generation(ctx)
	if err != nil {
		return nil, 0, false, err
	}
	data, err := c.rdb.Get(ctx, entryKey(gen, key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, gen, false, nil
	}
	if err != nil {
		return nil, gen, false, fmt.Errorf("redis get: %w", err)
	}

	var markers []models.Marker
	if err := json.Unmarshal(data, &markers); err != nil {
		return nil, gen, false, fmt.Errorf("decode cached markers: %w", err)
	}
	return markers, gen, true, nil
}

// Set stores markers under gen. If an Invalidate ran since gen was read the
// entry is already orphaned and only waits out its TTL.
func (c *MarkerCache) Set(ctx context.Context, gen int64, key string, markers []models.Marker) error {
	data, err := json.Marshal(markers)
	if err != nil {
		return fmt.Errorf("encode markers: %w", err)
	}
	if err := c.rdb.Set(ctx, entryKey(gen, key), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (c *MarkerCache) Invalidate(ctx context.Context) error {
	if err := c.rdb.Incr(ctx, generationKey).Err(); err != nil {
		return fmt.Errorf("redis incr: %w", err)
	}
	return nil
}

func (c *MarkerCache) generation(ctx context.Context) (int64, error) {
	gen, err := c.rdb.Get(ctx, generationKey).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("redis get generation: %w", err)
	}
	return gen, nil
}

func entryKey(gen int64, key string) string {
	return fmt.Sprintf("%s%d:%s", keyPrefix, gen, key)
}
