package wordstat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/pr-poehali-dev/yandex-cleaning-service/clusterer/core"
)

const (
	keyPrefix  = "wordstat:v1:"
	regionsKey = keyPrefix + "regions"
)

// Cached wraps a provider with a redis cache. Concurrent misses for the
// same key share one upstream call. Redis failures are logged and the
// upstream provider is used directly.
type Cached struct {
	log   *slog.Logger
	next  core.VolumeProvider
	rdb   *redis.Client
	ttl   time.Duration
	group singleflight.Group
}

func NewCached(log *slog.Logger, next core.VolumeProvider, rdb *redis.Client, ttl time.Duration) *Cached {
	return &Cached{
		log:  log,
		next: next,
		rdb:  rdb,
		ttl:  ttl,
	}
}

// NewRedis connects to redis by URL, e.g. redis://localhost:6379/0.
func NewRedis(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

func phrasesKey(seed string, regions []int) string {
	sorted := slices.Clone(regions)
	slices.Sort(sorted)
	ids := make([]string, len(sorted))
	for i, r := range sorted {
		ids[i] = strconv.Itoa(r)
	}
	return keyPrefix + "phrases:" + strings.ToLower(strings.TrimSpace(seed)) + ":" + strings.Join(ids, ",")
}

func (c *Cached) FetchTopPhrases(ctx context.Context, seed string, regions []int) ([]core.Phrase, error) {
	key := phrasesKey(seed, regions)
	return cachedCall(ctx, c, key, func(ctx context.Context) ([]core.Phrase, error) {
		return c.next.FetchTopPhrases(ctx, seed, regions)
	})
}

func (c *Cached) Regions(ctx context.Context) ([]core.Region, error) {
	return cachedCall(ctx, c, regionsKey, c.next.Regions)
}

func (c *Cached) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

func cachedCall[T any](ctx context.Context, c *Cached, key string, fetch func(context.Context) ([]T, error)) ([]T, error) {
	raw, err := c.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var out []T
		if err := json.Unmarshal(raw, &out); err == nil {
			return out, nil
		}
		c.log.Warn("broken cache entry", "key", key)
	case !errors.Is(err, redis.Nil):
		c.log.Warn("cache read failed", "key", key, "error", err)
	}

	v, err, shared := c.group.Do(key, func() (any, error) {
		items, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		data, err := json.Marshal(items)
		if err != nil {
			return nil, err
		}
		if err := c.rdb.Set(ctx, key, data, c.ttl).Err(); err != nil {
			c.log.Warn("cache write failed", "key", key, "error", err)
		}
		return items, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		c.log.Debug("upstream call shared", "key", key)
	}
	return v.([]T), nil
}
