package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/jakechorley/attendant-scheduler/pkg/core/model"
)

const keyPrefix = "attendants:identity:"

var cacheRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "attendants",
	Subsystem: "identity_cache",
	Name:      "requests_total",
	Help:      "Total number of identity cache lookups broken down by hit/miss.",
}, []string{"result"})

// CachedDirectory is a read-through Redis cache in front of another directory.
// Redis failures fall back to the underlying directory.
type CachedDirectory struct {
	redis  *redis.Client
	next   Directory
	ttl    time.Duration
	logger *zap.Logger
}

// NewCachedDirectory wraps next with a Redis cache whose entries live for ttl
func NewCachedDirectory(client *redis.Client, next Directory, ttl time.Duration, logger *zap.Logger) *CachedDirectory {
	return &CachedDirectory{redis: client, next: next, ttl: ttl, logger: logger}
}

// NewRedisClient creates a client from a redis:// URL
func NewRedisClient(url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	return redis.NewClient(opt), nil
}

func cacheKey(id string) string { return keyPrefix + id }

// Lookup serves cached identities and fetches the rest from the underlying directory
func (c *CachedDirectory) Lookup(ctx context.Context, ids []string) (map[string]model.Identity, error) {
	out := make(map[string]model.Identity, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = cacheKey(id)
	}

	missing := ids
	values, err := c.redis.MGet(ctx, keys...).Result()
	if err != nil {
		c.logger.Warn("Identity cache read failed", zap.Error(err))
	} else {
		missing = nil
		for i, v := range values {
			raw, ok := v.(string)
			if !ok {
				missing = append(missing, ids[i])
				continue
			}
			var identity model.Identity
			if err := json.Unmarshal([]byte(raw), &identity); err != nil {
				missing = append(missing, ids[i])
				continue
			}
			out[ids[i]] = identity
		}
	}
	cacheRequests.WithLabelValues("hit").Add(float64(len(out)))
	cacheRequests.WithLabelValues("miss").Add(float64(len(missing)))

	if len(missing) == 0 {
		return out, nil
	}

	fetched, err := c.next.Lookup(ctx, missing)
	if err != nil {
		return nil, err
	}
	for _, id := range missing {
		identity, ok := fetched[id]
		if !ok {
			continue
		}
		out[id] = identity

		data, err := json.Marshal(identity)
		if err != nil {
			continue
		}
		if err := c.redis.Set(ctx, cacheKey(id), data, c.ttl).Err(); err != nil {
			c.logger.Warn("Identity cache write failed", zap.String("id", id), zap.Error(err))
		}
	}
	return out, nil
}

// Invalidate drops cached identities
func (c *CachedDirectory) Invalidate(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = cacheKey(id)
	}
	if err := c.redis.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to invalidate identity cache: %w", err)
	}
	return nil
}
