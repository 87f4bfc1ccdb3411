// Package cache provides an optional Redis cache for availability reads.
// Cached results are advisory snapshots; every write invalidates the affected
// date so callers never book against the cache.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Availability caches availability responses with a short TTL.
type Availability struct {
	rdb *redis.Client
	ttl time.Duration
	log *zerolog.Logger
}

// NewAvailability creates the cache. ttl <= 0 disables writes.
func NewAvailability(rdb *redis.Client, ttl time.Duration, log *zerolog.Logger) *Availability {
	return &Availability{rdb: rdb, ttl: ttl, log: log}
}

// SlotsKey builds the cache key for a date's slot listing.
func SlotsKey(date string, durationMinutes int) string {
	return fmt.Sprintf("availability:slots:%s:%d", date, durationMinutes)
}

// DatesKey builds the cache key for an available-dates listing.
func DatesKey(horizonDays int) string {
	return fmt.Sprintf("availability:dates:%d", horizonDays)
}

// Get loads a cached value into out. Returns false on miss or any error.
func (c *Availability) Get(ctx context.Context, key string, out any) bool {
	if c == nil || c.rdb == nil || c.ttl <= 0 {
		return false
	}
	val, err := c.rdb.Get(ctx, key).Result()
	if err != nil {
		return false
	}
	if err := json.Unmarshal([]byte(val), out); err != nil {
		return false
	}
	return true
}

// Set stores a value under key with the configured TTL. Errors are logged,
// never surfaced; the cache is best-effort.
func (c *Availability) Set(ctx context.Context, key string, val any) {
	if c == nil || c.rdb == nil || c.ttl <= 0 {
		return
	}
	data, err := json.Marshal(val)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.log.Debug().Err(err).Str("key", key).Msg("cache write failed")
	}
}

// InvalidateDate drops cached slot listings for the date and all cached date
// listings. Called after every successful booking or cancellation. The date is
// keyed in its own location, so callers pass a business-local time.
func (c *Availability) InvalidateDate(ctx context.Context, date time.Time) {
	if c == nil || c.rdb == nil {
		return
	}
	patterns := []string{
		fmt.Sprintf("availability:slots:%s:*", date.Format("2006-01-02")),
		"availability:dates:*",
	}
	for _, pattern := range patterns {
		keys, err := c.rdb.Keys(ctx, pattern).Result()
		if err != nil {
			c.log.Debug().Err(err).Str("pattern", pattern).Msg("cache invalidation scan failed")
			continue
		}
		if len(keys) > 0 {
			if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
				c.log.Debug().Err(err).Msg("cache invalidation delete failed")
			}
		}
	}
}
