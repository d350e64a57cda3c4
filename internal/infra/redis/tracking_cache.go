package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vietddude/recourse/internal/core/domain"
)

// TrackingCache stores carrier tracking results with a TTL. It fails open on
// every path: a Redis outage degrades to uncached lookups, it never blocks
// the escalation pipeline.
type TrackingCache struct {
	rdb *redis.Client
	ttl time.Duration
	log *slog.Logger
}

// NewTrackingCache creates a tracking cache over an established client.
func NewTrackingCache(client *Client, ttl time.Duration, log *slog.Logger) *TrackingCache {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	if log == nil {
		log = slog.Default()
	}
	return &TrackingCache{rdb: client.rdb, ttl: ttl, log: log}
}

func trackingKey(carrierName, trackingNumber string) string {
	return fmt.Sprintf("tracking:%s:%s", carrierName, trackingNumber)
}

// Get returns the cached tracking result for a parcel, or (nil, false) on a
// miss, an expired entry, or any Redis failure.
func (c *TrackingCache) Get(ctx context.Context, carrierName, trackingNumber string) (*domain.TrackingResult, bool) {
	data, err := c.rdb.Get(ctx, trackingKey(carrierName, trackingNumber)).Bytes()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		c.log.Warn("tracking cache read failed",
			"carrier", carrierName, "tracking_number", trackingNumber, "error", err)
		return nil, false
	}

	var result domain.TrackingResult
	if err := json.Unmarshal(data, &result); err != nil {
		c.log.Warn("tracking cache entry corrupt, dropping",
			"carrier", carrierName, "tracking_number", trackingNumber, "error", err)
		c.rdb.Del(ctx, trackingKey(carrierName, trackingNumber))
		return nil, false
	}
	return &result, true
}

// Set stores a tracking result under the cache TTL. Failures are logged and
// swallowed.
func (c *TrackingCache) Set(ctx context.Context, result *domain.TrackingResult) {
	data, err := json.Marshal(result)
	if err != nil {
		c.log.Warn("tracking cache marshal failed",
			"carrier", result.Carrier, "tracking_number", result.TrackingNumber, "error", err)
		return
	}
	if err := c.rdb.Set(ctx, trackingKey(result.Carrier, result.TrackingNumber), data, c.ttl).Err(); err != nil {
		c.log.Warn("tracking cache write failed",
			"carrier", result.Carrier, "tracking_number", result.TrackingNumber, "error", err)
	}
}
