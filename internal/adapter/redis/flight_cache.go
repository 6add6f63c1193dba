package redisadapter

import (
	"context"
	"errors"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// flightCacheTTL bounds how long a flight→booking mapping is served without
// revalidation against the store.
const flightCacheTTL = 24 * time.Hour

// FlightCache maps remote flight ids to local booking ids. It is
// best-effort: callers treat any failure or miss as a fallthrough to the
// authoritative store, never as "does not exist".
type FlightCache struct {
	client *redis.Client
}

func NewFlightCache(client *redis.Client) *FlightCache {
	return &FlightCache{client: client}
}

func cacheKey(flightID int64) string {
	return fmt.Sprintf("adsync:flightid:%d", flightID)
}

func (c *FlightCache) Set(ctx context.Context, flightID int64, bookingID string) error {
	return c.client.Set(ctx, cacheKey(flightID), bookingID, flightCacheTTL).Err()
}

func (c *FlightCache) Get(ctx context.Context, flightID int64) (string, bool, error) {
	val, err := c.client.Get(ctx, cacheKey(flightID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}
