// Package cache provides the Redis-backed spot price cache.
//
// Two keys are maintained: a short-TTL entry holding the freshest quote pair,
// and a non-expiring "last good" entry used as the stale fallback when the
// upstream price API is unreachable.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/mfigueiredo/crypto-dca-backend/internal/domain"
)

const (
	keyCurrent  = "spot:current"
	keyLastGood = "spot:last_good"
)

// SpotCache caches the latest spot price pair in Redis
type SpotCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewSpotCache creates a Redis-backed spot cache. The TTL bounds how long a
// fetched quote is served without a new upstream call (the original tracker
// used two minutes).
func NewSpotCache(addr, password string, db int, ttl time.Duration) *SpotCache {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &SpotCache{client: client, ttl: ttl}
}

// Ping verifies the Redis connection
func (c *SpotCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close releases the Redis connection
func (c *SpotCache) Close() error {
	return c.client.Close()
}

// Set stores a fresh quote pair under both the TTL key and the last-good key
func (c *SpotCache) Set(ctx context.Context, prices domain.SpotPrices) error {
	data, err := marshalPrices(prices)
	if err != nil {
		return err
	}

	if err := c.client.Set(ctx, keyCurrent, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache spot prices: %w", err)
	}
	if err := c.client.Set(ctx, keyLastGood, data, 0).Err(); err != nil {
		return fmt.Errorf("failed to store last good spot prices: %w", err)
	}

	return nil
}

// Get returns the fresh quote pair, or ok=false when the TTL entry expired
func (c *SpotCache) Get(ctx context.Context) (domain.SpotPrices, bool, error) {
	return c.get(ctx, keyCurrent)
}

// GetStale returns the most recent successfully fetched pair regardless of
// age, or ok=false when nothing was ever cached
func (c *SpotCache) GetStale(ctx context.Context) (domain.SpotPrices, bool, error) {
	return c.get(ctx, keyLastGood)
}

func (c *SpotCache) get(ctx context.Context, key string) (domain.SpotPrices, bool, error) {
	data, err := c.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to read spot cache: %w", err)
	}

	prices, err := unmarshalPrices([]byte(data))
	if err != nil {
		return nil, false, err
	}

	return prices, true, nil
}

func marshalPrices(prices domain.SpotPrices) ([]byte, error) {
	raw := make(map[string]string, len(prices))
	for asset, price := range prices {
		raw[string(asset)] = price.String()
	}

	data, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal spot prices: %w", err)
	}
	return data, nil
}

func unmarshalPrices(data []byte) (domain.SpotPrices, error) {
	var raw map[string]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to unmarshal spot prices: %w", err)
	}

	prices := make(domain.SpotPrices, len(raw))
	for asset, priceStr := range raw {
		price, err := decimal.NewFromString(priceStr)
		if err != nil {
			return nil, fmt.Errorf("failed to parse cached price: %w", err)
		}
		prices[domain.Asset(asset)] = price
	}

	return prices, nil
}
