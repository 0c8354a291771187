package redisclient

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const (
	availabilityKeyFmt = "listing:available:%s"
	statsKey           = "stats:overview"
)

type Client struct {
	rdb *redis.Client
}

// NewClient creates a new Redis client used as a read-side cache for listing
// availability and statistics rollups.
func NewClient(addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{rdb: rdb}, nil
}

// GetClient returns the underlying Redis client
func (c *Client) GetClient() *redis.Client {
	return c.rdb
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// SetListingAvailability caches a listing's availability flag.
func (c *Client) SetListingAvailability(ctx context.Context, listingID string, available bool, ttl time.Duration) error {
	return c.rdb.Set(ctx, fmt.Sprintf(availabilityKeyFmt, listingID), available, ttl).Err()
}

// GetListingAvailability returns (available, cached). A miss is not an error.
func (c *Client) GetListingAvailability(ctx context.Context, listingID string) (bool, bool, error) {
	val, err := c.rdb.Get(ctx, fmt.Sprintf(availabilityKeyFmt, listingID)).Bool()
	if err == redis.Nil {
		return false, false, nil
	}
	if err != nil {
		return false, false, err
	}
	return val, true, nil
}

// InvalidateListingAvailability drops the cached flag after a write.
func (c *Client) InvalidateListingAvailability(ctx context.Context, listingID string) error {
	return c.rdb.Del(ctx, fmt.Sprintf(availabilityKeyFmt, listingID)).Err()
}

// SetStats caches the serialized statistics rollup.
func (c *Client) SetStats(ctx context.Context, payload []byte, ttl time.Duration) error {
	return c.rdb.Set(ctx, statsKey, payload, ttl).Err()
}

// GetStats returns the cached rollup, nil on a miss.
func (c *Client) GetStats(ctx context.Context) ([]byte, error) {
	payload, err := c.rdb.Get(ctx, statsKey).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return payload, nil
}

// InvalidateStats drops the cached rollup after order/listing writes.
func (c *Client) InvalidateStats(ctx context.Context) error {
	return c.rdb.Del(ctx, statsKey).Err()
}
