package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Client wraps Redis operations for the ingestion pipeline.
type Client struct {
	rdb *redis.Client
}

// Config holds Redis connection configuration.
type Config struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
}

// NewClient creates a new Redis client.
func NewClient(cfg Config) (*Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}

	rdb := redis.NewClient(opts)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Client{rdb: rdb}, nil
}

// Close closes the Redis connection.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Key helpers
func cycleLockKey(processID string) string {
	return fmt.Sprintf("fetch_cycle:%s", processID)
}

func chainHeightKey() string {
	return "chain_height"
}

// AcquireCycleLock attempts to acquire the fetch-cycle lock for a process.
// The lock makes "at most one cycle in flight" hold across replicas; the
// in-process guard remains authoritative within a single instance.
func (c *Client) AcquireCycleLock(ctx context.Context, processID string, ttl time.Duration) (bool, error) {
	ok, err := c.rdb.SetNX(ctx, cycleLockKey(processID), "locked", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("setnx failed: %w", err)
	}
	return ok, nil
}

// ReleaseCycleLock releases the fetch-cycle lock.
func (c *Client) ReleaseCycleLock(ctx context.Context, processID string) error {
	return c.rdb.Del(ctx, cycleLockKey(processID)).Err()
}

// GetChainHeight returns a cached chain height, 0 when absent.
func (c *Client) GetChainHeight(ctx context.Context) (uint64, error) {
	val, err := c.rdb.Get(ctx, chainHeightKey()).Result()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get failed: %w", err)
	}
	return strconv.ParseUint(val, 10, 64)
}

// SetChainHeight caches the live chain height.
func (c *Client) SetChainHeight(ctx context.Context, height uint64, ttl time.Duration) error {
	return c.rdb.Set(ctx, chainHeightKey(), strconv.FormatUint(height, 10), ttl).Err()
}
