// Package cache keeps finished job results in Redis so retried deliveries
// of the same job return the recorded result instead of re-rendering.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/personaforge/studiopod/internal/config"
	"github.com/personaforge/studiopod/pkg/models"
)

// Client is the job-result cache.
type Client struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewClient connects to Redis. Returns nil without error when no host is
// configured; callers then skip result caching.
func NewClient(cfg config.RedisConfig) (*Client, error) {
	if cfg.Host == "" {
		return nil, nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Client{rdb: rdb, ttl: ttl}, nil
}

func resultKey(jobID string) string {
	return "studiopod:result:" + jobID
}

// GetResult returns the cached result for a job, or nil on a miss.
func (c *Client) GetResult(ctx context.Context, jobID string) (*models.JobResult, error) {
	val, err := c.rdb.Get(ctx, resultKey(jobID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cached result: %w", err)
	}

	var result models.JobResult
	if err := json.Unmarshal(val, &result); err != nil {
		return nil, fmt.Errorf("failed to decode cached result: %w", err)
	}
	return &result, nil
}

// SetResult records a finished job's result under its ID.
func (c *Client) SetResult(ctx context.Context, jobID string, result *models.JobResult) error {
	body, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	if err := c.rdb.Set(ctx, resultKey(jobID), body, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache result: %w", err)
	}
	return nil
}

// Close shuts the connection down.
func (c *Client) Close() error {
	return c.rdb.Close()
}
