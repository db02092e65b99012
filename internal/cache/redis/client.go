package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/gear-detector/backend/internal/cache"
	"github.com/gear-detector/backend/internal/gear"
	"github.com/gear-detector/backend/pkg/logger"
)

type Client struct {
	client *redis.Client
	now    func() time.Time
}

func NewClient(host string, port int, password string, db int) (*Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", host, port),
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := client.Ping(ctx).Result()
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info("Redis client initialized", zap.String("addr", fmt.Sprintf("%s:%d", host, port)))

	return New(client), nil
}

// New wraps an existing go-redis client.
func New(client *redis.Client) *Client {
	return &Client{client: client, now: time.Now}
}

func (c *Client) Close() error {
	return c.client.Close()
}

func (c *Client) Name() string { return "redis" }

func (c *Client) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Put stores the entry as JSON with a native Redis TTL matching its expiry.
func (c *Client) Put(ctx context.Context, key string, result *gear.GearResult, ttl time.Duration) error {
	entry := cache.NewEntry(key, result, c.now(), ttl)
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal cache entry: %w", err)
	}

	err = c.client.Set(ctx, key, data, ttl).Err()
	if err != nil {
		return fmt.Errorf("failed to set cache entry: %w", err)
	}

	logger.Debug("Result cached", zap.String("key", key), zap.Duration("ttl", ttl))
	return nil
}

func (c *Client) Lookup(ctx context.Context, key string) (*cache.Entry, bool, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get cache entry: %w", err)
	}

	var entry cache.Entry
	err = json.Unmarshal(data, &entry)
	if err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal cache entry: %w", err)
	}
	if entry.Result == nil || entry.Expired(c.now()) {
		return nil, false, nil
	}

	logger.Debug("Cache hit", zap.String("key", key), zap.String("backend", c.Name()))
	return &entry, true, nil
}

func (c *Client) Get(ctx context.Context, key string) (*gear.GearResult, bool, error) {
	entry, ok, err := c.Lookup(ctx, key)
	if !ok || err != nil {
		return nil, false, err
	}
	return entry.Result, true, nil
}

// Invalidate deletes every cached result and returns how many keys were removed.
func (c *Client) Invalidate(ctx context.Context) (int, error) {
	removed := 0
	iter := c.client.Scan(ctx, 0, "gear:*", 0).Iterator()
	for iter.Next(ctx) {
		err := c.client.Del(ctx, iter.Val()).Err()
		if err != nil {
			logger.Warn("Failed to delete cache key", zap.Error(err))
			continue
		}
		removed++
	}

	if err := iter.Err(); err != nil {
		return removed, fmt.Errorf("failed to iterate cache keys: %w", err)
	}

	logger.Info("Result cache invalidated", zap.Int("keys", removed))
	return removed, nil
}
