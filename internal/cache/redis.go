// Package cache provides a tiny Redis client wrapper for prediction results
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultTTL is used when New is given a non-positive ttl
const DefaultTTL = time.Hour

// Prediction is the cached part of a prediction result
type Prediction struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// Cache wraps a Redis client for prediction storage
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// New creates a new Cache instance connected to the specified Redis address
// If addr is empty, defaults to localhost:6379
func New(ctx context.Context, addr string, ttl time.Duration) (*Cache, error) {
	if addr == "" {
		addr = "localhost:6379"
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: "", // No password by default
		DB:       0,  // Default DB
	})

	// Test connection
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}

	return &Cache{client: client, ttl: ttl}, nil
}

// Key returns the cache key for an image scored by model
func Key(model string, image []byte) string {
	sum := sha256.Sum256(image)
	return fmt.Sprintf("prediction:%s:%s", model, hex.EncodeToString(sum[:]))
}

// Get returns the cached prediction, or nil if there is none
func (c *Cache) Get(ctx context.Context, model string, image []byte) (*Prediction, error) {
	if c.client == nil {
		return nil, fmt.Errorf("cache client is nil")
	}

	data, err := c.client.Get(ctx, Key(model, image)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil // Key does not exist
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get prediction for model %s: %w", model, err)
	}

	var p Prediction
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to decode cached prediction: %w", err)
	}
	return &p, nil
}

// Set stores a prediction with the cache TTL
func (c *Cache) Set(ctx context.Context, model string, image []byte, p Prediction) error {
	if c.client == nil {
		return fmt.Errorf("cache client is nil")
	}

	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to encode prediction: %w", err)
	}

	if err := c.client.Set(ctx, Key(model, image), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set prediction for model %s: %w", model, err)
	}
	return nil
}

// Close closes the Redis connection
func (c *Cache) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}
