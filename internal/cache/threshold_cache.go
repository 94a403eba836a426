package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/veridist/compliance-engine/internal/config"
	"github.com/veridist/compliance-engine/internal/domain"
	"github.com/veridist/compliance-engine/internal/validation"
)

// sentinel cached for substances with no configured threshold, so absence
// does not hammer the database either.
const noThreshold = "none"

// ThresholdCache decorates a ThresholdReader with a Redis cache. Threshold
// records are reference data with an active window, so a short TTL keeps
// validation deterministic enough while cutting lookup load. Any cache
// failure falls through to the underlying reader.
type ThresholdCache struct {
	inner  validation.ThresholdReader
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewThresholdCache connects to Redis and wraps the given reader.
func NewThresholdCache(cfg config.RedisConfig, inner validation.ThresholdReader, logger *zap.Logger) (*ThresholdCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &ThresholdCache{inner: inner, client: client, ttl: cfg.TTL, logger: logger}, nil
}

// GetThreshold implements validation.ThresholdReader.
func (c *ThresholdCache) GetThreshold(ctx context.Context, substanceCode string, asOf time.Time) (*domain.ComplianceThreshold, error) {
	key := fmt.Sprintf("threshold:%s:%s", substanceCode, asOf.Format("2006-01-02"))

	cached, err := c.client.Get(ctx, key).Result()
	switch {
	case err == nil:
		if cached == noThreshold {
			return nil, nil
		}
		var threshold domain.ComplianceThreshold
		if err := json.Unmarshal([]byte(cached), &threshold); err == nil {
			return &threshold, nil
		}
		// corrupt entry, fall through to the reader
	case !errors.Is(err, redis.Nil):
		c.logger.Warn("threshold cache read failed", zap.String("key", key), zap.Error(err))
	}

	threshold, err := c.inner.GetThreshold(ctx, substanceCode, asOf)
	if err != nil {
		return nil, err
	}

	payload := noThreshold
	if threshold != nil {
		if data, err := json.Marshal(threshold); err == nil {
			payload = string(data)
		}
	}
	if err := c.client.Set(ctx, key, payload, c.ttl).Err(); err != nil {
		c.logger.Warn("threshold cache write failed", zap.String("key", key), zap.Error(err))
	}

	return threshold, nil
}

// Close releases the Redis connection.
func (c *ThresholdCache) Close() error {
	return c.client.Close()
}
