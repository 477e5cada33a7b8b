package calibration

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/XavierBriggs/fortuna/services/edge-ledger/pkg/contracts"
	"github.com/XavierBriggs/fortuna/services/edge-ledger/pkg/models"
)

// RedisCache stores factors under calibration:factor:{sport}
type RedisCache struct {
	client *redis.Client
}

var _ contracts.FactorCache = (*RedisCache)(nil)

// NewRedisCache creates a Redis-backed factor cache
func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

func factorKey(sportKey string) string {
	return fmt.Sprintf("calibration:factor:%s", sportKey)
}

// GetFactor returns nil on a cache miss
func (c *RedisCache) GetFactor(ctx context.Context, sportKey string) (*models.CalibrationFactor, error) {
	data, err := c.client.Get(ctx, factorKey(sportKey)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read calibration factor: %w", err)
	}

	var f models.CalibrationFactor
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to decode calibration factor: %w", err)
	}
	return &f, nil
}

// SetFactor caches a factor for ttl
func (c *RedisCache) SetFactor(ctx context.Context, f models.CalibrationFactor, ttl time.Duration) error {
	data, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("failed to encode calibration factor: %w", err)
	}
	if err := c.client.Set(ctx, factorKey(f.SportKey), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to write calibration factor: %w", err)
	}
	return nil
}
