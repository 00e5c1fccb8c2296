// Package cache stores derived promotion statistics.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"hotspot/config"
	"hotspot/internal/domain/entity"
	"hotspot/internal/domain/service"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
)

const statsKeyPrefix = "promotion:stats:"

func statsKey(promotionID uuid.UUID) string {
	return fmt.Sprintf("%s%s", statsKeyPrefix, promotionID)
}

// redisStatsCache keeps the latest stats per promotion in Redis with a TTL.
type redisStatsCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStatsCache creates a StatsCache backed by client.
func NewRedisStatsCache(client *redis.Client, ttl time.Duration) service.StatsCache {
	return &redisStatsCache{client: client, ttl: ttl}
}

func (c *redisStatsCache) Put(ctx context.Context, stats *entity.PromotionStats) error {
	payload, err := json.Marshal(stats)
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.Wrap(c.client.Set(ctx, statsKey(stats.PromotionID), payload, c.ttl).Err(), "cache promotion stats")
}

func (c *redisStatsCache) Get(ctx context.Context, promotionID uuid.UUID) (*entity.PromotionStats, bool, error) {
	data, err := c.client.Get(ctx, statsKey(promotionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrap(err, "read promotion stats")
	}

	var stats entity.PromotionStats
	if err := json.Unmarshal(data, &stats); err != nil {
		return nil, false, errors.Wrap(err, "decode promotion stats")
	}

	return &stats, true, nil
}

// memoryStatsCache is the process-local fallback when Redis is not configured.
type memoryStatsCache struct {
	mu    sync.RWMutex
	stats map[uuid.UUID]entity.PromotionStats
}

// NewMemoryStatsCache creates an in-process StatsCache.
func NewMemoryStatsCache() service.StatsCache {
	return &memoryStatsCache{stats: make(map[uuid.UUID]entity.PromotionStats)}
}

func (c *memoryStatsCache) Put(ctx context.Context, stats *entity.PromotionStats) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stats[stats.PromotionID] = *stats

	return nil
}

func (c *memoryStatsCache) Get(ctx context.Context, promotionID uuid.UUID) (*entity.PromotionStats, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	stats, ok := c.stats[promotionID]
	if !ok {
		return nil, false, nil
	}

	return &stats, true, nil
}

// Params holds dependencies for StatsCache, injected by Fx
type Params struct {
	fx.In

	Lc     fx.Lifecycle
	Config *config.Config
	Logger *slog.Logger
}

// NewStatsCache creates the Redis stats cache, or the in-memory one when Redis is not configured
func NewStatsCache(params Params) service.StatsCache {
	cfg := params.Config.Redis
	if cfg == nil || cfg.Addr == "" {
		params.Logger.Info("Redis not configured, using in-memory stats cache")

		return NewMemoryStatsCache()
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	params.Lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := client.Ping(ctx).Err(); err != nil {
				return errors.Wrap(err, "ping redis")
			}
			params.Logger.Info("Redis stats cache connected", slog.String("addr", cfg.Addr))

			return nil
		},
		OnStop: func(ctx context.Context) error {
			return errors.WithStack(client.Close())
		},
	})

	return NewRedisStatsCache(client, cfg.StatsTTL)
}
