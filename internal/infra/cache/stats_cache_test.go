package cache

import (
	"context"
	"testing"
	"time"

	"hotspot/internal/domain/entity"
	"hotspot/internal/domain/service"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleStats() *entity.PromotionStats {
	return &entity.PromotionStats{
		PromotionID:   uuid.New(),
		ClaimCount:    12,
		WinnerCount:   5,
		RedeemedCount: 2,
		RefreshedAt:   time.Date(2026, 9, 1, 21, 0, 0, 0, time.UTC),
	}
}

func TestStatsCache(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	caches := map[string]service.StatsCache{
		"redis":  NewRedisStatsCache(client, time.Minute),
		"memory": NewMemoryStatsCache(),
	}

	for name, c := range caches {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			stats := sampleStats()

			_, found, err := c.Get(ctx, stats.PromotionID)
			require.NoError(t, err)
			assert.False(t, found)

			require.NoError(t, c.Put(ctx, stats))
			got, found, err := c.Get(ctx, stats.PromotionID)
			require.NoError(t, err)
			require.True(t, found)
			assert.Equal(t, stats, got)

			stats.ClaimCount = 13
			require.NoError(t, c.Put(ctx, stats))
			got, _, err = c.Get(ctx, stats.PromotionID)
			require.NoError(t, err)
			assert.Equal(t, 13, got.ClaimCount)
		})
	}
}

func TestRedisStatsCache_Expires(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	c := NewRedisStatsCache(client, time.Minute)
	stats := sampleStats()

	require.NoError(t, c.Put(context.Background(), stats))
	assert.True(t, mr.Exists(statsKey(stats.PromotionID)))

	mr.FastForward(2 * time.Minute)

	_, found, err := c.Get(context.Background(), stats.PromotionID)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestRedisStatsCache_CorruptPayload(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	c := NewRedisStatsCache(client, time.Minute)
	promotionID := uuid.New()

	require.NoError(t, mr.Set(statsKey(promotionID), "not-json"))

	_, _, err := c.Get(context.Background(), promotionID)
	require.Error(t, err)
}
