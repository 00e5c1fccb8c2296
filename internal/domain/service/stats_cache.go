package service

import (
	"context"

	"hotspot/internal/domain/entity"

	"github.com/google/uuid"
)

// StatsCache stores the latest aggregate claim counts per promotion.
type StatsCache interface {
	// Put stores stats, replacing any previous value.
	Put(ctx context.Context, stats *entity.PromotionStats) error

	// Get returns the cached stats; found is false when nothing is cached.
	Get(ctx context.Context, promotionID uuid.UUID) (stats *entity.PromotionStats, found bool, err error)
}
