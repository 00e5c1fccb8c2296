// Package repository defines the interfaces for the remote store consumed by the mirror.
package repository

import (
	"context"

	"hotspot/internal/domain/entity"

	"github.com/google/uuid"
)

// PromotionRepository defines the remote operations on promotions and their claims.
type PromotionRepository interface {
	// FindPromotionByID retrieves a promotion by id.
	FindPromotionByID(ctx context.Context, id uuid.UUID) (*entity.Promotion, error)

	// FindClaimsByUser lists the claims made by a user.
	FindClaimsByUser(ctx context.Context, userID uuid.UUID) ([]*entity.PromotionClaim, error)

	// CountClaims aggregates claim outcomes for a promotion.
	CountClaims(ctx context.Context, promotionID uuid.UUID) (*entity.PromotionStats, error)
}

// ClaimProcedure is the remote atomic claim arbitration.
//
// Implementations must serialize concurrent callers so that exactly the first LimitCount
// claims of a promotion are won, and must be idempotent per (promotionID, userID): a repeated
// call returns the existing claim instead of inserting a second one.
type ClaimProcedure interface {
	ClaimPromotion(ctx context.Context, promotionID, userID uuid.UUID) (*entity.PromotionClaim, error)
}

// PlaceRepository looks up places.
type PlaceRepository interface {
	FindPlaceByID(ctx context.Context, id uuid.UUID) (*entity.Place, error)
}
