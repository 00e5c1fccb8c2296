package usecase

import (
	"context"

	"hotspot/internal/domain/entity"

	"github.com/google/uuid"
)

// ClaimResult is the outcome of a claim. Lost is a normal result, not an error.
type ClaimResult struct {
	Status     entity.ClaimState      `json:"status"`
	ClaimOrder *int                   `json:"claim_order,omitempty"`
	Claim      *entity.PromotionClaim `json:"claim"`
}

// PromotionUsecase coordinates first-N promotion claims
type PromotionUsecase interface {
	// ClaimPromotion asks the remote arbiter for a slot of promotionID
	ClaimPromotion(ctx context.Context, userID, promotionID uuid.UUID) (*ClaimResult, error)

	// CurrentClaims lists the claims of the user, newest first
	CurrentClaims(ctx context.Context, userID uuid.UUID) ([]*entity.PromotionClaim, error)

	// ClaimState reports the claim state of (promotionID, userID) as seen by this process
	ClaimState(promotionID, userID uuid.UUID) entity.ClaimState

	// PromotionStats returns the aggregate claim counts; only the operator of the promotion's place may read them
	PromotionStats(ctx context.Context, userID, promotionID uuid.UUID) (*entity.PromotionStats, error)
}
