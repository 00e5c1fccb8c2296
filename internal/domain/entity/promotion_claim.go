// Package entity contains the core business objects of the project.
package entity

import (
	"time"

	"github.com/google/uuid"
)

// ClaimStatus is the arbitration outcome stored on a claim row.
type ClaimStatus string

const (
	ClaimWon  ClaimStatus = "won"
	ClaimLost ClaimStatus = "lost"
)

// ClaimState is the per (promotion, user) state seen by this process.
type ClaimState string

const (
	ClaimStateNotClaimed ClaimState = "not_claimed"
	ClaimStateRequesting ClaimState = "requesting"
	ClaimStateWon        ClaimState = "won"
	ClaimStateLost       ClaimState = "lost"
	ClaimStateFailed     ClaimState = "failed"
)

// StateOf maps a stored claim status to its terminal state.
func StateOf(status ClaimStatus) ClaimState {
	if status == ClaimWon {
		return ClaimStateWon
	}

	return ClaimStateLost
}

// PromotionClaim is one user's claim on a promotion.
// Status and ClaimOrder are assigned by the remote claim procedure only.
type PromotionClaim struct {
	ID          uuid.UUID   `json:"id"`                    // The Global Unique Identifier (GUID) for the claim.
	PromotionID uuid.UUID   `json:"promotion_id"`          // The claimed promotion.
	UserID      uuid.UUID   `json:"user_id"`               // The claimant.
	ClaimedAt   time.Time   `json:"claimed_at"`            // When the remote procedure accepted the claim.
	Status      ClaimStatus `json:"status"`                // Arbitration outcome.
	ClaimOrder  *int        `json:"claim_order,omitempty"` // 1-based serialization order, when assigned.
	RedeemedAt  *time.Time  `json:"redeemed_at,omitempty"` // Set when the place redeems a won claim.
	UpdatedAt   time.Time   `json:"updated_at"`            // Row version.
}

func (c *PromotionClaim) Kind() Kind          { return KindPromotionClaim }
func (c *PromotionClaim) RecordID() uuid.UUID { return c.ID }
func (c *PromotionClaim) Version() time.Time  { return c.UpdatedAt }

func (c *PromotionClaim) Indexes() []IndexValue {
	return []IndexValue{{Key: ByPromotion, Value: c.PromotionID}, {Key: ByUser, Value: c.UserID}}
}
