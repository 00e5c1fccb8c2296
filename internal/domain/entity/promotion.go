// Package entity contains the core business objects of the project.
package entity

import (
	"time"

	"github.com/google/uuid"
)

// PromotionType selects which queue a promotion rewards.
type PromotionType string

const (
	PromotionFirstNCheckIn PromotionType = "first_n_checkin"
	PromotionFirstNGoing   PromotionType = "first_n_going"
)

// Promotion is a limited-quantity offer published by a place.
type Promotion struct {
	ID         uuid.UUID     `json:"id"`          // The Global Unique Identifier (GUID) for the promotion.
	PlaceID    uuid.UUID     `json:"place_id"`    // The place backing the promotion.
	Type       PromotionType `json:"type"`        // Which queue the promotion rewards.
	Title      string        `json:"title"`       // Display title.
	LimitCount int           `json:"limit_count"` // Number of winner slots.
	StartDate  time.Time     `json:"start_date"`  // First instant the promotion is claimable.
	EndDate    time.Time     `json:"end_date"`    // Last instant the promotion is claimable.
	UpdatedAt  time.Time     `json:"updated_at"`  // Row version.
}

func (p *Promotion) Kind() Kind          { return KindPromotion }
func (p *Promotion) RecordID() uuid.UUID { return p.ID }
func (p *Promotion) Version() time.Time  { return p.UpdatedAt }

func (p *Promotion) Indexes() []IndexValue {
	return []IndexValue{{Key: ByPlace, Value: p.PlaceID}}
}

// IsActiveAt reports whether StartDate <= now <= EndDate.
func (p *Promotion) IsActiveAt(now time.Time) bool {
	return !now.Before(p.StartDate) && !now.After(p.EndDate)
}

// PromotionStats aggregates claim outcomes of one promotion.
type PromotionStats struct {
	PromotionID   uuid.UUID `json:"promotion_id"`
	ClaimCount    int       `json:"claim_count"`
	WinnerCount   int       `json:"winner_count"`
	RedeemedCount int       `json:"redeemed_count"`
	RefreshedAt   time.Time `json:"refreshed_at"`
}
