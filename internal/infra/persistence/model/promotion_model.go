package model

import (
	"time"

	"github.com/google/uuid"
)

// PlaceModel is the GORM-specific struct for the 'places' table.
type PlaceModel struct {
	ID      uuid.UUID `gorm:"type:uuid;primaryKey"`
	OwnerID uuid.UUID `gorm:"type:uuid;index"`
	Name    string    `gorm:"type:varchar(255);not null"`
}

// TableName explicitly sets the table name for GORM.
func (PlaceModel) TableName() string {
	return "places"
}

// PromotionModel is the GORM-specific struct for the 'promotions' table.
type PromotionModel struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	PlaceID    uuid.UUID `gorm:"type:uuid;not null;index"`
	Type       string    `gorm:"type:varchar(32);not null"`
	Title      string    `gorm:"type:varchar(255);not null"`
	LimitCount int       `gorm:"not null"`
	StartDate  time.Time `gorm:"not null"`
	EndDate    time.Time `gorm:"not null"`
	UpdatedAt  time.Time `gorm:"not null"`
}

// TableName explicitly sets the table name for GORM.
func (PromotionModel) TableName() string {
	return "promotions"
}

// PromotionClaimModel is the GORM-specific struct for the 'promotion_claims' table.
type PromotionClaimModel struct {
	ID          uuid.UUID  `gorm:"type:uuid;primaryKey"`
	PromotionID uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_claim_promotion_user"`
	UserID      uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_claim_promotion_user;index"`
	ClaimedAt   time.Time  `gorm:"not null"`
	Status      string     `gorm:"type:varchar(16);not null"`
	ClaimOrder  *int       `gorm:"column:claim_order"`
	RedeemedAt  *time.Time `gorm:"column:redeemed_at"`
	UpdatedAt   time.Time  `gorm:"not null"`
}

// TableName explicitly sets the table name for GORM.
func (PromotionClaimModel) TableName() string {
	return "promotion_claims"
}
