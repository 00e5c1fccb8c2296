package model

import (
	"time"

	"github.com/google/uuid"
)

// MatchModel is the GORM-specific struct for the 'matches' table.
type MatchModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserA     uuid.UUID `gorm:"column:user_a;type:uuid;not null;index"`
	UserB     uuid.UUID `gorm:"column:user_b;type:uuid;not null;index"`
	CreatedAt time.Time `gorm:"not null"`
}

// TableName explicitly sets the table name for GORM.
func (MatchModel) TableName() string {
	return "matches"
}

// MessageModel is the GORM-specific struct for the 'messages' table.
type MessageModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	MatchID   uuid.UUID `gorm:"type:uuid;not null;index"`
	SenderID  uuid.UUID `gorm:"type:uuid;not null"`
	Content   string    `gorm:"type:text;not null"`
	CreatedAt time.Time `gorm:"not null"`
}

// TableName explicitly sets the table name for GORM.
func (MessageModel) TableName() string {
	return "messages"
}

// All lists every table model, in creation order.
func All() []any {
	return []any{
		&PlaceModel{},
		&CheckInModel{},
		&GoingIntentionModel{},
		&LivePostModel{},
		&PromotionModel{},
		&PromotionClaimModel{},
		&MatchModel{},
		&MessageModel{},
	}
}
