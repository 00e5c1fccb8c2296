package model

import (
	"time"

	"github.com/google/uuid"
)

// LivePostModel is the GORM-specific struct for the 'live_posts' table.
type LivePostModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;index"`
	PlaceID   uuid.UUID `gorm:"type:uuid;not null;index"`
	Content   string    `gorm:"type:text;not null"`
	CreatedAt time.Time `gorm:"not null;index"`
	UpdatedAt time.Time `gorm:"not null"`
}

// TableName explicitly sets the table name for GORM.
func (LivePostModel) TableName() string {
	return "live_posts"
}
