// Package model contains the GORM structs of the remote store tables.
package model

import (
	"time"

	"github.com/google/uuid"
)

// CheckInModel is the GORM-specific struct for the 'check_ins' table.
// The unique index on user_id keeps one check-in per user.
type CheckInModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex"`
	PlaceID   uuid.UUID `gorm:"type:uuid;not null;index"`
	CreatedAt time.Time `gorm:"not null;index"`
	UpdatedAt time.Time `gorm:"not null"`
}

// TableName explicitly sets the table name for GORM.
func (CheckInModel) TableName() string {
	return "check_ins"
}

// GoingIntentionModel is the GORM-specific struct for the 'going_intentions' table.
type GoingIntentionModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_going_user_place"`
	PlaceID   uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_going_user_place;index"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// TableName explicitly sets the table name for GORM.
func (GoingIntentionModel) TableName() string {
	return "going_intentions"
}
