// Package repository defines the interfaces for the remote store consumed by the mirror.
package repository

import (
	"context"

	"hotspot/internal/domain/entity"

	"github.com/google/uuid"
)

// CheckInRepository defines the remote operations on the check_ins relation.
type CheckInRepository interface {
	// CreateCheckIn inserts a check-in.
	CreateCheckIn(ctx context.Context, checkIn *entity.CheckIn) error

	// DeleteCheckInsByUser removes every check-in of the user and returns the removed ids.
	DeleteCheckInsByUser(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error)

	// FindCheckInsByPlace lists the check-ins at a place.
	FindCheckInsByPlace(ctx context.Context, placeID uuid.UUID) ([]*entity.CheckIn, error)
}

// GoingIntentionRepository defines the remote operations on the going_intentions relation.
type GoingIntentionRepository interface {
	// CreateGoingIntention inserts an intention; ErrDuplicate when (user, place) already exists.
	CreateGoingIntention(ctx context.Context, intention *entity.GoingIntention) error

	// DeleteGoingIntention removes the intention of the user for the place.
	DeleteGoingIntention(ctx context.Context, userID, placeID uuid.UUID) (uuid.UUID, error)

	// CountGoingIntentionsByUser counts the intentions held by the user.
	CountGoingIntentionsByUser(ctx context.Context, userID uuid.UUID) (int, error)
}
