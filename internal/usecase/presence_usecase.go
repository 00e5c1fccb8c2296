package usecase

import (
	"context"

	"hotspot/internal/domain/entity"

	"github.com/google/uuid"
)

// PresenceUsecase defines the check-in and going-intention use cases
type PresenceUsecase interface {
	// CheckIn moves the user to placeID, replacing any previous check-in atomically
	CheckIn(ctx context.Context, userID, placeID uuid.UUID) (*entity.CheckIn, error)

	// CheckOut removes the check-in of the user, if any
	CheckOut(ctx context.Context, userID uuid.UUID) error

	// SetGoingIntention declares that the user intends to go to placeID
	SetGoingIntention(ctx context.Context, userID, placeID uuid.UUID) (*entity.GoingIntention, error)

	// ClearGoingIntention withdraws the intention of the user for placeID
	ClearGoingIntention(ctx context.Context, userID, placeID uuid.UUID) error
}
