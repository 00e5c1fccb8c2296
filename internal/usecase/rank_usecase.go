package usecase

import (
	"context"

	"hotspot/internal/domain/entity"

	"github.com/google/uuid"
)

// RankUsecase computes arrival-queue positions from the mirror
type RankUsecase interface {
	// RankOf returns the 1-based position of the user in the queue of kind at placeID,
	// counting every record created at or before the user's own. 0 when the user has no record.
	RankOf(ctx context.Context, userID, placeID uuid.UUID, kind entity.Kind) (int, error)
}
