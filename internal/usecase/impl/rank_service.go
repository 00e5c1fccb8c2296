package impl

import (
	"context"

	"hotspot/internal/domain/entity"
	domainerrors "hotspot/internal/domain/errors"
	"hotspot/internal/mirror"
	"hotspot/internal/usecase"

	"github.com/google/uuid"
)

// rankService implements the RankUsecase interface over the mirror.
type rankService struct {
	reader mirror.Reader
}

// NewRankService is the constructor for rankService.
func NewRankService(store *mirror.Store) usecase.RankUsecase {
	return &rankService{reader: store}
}

// RankOf counts the records at the place created at or before the user's own.
// Records with equal timestamps share a rank.
func (srv *rankService) RankOf(_ context.Context, userID, placeID uuid.UUID, kind entity.Kind) (int, error) {
	if kind != entity.KindCheckIn && kind != entity.KindGoingIntention {
		return 0, domainerrors.ErrValidationFailed.WithDetails("rank kind must be check_ins or going_intentions")
	}

	queue := srv.reader.ListByIndex(kind, entity.ByPlace, placeID)

	var own entity.Queued
	for _, record := range queue {
		queued, ok := record.(entity.Queued)
		if ok && queued.Owner() == userID && queued.Location() == placeID {
			own = queued

			break
		}
	}
	if own == nil {
		return 0, nil
	}

	rank := 0
	for _, record := range queue {
		queued, ok := record.(entity.Queued)
		if !ok {
			continue
		}
		if !queued.Created().After(own.Created()) {
			rank++
		}
	}

	return rank, nil
}
