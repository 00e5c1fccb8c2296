package impl

import (
	"context"
	"log/slog"

	deliverycontext "hotspot/internal/delivery/context"
	"hotspot/internal/domain/entity"
	domainerrors "hotspot/internal/domain/errors"
	"hotspot/internal/domain/repository"
	"hotspot/internal/mirror"
	"hotspot/internal/usecase"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/fx"
)

// presenceService implements the PresenceUsecase interface.
type presenceService struct {
	txManager repository.TransactionManager
	store     *mirror.Store
	gateway   *mirror.Gateway
	logger    *slog.Logger
}

// PresenceServiceParams holds dependencies for PresenceService, injected by Fx.
type PresenceServiceParams struct {
	fx.In

	TxManager repository.TransactionManager
	Store     *mirror.Store
	Gateway   *mirror.Gateway
	Logger    *slog.Logger
}

// NewPresenceService is the constructor for presenceService.
func NewPresenceService(params PresenceServiceParams) usecase.PresenceUsecase {
	return &presenceService{
		txManager: params.TxManager,
		store:     params.Store,
		gateway:   params.Gateway,
		logger:    params.Logger.With(slog.String("component", "presence_service")),
	}
}

func (srv *presenceService) log(ctx context.Context) *slog.Logger {
	return deliverycontext.GetLoggerOrDefault(ctx, srv.logger)
}

// CheckIn deletes every check-in of the user and inserts the new one in a single transaction.
func (srv *presenceService) CheckIn(ctx context.Context, userID, placeID uuid.UUID) (*entity.CheckIn, error) {
	if userID == uuid.Nil {
		return nil, domainerrors.ErrNotAuthenticated
	}
	if placeID == uuid.Nil {
		return nil, domainerrors.ErrValidationFailed.WithDetails("placeId is required")
	}

	checkIn := &entity.CheckIn{ID: uuid.New(), UserID: userID, PlaceID: placeID}
	var replaced []uuid.UUID
	err := srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		repo := repoFactory.NewCheckInRepository()

		removed, err := repo.DeleteCheckInsByUser(ctx, userID)
		if err != nil {
			return errors.Wrap(err, "failed to delete previous check-ins")
		}
		replaced = removed

		if err := repo.CreateCheckIn(ctx, checkIn); err != nil {
			return errors.Wrap(err, "failed to create check-in")
		}

		return nil
	})
	if err != nil {
		srv.log(ctx).Error("Check-in failed", slog.Any("userID", userID), slog.Any("placeID", placeID), slog.Any("error", err))

		return nil, remoteFailure(err, "check-in")
	}

	for _, id := range replaced {
		srv.store.Remove(entity.KindCheckIn, id)
	}
	srv.store.UpsertLocal(checkIn)

	srv.log(ctx).Debug("Checked in", slog.Any("userID", userID), slog.Any("placeID", placeID), slog.Int("replaced", len(replaced)))

	return checkIn, nil
}

// CheckOut drops the user's check-in from the mirror first and restores it if the remote delete fails.
func (srv *presenceService) CheckOut(ctx context.Context, userID uuid.UUID) error {
	if userID == uuid.Nil {
		return domainerrors.ErrNotAuthenticated
	}

	mutation := mirror.Mutation{Removes: recordIDs(srv.store.ListByIndex(entity.KindCheckIn, entity.ByUser, userID))}
	err := srv.gateway.ApplyOptimistic(ctx, entity.KindCheckIn, mutation, func(ctx context.Context) error {
		return srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
			_, err := repoFactory.NewCheckInRepository().DeleteCheckInsByUser(ctx, userID)

			return err
		})
	})
	if err != nil {
		return remoteFailure(err, "check-out")
	}

	return nil
}

// SetGoingIntention inserts an intention unless the user already holds the maximum.
func (srv *presenceService) SetGoingIntention(ctx context.Context, userID, placeID uuid.UUID) (*entity.GoingIntention, error) {
	if userID == uuid.Nil {
		return nil, domainerrors.ErrNotAuthenticated
	}
	if placeID == uuid.Nil {
		return nil, domainerrors.ErrValidationFailed.WithDetails("placeId is required")
	}

	intention := &entity.GoingIntention{ID: uuid.New(), UserID: userID, PlaceID: placeID}
	err := srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		return repoFactory.NewGoingIntentionRepository().CreateGoingIntention(ctx, intention)
	})
	switch {
	case err == nil:
	case errors.Is(err, repository.ErrGoingLimitReached):
		return nil, domainerrors.ErrGoingLimitExceeded
	case errors.Is(err, repository.ErrDuplicate):
		for _, record := range srv.store.ListByIndex(entity.KindGoingIntention, entity.ByUser, userID) {
			if existing, ok := record.(*entity.GoingIntention); ok && existing.PlaceID == placeID {
				return existing, nil
			}
		}

		return nil, domainerrors.ErrValidationFailed.WithDetails("already going to this place")
	default:
		return nil, remoteFailure(err, "set going intention")
	}

	srv.store.UpsertLocal(intention)

	return intention, nil
}

// ClearGoingIntention drops the intention from the mirror first and restores it if the remote delete fails.
// An intention that is already gone remotely counts as cleared.
func (srv *presenceService) ClearGoingIntention(ctx context.Context, userID, placeID uuid.UUID) error {
	if userID == uuid.Nil {
		return domainerrors.ErrNotAuthenticated
	}

	var ids []uuid.UUID
	for _, record := range srv.store.ListByIndex(entity.KindGoingIntention, entity.ByUser, userID) {
		if intention, ok := record.(*entity.GoingIntention); ok && intention.PlaceID == placeID {
			ids = append(ids, intention.ID)
		}
	}

	err := srv.gateway.ApplyOptimistic(ctx, entity.KindGoingIntention, mirror.Mutation{Removes: ids}, func(ctx context.Context) error {
		return srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
			_, err := repoFactory.NewGoingIntentionRepository().DeleteGoingIntention(ctx, userID, placeID)

			return err
		})
	})
	if err != nil {
		return remoteFailure(err, "clear going intention")
	}

	return nil
}

func recordIDs(records []entity.Record) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(records))
	for _, record := range records {
		ids = append(ids, record.RecordID())
	}

	return ids
}
