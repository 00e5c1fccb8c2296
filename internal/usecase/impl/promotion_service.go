package impl

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"hotspot/config"
	deliverycontext "hotspot/internal/delivery/context"
	"hotspot/internal/domain/entity"
	domainerrors "hotspot/internal/domain/errors"
	"hotspot/internal/domain/repository"
	"hotspot/internal/domain/service"
	"hotspot/internal/mirror"
	"hotspot/internal/usecase"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/fx"
	"golang.org/x/sync/singleflight"
)

type claimKey struct {
	promotionID uuid.UUID
	userID      uuid.UUID
}

func (k claimKey) String() string {
	return k.promotionID.String() + ":" + k.userID.String()
}

// claimCoordinator implements the PromotionUsecase interface.
//
// Winner status is decided by the remote claim procedure only. The coordinator tracks the
// per (promotion, user) state, collapses concurrent claims of the same pair into one remote
// call and fails calls that outlive the claim timeout.
type claimCoordinator struct {
	procedure  repository.ClaimProcedure
	promotions repository.PromotionRepository
	places     repository.PlaceRepository
	stats      service.StatsCache
	store      *mirror.Store
	status     RelationStatus
	clock      Clock
	timeout    time.Duration
	logger     *slog.Logger

	inflight singleflight.Group
	mu       sync.Mutex
	states   map[claimKey]entity.ClaimState
}

// PromotionServiceParams holds dependencies for the claim coordinator, injected by Fx.
type PromotionServiceParams struct {
	fx.In

	Procedure  repository.ClaimProcedure
	Promotions repository.PromotionRepository
	Places     repository.PlaceRepository
	Stats      service.StatsCache
	Store      *mirror.Store
	Status     RelationStatus
	Clock      Clock `optional:"true"`
	Config     *config.Config
	Logger     *slog.Logger
}

// NewPromotionService is the constructor for the claim coordinator.
func NewPromotionService(params PromotionServiceParams) usecase.PromotionUsecase {
	timeout := params.Config.Mirror.ClaimTimeout
	if timeout <= 0 {
		timeout = config.DefaultClaimTimeout
	}

	return &claimCoordinator{
		procedure:  params.Procedure,
		promotions: params.Promotions,
		places:     params.Places,
		stats:      params.Stats,
		store:      params.Store,
		status:     params.Status,
		clock:      params.Clock,
		timeout:    timeout,
		logger:     params.Logger.With(slog.String("component", "claim_coordinator")),
		states:     make(map[claimKey]entity.ClaimState),
	}
}

func (srv *claimCoordinator) log(ctx context.Context) *slog.Logger {
	return deliverycontext.GetLoggerOrDefault(ctx, srv.logger)
}

// ClaimPromotion moves (promotionID, userID) from NotClaimed to Requesting and on to Won, Lost or Failed.
func (srv *claimCoordinator) ClaimPromotion(ctx context.Context, userID, promotionID uuid.UUID) (*usecase.ClaimResult, error) {
	if userID == uuid.Nil {
		return nil, domainerrors.ErrNotAuthenticated
	}

	promotion, err := srv.findPromotion(ctx, promotionID)
	if err != nil {
		return nil, err
	}

	if existing := srv.mirroredClaim(promotionID, userID); existing != nil {
		return resultOf(existing), nil
	}

	if !promotion.IsActiveAt(srv.clock.now()) {
		return nil, domainerrors.ErrPromotionInactive
	}

	key := claimKey{promotionID: promotionID, userID: userID}
	// Callers joining the flight must not inherit the first caller's cancellation; the claim timeout bounds it.
	value, err, shared := srv.inflight.Do(key.String(), func() (any, error) {
		return srv.requestClaim(context.WithoutCancel(ctx), key)
	})
	if err != nil {
		return nil, err
	}
	claim, _ := value.(*entity.PromotionClaim)
	if shared {
		srv.log(ctx).Debug("Joined in-flight claim", slog.String("key", key.String()))
	}

	if srv.operates(ctx, promotion.PlaceID, userID) {
		srv.refreshStats(ctx, promotionID)
	}

	return resultOf(claim), nil
}

func (srv *claimCoordinator) requestClaim(ctx context.Context, key claimKey) (*entity.PromotionClaim, error) {
	srv.setState(key, entity.ClaimStateRequesting)

	callCtx, cancel := context.WithTimeout(ctx, srv.timeout)
	defer cancel()

	claim, err := srv.procedure.ClaimPromotion(callCtx, key.promotionID, key.userID)
	if err != nil {
		srv.setState(key, entity.ClaimStateFailed)
		srv.log(ctx).Warn("Claim failed", slog.String("key", key.String()), slog.Any("error", err))

		switch {
		case errors.Is(err, context.DeadlineExceeded) || errors.Is(callCtx.Err(), context.DeadlineExceeded):
			return nil, domainerrors.ErrClaimTimeout
		case errors.Is(err, repository.ErrPromotionNotActive):
			return nil, domainerrors.ErrPromotionInactive
		case errors.Is(err, repository.ErrNotFound):
			return nil, domainerrors.ErrPromotionNotFound
		default:
			return nil, remoteFailure(err, "claim promotion")
		}
	}

	srv.store.Upsert(claim)
	srv.setState(key, entity.StateOf(claim.Status))

	return claim, nil
}

// CurrentClaims lists the claims of the user from the mirror, or from the remote store while the
// claims relation is not mirrored.
func (srv *claimCoordinator) CurrentClaims(ctx context.Context, userID uuid.UUID) ([]*entity.PromotionClaim, error) {
	if userID == uuid.Nil {
		return nil, domainerrors.ErrNotAuthenticated
	}

	if srv.status != nil && !srv.status.Synced(entity.KindPromotionClaim) {
		claims, err := srv.promotions.FindClaimsByUser(ctx, userID)
		if err != nil {
			return nil, remoteFailure(err, "list claims")
		}

		return claims, nil
	}

	records := srv.store.ListByIndex(entity.KindPromotionClaim, entity.ByUser, userID)
	claims := make([]*entity.PromotionClaim, 0, len(records))
	for _, record := range records {
		if claim, ok := record.(*entity.PromotionClaim); ok {
			claims = append(claims, claim)
		}
	}
	sort.Slice(claims, func(i, j int) bool { return claims[i].ClaimedAt.After(claims[j].ClaimedAt) })

	return claims, nil
}

// ClaimState prefers the mirrored claim row, which may also have arrived from another process.
func (srv *claimCoordinator) ClaimState(promotionID, userID uuid.UUID) entity.ClaimState {
	if claim := srv.mirroredClaim(promotionID, userID); claim != nil {
		return entity.StateOf(claim.Status)
	}

	srv.mu.Lock()
	defer srv.mu.Unlock()

	if state, ok := srv.states[claimKey{promotionID: promotionID, userID: userID}]; ok {
		return state
	}

	return entity.ClaimStateNotClaimed
}

// PromotionStats serves the cached counts, refreshing them when the cache is empty.
func (srv *claimCoordinator) PromotionStats(ctx context.Context, userID, promotionID uuid.UUID) (*entity.PromotionStats, error) {
	if userID == uuid.Nil {
		return nil, domainerrors.ErrNotAuthenticated
	}

	promotion, err := srv.findPromotion(ctx, promotionID)
	if err != nil {
		return nil, err
	}
	if !srv.operates(ctx, promotion.PlaceID, userID) {
		return nil, domainerrors.ErrForbidden.WithDetails("only the place operator can read promotion stats")
	}

	stats, found, err := srv.stats.Get(ctx, promotionID)
	if err != nil {
		srv.log(ctx).Warn("Stats cache read failed", slog.Any("promotionID", promotionID), slog.Any("error", err))
	}
	if found {
		return stats, nil
	}

	return srv.refreshStats(ctx, promotionID)
}

func (srv *claimCoordinator) refreshStats(ctx context.Context, promotionID uuid.UUID) (*entity.PromotionStats, error) {
	stats, err := srv.promotions.CountClaims(ctx, promotionID)
	if err != nil {
		srv.log(ctx).Warn("Failed to refresh promotion stats", slog.Any("promotionID", promotionID), slog.Any("error", err))
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domainerrors.ErrPromotionNotFound
		}

		return nil, remoteFailure(err, "count claims")
	}

	if err := srv.stats.Put(ctx, stats); err != nil {
		srv.log(ctx).Warn("Stats cache write failed", slog.Any("promotionID", promotionID), slog.Any("error", err))
	}

	return stats, nil
}

func (srv *claimCoordinator) findPromotion(ctx context.Context, promotionID uuid.UUID) (*entity.Promotion, error) {
	if record, ok := srv.store.Get(entity.KindPromotion, promotionID); ok {
		if promotion, ok := record.(*entity.Promotion); ok {
			return promotion, nil
		}
	}

	promotion, err := srv.promotions.FindPromotionByID(ctx, promotionID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, domainerrors.ErrPromotionNotFound
	}
	if err != nil {
		return nil, remoteFailure(err, "find promotion")
	}
	srv.store.Upsert(promotion)

	return promotion, nil
}

func (srv *claimCoordinator) operates(ctx context.Context, placeID, userID uuid.UUID) bool {
	place, err := srv.places.FindPlaceByID(ctx, placeID)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			srv.log(ctx).Warn("Place lookup failed", slog.Any("placeID", placeID), slog.Any("error", err))
		}

		return false
	}

	return place.IsOperatedBy(userID)
}

func (srv *claimCoordinator) mirroredClaim(promotionID, userID uuid.UUID) *entity.PromotionClaim {
	for _, record := range srv.store.ListByIndex(entity.KindPromotionClaim, entity.ByUser, userID) {
		if claim, ok := record.(*entity.PromotionClaim); ok && claim.PromotionID == promotionID {
			return claim
		}
	}

	return nil
}

func (srv *claimCoordinator) setState(key claimKey, state entity.ClaimState) {
	srv.mu.Lock()
	defer srv.mu.Unlock()

	srv.states[key] = state
}

func resultOf(claim *entity.PromotionClaim) *usecase.ClaimResult {
	return &usecase.ClaimResult{
		Status:     entity.StateOf(claim.Status),
		ClaimOrder: claim.ClaimOrder,
		Claim:      claim,
	}
}
