package impl

import (
	"context"
	"sync"
	"testing"
	"time"

	"hotspot/internal/domain/entity"
	domainerrors "hotspot/internal/domain/errors"
	"hotspot/internal/mirror"
	"hotspot/internal/usecase"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockClaimProcedure struct {
	mock.Mock
}

func (m *mockClaimProcedure) ClaimPromotion(ctx context.Context, promotionID, userID uuid.UUID) (*entity.PromotionClaim, error) {
	args := m.Called(ctx, promotionID, userID)
	claim, _ := args.Get(0).(*entity.PromotionClaim)

	return claim, args.Error(1)
}

func seedPromotion(t *testing.T, f *fixture, limit int, operator uuid.UUID) *entity.Promotion {
	t.Helper()

	place := &entity.Place{ID: uuid.New(), OwnerID: operator, Name: "Corner Bar"}
	promotion := &entity.Promotion{
		ID:         uuid.New(),
		PlaceID:    place.ID,
		Type:       entity.PromotionFirstNCheckIn,
		Title:      "first round free",
		LimitCount: limit,
		StartDate:  epoch.Add(-time.Hour),
		EndDate:    epoch.Add(time.Hour),
	}
	f.seed(t, place, promotion)

	return promotion
}

func TestClaimCoordinator_ConcurrentClaimsOneWinner(t *testing.T) {
	f := newFixture(t)
	srv := f.promotions()
	promotion := seedPromotion(t, f, 1, uuid.Nil)
	userC, userD := uuid.New(), uuid.New()

	var wg sync.WaitGroup
	results := make(map[uuid.UUID]*usecase.ClaimResult)
	var mu sync.Mutex
	for _, userID := range []uuid.UUID{userC, userD} {
		wg.Add(1)
		go func(userID uuid.UUID) {
			defer wg.Done()
			result, err := srv.ClaimPromotion(context.Background(), userID, promotion.ID)
			assert.NoError(t, err)
			mu.Lock()
			results[userID] = result
			mu.Unlock()
		}(userID)
	}
	wg.Wait()

	require.Len(t, results, 2)
	statuses := []entity.ClaimState{results[userC].Status, results[userD].Status}
	assert.ElementsMatch(t, []entity.ClaimState{entity.ClaimStateWon, entity.ClaimStateLost}, statuses)

	for userID, result := range results {
		assert.Equal(t, result.Status, srv.ClaimState(promotion.ID, userID))
		require.NotNil(t, result.ClaimOrder)
	}
}

func TestClaimCoordinator_ConcurrentClaimsRespectLimit(t *testing.T) {
	tests := []struct {
		name  string
		limit int
		users int
	}{
		{name: "more users than slots", limit: 3, users: 12},
		{name: "fewer users than slots", limit: 5, users: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			srv := f.promotions()
			promotion := seedPromotion(t, f, tt.limit, uuid.Nil)

			var wg sync.WaitGroup
			var mu sync.Mutex
			won := 0
			for range tt.users {
				wg.Add(1)
				go func() {
					defer wg.Done()
					result, err := srv.ClaimPromotion(context.Background(), uuid.New(), promotion.ID)
					if !assert.NoError(t, err) {
						return
					}
					if result.Status == entity.ClaimStateWon {
						mu.Lock()
						won++
						mu.Unlock()
					}
				}()
			}
			wg.Wait()

			assert.Equal(t, min(tt.limit, tt.users), won)
			assert.Equal(t, tt.users, f.store.Count(entity.KindPromotionClaim))
		})
	}
}

func TestClaimCoordinator_ReclaimReturnsSameClaim(t *testing.T) {
	f := newFixture(t)
	srv := f.promotions()
	promotion := seedPromotion(t, f, 1, uuid.Nil)
	ctx := context.Background()
	userID := uuid.New()

	first, err := srv.ClaimPromotion(ctx, userID, promotion.ID)
	require.NoError(t, err)

	// A coordinator with an empty mirror relies on the remote procedure's idempotence.
	params := f.promotionParams()
	params.Store = mirror.NewStore()
	again, err := NewPromotionService(params).ClaimPromotion(ctx, userID, promotion.ID)
	require.NoError(t, err)

	assert.Equal(t, first.Claim.ID, again.Claim.ID)
	assert.Equal(t, first.Status, again.Status)
	assert.Equal(t, 1, f.store.Count(entity.KindPromotionClaim))
}

func TestClaimCoordinator_Preconditions(t *testing.T) {
	f := newFixture(t)
	srv := f.promotions()
	promotion := seedPromotion(t, f, 1, uuid.Nil)
	ctx := context.Background()
	userID := uuid.New()

	_, err := srv.ClaimPromotion(ctx, uuid.Nil, promotion.ID)
	assert.ErrorIs(t, err, domainerrors.ErrNotAuthenticated)

	_, err = srv.ClaimPromotion(ctx, userID, uuid.New())
	assert.ErrorIs(t, err, domainerrors.ErrPromotionNotFound)

	f.clock.Advance(2 * time.Hour)
	_, err = srv.ClaimPromotion(ctx, userID, promotion.ID)
	assert.ErrorIs(t, err, domainerrors.ErrPromotionInactive)
	assert.Equal(t, entity.ClaimStateNotClaimed, srv.ClaimState(promotion.ID, userID))
}

func TestClaimCoordinator_TimeoutFailsClaim(t *testing.T) {
	f := newFixture(t)
	f.config.Mirror.ClaimTimeout = 20 * time.Millisecond
	promotion := seedPromotion(t, f, 1, uuid.Nil)
	userID := uuid.New()

	procedure := &mockClaimProcedure{}
	procedure.On("ClaimPromotion", mock.Anything, promotion.ID, userID).
		Run(func(args mock.Arguments) {
			<-args.Get(0).(context.Context).Done()
		}).
		Return(nil, context.DeadlineExceeded).
		Once()

	params := f.promotionParams()
	params.Procedure = procedure
	srv := NewPromotionService(params)

	_, err := srv.ClaimPromotion(context.Background(), userID, promotion.ID)
	assert.ErrorIs(t, err, domainerrors.ErrClaimTimeout)
	assert.Equal(t, entity.ClaimStateFailed, srv.ClaimState(promotion.ID, userID))
	assert.Zero(t, f.store.Count(entity.KindPromotionClaim), "failed claims leave no record")
	procedure.AssertExpectations(t)
}

func TestClaimCoordinator_CancelledCallerDoesNotAbortSharedClaim(t *testing.T) {
	f := newFixture(t)
	promotion := seedPromotion(t, f, 1, uuid.Nil)
	userID := uuid.New()
	won := &entity.PromotionClaim{
		ID:          uuid.New(),
		PromotionID: promotion.ID,
		UserID:      userID,
		ClaimedAt:   epoch,
		Status:      entity.ClaimWon,
		UpdatedAt:   epoch,
	}

	entered := make(chan struct{})
	release := make(chan struct{})
	procedureErr := make(chan error, 1)
	procedure := &mockClaimProcedure{}
	procedure.On("ClaimPromotion", mock.Anything, promotion.ID, userID).
		Run(func(args mock.Arguments) {
			close(entered)
			<-release
			procedureErr <- args.Get(0).(context.Context).Err()
		}).
		Return(won, nil).
		Once()

	params := f.promotionParams()
	params.Procedure = procedure
	srv := NewPromotionService(params)

	callerCtx, cancelCaller := context.WithCancel(context.Background())
	results := make([]*usecase.ClaimResult, 2)
	errs := make([]error, 2)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		results[0], errs[0] = srv.ClaimPromotion(callerCtx, userID, promotion.ID)
	}()
	<-entered

	wg.Add(1)
	go func() {
		defer wg.Done()
		results[1], errs[1] = srv.ClaimPromotion(context.Background(), userID, promotion.ID)
	}()
	cancelCaller()
	time.Sleep(10 * time.Millisecond)
	close(release)
	wg.Wait()

	require.NoError(t, <-procedureErr, "the remote call outlives the cancelled caller")
	for i := range results {
		require.NoError(t, errs[i])
		assert.Equal(t, entity.ClaimStateWon, results[i].Status)
	}
	assert.Equal(t, entity.ClaimStateWon, srv.ClaimState(promotion.ID, userID))
	procedure.AssertExpectations(t)
}

func TestClaimCoordinator_OperatorClaimRefreshesStats(t *testing.T) {
	f := newFixture(t)
	params := f.promotionParams()
	srv := NewPromotionService(params)
	operator := uuid.New()
	promotion := seedPromotion(t, f, 2, operator)
	ctx := context.Background()

	_, err := srv.ClaimPromotion(ctx, uuid.New(), promotion.ID)
	require.NoError(t, err)
	_, found, err := params.Stats.Get(ctx, promotion.ID)
	require.NoError(t, err)
	assert.False(t, found, "claims by customers do not refresh stats")

	_, err = srv.ClaimPromotion(ctx, operator, promotion.ID)
	require.NoError(t, err)
	stats, found, err := params.Stats.Get(ctx, promotion.ID)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 2, stats.ClaimCount)
	assert.Equal(t, 2, stats.WinnerCount)

	read, err := srv.PromotionStats(ctx, operator, promotion.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, read.ClaimCount)

	_, err = srv.PromotionStats(ctx, uuid.New(), promotion.ID)
	assert.ErrorIs(t, err, domainerrors.ErrForbidden)
}

func TestClaimCoordinator_CurrentClaims(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	userID := uuid.New()
	first := seedPromotion(t, f, 1, uuid.Nil)
	second := seedPromotion(t, f, 1, uuid.Nil)

	srv := f.promotions()
	_, err := srv.ClaimPromotion(ctx, userID, first.ID)
	require.NoError(t, err)
	f.clock.Advance(time.Minute)
	_, err = srv.ClaimPromotion(ctx, userID, second.ID)
	require.NoError(t, err)

	claims, err := srv.CurrentClaims(ctx, userID)
	require.NoError(t, err)
	require.Len(t, claims, 2)
	assert.Equal(t, second.ID, claims[0].PromotionID)

	params := f.promotionParams()
	params.Status = allSynced{unsynced: map[entity.Kind]bool{entity.KindPromotionClaim: true}}
	fresh := NewPromotionService(params)
	f.store.ReplaceRelation(entity.KindPromotionClaim, nil)

	remote, err := fresh.CurrentClaims(ctx, userID)
	require.NoError(t, err)
	assert.Len(t, remote, 2, "falls back to the remote store while claims are not mirrored")
}
