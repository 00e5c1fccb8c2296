package impl

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"hotspot/config"
	"hotspot/internal/domain/entity"
	"hotspot/internal/infra/cache"
	"hotspot/internal/infra/persistence/memory"
	"hotspot/internal/mirror"
	"hotspot/internal/window"

	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2026, 7, 4, 19, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.now = c.now.Add(d)
}

type allSynced struct {
	unsynced map[entity.Kind]bool
}

func (s allSynced) Synced(relation entity.Kind) bool {
	return !s.unsynced[relation]
}

// fixture wires the use cases over the in-memory remote store and a mirror that only sees
// what the use cases write into it.
type fixture struct {
	clock   *fakeClock
	remote  *memory.Store
	store   *mirror.Store
	gateway *mirror.Gateway
	window  *window.Window
	config  *config.Config
	logger  *slog.Logger
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	clock := &fakeClock{now: epoch}
	logger := slog.New(slog.DiscardHandler)
	store := mirror.NewStore(mirror.WithUniqueIndex(entity.KindCheckIn, entity.ByUser))

	return &fixture{
		clock:   clock,
		remote:  memory.NewStore(nil, logger, memory.WithClock(clock.Now)),
		store:   store,
		gateway: mirror.NewGateway(store, logger),
		window:  window.New(store, window.Config{TTL: time.Hour, Interval: time.Minute}, logger, window.WithClock(clock.Now)),
		config: &config.Config{Mirror: config.MirrorConfig{
			MaxGoingIntentions: entity.DefaultMaxGoingIntentions,
			ClaimTimeout:       time.Second,
		}},
		logger: logger,
	}
}

func (f *fixture) seed(t *testing.T, records ...any) {
	t.Helper()

	require.NoError(t, f.remote.Seed(context.Background(), records...))
}

func (f *fixture) presence() *presenceService {
	return NewPresenceService(PresenceServiceParams{
		TxManager: memory.NewTransactionManager(f.remote),
		Store:     f.store,
		Gateway:   f.gateway,
		Logger:    f.logger,
	}).(*presenceService)
}

func (f *fixture) livePosts() *livePostService {
	return NewLivePostService(LivePostServiceParams{
		Repo:    memory.NewLivePostRepository(f.remote),
		Store:   f.store,
		Gateway: f.gateway,
		Window:  f.window,
		Logger:  f.logger,
	}).(*livePostService)
}

func (f *fixture) promotionParams() PromotionServiceParams {
	return PromotionServiceParams{
		Procedure:  memory.NewClaimProcedure(f.remote),
		Promotions: memory.NewPromotionRepository(f.remote),
		Places:     memory.NewPlaceRepository(f.remote),
		Stats:      cache.NewMemoryStatsCache(),
		Store:      f.store,
		Status:     allSynced{},
		Clock:      f.clock.Now,
		Config:     f.config,
		Logger:     f.logger,
	}
}

func (f *fixture) promotions() *claimCoordinator {
	return NewPromotionService(f.promotionParams()).(*claimCoordinator)
}
