package window

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"hotspot/internal/domain/entity"
	"hotspot/internal/mirror"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.now = t
}

var t0 = time.Date(2026, 5, 1, 20, 0, 0, 0, time.UTC)

func setup(t *testing.T) (*mirror.Store, *Window, *fakeClock) {
	t.Helper()

	store := mirror.NewStore()
	clock := &fakeClock{now: t0}
	w := New(store, Config{TTL: time.Hour, Interval: time.Minute}, slog.New(slog.DiscardHandler), WithClock(clock.Now))

	return store, w, clock
}

func post(placeID uuid.UUID, at time.Time) *entity.LivePost {
	return &entity.LivePost{ID: uuid.New(), UserID: uuid.New(), PlaceID: placeID, Content: "live", CreatedAt: at, UpdatedAt: at}
}

func TestWindow_VisibilityBoundary(t *testing.T) {
	store, w, clock := setup(t)
	placeID := uuid.New()
	p := post(placeID, t0)
	store.Upsert(p)

	tests := []struct {
		name    string
		elapsed time.Duration
		visible bool
	}{
		{name: "at creation", elapsed: 0, visible: true},
		{name: "one second before expiry", elapsed: 3599 * time.Second, visible: true},
		{name: "just before expiry", elapsed: 3600*time.Second - time.Nanosecond, visible: true},
		{name: "at expiry", elapsed: 3600 * time.Second, visible: false},
		{name: "long after expiry", elapsed: 5 * time.Hour, visible: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock.Set(t0.Add(tt.elapsed))

			posts := w.ActivePosts(placeID)
			ids := w.ActiveSince(entity.KindLivePost, placeID, time.Hour)
			if tt.visible {
				require.Len(t, posts, 1)
				assert.Equal(t, p.ID, posts[0].ID)
				assert.Equal(t, []uuid.UUID{p.ID}, ids)
			} else {
				assert.Empty(t, posts)
				assert.Empty(t, ids)
			}
		})
	}

	// Expiry is a read-time filter; the row stays in the mirror.
	_, ok := store.Get(entity.KindLivePost, p.ID)
	assert.True(t, ok)
}

func TestWindow_ActivePostsNewestFirst(t *testing.T) {
	store, w, clock := setup(t)
	placeID := uuid.New()
	older := post(placeID, t0)
	newer := post(placeID, t0.Add(10*time.Minute))
	elsewhere := post(uuid.New(), t0)
	store.Upsert(older)
	store.Upsert(newer)
	store.Upsert(elsewhere)
	clock.Set(t0.Add(20 * time.Minute))

	posts := w.ActivePosts(placeID)

	require.Len(t, posts, 2)
	assert.Equal(t, newer.ID, posts[0].ID)
	assert.Equal(t, older.ID, posts[1].ID)
}

func TestWindow_ActiveSinceCheckIns(t *testing.T) {
	store, w, clock := setup(t)
	placeID := uuid.New()
	recent := &entity.CheckIn{ID: uuid.New(), UserID: uuid.New(), PlaceID: placeID, CreatedAt: t0.Add(-5 * time.Minute)}
	old := &entity.CheckIn{ID: uuid.New(), UserID: uuid.New(), PlaceID: placeID, CreatedAt: t0.Add(-2 * time.Hour)}
	store.Upsert(recent)
	store.Upsert(old)
	clock.Set(t0)

	assert.Equal(t, []uuid.UUID{recent.ID}, w.ActiveSince(entity.KindCheckIn, placeID, 30*time.Minute))
}

func TestWindow_EvaluatePublishesExpiry(t *testing.T) {
	store, w, clock := setup(t)
	placeID := uuid.New()
	p := post(placeID, t0)
	store.Upsert(p)

	updates, unsubscribe := w.Subscribe(placeID)
	defer unsubscribe()

	first := w.Evaluate()
	require.Len(t, first, 1)
	assert.Equal(t, []uuid.UUID{p.ID}, (<-updates).Visible)

	clock.Set(t0.Add(30 * time.Minute))
	assert.Empty(t, w.Evaluate(), "unchanged visible set must not publish")

	clock.Set(t0.Add(time.Hour))
	expired := w.Evaluate()
	require.Len(t, expired, 1)
	update := <-updates
	assert.Equal(t, placeID, update.PlaceID)
	assert.Empty(t, update.Visible)
}

func TestWindow_OnChangeTriggersReevaluation(t *testing.T) {
	store, w, _ := setup(t)
	store.OnChange(w.HandleChanges)
	placeID := uuid.New()

	updates, unsubscribe := w.Subscribe(placeID)
	defer unsubscribe()

	require.NoError(t, w.Start(context.Background()))
	defer func() {
		require.NoError(t, w.Stop(context.Background()))
	}()

	p := post(placeID, t0)
	store.Upsert(p)

	require.Eventually(t, func() bool {
		select {
		case update := <-updates:
			return len(update.Visible) == 1 && update.Visible[0] == p.ID
		default:
			return false
		}
	}, time.Second, 5*time.Millisecond)

	store.Remove(entity.KindLivePost, p.ID)

	require.Eventually(t, func() bool {
		select {
		case update := <-updates:
			return len(update.Visible) == 0
		default:
			return false
		}
	}, time.Second, 5*time.Millisecond)
}

func TestWindow_UnsubscribeClosesChannel(t *testing.T) {
	_, w, _ := setup(t)

	updates, unsubscribe := w.Subscribe(uuid.New())
	unsubscribe()
	unsubscribe()

	_, open := <-updates
	assert.False(t, open)
}
