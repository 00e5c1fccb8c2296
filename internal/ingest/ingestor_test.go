package ingest

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"hotspot/internal/domain/entity"
	"hotspot/internal/domain/service"
	"hotspot/internal/mirror"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeFeed hands each relation's subscriber events pushed through Send.
type fakeFeed struct {
	mu      sync.Mutex
	streams map[entity.Kind]chan *service.ChangeEvent
	breaks  map[entity.Kind]chan struct{}
	subs    atomic.Int32
}

func newFakeFeed() *fakeFeed {
	return &fakeFeed{
		streams: make(map[entity.Kind]chan *service.ChangeEvent),
		breaks:  make(map[entity.Kind]chan struct{}),
	}
}

func (f *fakeFeed) channels(relation entity.Kind) (chan *service.ChangeEvent, chan struct{}) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.streams[relation]; !ok {
		f.streams[relation] = make(chan *service.ChangeEvent, 64)
		f.breaks[relation] = make(chan struct{}, 1)
	}

	return f.streams[relation], f.breaks[relation]
}

func (f *fakeFeed) Subscribe(ctx context.Context, relation entity.Kind, handler service.ChangeHandler) error {
	events, broken := f.channels(relation)
	f.subs.Add(1)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-broken:
			return errors.New("connection reset")
		case event := <-events:
			if err := handler(ctx, event); err != nil {
				return err
			}
		}
	}
}

func (f *fakeFeed) Close() error { return nil }

func (f *fakeFeed) Send(event *service.ChangeEvent) {
	events, _ := f.channels(event.Relation)
	events <- event
}

func (f *fakeFeed) Break(relation entity.Kind) {
	_, broken := f.channels(relation)
	broken <- struct{}{}
}

// fakeReader serves the remote rows of each relation.
type fakeReader struct {
	mu      sync.Mutex
	rows    map[entity.Kind][]entity.Record
	fails   int
	gate    chan struct{}
	fetches atomic.Int32
}

func (r *fakeReader) FetchRelation(ctx context.Context, kind entity.Kind) ([]entity.Record, error) {
	r.fetches.Add(1)

	r.mu.Lock()
	gate := r.gate
	if r.fails > 0 {
		r.fails--
		r.mu.Unlock()

		return nil, errors.New("remote store unavailable")
	}
	r.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]entity.Record(nil), r.rows[kind]...), nil
}

func (r *fakeReader) set(kind entity.Kind, records ...entity.Record) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.rows == nil {
		r.rows = make(map[entity.Kind][]entity.Record)
	}
	r.rows[kind] = records
}

var t0 = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

func livePost(at time.Time) *entity.LivePost {
	return &entity.LivePost{ID: uuid.New(), UserID: uuid.New(), PlaceID: uuid.New(), Content: "hi", CreatedAt: at, UpdatedAt: at}
}

func insertEvent(record entity.Record) *service.ChangeEvent {
	return &service.ChangeEvent{Op: service.OpInsert, Relation: record.Kind(), ID: record.RecordID(), Record: record}
}

func newTestIngestor(feed service.ChangeFeed, reader *fakeReader, store *mirror.Store) *Ingestor {
	return New(feed, reader, store, Config{
		Relations: []entity.Kind{entity.KindLivePost},
		Backoff:   BackoffConfig{Initial: time.Millisecond, Max: 5 * time.Millisecond, Multiplier: 2},
	}, slog.New(slog.DiscardHandler))
}

func startIngestor(t *testing.T, ing *Ingestor) {
	t.Helper()

	require.NoError(t, ing.Start(context.Background()))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		assert.NoError(t, ing.Stop(ctx))
	})
}

func TestIngestor_InitialFetchAndLiveEvents(t *testing.T) {
	store := mirror.NewStore()
	feed := newFakeFeed()
	existing := livePost(t0)
	reader := &fakeReader{}
	reader.set(entity.KindLivePost, existing)
	ing := newTestIngestor(feed, reader, store)

	startIngestor(t, ing)
	require.Eventually(t, func() bool { return ing.Synced(entity.KindLivePost) }, time.Second, time.Millisecond)

	_, ok := store.Get(entity.KindLivePost, existing.ID)
	assert.True(t, ok)

	created := livePost(t0.Add(time.Minute))
	feed.Send(insertEvent(created))
	feed.Send(insertEvent(created))
	require.Eventually(t, func() bool { return store.Count(entity.KindLivePost) == 2 }, time.Second, time.Millisecond)

	feed.Send(&service.ChangeEvent{Op: service.OpDelete, Relation: entity.KindLivePost, ID: existing.ID})
	require.Eventually(t, func() bool {
		_, ok := store.Get(entity.KindLivePost, existing.ID)
		return !ok
	}, time.Second, time.Millisecond)
	assert.Equal(t, 1, store.Count(entity.KindLivePost))
}

func TestIngestor_ReconnectRefetchesRelation(t *testing.T) {
	store := mirror.NewStore()
	feed := newFakeFeed()
	gone := livePost(t0)
	reader := &fakeReader{}
	reader.set(entity.KindLivePost, gone)
	ing := newTestIngestor(feed, reader, store)

	startIngestor(t, ing)
	require.Eventually(t, func() bool { return store.Count(entity.KindLivePost) == 1 }, time.Second, time.Millisecond)

	// The row is deleted remotely while the stream is down; only the re-fetch can repair it.
	survivor := livePost(t0.Add(time.Minute))
	reader.set(entity.KindLivePost, survivor)
	feed.Break(entity.KindLivePost)

	require.Eventually(t, func() bool {
		_, goneStill := store.Get(entity.KindLivePost, gone.ID)
		_, present := store.Get(entity.KindLivePost, survivor.ID)
		return !goneStill && present
	}, time.Second, time.Millisecond)
	assert.GreaterOrEqual(t, feed.subs.Load(), int32(2))
	assert.GreaterOrEqual(t, reader.fetches.Load(), int32(2))
}

func TestIngestor_RetriesFailedRefetch(t *testing.T) {
	store := mirror.NewStore()
	feed := newFakeFeed()
	post := livePost(t0)
	reader := &fakeReader{fails: 2}
	reader.set(entity.KindLivePost, post)
	ing := newTestIngestor(feed, reader, store)

	startIngestor(t, ing)

	require.Eventually(t, func() bool { return ing.Synced(entity.KindLivePost) }, time.Second, time.Millisecond)
	assert.GreaterOrEqual(t, reader.fetches.Load(), int32(3))
	_, ok := store.Get(entity.KindLivePost, post.ID)
	assert.True(t, ok)
}

func TestIngestor_BuffersEventsDuringRefetch(t *testing.T) {
	store := mirror.NewStore()
	feed := newFakeFeed()
	ing := newTestIngestor(feed, &fakeReader{}, store)

	snapshotRow := livePost(t0)
	snapshotRow.UpdatedAt = t0.Add(2 * time.Minute)
	staleUpdate := *snapshotRow
	staleUpdate.Content = "older edit"
	staleUpdate.UpdatedAt = t0.Add(time.Minute)
	fresh := livePost(t0.Add(3 * time.Minute))

	gate := make(chan struct{})
	reader := &fakeReader{gate: gate}
	reader.set(entity.KindLivePost, snapshotRow)
	ing.reader = reader

	done := make(chan error, 1)
	go func() {
		done <- ing.Refetch(context.Background(), entity.KindLivePost)
	}()
	require.Eventually(t, func() bool { return reader.fetches.Load() == 1 }, time.Second, time.Millisecond)

	require.NoError(t, ing.Handle(context.Background(), &service.ChangeEvent{
		Op: service.OpUpdate, Relation: entity.KindLivePost, ID: staleUpdate.ID, Record: &staleUpdate,
	}))
	require.NoError(t, ing.Handle(context.Background(), insertEvent(fresh)))
	assert.Equal(t, 0, store.Count(entity.KindLivePost), "events must wait for the snapshot")

	close(gate)
	require.NoError(t, <-done)

	got, ok := store.Get(entity.KindLivePost, snapshotRow.ID)
	require.True(t, ok)
	assert.Equal(t, "hi", got.(*entity.LivePost).Content)
	_, ok = store.Get(entity.KindLivePost, fresh.ID)
	assert.True(t, ok)
}

func TestIngestor_HooksSeeFeedInsertsOnly(t *testing.T) {
	store := mirror.NewStore()
	feed := newFakeFeed()
	loaded := livePost(t0)
	reader := &fakeReader{}
	reader.set(entity.KindLivePost, loaded)
	ing := newTestIngestor(feed, reader, store)

	var mu sync.Mutex
	var seen []uuid.UUID
	ing.AddHook(func(ctx context.Context, event *service.ChangeEvent) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, event.ID)
	})

	require.NoError(t, ing.Refetch(context.Background(), entity.KindLivePost))

	pushed := livePost(t0.Add(time.Minute))
	require.NoError(t, ing.Handle(context.Background(), insertEvent(pushed)))
	require.NoError(t, ing.Handle(context.Background(), insertEvent(pushed)))
	require.NoError(t, ing.Handle(context.Background(), insertEvent(loaded)))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []uuid.UUID{pushed.ID}, seen)
}

func TestIngestor_DropsMalformedEvents(t *testing.T) {
	store := mirror.NewStore()
	ing := newTestIngestor(newFakeFeed(), &fakeReader{}, store)

	require.NoError(t, ing.Handle(context.Background(), &service.ChangeEvent{Op: service.OpInsert, Relation: entity.KindLivePost, ID: uuid.New()}))
	require.NoError(t, ing.Handle(context.Background(), &service.ChangeEvent{Op: "TRUNCATE", Relation: entity.KindLivePost, ID: uuid.New()}))
	require.NoError(t, ing.Handle(context.Background(), &service.ChangeEvent{Op: service.OpInsert, Relation: "orders", ID: uuid.New()}))

	assert.Equal(t, 0, store.Count(entity.KindLivePost))
}

func TestIngestor_HooksSeeConfirmationOfLocalWrites(t *testing.T) {
	store := mirror.NewStore()
	ing := newTestIngestor(newFakeFeed(), &fakeReader{}, store)

	var seen atomic.Int32
	ing.AddHook(func(ctx context.Context, event *service.ChangeEvent) {
		seen.Add(1)
	})

	written := livePost(t0)
	require.Equal(t, mirror.Applied, store.UpsertLocal(written))

	require.NoError(t, ing.Handle(context.Background(), insertEvent(written)))
	assert.Equal(t, int32(1), seen.Load(), "the feed insert of a local write reaches hooks")

	require.NoError(t, ing.Handle(context.Background(), insertEvent(written)))
	assert.Equal(t, int32(1), seen.Load(), "redelivery does not")
}

// failingFeed refuses every subscription and records when each attempt happened.
type failingFeed struct {
	mu       sync.Mutex
	attempts []time.Time
}

func (f *failingFeed) Subscribe(ctx context.Context, relation entity.Kind, handler service.ChangeHandler) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempts = append(f.attempts, time.Now())

	return errors.New("permission denied")
}

func (f *failingFeed) Close() error { return nil }

func (f *failingFeed) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return len(f.attempts)
}

func TestIngestor_BackoffGrowsWhileSubscribeFails(t *testing.T) {
	feed := &failingFeed{}
	reader := &fakeReader{}
	ing := New(feed, reader, mirror.NewStore(), Config{
		Relations: []entity.Kind{entity.KindLivePost},
		Backoff:   BackoffConfig{Initial: 20 * time.Millisecond, Max: 5 * time.Second, Multiplier: 2},
	}, slog.New(slog.DiscardHandler))

	startIngestor(t, ing)
	time.Sleep(700 * time.Millisecond)

	// Even with full jitter the waits add up to 10+20+40+80+160+320ms, so at most seven attempts fit.
	attempts := feed.count()
	assert.GreaterOrEqual(t, attempts, 3)
	assert.LessOrEqual(t, attempts, 8)
	assert.LessOrEqual(t, int(reader.fetches.Load()), 8)
}
