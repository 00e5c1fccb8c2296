// Package window derives the currently visible subset of time-bounded records from the mirror.
package window

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"hotspot/internal/domain/entity"
	"hotspot/internal/mirror"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

const subscriberBuffer = 4

// Update is the visible set of one place after a re-evaluation changed it.
type Update struct {
	PlaceID     uuid.UUID   `json:"place_id"`
	Visible     []uuid.UUID `json:"visible"`
	EvaluatedAt time.Time   `json:"evaluated_at"`
}

// Config controls the window.
type Config struct {
	TTL      time.Duration // Visibility window of a live post.
	Interval time.Duration // Period of the scheduled re-evaluation.
}

type created interface {
	Created() time.Time
}

// Option configures a Window.
type Option func(*Window)

// WithClock replaces the wall clock.
func WithClock(now func() time.Time) Option {
	return func(w *Window) {
		w.now = now
	}
}

// Window filters live posts by age at read time and publishes visible-set changes per place.
// Nothing is ever evicted from the mirror by the window.
type Window struct {
	reader mirror.Reader
	cfg    Config
	now    func() time.Time
	logger *slog.Logger

	mu          sync.Mutex
	visible     map[uuid.UUID]map[uuid.UUID]struct{}
	subscribers map[uuid.UUID]map[uint64]chan Update
	nextSubID   uint64

	dirty  chan struct{}
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a Window over reader.
func New(reader mirror.Reader, cfg Config, logger *slog.Logger, opts ...Option) *Window {
	if cfg.TTL <= 0 {
		cfg.TTL = entity.DefaultLivePostTTL
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}

	w := &Window{
		reader:      reader,
		cfg:         cfg,
		now:         time.Now,
		logger:      logger.With(slog.String("component", "ephemeral_window")),
		visible:     make(map[uuid.UUID]map[uuid.UUID]struct{}),
		subscribers: make(map[uuid.UUID]map[uint64]chan Update),
		dirty:       make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(w)
	}

	return w
}

// TTL returns the live-post visibility window.
func (w *Window) TTL() time.Duration {
	return w.cfg.TTL
}

// ActiveSince returns the ids of the records of kind at placeID created within the last windowDuration.
// The result is computed on every call; nothing is cached.
func (w *Window) ActiveSince(kind entity.Kind, placeID uuid.UUID, windowDuration time.Duration) []uuid.UUID {
	cutoff := w.now().Add(-windowDuration)
	records := w.reader.ListByIndex(kind, entity.ByPlace, placeID)

	ids := make([]uuid.UUID, 0, len(records))
	for _, record := range records {
		timed, ok := record.(created)
		if !ok {
			continue
		}
		if timed.Created().After(cutoff) {
			ids = append(ids, record.RecordID())
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })

	return ids
}

// ActivePosts returns the visible live posts of a place, newest first.
func (w *Window) ActivePosts(placeID uuid.UUID) []*entity.LivePost {
	now := w.now()
	records := w.reader.ListByIndex(entity.KindLivePost, entity.ByPlace, placeID)

	posts := make([]*entity.LivePost, 0, len(records))
	for _, record := range records {
		post, ok := record.(*entity.LivePost)
		if !ok || !post.VisibleAt(now, w.cfg.TTL) {
			continue
		}
		posts = append(posts, post)
	}
	sortNewestFirst(posts)

	return posts
}

// Subscribe registers for visible-set updates of a place. The returned function unsubscribes.
// A slow subscriber only sees the latest updates.
func (w *Window) Subscribe(placeID uuid.UUID) (<-chan Update, func()) {
	w.mu.Lock()
	defer w.mu.Unlock()

	id := w.nextSubID
	w.nextSubID++
	ch := make(chan Update, subscriberBuffer)
	subs, ok := w.subscribers[placeID]
	if !ok {
		subs = make(map[uint64]chan Update)
		w.subscribers[placeID] = subs
	}
	subs[id] = ch

	return ch, func() {
		w.mu.Lock()
		defer w.mu.Unlock()

		if subs, ok := w.subscribers[placeID]; ok {
			if ch, ok := subs[id]; ok {
				delete(subs, id)
				close(ch)
			}
			if len(subs) == 0 {
				delete(w.subscribers, placeID)
			}
		}
	}
}

// HandleChanges is a mirror listener requesting a re-evaluation when live posts change.
func (w *Window) HandleChanges(changes []mirror.Change) {
	for _, change := range changes {
		if change.Kind == entity.KindLivePost {
			w.Trigger()

			return
		}
	}
}

// Trigger requests an on-demand re-evaluation without blocking.
func (w *Window) Trigger() {
	select {
	case w.dirty <- struct{}{}:
	default:
	}
}

// Evaluate recomputes the visible set of every place holding live posts and publishes
// an Update for each place whose set changed.
func (w *Window) Evaluate() []Update {
	now := w.now()
	current := make(map[uuid.UUID]map[uuid.UUID]struct{})
	for _, record := range w.reader.List(entity.KindLivePost) {
		post, ok := record.(*entity.LivePost)
		if !ok || !post.VisibleAt(now, w.cfg.TTL) {
			continue
		}
		ids, ok := current[post.PlaceID]
		if !ok {
			ids = make(map[uuid.UUID]struct{})
			current[post.PlaceID] = ids
		}
		ids[post.ID] = struct{}{}
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	var updates []Update
	for placeID, ids := range current {
		if !sameSet(w.visible[placeID], ids) {
			updates = append(updates, Update{PlaceID: placeID, Visible: visibleIDs(w.reader, ids), EvaluatedAt: now})
		}
	}
	for placeID, ids := range w.visible {
		if _, ok := current[placeID]; !ok && len(ids) > 0 {
			updates = append(updates, Update{PlaceID: placeID, Visible: []uuid.UUID{}, EvaluatedAt: now})
		}
	}
	w.visible = current

	for _, update := range updates {
		for _, ch := range w.subscribers[update.PlaceID] {
			publish(ch, update)
		}
	}

	return updates
}

// Start runs the scheduled and on-demand re-evaluation loop until Stop.
func (w *Window) Start(ctx context.Context) error {
	if w.cancel != nil {
		return errors.New("window already started")
	}

	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	w.cancel = cancel
	w.done = make(chan struct{})
	go w.run(loopCtx)

	w.logger.Info("Ephemeral window started",
		slog.Duration("ttl", w.cfg.TTL),
		slog.Duration("interval", w.cfg.Interval),
	)

	return nil
}

// Stop ends the loop and waits for it to exit.
func (w *Window) Stop(ctx context.Context) error {
	if w.cancel == nil {
		return nil
	}
	w.cancel()

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), "waiting for window loop")
	}
}

func (w *Window) run(ctx context.Context) {
	defer close(w.done)

	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()

	w.Evaluate()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-w.dirty:
		}

		updates := w.Evaluate()
		if len(updates) > 0 {
			w.logger.Debug("Visible live posts changed", slog.Int("places", len(updates)))
		}
	}
}

func publish(ch chan Update, update Update) {
	for {
		select {
		case ch <- update:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}

func visibleIDs(reader mirror.Reader, ids map[uuid.UUID]struct{}) []uuid.UUID {
	posts := make([]*entity.LivePost, 0, len(ids))
	for id := range ids {
		if record, ok := reader.Get(entity.KindLivePost, id); ok {
			if post, ok := record.(*entity.LivePost); ok {
				posts = append(posts, post)
			}
		}
	}
	sortNewestFirst(posts)

	out := make([]uuid.UUID, len(posts))
	for i, post := range posts {
		out[i] = post.ID
	}

	return out
}

func sortNewestFirst(posts []*entity.LivePost) {
	sort.Slice(posts, func(i, j int) bool {
		if !posts[i].CreatedAt.Equal(posts[j].CreatedAt) {
			return posts[i].CreatedAt.After(posts[j].CreatedAt)
		}

		return posts[i].ID.String() < posts[j].ID.String()
	})
}

func sameSet(a, b map[uuid.UUID]struct{}) bool {
	if len(a) != len(b) {
		return false
	}
	for id := range a {
		if _, ok := b[id]; !ok {
			return false
		}
	}

	return true
}
