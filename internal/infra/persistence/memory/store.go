// Package memory is an in-process remote store. Every committed change is published to the change feed,
// so a process running on it behaves like one backed by Postgres and Pub/Sub.
package memory

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"hotspot/internal/domain/entity"
	"hotspot/internal/domain/service"

	"github.com/google/uuid"
)

// Option configures a Store.
type Option func(*Store)

// WithClock replaces the wall clock used for row timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.clock = now
	}
}

// WithMaxGoingIntentions sets the per-user going-intention limit enforced on insert.
func WithMaxGoingIntentions(limit int) Option {
	return func(s *Store) {
		s.maxGoing = limit
	}
}

// WithLivePostLookback limits the live posts returned by a relation fetch to the given age.
func WithLivePostLookback(lookback time.Duration) Option {
	return func(s *Store) {
		s.lookback = lookback
	}
}

// Store holds every relation in maps guarded by a single mutex.
type Store struct {
	mu        sync.Mutex
	clock     func() time.Time
	last      time.Time
	publisher service.ChangePublisher
	logger    *slog.Logger
	maxGoing  int
	lookback  time.Duration

	checkIns   map[uuid.UUID]entity.CheckIn
	going      map[uuid.UUID]entity.GoingIntention
	posts      map[uuid.UUID]entity.LivePost
	promotions map[uuid.UUID]entity.Promotion
	claims     map[uuid.UUID]entity.PromotionClaim
	places     map[uuid.UUID]entity.Place
	matches    map[uuid.UUID]entity.Match
	messages   map[uuid.UUID]entity.Message
}

// NewStore creates an empty Store. publisher may be nil.
func NewStore(publisher service.ChangePublisher, logger *slog.Logger, opts ...Option) *Store {
	s := &Store{
		clock:      time.Now,
		publisher:  publisher,
		logger:     logger.With(slog.String("component", "memory_store")),
		maxGoing:   entity.DefaultMaxGoingIntentions,
		checkIns:   make(map[uuid.UUID]entity.CheckIn),
		going:      make(map[uuid.UUID]entity.GoingIntention),
		posts:      make(map[uuid.UUID]entity.LivePost),
		promotions: make(map[uuid.UUID]entity.Promotion),
		claims:     make(map[uuid.UUID]entity.PromotionClaim),
		places:     make(map[uuid.UUID]entity.Place),
		matches:    make(map[uuid.UUID]entity.Match),
		messages:   make(map[uuid.UUID]entity.Message),
	}
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// scope collects the undo steps and change events of one atomic unit.
type scope struct {
	undo   []func()
	events []*service.ChangeEvent
}

func (sc *scope) record(undo func(), event *service.ChangeEvent) {
	sc.undo = append(sc.undo, undo)
	sc.events = append(sc.events, event)
}

func (sc *scope) rollback() {
	for i := len(sc.undo) - 1; i >= 0; i-- {
		sc.undo[i]()
	}
}

// atomically runs fn under the store lock. Changes are undone when fn fails and published when it succeeds.
func (s *Store) atomically(ctx context.Context, fn func(sc *scope) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sc := &scope{}
	if err := fn(sc); err != nil {
		sc.rollback()

		return err
	}
	s.publish(ctx, sc.events)

	return nil
}

// publish runs under the store lock so that events of one row leave in commit order.
func (s *Store) publish(ctx context.Context, events []*service.ChangeEvent) {
	if s.publisher == nil {
		return
	}
	for _, event := range events {
		if err := s.publisher.PublishChange(context.WithoutCancel(ctx), event); err != nil {
			s.logger.Warn("Failed to publish change",
				slog.String("relation", string(event.Relation)),
				slog.String("id", event.ID.String()),
				slog.Any("error", err),
			)
		}
	}
}

// tick returns a strictly increasing timestamp at microsecond precision.
func (s *Store) tick() time.Time {
	now := s.clock().UTC().Truncate(time.Microsecond)
	if !now.After(s.last) {
		now = s.last.Add(time.Microsecond)
	}
	s.last = now

	return now
}

func changeEvent(op service.ChangeOp, record entity.Record) *service.ChangeEvent {
	return &service.ChangeEvent{Op: op, Relation: record.Kind(), ID: record.RecordID(), Record: record}
}

func deleteEvent(kind entity.Kind, id uuid.UUID) *service.ChangeEvent {
	return &service.ChangeEvent{Op: service.OpDelete, Relation: kind, ID: id}
}
