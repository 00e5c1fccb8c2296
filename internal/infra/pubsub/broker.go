package pubsub

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"hotspot/internal/domain/entity"
	"hotspot/internal/domain/service"

	"github.com/pkg/errors"
)

const defaultBrokerCapacity = 10000

var (
	// ErrBrokerClosed is returned by Subscribe after Close.
	ErrBrokerClosed = errors.New("broker closed")
	// ErrChangesDropped ends a subscription whose queue overflowed, so the subscriber re-fetches the relation.
	ErrChangesDropped = errors.New("pending changes dropped")
)

type relationQueue struct {
	events     []*service.ChangeEvent
	signal     chan struct{}
	subscribed bool
	overflowed bool
}

// Broker is an in-process change feed. Like a Pub/Sub subscription, each relation keeps its
// undelivered events while no subscriber is attached, and a failed delivery is retried first.
type Broker struct {
	mu       sync.Mutex
	queues   map[entity.Kind]*relationQueue
	capacity int
	logger   *slog.Logger
	done     chan struct{}
	once     sync.Once
}

var (
	_ service.ChangeFeed      = (*Broker)(nil)
	_ service.ChangePublisher = (*Broker)(nil)
)

// NewBroker creates a Broker holding at most capacity pending events per relation.
func NewBroker(capacity int, logger *slog.Logger) *Broker {
	if capacity <= 0 {
		capacity = defaultBrokerCapacity
	}

	return &Broker{
		queues:   make(map[entity.Kind]*relationQueue),
		capacity: capacity,
		logger:   logger.With(slog.String("component", "change_broker")),
		done:     make(chan struct{}),
	}
}

func (b *Broker) queue(relation entity.Kind) *relationQueue {
	q, ok := b.queues[relation]
	if !ok {
		q = &relationQueue{signal: make(chan struct{}, 1)}
		b.queues[relation] = q
	}

	return q
}

// PublishChange enqueues event without blocking. The oldest pending event is dropped when the queue is full
// and the current subscription is ended with ErrChangesDropped.
func (b *Broker) PublishChange(ctx context.Context, event *service.ChangeEvent) error {
	if event.ReceivedAt.IsZero() {
		event.ReceivedAt = time.Now()
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	q := b.queue(event.Relation)
	if len(q.events) >= b.capacity {
		dropped := q.events[0]
		q.events = q.events[1:]
		q.overflowed = true
		b.logger.Warn("Change queue full, dropping oldest event",
			slog.String("relation", string(dropped.Relation)),
			slog.String("id", dropped.ID.String()),
		)
	}
	q.events = append(q.events, event)

	select {
	case q.signal <- struct{}{}:
	default:
	}

	return nil
}

// Subscribe delivers the relation's events to handler one at a time, in publish order.
// Only one subscriber per relation may be attached. Drops that happened before attaching are
// forgotten: a new subscriber re-fetches the relation anyway.
func (b *Broker) Subscribe(ctx context.Context, relation entity.Kind, handler service.ChangeHandler) error {
	b.mu.Lock()
	q := b.queue(relation)
	if q.subscribed {
		b.mu.Unlock()

		return errors.Errorf("relation %s already has a subscriber", relation)
	}
	q.subscribed = true
	q.overflowed = false
	b.mu.Unlock()

	defer func() {
		b.mu.Lock()
		q.subscribed = false
		b.mu.Unlock()
	}()

	for {
		if ctx.Err() != nil {
			return nil
		}

		b.mu.Lock()
		if q.overflowed {
			q.overflowed = false
			b.mu.Unlock()

			return ErrChangesDropped
		}
		if len(q.events) > 0 {
			event := q.events[0]
			q.events = q.events[1:]
			b.mu.Unlock()

			if err := handler(ctx, event); err != nil {
				b.mu.Lock()
				q.events = append([]*service.ChangeEvent{event}, q.events...)
				b.mu.Unlock()

				return errors.Wrap(err, "deliver change")
			}

			continue
		}
		b.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil
		case <-b.done:
			return ErrBrokerClosed
		case <-q.signal:
		}
	}
}

// Close detaches every subscriber.
func (b *Broker) Close() error {
	b.once.Do(func() {
		close(b.done)
	})

	return nil
}

// Pending returns the number of undelivered events of relation.
func (b *Broker) Pending(relation entity.Kind) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	if q, ok := b.queues[relation]; ok {
		return len(q.events)
	}

	return 0
}
