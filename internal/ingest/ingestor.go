// Package ingest keeps the mirror in sync with the remote store's change feed.
package ingest

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"hotspot/internal/domain/entity"
	"hotspot/internal/domain/repository"
	"hotspot/internal/domain/service"
	"hotspot/internal/mirror"

	"github.com/cenkalti/backoff/v5"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// ErrStreamClosed is returned when a relation stream ends without the ingestor being stopped.
var ErrStreamClosed = errors.New("change stream closed")

// Hook observes the first feed insert of each row: inserts that changed the mirror, and inserts that
// confirm a row this process wrote locally. Rows loaded by a re-fetch never reach hooks.
type Hook func(ctx context.Context, event *service.ChangeEvent)

// BackoffConfig shapes the reconnect delay of a broken relation stream.
type BackoffConfig struct {
	Initial    time.Duration
	Max        time.Duration
	Multiplier float64
}

// Config controls the ingestor.
type Config struct {
	Relations []entity.Kind
	Backoff   BackoffConfig
}

type relationState struct {
	mu        sync.Mutex
	buffering int
	pending   []*service.ChangeEvent
	synced    bool
}

// Ingestor subscribes to one stream per relation and applies the events to the mirror.
//
// Every (re)subscription is followed by a full re-fetch of the relation. Events that arrive while a
// re-fetch is in flight are buffered and applied on top of the fresh snapshot, where version ordering
// discards whatever the snapshot already covers.
type Ingestor struct {
	feed   service.ChangeFeed
	reader repository.RelationReader
	store  *mirror.Store
	cfg    Config
	logger *slog.Logger

	states   map[entity.Kind]*relationState
	refetchG singleflight.Group

	hooksMu sync.RWMutex
	hooks   []Hook

	cancel context.CancelFunc
	group  *errgroup.Group
}

// New creates an Ingestor. An empty relation list watches every mirrored relation.
func New(feed service.ChangeFeed, reader repository.RelationReader, store *mirror.Store, cfg Config, logger *slog.Logger) *Ingestor {
	if len(cfg.Relations) == 0 {
		cfg.Relations = entity.AllKinds()
	}
	if cfg.Backoff.Initial <= 0 {
		cfg.Backoff.Initial = time.Second
	}
	if cfg.Backoff.Max <= 0 {
		cfg.Backoff.Max = 30 * time.Second
	}
	if cfg.Backoff.Multiplier < 1 {
		cfg.Backoff.Multiplier = 2
	}

	states := make(map[entity.Kind]*relationState, len(entity.AllKinds()))
	for _, kind := range entity.AllKinds() {
		states[kind] = &relationState{}
	}

	return &Ingestor{
		feed:   feed,
		reader: reader,
		store:  store,
		cfg:    cfg,
		logger: logger.With(slog.String("component", "event_ingestor")),
		states: states,
	}
}

// AddHook registers h for first feed inserts.
func (i *Ingestor) AddHook(h Hook) {
	i.hooksMu.Lock()
	defer i.hooksMu.Unlock()

	i.hooks = append(i.hooks, h)
}

// Start launches one watcher per relation. Watchers keep reconnecting until Stop.
func (i *Ingestor) Start(ctx context.Context) error {
	if i.cancel != nil {
		return errors.New("ingestor already started")
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	group, groupCtx := errgroup.WithContext(runCtx)
	i.cancel = cancel
	i.group = group

	for _, relation := range i.cfg.Relations {
		group.Go(func() error {
			i.watch(groupCtx, relation)

			return nil
		})
	}

	i.logger.Info("Event ingestor started", slog.Int("relations", len(i.cfg.Relations)))

	return nil
}

// Stop cancels every watcher and waits for them to exit.
func (i *Ingestor) Stop(ctx context.Context) error {
	if i.cancel == nil {
		return nil
	}
	i.cancel()

	done := make(chan error, 1)
	go func() {
		done <- i.group.Wait()
	}()

	select {
	case err := <-done:
		i.logger.Info("Event ingestor stopped")

		return err
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), "waiting for relation watchers")
	}
}

// Synced reports whether relation has completed at least one re-fetch.
func (i *Ingestor) Synced(relation entity.Kind) bool {
	st, ok := i.states[relation]
	if !ok {
		return false
	}
	st.mu.Lock()
	defer st.mu.Unlock()

	return st.synced
}

// Refetch reloads relation from the remote store and replaces the mirrored rows.
// Concurrent calls for the same relation share one query.
func (i *Ingestor) Refetch(ctx context.Context, relation entity.Kind) error {
	st, ok := i.states[relation]
	if !ok {
		return errors.Errorf("unknown relation %q", relation)
	}

	_, err, _ := i.refetchG.Do(string(relation), func() (interface{}, error) {
		st.mu.Lock()
		st.buffering++
		st.mu.Unlock()

		records, fetchErr := i.reader.FetchRelation(ctx, relation)

		st.mu.Lock()
		st.buffering--
		if fetchErr == nil {
			i.store.ReplaceRelation(relation, records)
			st.synced = true
		}
		var fired []*service.ChangeEvent
		if st.buffering == 0 {
			fired = i.flushLocked(relation, st)
		}
		st.mu.Unlock()

		i.runHooks(ctx, fired)

		if fetchErr != nil {
			return nil, errors.Wrapf(fetchErr, "refetch %s", relation)
		}

		i.logger.Debug("Relation re-fetched",
			slog.String("relation", string(relation)),
			slog.Int("rows", len(records)),
		)

		return nil, nil
	})

	return err
}

// Handle applies one feed event to the mirror.
func (i *Ingestor) Handle(ctx context.Context, event *service.ChangeEvent) error {
	st, ok := i.states[event.Relation]
	if !ok {
		i.logger.Warn("Dropping event for unknown relation", slog.String("relation", string(event.Relation)))

		return nil
	}

	st.mu.Lock()
	if st.buffering > 0 {
		st.pending = append(st.pending, event)
		st.mu.Unlock()

		return nil
	}
	applied := i.apply(event)
	st.mu.Unlock()

	if applied {
		i.runHooks(ctx, []*service.ChangeEvent{event})
	}

	return nil
}

func (i *Ingestor) watch(ctx context.Context, relation entity.Kind) {
	logger := i.logger.With(slog.String("relation", string(relation)))

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = i.cfg.Backoff.Initial
	b.MaxInterval = i.cfg.Backoff.Max
	b.Multiplier = i.cfg.Backoff.Multiplier
	b.Reset()

	for {
		healthy, err := i.session(ctx, relation)
		if ctx.Err() != nil {
			return
		}
		if healthy {
			b.Reset()
		}

		wait := b.NextBackOff()
		logger.Warn("Relation stream interrupted, reconnecting",
			slog.Any("error", err),
			slog.Duration("retry_in", wait),
		)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()

			return
		case <-timer.C:
		}
	}
}

// session subscribes, repairs the gap with a re-fetch and then streams until the subscription breaks.
// It reports the stream healthy once it delivered an event or stayed up for the maximum backoff.
func (i *Ingestor) session(ctx context.Context, relation entity.Kind) (bool, error) {
	sessionCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	st := i.states[relation]
	st.mu.Lock()
	st.buffering++
	st.mu.Unlock()
	released := false
	release := func() {
		if released {
			return
		}
		released = true
		st.mu.Lock()
		st.buffering--
		var fired []*service.ChangeEvent
		if st.buffering == 0 {
			fired = i.flushLocked(relation, st)
		}
		st.mu.Unlock()
		i.runHooks(ctx, fired)
	}
	defer release()

	var delivered atomic.Bool
	handler := func(ctx context.Context, event *service.ChangeEvent) error {
		delivered.Store(true)

		return i.Handle(ctx, event)
	}

	streamErr := make(chan error, 1)
	go func() {
		streamErr <- i.feed.Subscribe(sessionCtx, relation, handler)
	}()

	if err := i.Refetch(sessionCtx, relation); err != nil {
		cancel()
		<-streamErr

		return false, err
	}
	release()
	streamedAt := time.Now()

	err := <-streamErr
	if err == nil && ctx.Err() == nil {
		err = ErrStreamClosed
	}

	return delivered.Load() || time.Since(streamedAt) >= i.cfg.Backoff.Max, err
}

// flushLocked applies buffered events in arrival order and returns the ones hooks must see.
func (i *Ingestor) flushLocked(relation entity.Kind, st *relationState) []*service.ChangeEvent {
	if len(st.pending) == 0 {
		return nil
	}

	var fired []*service.ChangeEvent
	for _, event := range st.pending {
		if i.apply(event) {
			fired = append(fired, event)
		}
	}
	i.logger.Debug("Applied buffered events",
		slog.String("relation", string(relation)),
		slog.Int("events", len(st.pending)),
	)
	st.pending = nil

	return fired
}

// apply mutates the mirror and reports whether hooks should observe the event.
func (i *Ingestor) apply(event *service.ChangeEvent) bool {
	switch event.Op {
	case service.OpInsert, service.OpUpdate:
		if event.Record == nil || event.Record.Kind() != event.Relation {
			i.logger.Warn("Dropping event without a matching row",
				slog.String("relation", string(event.Relation)),
				slog.String("id", event.ID.String()),
			)

			return false
		}
		outcome := i.store.Upsert(event.Record)
		if outcome == mirror.Stale {
			i.logger.Debug("Ignored stale event",
				slog.String("relation", string(event.Relation)),
				slog.String("id", event.ID.String()),
			)
		}
		if event.Op != service.OpInsert {
			return false
		}
		confirmed := i.store.Confirm(event.Relation, event.Record.RecordID())

		return outcome == mirror.Applied || confirmed
	case service.OpDelete:
		i.store.Remove(event.Relation, event.ID)

		return false
	default:
		i.logger.Warn("Dropping event with unknown operation", slog.String("op", string(event.Op)))

		return false
	}
}

func (i *Ingestor) runHooks(ctx context.Context, events []*service.ChangeEvent) {
	if len(events) == 0 {
		return
	}

	i.hooksMu.RLock()
	hooks := i.hooks
	i.hooksMu.RUnlock()

	for _, event := range events {
		for _, h := range hooks {
			h(ctx, event)
		}
	}
}
