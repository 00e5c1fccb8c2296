package mirror

import (
	"context"
	"log/slog"

	"hotspot/internal/domain/entity"
	domainerrors "hotspot/internal/domain/errors"
	"hotspot/internal/domain/repository"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Mutation is a set of local changes to one relation.
type Mutation struct {
	Upserts []entity.Record
	Removes []uuid.UUID
}

// RemoteCall performs the remote half of an optimistic mutation.
type RemoteCall func(ctx context.Context) error

// Refetcher reloads a whole relation from the remote store into the mirror.
type Refetcher func(ctx context.Context, kind entity.Kind) error

// Gateway applies mutations to the mirror before the remote store confirms them
// and puts the previous rows back when the remote call fails.
type Gateway struct {
	store   *Store
	refetch Refetcher
	logger  *slog.Logger
}

// GatewayOption configures a Gateway.
type GatewayOption func(*Gateway)

// WithRefetcher sets how the gateway reconciles the mirror after a stale-state conflict.
func WithRefetcher(refetch Refetcher) GatewayOption {
	return func(g *Gateway) {
		g.refetch = refetch
	}
}

// NewGateway creates a Gateway over store.
func NewGateway(store *Store, logger *slog.Logger, opts ...GatewayOption) *Gateway {
	g := &Gateway{
		store:  store,
		logger: logger.With(slog.String("component", "optimistic_gateway")),
	}
	for _, opt := range opts {
		opt(g)
	}

	return g
}

type appliedWrite struct {
	id       uuid.UUID
	snapshot entity.Record
	written  entity.Record
}

// ApplyOptimistic writes mutation to the mirror, then runs remote.
//
// On success the local state stays; the confirming push event is a no-op. On failure every
// write is reverted to its exact snapshot, unless a newer write has replaced it meanwhile,
// and the failure is returned. A remote ErrNotFound is a stale-state conflict: the mirror is
// reconciled and removals count as done, while updates surface ErrStaleState.
func (g *Gateway) ApplyOptimistic(ctx context.Context, kind entity.Kind, mutation Mutation, remote RemoteCall) error {
	applied := make([]appliedWrite, 0, len(mutation.Upserts)+len(mutation.Removes))
	for _, record := range mutation.Upserts {
		if record.Kind() != kind {
			g.rollback(kind, applied)

			return errors.Errorf("optimistic upsert of %s into %s", record.Kind(), kind)
		}
		previous := g.store.Swap(kind, record.RecordID(), record)
		applied = append(applied, appliedWrite{id: record.RecordID(), snapshot: previous, written: record})
	}
	for _, id := range mutation.Removes {
		previous := g.store.Swap(kind, id, nil)
		if previous == nil {
			continue
		}
		applied = append(applied, appliedWrite{id: id, snapshot: previous})
	}

	err := remote(ctx)
	if err == nil {
		return nil
	}

	if errors.Is(err, repository.ErrNotFound) {
		return g.reconcile(ctx, kind, mutation, applied, err)
	}

	g.rollback(kind, applied)

	return err
}

func (g *Gateway) rollback(kind entity.Kind, applied []appliedWrite) {
	for i := len(applied) - 1; i >= 0; i-- {
		write := applied[i]
		if !g.store.CompareAndRestore(kind, write.id, write.written, write.snapshot) {
			g.logger.Warn("Skipped rollback, row changed since optimistic write",
				slog.String("relation", string(kind)),
				slog.String("id", write.id.String()),
			)
		}
	}
}

func (g *Gateway) reconcile(ctx context.Context, kind entity.Kind, mutation Mutation, applied []appliedWrite, cause error) error {
	g.logger.Info("Remote row already gone, reconciling mirror",
		slog.String("relation", string(kind)),
		slog.Any("error", cause),
	)

	if g.refetch != nil {
		if err := g.refetch(ctx, kind); err != nil {
			g.rollback(kind, applied)

			return errors.Wrap(err, "failed to reconcile mirror after stale state")
		}
	} else {
		for _, write := range applied {
			if write.written != nil {
				g.store.CompareAndRestore(kind, write.id, write.written, nil)
			}
		}
	}

	for _, id := range mutation.Removes {
		if _, ok := g.store.Get(kind, id); ok {
			return domainerrors.ErrStaleState.WithDetails("row reappeared after remote delete")
		}
	}
	if len(mutation.Upserts) > 0 {
		return domainerrors.ErrStaleState.WithDetails(cause.Error())
	}

	return nil
}
