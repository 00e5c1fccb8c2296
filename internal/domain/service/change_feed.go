// Package service declares the external collaborators used by the use cases.
package service

import (
	"context"
	"time"

	"hotspot/internal/domain/entity"

	"github.com/google/uuid"
)

// ChangeOp is the kind of row change carried by a ChangeEvent.
type ChangeOp string

const (
	OpInsert ChangeOp = "INSERT"
	OpUpdate ChangeOp = "UPDATE"
	OpDelete ChangeOp = "DELETE"
)

// ChangeEvent is a decoded row change of one relation.
// Record is nil for deletes; ID is always set.
type ChangeEvent struct {
	Op         ChangeOp
	Relation   entity.Kind
	ID         uuid.UUID
	Record     entity.Record
	ReceivedAt time.Time
}

// ChangeHandler consumes one event. Returning an error asks the feed to redeliver it.
type ChangeHandler func(ctx context.Context, event *ChangeEvent) error

// ChangeFeed is the push-event bus of the remote store.
type ChangeFeed interface {
	// Subscribe delivers the events of one relation to handler until ctx is done
	// or the stream breaks. Events with the same ID are delivered in order.
	// It returns nil only when ctx is done.
	Subscribe(ctx context.Context, relation entity.Kind, handler ChangeHandler) error

	// Close releases any resources held by the feed.
	Close() error
}

// ChangePublisher forwards committed row changes into the change feed.
type ChangePublisher interface {
	PublishChange(ctx context.Context, event *ChangeEvent) error
}
