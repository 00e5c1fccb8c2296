// Package impl contains the implementation of the application's business logic.
package impl

import (
	"context"
	"time"

	"hotspot/internal/domain/entity"
	domainerrors "hotspot/internal/domain/errors"

	"github.com/pkg/errors"
)

// Clock returns the current time. Tests replace it to move time deterministically.
type Clock func() time.Time

func (c Clock) now() time.Time {
	if c == nil {
		return time.Now()
	}

	return c()
}

// RelationStatus reports whether the mirror holds a complete copy of a relation.
// It is satisfied by the ingestor.
type RelationStatus interface {
	Synced(relation entity.Kind) bool
}

// remoteFailure keeps AppErrors and cancellations as they are and marks everything else
// as a transient remote-store failure.
func remoteFailure(err error, details string) error {
	if err == nil {
		return nil
	}
	if _, ok := domainerrors.AsAppError(err); ok {
		return err
	}
	if errors.Is(err, context.Canceled) {
		return err
	}

	return domainerrors.NewRemoteError(err, details)
}
