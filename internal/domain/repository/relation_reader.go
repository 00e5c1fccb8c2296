// Package repository defines the interfaces for the remote store consumed by the mirror.
package repository

import (
	"context"

	"hotspot/internal/domain/entity"
)

// RelationReader performs the full re-fetch of a mirrored relation.
type RelationReader interface {
	// FetchRelation returns every row of the relation that the mirror should hold.
	FetchRelation(ctx context.Context, kind entity.Kind) ([]entity.Record, error)
}
