// Package entity contains the core business objects of the project.
package entity

import (
	"time"

	"github.com/google/uuid"
)

// Queued is a record that takes a position in a per-place arrival queue.
type Queued interface {
	Record
	Owner() uuid.UUID
	Created() time.Time
	Location() uuid.UUID
}

var (
	_ Queued = (*CheckIn)(nil)
	_ Queued = (*GoingIntention)(nil)
)
