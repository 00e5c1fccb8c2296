// Package entity contains the core business objects of the project.
package entity

import (
	"time"

	"github.com/google/uuid"
)

// CheckIn records that a user is currently present at a place.
// A user holds at most one check-in at any instant.
type CheckIn struct {
	ID        uuid.UUID `json:"id"`         // The Global Unique Identifier (GUID) for the check-in.
	UserID    uuid.UUID `json:"user_id"`    // The user who checked in.
	PlaceID   uuid.UUID `json:"place_id"`   // The place the user checked in to.
	CreatedAt time.Time `json:"created_at"` // Arrival time, used for queue ranking.
	UpdatedAt time.Time `json:"updated_at"` // Row version.
}

func (c *CheckIn) Kind() Kind          { return KindCheckIn }
func (c *CheckIn) RecordID() uuid.UUID { return c.ID }
func (c *CheckIn) Version() time.Time  { return c.UpdatedAt }

func (c *CheckIn) Indexes() []IndexValue {
	return []IndexValue{{Key: ByPlace, Value: c.PlaceID}, {Key: ByUser, Value: c.UserID}}
}

func (c *CheckIn) Owner() uuid.UUID    { return c.UserID }
func (c *CheckIn) Created() time.Time  { return c.CreatedAt }
func (c *CheckIn) Location() uuid.UUID { return c.PlaceID }
