// Package entity contains the core business objects of the project.
package entity

import (
	"time"

	"github.com/google/uuid"
)

// DefaultMaxGoingIntentions is how many places a user may intend to go to at once.
const DefaultMaxGoingIntentions = 3

// GoingIntention records that a user intends to go to a place.
type GoingIntention struct {
	ID        uuid.UUID `json:"id"`         // The Global Unique Identifier (GUID) for the intention.
	UserID    uuid.UUID `json:"user_id"`    // The user who intends to go.
	PlaceID   uuid.UUID `json:"place_id"`   // The target place.
	CreatedAt time.Time `json:"created_at"` // When the intention was declared, used for queue ranking.
	UpdatedAt time.Time `json:"updated_at"` // Row version.
}

func (g *GoingIntention) Kind() Kind          { return KindGoingIntention }
func (g *GoingIntention) RecordID() uuid.UUID { return g.ID }
func (g *GoingIntention) Version() time.Time  { return g.UpdatedAt }

func (g *GoingIntention) Indexes() []IndexValue {
	return []IndexValue{{Key: ByPlace, Value: g.PlaceID}, {Key: ByUser, Value: g.UserID}}
}

func (g *GoingIntention) Owner() uuid.UUID    { return g.UserID }
func (g *GoingIntention) Created() time.Time  { return g.CreatedAt }
func (g *GoingIntention) Location() uuid.UUID { return g.PlaceID }
