// Package entity contains the core business objects of the project.
package entity

import (
	"time"

	"github.com/google/uuid"
)

// DefaultLivePostTTL is how long a live post stays visible after creation.
const DefaultLivePostTTL = time.Hour

// LivePost is an ephemeral post bound to a place.
// Visibility is derived from CreatedAt and is never stored.
type LivePost struct {
	ID        uuid.UUID `json:"id"`         // The Global Unique Identifier (GUID) for the post.
	UserID    uuid.UUID `json:"user_id"`    // The author.
	PlaceID   uuid.UUID `json:"place_id"`   // The place the post is about.
	Content   string    `json:"content"`    // Post body.
	CreatedAt time.Time `json:"created_at"` // Anchor of the visibility window.
	UpdatedAt time.Time `json:"updated_at"` // Row version.
}

func (p *LivePost) Kind() Kind          { return KindLivePost }
func (p *LivePost) RecordID() uuid.UUID { return p.ID }
func (p *LivePost) Version() time.Time  { return p.UpdatedAt }
func (p *LivePost) Created() time.Time  { return p.CreatedAt }

func (p *LivePost) Indexes() []IndexValue {
	return []IndexValue{{Key: ByPlace, Value: p.PlaceID}, {Key: ByUser, Value: p.UserID}}
}

// VisibleAt reports whether the post is inside a window of length ttl ending at now.
func (p *LivePost) VisibleAt(now time.Time, ttl time.Duration) bool {
	return now.Sub(p.CreatedAt) < ttl
}

// MaxLivePostLength bounds the content of a live post.
const MaxLivePostLength = 500
