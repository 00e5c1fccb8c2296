// Package entity contains the core business objects of the project.
package entity

import (
	"time"

	"github.com/google/uuid"
)

// Match is a symmetric pairing of two users created upstream.
type Match struct {
	ID        uuid.UUID `json:"id"`         // The Global Unique Identifier (GUID) for the match.
	UserA     uuid.UUID `json:"user_a"`     // One side of the pair.
	UserB     uuid.UUID `json:"user_b"`     // The other side of the pair.
	CreatedAt time.Time `json:"created_at"` // When the match was created.
}

func (m *Match) Kind() Kind          { return KindMatch }
func (m *Match) RecordID() uuid.UUID { return m.ID }
func (m *Match) Version() time.Time  { return m.CreatedAt }

func (m *Match) Indexes() []IndexValue {
	return []IndexValue{{Key: ByUser, Value: m.UserA}, {Key: ByUser, Value: m.UserB}}
}

// Involves reports whether userID is one side of the match.
func (m *Match) Involves(userID uuid.UUID) bool {
	return m.UserA == userID || m.UserB == userID
}

// Partner returns the other side of the match for userID.
func (m *Match) Partner(userID uuid.UUID) uuid.UUID {
	if m.UserA == userID {
		return m.UserB
	}

	return m.UserA
}
