// Package entity contains the core business objects of the project.
package entity

import "github.com/google/uuid"

// Place is a venue. It is looked up on demand and not mirrored.
type Place struct {
	ID      uuid.UUID `json:"id"`       // The Global Unique Identifier (GUID) for the place.
	OwnerID uuid.UUID `json:"owner_id"` // The user operating the place.
	Name    string    `json:"name"`     // Display name.
}

// IsOperatedBy reports whether userID operates the place.
func (p *Place) IsOperatedBy(userID uuid.UUID) bool {
	return p.OwnerID != uuid.Nil && p.OwnerID == userID
}
