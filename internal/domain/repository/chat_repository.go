// Package repository defines the interfaces for the remote store consumed by the mirror.
package repository

import (
	"context"

	"hotspot/internal/domain/entity"

	"github.com/google/uuid"
)

// ChatRepository defines the remote operations on matches and messages.
type ChatRepository interface {
	// FindMatchByID retrieves a match by id.
	FindMatchByID(ctx context.Context, id uuid.UUID) (*entity.Match, error)

	// CreateMessage appends a message to a match.
	CreateMessage(ctx context.Context, message *entity.Message) error

	// FindMessagesByMatch lists the messages of a match ordered by creation time.
	FindMessagesByMatch(ctx context.Context, matchID uuid.UUID) ([]*entity.Message, error)
}
