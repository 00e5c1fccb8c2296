package usecase

import (
	"context"

	"hotspot/internal/domain/entity"
	"hotspot/internal/domain/service"

	"github.com/google/uuid"
)

// ChatUsecase defines the match and message use cases
type ChatUsecase interface {
	// ListMatches lists the matches of the user, newest first
	ListMatches(ctx context.Context, userID uuid.UUID) ([]*entity.Match, error)

	// Messages lists the messages of a match the user takes part in
	Messages(ctx context.Context, userID, matchID uuid.UUID) ([]*entity.Message, error)

	// SendMessage appends a message to a match the user takes part in
	SendMessage(ctx context.Context, userID, matchID uuid.UUID, content string) (*entity.Message, error)

	// NotifyInsert notifies the participants of a match or message that arrived on the change feed
	NotifyInsert(ctx context.Context, event *service.ChangeEvent)
}
