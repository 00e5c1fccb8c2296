package impl

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"unicode/utf8"

	deliverycontext "hotspot/internal/delivery/context"
	"hotspot/internal/domain/entity"
	domainerrors "hotspot/internal/domain/errors"
	"hotspot/internal/domain/repository"
	"hotspot/internal/domain/service"
	"hotspot/internal/mirror"
	"hotspot/internal/usecase"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/fx"
)

const messagePreviewLength = 80

// chatService implements the ChatUsecase interface.
type chatService struct {
	repo     repository.ChatRepository
	store    *mirror.Store
	status   RelationStatus
	notifier service.NotificationService
	logger   *slog.Logger
}

// ChatServiceParams holds dependencies for ChatService, injected by Fx.
type ChatServiceParams struct {
	fx.In

	Repo     repository.ChatRepository
	Store    *mirror.Store
	Status   RelationStatus
	Notifier service.NotificationService
	Logger   *slog.Logger
}

// NewChatService is the constructor for chatService.
func NewChatService(params ChatServiceParams) usecase.ChatUsecase {
	return &chatService{
		repo:     params.Repo,
		store:    params.Store,
		status:   params.Status,
		notifier: params.Notifier,
		logger:   params.Logger.With(slog.String("component", "chat_service")),
	}
}

func (srv *chatService) log(ctx context.Context) *slog.Logger {
	return deliverycontext.GetLoggerOrDefault(ctx, srv.logger)
}

// ListMatches reads the matches of the user from the mirror.
func (srv *chatService) ListMatches(_ context.Context, userID uuid.UUID) ([]*entity.Match, error) {
	if userID == uuid.Nil {
		return nil, domainerrors.ErrNotAuthenticated
	}

	records := srv.store.ListByIndex(entity.KindMatch, entity.ByUser, userID)
	matches := make([]*entity.Match, 0, len(records))
	for _, record := range records {
		if match, ok := record.(*entity.Match); ok {
			matches = append(matches, match)
		}
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].CreatedAt.After(matches[j].CreatedAt) })

	return matches, nil
}

// Messages lists the conversation ordered by creation time, then id.
func (srv *chatService) Messages(ctx context.Context, userID, matchID uuid.UUID) ([]*entity.Message, error) {
	if _, err := srv.participantMatch(ctx, userID, matchID); err != nil {
		return nil, err
	}

	if srv.status != nil && !srv.status.Synced(entity.KindMessage) {
		messages, err := srv.repo.FindMessagesByMatch(ctx, matchID)
		if err != nil {
			return nil, remoteFailure(err, "list messages")
		}

		return messages, nil
	}

	records := srv.store.ListByIndex(entity.KindMessage, entity.ByMatch, matchID)
	messages := make([]*entity.Message, 0, len(records))
	for _, record := range records {
		if message, ok := record.(*entity.Message); ok {
			messages = append(messages, message)
		}
	}
	entity.SortMessages(messages)

	return messages, nil
}

// SendMessage stores the message remotely and mirrors it.
func (srv *chatService) SendMessage(ctx context.Context, userID, matchID uuid.UUID, content string) (*entity.Message, error) {
	if _, err := srv.participantMatch(ctx, userID, matchID); err != nil {
		return nil, err
	}

	content = strings.TrimSpace(content)
	if content == "" {
		return nil, domainerrors.ErrValidationFailed.WithDetails("content is required")
	}
	if utf8.RuneCountInString(content) > entity.MaxMessageLength {
		return nil, domainerrors.ErrValidationFailed.WithDetails("content is too long")
	}

	message := &entity.Message{ID: uuid.New(), MatchID: matchID, SenderID: userID, Content: content}
	if err := srv.repo.CreateMessage(ctx, message); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domainerrors.ErrMatchNotFound
		}

		return nil, remoteFailure(err, "send message")
	}
	srv.store.UpsertLocal(message)

	return message, nil
}

// NotifyInsert sends a topic notification for matches and messages that arrived on the change feed.
// Notification failures are logged and never interrupt ingestion.
func (srv *chatService) NotifyInsert(ctx context.Context, event *service.ChangeEvent) {
	switch record := event.Record.(type) {
	case *entity.Match:
		for _, userID := range []uuid.UUID{record.UserA, record.UserB} {
			srv.notify(ctx, userID, "New match", "You have a new match", map[string]string{
				"type":    "match",
				"matchId": record.ID.String(),
			})
		}
	case *entity.Message:
		match, ok := srv.mirroredMatch(record.MatchID)
		if !ok {
			srv.log(ctx).Debug("Message for unknown match, skipping notification", slog.Any("matchID", record.MatchID))

			return
		}
		srv.notify(ctx, match.Partner(record.SenderID), "New message", preview(record.Content), map[string]string{
			"type":      "message",
			"matchId":   record.MatchID.String(),
			"messageId": record.ID.String(),
		})
	}
}

func (srv *chatService) notify(ctx context.Context, userID uuid.UUID, title, body string, data map[string]string) {
	if err := srv.notifier.NotifyUser(ctx, userID, title, body, data); err != nil {
		srv.log(ctx).Warn("Failed to send notification", slog.Any("userID", userID), slog.Any("error", err))
	}
}

func (srv *chatService) participantMatch(ctx context.Context, userID, matchID uuid.UUID) (*entity.Match, error) {
	if userID == uuid.Nil {
		return nil, domainerrors.ErrNotAuthenticated
	}

	match, ok := srv.mirroredMatch(matchID)
	if !ok {
		found, err := srv.repo.FindMatchByID(ctx, matchID)
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domainerrors.ErrMatchNotFound
		}
		if err != nil {
			return nil, remoteFailure(err, "find match")
		}
		match = found
	}

	if !match.Involves(userID) {
		return nil, domainerrors.ErrForbidden.WithDetails("not a participant of this match")
	}

	return match, nil
}

func (srv *chatService) mirroredMatch(matchID uuid.UUID) (*entity.Match, bool) {
	record, ok := srv.store.Get(entity.KindMatch, matchID)
	if !ok {
		return nil, false
	}
	match, ok := record.(*entity.Match)

	return match, ok
}

func preview(content string) string {
	if utf8.RuneCountInString(content) <= messagePreviewLength {
		return content
	}

	return string([]rune(content)[:messagePreviewLength]) + "…"
}
