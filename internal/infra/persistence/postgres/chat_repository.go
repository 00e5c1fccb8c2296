package postgres

import (
	"context"

	"hotspot/internal/domain/entity"
	"hotspot/internal/domain/repository"
	"hotspot/internal/infra/persistence/model"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// chatRepository implements the repository.ChatRepository interface.
type chatRepository struct {
	db *gorm.DB
}

// NewChatRepository is the constructor for chatRepository.
func NewChatRepository(db *gorm.DB) repository.ChatRepository {
	return &chatRepository{db: db}
}

// FindMatchByID retrieves a match by its unique ID.
func (repo *chatRepository) FindMatchByID(ctx context.Context, id uuid.UUID) (*entity.Match, error) {
	var matchM model.MatchModel

	if err := repo.db.WithContext(ctx).
		Where("id = ?", id).
		First(&matchM).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrNotFound
		}

		return nil, errors.Wrap(err, "failed to find match by ID")
	}

	return toMatchDomain(&matchM), nil
}

// CreateMessage appends a message to an existing match.
func (repo *chatRepository) CreateMessage(ctx context.Context, message *entity.Message) error {
	if _, err := repo.FindMatchByID(ctx, message.MatchID); err != nil {
		return err
	}

	if message.ID == uuid.Nil {
		message.ID = uuid.New()
	}
	messageM := &model.MessageModel{
		ID:        message.ID,
		MatchID:   message.MatchID,
		SenderID:  message.SenderID,
		Content:   message.Content,
		CreatedAt: message.CreatedAt,
	}

	if err := repo.db.WithContext(ctx).Create(messageM).Error; err != nil {
		if isUniqueConstraintViolation(err) {
			return repository.ErrDuplicate
		}

		return errors.Wrap(err, "failed to create message")
	}

	message.CreatedAt = messageM.CreatedAt

	return nil
}

// FindMessagesByMatch lists the messages of a match ordered by creation time, then id.
func (repo *chatRepository) FindMessagesByMatch(ctx context.Context, matchID uuid.UUID) ([]*entity.Message, error) {
	var messageModels []*model.MessageModel

	if err := repo.db.WithContext(ctx).
		Where("match_id = ?", matchID).
		Find(&messageModels).Error; err != nil {
		return nil, errors.Wrap(err, "failed to find messages by match")
	}

	messages := make([]*entity.Message, 0, len(messageModels))
	for _, messageM := range messageModels {
		messages = append(messages, toMessageDomain(messageM))
	}
	entity.SortMessages(messages)

	return messages, nil
}

func toMatchDomain(data *model.MatchModel) *entity.Match {
	if data == nil {
		return nil
	}

	return &entity.Match{
		ID:        data.ID,
		UserA:     data.UserA,
		UserB:     data.UserB,
		CreatedAt: data.CreatedAt.UTC(),
	}
}

func toMessageDomain(data *model.MessageModel) *entity.Message {
	if data == nil {
		return nil
	}

	return &entity.Message{
		ID:        data.ID,
		MatchID:   data.MatchID,
		SenderID:  data.SenderID,
		Content:   data.Content,
		CreatedAt: data.CreatedAt.UTC(),
	}
}
