package memory

import (
	"context"

	"hotspot/internal/domain/entity"
	"hotspot/internal/domain/repository"
	"hotspot/internal/domain/service"

	"github.com/google/uuid"
)

type chatRepository struct {
	binding
}

// NewChatRepository returns the matches and messages relations of s.
func NewChatRepository(s *Store) repository.ChatRepository {
	return &chatRepository{binding{s: s}}
}

func (r *chatRepository) FindMatchByID(ctx context.Context, id uuid.UUID) (*entity.Match, error) {
	var found entity.Match
	err := r.run(ctx, func(sc *scope) error {
		row, ok := r.s.matches[id]
		if !ok {
			return repository.ErrNotFound
		}
		found = row

		return nil
	})
	if err != nil {
		return nil, err
	}

	return &found, nil
}

func (r *chatRepository) CreateMessage(ctx context.Context, message *entity.Message) error {
	return r.run(ctx, func(sc *scope) error {
		s := r.s
		if _, ok := s.matches[message.MatchID]; !ok {
			return repository.ErrNotFound
		}
		if message.ID == uuid.Nil {
			message.ID = uuid.New()
		}
		if _, ok := s.messages[message.ID]; ok {
			return repository.ErrDuplicate
		}
		now := s.tick()
		if message.CreatedAt.IsZero() {
			message.CreatedAt = now
		}

		row := *message
		s.messages[row.ID] = row
		sc.record(func() { delete(s.messages, row.ID) }, changeEvent(service.OpInsert, &row))

		return nil
	})
}

func (r *chatRepository) FindMessagesByMatch(ctx context.Context, matchID uuid.UUID) ([]*entity.Message, error) {
	var out []*entity.Message
	err := r.run(ctx, func(sc *scope) error {
		for _, row := range r.s.messages {
			if row.MatchID == matchID {
				out = append(out, &row)
			}
		}

		return nil
	})
	entity.SortMessages(out)

	return out, err
}
