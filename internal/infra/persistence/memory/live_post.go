package memory

import (
	"context"
	"sort"
	"time"

	"hotspot/internal/domain/entity"
	"hotspot/internal/domain/repository"
	"hotspot/internal/domain/service"

	"github.com/google/uuid"
)

type livePostRepository struct {
	binding
}

// NewLivePostRepository returns the live_posts relation of s.
func NewLivePostRepository(s *Store) repository.LivePostRepository {
	return &livePostRepository{binding{s: s}}
}

func (r *livePostRepository) CreateLivePost(ctx context.Context, post *entity.LivePost) error {
	return r.run(ctx, func(sc *scope) error {
		s := r.s
		if post.ID == uuid.Nil {
			post.ID = uuid.New()
		}
		if _, ok := s.posts[post.ID]; ok {
			return repository.ErrDuplicate
		}
		now := s.tick()
		if post.CreatedAt.IsZero() {
			post.CreatedAt = now
		}
		post.UpdatedAt = now

		row := *post
		s.posts[row.ID] = row
		sc.record(func() { delete(s.posts, row.ID) }, changeEvent(service.OpInsert, &row))

		return nil
	})
}

func (r *livePostRepository) UpdateLivePostContent(ctx context.Context, id uuid.UUID, content string) (*entity.LivePost, error) {
	var updated entity.LivePost
	err := r.run(ctx, func(sc *scope) error {
		s := r.s
		previous, ok := s.posts[id]
		if !ok {
			return repository.ErrNotFound
		}
		updated = previous
		updated.Content = content
		updated.UpdatedAt = s.tick()

		row := updated
		s.posts[id] = row
		sc.record(func() { s.posts[id] = previous }, changeEvent(service.OpUpdate, &row))

		return nil
	})
	if err != nil {
		return nil, err
	}

	return &updated, nil
}

func (r *livePostRepository) DeleteLivePost(ctx context.Context, id uuid.UUID) error {
	return r.run(ctx, func(sc *scope) error {
		s := r.s
		previous, ok := s.posts[id]
		if !ok {
			return repository.ErrNotFound
		}
		delete(s.posts, id)
		sc.record(func() { s.posts[id] = previous }, deleteEvent(entity.KindLivePost, id))

		return nil
	})
}

func (r *livePostRepository) FindLivePostByID(ctx context.Context, id uuid.UUID) (*entity.LivePost, error) {
	var found entity.LivePost
	err := r.run(ctx, func(sc *scope) error {
		row, ok := r.s.posts[id]
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

func (r *livePostRepository) FindLivePostsSince(ctx context.Context, since time.Time) ([]*entity.LivePost, error) {
	var out []*entity.LivePost
	err := r.run(ctx, func(sc *scope) error {
		for _, row := range r.s.posts {
			if row.CreatedAt.After(since) {
				out = append(out, &row)
			}
		}

		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })

	return out, err
}
