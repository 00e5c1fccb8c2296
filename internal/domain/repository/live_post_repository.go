// Package repository defines the interfaces for the remote store consumed by the mirror.
package repository

import (
	"context"
	"time"

	"hotspot/internal/domain/entity"

	"github.com/google/uuid"
)

// LivePostRepository defines the remote operations on the live_posts relation.
type LivePostRepository interface {
	// CreateLivePost inserts a post.
	CreateLivePost(ctx context.Context, post *entity.LivePost) error

	// UpdateLivePostContent changes the content of a post and returns the updated row.
	UpdateLivePostContent(ctx context.Context, id uuid.UUID, content string) (*entity.LivePost, error)

	// DeleteLivePost removes a post; ErrNotFound when it is already gone.
	DeleteLivePost(ctx context.Context, id uuid.UUID) error

	// FindLivePostByID retrieves a post by id.
	FindLivePostByID(ctx context.Context, id uuid.UUID) (*entity.LivePost, error)

	// FindLivePostsSince lists posts created after since.
	FindLivePostsSince(ctx context.Context, since time.Time) ([]*entity.LivePost, error)
}
