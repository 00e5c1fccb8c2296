package usecase

import (
	"context"

	"hotspot/internal/domain/entity"
	"hotspot/internal/window"

	"github.com/google/uuid"
)

// LivePostUsecase defines the live post use cases
type LivePostUsecase interface {
	// CreateLivePost publishes a post at placeID
	CreateLivePost(ctx context.Context, userID, placeID uuid.UUID, content string) (*entity.LivePost, error)

	// UpdateLivePost changes the content of a post owned by the user
	UpdateLivePost(ctx context.Context, userID, postID uuid.UUID, content string) (*entity.LivePost, error)

	// DeleteLivePost removes a post owned by the user. The mirror drops it before the remote store confirms.
	DeleteLivePost(ctx context.Context, userID, postID uuid.UUID) error

	// ActiveLivePosts lists the posts at placeID that are inside the visibility window, newest first
	ActiveLivePosts(ctx context.Context, placeID uuid.UUID) ([]*entity.LivePost, error)

	// WatchLivePosts streams the visible post ids of placeID whenever they change
	WatchLivePosts(placeID uuid.UUID) (<-chan window.Update, func())
}
