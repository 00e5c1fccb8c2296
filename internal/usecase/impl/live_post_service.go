package impl

import (
	"context"
	"log/slog"
	"strings"
	"unicode/utf8"

	deliverycontext "hotspot/internal/delivery/context"
	"hotspot/internal/domain/entity"
	domainerrors "hotspot/internal/domain/errors"
	"hotspot/internal/domain/repository"
	"hotspot/internal/mirror"
	"hotspot/internal/usecase"
	"hotspot/internal/window"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/fx"
)

// livePostService implements the LivePostUsecase interface.
type livePostService struct {
	repo    repository.LivePostRepository
	store   *mirror.Store
	gateway *mirror.Gateway
	window  *window.Window
	logger  *slog.Logger
}

// LivePostServiceParams holds dependencies for LivePostService, injected by Fx.
type LivePostServiceParams struct {
	fx.In

	Repo    repository.LivePostRepository
	Store   *mirror.Store
	Gateway *mirror.Gateway
	Window  *window.Window
	Logger  *slog.Logger
}

// NewLivePostService is the constructor for livePostService.
func NewLivePostService(params LivePostServiceParams) usecase.LivePostUsecase {
	return &livePostService{
		repo:    params.Repo,
		store:   params.Store,
		gateway: params.Gateway,
		window:  params.Window,
		logger:  params.Logger.With(slog.String("component", "live_post_service")),
	}
}

func (srv *livePostService) log(ctx context.Context) *slog.Logger {
	return deliverycontext.GetLoggerOrDefault(ctx, srv.logger)
}

// CreateLivePost inserts the post remotely and mirrors the stored row.
func (srv *livePostService) CreateLivePost(ctx context.Context, userID, placeID uuid.UUID, content string) (*entity.LivePost, error) {
	if userID == uuid.Nil {
		return nil, domainerrors.ErrNotAuthenticated
	}
	if placeID == uuid.Nil {
		return nil, domainerrors.ErrValidationFailed.WithDetails("placeId is required")
	}
	content, err := validateLivePostContent(content)
	if err != nil {
		return nil, err
	}

	post := &entity.LivePost{ID: uuid.New(), UserID: userID, PlaceID: placeID, Content: content}
	if err := srv.repo.CreateLivePost(ctx, post); err != nil {
		srv.log(ctx).Error("Failed to create live post", slog.Any("userID", userID), slog.Any("error", err))

		return nil, remoteFailure(err, "create live post")
	}
	srv.store.UpsertLocal(post)

	return post, nil
}

// UpdateLivePost shows the new content immediately and keeps the remote row as the final version.
// CreatedAt never changes, so the visibility window stays anchored at creation.
func (srv *livePostService) UpdateLivePost(ctx context.Context, userID, postID uuid.UUID, content string) (*entity.LivePost, error) {
	if userID == uuid.Nil {
		return nil, domainerrors.ErrNotAuthenticated
	}
	content, err := validateLivePostContent(content)
	if err != nil {
		return nil, err
	}

	current, err := srv.findOwned(ctx, userID, postID)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, domainerrors.ErrLivePostNotFound
	}

	optimistic := *current
	optimistic.Content = content

	var stored *entity.LivePost
	err = srv.gateway.ApplyOptimistic(ctx, entity.KindLivePost, mirror.Mutation{Upserts: []entity.Record{&optimistic}}, func(ctx context.Context) error {
		updated, err := srv.repo.UpdateLivePostContent(ctx, postID, content)
		if err != nil {
			return err
		}
		stored = updated

		return nil
	})
	if err != nil {
		return nil, remoteFailure(err, "update live post")
	}
	srv.store.Upsert(stored)

	return stored, nil
}

// DeleteLivePost removes the post from the mirror before the remote delete; a failed delete restores it.
// A post that is already gone counts as deleted.
func (srv *livePostService) DeleteLivePost(ctx context.Context, userID, postID uuid.UUID) error {
	if userID == uuid.Nil {
		return domainerrors.ErrNotAuthenticated
	}

	current, err := srv.findOwned(ctx, userID, postID)
	if err != nil {
		return err
	}
	if current == nil {
		return nil
	}

	err = srv.gateway.ApplyOptimistic(ctx, entity.KindLivePost, mirror.Mutation{Removes: []uuid.UUID{postID}}, func(ctx context.Context) error {
		return srv.repo.DeleteLivePost(ctx, postID)
	})
	if err != nil {
		srv.log(ctx).Warn("Live post delete rolled back", slog.Any("postID", postID), slog.Any("error", err))

		return remoteFailure(err, "delete live post")
	}

	return nil
}

// ActiveLivePosts reads the visible posts of the place from the window.
func (srv *livePostService) ActiveLivePosts(_ context.Context, placeID uuid.UUID) ([]*entity.LivePost, error) {
	return srv.window.ActivePosts(placeID), nil
}

// WatchLivePosts subscribes to visibility changes of the place.
func (srv *livePostService) WatchLivePosts(placeID uuid.UUID) (<-chan window.Update, func()) {
	return srv.window.Subscribe(placeID)
}

// findOwned returns the post if it exists and belongs to userID; nil when it is gone.
func (srv *livePostService) findOwned(ctx context.Context, userID, postID uuid.UUID) (*entity.LivePost, error) {
	var post *entity.LivePost
	if record, ok := srv.store.Get(entity.KindLivePost, postID); ok {
		post, _ = record.(*entity.LivePost)
	}
	if post == nil {
		found, err := srv.repo.FindLivePostByID(ctx, postID)
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, remoteFailure(err, "find live post")
		}
		post = found
	}

	if post.UserID != userID {
		return nil, domainerrors.ErrForbidden.WithDetails("live post belongs to another user")
	}

	return post, nil
}

func validateLivePostContent(content string) (string, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return "", domainerrors.ErrValidationFailed.WithDetails("content is required")
	}
	if utf8.RuneCountInString(content) > entity.MaxLivePostLength {
		return "", domainerrors.ErrValidationFailed.WithDetails("content is too long")
	}

	return content, nil
}
