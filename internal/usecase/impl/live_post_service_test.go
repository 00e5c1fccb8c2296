package impl

import (
	"context"
	"strings"
	"testing"
	"time"

	"hotspot/internal/domain/entity"
	domainerrors "hotspot/internal/domain/errors"
	"hotspot/internal/domain/repository"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flakyLivePosts fails deletes and updates while keeping the rest of the remote store.
type flakyLivePosts struct {
	repository.LivePostRepository
	err error
}

func (r flakyLivePosts) DeleteLivePost(context.Context, uuid.UUID) error {
	return r.err
}

func (r flakyLivePosts) UpdateLivePostContent(context.Context, uuid.UUID, string) (*entity.LivePost, error) {
	return nil, r.err
}

func TestLivePostService_VisibilityWindow(t *testing.T) {
	f := newFixture(t)
	srv := f.livePosts()
	ctx := context.Background()
	placeID := uuid.New()

	post, err := srv.CreateLivePost(ctx, uuid.New(), placeID, "  live music now  ")
	require.NoError(t, err)
	assert.Equal(t, "live music now", post.Content)

	f.clock.Advance(59 * time.Minute)
	visible, err := srv.ActiveLivePosts(ctx, placeID)
	require.NoError(t, err)
	require.Len(t, visible, 1)
	assert.Equal(t, post.ID, visible[0].ID)

	f.clock.Advance(time.Minute)
	visible, err = srv.ActiveLivePosts(ctx, placeID)
	require.NoError(t, err)
	assert.Empty(t, visible)

	_, ok := f.store.Get(entity.KindLivePost, post.ID)
	assert.True(t, ok, "expired posts stay in the mirror")
}

func TestLivePostService_CreateValidation(t *testing.T) {
	f := newFixture(t)
	srv := f.livePosts()
	ctx := context.Background()

	tests := []struct {
		name    string
		userID  uuid.UUID
		placeID uuid.UUID
		content string
		wantErr error
	}{
		{name: "anonymous", userID: uuid.Nil, placeID: uuid.New(), content: "hi", wantErr: domainerrors.ErrNotAuthenticated},
		{name: "no place", userID: uuid.New(), placeID: uuid.Nil, content: "hi", wantErr: domainerrors.ErrValidationFailed},
		{name: "blank", userID: uuid.New(), placeID: uuid.New(), content: "   ", wantErr: domainerrors.ErrValidationFailed},
		{name: "too long", userID: uuid.New(), placeID: uuid.New(), content: strings.Repeat("x", entity.MaxLivePostLength+1), wantErr: domainerrors.ErrValidationFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := srv.CreateLivePost(ctx, tt.userID, tt.placeID, tt.content)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
	assert.Zero(t, f.store.Count(entity.KindLivePost))
}

func TestLivePostService_DeleteRollsBackOnFailure(t *testing.T) {
	f := newFixture(t)
	srv := f.livePosts()
	ctx := context.Background()
	userID, placeID := uuid.New(), uuid.New()

	post, err := srv.CreateLivePost(ctx, userID, placeID, "happy hour")
	require.NoError(t, err)
	before, err := srv.ActiveLivePosts(ctx, placeID)
	require.NoError(t, err)

	srv.repo = flakyLivePosts{LivePostRepository: srv.repo, err: errors.New("network down")}
	err = srv.DeleteLivePost(ctx, userID, post.ID)
	require.Error(t, err)
	assert.True(t, domainerrors.IsRetryable(err))

	after, err := srv.ActiveLivePosts(ctx, placeID)
	require.NoError(t, err)
	require.Len(t, after, 1)
	assert.Same(t, before[0], after[0])
}

func TestLivePostService_Delete(t *testing.T) {
	f := newFixture(t)
	srv := f.livePosts()
	ctx := context.Background()
	owner, placeID := uuid.New(), uuid.New()

	post, err := srv.CreateLivePost(ctx, owner, placeID, "open mic")
	require.NoError(t, err)

	err = srv.DeleteLivePost(ctx, uuid.New(), post.ID)
	assert.ErrorIs(t, err, domainerrors.ErrForbidden)

	require.NoError(t, srv.DeleteLivePost(ctx, owner, post.ID))
	visible, err := srv.ActiveLivePosts(ctx, placeID)
	require.NoError(t, err)
	assert.Empty(t, visible)

	require.NoError(t, srv.DeleteLivePost(ctx, owner, post.ID), "deleting a gone post succeeds")
}

func TestLivePostService_UpdateKeepsCreatedAt(t *testing.T) {
	f := newFixture(t)
	srv := f.livePosts()
	ctx := context.Background()
	owner, placeID := uuid.New(), uuid.New()

	post, err := srv.CreateLivePost(ctx, owner, placeID, "queue is short")
	require.NoError(t, err)
	f.clock.Advance(10 * time.Minute)

	updated, err := srv.UpdateLivePost(ctx, owner, post.ID, "queue is long")
	require.NoError(t, err)
	assert.Equal(t, "queue is long", updated.Content)
	assert.True(t, updated.CreatedAt.Equal(post.CreatedAt))
	assert.True(t, updated.UpdatedAt.After(post.UpdatedAt))

	mirrored, ok := f.store.Get(entity.KindLivePost, post.ID)
	require.True(t, ok)
	assert.Equal(t, "queue is long", mirrored.(*entity.LivePost).Content)

	_, err = srv.UpdateLivePost(ctx, uuid.New(), post.ID, "hijack")
	assert.ErrorIs(t, err, domainerrors.ErrForbidden)

	_, err = srv.UpdateLivePost(ctx, owner, uuid.New(), "missing")
	assert.ErrorIs(t, err, domainerrors.ErrLivePostNotFound)
}

func TestLivePostService_UpdateFailureRestoresContent(t *testing.T) {
	f := newFixture(t)
	srv := f.livePosts()
	ctx := context.Background()
	owner := uuid.New()

	post, err := srv.CreateLivePost(ctx, owner, uuid.New(), "original")
	require.NoError(t, err)

	srv.repo = flakyLivePosts{LivePostRepository: srv.repo, err: errors.New("503")}
	_, err = srv.UpdateLivePost(ctx, owner, post.ID, "changed")
	require.Error(t, err)

	mirrored, ok := f.store.Get(entity.KindLivePost, post.ID)
	require.True(t, ok)
	assert.Equal(t, "original", mirrored.(*entity.LivePost).Content)
}

func TestLivePostService_WatchPublishesExpiry(t *testing.T) {
	f := newFixture(t)
	srv := f.livePosts()
	ctx := context.Background()
	placeID := uuid.New()

	post, err := srv.CreateLivePost(ctx, uuid.New(), placeID, "sunset view")
	require.NoError(t, err)

	updates, unsubscribe := srv.WatchLivePosts(placeID)
	defer unsubscribe()

	f.window.Evaluate()
	first := <-updates
	assert.Equal(t, []uuid.UUID{post.ID}, first.Visible)

	f.clock.Advance(time.Hour)
	f.window.Evaluate()
	expired := <-updates
	assert.Empty(t, expired.Visible)
}
