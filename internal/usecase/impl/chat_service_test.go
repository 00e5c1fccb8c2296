package impl

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"hotspot/internal/domain/entity"
	domainerrors "hotspot/internal/domain/errors"
	"hotspot/internal/domain/service"
	"hotspot/internal/infra/persistence/memory"
	"hotspot/internal/infra/pubsub"
	"hotspot/internal/ingest"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) NotifyUser(ctx context.Context, userID uuid.UUID, title, body string, data map[string]string) error {
	return m.Called(ctx, userID, title, body, data).Error(0)
}

func newChatService(f *fixture, notifier service.NotificationService) *chatService {
	return NewChatService(ChatServiceParams{
		Repo:     memory.NewChatRepository(f.remote),
		Store:    f.store,
		Status:   allSynced{},
		Notifier: notifier,
		Logger:   f.logger,
	}).(*chatService)
}

func TestChatService_SendAndListMessages(t *testing.T) {
	f := newFixture(t)
	srv := newChatService(f, &mockNotifier{})
	ctx := context.Background()
	userA, userB := uuid.New(), uuid.New()
	match := &entity.Match{ID: uuid.New(), UserA: userA, UserB: userB}
	f.seed(t, match)

	first, err := srv.SendMessage(ctx, userA, match.ID, "hello")
	require.NoError(t, err)
	f.clock.Advance(time.Second)
	second, err := srv.SendMessage(ctx, userB, match.ID, "hi there")
	require.NoError(t, err)

	messages, err := srv.Messages(ctx, userA, match.ID)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, first.ID, messages[0].ID)
	assert.Equal(t, second.ID, messages[1].ID)

	_, err = srv.Messages(ctx, uuid.New(), match.ID)
	assert.ErrorIs(t, err, domainerrors.ErrForbidden)
}

func TestChatService_SendMessageValidation(t *testing.T) {
	f := newFixture(t)
	srv := newChatService(f, &mockNotifier{})
	ctx := context.Background()
	userA := uuid.New()
	match := &entity.Match{ID: uuid.New(), UserA: userA, UserB: uuid.New()}
	f.seed(t, match)

	tests := []struct {
		name    string
		userID  uuid.UUID
		matchID uuid.UUID
		content string
		wantErr error
	}{
		{name: "anonymous", userID: uuid.Nil, matchID: match.ID, content: "hi", wantErr: domainerrors.ErrNotAuthenticated},
		{name: "unknown match", userID: userA, matchID: uuid.New(), content: "hi", wantErr: domainerrors.ErrMatchNotFound},
		{name: "outsider", userID: uuid.New(), matchID: match.ID, content: "hi", wantErr: domainerrors.ErrForbidden},
		{name: "empty", userID: userA, matchID: match.ID, content: " ", wantErr: domainerrors.ErrValidationFailed},
		{name: "too long", userID: userA, matchID: match.ID, content: strings.Repeat("a", entity.MaxMessageLength+1), wantErr: domainerrors.ErrValidationFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := srv.SendMessage(ctx, tt.userID, tt.matchID, tt.content)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
	assert.Zero(t, f.store.Count(entity.KindMessage))
}

func TestChatService_ListMatches(t *testing.T) {
	f := newFixture(t)
	srv := newChatService(f, &mockNotifier{})
	userID := uuid.New()

	older := &entity.Match{ID: uuid.New(), UserA: userID, UserB: uuid.New(), CreatedAt: epoch}
	newer := &entity.Match{ID: uuid.New(), UserA: uuid.New(), UserB: userID, CreatedAt: epoch.Add(time.Hour)}
	f.store.Upsert(older)
	f.store.Upsert(newer)
	f.store.Upsert(&entity.Match{ID: uuid.New(), UserA: uuid.New(), UserB: uuid.New(), CreatedAt: epoch})

	matches, err := srv.ListMatches(context.Background(), userID)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, newer.ID, matches[0].ID)
	assert.Equal(t, older.ID, matches[1].ID)
}

func TestChatService_NotifyInsert(t *testing.T) {
	f := newFixture(t)
	notifier := &mockNotifier{}
	srv := newChatService(f, notifier)
	ctx := context.Background()
	userA, userB := uuid.New(), uuid.New()
	match := &entity.Match{ID: uuid.New(), UserA: userA, UserB: userB, CreatedAt: epoch}
	f.store.Upsert(match)

	notifier.On("NotifyUser", ctx, userA, "New match", mock.Anything, mock.Anything).Return(nil).Once()
	notifier.On("NotifyUser", ctx, userB, "New match", mock.Anything, mock.Anything).Return(nil).Once()
	srv.NotifyInsert(ctx, &service.ChangeEvent{Op: service.OpInsert, Relation: entity.KindMatch, ID: match.ID, Record: match})

	message := &entity.Message{ID: uuid.New(), MatchID: match.ID, SenderID: userA, Content: "see you there", CreatedAt: epoch}
	notifier.On("NotifyUser", ctx, userB, "New message", "see you there", mock.MatchedBy(func(data map[string]string) bool {
		return data["messageId"] == message.ID.String()
	})).Return(assert.AnError).Once()
	srv.NotifyInsert(ctx, &service.ChangeEvent{Op: service.OpInsert, Relation: entity.KindMessage, ID: message.ID, Record: message})

	orphan := &entity.Message{ID: uuid.New(), MatchID: uuid.New(), SenderID: userA, Content: "lost"}
	srv.NotifyInsert(ctx, &service.ChangeEvent{Op: service.OpInsert, Relation: entity.KindMessage, ID: orphan.ID, Record: orphan})

	notifier.AssertExpectations(t)
	notifier.AssertNumberOfCalls(t, "NotifyUser", 3)
}

func TestPreview(t *testing.T) {
	assert.Equal(t, "short", preview("short"))

	long := strings.Repeat("好", messagePreviewLength+5)
	got := preview(long)
	assert.Equal(t, messagePreviewLength+1, len([]rune(got)))
	assert.True(t, strings.HasSuffix(got, "…"))
}

// recordingNotifier collects notification titles per recipient.
type recordingNotifier struct {
	mu     sync.Mutex
	titles map[uuid.UUID][]string
}

func (n *recordingNotifier) NotifyUser(ctx context.Context, userID uuid.UUID, title, body string, data map[string]string) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.titles == nil {
		n.titles = make(map[uuid.UUID][]string)
	}
	n.titles[userID] = append(n.titles[userID], title)

	return nil
}

func (n *recordingNotifier) count(userID uuid.UUID, title string) int {
	n.mu.Lock()
	defer n.mu.Unlock()

	total := 0
	for _, got := range n.titles[userID] {
		if got == title {
			total++
		}
	}

	return total
}

func TestChatService_SentMessagesNotifyThroughFeed(t *testing.T) {
	f := newFixture(t)
	broker := pubsub.NewBroker(0, f.logger)
	f.remote = memory.NewStore(broker, f.logger, memory.WithClock(f.clock.Now))
	notifier := &recordingNotifier{}
	srv := newChatService(f, notifier)

	ing := ingest.New(broker, memory.NewRelationReader(f.remote), f.store, ingest.Config{
		Relations: []entity.Kind{entity.KindMatch, entity.KindMessage},
		Backoff:   ingest.BackoffConfig{Initial: time.Millisecond, Max: 10 * time.Millisecond, Multiplier: 2},
	}, f.logger)
	ing.AddHook(srv.NotifyInsert)
	require.NoError(t, ing.Start(context.Background()))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		assert.NoError(t, ing.Stop(ctx))
	})
	require.Eventually(t, func() bool {
		return ing.Synced(entity.KindMatch) && ing.Synced(entity.KindMessage)
	}, time.Second, time.Millisecond)

	ctx := context.Background()
	userA, userB := uuid.New(), uuid.New()
	match := &entity.Match{ID: uuid.New(), UserA: userA, UserB: userB}
	f.seed(t, match)
	require.Eventually(t, func() bool {
		_, ok := srv.mirroredMatch(match.ID)
		return ok
	}, time.Second, time.Millisecond)

	for i := range 5 {
		_, err := srv.SendMessage(ctx, userA, match.ID, fmt.Sprintf("message %d", i))
		require.NoError(t, err)
		f.clock.Advance(time.Second)
	}
	_, err := srv.SendMessage(ctx, userB, match.ID, "reply")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return notifier.count(userB, "New message") == 5 && notifier.count(userA, "New message") == 1
	}, time.Second, time.Millisecond)
	assert.Equal(t, 1, notifier.count(userA, "New match"))
	assert.Equal(t, 1, notifier.count(userB, "New match"))
}
