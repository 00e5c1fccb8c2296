package notification

import (
	"context"
	"log/slog"
	"testing"

	"hotspot/config"

	"firebase.google.com/go/v4/messaging"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockSender struct {
	mock.Mock
}

func (m *mockSender) Send(ctx context.Context, message *messaging.Message) (string, error) {
	args := m.Called(ctx, message)

	return args.String(0), args.Error(1)
}

func TestFirebaseService_NotifyUserTargetsUserTopic(t *testing.T) {
	sender := &mockSender{}
	svc := &firebaseService{client: sender, logger: slog.New(slog.DiscardHandler)}
	userID := uuid.New()

	sender.On("Send", mock.Anything, mock.MatchedBy(func(msg *messaging.Message) bool {
		return msg.Topic == "user-"+userID.String() &&
			msg.Notification.Title == "新配對" &&
			msg.Data["match_id"] == "m1"
	})).Return("projects/p/messages/1", nil).Once()

	err := svc.NotifyUser(context.Background(), userID, "新配對", "你有一個新的配對", map[string]string{"match_id": "m1"})

	require.NoError(t, err)
	sender.AssertExpectations(t)
}

func TestFirebaseService_NotifyUserWrapsSendError(t *testing.T) {
	sender := &mockSender{}
	svc := &firebaseService{client: sender, logger: slog.New(slog.DiscardHandler)}
	sender.On("Send", mock.Anything, mock.Anything).Return("", errors.New("quota exceeded")).Once()

	err := svc.NotifyUser(context.Background(), uuid.New(), "t", "b", nil)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota exceeded")
}

func TestNewNotificationService_NoopWithoutFirebase(t *testing.T) {
	svc, err := NewNotificationService(Params{
		Ctx:    context.Background(),
		Config: &config.Config{},
		Logger: slog.New(slog.DiscardHandler),
	})

	require.NoError(t, err)
	require.IsType(t, &noopNotificationService{}, svc)
	assert.NoError(t, svc.NotifyUser(context.Background(), uuid.New(), "t", "b", nil))
}
