package notification

import (
	"context"
	"fmt"
	"log/slog"

	"hotspot/config"
	"hotspot/internal/domain/service"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/fx"
	"google.golang.org/api/option"
)

// messageSender is the part of the FCM client used here.
type messageSender interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

type firebaseService struct {
	client messageSender
	logger *slog.Logger
}

// NewFirebaseService creates a new Firebase notification service instance
func NewFirebaseService(ctx context.Context, cfg *config.FirebaseConfig, logger *slog.Logger) (service.NotificationService, error) {
	opts := []option.ClientOption{}
	if cfg.CredentialsPath != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsPath))
	}

	var appConfig *firebase.Config
	if cfg.ProjectID != "" {
		appConfig = &firebase.Config{ProjectID: cfg.ProjectID}
	}

	app, err := firebase.NewApp(ctx, appConfig, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to initialize Firebase app")
	}

	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get messaging client")
	}

	return &firebaseService{
		client: client,
		logger: logger,
	}, nil
}

// UserTopic is the FCM topic every device of a user subscribes to.
func UserTopic(userID uuid.UUID) string {
	return fmt.Sprintf("user-%s", userID)
}

// NotifyUser sends a push notification to the user's topic
func (s *firebaseService) NotifyUser(ctx context.Context, userID uuid.UUID, title, body string, data map[string]string) error {
	message := &messaging.Message{
		Topic: UserTopic(userID),
		Notification: &messaging.Notification{
			Title: title,
			Body:  body,
		},
		Data: data,
	}

	messageID, err := s.client.Send(ctx, message)
	if err != nil {
		return errors.Wrap(err, "failed to send notification")
	}

	s.logger.Debug("[Firebase] Notification sent",
		slog.String("topic", message.Topic),
		slog.String("message_id", messageID),
	)

	return nil
}

// noopNotificationService is used when Firebase is not configured
type noopNotificationService struct {
	logger *slog.Logger
}

func (s *noopNotificationService) NotifyUser(ctx context.Context, userID uuid.UUID, title, body string, data map[string]string) error {
	s.logger.Debug("[NoopNotification] Notifications disabled, skipping",
		slog.String("user_id", userID.String()),
		slog.String("title", title),
	)

	return nil
}

// Params holds dependencies for NotificationService, injected by Fx
type Params struct {
	fx.In

	Ctx    context.Context
	Config *config.Config
	Logger *slog.Logger
}

// NewNotificationService creates the Firebase notifier, or a no-op one when Firebase is not configured
func NewNotificationService(params Params) (service.NotificationService, error) {
	cfg := params.Config.Firebase
	if cfg == nil || (cfg.ProjectID == "" && cfg.CredentialsPath == "") {
		params.Logger.Info("Firebase not configured, notifications disabled")

		return &noopNotificationService{logger: params.Logger}, nil
	}

	return NewFirebaseService(params.Ctx, cfg, params.Logger)
}
