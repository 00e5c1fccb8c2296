package pubsub

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"hotspot/internal/domain/entity"
	"hotspot/internal/domain/service"

	"cloud.google.com/go/pubsub/v2"
	pubsubpb "cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"github.com/pkg/errors"
)

// googleChangeFeed implements ChangeFeed with one Google Cloud Pub/Sub pull subscription per relation.
// Subscriptions are expected to have message ordering enabled with the row id as ordering key.
type googleChangeFeed struct {
	client    *pubsub.Client
	projectID string
	prefix    string
	logger    *slog.Logger
}

// NewGoogleChangeFeed creates a Google Pub/Sub change feed and checks that every relation's subscription exists
func NewGoogleChangeFeed(ctx context.Context, projectID, prefix string, relations []entity.Kind, logger *slog.Logger) (service.ChangeFeed, error) {
	client, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	for _, relation := range relations {
		subscriptionID := prefix + string(relation)
		path := fmt.Sprintf("projects/%s/subscriptions/%s", projectID, subscriptionID)
		if _, err := client.SubscriptionAdminClient.GetSubscription(ctx, &pubsubpb.GetSubscriptionRequest{
			Subscription: path,
		}); err != nil {
			client.Close()

			return nil, errors.Wrapf(err, "failed to get subscription %s", subscriptionID)
		}
	}

	logger.Info("Google Pub/Sub change feed initialized",
		slog.String("project_id", projectID),
		slog.String("subscription_prefix", prefix),
		slog.Int("relations", len(relations)),
	)

	return &googleChangeFeed{
		client:    client,
		projectID: projectID,
		prefix:    prefix,
		logger:    logger.With(slog.String("component", "google_change_feed")),
	}, nil
}

// Subscribe receives the relation's messages until ctx is done or the stream fails
func (f *googleChangeFeed) Subscribe(ctx context.Context, relation entity.Kind, handler service.ChangeHandler) error {
	subscriptionID := f.prefix + string(relation)
	subscriber := f.client.Subscriber(subscriptionID)
	logger := f.logger.With(slog.String("relation", string(relation)))

	err := subscriber.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		event, err := DecodeChange(msg.Data, time.Now())
		if err != nil {
			// Redelivery cannot fix a malformed payload.
			logger.Warn("[GooglePubSub] Dropping malformed change",
				slog.String("message_id", msg.ID),
				slog.Any("error", err),
			)
			msg.Ack()

			return
		}
		if event.Relation != relation {
			logger.Warn("[GooglePubSub] Dropping change for another relation",
				slog.String("message_id", msg.ID),
				slog.String("table", string(event.Relation)),
			)
			msg.Ack()

			return
		}

		if err := handler(ctx, event); err != nil {
			logger.Error("[GooglePubSub] Failed to apply change",
				slog.String("message_id", msg.ID),
				slog.Any("error", err),
			)
			msg.Nack()

			return
		}
		msg.Ack()
	})
	if err != nil {
		return errors.Wrapf(err, "receive %s", subscriptionID)
	}

	return nil
}

// Close releases Pub/Sub client resources
func (f *googleChangeFeed) Close() error {
	if f.client != nil {
		return errors.WithStack(f.client.Close())
	}

	return nil
}
