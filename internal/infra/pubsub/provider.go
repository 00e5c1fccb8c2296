package pubsub

import (
	"context"
	"log/slog"

	"hotspot/config"
	"hotspot/internal/domain/constants"
	"hotspot/internal/domain/entity"
	"hotspot/internal/domain/service"

	"github.com/pkg/errors"
	"go.uber.org/fx"
)

// FeedParams holds dependencies for ChangeFeed, injected by Fx
type FeedParams struct {
	fx.In

	Lc     fx.Lifecycle
	Ctx    context.Context
	Config *config.Config
	Logger *slog.Logger
	Broker *Broker
}

// NewInProcessBroker creates the broker shared by the memory store, the push endpoint and the memory feed
func NewInProcessBroker(logger *slog.Logger) *Broker {
	return NewBroker(defaultBrokerCapacity, logger)
}

// AsChangePublisher exposes the broker to producers of change events
func AsChangePublisher(b *Broker) service.ChangePublisher {
	return b
}

// NewChangeFeed creates the ChangeFeed selected by configuration
func NewChangeFeed(params FeedParams) (service.ChangeFeed, error) {
	cfg := params.Config.Feed
	logger := params.Logger

	var feed service.ChangeFeed
	var err error

	switch cfg.Provider {
	case constants.FeedProviderMemory, "":
		logger.Info("Using in-process broker as change feed")

		feed = params.Broker

	case constants.FeedProviderGoogle:
		if cfg.ProjectID == "" {
			return nil, errors.New("project ID is required for google provider")
		}
		logger.Info("Using Google Pub/Sub change feed",
			slog.String("project_id", cfg.ProjectID),
			slog.String("subscription_prefix", cfg.SubscriptionPrefix),
		)

		feed, err = NewGoogleChangeFeed(params.Ctx, cfg.ProjectID, cfg.SubscriptionPrefix, Relations(params.Config), logger)
		if err != nil {
			return nil, err
		}

	default:
		return nil, errors.Errorf("unknown feed provider: %s", cfg.Provider)
	}

	// Register lifecycle hook to close the feed on shutdown
	params.Lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			logger.Info("Closing change feed")

			return feed.Close()
		},
	})

	return feed, nil
}

// Relations returns the configured relations, or every mirrored relation when none are configured
func Relations(cfg *config.Config) []entity.Kind {
	if len(cfg.Feed.Relations) == 0 {
		return entity.AllKinds()
	}

	relations := make([]entity.Kind, 0, len(cfg.Feed.Relations))
	for _, name := range cfg.Feed.Relations {
		if kind, ok := entity.ParseKind(name); ok {
			relations = append(relations, kind)
		}
	}

	return relations
}

// Module provides the change feed FX module
//
//nolint:gochecknoglobals
var Module = fx.Options(
	fx.Provide(
		NewInProcessBroker,
		NewChangeFeed,
		AsChangePublisher,
	),
)
