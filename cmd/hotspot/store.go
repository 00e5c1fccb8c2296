package main

import (
	"log/slog"

	"hotspot/config"
	"hotspot/internal/domain/constants"
	"hotspot/internal/domain/repository"
	"hotspot/internal/domain/service"
	"hotspot/internal/infra/persistence/memory"
	"hotspot/internal/infra/persistence/postgres"
	"hotspot/internal/infra/pubsub"
	"hotspot/internal/ingest"
	"hotspot/internal/mirror"

	"github.com/pkg/errors"
	"go.uber.org/fx"
)

type remoteStoreParams struct {
	fx.In

	Lc        fx.Lifecycle
	Config    *config.Config
	Logger    *slog.Logger
	Publisher service.ChangePublisher
}

// remoteStore is every repository of the configured remote store.
type remoteStore struct {
	fx.Out

	TxManager  repository.TransactionManager
	LivePosts  repository.LivePostRepository
	Promotions repository.PromotionRepository
	Procedure  repository.ClaimProcedure
	Places     repository.PlaceRepository
	Chat       repository.ChatRepository
	Relations  repository.RelationReader
}

// newRemoteStore selects the remote store by store.driver.
func newRemoteStore(params remoteStoreParams) (remoteStore, error) {
	cfg := params.Config

	switch cfg.Store.Driver {
	case constants.StoreDriverPostgres:
		db, err := postgres.New(postgres.Params{
			Lifecycle: params.Lc,
			Config:    cfg,
			Logger:    params.Logger,
		})
		if err != nil {
			return remoteStore{}, err
		}
		params.Logger.Info("Using PostgreSQL remote store")

		return remoteStore{
			TxManager:  postgres.NewTransactionManager(db, cfg),
			LivePosts:  postgres.NewLivePostRepository(db),
			Promotions: postgres.NewPromotionRepository(db),
			Procedure:  postgres.NewClaimProcedure(db),
			Places:     postgres.NewPlaceRepository(db),
			Chat:       postgres.NewChatRepository(db),
			Relations:  postgres.NewRelationReader(db, cfg),
		}, nil

	case constants.StoreDriverMemory, "":
		store := memory.NewStore(params.Publisher, params.Logger,
			memory.WithMaxGoingIntentions(cfg.Mirror.MaxGoingIntentions),
			memory.WithLivePostLookback(cfg.Mirror.RefetchLookback),
		)
		params.Logger.Info("Using in-memory remote store")

		return remoteStore{
			TxManager:  memory.NewTransactionManager(store),
			LivePosts:  memory.NewLivePostRepository(store),
			Promotions: memory.NewPromotionRepository(store),
			Procedure:  memory.NewClaimProcedure(store),
			Places:     memory.NewPlaceRepository(store),
			Chat:       memory.NewChatRepository(store),
			Relations:  memory.NewRelationReader(store),
		}, nil

	default:
		return remoteStore{}, errors.Errorf("unknown store driver: %s", cfg.Store.Driver)
	}
}

func newIngestor(lc fx.Lifecycle, feed service.ChangeFeed, reader repository.RelationReader, store *mirror.Store, cfg *config.Config, logger *slog.Logger) *ingest.Ingestor {
	ingestor := ingest.New(feed, reader, store, ingest.Config{
		Relations: pubsub.Relations(cfg),
		Backoff: ingest.BackoffConfig{
			Initial:    cfg.Feed.Backoff.Initial,
			Max:        cfg.Feed.Backoff.Max,
			Multiplier: cfg.Feed.Backoff.Multiplier,
		},
	}, logger)

	lc.Append(fx.Hook{
		OnStart: ingestor.Start,
		OnStop:  ingestor.Stop,
	})

	return ingestor
}
