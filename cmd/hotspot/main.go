package main

import (
	"context"
	"log/slog"
	"os"

	"hotspot/config"
	"hotspot/internal/delivery"
	"hotspot/internal/delivery/api"
	"hotspot/internal/delivery/api/middleware"
	"hotspot/internal/delivery/api/router/handler"
	"hotspot/internal/domain/entity"
	"hotspot/internal/infra/auth"
	"hotspot/internal/infra/cache"
	logs "hotspot/internal/infra/log"
	"hotspot/internal/infra/notification"
	"hotspot/internal/infra/pubsub"
	"hotspot/internal/ingest"
	"hotspot/internal/mirror"
	"hotspot/internal/usecase"
	"hotspot/internal/usecase/impl"
	"hotspot/internal/window"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
)

type startServerParams struct {
	fx.In
	fx.Lifecycle

	Deliveries []delivery.Delivery `group:"deliveries"`
}

func main() {
	fx.New(
		fx.WithLogger(func(logger *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: logger}
		}),
		injectInfra(),
		injectRepo(),
		injectMirror(),
		injectService(),
		injectUsecase(),
		injectDelivery(),
		injectMiddleware(),
		injectHandler(),
		fx.Invoke(
			registerChatNotifications,
			startServer,
		),
	).Run()
}

func injectInfra() fx.Option {
	return fx.Options(
		fx.Provide(
			config.New,
			logs.New,
			context.Background,
		),
		pubsub.Module,
	)
}

func injectRepo() fx.Option {
	return fx.Provide(
		newRemoteStore,
	)
}

func injectMirror() fx.Option {
	return fx.Provide(
		newMirrorStore,
		newIngestor,
		newWindow,
		newGateway,
		func(i *ingest.Ingestor) impl.RelationStatus { return i },
	)
}

func injectService() fx.Option {
	return fx.Provide(
		auth.NewJWTService,
		notification.NewNotificationService,
		cache.NewStatsCache,
	)
}

func injectUsecase() fx.Option {
	return fx.Provide(
		impl.NewPresenceService,
		impl.NewRankService,
		impl.NewLivePostService,
		impl.NewPromotionService,
		impl.NewChatService,
	)
}

func injectMiddleware() fx.Option {
	return fx.Provide(
		middleware.NewAuthMiddleware,
	)
}

func injectHandler() fx.Option {
	return fx.Provide(
		handler.NewPresenceHandler,
		handler.NewLivePostHandler,
		handler.NewPromotionHandler,
		handler.NewChatHandler,
		handler.NewPushHandler,
	)
}

func injectDelivery() fx.Option {
	return fx.Provide(
		fx.Annotate(
			api.NewServer,
			fx.ResultTags(`group:"deliveries"`),
		),
	)
}

// newMirrorStore creates the mirror with one check-in per user enforced on upsert.
func newMirrorStore(cfg *config.Config) *mirror.Store {
	return mirror.NewStore(
		mirror.WithUniqueIndex(entity.KindCheckIn, entity.ByUser),
		mirror.WithTombstoneRetention(cfg.Mirror.TombstoneRetention),
	)
}

func newWindow(lc fx.Lifecycle, store *mirror.Store, cfg *config.Config, logger *slog.Logger) *window.Window {
	w := window.New(store, window.Config{
		TTL:      cfg.Mirror.LivePostTTL,
		Interval: cfg.Mirror.WindowInterval,
	}, logger)
	store.OnChange(w.HandleChanges)

	lc.Append(fx.Hook{
		OnStart: w.Start,
		OnStop:  w.Stop,
	})

	return w
}

func newGateway(store *mirror.Store, ingestor *ingest.Ingestor, logger *slog.Logger) *mirror.Gateway {
	return mirror.NewGateway(store, logger, mirror.WithRefetcher(ingestor.Refetch))
}

// registerChatNotifications notifies match participants about feed inserts.
func registerChatNotifications(ingestor *ingest.Ingestor, chat usecase.ChatUsecase) {
	ingestor.AddHook(chat.NotifyInsert)
}

func startServer(ctx context.Context, params startServerParams) {
	for _, delivery := range params.Deliveries {
		go func() {
			if err := delivery.Serve(ctx); err != nil {
				slog.Error("Failed to start server", slog.Any("error", err))
				os.Exit(1)
			}
		}()
	}
}
