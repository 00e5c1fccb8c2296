// Package router contains routing and server setup for the HTTP delivery.
package router

import (
	"hotspot/internal/delivery/api/middleware"
	"hotspot/internal/delivery/api/router/handler"

	"github.com/labstack/echo/v4"
	"go.uber.org/fx"
)

type RouterParams struct {
	fx.In

	PresenceHandler  *handler.PresenceHandler
	LivePostHandler  *handler.LivePostHandler
	PromotionHandler *handler.PromotionHandler
	ChatHandler      *handler.ChatHandler
	PushHandler      *handler.PushHandler
	AuthMiddleware   *middleware.AuthMiddleware
}

// router holds all the handlers that need to be registered.
type router struct {
	presenceHandler  *handler.PresenceHandler
	livePostHandler  *handler.LivePostHandler
	promotionHandler *handler.PromotionHandler
	chatHandler      *handler.ChatHandler
	pushHandler      *handler.PushHandler
	authMiddleware   *middleware.AuthMiddleware
}

// NewRouter is the constructor for the Router.
// Fx will inject the required handlers here.
func NewRouter(params RouterParams) *router {
	return &router{
		presenceHandler:  params.PresenceHandler,
		livePostHandler:  params.LivePostHandler,
		promotionHandler: params.PromotionHandler,
		chatHandler:      params.ChatHandler,
		pushHandler:      params.PushHandler,
		authMiddleware:   params.AuthMiddleware,
	}
}

// RegisterRoutes sets up all the API routes for the application.
func (r *router) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", handler.HealthCheck)

	// Change feed push endpoint, authenticated by the Pub/Sub OIDC token when enabled
	e.POST("/push", r.pushHandler.HandlePush)

	authenticate := r.authMiddleware.Authenticate

	checkInsGroup := e.Group("/checkins", authenticate)
	{
		checkInsGroup.POST("", r.presenceHandler.CheckIn)
		checkInsGroup.DELETE("", r.presenceHandler.CheckOut)
	}

	placesGroup := e.Group("/places/:placeId", authenticate)
	{
		placesGroup.PUT("/going", r.presenceHandler.SetGoingIntention)
		placesGroup.DELETE("/going", r.presenceHandler.ClearGoingIntention)
		placesGroup.GET("/rank", r.presenceHandler.Rank)
		placesGroup.GET("/live-posts", r.livePostHandler.ListLivePosts)
		placesGroup.GET("/live-posts/stream", r.livePostHandler.StreamLivePosts)
	}

	livePostsGroup := e.Group("/live-posts", authenticate)
	{
		livePostsGroup.POST("", r.livePostHandler.CreateLivePost)
		livePostsGroup.PATCH("/:id", r.livePostHandler.UpdateLivePost)
		livePostsGroup.DELETE("/:id", r.livePostHandler.DeleteLivePost)
	}

	promotionsGroup := e.Group("/promotions/:id", authenticate)
	{
		promotionsGroup.POST("/claims", r.promotionHandler.ClaimPromotion)
		promotionsGroup.GET("/claims/state", r.promotionHandler.ClaimState)
		promotionsGroup.GET("/stats", r.promotionHandler.PromotionStats)
	}
	e.GET("/claims", r.promotionHandler.CurrentClaims, authenticate)

	matchesGroup := e.Group("/matches", authenticate)
	{
		matchesGroup.GET("", r.chatHandler.ListMatches)
		matchesGroup.GET("/:id/messages", r.chatHandler.ListMessages)
		matchesGroup.POST("/:id/messages", r.chatHandler.SendMessage)
	}
}
