package handler

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"hotspot/internal/delivery/api/response"
	deliverycontext "hotspot/internal/delivery/context"
	"hotspot/internal/usecase"
	"hotspot/internal/window"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"go.uber.org/fx"
)

const (
	streamEventName   = "live_posts"
	streamHeartbeat   = 25 * time.Second
	streamContentType = "text/event-stream"
)

// LivePostHandlerParams holds dependencies for LivePostHandler, injected by Fx.
type LivePostHandlerParams struct {
	fx.In

	LivePostUC usecase.LivePostUsecase
	Logger     *slog.Logger
}

// LivePostHandler serves live posts and their visibility stream.
type LivePostHandler struct {
	livePostUC usecase.LivePostUsecase
	logger     *slog.Logger
	heartbeat  time.Duration
}

// NewLivePostHandler is the constructor for LivePostHandler
func NewLivePostHandler(params LivePostHandlerParams) *LivePostHandler {
	return &LivePostHandler{
		livePostUC: params.LivePostUC,
		logger:     params.Logger,
		heartbeat:  streamHeartbeat,
	}
}

// CreateLivePostRequest represents the request body for publishing a live post
type CreateLivePostRequest struct {
	PlaceID uuid.UUID `json:"place_id" validate:"required"`
	Content string    `json:"content" validate:"required"`
}

// UpdateLivePostRequest represents the request body for editing a live post
type UpdateLivePostRequest struct {
	Content string `json:"content" validate:"required"`
}

// ListLivePosts handles GET /places/:placeId/live-posts
func (h *LivePostHandler) ListLivePosts(c echo.Context) error {
	placeID, err := uuidParam(c, "placeId")
	if err != nil {
		return err
	}

	posts, err := h.livePostUC.ActiveLivePosts(c.Request().Context(), placeID)
	if err != nil {
		return response.HandleAppError(c, err)
	}

	return response.Success(c, http.StatusOK, posts)
}

// CreateLivePost handles POST /live-posts
func (h *LivePostHandler) CreateLivePost(c echo.Context) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}

	var req CreateLivePostRequest
	if ok, err := bindRequest(c, &req); !ok {
		return err
	}

	post, err := h.livePostUC.CreateLivePost(c.Request().Context(), userID, req.PlaceID, req.Content)
	if err != nil {
		return response.HandleAppError(c, err)
	}

	return response.Success(c, http.StatusCreated, post)
}

// UpdateLivePost handles PATCH /live-posts/:id
func (h *LivePostHandler) UpdateLivePost(c echo.Context) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}
	postID, err := uuidParam(c, "id")
	if err != nil {
		return err
	}

	var req UpdateLivePostRequest
	if ok, err := bindRequest(c, &req); !ok {
		return err
	}

	post, err := h.livePostUC.UpdateLivePost(c.Request().Context(), userID, postID, req.Content)
	if err != nil {
		return response.HandleAppError(c, err)
	}

	return response.Success(c, http.StatusOK, post)
}

// DeleteLivePost handles DELETE /live-posts/:id
func (h *LivePostHandler) DeleteLivePost(c echo.Context) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}
	postID, err := uuidParam(c, "id")
	if err != nil {
		return err
	}

	if err := h.livePostUC.DeleteLivePost(c.Request().Context(), userID, postID); err != nil {
		return response.HandleAppError(c, err)
	}

	return c.NoContent(http.StatusNoContent)
}

// StreamLivePosts handles GET /places/:placeId/live-posts/stream as server-sent events.
// The first event is the current visible set; later events follow window re-evaluations.
func (h *LivePostHandler) StreamLivePosts(c echo.Context) error {
	placeID, err := uuidParam(c, "placeId")
	if err != nil {
		return err
	}

	ctx := c.Request().Context()
	logger := deliverycontext.GetLoggerOrDefault(ctx, h.logger)

	updates, unsubscribe := h.livePostUC.WatchLivePosts(placeID)
	defer unsubscribe()

	posts, err := h.livePostUC.ActiveLivePosts(ctx, placeID)
	if err != nil {
		return response.HandleAppError(c, err)
	}
	snapshot := window.Update{PlaceID: placeID, Visible: make([]uuid.UUID, 0, len(posts)), EvaluatedAt: time.Now().UTC()}
	for _, post := range posts {
		snapshot.Visible = append(snapshot.Visible, post.ID)
	}

	res := c.Response()
	// Streams outlive the server write timeout.
	_ = http.NewResponseController(res.Writer).SetWriteDeadline(time.Time{})
	res.Header().Set(echo.HeaderContentType, streamContentType)
	res.Header().Set("Cache-Control", "no-cache")
	res.Header().Set("Connection", "keep-alive")
	res.WriteHeader(http.StatusOK)

	if err := writeEvent(res, snapshot); err != nil {
		return err
	}

	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if err := writeEvent(res, update); err != nil {
				logger.Debug("Live post stream closed", slog.Any("error", err))

				return nil
			}
		case <-heartbeat.C:
			if _, err := fmt.Fprint(res, ": ping\n\n"); err != nil {
				return nil
			}
			res.Flush()
		}
	}
}

func writeEvent(res *echo.Response, update window.Update) error {
	payload, err := json.Marshal(update)
	if err != nil {
		return errors.WithStack(err)
	}
	if _, err := fmt.Fprintf(res, "event: %s\ndata: %s\n\n", streamEventName, payload); err != nil {
		return errors.WithStack(err)
	}
	res.Flush()

	return nil
}
