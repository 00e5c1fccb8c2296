package handler

import (
	"log/slog"
	"net/http"

	"hotspot/internal/delivery/api/response"
	"hotspot/internal/usecase"

	"github.com/labstack/echo/v4"
	"go.uber.org/fx"
)

// ChatHandlerParams holds dependencies for ChatHandler, injected by Fx.
type ChatHandlerParams struct {
	fx.In

	ChatUC usecase.ChatUsecase
	Logger *slog.Logger
}

// ChatHandler serves matches and their messages.
type ChatHandler struct {
	chatUC usecase.ChatUsecase
	logger *slog.Logger
}

// NewChatHandler is the constructor for ChatHandler
func NewChatHandler(params ChatHandlerParams) *ChatHandler {
	return &ChatHandler{
		chatUC: params.ChatUC,
		logger: params.Logger,
	}
}

// SendMessageRequest represents the request body for sending a message
type SendMessageRequest struct {
	Content string `json:"content" validate:"required"`
}

// ListMatches handles GET /matches
func (h *ChatHandler) ListMatches(c echo.Context) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}

	matches, err := h.chatUC.ListMatches(c.Request().Context(), userID)
	if err != nil {
		return response.HandleAppError(c, err)
	}

	return response.Success(c, http.StatusOK, matches)
}

// ListMessages handles GET /matches/:id/messages
func (h *ChatHandler) ListMessages(c echo.Context) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}
	matchID, err := uuidParam(c, "id")
	if err != nil {
		return err
	}

	messages, err := h.chatUC.Messages(c.Request().Context(), userID, matchID)
	if err != nil {
		return response.HandleAppError(c, err)
	}

	return response.Success(c, http.StatusOK, messages)
}

// SendMessage handles POST /matches/:id/messages
func (h *ChatHandler) SendMessage(c echo.Context) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}
	matchID, err := uuidParam(c, "id")
	if err != nil {
		return err
	}

	var req SendMessageRequest
	if ok, err := bindRequest(c, &req); !ok {
		return err
	}

	message, err := h.chatUC.SendMessage(c.Request().Context(), userID, matchID, req.Content)
	if err != nil {
		return response.HandleAppError(c, err)
	}

	return response.Success(c, http.StatusCreated, message)
}
