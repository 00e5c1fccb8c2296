package handler

import (
	"encoding/base64"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"hotspot/config"
	deliverycontext "hotspot/internal/delivery/context"
	"hotspot/internal/domain/service"
	"hotspot/internal/infra/pubsub"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"go.uber.org/fx"
	"google.golang.org/api/idtoken"
)

// PubSubMessage represents the structure of a Pub/Sub push message
type PubSubMessage struct {
	Message struct {
		Data        string            `json:"data"`
		Attributes  map[string]string `json:"attributes,omitempty"`
		MessageID   string            `json:"messageId"`
		PublishTime string            `json:"publishTime"`
	} `json:"message"`
	Subscription string `json:"subscription"`
}

// PushHandler accepts change events pushed by Pub/Sub and hands them to the in-process broker.
type PushHandler struct {
	verifyPushAuth bool
	verifyToken    func(req *http.Request) error
	publisher      service.ChangePublisher
	logger         *slog.Logger
}

// PushHandlerParams holds dependencies for the PushHandler
type PushHandlerParams struct {
	fx.In

	Config    *config.Config
	Logger    *slog.Logger
	Publisher service.ChangePublisher
}

// NewPushHandler creates a new Pub/Sub push handler
func NewPushHandler(params PushHandlerParams) *PushHandler {
	return &PushHandler{
		verifyPushAuth: params.Config.Feed.VerifyPushAuth,
		verifyToken:    verifyPubSubToken,
		publisher:      params.Publisher,
		logger:         params.Logger.With(slog.String("component", "push_handler")),
	}
}

// HandlePush handles POST /push.
// Payloads that can never be applied are acknowledged with 200 so Pub/Sub stops redelivering them;
// a failed hand-off answers 503 to request a retry.
func (h *PushHandler) HandlePush(c echo.Context) error {
	ctx := c.Request().Context()
	logger := deliverycontext.GetLoggerOrDefault(ctx, h.logger)

	if h.verifyPushAuth {
		if err := h.verifyToken(c.Request()); err != nil {
			logger.Warn("Invalid Pub/Sub token", slog.Any("error", err))

			return c.NoContent(http.StatusUnauthorized)
		}
	}

	var pushMsg PubSubMessage
	if err := c.Bind(&pushMsg); err != nil {
		logger.Warn("Failed to parse push message", slog.Any("error", err))

		return c.NoContent(http.StatusBadRequest)
	}

	data, err := base64.StdEncoding.DecodeString(pushMsg.Message.Data)
	if err != nil {
		logger.Warn("Dropping push message with undecodable data",
			slog.String("message_id", pushMsg.Message.MessageID),
			slog.Any("error", err),
		)

		return c.NoContent(http.StatusOK)
	}

	event, err := pubsub.DecodeChange(data, receivedAt(pushMsg.Message.PublishTime))
	if err != nil {
		logger.Warn("Dropping malformed change event",
			slog.String("message_id", pushMsg.Message.MessageID),
			slog.String("subscription", pushMsg.Subscription),
			slog.Any("error", err),
		)

		return c.NoContent(http.StatusOK)
	}

	if err := h.publisher.PublishChange(ctx, event); err != nil {
		logger.Error("Failed to publish change event",
			slog.String("relation", string(event.Relation)),
			slog.String("id", event.ID.String()),
			slog.Any("error", err),
		)

		return c.NoContent(http.StatusServiceUnavailable)
	}

	logger.Debug("Change event accepted",
		slog.String("message_id", pushMsg.Message.MessageID),
		slog.String("relation", string(event.Relation)),
		slog.String("op", string(event.Op)),
	)

	return c.NoContent(http.StatusOK)
}

func receivedAt(publishTime string) time.Time {
	if parsed, err := time.Parse(time.RFC3339Nano, publishTime); err == nil {
		return parsed
	}

	return time.Now()
}

// verifyPubSubToken validates the OIDC token Pub/Sub attaches to authenticated push requests.
func verifyPubSubToken(req *http.Request) error {
	const bearerPrefix = "Bearer "

	authHeader := req.Header.Get(echo.HeaderAuthorization)
	if authHeader == "" {
		return errors.New("missing authorization header")
	}
	token, found := strings.CutPrefix(authHeader, bearerPrefix)
	if !found {
		return errors.New("invalid authorization header format")
	}

	// The audience is the URL of this endpoint.
	scheme := "https"
	if req.TLS == nil {
		scheme = "http"
	}
	audience := scheme + "://" + req.Host + req.URL.Path

	payload, err := idtoken.Validate(req.Context(), token, audience)
	if err != nil {
		return errors.Wrap(err, "failed to validate token")
	}

	if payload.Issuer != "accounts.google.com" && payload.Issuer != "https://accounts.google.com" {
		return errors.Errorf("invalid issuer: %s", payload.Issuer)
	}
	if emailVerified, ok := payload.Claims["email_verified"].(bool); ok && !emailVerified {
		return errors.New("email not verified")
	}

	return nil
}
