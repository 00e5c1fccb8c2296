package handler

import (
	"log/slog"
	"net/http"

	"hotspot/internal/delivery/api/response"
	"hotspot/internal/domain/entity"
	domainerrors "hotspot/internal/domain/errors"
	"hotspot/internal/usecase"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/fx"
)

// Query values of the rank endpoint.
const (
	rankKindCheckIn = "check_in"
	rankKindGoing   = "going"
)

// PresenceHandlerParams holds dependencies for PresenceHandler, injected by Fx.
type PresenceHandlerParams struct {
	fx.In

	PresenceUC usecase.PresenceUsecase
	RankUC     usecase.RankUsecase
	Logger     *slog.Logger
}

// PresenceHandler serves check-ins, going intentions and queue ranks.
type PresenceHandler struct {
	presenceUC usecase.PresenceUsecase
	rankUC     usecase.RankUsecase
	logger     *slog.Logger
}

// NewPresenceHandler is the constructor for PresenceHandler
func NewPresenceHandler(params PresenceHandlerParams) *PresenceHandler {
	return &PresenceHandler{
		presenceUC: params.PresenceUC,
		rankUC:     params.RankUC,
		logger:     params.Logger,
	}
}

// CheckInRequest represents the request body for checking in
type CheckInRequest struct {
	PlaceID uuid.UUID `json:"place_id" validate:"required"`
}

// RankResponse is the queue position of a user at a place
type RankResponse struct {
	PlaceID uuid.UUID `json:"place_id"`
	UserID  uuid.UUID `json:"user_id"`
	Kind    string    `json:"kind"`
	Rank    int       `json:"rank"`
}

// CheckIn handles POST /checkins
func (h *PresenceHandler) CheckIn(c echo.Context) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}

	var req CheckInRequest
	if ok, err := bindRequest(c, &req); !ok {
		return err
	}

	checkIn, err := h.presenceUC.CheckIn(c.Request().Context(), userID, req.PlaceID)
	if err != nil {
		return response.HandleAppError(c, err)
	}

	return response.Success(c, http.StatusCreated, checkIn)
}

// CheckOut handles DELETE /checkins
func (h *PresenceHandler) CheckOut(c echo.Context) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}

	if err := h.presenceUC.CheckOut(c.Request().Context(), userID); err != nil {
		return response.HandleAppError(c, err)
	}

	return c.NoContent(http.StatusNoContent)
}

// SetGoingIntention handles PUT /places/:placeId/going
func (h *PresenceHandler) SetGoingIntention(c echo.Context) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}
	placeID, err := uuidParam(c, "placeId")
	if err != nil {
		return err
	}

	intention, err := h.presenceUC.SetGoingIntention(c.Request().Context(), userID, placeID)
	if err != nil {
		return response.HandleAppError(c, err)
	}

	return response.Success(c, http.StatusOK, intention)
}

// ClearGoingIntention handles DELETE /places/:placeId/going
func (h *PresenceHandler) ClearGoingIntention(c echo.Context) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}
	placeID, err := uuidParam(c, "placeId")
	if err != nil {
		return err
	}

	if err := h.presenceUC.ClearGoingIntention(c.Request().Context(), userID, placeID); err != nil {
		return response.HandleAppError(c, err)
	}

	return c.NoContent(http.StatusNoContent)
}

// Rank handles GET /places/:placeId/rank?kind=check_in|going&userId=
func (h *PresenceHandler) Rank(c echo.Context) error {
	callerID, err := currentUser(c)
	if err != nil {
		return err
	}
	placeID, err := uuidParam(c, "placeId")
	if err != nil {
		return err
	}

	kindName := c.QueryParam("kind")
	var kind entity.Kind
	switch kindName {
	case "":
		kindName = rankKindCheckIn
		kind = entity.KindCheckIn
	case rankKindCheckIn:
		kind = entity.KindCheckIn
	case rankKindGoing:
		kind = entity.KindGoingIntention
	default:
		return domainerrors.ErrValidationFailed.WithDetails("kind must be check_in or going")
	}

	userID := callerID
	if raw := c.QueryParam("userId"); raw != "" {
		if userID, err = uuid.Parse(raw); err != nil {
			return domainerrors.ErrValidationFailed.WithDetails("userId must be a UUID")
		}
	}

	rank, err := h.rankUC.RankOf(c.Request().Context(), userID, placeID, kind)
	if err != nil {
		return response.HandleAppError(c, err)
	}

	return response.Success(c, http.StatusOK, RankResponse{
		PlaceID: placeID,
		UserID:  userID,
		Kind:    kindName,
		Rank:    rank,
	})
}
