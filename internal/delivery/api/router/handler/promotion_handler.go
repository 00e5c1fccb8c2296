package handler

import (
	"log/slog"
	"net/http"

	"hotspot/internal/delivery/api/response"
	"hotspot/internal/domain/entity"
	"hotspot/internal/usecase"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/fx"
)

// PromotionHandlerParams holds dependencies for PromotionHandler, injected by Fx.
type PromotionHandlerParams struct {
	fx.In

	PromotionUC usecase.PromotionUsecase
	Logger      *slog.Logger
}

// PromotionHandler serves promotion claims and stats.
type PromotionHandler struct {
	promotionUC usecase.PromotionUsecase
	logger      *slog.Logger
}

// NewPromotionHandler is the constructor for PromotionHandler
func NewPromotionHandler(params PromotionHandlerParams) *PromotionHandler {
	return &PromotionHandler{
		promotionUC: params.PromotionUC,
		logger:      params.Logger,
	}
}

// ClaimStateResponse is the claim state of the caller for a promotion
type ClaimStateResponse struct {
	PromotionID uuid.UUID         `json:"promotion_id"`
	State       entity.ClaimState `json:"state"`
}

// ClaimPromotion handles POST /promotions/:id/claims.
// A lost claim is a successful request whose status is "lost".
func (h *PromotionHandler) ClaimPromotion(c echo.Context) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}
	promotionID, err := uuidParam(c, "id")
	if err != nil {
		return err
	}

	result, err := h.promotionUC.ClaimPromotion(c.Request().Context(), userID, promotionID)
	if err != nil {
		return response.HandleAppError(c, err)
	}

	return response.Success(c, http.StatusOK, result)
}

// ClaimState handles GET /promotions/:id/claims/state
func (h *PromotionHandler) ClaimState(c echo.Context) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}
	promotionID, err := uuidParam(c, "id")
	if err != nil {
		return err
	}

	return response.Success(c, http.StatusOK, ClaimStateResponse{
		PromotionID: promotionID,
		State:       h.promotionUC.ClaimState(promotionID, userID),
	})
}

// CurrentClaims handles GET /claims
func (h *PromotionHandler) CurrentClaims(c echo.Context) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}

	claims, err := h.promotionUC.CurrentClaims(c.Request().Context(), userID)
	if err != nil {
		return response.HandleAppError(c, err)
	}

	return response.Success(c, http.StatusOK, claims)
}

// PromotionStats handles GET /promotions/:id/stats
func (h *PromotionHandler) PromotionStats(c echo.Context) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}
	promotionID, err := uuidParam(c, "id")
	if err != nil {
		return err
	}

	stats, err := h.promotionUC.PromotionStats(c.Request().Context(), userID, promotionID)
	if err != nil {
		return response.HandleAppError(c, err)
	}

	return response.Success(c, http.StatusOK, stats)
}
