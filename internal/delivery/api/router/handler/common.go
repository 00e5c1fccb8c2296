// Package handler translates HTTP requests into use case calls.
package handler

import (
	"net/http"

	"hotspot/internal/delivery/api/response"
	"hotspot/internal/delivery/api/validator"
	deliverycontext "hotspot/internal/delivery/context"
	domainerrors "hotspot/internal/domain/errors"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// HealthCheck reports that the process is serving.
func HealthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func currentUser(c echo.Context) (uuid.UUID, error) {
	userID, ok := deliverycontext.GetUserID(c)
	if !ok || userID == uuid.Nil {
		return uuid.Nil, domainerrors.ErrNotAuthenticated
	}

	return userID, nil
}

func uuidParam(c echo.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, domainerrors.ErrValidationFailed.WithDetails(name + " must be a UUID")
	}

	return id, nil
}

// bindRequest binds and validates the body. A non-nil error has already been rendered
// and should be returned as is.
func bindRequest(c echo.Context, req any) (bool, error) {
	if err := c.Bind(req); err != nil {
		return false, response.BadRequest(c, "INVALID_INPUT", "Malformed request body")
	}
	if err := c.Validate(req); err != nil {
		return false, response.BadRequestWithDetails(c, "VALIDATION_FAILED", "Request validation failed", validator.FieldErrors(err))
	}

	return true, nil
}
