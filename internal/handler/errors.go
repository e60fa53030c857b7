package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/shinyyama/unimarket-backend/internal/logging"
	"github.com/shinyyama/unimarket-backend/internal/middleware"
	"github.com/shinyyama/unimarket-backend/internal/service"
)

// writeServiceError renders err as the JSON error envelope. Anything that is
// not a known service error is logged and answered with fallback.
func writeServiceError(c echo.Context, log logrus.FieldLogger, err error, fallback string) error {
	var svcErr *service.Error
	msg := err.Error()
	if !errors.As(err, &svcErr) {
		msg = fallback
	}
	switch {
	case errors.Is(err, service.ErrValidation):
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", msg))
	case errors.Is(err, service.ErrForbidden):
		return c.JSON(http.StatusForbidden, NewErrorResponse("forbidden", msg))
	case errors.Is(err, service.ErrNotFound):
		return c.JSON(http.StatusNotFound, NewErrorResponse("not_found", msg))
	}
	logging.FromContext(c.Request().Context(), log).WithError(err).Error(fallback)
	return c.JSON(http.StatusInternalServerError, NewErrorResponse("internal_error", fallback))
}

func requireUID(c echo.Context) (uint64, error) {
	uid := middleware.UID(c)
	if uid == 0 {
		return 0, c.JSON(http.StatusUnauthorized, NewErrorResponse("unauthorized", "missing uid"))
	}
	return uid, nil
}

func parseIDParam(c echo.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return id, true
}
