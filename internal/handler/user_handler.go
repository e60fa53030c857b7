package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/shinyyama/unimarket-backend/internal/logging"
	"github.com/shinyyama/unimarket-backend/internal/service"
)

type UserHandler struct {
	svc service.UserService
	log logrus.FieldLogger
}

func NewUserHandler(svc service.UserService, log logrus.FieldLogger) *UserHandler {
	if log == nil {
		log = logging.Discard()
	}
	return &UserHandler{svc: svc, log: log}
}

type PublicUserResponse struct {
	ID   uint64 `json:"id"`
	Name string `json:"name"`
}

func (h *UserHandler) GetPublic(c echo.Context) error {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid user id"))
	}
	u, err := h.svc.GetPublic(c.Request().Context(), id)
	if err != nil {
		return writeServiceError(c, h.log, err, "failed to fetch user")
	}
	return c.JSON(http.StatusOK, PublicUserResponse{ID: u.ID, Name: u.Name})
}
