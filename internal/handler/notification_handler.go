package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/shinyyama/unimarket-backend/internal/logging"
	"github.com/shinyyama/unimarket-backend/internal/model"
	"github.com/shinyyama/unimarket-backend/internal/service"
)

type NotificationHandler struct {
	svc service.NotificationService
	log logrus.FieldLogger
}

func NewNotificationHandler(svc service.NotificationService, log logrus.FieldLogger) *NotificationHandler {
	if log == nil {
		log = logging.Discard()
	}
	return &NotificationHandler{svc: svc, log: log}
}

type NotificationResponse struct {
	ID             uint64  `json:"id"`
	Type           string  `json:"type"`
	Title          string  `json:"title"`
	Body           string  `json:"body"`
	ItemID         *uint64 `json:"item_id,omitempty"`
	ConversationID *uint64 `json:"conversation_id,omitempty"`
	Read           bool    `json:"read"`
	CreatedAt      string  `json:"created_at"`
}

func toNotificationResponse(n model.Notification) NotificationResponse {
	return NotificationResponse{
		ID:             n.ID,
		Type:           n.Type,
		Title:          n.Title,
		Body:           n.Body,
		ItemID:         n.ItemID,
		ConversationID: n.ConversationID,
		Read:           n.ReadAt != nil,
		CreatedAt:      n.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func (h *NotificationHandler) List(c echo.Context) error {
	uid, err := requireUID(c)
	if uid == 0 {
		return err
	}
	unreadOnly := c.QueryParam("unread_only") != "false"
	limit := 20
	if lStr := c.QueryParam("limit"); lStr != "" {
		if lParsed, err := strconv.Atoi(lStr); err == nil && lParsed > 0 {
			limit = lParsed
		}
	}
	list, unreadCount, err := h.svc.List(c.Request().Context(), uid, unreadOnly, limit)
	if err != nil {
		return writeServiceError(c, h.log, err, "failed to fetch notifications")
	}
	resp := make([]NotificationResponse, 0, len(list))
	for _, n := range list {
		resp = append(resp, toNotificationResponse(n))
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"notifications": resp,
		"unread_count":  unreadCount,
	})
}

func (h *NotificationHandler) MarkAllRead(c echo.Context) error {
	uid, err := requireUID(c)
	if uid == 0 {
		return err
	}
	if err := h.svc.MarkAllRead(c.Request().Context(), uid); err != nil {
		return writeServiceError(c, h.log, err, "failed to mark read")
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
