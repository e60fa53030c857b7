package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/shinyyama/unimarket-backend/internal/logging"
	"github.com/shinyyama/unimarket-backend/internal/service"
)

// Broadcaster pushes conversation events to connected websocket clients.
type Broadcaster interface {
	BroadcastMessage(convID uint64, msg any)
	BroadcastDeletion(convID uint64)
}

type ConversationHandler struct {
	svc service.ConversationService
	hub Broadcaster
	log logrus.FieldLogger
}

func NewConversationHandler(svc service.ConversationService, hub Broadcaster, log logrus.FieldLogger) *ConversationHandler {
	if log == nil {
		log = logging.Discard()
	}
	return &ConversationHandler{svc: svc, hub: hub, log: log}
}

type ConversationResponse struct {
	ID                uint64 `json:"id"`
	ItemID            uint64 `json:"item_id"`
	ItemTitle         string `json:"item_title"`
	BuyerID           uint64 `json:"buyer_id"`
	SellerID          uint64 `json:"seller_id"`
	OtherUserName     string `json:"other_user_name"`
	SellerName        string `json:"seller_name"`
	BuyerName         string `json:"buyer_name"`
	LastMessage       string `json:"last_message"`
	UnreadCount       int    `json:"unread_count"`
	SellerUnreadCount int    `json:"seller_unread_count"`
	MyUnreadCount     int    `json:"my_unread_count"`
	CreatedAt         string `json:"created_at"`
	UpdatedAt         string `json:"updated_at"`
}

type MessageResponse struct {
	ID             uint64 `json:"id"`
	ConversationID uint64 `json:"conversation_id"`
	SenderID       uint64 `json:"sender_id"`
	SenderName     string `json:"sender_name"`
	Message        string `json:"message"`
	Read           bool   `json:"read"`
	CreatedAt      string `json:"created_at"`
}

// flexID accepts both 12 and "12".
type flexID uint64

func (f *flexID) UnmarshalJSON(b []byte) error {
	b = bytes.Trim(b, `"`)
	if len(b) == 0 || string(b) == "null" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseUint(string(b), 10, 64)
	if err != nil {
		return err
	}
	*f = flexID(v)
	return nil
}

type CreateConversationRequest struct {
	ItemID   flexID `json:"item_id"`
	SellerID flexID `json:"seller_id"`
}

type SendMessageRequest struct {
	Message string `json:"message"`
}

func toConversationResponse(v service.ConversationView) ConversationResponse {
	return ConversationResponse{
		ID:                v.ID,
		ItemID:            v.ItemID,
		ItemTitle:         v.ItemTitle,
		BuyerID:           v.BuyerID,
		SellerID:          v.SellerID,
		OtherUserName:     v.OtherUserName,
		SellerName:        v.SellerName,
		BuyerName:         v.BuyerName,
		LastMessage:       v.LastMessage,
		UnreadCount:       v.UnreadCount,
		SellerUnreadCount: v.SellerUnreadCount,
		MyUnreadCount:     v.MyUnreadCount,
		CreatedAt:         v.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:         v.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func toMessageResponse(v service.MessageView) MessageResponse {
	return MessageResponse{
		ID:             v.ID,
		ConversationID: v.ConversationID,
		SenderID:       v.SenderID,
		SenderName:     v.SenderName,
		Message:        v.Body,
		Read:           v.Read,
		CreatedAt:      v.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func (h *ConversationHandler) Create(c echo.Context) error {
	uid, err := requireUID(c)
	if uid == 0 {
		return err
	}
	var req CreateConversationRequest
	if err := json.NewDecoder(c.Request().Body).Decode(&req); err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "item_id and seller_id must be numeric"))
	}
	if req.ItemID == 0 || req.SellerID == 0 {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "item_id and seller_id are required"))
	}
	cv, err := h.svc.CreateOrGet(c.Request().Context(), uint64(req.ItemID), uint64(req.SellerID), uid)
	if err != nil {
		return writeServiceError(c, h.log, err, "failed to create conversation")
	}
	return c.JSON(http.StatusOK, toConversationResponse(*cv))
}

func (h *ConversationHandler) List(c echo.Context) error {
	uid, err := requireUID(c)
	if uid == 0 {
		return err
	}
	convs, err := h.svc.ListByUser(c.Request().Context(), uid)
	if err != nil {
		return writeServiceError(c, h.log, err, "failed to fetch conversations")
	}
	resp := make([]ConversationResponse, 0, len(convs))
	for _, cv := range convs {
		resp = append(resp, toConversationResponse(cv))
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *ConversationHandler) Get(c echo.Context) error {
	uid, err := requireUID(c)
	if uid == 0 {
		return err
	}
	convID, ok := parseIDParam(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid conversation id"))
	}
	cv, err := h.svc.Get(c.Request().Context(), convID, uid)
	if err != nil {
		return writeServiceError(c, h.log, err, "failed to fetch conversation")
	}
	return c.JSON(http.StatusOK, toConversationResponse(*cv))
}

func (h *ConversationHandler) ListMessages(c echo.Context) error {
	uid, err := requireUID(c)
	if uid == 0 {
		return err
	}
	convID, ok := parseIDParam(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid conversation id"))
	}
	msgs, err := h.svc.ListMessages(c.Request().Context(), convID, uid)
	if err != nil {
		return writeServiceError(c, h.log, err, "failed to fetch messages")
	}
	resp := make([]MessageResponse, 0, len(msgs))
	for _, m := range msgs {
		resp = append(resp, toMessageResponse(m))
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *ConversationHandler) SendMessage(c echo.Context) error {
	uid, err := requireUID(c)
	if uid == 0 {
		return err
	}
	convID, ok := parseIDParam(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid conversation id"))
	}
	var req SendMessageRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid json"))
	}
	msg, err := h.svc.SendMessage(c.Request().Context(), convID, uid, req.Message)
	if err != nil {
		return writeServiceError(c, h.log, err, "failed to send message")
	}
	resp := toMessageResponse(*msg)
	if h.hub != nil {
		h.hub.BroadcastMessage(convID, resp)
	}
	return c.JSON(http.StatusCreated, resp)
}

func (h *ConversationHandler) Delete(c echo.Context) error {
	uid, err := requireUID(c)
	if uid == 0 {
		return err
	}
	convID, ok := parseIDParam(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid conversation id"))
	}
	if err := h.svc.Delete(c.Request().Context(), convID, uid); err != nil {
		return writeServiceError(c, h.log, err, "failed to delete conversation")
	}
	if h.hub != nil {
		h.hub.BroadcastDeletion(convID)
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
