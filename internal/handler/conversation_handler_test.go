package handler_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/shinyyama/unimarket-backend/internal/handler"
	"github.com/shinyyama/unimarket-backend/internal/logging"
	appmw "github.com/shinyyama/unimarket-backend/internal/middleware"
	"github.com/shinyyama/unimarket-backend/internal/model"
	"github.com/shinyyama/unimarket-backend/internal/repository"
	"github.com/shinyyama/unimarket-backend/internal/service"
	"github.com/shinyyama/unimarket-backend/internal/testutil"
)

type fakeHub struct {
	mu       sync.Mutex
	messages []uint64
	deleted  []uint64
}

func (h *fakeHub) BroadcastMessage(convID uint64, _ any) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.messages = append(h.messages, convID)
}

func (h *fakeHub) BroadcastDeletion(convID uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.deleted = append(h.deleted, convID)
}

type env struct {
	e      *echo.Echo
	db     *gorm.DB
	hub    *fakeHub
	buyer  *model.User
	seller *model.User
	item   *model.Item
}

// asUser stands in for RequireAuth by trusting the X-Test-User header.
func asUser(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if v := c.Request().Header.Get("X-Test-User"); v != "" {
			uid, _ := strconv.ParseUint(v, 10, 64)
			c.Set(appmw.ContextKeyUID, uid)
		}
		return next(c)
	}
}

func newEnv(t *testing.T) *env {
	t.Helper()
	gdb := testutil.NewDB(t)
	log := logging.Discard()
	userRepo := repository.NewUserRepository(gdb)
	itemRepo := repository.NewItemRepository(gdb)
	notifSvc := service.NewNotificationService(repository.NewNotificationRepository(gdb), log)
	convSvc := service.NewConversationService(repository.NewConversationRepository(gdb), itemRepo, userRepo, notifSvc, nil, log)
	hub := &fakeHub{}

	h := handler.NewConversationHandler(convSvc, hub, log)
	nh := handler.NewNotificationHandler(notifSvc, log)
	e := echo.New()
	api := e.Group("/api", asUser)
	api.POST("/conversations", h.Create)
	api.GET("/conversations", h.List)
	api.GET("/conversations/:id", h.Get)
	api.DELETE("/conversations/:id", h.Delete)
	api.GET("/conversations/:id/messages", h.ListMessages)
	api.POST("/conversations/:id/messages", h.SendMessage)
	api.GET("/notifications", nh.List)
	api.POST("/notifications/read", nh.MarkAllRead)

	seller := testutil.CreateUser(t, gdb, "Bob")
	return &env{
		e:      e,
		db:     gdb,
		hub:    hub,
		buyer:  testutil.CreateUser(t, gdb, "Alice"),
		seller: seller,
		item:   testutil.CreateItem(t, gdb, "Desk lamp", seller.ID),
	}
}

func (v *env) do(t *testing.T, method, path string, uid uint64, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if uid != 0 {
		req.Header.Set("X-Test-User", strconv.FormatUint(uid, 10))
	}
	rec := httptest.NewRecorder()
	v.e.ServeHTTP(rec, req)
	return rec
}

func (v *env) create(t *testing.T) handler.ConversationResponse {
	t.Helper()
	body := `{"item_id":` + strconv.FormatUint(v.item.ID, 10) + `,"seller_id":"` + strconv.FormatUint(v.seller.ID, 10) + `"}`
	rec := v.do(t, http.MethodPost, "/api/conversations", v.buyer.ID, body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp handler.ConversationResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func convPath(id uint64, suffix string) string {
	return "/api/conversations/" + strconv.FormatUint(id, 10) + suffix
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var raw struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &raw))
	return raw.Error.Code
}

func TestCreateConversation(t *testing.T) {
	v := newEnv(t)

	first := v.create(t)
	second := v.create(t)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "Bob", first.SellerName)
	assert.Equal(t, "Alice", first.BuyerName)
	assert.Equal(t, "Bob", first.OtherUserName)
	assert.Equal(t, "Desk lamp", first.ItemTitle)
	assert.Zero(t, first.UnreadCount)
}

func TestCreateConversationBadRequests(t *testing.T) {
	v := newEnv(t)
	item := strconv.FormatUint(v.item.ID, 10)
	seller := strconv.FormatUint(v.seller.ID, 10)

	cases := []struct {
		name   string
		uid    uint64
		body   string
		status int
	}{
		{"missing seller", v.buyer.ID, `{"item_id":` + item + `}`, http.StatusBadRequest},
		{"non numeric", v.buyer.ID, `{"item_id":"abc","seller_id":` + seller + `}`, http.StatusBadRequest},
		{"self conversation", v.seller.ID, `{"item_id":` + item + `,"seller_id":` + seller + `}`, http.StatusBadRequest},
		{"unknown item", v.buyer.ID, `{"item_id":999,"seller_id":` + seller + `}`, http.StatusNotFound},
		{"unknown seller", v.buyer.ID, `{"item_id":` + item + `,"seller_id":999}`, http.StatusNotFound},
		{"unauthenticated", 0, `{"item_id":` + item + `,"seller_id":` + seller + `}`, http.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := v.do(t, http.MethodPost, "/api/conversations", tc.uid, tc.body)
			assert.Equal(t, tc.status, rec.Code, rec.Body.String())
		})
	}
}

func TestSendAndListMessages(t *testing.T) {
	v := newEnv(t)
	cv := v.create(t)

	rec := v.do(t, http.MethodPost, convPath(cv.ID, "/messages"), v.seller.ID, `{"message":"Still available"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var sent handler.MessageResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sent))
	assert.Equal(t, "Still available", sent.Message)
	assert.Equal(t, "Bob", sent.SenderName)
	assert.Equal(t, []uint64{cv.ID}, v.hub.messages)

	rec = v.do(t, http.MethodGet, "/api/conversations", v.buyer.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list []handler.ConversationResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, 1, list[0].UnreadCount)
	assert.Equal(t, "Still available", list[0].LastMessage)

	rec = v.do(t, http.MethodGet, convPath(cv.ID, "/messages"), v.buyer.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var msgs []handler.MessageResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &msgs))
	require.Len(t, msgs, 1)
	assert.Equal(t, v.seller.ID, msgs[0].SenderID)

	rec = v.do(t, http.MethodGet, convPath(cv.ID, ""), v.buyer.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var got handler.ConversationResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Zero(t, got.UnreadCount)
}

func TestMessageEndpointsRejectBadInput(t *testing.T) {
	v := newEnv(t)
	cv := v.create(t)
	stranger := testutil.CreateUser(t, v.db, "Eve")

	rec := v.do(t, http.MethodPost, convPath(cv.ID, "/messages"), v.buyer.ID, `{"message":"   "}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "bad_request", errorCode(t, rec))

	rec = v.do(t, http.MethodGet, "/api/conversations/abc/messages", v.buyer.ID, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = v.do(t, http.MethodGet, convPath(cv.ID+100, "/messages"), v.buyer.ID, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", errorCode(t, rec))

	rec = v.do(t, http.MethodGet, convPath(cv.ID, "/messages"), stranger.ID, "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "forbidden", errorCode(t, rec))

	rec = v.do(t, http.MethodPost, convPath(cv.ID, "/messages"), stranger.ID, `{"message":"hi"}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Empty(t, v.hub.messages)
}

func TestDeleteConversation(t *testing.T) {
	v := newEnv(t)
	cv := v.create(t)
	stranger := testutil.CreateUser(t, v.db, "Eve")
	rec := v.do(t, http.MethodPost, convPath(cv.ID, "/messages"), v.buyer.ID, `{"message":"hi"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = v.do(t, http.MethodDelete, convPath(cv.ID, ""), stranger.ID, "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = v.do(t, http.MethodDelete, convPath(cv.ID, ""), v.seller.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.Equal(t, []uint64{cv.ID}, v.hub.deleted)

	rec = v.do(t, http.MethodGet, convPath(cv.ID, "/messages"), v.buyer.ID, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = v.do(t, http.MethodDelete, convPath(cv.ID, ""), v.seller.ID, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestNotificationEndpoints(t *testing.T) {
	v := newEnv(t)
	cv := v.create(t)
	rec := v.do(t, http.MethodPost, convPath(cv.ID, "/messages"), v.seller.ID, `{"message":"Still available"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = v.do(t, http.MethodGet, "/api/notifications", v.buyer.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Notifications []handler.NotificationResponse `json:"notifications"`
		UnreadCount   int64                          `json:"unread_count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Notifications, 1)
	assert.Equal(t, int64(1), body.UnreadCount)
	assert.Equal(t, model.NotificationTypeMessage, body.Notifications[0].Type)

	rec = v.do(t, http.MethodPost, "/api/notifications/read", v.buyer.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = v.do(t, http.MethodGet, "/api/notifications", v.buyer.ID, "")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Empty(t, body.Notifications)
	assert.Zero(t, body.UnreadCount)
}
