package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shinyyama/unimarket-backend/internal/realtime"
	"github.com/shinyyama/unimarket-backend/internal/testutil"
)

func TestWebsocketReceivesConversationEvents(t *testing.T) {
	srv, token := newTestServer(t)
	seller := testutil.CreateUser(t, srv.db, "seller")
	buyer := testutil.CreateUser(t, srv.db, "buyer")
	item := testutil.CreateItem(t, srv.db, "Mini fridge", seller.ID)

	rec := call(srv, http.MethodPost, "/api/conversations", token(buyer.ID),
		`{"item_id":`+strconv.FormatUint(item.ID, 10)+`,"seller_id":`+strconv.FormatUint(seller.ID, 10)+`}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var cv struct {
		ID uint64 `json:"id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cv))

	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") +
		"/api/conversations/" + strconv.FormatUint(cv.ID, 10) + "/ws?token=" + token(buyer.ID)

	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()
	assert.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)
	require.Eventually(t, func() bool { return srv.hub.RoomSize(cv.ID) == 1 }, 2*time.Second, 10*time.Millisecond)

	rec = call(srv, http.MethodPost, "/api/conversations/"+strconv.FormatUint(cv.ID, 10)+"/messages", token(seller.ID), `{"message":"Still available"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var ev struct {
		Type           string `json:"type"`
		ConversationID uint64 `json:"conversation_id"`
		Message        struct {
			Message    string `json:"message"`
			SenderName string `json:"sender_name"`
		} `json:"message"`
	}
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, realtime.EventMessage, ev.Type)
	assert.Equal(t, cv.ID, ev.ConversationID)
	assert.Equal(t, "Still available", ev.Message.Message)
	assert.Equal(t, "seller", ev.Message.SenderName)

	rec = call(srv, http.MethodDelete, "/api/conversations/"+strconv.FormatUint(cv.ID, 10), token(seller.ID), "")
	require.Equal(t, http.StatusOK, rec.Code)
	var del struct {
		Type string `json:"type"`
	}
	require.NoError(t, conn.ReadJSON(&del))
	assert.Equal(t, realtime.EventConversationDeleted, del.Type)
}

func TestWebsocketRejectsStrangers(t *testing.T) {
	srv, token := newTestServer(t)
	seller := testutil.CreateUser(t, srv.db, "seller")
	buyer := testutil.CreateUser(t, srv.db, "buyer")
	stranger := testutil.CreateUser(t, srv.db, "stranger")
	item := testutil.CreateItem(t, srv.db, "Mini fridge", seller.ID)
	rec := call(srv, http.MethodPost, "/api/conversations", token(buyer.ID),
		`{"item_id":`+strconv.FormatUint(item.ID, 10)+`,"seller_id":`+strconv.FormatUint(seller.ID, 10)+`}`)
	require.Equal(t, http.StatusOK, rec.Code)

	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/conversations/1/ws?token=" + token(stranger.ID)

	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}
