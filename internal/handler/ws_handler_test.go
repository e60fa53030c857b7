package handler_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shinyyama/unimarket-backend/internal/handler"
	"github.com/shinyyama/unimarket-backend/internal/logging"
	"github.com/shinyyama/unimarket-backend/internal/realtime"
	"github.com/shinyyama/unimarket-backend/internal/repository"
	"github.com/shinyyama/unimarket-backend/internal/service"
	"github.com/shinyyama/unimarket-backend/internal/testutil"
)

func TestIdleSubscriberKeepsReceivingEvents(t *testing.T) {
	gdb := testutil.NewDB(t)
	log := logging.Discard()
	convSvc := service.NewConversationService(
		repository.NewConversationRepository(gdb),
		repository.NewItemRepository(gdb),
		repository.NewUserRepository(gdb),
		nil, nil, log,
	)
	seller := testutil.CreateUser(t, gdb, "Bob")
	buyer := testutil.CreateUser(t, gdb, "Alice")
	item := testutil.CreateItem(t, gdb, "Desk lamp", seller.ID)
	cv, err := convSvc.CreateOrGet(context.Background(), item.ID, seller.ID, buyer.ID)
	require.NoError(t, err)

	const pongWait = 200 * time.Millisecond
	hub := realtime.NewHub(log)
	wsh := handler.NewWSHandler(convSvc, hub, nil, log, handler.WithPongWait(pongWait))
	e := echo.New()
	e.GET("/api/conversations/:id/ws", wsh.Subscribe, asUser)
	ts := httptest.NewServer(e)
	defer ts.Close()

	header := http.Header{}
	header.Set("X-Test-User", strconv.FormatUint(buyer.ID, 10))
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/conversations/" + strconv.FormatUint(cv.ID, 10) + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, header)
	require.NoError(t, err)
	defer conn.Close()

	// a browser never writes on its own but always answers pings while reading
	frames := make(chan []byte, 1)
	go func() {
		defer close(frames)
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			frames <- data
		}
	}()

	require.Eventually(t, func() bool { return hub.RoomSize(cv.ID) == 1 }, 2*time.Second, 10*time.Millisecond)
	time.Sleep(3 * pongWait)
	require.Equal(t, 1, hub.RoomSize(cv.ID), "idle subscriber was dropped")

	hub.BroadcastMessage(cv.ID, map[string]string{"message": "Still available"})

	select {
	case data, ok := <-frames:
		require.True(t, ok, "connection closed before the event arrived")
		assert.Contains(t, string(data), realtime.EventMessage)
		assert.Contains(t, string(data), "Still available")
	case <-time.After(2 * time.Second):
		t.Fatal("no event received")
	}
}
