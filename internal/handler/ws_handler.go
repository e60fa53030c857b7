package handler

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/shinyyama/unimarket-backend/internal/logging"
	"github.com/shinyyama/unimarket-backend/internal/observability"
	"github.com/shinyyama/unimarket-backend/internal/realtime"
	"github.com/shinyyama/unimarket-backend/internal/service"
)

const defaultPongWait = 60 * time.Second

type WSHandler struct {
	svc      service.ConversationService
	hub      *realtime.Hub
	log      logrus.FieldLogger
	upgrader websocket.Upgrader
	pongWait time.Duration
}

type WSOption func(*WSHandler)

// WithPongWait sets how long a connection may stay silent before it is dropped.
// Pings go out at nine tenths of that interval.
func WithPongWait(d time.Duration) WSOption {
	return func(h *WSHandler) {
		if d > 0 {
			h.pongWait = d
		}
	}
}

// NewWSHandler accepts upgrades from allowedOrigins; "*" or an empty list allows any origin.
func NewWSHandler(svc service.ConversationService, hub *realtime.Hub, allowedOrigins []string, log logrus.FieldLogger, opts ...WSOption) *WSHandler {
	if log == nil {
		log = logging.Discard()
	}
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = struct{}{}
	}
	_, anyOrigin := allowed["*"]
	h := &WSHandler{
		svc:      svc,
		hub:      hub,
		log:      log,
		pongWait: defaultPongWait,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" || anyOrigin || len(allowed) == 0 {
					return true
				}
				_, ok := allowed[origin]
				return ok
			},
		},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Subscribe streams message and deletion events of one conversation to a participant.
func (h *WSHandler) Subscribe(c echo.Context) error {
	uid, err := requireUID(c)
	if uid == 0 {
		return err
	}
	convID, ok := parseIDParam(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid conversation id"))
	}
	if _, err := h.svc.Get(c.Request().Context(), convID, uid); err != nil {
		return writeServiceError(c, h.log, err, "failed to fetch conversation")
	}

	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// the upgrader has already written the handshake error
		h.log.WithError(err).WithField("conversation_id", convID).Warn("websocket upgrade failed")
		return nil
	}
	client := realtime.NewClient(conn, uid)
	h.hub.Add(convID, client)
	observability.IncWSActive()
	observability.IncWSEvent("connect")

	entry := h.log.WithFields(logrus.Fields{
		"conversation_id": convID,
		"user_id":         uid,
		"conn_id":         client.ID,
	})
	entry.Info("websocket connected")

	defer func() {
		h.hub.Remove(convID, client)
		_ = conn.Close()
		observability.DecWSActive()
		observability.IncWSEvent("disconnect")
		entry.WithField("duration_ms", time.Since(client.ConnectedAt).Milliseconds()).Info("websocket disconnected")
	}()

	_ = conn.SetReadDeadline(time.Now().Add(h.pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(h.pongWait))
	})

	done := make(chan struct{})
	defer close(done)
	go h.keepAlive(client, entry, done)

	// clients only listen; inbound frames just keep the connection alive
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				entry.WithError(err).Warn("websocket read error")
			}
			return nil
		}
		_ = conn.SetReadDeadline(time.Now().Add(h.pongWait))
	}
}

// keepAlive pings the client until done is closed; each pong extends the read deadline.
func (h *WSHandler) keepAlive(client *realtime.Client, entry logrus.FieldLogger, done <-chan struct{}) {
	ticker := time.NewTicker(h.pongWait * 9 / 10)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := client.Ping(); err != nil {
				entry.WithError(err).Debug("websocket ping failed")
				return
			}
		}
	}
}
