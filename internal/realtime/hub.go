package realtime

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/shinyyama/unimarket-backend/internal/logging"
	"github.com/shinyyama/unimarket-backend/internal/observability"
)

const (
	EventMessage             = "message"
	EventConversationDeleted = "conversation_deleted"

	writeWait = 10 * time.Second
)

// Conn is the subset of *websocket.Conn the hub writes to.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

type Event struct {
	Type           string `json:"type"`
	ConversationID uint64 `json:"conversation_id"`
	Message        any    `json:"message,omitempty"`
}

// Client is one websocket subscribed to a conversation room.
type Client struct {
	ID          string
	UserID      uint64
	ConnectedAt time.Time

	conn Conn
	mu   sync.Mutex // gorilla connections allow one concurrent writer
}

func NewClient(conn Conn, userID uint64) *Client {
	return &Client{ID: uuid.NewString(), UserID: userID, ConnectedAt: time.Now(), conn: conn}
}

func (c *Client) write(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, payload)
}

// Ping sends a websocket ping; browsers answer it with a pong automatically.
func (c *Client) Ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

// Hub maintains active websocket rooms keyed by conversation id.
type Hub struct {
	rooms map[uint64]map[*Client]struct{}
	mu    sync.RWMutex
	log   logrus.FieldLogger
}

func NewHub(log logrus.FieldLogger) *Hub {
	if log == nil {
		log = logging.Discard()
	}
	return &Hub{rooms: make(map[uint64]map[*Client]struct{}), log: log}
}

func (h *Hub) Add(convID uint64, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.rooms[convID]; !ok {
		h.rooms[convID] = make(map[*Client]struct{})
	}
	h.rooms[convID][c] = struct{}{}
}

func (h *Hub) Remove(convID uint64, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if clients, ok := h.rooms[convID]; ok {
		delete(clients, c)
		if len(clients) == 0 {
			delete(h.rooms, convID)
		}
	}
}

// RoomSize reports the number of clients subscribed to convID.
func (h *Hub) RoomSize(convID uint64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[convID])
}

func (h *Hub) BroadcastMessage(convID uint64, msg any) {
	h.broadcast(convID, Event{Type: EventMessage, ConversationID: convID, Message: msg})
}

// BroadcastDeletion notifies the room and then closes it.
func (h *Hub) BroadcastDeletion(convID uint64) {
	h.broadcast(convID, Event{Type: EventConversationDeleted, ConversationID: convID})

	h.mu.Lock()
	clients := h.rooms[convID]
	delete(h.rooms, convID)
	h.mu.Unlock()
	for c := range clients {
		_ = c.conn.Close()
	}
}

func (h *Hub) broadcast(convID uint64, ev Event) {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.rooms[convID]))
	for c := range h.rooms[convID] {
		clients = append(clients, c)
	}
	h.mu.RUnlock()
	if len(clients) == 0 {
		return
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		h.log.WithError(err).Error("websocket event marshal failed")
		return
	}
	for _, c := range clients {
		if err := c.write(payload); err != nil {
			h.log.WithError(err).WithFields(logrus.Fields{
				"conversation_id": convID,
				"conn_id":         c.ID,
				"user_id":         c.UserID,
				"duration_ms":     time.Since(c.ConnectedAt).Milliseconds(),
			}).Warn("websocket write error")
			_ = c.conn.Close()
			h.Remove(convID, c)
			observability.IncWSEvent("ws_error")
			continue
		}
		observability.IncWSEvent(ev.Type)
	}
}
