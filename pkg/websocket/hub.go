package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"ridemate/pkg/logger"
)

// Hub tracks the open connections, grouped by user.
type Hub struct {
	clients    map[*Client]bool
	users      map[string]map[*Client]bool
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	mutex      sync.RWMutex
	logger     *logger.Logger
}

// Message is the envelope exchanged in both directions.
type Message struct {
	Type      string          `json:"type"`
	ID        string          `json:"id,omitempty"`
	Timestamp int64           `json:"timestamp,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
}

const (
	TypeWelcome      = "welcome"
	TypeSubscribe    = "subscribe"
	TypeSubscribed   = "subscribed"
	TypeUnsubscribe  = "unsubscribe"
	TypeUnsubscribed = "unsubscribed"
	TypeChange       = "change"
	TypeError        = "error"
)

func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		users:      make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		logger:     log,
	}
}

// Run serves register and unregister requests until ctx is done, then closes
// every remaining connection.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case <-ctx.Done():
			close(h.done)
			h.closeAll()
			return
		}
	}
}

// Register hands client to the hub. It reports false once the hub stopped.
func (h *Hub) Register(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
		client.shutdown()
	}
}

func (h *Hub) registerClient(client *Client) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	h.clients[client] = true
	if h.users[client.UserID] == nil {
		h.users[client.UserID] = make(map[*Client]bool)
	}
	h.users[client.UserID][client] = true

	h.logger.WithUserID(client.UserID).Debug("WebSocket client registered")
	client.sendMessage(TypeWelcome, "", map[string]interface{}{"message": "Connected successfully"})
}

func (h *Hub) unregisterClient(client *Client) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	if conns := h.users[client.UserID]; conns != nil {
		delete(conns, client)
		if len(conns) == 0 {
			delete(h.users, client.UserID)
		}
	}
	client.shutdown()

	h.logger.WithUserID(client.UserID).Debug("WebSocket client unregistered")
}

func (h *Hub) closeAll() {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	for client := range h.clients {
		client.shutdown()
	}
	h.clients = make(map[*Client]bool)
	h.users = make(map[string]map[*Client]bool)
}

func (h *Hub) ClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

func (h *Hub) UserConnections(userID string) int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.users[userID])
}

func getCurrentTimestamp() int64 {
	return time.Now().UnixMilli()
}
