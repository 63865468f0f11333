package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"ridemate/internal/models"
	"ridemate/pkg/logger"

	"github.com/gorilla/websocket"
)

const sendBuffer = 256

// Subscriber opens change feed subscriptions on behalf of a user.
type Subscriber interface {
	Subscribe(ctx context.Context, userID string, query models.SubscriptionQuery) (<-chan models.ChangeEvent, func(), error)
}

type Client struct {
	hub        *Hub
	conn       *websocket.Conn
	send       chan []byte
	UserID     string
	subscriber Subscriber
	options    Options
	logger     *logger.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu   sync.Mutex
	subs map[string]func()
	once sync.Once
}

func NewClient(hub *Hub, conn *websocket.Conn, userID string, subscriber Subscriber, options Options, log *logger.Logger) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		hub:        hub,
		conn:       conn,
		send:       make(chan []byte, sendBuffer),
		UserID:     userID,
		subscriber: subscriber,
		options:    options,
		logger:     log.WithUserID(userID),
		ctx:        ctx,
		cancel:     cancel,
		subs:       make(map[string]func()),
	}
}

// shutdown cancels every subscription and closes the connection. It is safe
// to call more than once.
func (c *Client) shutdown() {
	c.once.Do(func() {
		c.cancel()
		c.mu.Lock()
		for id, stop := range c.subs {
			stop()
			delete(c.subs, id)
		}
		c.mu.Unlock()
		c.conn.Close()
	})
}

func (c *Client) readPump() {
	defer c.hub.Unregister(c)

	c.conn.SetReadLimit(c.options.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(c.options.PongTimeout))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(c.options.PongTimeout))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.WithError(err).Warn("WebSocket read error")
			}
			return
		}
		c.handleMessage(message)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(c.options.PingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(c.options.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.options.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.ctx.Done():
			c.conn.SetWriteDeadline(time.Now().Add(c.options.WriteTimeout))
			c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

func (c *Client) handleMessage(raw []byte) {
	var msg Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		c.sendError("", "Malformed message")
		return
	}

	switch msg.Type {
	case TypeSubscribe:
		c.subscribe(msg)
	case TypeUnsubscribe:
		c.unsubscribe(msg.ID)
	default:
		c.sendError(msg.ID, "Unknown message type")
	}
}

func (c *Client) subscribe(msg Message) {
	if msg.ID == "" {
		c.sendError("", "Subscription id is required")
		return
	}
	var query models.SubscriptionQuery
	if err := json.Unmarshal(msg.Data, &query); err != nil {
		c.sendError(msg.ID, "Invalid subscription query")
		return
	}

	c.mu.Lock()
	_, exists := c.subs[msg.ID]
	c.mu.Unlock()
	if exists {
		c.sendError(msg.ID, "Subscription id already in use")
		return
	}

	events, stop, err := c.subscriber.Subscribe(c.ctx, c.UserID, query)
	if err != nil {
		c.sendError(msg.ID, publicMessage(err))
		return
	}

	c.mu.Lock()
	c.subs[msg.ID] = stop
	c.mu.Unlock()

	c.sendMessage(TypeSubscribed, msg.ID, query)
	go c.forward(msg.ID, events)
}

// forward relays events until the feed closes the channel, either because
// the subscription was cancelled or because it fell too far behind.
func (c *Client) forward(id string, events <-chan models.ChangeEvent) {
	for ev := range events {
		c.sendMessage(TypeChange, id, ev)
	}

	c.mu.Lock()
	stop, active := c.subs[id]
	delete(c.subs, id)
	c.mu.Unlock()
	if active {
		stop()
		c.sendMessage(TypeUnsubscribed, id, map[string]interface{}{"reason": "subscription closed by server"})
	}
}

func (c *Client) unsubscribe(id string) {
	c.mu.Lock()
	stop, ok := c.subs[id]
	delete(c.subs, id)
	c.mu.Unlock()

	if !ok {
		c.sendError(id, "Unknown subscription")
		return
	}
	stop()
	c.sendMessage(TypeUnsubscribed, id, nil)
}

func (c *Client) sendError(id, message string) {
	c.sendMessage(TypeError, id, map[string]interface{}{"message": message})
}

func (c *Client) sendMessage(msgType, id string, data interface{}) {
	payload, err := json.Marshal(data)
	if err != nil {
		c.logger.WithError(err).Error("Failed to encode websocket payload")
		return
	}
	out, err := json.Marshal(Message{
		Type:      msgType,
		ID:        id,
		Timestamp: getCurrentTimestamp(),
		Data:      payload,
	})
	if err != nil {
		c.logger.WithError(err).Error("Failed to encode websocket message")
		return
	}
	c.enqueue(out)
}

// enqueue never blocks: a client that cannot keep up is disconnected.
func (c *Client) enqueue(data []byte) {
	select {
	case <-c.ctx.Done():
	case c.send <- data:
	default:
		c.logger.Warn("WebSocket client too slow, disconnecting")
		go c.shutdown()
	}
}
