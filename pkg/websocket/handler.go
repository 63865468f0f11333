package websocket

import (
	"errors"
	"net/http"
	"time"

	"ridemate/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

type Options struct {
	ReadBufferSize    int
	WriteBufferSize   int
	HandshakeTimeout  time.Duration
	PingInterval      time.Duration
	PongTimeout       time.Duration
	WriteTimeout      time.Duration
	MaxMessageSize    int64
	MaxConnections    int
	EnableCompression bool
	AllowedOrigins    []string
}

func (o *Options) setDefaults() {
	if o.PongTimeout <= 0 {
		o.PongTimeout = 60 * time.Second
	}
	if o.PingInterval <= 0 || o.PingInterval >= o.PongTimeout {
		o.PingInterval = (o.PongTimeout * 9) / 10
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 10 * time.Second
	}
	if o.MaxMessageSize <= 0 {
		o.MaxMessageSize = 4096
	}
}

type Handler struct {
	hub        *Hub
	subscriber Subscriber
	upgrader   websocket.Upgrader
	options    Options
	logger     *logger.Logger
}

func NewHandler(hub *Hub, subscriber Subscriber, options Options, log *logger.Logger) *Handler {
	options.setDefaults()
	return &Handler{
		hub:        hub,
		subscriber: subscriber,
		options:    options,
		logger:     log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:    options.ReadBufferSize,
			WriteBufferSize:   options.WriteBufferSize,
			HandshakeTimeout:  options.HandshakeTimeout,
			EnableCompression: options.EnableCompression,
			CheckOrigin:       originChecker(options.AllowedOrigins),
		},
	}
}

// HandleWebSocket upgrades an authenticated request. The auth middleware
// must have stored the caller's id under "user_id".
func (h *Handler) HandleWebSocket(c *gin.Context) {
	userID := c.GetString("user_id")
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}
	if h.options.MaxConnections > 0 && h.hub.ClientCount() >= h.options.MaxConnections {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Too many connections"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.WithError(err).Warn("WebSocket upgrade failed")
		return
	}

	client := NewClient(h.hub, conn, userID, h.subscriber, h.options, h.logger)
	if !h.hub.Register(client) {
		client.shutdown()
		return
	}

	go client.writePump()
	go client.readPump()
}

func originChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		set[o] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || set[origin]
	}
}

// publicError is implemented by errors whose message may be shown to clients.
type publicError interface {
	PublicMessage() string
}

func publicMessage(err error) string {
	var pe publicError
	if errors.As(err, &pe) {
		return pe.PublicMessage()
	}
	return "Subscription failed"
}
