package ws

import (
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"PatternFlow/internal/broadcast"
	"PatternFlow/internal/domain/repository"
	applogger "PatternFlow/pkg/logger"
)

// HubOption configures Hub.
type HubOption func(*Hub)

// WithQueueSize sets each connection's bounded outbound queue.
func WithQueueSize(n int) HubOption {
	return func(h *Hub) {
		if n > 0 {
			h.queueSize = n
		}
	}
}

// WithMaxConnections caps concurrent connections; beyond it upgrades are
// refused with 503.
func WithMaxConnections(n int) HubOption {
	return func(h *Hub) {
		if n > 0 {
			h.maxConns = n
		}
	}
}

// Hub owns the WebSocket endpoint: it upgrades requests, tracks live
// connections for shutdown, and hands room membership to the registry.
type Hub struct {
	reg       *broadcast.Registry
	metrics   repository.Metrics
	logger    *applogger.Logger
	upgrader  websocket.Upgrader
	queueSize int
	maxConns  int

	mu      sync.Mutex
	clients map[string]*Client
	pending int
}

func NewHub(reg *broadcast.Registry, metrics repository.Metrics, logger *applogger.Logger, opts ...HubOption) *Hub {
	h := &Hub{
		reg:     reg,
		metrics: metrics,
		logger:  logger.With("ws"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		queueSize: 64,
		maxConns:  4096,
		clients:   make(map[string]*Client),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// ServeWS upgrades the request and runs the connection's pumps. The slot is
// reserved before the handshake so concurrent upgrades cannot overshoot the
// connection cap.
func (h *Hub) ServeWS(c echo.Context) error {
	h.mu.Lock()
	if len(h.clients)+h.pending >= h.maxConns {
		h.mu.Unlock()
		h.metrics.RecordError("connection_limit")
		return c.NoContent(http.StatusServiceUnavailable)
	}
	h.pending++
	h.mu.Unlock()

	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.mu.Lock()
		h.pending--
		h.mu.Unlock()
		h.metrics.RecordError("ws_upgrade")
		return nil // upgrader already wrote the response
	}

	client := newClient(uuid.NewString(), conn, h.reg, h.metrics, h.logger, h.queueSize, h.forget)

	h.mu.Lock()
	h.pending--
	h.clients[client.id] = client
	n := len(h.clients)
	h.mu.Unlock()

	h.logger.Info("client connected", applogger.String("conn", client.id), applogger.Int("live", n))

	go client.writePump()
	go client.readPump()
	return nil
}

func (h *Hub) forget(c *Client) {
	h.mu.Lock()
	delete(h.clients, c.id)
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Info("client disconnected", applogger.String("conn", c.id), applogger.Int("live", n))
}

// Len returns the number of live connections.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// CloseAll tears down every live connection. Used on shutdown after the
// final flush.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		h.reg.Purge(c.id)
		_ = c.Close()
	}
}
