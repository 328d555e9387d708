package ws

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"PatternFlow/internal/broadcast"
	"PatternFlow/internal/domain/models"
	"PatternFlow/internal/domain/repository"
	applogger "PatternFlow/pkg/logger"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

var (
	// ErrSlowConsumer means the outbound queue is full. Treated the same as
	// a failed write: the connection gets purged rather than blocking the
	// broadcast to other members.
	ErrSlowConsumer = errors.New("ws: outbound queue full")
	ErrClosed       = errors.New("ws: connection closed")
)

// controlFrame is a client request on the persistent connection.
type controlFrame struct {
	Action string `json:"action"` // join | leave
	Topic  string `json:"topic"`
}

// pushFrame is everything the server sends: batches plus join/leave acks.
type pushFrame struct {
	Type   string                 `json:"type"` // batch | joined | left | error
	Topic  string                 `json:"topic,omitempty"`
	Events []*models.PatternEvent `json:"events,omitempty"`
	Error  string                 `json:"error,omitempty"`
}

// Client is one WebSocket connection. The read pump handles join/leave
// frames; the write pump owns all writes so a slow socket never blocks the
// broadcaster, only its own bounded queue.
type Client struct {
	id      string
	conn    *websocket.Conn
	send    chan pushFrame
	reg     *broadcast.Registry
	metrics repository.Metrics
	logger  *applogger.Logger

	done      chan struct{}
	closeOnce sync.Once
	onClose   func(*Client)
}

func newClient(id string, conn *websocket.Conn, reg *broadcast.Registry, metrics repository.Metrics, logger *applogger.Logger, queueSize int, onClose func(*Client)) *Client {
	if queueSize <= 0 {
		queueSize = 64
	}
	return &Client{
		id:      id,
		conn:    conn,
		send:    make(chan pushFrame, queueSize),
		reg:     reg,
		metrics: metrics,
		logger:  logger,
		done:    make(chan struct{}),
		onClose: onClose,
	}
}

func (c *Client) ID() string { return c.id }

// Deliver enqueues one batch without blocking. Implements broadcast.Conn.
func (c *Client) Deliver(topic string, events []*models.PatternEvent) error {
	select {
	case <-c.done:
		return ErrClosed
	default:
	}
	select {
	case c.send <- pushFrame{Type: "batch", Topic: topic, Events: events}:
		return nil
	default:
		return ErrSlowConsumer
	}
}

// Close tears the connection down once. Safe to call from any goroutine.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		err = c.conn.Close()
		if c.onClose != nil {
			c.onClose(c)
		}
	})
	return err
}

// enqueue is for acks; dropping one under pressure is fine.
func (c *Client) enqueue(f pushFrame) {
	select {
	case c.send <- f:
	default:
	}
}

func (c *Client) readPump() {
	defer func() {
		c.reg.Purge(c.id)
		_ = c.Close()
	}()

	c.conn.SetReadLimit(4096)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var frame controlFrame
		if err := c.conn.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Debug("ws read error", applogger.String("conn", c.id), applogger.Error(err))
			}
			return
		}
		switch frame.Action {
		case "join":
			if frame.Topic == "" {
				c.enqueue(pushFrame{Type: "error", Error: "join requires a topic"})
				continue
			}
			if err := c.reg.Join(c, frame.Topic); err != nil {
				c.metrics.RecordError("room_limit")
				c.enqueue(pushFrame{Type: "error", Topic: frame.Topic, Error: err.Error()})
				continue
			}
			c.enqueue(pushFrame{Type: "joined", Topic: frame.Topic})
		case "leave":
			c.reg.Leave(c.id, frame.Topic)
			c.enqueue(pushFrame{Type: "left", Topic: frame.Topic})
		default:
			c.enqueue(pushFrame{Type: "error", Error: "unknown action " + frame.Action})
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.reg.Purge(c.id)
		_ = c.Close()
	}()

	for {
		select {
		case <-c.done:
			return
		case frame := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(frame); err != nil {
				c.metrics.RecordConnectionDropped("write_error")
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.metrics.RecordConnectionDropped("ping_timeout")
				return
			}
		}
	}
}
