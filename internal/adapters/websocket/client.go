package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/floroz/gavel-live/internal/auction"
	"github.com/floroz/gavel-live/internal/realtime"
)

var (
	// ErrClosed is returned when delivering to a closed connection
	ErrClosed = errors.New("connection closed")

	// ErrSlowConsumer is returned when the connection's send queue is full
	ErrSlowConsumer = errors.New("send queue full")
)

// client is one websocket connection acting as a realtime observer.
// Only the write loop writes to conn; everything else enqueues.
type client struct {
	id   uuid.UUID
	conn *websocket.Conn
	cfg  Config

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

var _ realtime.Observer = (*client)(nil)

func newClient(conn *websocket.Conn, cfg Config) *client {
	return &client{
		id:   uuid.New(),
		conn: conn,
		cfg:  cfg,
		send: make(chan []byte, cfg.SendQueueSize),
		done: make(chan struct{}),
	}
}

func (c *client) ID() uuid.UUID { return c.id }

// Deliver queues the bid without blocking
func (c *client) Deliver(_ context.Context, s auction.BidSummary) error {
	return c.enqueue(newBidMessage(s))
}

func (c *client) enqueue(msg outboundMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal %s message: %w", msg.Type, err)
	}

	select {
	case <-c.done:
		return ErrClosed
	default:
	}

	select {
	case c.send <- data:
		return nil
	case <-c.done:
		return ErrClosed
	default:
		return ErrSlowConsumer
	}
}

// Close stops the write loop and tears down the connection. Safe to call more than once.
func (c *client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		if c.conn != nil {
			_ = c.conn.Close()
		}
	})
}

func (c *client) writeLoop() {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()
	defer c.Close()

	for {
		select {
		case <-c.done:
			return
		case data := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			deadline := time.Now().Add(c.cfg.WriteTimeout)
			if err := c.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return
			}
		}
	}
}

// readLoop handles control messages until the peer goes away
func (c *client) readLoop(handle func(controlMessage)) error {
	c.conn.SetReadLimit(c.cfg.MaxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongTimeout))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				return err
			}
			return nil
		}

		var msg controlMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			_ = c.enqueue(errorMessage("malformed message"))
			continue
		}
		handle(msg)
	}
}
