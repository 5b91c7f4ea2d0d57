// Package websocket streams accepted bids to browsers. Each connection joins
// and leaves lots with small JSON control messages.
package websocket

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/floroz/gavel-live/internal/auction"
	"github.com/floroz/gavel-live/internal/realtime"
)

// Config tunes connection handling
type Config struct {
	SendQueueSize  int
	WriteTimeout   time.Duration
	PongTimeout    time.Duration
	PingInterval   time.Duration
	MaxMessageSize int64
	AllowedOrigins []string // empty allows any origin
}

// DefaultConfig returns the settings used when none are configured
func DefaultConfig() Config {
	return Config{
		SendQueueSize:  64,
		WriteTimeout:   5 * time.Second,
		PongTimeout:    60 * time.Second,
		PingInterval:   50 * time.Second,
		MaxMessageSize: 4096,
	}
}

// LotReader looks lots up so joins to unknown lots can be refused
type LotReader interface {
	GetLot(ctx context.Context, lotID uuid.UUID) (*auction.Lot, error)
}

// Handler upgrades requests and registers each connection as an observer
type Handler struct {
	registry *realtime.Registry
	lots     LotReader
	cfg      Config
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// NewHandler creates a websocket handler
func NewHandler(registry *realtime.Registry, lots LotReader, cfg Config, logger *slog.Logger) *Handler {
	h := &Handler{
		registry: registry,
		lots:     lots,
		cfg:      cfg,
		logger:   logger,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	if len(h.cfg.AllowedOrigins) == 0 {
		return true
	}
	return slices.Contains(h.cfg.AllowedOrigins, r.Header.Get("Origin"))
}

// ServeHTTP runs one connection until the peer disconnects
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied with an HTTP error
		h.logger.Debug("Websocket upgrade failed", "error", err)
		return
	}

	c := newClient(conn, h.cfg)
	h.logger.Debug("Observer connected", "observer_id", c.ID(), "remote_addr", r.RemoteAddr)

	go c.writeLoop()

	err = c.readLoop(func(msg controlMessage) {
		h.handleControl(r.Context(), c, msg)
	})
	if err != nil {
		h.logger.Warn("Observer connection failed", "observer_id", c.ID(), "error", err)
	}

	h.registry.DropObserver(c.ID())
	c.Close()
	h.logger.Debug("Observer disconnected", "observer_id", c.ID())
}

func (h *Handler) handleControl(ctx context.Context, c *client, msg controlMessage) {
	if msg.Type != typeJoin && msg.Type != typeLeave {
		_ = c.enqueue(errorMessage("unknown message type"))
		return
	}

	lotID, err := uuid.Parse(msg.LotID)
	if err != nil {
		_ = c.enqueue(errorMessage("invalid lotId"))
		return
	}

	if msg.Type == typeLeave {
		h.registry.Leave(c.ID(), lotID)
		_ = c.enqueue(outboundMessage{Type: typeLeft, LotID: lotID.String()})
		return
	}

	ctx, cancel := context.WithTimeout(ctx, h.cfg.WriteTimeout)
	defer cancel()
	if _, err := h.lots.GetLot(ctx, lotID); err != nil {
		if errors.Is(err, auction.ErrNotFound) {
			_ = c.enqueue(errorMessage("lot not found"))
			return
		}
		h.logger.Error("Failed to look up lot for join", "lot_id", lotID, "error", err)
		_ = c.enqueue(errorMessage("could not join lot"))
		return
	}

	h.registry.Join(c, lotID)
	_ = c.enqueue(outboundMessage{Type: typeJoined, LotID: lotID.String()})
}
