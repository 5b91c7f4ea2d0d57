package realtime

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/floroz/gavel-live/internal/auction"
)

// lotCursor serialises announcements for one lot and remembers the last
// version delivered.
type lotCursor struct {
	mu      sync.Mutex
	version int64
}

// Fanout delivers committed bids to the lot's current observers. Deliveries
// for one lot happen one announcement at a time in version order; a summary
// whose version is not newer than the last one announced is discarded.
type Fanout struct {
	registry *Registry
	logger   *slog.Logger

	// One cursor per lot ever announced. Lots are never deleted, so neither
	// are cursors; a dropped cursor would let a stale version through.
	mu      sync.Mutex
	cursors map[uuid.UUID]*lotCursor
}

var _ auction.Announcer = (*Fanout)(nil)

// NewFanout creates a fanout over registry
func NewFanout(registry *Registry, logger *slog.Logger) *Fanout {
	return &Fanout{
		registry: registry,
		logger:   logger,
		cursors:  make(map[uuid.UUID]*lotCursor),
	}
}

func (f *Fanout) cursor(lotID uuid.UUID) *lotCursor {
	f.mu.Lock()
	defer f.mu.Unlock()

	c, ok := f.cursors[lotID]
	if !ok {
		c = &lotCursor{}
		f.cursors[lotID] = c
	}
	return c
}

// Announce delivers summary to every observer of its lot, resolved now.
// Observers that fail delivery are dropped and closed; no error is returned.
func (f *Fanout) Announce(ctx context.Context, summary auction.BidSummary) {
	c := f.cursor(summary.LotID)
	c.mu.Lock()
	defer c.mu.Unlock()

	if summary.Version <= c.version {
		f.logger.Debug("Discarding out-of-order announcement",
			"lot_id", summary.LotID,
			"version", summary.Version,
			"last_version", c.version,
		)
		return
	}
	c.version = summary.Version

	for _, observer := range f.registry.Members(summary.LotID) {
		if err := observer.Deliver(ctx, summary); err != nil {
			f.logger.Warn("Dropping observer after failed delivery",
				"observer_id", observer.ID(),
				"lot_id", summary.LotID,
				"error", err,
			)
			f.registry.DropObserver(observer.ID())
			observer.Close()
		}
	}
}
