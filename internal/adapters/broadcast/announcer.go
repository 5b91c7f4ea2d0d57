package broadcast

import (
	"context"
	"log/slog"

	"github.com/floroz/gavel-live/internal/auction"
)

// DefaultChannelPrefix namespaces per-lot channels: lot:<lotID>
const DefaultChannelPrefix = "lot:"

// Announcer publishes accepted bids to the lot's channel. Every instance's
// Subscriber, this one's included, turns them into local deliveries. When
// Redis is unavailable the bid is announced locally only.
type Announcer struct {
	bus    Bus
	local  auction.Announcer
	prefix string
	logger *slog.Logger
}

var _ auction.Announcer = (*Announcer)(nil)

// NewAnnouncer creates an announcer publishing on bus with local as fallback
func NewAnnouncer(bus Bus, local auction.Announcer, prefix string, logger *slog.Logger) *Announcer {
	return &Announcer{
		bus:    bus,
		local:  local,
		prefix: prefix,
		logger: logger,
	}
}

// Announce publishes summary, falling back to local delivery on failure
func (a *Announcer) Announce(ctx context.Context, summary auction.BidSummary) {
	payload, err := auction.EncodeBidPlaced(summary)
	if err != nil {
		a.logger.Error("Failed to encode bid for broadcast", "lot_id", summary.LotID, "error", err)
		a.local.Announce(ctx, summary)
		return
	}

	channel := a.prefix + summary.LotID.String()
	if err := a.bus.Publish(ctx, channel, payload); err != nil {
		a.logger.Warn("Broadcast failed, announcing locally",
			"channel", channel,
			"version", summary.Version,
			"error", err,
		)
		a.local.Announce(ctx, summary)
	}
}
