package broadcast

import (
	"context"
	"errors"
	"log/slog"

	"github.com/floroz/gavel-live/internal/auction"
)

// ErrSubscriptionClosed is returned by Run when the bus drops the subscription
var ErrSubscriptionClosed = errors.New("subscription closed")

// Subscriber feeds bids published by any instance into the local fanout
type Subscriber struct {
	bus    Bus
	local  auction.Announcer
	prefix string
	logger *slog.Logger
}

// NewSubscriber creates a subscriber for all lot channels under prefix
func NewSubscriber(bus Bus, local auction.Announcer, prefix string, logger *slog.Logger) *Subscriber {
	return &Subscriber{
		bus:    bus,
		local:  local,
		prefix: prefix,
		logger: logger,
	}
}

// Run blocks until ctx is cancelled or the subscription ends
func (s *Subscriber) Run(ctx context.Context) error {
	sub, err := s.bus.PSubscribe(ctx, s.prefix+"*")
	if err != nil {
		return err
	}
	defer func() {
		_ = sub.Close()
	}()

	s.logger.Info("Subscribed to bid broadcasts", "pattern", s.prefix+"*")

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-sub.Messages():
			if !ok {
				return ErrSubscriptionClosed
			}
			summary, err := auction.DecodeBidPlaced(msg.Payload)
			if err != nil {
				s.logger.Warn("Discarding undecodable broadcast", "channel", msg.Channel, "error", err)
				continue
			}
			s.local.Announce(ctx, summary)
		}
	}
}
