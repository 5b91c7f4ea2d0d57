package auction

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/floroz/gavel-live/pkg/events"
)

// LotTx is the handle a unit of work receives while it holds a lot exclusively.
// Writes made through it become visible together when the unit commits.
type LotTx interface {
	// GetLot reads the locked lot. Returns a *NotFoundError when it does not exist.
	GetLot(ctx context.Context) (*Lot, error)

	// GetBidder looks up a bidder. Returns a *NotFoundError when it does not exist.
	GetBidder(ctx context.Context, bidderID uuid.UUID) (*Bidder, error)

	// SaveBid appends a bid to the ledger
	SaveBid(ctx context.Context, bid *Bid) error

	// UpdateHighestBid sets the lot's highest bid, version and last bid time
	UpdateHighestBid(ctx context.Context, amount, version int64, at time.Time) error

	// SaveEvent stores an outbox event in the same unit
	SaveEvent(ctx context.Context, event *events.OutboxEvent) error
}

// LotRepository holds lots outside of the bidding path
type LotRepository interface {
	CreateLot(ctx context.Context, lot *Lot) error
	GetLot(ctx context.Context, lotID uuid.UUID) (*Lot, error)

	// ListLots returns every lot, newest first
	ListLots(ctx context.Context) ([]*Lot, error)
}

// BidderRepository is the bidder directory
type BidderRepository interface {
	CreateBidder(ctx context.Context, bidder *Bidder) error
	GetBidder(ctx context.Context, bidderID uuid.UUID) (*Bidder, error)
}

// BidRepository reads the bid ledger
type BidRepository interface {
	// ListBids returns the lot's bids, most recent first
	ListBids(ctx context.Context, lotID uuid.UUID) ([]*BidRecord, error)
}

// Store is the transactional store behind the auction service
type Store interface {
	LotRepository
	BidderRepository
	BidRepository

	// RunExclusive executes fn with exclusive access to the lot. Its writes are
	// committed atomically when fn returns nil and discarded otherwise.
	// Lock or commit failures are reported wrapped in ErrTransientStore.
	RunExclusive(ctx context.Context, lotID uuid.UUID, fn func(ctx context.Context, tx LotTx) error) error
}

// Announcer delivers committed bids to observers. Implementations handle their
// own failures; nothing flows back to the bidder.
type Announcer interface {
	Announce(ctx context.Context, summary BidSummary)
}
