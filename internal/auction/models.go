package auction

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// centsExponent places the decimal point of amounts stored in cents
const centsExponent = -2

// FormatAmount renders an amount in cents as a fixed two-decimal string
func FormatAmount(cents int64) string {
	return decimal.New(cents, centsExponent).StringFixed(-centsExponent)
}

// Lot represents an auction lot
type Lot struct {
	ID                uuid.UUID
	Title             string
	Description       string
	StartingPrice     int64 // in cents
	CurrentHighestBid int64 // starts at StartingPrice, only ever increases
	EndAt             time.Time
	Version           int64     // number of accepted bids
	LastBidAt         time.Time // zero until the first bid
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Bid represents an accepted bid on a lot
type Bid struct {
	ID        uuid.UUID
	LotID     uuid.UUID
	BidderID  uuid.UUID
	Amount    int64 // in cents
	CreatedAt time.Time
}

// Bidder is read-only from the bidding path
type Bidder struct {
	ID          uuid.UUID
	DisplayName string
	CreatedAt   time.Time
}

// BidRecord is a ledger entry joined with its bidder
type BidRecord struct {
	ID         uuid.UUID
	Amount     int64
	CreatedAt  time.Time
	BidderID   uuid.UUID
	BidderName string
}

// BidSummary is the outcome of a committed bid as announced to observers
type BidSummary struct {
	LotID       uuid.UUID
	BidID       uuid.UUID
	Amount      int64
	CommittedAt time.Time
	BidderID    uuid.UUID
	BidderName  string
	Version     int64
}

// EventType represents the type of domain event
type EventType string

const (
	EventTypeBidPlaced EventType = "bid.placed"
)

// String returns the string representation of the event type
func (e EventType) String() string {
	return string(e)
}

// IsValid checks if the event type is valid
func (e EventType) IsValid() bool {
	switch e {
	case EventTypeBidPlaced:
		return true
	default:
		return false
	}
}

// PlaceBidCommand represents the command to place a bid
type PlaceBidCommand struct {
	LotID    uuid.UUID
	BidderID uuid.UUID
	Amount   int64
}

// CreateLotCommand represents the command to open a new lot
type CreateLotCommand struct {
	Title         string
	Description   string
	StartingPrice int64
	EndAt         time.Time
}

func summarize(bid *Bid, bidder *Bidder, version int64) BidSummary {
	return BidSummary{
		LotID:       bid.LotID,
		BidID:       bid.ID,
		Amount:      bid.Amount,
		CommittedAt: bid.CreatedAt,
		BidderID:    bid.BidderID,
		BidderName:  bidder.DisplayName,
		Version:     version,
	}
}
