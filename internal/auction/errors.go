package auction

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Bid rejections and store failures
var (
	ErrNotFound       = errors.New("not found")
	ErrAuctionEnded   = errors.New("auction has ended")
	ErrBidTooLow      = errors.New("bid amount must be higher than current highest bid")
	ErrTransientStore = errors.New("store temporarily unavailable")

	ErrInvalidStartPrice = errors.New("starting price must be greater than 0")
	ErrInvalidEndTime    = errors.New("end time must be in the future")
	ErrInvalidBidderName = errors.New("display name is required")
)

// Entity names used by NotFoundError
const (
	EntityLot    = "lot"
	EntityBidder = "bidder"
)

// NotFoundError reports an identifier that does not resolve
type NotFoundError struct {
	Entity string
	ID     uuid.UUID
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// ExpiredError is returned for bids at or after the lot's deadline
type ExpiredError struct {
	LotID uuid.UUID
	EndAt time.Time
}

func (e *ExpiredError) Error() string {
	return fmt.Sprintf("%s: lot %s closed at %s", ErrAuctionEnded, e.LotID, e.EndAt.Format(time.RFC3339))
}

func (e *ExpiredError) Unwrap() error { return ErrAuctionEnded }

// StaleBidError carries the highest bid the rejected amount lost against,
// so the caller can retry with a larger amount.
type StaleBidError struct {
	CurrentHighestBid int64
}

func (e *StaleBidError) Error() string {
	return fmt.Sprintf("%s: %d", ErrBidTooLow, e.CurrentHighestBid)
}

func (e *StaleBidError) Unwrap() error { return ErrBidTooLow }

// IsRejection reports whether err is a validation outcome rather than a failure
func IsRejection(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrAuctionEnded) || errors.Is(err, ErrBidTooLow)
}
