package auction

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/floroz/gavel-live/pkg/events"
)

// validateLotOpen checks that now is strictly before the lot's deadline
func validateLotOpen(lot *Lot, now time.Time) error {
	if !now.Before(lot.EndAt) {
		return &ExpiredError{LotID: lot.ID, EndAt: lot.EndAt}
	}
	return nil
}

// validateBidAmount checks if the bid amount is higher than the current highest bid
func validateBidAmount(bidAmount, currentHighest int64) error {
	if bidAmount <= currentHighest {
		return &StaleBidError{CurrentHighestBid: currentHighest}
	}
	return nil
}

// nextCommitTime keeps commit timestamps strictly increasing per lot at the
// store's microsecond resolution, even when the wall clock stalls or steps back.
func nextCommitTime(now, lastBidAt time.Time) time.Time {
	now = now.UTC().Truncate(time.Microsecond)
	if lastBidAt.IsZero() {
		return now
	}
	floor := lastBidAt.UTC().Truncate(time.Microsecond).Add(time.Microsecond)
	if now.Before(floor) {
		return floor
	}
	return now
}

// AuctionService implements the bid acceptance path
type AuctionService struct {
	store     Store
	announcer Announcer
	logger    *slog.Logger
	now       func() time.Time
}

// Option configures an AuctionService
type Option func(*AuctionService)

// WithClock replaces time.Now, for tests
func WithClock(now func() time.Time) Option {
	return func(s *AuctionService) { s.now = now }
}

// NewAuctionService creates a new auction service
func NewAuctionService(store Store, announcer Announcer, logger *slog.Logger, opts ...Option) *AuctionService {
	s := &AuctionService{
		store:     store,
		announcer: announcer,
		logger:    logger,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// PlaceBid validates and commits a bid while holding the lot exclusively, then
// announces it. Checks run in order: lot exists, lot still open, amount beats
// the current highest bid, bidder exists. The first failing check is returned
// and nothing is written.
func (s *AuctionService) PlaceBid(ctx context.Context, cmd PlaceBidCommand) (*Bid, error) {
	var (
		bid     *Bid
		summary BidSummary
	)

	err := s.store.RunExclusive(ctx, cmd.LotID, func(ctx context.Context, tx LotTx) error {
		// The lot row is held from here until the unit commits, so the read
		// below cannot go stale before the write.
		lot, err := tx.GetLot(ctx)
		if err != nil {
			return err
		}

		now := s.now()
		if err := validateLotOpen(lot, now); err != nil {
			return err
		}

		if err := validateBidAmount(cmd.Amount, lot.CurrentHighestBid); err != nil {
			return err
		}

		bidder, err := tx.GetBidder(ctx, cmd.BidderID)
		if err != nil {
			return err
		}

		bid = &Bid{
			ID:        uuid.New(),
			LotID:     lot.ID,
			BidderID:  bidder.ID,
			Amount:    cmd.Amount,
			CreatedAt: nextCommitTime(now, lot.LastBidAt),
		}
		version := lot.Version + 1

		// Step 1: Append to the ledger
		if err := tx.SaveBid(ctx, bid); err != nil {
			return fmt.Errorf("failed to save bid: %w", err)
		}

		// Step 2: Raise the lot's highest bid
		if err := tx.UpdateHighestBid(ctx, bid.Amount, version, bid.CreatedAt); err != nil {
			return fmt.Errorf("failed to update highest bid: %w", err)
		}

		// Step 3: Record the event for the outbox relay
		summary = summarize(bid, bidder, version)
		payload, err := EncodeBidPlaced(summary)
		if err != nil {
			return fmt.Errorf("failed to marshal event: %w", err)
		}
		outboxEvent := &events.OutboxEvent{
			ID:        uuid.New(),
			EventType: EventTypeBidPlaced.String(),
			Payload:   payload,
			Status:    events.OutboxStatusPending,
			CreatedAt: bid.CreatedAt,
		}
		if err := tx.SaveEvent(ctx, outboxEvent); err != nil {
			return fmt.Errorf("failed to save outbox event: %w", err)
		}

		return nil
	})
	if err != nil {
		if IsRejection(err) {
			s.logger.Debug("Bid rejected",
				"lot_id", cmd.LotID,
				"bidder_id", cmd.BidderID,
				"amount", cmd.Amount,
				"reason", err.Error(),
			)
		}
		return nil, err
	}

	s.logger.Info("Bid accepted",
		"lot_id", bid.LotID,
		"bid_id", bid.ID,
		"amount", bid.Amount,
		"version", summary.Version,
	)

	// Committed: observers hear about it outside the critical section
	s.announcer.Announce(ctx, summary)

	return bid, nil
}

// ListBids returns the ledger for a lot, most recent first
func (s *AuctionService) ListBids(ctx context.Context, lotID uuid.UUID) ([]*BidRecord, error) {
	if _, err := s.store.GetLot(ctx, lotID); err != nil {
		return nil, err
	}

	records, err := s.store.ListBids(ctx, lotID)
	if err != nil {
		return nil, fmt.Errorf("failed to list bids: %w", err)
	}
	return records, nil
}

// CreateLot opens a new lot. Its highest bid starts at the starting price.
func (s *AuctionService) CreateLot(ctx context.Context, cmd CreateLotCommand) (*Lot, error) {
	if cmd.StartingPrice <= 0 {
		return nil, ErrInvalidStartPrice
	}

	now := s.now()
	if !cmd.EndAt.After(now) {
		return nil, ErrInvalidEndTime
	}

	lot := &Lot{
		ID:                uuid.New(),
		Title:             strings.TrimSpace(cmd.Title),
		Description:       strings.TrimSpace(cmd.Description),
		StartingPrice:     cmd.StartingPrice,
		CurrentHighestBid: cmd.StartingPrice,
		EndAt:             cmd.EndAt.UTC(),
		CreatedAt:         now.UTC(),
		UpdatedAt:         now.UTC(),
	}

	if err := s.store.CreateLot(ctx, lot); err != nil {
		return nil, fmt.Errorf("failed to create lot: %w", err)
	}
	return lot, nil
}

// GetLot retrieves a lot by ID
func (s *AuctionService) GetLot(ctx context.Context, lotID uuid.UUID) (*Lot, error) {
	return s.store.GetLot(ctx, lotID)
}

// ListLots returns all lots, newest first
func (s *AuctionService) ListLots(ctx context.Context) ([]*Lot, error) {
	lots, err := s.store.ListLots(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list lots: %w", err)
	}
	return lots, nil
}

// RegisterBidder adds a bidder to the directory
func (s *AuctionService) RegisterBidder(ctx context.Context, displayName string) (*Bidder, error) {
	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		return nil, ErrInvalidBidderName
	}

	bidder := &Bidder{
		ID:          uuid.New(),
		DisplayName: displayName,
		CreatedAt:   s.now().UTC(),
	}
	if err := s.store.CreateBidder(ctx, bidder); err != nil {
		return nil, fmt.Errorf("failed to create bidder: %w", err)
	}
	return bidder, nil
}
