// Package memory is an in-process implementation of the auction store. It keeps
// the same exclusive-run contract as the Postgres store: one lock per lot,
// writes staged until the unit of work succeeds.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/floroz/gavel-live/internal/auction"
	"github.com/floroz/gavel-live/pkg/events"
)

// maxOutboxEvents bounds the outbox. Nothing relays it in memory, so only
// the most recent events are kept for inspection.
const maxOutboxEvents = 1024

// Store implements auction.Store in memory
type Store struct {
	locks       *lotLocks
	lockTimeout time.Duration
	outboxLimit int

	mu       sync.RWMutex
	lots     map[uuid.UUID]auction.Lot
	lotOrder []uuid.UUID // creation order
	bidders  map[uuid.UUID]auction.Bidder
	bids     map[uuid.UUID][]auction.Bid // per lot, in commit order
	outbox   []events.OutboxEvent
}

var _ auction.Store = (*Store)(nil)

// NewStore creates an empty store. lockTimeout bounds how long RunExclusive
// waits for a lot (0 = wait until ctx is done).
func NewStore(lockTimeout time.Duration) *Store {
	return &Store{
		locks:       newLotLocks(),
		lockTimeout: lockTimeout,
		outboxLimit: maxOutboxEvents,
		lots:        make(map[uuid.UUID]auction.Lot),
		bidders:     make(map[uuid.UUID]auction.Bidder),
		bids:        make(map[uuid.UUID][]auction.Bid),
	}
}

// RunExclusive runs fn holding the lot's lock and applies its writes only if it succeeds
func (s *Store) RunExclusive(ctx context.Context, lotID uuid.UUID, fn func(ctx context.Context, tx auction.LotTx) error) error {
	lockCtx := ctx
	if s.lockTimeout > 0 {
		var cancel context.CancelFunc
		lockCtx, cancel = context.WithTimeout(ctx, s.lockTimeout)
		defer cancel()
	}

	release, err := s.locks.acquire(lockCtx, lotID)
	if err != nil {
		return fmt.Errorf("%w: lock lot %s: %v", auction.ErrTransientStore, lotID, err)
	}
	defer release()

	tx := &lotTx{store: s, lotID: lotID}
	if err := fn(ctx, tx); err != nil {
		return err
	}

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: commit lot %s: %v", auction.ErrTransientStore, lotID, err)
	}

	s.commit(tx)
	return nil
}

func (s *Store) commit(tx *lotTx) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if tx.highest != nil {
		lot := s.lots[tx.lotID]
		lot.CurrentHighestBid = tx.highest.amount
		lot.Version = tx.highest.version
		lot.LastBidAt = tx.highest.at
		lot.UpdatedAt = tx.highest.at
		s.lots[tx.lotID] = lot
	}
	s.bids[tx.lotID] = append(s.bids[tx.lotID], tx.bids...)
	s.outbox = append(s.outbox, tx.events...)
	if over := len(s.outbox) - s.outboxLimit; over > 0 {
		s.outbox = slices.Delete(s.outbox, 0, over)
	}
}

// CreateLot stores a new lot
func (s *Store) CreateLot(_ context.Context, lot *auction.Lot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.lots[lot.ID]; exists {
		return fmt.Errorf("lot %s already exists", lot.ID)
	}
	s.lots[lot.ID] = *lot
	s.lotOrder = append(s.lotOrder, lot.ID)
	return nil
}

// GetLot retrieves a lot by its ID
func (s *Store) GetLot(_ context.Context, lotID uuid.UUID) (*auction.Lot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	lot, ok := s.lots[lotID]
	if !ok {
		return nil, &auction.NotFoundError{Entity: auction.EntityLot, ID: lotID}
	}
	return &lot, nil
}

// ListLots returns every lot, newest first. Lots created at the same instant
// keep reverse creation order.
func (s *Store) ListLots(_ context.Context) ([]*auction.Lot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	lots := make([]*auction.Lot, 0, len(s.lotOrder))
	for _, id := range slices.Backward(s.lotOrder) {
		lot := s.lots[id]
		lots = append(lots, &lot)
	}
	slices.SortStableFunc(lots, func(a, b *auction.Lot) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return lots, nil
}

// CreateBidder stores a new bidder
func (s *Store) CreateBidder(_ context.Context, bidder *auction.Bidder) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.bidders[bidder.ID]; exists {
		return fmt.Errorf("bidder %s already exists", bidder.ID)
	}
	s.bidders[bidder.ID] = *bidder
	return nil
}

// GetBidder retrieves a bidder by its ID
func (s *Store) GetBidder(_ context.Context, bidderID uuid.UUID) (*auction.Bidder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	bidder, ok := s.bidders[bidderID]
	if !ok {
		return nil, &auction.NotFoundError{Entity: auction.EntityBidder, ID: bidderID}
	}
	return &bidder, nil
}

// ListBids returns the lot's bids, most recent first
func (s *Store) ListBids(_ context.Context, lotID uuid.UUID) ([]*auction.BidRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ledger := s.bids[lotID]
	records := make([]*auction.BidRecord, 0, len(ledger))
	for _, bid := range slices.Backward(ledger) {
		records = append(records, &auction.BidRecord{
			ID:         bid.ID,
			Amount:     bid.Amount,
			CreatedAt:  bid.CreatedAt,
			BidderID:   bid.BidderID,
			BidderName: s.bidders[bid.BidderID].DisplayName,
		})
	}
	return records, nil
}

// OutboxEvents returns a copy of every event recorded so far
func (s *Store) OutboxEvents() []events.OutboxEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.outbox)
}

type highestBid struct {
	amount  int64
	version int64
	at      time.Time
}

// lotTx stages writes for one unit of work
type lotTx struct {
	store *Store
	lotID uuid.UUID

	bids    []auction.Bid
	highest *highestBid
	events  []events.OutboxEvent
}

func (tx *lotTx) GetLot(ctx context.Context) (*auction.Lot, error) {
	return tx.store.GetLot(ctx, tx.lotID)
}

func (tx *lotTx) GetBidder(ctx context.Context, bidderID uuid.UUID) (*auction.Bidder, error) {
	return tx.store.GetBidder(ctx, bidderID)
}

func (tx *lotTx) SaveBid(_ context.Context, bid *auction.Bid) error {
	if bid.LotID != tx.lotID {
		return fmt.Errorf("bid for lot %s saved under lock for lot %s", bid.LotID, tx.lotID)
	}
	tx.bids = append(tx.bids, *bid)
	return nil
}

func (tx *lotTx) UpdateHighestBid(_ context.Context, amount, version int64, at time.Time) error {
	tx.highest = &highestBid{amount: amount, version: version, at: at}
	return nil
}

func (tx *lotTx) SaveEvent(_ context.Context, event *events.OutboxEvent) error {
	if !auction.EventType(event.EventType).IsValid() {
		return fmt.Errorf("unknown event type %q", event.EventType)
	}
	tx.events = append(tx.events, *event)
	return nil
}
