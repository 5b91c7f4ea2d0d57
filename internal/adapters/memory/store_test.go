package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/floroz/gavel-live/internal/auction"
	"github.com/floroz/gavel-live/pkg/events"
)

func seed(t *testing.T, s *Store) (*auction.Lot, *auction.Bidder) {
	t.Helper()
	lot := &auction.Lot{ID: uuid.New(), Title: "lot", StartingPrice: 100, CurrentHighestBid: 100, EndAt: time.Now().Add(time.Hour)}
	require.NoError(t, s.CreateLot(context.Background(), lot))
	bidder := &auction.Bidder{ID: uuid.New(), DisplayName: "dave"}
	require.NoError(t, s.CreateBidder(context.Background(), bidder))
	return lot, bidder
}

func TestRunExclusive_CommitsOnSuccess(t *testing.T) {
	s := NewStore(time.Second)
	lot, bidder := seed(t, s)
	at := time.Now().UTC()

	err := s.RunExclusive(context.Background(), lot.ID, func(ctx context.Context, tx auction.LotTx) error {
		require.NoError(t, tx.SaveBid(ctx, &auction.Bid{ID: uuid.New(), LotID: lot.ID, BidderID: bidder.ID, Amount: 150, CreatedAt: at}))
		require.NoError(t, tx.UpdateHighestBid(ctx, 150, 1, at))
		return tx.SaveEvent(ctx, &events.OutboxEvent{ID: uuid.New(), EventType: "bid.placed", Status: events.OutboxStatusPending})
	})
	require.NoError(t, err)

	got, err := s.GetLot(context.Background(), lot.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(150), got.CurrentHighestBid)
	assert.Equal(t, int64(1), got.Version)
	assert.True(t, at.Equal(got.LastBidAt))

	ledger, err := s.ListBids(context.Background(), lot.ID)
	require.NoError(t, err)
	require.Len(t, ledger, 1)
	assert.Equal(t, "dave", ledger[0].BidderName)
	assert.Len(t, s.OutboxEvents(), 1)
}

func TestRunExclusive_DiscardsOnError(t *testing.T) {
	s := NewStore(time.Second)
	lot, bidder := seed(t, s)
	boom := errors.New("boom")

	err := s.RunExclusive(context.Background(), lot.ID, func(ctx context.Context, tx auction.LotTx) error {
		require.NoError(t, tx.SaveBid(ctx, &auction.Bid{ID: uuid.New(), LotID: lot.ID, BidderID: bidder.ID, Amount: 150}))
		require.NoError(t, tx.UpdateHighestBid(ctx, 150, 1, time.Now()))
		return boom
	})
	require.ErrorIs(t, err, boom)

	got, err := s.GetLot(context.Background(), lot.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(100), got.CurrentHighestBid)
	assert.Zero(t, got.Version)

	ledger, err := s.ListBids(context.Background(), lot.ID)
	require.NoError(t, err)
	assert.Empty(t, ledger)
	assert.Empty(t, s.OutboxEvents())
}

func TestRunExclusive_CanceledBeforeCommit(t *testing.T) {
	s := NewStore(time.Second)
	lot, bidder := seed(t, s)

	ctx, cancel := context.WithCancel(context.Background())
	err := s.RunExclusive(ctx, lot.ID, func(ctx context.Context, tx auction.LotTx) error {
		require.NoError(t, tx.SaveBid(ctx, &auction.Bid{ID: uuid.New(), LotID: lot.ID, BidderID: bidder.ID, Amount: 150}))
		cancel()
		return nil
	})
	require.ErrorIs(t, err, auction.ErrTransientStore)

	ledger, err := s.ListBids(context.Background(), lot.ID)
	require.NoError(t, err)
	assert.Empty(t, ledger)
}

func TestSaveBid_WrongLot(t *testing.T) {
	s := NewStore(time.Second)
	lot, bidder := seed(t, s)

	err := s.RunExclusive(context.Background(), lot.ID, func(ctx context.Context, tx auction.LotTx) error {
		return tx.SaveBid(ctx, &auction.Bid{ID: uuid.New(), LotID: uuid.New(), BidderID: bidder.ID, Amount: 150})
	})
	assert.Error(t, err)
}

func TestCreate_Duplicates(t *testing.T) {
	s := NewStore(time.Second)
	lot, bidder := seed(t, s)

	assert.Error(t, s.CreateLot(context.Background(), lot))
	assert.Error(t, s.CreateBidder(context.Background(), bidder))
}

func TestLotLocks_RemovedWhenIdle(t *testing.T) {
	locks := newLotLocks()
	lotID := uuid.New()

	release, err := locks.acquire(context.Background(), lotID)
	require.NoError(t, err)
	assert.Equal(t, 1, locks.size())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = locks.acquire(ctx, lotID)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, locks.size(), "a timed out waiter drops only its own reference")

	release()
	release()
	assert.Equal(t, 0, locks.size())

	other, err := locks.acquire(context.Background(), uuid.New())
	require.NoError(t, err)
	again, err := locks.acquire(context.Background(), lotID)
	require.NoError(t, err)
	assert.Equal(t, 2, locks.size())
	other()
	again()
	assert.Equal(t, 0, locks.size())
}

func TestSaveEvent_RejectsUnknownType(t *testing.T) {
	s := NewStore(time.Second)
	lot, _ := seed(t, s)

	err := s.RunExclusive(context.Background(), lot.ID, func(ctx context.Context, tx auction.LotTx) error {
		return tx.SaveEvent(ctx, &events.OutboxEvent{ID: uuid.New(), EventType: "lot.closed", Status: events.OutboxStatusPending})
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "lot.closed")
	assert.Empty(t, s.OutboxEvents())
}

func TestOutbox_KeepsMostRecentEvents(t *testing.T) {
	s := NewStore(time.Second)
	s.outboxLimit = 3
	lot, _ := seed(t, s)

	var ids []uuid.UUID
	for range 5 {
		id := uuid.New()
		ids = append(ids, id)
		err := s.RunExclusive(context.Background(), lot.ID, func(ctx context.Context, tx auction.LotTx) error {
			return tx.SaveEvent(ctx, &events.OutboxEvent{ID: id, EventType: auction.EventTypeBidPlaced.String(), Status: events.OutboxStatusPending})
		})
		require.NoError(t, err)
	}

	outbox := s.OutboxEvents()
	require.Len(t, outbox, 3)
	assert.Equal(t, ids[2:], []uuid.UUID{outbox[0].ID, outbox[1].ID, outbox[2].ID})
}

func TestListLots_Order(t *testing.T) {
	s := NewStore(time.Second)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	lots := []*auction.Lot{
		{ID: uuid.New(), Title: "a", CreatedAt: base},
		{ID: uuid.New(), Title: "b", CreatedAt: base.Add(time.Hour)},
		{ID: uuid.New(), Title: "c", CreatedAt: base},
	}
	for _, lot := range lots {
		require.NoError(t, s.CreateLot(context.Background(), lot))
	}

	got, err := s.ListLots(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []string{"b", "c", "a"}, []string{got[0].Title, got[1].Title, got[2].Title})
}
