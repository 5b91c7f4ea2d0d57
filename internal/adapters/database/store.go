package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/floroz/gavel-live/internal/auction"
	pkgdb "github.com/floroz/gavel-live/pkg/database"
	"github.com/floroz/gavel-live/pkg/events"
)

// Store implements auction.Store on PostgreSQL. Exclusive access to a lot is
// the lot row lock taken by SELECT ... FOR UPDATE, held until the transaction ends.
type Store struct {
	*PostgresLotRepository
	*PostgresBidderRepository
	*PostgresBidRepository

	outbox    *PostgresOutboxRepository
	txManager pkgdb.TransactionManager
}

var _ auction.Store = (*Store)(nil)

// NewStore wires the repositories behind one transaction manager
func NewStore(pool *pgxpool.Pool, txManager pkgdb.TransactionManager) *Store {
	return &Store{
		PostgresLotRepository:    NewPostgresLotRepository(pool),
		PostgresBidderRepository: NewPostgresBidderRepository(pool),
		PostgresBidRepository:    NewPostgresBidRepository(pool),
		outbox:                   NewPostgresOutboxRepository(),
		txManager:                txManager,
	}
}

// RunExclusive runs fn in a transaction whose first read locks the lot row
func (s *Store) RunExclusive(ctx context.Context, lotID uuid.UUID, fn func(ctx context.Context, tx auction.LotTx) error) error {
	err := pkgdb.WithTx(ctx, s.txManager, func(tx pgx.Tx) error {
		return fn(ctx, &lotTx{store: s, tx: tx, lotID: lotID})
	})
	if err == nil {
		return nil
	}

	if auction.IsRejection(err) || errors.Is(err, auction.ErrTransientStore) {
		return err
	}
	if pkgdb.IsTransient(err) {
		return fmt.Errorf("%w: %w", auction.ErrTransientStore, err)
	}
	return err
}

type lotTx struct {
	store *Store
	tx    pgx.Tx
	lotID uuid.UUID
}

func (t *lotTx) GetLot(ctx context.Context) (*auction.Lot, error) {
	return t.store.GetLotForUpdate(ctx, t.tx, t.lotID)
}

func (t *lotTx) GetBidder(ctx context.Context, bidderID uuid.UUID) (*auction.Bidder, error) {
	return t.store.GetBidderTx(ctx, t.tx, bidderID)
}

func (t *lotTx) SaveBid(ctx context.Context, bid *auction.Bid) error {
	return t.store.PostgresBidRepository.SaveBid(ctx, t.tx, bid)
}

func (t *lotTx) UpdateHighestBid(ctx context.Context, amount, version int64, at time.Time) error {
	return t.store.PostgresLotRepository.UpdateHighestBid(ctx, t.tx, t.lotID, amount, version, at)
}

func (t *lotTx) SaveEvent(ctx context.Context, event *events.OutboxEvent) error {
	if !auction.EventType(event.EventType).IsValid() {
		return fmt.Errorf("unknown event type %q", event.EventType)
	}
	return t.store.outbox.SaveEvent(ctx, t.tx, event)
}
