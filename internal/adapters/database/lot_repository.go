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
)

// PostgresLotRepository persists lots using pgx
type PostgresLotRepository struct {
	pool *pgxpool.Pool // Keep pool for non-transactional reads
}

// NewPostgresLotRepository creates a new PostgreSQL lot repository
func NewPostgresLotRepository(pool *pgxpool.Pool) *PostgresLotRepository {
	return &PostgresLotRepository{pool: pool}
}

// CreateLot inserts a new lot
func (r *PostgresLotRepository) CreateLot(ctx context.Context, lot *auction.Lot) error {
	query := `
		INSERT INTO lots (id, title, description, starting_price, current_highest_bid, end_at, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := r.pool.Exec(ctx, query,
		lot.ID,
		lot.Title,
		lot.Description,
		lot.StartingPrice,
		lot.CurrentHighestBid,
		lot.EndAt,
		lot.Version,
		lot.CreatedAt,
		lot.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert lot: %w", err)
	}
	return nil
}

// GetLot retrieves a lot by its ID (non-transactional read)
func (r *PostgresLotRepository) GetLot(ctx context.Context, lotID uuid.UUID) (*auction.Lot, error) {
	return r.getLot(ctx, r.pool, lotID, false)
}

// GetLotForUpdate retrieves a lot and locks its row until tx ends
func (r *PostgresLotRepository) GetLotForUpdate(ctx context.Context, tx pgx.Tx, lotID uuid.UUID) (*auction.Lot, error) {
	return r.getLot(ctx, tx, lotID, true)
}

const lotColumns = `id, title, description, starting_price, current_highest_bid, end_at, version, last_bid_at, created_at, updated_at`

func (r *PostgresLotRepository) getLot(ctx context.Context, db pkgdb.DBTX, lotID uuid.UUID, forUpdate bool) (*auction.Lot, error) {
	query := `SELECT ` + lotColumns + ` FROM lots WHERE id = $1`
	if forUpdate {
		query += " FOR UPDATE"
	}

	lot, err := scanLot(db.QueryRow(ctx, query, lotID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &auction.NotFoundError{Entity: auction.EntityLot, ID: lotID}
		}
		return nil, fmt.Errorf("failed to get lot: %w", err)
	}
	return lot, nil
}

// ListLots returns every lot, newest first
func (r *PostgresLotRepository) ListLots(ctx context.Context) ([]*auction.Lot, error) {
	query := `SELECT ` + lotColumns + ` FROM lots ORDER BY created_at DESC, id`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query lots: %w", err)
	}
	defer rows.Close()

	lots := []*auction.Lot{}
	for rows.Next() {
		lot, err := scanLot(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan lot: %w", err)
		}
		lots = append(lots, lot)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating lots: %w", err)
	}

	return lots, nil
}

func scanLot(row pgx.Row) (*auction.Lot, error) {
	var (
		lot       auction.Lot
		lastBidAt *time.Time
	)
	err := row.Scan(
		&lot.ID,
		&lot.Title,
		&lot.Description,
		&lot.StartingPrice,
		&lot.CurrentHighestBid,
		&lot.EndAt,
		&lot.Version,
		&lastBidAt,
		&lot.CreatedAt,
		&lot.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if lastBidAt != nil {
		lot.LastBidAt = *lastBidAt
	}
	return &lot, nil
}

// UpdateHighestBid raises the lot's highest bid within a transaction. The
// WHERE clause refuses to lower it even if a caller skipped the lock.
func (r *PostgresLotRepository) UpdateHighestBid(ctx context.Context, tx pgx.Tx, lotID uuid.UUID, amount, version int64, at time.Time) error {
	query := `
		UPDATE lots
		SET current_highest_bid = $1, version = $2, last_bid_at = $3, updated_at = $3
		WHERE id = $4 AND current_highest_bid < $1
	`
	result, err := tx.Exec(ctx, query, amount, version, at, lotID)
	if err != nil {
		return fmt.Errorf("failed to update highest bid: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("highest bid for lot %s not raised to %d", lotID, amount)
	}

	return nil
}
