package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/floroz/gavel-live/internal/auction"
	pkgdb "github.com/floroz/gavel-live/pkg/database"
)

// PostgresBidderRepository is the bidder directory backed by pgx
type PostgresBidderRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresBidderRepository creates a new PostgreSQL bidder repository
func NewPostgresBidderRepository(pool *pgxpool.Pool) *PostgresBidderRepository {
	return &PostgresBidderRepository{pool: pool}
}

// CreateBidder inserts a bidder
func (r *PostgresBidderRepository) CreateBidder(ctx context.Context, bidder *auction.Bidder) error {
	query := `INSERT INTO bidders (id, display_name, created_at) VALUES ($1, $2, $3)`
	if _, err := r.pool.Exec(ctx, query, bidder.ID, bidder.DisplayName, bidder.CreatedAt); err != nil {
		return fmt.Errorf("failed to insert bidder: %w", err)
	}
	return nil
}

// GetBidder retrieves a bidder outside of any transaction
func (r *PostgresBidderRepository) GetBidder(ctx context.Context, bidderID uuid.UUID) (*auction.Bidder, error) {
	return r.getBidder(ctx, r.pool, bidderID)
}

// GetBidderTx retrieves a bidder inside tx
func (r *PostgresBidderRepository) GetBidderTx(ctx context.Context, tx pgx.Tx, bidderID uuid.UUID) (*auction.Bidder, error) {
	return r.getBidder(ctx, tx, bidderID)
}

func (r *PostgresBidderRepository) getBidder(ctx context.Context, db pkgdb.DBTX, bidderID uuid.UUID) (*auction.Bidder, error) {
	query := `SELECT id, display_name, created_at FROM bidders WHERE id = $1`

	var bidder auction.Bidder
	err := db.QueryRow(ctx, query, bidderID).Scan(&bidder.ID, &bidder.DisplayName, &bidder.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &auction.NotFoundError{Entity: auction.EntityBidder, ID: bidderID}
		}
		return nil, fmt.Errorf("failed to get bidder: %w", err)
	}
	return &bidder, nil
}

// CountBidders returns how many bidders are registered
func (r *PostgresBidderRepository) CountBidders(ctx context.Context) (int, error) {
	var count int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM bidders`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count bidders: %w", err)
	}
	return count, nil
}
