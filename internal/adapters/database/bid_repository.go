package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/floroz/gavel-live/internal/auction"
)

// PostgresBidRepository persists the bid ledger using pgx
type PostgresBidRepository struct {
	pool *pgxpool.Pool // Keep pool for read-only operations
}

// NewPostgresBidRepository creates a new PostgreSQL bid repository
func NewPostgresBidRepository(pool *pgxpool.Pool) *PostgresBidRepository {
	return &PostgresBidRepository{pool: pool}
}

// SaveBid appends a bid within a transaction
func (r *PostgresBidRepository) SaveBid(ctx context.Context, tx pgx.Tx, bid *auction.Bid) error {
	query := `
		INSERT INTO bids (id, lot_id, bidder_id, amount, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := tx.Exec(ctx, query,
		bid.ID,
		bid.LotID,
		bid.BidderID,
		bid.Amount,
		bid.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert bid: %w", err)
	}
	return nil
}

// ListBids retrieves the lot's bids with bidder names, most recent first
func (r *PostgresBidRepository) ListBids(ctx context.Context, lotID uuid.UUID) ([]*auction.BidRecord, error) {
	query := `
		SELECT b.id, b.amount, b.created_at, b.bidder_id, d.display_name
		FROM bids b
		JOIN bidders d ON d.id = b.bidder_id
		WHERE b.lot_id = $1
		ORDER BY b.created_at DESC
	`
	rows, err := r.pool.Query(ctx, query, lotID)
	if err != nil {
		return nil, fmt.Errorf("failed to query bids: %w", err)
	}
	defer rows.Close()

	result := []*auction.BidRecord{}
	for rows.Next() {
		var record auction.BidRecord
		if err := rows.Scan(
			&record.ID,
			&record.Amount,
			&record.CreatedAt,
			&record.BidderID,
			&record.BidderName,
		); err != nil {
			return nil, fmt.Errorf("failed to scan bid: %w", err)
		}
		result = append(result, &record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating bids: %w", err)
	}

	return result, nil
}
