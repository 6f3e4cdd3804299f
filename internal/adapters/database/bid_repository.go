package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/outcryhq/outcry/internal/domain/bidlog"
)

// PostgresBidRepository implements bidlog.Repository using pgx.
// Inserts only; bids are immutable once written.
type PostgresBidRepository struct {
	pool *pgxpool.Pool // kept for read-only history queries
}

// NewPostgresBidRepository creates a new PostgreSQL bid repository.
func NewPostgresBidRepository(pool *pgxpool.Pool) *PostgresBidRepository {
	return &PostgresBidRepository{pool: pool}
}

// Append inserts a bid within the caller's transaction.
func (r *PostgresBidRepository) Append(ctx context.Context, tx pgx.Tx, bid *bidlog.Bid) error {
	query := `
		INSERT INTO bids (id, auction_id, bidder_id, amount, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := tx.Exec(ctx, query,
		bid.ID,
		bid.AuctionID,
		bid.BidderID,
		bid.Amount,
		bid.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert bid: %w", err)
	}
	return nil
}

// ListByAuction retrieves all bids for an auction, oldest first.
func (r *PostgresBidRepository) ListByAuction(ctx context.Context, auctionID uuid.UUID) ([]*bidlog.Bid, error) {
	query := `
		SELECT id, auction_id, bidder_id, amount, created_at
		FROM bids
		WHERE auction_id = $1
		ORDER BY created_at ASC
	`
	rows, err := r.pool.Query(ctx, query, auctionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query bids: %w", err)
	}
	defer rows.Close()

	var result []*bidlog.Bid
	for rows.Next() {
		var bid bidlog.Bid
		if err := rows.Scan(
			&bid.ID,
			&bid.AuctionID,
			&bid.BidderID,
			&bid.Amount,
			&bid.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan bid: %w", err)
		}
		result = append(result, &bid)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating bids: %w", err)
	}

	return result, nil
}
