package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/outcryhq/outcry/internal/domain/auctions"
	pkgdb "github.com/outcryhq/outcry/pkg/database"
)

const auctionColumns = `id, owner_id, title, description, category, images,
		starting_price, bid_increment, reserve_price, current_bid,
		highest_bidder_id, winner_id, status, end_at, created_at, updated_at`

// PostgresAuctionRepository implements auctions.Repository using pgx.
type PostgresAuctionRepository struct {
	pool *pgxpool.Pool // kept for non-transactional reads
}

// NewPostgresAuctionRepository creates a new PostgreSQL auction repository.
func NewPostgresAuctionRepository(pool *pgxpool.Pool) *PostgresAuctionRepository {
	return &PostgresAuctionRepository{pool: pool}
}

// Create persists a new auction.
func (r *PostgresAuctionRepository) Create(ctx context.Context, a *auctions.Auction) error {
	query := `
		INSERT INTO auctions (` + auctionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`
	_, err := r.pool.Exec(ctx, query,
		a.ID,
		a.OwnerID,
		a.Title,
		a.Description,
		a.Category,
		a.Images,
		a.StartingPrice,
		a.BidIncrement,
		a.ReservePrice,
		a.CurrentBid,
		a.HighestBidderID,
		a.WinnerID,
		a.Status,
		a.EndAt,
		a.CreatedAt,
		a.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert auction: %w", err)
	}
	return nil
}

// GetByID retrieves an auction by its ID (non-transactional read).
func (r *PostgresAuctionRepository) GetByID(ctx context.Context, id uuid.UUID) (*auctions.Auction, error) {
	return r.getByID(ctx, r.pool, id, false)
}

// GetByIDForUpdate retrieves an auction and locks its row. Must be
// called within a transaction.
func (r *PostgresAuctionRepository) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*auctions.Auction, error) {
	return r.getByID(ctx, tx, id, true)
}

func (r *PostgresAuctionRepository) getByID(ctx context.Context, db pkgdb.DBTX, id uuid.UUID, forUpdate bool) (*auctions.Auction, error) {
	query := `SELECT ` + auctionColumns + ` FROM auctions WHERE id = $1`
	if forUpdate {
		query += " FOR UPDATE"
	}

	a, err := scanAuction(db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, auctions.ErrAuctionNotFound
		}
		return nil, fmt.Errorf("failed to get auction: %w", err)
	}
	return a, nil
}

// RecordBid updates the auction's derived bid cache within a transaction.
func (r *PostgresAuctionRepository) RecordBid(ctx context.Context, tx pgx.Tx, id uuid.UUID, bidderID uuid.UUID, amount int64) error {
	query := `
		UPDATE auctions
		SET current_bid = $1, highest_bidder_id = $2, updated_at = NOW()
		WHERE id = $3
	`
	result, err := tx.Exec(ctx, query, amount, bidderID, id)
	if err != nil {
		return fmt.Errorf("failed to record bid: %w", err)
	}
	if result.RowsAffected() == 0 {
		return auctions.ErrAuctionNotFound
	}
	return nil
}

// Close transitions a row to Ended and copies the highest bidder into
// the winner column. The status guard makes it a no-op on an already
// Ended auction, so the frozen winner never changes.
func (r *PostgresAuctionRepository) Close(ctx context.Context, tx pgx.Tx, id uuid.UUID) error {
	query := `
		UPDATE auctions
		SET status = $1, winner_id = highest_bidder_id, updated_at = NOW()
		WHERE id = $2 AND status = $3
	`
	_, err := tx.Exec(ctx, query, auctions.StatusEnded, id, auctions.StatusActive)
	if err != nil {
		return fmt.Errorf("failed to close auction: %w", err)
	}
	return nil
}

// ListActive retrieves Active auctions ordered by soonest ending.
func (r *PostgresAuctionRepository) ListActive(ctx context.Context, limit, offset int) ([]*auctions.Auction, error) {
	query := `
		SELECT ` + auctionColumns + `
		FROM auctions
		WHERE status = $1
		ORDER BY end_at ASC
		LIMIT $2 OFFSET $3
	`
	return r.list(ctx, query, auctions.StatusActive, limit, offset)
}

// ListByOwner retrieves all auctions created by a user, newest first.
func (r *PostgresAuctionRepository) ListByOwner(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]*auctions.Auction, error) {
	query := `
		SELECT ` + auctionColumns + `
		FROM auctions
		WHERE owner_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	return r.list(ctx, query, ownerID, limit, offset)
}

// ListWon retrieves Ended auctions won by a user, most recently ended first.
func (r *PostgresAuctionRepository) ListWon(ctx context.Context, bidderID uuid.UUID, limit, offset int) ([]*auctions.Auction, error) {
	query := `
		SELECT ` + auctionColumns + `
		FROM auctions
		WHERE status = 'Ended' AND winner_id = $1
		ORDER BY end_at DESC
		LIMIT $2 OFFSET $3
	`
	return r.list(ctx, query, bidderID, limit, offset)
}

// ListExpiredActive retrieves auctions still marked Active whose end
// time has passed, oldest expiry first.
func (r *PostgresAuctionRepository) ListExpiredActive(ctx context.Context, limit int) ([]*auctions.Auction, error) {
	query := `
		SELECT ` + auctionColumns + `
		FROM auctions
		WHERE status = $1 AND end_at <= NOW()
		ORDER BY end_at ASC
		LIMIT $2
	`
	return r.list(ctx, query, auctions.StatusActive, limit)
}

func (r *PostgresAuctionRepository) list(ctx context.Context, query string, args ...any) ([]*auctions.Auction, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query auctions: %w", err)
	}
	defer rows.Close()

	var result []*auctions.Auction
	for rows.Next() {
		a, err := scanAuction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan auction: %w", err)
		}
		result = append(result, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating auctions: %w", err)
	}
	return result, nil
}

func scanAuction(row pgx.Row) (*auctions.Auction, error) {
	var a auctions.Auction
	err := row.Scan(
		&a.ID,
		&a.OwnerID,
		&a.Title,
		&a.Description,
		&a.Category,
		&a.Images,
		&a.StartingPrice,
		&a.BidIncrement,
		&a.ReservePrice,
		&a.CurrentBid,
		&a.HighestBidderID,
		&a.WinnerID,
		&a.Status,
		&a.EndAt,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}
