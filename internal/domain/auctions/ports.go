package auctions

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Repository defines the interface for auction persistence. The
// Service is the sole writer of the mutable auction fields; every
// write goes through one of the transactional methods below.
type Repository interface {
	// Create persists a new auction.
	Create(ctx context.Context, a *Auction) error

	// GetByID retrieves an auction by its ID.
	GetByID(ctx context.Context, id uuid.UUID) (*Auction, error)

	// GetByIDForUpdate retrieves an auction and locks its row for update.
	// This serializes concurrent bids on the same auction.
	// Must be called within a transaction.
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*Auction, error)

	// RecordBid updates the auction's current bid and highest bidder
	// within a transaction, alongside the journal append.
	RecordBid(ctx context.Context, tx pgx.Tx, id uuid.UUID, bidderID uuid.UUID, amount int64) error

	// Close transitions the auction to Ended and freezes the highest
	// bidder as the winner. A no-op if the auction is already Ended.
	Close(ctx context.Context, tx pgx.Tx, id uuid.UUID) error

	// ListActive retrieves Active auctions ordered by soonest ending.
	ListActive(ctx context.Context, limit, offset int) ([]*Auction, error)

	// ListByOwner retrieves all auctions created by a user.
	ListByOwner(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]*Auction, error)

	// ListWon retrieves Ended auctions won by a user.
	ListWon(ctx context.Context, bidderID uuid.UUID, limit, offset int) ([]*Auction, error)

	// ListExpiredActive retrieves auctions still marked Active whose end
	// time has passed. Used by the expiry sweeper.
	ListExpiredActive(ctx context.Context, limit int) ([]*Auction, error)
}

// SnapshotCache is a best-effort read cache for active auction
// snapshots. Implementations must never serve a snapshot past its
// auction's end time; failures are logged, not surfaced.
type SnapshotCache interface {
	Get(ctx context.Context, id uuid.UUID) (*Auction, bool)
	Set(ctx context.Context, a *Auction)
	Drop(ctx context.Context, id uuid.UUID)
}
