package bidlog

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Repository defines the interface for bid persistence. The journal is
// append-only: there is no update or delete.
type Repository interface {
	// Append inserts a bid within the caller's transaction.
	Append(ctx context.Context, tx pgx.Tx, bid *Bid) error

	// ListByAuction retrieves all bids for an auction ordered by
	// timestamp ascending.
	ListByAuction(ctx context.Context, auctionID uuid.UUID) ([]*Bid, error)
}
