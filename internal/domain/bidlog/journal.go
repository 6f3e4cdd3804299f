package bidlog

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Journal is the durable, strictly-ordered record of accepted bids per
// auction. Appends happen inside the ledger's transaction so that the
// journal entry and the auction's cached current-price fields commit
// or roll back together.
type Journal struct {
	repo Repository
}

// NewJournal creates a new bid journal.
func NewJournal(repo Repository) *Journal {
	return &Journal{repo: repo}
}

// Append records an accepted bid with a server-assigned timestamp.
func (j *Journal) Append(ctx context.Context, tx pgx.Tx, auctionID, bidderID uuid.UUID, amount int64) (*Bid, error) {
	bid := &Bid{
		ID:        uuid.New(),
		AuctionID: auctionID,
		BidderID:  bidderID,
		Amount:    amount,
		CreatedAt: time.Now().UTC(),
	}
	if err := j.repo.Append(ctx, tx, bid); err != nil {
		return nil, fmt.Errorf("failed to append bid: %w", err)
	}
	return bid, nil
}

// History returns the auction's accepted bids in insertion order,
// oldest first.
func (j *Journal) History(ctx context.Context, auctionID uuid.UUID) ([]*Bid, error) {
	bids, err := j.repo.ListByAuction(ctx, auctionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load bid history: %w", err)
	}
	return bids, nil
}
