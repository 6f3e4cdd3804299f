package bidlog

import (
	"time"

	"github.com/google/uuid"
)

// Bid represents one accepted bid event. Bids are created exactly once
// at acceptance time, are immutable thereafter, and are never deleted.
type Bid struct {
	ID        uuid.UUID `db:"id"`
	AuctionID uuid.UUID `db:"auction_id"`
	BidderID  uuid.UUID `db:"bidder_id"`
	Amount    int64     `db:"amount"`
	CreatedAt time.Time `db:"created_at"`
}
