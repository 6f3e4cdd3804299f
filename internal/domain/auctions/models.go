package auctions

import (
	"time"

	"github.com/google/uuid"
)

// Status represents the lifecycle state of an auction. An auction is
// created Active and transitions to Ended exactly once; there is no
// way back.
type Status string

const (
	StatusActive Status = "Active"
	StatusEnded  Status = "Ended"
)

// Auction represents one listing being sold. Prices are in minor
// units (cents). The mutable fields (CurrentBid, HighestBidderID,
// WinnerID, Status) are written only by the Service: through bid
// acceptance or the closing transition.
type Auction struct {
	ID              uuid.UUID
	OwnerID         uuid.UUID
	Title           string
	Description     string
	Category        string
	Images          []string // opaque media refs, resolved at the API boundary
	StartingPrice   int64
	BidIncrement    int64
	ReservePrice    *int64 // recorded only, never enforced at admission
	CurrentBid      int64
	HighestBidderID *uuid.UUID
	WinnerID        *uuid.UUID
	Status          Status
	EndAt           time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// IsOwnedBy reports whether the given user created this listing.
func (a *Auction) IsOwnedBy(userID uuid.UUID) bool {
	return a.OwnerID == userID
}

// Expired reports whether the auction's end time has passed. Expired
// does not imply Ended: the status transition happens lazily, on the
// next read or bid.
func (a *Auction) Expired(now time.Time) bool {
	return !now.Before(a.EndAt)
}

// MinimumBid returns the lowest amount the next bid must reach.
// The baseline is always CurrentBid, which is initialized to
// StartingPrice at creation, so the very first bid must clear
// StartingPrice + BidIncrement.
func (a *Auction) MinimumBid() int64 {
	return a.CurrentBid + a.BidIncrement
}

// CreateAuctionCommand carries the immutable listing fields supplied
// by the owner at creation time.
type CreateAuctionCommand struct {
	OwnerID       uuid.UUID
	Title         string
	Description   string
	Category      string
	Images        []string
	StartingPrice int64
	BidIncrement  int64
	ReservePrice  *int64
	EndAt         time.Time
}

// PlaceBidCommand represents the command to place a bid.
type PlaceBidCommand struct {
	AuctionID uuid.UUID
	BidderID  uuid.UUID
	Amount    int64
}
