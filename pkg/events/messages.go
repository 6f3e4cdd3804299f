package events

import "time"

// Event types carried as routing keys on the auction.events exchange.
const (
	EventTypeBidPlaced    = "bid.placed"
	EventTypeAuctionEnded = "auction.ended"
)

// BidPlaced is the JSON payload published when a bid is accepted.
type BidPlaced struct {
	BidID     string    `json:"bid_id"`
	AuctionID string    `json:"auction_id"`
	BidderID  string    `json:"bidder_id"`
	Amount    int64     `json:"amount"`
	PlacedAt  time.Time `json:"placed_at"`
}

// AuctionEnded is the JSON payload published when an auction closes.
// WinnerID is empty when the auction ended without bids.
type AuctionEnded struct {
	AuctionID  string    `json:"auction_id"`
	WinnerID   string    `json:"winner_id,omitempty"`
	FinalPrice int64     `json:"final_price"`
	EndedAt    time.Time `json:"ended_at"`
}
