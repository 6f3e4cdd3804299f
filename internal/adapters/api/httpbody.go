package api

import (
	"time"

	"github.com/outcryhq/outcry/internal/domain/auctions"
	"github.com/outcryhq/outcry/internal/domain/bidlog"
	"github.com/outcryhq/outcry/pkg/media"
)

type CreateAuctionBody struct {
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	Category      string    `json:"category"`
	Images        []string  `json:"images"`
	StartingPrice int64     `json:"starting_price" binding:"gte=0"`
	BidIncrement  int64     `json:"bid_increment"  binding:"required,gt=0"`
	ReservePrice  *int64    `json:"reserve_price"  binding:"omitempty,gte=0"`
	EndAt         time.Time `json:"end_at"         binding:"required"`
}

type PlaceBidBody struct {
	Amount int64 `json:"amount" binding:"required"`
}

type ListQuery struct {
	Limit  int `form:"limit,default=20"  binding:"gte=0,lte=100"`
	Offset int `form:"offset,default=0"  binding:"gte=0"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type AuctionResponse struct {
	ID              string   `json:"id"`
	OwnerID         string   `json:"owner_id"`
	Title           string   `json:"title"`
	Description     string   `json:"description"`
	Category        string   `json:"category"`
	Images          []string `json:"images"`
	StartingPrice   int64    `json:"starting_price"`
	BidIncrement    int64    `json:"bid_increment"`
	ReservePrice    *int64   `json:"reserve_price,omitempty"`
	CurrentBid      int64    `json:"current_bid"`
	HighestBidderID string   `json:"highest_bidder_id,omitempty"`
	WinnerID        string   `json:"winner_id,omitempty"`
	Status          string   `json:"status"`
	EndAt           string   `json:"end_at"`
	CreatedAt       string   `json:"created_at"`
}

type BidResponse struct {
	ID        string `json:"id"`
	AuctionID string `json:"auction_id"`
	BidderID  string `json:"bidder_id"`
	Amount    int64  `json:"amount"`
	CreatedAt string `json:"created_at"`
}

type AuctionDetailResponse struct {
	Auction AuctionResponse `json:"auction"`
	Bids    []BidResponse   `json:"bids"`
}

type PlaceBidResponse struct {
	Bid     BidResponse     `json:"bid"`
	Auction AuctionResponse `json:"auction"`
}

func toAuctionResponse(a *auctions.Auction, resolver media.Resolver) AuctionResponse {
	res := AuctionResponse{
		ID:            a.ID.String(),
		OwnerID:       a.OwnerID.String(),
		Title:         a.Title,
		Description:   a.Description,
		Category:      a.Category,
		Images:        media.ResolveAll(resolver, a.Images),
		StartingPrice: a.StartingPrice,
		BidIncrement:  a.BidIncrement,
		ReservePrice:  a.ReservePrice,
		CurrentBid:    a.CurrentBid,
		Status:        string(a.Status),
		EndAt:         a.EndAt.Format(time.RFC3339),
		CreatedAt:     a.CreatedAt.Format(time.RFC3339),
	}
	if a.HighestBidderID != nil {
		res.HighestBidderID = a.HighestBidderID.String()
	}
	if a.WinnerID != nil {
		res.WinnerID = a.WinnerID.String()
	}
	return res
}

func toBidResponse(b *bidlog.Bid) BidResponse {
	return BidResponse{
		ID:        b.ID.String(),
		AuctionID: b.AuctionID.String(),
		BidderID:  b.BidderID.String(),
		Amount:    b.Amount,
		CreatedAt: b.CreatedAt.Format(time.RFC3339),
	}
}

func toAuctionList(list []*auctions.Auction, resolver media.Resolver) []AuctionResponse {
	out := make([]AuctionResponse, len(list))
	for i, a := range list {
		out[i] = toAuctionResponse(a, resolver)
	}
	return out
}
