package auctions

import (
	"errors"
	"fmt"
)

// Bid admission errors, returned in validation order.
var (
	ErrAuctionNotFound  = errors.New("auction not found")
	ErrAuctionClosed    = errors.New("auction has ended")
	ErrSelfBidForbidden = errors.New("owner cannot bid on their own auction")
	ErrInvalidAmount    = errors.New("bid amount must be positive")
	ErrBidTooLow        = errors.New("bid amount below minimum increment")
)

// Listing validation errors.
var (
	ErrInvalidStartPrice = errors.New("starting price must not be negative")
	ErrInvalidIncrement  = errors.New("bid increment must be positive")
	ErrInvalidEndTime    = errors.New("end time must be in the future")
	ErrInvalidReserve    = errors.New("reserve price must not be below starting price")
)

// ErrStorage marks persistence failures. The request fails as a whole:
// the transaction rolls back and the auction's visible state is
// unchanged.
var ErrStorage = errors.New("storage failure")

func storageErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStorage, err)
}
