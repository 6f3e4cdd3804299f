package auctions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/outcryhq/outcry/internal/domain/bidlog"
	"github.com/outcryhq/outcry/pkg/database"
	"github.com/outcryhq/outcry/pkg/events"
)

const (
	defaultTitle       = "Untitled listing"
	defaultDescription = "No description provided"
)

// Service is the auction ledger: the gatekeeper for all state
// transitions of an auction and the sole writer of its mutable fields.
// Bid admission and the closing transition run inside a row-locked
// transaction so that two concurrent bids on the same auction never
// both validate against the same stale current bid.
type Service struct {
	txManager  database.TransactionManager
	repo       Repository
	journal    *bidlog.Journal
	outboxRepo events.OutboxRepository
	cache      SnapshotCache
}

// NewService creates a new auction ledger service. cache may be nil.
func NewService(
	txManager database.TransactionManager,
	repo Repository,
	journal *bidlog.Journal,
	outboxRepo events.OutboxRepository,
	cache SnapshotCache,
) *Service {
	return &Service{
		txManager:  txManager,
		repo:       repo,
		journal:    journal,
		outboxRepo: outboxRepo,
		cache:      cache,
	}
}

// Create validates the listing fields and persists a new Active
// auction with its current bid initialized to the starting price.
func (s *Service) Create(ctx context.Context, cmd CreateAuctionCommand) (*Auction, error) {
	if cmd.StartingPrice < 0 {
		return nil, ErrInvalidStartPrice
	}
	if cmd.BidIncrement <= 0 {
		return nil, ErrInvalidIncrement
	}
	if !cmd.EndAt.After(time.Now()) {
		return nil, ErrInvalidEndTime
	}
	if cmd.ReservePrice != nil && *cmd.ReservePrice < cmd.StartingPrice {
		return nil, ErrInvalidReserve
	}

	title := cmd.Title
	if title == "" {
		title = defaultTitle
	}
	description := cmd.Description
	if description == "" {
		description = defaultDescription
	}

	now := time.Now()
	auction := &Auction{
		ID:            uuid.New(),
		OwnerID:       cmd.OwnerID,
		Title:         title,
		Description:   description,
		Category:      cmd.Category,
		Images:        cmd.Images,
		StartingPrice: cmd.StartingPrice,
		BidIncrement:  cmd.BidIncrement,
		ReservePrice:  cmd.ReservePrice,
		CurrentBid:    cmd.StartingPrice,
		Status:        StatusActive,
		EndAt:         cmd.EndAt,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.repo.Create(ctx, auction); err != nil {
		return nil, storageErr("failed to create auction", err)
	}

	return auction, nil
}

// PlaceBid validates and admits a bid. The validation chain stops at
// the first failure: existence, expiry (which may close the auction
// right now), ownership, amount, then the minimum-increment rule. On
// success the journal append, the ledger update and the outbox event
// commit as one transaction.
func (s *Service) PlaceBid(ctx context.Context, cmd PlaceBidCommand) (*bidlog.Bid, *Auction, error) {
	tx, err := s.txManager.BeginTx(ctx)
	if err != nil {
		return nil, nil, storageErr("failed to begin transaction", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	// Lock the auction row: serializes concurrent bids on this auction.
	auction, err := s.repo.GetByIDForUpdate(ctx, tx, cmd.AuctionID)
	if err != nil {
		if errors.Is(err, ErrAuctionNotFound) {
			return nil, nil, err
		}
		return nil, nil, storageErr("failed to load auction", err)
	}

	// Lazy expiry check: the auction may close right now.
	if auction.Status == StatusActive && auction.Expired(time.Now()) {
		if err := s.closeLocked(ctx, tx, auction); err != nil {
			return nil, nil, err
		}
		if err := tx.Commit(ctx); err != nil {
			return nil, nil, storageErr("failed to commit close", err)
		}
		s.dropSnapshot(ctx, auction.ID)
		return nil, nil, ErrAuctionClosed
	}
	if auction.Status == StatusEnded {
		return nil, nil, ErrAuctionClosed
	}

	if auction.IsOwnedBy(cmd.BidderID) {
		return nil, nil, ErrSelfBidForbidden
	}

	if cmd.Amount <= 0 {
		return nil, nil, ErrInvalidAmount
	}
	if cmd.Amount < auction.MinimumBid() {
		return nil, nil, fmt.Errorf("%w: minimum is %d", ErrBidTooLow, auction.MinimumBid())
	}

	bid, err := s.journal.Append(ctx, tx, auction.ID, cmd.BidderID, cmd.Amount)
	if err != nil {
		return nil, nil, storageErr("failed to journal bid", err)
	}

	if err := s.repo.RecordBid(ctx, tx, auction.ID, cmd.BidderID, cmd.Amount); err != nil {
		return nil, nil, storageErr("failed to record bid", err)
	}

	payload, err := json.Marshal(events.BidPlaced{
		BidID:     bid.ID.String(),
		AuctionID: bid.AuctionID.String(),
		BidderID:  bid.BidderID.String(),
		Amount:    bid.Amount,
		PlacedAt:  bid.CreatedAt,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal bid event: %w", err)
	}
	if err := s.saveOutboxEvent(ctx, tx, events.EventTypeBidPlaced, payload); err != nil {
		return nil, nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, storageErr("failed to commit bid", err)
	}

	bidder := cmd.BidderID
	auction.CurrentBid = cmd.Amount
	auction.HighestBidderID = &bidder
	auction.UpdatedAt = bid.CreatedAt
	s.setSnapshot(ctx, auction)

	return bid, auction, nil
}

// Get returns an auction and its full bid history, settling the
// closing transition first if the end time has passed. A stale Active
// auction is never returned as still open.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Auction, []*bidlog.Bid, error) {
	auction, ok := s.getSnapshot(ctx, id)
	if !ok {
		var err error
		auction, err = s.repo.GetByID(ctx, id)
		if err != nil {
			if errors.Is(err, ErrAuctionNotFound) {
				return nil, nil, err
			}
			return nil, nil, storageErr("failed to load auction", err)
		}
	}

	auction, err := s.settleExpired(ctx, auction)
	if err != nil {
		return nil, nil, err
	}

	if auction.Status == StatusActive {
		s.setSnapshot(ctx, auction)
	}

	bids, err := s.journal.History(ctx, id)
	if err != nil {
		return nil, nil, storageErr("failed to load bids", err)
	}

	return auction, bids, nil
}

// ListActive returns open auctions ordered by soonest ending. Expired
// rows found on the way are settled and excluded.
func (s *Service) ListActive(ctx context.Context, limit, offset int) ([]*Auction, error) {
	list, err := s.repo.ListActive(ctx, limit, offset)
	if err != nil {
		return nil, storageErr("failed to list active auctions", err)
	}

	now := time.Now()
	open := make([]*Auction, 0, len(list))
	for _, a := range list {
		if a.Expired(now) {
			if _, err := s.settleExpired(ctx, a); err != nil {
				return nil, err
			}
			continue
		}
		open = append(open, a)
	}
	return open, nil
}

// ListByOwner returns every auction created by the given user.
func (s *Service) ListByOwner(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]*Auction, error) {
	list, err := s.repo.ListByOwner(ctx, ownerID, limit, offset)
	if err != nil {
		return nil, storageErr("failed to list owner auctions", err)
	}
	return list, nil
}

// ListWon returns ended auctions whose frozen winner is the given user.
func (s *Service) ListWon(ctx context.Context, bidderID uuid.UUID, limit, offset int) ([]*Auction, error) {
	list, err := s.repo.ListWon(ctx, bidderID, limit, offset)
	if err != nil {
		return nil, storageErr("failed to list won auctions", err)
	}
	return list, nil
}

// SweepExpired settles up to limit expired auctions still marked
// Active. Lazy read-triggered closing stays authoritative; the sweep
// only makes closed state converge without traffic. Returns the number
// of auctions transitioned.
func (s *Service) SweepExpired(ctx context.Context, limit int) (int, error) {
	expired, err := s.repo.ListExpiredActive(ctx, limit)
	if err != nil {
		return 0, storageErr("failed to list expired auctions", err)
	}

	closed := 0
	for _, a := range expired {
		settled, err := s.settleExpired(ctx, a)
		if err != nil {
			return closed, err
		}
		if settled.Status == StatusEnded {
			closed++
		}
	}
	return closed, nil
}

// settleExpired runs the evaluate-and-close transition: if the auction
// is Active and past its end time it becomes Ended and the highest
// bidder, if any, is frozen as the winner. Idempotent and monotonic,
// so races between readers, bidders and the sweeper are harmless. The
// row is re-read under lock because the caller's copy may be stale.
func (s *Service) settleExpired(ctx context.Context, auction *Auction) (*Auction, error) {
	if auction.Status != StatusActive || !auction.Expired(time.Now()) {
		return auction, nil
	}

	tx, err := s.txManager.BeginTx(ctx)
	if err != nil {
		return nil, storageErr("failed to begin transaction", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	fresh, err := s.repo.GetByIDForUpdate(ctx, tx, auction.ID)
	if err != nil {
		if errors.Is(err, ErrAuctionNotFound) {
			return nil, err
		}
		return nil, storageErr("failed to load auction", err)
	}

	if fresh.Status != StatusActive || !fresh.Expired(time.Now()) {
		// Someone else already settled it, or the end time moved on a
		// stale copy. Nothing to do.
		return fresh, nil
	}

	if err := s.closeLocked(ctx, tx, fresh); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, storageErr("failed to commit close", err)
	}
	s.dropSnapshot(ctx, fresh.ID)

	return fresh, nil
}

// closeLocked transitions a row-locked Active auction to Ended,
// freezes the winner and queues the auction.ended event. The caller
// owns the transaction.
func (s *Service) closeLocked(ctx context.Context, tx pgx.Tx, auction *Auction) error {
	if err := s.repo.Close(ctx, tx, auction.ID); err != nil {
		return storageErr("failed to close auction", err)
	}

	auction.Status = StatusEnded
	auction.WinnerID = auction.HighestBidderID

	ended := events.AuctionEnded{
		AuctionID:  auction.ID.String(),
		FinalPrice: auction.CurrentBid,
		EndedAt:    auction.EndAt,
	}
	if auction.WinnerID != nil {
		ended.WinnerID = auction.WinnerID.String()
	}
	payload, err := json.Marshal(ended)
	if err != nil {
		return fmt.Errorf("failed to marshal close event: %w", err)
	}
	return s.saveOutboxEvent(ctx, tx, events.EventTypeAuctionEnded, payload)
}

func (s *Service) saveOutboxEvent(ctx context.Context, tx pgx.Tx, eventType string, payload []byte) error {
	event := &events.OutboxEvent{
		ID:        uuid.New(),
		EventType: eventType,
		Payload:   payload,
		Status:    events.OutboxStatusPending,
		CreatedAt: time.Now(),
	}
	if err := s.outboxRepo.SaveEvent(ctx, tx, event); err != nil {
		return storageErr("failed to save outbox event", err)
	}
	return nil
}

func (s *Service) getSnapshot(ctx context.Context, id uuid.UUID) (*Auction, bool) {
	if s.cache == nil {
		return nil, false
	}
	a, ok := s.cache.Get(ctx, id)
	if !ok {
		return nil, false
	}
	// A snapshot TTL is capped at the auction's end time, but clocks
	// drift: never trust a cached row past its end.
	if a.Expired(time.Now()) {
		return nil, false
	}
	return a, true
}

func (s *Service) setSnapshot(ctx context.Context, a *Auction) {
	if s.cache == nil || a.Status != StatusActive {
		return
	}
	s.cache.Set(ctx, a)
}

func (s *Service) dropSnapshot(ctx context.Context, id uuid.UUID) {
	if s.cache == nil {
		return
	}
	s.cache.Drop(ctx, id)
	zap.L().Debug("auction snapshot dropped", zap.String("auction_id", id.String()))
}
