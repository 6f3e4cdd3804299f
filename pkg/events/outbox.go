package events

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/outcryhq/outcry/pkg/database"
)

// OutboxStatus defines the status of an event in the outbox.
type OutboxStatus string

const (
	OutboxStatusPending    OutboxStatus = "pending"
	OutboxStatusProcessing OutboxStatus = "processing"
	OutboxStatusPublished  OutboxStatus = "published"
	OutboxStatusFailed     OutboxStatus = "failed"
)

// OutboxEvent represents a domain event waiting to be published. It is
// written in the same transaction as the state change it describes, so
// the event exists if and only if the change committed.
type OutboxEvent struct {
	ID          uuid.UUID    `db:"id"`
	EventType   string       `db:"event_type"`
	Payload     []byte       `db:"payload"`
	Status      OutboxStatus `db:"status"`
	CreatedAt   time.Time    `db:"created_at"`
	ProcessedAt *time.Time   `db:"processed_at"`
}

// OutboxRepository defines the interface for the outbox table.
type OutboxRepository interface {
	// SaveEvent saves an outbox event within a transaction.
	SaveEvent(ctx context.Context, tx pgx.Tx, event *OutboxEvent) error

	// GetPendingEvents retrieves pending events for processing.
	// Uses SELECT FOR UPDATE SKIP LOCKED so concurrent relays never
	// pick up the same event.
	GetPendingEvents(ctx context.Context, tx pgx.Tx, limit int) ([]*OutboxEvent, error)

	// UpdateEventStatus updates the status of an event.
	UpdateEventStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, status OutboxStatus) error
}

// EventPublisher defines the interface for publishing events to a broker.
type EventPublisher interface {
	Publish(ctx context.Context, exchange, routingKey string, body []byte) error
}

// OutboxRelay polls the database for pending events and publishes them.
type OutboxRelay struct {
	outboxRepo OutboxRepository
	publisher  EventPublisher
	txManager  database.TransactionManager
	batchSize  int
	interval   time.Duration
	exchange   string
	logger     *zap.Logger
}

// NewOutboxRelay creates a new outbox relay.
func NewOutboxRelay(
	outboxRepo OutboxRepository,
	publisher EventPublisher,
	txManager database.TransactionManager,
	batchSize int,
	interval time.Duration,
	exchange string,
	logger *zap.Logger,
) *OutboxRelay {
	return &OutboxRelay{
		outboxRepo: outboxRepo,
		publisher:  publisher,
		txManager:  txManager,
		batchSize:  batchSize,
		interval:   interval,
		exchange:   exchange,
		logger:     logger,
	}
}

// Run starts the polling loop and blocks until the context is cancelled.
func (r *OutboxRelay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	if err := r.processBatch(ctx); err != nil {
		r.logger.Error("outbox_relay.batch", zap.Error(err))
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := r.processBatch(ctx); err != nil {
				r.logger.Error("outbox_relay.batch", zap.Error(err))
			}
		}
	}
}

func (r *OutboxRelay) processBatch(ctx context.Context) error {
	tx, err := r.txManager.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	events, err := r.outboxRepo.GetPendingEvents(ctx, tx, r.batchSize)
	if err != nil {
		return fmt.Errorf("failed to fetch pending events: %w", err)
	}

	if len(events) == 0 {
		return nil
	}

	r.logger.Info("outbox_relay.processing", zap.Int("count", len(events)))

	for _, event := range events {
		// If publishing fails the transaction rolls back, the event
		// stays pending and is retried on the next tick.
		if err := r.publisher.Publish(ctx, r.exchange, event.EventType, event.Payload); err != nil {
			return fmt.Errorf("failed to publish event %s: %w", event.ID, err)
		}

		if err := r.outboxRepo.UpdateEventStatus(ctx, tx, event.ID, OutboxStatusPublished); err != nil {
			return fmt.Errorf("failed to update event status %s: %w", event.ID, err)
		}
	}

	return tx.Commit(ctx)
}
