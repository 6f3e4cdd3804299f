package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/outcryhq/outcry/internal/adapters/cache"
	"github.com/outcryhq/outcry/internal/adapters/database"
	"github.com/outcryhq/outcry/internal/config"
	"github.com/outcryhq/outcry/internal/domain/auctions"
	"github.com/outcryhq/outcry/internal/domain/bidlog"
	pkgdb "github.com/outcryhq/outcry/pkg/database"
	"github.com/outcryhq/outcry/pkg/events"
)

var Log, _ = zap.NewProduction()

func main() {
	defer Log.Sync()
	zap.ReplaceGlobals(Log)

	cfg, err := config.Load()
	if err != nil {
		Log.Fatal("config_load", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGINT, syscall.SIGTERM,
	)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		Log.Fatal("pg_open", zap.Error(err))
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		Log.Fatal("pg_ping", zap.Error(err))
	}
	Log.Info("postgres connected")

	conn, err := amqp.Dial(cfg.RabbitURL)
	if err != nil {
		Log.Fatal("rabbitmq_dial", zap.Error(err))
	}
	defer conn.Close()

	publisher, err := events.NewRabbitMQPublisher(conn, cfg.EventsExchange)
	if err != nil {
		Log.Fatal("rabbitmq_publisher", zap.Error(err))
	}
	defer publisher.Close()
	Log.Info("rabbitmq connected", zap.String("exchange", cfg.EventsExchange))

	var snapCache auctions.SnapshotCache
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			Log.Warn("redis unavailable, snapshot cache disabled", zap.Error(err))
		} else {
			defer rdb.Close()
			snapCache = cache.NewAuctionCache(rdb, cfg.SnapshotTTLCap)
		}
	}

	txManager := pkgdb.NewPostgresTransactionManager(pool, cfg.DBLockTimeout)
	auctionRepo := database.NewPostgresAuctionRepository(pool)
	bidRepo := database.NewPostgresBidRepository(pool)
	outboxRepo := database.NewPostgresOutboxRepository(pool)
	journal := bidlog.NewJournal(bidRepo)
	ledger := auctions.NewService(txManager, auctionRepo, journal, outboxRepo, snapCache)

	relay := events.NewOutboxRelay(
		outboxRepo, publisher, txManager,
		cfg.OutboxBatch, cfg.OutboxInterval, cfg.EventsExchange, Log,
	)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		Log.Info("starting outbox relay", zap.Int("batch", cfg.OutboxBatch))
		return relay.Run(ctx)
	})
	g.Go(func() error {
		Log.Info("starting expiry sweeper", zap.Duration("interval", cfg.SweepInterval))
		return runSweeper(ctx, ledger, cfg.SweepInterval, cfg.SweepBatch)
	})

	if err := g.Wait(); err != nil {
		Log.Fatal("worker exited", zap.Error(err))
	}
	Log.Info("worker stopped")
}

// runSweeper settles auctions whose end time has passed so results are
// published even when no reader or bidder ever touches them again.
func runSweeper(ctx context.Context, ledger *auctions.Service, interval time.Duration, batch int) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			closed, err := ledger.SweepExpired(ctx, batch)
			if err != nil {
				Log.Error("sweep failed", zap.Error(err))
				continue
			}
			if closed > 0 {
				Log.Info("settled expired auctions", zap.Int("count", closed))
			}
		}
	}
}
