package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/outcryhq/outcry/internal/adapters/api"
	"github.com/outcryhq/outcry/internal/adapters/cache"
	"github.com/outcryhq/outcry/internal/adapters/database"
	"github.com/outcryhq/outcry/internal/config"
	"github.com/outcryhq/outcry/internal/domain/auctions"
	"github.com/outcryhq/outcry/internal/domain/bidlog"
	"github.com/outcryhq/outcry/pkg/auth"
	"github.com/outcryhq/outcry/pkg/media"
	pkgdb "github.com/outcryhq/outcry/pkg/database"
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

	// Postgres
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		Log.Fatal("pg_open", zap.Error(err))
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		Log.Fatal("pg_ping", zap.Error(err))
	}
	Log.Info("postgres connected")

	// Redis snapshot cache, optional
	var snapCache auctions.SnapshotCache
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			Log.Warn("redis unavailable, snapshot cache disabled", zap.Error(err))
		} else {
			defer rdb.Close()
			snapCache = cache.NewAuctionCache(rdb, cfg.SnapshotTTLCap)
			Log.Info("redis connected")
		}
	}

	// Identity provider: validate-only signer over the issuer's public key.
	pubKey, err := os.ReadFile(cfg.JWTPublicKeyFile)
	if err != nil {
		Log.Fatal("jwt_public_key", zap.Error(err))
	}
	signer, err := auth.NewSignerFromPublicKey(pubKey, cfg.JWTIssuer)
	if err != nil {
		Log.Fatal("jwt_signer", zap.Error(err))
	}

	// Repositories and domain services
	txManager := pkgdb.NewPostgresTransactionManager(pool, cfg.DBLockTimeout)
	auctionRepo := database.NewPostgresAuctionRepository(pool)
	bidRepo := database.NewPostgresBidRepository(pool)
	outboxRepo := database.NewPostgresOutboxRepository(pool)
	journal := bidlog.NewJournal(bidRepo)
	ledger := auctions.NewService(txManager, auctionRepo, journal, outboxRepo, snapCache)

	// HTTP API
	resolver := media.NewBaseURLResolver(cfg.MediaBaseURL)
	handler := api.NewHandler(ledger, resolver)
	server := api.NewServer(cfg.HTTPPort, handler, auth.Middleware(signer))

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		Log.Info("starting http api", zap.Uint16("port", cfg.HTTPPort))
		return server.Run(ctx)
	})

	if err := g.Wait(); err != nil {
		Log.Fatal("api exited", zap.Error(err))
	}
}
