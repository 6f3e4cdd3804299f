package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/outcryhq/outcry/internal/domain/auctions"
)

const keyPrefix = "auction:snap:"

// AuctionCache is a best-effort Redis read cache for active auction
// snapshots. Entries expire no later than the auction's end time, so a
// hit can never present an expired auction as still open. All failures
// are logged and swallowed: the database remains the source of truth.
type AuctionCache struct {
	rdb    *redis.Client
	ttlCap time.Duration
}

// NewAuctionCache creates a new snapshot cache. ttlCap bounds how long
// a snapshot may outlive the write that produced it.
func NewAuctionCache(rdb *redis.Client, ttlCap time.Duration) *AuctionCache {
	return &AuctionCache{rdb: rdb, ttlCap: ttlCap}
}

func key(id uuid.UUID) string { return keyPrefix + id.String() }

// Get returns the cached snapshot, if any.
func (c *AuctionCache) Get(ctx context.Context, id uuid.UUID) (*auctions.Auction, bool) {
	data, err := c.rdb.Get(ctx, key(id)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			zap.L().Warn("auction_cache.get", zap.Error(err))
		}
		return nil, false
	}

	var a auctions.Auction
	if err := json.Unmarshal(data, &a); err != nil {
		zap.L().Warn("auction_cache.decode", zap.Error(err))
		return nil, false
	}
	return &a, true
}

// Set stores a snapshot with a TTL capped at the time remaining until
// the auction ends. Snapshots of auctions at or past their end time
// are not stored.
func (c *AuctionCache) Set(ctx context.Context, a *auctions.Auction) {
	ttl := time.Until(a.EndAt)
	if ttl <= 0 {
		return
	}
	if ttl > c.ttlCap {
		ttl = c.ttlCap
	}

	data, err := json.Marshal(a)
	if err != nil {
		zap.L().Warn("auction_cache.encode", zap.Error(err))
		return
	}
	if err := c.rdb.Set(ctx, key(a.ID), data, ttl).Err(); err != nil {
		zap.L().Warn("auction_cache.set", zap.Error(err))
	}
}

// Drop removes a snapshot, typically after a close transition.
func (c *AuctionCache) Drop(ctx context.Context, id uuid.UUID) {
	if err := c.rdb.Del(ctx, key(id)).Err(); err != nil {
		zap.L().Warn("auction_cache.drop", zap.Error(err))
	}
}
