package cache

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/outcryhq/outcry/internal/domain/auctions"
)

func testAuction(endAt time.Time) *auctions.Auction {
	return &auctions.Auction{
		ID:            uuid.New(),
		OwnerID:       uuid.New(),
		Title:         "Vintage Camera",
		StartingPrice: 10000,
		BidIncrement:  500,
		CurrentBid:    10000,
		Status:        auctions.StatusActive,
		EndAt:         endAt,
	}
}

func TestAuctionCache_Get(t *testing.T) {
	t.Run("hit returns decoded snapshot", func(t *testing.T) {
		rdb, mock := redismock.NewClientMock()
		c := NewAuctionCache(rdb, 30*time.Second)

		a := testAuction(time.Now().Add(time.Hour))
		data, err := json.Marshal(a)
		require.NoError(t, err)

		mock.ExpectGet("auction:snap:" + a.ID.String()).SetVal(string(data))

		got, ok := c.Get(context.Background(), a.ID)
		require.True(t, ok)
		assert.Equal(t, a.ID, got.ID)
		assert.Equal(t, a.CurrentBid, got.CurrentBid)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("miss returns false", func(t *testing.T) {
		rdb, mock := redismock.NewClientMock()
		c := NewAuctionCache(rdb, 30*time.Second)

		id := uuid.New()
		mock.ExpectGet("auction:snap:" + id.String()).RedisNil()

		_, ok := c.Get(context.Background(), id)
		assert.False(t, ok)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("corrupt payload is treated as a miss", func(t *testing.T) {
		rdb, mock := redismock.NewClientMock()
		c := NewAuctionCache(rdb, 30*time.Second)

		id := uuid.New()
		mock.ExpectGet("auction:snap:" + id.String()).SetVal("{not json")

		_, ok := c.Get(context.Background(), id)
		assert.False(t, ok)
	})
}

func TestAuctionCache_Set(t *testing.T) {
	t.Run("far-off end time is capped to the configured TTL", func(t *testing.T) {
		rdb, mock := redismock.NewClientMock()
		ttlCap := 30 * time.Second
		c := NewAuctionCache(rdb, ttlCap)

		a := testAuction(time.Now().Add(24 * time.Hour))
		data, err := json.Marshal(a)
		require.NoError(t, err)

		mock.ExpectSet("auction:snap:"+a.ID.String(), data, ttlCap).SetVal("OK")

		c.Set(context.Background(), a)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("auction past its end time is never stored", func(t *testing.T) {
		rdb, mock := redismock.NewClientMock()
		c := NewAuctionCache(rdb, 30*time.Second)

		a := testAuction(time.Now().Add(-time.Minute))
		c.Set(context.Background(), a)

		// No SET expectation registered: any write would fail the mock.
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestAuctionCache_Drop(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	c := NewAuctionCache(rdb, 30*time.Second)

	id := uuid.New()
	mock.ExpectDel("auction:snap:" + id.String()).SetVal(1)

	c.Drop(context.Background(), id)

	assert.NoError(t, mock.ExpectationsWereMet())
}
