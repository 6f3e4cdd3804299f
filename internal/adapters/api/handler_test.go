package api

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/outcryhq/outcry/internal/domain/auctions"
	"github.com/outcryhq/outcry/internal/domain/bidlog"
	"github.com/outcryhq/outcry/pkg/auth"
	"github.com/outcryhq/outcry/pkg/events"
	"github.com/outcryhq/outcry/pkg/media"
)

// In-memory fakes backing a real Service, so the handler test drives
// the same code path a request takes in production.

type fakeAuctionRepo struct {
	auctions map[uuid.UUID]*auctions.Auction
	fail     error
}

func newFakeAuctionRepo() *fakeAuctionRepo {
	return &fakeAuctionRepo{auctions: make(map[uuid.UUID]*auctions.Auction)}
}

func (f *fakeAuctionRepo) Create(ctx context.Context, a *auctions.Auction) error {
	if f.fail != nil {
		return f.fail
	}
	cp := *a
	f.auctions[a.ID] = &cp
	return nil
}

func (f *fakeAuctionRepo) GetByID(ctx context.Context, id uuid.UUID) (*auctions.Auction, error) {
	if f.fail != nil {
		return nil, f.fail
	}
	a, ok := f.auctions[id]
	if !ok {
		return nil, auctions.ErrAuctionNotFound
	}
	cp := *a
	return &cp, nil
}

func (f *fakeAuctionRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*auctions.Auction, error) {
	return f.GetByID(ctx, id)
}

func (f *fakeAuctionRepo) RecordBid(ctx context.Context, tx pgx.Tx, id, bidderID uuid.UUID, amount int64) error {
	a, ok := f.auctions[id]
	if !ok {
		return auctions.ErrAuctionNotFound
	}
	a.CurrentBid = amount
	a.HighestBidderID = &bidderID
	return nil
}

func (f *fakeAuctionRepo) Close(ctx context.Context, tx pgx.Tx, id uuid.UUID) error {
	a, ok := f.auctions[id]
	if !ok {
		return auctions.ErrAuctionNotFound
	}
	if a.Status == auctions.StatusActive {
		a.Status = auctions.StatusEnded
		a.WinnerID = a.HighestBidderID
	}
	return nil
}

func (f *fakeAuctionRepo) ListActive(ctx context.Context, limit, offset int) ([]*auctions.Auction, error) {
	if f.fail != nil {
		return nil, f.fail
	}
	var out []*auctions.Auction
	for _, a := range f.auctions {
		if a.Status == auctions.StatusActive {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeAuctionRepo) ListByOwner(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]*auctions.Auction, error) {
	var out []*auctions.Auction
	for _, a := range f.auctions {
		if a.OwnerID == ownerID {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeAuctionRepo) ListWon(ctx context.Context, bidderID uuid.UUID, limit, offset int) ([]*auctions.Auction, error) {
	var out []*auctions.Auction
	for _, a := range f.auctions {
		if a.Status == auctions.StatusEnded && a.WinnerID != nil && *a.WinnerID == bidderID {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeAuctionRepo) ListExpiredActive(ctx context.Context, limit int) ([]*auctions.Auction, error) {
	now := time.Now()
	var out []*auctions.Auction
	for _, a := range f.auctions {
		if a.Status == auctions.StatusActive && a.Expired(now) {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

type fakeBidRepo struct {
	bids []*bidlog.Bid
}

func (f *fakeBidRepo) Append(ctx context.Context, tx pgx.Tx, bid *bidlog.Bid) error {
	cp := *bid
	f.bids = append(f.bids, &cp)
	return nil
}

func (f *fakeBidRepo) ListByAuction(ctx context.Context, auctionID uuid.UUID) ([]*bidlog.Bid, error) {
	var out []*bidlog.Bid
	for _, b := range f.bids {
		if b.AuctionID == auctionID {
			out = append(out, b)
		}
	}
	return out, nil
}

type fakeOutboxRepo struct {
	saved []*events.OutboxEvent
}

func (f *fakeOutboxRepo) SaveEvent(ctx context.Context, tx pgx.Tx, event *events.OutboxEvent) error {
	f.saved = append(f.saved, event)
	return nil
}

func (f *fakeOutboxRepo) GetPendingEvents(ctx context.Context, tx pgx.Tx, limit int) ([]*events.OutboxEvent, error) {
	return f.saved, nil
}

func (f *fakeOutboxRepo) UpdateEventStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, status events.OutboxStatus) error {
	return nil
}

type noopTx struct {
	pgx.Tx
}

func (noopTx) Commit(ctx context.Context) error   { return nil }
func (noopTx) Rollback(ctx context.Context) error { return nil }

type noopTxManager struct{}

func (noopTxManager) BeginTx(ctx context.Context) (pgx.Tx, error) { return noopTx{}, nil }

type testEnv struct {
	router *gin.Engine
	repo   *fakeAuctionRepo
	bids   *fakeBidRepo
	signer *auth.Signer
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	privPEM := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	})
	pubBytes, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)
	pubPEM := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubBytes})

	signer, err := auth.NewSigner(privPEM, pubPEM, "test-issuer", time.Hour)
	require.NoError(t, err)

	repo := newFakeAuctionRepo()
	bids := &fakeBidRepo{}
	svc := auctions.NewService(noopTxManager{}, repo, bidlog.NewJournal(bids), &fakeOutboxRepo{}, nil)

	handler := NewHandler(svc, media.NewBaseURLResolver("https://media.test"))
	router := gin.New()
	handler.Register(router, auth.Middleware(signer))

	return &testEnv{router: router, repo: repo, bids: bids, signer: signer}
}

func (e *testEnv) token(t *testing.T, userID uuid.UUID) string {
	t.Helper()
	token, err := e.signer.GenerateToken(userID, "user@example.com", "Test User")
	require.NoError(t, err)
	return token
}

func (e *testEnv) seed(a *auctions.Auction) {
	cp := *a
	e.repo.auctions[a.ID] = &cp
}

func (e *testEnv) do(method, path, token string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func seedAuction(ownerID uuid.UUID, currentBid, increment int64) *auctions.Auction {
	now := time.Now()
	return &auctions.Auction{
		ID:            uuid.New(),
		OwnerID:       ownerID,
		Title:         "Vintage Camera",
		Description:   "A 1970s rangefinder",
		Category:      "photography",
		Images:        []string{"cam1.jpg"},
		StartingPrice: currentBid,
		BidIncrement:  increment,
		CurrentBid:    currentBid,
		Status:        auctions.StatusActive,
		EndAt:         now.Add(24 * time.Hour),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func TestHandler_CreateAuction(t *testing.T) {
	env := newTestEnv(t)
	userID := uuid.New()
	token := env.token(t, userID)

	t.Run("creates auction", func(t *testing.T) {
		rec := env.do(http.MethodPost, "/api/auctions", token, gin.H{
			"title":          "Vintage Camera",
			"starting_price": 10000,
			"bid_increment":  500,
			"end_at":         time.Now().Add(24 * time.Hour).Format(time.RFC3339),
		})

		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		var res AuctionResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
		assert.Equal(t, userID.String(), res.OwnerID)
		assert.Equal(t, int64(10000), res.CurrentBid)
		assert.Equal(t, "Active", res.Status)
	})

	t.Run("rejects missing increment", func(t *testing.T) {
		rec := env.do(http.MethodPost, "/api/auctions", token, gin.H{
			"starting_price": 10000,
			"end_at":         time.Now().Add(24 * time.Hour).Format(time.RFC3339),
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("rejects past end time", func(t *testing.T) {
		rec := env.do(http.MethodPost, "/api/auctions", token, gin.H{
			"starting_price": 10000,
			"bid_increment":  500,
			"end_at":         time.Now().Add(-time.Hour).Format(time.RFC3339),
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("requires authentication", func(t *testing.T) {
		rec := env.do(http.MethodPost, "/api/auctions", "", gin.H{
			"starting_price": 10000,
			"bid_increment":  500,
			"end_at":         time.Now().Add(24 * time.Hour).Format(time.RFC3339),
		})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestHandler_PlaceBid(t *testing.T) {
	ownerID := uuid.New()

	tests := []struct {
		name       string
		seed       func(env *testEnv) uuid.UUID
		bidder     uuid.UUID
		amount     int64
		wantStatus int
	}{
		{
			name: "accepted bid",
			seed: func(env *testEnv) uuid.UUID {
				a := seedAuction(ownerID, 100, 10)
				env.seed(a)
				return a.ID
			},
			bidder:     uuid.New(),
			amount:     110,
			wantStatus: http.StatusCreated,
		},
		{
			name:       "unknown auction",
			seed:       func(env *testEnv) uuid.UUID { return uuid.New() },
			bidder:     uuid.New(),
			amount:     110,
			wantStatus: http.StatusNotFound,
		},
		{
			name: "ended auction",
			seed: func(env *testEnv) uuid.UUID {
				a := seedAuction(ownerID, 100, 10)
				a.Status = auctions.StatusEnded
				env.seed(a)
				return a.ID
			},
			bidder:     uuid.New(),
			amount:     110,
			wantStatus: http.StatusConflict,
		},
		{
			name: "expired auction closes and conflicts",
			seed: func(env *testEnv) uuid.UUID {
				a := seedAuction(ownerID, 100, 10)
				a.EndAt = time.Now().Add(-time.Minute)
				env.seed(a)
				return a.ID
			},
			bidder:     uuid.New(),
			amount:     110,
			wantStatus: http.StatusConflict,
		},
		{
			name: "self bid",
			seed: func(env *testEnv) uuid.UUID {
				a := seedAuction(ownerID, 100, 10)
				env.seed(a)
				return a.ID
			},
			bidder:     ownerID,
			amount:     110,
			wantStatus: http.StatusForbidden,
		},
		{
			name: "bid too low",
			seed: func(env *testEnv) uuid.UUID {
				a := seedAuction(ownerID, 100, 10)
				env.seed(a)
				return a.ID
			},
			bidder:     uuid.New(),
			amount:     105,
			wantStatus: http.StatusBadRequest,
		},
		{
			name: "negative amount",
			seed: func(env *testEnv) uuid.UUID {
				a := seedAuction(ownerID, 100, 10)
				env.seed(a)
				return a.ID
			},
			bidder:     uuid.New(),
			amount:     -5,
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			auctionID := tt.seed(env)
			token := env.token(t, tt.bidder)

			rec := env.do(http.MethodPost,
				fmt.Sprintf("/api/auctions/%s/bids", auctionID),
				token, gin.H{"amount": tt.amount})

			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())

			if tt.wantStatus == http.StatusCreated {
				var res PlaceBidResponse
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
				assert.Equal(t, tt.amount, res.Bid.Amount)
				assert.Equal(t, tt.amount, res.Auction.CurrentBid)
				assert.Equal(t, tt.bidder.String(), res.Auction.HighestBidderID)
			}
		})
	}
}

func TestHandler_GetAuction(t *testing.T) {
	env := newTestEnv(t)

	a := seedAuction(uuid.New(), 100, 10)
	env.seed(a)
	env.bids.bids = []*bidlog.Bid{
		{ID: uuid.New(), AuctionID: a.ID, BidderID: uuid.New(), Amount: 110, CreatedAt: time.Now()},
	}

	t.Run("returns detail with history and resolved images", func(t *testing.T) {
		rec := env.do(http.MethodGet, "/api/auctions/"+a.ID.String(), "", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var res AuctionDetailResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
		assert.Equal(t, a.ID.String(), res.Auction.ID)
		assert.Equal(t, []string{"https://media.test/cam1.jpg"}, res.Auction.Images)
		require.Len(t, res.Bids, 1)
		assert.Equal(t, int64(110), res.Bids[0].Amount)
	})

	t.Run("invalid id", func(t *testing.T) {
		rec := env.do(http.MethodGet, "/api/auctions/not-a-uuid", "", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("not found", func(t *testing.T) {
		rec := env.do(http.MethodGet, "/api/auctions/"+uuid.NewString(), "", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestHandler_ListActive(t *testing.T) {
	env := newTestEnv(t)
	env.seed(seedAuction(uuid.New(), 100, 10))

	ended := seedAuction(uuid.New(), 200, 20)
	ended.Status = auctions.StatusEnded
	env.seed(ended)

	rec := env.do(http.MethodGet, "/api/auctions", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var res []AuctionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	require.Len(t, res, 1)
	assert.Equal(t, "Active", res[0].Status)
}

func TestHandler_ListMineAndPurchases(t *testing.T) {
	env := newTestEnv(t)
	ownerID := uuid.New()
	winnerID := uuid.New()

	mine := seedAuction(ownerID, 100, 10)
	env.seed(mine)

	won := seedAuction(uuid.New(), 100, 10)
	won.Status = auctions.StatusEnded
	won.WinnerID = &winnerID
	env.seed(won)

	t.Run("my auctions", func(t *testing.T) {
		rec := env.do(http.MethodGet, "/api/me/auctions", env.token(t, ownerID), nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var res []AuctionResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
		require.Len(t, res, 1)
		assert.Equal(t, mine.ID.String(), res[0].ID)
	})

	t.Run("my purchases", func(t *testing.T) {
		rec := env.do(http.MethodGet, "/api/me/purchases", env.token(t, winnerID), nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var res []AuctionResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
		require.Len(t, res, 1)
		assert.Equal(t, won.ID.String(), res[0].ID)
	})

	t.Run("requires authentication", func(t *testing.T) {
		rec := env.do(http.MethodGet, "/api/me/auctions", "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestHandler_StorageFailureMapsTo500(t *testing.T) {
	env := newTestEnv(t)
	env.repo.fail = errors.New("connection refused")

	rec := env.do(http.MethodGet, "/api/auctions", "", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	var res ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, "internal error", res.Error, "storage details never leak to clients")
}
