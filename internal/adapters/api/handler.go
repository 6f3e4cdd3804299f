package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/outcryhq/outcry/internal/domain/auctions"
	"github.com/outcryhq/outcry/pkg/auth"
	"github.com/outcryhq/outcry/pkg/media"
)

// Handler exposes the auction ledger over HTTP. It maps transport
// concerns only; every rule lives in the domain service.
type Handler struct {
	svc      *auctions.Service
	resolver media.Resolver
}

func NewHandler(svc *auctions.Service, resolver media.Resolver) *Handler {
	return &Handler{svc: svc, resolver: resolver}
}

// Register wires the routes. authMW guards every operation that needs
// an authenticated identity.
func (h *Handler) Register(r gin.IRouter, authMW gin.HandlerFunc) {
	r.GET("/api/auctions", h.listActive)
	r.GET("/api/auctions/:id", h.get)

	authed := r.Group("/", authMW)
	authed.POST("/api/auctions", h.create)
	authed.POST("/api/auctions/:id/bids", h.placeBid)
	authed.GET("/api/me/auctions", h.listMine)
	authed.GET("/api/me/purchases", h.listWon)
}

func (h *Handler) create(c *gin.Context) {
	var body CreateAuctionBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	auction, err := h.svc.Create(c.Request.Context(), auctions.CreateAuctionCommand{
		OwnerID:       auth.MustGetUserID(c),
		Title:         body.Title,
		Description:   body.Description,
		Category:      body.Category,
		Images:        body.Images,
		StartingPrice: body.StartingPrice,
		BidIncrement:  body.BidIncrement,
		ReservePrice:  body.ReservePrice,
		EndAt:         body.EndAt,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, toAuctionResponse(auction, h.resolver))
}

func (h *Handler) listActive(c *gin.Context) {
	var q ListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	list, err := h.svc.ListActive(c.Request.Context(), q.Limit, q.Offset)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toAuctionList(list, h.resolver))
}

func (h *Handler) get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid auction id"})
		return
	}

	auction, bids, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}

	res := AuctionDetailResponse{
		Auction: toAuctionResponse(auction, h.resolver),
		Bids:    make([]BidResponse, len(bids)),
	}
	for i, b := range bids {
		res.Bids[i] = toBidResponse(b)
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) placeBid(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid auction id"})
		return
	}

	var body PlaceBidBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	bid, auction, err := h.svc.PlaceBid(c.Request.Context(), auctions.PlaceBidCommand{
		AuctionID: id,
		BidderID:  auth.MustGetUserID(c),
		Amount:    body.Amount,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, PlaceBidResponse{
		Bid:     toBidResponse(bid),
		Auction: toAuctionResponse(auction, h.resolver),
	})
}

func (h *Handler) listMine(c *gin.Context) {
	var q ListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	list, err := h.svc.ListByOwner(c.Request.Context(), auth.MustGetUserID(c), q.Limit, q.Offset)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toAuctionList(list, h.resolver))
}

func (h *Handler) listWon(c *gin.Context) {
	var q ListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	list, err := h.svc.ListWon(c.Request.Context(), auth.MustGetUserID(c), q.Limit, q.Offset)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toAuctionList(list, h.resolver))
}

// writeError maps domain errors to HTTP statuses. Everything in the
// client-fault taxonomy is returned synchronously; only storage
// failures surface as 500.
func (h *Handler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, auctions.ErrAuctionNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error()})
	case errors.Is(err, auctions.ErrAuctionClosed):
		c.JSON(http.StatusConflict, ErrorResponse{Error: err.Error()})
	case errors.Is(err, auctions.ErrSelfBidForbidden):
		c.JSON(http.StatusForbidden, ErrorResponse{Error: err.Error()})
	case errors.Is(err, auctions.ErrInvalidAmount),
		errors.Is(err, auctions.ErrBidTooLow),
		errors.Is(err, auctions.ErrInvalidStartPrice),
		errors.Is(err, auctions.ErrInvalidIncrement),
		errors.Is(err, auctions.ErrInvalidEndTime),
		errors.Is(err, auctions.ErrInvalidReserve):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
	}
}
