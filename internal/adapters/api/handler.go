// Package api serves the bidding operations over connect with a JSON codec.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"connectrpc.com/connect"
	"github.com/google/uuid"

	"github.com/floroz/gavel-live/internal/auction"
)

// BidServiceHandler adapts AuctionService to connect
type BidServiceHandler struct {
	auctionService *auction.AuctionService
}

// NewBidServiceHandler returns the path prefix and handler to mount
func NewBidServiceHandler(auctionService *auction.AuctionService, logger *slog.Logger) (string, http.Handler) {
	h := &BidServiceHandler{auctionService: auctionService}

	opts := []connect.HandlerOption{
		connect.WithCodec(jsonCodec{}),
		connect.WithInterceptors(NewLoggingInterceptor(logger)),
	}

	mux := http.NewServeMux()
	mux.Handle(PlaceBidProcedure, connect.NewUnaryHandler(PlaceBidProcedure, h.PlaceBid, opts...))
	mux.Handle(GetLotBidsProcedure, connect.NewUnaryHandler(GetLotBidsProcedure, h.GetLotBids, opts...))
	mux.Handle(CreateLotProcedure, connect.NewUnaryHandler(CreateLotProcedure, h.CreateLot, opts...))
	mux.Handle(GetLotProcedure, connect.NewUnaryHandler(GetLotProcedure, h.GetLot, opts...))
	mux.Handle(ListLotsProcedure, connect.NewUnaryHandler(ListLotsProcedure, h.ListLots, opts...))
	mux.Handle(RegisterBidderProcedure, connect.NewUnaryHandler(RegisterBidderProcedure, h.RegisterBidder, opts...))

	return "/" + BidServiceName + "/", mux
}

func fail(ctx context.Context, err error) error {
	recordCause(ctx, err)
	return toConnectError(err)
}

func (h *BidServiceHandler) PlaceBid(
	ctx context.Context,
	req *connect.Request[PlaceBidRequest],
) (*connect.Response[PlaceBidResponse], error) {
	lotID, err := uuid.Parse(req.Msg.LotID)
	if err != nil {
		return nil, invalidArgument("invalid lotId")
	}
	bidderID, err := uuid.Parse(req.Msg.BidderID)
	if err != nil {
		return nil, invalidArgument("invalid bidderId")
	}
	if req.Msg.Amount <= 0 {
		return nil, invalidArgument("amount must be positive")
	}

	bid, err := h.auctionService.PlaceBid(ctx, auction.PlaceBidCommand{
		LotID:    lotID,
		BidderID: bidderID,
		Amount:   req.Msg.Amount,
	})
	if err != nil {
		return nil, fail(ctx, err)
	}

	return connect.NewResponse(&PlaceBidResponse{Bid: mapBid(bid)}), nil
}

// GetLotBids returns the lot's bids, most recent first
func (h *BidServiceHandler) GetLotBids(
	ctx context.Context,
	req *connect.Request[GetLotBidsRequest],
) (*connect.Response[GetLotBidsResponse], error) {
	lotID, err := uuid.Parse(req.Msg.LotID)
	if err != nil {
		return nil, invalidArgument("invalid lotId")
	}

	records, err := h.auctionService.ListBids(ctx, lotID)
	if err != nil {
		return nil, fail(ctx, err)
	}

	res := &GetLotBidsResponse{Bids: make([]*BidRecord, len(records))}
	for i, r := range records {
		res.Bids[i] = mapBidRecord(r)
	}
	return connect.NewResponse(res), nil
}

func (h *BidServiceHandler) CreateLot(
	ctx context.Context,
	req *connect.Request[CreateLotRequest],
) (*connect.Response[CreateLotResponse], error) {
	endAt, err := time.Parse(time.RFC3339, req.Msg.EndAt)
	if err != nil {
		return nil, invalidArgument("invalid endAt format")
	}

	lot, err := h.auctionService.CreateLot(ctx, auction.CreateLotCommand{
		Title:         req.Msg.Title,
		Description:   req.Msg.Description,
		StartingPrice: req.Msg.StartingPrice,
		EndAt:         endAt,
	})
	if err != nil {
		return nil, fail(ctx, err)
	}

	return connect.NewResponse(&CreateLotResponse{Lot: mapLot(lot)}), nil
}

func (h *BidServiceHandler) GetLot(
	ctx context.Context,
	req *connect.Request[GetLotRequest],
) (*connect.Response[GetLotResponse], error) {
	lotID, err := uuid.Parse(req.Msg.ID)
	if err != nil {
		return nil, invalidArgument("invalid id")
	}

	lot, err := h.auctionService.GetLot(ctx, lotID)
	if err != nil {
		return nil, fail(ctx, err)
	}

	return connect.NewResponse(&GetLotResponse{Lot: mapLot(lot)}), nil
}

// ListLots returns every lot, newest first
func (h *BidServiceHandler) ListLots(
	ctx context.Context,
	_ *connect.Request[ListLotsRequest],
) (*connect.Response[ListLotsResponse], error) {
	lots, err := h.auctionService.ListLots(ctx)
	if err != nil {
		return nil, fail(ctx, err)
	}

	res := &ListLotsResponse{Lots: make([]*Lot, len(lots))}
	for i, l := range lots {
		res.Lots[i] = mapLot(l)
	}
	return connect.NewResponse(res), nil
}

func (h *BidServiceHandler) RegisterBidder(
	ctx context.Context,
	req *connect.Request[RegisterBidderRequest],
) (*connect.Response[RegisterBidderResponse], error) {
	bidder, err := h.auctionService.RegisterBidder(ctx, req.Msg.DisplayName)
	if err != nil {
		return nil, fail(ctx, err)
	}

	return connect.NewResponse(&RegisterBidderResponse{Bidder: mapBidder(bidder)}), nil
}
