package api

import (
	"time"

	"github.com/floroz/gavel-live/internal/auction"
)

// Procedure names served by BidServiceHandler
const (
	BidServiceName = "gavel.live.v1.BidService"

	PlaceBidProcedure       = "/" + BidServiceName + "/PlaceBid"
	GetLotBidsProcedure     = "/" + BidServiceName + "/GetLotBids"
	CreateLotProcedure      = "/" + BidServiceName + "/CreateLot"
	GetLotProcedure         = "/" + BidServiceName + "/GetLot"
	ListLotsProcedure       = "/" + BidServiceName + "/ListLots"
	RegisterBidderProcedure = "/" + BidServiceName + "/RegisterBidder"
)

// CurrentHighestBidHeader carries the amount to beat on a stale bid rejection
const CurrentHighestBidHeader = "Current-Highest-Bid"

type PlaceBidRequest struct {
	LotID    string `json:"lotId"`
	BidderID string `json:"bidderId"`
	Amount   int64  `json:"amount"`
}

type PlaceBidResponse struct {
	Bid *Bid `json:"bid"`
}

type GetLotBidsRequest struct {
	LotID string `json:"lotId"`
}

type GetLotBidsResponse struct {
	Bids []*BidRecord `json:"bids"`
}

type CreateLotRequest struct {
	Title         string `json:"title"`
	Description   string `json:"description"`
	StartingPrice int64  `json:"startingPrice"`
	EndAt         string `json:"endAt"` // RFC 3339
}

type CreateLotResponse struct {
	Lot *Lot `json:"lot"`
}

type GetLotRequest struct {
	ID string `json:"id"`
}

type GetLotResponse struct {
	Lot *Lot `json:"lot"`
}

type ListLotsRequest struct{}

type ListLotsResponse struct {
	Lots []*Lot `json:"lots"`
}

type RegisterBidderRequest struct {
	DisplayName string `json:"displayName"`
}

type RegisterBidderResponse struct {
	Bidder *Bidder `json:"bidder"`
}

type Bid struct {
	ID            string `json:"id"`
	LotID         string `json:"lotId"`
	BidderID      string `json:"bidderId"`
	Amount        int64  `json:"amount"`
	AmountDisplay string `json:"amountDisplay"`
	CreatedAt     string `json:"createdAt"`
}

type BidRecord struct {
	ID            string `json:"id"`
	Amount        int64  `json:"amount"`
	AmountDisplay string `json:"amountDisplay"`
	CreatedAt     string `json:"createdAt"`
	BidderID      string `json:"bidderId"`
	BidderName    string `json:"bidderName"`
}

type Lot struct {
	ID                string `json:"id"`
	Title             string `json:"title"`
	Description       string `json:"description"`
	StartingPrice     int64  `json:"startingPrice"`
	CurrentHighestBid int64  `json:"currentHighestBid"`
	EndAt             string `json:"endAt"`
	Version           int64  `json:"version"`
	CreatedAt         string `json:"createdAt"`
}

type Bidder struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	CreatedAt   string `json:"createdAt"`
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func mapBid(b *auction.Bid) *Bid {
	return &Bid{
		ID:            b.ID.String(),
		LotID:         b.LotID.String(),
		BidderID:      b.BidderID.String(),
		Amount:        b.Amount,
		AmountDisplay: auction.FormatAmount(b.Amount),
		CreatedAt:     formatTime(b.CreatedAt),
	}
}

func mapBidRecord(r *auction.BidRecord) *BidRecord {
	return &BidRecord{
		ID:            r.ID.String(),
		Amount:        r.Amount,
		AmountDisplay: auction.FormatAmount(r.Amount),
		CreatedAt:     formatTime(r.CreatedAt),
		BidderID:      r.BidderID.String(),
		BidderName:    r.BidderName,
	}
}

func mapLot(l *auction.Lot) *Lot {
	return &Lot{
		ID:                l.ID.String(),
		Title:             l.Title,
		Description:       l.Description,
		StartingPrice:     l.StartingPrice,
		CurrentHighestBid: l.CurrentHighestBid,
		EndAt:             formatTime(l.EndAt),
		Version:           l.Version,
		CreatedAt:         formatTime(l.CreatedAt),
	}
}

func mapBidder(b *auction.Bidder) *Bidder {
	return &Bidder{
		ID:          b.ID.String(),
		DisplayName: b.DisplayName,
		CreatedAt:   formatTime(b.CreatedAt),
	}
}
