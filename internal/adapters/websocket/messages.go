package websocket

import (
	"time"

	"github.com/floroz/gavel-live/internal/auction"
)

// Client → server control messages
const (
	typeJoin  = "join"
	typeLeave = "leave"
)

// Server → client messages
const (
	typeJoined = "joined"
	typeLeft   = "left"
	typeNewBid = "newBid"
	typeError  = "error"
)

type controlMessage struct {
	Type  string `json:"type"`
	LotID string `json:"lotId"`
}

type outboundMessage struct {
	Type    string      `json:"type"`
	LotID   string      `json:"lotId,omitempty"`
	Data    *bidPayload `json:"data,omitempty"`
	Message string      `json:"message,omitempty"`
}

type bidPayload struct {
	LotID         string    `json:"lotId"`
	BidID         string    `json:"bidId"`
	Amount        int64     `json:"amount"`
	AmountDisplay string    `json:"amountDisplay"`
	CommittedAt   time.Time `json:"committedAt"`
	BidderID      string    `json:"bidderId"`
	BidderName    string    `json:"bidderName"`
	Version       int64     `json:"version"`
}

func newBidMessage(s auction.BidSummary) outboundMessage {
	return outboundMessage{
		Type: typeNewBid,
		Data: &bidPayload{
			LotID:         s.LotID.String(),
			BidID:         s.BidID.String(),
			Amount:        s.Amount,
			AmountDisplay: auction.FormatAmount(s.Amount),
			CommittedAt:   s.CommittedAt.UTC(),
			BidderID:      s.BidderID.String(),
			BidderName:    s.BidderName,
			Version:       s.Version,
		},
	}
}

func errorMessage(msg string) outboundMessage {
	return outboundMessage{Type: typeError, Message: msg}
}
