package auction

import (
	"fmt"

	"github.com/google/uuid"
	"google.golang.org/protobuf/encoding/protowire"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/timestamppb"
)

// BidPlaced wire layout (proto3):
//
//	message BidPlaced {
//	  string bid_id = 1;
//	  string lot_id = 2;
//	  string bidder_id = 3;
//	  int64 amount = 4;
//	  google.protobuf.Timestamp committed_at = 5;
//	  int64 version = 6;
//	  string bidder_name = 7;
//	}
const (
	fieldBidID       protowire.Number = 1
	fieldLotID       protowire.Number = 2
	fieldBidderID    protowire.Number = 3
	fieldAmount      protowire.Number = 4
	fieldCommittedAt protowire.Number = 5
	fieldVersion     protowire.Number = 6
	fieldBidderName  protowire.Number = 7
)

// EncodeBidPlaced serializes a summary as a BidPlaced protobuf message
func EncodeBidPlaced(s BidSummary) ([]byte, error) {
	ts, err := proto.Marshal(timestamppb.New(s.CommittedAt))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal timestamp: %w", err)
	}

	var b []byte
	b = protowire.AppendTag(b, fieldBidID, protowire.BytesType)
	b = protowire.AppendString(b, s.BidID.String())
	b = protowire.AppendTag(b, fieldLotID, protowire.BytesType)
	b = protowire.AppendString(b, s.LotID.String())
	b = protowire.AppendTag(b, fieldBidderID, protowire.BytesType)
	b = protowire.AppendString(b, s.BidderID.String())
	b = protowire.AppendTag(b, fieldAmount, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(s.Amount))
	b = protowire.AppendTag(b, fieldCommittedAt, protowire.BytesType)
	b = protowire.AppendBytes(b, ts)
	b = protowire.AppendTag(b, fieldVersion, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(s.Version))
	if s.BidderName != "" {
		b = protowire.AppendTag(b, fieldBidderName, protowire.BytesType)
		b = protowire.AppendString(b, s.BidderName)
	}
	return b, nil
}

// DecodeBidPlaced parses a BidPlaced protobuf message. Unknown fields are skipped.
func DecodeBidPlaced(b []byte) (BidSummary, error) {
	var s BidSummary
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return BidSummary{}, fmt.Errorf("invalid tag: %w", protowire.ParseError(n))
		}
		b = b[n:]

		switch {
		case typ == protowire.BytesType && (num == fieldBidID || num == fieldLotID || num == fieldBidderID || num == fieldBidderName):
			v, m := protowire.ConsumeString(b)
			if m < 0 {
				return BidSummary{}, fmt.Errorf("invalid field %d: %w", num, protowire.ParseError(m))
			}
			b = b[m:]
			if num == fieldBidderName {
				s.BidderName = v
				continue
			}
			id, err := uuid.Parse(v)
			if err != nil {
				return BidSummary{}, fmt.Errorf("invalid uuid in field %d: %w", num, err)
			}
			switch num {
			case fieldBidID:
				s.BidID = id
			case fieldLotID:
				s.LotID = id
			case fieldBidderID:
				s.BidderID = id
			}
		case typ == protowire.VarintType && (num == fieldAmount || num == fieldVersion):
			v, m := protowire.ConsumeVarint(b)
			if m < 0 {
				return BidSummary{}, fmt.Errorf("invalid field %d: %w", num, protowire.ParseError(m))
			}
			b = b[m:]
			if num == fieldAmount {
				s.Amount = int64(v)
			} else {
				s.Version = int64(v)
			}
		case typ == protowire.BytesType && num == fieldCommittedAt:
			v, m := protowire.ConsumeBytes(b)
			if m < 0 {
				return BidSummary{}, fmt.Errorf("invalid committed_at: %w", protowire.ParseError(m))
			}
			b = b[m:]
			var ts timestamppb.Timestamp
			if err := proto.Unmarshal(v, &ts); err != nil {
				return BidSummary{}, fmt.Errorf("failed to unmarshal timestamp: %w", err)
			}
			s.CommittedAt = ts.AsTime()
		default:
			m := protowire.ConsumeFieldValue(num, typ, b)
			if m < 0 {
				return BidSummary{}, fmt.Errorf("invalid field %d: %w", num, protowire.ParseError(m))
			}
			b = b[m:]
		}
	}

	if s.LotID == uuid.Nil || s.BidID == uuid.Nil {
		return BidSummary{}, fmt.Errorf("bid placed event missing ids")
	}
	return s, nil
}
