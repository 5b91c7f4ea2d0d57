package api

import (
	"context"
	"errors"
	"strconv"

	"connectrpc.com/connect"

	"github.com/floroz/gavel-live/internal/auction"
)

var errInternal = errors.New("internal error")

// toConnectError maps domain failures to connect codes. Unknown failures are
// reported as internal without their details.
func toConnectError(err error) *connect.Error {
	var stale *auction.StaleBidError
	switch {
	case errors.As(err, &stale):
		cerr := connect.NewError(connect.CodeFailedPrecondition, err)
		cerr.Meta().Set(CurrentHighestBidHeader, strconv.FormatInt(stale.CurrentHighestBid, 10))
		return cerr
	case errors.Is(err, auction.ErrNotFound):
		return connect.NewError(connect.CodeNotFound, err)
	case errors.Is(err, auction.ErrAuctionEnded):
		return connect.NewError(connect.CodeFailedPrecondition, err)
	case errors.Is(err, auction.ErrTransientStore):
		return connect.NewError(connect.CodeUnavailable, auction.ErrTransientStore)
	case errors.Is(err, auction.ErrInvalidStartPrice),
		errors.Is(err, auction.ErrInvalidEndTime),
		errors.Is(err, auction.ErrInvalidBidderName):
		return connect.NewError(connect.CodeInvalidArgument, err)
	case errors.Is(err, context.Canceled):
		return connect.NewError(connect.CodeCanceled, err)
	case errors.Is(err, context.DeadlineExceeded):
		return connect.NewError(connect.CodeDeadlineExceeded, err)
	default:
		return connect.NewError(connect.CodeInternal, errInternal)
	}
}

func invalidArgument(msg string) *connect.Error {
	return connect.NewError(connect.CodeInvalidArgument, errors.New(msg))
}
