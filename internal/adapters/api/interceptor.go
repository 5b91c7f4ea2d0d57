package api

import (
	"context"
	"log/slog"
	"time"

	"connectrpc.com/connect"
)

// callCause holds the domain error behind a failed call. Clients see the
// mapped connect error; the log gets the original.
type callCause struct {
	err error
}

type causeKey struct{}

func recordCause(ctx context.Context, err error) {
	if c, ok := ctx.Value(causeKey{}).(*callCause); ok {
		c.err = err
	}
}

// NewLoggingInterceptor logs every unary call with its outcome and duration
func NewLoggingInterceptor(logger *slog.Logger) connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			start := time.Now()
			cause := &callCause{}
			ctx = context.WithValue(ctx, causeKey{}, cause)

			res, err := next(ctx, req)

			attrs := []any{
				"procedure", req.Spec().Procedure,
				"duration", time.Since(start),
			}
			if err == nil {
				logger.Info("RPC completed", attrs...)
				return res, nil
			}

			logged := cause.err
			if logged == nil {
				logged = err
			}
			code := connect.CodeOf(err)
			attrs = append(attrs, "code", code.String(), "error", logged)

			switch code {
			case connect.CodeInternal, connect.CodeUnknown:
				logger.Error("RPC failed", attrs...)
			case connect.CodeUnavailable, connect.CodeDeadlineExceeded:
				logger.Warn("RPC failed", attrs...)
			default:
				logger.Info("RPC rejected", attrs...)
			}
			return res, err
		}
	}
}
