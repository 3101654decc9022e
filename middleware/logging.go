package middleware

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Logging records every dispatched call with its duration and outcome.
func Logging(logger *zap.Logger) Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, req *Request) ([]byte, error) {
			start := time.Now()
			resp, err := next(ctx, req)
			fields := []zap.Field{
				zap.String("method", req.Method.Name),
				zap.Duration("duration", time.Since(start)),
			}
			if err != nil {
				logger.Warn("call failed", append(fields, zap.Error(err))...)
			} else {
				logger.Debug("call served", fields...)
			}
			return resp, err
		}
	}
}
