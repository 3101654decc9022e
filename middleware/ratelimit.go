package middleware

import (
	"context"

	"golang.org/x/time/rate"

	"crpc/rpcerr"
)

// RateLimit rejects calls beyond a token-bucket budget shared by every method
// on the connection.
func RateLimit(perSecond float64, burst int) Middleware {
	limiter := rate.NewLimiter(rate.Limit(perSecond), burst)
	return func(next Handler) Handler {
		return func(ctx context.Context, req *Request) ([]byte, error) {
			if !limiter.Allow() {
				return nil, rpcerr.New(rpcerr.CodeAborted, "rate limit exceeded")
			}
			return next(ctx, req)
		}
	}
}
