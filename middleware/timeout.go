package middleware

import (
	"context"
	"time"

	"crpc/rpcerr"
)

type result struct {
	resp []byte
	err  error
}

// Timeout bounds the handler's run time. The handler keeps running in its
// goroutine after expiry; the caller just stops waiting for it.
func Timeout(d time.Duration) Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, req *Request) ([]byte, error) {
			ctx, cancel := context.WithTimeout(ctx, d)
			defer cancel()

			done := make(chan result, 1)
			go func() {
				resp, err := next(ctx, req)
				done <- result{resp, err}
			}()

			select {
			case r := <-done:
				return r.resp, r.err
			case <-ctx.Done():
				return nil, rpcerr.Newf(rpcerr.CodeCancelled, "%s timed out after %s", req.Method.Name, d)
			}
		}
	}
}
