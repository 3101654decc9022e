package middleware

import (
	"context"

	"go.uber.org/zap"

	"crpc/rpcerr"
)

// Recovery converts a handler panic into an invocation failure so one bad
// method cannot take down the whole connection.
func Recovery(logger *zap.Logger) Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, req *Request) (resp []byte, err error) {
			defer func() {
				if r := recover(); r != nil {
					logger.Error("handler panicked",
						zap.String("method", req.Method.Name),
						zap.Any("panic", r),
						zap.Stack("stack"))
					err = rpcerr.Newf(rpcerr.CodeInvocationFailure, "%s panicked: %v", req.Method.Name, r)
				}
			}()
			return next(ctx, req)
		}
	}
}
