package calc

import (
	"context"

	"go.uber.org/zap"

	"crpc/codec"
)

// NewService returns the reference implementation of the Calculator
// interface.
func NewService(logger *zap.Logger) Calculator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return Calculator{
		SimpleSum: func(ctx context.Context, a, b int32) (int32, error) {
			return a + b, nil
		},
		ArraySum: func(ctx context.Context, xs []int32) (int32, error) {
			var sum int32
			for _, x := range xs {
				sum += x
			}
			return sum, nil
		},
		StringConcat: func(ctx context.Context, a, b string) (string, error) {
			return a + b, nil
		},
		UniversalAdd: func(ctx context.Context, a, b Term) (Sum, error) {
			return Add(a, b), nil
		},
		SendTelemetry: func(info TelemetryInfo) {
			logger.Info("telemetry event",
				zap.Stringer("kind", info.Kind),
				zap.Time("at", info.At),
				zap.String("details", info.Details))
		},
	}
}

// Add combines two terms: numbers add, strings concatenate, and a mixed pair
// yields an IncompatibleTypes error value.
func Add(a, b Term) Sum {
	if x, ok := a.A(); ok {
		if y, ok := b.A(); ok {
			return codec.V3A[int32, string, CalcError](x + y)
		}
	}
	if x, ok := a.B(); ok {
		if y, ok := b.B(); ok {
			return codec.V3B[int32, string, CalcError](x + y)
		}
	}
	return codec.V3C[int32, string](CalcError{
		Description: "Incompatible argument types",
		Code:        IncompatibleTypes,
	})
}
