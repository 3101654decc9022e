// Package calc is the sample application: a calculator interface exercising
// value-returning calls, from plain numbers to tagged unions, and
// fire-and-forget telemetry. It declares no awaited void method.
package calc

import (
	"context"
	"time"

	"crpc/codec"
)

// ErrorCode enumerates the calculator's domain failures.
type ErrorCode uint32

const (
	// IncompatibleTypes reports a UniversalAdd over mixed operand kinds.
	IncompatibleTypes ErrorCode = 1
)

// CalcError is the calculator's portable failure value. It crosses the wire
// as a union alternative, not as a transport-level error.
type CalcError struct {
	Description string
	Code        ErrorCode
}

// Term is one UniversalAdd operand: a number or a string.
type Term = codec.Variant2[int32, string]

// Sum is the UniversalAdd outcome: a number, a string, or a CalcError.
type Sum = codec.Variant3[int32, string, CalcError]

// Num builds a numeric Term.
func Num(v int32) Term { return codec.V2A[int32, string](v) }

// Str builds a string Term.
func Str(v string) Term { return codec.V2B[int32](v) }

// EventKind classifies a telemetry event.
type EventKind uint8

const (
	EventStartup EventKind = iota
	EventCalculation
	EventShutdown
)

func (k EventKind) String() string {
	switch k {
	case EventStartup:
		return "startup"
	case EventCalculation:
		return "calculation"
	case EventShutdown:
		return "shutdown"
	default:
		return "event(?)"
	}
}

// TelemetryInfo rides along SendTelemetry. The timestamp is hooked below so
// it crosses the wire as whole seconds.
type TelemetryInfo struct {
	Kind    EventKind
	At      time.Time
	Details string
}

func init() {
	codec.Register(
		func(w *codec.Writer, v time.Time) error {
			w.WriteInt64(v.Unix())
			return nil
		},
		func(r *codec.Reader, v *time.Time) error {
			sec, err := r.ReadInt64()
			if err != nil {
				return err
			}
			*v = time.Unix(sec, 0).UTC()
			return nil
		},
	)
}

// Calculator is the remote interface served by this package and bound as
// client stubs by its peers.
type Calculator struct {
	SimpleSum     func(ctx context.Context, a, b int32) (int32, error)
	ArraySum      func(ctx context.Context, xs []int32) (int32, error)
	StringConcat  func(ctx context.Context, a, b string) (string, error)
	UniversalAdd  func(ctx context.Context, a, b Term) (Sum, error)
	SendTelemetry func(info TelemetryInfo)
}
