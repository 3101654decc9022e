package middleware

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"crpc/describe"
	"crpc/protocol"
	"crpc/rpcerr"
)

func testRequest() *Request {
	return &Request{
		Method:  &describe.Method{Name: "Probe", ID: protocol.HashName("Probe")},
		Payload: []byte{1, 2, 3},
	}
}

func TestChainOrder(t *testing.T) {
	var order []string
	tag := func(name string) Middleware {
		return func(next Handler) Handler {
			return func(ctx context.Context, req *Request) ([]byte, error) {
				order = append(order, name+"-in")
				resp, err := next(ctx, req)
				order = append(order, name+"-out")
				return resp, err
			}
		}
	}
	h := Chain(tag("a"), tag("b"))(func(ctx context.Context, req *Request) ([]byte, error) {
		order = append(order, "handler")
		return nil, nil
	})
	if _, err := h(context.Background(), testRequest()); err != nil {
		t.Fatalf("chained handler failed: %v", err)
	}
	want := []string{"a-in", "b-in", "handler", "b-out", "a-out"}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order: got %v, want %v", order, want)
		}
	}
}

func TestChainEmpty(t *testing.T) {
	base := func(ctx context.Context, req *Request) ([]byte, error) {
		return []byte("ok"), nil
	}
	resp, err := Chain()(base)(context.Background(), testRequest())
	if err != nil || string(resp) != "ok" {
		t.Fatalf("empty chain altered the handler: %q, %v", resp, err)
	}
}

func TestRateLimit(t *testing.T) {
	h := RateLimit(1, 2)(func(ctx context.Context, req *Request) ([]byte, error) {
		return nil, nil
	})
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if _, err := h(ctx, testRequest()); err != nil {
			t.Fatalf("call %d inside burst rejected: %v", i, err)
		}
	}
	_, err := h(ctx, testRequest())
	if !errors.Is(err, rpcerr.ErrAborted) {
		t.Fatalf("call beyond burst: got %v, want aborted", err)
	}
}

func TestTimeout(t *testing.T) {
	h := Timeout(20 * time.Millisecond)(func(ctx context.Context, req *Request) ([]byte, error) {
		select {
		case <-time.After(5 * time.Second):
			return []byte("late"), nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	})
	start := time.Now()
	_, err := h(context.Background(), testRequest())
	if !errors.Is(err, rpcerr.ErrCancelled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	if time.Since(start) > time.Second {
		t.Error("timeout did not cut the wait short")
	}

	fast := Timeout(time.Second)(func(ctx context.Context, req *Request) ([]byte, error) {
		return []byte("quick"), nil
	})
	resp, err := fast(context.Background(), testRequest())
	if err != nil || string(resp) != "quick" {
		t.Fatalf("fast handler: %q, %v", resp, err)
	}
}

func TestRecovery(t *testing.T) {
	h := Recovery(zap.NewNop())(func(ctx context.Context, req *Request) ([]byte, error) {
		panic("kaboom")
	})
	_, err := h(context.Background(), testRequest())
	if !errors.Is(err, rpcerr.ErrInvocation) {
		t.Fatalf("expected invocation failure, got %v", err)
	}
}

func TestLoggingPassthrough(t *testing.T) {
	want := errors.New("downstream")
	h := Logging(zap.NewNop())(func(ctx context.Context, req *Request) ([]byte, error) {
		return []byte("body"), want
	})
	resp, err := h(context.Background(), testRequest())
	if string(resp) != "body" || !errors.Is(err, want) {
		t.Fatalf("logging altered the result: %q, %v", resp, err)
	}
}
