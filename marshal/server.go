package marshal

import (
	"context"
	"fmt"
	"reflect"

	"crpc/codec"
	"crpc/describe"
	"crpc/middleware"
	"crpc/protocol"
	"crpc/rpcerr"
)

// Server decodes incoming payloads and invokes the bound implementation. It is
// safe for concurrent dispatch; the bound funcs must be too.
type Server struct {
	desc  *describe.Interface
	fns   []reflect.Value // by field index
	chain middleware.Middleware
}

// NewServer binds an implementation: a T with every func field populated.
func NewServer[T any](impl T) (*Server, error) {
	desc := describe.Of[T]()
	return NewServerWith(desc, reflect.ValueOf(impl))
}

// NewServerWith binds a struct value matching a pre-parsed description.
func NewServerWith(desc *describe.Interface, impl reflect.Value) (*Server, error) {
	if impl.Type() != desc.Type() {
		return nil, fmt.Errorf("marshal: implementation is %s, want %s", impl.Type(), desc.Type())
	}
	fns := make([]reflect.Value, impl.NumField())
	for _, m := range desc.Methods() {
		f := impl.Field(m.Index)
		if f.IsNil() {
			return nil, fmt.Errorf("marshal: method %s has no implementation", m.Name)
		}
		fns[m.Index] = f
	}
	return &Server{desc: desc, fns: fns}, nil
}

// Use installs middleware around every dispatched call. The first middleware
// listed runs outermost. Use must be called before the server starts
// dispatching.
func (s *Server) Use(ms ...middleware.Middleware) {
	if s.chain == nil {
		s.chain = middleware.Chain(ms...)
		return
	}
	s.chain = middleware.Chain(s.chain, middleware.Chain(ms...))
}

// Describe returns the interface description the server dispatches for.
func (s *Server) Describe() *describe.Interface { return s.desc }

// Dispatch serves one awaited call: it resolves the method, runs the
// middleware chain, and returns the encoded result payload. A nil payload
// with a nil error is a valid void reply.
func (s *Server) Dispatch(ctx context.Context, state any, id protocol.MethodID, payload []byte) ([]byte, error) {
	m, ok := s.desc.Lookup(id)
	if !ok {
		return nil, rpcerr.Newf(rpcerr.CodeNotImplemented, "no method with id %#x", uint32(id))
	}
	h := s.invoker(state)
	if s.chain != nil {
		h = s.chain(h)
	}
	return h(ctx, &middleware.Request{Method: m, Payload: payload})
}

// DispatchOneWay serves a fire-and-forget message. Failures are returned to
// the caller for local reporting only; nothing goes back on the wire.
func (s *Server) DispatchOneWay(ctx context.Context, state any, id protocol.MethodID, payload []byte) error {
	_, err := s.Dispatch(ctx, state, id, payload)
	return err
}

func (s *Server) invoker(state any) middleware.Handler {
	return func(ctx context.Context, req *middleware.Request) ([]byte, error) {
		m := req.Method
		in, err := s.decodeArgs(ctx, m, state, req.Payload)
		if err != nil {
			return nil, err
		}
		out := s.fns[m.Index].Call(in)
		switch m.Kind {
		case describe.OneWay:
			return nil, nil
		case describe.Void:
			return nil, callError(out[0])
		default:
			if err := callError(out[1]); err != nil {
				return nil, err
			}
			resp, err := codec.Marshal(state, out[0].Interface())
			if err != nil {
				return nil, rpcerr.Newf(rpcerr.CodeInvocationFailure, "%s result: %v", m.Name, err)
			}
			return resp, nil
		}
	}
}

func (s *Server) decodeArgs(ctx context.Context, m *describe.Method, state any, payload []byte) ([]reflect.Value, error) {
	in := make([]reflect.Value, 0, len(m.Args)+1)
	if m.Kind != describe.OneWay {
		in = append(in, reflect.ValueOf(ctx))
	}
	r := codec.NewReader(payload, state)
	for i, at := range m.Args {
		a := reflect.New(at)
		if err := r.Decode(a.Interface()); err != nil {
			return nil, rpcerr.Newf(rpcerr.CodeInvalidArgument, "%s argument %d: %v", m.Name, i, err)
		}
		in = append(in, a.Elem())
	}
	if r.Remaining() != 0 {
		return nil, rpcerr.Newf(rpcerr.CodeInvalidArgument, "%s: %d trailing bytes after arguments", m.Name, r.Remaining())
	}
	return in, nil
}

func callError(v reflect.Value) error {
	if v.IsNil() {
		return nil
	}
	return v.Interface().(error)
}
