// Package marshal bridges Go func values and wire payloads: it builds client
// stubs that encode argument tuples and a server dispatcher that decodes them
// and invokes the bound implementation.
package marshal

import (
	"context"
	"reflect"

	"crpc/codec"
	"crpc/describe"
	"crpc/protocol"
)

// Caller is the transport-facing half a client stub needs: issue a call that
// awaits a reply, or post one that does not. The connection engine implements
// it.
type Caller interface {
	// Call sends a request and blocks until the matching response, a
	// transport failure, or ctx expiry.
	Call(ctx context.Context, id protocol.MethodID, payload []byte) ([]byte, error)
	// VoidCall posts a fire-and-forget message.
	VoidCall(id protocol.MethodID, payload []byte) error
	// SerializerState returns the state object handed to every Writer and
	// Reader on this connection.
	SerializerState() any
}

// BindClient returns a T whose func fields are remote stubs over c. T must be
// a valid interface definition (see package describe); BindClient panics on a
// malformed one.
func BindClient[T any](c Caller) *T {
	desc := describe.Of[T]()
	p := new(T)
	Bind(desc, reflect.ValueOf(p).Elem(), c)
	return p
}

// Bind fills the func fields of v, an addressable struct value matching desc,
// with stubs over c.
func Bind(desc *describe.Interface, v reflect.Value, c Caller) {
	for _, m := range desc.Methods() {
		f := v.Field(m.Index)
		f.Set(reflect.MakeFunc(f.Type(), stub(m, c)))
	}
}

func stub(m *describe.Method, c Caller) func([]reflect.Value) []reflect.Value {
	switch m.Kind {
	case describe.OneWay:
		return func(in []reflect.Value) []reflect.Value {
			payload, err := encodeArgs(c.SerializerState(), in)
			if err != nil {
				// No result slot to report through; the message is dropped
				// and the connection's error hook covers transport trouble.
				return nil
			}
			c.VoidCall(m.ID, payload)
			return nil
		}
	case describe.Void:
		return func(in []reflect.Value) []reflect.Value {
			ctx := in[0].Interface().(context.Context)
			payload, err := encodeArgs(c.SerializerState(), in[1:])
			if err != nil {
				return []reflect.Value{errValue(err)}
			}
			_, err = c.Call(ctx, m.ID, payload)
			return []reflect.Value{errValue(err)}
		}
	default:
		return func(in []reflect.Value) []reflect.Value {
			ctx := in[0].Interface().(context.Context)
			out := reflect.New(m.Result).Elem()
			payload, err := encodeArgs(c.SerializerState(), in[1:])
			if err != nil {
				return []reflect.Value{out, errValue(err)}
			}
			resp, err := c.Call(ctx, m.ID, payload)
			if err != nil {
				return []reflect.Value{out, errValue(err)}
			}
			if err := codec.Unmarshal(resp, c.SerializerState(), out.Addr().Interface()); err != nil {
				return []reflect.Value{reflect.New(m.Result).Elem(), errValue(err)}
			}
			return []reflect.Value{out, errValue(nil)}
		}
	}
}

func encodeArgs(state any, args []reflect.Value) ([]byte, error) {
	w := codec.NewWriter(state)
	for _, a := range args {
		if err := w.Encode(a.Interface()); err != nil {
			return nil, err
		}
	}
	return w.Bytes(), nil
}

var errType = reflect.TypeOf((*error)(nil)).Elem()

func errValue(err error) reflect.Value {
	v := reflect.New(errType).Elem()
	if err != nil {
		v.Set(reflect.ValueOf(err))
	}
	return v
}
