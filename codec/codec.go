// Package codec implements the reflective binary serializer shared by both
// sides of a connection.
//
// Values are encoded little-endian with u32 length prefixes for strings and
// collections, bool presence flags for options, and u16 tag indices for
// variants. For any value the codec tries, in order:
//
//  1. the intrinsic hook (MarshalRPC / UnmarshalRPC on the type),
//  2. a hook registered with Register for the exact type,
//  3. kind-directed encoding: fixed-width numerics and bools are copied
//     verbatim, strings and slices are length-prefixed, maps are
//     length-prefixed key/value pairs re-inserted on read, and structs are
//     decomposed into their exported fields in declaration order.
//
// Types implementing the error interface are rejected unless hooked; an error
// value is not portable across processes.
//
// A Writer or Reader optionally carries a user-supplied state object. The
// codec never touches or serializes it; it is a side channel for hooks that
// need context, reachable through State().
package codec

import (
	"fmt"
	"reflect"
	"sync"
)

// Marshaler is the intrinsic write hook. A type implementing it owns its wire
// form; bytes it writes must be consumed in the same order by the matching
// Unmarshaler.
type Marshaler interface {
	MarshalRPC(w *Writer) error
}

// Unmarshaler is the intrinsic read hook, implemented on the pointer type.
type Unmarshaler interface {
	UnmarshalRPC(r *Reader) error
}

type hookFuncs struct {
	write func(*Writer, reflect.Value) error
	read  func(*Reader, reflect.Value) error
}

var hooks sync.Map // reflect.Type → hookFuncs

// Register installs a serialization hook for T, used when T neither
// implements the intrinsic hooks nor should be encoded structurally.
// Registration is global and expected to happen at package init time.
func Register[T any](write func(*Writer, T) error, read func(*Reader, *T) error) {
	t := reflect.TypeOf((*T)(nil)).Elem()
	hooks.Store(t, hookFuncs{
		write: func(w *Writer, v reflect.Value) error {
			return write(w, v.Interface().(T))
		},
		read: func(r *Reader, v reflect.Value) error {
			return read(r, v.Addr().Interface().(*T))
		},
	})
}

func lookupHook(t reflect.Type) (hookFuncs, bool) {
	h, ok := hooks.Load(t)
	if !ok {
		return hookFuncs{}, false
	}
	return h.(hookFuncs), true
}

var (
	marshalerType   = reflect.TypeOf((*Marshaler)(nil)).Elem()
	unmarshalerType = reflect.TypeOf((*Unmarshaler)(nil)).Elem()
	errorType       = reflect.TypeOf((*error)(nil)).Elem()
)

// Validate reports whether the codec can encode and decode values of type t.
// It applies the same dispatch rules as Encode/Decode without consuming any
// data, so interface descriptions can reject bad argument types up front.
func Validate(t reflect.Type) error {
	return validate(t, make(map[reflect.Type]bool))
}

func validate(t reflect.Type, seen map[reflect.Type]bool) error {
	if seen[t] {
		return nil
	}
	seen[t] = true

	if t.Implements(marshalerType) || reflect.PointerTo(t).Implements(marshalerType) {
		if !reflect.PointerTo(t).Implements(unmarshalerType) {
			return fmt.Errorf("codec: %s has a marshal hook but no unmarshal hook", t)
		}
		return nil
	}
	if _, ok := lookupHook(t); ok {
		return nil
	}
	if t.Implements(errorType) || reflect.PointerTo(t).Implements(errorType) {
		return fmt.Errorf("codec: %s implements error and cannot cross the wire", t)
	}

	switch t.Kind() {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64,
		reflect.String:
		return nil
	case reflect.Slice, reflect.Array:
		return validate(t.Elem(), seen)
	case reflect.Map:
		if err := validate(t.Key(), seen); err != nil {
			return err
		}
		return validate(t.Elem(), seen)
	case reflect.Struct:
		exported := 0
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			if !f.IsExported() {
				continue
			}
			exported++
			if err := validate(f.Type, seen); err != nil {
				return err
			}
		}
		if exported == 0 && t.NumField() > 0 {
			return fmt.Errorf("codec: %s has no exported fields and no hook", t)
		}
		return nil
	default:
		return fmt.Errorf("codec: unsupported type %s", t)
	}
}
