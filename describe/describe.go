// Package describe turns an interface definition into a method table shared
// by client stubs and server dispatchers.
//
// An interface is declared as a struct whose exported fields are func-typed.
// Each field is one remote method; the field name is the method name and its
// FNV-1a hash is the wire id. Three signature shapes are accepted:
//
//	func(ctx context.Context, args...) (T, error)   value-returning call
//	func(ctx context.Context, args...) error        void call, still awaited
//	func(args...)                                   fire-and-forget
//
// Argument and result types must be encodable (codec.Validate). A description
// is built once and read-only afterwards.
package describe

import (
	"context"
	"fmt"
	"reflect"
	"sort"

	"crpc/codec"
	"crpc/protocol"
)

// MaxArgs caps the argument tuple of one method, the context excluded.
const MaxArgs = 10

// Kind classifies a method's signature shape.
type Kind uint8

const (
	// Value methods return a result and an error and expect a reply.
	Value Kind = iota
	// Void methods return only an error but are still awaited.
	Void
	// OneWay methods return nothing and are never answered.
	OneWay
)

func (k Kind) String() string {
	switch k {
	case Value:
		return "value"
	case Void:
		return "void"
	case OneWay:
		return "one-way"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Method is one entry of an interface description.
type Method struct {
	Name   string
	ID     protocol.MethodID
	Index  int // field index in the defining struct
	Kind   Kind
	Args   []reflect.Type // the context excluded
	Result reflect.Type   // nil unless Kind is Value
}

// Expects reports whether calls to this method await a reply.
func (m *Method) Expects() bool { return m.Kind != OneWay }

// Interface is the parsed description of one remote interface.
type Interface struct {
	// Name is the defining struct's type name.
	Name    string
	typ     reflect.Type
	methods []*Method // sorted by ID
	byIndex []*Method // field order
}

// Methods returns the methods sorted by wire id.
func (d *Interface) Methods() []*Method { return d.methods }

// Lookup finds a method by wire id using binary search over the sorted table.
func (d *Interface) Lookup(id protocol.MethodID) (*Method, bool) {
	i := sort.Search(len(d.methods), func(i int) bool {
		return d.methods[i].ID >= id
	})
	if i < len(d.methods) && d.methods[i].ID == id {
		return d.methods[i], true
	}
	return nil, false
}

// ByIndex returns the method declared at the given struct field index.
func (d *Interface) ByIndex(i int) *Method { return d.byIndex[i] }

// Type returns the defining struct type.
func (d *Interface) Type() reflect.Type { return d.typ }

var (
	ctxType = reflect.TypeOf((*context.Context)(nil)).Elem()
	errType = reflect.TypeOf((*error)(nil)).Elem()
)

// Of parses the interface defined by T, which must be a struct of exported
// func-typed fields. It panics on a malformed definition; definitions are
// compile-time artifacts and a bad one is a programming error, not input.
func Of[T any]() *Interface {
	d, err := Parse(reflect.TypeOf((*T)(nil)).Elem())
	if err != nil {
		panic(err)
	}
	return d
}

// Parse builds a description from a struct type.
func Parse(t reflect.Type) (*Interface, error) {
	if t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("describe: interface must be a struct, got %s", t.Kind())
	}
	d := &Interface{Name: t.Name(), typ: t}
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			return nil, fmt.Errorf("describe: %s.%s is unexported", t.Name(), f.Name)
		}
		m, err := parseMethod(f, i)
		if err != nil {
			return nil, err
		}
		d.methods = append(d.methods, m)
		d.byIndex = append(d.byIndex, m)
	}
	if len(d.methods) == 0 {
		return nil, fmt.Errorf("describe: %s declares no methods", t.Name())
	}
	sort.Slice(d.methods, func(i, j int) bool {
		return d.methods[i].ID < d.methods[j].ID
	})
	for i := 1; i < len(d.methods); i++ {
		if d.methods[i].ID == d.methods[i-1].ID {
			return nil, fmt.Errorf("describe: %s and %s hash to the same id %#x",
				d.methods[i-1].Name, d.methods[i].Name, uint32(d.methods[i].ID))
		}
	}
	return d, nil
}

func parseMethod(f reflect.StructField, index int) (*Method, error) {
	ft := f.Type
	if ft.Kind() != reflect.Func {
		return nil, fmt.Errorf("describe: field %s is %s, want func", f.Name, ft.Kind())
	}
	if ft.IsVariadic() {
		return nil, fmt.Errorf("describe: method %s must not be variadic", f.Name)
	}

	m := &Method{
		Name:  f.Name,
		ID:    protocol.HashName(f.Name),
		Index: index,
	}
	if !m.ID.Valid() {
		return nil, fmt.Errorf("describe: method %s hashes to the reserved id 0", f.Name)
	}

	argStart := 0
	switch ft.NumOut() {
	case 0:
		m.Kind = OneWay
	case 1:
		if ft.Out(0) != errType {
			return nil, fmt.Errorf("describe: method %s must return error, got %s", f.Name, ft.Out(0))
		}
		m.Kind = Void
	case 2:
		if ft.Out(1) != errType {
			return nil, fmt.Errorf("describe: method %s second result must be error, got %s", f.Name, ft.Out(1))
		}
		m.Kind = Value
		m.Result = ft.Out(0)
		if err := codec.Validate(m.Result); err != nil {
			return nil, fmt.Errorf("describe: method %s result: %w", f.Name, err)
		}
	default:
		return nil, fmt.Errorf("describe: method %s returns %d values, want at most 2", f.Name, ft.NumOut())
	}

	if m.Kind != OneWay {
		if ft.NumIn() == 0 || ft.In(0) != ctxType {
			return nil, fmt.Errorf("describe: method %s must take context.Context first", f.Name)
		}
		argStart = 1
	} else if ft.NumIn() > 0 && ft.In(0) == ctxType {
		return nil, fmt.Errorf("describe: one-way method %s must not take a context", f.Name)
	}

	n := ft.NumIn() - argStart
	if n > MaxArgs {
		return nil, fmt.Errorf("describe: method %s has %d arguments, limit is %d", f.Name, n, MaxArgs)
	}
	for i := argStart; i < ft.NumIn(); i++ {
		at := ft.In(i)
		if err := codec.Validate(at); err != nil {
			return nil, fmt.Errorf("describe: method %s argument %d: %w", f.Name, i-argStart, err)
		}
		m.Args = append(m.Args, at)
	}
	return m, nil
}
