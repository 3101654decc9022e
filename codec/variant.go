package codec

import "fmt"

// Option holds zero or one value. On the wire it is a bool presence flag
// followed by the value when present.
type Option[T any] struct {
	value T
	ok    bool
}

// Some wraps a present value.
func Some[T any](v T) Option[T] { return Option[T]{value: v, ok: true} }

// None is the absent option.
func None[T any]() Option[T] { return Option[T]{} }

// Get returns the value and whether it is present.
func (o Option[T]) Get() (T, bool) { return o.value, o.ok }

// IsSome reports whether a value is present.
func (o Option[T]) IsSome() bool { return o.ok }

func (o Option[T]) MarshalRPC(w *Writer) error {
	w.WriteBool(o.ok)
	if !o.ok {
		return nil
	}
	return w.Encode(o.value)
}

func (o *Option[T]) UnmarshalRPC(r *Reader) error {
	ok, err := r.ReadBool()
	if err != nil {
		return err
	}
	var zero T
	o.value, o.ok = zero, ok
	if !ok {
		return nil
	}
	return r.Decode(&o.value)
}

// Either holds a success value or an alternative. On the wire it is a bool
// flag, true followed by the success value or false followed by the
// alternative. Unlike Variant2 there is no tag word and no empty state.
type Either[T, E any] struct {
	val T
	alt E
	ok  bool
}

// Ok constructs an Either holding the success value.
func Ok[T, E any](v T) Either[T, E] { return Either[T, E]{val: v, ok: true} }

// Alt constructs an Either holding the alternative.
func Alt[T, E any](e E) Either[T, E] { return Either[T, E]{alt: e} }

// IsOk reports whether the success value is held.
func (e Either[T, E]) IsOk() bool { return e.ok }

// Value returns the success value and whether it is the one held.
func (e Either[T, E]) Value() (T, bool) { return e.val, e.ok }

// Alternative returns the alternative and whether it is the one held.
func (e Either[T, E]) Alternative() (E, bool) { return e.alt, !e.ok }

func (e Either[T, E]) MarshalRPC(w *Writer) error {
	w.WriteBool(e.ok)
	if e.ok {
		return w.Encode(e.val)
	}
	return w.Encode(e.alt)
}

func (e *Either[T, E]) UnmarshalRPC(r *Reader) error {
	ok, err := r.ReadBool()
	if err != nil {
		return err
	}
	*e = Either[T, E]{ok: ok}
	if ok {
		return r.Decode(&e.val)
	}
	return r.Decode(&e.alt)
}

// Pair is two values encoded back to back, like a two-field struct.
type Pair[A, B any] struct {
	First  A
	Second B
}

// Variant2 holds exactly one of two alternatives, distinguished by a u16 tag
// on the wire (0 selects the first, 1 the second).
type Variant2[A, B any] struct {
	tag uint16
	a   A
	b   B
}

// V2A constructs a Variant2 holding the first alternative.
func V2A[A, B any](v A) Variant2[A, B] { return Variant2[A, B]{tag: 0, a: v} }

// V2B constructs a Variant2 holding the second alternative.
func V2B[A, B any](v B) Variant2[A, B] { return Variant2[A, B]{tag: 1, b: v} }

// Tag returns which alternative is held (0 or 1).
func (v Variant2[A, B]) Tag() uint16 { return v.tag }

// A returns the first alternative and whether it is the one held.
func (v Variant2[A, B]) A() (A, bool) { return v.a, v.tag == 0 }

// B returns the second alternative and whether it is the one held.
func (v Variant2[A, B]) B() (B, bool) { return v.b, v.tag == 1 }

func (v Variant2[A, B]) MarshalRPC(w *Writer) error {
	w.WriteUint16(v.tag)
	switch v.tag {
	case 0:
		return w.Encode(v.a)
	case 1:
		return w.Encode(v.b)
	default:
		return fmt.Errorf("codec: variant tag %d out of range [0,1]", v.tag)
	}
}

func (v *Variant2[A, B]) UnmarshalRPC(r *Reader) error {
	tag, err := r.ReadUint16()
	if err != nil {
		return err
	}
	*v = Variant2[A, B]{tag: tag}
	switch tag {
	case 0:
		return r.Decode(&v.a)
	case 1:
		return r.Decode(&v.b)
	default:
		return fmt.Errorf("codec: variant tag %d out of range [0,1]", tag)
	}
}

// Variant3 holds exactly one of three alternatives, distinguished by a u16
// tag on the wire.
type Variant3[A, B, C any] struct {
	tag uint16
	a   A
	b   B
	c   C
}

// V3A constructs a Variant3 holding the first alternative.
func V3A[A, B, C any](v A) Variant3[A, B, C] { return Variant3[A, B, C]{tag: 0, a: v} }

// V3B constructs a Variant3 holding the second alternative.
func V3B[A, B, C any](v B) Variant3[A, B, C] { return Variant3[A, B, C]{tag: 1, b: v} }

// V3C constructs a Variant3 holding the third alternative.
func V3C[A, B, C any](v C) Variant3[A, B, C] { return Variant3[A, B, C]{tag: 2, c: v} }

// Tag returns which alternative is held (0, 1 or 2).
func (v Variant3[A, B, C]) Tag() uint16 { return v.tag }

// A returns the first alternative and whether it is the one held.
func (v Variant3[A, B, C]) A() (A, bool) { return v.a, v.tag == 0 }

// B returns the second alternative and whether it is the one held.
func (v Variant3[A, B, C]) B() (B, bool) { return v.b, v.tag == 1 }

// C returns the third alternative and whether it is the one held.
func (v Variant3[A, B, C]) C() (C, bool) { return v.c, v.tag == 2 }

func (v Variant3[A, B, C]) MarshalRPC(w *Writer) error {
	w.WriteUint16(v.tag)
	switch v.tag {
	case 0:
		return w.Encode(v.a)
	case 1:
		return w.Encode(v.b)
	case 2:
		return w.Encode(v.c)
	default:
		return fmt.Errorf("codec: variant tag %d out of range [0,2]", v.tag)
	}
}

func (v *Variant3[A, B, C]) UnmarshalRPC(r *Reader) error {
	tag, err := r.ReadUint16()
	if err != nil {
		return err
	}
	*v = Variant3[A, B, C]{tag: tag}
	switch tag {
	case 0:
		return r.Decode(&v.a)
	case 1:
		return r.Decode(&v.b)
	case 2:
		return r.Decode(&v.c)
	default:
		return fmt.Errorf("codec: variant tag %d out of range [0,2]", tag)
	}
}
