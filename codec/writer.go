package codec

import (
	"encoding/binary"
	"fmt"
	"math"
	"reflect"
)

// Writer appends encoded values to a growable byte buffer.
type Writer struct {
	buf   []byte
	state any
}

// NewWriter creates a Writer carrying the given serializer state (nil if the
// connection runs stateless).
func NewWriter(state any) *Writer {
	return &Writer{state: state}
}

// NewWriterBuffer creates a Writer that appends to an existing buffer,
// reusing its allocation.
func NewWriterBuffer(buf []byte, state any) *Writer {
	return &Writer{buf: buf[:0], state: state}
}

// State returns the attached serializer state for use by custom hooks.
func (w *Writer) State() any { return w.state }

// Bytes returns the accumulated encoding. The slice aliases the Writer's
// buffer; the Writer must not be reused after the payload is handed off.
func (w *Writer) Bytes() []byte { return w.buf }

// Len returns the number of bytes written so far.
func (w *Writer) Len() int { return len(w.buf) }

func (w *Writer) WriteBool(v bool) {
	if v {
		w.buf = append(w.buf, 1)
	} else {
		w.buf = append(w.buf, 0)
	}
}

func (w *Writer) WriteUint8(v uint8)   { w.buf = append(w.buf, v) }
func (w *Writer) WriteUint16(v uint16) { w.buf = binary.LittleEndian.AppendUint16(w.buf, v) }
func (w *Writer) WriteUint32(v uint32) { w.buf = binary.LittleEndian.AppendUint32(w.buf, v) }
func (w *Writer) WriteUint64(v uint64) { w.buf = binary.LittleEndian.AppendUint64(w.buf, v) }

func (w *Writer) WriteInt8(v int8)   { w.WriteUint8(uint8(v)) }
func (w *Writer) WriteInt16(v int16) { w.WriteUint16(uint16(v)) }
func (w *Writer) WriteInt32(v int32) { w.WriteUint32(uint32(v)) }
func (w *Writer) WriteInt64(v int64) { w.WriteUint64(uint64(v)) }

func (w *Writer) WriteFloat32(v float32) { w.WriteUint32(math.Float32bits(v)) }
func (w *Writer) WriteFloat64(v float64) { w.WriteUint64(math.Float64bits(v)) }

// WriteLen writes a collection or string length as u32.
func (w *Writer) WriteLen(n int) { w.WriteUint32(uint32(n)) }

// WriteString writes a u32 length followed by the string bytes.
func (w *Writer) WriteString(s string) {
	w.WriteLen(len(s))
	w.buf = append(w.buf, s...)
}

// WriteRaw appends bytes verbatim, without a length prefix. Hooks that use it
// must read back the same count.
func (w *Writer) WriteRaw(b []byte) { w.buf = append(w.buf, b...) }

// Encode serializes a value following the package dispatch rules.
func (w *Writer) Encode(v any) error {
	return w.encodeValue(reflect.ValueOf(v))
}

// EncodeAll serializes values in order; the per-method argument tuples are
// written this way.
func (w *Writer) EncodeAll(vs ...any) error {
	for _, v := range vs {
		if err := w.Encode(v); err != nil {
			return err
		}
	}
	return nil
}

func (w *Writer) encodeValue(v reflect.Value) error {
	t := v.Type()

	if t.Implements(marshalerType) {
		return v.Interface().(Marshaler).MarshalRPC(w)
	}
	if reflect.PointerTo(t).Implements(marshalerType) {
		p := reflect.New(t)
		p.Elem().Set(v)
		return p.Interface().(Marshaler).MarshalRPC(w)
	}
	if h, ok := lookupHook(t); ok {
		return h.write(w, v)
	}
	if t.Implements(errorType) || reflect.PointerTo(t).Implements(errorType) {
		return fmt.Errorf("codec: refusing to encode error type %s", t)
	}

	switch t.Kind() {
	case reflect.Bool:
		w.WriteBool(v.Bool())
	case reflect.Int8:
		w.WriteInt8(int8(v.Int()))
	case reflect.Int16:
		w.WriteInt16(int16(v.Int()))
	case reflect.Int32:
		w.WriteInt32(int32(v.Int()))
	case reflect.Int64, reflect.Int:
		w.WriteInt64(v.Int())
	case reflect.Uint8:
		w.WriteUint8(uint8(v.Uint()))
	case reflect.Uint16:
		w.WriteUint16(uint16(v.Uint()))
	case reflect.Uint32:
		w.WriteUint32(uint32(v.Uint()))
	case reflect.Uint64, reflect.Uint:
		w.WriteUint64(v.Uint())
	case reflect.Float32:
		w.WriteFloat32(float32(v.Float()))
	case reflect.Float64:
		w.WriteFloat64(v.Float())
	case reflect.String:
		w.WriteString(v.String())
	case reflect.Slice:
		return w.encodeSeq(v, v.Len(), true)
	case reflect.Array:
		return w.encodeSeq(v, v.Len(), false)
	case reflect.Map:
		w.WriteLen(v.Len())
		iter := v.MapRange()
		for iter.Next() {
			if err := w.encodeValue(iter.Key()); err != nil {
				return err
			}
			if err := w.encodeValue(iter.Value()); err != nil {
				return err
			}
		}
	case reflect.Struct:
		return w.encodeStruct(v)
	default:
		return fmt.Errorf("codec: unsupported type %s", t)
	}
	return nil
}

func (w *Writer) encodeSeq(v reflect.Value, n int, isSlice bool) error {
	w.WriteLen(n)
	// Byte slices are copied contiguously; byte arrays are written byte by
	// byte without going through the dispatch rules.
	if v.Type().Elem().Kind() == reflect.Uint8 {
		if isSlice {
			w.buf = append(w.buf, v.Bytes()...)
			return nil
		}
		for i := 0; i < n; i++ {
			w.WriteUint8(uint8(v.Index(i).Uint()))
		}
		return nil
	}
	for i := 0; i < n; i++ {
		if err := w.encodeValue(v.Index(i)); err != nil {
			return err
		}
	}
	return nil
}

func (w *Writer) encodeStruct(v reflect.Value) error {
	t := v.Type()
	exported := 0
	for i := 0; i < t.NumField(); i++ {
		if !t.Field(i).IsExported() {
			continue
		}
		exported++
		if err := w.encodeValue(v.Field(i)); err != nil {
			return err
		}
	}
	if exported == 0 && t.NumField() > 0 {
		return fmt.Errorf("codec: %s has no exported fields and no hook", t)
	}
	return nil
}

// Marshal encodes values into a fresh payload using the given state.
func Marshal(state any, vs ...any) ([]byte, error) {
	w := NewWriter(state)
	if err := w.EncodeAll(vs...); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}
