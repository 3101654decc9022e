package codec

import (
	"encoding/binary"
	"fmt"
	"math"
	"reflect"
)

// Reader decodes values from a byte slice, advancing a cursor.
type Reader struct {
	buf   []byte
	off   int
	state any
}

// NewReader creates a Reader over data, carrying the given serializer state.
func NewReader(data []byte, state any) *Reader {
	return &Reader{buf: data, state: state}
}

// State returns the attached serializer state for use by custom hooks.
func (r *Reader) State() any { return r.state }

// Remaining returns the number of unconsumed bytes.
func (r *Reader) Remaining() int { return len(r.buf) - r.off }

func (r *Reader) take(n int) ([]byte, error) {
	if n < 0 || r.Remaining() < n {
		return nil, fmt.Errorf("codec: need %d bytes, have %d", n, r.Remaining())
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b, nil
}

func (r *Reader) ReadBool() (bool, error) {
	b, err := r.take(1)
	if err != nil {
		return false, err
	}
	return b[0] != 0, nil
}

func (r *Reader) ReadUint8() (uint8, error) {
	b, err := r.take(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *Reader) ReadUint16() (uint16, error) {
	b, err := r.take(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

func (r *Reader) ReadUint32() (uint32, error) {
	b, err := r.take(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (r *Reader) ReadUint64() (uint64, error) {
	b, err := r.take(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

func (r *Reader) ReadInt8() (int8, error)   { v, err := r.ReadUint8(); return int8(v), err }
func (r *Reader) ReadInt16() (int16, error) { v, err := r.ReadUint16(); return int16(v), err }
func (r *Reader) ReadInt32() (int32, error) { v, err := r.ReadUint32(); return int32(v), err }
func (r *Reader) ReadInt64() (int64, error) { v, err := r.ReadUint64(); return int64(v), err }

func (r *Reader) ReadFloat32() (float32, error) {
	v, err := r.ReadUint32()
	return math.Float32frombits(v), err
}

func (r *Reader) ReadFloat64() (float64, error) {
	v, err := r.ReadUint64()
	return math.Float64frombits(v), err
}

// ReadLen reads a u32 collection or string length.
func (r *Reader) ReadLen() (int, error) {
	v, err := r.ReadUint32()
	return int(v), err
}

// ReadString reads a u32 length followed by that many bytes.
func (r *Reader) ReadString() (string, error) {
	n, err := r.ReadLen()
	if err != nil {
		return "", err
	}
	b, err := r.take(n)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ReadRaw consumes exactly n bytes without a length prefix. The returned
// slice aliases the Reader's buffer.
func (r *Reader) ReadRaw(n int) ([]byte, error) {
	return r.take(n)
}

// Decode deserializes into the value ptr points at, following the package
// dispatch rules.
func (r *Reader) Decode(ptr any) error {
	v := reflect.ValueOf(ptr)
	if v.Kind() != reflect.Pointer || v.IsNil() {
		return fmt.Errorf("codec: Decode target must be a non-nil pointer, got %T", ptr)
	}
	return r.decodeValue(v.Elem())
}

// DecodeAll deserializes into each pointer in order.
func (r *Reader) DecodeAll(ptrs ...any) error {
	for _, p := range ptrs {
		if err := r.Decode(p); err != nil {
			return err
		}
	}
	return nil
}

func (r *Reader) decodeValue(v reflect.Value) error {
	t := v.Type()

	if reflect.PointerTo(t).Implements(unmarshalerType) {
		return v.Addr().Interface().(Unmarshaler).UnmarshalRPC(r)
	}
	if h, ok := lookupHook(t); ok {
		return h.read(r, v)
	}
	if t.Implements(errorType) || reflect.PointerTo(t).Implements(errorType) {
		return fmt.Errorf("codec: refusing to decode error type %s", t)
	}

	switch t.Kind() {
	case reflect.Bool:
		b, err := r.ReadBool()
		if err != nil {
			return err
		}
		v.SetBool(b)
	case reflect.Int8:
		n, err := r.ReadInt8()
		if err != nil {
			return err
		}
		v.SetInt(int64(n))
	case reflect.Int16:
		n, err := r.ReadInt16()
		if err != nil {
			return err
		}
		v.SetInt(int64(n))
	case reflect.Int32:
		n, err := r.ReadInt32()
		if err != nil {
			return err
		}
		v.SetInt(int64(n))
	case reflect.Int64, reflect.Int:
		n, err := r.ReadInt64()
		if err != nil {
			return err
		}
		v.SetInt(n)
	case reflect.Uint8:
		n, err := r.ReadUint8()
		if err != nil {
			return err
		}
		v.SetUint(uint64(n))
	case reflect.Uint16:
		n, err := r.ReadUint16()
		if err != nil {
			return err
		}
		v.SetUint(uint64(n))
	case reflect.Uint32:
		n, err := r.ReadUint32()
		if err != nil {
			return err
		}
		v.SetUint(uint64(n))
	case reflect.Uint64, reflect.Uint:
		n, err := r.ReadUint64()
		if err != nil {
			return err
		}
		v.SetUint(n)
	case reflect.Float32:
		f, err := r.ReadFloat32()
		if err != nil {
			return err
		}
		v.SetFloat(float64(f))
	case reflect.Float64:
		f, err := r.ReadFloat64()
		if err != nil {
			return err
		}
		v.SetFloat(f)
	case reflect.String:
		s, err := r.ReadString()
		if err != nil {
			return err
		}
		v.SetString(s)
	case reflect.Slice:
		return r.decodeSlice(v)
	case reflect.Array:
		return r.decodeArray(v)
	case reflect.Map:
		return r.decodeMap(v)
	case reflect.Struct:
		return r.decodeStruct(v)
	default:
		return fmt.Errorf("codec: unsupported type %s", t)
	}
	return nil
}

func (r *Reader) decodeSlice(v reflect.Value) error {
	n, err := r.ReadLen()
	if err != nil {
		return err
	}
	t := v.Type()
	if n == 0 {
		// Nil and empty share one wire form; decode it as the zero value.
		v.Set(reflect.Zero(t))
		return nil
	}
	if t.Elem().Kind() == reflect.Uint8 {
		b, err := r.take(n)
		if err != nil {
			return err
		}
		// Copy out of the Reader's buffer: decoded values must own their
		// storage so they survive the payload.
		out := make([]byte, n)
		copy(out, b)
		v.SetBytes(out)
		return nil
	}
	if n > r.Remaining() {
		// Every element costs at least one byte on the wire, so a count
		// beyond the remaining payload is malformed, not merely large.
		return fmt.Errorf("codec: sequence length %d exceeds remaining %d bytes", n, r.Remaining())
	}
	s := reflect.MakeSlice(t, n, n)
	for i := 0; i < n; i++ {
		if err := r.decodeValue(s.Index(i)); err != nil {
			return err
		}
	}
	v.Set(s)
	return nil
}

func (r *Reader) decodeArray(v reflect.Value) error {
	n, err := r.ReadLen()
	if err != nil {
		return err
	}
	if n != v.Len() {
		return fmt.Errorf("codec: array length %d on wire, %d expected", n, v.Len())
	}
	for i := 0; i < n; i++ {
		if err := r.decodeValue(v.Index(i)); err != nil {
			return err
		}
	}
	return nil
}

func (r *Reader) decodeMap(v reflect.Value) error {
	n, err := r.ReadLen()
	if err != nil {
		return err
	}
	if n > r.Remaining() {
		return fmt.Errorf("codec: map length %d exceeds remaining %d bytes", n, r.Remaining())
	}
	t := v.Type()
	if n == 0 {
		v.Set(reflect.Zero(t))
		return nil
	}
	m := reflect.MakeMapWithSize(t, n)
	for i := 0; i < n; i++ {
		key := reflect.New(t.Key()).Elem()
		if err := r.decodeValue(key); err != nil {
			return err
		}
		val := reflect.New(t.Elem()).Elem()
		if err := r.decodeValue(val); err != nil {
			return err
		}
		m.SetMapIndex(key, val)
	}
	v.Set(m)
	return nil
}

func (r *Reader) decodeStruct(v reflect.Value) error {
	t := v.Type()
	exported := 0
	for i := 0; i < t.NumField(); i++ {
		if !t.Field(i).IsExported() {
			continue
		}
		exported++
		if err := r.decodeValue(v.Field(i)); err != nil {
			return err
		}
	}
	if exported == 0 && t.NumField() > 0 {
		return fmt.Errorf("codec: %s has no exported fields and no hook", t)
	}
	return nil
}

// Unmarshal decodes a payload into the given pointers using the given state.
func Unmarshal(data []byte, state any, ptrs ...any) error {
	return NewReader(data, state).DecodeAll(ptrs...)
}
