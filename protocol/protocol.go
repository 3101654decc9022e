// Package protocol defines the message layout shared by every transport.
//
// Each message is a fixed 8-byte header followed by an opaque payload. The
// header packs the call id and the call type into one little-endian word,
// followed by the 32-bit method id:
//
//	0                 4                 8
//	┌─────────────────┬─────────────────┐
//	│ packed (u32 LE) │ methodID (u32)  │ payload ...
//	│ bits 0..29 = id │                 │
//	│ bits 30..31=typ │                 │
//	└─────────────────┴─────────────────┘
//
// Stream transports add their own framing (a u32 payload size written between
// the header and the payload) so the receiver knows where the message ends;
// datagram-style carriers deliver exactly header + payload.
package protocol

import (
	"encoding/binary"
	"fmt"
	"io"
)

// MethodID identifies a method by the FNV-1a hash of its name. The zero value
// is reserved and never names a method.
type MethodID uint32

const (
	fnvBasis uint32 = 0x811C9DC5
	fnvPrime uint32 = 0x01000193
)

// HashName computes the FNV-1a hash of a method name. It is a pure function
// of the name's bytes, so ids stay stable across builds and across peers that
// agree on method names only.
func HashName(name string) MethodID {
	h := fnvBasis
	for i := 0; i < len(name); i++ {
		h ^= uint32(name[i])
		h *= fnvPrime
	}
	return MethodID(h)
}

// Valid reports whether the id names a method (zero means unset).
func (id MethodID) Valid() bool { return id != 0 }

// CallType distinguishes the four message kinds on the wire.
type CallType uint8

const (
	Request       CallType = 0 // expects exactly one Response or ResponseError
	VoidRequest   CallType = 1 // fire-and-forget, never answered
	Response      CallType = 2 // successful reply, payload = encoded result
	ResponseError CallType = 3 // failed reply, payload = 4-byte error code
)

func (t CallType) String() string {
	switch t {
	case Request:
		return "request"
	case VoidRequest:
		return "void-request"
	case Response:
		return "response"
	case ResponseError:
		return "response-error"
	default:
		return fmt.Sprintf("call-type(%d)", uint8(t))
	}
}

const (
	// HeaderSize is the fixed length of the packed header.
	HeaderSize = 8

	// MaxCallID is the largest call id expressible in the 30-bit field.
	MaxCallID = 1<<30 - 1

	typeShift = 30
	callMask  = MaxCallID
)

// Header carries the routing metadata of one message.
type Header struct {
	CallID uint32 // 30-bit, monotonic per connection per direction
	Type   CallType
	Method MethodID
}

// Message is a header plus its payload. The payload is owned by the message;
// transports must not retain it after Write returns.
type Message struct {
	Header
	Payload []byte
}

// Pack renders the header into its 8-byte wire form.
func (h Header) Pack(buf []byte) {
	packed := h.CallID&callMask | uint32(h.Type)<<typeShift
	binary.LittleEndian.PutUint32(buf[0:4], packed)
	binary.LittleEndian.PutUint32(buf[4:8], uint32(h.Method))
}

// Unpack parses an 8-byte wire header.
func Unpack(buf []byte) Header {
	packed := binary.LittleEndian.Uint32(buf[0:4])
	return Header{
		CallID: packed & callMask,
		Type:   CallType(packed >> typeShift),
		Method: MethodID(binary.LittleEndian.Uint32(buf[4:8])),
	}
}

// WriteFrame writes a length-delimited message to a byte stream: the packed
// header, a u32 payload size, then the payload. The caller must serialize
// concurrent writers; interleaved frames corrupt the stream.
func WriteFrame(w io.Writer, m Message) error {
	buf := make([]byte, HeaderSize+4)
	m.Header.Pack(buf)
	binary.LittleEndian.PutUint32(buf[HeaderSize:], uint32(len(m.Payload)))
	if _, err := w.Write(buf); err != nil {
		return err
	}
	if len(m.Payload) == 0 {
		return nil
	}
	_, err := w.Write(m.Payload)
	return err
}

// ReadFrame reads one length-delimited message from a byte stream. io.ReadFull
// guarantees complete reads, so a short read at a frame boundary surfaces as
// an error instead of a truncated message.
func ReadFrame(r io.Reader) (Message, error) {
	buf := make([]byte, HeaderSize+4)
	if _, err := io.ReadFull(r, buf); err != nil {
		return Message{}, err
	}
	h := Unpack(buf)
	size := binary.LittleEndian.Uint32(buf[HeaderSize:])
	payload := make([]byte, size)
	if _, err := io.ReadFull(r, payload); err != nil {
		return Message{}, fmt.Errorf("short payload read (want %d bytes): %w", size, err)
	}
	return Message{Header: h, Payload: payload}, nil
}
