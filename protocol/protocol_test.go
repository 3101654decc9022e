package protocol

import (
	"bytes"
	"io"
	"testing"
)

func TestHashName(t *testing.T) {
	// FNV-1a reference values, computable by hand from the basis and prime.
	if got := HashName(""); got != 0x811C9DC5 {
		t.Errorf("empty-string hash: got %#x, want %#x", uint32(got), uint32(0x811C9DC5))
	}
	if got := HashName("a"); got != 0xE40C292C {
		t.Errorf("hash(\"a\"): got %#x, want %#x", uint32(got), uint32(0xE40C292C))
	}
	if HashName("SimpleSum") == HashName("ArraySum") {
		t.Error("distinct names must not collide")
	}
	if HashName("SimpleSum") != HashName("SimpleSum") {
		t.Error("hash must be deterministic")
	}
}

func TestHeaderPackUnpack(t *testing.T) {
	cases := []Header{
		{CallID: 0, Type: Request, Method: HashName("SimpleSum")},
		{CallID: 12345, Type: VoidRequest, Method: HashName("SendTelemetry")},
		{CallID: MaxCallID, Type: Response, Method: 1},
		{CallID: 7, Type: ResponseError, Method: 0xFFFFFFFF},
	}
	for _, h := range cases {
		buf := make([]byte, HeaderSize)
		h.Pack(buf)
		got := Unpack(buf)
		if got != h {
			t.Errorf("round-trip mismatch: got %+v, want %+v", got, h)
		}
	}
}

func TestHeaderCallIDMask(t *testing.T) {
	// A call id wider than 30 bits must be masked, never bleed into the type.
	h := Header{CallID: MaxCallID + 5, Type: Response, Method: 9}
	buf := make([]byte, HeaderSize)
	h.Pack(buf)
	got := Unpack(buf)
	if got.Type != Response {
		t.Errorf("type corrupted by oversized call id: got %v", got.Type)
	}
	if got.CallID != (MaxCallID+5)&MaxCallID {
		t.Errorf("call id not masked: got %d", got.CallID)
	}
}

func TestWireLayout(t *testing.T) {
	// The packed word is little-endian: low byte first.
	h := Header{CallID: 1, Type: ResponseError, Method: 0x01020304}
	buf := make([]byte, HeaderSize)
	h.Pack(buf)
	// packed = 1 | 3<<30 = 0xC0000001
	want := []byte{0x01, 0x00, 0x00, 0xC0, 0x04, 0x03, 0x02, 0x01}
	if !bytes.Equal(buf, want) {
		t.Errorf("wire layout: got % x, want % x", buf, want)
	}
}

func TestFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	msg := Message{
		Header:  Header{CallID: 42, Type: Request, Method: HashName("ArraySum")},
		Payload: []byte("hello world"),
	}
	if err := WriteFrame(&buf, msg); err != nil {
		t.Fatalf("WriteFrame failed: %v", err)
	}
	got, err := ReadFrame(&buf)
	if err != nil {
		t.Fatalf("ReadFrame failed: %v", err)
	}
	if got.Header != msg.Header {
		t.Errorf("header mismatch: got %+v, want %+v", got.Header, msg.Header)
	}
	if !bytes.Equal(got.Payload, msg.Payload) {
		t.Errorf("payload mismatch: got %q, want %q", got.Payload, msg.Payload)
	}
}

func TestFrameEmptyPayload(t *testing.T) {
	var buf bytes.Buffer
	msg := Message{Header: Header{CallID: 1, Type: Response, Method: 3}}
	if err := WriteFrame(&buf, msg); err != nil {
		t.Fatalf("WriteFrame failed: %v", err)
	}
	got, err := ReadFrame(&buf)
	if err != nil {
		t.Fatalf("ReadFrame failed: %v", err)
	}
	if len(got.Payload) != 0 {
		t.Errorf("expected empty payload, got %d bytes", len(got.Payload))
	}
}

func TestFrameShortRead(t *testing.T) {
	var buf bytes.Buffer
	msg := Message{
		Header:  Header{CallID: 9, Type: Request, Method: 5},
		Payload: []byte("truncated"),
	}
	if err := WriteFrame(&buf, msg); err != nil {
		t.Fatalf("WriteFrame failed: %v", err)
	}
	// Chop the stream mid-payload; the reader must report an error, not a
	// partial message.
	short := buf.Bytes()[:buf.Len()-3]
	if _, err := ReadFrame(bytes.NewReader(short)); err == nil {
		t.Fatal("expected error on truncated frame")
	}
	// Chop mid-header too.
	if _, err := ReadFrame(bytes.NewReader(short[:5])); err == nil {
		t.Fatal("expected error on truncated header")
	}
}

func TestFrameSequential(t *testing.T) {
	var buf bytes.Buffer
	for i := uint32(0); i < 10; i++ {
		msg := Message{Header: Header{CallID: i, Type: Request, Method: 77}, Payload: []byte{byte(i)}}
		if err := WriteFrame(&buf, msg); err != nil {
			t.Fatalf("WriteFrame %d failed: %v", i, err)
		}
	}
	for i := uint32(0); i < 10; i++ {
		got, err := ReadFrame(&buf)
		if err != nil {
			t.Fatalf("ReadFrame %d failed: %v", i, err)
		}
		if got.CallID != i || got.Payload[0] != byte(i) {
			t.Errorf("frame %d: got id=%d payload=%v", i, got.CallID, got.Payload)
		}
	}
	if _, err := ReadFrame(&buf); err != io.EOF {
		t.Errorf("expected EOF after last frame, got %v", err)
	}
}
