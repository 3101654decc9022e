package transport

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"crpc/protocol"
)

func msg(id uint32, payload []byte) protocol.Message {
	return protocol.Message{
		Header:  protocol.Header{CallID: id, Type: protocol.Request, Method: protocol.HashName("Probe")},
		Payload: payload,
	}
}

func testRoundTrip(t *testing.T, a, b Transport) {
	t.Helper()
	want := msg(7, []byte("payload bytes"))
	done := make(chan error, 1)
	go func() { done <- a.Write(want) }()
	got, err := b.Read()
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if err := <-done; err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if got.Header != want.Header || !bytes.Equal(got.Payload, want.Payload) {
		t.Errorf("round-trip mismatch: got %+v", got)
	}

	// And the other direction; the carrier is full-duplex.
	back := msg(8, []byte("reply"))
	go func() { done <- b.Write(back) }()
	got, err = a.Read()
	if err != nil {
		t.Fatalf("reverse Read failed: %v", err)
	}
	<-done
	if got.CallID != 8 || !bytes.Equal(got.Payload, back.Payload) {
		t.Errorf("reverse round-trip mismatch: got %+v", got)
	}
}

func TestStreamRoundTrip(t *testing.T) {
	c1, c2 := net.Pipe()
	testRoundTrip(t, NewStream(c1), NewStream(c2))
}

func TestStreamPeerClose(t *testing.T) {
	c1, c2 := net.Pipe()
	a, b := NewStream(c1), NewStream(c2)
	if err := a.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if _, err := b.Read(); err == nil {
		t.Fatal("Read after peer close must fail")
	}
	// Close is idempotent.
	if err := a.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}

func TestStreamTCP(t *testing.T) {
	l, err := ListenTCP("127.0.0.1:0")
	if err != nil {
		t.Fatalf("ListenTCP failed: %v", err)
	}
	defer l.Close()

	accepted := make(chan *Stream, 1)
	go func() {
		s, err := l.Accept()
		if err != nil {
			t.Errorf("Accept failed: %v", err)
			return
		}
		accepted <- s
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	client, err := DialTCP(ctx, l.Addr().String())
	if err != nil {
		t.Fatalf("DialTCP failed: %v", err)
	}
	server := <-accepted
	defer client.Close()
	defer server.Close()
	testRoundTrip(t, client, server)
}

func TestStreamWritesDoNotInterleave(t *testing.T) {
	c1, c2 := net.Pipe()
	a, b := NewStream(c1), NewStream(c2)
	defer a.Close()
	defer b.Close()

	const writers = 8
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			payload := bytes.Repeat([]byte{byte(i)}, 1024)
			if err := a.Write(msg(uint32(i), payload)); err != nil {
				t.Errorf("Write %d failed: %v", i, err)
			}
		}(i)
	}

	for i := 0; i < writers; i++ {
		m, err := b.Read()
		if err != nil {
			t.Fatalf("Read %d failed: %v", i, err)
		}
		for _, c := range m.Payload {
			if c != byte(m.CallID) {
				t.Fatalf("frame %d interleaved: byte %d in payload of call %d", i, c, m.CallID)
			}
		}
	}
	wg.Wait()
}

func TestPipeRoundTrip(t *testing.T) {
	c1, c2 := net.Pipe()
	testRoundTrip(t, NewPipe(c1), NewPipe(c2))
}

func TestPipeLargePayload(t *testing.T) {
	c1, c2 := net.Pipe()
	a, b := NewPipe(c1), NewPipe(c2)
	defer a.Close()
	defer b.Close()

	// Spans two full chunks and a tail.
	payload := make([]byte, 2*PipeChunk+777)
	for i := range payload {
		payload[i] = byte(i * 31)
	}
	done := make(chan error, 1)
	go func() { done <- a.Write(msg(3, payload)) }()
	got, err := b.Read()
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if err := <-done; err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if !bytes.Equal(got.Payload, payload) {
		t.Fatal("chunked payload corrupted in transit")
	}
}

func TestPipeTruncated(t *testing.T) {
	c1, c2 := net.Pipe()
	p := NewPipe(c2)
	go func() {
		c1.Write([]byte{1, 2, 3}) // not even a full header
		c1.Close()
	}()
	if _, err := p.Read(); err == nil {
		t.Fatal("expected error on truncated stream")
	}
}

func TestInprocRoundTrip(t *testing.T) {
	a, b := InprocPair()
	defer a.Close()
	testRoundTrip(t, a, b)
}

func TestInprocCopiesPayload(t *testing.T) {
	a, b := InprocPair()
	defer a.Close()
	payload := []byte{1, 2, 3}
	if err := a.Write(msg(1, payload)); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	payload[0] = 99
	got, err := b.Read()
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if got.Payload[0] != 1 {
		t.Error("delivered payload aliases the sender's buffer")
	}
}

func TestInprocClose(t *testing.T) {
	a, b := InprocPair()
	if err := a.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if _, err := b.Read(); err != io.EOF {
		t.Errorf("Read after close: got %v, want EOF", err)
	}
	if err := b.Write(msg(1, nil)); !errors.Is(err, ErrClosed) {
		t.Errorf("Write after close: got %v, want ErrClosed", err)
	}
	// Closing the other end too is harmless.
	if err := b.Close(); err != nil {
		t.Errorf("peer Close: %v", err)
	}
}

func TestInprocReadUnblocksOnClose(t *testing.T) {
	a, b := InprocPair()
	errc := make(chan error, 1)
	go func() {
		_, err := b.Read()
		errc <- err
	}()
	time.Sleep(10 * time.Millisecond)
	a.Close()
	select {
	case err := <-errc:
		if err != io.EOF {
			t.Errorf("blocked Read: got %v, want EOF", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Read did not unblock on close")
	}
}
