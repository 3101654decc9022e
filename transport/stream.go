package transport

import (
	"context"
	"net"
	"sync"

	"crpc/protocol"
)

// Stream frames messages over any net.Conn with the standard length prefix.
type Stream struct {
	conn net.Conn

	wmu sync.Mutex

	closeOnce sync.Once
	closeErr  error
}

// NewStream wraps an established connection. The Stream owns conn and closes
// it on Close.
func NewStream(conn net.Conn) *Stream {
	return &Stream{conn: conn}
}

func (s *Stream) Write(m protocol.Message) error {
	s.wmu.Lock()
	defer s.wmu.Unlock()
	return protocol.WriteFrame(s.conn, m)
}

func (s *Stream) Read() (protocol.Message, error) {
	return protocol.ReadFrame(s.conn)
}

func (s *Stream) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.conn.Close()
	})
	return s.closeErr
}

// RemoteAddr reports the peer address of the underlying connection.
func (s *Stream) RemoteAddr() net.Addr { return s.conn.RemoteAddr() }

// DialTCP connects to a TCP endpoint and returns a framed transport over it.
func DialTCP(ctx context.Context, addr string) (*Stream, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	return NewStream(conn), nil
}

// Listener accepts framed transports from inbound TCP connections.
type Listener struct {
	l net.Listener
}

// ListenTCP starts listening on addr. Pass an address with port 0 to let the
// kernel pick one; Addr reports the bound address.
func ListenTCP(addr string) (*Listener, error) {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &Listener{l: l}, nil
}

// Accept blocks for the next inbound connection.
func (l *Listener) Accept() (*Stream, error) {
	conn, err := l.l.Accept()
	if err != nil {
		return nil, err
	}
	return NewStream(conn), nil
}

// Addr returns the listener's bound address.
func (l *Listener) Addr() net.Addr { return l.l.Addr() }

// Close stops accepting. Established Streams are unaffected.
func (l *Listener) Close() error { return l.l.Close() }
