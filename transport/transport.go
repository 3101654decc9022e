// Package transport provides the message carriers a connection runs over: a
// length-prefixed byte stream (TCP or any net.Conn), a chunked pipe for
// carriers with a per-write ceiling, and an in-process pair for tests and
// same-process wiring.
package transport

import (
	"errors"

	"crpc/protocol"
)

// ErrClosed is returned by Inproc.Write once either end of the link has been
// closed; Inproc.Read on a closed link returns io.EOF. Stream and Pipe report
// the errors of their underlying connection instead.
var ErrClosed = errors.New("transport: closed")

// Transport is a bidirectional carrier of whole messages.
//
// Write delivers one message, in order, exactly once; it must not interleave
// with other writes, so the connection funnels every outbound message through
// a single writer goroutine. Read blocks for the next complete message and is
// likewise called from a single reader goroutine. Close unblocks both and
// releases the carrier; it is safe to call more than once.
type Transport interface {
	Write(m protocol.Message) error
	Read() (protocol.Message, error)
	Close() error
}
