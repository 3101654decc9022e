package transport

import (
	"io"
	"sync"

	"crpc/protocol"
)

// DatagramTag marks datagrams belonging to this protocol. Carriers that share
// a mailbox with unrelated traffic drop anything bearing a different tag.
var DatagramTag = uint32(protocol.HashName("AsyncCppRpc-CopyData-Transport"))

type datagram struct {
	tag uint32
	msg protocol.Message
}

// Inproc is one end of an in-process datagram link. Each message is delivered
// whole, tagged, and copied, so neither side can reach into the other's
// buffers. Closing either end severs the link for both.
type Inproc struct {
	send chan<- datagram
	recv <-chan datagram
	done chan struct{}
	once *sync.Once
}

// InprocPair creates two connected endpoints.
func InprocPair() (*Inproc, *Inproc) {
	ab := make(chan datagram, 64)
	ba := make(chan datagram, 64)
	done := make(chan struct{})
	once := new(sync.Once)
	a := &Inproc{send: ab, recv: ba, done: done, once: once}
	b := &Inproc{send: ba, recv: ab, done: done, once: once}
	return a, b
}

func (t *Inproc) Write(m protocol.Message) error {
	payload := make([]byte, len(m.Payload))
	copy(payload, m.Payload)
	d := datagram{tag: DatagramTag, msg: protocol.Message{Header: m.Header, Payload: payload}}
	select {
	case <-t.done:
		return ErrClosed
	default:
	}
	select {
	case t.send <- d:
		return nil
	case <-t.done:
		return ErrClosed
	}
}

func (t *Inproc) Read() (protocol.Message, error) {
	for {
		select {
		case d := <-t.recv:
			if d.tag != DatagramTag {
				continue
			}
			return d.msg, nil
		case <-t.done:
			return protocol.Message{}, io.EOF
		}
	}
}

func (t *Inproc) Close() error {
	t.once.Do(func() { close(t.done) })
	return nil
}
