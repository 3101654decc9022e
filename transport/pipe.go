package transport

import (
	"encoding/binary"
	"fmt"
	"io"
	"sync"

	"crpc/protocol"
)

// PipeChunk is the largest single write a Pipe issues. Carriers with a 64 KiB
// per-operation ceiling receive large payloads as a run of full chunks plus a
// tail.
const PipeChunk = 64 * 1024

// Pipe frames messages over a raw byte pipe: an 8-byte header and a u32
// payload size in one write, then the payload in chunks of at most PipeChunk
// bytes.
type Pipe struct {
	rw io.ReadWriteCloser

	wmu sync.Mutex

	closeOnce sync.Once
	closeErr  error
}

// NewPipe wraps a byte pipe. The Pipe owns rw and closes it on Close.
func NewPipe(rw io.ReadWriteCloser) *Pipe {
	return &Pipe{rw: rw}
}

func (p *Pipe) Write(m protocol.Message) error {
	p.wmu.Lock()
	defer p.wmu.Unlock()

	head := make([]byte, protocol.HeaderSize+4)
	m.Header.Pack(head)
	binary.LittleEndian.PutUint32(head[protocol.HeaderSize:], uint32(len(m.Payload)))
	if _, err := p.rw.Write(head); err != nil {
		return err
	}
	for rest := m.Payload; len(rest) > 0; {
		n := len(rest)
		if n > PipeChunk {
			n = PipeChunk
		}
		if _, err := p.rw.Write(rest[:n]); err != nil {
			return err
		}
		rest = rest[n:]
	}
	return nil
}

func (p *Pipe) Read() (protocol.Message, error) {
	head := make([]byte, protocol.HeaderSize+4)
	if _, err := io.ReadFull(p.rw, head); err != nil {
		return protocol.Message{}, err
	}
	h := protocol.Unpack(head)
	size := binary.LittleEndian.Uint32(head[protocol.HeaderSize:])
	payload := make([]byte, size)
	for rest := payload; len(rest) > 0; {
		n := len(rest)
		if n > PipeChunk {
			n = PipeChunk
		}
		if _, err := io.ReadFull(p.rw, rest[:n]); err != nil {
			return protocol.Message{}, fmt.Errorf("short payload read (want %d bytes): %w", size, err)
		}
		rest = rest[n:]
	}
	return protocol.Message{Header: h, Payload: payload}, nil
}

func (p *Pipe) Close() error {
	p.closeOnce.Do(func() {
		p.closeErr = p.rw.Close()
	})
	return p.closeErr
}
