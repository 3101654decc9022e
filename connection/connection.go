// Package connection runs the full-duplex message loop binding a transport to
// client stubs and a server dispatcher.
//
// A Conn owns two goroutines while running: the writer drains a single
// outbound queue, so only it touches transport.Write; the reader is the only
// caller of transport.Read and classifies each inbound message, resolving
// replies against the pending-call table and spawning a handler per request.
// Stopping the connection, or a transport failure in either direction, fails
// every in-flight call with cancellation and reports the first error through
// the OnError hook exactly once.
package connection

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"crpc/protocol"
	"crpc/rpcerr"
	"crpc/transport"
)

// Phase tells the error hook which activity observed the failure.
type Phase uint8

const (
	PhaseSend Phase = iota
	PhaseReceive
	PhaseStop
)

func (p Phase) String() string {
	switch p {
	case PhaseSend:
		return "send"
	case PhaseReceive:
		return "receive"
	case PhaseStop:
		return "stop"
	default:
		return "phase(?)"
	}
}

// ErrorHook observes the first failure on a connection. It runs on its own
// goroutine, or synchronously from OnError when the error predates the hook.
type ErrorHook func(code rpcerr.Code, phase Phase)

// Dispatcher serves inbound requests. *marshal.Server implements it.
type Dispatcher interface {
	Dispatch(ctx context.Context, state any, id protocol.MethodID, payload []byte) ([]byte, error)
	DispatchOneWay(ctx context.Context, state any, id protocol.MethodID, payload []byte) error
}

type result struct {
	payload []byte
	err     error
}

type capture struct {
	code  rpcerr.Code
	phase Phase
}

const writeQueueDepth = 64

// Conn is one endpoint of a full-duplex RPC connection. It implements
// marshal.Caller, so client stubs are bound with marshal.BindClient.
type Conn struct {
	state  any
	srv    Dispatcher
	logger *zap.Logger

	nextID atomic.Uint32

	mu       sync.Mutex
	running  bool
	tr       transport.Transport
	pending  map[uint32]chan result
	captured *capture
	hook     ErrorHook
	notified bool

	ctx    context.Context
	cancel context.CancelFunc
	writeq chan protocol.Message

	writerDone chan struct{}
	readerDone chan struct{}
	handlers   sync.WaitGroup
}

// Option configures a Conn before it starts.
type Option func(*Conn)

// WithState attaches the serializer state object exposed to every codec
// Writer and Reader on this connection.
func WithState(state any) Option {
	return func(c *Conn) { c.state = state }
}

// WithServer binds the dispatcher that serves inbound requests. Without one,
// inbound requests are answered with an invalid-argument error and inbound
// one-way messages are dropped.
func WithServer(d Dispatcher) Option {
	return func(c *Conn) { c.srv = d }
}

// WithLogger sets the connection's logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(c *Conn) { c.logger = l }
}

// WithOnError installs the error hook before the connection starts.
func WithOnError(h ErrorHook) Option {
	return func(c *Conn) { c.hook = h }
}

// New creates an idle connection.
func New(opts ...Option) *Conn {
	c := &Conn{logger: zap.NewNop()}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Start takes ownership of the transport and spawns the reader and writer.
// It fails if the connection is already running. A stopped connection may be
// started again with a fresh transport.
func (c *Conn) Start(tr transport.Transport) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return rpcerr.New(rpcerr.CodeAborted, "connection already running")
	}
	c.running = true
	c.tr = tr
	c.pending = make(map[uint32]chan result)
	c.captured = nil
	c.notified = false
	c.ctx, c.cancel = context.WithCancel(context.Background())
	c.writeq = make(chan protocol.Message, writeQueueDepth)
	c.writerDone = make(chan struct{})
	c.readerDone = make(chan struct{})

	go c.writeLoop(c.ctx, tr, c.writeq, c.writerDone)
	go c.readLoop(c.ctx, tr, c.readerDone)
	return nil
}

// Stop tears the connection down: it reports an abort through the error hook
// (unless a failure was already captured), cancels both loops, waits for
// in-flight handlers, fails every pending call with cancellation, and
// releases the transport. Stop is idempotent.
func (c *Conn) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.running = false
	tr := c.tr
	cancel := c.cancel
	writerDone, readerDone := c.writerDone, c.readerDone
	c.captureLocked(rpcerr.CodeAborted, PhaseStop)
	c.mu.Unlock()

	cancel()
	tr.Close()
	<-writerDone
	<-readerDone

	c.mu.Lock()
	for id, ch := range c.pending {
		delete(c.pending, id)
		ch <- result{err: rpcerr.New(rpcerr.CodeCancelled, "connection stopped")}
	}
	c.tr = nil
	c.mu.Unlock()
	c.logger.Debug("connection stopped")
}

// OnError installs the error hook. If a failure was captured before the hook
// existed, it fires synchronously right here; otherwise it fires once, on its
// own goroutine, when the first failure is captured. Installing a new hook
// after it fired is allowed.
func (c *Conn) OnError(h ErrorHook) {
	c.mu.Lock()
	c.hook = h
	var fire *capture
	if h != nil && c.captured != nil && !c.notified {
		c.notified = true
		fire = c.captured
	}
	c.mu.Unlock()
	if fire != nil && h != nil {
		h(fire.code, fire.phase)
	}
}

// SerializerState returns the state object shared with the codec.
func (c *Conn) SerializerState() any { return c.state }

// Call sends a request and blocks until the matching reply, ctx expiry, or
// connection teardown.
func (c *Conn) Call(ctx context.Context, id protocol.MethodID, payload []byte) ([]byte, error) {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return nil, rpcerr.New(rpcerr.CodeCancelled, "connection not running")
	}
	done := c.ctx.Done()
	callID := c.allocateLocked()
	ch := make(chan result, 1)
	c.pending[callID] = ch
	c.mu.Unlock()

	msg := protocol.Message{
		Header:  protocol.Header{CallID: callID, Type: protocol.Request, Method: id},
		Payload: payload,
	}
	if err := c.enqueue(msg, done); err != nil {
		c.forget(callID)
		return nil, err
	}

	select {
	case r := <-ch:
		return r.payload, r.err
	case <-ctx.Done():
		c.forget(callID)
		return nil, rpcerr.New(rpcerr.CodeCancelled, "call abandoned: "+ctx.Err().Error())
	case <-done:
		c.forget(callID)
		return nil, rpcerr.New(rpcerr.CodeCancelled, "connection torn down")
	}
}

// VoidCall posts a fire-and-forget message. Delivery failures surface through
// the error hook only.
func (c *Conn) VoidCall(id protocol.MethodID, payload []byte) error {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return rpcerr.New(rpcerr.CodeCancelled, "connection not running")
	}
	done := c.ctx.Done()
	callID := c.allocateLocked()
	c.mu.Unlock()

	msg := protocol.Message{
		Header:  protocol.Header{CallID: callID, Type: protocol.VoidRequest, Method: id},
		Payload: payload,
	}
	return c.enqueue(msg, done)
}

// allocateLocked hands out the next 30-bit call id, skipping ids that still
// have a reply outstanding after a wrap.
func (c *Conn) allocateLocked() uint32 {
	for {
		id := c.nextID.Add(1) & protocol.MaxCallID
		if _, taken := c.pending[id]; !taken {
			return id
		}
	}
}

func (c *Conn) forget(callID uint32) {
	c.mu.Lock()
	delete(c.pending, callID)
	c.mu.Unlock()
}

func (c *Conn) enqueue(m protocol.Message, done <-chan struct{}) error {
	select {
	case <-done:
		return rpcerr.New(rpcerr.CodeCancelled, "connection torn down")
	default:
	}
	select {
	case c.writeq <- m:
		return nil
	case <-done:
		return rpcerr.New(rpcerr.CodeCancelled, "connection torn down")
	}
}

func (c *Conn) writeLoop(ctx context.Context, tr transport.Transport, q <-chan protocol.Message, doneCh chan struct{}) {
	defer close(doneCh)
	for {
		select {
		case m := <-q:
			if err := tr.Write(m); err != nil {
				c.logger.Warn("transport write failed", zap.Error(err))
				c.fail(rpcerr.CodeTransportFailure, PhaseSend, tr)
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

func (c *Conn) readLoop(ctx context.Context, tr transport.Transport, doneCh chan struct{}) {
	defer close(doneCh)
	defer c.handlers.Wait()
	for {
		m, err := tr.Read()
		if err != nil {
			if ctx.Err() == nil {
				c.logger.Warn("transport read failed", zap.Error(err))
				c.fail(rpcerr.CodeTransportFailure, PhaseReceive, tr)
			}
			return
		}
		switch m.Type {
		case protocol.Response, protocol.ResponseError:
			c.complete(m)
		case protocol.Request:
			c.handlers.Add(1)
			go c.serveRequest(ctx, m)
		case protocol.VoidRequest:
			c.serveVoid(ctx, m)
		}
	}
}

// complete resolves a reply against the pending-call table. Replies for
// unknown ids are dropped; the caller may have abandoned the call.
func (c *Conn) complete(m protocol.Message) {
	c.mu.Lock()
	ch, ok := c.pending[m.CallID]
	if ok {
		delete(c.pending, m.CallID)
	}
	c.mu.Unlock()
	if !ok {
		c.logger.Debug("dropping reply with no pending call", zap.Uint32("call_id", m.CallID))
		return
	}
	if m.Type == protocol.Response {
		ch <- result{payload: m.Payload}
		return
	}
	code := rpcerr.DecodeWire(m.Payload)
	ch <- result{err: rpcerr.New(code, "remote error")}
}

func (c *Conn) serveRequest(ctx context.Context, m protocol.Message) {
	defer c.handlers.Done()

	var reply protocol.Message
	if c.srv == nil {
		reply = protocol.Message{
			Header:  protocol.Header{CallID: m.CallID, Type: protocol.ResponseError, Method: m.Method},
			Payload: rpcerr.EncodeWire(rpcerr.CodeInvalidArgument),
		}
	} else if resp, err := c.srv.Dispatch(ctx, c.state, m.Method, m.Payload); err != nil {
		reply = protocol.Message{
			Header:  protocol.Header{CallID: m.CallID, Type: protocol.ResponseError, Method: m.Method},
			Payload: rpcerr.EncodeWire(rpcerr.CodeOf(err)),
		}
	} else {
		reply = protocol.Message{
			Header:  protocol.Header{CallID: m.CallID, Type: protocol.Response, Method: m.Method},
			Payload: resp,
		}
	}
	// A teardown between dispatch and send drops the reply.
	if err := c.enqueue(reply, ctx.Done()); err != nil {
		c.logger.Debug("dropping reply for torn-down connection", zap.Uint32("call_id", m.CallID))
	}
}

func (c *Conn) serveVoid(ctx context.Context, m protocol.Message) {
	if c.srv == nil {
		c.logger.Debug("dropping one-way message with no server bound",
			zap.Uint32("method", uint32(m.Method)))
		return
	}
	if err := c.srv.DispatchOneWay(ctx, c.state, m.Method, m.Payload); err != nil {
		c.logger.Warn("one-way dispatch failed",
			zap.Uint32("method", uint32(m.Method)), zap.Error(err))
	}
}

// fail captures the first failure, tears the loops down, and fails pending
// calls. Later failures are kept out of the hook; only the first one counts.
func (c *Conn) fail(code rpcerr.Code, phase Phase, tr transport.Transport) {
	c.mu.Lock()
	c.captureLocked(code, phase)
	cancel := c.cancel
	c.mu.Unlock()
	cancel()
	tr.Close()

	c.mu.Lock()
	for id, ch := range c.pending {
		delete(c.pending, id)
		ch <- result{err: rpcerr.New(rpcerr.CodeCancelled, "connection failed")}
	}
	c.mu.Unlock()
}

func (c *Conn) captureLocked(code rpcerr.Code, phase Phase) {
	if c.captured != nil {
		return
	}
	c.captured = &capture{code: code, phase: phase}
	if c.hook != nil && !c.notified {
		c.notified = true
		h := c.hook
		ev := *c.captured
		go h(ev.code, ev.phase)
	}
}
