// Package rpcerr defines the platform-neutral error codes that cross the wire.
//
// A ResponseError frame carries exactly four bytes: a little-endian 32-bit
// code from the table below. Anything richer (messages, stack traces) stays on
// the side that produced it; the peer only ever sees the code.
package rpcerr

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Code is a 32-bit error code understood by both endpoints.
type Code uint32

const (
	CodeOK Code = iota
	CodeCancelled
	CodeNotImplemented
	CodeInvalidArgument
	CodeInvocationFailure
	CodeProtocolError
	CodeTransportFailure
	CodeAborted
)

// WireSize is the exact payload length of a ResponseError frame.
const WireSize = 4

func (c Code) String() string {
	switch c {
	case CodeOK:
		return "ok"
	case CodeCancelled:
		return "cancelled"
	case CodeNotImplemented:
		return "not implemented"
	case CodeInvalidArgument:
		return "invalid argument"
	case CodeInvocationFailure:
		return "invocation failure"
	case CodeProtocolError:
		return "protocol error"
	case CodeTransportFailure:
		return "transport failure"
	case CodeAborted:
		return "aborted"
	default:
		return fmt.Sprintf("code(%d)", uint32(c))
	}
}

// Error is an error with an attached wire code.
type Error struct {
	Code Code
	msg  string
	err  error
}

// New creates an Error with the given code and message.
func New(code Code, msg string) *Error {
	return &Error{Code: code, msg: msg}
}

// Newf creates an Error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, msg: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code to an existing error. Returns nil if err is nil.
func Wrap(code Code, err error) *Error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, msg: err.Error(), err: err}
}

func (e *Error) Error() string {
	if e.msg == "" {
		return e.Code.String()
	}
	return fmt.Sprintf("%s: %s", e.Code, e.msg)
}

func (e *Error) Unwrap() error { return e.err }

// Is makes errors.Is match any *Error with the same code.
func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return other.Code == e.Code
	}
	return false
}

// Sentinel values for errors.Is checks.
var (
	ErrCancelled      = New(CodeCancelled, "")
	ErrNotImplemented = New(CodeNotImplemented, "")
	ErrInvalidArg     = New(CodeInvalidArgument, "")
	ErrInvocation     = New(CodeInvocationFailure, "")
	ErrProtocol       = New(CodeProtocolError, "")
	ErrTransport      = New(CodeTransportFailure, "")
	ErrAborted        = New(CodeAborted, "")
)

// CodeOf extracts the wire code from any error. Unrecognized errors degrade
// to CodeInvocationFailure, the generic failure code.
func CodeOf(err error) Code {
	if err == nil {
		return CodeOK
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInvocationFailure
}

// EncodeWire renders a code as the four-byte ResponseError payload.
func EncodeWire(code Code) []byte {
	buf := make([]byte, WireSize)
	binary.LittleEndian.PutUint32(buf, uint32(code))
	return buf
}

// DecodeWire parses a ResponseError payload. A malformed payload degrades to
// the generic failure code rather than an error: a broken error report must
// not take the reader down.
func DecodeWire(payload []byte) Code {
	if len(payload) != WireSize {
		return CodeInvocationFailure
	}
	return Code(binary.LittleEndian.Uint32(payload))
}
