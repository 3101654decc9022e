package rpcerr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodeOf(t *testing.T) {
	assert.Equal(t, CodeOK, CodeOf(nil))
	assert.Equal(t, CodeNotImplemented, CodeOf(New(CodeNotImplemented, "missing")))
	assert.Equal(t, CodeCancelled, CodeOf(fmt.Errorf("outer: %w", ErrCancelled)))
	assert.Equal(t, CodeInvocationFailure, CodeOf(errors.New("opaque")))
}

func TestSentinelMatching(t *testing.T) {
	err := Newf(CodeInvalidArgument, "field %s", "name")
	assert.ErrorIs(t, err, ErrInvalidArg)
	assert.NotErrorIs(t, err, ErrCancelled)
	assert.Contains(t, err.Error(), "field name")
}

func TestWrap(t *testing.T) {
	cause := errors.New("socket reset")
	err := Wrap(CodeTransportFailure, cause)
	require.NotNil(t, err)
	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, err, ErrTransport)

	var nilWrapped error
	if e := Wrap(CodeTransportFailure, nil); e != nil {
		nilWrapped = e
	}
	assert.NoError(t, nilWrapped)
}

func TestWireEncoding(t *testing.T) {
	for _, code := range []Code{CodeOK, CodeCancelled, CodeNotImplemented, CodeAborted} {
		payload := EncodeWire(code)
		require.Len(t, payload, WireSize)
		assert.Equal(t, code, DecodeWire(payload))
	}
	// Little-endian layout.
	assert.Equal(t, []byte{2, 0, 0, 0}, EncodeWire(CodeNotImplemented))
}

func TestMalformedWirePayload(t *testing.T) {
	assert.Equal(t, CodeInvocationFailure, DecodeWire(nil))
	assert.Equal(t, CodeInvocationFailure, DecodeWire([]byte{1, 2}))
	assert.Equal(t, CodeInvocationFailure, DecodeWire([]byte{1, 2, 3, 4, 5}))
}
