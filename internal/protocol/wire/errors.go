package wire

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyTransfer is returned when SendAll or RecvAll is asked to move
	// zero bytes. Every field of the protocol has a nonzero length.
	ErrEmptyTransfer = errors.New("zero-length transfer")

	// ErrNoProgress is returned when the underlying stream accepts or yields
	// nothing without reporting an error.
	ErrNoProgress = errors.New("transfer made no progress")

	// ErrPeerClosed is returned when the peer shut the connection down before
	// all expected bytes arrived.
	ErrPeerClosed = errors.New("peer closed the connection early")
)

// Encoding failures. They are always wrapped in an *EncodingError.
var (
	ErrEmptyName    = errors.New("file name is empty")
	ErrNameTooLong  = errors.New("file name exceeds maximum length")
	ErrInvalidName  = errors.New("file name is not a plain base name")
	ErrZeroSize     = errors.New("file size must be greater than zero")
	ErrTooManyFiles = errors.New("file count exceeds limit")
)

// TransportError reports a fatal error from the underlying stream.
// Err is the error returned by Read or Write, usually a *net.OpError
// carrying the OS errno.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error during %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// EncodingError reports a value that cannot be represented on the wire.
type EncodingError struct {
	Field string
	Value any
	Err   error
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("cannot encode %s %v: %v", e.Field, e.Value, e.Err)
}

func (e *EncodingError) Unwrap() error {
	return e.Err
}

// IsTransport reports whether err is (or wraps) a *TransportError.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}
