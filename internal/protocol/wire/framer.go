// Package wire implements the dittodrop transfer framing.
//
// A session on the wire is:
//
//	count    uint64 (XDR unsigned hyper, big-endian)
//	metadata count times: size uint64 | name_len uint32 | name | 0-3 pad bytes
//	payload  count times: exactly size raw bytes, in metadata order
//
// There are no acknowledgments, magic numbers or versions. Every field has a
// known exact length, so all I/O goes through SendAll and RecvAll.
package wire

import (
	"errors"
	"fmt"
	"io"
)

// maxConsecutiveEmptyReads bounds how many (0, nil) reads RecvAll tolerates.
const maxConsecutiveEmptyReads = 100

// SendAll writes all of buf to w, repeating Write and advancing past the
// bytes each call accepted.
//
// A Write that accepts nothing without an error is ErrNoProgress. Any Write
// error is returned as a *TransportError. A zero-length buf is rejected with
// ErrEmptyTransfer.
func SendAll(w io.Writer, buf []byte) error {
	if len(buf) == 0 {
		return ErrEmptyTransfer
	}

	sent := 0
	for sent < len(buf) {
		n, err := w.Write(buf[sent:])
		if n < 0 || n > len(buf)-sent {
			return &TransportError{Op: "send", Err: fmt.Errorf("invalid write count %d", n)}
		}
		sent += n

		if err != nil {
			return &TransportError{Op: "send", Err: err}
		}
		if n == 0 {
			return fmt.Errorf("%w: sent %d of %d bytes", ErrNoProgress, sent, len(buf))
		}
	}

	return nil
}

// RecvAll fills buf from r, repeating Read and advancing past the bytes each
// call returned.
//
// io.EOF before buf is full means the peer shut down early and yields
// ErrPeerClosed. Other Read errors are returned as a *TransportError. A
// zero-length buf is rejected with ErrEmptyTransfer.
func RecvAll(r io.Reader, buf []byte) error {
	if len(buf) == 0 {
		return ErrEmptyTransfer
	}

	received := 0
	empty := 0
	for received < len(buf) {
		n, err := r.Read(buf[received:])
		if n < 0 || n > len(buf)-received {
			return &TransportError{Op: "recv", Err: fmt.Errorf("invalid read count %d", n)}
		}
		received += n

		if received == len(buf) {
			return nil
		}

		switch {
		case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
			return fmt.Errorf("%w: received %d of %d bytes", ErrPeerClosed, received, len(buf))
		case err != nil:
			return &TransportError{Op: "recv", Err: err}
		case n == 0:
			empty++
			if empty >= maxConsecutiveEmptyReads {
				return fmt.Errorf("%w: received %d of %d bytes", ErrNoProgress, received, len(buf))
			}
		default:
			empty = 0
		}
	}

	return nil
}
