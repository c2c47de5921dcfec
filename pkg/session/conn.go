package session

import (
	"context"
	"fmt"
	"net"
	"time"
)

// bindContext interrupts blocking I/O on conn when ctx is done by moving the
// deadline into the past. The returned function detaches the binding.
func bindContext(ctx context.Context, conn net.Conn) (stop func() bool) {
	return context.AfterFunc(ctx, func() {
		_ = conn.SetDeadline(time.Unix(1, 0))
	})
}

// contextError prefers the context's error over the I/O error it caused.
func contextError(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%w: %w", ctxErr, err)
	}
	return err
}

// peerHost returns the IP part of addr, or the whole address when it has no
// port.
func peerHost(addr net.Addr) string {
	if addr == nil {
		return ""
	}
	if tcp, ok := addr.(*net.TCPAddr); ok {
		return tcp.IP.String()
	}
	host, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		return addr.String()
	}
	return host
}
