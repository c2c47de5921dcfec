//go:build !linux

package transfer

import (
	"fmt"
	"net"
)

// listen falls back to net.Listen; the backlog is left to the OS.
func listen(port, _ int) (net.Listener, error) {
	ln, err := net.Listen("tcp4", fmt.Sprintf(":%d", port))
	if err != nil {
		return nil, &ListenError{Op: "listen", Port: port, Err: err}
	}
	return ln, nil
}
