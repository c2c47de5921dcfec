//go:build linux

package transfer

import (
	"fmt"
	"net"
	"os"

	"golang.org/x/sys/unix"
)

// listen creates the socket by hand so the listen(2) backlog is the
// configured one instead of the system maximum net.Listen uses.
func listen(port, backlog int) (net.Listener, error) {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, unix.IPPROTO_TCP)
	if err != nil {
		return nil, &ListenError{Op: "socket", Port: port, Err: os.NewSyscallError("socket", err)}
	}

	fail := func(op string, err error) (net.Listener, error) {
		_ = unix.Close(fd)
		return nil, &ListenError{Op: op, Port: port, Err: os.NewSyscallError(op, err)}
	}

	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		return fail("setsockopt", err)
	}
	if err := unix.Bind(fd, &unix.SockaddrInet4{Port: port}); err != nil {
		return fail("bind", err)
	}
	if err := unix.Listen(fd, backlog); err != nil {
		return fail("listen", err)
	}

	f := os.NewFile(uintptr(fd), fmt.Sprintf("tcp4:%d", port))
	defer f.Close()

	// FileListener dups the descriptor, so closing f is safe.
	ln, err := net.FileListener(f)
	if err != nil {
		return nil, &ListenError{Op: "listen", Port: port, Err: err}
	}
	return ln, nil
}
