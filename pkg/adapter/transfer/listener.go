package transfer

import (
	"fmt"
	"net"
)

// DefaultBacklog is the pending-connection queue length when none is set.
const DefaultBacklog = 5

// ListenError reports which step of socket setup failed. Err carries the OS
// error.
type ListenError struct {
	Op   string
	Port int
	Err  error
}

func (e *ListenError) Error() string {
	return fmt.Sprintf("%s on port %d: %v", e.Op, e.Port, e.Err)
}

func (e *ListenError) Unwrap() error {
	return e.Err
}

// Listen opens an IPv4 TCP listener on every interface. backlog bounds the
// kernel's queue of not-yet-accepted connections where the platform allows
// choosing it. Port 0 picks a free port.
func Listen(port, backlog int) (net.Listener, error) {
	if port < 0 || port > 65535 {
		return nil, &ListenError{Op: "bind", Port: port, Err: fmt.Errorf("port out of range")}
	}
	if backlog <= 0 {
		backlog = DefaultBacklog
	}
	return listen(port, backlog)
}
