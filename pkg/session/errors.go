package session

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidState is returned when an operation is called out of order.
	ErrInvalidState = errors.New("operation not allowed in current session state")

	// ErrCountMismatch is returned when Transfer is given a different number
	// of records than was announced.
	ErrCountMismatch = errors.New("record count differs from announced count")
)

// ConnectionError reports a failed dial. Err carries the OS error.
type ConnectionError struct {
	Address string
	Err     error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("failed to connect to %s: %v", e.Address, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

func stateError(op string, state fmt.Stringer) error {
	return fmt.Errorf("%s in state %s: %w", op, state, ErrInvalidState)
}
