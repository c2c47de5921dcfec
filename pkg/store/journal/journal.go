// Package journal records the outcome of every file a daemon session
// receives, so operators can tell which uploads completed and which were
// abandoned mid-stream.
package journal

import (
	"context"
	"errors"
	"time"
)

// Status is the final state of a received file.
type Status string

const (
	StatusComplete Status = "complete"
	StatusFailed   Status = "failed"
)

var ErrClosed = errors.New("journal closed")

// Entry describes one announced file.
type Entry struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Peer      string    `json:"peer"`
	Name      string    `json:"name"`
	Path      string    `json:"path"`
	Size      uint64    `json:"size"`
	Status    Status    `json:"status"`
	Error     string    `json:"error,omitempty"`
	Time      time.Time `json:"time"`
}

// Journal persists entries. Implementations must be safe for concurrent use.
type Journal interface {
	// Record appends an entry. ID and Time are filled in when empty.
	Record(ctx context.Context, entry Entry) error

	// List returns entries in recording order. An empty peer lists all.
	List(ctx context.Context, peer string) ([]Entry, error)

	Close() error
}

// Noop discards everything. Used when the journal is disabled.
type Noop struct{}

func (Noop) Record(ctx context.Context, _ Entry) error { return ctx.Err() }

func (Noop) List(ctx context.Context, _ string) ([]Entry, error) { return nil, ctx.Err() }

func (Noop) Close() error { return nil }
