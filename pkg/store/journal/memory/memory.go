// Package memory provides an in-process journal, mostly for tests and
// short-lived daemons.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/marmos91/dittodrop/pkg/store/journal"
)

type MemoryJournal struct {
	mu      sync.RWMutex
	entries []journal.Entry
	closed  bool
}

func NewMemoryJournal() *MemoryJournal {
	return &MemoryJournal{}
}

func (j *MemoryJournal) Record(ctx context.Context, entry journal.Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Time.IsZero() {
		entry.Time = time.Now()
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return journal.ErrClosed
	}
	j.entries = append(j.entries, entry)
	return nil
}

func (j *MemoryJournal) List(ctx context.Context, peer string) ([]journal.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.closed {
		return nil, journal.ErrClosed
	}

	out := make([]journal.Entry, 0, len(j.entries))
	for _, e := range j.entries {
		if peer == "" || e.Peer == peer {
			out = append(out, e)
		}
	}
	return out, nil
}

func (j *MemoryJournal) Close() error {
	j.mu.Lock()
	j.closed = true
	j.mu.Unlock()
	return nil
}
