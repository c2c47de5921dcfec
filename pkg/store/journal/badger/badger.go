// Package badger persists the transfer journal in BadgerDB.
//
// Key layout:
//
//	entry:<hex peer>:<unix-nanos, zero padded>:<id>  ->  JSON-encoded journal.Entry
//
// The peer is hex encoded so an IPv6 address never extends another peer's
// prefix. The zero-padded timestamp makes a prefix scan return a peer's
// entries in recording order.
package badger

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/google/uuid"
	"github.com/marmos91/dittodrop/pkg/store/journal"
)

const entryPrefix = "entry:"

// Config configures the BadgerDB journal.
type Config struct {
	// Path is the database directory. Created if missing.
	Path string `mapstructure:"path" validate:"required"`
}

// BadgerJournal implements journal.Journal on top of BadgerDB.
//
// Thread Safety:
// Badger transactions are safe for concurrent use. closeOnce guards Close.
type BadgerJournal struct {
	db        *badger.DB
	closeOnce sync.Once
	closeErr  error
}

// NewBadgerJournal opens (or creates) the database at cfg.Path.
func NewBadgerJournal(ctx context.Context, cfg Config) (*BadgerJournal, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if cfg.Path == "" {
		return nil, fmt.Errorf("badger journal path is required")
	}

	opts := badger.DefaultOptions(cfg.Path).
		WithLoggingLevel(badger.WARNING).
		WithCompression(options.None)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger journal at %s: %w", cfg.Path, err)
	}

	return &BadgerJournal{db: db}, nil
}

func peerPrefix(peer string) string {
	return entryPrefix + hex.EncodeToString([]byte(peer)) + ":"
}

func entryKey(e journal.Entry) []byte {
	return []byte(fmt.Sprintf("%s%020d:%s", peerPrefix(e.Peer), e.Time.UnixNano(), e.ID))
}

func (j *BadgerJournal) Record(ctx context.Context, entry journal.Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Time.IsZero() {
		entry.Time = time.Now()
	}

	value, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to encode journal entry: %w", err)
	}

	err = j.db.Update(func(txn *badger.Txn) error {
		return txn.Set(entryKey(entry), value)
	})
	if err != nil {
		if errors.Is(err, badger.ErrDBClosed) {
			return journal.ErrClosed
		}
		return fmt.Errorf("failed to record journal entry: %w", err)
	}
	return nil
}

func (j *BadgerJournal) List(ctx context.Context, peer string) ([]journal.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	prefix := []byte(entryPrefix)
	if peer != "" {
		prefix = []byte(peerPrefix(peer))
	}

	var entries []journal.Entry
	err := j.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var e journal.Entry
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &e)
			}); err != nil {
				return fmt.Errorf("failed to decode journal entry %q: %w", it.Item().Key(), err)
			}
			entries = append(entries, e)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, badger.ErrDBClosed) {
			return nil, journal.ErrClosed
		}
		return nil, err
	}

	if peer == "" {
		sortByTime(entries)
	}
	return entries, nil
}

// Close flushes and closes the database. Safe to call more than once.
func (j *BadgerJournal) Close() error {
	j.closeOnce.Do(func() {
		j.closeErr = j.db.Close()
	})
	return j.closeErr
}
