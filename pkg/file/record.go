// Package file holds the in-memory representation of a transferred file.
//
// A Record pairs a path with a declared size and, once populated, an owned
// byte buffer of exactly that size. Senders build records from local paths
// and fill them from disk; receivers build them from wire metadata and fill
// them from the network before handing them to a content store.
package file

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
)

var (
	ErrEmptyPath    = errors.New("file path is empty")
	ErrNotRegular   = errors.New("not a regular file")
	ErrNotLoaded    = errors.New("file content is not loaded")
	ErrSizeMismatch = errors.New("file size changed since it was measured")
	ErrTooLarge     = errors.New("file is too large to buffer in memory")
)

// ContentWriter persists the content of a record at a destination path.
// Content stores implement it.
type ContentWriter interface {
	WriteContent(ctx context.Context, path string, data []byte) error
}

// Record is one file: its path, declared size and optional content buffer.
//
// Invariants: path is never empty, and data is either nil or exactly size
// bytes long.
type Record struct {
	path string
	size uint64
	data []byte
}

// New returns an unpopulated record.
func New(path string, size uint64) (*Record, error) {
	if path == "" {
		return nil, ErrEmptyPath
	}
	return &Record{path: path, size: size}, nil
}

// FromPath measures a local file and returns an unpopulated record for it.
// Only regular files are accepted.
func FromPath(path string) (*Record, error) {
	if path == "" {
		return nil, ErrEmptyPath
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%s: %w", path, ErrNotRegular)
	}

	return &Record{path: path, size: uint64(info.Size())}, nil
}

// IsRegularFile reports whether path names an existing regular file.
func IsRegularFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

func (r *Record) Path() string { return r.path }
func (r *Record) Size() uint64 { return r.size }

// Name returns the base name of the record's path.
func (r *Record) Name() string { return filepath.Base(r.path) }

// Loaded reports whether the content buffer is allocated.
func (r *Record) Loaded() bool { return r.data != nil }

// Bytes returns the content buffer, or nil when not loaded. Callers may fill
// the returned slice in place.
func (r *Record) Bytes() []byte { return r.data }

// Alloc allocates a zeroed buffer of exactly Size bytes, replacing any
// previous buffer.
func (r *Record) Alloc() error {
	if r.size > uint64(math.MaxInt) {
		return fmt.Errorf("%s (%d bytes): %w", r.path, r.size, ErrTooLarge)
	}
	r.data = make([]byte, int(r.size))
	return nil
}

// Populate reads the file at Path into a freshly allocated buffer. The file
// must still have the size measured when the record was created; on any
// failure the record is left unloaded.
func (r *Record) Populate() error {
	f, err := os.Open(r.path)
	if err != nil {
		return fmt.Errorf("open %s: %w", r.path, err)
	}
	defer f.Close()

	if err := r.Alloc(); err != nil {
		return err
	}

	if _, err := io.ReadFull(f, r.data); err != nil {
		r.Reset()
		if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
			return fmt.Errorf("%s: %w", r.path, ErrSizeMismatch)
		}
		return fmt.Errorf("read %s: %w", r.path, err)
	}

	// One more byte means the file grew.
	var probe [1]byte
	if n, _ := f.Read(probe[:]); n > 0 {
		r.Reset()
		return fmt.Errorf("%s: %w", r.path, ErrSizeMismatch)
	}

	return nil
}

// Materialize writes the loaded buffer to w at the record's path.
func (r *Record) Materialize(ctx context.Context, w ContentWriter) error {
	if !r.Loaded() {
		return fmt.Errorf("%s: %w", r.path, ErrNotLoaded)
	}
	if uint64(len(r.data)) != r.size {
		return fmt.Errorf("%s: %w", r.path, ErrSizeMismatch)
	}
	return w.WriteContent(ctx, r.path, r.data)
}

// Reset releases the content buffer.
func (r *Record) Reset() {
	r.data = nil
}
