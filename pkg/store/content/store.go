// Package content defines where received files end up.
//
// A ContentStore gives every peer its own destination directory (or key
// prefix) and persists whole files into it. Implementations live in the
// fs, memory and s3 subpackages.
package content

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrContentNotFound is returned when reading a path that was never written.
	ErrContentNotFound = errors.New("content not found")

	// ErrInvalidPath is returned for paths outside the store root.
	ErrInvalidPath = errors.New("invalid content path")

	// ErrInvalidPeer is returned when a peer name cannot be used as a
	// directory name.
	ErrInvalidPeer = errors.New("invalid peer name")
)

// ContentStore persists received files.
//
// Paths passed to WriteContent, ReadContent and ContentExists are built by
// joining the directory returned from PrepareSession with a file name.
type ContentStore interface {
	// PrepareSession returns the destination directory for peer, creating it
	// if needed. Calling it again for the same peer returns the same
	// directory.
	PrepareSession(ctx context.Context, peer string) (string, error)

	// WriteContent stores data at path, replacing any previous content. A
	// failed write leaves no partial content behind.
	WriteContent(ctx context.Context, path string, data []byte) error

	// ReadContent returns the content stored at path.
	ReadContent(ctx context.Context, path string) ([]byte, error)

	// ContentExists reports whether path holds content.
	ContentExists(ctx context.Context, path string) (bool, error)

	// Close releases resources held by the store.
	Close() error
}

// GarbageCollectableStore is implemented by stores whose writes can leave
// partial files behind when the process dies mid-write.
type GarbageCollectableStore interface {
	// ListPartial returns leftover partial files last modified before
	// olderThan.
	ListPartial(ctx context.Context, olderThan time.Time) ([]string, error)

	// DeleteBatch removes paths. Per-path failures are returned in the map;
	// the error is reserved for failures that stop the whole batch.
	DeleteBatch(ctx context.Context, paths []string) (map[string]error, error)
}

// ValidatePeer checks that peer is usable as a single path element.
func ValidatePeer(peer string) error {
	if peer == "" || peer == "." || peer == ".." || strings.ContainsAny(peer, "/\\\x00") {
		return fmt.Errorf("%w: %q", ErrInvalidPeer, peer)
	}
	return nil
}

// CleanKey normalizes a slash-separated path into a relative key and rejects
// keys that escape the root.
func CleanKey(path string) (string, error) {
	key := strings.Trim(path, "/")
	if key == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, path)
	}
	for _, part := range strings.Split(key, "/") {
		if part == "" || part == "." || part == ".." {
			return "", fmt.Errorf("%w: %q", ErrInvalidPath, path)
		}
	}
	return key, nil
}
