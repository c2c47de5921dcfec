// Package fs implements a filesystem content store.
//
// Files land at <base>/<peer>/<name>. Writes go through a temporary file in
// <base>/.dittodrop-staging and are renamed into place, so an interrupted
// write never leaves a partial file under the final name. Nothing outside
// the staging directory is ever treated as partial.
package fs

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/marmos91/dittodrop/pkg/store/content"
)

const (
	// StagingDirName is the directory below the base that holds in-flight
	// writes. It is not a valid peer directory.
	StagingDirName = ".dittodrop-staging"

	partialPrefix = ".dittodrop-"
	partialSuffix = ".part"

	// DefaultDirMode is owner-only, matching what the daemon creates for
	// the storage root and every peer directory.
	DefaultDirMode os.FileMode = 0o700

	// DefaultFileMode applies to written files.
	DefaultFileMode os.FileMode = 0o644
)

// FSContentStore stores content under a base directory on the local
// filesystem.
//
// Thread Safety:
// Safe for concurrent use. Concurrent writes to the same path are last
// writer wins.
type FSContentStore struct {
	basePath string
	dirMode  os.FileMode
	fileMode os.FileMode
}

// Config configures an FSContentStore.
type Config struct {
	// Path is the storage root. It is created if missing.
	Path string `mapstructure:"path"`

	// DirMode is applied to the root and peer directories (default 0700).
	DirMode os.FileMode `mapstructure:"dir_mode"`

	// FileMode is applied to written files (default 0644).
	FileMode os.FileMode `mapstructure:"file_mode"`
}

// NewFSContentStore creates the storage root and returns a store over it.
func NewFSContentStore(ctx context.Context, cfg Config) (*FSContentStore, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if cfg.Path == "" {
		return nil, fmt.Errorf("filesystem content store: path is required")
	}
	if cfg.DirMode == 0 {
		cfg.DirMode = DefaultDirMode
	}
	if cfg.FileMode == 0 {
		cfg.FileMode = DefaultFileMode
	}

	base, err := filepath.Abs(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("resolve storage path: %w", err)
	}

	if err := os.MkdirAll(base, cfg.DirMode); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	if err := os.MkdirAll(filepath.Join(base, StagingDirName), cfg.DirMode); err != nil {
		return nil, fmt.Errorf("failed to create staging directory: %w", err)
	}

	return &FSContentStore{
		basePath: base,
		dirMode:  cfg.DirMode,
		fileMode: cfg.FileMode,
	}, nil
}

// BasePath returns the absolute storage root.
func (s *FSContentStore) BasePath() string {
	return s.basePath
}

// StagingDir returns the absolute directory holding in-flight writes.
func (s *FSContentStore) StagingDir() string {
	return filepath.Join(s.basePath, StagingDirName)
}

// PrepareSession creates <base>/<peer> and returns its absolute path.
func (s *FSContentStore) PrepareSession(ctx context.Context, peer string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := content.ValidatePeer(peer); err != nil {
		return "", err
	}
	if peer == StagingDirName {
		return "", fmt.Errorf("%w: %q is reserved", content.ErrInvalidPeer, peer)
	}

	dir := filepath.Join(s.basePath, peer)
	if err := os.MkdirAll(dir, s.dirMode); err != nil {
		return "", fmt.Errorf("failed to create peer directory %s: %w", dir, err)
	}
	return filepath.ToSlash(dir), nil
}

// WriteContent writes data to a temporary file in the staging directory and
// renames it into place.
func (s *FSContentStore) WriteContent(ctx context.Context, path string, data []byte) error {
	// ========================================================================
	// Step 1: Resolve and check the destination
	// ========================================================================

	if err := ctx.Err(); err != nil {
		return err
	}

	target, err := s.resolve(path)
	if err != nil {
		return err
	}
	if s.inStaging(target) {
		return fmt.Errorf("%w: %q is inside the staging directory", content.ErrInvalidPath, path)
	}

	dir := filepath.Dir(target)
	if err := os.MkdirAll(dir, s.dirMode); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	// ========================================================================
	// Step 2: Write a temporary file in the staging directory
	// ========================================================================

	if err := os.MkdirAll(s.StagingDir(), s.dirMode); err != nil {
		return fmt.Errorf("failed to create staging directory: %w", err)
	}
	tmp, err := os.CreateTemp(s.StagingDir(), partialPrefix+"*"+partialSuffix)
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("failed to write %s: %w", target, err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("failed to close %s: %w", target, err)
	}
	if err := os.Chmod(tmpName, s.fileMode); err != nil {
		cleanup()
		return fmt.Errorf("failed to set mode on %s: %w", target, err)
	}

	// ========================================================================
	// Step 3: Move it into place
	// ========================================================================

	if err := ctx.Err(); err != nil {
		cleanup()
		return err
	}
	if err := os.Rename(tmpName, target); err != nil {
		cleanup()
		return fmt.Errorf("failed to move %s into place: %w", target, err)
	}

	return nil
}

// ReadContent returns the content at path.
func (s *FSContentStore) ReadContent(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	target, err := s.resolve(path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(target)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", path, content.ErrContentNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", target, err)
	}
	return data, nil
}

// ContentExists reports whether a regular file exists at path.
func (s *FSContentStore) ContentExists(ctx context.Context, path string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	target, err := s.resolve(path)
	if err != nil {
		return false, err
	}

	info, err := os.Stat(target)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to stat %s: %w", target, err)
	}
	return info.Mode().IsRegular(), nil
}

// ListPartial walks the staging directory for temporary files left by
// interrupted writes.
func (s *FSContentStore) ListPartial(ctx context.Context, olderThan time.Time) ([]string, error) {
	var partial []string

	staging := s.StagingDir()
	err := filepath.WalkDir(staging, func(path string, d fs.DirEntry, err error) error {
		if errors.Is(err, fs.ErrNotExist) && path == staging {
			return fs.SkipDir
		}
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() || !s.isPartial(path) {
			return nil
		}

		info, err := d.Info()
		if errors.Is(err, fs.ErrNotExist) {
			// Renamed into place while walking.
			return nil
		}
		if err != nil {
			return err
		}
		if info.ModTime().Before(olderThan) {
			partial = append(partial, filepath.ToSlash(path))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", staging, err)
	}
	return partial, nil
}

// DeleteBatch removes partial files. Paths outside the staging directory
// are refused.
func (s *FSContentStore) DeleteBatch(ctx context.Context, paths []string) (map[string]error, error) {
	failures := make(map[string]error)

	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return failures, err
		}

		target, err := s.resolve(path)
		if err != nil {
			failures[path] = err
			continue
		}
		if !s.isPartial(target) {
			failures[path] = fmt.Errorf("%w: %q is not a partial file", content.ErrInvalidPath, path)
			continue
		}
		if err := os.Remove(target); err != nil && !errors.Is(err, os.ErrNotExist) {
			failures[path] = err
		}
	}
	return failures, nil
}

func (s *FSContentStore) inStaging(path string) bool {
	rel, err := filepath.Rel(s.StagingDir(), path)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func (s *FSContentStore) isPartial(path string) bool {
	if filepath.Dir(path) != s.StagingDir() {
		return false
	}
	name := filepath.Base(path)
	return strings.HasPrefix(name, partialPrefix) && strings.HasSuffix(name, partialSuffix)
}

func (s *FSContentStore) Close() error {
	return nil
}

// resolve maps path to an absolute filesystem path below the base.
// Relative paths are taken relative to the base.
func (s *FSContentStore) resolve(path string) (string, error) {
	p := filepath.FromSlash(path)
	if !filepath.IsAbs(p) {
		key, err := content.CleanKey(path)
		if err != nil {
			return "", err
		}
		p = filepath.Join(s.basePath, filepath.FromSlash(key))
	}
	p = filepath.Clean(p)

	rel, err := filepath.Rel(s.basePath, p)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q is outside %s", content.ErrInvalidPath, path, s.basePath)
	}
	return p, nil
}
