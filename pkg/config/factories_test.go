package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	fsstore "github.com/marmos91/dittodrop/pkg/store/content/fs"
	memorystore "github.com/marmos91/dittodrop/pkg/store/content/memory"
	"github.com/marmos91/dittodrop/pkg/store/journal"
	badgerjournal "github.com/marmos91/dittodrop/pkg/store/journal/badger"
	memoryjournal "github.com/marmos91/dittodrop/pkg/store/journal/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateContentStore_Filesystem(t *testing.T) {
	root := filepath.Join(t.TempDir(), "drop")

	store, err := CreateContentStore(context.Background(), &StorageConfig{
		Type:       "filesystem",
		Filesystem: map[string]any{"path": root},
	})
	require.NoError(t, err)
	defer store.Close()

	fs, ok := store.(*fsstore.FSContentStore)
	require.True(t, ok)
	assert.Equal(t, root, fs.BasePath())

	info, err := os.Stat(root)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestCreateContentStore_FilesystemWeakTypes(t *testing.T) {
	root := filepath.Join(t.TempDir(), "drop")

	var cfg fsstore.Config
	require.NoError(t, decodeOptions(map[string]any{
		"path":      root,
		"dir_mode":  "0750",
		"file_mode": 0o600,
	}, &cfg))

	assert.Equal(t, root, cfg.Path)
	assert.Equal(t, os.FileMode(0o750), cfg.DirMode)
	assert.Equal(t, os.FileMode(0o600), cfg.FileMode)
}

func TestCreateContentStore_Memory(t *testing.T) {
	store, err := CreateContentStore(context.Background(), &StorageConfig{Type: "memory"})
	require.NoError(t, err)
	defer store.Close()

	_, ok := store.(*memorystore.MemoryContentStore)
	assert.True(t, ok)
}

func TestCreateContentStore_S3RequiresBucket(t *testing.T) {
	_, err := CreateContentStore(context.Background(), &StorageConfig{
		Type: "s3",
		S3:   map[string]any{"region": "eu-west-1"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bucket is required")
}

func TestCreateContentStore_Unknown(t *testing.T) {
	_, err := CreateContentStore(context.Background(), &StorageConfig{Type: "ftp"})
	require.Error(t, err)
}

func TestCreateJournal(t *testing.T) {
	ctx := context.Background()

	t.Run("none", func(t *testing.T) {
		j, err := CreateJournal(ctx, &JournalConfig{Type: "none"})
		require.NoError(t, err)
		assert.IsType(t, journal.Noop{}, j)
	})

	t.Run("memory", func(t *testing.T) {
		j, err := CreateJournal(ctx, &JournalConfig{Type: "memory"})
		require.NoError(t, err)
		defer j.Close()
		assert.IsType(t, &memoryjournal.MemoryJournal{}, j)
	})

	t.Run("badger", func(t *testing.T) {
		j, err := CreateJournal(ctx, &JournalConfig{
			Type:   "badger",
			Badger: map[string]any{"path": filepath.Join(t.TempDir(), "journal")},
		})
		require.NoError(t, err)
		defer j.Close()
		assert.IsType(t, &badgerjournal.BadgerJournal{}, j)
	})

	t.Run("badger without path", func(t *testing.T) {
		_, err := CreateJournal(ctx, &JournalConfig{Type: "badger", Badger: map[string]any{}})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "required")
	})

	t.Run("unknown", func(t *testing.T) {
		_, err := CreateJournal(ctx, &JournalConfig{Type: "sqlite"})
		require.Error(t, err)
	})
}
