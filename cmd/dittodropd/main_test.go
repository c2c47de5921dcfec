package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/marmos91/dittodrop/internal/logger"
	"github.com/marmos91/dittodrop/pkg/config"
	"github.com/marmos91/dittodrop/pkg/store/journal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_UnknownCommand(t *testing.T) {
	err := run([]string{"bogus"}, &bytes.Buffer{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bogus")
}

func TestRun_Help(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, run([]string{"help"}, &out))
	assert.Contains(t, out.String(), "journal")
}

func TestInitThenConfig(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "config.yaml")

	var out bytes.Buffer
	require.NoError(t, run([]string{"init", "--config", path}, &out))
	assert.Contains(t, out.String(), path)

	err := run([]string{"init", "--config", path}, &out)
	require.Error(t, err, "existing file needs --force")
	require.NoError(t, run([]string{"init", "--config", path, "--force"}, &out))

	out.Reset()
	require.NoError(t, run([]string{"config", "--config", path}, &out))
	assert.Contains(t, out.String(), "port: 6942")
	assert.Contains(t, out.String(), "type: filesystem")
}

func TestLoadStartConfig_StorageFlags(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, err := loadStartConfig([]string{"-d", "/srv/by-dir", "-p", "7000"})
	require.NoError(t, err)
	assert.Equal(t, "/srv/by-dir", cfg.Storage.Filesystem["path"])
	assert.Equal(t, 7000, cfg.Daemon.Port)

	cfg, err = loadStartConfig([]string{"--dir", "/srv/by-dir", "--storage", "/srv/by-storage"})
	require.NoError(t, err)
	assert.Equal(t, "/srv/by-storage", cfg.Storage.Filesystem["path"])

	cfg, err = loadStartConfig(nil)
	require.NoError(t, err)
	assert.Equal(t, config.DefaultStoragePath, cfg.Storage.Filesystem["path"])
}

func TestJournal_RequiresPersistentJournal(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	err := run([]string{"journal"}, &bytes.Buffer{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not persistent")
}

func TestJournal_ListsEntries(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	dir := t.TempDir()
	journalPath := filepath.Join(dir, "journal")
	configPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(
		"journal:\n  type: badger\n  badger:\n    path: "+journalPath+"\n"), 0o644))

	ctx := context.Background()
	j, err := config.CreateJournal(ctx, &config.JournalConfig{
		Type:   "badger",
		Badger: map[string]any{"path": journalPath},
	})
	require.NoError(t, err)
	require.NoError(t, j.Record(ctx, journal.Entry{Peer: "10.0.0.1", Name: "a.txt", Size: 2048, Status: journal.StatusComplete}))
	require.NoError(t, j.Record(ctx, journal.Entry{Peer: "10.0.0.2", Name: "b.bin", Size: 3, Status: journal.StatusFailed, Error: "peer closed"}))
	require.NoError(t, j.Close())

	var out bytes.Buffer
	require.NoError(t, run([]string{"journal", "--config", configPath}, &out))
	assert.Contains(t, out.String(), "a.txt")
	assert.Contains(t, out.String(), "2.0 KiB")
	assert.Contains(t, out.String(), "peer closed")

	out.Reset()
	require.NoError(t, run([]string{"journal", "--config", configPath, "10.0.0.1"}, &out))
	assert.Contains(t, out.String(), "a.txt")
	assert.NotContains(t, out.String(), "b.bin")
}

func TestServe_StopsOnCancel(t *testing.T) {
	cfg := config.GetDefaultConfig()
	cfg.Storage.Type = "memory"
	cfg.Daemon.Port = 0

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- serve(ctx, cfg, logger.Discard()) }()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not return after cancel")
	}
}

func TestServe_WithGarbageCollection(t *testing.T) {
	cfg := config.GetDefaultConfig()
	cfg.Storage.Filesystem["path"] = t.TempDir()
	cfg.Daemon.Port = 0
	cfg.GC.Enabled = true

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- serve(ctx, cfg, logger.Discard()) }()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("serve did not return after cancel")
	}
}
