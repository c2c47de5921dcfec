package e2e

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/marmos91/dittodrop/internal/logger"
	"github.com/marmos91/dittodrop/pkg/adapter/transfer"
	"github.com/marmos91/dittodrop/pkg/file"
	"github.com/marmos91/dittodrop/pkg/server"
	"github.com/marmos91/dittodrop/pkg/session"
	"github.com/marmos91/dittodrop/pkg/store/content"
	"github.com/marmos91/dittodrop/pkg/store/journal"
)

// peer is the storage directory of every file sent from a test client.
const peer = "127.0.0.1"

// TestContext provides a complete testing environment with:
// - Running dittodrop daemon on a loopback port
// - Source directory for files to send
// - Cleanup mechanisms
type TestContext struct {
	T            *testing.T
	Config       *TestConfig
	Server       *server.DropServer
	Adapter      *transfer.TransferAdapter
	ContentStore content.ContentStore
	Journal      journal.Journal
	Port         int
	SourceDir    string
	ctx          context.Context
	cancel       context.CancelFunc
	wg           sync.WaitGroup
	tempDirs     []string
}

// NewTestContext starts a daemon with the stores named by config.
func NewTestContext(t *testing.T, config *TestConfig) *TestContext {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())

	tc := &TestContext{
		T:      t,
		Config: config,
		ctx:    ctx,
		cancel: cancel,
	}
	tc.SourceDir = tc.CreateTempDir("dittodrop-src-*")

	tc.setupStores()
	tc.startServer()

	return tc
}

func (tc *TestContext) setupStores() {
	tc.T.Helper()

	var err error
	tc.ContentStore, err = tc.Config.CreateContentStore(tc.ctx, tc)
	if err != nil {
		tc.T.Fatalf("Failed to create content store: %v", err)
	}

	tc.Journal, err = tc.Config.CreateJournal(tc.ctx, tc)
	if err != nil {
		tc.T.Fatalf("Failed to create journal: %v", err)
	}
}

func (tc *TestContext) startServer() {
	tc.T.Helper()

	adapter, err := transfer.New(transfer.TransferConfig{
		Port:            0,
		ShutdownTimeout: 2 * time.Second,
	}, nil, logger.Discard())
	if err != nil {
		tc.T.Fatalf("Failed to create transfer adapter: %v", err)
	}
	if err := adapter.Listen(); err != nil {
		tc.T.Fatalf("Failed to listen: %v", err)
	}
	tc.Adapter = adapter
	tc.Port = adapter.Addr().(*net.TCPAddr).Port

	tc.Server = server.New(tc.ContentStore, tc.Journal)
	if err := tc.Server.AddAdapter(adapter); err != nil {
		tc.T.Fatalf("Failed to add adapter: %v", err)
	}

	tc.wg.Add(1)
	go func() {
		defer tc.wg.Done()
		if err := tc.Server.Serve(tc.ctx); err != nil && err != context.Canceled {
			tc.T.Logf("Server error: %v", err)
		}
	}()
}

// Cleanup stops the daemon and removes temporary directories.
func (tc *TestContext) Cleanup() {
	tc.cancel()

	done := make(chan struct{})
	go func() {
		tc.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		tc.T.Logf("Server stop timeout")
	}

	if tc.Journal != nil {
		_ = tc.Journal.Close()
	}
	if tc.ContentStore != nil {
		_ = tc.ContentStore.Close()
	}
	for _, dir := range tc.tempDirs {
		_ = os.RemoveAll(dir)
	}
}

// CreateTempDir creates a directory removed by Cleanup.
func (tc *TestContext) CreateTempDir(prefix string) string {
	tc.T.Helper()
	dir, err := os.MkdirTemp("", prefix)
	if err != nil {
		tc.T.Fatalf("Failed to create temp dir: %v", err)
	}
	tc.tempDirs = append(tc.tempDirs, dir)
	return dir
}

func (tc *TestContext) GetConfig() *TestConfig {
	return tc.Config
}

// WriteSource writes a file to be sent and returns its path.
func (tc *TestContext) WriteSource(name string, data []byte) string {
	tc.T.Helper()
	path := filepath.Join(tc.SourceDir, name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		tc.T.Fatalf("Failed to write source file %s: %v", name, err)
	}
	return path
}

// Send pushes paths to the daemon in one session.
func (tc *TestContext) Send(paths ...string) error {
	tc.T.Helper()

	records := make([]*file.Record, 0, len(paths))
	for _, p := range paths {
		rec, err := file.FromPath(p)
		if err != nil {
			return err
		}
		records = append(records, rec)
	}

	ctx, cancel := context.WithTimeout(tc.ctx, 30*time.Second)
	defer cancel()

	client := session.NewClient(session.ClientConfig{}, logger.Discard())
	defer client.Close()

	return client.Push(ctx, "127.0.0.1", uint16(tc.Port), records)
}

// ReadReceived returns the stored content of name, once the daemon has
// written it.
func (tc *TestContext) ReadReceived(name string) ([]byte, error) {
	tc.T.Helper()

	dir, err := tc.ContentStore.PrepareSession(tc.ctx, peer)
	if err != nil {
		return nil, err
	}
	return tc.ContentStore.ReadContent(tc.ctx, file.JoinPath(dir, name))
}

// WaitForEntries polls the journal until it holds n entries for the test
// peer. Sessions finish asynchronously after the client returns.
func (tc *TestContext) WaitForEntries(n int) []journal.Entry {
	tc.T.Helper()

	deadline := time.Now().Add(10 * time.Second)
	for {
		entries, err := tc.Journal.List(tc.ctx, peer)
		if err != nil {
			tc.T.Fatalf("Failed to list journal: %v", err)
		}
		if len(entries) >= n || time.Now().After(deadline) {
			return entries
		}
		time.Sleep(20 * time.Millisecond)
	}
}

// AssertReceived asserts that name was stored with the expected content.
func (tc *TestContext) AssertReceived(name string, expected []byte) {
	tc.T.Helper()
	actual, err := tc.ReadReceived(name)
	if err != nil {
		tc.T.Fatalf("Failed to read received file %s: %v", name, err)
	}
	if string(actual) != string(expected) {
		tc.T.Fatalf("Content mismatch for %s: expected %d bytes, got %d", name, len(expected), len(actual))
	}
}

// AssertNotReceived asserts that nothing was stored under name.
func (tc *TestContext) AssertNotReceived(name string) {
	tc.T.Helper()
	dir, err := tc.ContentStore.PrepareSession(tc.ctx, peer)
	if err != nil {
		tc.T.Fatalf("Failed to resolve peer dir: %v", err)
	}
	exists, err := tc.ContentStore.ContentExists(tc.ctx, file.JoinPath(dir, name))
	if err != nil {
		tc.T.Fatalf("Failed to check %s: %v", name, err)
	}
	if exists {
		tc.T.Fatalf("File stored but should not be: %s", name)
	}
}
