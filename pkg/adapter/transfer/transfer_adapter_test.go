package transfer

import (
	"context"
	"errors"
	"net"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/marmos91/dittodrop/internal/logger"
	"github.com/marmos91/dittodrop/pkg/file"
	"github.com/marmos91/dittodrop/pkg/metrics"
	"github.com/marmos91/dittodrop/pkg/session"
	memstore "github.com/marmos91/dittodrop/pkg/store/content/memory"
	"github.com/marmos91/dittodrop/pkg/store/journal"
	memjournal "github.com/marmos91/dittodrop/pkg/store/journal/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingMetrics struct {
	metrics.TransferMetrics
	accepted  atomic.Int32
	throttled atomic.Int32
	sessions  atomic.Int32
}

func newCountingMetrics() *countingMetrics {
	return &countingMetrics{TransferMetrics: metrics.NewNoopTransferMetrics()}
}

func (m *countingMetrics) RecordConnectionAccepted()  { m.accepted.Add(1) }
func (m *countingMetrics) RecordConnectionThrottled() { m.throttled.Add(1) }
func (m *countingMetrics) RecordSession(time.Duration, int, error) {
	m.sessions.Add(1)
}

type fixture struct {
	adapter *TransferAdapter
	store   *memstore.MemoryContentStore
	journal *memjournal.MemoryJournal
	metrics *countingMetrics
	port    uint16
	cancel  context.CancelFunc
	done    chan error

	stopOnce sync.Once
	stopErr  error
	timedOut bool
}

// closeCountingListener hands out connections that count their Close calls.
type closeCountingListener struct {
	net.Listener
	closes atomic.Int32
}

func (l *closeCountingListener) Accept() (net.Conn, error) {
	conn, err := l.Listener.Accept()
	if err != nil {
		return nil, err
	}
	return &closeCountingConn{Conn: conn, closes: &l.closes}, nil
}

type closeCountingConn struct {
	net.Conn
	closes *atomic.Int32
}

func (c *closeCountingConn) Close() error {
	c.closes.Add(1)
	return c.Conn.Close()
}

func startAdapter(t *testing.T, cfg TransferConfig, wrap ...func(net.Listener) net.Listener) *fixture {
	t.Helper()

	store, err := memstore.NewMemoryContentStore(context.Background())
	require.NoError(t, err)

	m := newCountingMetrics()
	a, err := New(cfg, m, logger.Discard())
	require.NoError(t, err)

	j := memjournal.NewMemoryJournal()
	a.SetStores(store, j)
	require.NoError(t, a.Listen())
	for _, w := range wrap {
		a.listener = w(a.listener)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Serve(ctx) }()

	f := &fixture{
		adapter: a,
		store:   store,
		journal: j,
		metrics: m,
		port:    uint16(a.Addr().(*net.TCPAddr).Port),
		cancel:  cancel,
		done:    done,
	}
	t.Cleanup(func() { _ = f.stop(t) })
	return f
}

func (f *fixture) stop(t *testing.T) error {
	t.Helper()
	f.stopOnce.Do(func() {
		f.cancel()
		select {
		case f.stopErr = <-f.done:
		case <-time.After(5 * time.Second):
			f.timedOut = true
		}
	})
	if f.timedOut {
		t.Fatal("Serve did not return after cancel")
	}
	return f.stopErr
}

func push(t *testing.T, port uint16, files map[string]string) {
	t.Helper()
	dir := t.TempDir()

	var records []*file.Record
	for name, data := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(data), 0o644))
		rec, err := file.FromPath(path)
		require.NoError(t, err)
		records = append(records, rec)
	}

	client := session.NewClient(session.ClientConfig{DialTimeout: time.Second}, nil)
	defer client.Close()
	require.NoError(t, client.Push(context.Background(), "127.0.0.1", port, records))
}

func journalCount(j journal.Journal) func() int {
	return func() int {
		entries, err := j.List(context.Background(), "")
		if err != nil {
			return -1
		}
		return len(entries)
	}
}

func TestTransferAdapter_ReceivesSequentialSessions(t *testing.T) {
	f := startAdapter(t, TransferConfig{})
	count := journalCount(f.journal)

	push(t, f.port, map[string]string{"a.txt": "hello"})
	require.Eventually(t, func() bool { return count() == 1 }, 5*time.Second, 10*time.Millisecond)

	push(t, f.port, map[string]string{"b.bin": "xyz", "c.md": "# c"})
	require.Eventually(t, func() bool { return count() == 3 }, 5*time.Second, 10*time.Millisecond)

	data, err := f.store.ReadContent(context.Background(), "127.0.0.1/a.txt")
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
	assert.Equal(t, []string{"127.0.0.1/a.txt", "127.0.0.1/b.bin", "127.0.0.1/c.md"}, f.store.Keys("127.0.0.1/"))

	assert.NoError(t, f.stop(t))
	assert.Equal(t, int32(2), f.metrics.accepted.Load())
	assert.Equal(t, int32(2), f.metrics.sessions.Load())
}

func TestTransferAdapter_ClosesEachConnectionOnce(t *testing.T) {
	counting := &closeCountingListener{}
	f := startAdapter(t, TransferConfig{}, func(ln net.Listener) net.Listener {
		counting.Listener = ln
		return counting
	})

	push(t, f.port, map[string]string{"once.txt": "closed once"})
	require.Eventually(t, func() bool { return counting.closes.Load() >= 1 }, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, f.stop(t))
	assert.Equal(t, int32(1), counting.closes.Load())
}

func TestTransferAdapter_FailedSessionDoesNotStopDaemon(t *testing.T) {
	f := startAdapter(t, TransferConfig{})

	conn, err := net.Dial("tcp4", net.JoinHostPort("127.0.0.1", itoa(f.port)))
	require.NoError(t, err)
	_, err = conn.Write([]byte{0, 0, 0})
	require.NoError(t, err)
	require.NoError(t, conn.Close())

	push(t, f.port, map[string]string{"after.txt": "still serving"})
	require.Eventually(t, func() bool {
		ok, _ := f.store.ContentExists(context.Background(), "127.0.0.1/after.txt")
		return ok
	}, 5*time.Second, 10*time.Millisecond)

	assert.NoError(t, f.stop(t))
}

func TestTransferAdapter_ShutdownForceClosesStalledSession(t *testing.T) {
	f := startAdapter(t, TransferConfig{ShutdownTimeout: 100 * time.Millisecond})

	conn, err := net.Dial("tcp4", net.JoinHostPort("127.0.0.1", itoa(f.port)))
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return f.metrics.accepted.Load() == 1 }, 5*time.Second, 10*time.Millisecond)

	start := time.Now()
	err = f.stop(t)
	assert.Error(t, err, "a stalled session must be force-closed")
	assert.Less(t, time.Since(start), 3*time.Second)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, readErr := conn.Read(make([]byte, 1))
	assert.Error(t, readErr, "server side of the connection is closed")
}

func TestTransferAdapter_StopWithoutSessions(t *testing.T) {
	f := startAdapter(t, TransferConfig{})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, f.adapter.Stop(ctx))
	assert.NoError(t, f.stop(t))

	assert.Error(t, f.adapter.Listen(), "a stopped adapter cannot listen again")
}

func TestTransferAdapter_AcceptThrottling(t *testing.T) {
	f := startAdapter(t, TransferConfig{AcceptRate: 1, AcceptBurst: 1})

	push(t, f.port, map[string]string{"one": "1"})
	push(t, f.port, map[string]string{"two": "2"})

	require.Eventually(t, func() bool { return f.metrics.sessions.Load() == 2 }, 5*time.Second, 10*time.Millisecond)
	assert.GreaterOrEqual(t, f.metrics.throttled.Load(), int32(1))
}

func TestTransferAdapter_ServeRequiresStore(t *testing.T) {
	a, err := New(TransferConfig{}, nil, logger.Discard())
	require.NoError(t, err)

	assert.Error(t, a.Serve(context.Background()))
}

func TestNew_InvalidConfig(t *testing.T) {
	_, err := New(TransferConfig{Port: 70000}, nil, logger.Discard())
	assert.Error(t, err)

	_, err = New(TransferConfig{AcceptRate: -1}, nil, logger.Discard())
	assert.Error(t, err)
}

func TestTransferConfig_Defaults(t *testing.T) {
	a, err := New(TransferConfig{Port: 6942}, nil, logger.Discard())
	require.NoError(t, err)

	assert.Equal(t, 6942, a.Port())
	assert.Equal(t, "dittodrop", a.Protocol())
	assert.Equal(t, DefaultBacklog, a.config.Backlog)
	assert.Equal(t, uint64(session.DefaultMaxFiles), a.config.MaxFiles)
	assert.Equal(t, 30*time.Second, a.config.ShutdownTimeout)
}

func TestListen_PortInUse(t *testing.T) {
	first, err := Listen(0, 5)
	require.NoError(t, err)
	defer first.Close()

	port := first.Addr().(*net.TCPAddr).Port
	_, err = Listen(port, 5)

	var listenErr *ListenError
	require.True(t, errors.As(err, &listenErr))
	assert.Equal(t, port, listenErr.Port)
}

func TestListen_InvalidPort(t *testing.T) {
	_, err := Listen(-1, 5)
	assert.Error(t, err)
}
