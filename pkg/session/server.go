package session

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/marmos91/dittodrop/internal/logger"
	"github.com/marmos91/dittodrop/internal/protocol/wire"
	"github.com/marmos91/dittodrop/pkg/file"
	"github.com/marmos91/dittodrop/pkg/metrics"
	"github.com/marmos91/dittodrop/pkg/store/content"
	"github.com/marmos91/dittodrop/pkg/store/journal"
)

// DefaultMaxFiles caps the announced count when ServerConfig.MaxFiles is zero.
const DefaultMaxFiles = 65536

// errAborted marks announced files that were never reached because an
// earlier file failed.
var errAborted = errors.New("session aborted before file was received")

// ServerConfig configures the receiving side.
type ServerConfig struct {
	// MaxFiles is the largest count a peer may announce.
	MaxFiles uint64

	// IdleTimeout, when positive, bounds the whole session with a
	// connection deadline.
	IdleTimeout time.Duration
}

// ServerDeps are the collaborators a Server writes to. Only Store is
// required.
type ServerDeps struct {
	Store   content.ContentStore
	Journal journal.Journal
	Metrics metrics.TransferMetrics
	Logger  *logger.Logger
}

// Summary describes a finished session.
type Summary struct {
	SessionID string
	Peer      string
	Announced uint64
	Received  int
	Bytes     uint64
	Duration  time.Duration
}

// Server receives one batch of files from an accepted connection.
//
// A Server is not safe for concurrent use; Close may be called from any
// goroutine to abort a running session.
type Server struct {
	id     string
	conn   net.Conn
	peer   string
	config ServerConfig

	store   content.ContentStore
	journal journal.Journal
	metrics metrics.TransferMetrics
	log     *logger.Logger

	state    ServerState
	destDir  string
	count    uint64
	records  []*file.Record
	received int
	bytes    uint64

	closeOnce sync.Once
	closeErr  error
}

// NewServer wraps an accepted connection. The server owns conn.
func NewServer(conn net.Conn, config ServerConfig, deps ServerDeps) (*Server, error) {
	if conn == nil {
		return nil, fmt.Errorf("connection is required")
	}
	if deps.Store == nil {
		return nil, fmt.Errorf("content store is required")
	}
	if config.MaxFiles == 0 {
		config.MaxFiles = DefaultMaxFiles
	}
	if deps.Journal == nil {
		deps.Journal = journal.Noop{}
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.NewNoopTransferMetrics()
	}
	if deps.Logger == nil {
		deps.Logger = logger.Discard()
	}

	id := uuid.NewString()
	return &Server{
		id:      id,
		conn:    conn,
		peer:    peerHost(conn.RemoteAddr()),
		config:  config,
		store:   deps.Store,
		journal: deps.Journal,
		metrics: deps.Metrics,
		log:     deps.Logger.With("session", id),
		state:   ServerAccepted,
	}, nil
}

func (s *Server) ID() string         { return s.id }
func (s *Server) Peer() string       { return s.peer }
func (s *Server) State() ServerState { return s.state }
func (s *Server) DestDir() string    { return s.destDir }
func (s *Server) Count() uint64      { return s.count }
func (s *Server) Received() int      { return s.received }

// Records returns the announced records. Their buffers are released once
// written, so only paths and sizes are meaningful.
func (s *Server) Records() []*file.Record { return s.records }

// PrepareStorage creates the peer's directory in the content store. It is
// idempotent and is also run by ReceiveMetadata when needed.
func (s *Server) PrepareStorage(ctx context.Context) error {
	if s.state != ServerAccepted && s.state != ServerCountKnown {
		return stateError("prepare storage", s.state)
	}

	dir, err := s.store.PrepareSession(ctx, s.peer)
	if err != nil {
		s.state = ServerFailed
		return fmt.Errorf("prepare storage for %s: %w", s.peer, err)
	}
	s.destDir = dir
	return nil
}

// ReceiveCount reads the number of files the peer will send.
func (s *Server) ReceiveCount(ctx context.Context) (uint64, error) {
	if s.state != ServerAccepted {
		return 0, stateError("receive count", s.state)
	}

	stop := bindContext(ctx, s.conn)
	defer stop()

	count, err := wire.ReadCount(s.conn)
	if err != nil {
		s.state = ServerFailed
		return 0, contextError(ctx, err)
	}
	if count > s.config.MaxFiles {
		s.state = ServerFailed
		return 0, &wire.EncodingError{Field: "count", Value: count, Err: wire.ErrTooManyFiles}
	}

	s.count = count
	s.state = ServerCountKnown
	s.log.Debug("Peer %s announced %d file(s)", s.peer, count)
	return count, nil
}

// ReceiveMetadata reads exactly Count metadata records and returns one
// unpopulated record per file, destined for the peer's directory.
func (s *Server) ReceiveMetadata(ctx context.Context) ([]*file.Record, error) {
	if s.state != ServerCountKnown {
		return nil, stateError("receive metadata", s.state)
	}
	if s.destDir == "" {
		if err := s.PrepareStorage(ctx); err != nil {
			return nil, err
		}
	}

	stop := bindContext(ctx, s.conn)
	defer stop()

	records := make([]*file.Record, 0, min(s.count, 1024))
	for i := uint64(0); i < s.count; i++ {
		meta, err := wire.ReadMetadata(s.conn)
		if err != nil {
			s.state = ServerFailed
			return nil, contextError(ctx, fmt.Errorf("metadata %d: %w", i, err))
		}

		rec, err := file.FromWire(meta, s.destDir)
		if err != nil {
			s.state = ServerFailed
			return nil, fmt.Errorf("metadata %d: %w", i, err)
		}
		records = append(records, rec)
	}

	s.records = records
	s.state = ServerReceiving
	return records, nil
}

// ReceivePayloads reads each announced file's bytes in order and writes the
// file to the store. A file is only written once all its bytes arrived. On
// failure the failed file and every file after it are journaled as failed.
func (s *Server) ReceivePayloads(ctx context.Context) error {
	if s.state != ServerReceiving {
		return stateError("receive payloads", s.state)
	}

	stop := bindContext(ctx, s.conn)
	defer stop()

	for i, rec := range s.records {
		if err := s.receivePayload(ctx, rec); err != nil {
			err = contextError(ctx, fmt.Errorf("file %d (%s): %w", i, rec.Name(), err))
			s.state = ServerFailed
			s.recordFailure(ctx, rec, err)
			for _, rest := range s.records[i+1:] {
				s.recordFailure(ctx, rest, errAborted)
			}
			return err
		}

		s.received++
		s.bytes += rec.Size()
		s.metrics.RecordFileReceived(rec.Size())
		s.recordEntry(ctx, rec, journal.StatusComplete, nil)
		s.log.Debug("Received %s (%s)", rec.Path(), humanize.IBytes(rec.Size()))
	}

	s.state = ServerDone
	return nil
}

func (s *Server) receivePayload(ctx context.Context, rec *file.Record) error {
	if err := rec.Alloc(); err != nil {
		return err
	}
	defer rec.Reset()

	if err := wire.RecvAll(s.conn, rec.Bytes()); err != nil {
		return err
	}
	return rec.Materialize(ctx, s.store)
}

// Run drives the whole receive sequence and reports what arrived.
func (s *Server) Run(ctx context.Context) (summary Summary, err error) {
	start := time.Now()
	defer func() {
		summary = s.summary(time.Since(start))
		s.metrics.RecordSession(summary.Duration, int(s.count), err)
	}()

	if s.config.IdleTimeout > 0 {
		if err := s.conn.SetDeadline(start.Add(s.config.IdleTimeout)); err != nil {
			s.log.Warn("Failed to set deadline for %s: %v", s.peer, err)
		}
	}

	s.log.Info("Session started with %s", s.peer)

	if err := s.PrepareStorage(ctx); err != nil {
		return Summary{}, err
	}
	if _, err := s.ReceiveCount(ctx); err != nil {
		return Summary{}, err
	}
	if _, err := s.ReceiveMetadata(ctx); err != nil {
		return Summary{}, err
	}
	if err := s.ReceivePayloads(ctx); err != nil {
		return Summary{}, err
	}

	s.log.Info("Received %d file(s), %s from %s in %v",
		s.received, humanize.IBytes(s.bytes), s.peer, time.Since(start).Round(time.Millisecond))
	return Summary{}, nil
}

func (s *Server) summary(d time.Duration) Summary {
	return Summary{
		SessionID: s.id,
		Peer:      s.peer,
		Announced: s.count,
		Received:  s.received,
		Bytes:     s.bytes,
		Duration:  d,
	}
}

func (s *Server) recordFailure(ctx context.Context, rec *file.Record, cause error) {
	s.metrics.RecordFileFailed()
	s.recordEntry(ctx, rec, journal.StatusFailed, cause)
	s.log.Warn("File %s from %s not stored: %v", rec.Name(), s.peer, cause)
}

// recordEntry logs journal failures instead of returning them.
func (s *Server) recordEntry(ctx context.Context, rec *file.Record, status journal.Status, cause error) {
	entry := journal.Entry{
		SessionID: s.id,
		Peer:      s.peer,
		Name:      rec.Name(),
		Path:      rec.Path(),
		Size:      rec.Size(),
		Status:    status,
	}
	if cause != nil {
		entry.Error = cause.Error()
	}

	if err := s.journal.Record(context.WithoutCancel(ctx), entry); err != nil {
		s.log.Warn("Failed to journal %s: %v", rec.Name(), err)
	}
}

// Close closes the connection. Only the first call has any effect.
func (s *Server) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.conn.Close()
	})
	return s.closeErr
}
