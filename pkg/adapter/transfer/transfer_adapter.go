// Package transfer is the TCP front end of the dittodrop daemon. It accepts
// one peer at a time and runs a receive session for it.
package transfer

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/marmos91/dittodrop/internal/logger"
	"github.com/marmos91/dittodrop/internal/ratelimiter"
	"github.com/marmos91/dittodrop/pkg/metrics"
	"github.com/marmos91/dittodrop/pkg/session"
	"github.com/marmos91/dittodrop/pkg/store/content"
	"github.com/marmos91/dittodrop/pkg/store/journal"
)

// TransferAdapter serves dittodrop sessions over TCP.
//
// Sessions are strictly sequential: the next connection is only accepted
// after the current session ends. Peers that connect meanwhile wait in the
// listen backlog.
//
// Shutdown:
// When the Serve context is cancelled (or Stop is called) the listener is
// closed, the active session gets ShutdownTimeout to finish, and is then
// cancelled and its connection force-closed.
type TransferAdapter struct {
	config  TransferConfig
	metrics metrics.TransferMetrics
	limiter *ratelimiter.RateLimiter
	log     *logger.Logger

	store   content.ContentStore
	journal journal.Journal

	listenMu sync.Mutex
	listener net.Listener

	shutdownOnce sync.Once
	shutdown     chan struct{}

	// sessionCtx is cancelled once the shutdown grace period expires.
	sessionCtx     context.Context
	cancelSessions context.CancelFunc

	activeSessions sync.WaitGroup
	activeMu       sync.Mutex
	activeConn     net.Conn
}

// TransferConfig holds the daemon's network settings.
type TransferConfig struct {
	// Port to listen on. 0 picks a free port.
	Port int `mapstructure:"port" yaml:"port" validate:"min=0,max=65535"`

	// Backlog is the listen(2) queue length. Defaults to 5.
	Backlog int `mapstructure:"backlog" yaml:"backlog" validate:"min=0"`

	// MaxFiles is the largest count a peer may announce. Defaults to 65536.
	MaxFiles uint64 `mapstructure:"max_files" yaml:"max_files"`

	// IdleTimeout bounds a whole session. 0 disables it.
	IdleTimeout time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout" validate:"min=0"`

	// ShutdownTimeout is how long an active session may keep running after
	// shutdown starts. Defaults to 30s.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" validate:"min=0"`

	// AcceptRate limits accepted connections per second. 0 disables it.
	AcceptRate float64 `mapstructure:"accept_rate" yaml:"accept_rate" validate:"min=0"`

	// AcceptBurst is how many connections may be accepted back to back
	// before AcceptRate applies.
	AcceptBurst int `mapstructure:"accept_burst" yaml:"accept_burst" validate:"min=0"`
}

func (c *TransferConfig) applyDefaults() {
	if c.Backlog <= 0 {
		c.Backlog = DefaultBacklog
	}
	if c.MaxFiles == 0 {
		c.MaxFiles = session.DefaultMaxFiles
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = 30 * time.Second
	}
	if c.AcceptRate > 0 && c.AcceptBurst <= 0 {
		c.AcceptBurst = 1
	}
}

func (c *TransferConfig) validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d: must be 0-65535", c.Port)
	}
	if c.IdleTimeout < 0 {
		return fmt.Errorf("invalid IdleTimeout %v: must be >= 0", c.IdleTimeout)
	}
	if c.AcceptRate < 0 {
		return fmt.Errorf("invalid AcceptRate %v: must be >= 0", c.AcceptRate)
	}
	return nil
}

// New creates a stopped adapter. A nil transferMetrics records nothing and a
// nil log uses the process default logger.
func New(config TransferConfig, transferMetrics metrics.TransferMetrics, log *logger.Logger) (*TransferAdapter, error) {
	config.applyDefaults()
	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid transfer config: %w", err)
	}

	if transferMetrics == nil {
		transferMetrics = metrics.NewNoopTransferMetrics()
	}
	if log == nil {
		log = logger.Default()
	}

	sessionCtx, cancelSessions := context.WithCancel(context.Background())

	return &TransferAdapter{
		config:         config,
		metrics:        transferMetrics,
		limiter:        ratelimiter.New(config.AcceptRate, config.AcceptBurst),
		log:            log,
		journal:        journal.Noop{},
		shutdown:       make(chan struct{}),
		sessionCtx:     sessionCtx,
		cancelSessions: cancelSessions,
	}, nil
}

func (s *TransferAdapter) SetStores(store content.ContentStore, j journal.Journal) {
	s.store = store
	if j != nil {
		s.journal = j
	}
}

// Listen binds the listener without serving. Serve calls it when needed;
// calling it first lets the caller learn the bound address.
func (s *TransferAdapter) Listen() error {
	s.listenMu.Lock()
	defer s.listenMu.Unlock()

	if s.listener != nil {
		return nil
	}
	select {
	case <-s.shutdown:
		return fmt.Errorf("adapter is shut down")
	default:
	}

	ln, err := Listen(s.config.Port, s.config.Backlog)
	if err != nil {
		return fmt.Errorf("failed to create listener: %w", err)
	}
	s.listener = ln

	s.log.Info("Listening on port %d (backlog %d)", ln.Addr().(*net.TCPAddr).Port, s.config.Backlog)
	return nil
}

// Addr returns the bound address, or nil before Listen.
func (s *TransferAdapter) Addr() net.Addr {
	s.listenMu.Lock()
	defer s.listenMu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Serve accepts peers until ctx is cancelled. Each accepted peer is served
// to completion before the next Accept.
func (s *TransferAdapter) Serve(ctx context.Context) error {
	if s.store == nil {
		return fmt.Errorf("content store not set")
	}
	if err := s.Listen(); err != nil {
		return err
	}

	// acceptCtx only bounds waits in the accept loop, never a running session.
	acceptCtx, stopAccepting := context.WithCancel(context.Background())
	defer stopAccepting()

	go func() {
		select {
		case <-ctx.Done():
			s.log.Info("Shutdown signal received: %v", ctx.Err())
			s.initiateShutdown()
		case <-s.shutdown:
		}
		stopAccepting()
	}()

	for {
		if err := s.limiter.Throttle(acceptCtx, s.metrics.RecordConnectionThrottled); err != nil {
			return s.gracefulShutdown()
		}

		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.shutdown:
				return s.gracefulShutdown()
			default:
				s.log.Debug("Error accepting connection: %v", err)
				continue
			}
		}

		done := s.startSession(conn)

		select {
		case <-done:
		case <-s.shutdown:
			return s.gracefulShutdown()
		}
	}
}

func (s *TransferAdapter) startSession(conn net.Conn) <-chan struct{} {
	s.activeSessions.Add(1)
	s.setActive(conn)

	s.metrics.RecordConnectionAccepted()
	s.metrics.SetActiveConnections(1)
	s.log.Info("Accepted connection from %s", conn.RemoteAddr())

	done := make(chan struct{})
	go func() {
		defer func() {
			if r := recover(); r != nil {
				s.log.Error("Panic in session from %s: %v", conn.RemoteAddr(), r)
			}
			s.setActive(nil)
			s.metrics.SetActiveConnections(0)
			s.activeSessions.Done()
			close(done)
		}()

		s.serveSession(conn)
	}()
	return done
}

func (s *TransferAdapter) serveSession(conn net.Conn) {
	srv, err := session.NewServer(conn, session.ServerConfig{
		MaxFiles:    s.config.MaxFiles,
		IdleTimeout: s.config.IdleTimeout,
	}, session.ServerDeps{
		Store:   s.store,
		Journal: s.journal,
		Metrics: s.metrics,
		Logger:  s.log,
	})
	if err != nil {
		s.log.Error("Failed to start session for %s: %v", conn.RemoteAddr(), err)
		_ = conn.Close()
		return
	}
	// The session owns conn from here on.
	defer srv.Close()

	summary, err := srv.Run(s.sessionCtx)
	if err != nil {
		s.log.Error("Session %s with %s failed after %d/%d file(s): %v",
			summary.SessionID, summary.Peer, summary.Received, summary.Announced, err)
		return
	}
	s.log.Debug("Session %s with %s complete", summary.SessionID, summary.Peer)
}

func (s *TransferAdapter) setActive(conn net.Conn) {
	s.activeMu.Lock()
	s.activeConn = conn
	s.activeMu.Unlock()
}

// initiateShutdown stops the accept loop. Safe to call more than once.
func (s *TransferAdapter) initiateShutdown() {
	s.shutdownOnce.Do(func() {
		s.log.Debug("Shutdown initiated")
		close(s.shutdown)

		s.listenMu.Lock()
		if s.listener != nil {
			if err := s.listener.Close(); err != nil {
				s.log.Debug("Error closing listener: %v", err)
			}
		}
		s.listenMu.Unlock()
	})
}

// gracefulShutdown waits for the active session up to ShutdownTimeout, then
// cancels it and closes its connection.
func (s *TransferAdapter) gracefulShutdown() error {
	done := make(chan struct{})
	go func() {
		s.activeSessions.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.cancelSessions()
		s.log.Info("Graceful shutdown complete")
		return nil

	case <-time.After(s.config.ShutdownTimeout):
		s.log.Warn("Shutdown timeout exceeded after %v, closing active session", s.config.ShutdownTimeout)
		s.forceClose()
		<-done
		return fmt.Errorf("shutdown timeout: active session force-closed")
	}
}

func (s *TransferAdapter) forceClose() {
	s.cancelSessions()

	s.activeMu.Lock()
	defer s.activeMu.Unlock()
	if s.activeConn != nil {
		if err := s.activeConn.Close(); err != nil {
			s.log.Debug("Error force-closing connection to %s: %v", s.activeConn.RemoteAddr(), err)
		}
	}
}

// Stop initiates shutdown and waits for the active session to end or ctx to
// expire, whichever comes first.
func (s *TransferAdapter) Stop(ctx context.Context) error {
	s.initiateShutdown()

	done := make(chan struct{})
	go func() {
		s.activeSessions.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		s.forceClose()
		return fmt.Errorf("stop: %w", ctx.Err())
	}
}

func (s *TransferAdapter) Protocol() string { return "dittodrop" }

func (s *TransferAdapter) Port() int { return s.config.Port }
