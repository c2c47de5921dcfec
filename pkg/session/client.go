// Package session implements the two endpoints of a dittodrop transfer.
//
// A session moves one batch of files over one TCP connection:
//
//	client                                server
//	  |-- count N (uint64) ------------------>|
//	  |-- metadata 1..N (size, name) -------->|
//	  |-- payload 1..N (size raw bytes) ----->|
//
// There are no acknowledgments. Both sides are strict state machines; calling
// an operation out of order returns ErrInvalidState and leaves the session
// untouched. Any I/O failure moves the session to its failed state.
package session

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/marmos91/dittodrop/internal/logger"
	"github.com/marmos91/dittodrop/internal/protocol/wire"
	"github.com/marmos91/dittodrop/pkg/file"
)

// DefaultDialTimeout bounds Connect when ClientConfig.DialTimeout is zero.
const DefaultDialTimeout = 10 * time.Second

// ClientConfig configures the sending side.
type ClientConfig struct {
	DialTimeout time.Duration
}

// Client pushes a batch of files to a daemon.
//
// A Client is not safe for concurrent use; Close may be called from any
// goroutine.
type Client struct {
	config ClientConfig
	log    *logger.Logger

	conn      net.Conn
	state     ClientState
	announced int

	closeOnce sync.Once
	closeErr  error
}

// NewClient returns a disconnected client. A nil log discards output.
func NewClient(config ClientConfig, log *logger.Logger) *Client {
	if config.DialTimeout <= 0 {
		config.DialTimeout = DefaultDialTimeout
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Client{config: config, log: log, state: ClientDisconnected}
}

// NewClientWithConn wraps an established connection. The client starts in
// ClientConnected and owns conn.
func NewClientWithConn(conn net.Conn, log *logger.Logger) *Client {
	c := NewClient(ClientConfig{}, log)
	c.conn = conn
	c.state = ClientConnected
	return c
}

func (c *Client) State() ClientState { return c.state }

// Connect dials address:port over TCP.
func (c *Client) Connect(ctx context.Context, address string, port uint16) error {
	if c.state != ClientDisconnected {
		return stateError("connect", c.state)
	}

	target := net.JoinHostPort(address, strconv.Itoa(int(port)))
	dialer := net.Dialer{Timeout: c.config.DialTimeout}

	conn, err := dialer.DialContext(ctx, "tcp", target)
	if err != nil {
		c.state = ClientFailed
		return &ConnectionError{Address: target, Err: err}
	}

	c.conn = conn
	c.state = ClientConnected
	c.log.Info("Connected to %s", conn.RemoteAddr())
	return nil
}

// Announce sends the file count followed by one metadata record per file.
// Every record is encoded before anything is written, so a record that
// cannot be represented aborts the session with no bytes on the wire.
func (c *Client) Announce(ctx context.Context, records []*file.Record) (err error) {
	if c.state != ClientConnected {
		return stateError("announce", c.state)
	}
	defer func() {
		if err != nil {
			c.state = ClientFailed
		}
	}()

	frames := make([][]byte, 0, len(records))
	for i, rec := range records {
		meta, err := file.ToWire(rec)
		if err != nil {
			return fmt.Errorf("record %d (%s): %w", i, rec.Path(), err)
		}
		frame, err := wire.EncodeMetadata(meta)
		if err != nil {
			return fmt.Errorf("record %d (%s): %w", i, rec.Path(), err)
		}
		frames = append(frames, frame)
	}

	stop := bindContext(ctx, c.conn)
	defer stop()

	if err := wire.WriteCount(c.conn, uint64(len(frames))); err != nil {
		return contextError(ctx, fmt.Errorf("send count: %w", err))
	}
	for i, frame := range frames {
		if err := wire.SendAll(c.conn, frame); err != nil {
			return contextError(ctx, fmt.Errorf("send metadata %d: %w", i, err))
		}
	}

	c.announced = len(frames)
	c.state = ClientMetadataSent
	c.log.Debug("Announced %d file(s)", c.announced)
	return nil
}

// Transfer sends each record's content in announce order. Records that are
// not loaded are read from disk first, and every buffer is released once
// sent.
func (c *Client) Transfer(ctx context.Context, records []*file.Record) (err error) {
	if c.state != ClientMetadataSent {
		return stateError("transfer", c.state)
	}
	defer func() {
		if err != nil {
			c.state = ClientFailed
		}
	}()

	if len(records) != c.announced {
		return fmt.Errorf("announced %d, got %d: %w", c.announced, len(records), ErrCountMismatch)
	}

	stop := bindContext(ctx, c.conn)
	defer stop()

	var total uint64
	for i, rec := range records {
		if !rec.Loaded() {
			if err := rec.Populate(); err != nil {
				return fmt.Errorf("load file %d: %w", i, err)
			}
		}

		err := wire.SendAll(c.conn, rec.Bytes())
		rec.Reset()
		if err != nil {
			return contextError(ctx, fmt.Errorf("send file %d (%s): %w", i, rec.Name(), err))
		}

		total += rec.Size()
		c.log.Debug("Sent %s (%s)", rec.Name(), humanize.IBytes(rec.Size()))
	}

	c.state = ClientTransferComplete
	c.log.Info("Sent %d file(s), %s", len(records), humanize.IBytes(total))
	return nil
}

// Push connects, announces and transfers records in one call. The caller
// still owns Close.
func (c *Client) Push(ctx context.Context, address string, port uint16, records []*file.Record) error {
	if err := c.Connect(ctx, address, port); err != nil {
		return err
	}
	if err := c.Announce(ctx, records); err != nil {
		return err
	}
	return c.Transfer(ctx, records)
}

// Close closes the connection. Only the first call has any effect.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		if c.conn != nil {
			c.closeErr = c.conn.Close()
		}
	})
	return c.closeErr
}
