// Package adapter defines the lifecycle contract for network front ends
// managed by server.DropServer.
package adapter

import (
	"context"

	"github.com/marmos91/dittodrop/pkg/store/content"
	"github.com/marmos91/dittodrop/pkg/store/journal"
)

// Adapter is a protocol-specific server that receives files into the shared
// stores.
//
// Lifecycle:
//  1. Creation with protocol-specific configuration
//  2. SetStores injects the content store and journal
//  3. Serve blocks until shutdown
//  4. Stop initiates graceful shutdown
//
// Thread safety:
// SetStores is called once before Serve. Stop may be called concurrently
// with Serve.
type Adapter interface {
	// Serve starts the server and blocks until ctx is cancelled or an
	// unrecoverable error occurs. On cancellation it stops accepting,
	// waits for the active session (bounded by the adapter's shutdown
	// timeout) and returns.
	Serve(ctx context.Context) error

	// SetStores injects the destination for received files and the journal
	// that records their outcome.
	SetStores(store content.ContentStore, j journal.Journal)

	// Stop initiates graceful shutdown and waits for it to finish or for
	// ctx to expire. Safe to call more than once.
	Stop(ctx context.Context) error

	// Protocol returns a short name for logging, e.g. "dittodrop".
	Protocol() string

	// Port returns the configured TCP port.
	Port() int
}
