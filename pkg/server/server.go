// Package server runs a set of adapters against shared stores and
// coordinates their shutdown.
package server

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/marmos91/dittodrop/internal/logger"
	"github.com/marmos91/dittodrop/pkg/adapter"
	"github.com/marmos91/dittodrop/pkg/store/content"
	"github.com/marmos91/dittodrop/pkg/store/journal"
)

// stopTimeout bounds how long DropServer waits for each adapter to stop.
const stopTimeout = 30 * time.Second

var ErrAlreadyServed = errors.New("Serve has already been called on this server")

// DropServer owns the content store and journal and hands them to every
// registered adapter.
//
// Thread safety:
// AddAdapter must not be called after Serve. Serve may only be called once.
type DropServer struct {
	content content.ContentStore
	journal journal.Journal

	mu       sync.RWMutex
	adapters []adapter.Adapter
	served   bool
}

// New creates a server. A nil journal disables journaling.
//
// Panics if store is nil.
func New(store content.ContentStore, j journal.Journal) *DropServer {
	if store == nil {
		panic("content store cannot be nil")
	}
	if j == nil {
		j = journal.Noop{}
	}
	return &DropServer{content: store, journal: j}
}

// AddAdapter registers a and injects the stores into it. Two adapters may
// not share a protocol or a fixed port.
func (s *DropServer) AddAdapter(a adapter.Adapter) error {
	if a == nil {
		return fmt.Errorf("adapter cannot be nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.served {
		return fmt.Errorf("cannot add adapter: %w", ErrAlreadyServed)
	}

	protocol, port := a.Protocol(), a.Port()
	for _, existing := range s.adapters {
		if existing.Protocol() == protocol {
			return fmt.Errorf("adapter for protocol %s already registered", protocol)
		}
		if port != 0 && existing.Port() == port {
			return fmt.Errorf("port %d already in use by %s adapter", port, existing.Protocol())
		}
	}

	a.SetStores(s.content, s.journal)
	s.adapters = append(s.adapters, a)

	logger.Info("Registered %s adapter on port %d", protocol, port)
	return nil
}

// Serve runs every adapter until ctx is cancelled or one of them fails; in
// both cases all adapters are stopped before Serve returns. It returns
// ctx.Err() after a requested shutdown.
func (s *DropServer) Serve(ctx context.Context) error {
	s.mu.Lock()
	if s.served {
		s.mu.Unlock()
		return ErrAlreadyServed
	}
	s.served = true
	if len(s.adapters) == 0 {
		s.mu.Unlock()
		return fmt.Errorf("no adapters registered; call AddAdapter() before Serve()")
	}
	adapters := make([]adapter.Adapter, len(s.adapters))
	copy(adapters, s.adapters)
	s.mu.Unlock()

	logger.Info("Starting dittodrop server with %d adapter(s)", len(adapters))

	errChan := make(chan adapterError, len(adapters))
	var wg sync.WaitGroup

	for _, adp := range adapters {
		wg.Add(1)
		go func(a adapter.Adapter) {
			defer wg.Done()

			protocol := a.Protocol()
			err := a.Serve(ctx)
			switch {
			case err == nil:
				logger.Info("%s adapter stopped", protocol)
				if ctx.Err() == nil {
					errChan <- adapterError{protocol: protocol, err: fmt.Errorf("stopped unexpectedly")}
				}
			case ctx.Err() != nil:
				logger.Debug("%s adapter stopped during shutdown: %v", protocol, err)
			default:
				logger.Error("%s adapter failed: %v", protocol, err)
				errChan <- adapterError{protocol: protocol, err: err}
			}
		}(adp)
	}

	var shutdownErr error
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received (reason: %v)", ctx.Err())
		s.stopAllAdapters(adapters)
		shutdownErr = ctx.Err()

	case adapterErr := <-errChan:
		logger.Error("Adapter %s failed: %v - stopping all adapters", adapterErr.protocol, adapterErr.err)
		s.stopAllAdapters(adapters)
		shutdownErr = fmt.Errorf("%s adapter error: %w", adapterErr.protocol, adapterErr.err)
	}

	wg.Wait()
	logger.Info("dittodrop server stopped")
	return shutdownErr
}

type adapterError struct {
	protocol string
	err      error
}

// stopAllAdapters stops adapters in reverse registration order.
func (s *DropServer) stopAllAdapters(adapters []adapter.Adapter) {
	ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()

	for i := len(adapters) - 1; i >= 0; i-- {
		adp := adapters[i]
		if err := adp.Stop(ctx); err != nil {
			logger.Error("Error stopping %s adapter: %v", adp.Protocol(), err)
		}
	}
}

// Adapters returns a copy of the registered adapters.
func (s *DropServer) Adapters() []adapter.Adapter {
	s.mu.RLock()
	defer s.mu.RUnlock()

	adapters := make([]adapter.Adapter, len(s.adapters))
	copy(adapters, s.adapters)
	return adapters
}
