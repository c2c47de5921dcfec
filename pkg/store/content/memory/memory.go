// Package memory implements an in-memory content store, used for tests and
// for daemons that only need to observe transfers.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/marmos91/dittodrop/pkg/store/content"
)

// MemoryContentStore keeps content in a map keyed by slash-separated path.
//
// Thread Safety:
// All operations are protected by a sync.RWMutex. Data is copied on write
// and on read.
type MemoryContentStore struct {
	mu    sync.RWMutex
	data  map[string][]byte
	peers map[string]struct{}
}

// NewMemoryContentStore returns an empty store.
func NewMemoryContentStore(ctx context.Context) (*MemoryContentStore, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &MemoryContentStore{
		data:  make(map[string][]byte),
		peers: make(map[string]struct{}),
	}, nil
}

// PrepareSession returns the peer name as the destination prefix.
func (s *MemoryContentStore) PrepareSession(ctx context.Context, peer string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := content.ValidatePeer(peer); err != nil {
		return "", err
	}

	s.mu.Lock()
	s.peers[peer] = struct{}{}
	s.mu.Unlock()

	return peer, nil
}

func (s *MemoryContentStore) WriteContent(ctx context.Context, path string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	key, err := content.CleanKey(path)
	if err != nil {
		return err
	}

	buf := make([]byte, len(data))
	copy(buf, data)

	s.mu.Lock()
	s.data[key] = buf
	s.mu.Unlock()
	return nil
}

func (s *MemoryContentStore) ReadContent(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	key, err := content.CleanKey(path)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	data, ok := s.data[key]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%s: %w", path, content.ErrContentNotFound)
	}

	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

func (s *MemoryContentStore) ContentExists(ctx context.Context, path string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	key, err := content.CleanKey(path)
	if err != nil {
		return false, err
	}

	s.mu.RLock()
	_, ok := s.data[key]
	s.mu.RUnlock()
	return ok, nil
}

// Keys returns the stored keys under prefix, sorted.
func (s *MemoryContentStore) Keys(prefix string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

// Peers returns the peers PrepareSession was called for, sorted.
func (s *MemoryContentStore) Peers() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	peers := make([]string, 0, len(s.peers))
	for p := range s.peers {
		peers = append(peers, p)
	}
	sort.Strings(peers)
	return peers
}

func (s *MemoryContentStore) Close() error {
	return nil
}
