// Package testing provides a reusable contract test suite for
// content.ContentStore implementations.
package testing

import (
	"bytes"
	"context"
	"testing"

	"github.com/marmos91/dittodrop/pkg/file"
	"github.com/marmos91/dittodrop/pkg/store/content"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// StoreTestSuite checks the ContentStore contract against any implementation.
//
// Usage:
//
//	func TestMyStore(t *testing.T) {
//	    suite := &storetesting.StoreTestSuite{
//	        NewStore: func(t *testing.T) content.ContentStore {
//	            return mystore.New(...)
//	        },
//	    }
//	    suite.Run(t)
//	}
type StoreTestSuite struct {
	// NewStore returns a fresh, empty store for each test.
	NewStore func(t *testing.T) content.ContentStore
}

// Run executes all tests in the suite.
func (suite *StoreTestSuite) Run(t *testing.T) {
	t.Run("PrepareSession_Idempotent", suite.testPrepareSessionIdempotent)
	t.Run("PrepareSession_InvalidPeer", suite.testPrepareSessionInvalidPeer)
	t.Run("WriteRead_RoundTrip", suite.testWriteReadRoundTrip)
	t.Run("Write_Overwrites", suite.testWriteOverwrites)
	t.Run("Read_NotFound", suite.testReadNotFound)
	t.Run("Exists", suite.testExists)
	t.Run("Write_RejectsEscapingPath", suite.testWriteRejectsEscapingPath)
	t.Run("Peers_Isolated", suite.testPeersIsolated)
	t.Run("Write_CancelledContext", suite.testWriteCancelledContext)
}

func testContext() context.Context {
	return context.Background()
}

func (suite *StoreTestSuite) newStore(t *testing.T) content.ContentStore {
	store := suite.NewStore(t)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func (suite *StoreTestSuite) testPrepareSessionIdempotent(t *testing.T) {
	store := suite.newStore(t)

	first, err := store.PrepareSession(testContext(), "127.0.0.1")
	require.NoError(t, err)
	second, err := store.PrepareSession(testContext(), "127.0.0.1")
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func (suite *StoreTestSuite) testPrepareSessionInvalidPeer(t *testing.T) {
	store := suite.newStore(t)

	for _, peer := range []string{"", "..", "a/b"} {
		_, err := store.PrepareSession(testContext(), peer)
		assert.ErrorIs(t, err, content.ErrInvalidPeer, "peer %q", peer)
	}
}

func (suite *StoreTestSuite) testWriteReadRoundTrip(t *testing.T) {
	store := suite.newStore(t)
	dir, err := store.PrepareSession(testContext(), "10.0.0.1")
	require.NoError(t, err)

	path := file.JoinPath(dir, "b.bin")
	data := []byte{0x00, 0xff, 0x10}
	require.NoError(t, store.WriteContent(testContext(), path, data))

	got, err := store.ReadContent(testContext(), path)
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func (suite *StoreTestSuite) testWriteOverwrites(t *testing.T) {
	store := suite.newStore(t)
	dir, err := store.PrepareSession(testContext(), "10.0.0.1")
	require.NoError(t, err)

	path := file.JoinPath(dir, "a.txt")
	require.NoError(t, store.WriteContent(testContext(), path, []byte("first version")))
	require.NoError(t, store.WriteContent(testContext(), path, []byte("second")))

	got, err := store.ReadContent(testContext(), path)
	require.NoError(t, err)
	assert.Equal(t, "second", string(got))
}

func (suite *StoreTestSuite) testReadNotFound(t *testing.T) {
	store := suite.newStore(t)
	dir, err := store.PrepareSession(testContext(), "10.0.0.1")
	require.NoError(t, err)

	_, err = store.ReadContent(testContext(), file.JoinPath(dir, "missing"))
	assert.ErrorIs(t, err, content.ErrContentNotFound)
}

func (suite *StoreTestSuite) testExists(t *testing.T) {
	store := suite.newStore(t)
	dir, err := store.PrepareSession(testContext(), "10.0.0.1")
	require.NoError(t, err)
	path := file.JoinPath(dir, "x")

	exists, err := store.ContentExists(testContext(), path)
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, store.WriteContent(testContext(), path, []byte("x")))

	exists, err = store.ContentExists(testContext(), path)
	require.NoError(t, err)
	assert.True(t, exists)
}

func (suite *StoreTestSuite) testWriteRejectsEscapingPath(t *testing.T) {
	store := suite.newStore(t)

	err := store.WriteContent(testContext(), "../outside", []byte("x"))
	assert.ErrorIs(t, err, content.ErrInvalidPath)
}

func (suite *StoreTestSuite) testPeersIsolated(t *testing.T) {
	store := suite.newStore(t)
	dirA, err := store.PrepareSession(testContext(), "10.0.0.1")
	require.NoError(t, err)
	dirB, err := store.PrepareSession(testContext(), "10.0.0.2")
	require.NoError(t, err)
	require.NotEqual(t, dirA, dirB)

	require.NoError(t, store.WriteContent(testContext(), file.JoinPath(dirA, "same"), []byte("from a")))
	require.NoError(t, store.WriteContent(testContext(), file.JoinPath(dirB, "same"), []byte("from b")))

	gotA, err := store.ReadContent(testContext(), file.JoinPath(dirA, "same"))
	require.NoError(t, err)
	gotB, err := store.ReadContent(testContext(), file.JoinPath(dirB, "same"))
	require.NoError(t, err)

	assert.False(t, bytes.Equal(gotA, gotB))
}

func (suite *StoreTestSuite) testWriteCancelledContext(t *testing.T) {
	store := suite.newStore(t)
	dir, err := store.PrepareSession(testContext(), "10.0.0.1")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(testContext())
	cancel()

	path := file.JoinPath(dir, "never")
	assert.Error(t, store.WriteContent(ctx, path, []byte("x")))

	exists, err := store.ContentExists(testContext(), path)
	require.NoError(t, err)
	assert.False(t, exists)
}
