package memory

import (
	"context"
	"testing"

	"github.com/marmos91/dittodrop/pkg/store/content"
	storetesting "github.com/marmos91/dittodrop/pkg/store/content/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryContentStore_Suite(t *testing.T) {
	suite := &storetesting.StoreTestSuite{
		NewStore: func(t *testing.T) content.ContentStore {
			store, err := NewMemoryContentStore(context.Background())
			require.NoError(t, err)
			return store
		},
	}
	suite.Run(t)
}

func TestMemoryContentStore_KeysAndPeers(t *testing.T) {
	ctx := context.Background()
	store, err := NewMemoryContentStore(ctx)
	require.NoError(t, err)

	dir, err := store.PrepareSession(ctx, "10.0.0.9")
	require.NoError(t, err)
	require.NoError(t, store.WriteContent(ctx, dir+"/b", []byte("b")))
	require.NoError(t, store.WriteContent(ctx, dir+"/a", []byte("a")))

	assert.Equal(t, []string{"10.0.0.9/a", "10.0.0.9/b"}, store.Keys("10.0.0.9/"))
	assert.Equal(t, []string{"10.0.0.9"}, store.Peers())
}

func TestMemoryContentStore_CopiesData(t *testing.T) {
	ctx := context.Background()
	store, err := NewMemoryContentStore(ctx)
	require.NoError(t, err)

	buf := []byte("abc")
	require.NoError(t, store.WriteContent(ctx, "p/x", buf))
	buf[0] = 'z'

	got, err := store.ReadContent(ctx, "p/x")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(got))
}
