package badger

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/marmos91/dittodrop/pkg/store/journal"
	journaltesting "github.com/marmos91/dittodrop/pkg/store/journal/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBadgerJournal_Suite(t *testing.T) {
	suite := &journaltesting.JournalTestSuite{
		NewJournal: func(t *testing.T) journal.Journal {
			j, err := NewBadgerJournal(context.Background(), Config{Path: t.TempDir()})
			require.NoError(t, err)
			return j
		},
	}
	suite.Run(t)
}

func TestNewBadgerJournal_RequiresPath(t *testing.T) {
	_, err := NewBadgerJournal(context.Background(), Config{})
	assert.Error(t, err)
}

func TestBadgerJournal_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "journal")

	j, err := NewBadgerJournal(ctx, Config{Path: dir})
	require.NoError(t, err)
	require.NoError(t, j.Record(ctx, journal.Entry{
		Peer:   "192.168.0.7",
		Name:   "report.pdf",
		Size:   1024,
		Status: journal.StatusComplete,
	}))
	require.NoError(t, j.Close())

	reopened, err := NewBadgerJournal(ctx, Config{Path: dir})
	require.NoError(t, err)
	defer reopened.Close()

	entries, err := reopened.List(ctx, "192.168.0.7")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "report.pdf", entries[0].Name)
	assert.Equal(t, uint64(1024), entries[0].Size)
}

func TestBadgerJournal_IPv6PeersDoNotOverlap(t *testing.T) {
	ctx := context.Background()
	j, err := NewBadgerJournal(ctx, Config{Path: t.TempDir()})
	require.NoError(t, err)
	defer j.Close()

	require.NoError(t, j.Record(ctx, journal.Entry{Peer: "::1", Name: "loopback.txt", Size: 1, Status: journal.StatusComplete}))
	require.NoError(t, j.Record(ctx, journal.Entry{Peer: "::1:5", Name: "other.txt", Size: 1, Status: journal.StatusComplete}))

	entries, err := j.List(ctx, "::1")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "loopback.txt", entries[0].Name)

	all, err := j.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)
}
