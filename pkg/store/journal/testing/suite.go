// Package testing provides a contract test suite for journal.Journal
// implementations.
package testing

import (
	"context"
	"testing"
	"time"

	"github.com/marmos91/dittodrop/pkg/store/journal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// JournalTestSuite runs the Journal contract against NewJournal.
type JournalTestSuite struct {
	NewJournal func(t *testing.T) journal.Journal
}

func (suite *JournalTestSuite) Run(t *testing.T) {
	t.Run("Record_FillsIDAndTime", suite.testRecordFillsIDAndTime)
	t.Run("List_Order", suite.testListOrder)
	t.Run("List_FilterByPeer", suite.testListFilterByPeer)
	t.Run("List_Empty", suite.testListEmpty)
	t.Run("Record_CancelledContext", suite.testRecordCancelled)
	t.Run("Close_Idempotent", suite.testCloseIdempotent)
}

func (suite *JournalTestSuite) newJournal(t *testing.T) journal.Journal {
	j := suite.NewJournal(t)
	t.Cleanup(func() { _ = j.Close() })
	return j
}

func (suite *JournalTestSuite) testRecordFillsIDAndTime(t *testing.T) {
	j := suite.newJournal(t)
	ctx := context.Background()

	require.NoError(t, j.Record(ctx, journal.Entry{
		SessionID: "s1",
		Peer:      "127.0.0.1",
		Name:      "a.txt",
		Path:      "/srv/127.0.0.1/a.txt",
		Size:      5,
		Status:    journal.StatusComplete,
	}))

	entries, err := j.List(ctx, "127.0.0.1")
	require.NoError(t, err)
	require.Len(t, entries, 1)

	e := entries[0]
	assert.NotEmpty(t, e.ID)
	assert.False(t, e.Time.IsZero())
	assert.Equal(t, "s1", e.SessionID)
	assert.Equal(t, "a.txt", e.Name)
	assert.Equal(t, uint64(5), e.Size)
	assert.Equal(t, journal.StatusComplete, e.Status)
}

func (suite *JournalTestSuite) testListOrder(t *testing.T) {
	j := suite.newJournal(t)
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	for i, name := range []string{"first", "second", "third"} {
		require.NoError(t, j.Record(ctx, journal.Entry{
			Peer:   "10.0.0.1",
			Name:   name,
			Status: journal.StatusComplete,
			Time:   base.Add(time.Duration(i) * time.Second),
		}))
	}

	entries, err := j.List(ctx, "10.0.0.1")
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "first", entries[0].Name)
	assert.Equal(t, "second", entries[1].Name)
	assert.Equal(t, "third", entries[2].Name)
}

func (suite *JournalTestSuite) testListFilterByPeer(t *testing.T) {
	j := suite.newJournal(t)
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, j.Record(ctx, journal.Entry{Peer: "10.0.0.2", Name: "b", Status: journal.StatusFailed, Error: "peer closed", Time: base.Add(time.Second)}))
	require.NoError(t, j.Record(ctx, journal.Entry{Peer: "10.0.0.1", Name: "a", Status: journal.StatusComplete, Time: base}))
	require.NoError(t, j.Record(ctx, journal.Entry{Peer: "10.0.0.10", Name: "c", Status: journal.StatusComplete, Time: base.Add(2 * time.Second)}))

	one, err := j.List(ctx, "10.0.0.1")
	require.NoError(t, err)
	require.Len(t, one, 1, "peer filter must not match peers sharing a prefix")
	assert.Equal(t, "a", one[0].Name)

	two, err := j.List(ctx, "10.0.0.2")
	require.NoError(t, err)
	require.Len(t, two, 1)
	assert.Equal(t, journal.StatusFailed, two[0].Status)
	assert.Equal(t, "peer closed", two[0].Error)

	all, err := j.List(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"a", "b", "c"}, []string{all[0].Name, all[1].Name, all[2].Name})
}

func (suite *JournalTestSuite) testListEmpty(t *testing.T) {
	j := suite.newJournal(t)

	entries, err := j.List(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func (suite *JournalTestSuite) testRecordCancelled(t *testing.T) {
	j := suite.newJournal(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, j.Record(ctx, journal.Entry{Peer: "p"}), context.Canceled)
}

func (suite *JournalTestSuite) testCloseIdempotent(t *testing.T) {
	j := suite.NewJournal(t)

	assert.NoError(t, j.Close())
	assert.NoError(t, j.Close())
}
