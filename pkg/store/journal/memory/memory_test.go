package memory

import (
	"context"
	"testing"

	"github.com/marmos91/dittodrop/pkg/store/journal"
	journaltesting "github.com/marmos91/dittodrop/pkg/store/journal/testing"
	"github.com/stretchr/testify/assert"
)

func TestMemoryJournal_Suite(t *testing.T) {
	suite := &journaltesting.JournalTestSuite{
		NewJournal: func(t *testing.T) journal.Journal {
			return NewMemoryJournal()
		},
	}
	suite.Run(t)
}

func TestMemoryJournal_ClosedRejects(t *testing.T) {
	j := NewMemoryJournal()
	_ = j.Close()

	assert.ErrorIs(t, j.Record(context.Background(), journal.Entry{Peer: "p"}), journal.ErrClosed)
	_, err := j.List(context.Background(), "")
	assert.ErrorIs(t, err, journal.ErrClosed)
}
