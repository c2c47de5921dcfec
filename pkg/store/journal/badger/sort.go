package badger

import (
	"sort"

	"github.com/marmos91/dittodrop/pkg/store/journal"
)

// sortByTime orders entries from several peers by recording time. Keys are
// grouped by peer first, so a full scan is not chronological.
func sortByTime(entries []journal.Entry) {
	sort.SliceStable(entries, func(a, b int) bool {
		return entries[a].Time.Before(entries[b].Time)
	})
}
