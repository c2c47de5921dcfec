package e2e

import (
	"bytes"
	"crypto/rand"
	"fmt"
	"strings"
	"testing"

	"github.com/marmos91/dittodrop/pkg/store/journal"
)

// TestSendSingleFile sends one small file
func TestSendSingleFile(t *testing.T) {
	runOnAllConfigs(t, func(t *testing.T, tc *TestContext) {
		path := tc.WriteSource("a.txt", []byte("hello"))

		if err := tc.Send(path); err != nil {
			t.Fatalf("Send failed: %v", err)
		}

		entries := tc.WaitForEntries(1)
		if len(entries) != 1 {
			t.Fatalf("Expected 1 journal entry, got %d", len(entries))
		}
		if entries[0].Status != journal.StatusComplete {
			t.Errorf("Expected complete, got %s (%s)", entries[0].Status, entries[0].Error)
		}

		tc.AssertReceived("a.txt", []byte("hello"))
	})
}

// TestSendMultipleFiles sends several files in one session and checks they
// arrive in announce order.
func TestSendMultipleFiles(t *testing.T) {
	runOnAllConfigs(t, func(t *testing.T, tc *TestContext) {
		contents := map[string][]byte{
			"a.txt": []byte("hello"),
			"b.bin": {0x00, 0xff, 0x10},
			"c.md":  []byte(strings.Repeat("# dittodrop\n", 100)),
		}
		names := []string{"a.txt", "b.bin", "c.md"}

		paths := make([]string, 0, len(names))
		for _, name := range names {
			paths = append(paths, tc.WriteSource(name, contents[name]))
		}

		if err := tc.Send(paths...); err != nil {
			t.Fatalf("Send failed: %v", err)
		}

		entries := tc.WaitForEntries(len(names))
		if len(entries) != len(names) {
			t.Fatalf("Expected %d journal entries, got %d", len(names), len(entries))
		}
		for i, e := range entries {
			if e.Name != names[i] {
				t.Errorf("Entry %d: expected %s, got %s", i, names[i], e.Name)
			}
		}

		for _, name := range names {
			tc.AssertReceived(name, contents[name])
		}
	})
}

// TestFileSizes sends files across buffer-size boundaries
func TestFileSizes(t *testing.T) {
	sizes := []int{1, 255, 4096, 65537, 1 << 20, 8 << 20}

	runOnAllConfigs(t, func(t *testing.T, tc *TestContext) {
		for i, size := range sizes {
			t.Run(fmt.Sprintf("%d", size), func(t *testing.T) {
				data := make([]byte, size)
				if _, err := rand.Read(data); err != nil {
					t.Fatalf("Failed to generate data: %v", err)
				}

				name := fmt.Sprintf("file-%d.bin", size)
				if err := tc.Send(tc.WriteSource(name, data)); err != nil {
					t.Fatalf("Send failed: %v", err)
				}

				tc.WaitForEntries(i + 1)
				tc.AssertReceived(name, data)
			})
		}
	})
}

// TestSequentialSessions checks the daemon keeps serving and a later
// session replaces a file with the same name.
func TestSequentialSessions(t *testing.T) {
	runOnAllConfigs(t, func(t *testing.T, tc *TestContext) {
		path := tc.WriteSource("notes.txt", []byte("first"))
		if err := tc.Send(path); err != nil {
			t.Fatalf("First send failed: %v", err)
		}
		tc.WaitForEntries(1)

		path = tc.WriteSource("notes.txt", []byte("second version"))
		if err := tc.Send(path); err != nil {
			t.Fatalf("Second send failed: %v", err)
		}
		entries := tc.WaitForEntries(2)

		if len(entries) != 2 || entries[0].SessionID == entries[1].SessionID {
			t.Fatalf("Expected two entries from different sessions, got %+v", entries)
		}
		tc.AssertReceived("notes.txt", []byte("second version"))
	})
}

// TestEmptyBatch sends a session announcing zero files
func TestEmptyBatch(t *testing.T) {
	runOnAllConfigs(t, func(t *testing.T, tc *TestContext) {
		if err := tc.Send(); err != nil {
			t.Fatalf("Empty send failed: %v", err)
		}

		path := tc.WriteSource("after.txt", []byte("still serving"))
		if err := tc.Send(path); err != nil {
			t.Fatalf("Send after empty batch failed: %v", err)
		}
		tc.WaitForEntries(1)
		tc.AssertReceived("after.txt", []byte("still serving"))
	})
}

// TestZeroSizeFileRejected checks an empty file fails before the daemon
// sees any bytes.
func TestZeroSizeFileRejected(t *testing.T) {
	runOnAllConfigs(t, func(t *testing.T, tc *TestContext) {
		path := tc.WriteSource("empty.txt", nil)

		if err := tc.Send(path); err == nil {
			t.Fatal("Expected send of an empty file to fail")
		}

		ok := tc.WriteSource("ok.txt", bytes.Repeat([]byte{'x'}, 10))
		if err := tc.Send(ok); err != nil {
			t.Fatalf("Send after rejected batch failed: %v", err)
		}
		tc.WaitForEntries(1)
		tc.AssertNotReceived("empty.txt")
	})
}
