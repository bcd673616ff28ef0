package config

import (
	"path/filepath"
	"testing"
	"time"
)

func TestReadWriteEnvfileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "env")
	if err := WriteEnvfile(path, map[string]string{"A": "1", "B": "2"}, []string{"B", "A"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := ReadEnvfile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got["A"] != "1" || got["B"] != "2" {
		t.Fatalf("unexpected contents: %+v", got)
	}
}

func TestReadEnvfileMissingReturnsEmpty(t *testing.T) {
	got, err := ReadEnvfile(filepath.Join(t.TempDir(), "nope"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty map, got %+v", got)
	}
}

func TestSetKeyPreservesOrder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "env")
	if err := SetKey(path, "FIRST", "1"); err != nil {
		t.Fatalf("set first: %v", err)
	}
	if err := SetKey(path, "SECOND", "2"); err != nil {
		t.Fatalf("set second: %v", err)
	}
	order, err := keyOrder(path)
	if err != nil {
		t.Fatalf("key order: %v", err)
	}
	if len(order) != 2 || order[0] != "FIRST" || order[1] != "SECOND" {
		t.Fatalf("unexpected order: %v", order)
	}
}

func TestDebouncedWriterSkipsUnchanged(t *testing.T) {
	path := filepath.Join(t.TempDir(), "env")
	w := NewDebouncedWriter(path, 2*time.Second)
	w.Set("A", "1")
	if err := w.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}
	// Setting the same value again and flushing should be a no-op write,
	// but Flush always writes synchronously; the skip behavior applies
	// to the debounced path. Verify the unchanged check directly.
	w.mu.Lock()
	w.pending = map[string]string{"A": "1"}
	w.lastWritten = map[string]string{"A": "1"}
	unchanged := w.unchangedLocked()
	w.mu.Unlock()
	if !unchanged {
		t.Fatalf("expected unchanged detection to report true")
	}
}
