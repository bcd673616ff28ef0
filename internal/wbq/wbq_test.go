package wbq

import (
	"os"
	"path/filepath"
	"testing"
)

func TestEnqueueRespectsCapacity(t *testing.T) {
	dir := t.TempDir()
	q := NewQueue(2, dir, nil, nil)
	if r := q.Enqueue(WriteOp{ProjectSlug: "p", RelPath: "a"}); r != Enqueued {
		t.Fatalf("expected Enqueued, got %v", r)
	}
	if r := q.Enqueue(WriteOp{ProjectSlug: "p", RelPath: "b"}); r != Enqueued {
		t.Fatalf("expected Enqueued, got %v", r)
	}
	if r := q.Enqueue(WriteOp{ProjectSlug: "p", RelPath: "c"}); r != QueueUnavailable {
		t.Fatalf("expected QueueUnavailable at capacity, got %v", r)
	}
}

func TestDrainWritesFilesAtomically(t *testing.T) {
	dir := t.TempDir()
	q := NewQueue(10, dir, nil, nil)
	q.Enqueue(WriteOp{ProjectSlug: "proj", RelPath: "agents/BlueBear/inbox/2026/07/msg1.md", Contents: []byte("hello")})

	errsBySlug := q.Drain()
	if len(errsBySlug) != 0 {
		t.Fatalf("unexpected drain errors: %v", errsBySlug)
	}
	got, err := os.ReadFile(filepath.Join(dir, "proj", "agents/BlueBear/inbox/2026/07/msg1.md"))
	if err != nil {
		t.Fatalf("expected file written: %v", err)
	}
	if string(got) != "hello" {
		t.Fatalf("unexpected contents: %q", got)
	}
	if q.Depth() != 0 {
		t.Fatalf("expected depth 0 after drain")
	}
}

func TestDiskCriticalSkipsEnqueue(t *testing.T) {
	dir := t.TempDir()
	mon := &DiskPressureMonitor{root: dir, criticalFreeBytes: ^uint64(0)} // impossible to satisfy -> always critical
	q := NewQueue(10, dir, mon, nil)
	if r := q.Enqueue(WriteOp{ProjectSlug: "p", RelPath: "x"}); r != SkippedDiskCritical {
		t.Fatalf("expected SkippedDiskCritical, got %v", r)
	}
}
