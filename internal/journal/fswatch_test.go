package journal

import (
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"sunwellmem/internal/memtypes"
)

func TestPushJournalWatcherDetectsAppend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.jsonl")
	j, err := Open(path, FsyncEveryAppend)
	if err != nil {
		t.Fatal(err)
	}
	defer j.Close()

	var calls int32
	jw := NewJournalWatcher(j, func(Entry) { atomic.AddInt32(&calls, 1) })
	pw := NewPushJournalWatcher(jw, path, 20*time.Millisecond)

	if err := pw.Start(); err != nil {
		t.Fatal(err)
	}
	defer pw.Stop()

	j.Append(memtypes.Learning{Fact: "a"})

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if atomic.LoadInt32(&calls) == 1 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("expected 1 callback invocation, got %d", got)
	}

	stats := pw.Stats()
	if stats.ChecksRun == 0 {
		t.Fatalf("expected at least one debounced check to run, got stats %+v", stats)
	}
}

func TestPushJournalWatcherStopIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.jsonl")
	j, err := Open(path, FsyncEveryAppend)
	if err != nil {
		t.Fatal(err)
	}
	defer j.Close()

	jw := NewJournalWatcher(j, func(Entry) {})
	pw := NewPushJournalWatcher(jw, path, 20*time.Millisecond)

	if err := pw.Start(); err != nil {
		t.Fatal(err)
	}
	pw.Stop()
	pw.Stop()
}
