package journal

import (
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"

	"sunwellmem/internal/memtypes"
)

// TestMain checks for leaked goroutines, mainly the polling watcher's
// background ticker loop, mirroring the teacher's cmd/nerd/main_test.go use
// of goleak around long-running workers.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestAppendAssignsSequentialSeq(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.jsonl")
	j, err := Open(path, FsyncEveryAppend)
	if err != nil {
		t.Fatal(err)
	}
	defer j.Close()

	e1, err := j.Append(memtypes.Learning{Fact: "a"})
	if err != nil {
		t.Fatal(err)
	}
	e2, err := j.Append(memtypes.Learning{Fact: "b"})
	if err != nil {
		t.Fatal(err)
	}
	if e1.Seq != 1 || e2.Seq != 2 {
		t.Fatalf("expected seq 1,2 got %d,%d", e1.Seq, e2.Seq)
	}
}

func TestReadFromReturnsOnlyNewerEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.jsonl")
	j, err := Open(path, FsyncEveryAppend)
	if err != nil {
		t.Fatal(err)
	}
	defer j.Close()

	j.Append(memtypes.Learning{Fact: "a"})
	j.Append(memtypes.Learning{Fact: "b"})
	j.Append(memtypes.Learning{Fact: "c"})

	entries, err := j.ReadFrom(2)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 || entries[0].Learning.Fact != "b" {
		t.Fatalf("expected entries b,c, got %+v", entries)
	}
}

func TestOpenSkipsMalformedLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.jsonl")
	content := `{"seq":1,"fact":"a"}` + "\n" +
		`not json` + "\n" +
		`{"seq":2,"fact":"b"}` + "\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	j, err := Open(path, FsyncEveryAppend)
	if err != nil {
		t.Fatal(err)
	}
	defer j.Close()

	if j.Seq() != 2 {
		t.Fatalf("expected recovered seq 2, got %d", j.Seq())
	}

	entries, err := j.ReadFrom(1)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 valid entries, got %d: %+v", len(entries), entries)
	}
}

func TestIdempotentPerSequence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.jsonl")
	j, err := Open(path, FsyncEveryAppend)
	if err != nil {
		t.Fatal(err)
	}
	j.Append(memtypes.Learning{Fact: "a"})
	j.Close()

	reopened, err := Open(path, FsyncEveryAppend)
	if err != nil {
		t.Fatal(err)
	}
	defer reopened.Close()

	entries, err := reopened.ReadFrom(1)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Seq != 1 {
		t.Fatalf("expected stable seq mapping across reopen, got %+v", entries)
	}
}

func TestBusPublishIsolatesPanickingSubscriber(t *testing.T) {
	bus := NewBus()
	var calledA, calledC int32
	bus.Subscribe(func(memtypes.Learning) { atomic.AddInt32(&calledA, 1) })
	bus.Subscribe(func(memtypes.Learning) { panic("boom") })
	bus.Subscribe(func(memtypes.Learning) { atomic.AddInt32(&calledC, 1) })

	count := bus.Publish(memtypes.Learning{Fact: "x"})
	if count != 2 {
		t.Fatalf("expected 2 successful subscribers, got %d", count)
	}
	if calledA != 1 || calledC != 1 {
		t.Fatalf("expected both non-panicking subscribers invoked, got a=%d c=%d", calledA, calledC)
	}
}

func TestBusUnsubscribe(t *testing.T) {
	bus := NewBus()
	var calls int32
	token := bus.Subscribe(func(memtypes.Learning) { atomic.AddInt32(&calls, 1) })
	bus.Unsubscribe(token)
	bus.Publish(memtypes.Learning{Fact: "x"})
	if calls != 0 {
		t.Fatalf("expected unsubscribed callback not invoked, got %d calls", calls)
	}
}

func TestJournalWatcherIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.jsonl")
	j, err := Open(path, FsyncEveryAppend)
	if err != nil {
		t.Fatal(err)
	}
	defer j.Close()
	j.Append(memtypes.Learning{Fact: "a"})

	var mu sync.Mutex
	var seen []string
	w := NewJournalWatcher(j, func(e Entry) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, e.Learning.Fact)
	})

	n, err := w.CheckForUpdates()
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("expected 1 new entry, got %d", n)
	}

	n2, err := w.CheckForUpdates()
	if err != nil {
		t.Fatal(err)
	}
	if n2 != 0 {
		t.Fatalf("expected idempotent second check to return 0, got %d", n2)
	}
}

func TestPollingJournalWatcherStartStop(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.jsonl")
	j, err := Open(path, FsyncEveryAppend)
	if err != nil {
		t.Fatal(err)
	}
	defer j.Close()

	var calls int32
	jw := NewJournalWatcher(j, func(Entry) { atomic.AddInt32(&calls, 1) })
	pw := NewPollingJournalWatcher(jw, 10*time.Millisecond)

	pw.Start()
	j.Append(memtypes.Learning{Fact: "a"})
	time.Sleep(100 * time.Millisecond)
	pw.Stop()
	pw.Stop() // safe to call twice

	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("expected exactly 1 callback invocation, got %d", calls)
	}
}
