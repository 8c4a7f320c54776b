// Package journal implements the append-only learning log (spec §4.8): the
// single authority for persisted learnings. Every other read-side
// structure (cache, in-memory store) is a derived view rebuildable from it.
package journal

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"sunwellmem/internal/logging"
	"sunwellmem/internal/memtypes"
)

// Entry wraps a learning with the monotonic sequence number assigned on
// append. The learning's fields are inlined at the top level (spec §6:
// "seq (u64, monotone, written by the writer), id, fact, category,
// confidence, source_turns, source_file?, superseded_by?, template_data?,
// timestamp"), not nested under a "learning" key.
type Entry struct {
	Seq int `json:"seq"`
	memtypes.Learning
}

// FsyncPolicy controls how aggressively Append durabilizes writes.
type FsyncPolicy int

const (
	// FsyncEveryAppend calls fsync after every append (the spec default).
	FsyncEveryAppend FsyncPolicy = iota
	// FsyncNever never calls fsync explicitly, relying on the OS to flush
	// eventually; callers trade durability for throughput.
	FsyncNever
)

// Journal is an append-only sequence of serialized learnings, one per
// line, backed by a single file.
type Journal struct {
	mu     sync.Mutex
	path   string
	file   *os.File
	seq    int
	policy FsyncPolicy
}

// Open opens (creating if necessary) the journal file at path, recovering
// its current sequence number by scanning existing entries. Truncated
// trailing lines are treated as absent; malformed interior lines are
// logged and skipped, never fatal (spec §4.8 corruption recovery).
func Open(path string, policy FsyncPolicy) (*Journal, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, fmt.Errorf("journal: open %s: %w", path, err)
	}

	seq := 0
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var e Entry
		if err := json.Unmarshal(line, &e); err != nil {
			logging.JournalDebug("journal: skipped malformed line at recovery: %v", err)
			continue
		}
		seq = e.Seq
	}
	if err := scanner.Err(); err != nil {
		logging.JournalDebug("journal: trailing read error treated as truncation: %v", err)
	}

	if _, err := f.Seek(0, os.SEEK_END); err != nil {
		f.Close()
		return nil, fmt.Errorf("journal: seek end: %w", err)
	}

	return &Journal{path: path, file: f, seq: seq, policy: policy}, nil
}

// Append serializes learning as one JSON line plus a trailing newline,
// assigns it the next sequence number, and (per policy) fsyncs before
// returning.
func (j *Journal) Append(learning memtypes.Learning) (Entry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.seq++
	entry := Entry{Seq: j.seq, Learning: learning}
	data, err := json.Marshal(entry)
	if err != nil {
		j.seq--
		return Entry{}, fmt.Errorf("journal: marshal entry: %w", err)
	}
	data = append(data, '\n')

	if _, err := j.file.Write(data); err != nil {
		j.seq--
		return Entry{}, fmt.Errorf("journal: write entry: %w", err)
	}
	if j.policy == FsyncEveryAppend {
		if err := j.file.Sync(); err != nil {
			return Entry{}, fmt.Errorf("journal: fsync: %w", err)
		}
	}
	logging.JournalDebug("journal: appended seq=%d category=%s", entry.Seq, learning.Category)
	return entry, nil
}

// ReadFrom returns every entry with sequence >= offset, reading the file
// from the start (the in-memory seq counter is not a substitute for
// re-reading: readers may run in a different process than the writer).
func (j *Journal) ReadFrom(offset int) ([]Entry, error) {
	f, err := os.Open(j.path)
	if err != nil {
		return nil, fmt.Errorf("journal: reopen for read: %w", err)
	}
	defer f.Close()

	var entries []Entry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var e Entry
		if err := json.Unmarshal(line, &e); err != nil {
			logging.JournalDebug("journal: skipped malformed line %d on read: %v", lineNo, err)
			continue
		}
		if e.Seq >= offset {
			entries = append(entries, e)
		}
	}
	return entries, nil
}

// Seq returns the current (last-assigned) sequence number.
func (j *Journal) Seq() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.seq
}

// Close releases the underlying file handle.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.file.Close()
}
