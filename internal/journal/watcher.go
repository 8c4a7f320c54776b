package journal

import (
	"sync"
	"time"

	"sunwellmem/internal/logging"
)

// Callback is invoked once per new entry discovered by a watcher.
type Callback func(Entry)

// JournalWatcher tracks the last-seen sequence number of a Journal and
// converts journal growth back into callback invocations — the mechanism
// by which a fact learned in one process reaches a watcher in another
// (spec §4.10).
type JournalWatcher struct {
	mu       sync.Mutex
	journal  *Journal
	callback Callback
	lastSeen int
}

// NewJournalWatcher returns a watcher starting from sequence 0 (i.e. it
// will deliver every entry currently in the journal on its first check).
func NewJournalWatcher(j *Journal, callback Callback) *JournalWatcher {
	return &JournalWatcher{journal: j, callback: callback}
}

// CheckForUpdates reads entries with sequence > last-seen, invokes the
// callback for each in order, and advances the pointer. Idempotent: calling
// it on an unchanged journal returns zero and invokes nothing.
func (w *JournalWatcher) CheckForUpdates() (int, error) {
	w.mu.Lock()
	lastSeen := w.lastSeen
	w.mu.Unlock()

	entries, err := w.journal.ReadFrom(lastSeen + 1)
	if err != nil {
		return 0, err
	}
	if len(entries) == 0 {
		return 0, nil
	}

	newCount := 0
	maxSeq := lastSeen
	for _, e := range entries {
		w.callback(e)
		newCount++
		if e.Seq > maxSeq {
			maxSeq = e.Seq
		}
	}

	w.mu.Lock()
	w.lastSeen = maxSeq
	w.mu.Unlock()

	return newCount, nil
}

// PollingJournalWatcher wraps a JournalWatcher in a background goroutine
// that calls CheckForUpdates on a fixed interval. Start/Stop are explicit
// and safe to call repeatedly (a second Start while running, or Stop while
// stopped, is a no-op).
type PollingJournalWatcher struct {
	watcher  *JournalWatcher
	interval time.Duration

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewPollingJournalWatcher wraps watcher with a polling loop at interval.
func NewPollingJournalWatcher(watcher *JournalWatcher, interval time.Duration) *PollingJournalWatcher {
	return &PollingJournalWatcher{watcher: watcher, interval: interval}
}

// Start begins the background polling loop if it is not already running.
func (p *PollingJournalWatcher) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})

	go func() {
		defer close(p.doneCh)
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()
		for {
			select {
			case <-p.stopCh:
				return
			case <-ticker.C:
				if _, err := p.watcher.CheckForUpdates(); err != nil {
					logging.JournalDebug("polling journal watcher: check failed: %v", err)
				}
			}
		}
	}()
}

// Stop halts the background polling loop if running, blocking until the
// goroutine has exited.
func (p *PollingJournalWatcher) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	stopCh := p.stopCh
	doneCh := p.doneCh
	p.mu.Unlock()

	close(stopCh)
	<-doneCh
}
