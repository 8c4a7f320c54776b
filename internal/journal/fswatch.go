package journal

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"sunwellmem/internal/logging"
)

// PushJournalWatcher is an optional fsnotify-backed alternative to
// PollingJournalWatcher: instead of ticking at a fixed interval, it wakes on
// filesystem write events for the journal file, debounced, and calls
// CheckForUpdates once the debounce window settles. Grounded on the same
// debounce-timer/stopCh/doneCh shape used elsewhere in the pack for file
// watchers; useful when a caller wants lower latency than polling without
// busy-waiting.
type PushJournalWatcher struct {
	watcher     *JournalWatcher
	journalPath string
	debounceDur time.Duration

	mu      sync.Mutex
	running bool
	fsw     *fsnotify.Watcher
	stopCh  chan struct{}
	doneCh  chan struct{}

	stats PushWatcherStats
}

// PushWatcherStats counts events observed, useful in tests and diagnostics.
type PushWatcherStats struct {
	EventsObserved int
	ChecksRun      int
	Errors         int
}

// NewPushJournalWatcher wraps watcher with an fsnotify watch on the file at
// journalPath, debounced by debounceDur (500ms if zero).
func NewPushJournalWatcher(watcher *JournalWatcher, journalPath string, debounceDur time.Duration) *PushJournalWatcher {
	if debounceDur <= 0 {
		debounceDur = 500 * time.Millisecond
	}
	return &PushJournalWatcher{watcher: watcher, journalPath: journalPath, debounceDur: debounceDur}
}

// Start begins watching the journal's parent directory (watching the
// directory rather than the file survives truncate-and-recreate patterns
// some editors/processes use). No-op if already running.
func (p *PushJournalWatcher) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return nil
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	dir := filepath.Dir(p.journalPath)
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return err
	}

	p.fsw = fsw
	p.running = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})

	go p.run()
	return nil
}

func (p *PushJournalWatcher) run() {
	defer close(p.doneCh)

	debounce := time.NewTimer(time.Hour)
	if !debounce.Stop() {
		<-debounce.C
	}
	pending := false

	for {
		select {
		case <-p.stopCh:
			return

		case event, ok := <-p.fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(p.journalPath) {
				continue
			}
			p.mu.Lock()
			p.stats.EventsObserved++
			p.mu.Unlock()
			if !pending {
				pending = true
				debounce.Reset(p.debounceDur)
			}

		case err, ok := <-p.fsw.Errors:
			if !ok {
				return
			}
			logging.JournalDebug("push journal watcher: fsnotify error: %v", err)
			p.mu.Lock()
			p.stats.Errors++
			p.mu.Unlock()

		case <-debounce.C:
			pending = false
			if _, err := p.watcher.CheckForUpdates(); err != nil {
				logging.JournalDebug("push journal watcher: check failed: %v", err)
				p.mu.Lock()
				p.stats.Errors++
				p.mu.Unlock()
			} else {
				p.mu.Lock()
				p.stats.ChecksRun++
				p.mu.Unlock()
			}
		}
	}
}

// Stop halts the watcher and waits for its goroutine to exit. No-op if not
// running.
func (p *PushJournalWatcher) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	stopCh := p.stopCh
	doneCh := p.doneCh
	fsw := p.fsw
	p.mu.Unlock()

	close(stopCh)
	<-doneCh
	fsw.Close()
}

// Stats returns a snapshot of this watcher's counters.
func (p *PushJournalWatcher) Stats() PushWatcherStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}
