package journal

import (
	"sync"

	"sunwellmem/internal/logging"
	"sunwellmem/internal/memtypes"
)

// Subscriber receives every learning published to a Bus. A panicking or
// erroring subscriber never blocks its peers (spec §4.9: "catching and
// counting exceptions so one bad subscriber cannot block the others").
type Subscriber func(memtypes.Learning)

// Bus is an in-process pub/sub channel for learnings. Callback invocation
// order is registration order.
type Bus struct {
	mu          sync.Mutex
	subscribers []subscriberEntry
	nextID      int
}

type subscriberEntry struct {
	id int
	fn Subscriber
}

// NewBus returns an empty bus. Most callers use the process-wide singleton
// via GetLearningBus instead of constructing their own.
func NewBus() *Bus {
	return &Bus{}
}

// Subscribe registers fn and returns a token Unsubscribe can later use to
// remove exactly this registration (fn itself isn't comparable as a map key
// in general, so identity is tracked by this token rather than by value).
func (b *Bus) Subscribe(fn Subscriber) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	b.subscribers = append(b.subscribers, subscriberEntry{id: id, fn: fn})
	return id
}

// Unsubscribe removes the subscriber registered under token.
func (b *Bus) Unsubscribe(token int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, s := range b.subscribers {
		if s.id == token {
			b.subscribers = append(b.subscribers[:i], b.subscribers[i+1:]...)
			return
		}
	}
}

// Publish invokes every subscriber in registration order, recovering from
// panics so one bad subscriber cannot block the others, and returns the
// count of subscribers that ran without error.
func (b *Bus) Publish(learning memtypes.Learning) int {
	b.mu.Lock()
	subs := make([]subscriberEntry, len(b.subscribers))
	copy(subs, b.subscribers)
	b.mu.Unlock()

	count := 0
	for _, s := range subs {
		if invokeSubscriber(s.fn, learning) {
			count++
		}
	}
	return count
}

func invokeSubscriber(fn Subscriber, learning memtypes.Learning) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			logging.JournalDebug("journal bus: subscriber panicked, isolated: %v", r)
			ok = false
		}
	}()
	fn(learning)
	return true
}

var (
	singletonMu sync.Mutex
	singleton   *Bus
)

// GetLearningBus returns the process-wide singleton bus, creating it on
// first use.
func GetLearningBus() *Bus {
	singletonMu.Lock()
	defer singletonMu.Unlock()
	if singleton == nil {
		singleton = NewBus()
	}
	return singleton
}

// ResetLearningBus replaces the process-wide singleton with a fresh, empty
// bus. Intended for tests that must not leak subscribers across cases.
func ResetLearningBus() {
	singletonMu.Lock()
	defer singletonMu.Unlock()
	singleton = NewBus()
}

// LearningSink is the subset of *memtypes.LongTermMemory that
// SubscribeLearningStore needs, kept narrow so this package does not import
// memtypes' concrete store type directly.
type LearningSink interface {
	Store(memtypes.Learning) string
}

// SubscribeLearningStore bridges bus events into a store's Store sink so
// every in-process worker sharing bus converges on the same knowledge
// without touching disk (spec §4.9). Returns the subscription token.
func SubscribeLearningStore(store LearningSink, bus *Bus) int {
	return bus.Subscribe(func(l memtypes.Learning) {
		store.Store(l)
	})
}
