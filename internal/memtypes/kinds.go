package memtypes

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"sunwellmem/internal/identity"
)

// --- Working memory ---

// WorkingMemory holds the active conversation: turns in append order, with
// a bounded length and pinned-turn eviction exemption (spec invariant 7).
type WorkingMemory struct {
	mu       sync.RWMutex
	turns    []Turn
	order    []string // ids, append order, for recency tie-breaks in Query
	maxTurns int
	pinned   map[string]bool
}

// DefaultMaxTurns bounds working memory when no explicit limit is given.
const DefaultMaxTurns = 200

// NewWorkingMemory returns an empty working memory bounded at maxTurns (or
// DefaultMaxTurns if maxTurns <= 0).
func NewWorkingMemory(maxTurns int) *WorkingMemory {
	if maxTurns <= 0 {
		maxTurns = DefaultMaxTurns
	}
	return &WorkingMemory{maxTurns: maxTurns, pinned: map[string]bool{}}
}

// Store appends a turn, assigning it a stable id, and evicts the oldest
// unpinned turn if the bound is exceeded.
func (w *WorkingMemory) Store(t Turn) string {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t.ID == "" {
		t.ID = identity.NewID()
	}
	w.turns = append(w.turns, t)
	w.order = append(w.order, t.ID)
	w.evictLocked()
	return t.ID
}

// Pin exempts a turn from eviction.
func (w *WorkingMemory) Pin(id string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pinned[id] = true
}

func (w *WorkingMemory) evictLocked() {
	for len(w.turns) > w.maxTurns {
		evictIdx := -1
		for i, t := range w.turns {
			if !w.pinned[t.ID] {
				evictIdx = i
				break
			}
		}
		if evictIdx == -1 {
			break // every remaining turn is pinned; accept going over bound
		}
		evicted := w.turns[evictIdx].ID
		w.turns = append(w.turns[:evictIdx], w.turns[evictIdx+1:]...)
		for i, id := range w.order {
			if id == evicted {
				w.order = append(w.order[:i], w.order[i+1:]...)
				break
			}
		}
	}
}

// Turns returns a snapshot of the turns currently held, oldest first.
func (w *WorkingMemory) Turns() []Turn {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]Turn, len(w.turns))
	copy(out, w.turns)
	return out
}

// GetTurn resolves a Hit.ID back to its full Turn.
func (w *WorkingMemory) GetTurn(id string) (Turn, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	for _, t := range w.turns {
		if t.ID == id {
			return t, true
		}
	}
	return Turn{}, false
}

func (w *WorkingMemory) Query(focus FocusScorer, text string, limit int) []Hit {
	w.mu.RLock()
	defer w.mu.RUnlock()
	hits := make([]Hit, 0, len(w.turns))
	for _, t := range w.turns {
		score := focus.ScoreText(t.Content, string(t.Kind))
		hits = append(hits, Hit{ID: t.ID, Score: score})
	}
	return topByRecency(hits, w.order, limit)
}

func (w *WorkingMemory) Summarize(maxTokens int) string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	var b strings.Builder
	tokens := 0
	for i := len(w.turns) - 1; i >= 0 && tokens < maxTokens; i-- {
		t := w.turns[i]
		line := fmt.Sprintf("**%s**: %s\n", roleLabel(t.Kind), truncate(t.Content, 300))
		tokens += wordCount(line)
		b.WriteString(line)
	}
	return b.String()
}

func roleLabel(k TurnKind) string {
	if k == TurnUser {
		return "User"
	}
	return "Assistant"
}

// topByRecency orders hits by score descending, breaking ties by recency
// (later entries in order rank first), and truncates to limit.
func topByRecency(hits []Hit, order []string, limit int) []Hit {
	pos := make(map[string]int, len(order))
	for i, id := range order {
		pos[id] = i
	}
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return pos[hits[i].ID] > pos[hits[j].ID]
	})
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits
}

// --- Long-term memory ---

// LongTermMemory holds learnings forever (the journal is the true
// authority; this is the in-process working set — spec invariant 3).
type LongTermMemory struct {
	mu        sync.RWMutex
	learnings map[string]Learning
	order     []string
}

func NewLongTermMemory() *LongTermMemory {
	return &LongTermMemory{learnings: map[string]Learning{}}
}

// Store records a learning, assigning an id if absent.
func (m *LongTermMemory) Store(l Learning) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if l.ID == "" {
		l.ID = identity.NewID()
	}
	if _, exists := m.learnings[l.ID]; !exists {
		m.order = append(m.order, l.ID)
	}
	m.learnings[l.ID] = l
	return l.ID
}

// Supersede marks oldID as superseded by newID. No-op if oldID is absent.
func (m *LongTermMemory) Supersede(oldID, newID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if old, ok := m.learnings[oldID]; ok {
		old.SupersededBy = newID
		m.learnings[oldID] = old
	}
}

// GetActive returns learnings that have not been superseded (spec invariant
// 2: "readers filter superseded records by default").
func (m *LongTermMemory) GetActive() []Learning {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Learning, 0, len(m.learnings))
	for _, id := range m.order {
		if l, ok := m.learnings[id]; ok && l.Active() {
			out = append(out, l)
		}
	}
	return out
}

// GetActiveAndSuperseded returns every learning regardless of supersession
// state, in insertion order — used by session persistence, which (per spec
// §6) snapshots the full learning history rather than only the active set.
func (m *LongTermMemory) GetActiveAndSuperseded() []Learning {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Learning, 0, len(m.learnings))
	for _, id := range m.order {
		out = append(out, m.learnings[id])
	}
	return out
}

// GetLearning resolves a Hit.ID back to its full Learning.
func (m *LongTermMemory) GetLearning(id string) (Learning, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	l, ok := m.learnings[id]
	return l, ok
}

func (m *LongTermMemory) Query(focus FocusScorer, text string, limit int) []Hit {
	active := m.GetActive()
	hits := make([]Hit, 0, len(active))
	for _, l := range active {
		score := focus.ScoreText(l.Fact, l.Category)
		hits = append(hits, Hit{ID: l.ID, Score: score})
	}
	m.mu.RLock()
	order := m.order
	m.mu.RUnlock()
	return topByRecency(hits, order, limit)
}

func (m *LongTermMemory) Summarize(maxTokens int) string {
	active := m.GetActive()
	var b strings.Builder
	tokens := 0
	for _, l := range active {
		line := fmt.Sprintf("- [%s] %s\n", l.Category, l.Fact)
		if tokens+wordCount(line) > maxTokens {
			break
		}
		tokens += wordCount(line)
		b.WriteString(line)
	}
	return b.String()
}

// --- Episodic memory ---

// EpisodicMemory holds attempted approaches and the dead-end subset of
// them.
type EpisodicMemory struct {
	mu       sync.RWMutex
	episodes map[string]Episode
	order    []string
	deadEnds map[string]bool
}

func NewEpisodicMemory() *EpisodicMemory {
	return &EpisodicMemory{episodes: map[string]Episode{}, deadEnds: map[string]bool{}}
}

// AddEpisode records an episode, assigning an id if absent.
func (m *EpisodicMemory) AddEpisode(e Episode) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e.ID == "" {
		e.ID = identity.NewID()
	}
	if _, exists := m.episodes[e.ID]; !exists {
		m.order = append(m.order, e.ID)
	}
	m.episodes[e.ID] = e
	return e.ID
}

// MarkDeadEnd adds an episode id to the dead-end set.
func (m *EpisodicMemory) MarkDeadEnd(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deadEnds[id] = true
}

// GetDeadEnds returns the episodes currently marked as dead ends.
func (m *EpisodicMemory) GetDeadEnds() []Episode {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Episode
	for _, id := range m.order {
		if m.deadEnds[id] {
			out = append(out, m.episodes[id])
		}
	}
	return out
}

// DeadEndIDs returns the raw dead-end id set, used by save/load.
func (m *EpisodicMemory) DeadEndIDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.deadEnds))
	for id := range m.deadEnds {
		out = append(out, id)
	}
	return out
}

// Episodes returns every episode currently held.
func (m *EpisodicMemory) Episodes() []Episode {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Episode, 0, len(m.episodes))
	for _, id := range m.order {
		out = append(out, m.episodes[id])
	}
	return out
}

// GetEpisode resolves a Hit.ID back to its full Episode.
func (m *EpisodicMemory) GetEpisode(id string) (Episode, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.episodes[id]
	return e, ok
}

func (m *EpisodicMemory) Query(focus FocusScorer, text string, limit int) []Hit {
	m.mu.RLock()
	defer m.mu.RUnlock()
	hits := make([]Hit, 0, len(m.episodes))
	for _, id := range m.order {
		e := m.episodes[id]
		score := focus.ScoreText(e.Summary, string(e.Outcome))
		if m.deadEnds[id] {
			score += 0.1 // dead ends bias future retrieval against their approach
		}
		hits = append(hits, Hit{ID: id, Score: score})
	}
	return topByRecency(hits, m.order, limit)
}

func (m *EpisodicMemory) Summarize(maxTokens int) string {
	var b strings.Builder
	tokens := 0
	for _, e := range m.GetDeadEnds() {
		line := fmt.Sprintf("Dead end: %s\n", e.Summary)
		if tokens+wordCount(line) > maxTokens {
			break
		}
		tokens += wordCount(line)
		b.WriteString(line)
	}
	return b.String()
}

// --- Semantic memory ---

// SemanticMemory holds what the agent knows about the codebase: facts keyed
// by a caller-supplied or generated id, independent of the long-term
// learning journal.
type SemanticMemory struct {
	mu    sync.RWMutex
	facts map[string]string
	order []string
}

func NewSemanticMemory() *SemanticMemory {
	return &SemanticMemory{facts: map[string]string{}}
}

// Add records a fact, assigning an id if id is empty, and returns the id
// used.
func (m *SemanticMemory) Add(id, text string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id == "" {
		id = identity.NewID()
	}
	if _, exists := m.facts[id]; !exists {
		m.order = append(m.order, id)
	}
	m.facts[id] = text
	return id
}

// GetFact resolves a Hit.ID back to its fact text.
func (m *SemanticMemory) GetFact(id string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	f, ok := m.facts[id]
	return f, ok
}

func (m *SemanticMemory) Query(focus FocusScorer, text string, limit int) []Hit {
	m.mu.RLock()
	defer m.mu.RUnlock()
	hits := make([]Hit, 0, len(m.facts))
	for _, id := range m.order {
		hits = append(hits, Hit{ID: id, Score: focus.ScoreText(m.facts[id])})
	}
	return topByRecency(hits, m.order, limit)
}

func (m *SemanticMemory) Summarize(maxTokens int) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var b strings.Builder
	tokens := 0
	for _, id := range m.order {
		line := "- " + m.facts[id] + "\n"
		if tokens+wordCount(line) > maxTokens {
			break
		}
		tokens += wordCount(line)
		b.WriteString(line)
	}
	return b.String()
}

// --- Procedural memory ---

// Heuristic is one addressable procedural-memory entry: a rendered prompt
// fragment plus a stable id scoped to this process (heuristics are not
// persisted across sessions — spec §4.7: reloaded from the associated lens).
type Heuristic struct {
	ID   string
	Text string
}

// ProceduralMemory holds "how to think": heuristics, workflow names, and
// skill names, typically populated from a lens at simulacrum construction.
type ProceduralMemory struct {
	mu         sync.RWMutex
	heuristics []Heuristic
	workflows  []string
	skills     []string
}

func NewProceduralMemory() *ProceduralMemory {
	return &ProceduralMemory{}
}

// AddHeuristic appends a heuristic prompt fragment, returning its id.
func (m *ProceduralMemory) AddHeuristic(text string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := fmt.Sprintf("heuristic-%d", len(m.heuristics))
	m.heuristics = append(m.heuristics, Heuristic{ID: id, Text: text})
	return id
}

func (m *ProceduralMemory) AddWorkflow(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.workflows = append(m.workflows, name)
}

func (m *ProceduralMemory) AddSkill(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.skills = append(m.skills, name)
}

// Heuristics returns every heuristic currently held, in insertion order.
func (m *ProceduralMemory) Heuristics() []Heuristic {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Heuristic, len(m.heuristics))
	copy(out, m.heuristics)
	return out
}

// Counts reports sizes for the simulacrum snapshot (procedural content
// itself is never persisted — spec §4.7).
func (m *ProceduralMemory) Counts() (heuristics, workflows, skills int) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.heuristics), len(m.workflows), len(m.skills)
}

func (m *ProceduralMemory) Query(focus FocusScorer, text string, limit int) []Hit {
	m.mu.RLock()
	defer m.mu.RUnlock()
	hits := make([]Hit, 0, len(m.heuristics))
	for _, h := range m.heuristics {
		hits = append(hits, Hit{ID: h.ID, Score: focus.ScoreText(h.Text)})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits
}

func (m *ProceduralMemory) Summarize(maxTokens int) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var b strings.Builder
	tokens := 0
	for _, h := range m.heuristics {
		line := "- " + h.Text + "\n"
		if tokens+wordCount(line) > maxTokens {
			break
		}
		tokens += wordCount(line)
		b.WriteString(line)
	}
	return b.String()
}

// GetHeuristic resolves a Hit.ID back to its full Heuristic.
func (m *ProceduralMemory) GetHeuristic(id string) (Heuristic, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, h := range m.heuristics {
		if h.ID == id {
			return h, true
		}
	}
	return Heuristic{}, false
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func wordCount(s string) int {
	return len(strings.Fields(s))
}
