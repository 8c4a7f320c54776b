// Package simulacrum implements the Simulacrum session container (spec
// §4.7): the portable, persistent problem-solving context that aggregates
// the five memory kinds, the focus model, and model-switch history behind
// a small set of session operations.
package simulacrum

import (
	"context"
	"fmt"
	"sync"
	"time"

	"sunwellmem/internal/focus"
	"sunwellmem/internal/identity"
	"sunwellmem/internal/journal"
	"sunwellmem/internal/logging"
	"sunwellmem/internal/memtypes"
	"sunwellmem/internal/retriever"
)

// Simulacrum is one session's complete cognitive context. Safe for
// concurrent use; the mutex only guards the fields owned directly by this
// struct (model history, timestamps) since each memory kind already
// synchronizes itself.
type Simulacrum struct {
	mu sync.Mutex

	Name string

	Working    *memtypes.WorkingMemory
	LongTerm   *memtypes.LongTermMemory
	Episodic   *memtypes.EpisodicMemory
	Semantic   *memtypes.SemanticMemory
	Procedural *memtypes.ProceduralMemory

	Focus *focus.Focus

	currentModel string
	modelsUsed   []string

	createdAt time.Time
	updatedAt time.Time

	// journal is the append-only authority new learnings are written to as
	// well as the in-process long-term store; nil is accepted (learnings
	// are then only stored in-process, never persisted).
	journal *journal.Journal
}

// Lens is the minimal shape this package needs from a caller's procedural
// memory source (spec §4.7: "reloaded from the associated lens" rather than
// persisted). Callers' richer Lens types need only satisfy this.
type Lens interface {
	HeuristicFragments() []string
	WorkflowNames() []string
	SkillNames() []string
}

// New creates an empty named simulacrum. journal may be nil if this session
// does not persist learnings to an append-only log.
func New(name string, j *journal.Journal) *Simulacrum {
	now := time.Now()
	return &Simulacrum{
		Name:       name,
		Working:    memtypes.NewWorkingMemory(0),
		LongTerm:   memtypes.NewLongTermMemory(),
		Episodic:   memtypes.NewEpisodicMemory(),
		Semantic:   memtypes.NewSemanticMemory(),
		Procedural: memtypes.NewProceduralMemory(),
		Focus:      focus.New(),
		createdAt:  now,
		updatedAt:  now,
		journal:    j,
	}
}

// Create builds a new simulacrum, optionally seeding procedural memory from
// a lens (spec §4.7: "how to think (from your Lens)").
func Create(name string, j *journal.Journal, lens Lens) *Simulacrum {
	s := New(name, j)
	if lens != nil {
		for _, h := range lens.HeuristicFragments() {
			s.Procedural.AddHeuristic(h)
		}
		for _, w := range lens.WorkflowNames() {
			s.Procedural.AddWorkflow(w)
		}
		for _, sk := range lens.SkillNames() {
			s.Procedural.AddSkill(sk)
		}
	}
	return s
}

// AddUserMessage records a user turn in working memory, returning its id.
func (s *Simulacrum) AddUserMessage(content string) string {
	return s.Working.Store(memtypes.Turn{
		Content:   content,
		Kind:      memtypes.TurnUser,
		Timestamp: time.Now(),
	})
}

// AddAssistantMessage records an assistant turn, defaulting model to the
// simulacrum's current model when model is empty.
func (s *Simulacrum) AddAssistantMessage(content, model string) string {
	s.mu.Lock()
	if model == "" {
		model = s.currentModel
	}
	s.mu.Unlock()
	return s.Working.Store(memtypes.Turn{
		Content:   content,
		Kind:      memtypes.TurnAssistant,
		Timestamp: time.Now(),
		Model:     model,
	})
}

// lastTurnIDs returns up to n of the most recently stored turn ids, used to
// stamp a new learning's provenance.
func (s *Simulacrum) lastTurnIDs(n int) []string {
	turns := s.Working.Turns()
	if len(turns) > n {
		turns = turns[len(turns)-n:]
	}
	ids := make([]string, len(turns))
	for i, t := range turns {
		ids[i] = t.ID
	}
	return ids
}

// AddLearning records a learning in long-term memory and, if a journal is
// attached, appends it there too (the journal is the durable authority;
// long-term memory is the in-process working set — spec invariant 3).
func (s *Simulacrum) AddLearning(fact, category string, confidence float64) (string, error) {
	if category == "" {
		category = "fact"
	}
	learning := memtypes.Learning{
		ID:          identity.NewID(),
		Fact:        fact,
		Category:    category,
		Confidence:  confidence,
		SourceTurns: s.lastTurnIDs(3),
		CreatedAt:   time.Now(),
	}

	if s.journal != nil {
		entry, err := s.journal.Append(learning)
		if err != nil {
			return "", fmt.Errorf("simulacrum: append learning to journal: %w", err)
		}
		learning.ID = entry.ID
	}

	id := s.LongTerm.Store(learning)
	logging.Get(logging.CategorySession).Debug("simulacrum %s: learning stored id=%s category=%s", s.Name, id, category)
	return id, nil
}

// MarkDeadEnd records the current approach as a failed episode and adds it
// to the dead-end set, returning the episode id.
func (s *Simulacrum) MarkDeadEnd(summary string) string {
	s.mu.Lock()
	modelsUsed := append(append([]string{}, s.modelsUsed...), s.currentModel)
	s.mu.Unlock()

	id := fmt.Sprintf("dead-%s", time.Now().Format("150405"))
	episode := memtypes.Episode{
		ID:         id,
		Summary:    summary,
		Outcome:    memtypes.OutcomeFailed,
		Timestamp:  time.Now(),
		ModelsUsed: modelsUsed,
		TurnCount:  len(s.Working.Turns()),
	}
	s.Episodic.AddEpisode(episode)
	s.Episodic.MarkDeadEnd(episode.ID)
	return episode.ID
}

// SwitchModel changes the active model, preserving all memory and
// recording the outgoing model in history. Returns the old model name.
func (s *Simulacrum) SwitchModel(newModel string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	old := s.currentModel
	if old != "" {
		s.modelsUsed = append(s.modelsUsed, old)
	}
	s.currentModel = newModel
	s.updatedAt = time.Now()
	return old
}

// CurrentModel returns the active model name.
func (s *Simulacrum) CurrentModel() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentModel
}

// ModelsUsed returns the history of models this session has switched away
// from, oldest first.
func (s *Simulacrum) ModelsUsed() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.modelsUsed))
	copy(out, s.modelsUsed)
	return out
}

// SetFocus explicitly pins a topic's weight, exempting it from decay.
func (s *Simulacrum) SetFocus(topic string, weight float64) {
	s.Focus.SetExplicit(topic, weight)
}

// ClearFocus releases a pinned topic, or every topic if topic is empty.
func (s *Simulacrum) ClearFocus(topic string) {
	if topic == "" {
		s.Focus.ClearAll()
		return
	}
	s.Focus.ClearExplicit(topic)
}

// sources builds the retriever.Sources view over this simulacrum's memory
// kinds.
func (s *Simulacrum) sources() retriever.Sources {
	return retriever.Sources{
		Working:    s.Working,
		LongTerm:   s.LongTerm,
		Episodic:   s.Episodic,
		Semantic:   s.Semantic,
		Procedural: s.Procedural,
	}
}

// AssembleContext updates focus from query, retrieves across all memory
// kinds (in parallel unless parallel is false), and renders the result into
// a token-budgeted context string (spec §4.7, §4.9).
func (s *Simulacrum) AssembleContext(ctx context.Context, query string, maxTokens int, parallel bool) (string, retriever.RetrievalResult, error) {
	if maxTokens <= 0 {
		maxTokens = 8000
	}

	var result retriever.RetrievalResult
	var err error
	if parallel {
		result, err = retriever.Retrieve(ctx, s.Focus, query, s.sources())
		if err != nil {
			return "", retriever.RetrievalResult{}, fmt.Errorf("simulacrum: assemble context: %w", err)
		}
	} else {
		result = retriever.RetrieveSequential(s.Focus, query, s.sources())
	}

	text := result.ToContext(maxTokens, retriever.WhitespaceTokenizer{})
	return text, result, nil
}

// Snapshot is the persisted JSON shape of a session (spec §6), built by
// ToSnapshot and restored by FromSnapshot; this package does not itself
// write or read snapshot files. Procedural memory is represented only by
// counts, never by content, since FromSnapshot reloads it from a lens.
type Snapshot struct {
	Name         string          `json:"name"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
	CurrentModel string          `json:"current_model"`
	ModelsUsed   []string        `json:"models_used"`
	Working      workingSnapshot `json:"working"`
	LongTerm     longTermSnap    `json:"long_term"`
	Episodic     episodicSnap    `json:"episodic"`
	Procedural   proceduralSnap  `json:"procedural"`
}

type workingSnapshot struct {
	Turns []memtypes.Turn `json:"turns"`
}

type longTermSnap struct {
	Learnings []memtypes.Learning `json:"learnings"`
}

type episodicSnap struct {
	Episodes []memtypes.Episode `json:"episodes"`
	DeadEnds []string           `json:"dead_ends"`
}

type proceduralSnap struct {
	HeuristicCount int `json:"heuristic_count"`
	WorkflowCount  int `json:"workflow_count"`
	SkillCount     int `json:"skill_count"`
}

// ToSnapshot builds the persisted view of this session's current state.
func (s *Simulacrum) ToSnapshot() Snapshot {
	s.mu.Lock()
	snap := Snapshot{
		Name:         s.Name,
		CreatedAt:    s.createdAt,
		UpdatedAt:    time.Now(),
		CurrentModel: s.currentModel,
		ModelsUsed:   append([]string{}, s.modelsUsed...),
	}
	s.mu.Unlock()

	snap.Working = workingSnapshot{Turns: s.Working.Turns()}
	snap.LongTerm = longTermSnap{Learnings: s.LongTerm.GetActiveAndSuperseded()}
	snap.Episodic = episodicSnap{Episodes: s.Episodic.Episodes(), DeadEnds: s.Episodic.DeadEndIDs()}

	hCount, wCount, skCount := s.Procedural.Counts()
	snap.Procedural = proceduralSnap{HeuristicCount: hCount, WorkflowCount: wCount, SkillCount: skCount}

	return snap
}

// FromSnapshot reconstructs a simulacrum from a persisted snapshot,
// optionally re-seeding procedural memory from a lens (procedural content
// is never itself persisted — spec §4.7).
func FromSnapshot(snap Snapshot, j *journal.Journal, lens Lens) *Simulacrum {
	s := New(snap.Name, j)
	s.createdAt = snap.CreatedAt
	s.updatedAt = snap.UpdatedAt
	s.currentModel = snap.CurrentModel
	s.modelsUsed = append([]string{}, snap.ModelsUsed...)

	for _, t := range snap.Working.Turns {
		s.Working.Store(t)
	}
	for _, l := range snap.LongTerm.Learnings {
		s.LongTerm.Store(l)
	}
	for _, e := range snap.Episodic.Episodes {
		s.Episodic.AddEpisode(e)
	}
	for _, id := range snap.Episodic.DeadEnds {
		s.Episodic.MarkDeadEnd(id)
	}

	if lens != nil {
		for _, h := range lens.HeuristicFragments() {
			s.Procedural.AddHeuristic(h)
		}
		for _, w := range lens.WorkflowNames() {
			s.Procedural.AddWorkflow(w)
		}
		for _, sk := range lens.SkillNames() {
			s.Procedural.AddSkill(sk)
		}
	}

	return s
}

// Stats summarizes session size for diagnostics.
type Stats struct {
	Turns      int
	Learnings  int
	Episodes   int
	DeadEnds   int
	Heuristics int
}

// Stats reports current session sizes.
func (s *Simulacrum) Stats() Stats {
	hCount, _, _ := s.Procedural.Counts()
	return Stats{
		Turns:      len(s.Working.Turns()),
		Learnings:  len(s.LongTerm.GetActive()),
		Episodes:   len(s.Episodic.Episodes()),
		DeadEnds:   len(s.Episodic.DeadEndIDs()),
		Heuristics: hCount,
	}
}
