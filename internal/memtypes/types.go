// Package memtypes defines the entity types shared by the simulacrum's five
// memory kinds and the parallel retriever: Turn, Learning, Episode, and the
// Queryable shape every kind implements (spec §3, §9 design note).
package memtypes

import "time"

// TurnKind classifies one conversational unit.
type TurnKind string

const (
	TurnUser       TurnKind = "user"
	TurnAssistant  TurnKind = "assistant"
	TurnToolResult TurnKind = "tool_result"
	TurnThought    TurnKind = "thought"
)

// Turn is one conversational unit. Created by callers, never mutated.
type Turn struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	Kind      TurnKind  `json:"turn_type"`
	Timestamp time.Time `json:"timestamp"`
	Model     string    `json:"model,omitempty"`
	Embedding []float32 `json:"embedding,omitempty"`
}

// Learning is an atomic fact the agent has acquired. Immutable once written;
// correction is modeled by a new Learning whose Supersedes points back, with
// SupersededBy set on the old record once the replacement is written.
type Learning struct {
	ID           string            `json:"id"`
	Fact         string            `json:"fact"`
	Category     string            `json:"category"`
	Confidence   float64           `json:"confidence"`
	SourceTurns  []string          `json:"source_turns,omitempty"`
	SourceFile   string            `json:"source_file,omitempty"`
	Supersedes   string            `json:"supersedes,omitempty"`
	SupersededBy string            `json:"superseded_by,omitempty"`
	Embedding    []float32         `json:"embedding,omitempty"`
	TemplateData map[string]string `json:"template_data,omitempty"`
	CreatedAt    time.Time         `json:"timestamp"`
}

// Active reports whether this learning has not been superseded.
func (l Learning) Active() bool {
	return l.SupersededBy == ""
}

// EpisodeOutcome classifies how an attempted approach concluded.
type EpisodeOutcome string

const (
	OutcomeSucceeded EpisodeOutcome = "succeeded"
	OutcomeFailed    EpisodeOutcome = "failed"
	OutcomePartial   EpisodeOutcome = "partial"
)

// Episode is an attempted approach, created when a workflow concludes.
type Episode struct {
	ID         string         `json:"id"`
	Summary    string         `json:"summary"`
	Outcome    EpisodeOutcome `json:"outcome"`
	Timestamp  time.Time      `json:"timestamp"`
	ModelsUsed []string       `json:"models_used,omitempty"`
	TurnCount  int            `json:"turn_count"`
}

// Hit is one scored result from a Queryable.Query call: just enough to rank
// and then resolve against the owning memory kind's typed accessor.
type Hit struct {
	ID    string
	Score float64
}

// Queryable is the shared shape of the five memory kinds (spec §9: "model
// as a small interface with per-kind implementations rather than a class
// hierarchy"). The parallel retriever additionally uses each kind's own
// typed accessors to resolve Hit.ID into full records; Queryable alone only
// needs to rank candidates.
type Queryable interface {
	// Query scores this kind's records against text under the given focus,
	// returning at most limit hits sorted by score descending.
	Query(focus FocusScorer, text string, limit int) []Hit

	// Summarize renders a best-effort textual summary of this kind's
	// current contents bounded to roughly maxTokens (whitespace-word
	// count unless the caller's tokenizer says otherwise).
	Summarize(maxTokens int) string
}

// FocusScorer is the subset of internal/focus.Focus the memory kinds need
// (its ScoreText method), kept as a narrow interface here so memtypes does
// not import internal/focus and create a cycle with packages that already
// depend on memtypes.
type FocusScorer interface {
	ScoreText(content string, extra ...string) float64
}
