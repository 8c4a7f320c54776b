// Package decisions implements the decision memory (spec §4.13): an
// append-only log of architectural/design decisions plus an optional
// embedding sidecar for relevance search and a contradiction checker.
package decisions

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"sunwellmem/internal/embedding"
	"sunwellmem/internal/identity"
	"sunwellmem/internal/logging"
)

// RejectedOption is one option considered and turned down in favor of a
// decision's Choice, grounded on
// `_examples/original_source/src/sunwell/intelligence/decisions.py`'s
// `RejectedOption` dataclass (`option`, `reason`, `might_reconsider_when`).
type RejectedOption struct {
	Option              string `json:"option"`
	Reason              string `json:"reason,omitempty"`
	MightReconsiderWhen string `json:"might_reconsider_when,omitempty"`
}

// Decision is one recorded choice, grounded on spec §4.13's field list and
// on the naming conventions of a Go-native decision record from the
// retrieval pack (ID/Category/Confidence/SupersedesID-style fields).
type Decision struct {
	ID         string           `json:"id"`
	Category   string           `json:"category"`
	Question   string           `json:"question"`
	Choice     string           `json:"choice"`
	Rejected   []RejectedOption `json:"rejected,omitempty"`
	Rationale  string           `json:"rationale,omitempty"`
	Context    string           `json:"context,omitempty"`
	SessionID  string           `json:"session_id,omitempty"`
	Confidence float64          `json:"confidence"`
	Supersedes string           `json:"supersedes,omitempty"`
	CreatedAt  time.Time        `json:"created_at"`
}

// Store is the decision memory: an append-only log plus an optional
// embedding sidecar. Supersession is tracked by the store, not the record
// itself — a decision never knows about its successor.
type Store struct {
	mu sync.RWMutex

	path         string
	embedPath    string
	decisions    map[string]Decision
	order        []string
	supersededBy map[string]string // id -> id of the decision that superseded it

	embedder    embedding.Embedder
	embeddings  map[string][]float32 // id -> embedding of the rendered text form

	pairs []exclusivePair
}

// exclusivePair names two choice tokens that are mutually exclusive within
// a category (spec §4.13: "a known mutually-exclusive pair set").
type exclusivePair struct{ a, b string }

// defaultExclusivePairs seeds the common architecture-decision tradeoffs
// named directly in spec §4.13.
var defaultExclusivePairs = []exclusivePair{
	{"sqlite", "postgres"},
	{"sqlite", "postgresql"},
	{"sync", "async"},
	{"rest", "grpc"},
	{"monolith", "microservices"},
	{"pull", "push"},
}

// New returns an empty, non-persisting decision store.
func New(embedder embedding.Embedder) *Store {
	return &Store{
		decisions:    map[string]Decision{},
		supersededBy: map[string]string{},
		embeddings:   map[string][]float32{},
		embedder:     embedder,
		pairs:        append([]exclusivePair{}, defaultExclusivePairs...),
	}
}

// Open loads a decision store backed by an append-only decisions.jsonl file
// at path, plus an optional decisions_embeddings.json sidecar alongside it.
func Open(path string, embedder embedding.Embedder) (*Store, error) {
	s := New(embedder)
	s.path = path
	s.embedPath = filepath.Join(filepath.Dir(path), "decisions_embeddings.json")

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, fmt.Errorf("decisions: open %s: %w", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var d Decision
		if err := json.Unmarshal(line, &d); err != nil {
			logging.Get(logging.CategoryDecisions).Warn("decisions: skipped malformed line: %v", err)
			continue
		}
		s.indexLocked(d)
	}

	if data, err := os.ReadFile(s.embedPath); err == nil {
		var sidecar map[string][]float32
		if err := json.Unmarshal(data, &sidecar); err == nil {
			s.embeddings = sidecar
		}
	}

	return s, nil
}

func (s *Store) indexLocked(d Decision) {
	if _, exists := s.decisions[d.ID]; !exists {
		s.order = append(s.order, d.ID)
	}
	s.decisions[d.ID] = d
	if d.Supersedes != "" {
		s.supersededBy[d.Supersedes] = d.ID
	}
}

// rejectedOptionNames renders just the option tokens, for the embeddable
// text form (spec §4.13's template only names what was rejected, not why).
func rejectedOptionNames(rejected []RejectedOption) string {
	names := make([]string, len(rejected))
	for i, r := range rejected {
		names[i] = r.Option
	}
	return strings.Join(names, ", ")
}

// renderText builds the embeddable text form of a decision (spec §4.13's
// exact template).
func renderText(d Decision) string {
	return fmt.Sprintf("Category: %s / Question: %s / Choice: %s / Rationale: %s / Rejected: %s",
		d.Category, d.Question, d.Choice, d.Rationale, rejectedOptionNames(d.Rejected))
}

// Record stores a decision, assigning a deterministic id from
// category/question/choice. Re-recording an identical decision (same id,
// already present) is a no-op that returns the existing record.
func (s *Store) Record(ctx context.Context, category, question, choice string, rejected []RejectedOption, rationale, contextText, sessionID string, confidence float64, supersedes string) (Decision, error) {
	id := identity.DecisionID(category, question, choice)

	s.mu.Lock()
	if existing, ok := s.decisions[id]; ok {
		s.mu.Unlock()
		return existing, nil
	}
	s.mu.Unlock()

	d := Decision{
		ID: id, Category: category, Question: question, Choice: choice,
		Rejected: rejected, Rationale: rationale, Context: contextText,
		SessionID: sessionID, Confidence: confidence, Supersedes: supersedes,
		CreatedAt: time.Now(),
	}

	s.mu.Lock()
	s.indexLocked(d)
	s.mu.Unlock()

	if err := s.appendLine(d); err != nil {
		return Decision{}, err
	}

	if s.embedder != nil {
		vec, err := s.embedder.Embed(ctx, renderText(d))
		if err != nil {
			logging.Get(logging.CategoryDecisions).Warn("decisions: embed %s failed: %v", id, err)
		} else {
			s.mu.Lock()
			s.embeddings[id] = vec
			s.mu.Unlock()
			if err := s.saveEmbeddings(); err != nil {
				logging.Get(logging.CategoryDecisions).Warn("decisions: save embeddings sidecar: %v", err)
			}
		}
	}

	return d, nil
}

func (s *Store) appendLine(d Decision) error {
	if s.path == "" {
		return nil
	}
	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0644)
	if err != nil {
		return fmt.Errorf("decisions: open for append: %w", err)
	}
	defer f.Close()

	data, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("decisions: marshal: %w", err)
	}
	data = append(data, '\n')
	_, err = f.Write(data)
	return err
}

func (s *Store) saveEmbeddings() error {
	if s.embedPath == "" {
		return nil
	}
	s.mu.RLock()
	data, err := json.Marshal(s.embeddings)
	s.mu.RUnlock()
	if err != nil {
		return err
	}
	return os.WriteFile(s.embedPath, data, 0644)
}

// Get returns decisions filtered by category (all categories if empty),
// excluding superseded records when activeOnly is set.
func (s *Store) Get(category string, activeOnly bool) []Decision {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Decision
	for _, id := range s.order {
		d := s.decisions[id]
		if category != "" && d.Category != category {
			continue
		}
		if activeOnly {
			if _, superseded := s.supersededBy[d.ID]; superseded {
				continue
			}
		}
		out = append(out, d)
	}
	return out
}

// ScoredDecision is one FindRelevant result.
type ScoredDecision struct {
	Decision Decision
	Score    float64
}

// FindRelevant ranks decisions against query: cosine similarity over the
// embedding sidecar when available, otherwise a keyword-overlap fallback
// over each decision's rendered text form.
func (s *Store) FindRelevant(ctx context.Context, query string, k int) ([]ScoredDecision, error) {
	s.mu.RLock()
	all := make([]Decision, len(s.order))
	for i, id := range s.order {
		all[i] = s.decisions[id]
	}
	hasEmbeddings := len(s.embeddings) > 0 && s.embedder != nil
	s.mu.RUnlock()

	var scored []ScoredDecision
	if hasEmbeddings {
		qvec, err := s.embedder.Embed(ctx, query)
		if err != nil {
			return nil, fmt.Errorf("decisions: embed query: %w", err)
		}
		for _, d := range all {
			s.mu.RLock()
			vec, ok := s.embeddings[d.ID]
			s.mu.RUnlock()
			if !ok {
				continue
			}
			sim, err := embedding.CosineSimilarity(qvec, vec)
			if err != nil {
				continue
			}
			scored = append(scored, ScoredDecision{Decision: d, Score: sim})
		}
	} else {
		queryTokens := tokenize(query)
		for _, d := range all {
			scored = append(scored, ScoredDecision{Decision: d, Score: keywordOverlap(queryTokens, tokenize(renderText(d)))})
		}
	}

	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	if k > 0 && len(scored) > k {
		scored = scored[:k]
	}
	return scored, nil
}

func tokenize(text string) map[string]bool {
	out := map[string]bool{}
	for _, f := range strings.Fields(strings.ToLower(text)) {
		out[strings.Trim(f, ".,;:!?()")] = true
	}
	return out
}

func keywordOverlap(a, b map[string]bool) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	overlap := 0
	for tok := range a {
		if b[tok] {
			overlap++
		}
	}
	return float64(overlap) / float64(len(a))
}

// mentionsToken reports whether text contains token case-insensitively,
// since a choice string ("use sqlite for the cache layer") contains the
// bare pair token ("sqlite") rather than matching it exactly.
func mentionsToken(text, token string) bool {
	return strings.Contains(strings.ToLower(text), strings.ToLower(token))
}

// CheckContradiction detects whether proposedChoice conflicts with an
// existing active decision in category: either the proposed choice mentions
// something an existing decision rejected, or the proposed choice and an
// existing choice are drawn from a known mutually-exclusive pair. Returns
// the conflicting decision, or false if none found.
func (s *Store) CheckContradiction(proposedChoice, category string) (Decision, bool) {
	for _, d := range s.Get(category, true) {
		for _, rejected := range d.Rejected {
			if mentionsToken(proposedChoice, rejected.Option) {
				return d, true
			}
		}
		for _, pair := range s.pairs {
			if (mentionsToken(proposedChoice, pair.a) && mentionsToken(d.Choice, pair.b)) ||
				(mentionsToken(proposedChoice, pair.b) && mentionsToken(d.Choice, pair.a)) {
				return d, true
			}
		}
	}
	return Decision{}, false
}
