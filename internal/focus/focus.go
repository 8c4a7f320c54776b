// Package focus implements the weighted-attention model (spec §4.2) that
// biases memory retrieval toward the agent's current topics without
// re-ranking every record on every query.
package focus

import (
	"strings"
	"unicode"
)

// DefaultDecay is the fraction a non-explicit topic's weight is multiplied
// by on each update_from_query call that does not re-mention it.
const DefaultDecay = 0.9

// DefaultInitialWeight is the weight assigned to a topic the first time it
// is seen in a query.
const DefaultInitialWeight = 0.5

// Focus is a weighted {topic -> weight} map plus an explicit-set mask of
// topics that are pinned (set_explicit) and therefore skip decay.
type Focus struct {
	weights  map[string]float64
	explicit map[string]bool
	decay    float64
}

// New returns an empty Focus using DefaultDecay.
func New() *Focus {
	return &Focus{weights: map[string]float64{}, explicit: map[string]bool{}, decay: DefaultDecay}
}

// NewWithDecay returns an empty Focus with a caller-supplied decay factor.
func NewWithDecay(decay float64) *Focus {
	return &Focus{weights: map[string]float64{}, explicit: map[string]bool{}, decay: decay}
}

// tokenize lower-cases and splits on non-letter/digit runes, dropping empty
// and single-character tokens. No third-party tokenizer is warranted for
// this — see DESIGN.md.
func tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if len(f) > 1 {
			out = append(out, f)
		}
	}
	return out
}

// UpdateFromQuery tokenizes text, adds new topics at DefaultInitialWeight,
// and decays every existing non-explicit topic that text does not mention
// by the configured factor; existing topics that text mentions again are
// reinforced instead. Explicit topics are immune to decay (spec invariant:
// "Explicit topics skip decay").
func (f *Focus) UpdateFromQuery(text string) {
	seen := map[string]bool{}
	added := map[string]bool{}
	for _, tok := range tokenize(text) {
		seen[tok] = true
		if _, ok := f.weights[tok]; !ok {
			f.weights[tok] = DefaultInitialWeight
			added[tok] = true
		}
	}
	for topic := range f.weights {
		if f.explicit[topic] || added[topic] {
			continue
		}
		if seen[topic] {
			// Re-mentioned topics are reinforced rather than decayed: bump
			// toward 1.0 without exceeding it.
			f.weights[topic] = f.weights[topic] + (1-f.weights[topic])*(1-f.decay)
			continue
		}
		f.weights[topic] *= f.decay
	}
}

// SetExplicit pins a topic at the given weight, exempting it from decay
// until cleared.
func (f *Focus) SetExplicit(topic string, weight float64) {
	topic = strings.ToLower(topic)
	f.weights[topic] = weight
	f.explicit[topic] = true
}

// ClearExplicit releases a pinned topic back to normal decay (its current
// weight is preserved).
func (f *Focus) ClearExplicit(topic string) {
	delete(f.explicit, strings.ToLower(topic))
}

// ClearAll resets the focus to empty.
func (f *Focus) ClearAll() {
	f.weights = map[string]float64{}
	f.explicit = map[string]bool{}
}

// Weight returns the current weight of a topic (0 if absent).
func (f *Focus) Weight(topic string) float64 {
	return f.weights[strings.ToLower(topic)]
}

// IsExplicit reports whether a topic is currently pinned.
func (f *Focus) IsExplicit(topic string) bool {
	return f.explicit[strings.ToLower(topic)]
}

// ActiveTopics returns topics whose weight is strictly above threshold, in
// no particular order (callers sort if order matters).
func (f *Focus) ActiveTopics(threshold float64) []string {
	out := make([]string, 0, len(f.weights))
	for topic, w := range f.weights {
		if w > threshold {
			out = append(out, topic)
		}
	}
	return out
}

// Scorable is anything Score can evaluate: content text plus any category
// and facet strings that should also contribute topic matches.
type Scorable struct {
	Content string
	Extra   []string // category, facet values, etc.
}

// Score sums, for every active-focus topic found in the record's content or
// extras, that topic's weight. Deterministic and monotonic in weight: a
// record that mentions a higher-weighted topic always scores at least as
// high as the same record scored against a lower-weighted version of that
// topic, all else equal.
func (f *Focus) Score(rec Scorable) float64 {
	haystacks := make([]string, 0, 1+len(rec.Extra))
	haystacks = append(haystacks, strings.ToLower(rec.Content))
	for _, e := range rec.Extra {
		haystacks = append(haystacks, strings.ToLower(e))
	}

	var score float64
	for topic, weight := range f.weights {
		for _, h := range haystacks {
			if strings.Contains(h, topic) {
				score += weight
				break
			}
		}
	}
	return score
}

// ScoreText is a variadic convenience wrapper around Score, letting callers
// outside this package (the memory kinds, via memtypes.FocusScorer) avoid
// constructing a Scorable by hand.
func (f *Focus) ScoreText(content string, extra ...string) float64 {
	return f.Score(Scorable{Content: content, Extra: extra})
}
