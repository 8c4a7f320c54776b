// Package retriever implements the focus-weighted parallel retriever (spec
// §4.6): five bounded concurrent queries over the simulacrum's memory
// kinds, merged into a single RetrievalResult and rendered to a
// token-budgeted context string.
package retriever

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"sunwellmem/internal/focus"
	"sunwellmem/internal/logging"
	"sunwellmem/internal/memtypes"
)

// ScoredLearning pairs a learning with its retrieval score.
type ScoredLearning struct {
	Learning memtypes.Learning
	Score    float64
}

// ScoredEpisode pairs an episode with its retrieval score.
type ScoredEpisode struct {
	Episode memtypes.Episode
	Score   float64
}

// ScoredTurn pairs a turn with its retrieval score.
type ScoredTurn struct {
	Turn  memtypes.Turn
	Score float64
}

// RetrievalResult is the merged output of one assemble-context call.
type RetrievalResult struct {
	Learnings   []ScoredLearning
	Episodes    []ScoredEpisode
	Turns       []ScoredTurn
	Heuristics  []memtypes.Heuristic
	FocusTopics []string
}

// Sources groups the five concrete memory kinds the retriever fans out
// over. The retriever works with concrete types rather than a fully generic
// Queryable-only interface (mirroring the original ParallelRetriever, which
// also takes named working/long_term/episodic/semantic/procedural
// arguments) so it can resolve Hit ids back into full records via each
// kind's typed accessor without a type-switch.
type Sources struct {
	Working    *memtypes.WorkingMemory
	LongTerm   *memtypes.LongTermMemory
	Episodic   *memtypes.EpisodicMemory
	Semantic   *memtypes.SemanticMemory
	Procedural *memtypes.ProceduralMemory
}

const (
	defaultLearningsLimit  = 15
	defaultEpisodesLimit   = 5
	defaultTurnsLimit      = 10
	defaultHeuristicsLimit = 15
)

// Retrieve runs the five memory-kind queries concurrently via errgroup,
// cancelling the remaining queries if one fails, and merges the results.
// The individual per-kind limits mirror the sequential fallback's
// historical slice sizes (15 learnings, 5 episodes, 10 turns, 15
// heuristics).
func Retrieve(ctx context.Context, f *focus.Focus, query string, src Sources) (RetrievalResult, error) {
	f.UpdateFromQuery(query)

	var (
		learnings  []ScoredLearning
		episodes   []ScoredEpisode
		turns      []ScoredTurn
		heuristics []memtypes.Heuristic
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		hits := src.LongTerm.Query(f, query, defaultLearningsLimit)
		for _, h := range hits {
			if l, ok := src.LongTerm.GetLearning(h.ID); ok {
				learnings = append(learnings, ScoredLearning{Learning: l, Score: h.Score})
			}
		}
		return gctx.Err()
	})

	g.Go(func() error {
		hits := src.Episodic.Query(f, query, defaultEpisodesLimit)
		for _, h := range hits {
			if e, ok := src.Episodic.GetEpisode(h.ID); ok {
				episodes = append(episodes, ScoredEpisode{Episode: e, Score: h.Score})
			}
		}
		return gctx.Err()
	})

	g.Go(func() error {
		hits := src.Working.Query(f, query, defaultTurnsLimit)
		for _, h := range hits {
			if t, ok := src.Working.GetTurn(h.ID); ok {
				turns = append(turns, ScoredTurn{Turn: t, Score: h.Score})
			}
		}
		return gctx.Err()
	})

	g.Go(func() error {
		// Semantic memory is queried alongside the other kinds, but its hits
		// are discarded: RetrievalResult has no semantic field and ToContext
		// renders no semantic section.
		src.Semantic.Query(f, query, defaultLearningsLimit)
		return gctx.Err()
	})

	g.Go(func() error {
		hits := src.Procedural.Query(f, query, defaultHeuristicsLimit)
		for _, h := range hits {
			if heur, ok := src.Procedural.GetHeuristic(h.ID); ok {
				heuristics = append(heuristics, heur)
			}
		}
		return gctx.Err()
	})

	if err := g.Wait(); err != nil {
		return RetrievalResult{}, fmt.Errorf("retriever: parallel fan-out: %w", err)
	}

	sort.SliceStable(learnings, func(i, j int) bool { return learnings[i].Score > learnings[j].Score })
	sort.SliceStable(episodes, func(i, j int) bool { return episodes[i].Score > episodes[j].Score })
	sort.SliceStable(turns, func(i, j int) bool { return turns[i].Score > turns[j].Score })

	topics := f.ActiveTopics(0)
	sort.Strings(topics)

	return RetrievalResult{
		Learnings:   learnings,
		Episodes:    episodes,
		Turns:       turns,
		Heuristics:  heuristics,
		FocusTopics: topics,
	}, nil
}

// RetrieveSequential is the non-concurrent fallback named in spec §4.7
// ("assemble_context(..., parallel=true)... or a sequential fallback for
// debugging"). It performs the same queries one at a time, except the
// semantic query whose hits Retrieve discards, useful when diagnosing a
// result that looks wrong under concurrency.
func RetrieveSequential(f *focus.Focus, query string, src Sources) RetrievalResult {
	f.UpdateFromQuery(query)

	var result RetrievalResult
	for _, h := range src.LongTerm.Query(f, query, defaultLearningsLimit) {
		if l, ok := src.LongTerm.GetLearning(h.ID); ok {
			result.Learnings = append(result.Learnings, ScoredLearning{Learning: l, Score: h.Score})
		}
	}
	for _, h := range src.Episodic.Query(f, query, defaultEpisodesLimit) {
		if e, ok := src.Episodic.GetEpisode(h.ID); ok {
			result.Episodes = append(result.Episodes, ScoredEpisode{Episode: e, Score: h.Score})
		}
	}
	for _, h := range src.Working.Query(f, query, defaultTurnsLimit) {
		if t, ok := src.Working.GetTurn(h.ID); ok {
			result.Turns = append(result.Turns, ScoredTurn{Turn: t, Score: h.Score})
		}
	}
	for _, h := range src.Procedural.Query(f, query, defaultHeuristicsLimit) {
		if heur, ok := src.Procedural.GetHeuristic(h.ID); ok {
			result.Heuristics = append(result.Heuristics, heur)
		}
	}
	result.FocusTopics = f.ActiveTopics(0)
	sort.Strings(result.FocusTopics)
	return result
}

// Tokenizer counts tokens in a rendered section so ToContext can enforce a
// token budget. Callers without a real tokenizer use WhitespaceTokenizer.
type Tokenizer interface {
	Count(text string) int
}

// WhitespaceTokenizer counts whitespace-separated words as a fallback token
// count (spec §4.6: "an implementation-supplied fallback uses
// whitespace-word count").
type WhitespaceTokenizer struct{}

func (WhitespaceTokenizer) Count(text string) int {
	return len(strings.Fields(text))
}

// sectionBudget is one of the four fixed-order context sections.
type sectionBudget struct {
	title  string
	render func(budget int) string
}

// ToContext renders the result to a string with a fixed section order
// (procedural → long-term → episodic → working) and a fair token budget:
// each section gets an equal share of maxTokens, and any section that uses
// less than its share donates the remainder to the sections that follow.
func (r RetrievalResult) ToContext(maxTokens int, tok Tokenizer) string {
	if tok == nil {
		tok = WhitespaceTokenizer{}
	}
	sections := []sectionBudget{
		{title: "Heuristics", render: func(budget int) string { return renderHeuristics(r.Heuristics, budget, tok) }},
		{title: "Learnings", render: func(budget int) string { return renderLearnings(r.Learnings, budget, tok) }},
		{title: "Dead Ends", render: func(budget int) string { return renderEpisodes(r.Episodes, budget, tok) }},
		{title: "Recent Conversation", render: func(budget int) string { return renderTurns(r.Turns, budget, tok) }},
	}

	share := maxTokens / len(sections)
	remainder := 0
	var parts []string

	// Section headers and the "\n\n" join between sections are themselves
	// tokens under tok; charging only each section's rendered body against
	// the budget (as a prior version of this function did) lets the final
	// joined string exceed maxTokens once headers/separators are counted.
	// Reserving their cost up front keeps the whole assembled string within
	// budget (spec §4.6 Property 10).
	for _, sec := range sections {
		sectionShare := share + remainder
		header := "## " + sec.title + "\n"
		overhead := tok.Count(header)
		if len(parts) > 0 {
			overhead += tok.Count("\n\n")
		}
		bodyBudget := sectionShare - overhead
		if bodyBudget < 0 {
			bodyBudget = 0
		}

		rendered := sec.render(bodyBudget)
		if rendered == "" {
			remainder = sectionShare
			continue
		}

		consumed := overhead + tok.Count(rendered)
		if consumed < sectionShare {
			remainder = sectionShare - consumed
		} else {
			remainder = 0
		}
		parts = append(parts, header+rendered)
	}

	logging.RetrieverDebug("assembled context: %d sections, budget=%d", len(parts), maxTokens)
	return strings.Join(parts, "\n\n")
}

func renderHeuristics(heuristics []memtypes.Heuristic, budget int, tok Tokenizer) string {
	var b strings.Builder
	used := 0
	for _, h := range heuristics {
		line := "- " + h.Text + "\n"
		if used+tok.Count(line) > budget {
			break
		}
		used += tok.Count(line)
		b.WriteString(line)
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderLearnings(learnings []ScoredLearning, budget int, tok Tokenizer) string {
	var b strings.Builder
	used := 0
	for _, l := range learnings {
		line := fmt.Sprintf("- [%s] %s\n", l.Learning.Category, l.Learning.Fact)
		if used+tok.Count(line) > budget {
			break
		}
		used += tok.Count(line)
		b.WriteString(line)
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderEpisodes(episodes []ScoredEpisode, budget int, tok Tokenizer) string {
	var b strings.Builder
	used := 0
	for _, e := range episodes {
		line := fmt.Sprintf("- %s\n", e.Episode.Summary)
		if used+tok.Count(line) > budget {
			break
		}
		used += tok.Count(line)
		b.WriteString(line)
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderTurns(turns []ScoredTurn, budget int, tok Tokenizer) string {
	var b strings.Builder
	used := 0
	for _, t := range turns {
		role := "User"
		if t.Turn.Kind != memtypes.TurnUser {
			role = "Assistant"
		}
		line := fmt.Sprintf("**%s**: %s\n", role, t.Turn.Content)
		if used+tok.Count(line) > budget {
			break
		}
		used += tok.Count(line)
		b.WriteString(line)
	}
	return strings.TrimRight(b.String(), "\n")
}
