package retriever

import (
	"context"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"sunwellmem/internal/focus"
	"sunwellmem/internal/memtypes"
)

func newSources() Sources {
	return Sources{
		Working:    memtypes.NewWorkingMemory(50),
		LongTerm:   memtypes.NewLongTermMemory(),
		Episodic:   memtypes.NewEpisodicMemory(),
		Semantic:   memtypes.NewSemanticMemory(),
		Procedural: memtypes.NewProceduralMemory(),
	}
}

// TestFocusWeightedRetrieval mirrors spec scenario S6: L1 (auth) must
// precede L2 (perf) once focus is explicitly set on "auth".
func TestFocusWeightedRetrieval(t *testing.T) {
	src := newSources()
	src.LongTerm.Store(memtypes.Learning{Fact: "JWT refresh token rotation", Category: "auth"})
	src.LongTerm.Store(memtypes.Learning{Fact: "Redis eviction policies", Category: "perf"})

	f := focus.New()
	f.SetExplicit("auth", 0.8)

	result, err := Retrieve(context.Background(), f, "Which tokens expire?", src)
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Learnings) != 2 {
		t.Fatalf("expected 2 learnings, got %d", len(result.Learnings))
	}
	if result.Learnings[0].Learning.Category != "auth" {
		t.Fatalf("expected auth learning first, got %+v", result.Learnings)
	}

	text := result.ToContext(2000, nil)
	authIdx := strings.Index(text, "JWT refresh")
	perfIdx := strings.Index(text, "Redis eviction")
	if authIdx == -1 || perfIdx == -1 || authIdx > perfIdx {
		t.Fatalf("expected auth learning before perf learning in rendered text:\n%s", text)
	}
	if !strings.Contains(text, "## Learnings") {
		t.Fatalf("expected a Learnings section header, got:\n%s", text)
	}
}

func TestToContextFixedSectionOrder(t *testing.T) {
	src := newSources()
	src.Procedural.AddHeuristic("keep PRs small")
	src.LongTerm.Store(memtypes.Learning{Fact: "uses Go", Category: "project"})
	epID := src.Episodic.AddEpisode(memtypes.Episode{Summary: "tried rewrite", Outcome: memtypes.OutcomeFailed})
	src.Episodic.MarkDeadEnd(epID)
	src.Working.Store(memtypes.Turn{Content: "hello", Kind: memtypes.TurnUser})

	f := focus.New()
	result, err := Retrieve(context.Background(), f, "go project", src)
	if err != nil {
		t.Fatal(err)
	}
	text := result.ToContext(4000, nil)

	order := []string{"## Heuristics", "## Learnings", "## Dead Ends", "## Recent Conversation"}
	lastIdx := -1
	for _, section := range order {
		idx := strings.Index(text, section)
		if idx == -1 {
			t.Fatalf("missing section %q in:\n%s", section, text)
		}
		if idx < lastIdx {
			t.Fatalf("section %q out of order in:\n%s", section, text)
		}
		lastIdx = idx
	}
}

// TestToContextRespectsTightBudget mirrors spec Property 10: the fully
// assembled string's own token count must stay at or under maxTokens, even
// once section headers and the inter-section "\n\n" join are counted —
// not just the sum of each section's rendered body.
func TestToContextRespectsTightBudget(t *testing.T) {
	src := newSources()
	src.Procedural.AddHeuristic("keep PRs small")
	src.Procedural.AddHeuristic("write tests first")
	src.LongTerm.Store(memtypes.Learning{Fact: "uses Go", Category: "project"})
	src.LongTerm.Store(memtypes.Learning{Fact: "uses modules", Category: "project"})
	epID := src.Episodic.AddEpisode(memtypes.Episode{Summary: "tried rewrite", Outcome: memtypes.OutcomeFailed})
	src.Episodic.MarkDeadEnd(epID)
	src.Working.Store(memtypes.Turn{Content: "hello there", Kind: memtypes.TurnUser})

	f := focus.New()
	result, err := Retrieve(context.Background(), f, "go project", src)
	if err != nil {
		t.Fatal(err)
	}

	var tok WhitespaceTokenizer
	for _, budget := range []int{4, 8, 12, 20} {
		text := result.ToContext(budget, tok)
		if got := tok.Count(text); got > budget {
			t.Fatalf("budget %d: assembled context used %d tokens:\n%s", budget, got, text)
		}
	}
}

func TestRetrieveSequentialReturnsAllLearnings(t *testing.T) {
	src := newSources()
	src.LongTerm.Store(memtypes.Learning{Fact: "fact a", Category: "x"})
	src.LongTerm.Store(memtypes.Learning{Fact: "fact b", Category: "y"})

	f := focus.New()
	result := RetrieveSequential(f, "query", src)
	if len(result.Learnings) != 2 {
		t.Fatalf("expected 2 learnings, got %d", len(result.Learnings))
	}
}

// TestRetrieveSequentialMatchesParallelResult verifies the errgroup-based
// fan-out in Retrieve produces the exact same RetrievalResult as the
// sequential fallback, since the two must stay interchangeable (spec
// scenario: a caller may force Parallel=false without changing output).
func TestRetrieveSequentialMatchesParallelResult(t *testing.T) {
	buildSources := func() Sources {
		src := newSources()
		src.LongTerm.Store(memtypes.Learning{Fact: "JWT refresh token rotation", Category: "auth"})
		src.LongTerm.Store(memtypes.Learning{Fact: "Redis eviction policies", Category: "perf"})
		src.Procedural.AddHeuristic("keep PRs small")
		epID := src.Episodic.AddEpisode(memtypes.Episode{Summary: "tried rewrite", Outcome: memtypes.OutcomeFailed})
		src.Episodic.MarkDeadEnd(epID)
		src.Working.Store(memtypes.Turn{Content: "hello", Kind: memtypes.TurnUser})
		return src
	}

	src := buildSources()

	fParallel := focus.New()
	fParallel.SetExplicit("auth", 0.8)
	parallel, err := Retrieve(context.Background(), fParallel, "Which tokens expire?", src)
	if err != nil {
		t.Fatal(err)
	}

	fSequential := focus.New()
	fSequential.SetExplicit("auth", 0.8)
	sequential := RetrieveSequential(fSequential, "Which tokens expire?", src)

	if diff := cmp.Diff(sequential, parallel); diff != "" {
		t.Fatalf("sequential and parallel retrieval diverged (-sequential +parallel):\n%s", diff)
	}
}
