package memtypes

import (
	"testing"

	"sunwellmem/internal/focus"
)

func TestWorkingMemoryEvictsOldestUnpinned(t *testing.T) {
	w := NewWorkingMemory(2)
	first := w.Store(Turn{Content: "one"})
	w.Pin(first)
	w.Store(Turn{Content: "two"})
	w.Store(Turn{Content: "three"})

	turns := w.Turns()
	if len(turns) != 2 {
		t.Fatalf("expected 2 turns after eviction, got %d", len(turns))
	}
	if _, ok := w.GetTurn(first); !ok {
		t.Fatal("expected pinned turn to survive eviction")
	}
}

func TestLongTermMemoryFiltersSuperseded(t *testing.T) {
	lt := NewLongTermMemory()
	oldID := lt.Store(Learning{Fact: "uses postgres", Category: "project"})
	newID := lt.Store(Learning{Fact: "uses sqlite", Category: "project", Supersedes: oldID})
	lt.Supersede(oldID, newID)

	active := lt.GetActive()
	if len(active) != 1 || active[0].ID != newID {
		t.Fatalf("expected only the superseding learning active, got %+v", active)
	}
}

func TestEpisodicMemoryDeadEnds(t *testing.T) {
	ep := NewEpisodicMemory()
	id := ep.AddEpisode(Episode{Summary: "tried X", Outcome: OutcomeFailed})
	ep.MarkDeadEnd(id)

	deadEnds := ep.GetDeadEnds()
	if len(deadEnds) != 1 || deadEnds[0].ID != id {
		t.Fatalf("expected dead end to be returned, got %+v", deadEnds)
	}
}

func TestLongTermMemoryQueryRanksByFocus(t *testing.T) {
	lt := NewLongTermMemory()
	authID := lt.Store(Learning{Fact: "JWT refresh token rotation", Category: "auth"})
	perfID := lt.Store(Learning{Fact: "Redis eviction policies", Category: "perf"})

	f := focus.New()
	f.SetExplicit("auth", 0.8)

	hits := lt.Query(f, "", 10)
	if len(hits) != 2 || hits[0].ID != authID || hits[1].ID != perfID {
		t.Fatalf("expected auth learning ranked first, got %+v (perf=%s)", hits, perfID)
	}
}

func TestProceduralMemoryHeuristicRoundTrip(t *testing.T) {
	pm := NewProceduralMemory()
	id := pm.AddHeuristic("prefer small PRs")
	h, ok := pm.GetHeuristic(id)
	if !ok || h.Text != "prefer small PRs" {
		t.Fatalf("GetHeuristic(%s) = %+v, %v", id, h, ok)
	}
}
