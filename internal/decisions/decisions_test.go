package decisions

import (
	"context"
	"testing"
)

func TestRecordIsIdempotentForIdenticalDecision(t *testing.T) {
	s := New(nil)
	ctx := context.Background()

	d1, err := s.Record(ctx, "storage", "which db?", "sqlite", nil, "simpler ops", "", "sess1", 0.9, "")
	if err != nil {
		t.Fatal(err)
	}
	d2, err := s.Record(ctx, "storage", "which db?", "sqlite", nil, "different rationale text", "", "sess2", 0.5, "")
	if err != nil {
		t.Fatal(err)
	}
	if d1.ID != d2.ID {
		t.Fatalf("expected identical category/question/choice to yield same id, got %s != %s", d1.ID, d2.ID)
	}
	if d2.Rationale != d1.Rationale {
		t.Fatalf("expected re-record to be a no-op, got rationale changed to %q", d2.Rationale)
	}
	if len(s.Get("storage", true)) != 1 {
		t.Fatalf("expected exactly 1 decision stored, got %d", len(s.Get("storage", true)))
	}
}

func TestGetExcludesSuperseded(t *testing.T) {
	s := New(nil)
	ctx := context.Background()

	old, err := s.Record(ctx, "storage", "which db?", "sqlite", nil, "simpler ops", "", "", 0.6, "")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Record(ctx, "storage", "which db at scale?", "postgres", []RejectedOption{{Option: "sqlite", Reason: "too much complexity at scale"}}, "needed concurrent writes", "", "", 0.9, old.ID); err != nil {
		t.Fatal(err)
	}

	active := s.Get("storage", true)
	if len(active) != 1 || active[0].Choice != "postgres" {
		t.Fatalf("expected only the superseding decision active, got %+v", active)
	}
	all := s.Get("storage", false)
	if len(all) != 2 {
		t.Fatalf("expected both decisions when active_only=false, got %d", len(all))
	}
}

func TestCheckContradictionDetectsRejectedMention(t *testing.T) {
	s := New(nil)
	ctx := context.Background()
	if _, err := s.Record(ctx, "storage", "which db?", "postgres", []RejectedOption{{Option: "sqlite", Reason: "needed concurrency"}}, "needed concurrency", "", "", 0.9, ""); err != nil {
		t.Fatal(err)
	}

	conflict, found := s.CheckContradiction("let's use sqlite for speed", "storage")
	if !found {
		t.Fatalf("expected contradiction against rejected choice sqlite")
	}
	if conflict.Choice != "postgres" {
		t.Fatalf("expected conflicting decision to be the postgres one, got %+v", conflict)
	}
	if conflict.Rejected[0].Reason != "needed concurrency" {
		t.Fatalf("expected rejected option's reason to be preserved, got %+v", conflict.Rejected)
	}
}

func TestCheckContradictionDetectsMutuallyExclusivePair(t *testing.T) {
	s := New(nil)
	ctx := context.Background()
	if _, err := s.Record(ctx, "concurrency", "sync or async?", "use async handlers", nil, "", "", "", 0.8, ""); err != nil {
		t.Fatal(err)
	}

	_, found := s.CheckContradiction("switch to sync processing", "concurrency")
	if !found {
		t.Fatalf("expected sync/async to be detected as a mutually-exclusive pair")
	}
}

func TestFindRelevantKeywordFallback(t *testing.T) {
	s := New(nil)
	ctx := context.Background()
	if _, err := s.Record(ctx, "auth", "token rotation?", "rotate JWTs every 24h", nil, "security", "", "", 0.9, ""); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Record(ctx, "perf", "cache eviction?", "use LRU", nil, "", "", "", 0.7, ""); err != nil {
		t.Fatal(err)
	}

	results, err := s.FindRelevant(ctx, "JWT rotation token", 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) == 0 || results[0].Decision.Category != "auth" {
		t.Fatalf("expected auth decision ranked first, got %+v", results)
	}
}
