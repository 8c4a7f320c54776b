package lineage

import (
	"context"
	"testing"
)

func TestRecordCreateThenGetByPath(t *testing.T) {
	s := New()
	l, err := s.RecordCreate("src/auth.py", []byte("class Auth: pass"), "g1", "", "Auth module", "m")
	if err != nil {
		t.Fatal(err)
	}
	got, ok := s.GetByPath("src/auth.py")
	if !ok || got.ArtifactID != l.ArtifactID {
		t.Fatalf("expected to resolve src/auth.py to %s, got %+v", l.ArtifactID, got)
	}
	if len(got.Edits) != 1 || got.Edits[0].Kind != EditCreate {
		t.Fatalf("expected one create edit, got %+v", got.Edits)
	}
}

// TestArtifactMoveWithContentPreservation mirrors spec scenario S3.
func TestArtifactMoveWithContentPreservation(t *testing.T) {
	s := New()
	content := []byte("class Auth: pass")

	created, err := s.RecordCreate("src/auth.py", content, "g1", "", "Auth module", "m")
	if err != nil {
		t.Fatal(err)
	}
	idA := created.ArtifactID

	if _, err := s.RecordDelete("src/auth.py", "g2"); err != nil {
		t.Fatal(err)
	}
	if _, ok := s.GetByPath("src/auth.py"); ok {
		t.Fatalf("expected src/auth.py to no longer resolve after delete")
	}

	revived, err := s.RecordCreate("src/auth/main.py", content, "g3", "", "Moved", "m")
	if err != nil {
		t.Fatal(err)
	}
	if revived.ArtifactID != idA {
		t.Fatalf("expected revived artifact id %s, got %s", idA, revived.ArtifactID)
	}
	if revived.CreatedReason != "Moved" {
		t.Fatalf("expected revival to carry the new creation reason, got %q", revived.CreatedReason)
	}
	if revived.CreatedGoalID != "g3" {
		t.Fatalf("expected revival to carry the new creation goal id, got %q", revived.CreatedGoalID)
	}

	got, ok := s.GetByPath("src/auth/main.py")
	if !ok {
		t.Fatalf("expected src/auth/main.py to resolve")
	}
	foundDelete := false
	for _, e := range got.Edits {
		if e.Kind == EditDelete {
			foundDelete = true
		}
	}
	if !foundDelete {
		t.Fatalf("expected delete edit preserved in history, got %+v", got.Edits)
	}
}

func TestRecordEditOnUntrackedPathCreatesExternalLineage(t *testing.T) {
	s := New()
	l, err := s.RecordEdit("vendor/lib.py", "", "", 10, 0, SourceHuman, "", nil)
	if err != nil {
		t.Fatal(err)
	}
	if !l.HumanEdited {
		t.Fatalf("expected human_edited true for untracked-path edit")
	}
	if l.CreatedGoalID != "" {
		t.Fatalf("expected nil origin goal for external lineage, got %q", l.CreatedGoalID)
	}
	if l.CreatedReason != preExistingReason {
		t.Fatalf("expected canned pre-existing reason, got %q", l.CreatedReason)
	}
}

func TestUpdateImportsMaintainsInverseEdges(t *testing.T) {
	s := New()
	if _, err := s.RecordCreate("a.go", []byte("package a"), "", "", "init", ""); err != nil {
		t.Fatal(err)
	}
	if _, err := s.RecordCreate("b.go", []byte("package b"), "", "", "init", ""); err != nil {
		t.Fatal(err)
	}
	if _, err := s.RecordCreate("c.go", []byte("package c"), "", "", "init", ""); err != nil {
		t.Fatal(err)
	}

	if err := s.UpdateImports("a.go", []string{"b.go", "c.go"}); err != nil {
		t.Fatal(err)
	}
	if deps := s.GetDependents("b.go"); len(deps) != 1 || deps[0] != "a.go" {
		t.Fatalf("expected b.go imported_by [a.go], got %+v", deps)
	}

	if err := s.UpdateImports("a.go", []string{"b.go"}); err != nil {
		t.Fatal(err)
	}
	if deps := s.GetDependents("c.go"); len(deps) != 0 {
		t.Fatalf("expected c.go inverse edge removed, got %+v", deps)
	}
	if deps := s.GetDependents("b.go"); len(deps) != 1 {
		t.Fatalf("expected b.go inverse edge retained, got %+v", deps)
	}
}

func TestImpactBFSHandlesCycles(t *testing.T) {
	s := New()
	for _, p := range []string{"a.go", "b.go", "c.go"} {
		if _, err := s.RecordCreate(p, []byte(p), "g-"+p, "", "init", ""); err != nil {
			t.Fatal(err)
		}
	}
	// Cycle over imported_by edges: a is imported by b, b by c, c by a.
	if err := s.AddImportedBy("a.go", "b.go"); err != nil {
		t.Fatal(err)
	}
	if err := s.AddImportedBy("b.go", "c.go"); err != nil {
		t.Fatal(err)
	}
	if err := s.AddImportedBy("c.go", "a.go"); err != nil {
		t.Fatal(err)
	}

	impact := s.Impact(context.Background(), "a.go")
	if impact.MaxDepth == 0 {
		t.Fatalf("expected nonzero max depth, got %+v", impact)
	}
	if len(impact.AffectedFiles) != 2 {
		t.Fatalf("expected 2 affected files (b.go, c.go) despite cycle, got %+v", impact.AffectedFiles)
	}
}

func TestGetByGoalIncludesCreationAndEditGoals(t *testing.T) {
	s := New()
	if _, err := s.RecordCreate("x.go", []byte("x"), "g1", "", "init", ""); err != nil {
		t.Fatal(err)
	}
	if _, err := s.RecordEdit("x.go", "g2", "", 1, 0, SourceSunwell, "", nil); err != nil {
		t.Fatal(err)
	}
	matches := s.GetByGoal("g2")
	if len(matches) != 1 || matches[0].Path != "x.go" {
		t.Fatalf("expected x.go to match goal g2 via edit, got %+v", matches)
	}
}
