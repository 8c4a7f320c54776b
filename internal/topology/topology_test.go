package topology

import "testing"

func TestConceptGraphContradictionsAndElaborations(t *testing.T) {
	g := NewConceptGraph()
	g.AddEdge(Edge{From: "a", To: "b", Type: RelContradicts})
	g.AddEdge(Edge{From: "c", To: "a", Type: RelElaborates})

	if got := g.FindContradictions("a"); len(got) != 1 || got[0] != "b" {
		t.Fatalf("FindContradictions = %v", got)
	}
	if got := g.FindElaborations("a"); len(got) != 1 || got[0] != "c" {
		t.Fatalf("FindElaborations = %v", got)
	}
}

func TestFindDependenciesHandlesCycles(t *testing.T) {
	g := NewConceptGraph()
	g.AddEdge(Edge{From: "a", To: "b", Type: RelDependsOn})
	g.AddEdge(Edge{From: "b", To: "c", Type: RelDependsOn})
	g.AddEdge(Edge{From: "c", To: "a", Type: RelDependsOn}) // cycle back to a

	deps := g.FindDependencies("a")
	want := map[string]bool{"b": true, "c": true}
	if len(deps) != len(want) {
		t.Fatalf("FindDependencies = %v", deps)
	}
	for _, d := range deps {
		if !want[d] {
			t.Fatalf("unexpected dependency %s", d)
		}
	}
}

func TestNeighborhoodDepthBound(t *testing.T) {
	g := NewConceptGraph()
	g.AddEdge(Edge{From: "a", To: "b", Type: RelCites})
	g.AddEdge(Edge{From: "b", To: "c", Type: RelCites})

	n1 := g.Neighborhood("a", 1)
	if !n1["b"] || n1["c"] {
		t.Fatalf("depth-1 neighborhood = %v", n1)
	}
	n2 := g.Neighborhood("a", 2)
	if !n2["b"] || !n2["c"] {
		t.Fatalf("depth-2 neighborhood = %v", n2)
	}
}

func TestFacetedIndexIntersection(t *testing.T) {
	idx := NewFacetedIndex()
	idx.Add("n1", map[string]string{"kind": "howto", "audience": "dev"})
	idx.Add("n2", map[string]string{"kind": "howto", "audience": "ops"})
	idx.Add("n3", map[string]string{"kind": "reference", "audience": "dev"})

	got := idx.Eval(FacetQuery{Constraints: []Constraint{{Facet: "kind", Value: "howto"}, {Facet: "audience", Value: "dev"}}})
	if len(got) != 1 || !got["n1"] {
		t.Fatalf("Eval = %v", got)
	}
}

func TestFacetedIndexRemove(t *testing.T) {
	idx := NewFacetedIndex()
	facets := map[string]string{"kind": "howto"}
	idx.Add("n1", facets)
	idx.Remove("n1", facets)
	got := idx.Eval(FacetQuery{Constraints: []Constraint{{Facet: "kind", Value: "howto"}}})
	if len(got) != 0 {
		t.Fatalf("expected empty after remove, got %v", got)
	}
}

func TestSpatialMatchConjunctive(t *testing.T) {
	ctx := &SpatialContext{FilePath: "src/auth.py", Position: PositionBody, LineStart: 10, LineEnd: 20}
	q := SpatialQuery{FilePath: "src/auth.py", Position: PositionBody}
	if score := SpatialMatch(q, ctx); score != 1 {
		t.Fatalf("expected full match, got %v", score)
	}

	qMismatch := SpatialQuery{FilePath: "other.py"}
	if score := SpatialMatch(qMismatch, ctx); score != 0 {
		t.Fatalf("expected zero score on mismatch, got %v", score)
	}
}

func TestSpatialMatchNilContext(t *testing.T) {
	q := SpatialQuery{FilePath: "x.py"}
	if score := SpatialMatch(q, nil); score != 0 {
		t.Fatalf("expected zero score for nil context, got %v", score)
	}
	if score := SpatialMatch(SpatialQuery{}, nil); score != 1 {
		t.Fatalf("expected full score for unconstrained query, got %v", score)
	}
}

func TestDocumentTreeContains(t *testing.T) {
	root := NewDocumentTree("doc1", "Guide")
	child := root.AddChild("sec1", "Intro")
	child.NodeIDs = append(child.NodeIDs, "n1")

	if !root.Contains("n1") {
		t.Fatal("expected root to contain nested node id")
	}
	if got := root.NodeAt([]int{0}); got != child {
		t.Fatalf("NodeAt mismatch: %+v", got)
	}
}
