package embedindex

import (
	"testing"
)

func TestSearchRanksBySimilarity(t *testing.T) {
	idx := New(2)
	if err := idx.Add("close", []float32{1, 0}, nil); err != nil {
		t.Fatal(err)
	}
	if err := idx.Add("far", []float32{0, 1}, nil); err != nil {
		t.Fatal(err)
	}

	results, err := idx.Search([]float32{1, 0.01}, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 || results[0].ID != "close" {
		t.Fatalf("expected close first, got %+v", results)
	}
}

func TestAddRejectsDimensionMismatch(t *testing.T) {
	idx := New(3)
	if err := idx.Add("x", []float32{1, 2}, nil); err == nil {
		t.Fatal("expected dimension mismatch error")
	}
}

func TestDeleteRemovesFromResults(t *testing.T) {
	idx := New(2)
	idx.Add("a", []float32{1, 0}, nil)
	idx.Add("b", []float32{0, 1}, nil)
	idx.Delete("a")

	if idx.Len() != 1 {
		t.Fatalf("expected 1 entry after delete, got %d", idx.Len())
	}
	results, err := idx.Search([]float32{1, 0}, 5)
	if err != nil {
		t.Fatal(err)
	}
	for _, r := range results {
		if r.ID == "a" {
			t.Fatal("deleted id still present in search results")
		}
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	idx := New(3)
	idx.Add("n1", []float32{0.1, 0.2, 0.3}, map[string]string{"kind": "fact"})
	idx.Add("n2", []float32{0.4, 0.5, 0.6}, nil)

	if err := idx.Save(dir); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Dimensions() != 3 || loaded.Len() != 2 {
		t.Fatalf("loaded index mismatch: dims=%d len=%d", loaded.Dimensions(), loaded.Len())
	}

	results, err := loaded.Search([]float32{0.1, 0.2, 0.3}, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].ID != "n1" {
		t.Fatalf("expected n1 as top match after reload, got %+v", results)
	}
}
