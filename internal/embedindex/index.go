// Package embedindex implements the in-memory approximate vector index
// (spec §4.4). It is never the canonical store — it is rebuildable from the
// embeddings already carried on unified store nodes.
package embedindex

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"sunwellmem/internal/embedding"
	"sunwellmem/internal/logging"
	"sunwellmem/internal/memerr"
)

// Result is one ranked search hit.
type Result struct {
	ID       string
	Score    float64
	Metadata map[string]string
}

// entry is one stored vector plus its sidecar metadata.
type entry struct {
	vector   []float32
	metadata map[string]string
}

// Index is a brute-force cosine-similarity vector index, fixed at a single
// dimensionality for its lifetime. Callers must construct a new Index (not
// reuse this one) if the embedder's dimensionality changes — reinitializing
// in place would silently corrupt comparisons between old and new vectors.
type Index struct {
	mu         sync.RWMutex
	dimensions int
	entries    map[string]entry
	order      []string // insertion order, for deterministic save()

	backend annBackend // optional ANN acceleration, nil unless built with sqlite_vec
}

// annBackend is implemented by the optional sqlite-vec-backed accelerator
// (see vec_sqlite.go, gated behind the sqlite_vec+cgo build tag). Search
// falls back to brute force whenever backend is nil or returns an error.
type annBackend interface {
	add(id string, vector []float32) error
	delete(id string) error
	search(query []float32, topK int) ([]Result, error)
	close() error
}

// New returns an empty index fixed at the given dimensionality.
func New(dimensions int) *Index {
	return &Index{dimensions: dimensions, entries: map[string]entry{}}
}

// Dimensions reports the fixed dimensionality of this index.
func (idx *Index) Dimensions() int {
	return idx.dimensions
}

// Add inserts a vector under id, replacing any existing entry for id. The
// vector's length must equal the index's dimensionality.
func (idx *Index) Add(id string, vector []float32, metadata map[string]string) error {
	if len(vector) != idx.dimensions {
		return fmt.Errorf("%w: got %d want %d", memerr.ErrDimensionMismatch, len(vector), idx.dimensions)
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	if _, existed := idx.entries[id]; !existed {
		idx.order = append(idx.order, id)
	}
	idx.entries[id] = entry{vector: append([]float32(nil), vector...), metadata: metadata}

	if idx.backend != nil {
		if err := idx.backend.add(id, vector); err != nil {
			logging.EmbeddingDebug("ANN backend add failed for %s, falling back to brute force: %v", id, err)
		}
	}
	return nil
}

// Delete removes id from the index. It is not an error to delete an id that
// is not present.
func (idx *Index) Delete(id string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if _, ok := idx.entries[id]; !ok {
		return
	}
	delete(idx.entries, id)
	for i, existing := range idx.order {
		if existing == id {
			idx.order = append(idx.order[:i], idx.order[i+1:]...)
			break
		}
	}
	if idx.backend != nil {
		_ = idx.backend.delete(id)
	}
}

// Search returns the top-k ids by cosine similarity to query, sorted
// descending. Uses the ANN backend when available and dimensions match;
// otherwise brute force, which is always correct for the sizes this
// single-process core targets.
func (idx *Index) Search(query []float32, topK int) ([]Result, error) {
	if len(query) != idx.dimensions {
		return nil, fmt.Errorf("%w: got %d want %d", memerr.ErrDimensionMismatch, len(query), idx.dimensions)
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if idx.backend != nil {
		if results, err := idx.backend.search(query, topK); err == nil {
			return results, nil
		} else {
			logging.EmbeddingDebug("ANN search failed, falling back to brute force: %v", err)
		}
	}
	return idx.bruteForceSearch(query, topK)
}

func (idx *Index) bruteForceSearch(query []float32, topK int) ([]Result, error) {
	if topK <= 0 {
		topK = 10
	}
	results := make([]Result, 0, len(idx.entries))
	for id, e := range idx.entries {
		sim, err := embedding.CosineSimilarity(query, e.vector)
		if err != nil {
			continue
		}
		results = append(results, Result{ID: id, Score: sim, Metadata: e.metadata})
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

// Len reports the number of vectors currently indexed.
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.entries)
}

// --- persistence ---
//
// save()/load() format, per spec §4.4: dimension, id list, raw vector
// bytes. Always the brute-force form, so an index built with the optional
// ANN backend can still be reloaded without cgo.

const (
	manifestName = "manifest.json"
	vectorsName  = "vectors.bin"
)

type manifest struct {
	Dimensions int      `json:"dimensions"`
	IDs        []string `json:"ids"`
}

// Save persists the index to dir as a small manifest (dimension + id order)
// plus a flat file of little-endian float32 vectors in the same order.
func (idx *Index) Save(dir string) error {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("embedindex: create dir: %w", err)
	}

	m := manifest{Dimensions: idx.dimensions, IDs: append([]string(nil), idx.order...)}
	if err := writeJSON(filepath.Join(dir, manifestName), m); err != nil {
		return fmt.Errorf("embedindex: write manifest: %w", err)
	}

	buf := make([]byte, 0, len(idx.order)*idx.dimensions*4)
	tmp := make([]byte, 4)
	for _, id := range idx.order {
		for _, f := range idx.entries[id].vector {
			binary.LittleEndian.PutUint32(tmp, math.Float32bits(f))
			buf = append(buf, tmp...)
		}
	}
	if err := os.WriteFile(filepath.Join(dir, vectorsName), buf, 0644); err != nil {
		return fmt.Errorf("embedindex: write vectors: %w", err)
	}
	logging.Embedding("saved embedding index: %d vectors, %d dims, dir=%s", len(idx.order), idx.dimensions, dir)
	return nil
}

// Load reconstructs an index from dir written by Save. Dimensions in the
// manifest must match the dims the caller expects to use; callers
// reinitialize (New) rather than mutate a live index's dimensionality.
func Load(dir string) (*Index, error) {
	var m manifest
	if err := readJSON(filepath.Join(dir, manifestName), &m); err != nil {
		return nil, fmt.Errorf("embedindex: read manifest: %w", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, vectorsName))
	if err != nil {
		return nil, fmt.Errorf("embedindex: read vectors: %w", err)
	}

	idx := New(m.Dimensions)
	stride := m.Dimensions * 4
	for i, id := range m.IDs {
		offset := i * stride
		if offset+stride > len(data) {
			return nil, fmt.Errorf("embedindex: vectors file truncated at id %q", id)
		}
		vec := make([]float32, m.Dimensions)
		for j := 0; j < m.Dimensions; j++ {
			bits := binary.LittleEndian.Uint32(data[offset+j*4 : offset+j*4+4])
			vec[j] = math.Float32frombits(bits)
		}
		idx.entries[id] = entry{vector: vec}
		idx.order = append(idx.order, id)
	}
	return idx, nil
}
