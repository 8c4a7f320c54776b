// Package unifiedstore combines temporal, spatial, structural, topological,
// and multi-faceted retrieval over the same set of memory nodes (spec §4.5).
// It is the single index a caller queries; individual dimensions (concept
// graph, faceted index, embedding index) stay in internal/topology and
// internal/embedindex and are only wired together here.
package unifiedstore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"sunwellmem/internal/embedding"
	"sunwellmem/internal/embedindex"
	"sunwellmem/internal/logging"
	"sunwellmem/internal/topology"
)

// Scored pairs a node with a [0,1] relevance score produced by Query.
type Scored struct {
	Node  *topology.Node
	Score float64
}

// QueryWeights configures how Query combines per-dimension scores into a
// single ranking score: a weighted sum `w_text*sim + w_facet*facet_score +
// w_spatial*spatial_score` (spec §4.5), not an unweighted average across
// whichever dimensions happened to match.
type QueryWeights struct {
	Text    float64
	Facet   float64
	Spatial float64
}

// DefaultQueryWeights returns spec §4.5's defaults.
func DefaultQueryWeights() QueryWeights {
	return QueryWeights{Text: 1.0, Facet: 1.0, Spatial: 0.5}
}

// Store is the unified multi-topology memory index.
type Store struct {
	mu sync.RWMutex

	nodes map[string]*topology.Node
	graph *topology.ConceptGraph
	facet *topology.FacetedIndex
	docs  map[string]*topology.DocumentTree

	embedder   embedding.Embedder
	embedIndex *embedindex.Index

	weights QueryWeights
}

// New returns an empty store whose embedding index is fixed at dimensions
// until an embedder is attached with SetEmbedder.
func New(dimensions int) *Store {
	return &Store{
		nodes:      map[string]*topology.Node{},
		graph:      topology.NewConceptGraph(),
		facet:      topology.NewFacetedIndex(),
		docs:       map[string]*topology.DocumentTree{},
		embedIndex: embedindex.New(dimensions),
		weights:    DefaultQueryWeights(),
	}
}

// SetWeights overrides Query's per-dimension score weights (config-exposed
// per spec §4.5).
func (s *Store) SetWeights(w QueryWeights) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.weights = w
}

// SetEmbedder attaches the query-time embedder. If its dimensionality
// differs from the store's current embedding index, the index is rebuilt
// from the embeddings already carried on stored nodes — callers never need
// to re-add nodes after swapping embedders.
func (s *Store) SetEmbedder(e embedding.Embedder) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.embedder = e

	if e.Dimensions() == s.embedIndex.Dimensions() {
		return
	}
	newIndex := embedindex.New(e.Dimensions())
	for id, node := range s.nodes {
		if len(node.Embedding) == e.Dimensions() {
			_ = newIndex.Add(id, node.Embedding, previewMetadata(node))
		}
	}
	s.embedIndex = newIndex
	logging.Store("unified store: rebuilt embedding index for new embedder %s (%d dims)", e.Name(), e.Dimensions())
}

func previewMetadata(n *topology.Node) map[string]string {
	preview := n.Content
	if len(preview) > 100 {
		preview = preview[:100]
	}
	return map[string]string{"content_preview": preview}
}

// AddNode inserts or replaces a node and updates every secondary index in
// one call: facets O(f), concept graph edges O(e), embedding index O(1)
// amortized.
func (s *Store) AddNode(node *topology.Node) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nodes[node.ID] = node

	if len(node.Facets) > 0 {
		s.facet.Add(node.ID, node.Facets)
	}
	for _, edge := range node.OutEdges {
		s.graph.AddEdge(edge)
	}
	if len(node.Embedding) > 0 && len(node.Embedding) == s.embedIndex.Dimensions() {
		if err := s.embedIndex.Add(node.ID, node.Embedding, previewMetadata(node)); err != nil {
			logging.StoreDebug("unified store: skipped embedding index add for %s: %v", node.ID, err)
		}
	}
}

// GetNode returns the node stored under id, or nil.
func (s *Store) GetNode(id string) *topology.Node {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nodes[id]
}

// RemoveNode drops a node and all of its index entries. Returns false if id
// was not present.
func (s *Store) RemoveNode(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	node, ok := s.nodes[id]
	if !ok {
		return false
	}
	if len(node.Facets) > 0 {
		s.facet.Remove(id, node.Facets)
	}
	s.graph.RemoveNode(id)
	s.embedIndex.Delete(id)
	delete(s.nodes, id)
	return true
}

// GetRecent returns the limit most recently created nodes, newest first.
func (s *Store) GetRecent(limit int) []*topology.Node {
	s.mu.RLock()
	defer s.mu.RUnlock()

	nodes := make([]*topology.Node, 0, len(s.nodes))
	for _, n := range s.nodes {
		nodes = append(nodes, n)
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].CreatedAt.After(nodes[j].CreatedAt) })
	if len(nodes) > limit {
		nodes = nodes[:limit]
	}
	return nodes
}

// QuerySpatial scores every node against q and returns the top results.
func (s *Store) QuerySpatial(q topology.SpatialQuery, limit int) []Scored {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var results []Scored
	for _, n := range s.nodes {
		if n.Spatial == nil {
			continue
		}
		if score := topology.SpatialMatch(q, n.Spatial); score > 0 {
			results = append(results, Scored{Node: n, Score: score})
		}
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > limit {
		results = results[:limit]
	}
	return results
}

// QueryBySection finds nodes whose spatial section path contains
// sectionTitle, optionally narrowed to one file.
func (s *Store) QueryBySection(sectionTitle, filePath string) []*topology.Node {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var results []*topology.Node
	needle := strings.ToLower(sectionTitle)
	for _, n := range s.nodes {
		if n.Spatial == nil || n.Spatial.SectionPath == "" {
			continue
		}
		if !strings.Contains(strings.ToLower(n.Spatial.SectionPath), needle) {
			continue
		}
		if filePath != "" && n.Spatial.FilePath != filePath {
			continue
		}
		results = append(results, n)
	}
	return results
}

// FindContradictions returns nodes whose edges contradict id.
func (s *Store) FindContradictions(id string) []*topology.Node {
	return s.resolveIDs(s.graph.FindContradictions(id))
}

// FindElaborations returns nodes that elaborate on id.
func (s *Store) FindElaborations(id string) []*topology.Node {
	return s.resolveIDs(s.graph.FindElaborations(id))
}

// FindDependencies returns the transitive closure of id's depends_on edges.
func (s *Store) FindDependencies(id string) []*topology.Node {
	return s.resolveIDs(s.graph.FindDependencies(id))
}

// FindRelated returns nodes within depth hops of id, excluding id itself.
func (s *Store) FindRelated(id string, depth int) []*topology.Node {
	neighborhood := s.graph.Neighborhood(id, depth)
	ids := make([]string, 0, len(neighborhood))
	for nid := range neighborhood {
		if nid != id {
			ids = append(ids, nid)
		}
	}
	return s.resolveIDs(ids)
}

func (s *Store) resolveIDs(ids []string) []*topology.Node {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var nodes []*topology.Node
	for _, id := range ids {
		if n, ok := s.nodes[id]; ok {
			nodes = append(nodes, n)
		}
	}
	return nodes
}

// QueryFacets returns nodes satisfying q, uniformly scored at 1.0 (facet
// matches are boolean, not graded).
func (s *Store) QueryFacets(q topology.FacetQuery, limit int) []Scored {
	matched := s.facet.Eval(q)
	s.mu.RLock()
	defer s.mu.RUnlock()

	var results []Scored
	for id := range matched {
		if n, ok := s.nodes[id]; ok {
			results = append(results, Scored{Node: n, Score: 1.0})
		}
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Node.CreatedAt.After(results[j].Node.CreatedAt) })
	if len(results) > limit {
		results = results[:limit]
	}
	return results
}

// Query is the hybrid entry point combining every dimension named in spec
// §4.5: facets and relationships filter first (cheapest, most selective),
// spatial narrows further, and text similarity both filters and scores.
// Results satisfy every supplied constraint (AND across dimensions);
// absent constraints are no-ops. With no constraints at all, Query falls
// back to GetRecent.
type Query struct {
	Text             string
	Spatial          *topology.SpatialQuery
	Facets           *topology.FacetQuery
	RelationshipFrom string
	RelationshipType topology.RelationType
	Limit            int
}

func (s *Store) Query(ctx context.Context, q Query) ([]Scored, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = 10
	}

	s.mu.RLock()
	var candidates map[string]bool
	textScores := map[string]float64{}
	facetScores := map[string]float64{}
	spatialScores := map[string]float64{}

	if q.Facets != nil && len(q.Facets.Constraints) > 0 {
		matched := s.facet.Eval(*q.Facets)
		candidates = matched
		for id := range matched {
			facetScores[id] = 1.0
		}
	}

	if q.RelationshipFrom != "" {
		var related map[string]bool
		if q.RelationshipType != "" {
			ids := s.graph.FindElaborations(q.RelationshipFrom)
			if q.RelationshipType == topology.RelContradicts {
				ids = s.graph.FindContradictions(q.RelationshipFrom)
			} else if q.RelationshipType == topology.RelDependsOn {
				ids = s.graph.FindDependencies(q.RelationshipFrom)
			}
			related = map[string]bool{}
			for _, id := range ids {
				related[id] = true
			}
		} else {
			related = s.graph.Neighborhood(q.RelationshipFrom, 2)
		}
		candidates = intersectOrAssign(candidates, related)
	}

	if q.Spatial != nil {
		spatialMatches := map[string]bool{}
		for id, n := range s.nodes {
			if n.Spatial == nil {
				continue
			}
			if score := topology.SpatialMatch(*q.Spatial, n.Spatial); score > 0 {
				spatialMatches[id] = true
				spatialScores[id] = score
			}
		}
		candidates = intersectOrAssign(candidates, spatialMatches)
	}
	s.mu.RUnlock()

	if q.Text != "" {
		textMatches, err := s.textMatch(ctx, q.Text, limit)
		if err != nil {
			return nil, fmt.Errorf("unifiedstore: text query: %w", err)
		}
		textSet := map[string]bool{}
		for id, score := range textMatches {
			textSet[id] = true
			textScores[id] = score
		}
		candidates = intersectOrAssign(candidates, textSet)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if candidates == nil {
		nodes := make([]*topology.Node, 0, len(s.nodes))
		for _, n := range s.nodes {
			nodes = append(nodes, n)
		}
		sort.Slice(nodes, func(i, j int) bool { return nodes[i].CreatedAt.After(nodes[j].CreatedAt) })
		if len(nodes) > limit {
			nodes = nodes[:limit]
		}
		results := make([]Scored, len(nodes))
		for i, n := range nodes {
			results[i] = Scored{Node: n, Score: 1.0}
		}
		return results, nil
	}

	results := make([]Scored, 0, len(candidates))
	for id := range candidates {
		n, ok := s.nodes[id]
		if !ok {
			continue
		}
		// Weighted sum per spec §4.5, not an average: a spatial-only hit
		// scores w_spatial*spatial_score, not the bare spatial_score. A
		// candidate admitted only via the relationship filter (no scored
		// dimension matched it) keeps the neutral default score of 1.0.
		t, hasText := textScores[id]
		f, hasFacet := facetScores[id]
		sp, hasSpatial := spatialScores[id]
		score := 1.0
		if hasText || hasFacet || hasSpatial {
			score = s.weights.Text*t + s.weights.Facet*f + s.weights.Spatial*sp
		}
		results = append(results, Scored{Node: n, Score: score})
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Node.CreatedAt.After(results[j].Node.CreatedAt)
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func intersectOrAssign(existing, next map[string]bool) map[string]bool {
	if existing == nil {
		return next
	}
	result := map[string]bool{}
	for id := range existing {
		if next[id] {
			result[id] = true
		}
	}
	return result
}

// textMatch scores nodes against a text query: embedding cosine similarity
// when an embedder is attached and the index is populated, otherwise a
// lowercase substring fallback scored uniformly at 0.8 (mirrors the
// original keyword-fallback weighting).
func (s *Store) textMatch(ctx context.Context, query string, limit int) (map[string]float64, error) {
	s.mu.RLock()
	embedder := s.embedder
	idx := s.embedIndex
	nodeCount := len(s.nodes)
	s.mu.RUnlock()

	matches := map[string]float64{}

	if embedder != nil && idx.Len() > 0 {
		vec, err := embedder.Embed(ctx, query)
		if err != nil {
			return nil, fmt.Errorf("embed query: %w", err)
		}
		results, err := idx.Search(vec, limit*3)
		if err != nil {
			return nil, fmt.Errorf("search embedding index: %w", err)
		}
		for _, r := range results {
			matches[r.ID] = r.Score
		}
		return matches, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	needle := strings.ToLower(query)
	_ = nodeCount
	for id, n := range s.nodes {
		if strings.Contains(strings.ToLower(n.Content), needle) {
			matches[id] = 0.8
		}
	}
	return matches, nil
}

// --- persistence ---

// Save writes nodes.json, graph.json, and (if populated) the embedding
// index under dir.
func (s *Store) Save(dir string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("unifiedstore: create dir: %w", err)
	}

	nodesData := make(map[string]*topology.Node, len(s.nodes))
	for id, n := range s.nodes {
		nodesData[id] = n
	}
	if err := writeJSONFile(filepath.Join(dir, "nodes.json"), nodesData); err != nil {
		return fmt.Errorf("unifiedstore: write nodes: %w", err)
	}

	if err := writeJSONFile(filepath.Join(dir, "graph.json"), s.graph.Snapshot()); err != nil {
		return fmt.Errorf("unifiedstore: write graph: %w", err)
	}

	if s.embedIndex.Len() > 0 {
		if err := s.embedIndex.Save(filepath.Join(dir, "embeddings")); err != nil {
			return fmt.Errorf("unifiedstore: save embedding index: %w", err)
		}
	}
	logging.Store("unified store saved: %d nodes, dir=%s", len(s.nodes), dir)
	return nil
}

// Load reconstructs a store from a directory written by Save. Embeddings
// are loaded from the on-disk index, not re-derived from node content.
func Load(dir string, dimensions int) (*Store, error) {
	s := New(dimensions)

	nodesPath := filepath.Join(dir, "nodes.json")
	if data, err := os.ReadFile(nodesPath); err == nil {
		var nodesData map[string]*topology.Node
		if err := json.Unmarshal(data, &nodesData); err != nil {
			return nil, fmt.Errorf("unifiedstore: parse nodes: %w", err)
		}
		for id, n := range nodesData {
			s.nodes[id] = n
			if len(n.Facets) > 0 {
				s.facet.Add(id, n.Facets)
			}
		}
	}

	graphPath := filepath.Join(dir, "graph.json")
	if data, err := os.ReadFile(graphPath); err == nil {
		var snap topology.GraphSnapshot
		if err := json.Unmarshal(data, &snap); err != nil {
			return nil, fmt.Errorf("unifiedstore: parse graph: %w", err)
		}
		s.graph = topology.RestoreGraph(snap)
	}

	embeddingsDir := filepath.Join(dir, "embeddings")
	if _, err := os.Stat(filepath.Join(embeddingsDir, "manifest.json")); err == nil {
		idx, err := embedindex.Load(embeddingsDir)
		if err != nil {
			return nil, fmt.Errorf("unifiedstore: load embedding index: %w", err)
		}
		s.embedIndex = idx
	}

	return s, nil
}

// Stats reports counters useful for diagnostics and tests.
type Stats struct {
	TotalNodes int
	Graph      topology.GraphStats
	Embeddings int
}

func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Stats{
		TotalNodes: len(s.nodes),
		Graph:      s.graph.Stats(),
		Embeddings: s.embedIndex.Len(),
	}
}

func writeJSONFile(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
