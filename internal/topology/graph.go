package topology

import "sync"

// ConceptGraph holds typed edges in both directions for O(1) neighborhood
// lookup (spec §4.3). It never owns Node values; it only indexes ids.
type ConceptGraph struct {
	mu  sync.RWMutex
	out map[string][]Edge // node id -> outgoing edges
	in  map[string][]Edge // node id -> incoming edges (inverse view)
}

// NewConceptGraph returns an empty graph.
func NewConceptGraph() *ConceptGraph {
	return &ConceptGraph{out: map[string][]Edge{}, in: map[string][]Edge{}}
}

// AddEdge registers an edge and its inverse view.
func (g *ConceptGraph) AddEdge(e Edge) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.out[e.From] = append(g.out[e.From], e)
	g.in[e.To] = append(g.in[e.To], e)
}

// RemoveNode drops every edge touching id, from both endpoints.
func (g *ConceptGraph) RemoveNode(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.out, id)
	delete(g.in, id)
	for from, edges := range g.out {
		g.out[from] = filterEdges(edges, id)
	}
	for to, edges := range g.in {
		g.in[to] = filterEdges(edges, id)
	}
}

func filterEdges(edges []Edge, id string) []Edge {
	out := edges[:0:0]
	for _, e := range edges {
		if e.From != id && e.To != id {
			out = append(out, e)
		}
	}
	return out
}

// FindContradictions returns the ids reached by outgoing `contradicts`
// edges from id.
func (g *ConceptGraph) FindContradictions(id string) []string {
	return g.outIDsOfType(id, RelContradicts)
}

// FindElaborations returns the ids that elaborate id, i.e. the sources of
// incoming `elaborates` edges.
func (g *ConceptGraph) FindElaborations(id string) []string {
	return g.inIDsOfType(id, RelElaborates)
}

func (g *ConceptGraph) outIDsOfType(id string, t RelationType) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	var out []string
	for _, e := range g.out[id] {
		if e.Type == t {
			out = append(out, e.To)
		}
	}
	return out
}

func (g *ConceptGraph) inIDsOfType(id string, t RelationType) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	var out []string
	for _, e := range g.in[id] {
		if e.Type == t {
			out = append(out, e.From)
		}
	}
	return out
}

// FindDependencies returns the transitive closure over `depends_on` edges
// starting at id, with cycle-safe traversal (a visited set bounds the walk
// even over a cyclic dependency graph).
func (g *ConceptGraph) FindDependencies(id string) []string {
	visited := map[string]bool{id: true}
	queue := []string{id}
	var out []string
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, next := range g.outIDsOfType(cur, RelDependsOn) {
			if visited[next] {
				continue
			}
			visited[next] = true
			out = append(out, next)
			queue = append(queue, next)
		}
	}
	return out
}

// Neighborhood returns the set of ids reachable from id within depth hops
// over outgoing edges of any type, via breadth-first search.
func (g *ConceptGraph) Neighborhood(id string, depth int) map[string]bool {
	visited := map[string]bool{id: true}
	frontier := []string{id}
	for d := 0; d < depth; d++ {
		var next []string
		for _, cur := range frontier {
			g.mu.RLock()
			edges := g.out[cur]
			g.mu.RUnlock()
			for _, e := range edges {
				if !visited[e.To] {
					visited[e.To] = true
					next = append(next, e.To)
				}
			}
		}
		frontier = next
		if len(frontier) == 0 {
			break
		}
	}
	return visited
}

// GraphSnapshot is the serializable form of a ConceptGraph: the edge list
// alone, since both directional indexes are derived from it.
type GraphSnapshot struct {
	Edges []Edge `json:"edges"`
}

// Snapshot returns the edge list needed to reconstruct this graph.
func (g *ConceptGraph) Snapshot() GraphSnapshot {
	g.mu.RLock()
	defer g.mu.RUnlock()
	seen := map[Edge]bool{}
	var edges []Edge
	for _, list := range g.out {
		for _, e := range list {
			if !seen[e] {
				seen[e] = true
				edges = append(edges, e)
			}
		}
	}
	return GraphSnapshot{Edges: edges}
}

// RestoreGraph rebuilds a ConceptGraph from a snapshot produced by Snapshot.
func RestoreGraph(snap GraphSnapshot) *ConceptGraph {
	g := NewConceptGraph()
	for _, e := range snap.Edges {
		g.AddEdge(e)
	}
	return g
}

// GraphStats reports counters useful for diagnostics and tests.
type GraphStats struct {
	NodesWithEdges int
	TotalEdges     int
}

// Stats summarizes the graph's current size.
func (g *ConceptGraph) Stats() GraphStats {
	g.mu.RLock()
	defer g.mu.RUnlock()
	total := 0
	for _, edges := range g.out {
		total += len(edges)
	}
	return GraphStats{NodesWithEdges: len(g.out), TotalEdges: total}
}
