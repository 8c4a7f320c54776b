// Package topology implements the unified memory node record type plus the
// faceted, spatial, and graph indexes over it (spec §4.3–§4.4).
package topology

import "time"

// PositionKind classifies where in a document a node's spatial context
// sits.
type PositionKind string

const (
	PositionIntro      PositionKind = "intro"
	PositionBody       PositionKind = "body"
	PositionConclusion PositionKind = "conclusion"
)

// SpatialContext anchors a node to a location in a source artifact.
type SpatialContext struct {
	FilePath    string
	LineStart   int
	LineEnd     int
	SectionPath string
	Position    PositionKind
}

// StructuralPosition is an opaque handle into a document tree (spec's
// "structural position (document-tree handle)"). The tree itself is
// maintained per-document by callers; the node only needs a stable path
// into it for structural_contains-style queries.
type StructuralPosition struct {
	DocumentID string
	NodePath   []int // breadcrumb of child indices from the document root
}

// RelationType enumerates the typed directed relations an Edge may carry.
type RelationType string

const (
	RelElaborates  RelationType = "elaborates"
	RelContradicts RelationType = "contradicts"
	RelDependsOn   RelationType = "depends_on"
	RelPrecedes    RelationType = "precedes"
	RelRefines     RelationType = "refines"
	RelCites       RelationType = "cites"
)

// Inverse returns the relation's inverse direction label. ConceptGraph's
// reverse lookups use its own incoming-edge index, not these labels.
func (r RelationType) Inverse() RelationType {
	switch r {
	case RelElaborates:
		return "elaborated_by"
	case RelContradicts:
		return "contradicted_by"
	case RelDependsOn:
		return "depended_on_by"
	case RelPrecedes:
		return "follows"
	case RelRefines:
		return "refined_by"
	case RelCites:
		return "cited_by"
	default:
		return r + "_inverse"
	}
}

// Edge is a typed directed relation from one node to another.
type Edge struct {
	From        string
	To          string
	Type        RelationType
	Explanation string
}

// Node is the superset memory record used by the unified store: content,
// embedding, timestamps, facets, spatial/structural context, and outgoing
// edges.
type Node struct {
	ID        string
	Content   string
	Embedding []float32
	CreatedAt time.Time
	UpdatedAt time.Time

	Facets   map[string]string
	Spatial  *SpatialContext
	Struct   *StructuralPosition
	OutEdges []Edge
}

// Clone returns a deep-enough copy for safe mutation by callers (facets map
// and edge slice are copied; embedding slice is copied).
func (n *Node) Clone() *Node {
	cp := *n
	if n.Embedding != nil {
		cp.Embedding = append([]float32(nil), n.Embedding...)
	}
	if n.Facets != nil {
		cp.Facets = make(map[string]string, len(n.Facets))
		for k, v := range n.Facets {
			cp.Facets[k] = v
		}
	}
	if n.OutEdges != nil {
		cp.OutEdges = append([]Edge(nil), n.OutEdges...)
	}
	return &cp
}
