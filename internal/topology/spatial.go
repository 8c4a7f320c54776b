package topology

import "strings"

// SpatialQuery expresses the spatial filters named in spec §4.3:
// section_contains, file_path, position, and line_range_overlaps. Zero
// values mean "don't constrain on this dimension".
type SpatialQuery struct {
	SectionContains string
	FilePath        string
	Position        PositionKind
	LineRangeStart  int
	LineRangeEnd    int
	HasLineRange    bool
}

// SpatialMatch evaluates a SpatialQuery against a node's SpatialContext, returning
// a score in [0,1]. A node with a nil SpatialContext scores 0 against any
// non-empty query. Each satisfied dimension contributes an equal share of
// the score; an unsatisfied dimension zeroes the whole match (spatial
// constraints are conjunctive, same as facets).
func SpatialMatch(q SpatialQuery, ctx *SpatialContext) float64 {
	dims := 0
	if q.SectionContains != "" {
		dims++
	}
	if q.FilePath != "" {
		dims++
	}
	if q.Position != "" {
		dims++
	}
	if q.HasLineRange {
		dims++
	}
	if dims == 0 {
		return 1 // no constraint requested
	}
	if ctx == nil {
		return 0
	}

	share := 1.0 / float64(dims)
	var score float64

	if q.SectionContains != "" {
		if strings.Contains(ctx.SectionPath, q.SectionContains) {
			score += share
		} else {
			return 0
		}
	}
	if q.FilePath != "" {
		if ctx.FilePath == q.FilePath {
			score += share
		} else {
			return 0
		}
	}
	if q.Position != "" {
		if ctx.Position == q.Position {
			score += share
		} else {
			return 0
		}
	}
	if q.HasLineRange {
		if rangesOverlap(q.LineRangeStart, q.LineRangeEnd, ctx.LineStart, ctx.LineEnd) {
			score += share
		} else {
			return 0
		}
	}
	return score
}

func rangesOverlap(aStart, aEnd, bStart, bEnd int) bool {
	return aStart <= bEnd && bStart <= aEnd
}
