// Package filter implements the filter composition layer (spec.md §4.F):
// spatial, topological and user predicates combined into a ComboFilter
// that also yields coarse tile-level acceptance hints.
package filter

import "github.com/geoobj/gol/internal/tilewalk"

// Feature is the minimal view a filter needs over a feature: its
// projected bounding box, used for every spatial/topological test. Real
// feature geometry lives in the store; callers (the gol package) adapt
// their feature records to this interface.
type Feature interface {
	Bounds() tilewalk.BBox
}

// TileHint is the coarse per-tile acceptance verdict a Filter can give
// before any individual feature is inspected (spec.md §4.F).
type TileHint int

const (
	TileNone TileHint = iota
	TileSome
	TileAll
)

func (h TileHint) String() string {
	switch h {
	case TileNone:
		return "none"
	case TileAll:
		return "all"
	default:
		return "some"
	}
}

// Filter is a reference-counted-in-spirit (plain Go values suffice —
// garbage collection stands in for the teacher's refcounting idiom)
// object with two observable operations, per spec.md §4.F.
type Filter interface {
	// AcceptFeature tests one feature. hint is the AcceptTile verdict
	// the caller already computed for the feature's tile, letting a
	// filter skip redundant work when hint is TileAll.
	AcceptFeature(f Feature, hint TileHint) bool
	// AcceptTile gives a coarse verdict for every feature whose
	// bounding box lies within tileBounds, without inspecting any one
	// of them.
	AcceptTile(tile tilewalk.Tile, tileBounds tilewalk.BBox) TileHint
}
