package filter

import (
	"math"

	"github.com/geoobj/gol/internal/tilewalk"
)

// BBoxFilter accepts features whose bounds intersect a fixed query box —
// the plain bounding-box intersection primitive. The Features methods
// use WithinFilter and IntersectingFilter rather than this type.
type BBoxFilter struct {
	Box tilewalk.BBox
}

func (f *BBoxFilter) AcceptFeature(feat Feature, _ TileHint) bool {
	return f.Box.Intersects(feat.Bounds())
}

func (f *BBoxFilter) AcceptTile(_ tilewalk.Tile, tileBounds tilewalk.BBox) TileHint {
	if !f.Box.Intersects(tileBounds) {
		return TileNone
	}
	if f.Box.Contains(tileBounds) {
		return TileAll
	}
	return TileSome
}

// WithinFilter accepts features whose bounds lie entirely inside Box.
type WithinFilter struct {
	Box tilewalk.BBox
}

func (f *WithinFilter) AcceptFeature(feat Feature, _ TileHint) bool {
	return f.Box.Contains(feat.Bounds())
}

func (f *WithinFilter) AcceptTile(_ tilewalk.Tile, tileBounds tilewalk.BBox) TileHint {
	if f.Box.Contains(tileBounds) {
		return TileAll
	}
	if !f.Box.Intersects(tileBounds) {
		return TileNone
	}
	return TileSome
}

// IntersectingFilter accepts features whose bounds merely overlap Box.
// It differs from BBoxFilter only in name — both are bounding-box
// intersection tests — kept distinct because spec.md §4.G names
// `intersecting` and `within` as separate Features methods with distinct
// semantics once real (non-bbox) geometry is involved.
type IntersectingFilter struct {
	Box tilewalk.BBox
}

func (f *IntersectingFilter) AcceptFeature(feat Feature, _ TileHint) bool {
	return f.Box.Intersects(feat.Bounds())
}

func (f *IntersectingFilter) AcceptTile(_ tilewalk.Tile, tileBounds tilewalk.BBox) TileHint {
	if !f.Box.Intersects(tileBounds) {
		return TileNone
	}
	if f.Box.Contains(tileBounds) {
		return TileAll
	}
	return TileSome
}

// ContainingFilter accepts features whose bounds fully contain Box —
// the inverse relation to WithinFilter.
type ContainingFilter struct {
	Box tilewalk.BBox
}

func (f *ContainingFilter) AcceptFeature(feat Feature, _ TileHint) bool {
	return feat.Bounds().Contains(f.Box)
}

func (f *ContainingFilter) AcceptTile(_ tilewalk.Tile, tileBounds tilewalk.BBox) TileHint {
	// A feature fully containing Box could still lie anywhere its own
	// bounds reach into tileBounds, so only a NONE verdict (no overlap
	// at all) can be given cheaply without the feature's geometry.
	if !tileBounds.Intersects(f.Box) {
		return TileNone
	}
	return TileSome
}

// DisjointFilter accepts features whose bounds do not overlap Box at
// all — the simplest topological predicate expressible purely from
// bounding boxes.
type DisjointFilter struct {
	Box tilewalk.BBox
}

func (f *DisjointFilter) AcceptFeature(feat Feature, _ TileHint) bool {
	return !f.Box.Intersects(feat.Bounds())
}

func (f *DisjointFilter) AcceptTile(_ tilewalk.Tile, tileBounds tilewalk.BBox) TileHint {
	if f.Box.Contains(tileBounds) {
		return TileNone
	}
	if !f.Box.Intersects(tileBounds) {
		return TileAll
	}
	return TileSome
}

// MaxMetersFromFilter accepts features whose bounds-centroid lies within
// MaxMeters of (CenterX, CenterY), in the same projected units as
// tilewalk.BBox (meters, EPSG:3857).
type MaxMetersFromFilter struct {
	CenterX, CenterY float64
	MaxMeters        float64
}

func (f *MaxMetersFromFilter) AcceptFeature(feat Feature, _ TileHint) bool {
	b := feat.Bounds()
	cx, cy := (b.MinX+b.MaxX)/2, (b.MinY+b.MaxY)/2
	dx, dy := cx-f.CenterX, cy-f.CenterY
	return math.Hypot(dx, dy) <= f.MaxMeters
}

func (f *MaxMetersFromFilter) AcceptTile(_ tilewalk.Tile, tileBounds tilewalk.BBox) TileHint {
	reach := tilewalk.BBox{
		MinX: f.CenterX - f.MaxMeters, MinY: f.CenterY - f.MaxMeters,
		MaxX: f.CenterX + f.MaxMeters, MaxY: f.CenterY + f.MaxMeters,
	}
	if !reach.Intersects(tileBounds) {
		return TileNone
	}
	if reach.Contains(tileBounds) {
		return TileAll
	}
	return TileSome
}

// PredicateFilter wraps a user callback. Per spec.md §4.F, predicate
// filters are trailing sub-filters never evaluated on tiles, only on
// features, and the core requires them to be re-entrant — the executor
// may invoke Fn concurrently from worker goroutines.
type PredicateFilter struct {
	Fn func(Feature) bool
}

func (f *PredicateFilter) AcceptFeature(feat Feature, _ TileHint) bool {
	return f.Fn(feat)
}

func (f *PredicateFilter) AcceptTile(_ tilewalk.Tile, _ tilewalk.BBox) TileHint {
	return TileSome
}
