package filter

import "github.com/geoobj/gol/internal/tilewalk"

// ComboFilter holds an ordered list of sub-filters and short-circuits:
// any NONE from a sub-filter means the tile can be skipped outright;
// ALL from every sub-filter means per-feature tests may be bypassed
// (spec.md §4.F).
type ComboFilter struct {
	subs []Filter
}

// NewComboFilter builds a ComboFilter from the given filters, flattening
// any nested ComboFilters so chains never grow deeper than one level
// (spec.md §4.F: "add... flattens nested ComboFilters").
func NewComboFilter(filters ...Filter) *ComboFilter {
	c := &ComboFilter{}
	for _, f := range filters {
		c.Add(f)
	}
	return c
}

// Add appends f, flattening it if it is itself a ComboFilter.
func (c *ComboFilter) Add(f Filter) {
	if f == nil {
		return
	}
	if nested, ok := f.(*ComboFilter); ok {
		c.subs = append(c.subs, nested.subs...)
		return
	}
	c.subs = append(c.subs, f)
}

// AcceptTile combines every sub-filter's verdict: NONE dominates, ALL
// requires unanimity, otherwise SOME.
func (c *ComboFilter) AcceptTile(tile tilewalk.Tile, tileBounds tilewalk.BBox) TileHint {
	if len(c.subs) == 0 {
		return TileAll
	}
	allAll := true
	for _, sub := range c.subs {
		switch sub.AcceptTile(tile, tileBounds) {
		case TileNone:
			return TileNone
		case TileSome:
			allAll = false
		}
	}
	if allAll {
		return TileAll
	}
	return TileSome
}

// AcceptFeature ANDs every sub-filter's per-feature test, short-circuiting
// on the first rejection. When hint is TileAll the combo already knows
// every sub-filter accepts the whole tile, so the per-feature pass is
// skipped entirely.
func (c *ComboFilter) AcceptFeature(f Feature, hint TileHint) bool {
	if hint == TileAll {
		return true
	}
	for _, sub := range c.subs {
		if !sub.AcceptFeature(f, hint) {
			return false
		}
	}
	return true
}
