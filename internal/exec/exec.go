// Package exec implements the query executor (spec.md §5, §9's
// "coroutine-style iteration" note): a pull iterator that walks tiles,
// decodes their feature lists, and runs the matcher/filter pipeline over
// each candidate. It knows nothing about the gol package's Feature type —
// callers supply a Decoder that produces exec.Candidate values, keeping
// this package free of an import cycle back to the root package.
package exec

import (
	"github.com/geoobj/gol/internal/filter"
	"github.com/geoobj/gol/internal/matcher"
	"github.com/geoobj/gol/internal/tilewalk"
)

// Candidate is one decoded feature, in the minimal shape the executor's
// matcher/filter pipeline needs.
type Candidate struct {
	ID      uint32
	Type    uint32
	Tags    matcher.Tags
	Box     tilewalk.BBox
	Members []uint32
}

// Bounds implements internal/filter.Feature.
func (c Candidate) Bounds() tilewalk.BBox { return c.Box }

// Decoder turns one feature-list blob's payload into its Candidates.
type Decoder func(payload []byte) ([]Candidate, error)

// MatcherEntry pairs a compiled program with the feature types it
// applies to (spec.md §4.E: a Selector's accepted-type mask).
type MatcherEntry struct {
	AcceptTypes uint32
	Program     *matcher.Program
}

// View composes everything one Features iteration needs (spec.md §2's
// "View = (FeatureStore handle, type mask, Matcher program, Filter)").
type View struct {
	Source      tilewalk.NodeSource
	RootPointer uint32
	RootTile    tilewalk.Tile
	QueryBox    tilewalk.BBox
	AcceptTypes uint32
	Matchers    []MatcherEntry
	Filter      filter.Filter
	Decode      Decoder
}

// Iterator is the pull-style state machine spec.md §9 calls for instead
// of an eager collection.
type Iterator struct {
	view    View
	walker  *tilewalk.Walker
	pending []Candidate
	idx     int
	hintAll bool
	err     error
}

// Run starts an iteration over view. The walk itself begins lazily: no
// tile is read until the first Next call.
func Run(view View) *Iterator {
	w := tilewalk.NewWalker(view.Source, view.RootPointer, view.RootTile, view.QueryBox)
	return &Iterator{view: view, walker: w}
}

// Err returns the first error encountered during iteration, if any.
func (it *Iterator) Err() error { return it.err }

// Next returns the next Candidate surviving the type mask, matcher
// programs, and filter, or ok=false when the walk is exhausted.
func (it *Iterator) Next() (Candidate, bool) {
	for it.err == nil {
		if it.idx < len(it.pending) {
			c := it.pending[it.idx]
			it.idx++
			if it.accepts(c) {
				return c, true
			}
			continue
		}
		if !it.advanceTile() {
			return Candidate{}, false
		}
	}
	return Candidate{}, false
}

func (it *Iterator) advanceTile() bool {
	for {
		payload, ok := it.walker.Next()
		if !ok {
			it.err = it.walker.Err()
			return false
		}

		hint := filter.TileAll
		if it.view.Filter != nil {
			hint = it.view.Filter.AcceptTile(payload.Tile, payload.Tile.MercatorBounds())
		}
		if hint == filter.TileNone {
			continue
		}

		data, err := it.view.Source.ReadNode(payload.FeatureListPointer)
		if err != nil {
			it.err = err
			return false
		}
		cands, err := it.view.Decode(data)
		if err != nil {
			it.err = err
			return false
		}
		it.pending, it.idx, it.hintAll = cands, 0, hint == filter.TileAll
		return true
	}
}

func (it *Iterator) accepts(c Candidate) bool {
	return accept(it.view, c, it.hintAll)
}

// accept applies view's type mask, matcher programs, and filter to one
// candidate. tileAll reports whether the candidate's tile already got an
// AcceptTile verdict of TileAll, letting the filter skip its per-feature
// test.
func accept(view View, c Candidate, tileAll bool) bool {
	if view.AcceptTypes != 0 && c.Type&view.AcceptTypes == 0 {
		return false
	}
	if len(view.Matchers) > 0 {
		matched := false
		for _, m := range view.Matchers {
			if c.Type&m.AcceptTypes == 0 {
				continue
			}
			if matcher.Accept(m.Program, c.Tags, c.Type) == 1 {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	if view.Filter != nil {
		hint := filter.TileSome
		if tileAll {
			hint = filter.TileAll
		}
		if !view.Filter.AcceptFeature(c, hint) {
			return false
		}
	}
	return true
}
