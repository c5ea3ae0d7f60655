package gol

import (
	"fmt"
	"math"

	"github.com/geoobj/gol/internal/exec"
	"github.com/geoobj/gol/internal/filter"
	"github.com/geoobj/gol/internal/matcher"
	"github.com/geoobj/gol/internal/query"
	"github.com/geoobj/gol/internal/tilewalk"
)

var errNoStore = fmt.Errorf("gol: features handle has no store")

// Features is a persistent query-plan handle (spec.md §4.G): every filter
// method below returns a new Features value rather than mutating the
// receiver, so a Features can be freely shared and reused as a base for
// several different refinements.
type Features struct {
	store       *Store
	acceptTypes uint32
	clauses     []queryClause
	filter      filter.Filter
	box         tilewalk.BBox
}

type queryClause struct {
	selector *query.Selector
	program  *matcher.Program
}

var wholeWorld = tilewalk.BBox{MinX: -20037508.342789244, MinY: -20037508.342789244, MaxX: 20037508.342789244, MaxY: 20037508.342789244}

// Features returns a handle over every feature type in the store.
func (s *Store) Features() Features {
	return Features{store: s, acceptTypes: query.TypeAll, box: wholeWorld}
}

// Nodes returns a handle restricted to node features.
func (s *Store) Nodes() Features { return s.typedFeatures(query.TypeNode) }

// Ways returns a handle restricted to way features.
func (s *Store) Ways() Features { return s.typedFeatures(query.TypeWay) }

// Areas returns a handle restricted to area features.
func (s *Store) Areas() Features { return s.typedFeatures(query.TypeArea) }

// Relations returns a handle restricted to relation features.
func (s *Store) Relations() Features { return s.typedFeatures(query.TypeRelation) }

func (s *Store) typedFeatures(mask uint32) Features {
	return Features{store: s, acceptTypes: mask, box: wholeWorld}
}

// Query compiles goqlText and restricts f to features matching at least one
// of its comma-separated Selectors, narrowed further by f's own type mask
// (spec.md §4.E/§4.G). A GOQL selector's own type letter (n/w/a/r) further
// narrows that one Selector's applicability, not f as a whole.
func (f Features) Query(goqlText string) (Features, error) {
	selectors, err := query.Compile(goqlText)
	if err != nil {
		return Features{}, &Error{Kind: QuerySyntax, Path: goqlText, Err: err}
	}

	nf := f
	nf.clauses = append([]queryClause(nil), f.clauses...)
	var resolver query.GlobalKeyResolver
	if f.store != nil {
		resolver = globalKeyResolver{store: f.store}
	}
	for _, sel := range selectors {
		nf.clauses = append(nf.clauses, queryClause{
			selector: sel,
			program:  sel.Compile(resolver),
		})
	}
	return nf, nil
}

// globalKeyResolver adapts Store's interned-key table to
// internal/query.GlobalKeyResolver.
type globalKeyResolver struct{ store *Store }

func (r globalKeyResolver) Resolve(key string) (matcher.GlobalKey, bool) {
	id, ok := r.store.names.Lookup(key)
	return matcher.GlobalKey(id), ok
}

// Within restricts f to features whose bounding box lies entirely inside box.
func (f Features) Within(box tilewalk.BBox) Features {
	return f.withFilter(&filter.WithinFilter{Box: box}, box)
}

// Intersecting restricts f to features whose bounding box intersects box.
func (f Features) Intersecting(box tilewalk.BBox) Features {
	return f.withFilter(&filter.IntersectingFilter{Box: box}, box)
}

// Containing restricts f to features whose bounding box contains box.
func (f Features) Containing(box tilewalk.BBox) Features {
	return f.withFilter(&filter.ContainingFilter{Box: box}, tilewalk.BBox{})
}

// Disjoint restricts f to features whose bounding box does not intersect box.
func (f Features) Disjoint(box tilewalk.BBox) Features {
	return f.withFilter(&filter.DisjointFilter{Box: box}, tilewalk.BBox{})
}

// MaxMetersFrom restricts f to features within maxMeters of (x, y), measured
// between bounding-box centroids (spec.md §4.F's spatial filter family).
func (f Features) MaxMetersFrom(x, y, maxMeters float64) Features {
	reach := tilewalk.BBox{MinX: x - maxMeters, MinY: y - maxMeters, MaxX: x + maxMeters, MaxY: y + maxMeters}
	return f.withFilter(&filter.MaxMetersFromFilter{CenterX: x, CenterY: y, MaxMeters: maxMeters}, reach)
}

// Filter restricts f to features for which pred returns true. Because an
// arbitrary Go predicate gives no coarse per-tile verdict, every feature in
// a candidate tile is still decoded and tested individually.
func (f Features) Filter(pred func(*Feature) bool) Features {
	wrapped := func(ff filter.Feature) bool {
		fe, ok := ff.(exec.Candidate)
		if !ok {
			return false
		}
		return pred(candidateToFeature(fe))
	}
	return f.withFilter(&filter.PredicateFilter{Fn: wrapped}, wholeWorld)
}

// candidateToFeature recovers the decoded *Feature behind an
// exec.Candidate, when the candidate's Tags were built by
// Store.decodeCandidates (they always are, within this package).
func candidateToFeature(c exec.Candidate) *Feature {
	if ft, ok := c.Tags.(featureTags); ok {
		return ft.feature
	}
	return &Feature{ID: FeaturePtr(c.ID), Type: c.Type, bounds: c.Box}
}

// withFilter composes add into f's ComboFilter (flattened, per
// internal/filter's Add semantics) and intersects box into f's walk
// bounding box, returning a new Features value.
func (f Features) withFilter(add filter.Filter, box tilewalk.BBox) Features {
	nf := f
	var subs []filter.Filter
	if f.filter != nil {
		subs = append(subs, f.filter)
	}
	subs = append(subs, add)
	nf.filter = filter.NewComboFilter(subs...)
	if box != (tilewalk.BBox{}) {
		nf.box = intersectBBox(f.box, box)
	}
	return nf
}

func intersectBBox(a, b tilewalk.BBox) tilewalk.BBox {
	return tilewalk.BBox{
		MinX: math.Max(a.MinX, b.MinX),
		MinY: math.Max(a.MinY, b.MinY),
		MaxX: math.Min(a.MaxX, b.MaxX),
		MaxY: math.Min(a.MaxY, b.MaxY),
	}
}

// buildView assembles the executor's View for f.
func (f Features) buildView() (exec.View, error) {
	if f.store == nil {
		return exec.View{}, &Error{Kind: QueryEmpty, Err: errNoStore}
	}
	rootPtr, rootTile, err := f.store.indexRoot()
	if err != nil {
		return exec.View{}, err
	}

	matchers := make([]exec.MatcherEntry, 0, len(f.clauses))
	for _, c := range f.clauses {
		mask := f.acceptTypes
		if c.selector.AcceptedTypes != 0 {
			mask &= c.selector.AcceptedTypes
		}
		matchers = append(matchers, exec.MatcherEntry{AcceptTypes: mask, Program: c.program})
	}

	return exec.View{
		Source:      nodeSource{f.store},
		RootPointer: rootPtr,
		RootTile:    rootTile,
		QueryBox:    f.box,
		AcceptTypes: f.acceptTypes,
		Matchers:    matchers,
		Filter:      f.filter,
		Decode:      f.store.decodeCandidates,
	}, nil
}

// Each calls fn for every matching feature, stopping early if fn returns
// false. Queries are never cached (spec.md §4.G): every call re-walks the
// index from scratch.
//
// In single-threaded mode (the default), features arrive in the walker's
// deterministic depth-first tile order and Each can stop the walk itself
// on early exit. In multi-threaded mode (spec.md §5's one compile-time
// option, opened via WithMultiThreaded), every surviving tile's decode and
// filter work has already run concurrently across internal/taskqueue
// workers before Each starts calling fn, so an early return from fn stops
// the callback loop but not work already dispatched, and result order is
// not reproducible across runs.
func (f Features) Each(fn func(*Feature) bool) error {
	view, err := f.buildView()
	if err != nil {
		return err
	}

	if f.store.opts.multiThreaded {
		cands, err := exec.RunConcurrent(view, f.store.opts.workerCount)
		if err != nil {
			return err
		}
		for _, c := range cands {
			if !fn(candidateToFeature(c)) {
				return nil
			}
		}
		return nil
	}

	it := exec.Run(view)
	for {
		c, ok := it.Next()
		if !ok {
			return it.Err()
		}
		if !fn(candidateToFeature(c)) {
			return nil
		}
	}
}

// Slice eagerly collects every matching feature into a slice.
func (f Features) Slice() ([]*Feature, error) {
	var out []*Feature
	err := f.Each(func(feat *Feature) bool {
		out = append(out, feat)
		return true
	})
	return out, err
}

// Count returns how many features match f.
func (f Features) Count() (int, error) {
	n := 0
	err := f.Each(func(*Feature) bool {
		n++
		return true
	})
	return n, err
}

// First returns the first matching feature, or a QueryEmpty error if none
// match.
func (f Features) First() (*Feature, error) {
	var found *Feature
	err := f.Each(func(feat *Feature) bool {
		found = feat
		return false
	})
	if err != nil {
		return nil, err
	}
	if found == nil {
		return nil, &Error{Kind: QueryEmpty, Err: fmt.Errorf("no feature matched")}
	}
	return found, nil
}

// One returns the single matching feature, failing with QueryNotUnique if
// zero or more than one feature matches (spec.md §4.G).
func (f Features) One() (*Feature, error) {
	var found *Feature
	count := 0
	err := f.Each(func(feat *Feature) bool {
		count++
		if count == 1 {
			found = feat
		}
		return count < 2
	})
	if err != nil {
		return nil, err
	}
	if count != 1 {
		return nil, &Error{Kind: QueryNotUnique, Err: fmt.Errorf("query matched %d features", count)}
	}
	return found, nil
}
