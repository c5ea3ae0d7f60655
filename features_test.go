package gol

import (
	"path/filepath"
	"sort"
	"testing"

	"github.com/geoobj/gol/internal/query"
	"github.com/geoobj/gol/internal/tilewalk"
)

func openRebuiltStore(t *testing.T, feats []*Feature) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "store.gol")
	s, err := Open(path, true)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	if err := s.Rebuild(feats); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	return s
}

func box(minX, minY, maxX, maxY float64) tilewalk.BBox {
	return tilewalk.BBox{MinX: minX, MinY: minY, MaxX: maxX, MaxY: maxY}
}

func featureIDs(feats []*Feature) []int {
	ids := make([]int, len(feats))
	for i, f := range feats {
		ids[i] = int(f.ID)
	}
	sort.Ints(ids)
	return ids
}

func TestFeaturesSliceReturnsEveryFeature(t *testing.T) {
	feats := []*Feature{
		{ID: 1, Type: query.TypeWay, Tags: map[string]string{"highway": "primary"}, bounds: box(-1, -1, 1, 1)},
		{ID: 2, Type: query.TypeWay, Tags: map[string]string{"highway": "secondary"}, bounds: box(100, 100, 101, 101)},
		{ID: 3, Type: query.TypeNode, Tags: map[string]string{"amenity": "cafe"}, bounds: box(5, 5, 5, 5)},
	}
	s := openRebuiltStore(t, feats)

	got, err := s.Features().Slice()
	if err != nil {
		t.Fatalf("Slice: %v", err)
	}
	if diff := featureIDs(got); len(diff) != 3 {
		t.Fatalf("got %v, want 3 features", diff)
	}
}

func TestFeaturesTypeRestriction(t *testing.T) {
	feats := []*Feature{
		{ID: 1, Type: query.TypeWay, Tags: map[string]string{}, bounds: box(-1, -1, 1, 1)},
		{ID: 2, Type: query.TypeNode, Tags: map[string]string{}, bounds: box(-1, -1, 1, 1)},
	}
	s := openRebuiltStore(t, feats)

	ways, err := s.Ways().Slice()
	if err != nil {
		t.Fatalf("Slice: %v", err)
	}
	if len(ways) != 1 || ways[0].ID != 1 {
		t.Fatalf("got %v, want just feature 1", featureIDs(ways))
	}
}

func TestFeaturesQueryMatchesGOQL(t *testing.T) {
	feats := []*Feature{
		{ID: 1, Type: query.TypeWay, Tags: map[string]string{"highway": "primary"}, bounds: box(-1, -1, 1, 1)},
		{ID: 2, Type: query.TypeWay, Tags: map[string]string{"highway": "secondary"}, bounds: box(-1, -1, 1, 1)},
		{ID: 3, Type: query.TypeWay, Tags: map[string]string{}, bounds: box(-1, -1, 1, 1)},
	}
	s := openRebuiltStore(t, feats)

	matched, err := s.Ways().Query(`[highway=primary]`)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	got, err := matched.Slice()
	if err != nil {
		t.Fatalf("Slice: %v", err)
	}
	if len(got) != 1 || got[0].ID != 1 {
		t.Fatalf("got %v, want just feature 1", featureIDs(got))
	}
}

func TestFeaturesQuerySyntaxError(t *testing.T) {
	s := openRebuiltStore(t, nil)
	if _, err := s.Features().Query(`w[highway=]`); err == nil || !IsKind(err, QuerySyntax) {
		t.Fatalf("got %v, want QuerySyntax", err)
	}
}

func TestFeaturesWithinFilter(t *testing.T) {
	feats := []*Feature{
		{ID: 1, Type: query.TypeNode, Tags: map[string]string{}, bounds: box(-1, -1, 1, 1)},
		{ID: 2, Type: query.TypeNode, Tags: map[string]string{}, bounds: box(1000, 1000, 1001, 1001)},
	}
	s := openRebuiltStore(t, feats)

	near, err := s.Features().Within(box(-10, -10, 10, 10)).Slice()
	if err != nil {
		t.Fatalf("Slice: %v", err)
	}
	if len(near) != 1 || near[0].ID != 1 {
		t.Fatalf("got %v, want just feature 1", featureIDs(near))
	}
}

func TestFeaturesCountOneFirst(t *testing.T) {
	feats := []*Feature{
		{ID: 1, Type: query.TypeNode, Tags: map[string]string{"name": "a"}, bounds: box(-1, -1, 1, 1)},
	}
	s := openRebuiltStore(t, feats)

	n, err := s.Features().Count()
	if err != nil || n != 1 {
		t.Fatalf("Count() = %d, %v; want 1, nil", n, err)
	}

	one, err := s.Features().One()
	if err != nil || one.ID != 1 {
		t.Fatalf("One() = %v, %v; want feature 1", one, err)
	}

	first, err := s.Features().First()
	if err != nil || first.ID != 1 {
		t.Fatalf("First() = %v, %v; want feature 1", first, err)
	}
}

func TestFeaturesOneFailsWhenNotUnique(t *testing.T) {
	feats := []*Feature{
		{ID: 1, Type: query.TypeNode, Tags: map[string]string{}, bounds: box(-1, -1, 1, 1)},
		{ID: 2, Type: query.TypeNode, Tags: map[string]string{}, bounds: box(-1, -1, 1, 1)},
	}
	s := openRebuiltStore(t, feats)

	if _, err := s.Features().One(); err == nil || !IsNotUnique(err) {
		t.Fatalf("got %v, want QueryNotUnique", err)
	}
}

func TestFeaturesOneFailsWhenEmpty(t *testing.T) {
	s := openRebuiltStore(t, nil)
	if _, err := s.Features().One(); err == nil || !IsNotUnique(err) {
		t.Fatalf("got %v, want QueryNotUnique", err)
	}
}

func TestFeaturesPredicateFilter(t *testing.T) {
	feats := []*Feature{
		{ID: 1, Type: query.TypeNode, Tags: map[string]string{"name": "Keep"}, bounds: box(-1, -1, 1, 1)},
		{ID: 2, Type: query.TypeNode, Tags: map[string]string{"name": "Drop"}, bounds: box(-1, -1, 1, 1)},
	}
	s := openRebuiltStore(t, feats)

	kept, err := s.Features().Filter(func(f *Feature) bool { return f.Tags["name"] == "Keep" }).Slice()
	if err != nil {
		t.Fatalf("Slice: %v", err)
	}
	if len(kept) != 1 || kept[0].ID != 1 {
		t.Fatalf("got %v, want just feature 1", featureIDs(kept))
	}
}

func TestFeaturesMultiThreadedMatchesSingleThreaded(t *testing.T) {
	feats := []*Feature{
		{ID: 1, Type: query.TypeWay, Tags: map[string]string{"highway": "primary"}, bounds: box(-1, -1, 1, 1)},
		{ID: 2, Type: query.TypeWay, Tags: map[string]string{"highway": "secondary"}, bounds: box(2, 2, 3, 3)},
		{ID: 3, Type: query.TypeWay, Tags: map[string]string{"highway": "primary"}, bounds: box(4, 4, 5, 5)},
	}

	path := filepath.Join(t.TempDir(), "mt.gol")
	s, err := Open(path, true, WithMultiThreaded(true), WithWorkerCount(3))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	if err := s.Rebuild(feats); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}

	matched, err := s.Ways().Query(`[highway=primary]`)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	got, err := matched.Slice()
	if err != nil {
		t.Fatalf("Slice: %v", err)
	}
	if len(featureIDs(got)) != 2 {
		t.Fatalf("got %v, want features 1 and 3", featureIDs(got))
	}
}

func TestFeaturesEachStopsEarly(t *testing.T) {
	feats := []*Feature{
		{ID: 1, Type: query.TypeNode, Tags: map[string]string{}, bounds: box(-1, -1, 1, 1)},
		{ID: 2, Type: query.TypeNode, Tags: map[string]string{}, bounds: box(2, 2, 3, 3)},
		{ID: 3, Type: query.TypeNode, Tags: map[string]string{}, bounds: box(4, 4, 5, 5)},
	}
	s := openRebuiltStore(t, feats)

	count := 0
	err := s.Features().Each(func(*Feature) bool {
		count++
		return false
	})
	if err != nil {
		t.Fatalf("Each: %v", err)
	}
	if count != 1 {
		t.Fatalf("Each visited %d features, want exactly 1 after stopping early", count)
	}
}
