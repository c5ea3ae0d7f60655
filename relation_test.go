package gol

import (
	"testing"

	"github.com/geoobj/gol/internal/query"
)

func TestStoreMembersResolvesTransitivelyAndIgnoresCycles(t *testing.T) {
	feats := []*Feature{
		{ID: 1, Type: query.TypeNode, Tags: map[string]string{"name": "a"}, bounds: box(0, 0, 0, 0)},
		{ID: 2, Type: query.TypeWay, Tags: map[string]string{"name": "b"}, bounds: box(1, 1, 2, 2)},
		{ID: 10, Type: query.TypeRelation, Tags: map[string]string{"type": "route"}, bounds: box(0, 0, 2, 2), Members: []FeaturePtr{1, 2, 20}},
		{ID: 20, Type: query.TypeRelation, Tags: map[string]string{"type": "route"}, bounds: box(0, 0, 2, 2), Members: []FeaturePtr{10, 2}},
	}
	s := openRebuiltStore(t, feats)

	var rel *Feature
	for _, f := range feats {
		if f.ID == 10 {
			rel = f
		}
	}

	members, err := s.Members(rel)
	if err != nil {
		t.Fatalf("Members: %v", err)
	}
	if len(members) != 3 {
		t.Fatalf("got %d members, want 3 (1, 2, 20 — relation 10 itself excluded)", len(members))
	}

	got := map[FeaturePtr]bool{}
	for _, m := range members {
		got[m.ID] = true
	}
	for _, want := range []FeaturePtr{1, 2, 20} {
		if !got[want] {
			t.Fatalf("members %v missing feature %d", featureIDs(members), want)
		}
	}
	if got[10] {
		t.Fatalf("members %v should not include the relation itself", featureIDs(members))
	}
}

func TestStoreMembersEmptyForPlainFeature(t *testing.T) {
	feats := []*Feature{
		{ID: 1, Type: query.TypeNode, Tags: map[string]string{}, bounds: box(0, 0, 0, 0)},
	}
	s := openRebuiltStore(t, feats)

	members, err := s.Members(feats[0])
	if err != nil {
		t.Fatalf("Members: %v", err)
	}
	if len(members) != 0 {
		t.Fatalf("got %d members, want 0", len(members))
	}
}
