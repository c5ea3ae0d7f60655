package gol

import (
	"testing"

	"github.com/geoobj/gol/internal/matcher"
	"github.com/geoobj/gol/internal/strtab"
	"github.com/geoobj/gol/internal/tilewalk"
)

func TestFeatureListRoundTrip(t *testing.T) {
	feats := []*Feature{
		{
			ID:   1,
			Type: 1,
			Tags: map[string]string{"highway": "primary", "name": "Main St"},
			bounds: tilewalk.BBox{
				MinX: -10, MinY: -10, MaxX: 10, MaxY: 10,
			},
		},
		{
			ID:     2,
			Type:   2,
			Tags:   map[string]string{},
			bounds: tilewalk.BBox{MinX: 5, MinY: 5, MaxX: 5, MaxY: 5},
		},
		{
			ID:      3,
			Type:    8,
			Tags:    map[string]string{"type": "route"},
			Members: []FeaturePtr{1, 2},
			bounds:  tilewalk.BBox{MinX: -10, MinY: -10, MaxX: 10, MaxY: 10},
		},
	}

	encoded := EncodeFeatureList(feats)
	decoded, err := DecodeFeatureList(encoded, nil)
	if err != nil {
		t.Fatalf("DecodeFeatureList: %v", err)
	}
	if len(decoded) != len(feats) {
		t.Fatalf("got %d features, want %d", len(decoded), len(feats))
	}
	for i, f := range feats {
		got := decoded[i]
		if got.ID != f.ID || got.Type != f.Type {
			t.Errorf("feature %d: got ID/Type %d/%d, want %d/%d", i, got.ID, got.Type, f.ID, f.Type)
		}
		if got.bounds != f.bounds {
			t.Errorf("feature %d: got bounds %+v, want %+v", i, got.bounds, f.bounds)
		}
		for k, v := range f.Tags {
			if got.Tags[k] != v {
				t.Errorf("feature %d: tag %q = %q, want %q", i, k, got.Tags[k], v)
			}
		}
		if len(got.Members) != len(f.Members) {
			t.Errorf("feature %d: got %d members, want %d", i, len(got.Members), len(f.Members))
		}
		for j, m := range f.Members {
			if j >= len(got.Members) || got.Members[j] != m {
				t.Errorf("feature %d: member %d = %v, want %v", i, j, got.Members, f.Members)
			}
		}
	}
}

func TestFeatureListDecodeTruncated(t *testing.T) {
	if _, err := DecodeFeatureList([]byte{1, 0}, nil); err == nil {
		t.Fatal("expected an error decoding a truncated feature list")
	}
}

func TestFeatureListEmpty(t *testing.T) {
	decoded, err := DecodeFeatureList(EncodeFeatureList(nil), nil)
	if err != nil {
		t.Fatalf("DecodeFeatureList: %v", err)
	}
	if len(decoded) != 0 {
		t.Fatalf("got %d features, want 0", len(decoded))
	}
}

func TestFeatureTagsGlobalKeyResolution(t *testing.T) {
	names := &strtab.Table{}
	id := names.Intern("highway")

	f := &Feature{Tags: map[string]string{"highway": "primary"}}
	tags := featureTags{feature: f, names: names}

	v, ok := tags.GlobalValue(matcher.GlobalKey(id))
	if !ok || v != "primary" {
		t.Fatalf("GlobalValue(%d) = %q, %v; want \"primary\", true", id, v, ok)
	}

	unknown := names.Intern("surface") + 1000
	if _, ok := tags.GlobalValue(matcher.GlobalKey(unknown)); ok {
		t.Fatalf("expected no value for an unregistered global key id %d", unknown)
	}
}
