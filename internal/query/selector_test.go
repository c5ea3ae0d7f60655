package query

import (
	"testing"

	"github.com/geoobj/gol/internal/matcher"
)

func TestAddClauseAscendingOrder(t *testing.T) {
	s := NewSelector(TypeAll)
	s.AddClause("highway", Predicate{Op: OpEqual, StrValue: "primary"})
	s.AddClause("amenity", Predicate{Op: OpPresence})
	s.AddClause("maxspeed", Predicate{Op: OpGreater, NumValue: 50})

	got := s.clauseKeys()
	want := []string{"amenity", "highway", "maxspeed"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("position %d: got %q, want %q", i, got[i], want[i])
		}
	}
}

func TestAddClauseAbsorbsSameKey(t *testing.T) {
	s := NewSelector(TypeAll)
	s.AddClause("maxspeed", Predicate{Op: OpGreater, NumValue: 30})
	s.AddClause("maxspeed", Predicate{Op: OpLessEq, NumValue: 70})

	if len(s.clauseKeys()) != 1 {
		t.Fatalf("expected one absorbed clause, got %v", s.clauseKeys())
	}
	if len(s.Clauses.Preds) != 2 {
		t.Fatalf("expected 2 absorbed predicates, got %d", len(s.Clauses.Preds))
	}
}

func TestIndexBitsSetOnlyForRequiredClauses(t *testing.T) {
	s := NewSelector(TypeAll)
	s.AddClause("highway", Predicate{Op: OpEqual, StrValue: "primary"})
	withPresence := s.IndexBits
	if withPresence == 0 {
		t.Fatal("expected non-zero index bits for a required clause")
	}

	s2 := NewSelector(TypeAll)
	s2.AddClause("highway", Predicate{Op: OpAbsence})
	if s2.IndexBits != 0 {
		t.Errorf("absence clause should not set index bits, got %#x", s2.IndexBits)
	}
}

func TestCompileSingleEqualityMatchesAccept(t *testing.T) {
	s := NewSelector(TypeAll)
	s.AddClause("highway", Predicate{Op: OpEqual, StrValue: "primary"})
	prog := s.Compile(nil)

	if got := matcher.Accept(prog, matcher.MapTags{"highway": "primary"}, TypeWay); got != 1 {
		t.Errorf("got %d, want 1", got)
	}
	if got := matcher.Accept(prog, matcher.MapTags{"highway": "secondary"}, TypeWay); got != 0 {
		t.Errorf("got %d, want 0", got)
	}
}

func TestCompileAndAcrossClauses(t *testing.T) {
	s := NewSelector(TypeAll)
	s.AddClause("highway", Predicate{Op: OpEqual, StrValue: "primary"})
	s.AddClause("maxspeed", Predicate{Op: OpGreaterEq, NumValue: 50, Numeric: true})
	prog := s.Compile(nil)

	tags := matcher.MapTags{"highway": "primary", "maxspeed": "60"}
	if got := matcher.Accept(prog, tags, TypeWay); got != 1 {
		t.Errorf("both clauses satisfied: got %d, want 1", got)
	}

	tags2 := matcher.MapTags{"highway": "primary", "maxspeed": "30"}
	if got := matcher.Accept(prog, tags2, TypeWay); got != 0 {
		t.Errorf("second clause fails: got %d, want 0", got)
	}

	tags3 := matcher.MapTags{"maxspeed": "60"}
	if got := matcher.Accept(prog, tags3, TypeWay); got != 0 {
		t.Errorf("first clause fails: got %d, want 0", got)
	}
}

func TestCompileEmptySelectorAcceptsAll(t *testing.T) {
	s := NewSelector(TypeAll)
	prog := s.Compile(nil)
	if got := matcher.Accept(prog, matcher.MapTags{}, TypeNode); got != 1 {
		t.Errorf("got %d, want 1 for a selector with no tag clauses", got)
	}
}

func TestCompileAbsenceClause(t *testing.T) {
	s := NewSelector(TypeAll)
	s.AddClause("highway", Predicate{Op: OpAbsence})
	prog := s.Compile(nil)

	if got := matcher.Accept(prog, matcher.MapTags{}, TypeWay); got != 1 {
		t.Errorf("no highway tag: got %d, want 1", got)
	}
	if got := matcher.Accept(prog, matcher.MapTags{"highway": "primary"}, TypeWay); got != 0 {
		t.Errorf("has highway tag: got %d, want 0", got)
	}
}
