// Package query implements the Selector / query-plan layer (spec.md
// §4.E) and the GOQL tokenizer/parser that compiles text into Selectors.
package query

import (
	"github.com/geoobj/gol/internal/matcher"
)

// ClauseOp enumerates the comparison kinds a GOQL clause can carry
// (spec.md §6: presence, absence, =, !=, <, <=, >, >=, regex ~).
type ClauseOp int

const (
	OpPresence ClauseOp = iota
	OpAbsence
	OpEqual
	OpNotEqual
	OpLess
	OpLessEq
	OpGreater
	OpGreaterEq
	OpRegex
)

func (op ClauseOp) requiresKey() bool { return op != OpAbsence }

// Predicate is one test applied to an already-loaded tag value.
type Predicate struct {
	Op       ClauseOp
	StrValue string
	NumValue float64
	Numeric  bool
}

// TagClause is a linked-list node over a single tag key, carrying every
// predicate asserted against that key (spec.md §4.E: "equal keys are
// absorbed (merged in place) so a selector has at most one clause per
// key").
type TagClause struct {
	Key   string
	Preds []Predicate
	Next  *TagClause
}

func (c *TagClause) required() bool {
	for _, p := range c.Preds {
		if p.Op.requiresKey() {
			return true
		}
	}
	return false
}

// Selector is a linked-list node carrying an accepted-type mask, index
// bits derived from clause categories, and the head of a TagClause chain
// (spec.md §4.E).
type Selector struct {
	AcceptedTypes uint32
	IndexBits     uint32
	Clauses       *TagClause
	Next          *Selector
}

// NewSelector creates an empty selector accepting the given type mask.
func NewSelector(acceptedTypes uint32) *Selector {
	return &Selector{AcceptedTypes: acceptedTypes}
}

// categoryBit derives a stable index-bit for a key, used to let per-tile
// indexes skip tiles whose population cannot satisfy a KEY_REQUIRED
// clause (spec.md §4.E). A small FNV-1a fold keeps the bit assignment
// deterministic across processes without needing a shared key registry.
func categoryBit(key string) uint32 {
	var h uint32 = 2166136261
	for i := 0; i < len(key); i++ {
		h ^= uint32(key[i])
		h *= 16777619
	}
	return 1 << (h % 32)
}

// AddClause inserts a clause for key carrying preds in ascending key order,
// absorbing preds into an existing clause of the same key in place rather
// than appending a duplicate node.
func (s *Selector) AddClause(key string, preds ...Predicate) {
	for c := s.Clauses; c != nil; c = c.Next {
		if c.Key == key {
			c.Preds = append(c.Preds, preds...)
			if c.required() {
				s.IndexBits |= categoryBit(key)
			}
			return
		}
	}

	nc := &TagClause{Key: key, Preds: preds}
	if nc.required() {
		s.IndexBits |= categoryBit(key)
	}

	if s.Clauses == nil || key < s.Clauses.Key {
		nc.Next = s.Clauses
		s.Clauses = nc
		return
	}
	prev := s.Clauses
	for prev.Next != nil && prev.Next.Key < key {
		prev = prev.Next
	}
	nc.Next = prev.Next
	prev.Next = nc
}

// clauseKeys returns the clause keys in chain order, for tests.
func (s *Selector) clauseKeys() []string {
	var keys []string
	for c := s.Clauses; c != nil; c = c.Next {
		keys = append(keys, c.Key)
	}
	return keys
}

// GlobalKeyResolver maps a GOQL tag key string to its interned global-key
// id, when the store uses the global-key tag-table layout (spec.md §3.5).
// A nil resolver means "always compile to LOAD_LOCAL_KEY".
type GlobalKeyResolver interface {
	Resolve(key string) (matcher.GlobalKey, bool)
}

// Compile assembles s's clause chain into a matcher.Program. Clauses
// within the chain, and predicates within a clause, are ANDed with
// short-circuit evaluation; a query's top-level OR relation is expressed
// by compiling each Selector separately (spec.md §4.E).
func (s *Selector) Compile(resolver GlobalKeyResolver) *matcher.Program {
	b := matcher.NewBuilder()
	b.FirstClause()

	emitPredicate := func(p Predicate) {
		switch p.Op {
		case OpPresence:
			_, _ = b.CmpRegex(".*", false)
		case OpAbsence:
			_, _ = b.CmpRegex(".*", true)
		case OpEqual:
			b.CmpStrEq(p.StrValue, false)
		case OpNotEqual:
			b.CmpStrEq(p.StrValue, true)
		case OpLess:
			b.CmpDouble(matcher.OpLt, p.NumValue, false)
		case OpLessEq:
			b.CmpDouble(matcher.OpLe, p.NumValue, false)
		case OpGreater:
			b.CmpDouble(matcher.OpGt, p.NumValue, false)
		case OpGreaterEq:
			b.CmpDouble(matcher.OpGe, p.NumValue, false)
		case OpRegex:
			_, _ = b.CmpRegex(p.StrValue, false)
		}
	}

	var clauses []*TagClause
	for c := s.Clauses; c != nil; c = c.Next {
		clauses = append(clauses, c)
	}

	for ci, c := range clauses {
		isGlobal := false
		var gk matcher.GlobalKey
		if resolver != nil {
			gk, isGlobal = resolver.Resolve(c.Key)
		}
		if isGlobal {
			b.LoadGlobalKey(gk)
		} else {
			b.LoadLocalKey(c.Key)
		}

		for pi, p := range c.Preds {
			emitPredicate(p)
			last := ci == len(clauses)-1 && pi == len(c.Preds)-1
			if !last {
				fixup := b.GotoIfMatched()
				b.Return()
				b.PatchJump(fixup)
			}
		}
	}
	b.Return()

	return b.Build()
}
