package matcher

import "regexp"

// Pool is the constant pool a Program indexes into for its inline operands
// (spec.md §3.5: "Programs are built at GOQL compile time; each Selector
// owns one"). Regexes are precompiled here, at compile time, never at VM
// run time — the VM only ever indexes into Regexes.
type Pool struct {
	Strings []string
	Doubles []float64
	Regexes []*regexp.Regexp
	Masks   []uint32
}

// Program is a compiled matcher: a stream of 16-bit instruction words plus
// the constant pool they index into (spec.md §4.D).
type Program struct {
	Code []uint16
	Pool Pool
}

// Builder assembles a Program one instruction at a time. GOQL compilation
// (internal/query) uses this instead of hand-encoding instruction words.
type Builder struct {
	code []uint16
	pool Pool
}

func NewBuilder() *Builder {
	return &Builder{}
}

func (b *Builder) emit(op Opcode, negate bool, operands ...uint16) int {
	at := len(b.code)
	word := uint16(op)
	if negate {
		word |= negateFlag
	}
	b.code = append(b.code, word)
	b.code = append(b.code, operands...)
	return at
}

// Return emits RETURN.
func (b *Builder) Return() { b.emit(opReturn, false) }

// Goto emits an unconditional jump and returns the index of its offset
// operand word, so the caller can patch it once the jump target is known
// (forward-reference pattern, same as the teacher's two-pass assemblers
// use for branch fixups).
func (b *Builder) Goto() (fixup int) {
	at := b.emit(opGoto, false, 0)
	return at + 1
}

// GotoIfMatched emits a conditional jump with the same fixup convention.
func (b *Builder) GotoIfMatched() (fixup int) {
	at := b.emit(opGotoIfMatched, false, 0)
	return at + 1
}

// PatchJump writes the relative offset from fixup's instruction start to
// the current end of the code stream.
func (b *Builder) PatchJump(fixup int) {
	target := len(b.code)
	opWord := fixup - 1
	offset := target - opWord
	b.code[fixup] = uint16(int16(offset))
}

func (b *Builder) LoadGlobalKey(key GlobalKey) {
	b.emit(opLoadGlobalKey, false, uint16(key))
}

func (b *Builder) LoadLocalKey(key string) {
	idx := b.internString(key)
	b.emit(opLoadLocalKey, false, idx)
}

func (b *Builder) CmpStrEq(value string, negate bool) {
	idx := b.internString(value)
	b.emit(opCmpStrEq, negate, idx)
}

func (b *Builder) CmpDouble(op DoubleOp, value float64, negate bool) {
	idx := b.internDouble(value)
	b.emit(opCmpDoubleOp, negate, uint16(op), idx)
}

func (b *Builder) CmpRegex(pattern string, negate bool) (*Builder, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return b, err
	}
	idx := uint16(len(b.pool.Regexes))
	b.pool.Regexes = append(b.pool.Regexes, re)
	b.emit(opCmpRegex, negate, idx)
	return b, nil
}

func (b *Builder) CmpType(mask uint32, negate bool) {
	idx := uint16(len(b.pool.Masks))
	b.pool.Masks = append(b.pool.Masks, mask)
	b.emit(opCmpType, negate, idx)
}

// FirstClause marks the entry point of a TagClause chain (spec.md §4.D).
// It is a no-op at run time; it exists so the Selector compiler has a
// stable landing offset per clause.
func (b *Builder) FirstClause() int {
	return b.emit(opFirstClause, false)
}

func (b *Builder) internString(s string) uint16 {
	for i, existing := range b.pool.Strings {
		if existing == s {
			return uint16(i)
		}
	}
	idx := uint16(len(b.pool.Strings))
	b.pool.Strings = append(b.pool.Strings, s)
	return idx
}

func (b *Builder) internDouble(v float64) uint16 {
	for i, existing := range b.pool.Doubles {
		if existing == v {
			return uint16(i)
		}
	}
	idx := uint16(len(b.pool.Doubles))
	b.pool.Doubles = append(b.pool.Doubles, v)
	return idx
}

// Build finalizes the Program.
func (b *Builder) Build() *Program {
	return &Program{Code: b.code, Pool: b.pool}
}
