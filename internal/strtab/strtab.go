// Package strtab interns strings to small integer keys and back, used for
// the "global keys (short integer-indexed; interned strings)" half of the
// tag-table layout described in spec.md §3.5. Adapted from the teacher's
// internal/fastmap.Uint32Map open-addressing + fibonacci-hashing scheme,
// generalized from a uint32->pointer map to a string<->uint32 bidirectional
// intern table.
package strtab

// fibHash64 is 2^64 / golden ratio, the 64-bit analogue of the teacher's
// fibHash32 constant, used here to mix the string hash before probing.
const fibHash64 = 11400714819323198485

// Table interns strings as dense uint32 ids starting at 0. Ids are stable
// for the lifetime of the Table (never reused), matching the append-only
// nature of a GOL store's global key dictionary.
type Table struct {
	buckets []bucket
	strings []string // id -> string, dense, append-only
	mask    uint32
}

type bucket struct {
	hash uint64
	id   uint32
	used bool
}

func fnv1a(s string) uint64 {
	const offset64 = 14695981039346656037
	const prime64 = 1099511628211
	h := uint64(offset64)
	for i := 0; i < len(s); i++ {
		h ^= uint64(s[i])
		h *= prime64
	}
	return h
}

func (t *Table) probeStart(h uint64) uint32 {
	mixed := h * fibHash64
	return uint32(mixed) & t.mask
}

// Intern returns the id for s, creating a new one if s has not been seen
// before.
func (t *Table) Intern(s string) uint32 {
	if len(t.buckets) == 0 {
		t.buckets = make([]bucket, 16)
		t.mask = 15
	} else if len(t.strings) >= len(t.buckets)*3/4 {
		t.grow()
	}

	h := fnv1a(s)
	idx := t.probeStart(h)
	for {
		b := &t.buckets[idx]
		if !b.used {
			id := uint32(len(t.strings))
			t.strings = append(t.strings, s)
			b.hash = h
			b.id = id
			b.used = true
			return id
		}
		if b.hash == h && t.strings[b.id] == s {
			return b.id
		}
		idx = (idx + 1) & t.mask
	}
}

// Lookup returns the id for s without interning it; ok is false if s has
// never been interned.
func (t *Table) Lookup(s string) (uint32, bool) {
	if len(t.buckets) == 0 {
		return 0, false
	}
	h := fnv1a(s)
	idx := t.probeStart(h)
	for {
		b := &t.buckets[idx]
		if !b.used {
			return 0, false
		}
		if b.hash == h && t.strings[b.id] == s {
			return b.id, true
		}
		idx = (idx + 1) & t.mask
	}
}

// String returns the string for a previously interned id.
func (t *Table) String(id uint32) (string, bool) {
	if id >= uint32(len(t.strings)) {
		return "", false
	}
	return t.strings[id], true
}

// Len returns the number of interned strings.
func (t *Table) Len() int { return len(t.strings) }

func (t *Table) grow() {
	old := t.buckets
	newSize := len(old) * 2
	t.buckets = make([]bucket, newSize)
	t.mask = uint32(newSize - 1)
	for i := range old {
		if !old[i].used {
			continue
		}
		idx := t.probeStart(old[i].hash)
		for t.buckets[idx].used {
			idx = (idx + 1) & t.mask
		}
		t.buckets[idx] = old[i]
	}
}
