// Package matcher implements the closed-world bytecode VM that evaluates
// compiled tag-expression programs against a feature's tag table
// (spec.md §4.D).
package matcher

// GlobalKey is a short integer-indexed tag key (interned string id), used
// when the feature's tag table uses the global-key layout (spec.md §3.5).
type GlobalKey uint16

// Tags is the minimal view the VM needs over a feature's tag table: lookup
// by either the global interned-key id or a raw local-key string. A real
// feature's tag table picks one layout per spec.md §3.5 ("the low bit of
// the tag-table base pointer distinguishes the two layouts"); callers
// supply whichever lookup applies and leave the other nil.
type Tags interface {
	// GlobalValue returns the string value tagged under the given
	// interned global key, and whether it was present.
	GlobalValue(key GlobalKey) (string, bool)
	// LocalValue returns the string value tagged under the given raw
	// local-key string, and whether it was present.
	LocalValue(key string) (string, bool)
}

// MapTags is a Tags implementation backed by a plain map, used in tests and
// by callers that have already materialized a feature's tags.
type MapTags map[string]string

func (m MapTags) GlobalValue(key GlobalKey) (string, bool) {
	v, ok := m[globalKeyNames[key]]
	return v, ok
}

func (m MapTags) LocalValue(key string) (string, bool) {
	v, ok := m[key]
	return v, ok
}

// globalKeyNames is the process-wide interned-key table used by MapTags in
// tests; real callers resolve global keys through the store's string
// table (internal/strtab) instead.
var globalKeyNames = map[GlobalKey]string{}

// RegisterGlobalKey is a test/bootstrap helper associating a global key id
// with its interned string, mirroring how a real store would populate the
// mapping from internal/strtab at load time.
func RegisterGlobalKey(key GlobalKey, name string) {
	globalKeyNames[key] = name
}
