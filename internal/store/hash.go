package store

// TableSize is the fixed bucket count of the sharded hash store. Preserved
// from the reference implementation for test compatibility (spec.md §4.1).
const TableSize = 26

// hashIndex maps a key to its owning bucket by the key's first byte only:
// 'a'-'z' (case-folded) -> 0-25, '0'-'9' -> 0-9. Digits therefore collapse
// into the same index range as the first ten letters — this is a known
// quality-of-implementation wart inherited from the reference
// implementation and preserved intentionally (spec.md §9's Open Questions:
// "the spec above preserves it for compatibility"). Any other leading byte
// yields -1, rejected by every caller.
func hashIndex(key string) int {
	if len(key) == 0 {
		return -1
	}
	c := key[0]
	if c >= 'A' && c <= 'Z' {
		c += 'a' - 'A'
	}
	switch {
	case c >= 'a' && c <= 'z':
		return int(c - 'a')
	case c >= '0' && c <= '9':
		return int(c - '0')
	default:
		return -1
	}
}
