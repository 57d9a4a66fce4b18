// Package op implements the table operators of the event-derivation pipeline.
//
// Every operator is a pure table→table transformation configured through
// exported struct fields and applied via
//
//	Apply(rows []events.Row, d *events.Diag) []events.Row
//
// Rows not matched by an operator's selector pass through unchanged, and an
// operator whose selector matches nothing is a no-op. Operators never panic
// on malformed data; degraded situations are logged to the Diag sink with a
// defined fallback value.
package op

import (
	"encoding/binary"
	"math"

	"github.com/zeebo/xxh3"

	"bidsevents/internal/events"
)

// keyHash is the 64-bit xxh3 hash of a composite key tuple. Component kinds
// are tagged before hashing so the string "1" and the number 1 never collide,
// and components are separated by a 0x1f byte so ("ab","c") differs from
// ("a","bc").
type keyHash uint64

// hashKey computes the hash of the key tuple (keys...) on row r. It returns
// ok=false when any component is null or absent: null-containing keys are
// unmatchable and excluded from grouping and joining on both sides.
func hashKey(r events.Row, keys []string) (keyHash, bool) {
	h := xxh3.New()
	var buf [9]byte
	for i, k := range keys {
		v := r.Get(k)
		if v.IsNull() {
			return 0, false
		}
		if i > 0 {
			buf[0] = 0x1f
			h.Write(buf[:1])
		}
		if s, ok := v.Str(); ok {
			buf[0] = 's'
			h.Write(buf[:1])
			h.WriteString(s)
		} else {
			n, _ := v.Num()
			buf[0] = 'n'
			binary.LittleEndian.PutUint64(buf[1:], math.Float64bits(n))
			h.Write(buf[:9])
		}
	}
	return keyHash(h.Sum64()), true
}

// keyIndex maps a key hash to the row positions (into the operator's input
// slice) that carry that key. Positions are stored in table order, so
// "last seen wins" is well defined.
type keyIndex map[keyHash][]int

// buildKeyIndex indexes the rows at positions idx whose key tuple is fully
// non-null. Construction is one pass; join operators build it once per
// invocation (or once per scope partition when scoped).
func buildKeyIndex(rows []events.Row, idx []int, keys []string) keyIndex {
	index := make(keyIndex)
	for _, i := range idx {
		h, ok := hashKey(rows[i], keys)
		if !ok {
			continue
		}
		index[h] = append(index[h], i)
	}
	return index
}

// warnMissingKeyCols logs one warning per referenced key column that is
// absent from the whole table (not one per row), then reports whether all
// columns were present. With a column missing every key tuple is unmatchable,
// so the calling operator degrades to "no match" for all rows.
func warnMissingKeyCols(rows []events.Row, keys []string, d *events.Diag, opName string) bool {
	all := true
	for _, k := range keys {
		if !events.HasColumn(rows, k) {
			d.Warnf(opName, "key column %q not present in table; treating all keys as unmatchable", k)
			all = false
		}
	}
	return all
}

// partition splits row positions by the scope column. When scope is empty the
// whole table is a single partition. When the scope column is missing from
// the table, the operator degrades uniformly to an unscoped join and one
// warning is logged. Rows whose scope value is null belong to no partition.
// Partitions are returned in first-appearance order.
func partition(rows []events.Row, scope string, d *events.Diag, opName string) [][]int {
	all := make([]int, len(rows))
	for i := range rows {
		all[i] = i
	}
	if scope == "" {
		return [][]int{all}
	}
	if !events.HasColumn(rows, scope) {
		d.Warnf(opName, "scope column %q not present in table; joining without scope", scope)
		return [][]int{all}
	}

	groups := make(map[keyHash]int) // hash -> position in out
	var out [][]int
	scopeKey := []string{scope}
	for i := range rows {
		h, ok := hashKey(rows[i], scopeKey)
		if !ok {
			continue
		}
		g, seen := groups[h]
		if !seen {
			g = len(out)
			groups[h] = g
			out = append(out, nil)
		}
		out[g] = append(out[g], i)
	}
	return out
}

// groupBy partitions row positions in idx by a composite key tuple, keeping
// first-appearance order. Rows with a null component belong to no group.
func groupBy(rows []events.Row, idx []int, keys []string) [][]int {
	groups := make(map[keyHash]int)
	var out [][]int
	for _, i := range idx {
		h, ok := hashKey(rows[i], keys)
		if !ok {
			continue
		}
		g, seen := groups[h]
		if !seen {
			g = len(out)
			groups[h] = g
			out = append(out, nil)
		}
		out[g] = append(out[g], i)
	}
	return out
}
