// Package events defines the in-memory data model shared by the derivation
// pipeline: a tagged scalar Value, a schema-less Row, and the Diag sink that
// collects non-fatal findings while a pipeline runs.
//
// Behavioral sheets are duck-typed: columns appear and disappear as operators
// run, and a cell is either a string, a number, or null. Null is a first-class
// value here (BIDS writes it as "n/a") and is never silently coerced to "" or
// 0 — a comparison against null is simply false, and a join key containing a
// null component matches nothing.
package events

import (
	"strconv"
	"strings"
)

// Kind discriminates the scalar variants a cell can hold.
type Kind int

const (
	KindNull Kind = iota
	KindString
	KindNumber
)

// Value is a tagged scalar: null, string, or float64 number.
// The zero Value is null.
type Value struct {
	kind Kind
	str  string
	num  float64
}

// Null returns the null Value.
func Null() Value { return Value{} }

// String wraps s as a string Value.
func String(s string) Value { return Value{kind: KindString, str: s} }

// Number wraps f as a numeric Value.
func Number(f float64) Value { return Value{kind: KindNumber, num: f} }

// Bool renders b as the string Values "true"/"false". The sheets we consume
// have no native boolean type, so flags are stored as strings.
func Bool(b bool) Value {
	if b {
		return String("true")
	}
	return String("false")
}

// Kind reports the variant held by v.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is null.
func (v Value) IsNull() bool { return v.kind == KindNull }

// Str returns the string payload and whether v is a string.
func (v Value) Str() (string, bool) { return v.str, v.kind == KindString }

// Num returns the numeric payload and whether v is a number.
func (v Value) Num() (float64, bool) { return v.num, v.kind == KindNumber }

// Equal reports whether v and o hold the same kind and payload.
// Two nulls are equal to each other but match nothing in key terms;
// key handling excludes nulls before ever comparing them.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindString:
		return v.str == o.str
	case KindNumber:
		return v.num == o.num
	default:
		return true
	}
}

// Display renders v for human-facing output: null becomes "n/a" (the BIDS
// missing-value marker) and numbers use the shortest round-trip form.
func (v Value) Display() string {
	switch v.kind {
	case KindString:
		return v.str
	case KindNumber:
		return strconv.FormatFloat(v.num, 'g', -1, 64)
	default:
		return "n/a"
	}
}

// nullCells are cell spellings decoded as null, compared case-insensitively.
// "n/a" is the BIDS marker; the rest are common exports from pandas/PsychoPy.
var nullCells = map[string]struct{}{
	"": {}, "n/a": {}, "na": {}, "nan": {}, "none": {},
}

// Parse decodes a raw sheet cell into a Value. Numeric-looking cells become
// numbers; recognized missing-value spellings become null; everything else is
// kept as the verbatim string.
func Parse(cell string) Value {
	if _, ok := nullCells[strings.ToLower(cell)]; ok {
		return Null()
	}
	if f, err := strconv.ParseFloat(cell, 64); err == nil {
		return Number(f)
	}
	return String(cell)
}
