package events

// Row is one trial (or synthesized event): a schema-less mapping of column
// name to Value. Operators create, overwrite, and remove columns freely; there
// is no global schema. A column that is absent reads as null.
type Row map[string]Value

// Get returns the value stored under col, or null when the column is absent.
// Absent and null are deliberately indistinguishable to expression code.
func (r Row) Get(col string) Value {
	if v, ok := r[col]; ok {
		return v
	}
	return Null()
}

// Has reports whether col is present in the row, even if its value is null.
func (r Row) Has(col string) bool {
	_, ok := r[col]
	return ok
}

// Clone returns an independent copy of the row.
func (r Row) Clone() Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// CloneRows returns an independent copy of a row slice. Operators that
// synthesize or mutate rows work on copies so that a later operator never
// observes a half-mutated view of an earlier step.
func CloneRows(rows []Row) []Row {
	out := make([]Row, len(rows))
	for i, r := range rows {
		out[i] = r.Clone()
	}
	return out
}

// HasColumn reports whether any row in rows carries col. Join and group
// operators use this to distinguish "column missing from the table" (one
// warning, operator degrades) from "value null on this row" (silent skip).
func HasColumn(rows []Row, col string) bool {
	for _, r := range rows {
		if _, ok := r[col]; ok {
			return true
		}
	}
	return false
}
