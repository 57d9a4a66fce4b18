package op

import (
	"sort"

	"bidsevents/internal/events"
	"bidsevents/internal/expr"
)

// JoinMembership answers "does a row satisfying ExistsIn share this row's key
// tuple?" for every row matching ApplyTo, writing TrueValue or FalseValue
// into NewCol. With Scope set, the existence check runs within each scope
// partition. Rows with a null key component are skipped entirely (NewCol left
// unset); that is deliberate and generates no warning.
type JoinMembership struct {
	NewCol     string
	Keys       []string
	ExistsIn   expr.Predicate
	ApplyTo    expr.Predicate // nil means all rows
	TrueValue  events.Value
	FalseValue events.Value
	Scope      string
}

func (j *JoinMembership) Name() string { return "join_membership" }

func (j *JoinMembership) Apply(rows []events.Row, d *events.Diag) []events.Row {
	if !warnMissingKeyCols(rows, j.Keys, d, j.Name()) {
		// Degrade: every key is unmatchable, so every considered row gets
		// the false value.
		for _, r := range rows {
			if j.ApplyTo == nil || j.ApplyTo.Eval(r) {
				r[j.NewCol] = j.FalseValue
			}
		}
		return rows
	}

	for _, part := range partition(rows, j.Scope, d, j.Name()) {
		var existsIdx []int
		for _, i := range part {
			if j.ExistsIn.Eval(rows[i]) {
				existsIdx = append(existsIdx, i)
			}
		}
		index := buildKeyIndex(rows, existsIdx, j.Keys)

		for _, i := range part {
			r := rows[i]
			if j.ApplyTo != nil && !j.ApplyTo.Eval(r) {
				continue
			}
			h, ok := hashKey(r, j.Keys)
			if !ok {
				continue // null key: left unset by design
			}
			if len(index[h]) > 0 {
				r[j.NewCol] = j.TrueValue
			} else {
				r[j.NewCol] = j.FalseValue
			}
		}
	}
	return rows
}

// JoinValue copies ValueFrom out of the row matching FromRows with the same
// key tuple into each row matching ToRows. Rows with no match (including
// null-key rows) receive Default. When several FromRows rows share a key the
// last one in table order wins and a duplicate-key warning is logged once per
// key.
type JoinValue struct {
	NewCol    string
	ValueFrom string
	Keys      []string
	FromRows  expr.Predicate
	ToRows    expr.Predicate
	Default   events.Value
	Scope     string
}

func (j *JoinValue) Name() string { return "join_value" }

func (j *JoinValue) Apply(rows []events.Row, d *events.Diag) []events.Row {
	if !warnMissingKeyCols(rows, j.Keys, d, j.Name()) {
		for _, r := range rows {
			if j.ToRows.Eval(r) {
				r[j.NewCol] = j.Default
			}
		}
		return rows
	}

	for _, part := range partition(rows, j.Scope, d, j.Name()) {
		var fromIdx []int
		for _, i := range part {
			if j.FromRows.Eval(rows[i]) {
				fromIdx = append(fromIdx, i)
			}
		}
		index := buildKeyIndex(rows, fromIdx, j.Keys)
		warnDuplicates(rows, index, j.Keys, d, j.Name())

		for _, i := range part {
			r := rows[i]
			if !j.ToRows.Eval(r) {
				continue
			}
			h, ok := hashKey(r, j.Keys)
			if !ok {
				r[j.NewCol] = j.Default
				continue
			}
			cands := index[h]
			if len(cands) == 0 {
				r[j.NewCol] = j.Default
				continue
			}
			// Last-seen match wins; positions are in table order.
			r[j.NewCol] = rows[cands[len(cands)-1]].Get(j.ValueFrom)
		}
	}
	return rows
}

// ExistsToFlag is the boolean sibling of JoinValue: same key, scope, and
// duplicate handling, but it only records whether a FromRows match exists.
type ExistsToFlag struct {
	NewCol   string
	Keys     []string
	FromRows expr.Predicate
	ToRows   expr.Predicate
	TrueVal  events.Value
	FalseVal events.Value
	Scope    string
}

func (j *ExistsToFlag) Name() string { return "exists_to_flag" }

func (j *ExistsToFlag) Apply(rows []events.Row, d *events.Diag) []events.Row {
	if !warnMissingKeyCols(rows, j.Keys, d, j.Name()) {
		for _, r := range rows {
			if j.ToRows.Eval(r) {
				r[j.NewCol] = j.FalseVal
			}
		}
		return rows
	}

	for _, part := range partition(rows, j.Scope, d, j.Name()) {
		var fromIdx []int
		for _, i := range part {
			if j.FromRows.Eval(rows[i]) {
				fromIdx = append(fromIdx, i)
			}
		}
		index := buildKeyIndex(rows, fromIdx, j.Keys)
		warnDuplicates(rows, index, j.Keys, d, j.Name())

		for _, i := range part {
			r := rows[i]
			if !j.ToRows.Eval(r) {
				continue
			}
			h, ok := hashKey(r, j.Keys)
			if ok && len(index[h]) > 0 {
				r[j.NewCol] = j.TrueVal
			} else {
				r[j.NewCol] = j.FalseVal
			}
		}
	}
	return rows
}

// warnDuplicates logs one DuplicateKeyWarning per key that has more than one
// candidate source row, in table order of the first duplicated occurrence so
// diagnostics are deterministic. Null keys never reach the index, so they
// never trigger this warning.
func warnDuplicates(rows []events.Row, index keyIndex, keys []string, d *events.Diag, opName string) {
	type dup struct {
		pos   int
		count int
	}
	var dups []dup
	for _, cands := range index {
		if len(cands) > 1 {
			dups = append(dups, dup{pos: cands[0], count: len(cands)})
		}
	}
	sort.Slice(dups, func(i, j int) bool { return dups[i].pos < dups[j].pos })
	for _, dd := range dups {
		d.Warnf(opName, "duplicate key %s on %d source rows; using the last match",
			describeKey(rows[dd.pos], keys), dd.count)
	}
}

// describeKey renders a key tuple for diagnostics, e.g. [stim=foo.png].
func describeKey(r events.Row, keys []string) string {
	s := "["
	for i, k := range keys {
		if i > 0 {
			s += " "
		}
		s += k + "=" + r.Get(k).Display()
	}
	return s + "]"
}
