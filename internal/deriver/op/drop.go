package op

import (
	"bidsevents/internal/events"
	"bidsevents/internal/expr"
)

// Drop removes rows matching When from the table. No match is a no-op.
type Drop struct {
	When expr.Predicate
}

func (o *Drop) Name() string { return "drop" }

func (o *Drop) Apply(rows []events.Row, d *events.Diag) []events.Row {
	out := rows[:0:0]
	for _, r := range rows {
		if !o.When.Eval(r) {
			out = append(out, r)
		}
	}
	return out
}
