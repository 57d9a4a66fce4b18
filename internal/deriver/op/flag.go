package op

import (
	"bidsevents/internal/events"
	"bidsevents/internal/expr"
)

// Flag evaluates a predicate per row and writes TrueVal or FalseVal into
// NewCol. A predicate referencing a column absent from a row simply evaluates
// to false there — that is the documented fallback, not an error.
type Flag struct {
	NewCol   string
	Expr     expr.Predicate
	TrueVal  events.Value
	FalseVal events.Value
}

func (o *Flag) Name() string { return "flag" }

func (o *Flag) Apply(rows []events.Row, d *events.Diag) []events.Row {
	for _, r := range rows {
		if o.Expr.Eval(r) {
			r[o.NewCol] = o.TrueVal
		} else {
			r[o.NewCol] = o.FalseVal
		}
	}
	return rows
}
