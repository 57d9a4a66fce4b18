package op

import (
	"bidsevents/internal/events"
	"bidsevents/internal/expr"
)

// Assignment writes one column: either a literal Value or a rendered
// fmt(...) template. Exactly one of Lit/Tmpl is active (Tmpl when non-nil).
type Assignment struct {
	Col  string
	Lit  events.Value
	Tmpl *expr.Template
}

// apply writes the assignment into r, rendering templates against src (the
// row providing placeholder values). A failed render is reported and the
// column is left untouched.
func (a Assignment) apply(r, src events.Row, d *events.Diag, opName string) bool {
	if a.Tmpl == nil {
		r[a.Col] = a.Lit
		return true
	}
	s, err := a.Tmpl.Render(src)
	if err != nil {
		d.Errorf(opName, "column %q: %v", a.Col, err)
		return false
	}
	r[a.Col] = events.String(s)
	return true
}

// Set overwrites the listed columns on every row matching When. A nil When
// applies unconditionally. Templates render against the row being written.
type Set struct {
	When   expr.Predicate // nil means all rows
	Values []Assignment   // declaration order, for deterministic diagnostics
}

func (o *Set) Name() string { return "set" }

func (o *Set) Apply(rows []events.Row, d *events.Diag) []events.Row {
	for _, r := range rows {
		if o.When != nil && !o.When.Eval(r) {
			continue
		}
		for _, a := range o.Values {
			a.apply(r, r, d, o.Name())
		}
	}
	return rows
}
