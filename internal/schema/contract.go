// Package schema checks derived event tables against the BIDS events
// contract. The derivation engine itself is contract-agnostic; the caller
// runs the check after execution and decides how loudly to fail.
package schema

import (
	"bidsevents/internal/events"
)

// Field is one column requirement of a contract.
type Field struct {
	Name string

	// Required means the column must exist in the output projection.
	Required bool

	// Numeric means every non-null cell must hold a number.
	Numeric bool

	// NonNull means no cell may be null.
	NonNull bool
}

// Contract is a set of column requirements checked against a final table.
type Contract struct {
	Name   string
	Fields []Field
}

// Events is the canonical BIDS events contract: onset and duration numeric
// and present, trial_type present and never null.
func Events() Contract {
	return Contract{
		Name: "bids-events",
		Fields: []Field{
			{Name: "onset", Required: true, Numeric: true, NonNull: true},
			{Name: "duration", Required: true, Numeric: true, NonNull: true},
			{Name: "trial_type", Required: true, NonNull: true},
		},
	}
}

// Check validates rows against the contract and appends one warning per
// violated field to d. Violations are counted per field, not per row, so a
// sheet with a thousand bad onsets yields one finding.
func (c Contract) Check(rows []events.Row, d *events.Diag) {
	for _, f := range c.Fields {
		if f.Required && !events.HasColumn(rows, f.Name) {
			d.Warnf(c.Name, "required column %q missing from output", f.Name)
			continue
		}
		var nulls, nonNumeric int
		for _, r := range rows {
			v := r.Get(f.Name)
			if v.IsNull() {
				nulls++
				continue
			}
			if f.Numeric {
				if _, ok := v.Num(); !ok {
					nonNumeric++
				}
			}
		}
		if f.NonNull && nulls > 0 {
			d.Warnf(c.Name, "column %q has %d null cell(s)", f.Name, nulls)
		}
		if f.Numeric && nonNumeric > 0 {
			d.Warnf(c.Name, "column %q has %d non-numeric cell(s)", f.Name, nonNumeric)
		}
	}
}
