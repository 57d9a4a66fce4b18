package op

import (
	"bidsevents/internal/events"
)

// Project narrows every row to the configured columns and fixes the output
// column order to the Cols order (not whatever order the table grew columns
// in). With Strict unset, absent columns are silently omitted; with Strict,
// each absent column logs an error diagnostic — the pipeline still completes
// so the caller can decide how loudly to fail.
type Project struct {
	Cols   []string
	Strict bool
}

func (o *Project) Name() string { return "keep_cols" }

func (o *Project) Apply(rows []events.Row, d *events.Diag) []events.Row {
	keep := make([]string, 0, len(o.Cols))
	for _, c := range o.Cols {
		if events.HasColumn(rows, c) {
			keep = append(keep, c)
			continue
		}
		if o.Strict {
			d.Errorf(o.Name(), "required output column %q not present in table", c)
		}
	}
	for i, r := range rows {
		out := make(events.Row, len(keep))
		for _, c := range keep {
			out[c] = r.Get(c)
		}
		rows[i] = out
	}
	return rows
}

// OutputColumns reports the projection's effective column order against a
// derived table: configured order, minus columns absent from the table.
func (o *Project) OutputColumns(rows []events.Row) []string {
	cols := make([]string, 0, len(o.Cols))
	for _, c := range o.Cols {
		if events.HasColumn(rows, c) {
			cols = append(cols, c)
		}
	}
	return cols
}
