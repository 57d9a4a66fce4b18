package op

import (
	"bidsevents/internal/events"
	"bidsevents/internal/expr"
)

// SynthRows generates one new row per group of matching rows — the classic
// case is an instruction-period event preceding each block, whose onset is
// computed relative to the block's first trial ("first.onset-10"). Generated
// rows are appended to the table; onset/duration are set from OnsetExpr and
// Duration, remaining columns come from Values.
//
// Failure handling is per group: a bad onset expression or an unresolved
// template placeholder logs an error and skips that group's synthesis only.
// The rest of the pipeline, and every other group, proceeds unaffected.
type SynthRows struct {
	When      expr.Predicate // nil means all rows
	GroupBy   []string
	OnsetExpr string
	Duration  float64
	ClampZero bool
	Values    []Assignment
}

func (o *SynthRows) Name() string { return "synth_rows" }

func (o *SynthRows) Apply(rows []events.Row, d *events.Diag) []events.Row {
	// The onset expression is held as text and parsed here: a malformed
	// expression must not abort the pipeline, only this operator's output.
	ref, err := expr.ParseReference(o.OnsetExpr)
	if err != nil {
		d.Errorf(o.Name(), "onset expression %q: %v", o.OnsetExpr, err)
		return rows
	}

	var idx []int
	for i, r := range rows {
		if o.When == nil || o.When.Eval(r) {
			idx = append(idx, i)
		}
	}

	var synthesized []events.Row
	for _, group := range groupBy(rows, idx, o.GroupBy) {
		groupRows := make([]events.Row, len(group))
		for i, g := range group {
			groupRows[i] = rows[g]
		}

		onset, err := ref.Eval(groupRows)
		if err != nil {
			d.Errorf(o.Name(), "onset expression %v; skipping synthesis for group %s",
				err, describeKey(groupRows[0], o.GroupBy))
			continue
		}
		if o.ClampZero && onset < 0 {
			onset = 0
		}

		row := events.Row{
			"onset":    events.Number(onset),
			"duration": events.Number(o.Duration),
		}
		// Group columns carry over so the synthesized row stays addressable
		// by later groupby/join operators.
		for _, k := range o.GroupBy {
			row[k] = groupRows[0].Get(k)
		}

		ok := true
		for _, a := range o.Values {
			if !a.apply(row, groupRows[0], d, o.Name()) {
				ok = false
				break
			}
		}
		if !ok {
			continue
		}
		synthesized = append(synthesized, row)
	}

	return append(rows, synthesized...)
}
