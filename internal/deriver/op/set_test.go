package op

import (
	"testing"

	"bidsevents/internal/events"
)

func TestSetConditional(t *testing.T) {
	t.Parallel()

	o := &Set{
		When: pred(t, `trial_type == "go"`),
		Values: []Assignment{
			{Col: "duration", Lit: events.Number(0.5)},
			{Col: "label", Tmpl: tmpl(t, `fmt("go_{block}")`)},
		},
	}
	rows := []events.Row{
		{"trial_type": events.String("go"), "block": events.Number(1)},
		{"trial_type": events.String("stop"), "block": events.Number(1)},
	}
	var d events.Diag
	rows = o.Apply(rows, &d)

	if got, _ := rows[0].Get("duration").Num(); got != 0.5 {
		t.Errorf("matched row duration: got %v, want 0.5", got)
	}
	if got := rows[0].Get("label").Display(); got != "go_1" {
		t.Errorf("matched row label: got %q", got)
	}
	if rows[1].Has("duration") || rows[1].Has("label") {
		t.Error("unmatched row must be untouched")
	}
}

func TestSetUnconditional(t *testing.T) {
	t.Parallel()

	o := &Set{Values: []Assignment{{Col: "duration", Lit: events.Number(1)}}}
	rows := []events.Row{{}, {}}
	var d events.Diag
	rows = o.Apply(rows, &d)
	for i, r := range rows {
		if got, _ := r.Get("duration").Num(); got != 1 {
			t.Errorf("row %d: got %v, want 1", i, got)
		}
	}
}

func TestSetFailedTemplateLeavesColumnUntouched(t *testing.T) {
	t.Parallel()

	o := &Set{
		Values: []Assignment{
			{Col: "label", Tmpl: tmpl(t, `fmt("x_{absent}")`)},
		},
	}
	rows := []events.Row{{"label": events.String("before")}}
	var d events.Diag
	rows = o.Apply(rows, &d)

	if got := rows[0].Get("label").Display(); got != "before" {
		t.Errorf("failed render must not overwrite, got %q", got)
	}
	if len(d.Notes()) != 1 || d.Notes()[0].Severity != events.SeverityError {
		t.Fatalf("want one error note, got %v", d.Notes())
	}
}
