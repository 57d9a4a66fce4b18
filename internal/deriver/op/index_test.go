package op

import (
	"testing"

	"bidsevents/internal/events"
)

func TestIndexNumbersPerGroup(t *testing.T) {
	t.Parallel()

	o := &Index{
		NewCol:  "trial_index",
		GroupBy: []string{"block"},
		OrderBy: "onset",
		Start:   1,
	}
	rows := []events.Row{
		{"block": events.Number(1), "onset": events.Number(8)},
		{"block": events.Number(1), "onset": events.Number(2)},
		{"block": events.Number(2), "onset": events.Number(5)},
		{"block": events.Number(1), "onset": events.Number(4)},
	}
	var d events.Diag
	rows = o.Apply(rows, &d)

	want := []float64{3, 1, 1, 2}
	for i, w := range want {
		if got, _ := rows[i].Get("trial_index").Num(); got != w {
			t.Errorf("row %d: got %v, want %v", i, got, w)
		}
	}
}

func TestIndexStableOnTies(t *testing.T) {
	t.Parallel()

	o := &Index{
		NewCol:  "i",
		GroupBy: []string{"g"},
		OrderBy: "onset",
		Start:   1,
	}
	rows := []events.Row{
		{"g": events.String("a"), "onset": events.Number(5), "tag": events.String("first")},
		{"g": events.String("a"), "onset": events.Number(5), "tag": events.String("second")},
	}
	var d events.Diag
	rows = o.Apply(rows, &d)

	// Equal onsets keep table order.
	if got, _ := rows[0].Get("i").Num(); got != 1 {
		t.Errorf("first tied row must be numbered 1, got %v", got)
	}
	if got, _ := rows[1].Get("i").Num(); got != 2 {
		t.Errorf("second tied row must be numbered 2, got %v", got)
	}
}

func TestIndexExcludedAndNullGroupRowsStayNull(t *testing.T) {
	t.Parallel()

	o := &Index{
		NewCol:  "i",
		GroupBy: []string{"g"},
		OrderBy: "onset",
		Start:   1,
		ApplyTo: pred(t, `keep == "y"`),
	}
	rows := []events.Row{
		{"g": events.String("a"), "onset": events.Number(1), "keep": events.String("y")},
		{"g": events.String("a"), "onset": events.Number(2), "keep": events.String("n")},
		{"g": events.String("a"), "onset": events.Number(3), "keep": events.String("y")},
		{"g": events.Null(), "onset": events.Number(4), "keep": events.String("y")},
	}
	var d events.Diag
	rows = o.Apply(rows, &d)

	if !rows[1].Get("i").IsNull() {
		t.Error("excluded row must stay null")
	}
	if !rows[3].Get("i").IsNull() {
		t.Error("null-group row must stay null")
	}
	// Included rows number contiguously despite the gap.
	if got, _ := rows[0].Get("i").Num(); got != 1 {
		t.Errorf("row 0: got %v, want 1", got)
	}
	if got, _ := rows[2].Get("i").Num(); got != 2 {
		t.Errorf("row 2: got %v, want 2 (contiguous numbering)", got)
	}
}

func TestIndexMissingOrderByWarnsAndUsesTableOrder(t *testing.T) {
	t.Parallel()

	o := &Index{NewCol: "i", GroupBy: []string{"g"}, OrderBy: "nope", Start: 5}
	rows := []events.Row{
		{"g": events.String("a")},
		{"g": events.String("a")},
	}
	var d events.Diag
	rows = o.Apply(rows, &d)

	if len(d.Notes()) != 1 {
		t.Fatalf("want one orderby warning, got %v", d.Notes())
	}
	if got, _ := rows[0].Get("i").Num(); got != 5 {
		t.Errorf("start offset ignored: got %v, want 5", got)
	}
	if got, _ := rows[1].Get("i").Num(); got != 6 {
		t.Errorf("got %v, want 6", got)
	}
}
