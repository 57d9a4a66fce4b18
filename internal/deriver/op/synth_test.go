package op

import (
	"strings"
	"testing"

	"bidsevents/internal/events"
	"bidsevents/internal/expr"
)

func tmpl(t *testing.T, src string) *expr.Template {
	t.Helper()
	tm, err := expr.ParseTemplate(src)
	if err != nil {
		t.Fatalf("ParseTemplate(%q): %v", src, err)
	}
	return tm
}

func TestSynthRowsPerGroup(t *testing.T) {
	t.Parallel()

	o := &SynthRows{
		When:      pred(t, `trial_type == "trial"`),
		GroupBy:   []string{"block"},
		OnsetExpr: "first.onset-10",
		Duration:  10,
		Values: []Assignment{
			{Col: "trial_type", Tmpl: tmpl(t, `fmt("instruction_block{block}")`)},
		},
	}
	rows := []events.Row{
		{"trial_type": events.String("trial"), "block": events.Number(1), "onset": events.Number(32)},
		{"trial_type": events.String("trial"), "block": events.Number(1), "onset": events.Number(40)},
		{"trial_type": events.String("trial"), "block": events.Number(2), "onset": events.Number(100)},
	}
	var d events.Diag
	out := o.Apply(rows, &d)

	if len(out) != 5 {
		t.Fatalf("want 3 original + 2 synthesized rows, got %d", len(out))
	}
	// Synthesized rows are appended in group first-appearance order.
	s1, s2 := out[3], out[4]
	if got, _ := s1.Get("onset").Num(); got != 22 {
		t.Errorf("block 1 onset: got %v, want 22", got)
	}
	if got, _ := s1.Get("duration").Num(); got != 10 {
		t.Errorf("duration: got %v, want 10", got)
	}
	if got := s1.Get("trial_type").Display(); got != "instruction_block1" {
		t.Errorf("trial_type: got %q", got)
	}
	if got, _ := s1.Get("block").Num(); got != 1 {
		t.Errorf("groupby column must carry over, got %v", got)
	}
	if got, _ := s2.Get("onset").Num(); got != 90 {
		t.Errorf("block 2 onset: got %v, want 90", got)
	}
	if len(d.Notes()) != 0 {
		t.Errorf("unexpected diagnostics: %v", d.Notes())
	}
}

func TestSynthRowsClampZero(t *testing.T) {
	t.Parallel()

	o := &SynthRows{
		GroupBy:   []string{"block"},
		OnsetExpr: "first.onset-10",
		ClampZero: true,
	}
	rows := []events.Row{
		{"block": events.Number(1), "onset": events.Number(4)},
	}
	var d events.Diag
	out := o.Apply(rows, &d)

	if got, _ := out[1].Get("onset").Num(); got != 0 {
		t.Errorf("negative onset must clamp to 0, got %v", got)
	}
}

func TestSynthRowsBadOnsetExpressionSkipsOperator(t *testing.T) {
	t.Parallel()

	o := &SynthRows{
		GroupBy:   []string{"block"},
		OnsetExpr: "last.onset",
	}
	rows := []events.Row{{"block": events.Number(1), "onset": events.Number(4)}}
	var d events.Diag
	out := o.Apply(rows, &d)

	if len(out) != 1 {
		t.Fatalf("no rows may be synthesized on a bad expression, got %d", len(out))
	}
	notes := d.Notes()
	if len(notes) != 1 || notes[0].Severity != events.SeverityError {
		t.Fatalf("want one error note, got %v", notes)
	}
	if !strings.Contains(notes[0].Message, "onset expression") {
		t.Errorf("error must name the onset expression: %q", notes[0].Message)
	}
}

func TestSynthRowsGroupErrorIsolated(t *testing.T) {
	t.Parallel()

	// Block 1 has a non-numeric first onset; block 2 is fine. Only block 1's
	// synthesis is skipped.
	o := &SynthRows{
		GroupBy:   []string{"block"},
		OnsetExpr: "first.onset-10",
	}
	rows := []events.Row{
		{"block": events.Number(1), "onset": events.String("soon")},
		{"block": events.Number(2), "onset": events.Number(30)},
	}
	var d events.Diag
	out := o.Apply(rows, &d)

	if len(out) != 3 {
		t.Fatalf("want 2 original + 1 synthesized rows, got %d", len(out))
	}
	if got, _ := out[2].Get("onset").Num(); got != 20 {
		t.Errorf("healthy group onset: got %v, want 20", got)
	}
	if len(d.Notes()) != 1 || d.Notes()[0].Severity != events.SeverityError {
		t.Fatalf("want one isolated error, got %v", d.Notes())
	}
}

func TestSynthRowsTemplateFailureSkipsGroup(t *testing.T) {
	t.Parallel()

	o := &SynthRows{
		GroupBy:   []string{"block"},
		OnsetExpr: "first.onset",
		Values: []Assignment{
			{Col: "trial_type", Tmpl: tmpl(t, `fmt("x_{missing_col}")`)},
		},
	}
	rows := []events.Row{{"block": events.Number(1), "onset": events.Number(1)}}
	var d events.Diag
	out := o.Apply(rows, &d)

	if len(out) != 1 {
		t.Fatalf("group with failed template must not synthesize, got %d rows", len(out))
	}
	if len(d.Notes()) != 1 {
		t.Fatalf("want one template error, got %v", d.Notes())
	}
}
