package op

import (
	"testing"

	"bidsevents/internal/events"
)

func TestMapValues(t *testing.T) {
	t.Parallel()

	m := NewMapValues("resp_label", "resp", map[string]string{
		"j":    "old",
		"k":    "new",
		"skip": "",
	}, false)

	rows := []events.Row{
		{"resp": events.String("j")},
		{"resp": events.String("x")},
		{"resp": events.Null()},
		{"resp": events.String("skip")},
	}
	var d events.Diag
	rows = m.Apply(rows, &d)

	if got := rows[0].Get("resp_label").Display(); got != "old" {
		t.Errorf("mapped value: got %q, want old", got)
	}
	if !rows[1].Get("resp_label").IsNull() {
		t.Error("unmapped value must yield null")
	}
	if !rows[2].Get("resp_label").IsNull() {
		t.Error("null source must yield null")
	}
	// Mapping to "" is the empty string, not null.
	v := rows[3].Get("resp_label")
	if v.IsNull() {
		t.Error("mapping to empty string must not produce null")
	}
	if got := v.Display(); got != "" {
		t.Errorf("got %q, want empty string", got)
	}
}

func TestMapValuesCasefold(t *testing.T) {
	t.Parallel()

	m := NewMapValues("label", "resp", map[string]string{"Left": "l"}, true)
	rows := []events.Row{{"resp": events.String("LEFT")}}
	var d events.Diag
	rows = m.Apply(rows, &d)
	if got := rows[0].Get("label").Display(); got != "l" {
		t.Errorf("casefolded lookup failed: got %q", got)
	}
}

func TestMapValuesNumericSource(t *testing.T) {
	t.Parallel()

	// Lookup happens on the display form, so numeric cells match their
	// canonical rendering.
	m := NewMapValues("label", "code", map[string]string{"1": "go", "2": "stop"}, false)
	rows := []events.Row{{"code": events.Number(2)}}
	var d events.Diag
	rows = m.Apply(rows, &d)
	if got := rows[0].Get("label").Display(); got != "stop" {
		t.Errorf("numeric lookup failed: got %q", got)
	}
}
