package op

import (
	"testing"

	"bidsevents/internal/events"
)

func TestRegexMapFirstMatchWins(t *testing.T) {
	t.Parallel()

	m, err := NewRegexMap("trial_type", "stim", []LabelPattern{
		{Label: "face", Pattern: `^faces/`},
		{Label: "any", Pattern: `.`},
	}, false)
	if err != nil {
		t.Fatal(err)
	}

	rows := []events.Row{
		{"stim": events.String("faces/f01.png")},
		{"stim": events.String("houses/h01.png")},
		{"stim": events.Null()},
	}
	var d events.Diag
	rows = m.Apply(rows, &d)

	if got := rows[0].Get("trial_type").Display(); got != "face" {
		t.Errorf("row 0: got %q, want face (earlier pattern must win)", got)
	}
	if got := rows[1].Get("trial_type").Display(); got != "any" {
		t.Errorf("row 1: got %q, want any", got)
	}
	if !rows[2].Get("trial_type").IsNull() {
		t.Error("null source must map to null")
	}
}

func TestRegexMapNoMatchIsNull(t *testing.T) {
	t.Parallel()

	m, err := NewRegexMap("trial_type", "stim", []LabelPattern{
		{Label: "face", Pattern: `^faces/`},
	}, false)
	if err != nil {
		t.Fatal(err)
	}
	rows := []events.Row{{"stim": events.String("tones/t01.wav")}}
	var d events.Diag
	rows = m.Apply(rows, &d)
	if !rows[0].Get("trial_type").IsNull() {
		t.Error("unmatched row must get null")
	}
}

func TestRegexMapCasefold(t *testing.T) {
	t.Parallel()

	m, err := NewRegexMap("kind", "stim", []LabelPattern{
		{Label: "face", Pattern: `^FACES/`},
	}, true)
	if err != nil {
		t.Fatal(err)
	}
	rows := []events.Row{{"stim": events.String("faces/f01.png")}}
	var d events.Diag
	rows = m.Apply(rows, &d)
	if got := rows[0].Get("kind").Display(); got != "face" {
		t.Errorf("casefold match failed: got %q", got)
	}
}

func TestNewRegexMapBadPattern(t *testing.T) {
	t.Parallel()

	if _, err := NewRegexMap("x", "y", []LabelPattern{{Label: "a", Pattern: `([`}}, false); err == nil {
		t.Error("bad pattern must be a configuration error")
	}
}
