package deriver

import (
	"reflect"
	"testing"

	"bidsevents/internal/config"
)

func TestParseFlagTokens(t *testing.T) {
	t.Parallel()

	d, err := ParseFlagTokens([]string{
		`regex_extract:newcol=run,from_col=file,pattern='run-(\d+)',group=1`,
		`flags:newcol=is_target,expr='trial_type == "target"'`,
		`join_value:newcol=enc_onset,value_from=onset,keys=stim_id|run,from_rows='phase == "enc"',to_rows='phase == "ret"'`,
		`set:set_values.duration=0.5,set_values.trial_type=go`,
		`novelty:newcol=novelty,keys=stim_id`,
	})
	if err != nil {
		t.Fatal(err)
	}

	if len(d.RegexExtract) != 1 {
		t.Fatalf("want 1 regex_extract block, got %d", len(d.RegexExtract))
	}
	re := d.RegexExtract[0]
	if got := re.String("pattern", ""); got != `run-(\d+)` {
		t.Errorf("pattern: got %q (quoting must protect the value)", got)
	}
	if got := re.Float("group", 0); got != 1 {
		t.Errorf("group: got %v, want number 1", got)
	}

	if got := d.Flags[0].String("expr", ""); got != `trial_type == "target"` {
		t.Errorf("expr: got %q", got)
	}

	keys := d.Joins.Value[0].StringSlice("keys")
	if !reflect.DeepEqual(keys, []string{"stim_id", "run"}) {
		t.Errorf("keys: got %v, want [stim_id run]", keys)
	}

	sv, ok := d.Set[0]["set_values"].(map[string]any)
	if !ok {
		t.Fatalf("set_values must decode as a nested object, got %T", d.Set[0]["set_values"])
	}
	if got := sv["duration"]; got != 0.5 {
		t.Errorf("duration: got %v, want 0.5", got)
	}
	if got := sv["trial_type"]; got != "go" {
		t.Errorf("trial_type: got %v, want go", got)
	}

	if got := d.Optional.Novelty.String("newcol", ""); got != "novelty" {
		t.Errorf("novelty newcol: got %q", got)
	}
}

func TestParseFlagTokensCompiles(t *testing.T) {
	t.Parallel()

	d, err := ParseFlagTokens([]string{
		`regex_map:newcol=trial_type,from_col=stim,mapping.go=go`,
	})
	if err == nil {
		// regex_map needs an ordered mapping array, which the flag grammar
		// cannot express with dotted keys; compilation must reject it.
		p := config.Pipeline{Derive: d, Output: config.Output{Columns: []string{"onset"}}}
		if _, cerr := Compile(p); cerr == nil {
			t.Error("object-shaped regex_map mapping must fail compilation")
		}
		return
	}

	t.Fatalf("unexpected token error: %v", err)
}

func TestParseFlagTokensErrors(t *testing.T) {
	t.Parallel()

	bad := [][]string{
		{`no_colon_here`},
		{`unknown_stage:newcol=x`},
		{`drop:`},
		{`drop:when`},
		{`drop:when='a == 1',when='b == 2'`},
		{`novelty:newcol=a,keys=k`, `novelty:newcol=b,keys=k`},
	}
	for _, tokens := range bad {
		if _, err := ParseFlagTokens(tokens); err == nil {
			t.Errorf("ParseFlagTokens(%v): expected error", tokens)
		}
	}
}

func TestParseFlagTokensTyping(t *testing.T) {
	t.Parallel()

	d, err := ParseFlagTokens([]string{
		`indices:newcol=i,groupby=block,start=2`,
		`drop:when='x == 1'`,
		`synth_rows:groupby=block,onset='first.onset-10',clamp_zero=true,duration=10`,
	})
	if err != nil {
		t.Fatal(err)
	}
	if got := d.Indices[0].Int("start", 0); got != 2 {
		t.Errorf("start: got %d, want 2", got)
	}
	if got := d.SynthRows[0].Bool("clamp_zero", false); !got {
		t.Error("clamp_zero must decode as bool true")
	}
	if got := d.SynthRows[0].Float("duration", 0); got != 10 {
		t.Errorf("duration: got %v, want 10", got)
	}
	if got := d.SynthRows[0].String("onset", ""); got != "first.onset-10" {
		t.Errorf("onset: got %q", got)
	}
}
