package expr

import (
	"testing"

	"bidsevents/internal/events"
)

func TestIsTemplate(t *testing.T) {
	t.Parallel()

	if !IsTemplate(`fmt("x_{y}")`) {
		t.Error("fmt(...) must be detected as a template")
	}
	if IsTemplate("plain literal") || IsTemplate("format(x)") {
		t.Error("non-fmt values must not be templates")
	}
}

func TestTemplateRender(t *testing.T) {
	t.Parallel()

	row := events.Row{
		"condition":       events.String("face"),
		"block":           events.Number(2),
		"Routine.started": events.String("enc"),
	}

	tests := []struct {
		src  string
		want string
	}{
		{`fmt("instruction_{condition}")`, "instruction_face"},
		{`fmt("{condition}_block{block}")`, "face_block2"},
		{`fmt('single_{condition}')`, "single_face"},
		{"fmt(\"{`Routine.started`}_x\")", "enc_x"},
		{`fmt("no placeholders")`, "no placeholders"},
	}
	for _, tt := range tests {
		tmpl, err := ParseTemplate(tt.src)
		if err != nil {
			t.Fatalf("ParseTemplate(%q): %v", tt.src, err)
		}
		got, err := tmpl.Render(row)
		if err != nil {
			t.Fatalf("Render(%q): %v", tt.src, err)
		}
		if got != tt.want {
			t.Errorf("Render(%q) = %q, want %q", tt.src, got, tt.want)
		}
	}
}

func TestTemplateUnresolvedPlaceholder(t *testing.T) {
	t.Parallel()

	tmpl, err := ParseTemplate(`fmt("x_{missing}")`)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := tmpl.Render(events.Row{}); err == nil {
		t.Error("rendering an absent placeholder must error")
	}
	if _, err := tmpl.Render(events.Row{"missing": events.Null()}); err == nil {
		t.Error("rendering a null placeholder must error")
	}
}

func TestParseTemplateErrors(t *testing.T) {
	t.Parallel()

	bad := []string{
		`fmt(unquoted)`,
		`fmt("unclosed {x")`,
		`fmt("empty {}")`,
		`notfmt("x")`,
	}
	for _, src := range bad {
		if _, err := ParseTemplate(src); err == nil {
			t.Errorf("ParseTemplate(%q): expected error", src)
		}
	}
}
