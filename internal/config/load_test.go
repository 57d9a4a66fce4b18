package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadJSON(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, "task.json", `{
		"job": "task-mem",
		"source": {"path": "sub-01.tsv"},
		"derive": {"flags": [{"newcol": "is_go", "expr": "trial_type == \"go\""}]},
		"output": {"columns": ["onset", "duration", "trial_type"]}
	}`)

	p, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if p.Job != "task-mem" || p.Source.Path != "sub-01.tsv" {
		t.Errorf("unexpected pipeline: %+v", p)
	}
	if got := p.Derive.Flags[0].String("newcol", ""); got != "is_go" {
		t.Errorf("flags newcol: got %q", got)
	}
}

func TestLoadYAML(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, "task.yaml", `
job: task-mem
source:
  path: sub-01.tsv
derive:
  set:
    - set_values:
        duration: 0.5
  indices:
    - newcol: trial_index
      groupby: block
      start: 2
output:
  columns: [onset, duration, trial_type]
  sidecar: true
`)

	p, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if p.Job != "task-mem" {
		t.Errorf("job: got %q", p.Job)
	}
	sv, ok := p.Derive.Set[0]["set_values"].(map[string]any)
	if !ok {
		t.Fatalf("set_values must decode as an object, got %T", p.Derive.Set[0]["set_values"])
	}
	if got := sv["duration"]; got != 0.5 {
		t.Errorf("duration: got %v (%T), want 0.5", got, got)
	}
	// YAML integers must be usable through the same typed accessors as JSON.
	if got := p.Derive.Indices[0].Int("start", 0); got != 2 {
		t.Errorf("start: got %d, want 2", got)
	}
	if !p.Output.Sidecar {
		t.Error("sidecar flag did not survive the YAML round-trip")
	}
}

func TestLoadErrors(t *testing.T) {
	t.Parallel()

	if _, err := Load(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("missing file must error")
	}
	if _, err := Load(writeConfig(t, "bad.json", `{"job": `)); err == nil {
		t.Error("truncated JSON must error")
	}
	if _, err := Load(writeConfig(t, "bad.yaml", "job: [unclosed")); err == nil {
		t.Error("malformed YAML must error")
	}
}
