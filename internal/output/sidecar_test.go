package output

import (
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"bidsevents/internal/events"
)

func TestWriteSidecar(t *testing.T) {
	t.Parallel()

	rows := []events.Row{
		{"onset": events.Number(1), "duration": events.Number(0.5), "trial_type": events.String("go"), "note": events.Null()},
		{"onset": events.Number(2), "duration": events.Number(0.5), "trial_type": events.String("stop"), "note": events.Null()},
	}
	path := filepath.Join(t.TempDir(), "sub-01_events.json")
	cols := []string{"onset", "duration", "trial_type", "note"}
	if err := WriteSidecar(path, cols, rows); err != nil {
		t.Fatal(err)
	}

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var doc map[string]struct {
		Description string            `json:"Description"`
		Levels      map[string]string `json:"Levels"`
	}
	if err := json.Unmarshal(b, &doc); err != nil {
		t.Fatal(err)
	}

	if doc["onset"].Description == "" || doc["duration"].Description == "" {
		t.Error("onset and duration must carry fixed descriptions")
	}
	want := map[string]string{"go": "", "stop": ""}
	if !reflect.DeepEqual(doc["trial_type"].Levels, want) {
		t.Errorf("trial_type levels = %v, want %v", doc["trial_type"].Levels, want)
	}
	// Null-only columns get no Levels enumeration.
	if doc["note"].Levels != nil {
		t.Errorf("note levels = %v, want none", doc["note"].Levels)
	}
}

func TestLevels(t *testing.T) {
	t.Parallel()

	numeric := []events.Row{{"rt": events.Number(0.4)}, {"rt": events.String("fast")}}
	if lv := levels("rt", numeric); lv != nil {
		t.Errorf("mixed numeric column must not enumerate, got %v", lv)
	}

	var wide []events.Row
	for i := 0; i < maxSidecarLevels+1; i++ {
		wide = append(wide, events.Row{"stim": events.String(string(rune('a' + i)))})
	}
	if lv := levels("stim", wide); lv != nil {
		t.Errorf("high-cardinality column must not enumerate, got %v", lv)
	}
}
