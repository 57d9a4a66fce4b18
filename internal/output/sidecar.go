package output

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"bidsevents/internal/events"
)

// sidecarColumn is one column entry in the JSON sidecar skeleton.
type sidecarColumn struct {
	Description string            `json:"Description"`
	Levels      map[string]string `json:"Levels,omitempty"`
}

// maxSidecarLevels caps the Levels enumeration; columns with more distinct
// string values than this are treated as free text.
const maxSidecarLevels = 12

// WriteSidecar writes a JSON sidecar skeleton next to the events table: one
// entry per output column with an empty Description, plus a Levels map for
// low-cardinality string columns so the curator only fills in meanings.
// onset and duration get their fixed BIDS descriptions.
func WriteSidecar(path string, cols []string, rows []events.Row) error {
	doc := make(map[string]sidecarColumn, len(cols))
	for _, c := range cols {
		entry := sidecarColumn{}
		switch c {
		case "onset":
			entry.Description = "Onset of the event, in seconds from the start of the run."
		case "duration":
			entry.Description = "Duration of the event, in seconds."
		default:
			if lv := levels(c, rows); lv != nil {
				entry.Levels = lv
			}
		}
		doc[c] = entry
	}

	b, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode sidecar: %w", err)
	}
	if err := os.WriteFile(path, append(b, '\n'), 0o644); err != nil {
		return fmt.Errorf("write sidecar: %w", err)
	}
	return nil
}

// SidecarPath derives the sidecar path for an events table path.
func SidecarPath(eventsPath string) string {
	return strings.TrimSuffix(eventsPath, ".tsv") + ".json"
}

// levels collects the distinct string values of col, or nil when the column
// is numeric, null-only, or too wide to enumerate.
func levels(col string, rows []events.Row) map[string]string {
	seen := map[string]struct{}{}
	for _, r := range rows {
		v := r.Get(col)
		if v.IsNull() {
			continue
		}
		if _, isNum := v.Num(); isNum {
			return nil
		}
		seen[v.Display()] = struct{}{}
		if len(seen) > maxSidecarLevels {
			return nil
		}
	}
	if len(seen) == 0 {
		return nil
	}
	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make(map[string]string, len(keys))
	for _, k := range keys {
		out[k] = ""
	}
	return out
}
