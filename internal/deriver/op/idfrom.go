package op

import (
	"fmt"
	"path"
	"strings"

	"bidsevents/internal/events"
)

// IDFrom derives an identifier column from a path-like source column.
// Stimulus sheets commonly store full file paths ("stimuli/faces/f012.png");
// joins want a stable id ("f012.png" or "f012").
type IDFrom struct {
	NewCol  string
	FromCol string
	Func    string // "basename" or "stem"
}

// NewIDFrom validates the derivation function name.
func NewIDFrom(newCol, fromCol, fn string) (*IDFrom, error) {
	switch fn {
	case "basename", "stem":
	default:
		return nil, fmt.Errorf("id_from %q: unknown func %q (want basename or stem)", newCol, fn)
	}
	return &IDFrom{NewCol: newCol, FromCol: fromCol, Func: fn}, nil
}

func (o *IDFrom) Name() string { return "id_from" }

func (o *IDFrom) Apply(rows []events.Row, d *events.Diag) []events.Row {
	for _, r := range rows {
		src := r.Get(o.FromCol)
		s, ok := src.Str()
		if !ok || s == "" {
			r[o.NewCol] = events.Null()
			continue
		}
		// Windows-authored sheets use backslashes; normalize before Base.
		base := path.Base(strings.ReplaceAll(s, `\`, "/"))
		if o.Func == "stem" {
			base = strings.TrimSuffix(base, path.Ext(base))
		}
		if base == "" || base == "." || base == "/" {
			r[o.NewCol] = events.Null()
			continue
		}
		r[o.NewCol] = events.String(base)
	}
	return rows
}
