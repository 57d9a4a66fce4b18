package op

import (
	"strings"

	"bidsevents/internal/events"
)

// MapValues recodes a column by exact-value lookup: the string form of
// FromCol is looked up in Mapping and the declared replacement is written to
// NewCol. Unmapped values produce null; a mapping entry whose replacement is
// the empty string yields an empty string, not null. With Casefold the lookup
// is case-insensitive, but the output always uses the casing declared in the
// mapping.
type MapValues struct {
	NewCol   string
	FromCol  string
	Mapping  map[string]string
	Casefold bool

	folded map[string]string // lowercase source -> declared replacement
}

// NewMapValues builds the operator, precomputing the casefolded lookup table
// when requested.
func NewMapValues(newCol, fromCol string, mapping map[string]string, casefold bool) *MapValues {
	m := &MapValues{NewCol: newCol, FromCol: fromCol, Mapping: mapping, Casefold: casefold}
	if casefold {
		m.folded = make(map[string]string, len(mapping))
		for k, v := range mapping {
			m.folded[strings.ToLower(k)] = v
		}
	}
	return m
}

func (m *MapValues) Name() string { return "map_values" }

func (m *MapValues) Apply(rows []events.Row, d *events.Diag) []events.Row {
	for _, r := range rows {
		src := r.Get(m.FromCol)
		if src.IsNull() {
			r[m.NewCol] = events.Null()
			continue
		}
		key := src.Display()
		var mapped string
		var ok bool
		if m.Casefold {
			mapped, ok = m.folded[strings.ToLower(key)]
		} else {
			mapped, ok = m.Mapping[key]
		}
		if !ok {
			r[m.NewCol] = events.Null()
			continue
		}
		r[m.NewCol] = events.String(mapped)
	}
	return rows
}
