package op

import (
	"fmt"
	"regexp"

	"bidsevents/internal/events"
)

// LabelPattern is one ordered mapping entry for RegexMap. Order is semantic:
// the first pattern that matches wins.
type LabelPattern struct {
	Label   string
	Pattern string
}

// RegexMap classifies rows: it tests FromCol against each pattern in mapping
// order and writes the first matching label into NewCol. Rows matching no
// pattern leave NewCol unset (null). Typical use is deriving trial_type from
// a stimulus file name or routine column.
type RegexMap struct {
	NewCol   string
	FromCol  string
	Mapping  []LabelPattern
	Casefold bool

	compiled []*regexp.Regexp
}

// NewRegexMap validates and compiles the mapping. Bad patterns are a
// configuration error and abort compilation before any row is processed.
func NewRegexMap(newCol, fromCol string, mapping []LabelPattern, casefold bool) (*RegexMap, error) {
	m := &RegexMap{NewCol: newCol, FromCol: fromCol, Mapping: mapping, Casefold: casefold}
	for _, lp := range mapping {
		pat := lp.Pattern
		if casefold {
			pat = "(?i)" + pat
		}
		re, err := regexp.Compile(pat)
		if err != nil {
			return nil, fmt.Errorf("regex_map %q: pattern %q: %w", newCol, lp.Pattern, err)
		}
		m.compiled = append(m.compiled, re)
	}
	return m, nil
}

func (m *RegexMap) Name() string { return "regex_map" }

func (m *RegexMap) Apply(rows []events.Row, d *events.Diag) []events.Row {
	for _, r := range rows {
		src := r.Get(m.FromCol)
		if src.IsNull() {
			r[m.NewCol] = events.Null()
			continue
		}
		text := src.Display()
		matched := false
		for i, re := range m.compiled {
			if re.MatchString(text) {
				r[m.NewCol] = events.String(m.Mapping[i].Label)
				matched = true
				break
			}
		}
		if !matched {
			r[m.NewCol] = events.Null()
		}
	}
	return rows
}
