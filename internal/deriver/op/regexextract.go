package op

import (
	"fmt"
	"regexp"
	"strconv"

	"bidsevents/internal/events"
	"bidsevents/internal/expr"
)

// RegexExtract pulls a capture group out of FromCol into NewCol for rows
// matching ApplyTo. Group may be a positional index ("1"), a named group
// ("run"), or empty/"0" for the whole match. Rows excluded by ApplyTo get
// null — not Default; Default only applies to rows that were considered but
// did not match.
type RegexExtract struct {
	NewCol  string
	FromCol string
	ApplyTo expr.Predicate // nil means all rows
	Default events.Value   // null unless configured

	re    *regexp.Regexp
	group int // -1 when named
	name  string
}

// NewRegexExtract validates the pattern and resolves the group reference at
// configuration time.
func NewRegexExtract(newCol, fromCol, pattern, group string, applyTo expr.Predicate, casefold bool, def events.Value) (*RegexExtract, error) {
	if casefold {
		pattern = "(?i)" + pattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("regex_extract %q: pattern %q: %w", newCol, pattern, err)
	}
	e := &RegexExtract{NewCol: newCol, FromCol: fromCol, ApplyTo: applyTo, Default: def, re: re}
	switch {
	case group == "" || group == "0":
		e.group = 0
	default:
		if n, err := strconv.Atoi(group); err == nil {
			if n < 0 || n > re.NumSubexp() {
				return nil, fmt.Errorf("regex_extract %q: group %d out of range (pattern has %d groups)", newCol, n, re.NumSubexp())
			}
			e.group = n
			break
		}
		e.group = -1
		e.name = group
		found := false
		for _, n := range re.SubexpNames() {
			if n == group {
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("regex_extract %q: pattern has no group named %q", newCol, group)
		}
	}
	return e, nil
}

func (e *RegexExtract) Name() string { return "regex_extract" }

func (e *RegexExtract) Apply(rows []events.Row, d *events.Diag) []events.Row {
	for _, r := range rows {
		if e.ApplyTo != nil && !e.ApplyTo.Eval(r) {
			r[e.NewCol] = events.Null()
			continue
		}
		src := r.Get(e.FromCol)
		if src.IsNull() {
			r[e.NewCol] = e.Default
			continue
		}
		m := e.re.FindStringSubmatch(src.Display())
		if m == nil {
			r[e.NewCol] = e.Default
			continue
		}
		r[e.NewCol] = events.String(m[e.groupIndex()])
	}
	return rows
}

func (e *RegexExtract) groupIndex() int {
	if e.group >= 0 {
		return e.group
	}
	for i, n := range e.re.SubexpNames() {
		if n == e.name {
			return i
		}
	}
	return 0 // unreachable: the name was checked at construction
}
