// Package config provides configuration models and helpers for derivation
// pipelines.
//
// This file adds a lightweight linter for Pipeline values. It performs static
// checks over a decoded Pipeline and returns a list of issues (errors and
// warnings) that callers can surface in a CLI or tests. It deliberately
// overlaps with the pipeline compiler's own validation: the linter is cheap
// and runs under -validate without touching any sheet, while the compiler is
// authoritative.
package config

import (
	"fmt"
	"strings"
)

// IssueSeverity represents the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError indicates a configuration error that should block execution.
	SeverityError IssueSeverity = "error"
	// SeverityWarning indicates a configuration warning that should be surfaced
	// to users but may not necessarily block execution.
	SeverityWarning IssueSeverity = "warning"
)

// Issue describes a single validation/lint finding for a Pipeline.
//
// Path is a dotted path into the config (e.g. "output.columns",
// "derive.regex_map[1].newcol"). Message is human-readable.
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

// Error implements the error interface so an Issue can be treated as a single
// error in contexts that expect one.
func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// ValidatePipeline performs static validation / linting of a Pipeline. It
// does not mutate the pipeline; callers decide whether warnings are fatal.
func ValidatePipeline(p Pipeline) []Issue {
	var issues []Issue

	if strings.TrimSpace(p.Job) == "" {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "job",
			Message:  "job is empty; metrics and archive rows will be labeled with the input file name",
		})
	}
	if strings.TrimSpace(p.Source.Path) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "source.path",
			Message:  "source.path must not be empty",
		})
	}
	if len(p.Source.Delimiter) > 1 && p.Source.Delimiter != "\\t" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "source.delimiter",
			Message:  fmt.Sprintf("delimiter %q must be a single character", p.Source.Delimiter),
		})
	}

	issues = append(issues, validateDerive(p.Derive)...)
	issues = append(issues, validateOutput(p.Output)...)
	issues = append(issues, validateStorage(p.Storage)...)

	if p.Runtime.Workers < 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "runtime.workers",
			Message:  "workers must not be negative",
		})
	}

	return issues
}

// requiredBlockKeys lists, per derive block, the option keys a block cannot
// work without. The compiler re-checks these (and more); the linter exists so
// -validate reports obvious problems without reading any sheet.
var requiredBlockKeys = map[string][]string{
	"regex_map":         {"newcol", "from_col", "mapping"},
	"id_from":           {"newcol", "from_col"},
	"regex_extract":     {"newcol", "from_col", "pattern"},
	"map_values":        {"newcol", "from_col", "mapping"},
	"synth_rows":        {"groupby", "onset"},
	"drop":              {"when"},
	"joins.membership":  {"newcol", "keys", "exists_in"},
	"joins.value":       {"newcol", "value_from", "keys", "from_rows", "to_rows"},
	"joins.exists_to_flag": {"newcol", "keys", "from_rows", "to_rows"},
	"set":               {"set_values"},
	"indices":           {"newcol", "groupby"},
	"set_after_indices": {"set_values"},
	"recode":            {"newcol", "from_col", "mapping"},
	"flags":             {"newcol", "expr"},
}

func validateDerive(d Derive) []Issue {
	var issues []Issue

	blocks := []struct {
		name string
		opts []Options
	}{
		{"regex_map", d.RegexMap},
		{"id_from", d.IDFrom},
		{"regex_extract", d.RegexExtract},
		{"map_values", d.MapValues},
		{"synth_rows", d.SynthRows},
		{"drop", d.Drop},
		{"joins.membership", d.Joins.Membership},
		{"joins.value", d.Joins.Value},
		{"joins.exists_to_flag", d.Joins.ExistsToFlag},
		{"set", d.Set},
		{"indices", d.Indices},
		{"set_after_indices", d.SetAfterIndices},
		{"recode", d.Recode},
		{"flags", d.Flags},
	}

	empty := true
	for _, b := range blocks {
		if len(b.opts) > 0 {
			empty = false
		}
		required := requiredBlockKeys[b.name]
		for i, o := range b.opts {
			for _, key := range required {
				if !o.Has(key) {
					issues = append(issues, Issue{
						Severity: SeverityError,
						Path:     fmt.Sprintf("derive.%s[%d].%s", b.name, i, key),
						Message:  fmt.Sprintf("required parameter %q is missing", key),
					})
				}
			}
		}
	}
	if len(d.Optional.Novelty) > 0 {
		empty = false
		for _, key := range []string{"newcol", "keys"} {
			if !d.Optional.Novelty.Has(key) {
				issues = append(issues, Issue{
					Severity: SeverityError,
					Path:     "derive.optional.novelty." + key,
					Message:  fmt.Sprintf("required parameter %q is missing", key),
				})
			}
		}
	}

	if empty {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "derive",
			Message:  "no derivation operators configured; raw sheet rows will be projected as-is",
		})
	}

	return issues
}

func validateOutput(o Output) []Issue {
	var issues []Issue

	if len(o.Columns) == 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "output.columns",
			Message:  "output.columns must not be empty; list at least onset, duration, trial_type",
		})
		return issues
	}
	for _, want := range []string{"onset", "duration", "trial_type"} {
		found := false
		for _, c := range o.Columns {
			if c == want {
				found = true
				break
			}
		}
		if !found {
			issues = append(issues, Issue{
				Severity: SeverityWarning,
				Path:     "output.columns",
				Message:  fmt.Sprintf("BIDS events files normally include %q", want),
			})
		}
	}
	return issues
}

func validateStorage(s Storage) []Issue {
	var issues []Issue

	if strings.TrimSpace(s.Kind) == "" {
		return issues // archiving disabled
	}
	known := map[string]struct{}{
		"sqlite":   {},
		"postgres": {},
	}
	if _, ok := known[s.Kind]; !ok {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "storage.kind",
			Message:  fmt.Sprintf("unknown storage kind %q; ensure a matching backend is registered", s.Kind),
		})
	}
	if strings.TrimSpace(s.DB.DSN) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "storage.db.dsn",
			Message:  "storage.db.dsn must not be empty when storage.kind is set",
		})
	}
	if strings.TrimSpace(s.DB.Table) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "storage.db.table",
			Message:  "storage.db.table must not be empty when storage.kind is set",
		})
	}
	return issues
}
