// Package config defines the canonical, JSON-serializable configuration model
// for the event-derivation pipeline. A pipeline document names an input sheet,
// an ordered set of derivation operator blocks, an output projection, and an
// optional archive sink. The same document can be expressed in YAML; see
// Load.
//
// Design goals:
//
//  1. Stability: changes to this package should be additive and backwards-
//     compatible whenever possible.
//  2. Clarity: Go field names mirror the JSON structure of task configuration
//     documents.
//  3. Minimalism: decoding is performed by the standard library (plus yaml.v3
//     for YAML documents), with a light Options helper for typed access to
//     free-form operator blocks.
package config

import "encoding/json"

// Pipeline is the top-level object decoded from a task configuration file.
type Pipeline struct {
	// Job labels this run for metrics and the archive sink (e.g.
	// "task-mem_run-01").
	Job string `json:"job"`

	// Source describes the behavioral sheet to read.
	Source Source `json:"source"`

	// Derive lists the operator blocks. Block order in the document does not
	// matter: the compiler applies the canonical stage order.
	Derive Derive `json:"derive"`

	// Output configures the projection and the events.tsv destination.
	Output Output `json:"output"`

	// Storage optionally archives derived events into a database for QC.
	Storage Storage `json:"storage"`

	// Runtime controls multi-sheet concurrency.
	Runtime Runtime `json:"runtime"`
}

// Source identifies and shapes the input sheet.
type Source struct {
	// Path is the sheet path; it may be a glob covering several runs.
	Path string `json:"path"`

	// Delimiter overrides the field separator. Empty means "by extension":
	// tab for .tsv, comma otherwise.
	Delimiter string `json:"delimiter"`

	// HeaderMap maps source header names to canonical column names.
	HeaderMap map[string]string `json:"header_map,omitempty"`

	// CanonicalHeaders lowercases headers, folds spaces to underscores, and
	// strips diacritics. Off by default: derivation expressions reference
	// original header names verbatim, punctuation included.
	CanonicalHeaders bool `json:"canonical_headers"`
}

// Derive groups the operator blocks under their recognized keys. Each block
// is a free-form Options bag validated by the pipeline compiler.
type Derive struct {
	RegexMap        []Options `json:"regex_map"`
	IDFrom          []Options `json:"id_from"`
	RegexExtract    []Options `json:"regex_extract"`
	MapValues       []Options `json:"map_values"`
	SynthRows       []Options `json:"synth_rows"`
	Drop            []Options `json:"drop"`
	Joins           Joins     `json:"joins"`
	Set             []Options `json:"set"`
	Indices         []Options `json:"indices"`
	SetAfterIndices []Options `json:"set_after_indices"`
	Recode          []Options `json:"recode"`
	Flags           []Options `json:"flags"`
	Optional        OptionalB `json:"optional"`
}

// Joins holds the three key-based join blocks.
type Joins struct {
	Membership   []Options `json:"membership"`
	Value        []Options `json:"value"`
	ExistsToFlag []Options `json:"exists_to_flag"`
}

// OptionalB holds optional convenience blocks that expand into regular
// operators.
type OptionalB struct {
	Novelty Options `json:"novelty"`
}

// Output configures the final projection and writer.
type Output struct {
	// Columns is the output projection, in output order.
	Columns []string `json:"columns"`

	// Strict makes an absent projection column an error diagnostic instead
	// of a silent omission.
	Strict bool `json:"strict"`

	// Path is the events.tsv destination. A "{input}" placeholder expands to
	// the input file's base name without extension.
	Path string `json:"path"`

	// Sidecar additionally writes a JSON sidecar skeleton next to Path.
	Sidecar bool `json:"sidecar"`

	// NoSort leaves rows in pipeline order instead of sorting by onset.
	NoSort bool `json:"no_sort"`
}

// Storage selects the archive sink used to persist derived events.
type Storage struct {
	// Kind selects the backend ("sqlite", "postgres"). Empty disables
	// archiving.
	Kind string `json:"kind"`

	// DB carries the backend connection settings.
	DB DBConfig `json:"db"`
}

// DBConfig configures the archive database sink.
type DBConfig struct {
	// DSN is the connection string (a file path for sqlite, a pgx URL for
	// postgres).
	DSN string `json:"dsn"`

	// Table is the destination table name.
	Table string `json:"table"`
}

// Runtime controls concurrency across input sheets. Derivation itself is
// single-threaded per sheet by design.
type Runtime struct {
	// Workers caps concurrent sheet derivations; 0 means one per CPU.
	Workers int `json:"workers"`
}

// Options is a small helper to fetch typed values from arbitrary JSON maps
// without introducing third-party configuration libraries. It purposefully
// performs only minimal type coercion and returns provided defaults when a
// key is absent or of an unexpected type.
type Options map[string]any

// String returns the string value for key or def if key is missing or not a string.
func (o Options) String(key, def string) string {
	if v, ok := o[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return def
}

// Bool returns the bool value for key or def if key is missing or not a bool.
func (o Options) Bool(key string, def bool) bool {
	if v, ok := o[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return def
}

// Int returns the int value for key or def. JSON numbers decode as float64,
// so this accepts float64 and casts.
func (o Options) Int(key string, def int) int {
	if v, ok := o[key]; ok {
		switch n := v.(type) {
		case float64:
			return int(n)
		case int:
			return n
		}
	}
	return def
}

// Float returns the float64 value for key or def.
func (o Options) Float(key string, def float64) float64 {
	if v, ok := o[key]; ok {
		switch n := v.(type) {
		case float64:
			return n
		case int:
			return float64(n)
		}
	}
	return def
}

// Has reports whether key is present at all.
func (o Options) Has(key string) bool {
	_, ok := o[key]
	return ok
}

// StringMap returns a map[string]string for key when the value is an object
// whose values are strings. Non-string values are ignored.
func (o Options) StringMap(key string) map[string]string {
	res := map[string]string{}
	if v, ok := o[key]; ok {
		if m, ok := v.(map[string]any); ok {
			for k, vv := range m {
				if s, ok := vv.(string); ok {
					res[k] = s
				}
			}
		}
	}
	return res
}

// StringSlice returns a []string for key when the value is an array of
// strings. Returns nil when the key is missing or not an array.
func (o Options) StringSlice(key string) []string {
	if v, ok := o[key]; ok {
		switch vv := v.(type) {
		case []any:
			out := make([]string, 0, len(vv))
			for _, x := range vv {
				if s, ok := x.(string); ok {
					out = append(out, s)
				}
			}
			return out
		case []string:
			return vv
		}
	}
	return nil
}

// Any returns the raw value for key (possibly a nested map or array), useful
// for blocks the caller decodes into a typed struct.
func (o Options) Any(key string) any {
	if v, ok := o[key]; ok {
		return v
	}
	return nil
}

// UnmarshalJSON makes a missing or null options object decode to a non-nil,
// empty Options map, removing nil checks at call sites.
func (o *Options) UnmarshalJSON(b []byte) error {
	var tmp map[string]any
	if len(b) == 0 || string(b) == "null" {
		*o = Options{}
		return nil
	}
	if err := json.Unmarshal(b, &tmp); err != nil {
		return err
	}
	*o = Options(tmp)
	return nil
}
