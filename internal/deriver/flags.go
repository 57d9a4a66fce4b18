package deriver

import (
	"fmt"
	"strconv"
	"strings"

	"bidsevents/internal/config"
)

// ParseFlagTokens converts inline derivation tokens into the same Derive
// shape a config document decodes to, so one compiler serves both entry
// points. Each token is
//
//	stage:key=value,key=value,...
//
// e.g.
//
//	regex_extract:newcol=run,from_col=file,pattern=run-(\d+),group=1
//	flags:newcol=is_target,expr='trial_type = "target"'
//
// Values may be single- or double-quoted to protect commas and equals signs.
// Unquoted true/false and numbers decode as such; an unquoted value containing
// "|" decodes as a list (keys=subject|run). Token order within a stage is
// preserved; stage order is canonical regardless, as with document configs.
func ParseFlagTokens(tokens []string) (config.Derive, error) {
	var d config.Derive
	for _, tok := range tokens {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		stage, rest, ok := strings.Cut(tok, ":")
		if !ok {
			return d, fmt.Errorf("derive token %q: want stage:key=value,...", truncateTok(tok))
		}
		opts, err := parseFlagParams(rest)
		if err != nil {
			return d, fmt.Errorf("derive token %q: %w", truncateTok(tok), err)
		}
		if err := appendStage(&d, stage, opts); err != nil {
			return d, err
		}
	}
	return d, nil
}

func appendStage(d *config.Derive, stage string, o config.Options) error {
	switch stage {
	case "regex_map":
		d.RegexMap = append(d.RegexMap, o)
	case "id_from":
		d.IDFrom = append(d.IDFrom, o)
	case "regex_extract":
		d.RegexExtract = append(d.RegexExtract, o)
	case "map_values":
		d.MapValues = append(d.MapValues, o)
	case "synth_rows":
		d.SynthRows = append(d.SynthRows, o)
	case "drop":
		d.Drop = append(d.Drop, o)
	case "join_membership", "joins.membership":
		d.Joins.Membership = append(d.Joins.Membership, o)
	case "join_value", "joins.value":
		d.Joins.Value = append(d.Joins.Value, o)
	case "exists_to_flag", "joins.exists_to_flag":
		d.Joins.ExistsToFlag = append(d.Joins.ExistsToFlag, o)
	case "set":
		d.Set = append(d.Set, o)
	case "index", "indices":
		d.Indices = append(d.Indices, o)
	case "set_after_indices":
		d.SetAfterIndices = append(d.SetAfterIndices, o)
	case "recode":
		d.Recode = append(d.Recode, o)
	case "flag", "flags":
		d.Flags = append(d.Flags, o)
	case "novelty":
		if len(d.Optional.Novelty) > 0 {
			return fmt.Errorf("derive token: novelty given twice")
		}
		d.Optional.Novelty = o
	default:
		return fmt.Errorf("derive token: unknown stage %q", stage)
	}
	return nil
}

// parseFlagParams splits "key=value,key=value" respecting quotes. set_values
// style nesting is expressed with dotted keys: set_values.trial_type=go.
func parseFlagParams(s string) (config.Options, error) {
	o := config.Options{}
	for _, pair := range splitQuoted(s, ',') {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		key, raw, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("parameter %q: want key=value", pair)
		}
		key = strings.TrimSpace(key)
		val := flagValue(strings.TrimSpace(raw))

		if parent, child, nested := strings.Cut(key, "."); nested {
			inner, _ := o[parent].(map[string]any)
			if inner == nil {
				inner = map[string]any{}
				o[parent] = inner
			}
			inner[child] = val
			continue
		}
		if _, dup := o[key]; dup {
			return nil, fmt.Errorf("parameter %q given twice", key)
		}
		o[key] = val
	}
	if len(o) == 0 {
		return nil, fmt.Errorf("no parameters")
	}
	return o, nil
}

// flagValue decodes a single parameter value. Quoted values are verbatim
// strings; unquoted values get light typing so the compiler sees the same
// shapes a JSON document produces.
func flagValue(s string) any {
	if len(s) >= 2 {
		if (s[0] == '\'' && s[len(s)-1] == '\'') || (s[0] == '"' && s[len(s)-1] == '"') {
			return s[1 : len(s)-1]
		}
	}
	if strings.Contains(s, "|") {
		parts := strings.Split(s, "|")
		out := make([]any, len(parts))
		for i, p := range parts {
			out[i] = strings.TrimSpace(p)
		}
		return out
	}
	switch s {
	case "true":
		return true
	case "false":
		return false
	}
	if n, err := strconv.ParseFloat(s, 64); err == nil {
		return n
	}
	return s
}

// splitQuoted splits s on sep outside single or double quotes.
func splitQuoted(s string, sep byte) []string {
	var (
		out   []string
		start int
		quote byte
	)
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"':
			quote = c
		case c == sep:
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	return append(out, s[start:])
}

func truncateTok(s string) string {
	if len(s) > 60 {
		return s[:57] + "..."
	}
	return s
}
