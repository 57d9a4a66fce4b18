package deriver

import (
	"fmt"
	"sort"

	"bidsevents/internal/config"
	"bidsevents/internal/deriver/op"
	"bidsevents/internal/events"
	"bidsevents/internal/expr"
)

// ConfigError is a fatal compile-time configuration problem: unknown
// operator, missing required parameter, malformed keys/groupby, or a bad
// regex/expression. It aborts compilation before any row is processed.
type ConfigError struct {
	Path   string // dotted config path, e.g. "derive.joins.value[0].keys"
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("configuration error at %s: %s", e.Path, e.Reason)
}

func cfgErr(path, format string, args ...any) error {
	return &ConfigError{Path: path, Reason: fmt.Sprintf(format, args...)}
}

// Stage order is a fixed, documented invariant of the pipeline — it is not
// inferred from the input document. Identifier and classification operators
// run first because later selectors read the columns they derive; value joins
// run after indices and sets so joined predicates can reference them; flags
// run last before projection.
//
// The order below lists config block names in execution order.
var stageOrder = []string{
	"regex_map",
	"id_from",
	"regex_extract",
	"map_values",
	"synth_rows",
	"drop",
	"joins.membership",
	"set",
	"indices",
	"set_after_indices",
	"joins.value",
	"joins.exists_to_flag",
	"recode",
	"flags",
	"optional.novelty",
	"keep_cols",
}

// Compile converts a pipeline document into a validated, causally-ordered
// operator sequence. All parameter and expression validation happens here; a
// compiled pipeline cannot fail to start.
func Compile(cfg config.Pipeline) (*Pipeline, error) {
	c := compiler{cfg: cfg}
	for _, stage := range stageOrder {
		if err := c.addStage(stage); err != nil {
			return nil, err
		}
	}
	return &Pipeline{job: cfg.Job, ops: c.ops}, nil
}

type compiler struct {
	cfg config.Pipeline
	ops []Operator
}

func (c *compiler) addStage(stage string) error {
	d := c.cfg.Derive
	switch stage {
	case "regex_map":
		return c.each(stage, d.RegexMap, c.regexMap)
	case "id_from":
		return c.each(stage, d.IDFrom, c.idFrom)
	case "regex_extract":
		return c.each(stage, d.RegexExtract, c.regexExtract)
	case "map_values":
		return c.each(stage, d.MapValues, c.mapValues)
	case "synth_rows":
		return c.each(stage, d.SynthRows, c.synthRows)
	case "drop":
		return c.each(stage, d.Drop, c.drop)
	case "joins.membership":
		return c.each(stage, d.Joins.Membership, c.joinMembership)
	case "set", "set_after_indices":
		blocks := d.Set
		if stage == "set_after_indices" {
			blocks = d.SetAfterIndices
		}
		return c.each(stage, blocks, c.set)
	case "indices":
		return c.each(stage, d.Indices, c.index)
	case "joins.value":
		return c.each(stage, d.Joins.Value, c.joinValue)
	case "joins.exists_to_flag":
		return c.each(stage, d.Joins.ExistsToFlag, c.existsToFlag)
	case "recode":
		return c.each(stage, d.Recode, c.mapValues)
	case "flags":
		return c.each(stage, d.Flags, c.flag)
	case "optional.novelty":
		if len(d.Optional.Novelty) == 0 {
			return nil
		}
		return c.novelty("derive.optional.novelty", d.Optional.Novelty)
	case "keep_cols":
		if len(c.cfg.Output.Columns) == 0 {
			return cfgErr("output.columns", "output projection must list at least one column")
		}
		c.ops = append(c.ops, &op.Project{Cols: c.cfg.Output.Columns, Strict: c.cfg.Output.Strict})
		return nil
	default:
		return cfgErr("derive", "unknown operator stage %q", stage)
	}
}

// each compiles every block of one stage in document order.
func (c *compiler) each(stage string, blocks []config.Options, build func(path string, o config.Options) error) error {
	for i, o := range blocks {
		path := fmt.Sprintf("derive.%s[%d]", stage, i)
		if err := build(path, o); err != nil {
			return err
		}
	}
	return nil
}

// --- per-operator builders ---------------------------------------------------

func (c *compiler) regexMap(path string, o config.Options) error {
	newCol, fromCol, err := newFromCols(path, o)
	if err != nil {
		return err
	}
	mapping, err := orderedMapping(path, o)
	if err != nil {
		return err
	}
	m, err := op.NewRegexMap(newCol, fromCol, mapping, o.Bool("casefold", false))
	if err != nil {
		return cfgErr(path, "%v", err)
	}
	c.ops = append(c.ops, m)
	return nil
}

func (c *compiler) idFrom(path string, o config.Options) error {
	newCol, fromCol, err := newFromCols(path, o)
	if err != nil {
		return err
	}
	fn := o.String("func", "basename")
	m, err := op.NewIDFrom(newCol, fromCol, fn)
	if err != nil {
		return cfgErr(path, "%v", err)
	}
	c.ops = append(c.ops, m)
	return nil
}

func (c *compiler) regexExtract(path string, o config.Options) error {
	newCol, fromCol, err := newFromCols(path, o)
	if err != nil {
		return err
	}
	pattern := o.String("pattern", "")
	if pattern == "" {
		return cfgErr(path+".pattern", "required parameter %q is missing", "pattern")
	}
	group := o.String("group", "")
	if !o.Has("group") {
		group = ""
	} else if group == "" {
		// numeric group in JSON decodes as float64
		group = fmt.Sprintf("%d", o.Int("group", 0))
	}
	applyTo, err := optionalPredicate(path, o, "apply_to")
	if err != nil {
		return err
	}
	def := events.Null()
	if o.Has("default") {
		def = literalValue(o.Any("default"))
	}
	m, err := op.NewRegexExtract(newCol, fromCol, pattern, group, applyTo, o.Bool("casefold", false), def)
	if err != nil {
		return cfgErr(path, "%v", err)
	}
	c.ops = append(c.ops, m)
	return nil
}

func (c *compiler) mapValues(path string, o config.Options) error {
	newCol, fromCol, err := newFromCols(path, o)
	if err != nil {
		return err
	}
	raw := o.Any("mapping")
	if raw == nil {
		return cfgErr(path+".mapping", "required parameter %q is missing", "mapping")
	}
	mapping, ok := rawStringMap(raw)
	if !ok {
		return cfgErr(path+".mapping", "mapping must be an object of old→new string pairs")
	}
	c.ops = append(c.ops, op.NewMapValues(newCol, fromCol, mapping, o.Bool("casefold", false)))
	return nil
}

func (c *compiler) synthRows(path string, o config.Options) error {
	when, err := optionalPredicate(path, o, "when")
	if err != nil {
		return err
	}
	groupBy, err := keyList(path, o, "groupby")
	if err != nil {
		return err
	}
	onset := o.String("onset", "")
	if onset == "" {
		return cfgErr(path+".onset", "required parameter %q is missing", "onset")
	}
	values, err := assignments(path, o, "set_values", false)
	if err != nil {
		return err
	}
	c.ops = append(c.ops, &op.SynthRows{
		When:      when,
		GroupBy:   groupBy,
		OnsetExpr: onset,
		Duration:  o.Float("duration", 0),
		ClampZero: o.Bool("clamp_zero", false),
		Values:    values,
	})
	return nil
}

func (c *compiler) drop(path string, o config.Options) error {
	when, err := requiredPredicate(path, o, "when")
	if err != nil {
		return err
	}
	c.ops = append(c.ops, &op.Drop{When: when})
	return nil
}

func (c *compiler) joinMembership(path string, o config.Options) error {
	newCol := o.String("newcol", "")
	if newCol == "" {
		return cfgErr(path+".newcol", "required parameter %q is missing", "newcol")
	}
	keys, err := keyList(path, o, "keys")
	if err != nil {
		return err
	}
	existsIn, err := requiredPredicate(path, o, "exists_in")
	if err != nil {
		return err
	}
	applyTo, err := optionalPredicate(path, o, "apply_to")
	if err != nil {
		return err
	}
	c.ops = append(c.ops, &op.JoinMembership{
		NewCol:     newCol,
		Keys:       keys,
		ExistsIn:   existsIn,
		ApplyTo:    applyTo,
		TrueValue:  literalOr(o, "true_value", events.Bool(true)),
		FalseValue: literalOr(o, "false_value", events.Bool(false)),
		Scope:      o.String("scope", ""),
	})
	return nil
}

func (c *compiler) set(path string, o config.Options) error {
	when, err := optionalPredicate(path, o, "when")
	if err != nil {
		return err
	}
	values, err := assignments(path, o, "set_values", true)
	if err != nil {
		return err
	}
	c.ops = append(c.ops, &op.Set{When: when, Values: values})
	return nil
}

func (c *compiler) index(path string, o config.Options) error {
	newCol := o.String("newcol", "")
	if newCol == "" {
		return cfgErr(path+".newcol", "required parameter %q is missing", "newcol")
	}
	groupBy, err := keyList(path, o, "groupby")
	if err != nil {
		return err
	}
	applyTo, err := optionalPredicate(path, o, "apply_to")
	if err != nil {
		return err
	}
	c.ops = append(c.ops, &op.Index{
		NewCol:  newCol,
		GroupBy: groupBy,
		OrderBy: o.String("orderby", ""),
		Start:   o.Int("start", 1),
		ApplyTo: applyTo,
	})
	return nil
}

func (c *compiler) joinValue(path string, o config.Options) error {
	newCol := o.String("newcol", "")
	valueFrom := o.String("value_from", "")
	if newCol == "" {
		return cfgErr(path+".newcol", "required parameter %q is missing", "newcol")
	}
	if valueFrom == "" {
		return cfgErr(path+".value_from", "required parameter %q is missing", "value_from")
	}
	keys, err := keyList(path, o, "keys")
	if err != nil {
		return err
	}
	fromRows, err := requiredPredicate(path, o, "from_rows")
	if err != nil {
		return err
	}
	toRows, err := requiredPredicate(path, o, "to_rows")
	if err != nil {
		return err
	}
	c.ops = append(c.ops, &op.JoinValue{
		NewCol:    newCol,
		ValueFrom: valueFrom,
		Keys:      keys,
		FromRows:  fromRows,
		ToRows:    toRows,
		Default:   literalOr(o, "default", events.Null()),
		Scope:     o.String("scope", ""),
	})
	return nil
}

func (c *compiler) existsToFlag(path string, o config.Options) error {
	newCol := o.String("newcol", "")
	if newCol == "" {
		return cfgErr(path+".newcol", "required parameter %q is missing", "newcol")
	}
	keys, err := keyList(path, o, "keys")
	if err != nil {
		return err
	}
	fromRows, err := requiredPredicate(path, o, "from_rows")
	if err != nil {
		return err
	}
	toRows, err := requiredPredicate(path, o, "to_rows")
	if err != nil {
		return err
	}
	c.ops = append(c.ops, &op.ExistsToFlag{
		NewCol:   newCol,
		Keys:     keys,
		FromRows: fromRows,
		ToRows:   toRows,
		TrueVal:  literalOr(o, "true_val", events.Bool(true)),
		FalseVal: literalOr(o, "false_val", events.Bool(false)),
		Scope:    o.String("scope", ""),
	})
	return nil
}

func (c *compiler) flag(path string, o config.Options) error {
	newCol := o.String("newcol", "")
	if newCol == "" {
		return cfgErr(path+".newcol", "required parameter %q is missing", "newcol")
	}
	pred, err := requiredPredicate(path, o, "expr")
	if err != nil {
		return err
	}
	c.ops = append(c.ops, &op.Flag{
		NewCol:   newCol,
		Expr:     pred,
		TrueVal:  literalOr(o, "true", events.Bool(true)),
		FalseVal: literalOr(o, "false", events.Bool(false)),
	})
	return nil
}

func (c *compiler) novelty(path string, o config.Options) error {
	newCol := o.String("newcol", "")
	if newCol == "" {
		return cfgErr(path+".newcol", "required parameter %q is missing", "newcol")
	}
	keys, err := keyList(path, o, "keys")
	if err != nil {
		return err
	}
	c.ops = append(c.ops, &op.Novelty{
		NewCol:   newCol,
		Keys:     keys,
		Scope:    o.String("scope", ""),
		TrueVal:  literalOr(o, "true_value", events.String("novel")),
		FalseVal: literalOr(o, "false_value", events.String("repeated")),
	})
	return nil
}

// --- shared parameter helpers ------------------------------------------------

func newFromCols(path string, o config.Options) (newCol, fromCol string, err error) {
	newCol = o.String("newcol", "")
	fromCol = o.String("from_col", "")
	if newCol == "" {
		return "", "", cfgErr(path+".newcol", "required parameter %q is missing", "newcol")
	}
	if fromCol == "" {
		return "", "", cfgErr(path+".from_col", "required parameter %q is missing", "from_col")
	}
	return newCol, fromCol, nil
}

// keyList reads a keys/groupby parameter that may be a single string or a
// list of strings. Anything else is a configuration error.
func keyList(path string, o config.Options, key string) ([]string, error) {
	raw := o.Any(key)
	if raw == nil {
		return nil, cfgErr(path+"."+key, "required parameter %q is missing", key)
	}
	switch v := raw.(type) {
	case string:
		if v == "" {
			return nil, cfgErr(path+"."+key, "%s must not be empty", key)
		}
		return []string{v}, nil
	case []any, []string:
		cols := o.StringSlice(key)
		if len(cols) == 0 {
			return nil, cfgErr(path+"."+key, "%s must contain at least one column name", key)
		}
		return cols, nil
	default:
		return nil, cfgErr(path+"."+key, "%s must be a string or a list of strings, got %T", key, raw)
	}
}

func requiredPredicate(path string, o config.Options, key string) (expr.Predicate, error) {
	s := o.String(key, "")
	if s == "" {
		return nil, cfgErr(path+"."+key, "required parameter %q is missing", key)
	}
	pred, err := expr.ParsePredicate(s)
	if err != nil {
		return nil, cfgErr(path+"."+key, "%v", err)
	}
	return pred, nil
}

func optionalPredicate(path string, o config.Options, key string) (expr.Predicate, error) {
	s := o.String(key, "")
	if s == "" || s == "true" {
		return nil, nil
	}
	pred, err := expr.ParsePredicate(s)
	if err != nil {
		return nil, cfgErr(path+"."+key, "%v", err)
	}
	return pred, nil
}

// literalValue converts a decoded JSON scalar into an events.Value.
func literalValue(raw any) events.Value {
	switch v := raw.(type) {
	case string:
		return events.String(v)
	case float64:
		return events.Number(v)
	case int:
		return events.Number(float64(v))
	case bool:
		return events.Bool(v)
	default:
		return events.Null()
	}
}

func literalOr(o config.Options, key string, def events.Value) events.Value {
	if !o.Has(key) {
		return def
	}
	return literalValue(o.Any(key))
}

// orderedMapping decodes a regex_map mapping. The mapping must be an array of
// {label, pattern} objects: JSON object key order is not preserved by
// encoding/json, and mapping order is semantic (first match wins).
func orderedMapping(path string, o config.Options) ([]op.LabelPattern, error) {
	raw := o.Any("mapping")
	if raw == nil {
		return nil, cfgErr(path+".mapping", "required parameter %q is missing", "mapping")
	}
	arr, ok := raw.([]any)
	if !ok {
		return nil, cfgErr(path+".mapping", "mapping must be an ordered array of {label, pattern} entries")
	}
	out := make([]op.LabelPattern, 0, len(arr))
	for i, e := range arr {
		m, ok := e.(map[string]any)
		if !ok {
			return nil, cfgErr(fmt.Sprintf("%s.mapping[%d]", path, i), "entry must be a {label, pattern} object")
		}
		label, _ := m["label"].(string)
		pattern, _ := m["pattern"].(string)
		if label == "" || pattern == "" {
			return nil, cfgErr(fmt.Sprintf("%s.mapping[%d]", path, i), "entry needs non-empty label and pattern")
		}
		out = append(out, op.LabelPattern{Label: label, Pattern: pattern})
	}
	if len(out) == 0 {
		return nil, cfgErr(path+".mapping", "mapping must not be empty")
	}
	return out, nil
}

// rawStringMap converts a decoded JSON object into map[string]string,
// accepting numeric values by rendering them.
func rawStringMap(raw any) (map[string]string, bool) {
	m, ok := raw.(map[string]any)
	if !ok {
		return nil, false
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		switch t := v.(type) {
		case string:
			out[k] = t
		case float64:
			out[k] = literalValue(t).Display()
		default:
			return nil, false
		}
	}
	return out, true
}

// assignments decodes a set_values object into ordered Assignments. Column
// order is sorted for deterministic template diagnostics; assignments write
// distinct columns, so application order does not affect the result.
func assignments(path string, o config.Options, key string, required bool) ([]op.Assignment, error) {
	raw := o.Any(key)
	if raw == nil {
		if required {
			return nil, cfgErr(path+"."+key, "required parameter %q is missing", key)
		}
		return nil, nil
	}
	m, ok := raw.(map[string]any)
	if !ok {
		return nil, cfgErr(path+"."+key, "%s must be an object of column→value pairs", key)
	}
	cols := make([]string, 0, len(m))
	for k := range m {
		cols = append(cols, k)
	}
	sort.Strings(cols)

	out := make([]op.Assignment, 0, len(cols))
	for _, col := range cols {
		v := m[col]
		if s, ok := v.(string); ok && expr.IsTemplate(s) {
			tmpl, err := expr.ParseTemplate(s)
			if err != nil {
				return nil, cfgErr(fmt.Sprintf("%s.%s.%s", path, key, col), "%v", err)
			}
			out = append(out, op.Assignment{Col: col, Tmpl: tmpl})
			continue
		}
		out = append(out, op.Assignment{Col: col, Lit: literalValue(v)})
	}
	return out, nil
}
