// Package deriver compiles and executes event-derivation pipelines: ordered
// sequences of table operators that turn a raw behavioral sheet into a
// normalized events table (onset, duration, trial_type, plus derived
// columns).
//
// A pipeline is compiled once from a config.Pipeline (or from flag tokens),
// is immutable afterwards, and executes synchronously in-memory. Operators
// run strictly in the canonical stage order (see compile.go) because later
// operators read columns earlier ones produce. Non-fatal findings accumulate
// in an events.Diag and are returned to the caller; only configuration errors
// abort, and they do so before any row is touched.
package deriver

import (
	"errors"

	"bidsevents/internal/events"
)

// Operator is one named table→table transformation. Implementations live in
// the op subpackage; all of them are total functions over the table and leave
// unmatched rows untouched.
type Operator interface {
	Name() string
	Apply(rows []events.Row, d *events.Diag) []events.Row
}

// Pipeline is a compiled, causally-ordered operator sequence. It is built
// once per invocation and discarded after one execution.
type Pipeline struct {
	job  string
	ops  []Operator
	done bool
}

// ErrAlreadyRun is returned by Run on a pipeline that has executed. Pipelines
// are single-shot; compile a fresh one per table.
var ErrAlreadyRun = errors.New("pipeline has already run")

// Job returns the label the pipeline was compiled with.
func (p *Pipeline) Job() string { return p.job }

// Stages returns the operator names in execution order.
func (p *Pipeline) Stages() []string {
	out := make([]string, len(p.ops))
	for i, o := range p.ops {
		out[i] = o.Name()
	}
	return out
}

// Run applies every operator in order to a copy of rows and returns the final
// table with the accumulated diagnostics. The input slice and its rows are
// never mutated. Warnings and localized errors do not halt execution; an
// operator whose selector matches no rows is a no-op.
func (p *Pipeline) Run(rows []events.Row) ([]events.Row, []events.Note, error) {
	if p.done {
		return nil, nil, ErrAlreadyRun
	}
	p.done = true

	var d events.Diag
	out := events.CloneRows(rows)
	for _, o := range p.ops {
		out = o.Apply(out, &d)
	}
	return out, d.Notes(), nil
}
