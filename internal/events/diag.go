package events

import "fmt"

// Severity classifies a pipeline finding.
type Severity string

const (
	// SeverityWarning marks a degraded-but-defined situation (missing key
	// column, duplicate join key). Warnings never halt the pipeline.
	SeverityWarning Severity = "warning"
	// SeverityError marks a localized failure with a defined fallback
	// (e.g. a bad onset expression skips one group's synthesis).
	SeverityError Severity = "error"
)

// Note is one diagnostic entry. Op names the operator that produced it.
type Note struct {
	Severity Severity
	Op       string
	Message  string
}

func (n Note) String() string {
	return fmt.Sprintf("%s: %s: %s", n.Severity, n.Op, n.Message)
}

// Diag is the append-only diagnostics sink threaded through a pipeline run.
// It is not safe for concurrent use; each run owns its own Diag.
type Diag struct {
	notes []Note
}

// Warnf appends a warning produced by op.
func (d *Diag) Warnf(op, format string, args ...any) {
	d.notes = append(d.notes, Note{Severity: SeverityWarning, Op: op, Message: fmt.Sprintf(format, args...)})
}

// Errorf appends a non-fatal error produced by op.
func (d *Diag) Errorf(op, format string, args ...any) {
	d.notes = append(d.notes, Note{Severity: SeverityError, Op: op, Message: fmt.Sprintf(format, args...)})
}

// Notes returns the accumulated entries in append order.
func (d *Diag) Notes() []Note { return d.notes }
