// Package output writes derived event tables to BIDS-style events.tsv files
// plus an optional JSON sidecar skeleton.
package output

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"bidsevents/internal/events"
)

// Options configures the events writer.
type Options struct {
	// NoSort leaves rows in pipeline order instead of sorting by onset.
	NoSort bool
}

// Writer writes event tables. The zero value sorts by onset.
type Writer struct{ opt Options }

// NewWriter constructs a Writer with the provided Options.
func NewWriter(opt Options) *Writer { return &Writer{opt: opt} }

// WriteFile writes rows to path as a tab-separated events table, creating
// parent directories as needed.
func (w *Writer) WriteFile(path string, cols []string, rows []events.Row) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create events file: %w", err)
	}
	if err := w.Write(f, cols, rows); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close events file: %w", err)
	}
	return nil
}

// Write emits the header then one line per row, columns in cols order, cells
// tab-separated, nulls rendered as "n/a". Unless NoSort is set, rows are
// ordered by ascending onset with non-numeric onsets last in their original
// relative order.
func (w *Writer) Write(out io.Writer, cols []string, rows []events.Row) error {
	if len(cols) == 0 {
		return fmt.Errorf("no output columns")
	}
	if !w.opt.NoSort {
		rows = sortByOnset(rows)
	}

	bw := bufio.NewWriter(out)
	if _, err := bw.WriteString(strings.Join(cols, "\t") + "\n"); err != nil {
		return fmt.Errorf("write events header: %w", err)
	}
	cells := make([]string, len(cols))
	for _, r := range rows {
		for i, c := range cols {
			cells[i] = r.Get(c).Display()
		}
		if _, err := bw.WriteString(strings.Join(cells, "\t") + "\n"); err != nil {
			return fmt.Errorf("write events row: %w", err)
		}
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("flush events file: %w", err)
	}
	return nil
}

// sortByOnset returns a stably onset-sorted copy of rows. The input slice is
// left untouched.
func sortByOnset(rows []events.Row) []events.Row {
	sorted := make([]events.Row, len(rows))
	copy(sorted, rows)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, aok := sorted[i].Get("onset").Num()
		b, bok := sorted[j].Get("onset").Num()
		if aok && bok {
			return a < b
		}
		return aok && !bok
	})
	return sorted
}

// DestPath resolves the configured output path for one input sheet. A
// "{input}" placeholder expands to the sheet's base name without extension;
// an empty configured path derives "<input>_events.tsv" next to the sheet.
func DestPath(configured, input string) string {
	base := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
	if configured == "" {
		return filepath.Join(filepath.Dir(input), base+"_events.tsv")
	}
	return strings.ReplaceAll(configured, "{input}", base)
}
