package storage

import (
	"context"
	"fmt"
	"strings"

	"bidsevents/internal/events"
)

// archiveBatchSize bounds the rows per CopyFrom call so one huge run does not
// hold everything in a single statement.
const archiveBatchSize = 5000

// metaColumns are prepended to every archived row so rows from different jobs
// and sheets can be told apart in one table.
var metaColumns = []string{"job", "source_file"}

// Archive ensures the destination table exists, then bulk-inserts the derived
// table tagged with job and source labels. Returns the total rows inserted.
func Archive(ctx context.Context, repo Repository, table, job, source string, cols []string, rows []events.Row) (int64, error) {
	if err := repo.Exec(ctx, createTableSQL(table, cols)); err != nil {
		return 0, fmt.Errorf("ensure archive table: %w", err)
	}

	all := append(append([]string{}, metaColumns...), cols...)
	var total int64
	for start := 0; start < len(rows); start += archiveBatchSize {
		end := start + archiveBatchSize
		if end > len(rows) {
			end = len(rows)
		}
		batch := make([][]any, 0, end-start)
		for _, r := range rows[start:end] {
			rec := make([]any, 0, len(all))
			rec = append(rec, job, source)
			for _, c := range cols {
				rec = append(rec, cellValue(r.Get(c)))
			}
			batch = append(batch, rec)
		}
		n, err := repo.CopyFrom(ctx, all, batch)
		total += n
		if err != nil {
			return total, fmt.Errorf("archive rows: %w", err)
		}
	}
	return total, nil
}

// cellValue converts a Value into a driver-friendly scalar: nil for null so
// the archive stores SQL NULL rather than the "n/a" display form.
func cellValue(v events.Value) any {
	if v.IsNull() {
		return nil
	}
	if n, ok := v.Num(); ok {
		return n
	}
	return v.Display()
}

// createTableSQL builds a portable CREATE TABLE IF NOT EXISTS for the archive.
// Event cells are stored as TEXT except the two canonical numeric columns;
// the archive is a QC sink, not a typed warehouse.
func createTableSQL(table string, cols []string) string {
	defs := make([]string, 0, len(metaColumns)+len(cols))
	for _, c := range metaColumns {
		defs = append(defs, quoteIdent(c)+" TEXT")
	}
	for _, c := range cols {
		typ := "TEXT"
		if c == "onset" || c == "duration" {
			typ = "DOUBLE PRECISION"
		}
		defs = append(defs, quoteIdent(c)+" "+typ)
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", table, strings.Join(defs, ", "))
}

// quoteIdent double-quotes a column name; sheet headers can contain anything.
func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
