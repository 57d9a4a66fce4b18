package main

import (
	"context"
	"fmt"
	"log"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"bidsevents/internal/config"
	"bidsevents/internal/deriver"
	"bidsevents/internal/events"
	"bidsevents/internal/metrics"
	"bidsevents/internal/output"
	"bidsevents/internal/schema"
	"bidsevents/internal/sheet"
	"bidsevents/internal/storage"
)

// run derives events for every sheet the source path matches. Sheets are
// independent, so they run concurrently up to runtime.workers; each sheet
// gets its own freshly compiled pipeline because pipelines are single-shot.
func run(ctx context.Context, p config.Pipeline, verbose bool) error {
	inputs, err := sheet.Discover(p.Source.Path)
	if err != nil {
		return err
	}

	// Compile once up front so configuration errors surface before any sheet
	// is read; the per-sheet pipelines reuse the same validated document.
	if _, err := deriver.Compile(p); err != nil {
		return err
	}

	var repo storage.Repository
	if p.Storage.Kind != "" {
		repo, err = storage.New(ctx, storage.Config{
			Kind:  p.Storage.Kind,
			DSN:   p.Storage.DB.DSN,
			Table: p.Storage.DB.Table,
		})
		if err != nil {
			return err
		}
		defer repo.Close()
	}

	workers := p.Runtime.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, input := range inputs {
		input := input
		g.Go(func() error {
			start := time.Now()
			err := deriveSheet(ctx, p, repo, input, verbose)
			metrics.RecordSheet(jobLabel(p, input), input, err, time.Since(start))
			if err != nil {
				return fmt.Errorf("%s: %w", input, err)
			}
			return nil
		})
	}
	return g.Wait()
}

// deriveSheet runs the full read → derive → check → write → archive cycle for
// one input sheet.
func deriveSheet(ctx context.Context, p config.Pipeline, repo storage.Repository, input string, verbose bool) error {
	job := jobLabel(p, input)

	rd := sheet.NewReader(sheet.Options{
		Comma:            delimiterRune(p.Source.Delimiter),
		HeaderMap:        p.Source.HeaderMap,
		CanonicalHeaders: p.Source.CanonicalHeaders,
		TrimSpace:        true,
	})
	rows, skipped, err := rd.ReadFile(input)
	if err != nil {
		return err
	}
	metrics.RecordRows(job, "read", int64(len(rows)))
	metrics.RecordRows(job, "skipped", int64(skipped))
	if verbose {
		log.Printf("%s: read %d rows (%d skipped)", input, len(rows), skipped)
	}

	pipe, err := deriver.Compile(p)
	if err != nil {
		return err
	}
	derived, notes, err := pipe.Run(rows)
	if err != nil {
		return err
	}

	var d events.Diag
	schema.Events().Check(derived, &d)
	notes = append(notes, d.Notes()...)

	var warnings, errors int64
	for _, n := range notes {
		log.Printf("%s: %s: [%s] %s", input, n.Severity, n.Op, n.Message)
		if n.Severity == events.SeverityError {
			errors++
		} else {
			warnings++
		}
	}
	metrics.RecordRows(job, "derived", int64(len(derived)))
	metrics.RecordRows(job, "warnings", warnings)
	metrics.RecordRows(job, "errors", errors)

	cols := outputColumns(p.Output.Columns, derived)
	dest := output.DestPath(p.Output.Path, input)
	w := output.NewWriter(output.Options{NoSort: p.Output.NoSort})
	if err := w.WriteFile(dest, cols, derived); err != nil {
		return err
	}
	if p.Output.Sidecar {
		if err := output.WriteSidecar(output.SidecarPath(dest), cols, derived); err != nil {
			return err
		}
	}
	log.Printf("%s: wrote %d events to %s (%d warnings, %d errors)", input, len(derived), dest, warnings, errors)

	if repo != nil {
		n, err := storage.Archive(ctx, repo, p.Storage.DB.Table, job, input, cols, derived)
		if err != nil {
			return err
		}
		metrics.RecordRows(job, "archived", n)
		if verbose {
			log.Printf("%s: archived %d rows to %s", input, n, p.Storage.DB.Table)
		}
	}
	return nil
}

// jobLabel falls back to the input file name when the config carries no job.
func jobLabel(p config.Pipeline, input string) string {
	if p.Job != "" {
		return p.Job
	}
	return input
}

// outputColumns is the configured projection order minus columns absent from
// the derived table, matching what the projection operator kept.
func outputColumns(cols []string, rows []events.Row) []string {
	if len(rows) == 0 {
		// Nothing survived derivation; still write a header-only table.
		return cols
	}
	out := make([]string, 0, len(cols))
	for _, c := range cols {
		if events.HasColumn(rows, c) {
			out = append(out, c)
		}
	}
	return out
}

// delimiterRune decodes the config delimiter string; "\t" (escaped or
// literal) means tab, empty defers to the file extension.
func delimiterRune(s string) rune {
	switch s {
	case "":
		return 0
	case "\\t", "\t":
		return '\t'
	default:
		return []rune(s)[0]
	}
}
