// Package sheet implements a streaming reader for wide-format behavioral
// spreadsheets (TSV/CSV). It avoids whole-file buffering, soft-skips malformed
// rows with a counter instead of aborting, and converts every cell into the
// tagged value model used by the derivation engine.
package sheet

import (
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"bidsevents/internal/events"
)

// Options configures the sheet reader. All fields are optional; sensible
// defaults are applied when a field is zero.
type Options struct {
	// Comma specifies the field delimiter. When zero it is chosen by file
	// extension: tab for .tsv, comma otherwise.
	Comma rune

	// HeaderMap maps source header names to canonical column names. Applied
	// before CanonicalHeaders.
	HeaderMap map[string]string

	// CanonicalHeaders lowercases headers, folds runs of whitespace to a
	// single underscore, and strips diacritics. Off by default because
	// derivation expressions reference original header names verbatim.
	CanonicalHeaders bool

	// TrimSpace trims leading/trailing spaces from each cell before value
	// parsing.
	TrimSpace bool
}

// Reader parses sheets according to Options. It is safe to reuse across
// inputs, but Reader itself is not concurrency-safe.
type Reader struct{ opt Options }

// NewReader constructs a Reader with the provided Options.
func NewReader(opt Options) *Reader { return &Reader{opt: opt} }

// utf8BOM is stripped from the first header cell if present.
const utf8BOM = "\ufeff"

// skipLogLimit caps per-row skip logging so a badly broken sheet cannot flood
// the log; the returned counter is always exact.
const skipLogLimit = 400

// ReadFile opens path and reads it with a delimiter chosen from the extension
// unless Options.Comma is set.
func (rd *Reader) ReadFile(path string) ([]events.Row, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("open sheet: %w", err)
	}
	defer f.Close()

	comma := rd.opt.Comma
	if comma == 0 {
		comma = DelimiterFor(path)
	}
	return rd.read(f, comma)
}

// Read consumes records from r and returns the parsed rows along with the
// number of rows skipped for parse errors or field-count mismatches. The
// first record is always treated as the header row.
func (rd *Reader) Read(r io.Reader) ([]events.Row, int, error) {
	comma := rd.opt.Comma
	if comma == 0 {
		comma = ','
	}
	return rd.read(r, comma)
}

func (rd *Reader) read(r io.Reader, comma rune) ([]events.Row, int, error) {
	cr := csv.NewReader(r)
	cr.Comma = comma
	cr.FieldsPerRecord = -1

	h, err := cr.Read()
	if err != nil {
		return nil, 0, fmt.Errorf("read sheet header: %w", err)
	}
	headers := rd.normalizeHeaders(h)

	var (
		out     []events.Row
		skipped int
	)
	for line := 1; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			if skipped < skipLogLimit {
				log.Printf("skipping row %d: %v", line, err)
			}
			skipped++
			continue
		}
		if len(rec) != len(headers) {
			if skipped < skipLogLimit {
				log.Printf("skipping row %d: incorrect number of fields (expected %d, got %d)", line, len(headers), len(rec))
			}
			skipped++
			continue
		}

		row := make(events.Row, len(rec))
		for i, cell := range rec {
			if rd.opt.TrimSpace {
				cell = strings.TrimSpace(cell)
			}
			row[keyFor(i, headers)] = events.Parse(cell)
		}
		out = append(out, row)
	}
	return out, skipped, nil
}

// keyFor returns the column key for index idx, using headers when available,
// otherwise synthesizing a "col_N" name.
func keyFor(idx int, headers []string) string {
	if idx < len(headers) && headers[idx] != "" {
		return headers[idx]
	}
	return fmt.Sprintf("col_%d", idx)
}

// normalizeHeaders produces the column names rows are keyed by. HeaderMap
// renames take precedence; canonicalization, when enabled, applies to the
// rest. A UTF-8 BOM on the first cell is always stripped.
func (rd *Reader) normalizeHeaders(h []string) []string {
	res := make([]string, len(h))
	for i, col := range h {
		c := strings.TrimSpace(col)
		if i == 0 {
			c = strings.TrimPrefix(c, utf8BOM)
		}
		if rd.opt.HeaderMap != nil {
			if m, ok := rd.opt.HeaderMap[c]; ok {
				res[i] = m
				continue
			}
		}
		if rd.opt.CanonicalHeaders {
			c = CanonicalHeader(c)
		}
		res[i] = c
	}
	return res
}

// DelimiterFor picks the field separator from a file extension: tab for .tsv,
// comma for everything else.
func DelimiterFor(path string) rune {
	if strings.EqualFold(filepath.Ext(path), ".tsv") {
		return '\t'
	}
	return ','
}

// Discover expands a path that may be a glob into a sorted list of sheet
// paths. A non-glob path is returned as-is so a missing file surfaces as an
// open error, not an empty run.
func Discover(pattern string) ([]string, error) {
	if !strings.ContainsAny(pattern, "*?[") {
		return []string{pattern}, nil
	}
	paths, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("expand sheet glob %q: %w", pattern, err)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("sheet glob %q matched no files", pattern)
	}
	sort.Strings(paths)
	return paths, nil
}
