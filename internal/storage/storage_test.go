package storage

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"bidsevents/internal/events"
)

// fakeRepo records every call so tests can assert on the exact statements and
// batches an archive run produces.
type fakeRepo struct {
	execs   []string
	batches [][][]any
	columns []string
	copyErr error
	closed  bool
}

func (f *fakeRepo) CopyFrom(ctx context.Context, columns []string, rows [][]any) (int64, error) {
	if f.copyErr != nil {
		return 0, f.copyErr
	}
	f.columns = columns
	f.batches = append(f.batches, rows)
	return int64(len(rows)), nil
}

func (f *fakeRepo) Exec(ctx context.Context, sql string) error {
	f.execs = append(f.execs, sql)
	return nil
}

func (f *fakeRepo) Close() { f.closed = true }

func TestRegisterAndNew(t *testing.T) {
	repo := &fakeRepo{}
	Register("fake", func(ctx context.Context, cfg Config) (Repository, error) {
		if cfg.DSN != "dsn" || cfg.Table != "events" {
			return nil, fmt.Errorf("config not forwarded: %+v", cfg)
		}
		return repo, nil
	})

	got, err := New(context.Background(), Config{Kind: "fake", DSN: "dsn", Table: "events"})
	if err != nil {
		t.Fatal(err)
	}
	if got != repo {
		t.Error("New must return the factory's repository")
	}

	found := false
	for _, k := range Kinds() {
		if k == "fake" {
			found = true
		}
	}
	if !found {
		t.Errorf("Kinds() must list registered backends, got %v", Kinds())
	}
}

func TestNewUnknownKind(t *testing.T) {
	_, err := New(context.Background(), Config{Kind: "nope"})
	if err == nil || !strings.Contains(err.Error(), `"nope"`) {
		t.Errorf("unknown kind must name itself in the error, got %v", err)
	}
}

func TestRegisterDuplicatePanics(t *testing.T) {
	Register("dup", func(ctx context.Context, cfg Config) (Repository, error) { return nil, nil })
	defer func() {
		if recover() == nil {
			t.Error("duplicate registration must panic")
		}
	}()
	Register("dup", func(ctx context.Context, cfg Config) (Repository, error) { return nil, nil })
}

func TestArchive(t *testing.T) {
	t.Parallel()

	repo := &fakeRepo{}
	cols := []string{"onset", "duration", "trial_type"}
	rows := []events.Row{
		{"onset": events.Number(1), "duration": events.Number(0.5), "trial_type": events.String("go")},
		{"onset": events.Number(2), "duration": events.Null(), "trial_type": events.String("stop")},
	}

	n, err := Archive(context.Background(), repo, "events", "task-mem", "sub-01.tsv", cols, rows)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("inserted = %d, want 2", n)
	}

	if len(repo.execs) != 1 || !strings.HasPrefix(repo.execs[0], "CREATE TABLE IF NOT EXISTS events") {
		t.Fatalf("table must be ensured first, got %v", repo.execs)
	}
	wantCols := []string{"job", "source_file", "onset", "duration", "trial_type"}
	if fmt.Sprint(repo.columns) != fmt.Sprint(wantCols) {
		t.Errorf("columns = %v, want %v", repo.columns, wantCols)
	}

	if len(repo.batches) != 1 {
		t.Fatalf("want one batch, got %d", len(repo.batches))
	}
	rec := repo.batches[0][1]
	if rec[0] != "task-mem" || rec[1] != "sub-01.tsv" {
		t.Errorf("meta cells = %v, %v", rec[0], rec[1])
	}
	if rec[2] != 2.0 {
		t.Errorf("numeric cell must archive as float64, got %v (%T)", rec[2], rec[2])
	}
	if rec[3] != nil {
		t.Errorf("null cell must archive as SQL NULL, got %v", rec[3])
	}
	if rec[4] != "stop" {
		t.Errorf("string cell = %v", rec[4])
	}
}

func TestArchiveBatches(t *testing.T) {
	t.Parallel()

	repo := &fakeRepo{}
	rows := make([]events.Row, archiveBatchSize+1)
	for i := range rows {
		rows[i] = events.Row{"onset": events.Number(float64(i))}
	}
	n, err := Archive(context.Background(), repo, "events", "j", "s", []string{"onset"}, rows)
	if err != nil {
		t.Fatal(err)
	}
	if n != int64(len(rows)) {
		t.Errorf("inserted = %d, want %d", n, len(rows))
	}
	if len(repo.batches) != 2 {
		t.Fatalf("want 2 batches, got %d", len(repo.batches))
	}
	if len(repo.batches[0]) != archiveBatchSize || len(repo.batches[1]) != 1 {
		t.Errorf("batch sizes = %d, %d", len(repo.batches[0]), len(repo.batches[1]))
	}
}

func TestArchiveCopyError(t *testing.T) {
	t.Parallel()

	repo := &fakeRepo{copyErr: fmt.Errorf("disk full")}
	rows := []events.Row{{"onset": events.Number(1)}}
	if _, err := Archive(context.Background(), repo, "events", "j", "s", []string{"onset"}, rows); err == nil {
		t.Error("CopyFrom failures must surface")
	}
}

func TestCreateTableSQL(t *testing.T) {
	t.Parallel()

	sql := createTableSQL("events", []string{"onset", "duration", "trial_type", `odd"col`})
	for _, want := range []string{
		`"job" TEXT`,
		`"source_file" TEXT`,
		`"onset" DOUBLE PRECISION`,
		`"duration" DOUBLE PRECISION`,
		`"trial_type" TEXT`,
		`"odd""col" TEXT`,
	} {
		if !strings.Contains(sql, want) {
			t.Errorf("DDL missing %s:\n%s", want, sql)
		}
	}
}
