package metrics

import (
	"errors"
	"testing"
	"time"
)

type recordedMetric struct {
	name   string
	value  float64
	labels Labels
}

type captureBackend struct {
	counters   []recordedMetric
	histograms []recordedMetric
	flushed    int
}

func (c *captureBackend) IncCounter(name string, delta float64, labels Labels) {
	c.counters = append(c.counters, recordedMetric{name, delta, labels})
}

func (c *captureBackend) ObserveHistogram(name string, value float64, labels Labels) {
	c.histograms = append(c.histograms, recordedMetric{name, value, labels})
}

func (c *captureBackend) Flush() error { return nil }

func withCapture(t *testing.T) *captureBackend {
	t.Helper()
	c := &captureBackend{}
	SetBackend(c)
	t.Cleanup(func() { SetBackend(nopBackend{}) })
	return c
}

func TestRecordSheet(t *testing.T) {
	c := withCapture(t)

	RecordSheet("task-mem", "sub-01.tsv", nil, 250*time.Millisecond)
	RecordSheet("task-mem", "sub-02.tsv", errors.New("bad sheet"), time.Second)

	if len(c.counters) != 2 || len(c.histograms) != 2 {
		t.Fatalf("want 2 counters and 2 observations, got %d, %d", len(c.counters), len(c.histograms))
	}
	if c.counters[0].name != "bidsevents_sheet_total" || c.counters[0].labels["status"] != "success" {
		t.Errorf("first sheet: %+v", c.counters[0])
	}
	if c.counters[1].labels["status"] != "failure" {
		t.Errorf("errored sheet must record status=failure, got %+v", c.counters[1])
	}
	if c.histograms[0].name != "bidsevents_sheet_duration_seconds" || c.histograms[0].value != 0.25 {
		t.Errorf("duration observation: %+v", c.histograms[0])
	}
}

func TestRecordRows(t *testing.T) {
	c := withCapture(t)

	RecordRows("task-mem", "derived", 42)
	RecordRows("task-mem", "skipped", 0)
	RecordRows("task-mem", "errors", -1)

	if len(c.counters) != 1 {
		t.Fatalf("zero and negative deltas must be skipped, got %+v", c.counters)
	}
	m := c.counters[0]
	if m.name != "bidsevents_rows_total" || m.value != 42 || m.labels["kind"] != "derived" {
		t.Errorf("row counter: %+v", m)
	}
}

func TestSetBackendNilKeepsExisting(t *testing.T) {
	c := withCapture(t)

	SetBackend(nil)
	RecordRows("j", "read", 1)
	if len(c.counters) != 1 {
		t.Error("SetBackend(nil) must keep the installed backend")
	}
}

func TestNopBackendFlush(t *testing.T) {
	SetBackend(nopBackend{})
	if err := Flush(); err != nil {
		t.Errorf("no-op flush must not error, got %v", err)
	}
}
