// Package prompush implements a Prometheus Pushgateway backend for the
// metrics package.
//
// Derivation runs are short-lived batch jobs, so metrics are pushed to a
// Pushgateway at the end of a run rather than exposed on a scrape endpoint.
// All Prometheus-specific dependencies live here so the rest of the project
// stays decoupled from the metrics system.
package prompush

import (
	"fmt"

	"bidsevents/internal/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Backend is a Prometheus Pushgateway metrics backend.
type Backend struct {
	gatewayURL string // e.g. http://pushgateway:9091
	jobName    string // Pushgateway "job" group
	reg        *prometheus.Registry

	sheetCounter  *prometheus.CounterVec // "bidsevents_sheet_total"
	sheetDuration *prometheus.SummaryVec // "bidsevents_sheet_duration_seconds"
	rowCounter    *prometheus.CounterVec // "bidsevents_rows_total"
}

// NewBackend constructs a Prometheus Pushgateway backend.
// jobName: the Pushgateway "job" name (usually the pipeline job label).
// gatewayURL: base URL of the Pushgateway server.
func NewBackend(jobName, gatewayURL string) (*Backend, error) {
	if gatewayURL == "" {
		return nil, fmt.Errorf("prompush: gateway URL is required")
	}
	if jobName == "" {
		jobName = "bidsevents"
	}

	reg := prometheus.NewRegistry()

	sheetCounter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bidsevents_sheet_total",
			Help: "Total number of sheet derivations, partitioned by sheet and status.",
		},
		[]string{"sheet", "status"},
	)
	sheetDuration := prometheus.NewSummaryVec(
		prometheus.SummaryOpts{
			Name:       "bidsevents_sheet_duration_seconds",
			Help:       "Duration of sheet derivations in seconds, partitioned by sheet and status.",
			Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
		},
		[]string{"sheet", "status"},
	)
	rowCounter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bidsevents_rows_total",
			Help: "Row-level counts per kind (read, skipped, derived, warnings, errors, archived).",
		},
		[]string{"kind"},
	)

	if err := reg.Register(sheetCounter); err != nil {
		return nil, fmt.Errorf("prompush: register sheet counter: %w", err)
	}
	if err := reg.Register(sheetDuration); err != nil {
		return nil, fmt.Errorf("prompush: register sheet summary: %w", err)
	}
	if err := reg.Register(rowCounter); err != nil {
		return nil, fmt.Errorf("prompush: register row counter: %w", err)
	}

	return &Backend{
		gatewayURL:    gatewayURL,
		jobName:       jobName,
		reg:           reg,
		sheetCounter:  sheetCounter,
		sheetDuration: sheetDuration,
		rowCounter:    rowCounter,
	}, nil
}

func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	switch name {
	case "bidsevents_sheet_total":
		if b.sheetCounter == nil {
			return
		}
		b.sheetCounter.WithLabelValues(labels["sheet"], labels["status"]).Add(delta)

	case "bidsevents_rows_total":
		if b.rowCounter == nil {
			return
		}
		b.rowCounter.WithLabelValues(labels["kind"]).Add(delta)

	default:
		// unknown metric name: ignore
	}
}

func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	if name != "bidsevents_sheet_duration_seconds" || b.sheetDuration == nil {
		return
	}
	b.sheetDuration.WithLabelValues(labels["sheet"], labels["status"]).Observe(value)
}

// Flush pushes the current registry to the Pushgateway.
func (b *Backend) Flush() error {
	return push.New(b.gatewayURL, b.jobName).
		Gatherer(b.reg).
		Push()
}
