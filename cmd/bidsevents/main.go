package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"bidsevents/internal/config"
	"bidsevents/internal/deriver"
	"bidsevents/internal/metrics"
	"bidsevents/internal/metrics/prompush"

	// register all archive backends with the storage factory.
	// config selects which to use but we build in support for all of them.
	_ "bidsevents/internal/storage/all"
)

// deriveTokens collects repeated -derive flags.
type deriveTokens []string

func (d *deriveTokens) String() string { return strings.Join(*d, "; ") }
func (d *deriveTokens) Set(s string) error {
	*d = append(*d, s)
	return nil
}

// main is the entry point for the bidsevents binary. It loads the pipeline
// config (or builds one from -derive tokens), optionally initializes a
// metrics backend, and executes the run.
func main() {
	var (
		cfgPath           string
		inputPath         string
		outPath           string
		metricsBackendFlg string
		pushGatewayURLFlg string
		validate          bool
		tokens            deriveTokens
	)

	flag.StringVar(&cfgPath, "config", "", "pipeline config path (JSON or YAML)")
	flag.StringVar(&inputPath, "input", "", "input sheet path or glob (overrides source.path)")
	flag.StringVar(&outPath, "out", "", "events.tsv destination (overrides output.path; {input} expands)")
	flag.StringVar(&metricsBackendFlg, "metrics-backend", "none", "metrics backend to use (pushgateway, none)")
	flag.StringVar(&pushGatewayURLFlg, "pushgateway-url", "", "Pushgateway base URL (overrides env PUSHGATEWAY_URL)")
	flag.BoolVar(&validate, "validate", false, "validate the configuration and exit")
	flag.Var(&tokens, "derive", "inline derivation token stage:key=value,... (repeatable; alternative to a config derive block)")
	verbose := flag.Bool("v", false, "enable verbose logs")

	flag.Parse()

	var p config.Pipeline
	if cfgPath != "" {
		var err error
		p, err = config.Load(cfgPath)
		if err != nil {
			fatalf("%v", err)
		}
	}
	if len(tokens) > 0 {
		d, err := deriver.ParseFlagTokens(tokens)
		if err != nil {
			fatalf("%v", err)
		}
		p.Derive = d
	}
	if inputPath != "" {
		p.Source.Path = inputPath
	}
	if outPath != "" {
		p.Output.Path = outPath
	}
	if len(p.Output.Columns) == 0 {
		p.Output.Columns = []string{"onset", "duration", "trial_type"}
	}

	issues := config.ValidatePipeline(p)
	hasError := false
	for _, iss := range issues {
		fmt.Fprintf(os.Stderr, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
		if iss.Severity == config.SeverityError {
			hasError = true
		}
	}
	if hasError {
		log.Printf("configuration is invalid: %v", cfgPath)
		os.Exit(1)
	}
	if validate {
		log.Printf("configuration is valid: %v", cfgPath)
		os.Exit(0)
	}

	// Decide metrics backend: flag → env → default.
	backendName := metricsBackendFlg
	if backendName == "" {
		backendName = os.Getenv("METRICS_BACKEND")
	}
	switch backendName {
	case "pushgateway":
		gwURL := pushGatewayURLFlg
		if gwURL == "" {
			gwURL = os.Getenv("PUSHGATEWAY_URL")
		}
		if gwURL == "" {
			gwURL = "http://localhost:9091"
		}

		jobName := p.Job
		if jobName == "" {
			jobName = "bidsevents"
		}

		b, err := prompush.NewBackend(jobName, gwURL)
		if err != nil {
			log.Printf("metrics: failed to init prom push backend: %v; using nop", err)
		} else {
			log.Printf("metrics: url=%v, backend=%v, job_name=%v", gwURL, backendName, jobName)
			metrics.SetBackend(b)
			defer func() {
				if err := metrics.Flush(); err != nil {
					log.Printf("metrics: flush error: %v", err)
				}
			}()
		}

	case "", "none":
		// metrics disabled; nop backend remains
		if *verbose {
			log.Printf("metrics: disabled (backend=%q)", backendName)
		}

	default:
		log.Printf("metrics: unknown backend %q; metrics disabled", backendName)
	}

	ctx := context.Background()
	start := time.Now()

	if *verbose {
		log.Printf("pipeline: source=%s storage=%s table=%s",
			p.Source.Path, p.Storage.Kind, p.Storage.DB.Table)
	}

	if err := run(ctx, p, *verbose); err != nil {
		log.Fatalf("%v", err)
	}

	if *verbose {
		log.Printf("completed in %s", time.Since(start).Truncate(time.Millisecond))
	}
}

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}
