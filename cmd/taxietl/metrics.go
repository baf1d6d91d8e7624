package main

import (
	"log"

	"taxietl/internal/config"
	"taxietl/internal/metrics"
	"taxietl/internal/metrics/datadog"
	"taxietl/internal/metrics/prompush"
)

// setupMetrics installs the configured metrics backend and returns the
// function that flushes it at the end of the run. Init failures leave the
// nop backend in place.
func setupMetrics(m config.Metrics, job, runID string, verbose bool) func() {
	flush := func() {
		if err := metrics.Flush(); err != nil {
			log.Printf("metrics: flush error: %v", err)
		}
		metrics.Reset()
	}

	switch m.Backend {
	case "prom":
		url := m.PushgatewayURL
		b, err := prompush.NewBackend(job, url, map[string]string{"run_id": runID})
		if err != nil {
			log.Printf("metrics: failed to init prom push backend: %v; using nop", err)
			return func() {}
		}
		if verbose {
			log.Printf("metrics: url=%v, backend=prom, job_name=%v", url, job)
		}
		metrics.SetBackend(b)
		return flush

	case "datadog":
		b, err := datadog.NewBackend(datadog.Config{
			Addr:       m.StatsdAddr,
			GlobalTags: []string{"job:" + job, "run_id:" + runID},
		})
		if err != nil {
			log.Printf("metrics: failed to init datadog backend: %v; using nop", err)
			return func() {}
		}
		if verbose {
			log.Printf("metrics: addr=%v, backend=datadog, job_name=%v", m.StatsdAddr, job)
		}
		metrics.SetBackend(b)
		return flush

	case "", "none":
		if verbose {
			log.Printf("metrics: disabled (backend=%q)", m.Backend)
		}
		return func() {}

	default:
		log.Printf("metrics: unknown backend %q; metrics disabled", m.Backend)
		return func() {}
	}
}
