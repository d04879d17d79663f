package main

import (
	"context"
	"log"
	"os"
	"time"

	"csvload/internal/metrics"
	"csvload/internal/metrics/datadog"
)

// setupMetrics installs the selected metrics backend and returns the function
// that flushes and shuts it down. Backend choice: flag, then $METRICS_BACKEND.
func setupMetrics(ctx context.Context, backendName, job, runID string, verbose bool) func() {
	if backendName == "" {
		backendName = os.Getenv("METRICS_BACKEND")
	}

	switch backendName {
	case "datadog":
		extraTags := datadog.ParseTagsCSV(os.Getenv("METRICS_TAGS"))
		b, err := datadog.NewBackend(ctx, datadog.Options{
			JobName:    job,
			RunID:      runID,
			Tags:       extraTags,
			FlushEvery: 60 * time.Second,
		})
		if err != nil {
			log.Printf("metrics: failed to init datadog backend: %v; using nop", err)
			return func() {}
		}
		log.Printf("metrics: backend=%v job_name=%v run_id=%v tags=%v", backendName, job, runID, extraTags)
		metrics.SetBackend(b)

		// Close stops the flush loop, then submits whatever is still buffered.
		return func() {
			if err := b.Close(); err != nil {
				log.Printf("metrics: datadog close/flush error: %v", err)
			}
			metrics.SetBackend(nil)
		}

	case "", "none":
		if verbose {
			log.Printf("metrics: disabled (backend=%q)", backendName)
		}

	default:
		log.Printf("metrics: unknown backend %q; metrics disabled", backendName)
	}
	return func() {}
}
