// Package metrics is the backend-neutral metrics facade used by the loader.
//
// Code records through the package-level helpers; cmd/csvload installs a
// concrete Backend (e.g. Datadog) at startup and owns its shutdown. Until
// then every call is a no-op.
package metrics

import (
	"sync"
	"time"
)

// Metric names understood by backends.
const (
	StepTotal           = "csvload_step_total"
	StepDurationSeconds = "csvload_step_duration_seconds"
	RowsTotal           = "csvload_rows_total"
)

// Labels are metric dimensions, e.g. {"step": "parse", "status": "ok"}.
type Labels map[string]string

// Backend receives metric updates. Implementations must be safe for
// concurrent use.
type Backend interface {
	IncCounter(name string, delta float64, labels Labels)
	ObserveHistogram(name string, value float64, labels Labels)
}

type nopBackend struct{}

func (nopBackend) IncCounter(string, float64, Labels)       {}
func (nopBackend) ObserveHistogram(string, float64, Labels) {}

var (
	mu      sync.RWMutex
	backend Backend = nopBackend{}
)

// SetBackend installs b. A nil b restores the no-op backend.
func SetBackend(b Backend) {
	mu.Lock()
	defer mu.Unlock()
	if b == nil {
		b = nopBackend{}
	}
	backend = b
}

func current() Backend {
	mu.RLock()
	defer mu.RUnlock()
	return backend
}

func IncCounter(name string, delta float64, labels Labels) {
	current().IncCounter(name, delta, labels)
}

func ObserveHistogram(name string, value float64, labels Labels) {
	current().ObserveHistogram(name, value, labels)
}

// RecordStep counts one execution of step and observes its duration.
// status is "ok" or "error".
func RecordStep(step, status string, d time.Duration) {
	l := Labels{"step": step, "status": status}
	IncCounter(StepTotal, 1, l)
	ObserveHistogram(StepDurationSeconds, d.Seconds(), l)
}

// RecordRows adds n rows of the given kind ("parsed" or "written").
func RecordRows(kind string, n int64) {
	IncCounter(RowsTotal, float64(n), Labels{"kind": kind})
}
