package datadog

import (
	"context"
	"errors"
	"net/http"
	"reflect"
	"runtime"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/DataDog/datadog-api-client-go/v2/api/datadogV2"

	"csvload/internal/metrics"
)

// fakeSubmitter captures payloads submitted by Backend.Flush().
type fakeSubmitter struct {
	mu       sync.Mutex
	payloads []datadogV2.MetricPayload
	err      error
}

func (f *fakeSubmitter) SubmitMetrics(ctx context.Context, body datadogV2.MetricPayload, params ...datadogV2.SubmitMetricsOptionalParameters) (datadogV2.IntakePayloadAccepted, *http.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payloads = append(f.payloads, body)
	return datadogV2.IntakePayloadAccepted{}, nil, f.err
}

func (f *fakeSubmitter) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.payloads)
}

func (f *fakeSubmitter) last() (datadogV2.MetricPayload, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.payloads) == 0 {
		return datadogV2.MetricPayload{}, false
	}
	return f.payloads[len(f.payloads)-1], true
}

// quietTicker keeps the background loop from firing during a test.
func quietTicker(time.Duration) *time.Ticker { return time.NewTicker(24 * time.Hour) }

func newTestBackend(t *testing.T, fs *fakeSubmitter, opts Options) *Backend {
	t.Helper()
	opts.submitter = fs
	if opts.now == nil {
		opts.now = func() time.Time { return time.Unix(1000, 0) }
	}
	if opts.newTicker == nil {
		opts.newTicker = quietTicker
	}
	b, err := NewBackend(context.Background(), opts)
	if err != nil {
		t.Fatalf("NewBackend() err=%v", err)
	}
	return b
}

func contains[T comparable](xs []T, v T) bool {
	for _, x := range xs {
		if x == v {
			return true
		}
	}
	return false
}

func TestResolveEnvTag(t *testing.T) {
	tests := []struct {
		name string
		env  string
		dd   string
		want string
	}{
		{name: "ENV_wins", env: "prod", dd: "stage", want: "env:prod"},
		{name: "DD_ENV_used_when_ENV_empty", env: "", dd: "stage", want: "env:stage"},
		{name: "whitespace_ignored", env: "   ", dd: "\n\t", want: "env:unknown"},
		{name: "default_unknown", env: "", dd: "", want: "env:unknown"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("ENV", tc.env)
			t.Setenv("DD_ENV", tc.dd)
			if got := resolveEnvTag(); got != tc.want {
				t.Fatalf("resolveEnvTag()=%q, want %q", got, tc.want)
			}
		})
	}
}

func TestStepStatusKeyRoundTrip(t *testing.T) {
	t.Parallel()

	step, status := splitStepStatusKey(stepStatusKey("insert", "error"))
	if step != "insert" || status != "error" {
		t.Fatalf("round trip = %q %q", step, status)
	}
	step, status = splitStepStatusKey("bare")
	if step != "bare" || status != "unknown" {
		t.Fatalf("bare key = %q %q", step, status)
	}
}

func TestPercentileNearestRank(t *testing.T) {
	t.Parallel()

	s := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	tests := []struct {
		p    float64
		want float64
	}{
		{p: 0, want: 1},
		{p: 0.5, want: 6},
		{p: 0.9, want: 9},
		{p: 1, want: 10},
	}
	for _, tc := range tests {
		if got := percentileNearestRank(s, tc.p); got != tc.want {
			t.Fatalf("p%v = %v, want %v", tc.p, got, tc.want)
		}
	}
	if got := percentileNearestRank(nil, 0.5); got != 0 {
		t.Fatalf("empty = %v", got)
	}
}

func TestAppendPercentiles_DoesNotMutateSamples(t *testing.T) {
	t.Parallel()

	samples := []float64{3, 1, 2}
	series := appendPercentiles(nil, "csvload.step.duration_seconds", samples, []string{"step:parse"}, 10)
	if len(series) != 6 {
		t.Fatalf("got %d series, want 6", len(series))
	}
	if !reflect.DeepEqual(samples, []float64{3, 1, 2}) {
		t.Fatalf("samples mutated: %v", samples)
	}
	maxSeries := series[4]
	if maxSeries.Metric != "csvload.step.duration_seconds.max" || *maxSeries.Points[0].Value != 3 {
		t.Fatalf("unexpected max series: %+v", maxSeries)
	}
	if got := appendPercentiles(nil, "x", nil, nil, 0); len(got) != 0 {
		t.Fatalf("empty samples produced %d series", len(got))
	}
}

func TestNewBackend_Defaults(t *testing.T) {
	fs := &fakeSubmitter{}
	b := newTestBackend(t, fs, Options{Tags: []string{"service:spotify"}, RunID: "abc"})
	defer func() { _ = b.Close() }()

	for _, want := range []string{"job:csvload", "service:spotify", "run_id:abc"} {
		if !contains(b.baseTags, want) {
			t.Fatalf("baseTags missing %s: %v", want, b.baseTags)
		}
	}
	if b.flushEvery != 60*time.Second {
		t.Fatalf("flushEvery=%s, want 60s", b.flushEvery)
	}
}

func TestFlush_SubmitsAndResets(t *testing.T) {
	fs := &fakeSubmitter{}
	b := newTestBackend(t, fs, Options{JobName: "spotify_artists"})
	defer func() { _ = b.Close() }()

	b.IncCounter(metrics.StepTotal, 1, metrics.Labels{"step": "parse", "status": "ok"})
	b.IncCounter(metrics.RowsTotal, 3, metrics.Labels{"kind": "written"})
	b.ObserveHistogram(metrics.StepDurationSeconds, 0.5, metrics.Labels{"step": "parse", "status": "ok"})

	if err := b.Flush(); err != nil {
		t.Fatalf("Flush() err=%v", err)
	}
	if fs.count() != 1 {
		t.Fatalf("submit calls=%d, want 1", fs.count())
	}
	if len(b.stepCounts) != 0 || len(b.rowCounts) != 0 || len(b.durationSamples) != 0 {
		t.Fatalf("buffers not reset after Flush")
	}

	payload, _ := fs.last()
	var names []string
	for _, s := range payload.Series {
		names = append(names, s.Metric)
		if !contains(s.Tags, "job:spotify_artists") {
			t.Fatalf("series %s missing job tag: %v", s.Metric, s.Tags)
		}
		if *s.Points[0].Timestamp != 1000 {
			t.Fatalf("series %s timestamp = %d", s.Metric, *s.Points[0].Timestamp)
		}
	}
	sort.Strings(names)
	for _, w := range []string{
		"csvload.rows.total",
		"csvload.step.total",
		"csvload.step.duration_seconds.p50",
		"csvload.step.duration_seconds.samples",
	} {
		if !contains(names, w) {
			t.Fatalf("payload missing metric %q; got=%v", w, names)
		}
	}
}

func TestFlush_NoDataDoesNotSubmit(t *testing.T) {
	fs := &fakeSubmitter{}
	b := newTestBackend(t, fs, Options{})
	defer func() { _ = b.Close() }()

	if err := b.Flush(); err != nil {
		t.Fatalf("Flush() err=%v", err)
	}
	if fs.count() != 0 {
		t.Fatalf("unexpected submission count=%d", fs.count())
	}
}

func TestFlush_ReturnsSubmitErrorAndStillResets(t *testing.T) {
	fs := &fakeSubmitter{err: errors.New("403 forbidden")}
	b := newTestBackend(t, fs, Options{})
	defer func() { fs.err = nil; _ = b.Close() }()

	b.IncCounter(metrics.RowsTotal, 1, metrics.Labels{"kind": "parsed"})
	if err := b.Flush(); err == nil {
		t.Fatalf("expected submit error")
	}
	if len(b.rowCounts) != 0 {
		t.Fatalf("buffers not reset after failed flush")
	}
}

func TestLoopAndClose(t *testing.T) {
	fs := &fakeSubmitter{}
	b := newTestBackend(t, fs, Options{
		FlushEvery: 5 * time.Millisecond,
		newTicker:  time.NewTicker,
	})

	b.IncCounter(metrics.RowsTotal, 1, metrics.Labels{"kind": "parsed"})

	deadline := time.Now().Add(250 * time.Millisecond)
	for time.Now().Before(deadline) && fs.count() < 1 {
		time.Sleep(2 * time.Millisecond)
	}
	if fs.count() < 1 {
		_ = b.Close()
		t.Fatalf("expected at least one background submission")
	}

	b.IncCounter(metrics.RowsTotal, 1, metrics.Labels{"kind": "written"})
	if err := b.Close(); err != nil {
		t.Fatalf("Close() err=%v", err)
	}
	if fs.count() < 2 {
		t.Fatalf("expected final flush on Close; got %d submissions", fs.count())
	}
	// a second Close must not panic
	if err := b.Close(); err != nil {
		t.Fatalf("second Close() err=%v", err)
	}
}

func TestBackend_ConcurrentAccess(t *testing.T) {
	fs := &fakeSubmitter{}
	b := newTestBackend(t, fs, Options{})
	defer func() { _ = b.Close() }()

	workers := runtime.GOMAXPROCS(0) * 4
	iters := 1000

	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < iters; j++ {
				b.IncCounter(metrics.StepTotal, 1, metrics.Labels{"step": "insert", "status": "ok"})
				b.IncCounter(metrics.RowsTotal, 1, metrics.Labels{"kind": "written"})
				b.ObserveHistogram(metrics.StepDurationSeconds, 0.01, metrics.Labels{"step": "insert", "status": "ok"})
			}
		}()
	}
	wg.Wait()

	if got := b.rowCounts["written"]; got != float64(workers*iters) {
		t.Fatalf("rows=%v, want %d", got, workers*iters)
	}
	if err := b.Flush(); err != nil {
		t.Fatalf("Flush() err=%v", err)
	}
}

func TestIgnoredInputs(t *testing.T) {
	fs := &fakeSubmitter{}
	b := newTestBackend(t, fs, Options{})
	defer func() { _ = b.Close() }()

	b.IncCounter(metrics.RowsTotal, 0, metrics.Labels{"kind": "written"})
	b.IncCounter(metrics.RowsTotal, 5, metrics.Labels{})
	b.IncCounter("unknown_total", 1, nil)
	b.ObserveHistogram(metrics.StepDurationSeconds, -1, nil)
	b.ObserveHistogram("unknown_seconds", 1, nil)

	if !b.snapshotAndReset().isEmpty() {
		t.Fatalf("expected ignored inputs to leave buffers empty")
	}
}

func TestParseTagsCSV(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want []string
	}{
		{in: "", want: nil},
		{in: "env:prod", want: []string{"env:prod"}},
		{in: " env:prod , ,service:spotify ", want: []string{"env:prod", "service:spotify"}},
	}
	for _, tc := range tests {
		if got := ParseTagsCSV(tc.in); !reflect.DeepEqual(got, tc.want) {
			t.Fatalf("ParseTagsCSV(%q)=%v, want %v", tc.in, got, tc.want)
		}
	}
}
