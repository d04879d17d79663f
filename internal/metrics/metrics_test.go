package metrics

import (
	"sync"
	"testing"
	"time"
)

type recordingBackend struct {
	mu         sync.Mutex
	counters   map[string]float64
	histograms map[string][]float64
}

func newRecordingBackend() *recordingBackend {
	return &recordingBackend{counters: map[string]float64{}, histograms: map[string][]float64{}}
}

func key(name string, l Labels) string {
	return name + "|" + l["step"] + "|" + l["status"] + "|" + l["kind"]
}

func (r *recordingBackend) IncCounter(name string, delta float64, l Labels) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counters[key(name, l)] += delta
}

func (r *recordingBackend) ObserveHistogram(name string, v float64, l Labels) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.histograms[key(name, l)] = append(r.histograms[key(name, l)], v)
}

func TestDefaultBackendIsNop(t *testing.T) {
	SetBackend(nil)
	IncCounter(StepTotal, 1, nil)
	ObserveHistogram(StepDurationSeconds, 1, nil)
	RecordRows("parsed", 3)
	if _, ok := current().(nopBackend); !ok {
		t.Fatalf("backend = %T, want nopBackend", current())
	}
}

func TestRecordStepAndRows(t *testing.T) {
	b := newRecordingBackend()
	SetBackend(b)
	t.Cleanup(func() { SetBackend(nil) })

	RecordStep("parse", "ok", 1500*time.Millisecond)
	RecordStep("parse", "ok", 500*time.Millisecond)
	RecordRows("written", 42)

	if got := b.counters[key(StepTotal, Labels{"step": "parse", "status": "ok"})]; got != 2 {
		t.Fatalf("step counter = %v", got)
	}
	samples := b.histograms[key(StepDurationSeconds, Labels{"step": "parse", "status": "ok"})]
	if len(samples) != 2 || samples[0] != 1.5 || samples[1] != 0.5 {
		t.Fatalf("duration samples = %v", samples)
	}
	if got := b.counters[key(RowsTotal, Labels{"kind": "written"})]; got != 42 {
		t.Fatalf("rows counter = %v", got)
	}
}

func TestSetBackendNilRestoresNop(t *testing.T) {
	b := newRecordingBackend()
	SetBackend(b)
	SetBackend(nil)

	RecordRows("written", 5)
	if len(b.counters) != 0 {
		t.Fatalf("recording backend still receives updates: %v", b.counters)
	}
}
