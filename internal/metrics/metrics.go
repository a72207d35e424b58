// Package metrics records operational metrics for validation runs behind a
// small pluggable Backend.
//
// The default backend is a no-op, so instrumented code may always call the
// Record helpers. Concrete systems live in subpackages (prompush, datadog)
// and are installed once at startup with SetBackend.
package metrics

import "time"

// Metric names shared by every backend.
const (
	StepTotal           = "obsmask_step_total"
	StepDurationSeconds = "obsmask_step_duration_seconds"
	ValuesTotal         = "obsmask_values_total"
	ChunksTotal         = "obsmask_chunks_total"
)

// Labels are string key/value pairs attached to a metric.
type Labels map[string]string

// Backend is the minimal interface for metrics backends.
type Backend interface {
	// IncCounter increments a counter by delta.
	IncCounter(name string, delta float64, labels Labels)
	// ObserveHistogram records a value in a duration style metric.
	ObserveHistogram(name string, value float64, labels Labels)
	// Flush pushes or flushes metrics, if the backend needs it.
	Flush() error
}

type nopBackend struct{}

func (nopBackend) IncCounter(string, float64, Labels)       {}
func (nopBackend) ObserveHistogram(string, float64, Labels) {}
func (nopBackend) Flush() error                             { return nil }

var backend Backend = nopBackend{}

// SetBackend installs a concrete backend. Passing nil keeps the existing one.
func SetBackend(b Backend) {
	if b == nil {
		return
	}
	backend = b
}

// Flush delegates to the current backend.
func Flush() error {
	return backend.Flush()
}

// RecordStep counts one execution of a run step and records its latency.
func RecordStep(job, step string, err error, d time.Duration) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	lbls := Labels{"job": job, "step": step, "status": status}
	backend.IncCounter(StepTotal, 1, lbls)
	backend.ObserveHistogram(StepDurationSeconds, d.Seconds(), lbls)
}

// RecordValues counts mask cells of one kind: "valid", "invalid" or "unset".
func RecordValues(job, kind string, delta int64) {
	if delta <= 0 {
		return
	}
	backend.IncCounter(ValuesTotal, float64(delta), Labels{"job": job, "kind": kind})
}

// RecordChunks counts validated chunks.
func RecordChunks(job string, delta int64) {
	if delta <= 0 {
		return
	}
	backend.IncCounter(ChunksTotal, float64(delta), Labels{"job": job})
}
