package metrics

import "time"

// Outcome labels the result of an operation.
type Outcome string

const (
	// OutcomeSuccess marks a completed operation.
	OutcomeSuccess Outcome = "success"
	// OutcomeCached marks a download skipped because the file was present.
	OutcomeCached Outcome = "cached"
	// OutcomeFailure marks a failed operation.
	OutcomeFailure Outcome = "failure"
	// OutcomeReady marks a backend that printed the readiness sentinel.
	OutcomeReady Outcome = "ready"
	// OutcomeExited marks a backend that exited cleanly before readiness.
	OutcomeExited Outcome = "exited"
)

// Collector records provisioning and backend lifecycle metrics.
type Collector interface {
	// DownloadedBytes adds n transferred bytes for a resource.
	DownloadedBytes(resource string, n int64)
	// ResourceProvisioned records the outcome of provisioning one resource.
	ResourceProvisioned(resource string, outcome Outcome)
	// BackendStart records how a backend start attempt settled.
	BackendStart(outcome Outcome)
	// BackendReadiness records the time from spawn to readiness.
	BackendReadiness(d time.Duration)
}

// noopCollector discards everything.
type noopCollector struct{}

func (noopCollector) DownloadedBytes(string, int64) {}
func (noopCollector) ResourceProvisioned(string, Outcome) {}
func (noopCollector) BackendStart(Outcome) {}
func (noopCollector) BackendReadiness(time.Duration) {}

// NewNoop returns a Collector that records nothing.
//
//nolint:ireturn // Callers only need the interface.
func NewNoop() Collector {
	return noopCollector{}
}

// OrNoop returns c, or a no-op collector when c is nil.
//
//nolint:ireturn // Callers only need the interface.
func OrNoop(c Collector) Collector {
	if c == nil {
		return NewNoop()
	}

	return c
}
