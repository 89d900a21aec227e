// Package metrics keeps process-local request counters.
package metrics

import "sync/atomic"

type Metrics struct {
	requests       atomic.Uint64
	errors         atomic.Uint64
	timeouts       atomic.Uint64
	upstreamErrors atomic.Uint64
}

// Snapshot is a point-in-time copy of the counters.
type Snapshot struct {
	TotalRequests  uint64 `json:"total_requests"`
	TotalErrors    uint64 `json:"total_errors"`
	Timeouts       uint64 `json:"timeouts"`
	UpstreamErrors uint64 `json:"upstream_errors"`
}

func New() *Metrics {
	return &Metrics{}
}

func (m *Metrics) IncrementRequest() {
	m.requests.Add(1)
}

func (m *Metrics) IncrementError() {
	m.errors.Add(1)
}

func (m *Metrics) IncrementTimeout() {
	m.timeouts.Add(1)
}

// IncrementUpstreamError counts non-2xx upstream replies. They also count as errors.
func (m *Metrics) IncrementUpstreamError() {
	m.upstreamErrors.Add(1)
	m.errors.Add(1)
}

func (m *Metrics) Snapshot() Snapshot {
	return Snapshot{
		TotalRequests:  m.requests.Load(),
		TotalErrors:    m.errors.Load(),
		Timeouts:       m.timeouts.Load(),
		UpstreamErrors: m.upstreamErrors.Load(),
	}
}
