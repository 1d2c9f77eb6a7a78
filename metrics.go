package siteAuth

import (
	"sync/atomic"
	"time"
)

// MetricID identifies one engine counter.
type MetricID uint16

const (
	MetricLoginSuccess MetricID = iota
	MetricLoginTrusted
	MetricLoginFailure
	MetricLoginInactive
	MetricLoginRateLimited
	MetricSecondFactorIssued
	MetricSecondFactorSuccess
	MetricSecondFactorFailure
	MetricSecondFactorExpired
	MetricEmailSendFailure
	MetricDeviceRemembered
	MetricDeviceRejected
	MetricDeviceUAMismatch
	MetricDeviceIPMismatch
	MetricDevicesRevoked
	MetricRefreshSuccess
	MetricRefreshFailure
	MetricRefreshRevoked
	MetricRefreshReuseDetected
	MetricLogout
	MetricSessionsRevoked
	MetricAccountCreated
	MetricAccountActivated
	MetricPasswordChanged
	MetricPasswordResetRequest
	MetricPasswordResetConfirm
	MetricPasswordRehashed
	MetricValidateLatency
	metricIDCount
)

// latencyBounds are the inclusive upper bounds of the validation latency
// buckets. A final bucket catches everything slower.
var latencyBounds = [...]time.Duration{
	5 * time.Millisecond,
	10 * time.Millisecond,
	25 * time.Millisecond,
	50 * time.Millisecond,
	100 * time.Millisecond,
	250 * time.Millisecond,
	500 * time.Millisecond,
}

const histBucketCount = len(latencyBounds) + 1

// counterSlot is padded to a cache line so hot counters do not share one.
type counterSlot struct {
	n atomic.Uint64
	_ [56]byte
}

// Metrics is a fixed set of lock-free counters plus the validation latency histogram.
type Metrics struct {
	counting bool
	timing   bool
	counters [metricIDCount]counterSlot
	latency  [histBucketCount]atomic.Uint64
}

// MetricsSnapshot is a point-in-time copy of all counters. Histograms holds
// per-bucket (not cumulative) counts.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		counting: cfg.Enabled,
		timing:   cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

func (m *Metrics) Enabled() bool {
	return m != nil && m.counting
}

func (m *Metrics) Inc(id MetricID) {
	if !m.Enabled() || id >= metricIDCount {
		return
	}
	m.counters[id].n.Add(1)
}

// Observe records d for id. Only MetricValidateLatency is timed.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.timing || id != MetricValidateLatency {
		return
	}
	m.latency[bucketIndex(d)].Add(1)
}

func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return m.counters[id].n.Load()
}

func (m *Metrics) Snapshot() MetricsSnapshot {
	snap := MetricsSnapshot{
		Counters:   map[MetricID]uint64{},
		Histograms: map[MetricID][]uint64{},
	}
	if !m.Enabled() {
		return snap
	}
	for id := MetricID(0); id < metricIDCount; id++ {
		snap.Counters[id] = m.counters[id].n.Load()
	}
	if m.timing {
		buckets := make([]uint64, histBucketCount)
		for i := range buckets {
			buckets[i] = m.latency[i].Load()
		}
		snap.Histograms[MetricValidateLatency] = buckets
	}
	return snap
}

func bucketIndex(d time.Duration) int {
	for i, bound := range latencyBounds {
		if d <= bound {
			return i
		}
	}
	return len(latencyBounds)
}
