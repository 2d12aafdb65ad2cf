package sessionkit

import (
	"sync/atomic"
	"time"
)

// MetricID identifies one counter or histogram in the session metric set.
//
// MetricID instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type MetricID uint16

const (
	// MetricLoginSuccess counts successful logins.
	MetricLoginSuccess MetricID = iota
	// MetricLoginFailure counts logins the server rejected.
	MetricLoginFailure
	// MetricLoginNetworkError counts logins that failed in transport.
	MetricLoginNetworkError
	// MetricRefreshSuccess counts successful token refreshes.
	MetricRefreshSuccess
	// MetricRefreshRejected counts refreshes rejected by the server, each of
	// which tears down the session.
	MetricRefreshRejected
	// MetricRefreshNetworkError counts refreshes that failed in transport
	// and preserved the session.
	MetricRefreshNetworkError
	// MetricRefreshCoalesced counts callers that joined an in-flight refresh
	// instead of starting their own.
	MetricRefreshCoalesced
	// MetricLogout counts user-initiated logouts.
	MetricLogout
	// MetricForcedLogout counts expiry- or policy-triggered logouts.
	MetricForcedLogout
	// MetricSessionRestored counts sessions reconstructed from storage at
	// startup.
	MetricSessionRestored
	// MetricStorageCorrupt counts corrupt persisted records discarded at
	// startup.
	MetricStorageCorrupt
	// MetricProfileSync counts profile re-syncs from the server.
	MetricProfileSync
	// MetricProfileUpdate counts profile updates pushed to the server.
	MetricProfileUpdate
	// MetricRefreshLatency is the refresh round-trip latency histogram.
	MetricRefreshLatency
	metricIDCount
)

const cacheLineSize = 64

// latencyBucketUpperMS are the inclusive upper bounds of the latency buckets
// in milliseconds; samples above the last bound land in an overflow bucket.
var latencyBucketUpperMS = [...]int64{5, 10, 25, 50, 100, 250, 500}

const latencyBucketCount = len(latencyBucketUpperMS) + 1

type latencyHistogram struct {
	buckets [latencyBucketCount]uint64
}

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Metrics is the lock-free counter set backing [Manager.MetricsSnapshot].
//
// Metrics instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [metricIDCount]paddedCounter
	histograms    [metricIDCount]latencyHistogram
}

// MetricsSnapshot is a point-in-time copy of all counters and histograms.
//
// MetricsSnapshot instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

// NewMetrics allocates the counter set according to cfg.
//
// NewMetrics does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

// Enabled reports whether counters are being recorded.
//
// Enabled does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

// LatencyEnabled reports whether the refresh-latency histogram is recorded.
//
// LatencyEnabled does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (m *Metrics) LatencyEnabled() bool {
	return m != nil && m.enableLatency
}

// Inc increments one counter.
//
// Inc does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Observe records one latency sample into the refresh histogram.
//
// Observe does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enabled || !m.enableLatency || id >= metricIDCount {
		return
	}
	if id != MetricRefreshLatency {
		return
	}

	b := bucketIndex(d)
	atomic.AddUint64(&m.histograms[id].buckets[b], 1)
}

// Value reads one counter.
//
// Value does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// Snapshot copies every counter and histogram.
//
// Snapshot does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil || !m.enabled {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}

	s := MetricsSnapshot{
		Counters:   make(map[MetricID]uint64, int(metricIDCount)),
		Histograms: make(map[MetricID][]uint64, 1),
	}

	for id := MetricID(0); id < metricIDCount; id++ {
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}

	if m.enableLatency {
		buckets := make([]uint64, latencyBucketCount)
		for i := range buckets {
			buckets[i] = atomic.LoadUint64(&m.histograms[MetricRefreshLatency].buckets[i])
		}
		s.Histograms[MetricRefreshLatency] = buckets
	}

	return s
}

func bucketIndex(d time.Duration) int {
	ms := d.Milliseconds()
	for i, upper := range latencyBucketUpperMS {
		if ms <= upper {
			return i
		}
	}
	return latencyBucketCount - 1
}
