package crqa

import (
	"sync/atomic"
	"time"
)

// LatencyBuckets defines the compute-latency histogram buckets in
// nanoseconds. Buckets cover 1us to 10s with logarithmic spacing.
var LatencyBuckets = []uint64{
	1_000,          // 1us
	10_000,         // 10us
	100_000,        // 100us
	1_000_000,      // 1ms
	10_000_000,     // 10ms
	100_000_000,    // 100ms
	1_000_000_000,  // 1s
	10_000_000_000, // 10s
}

const numLatencyBuckets = 8

// Metrics tracks accelerator-wide operational statistics: trigger
// counts, stale-trigger rejections, compute outcomes and retries, and
// interrupt deliveries.
type Metrics struct {
	// Trigger accounting (register-mode and shared-buffer mode).
	Triggers      atomic.Uint64 // triggers accepted (id matched)
	StaleTriggers atomic.Uint64 // triggers rejected for a stale id

	// Compute Server exchange accounting.
	ComputeSuccess atomic.Uint64
	ComputeFailure atomic.Uint64
	RetryCount     atomic.Uint64 // cumulative retry attempts across all dispatches

	// MSI delivery accounting.
	Interrupts atomic.Uint64

	// Performance tracking.
	TotalLatencyNs atomic.Uint64
	OpCount        atomic.Uint64

	// Latency histogram buckets (cumulative counts); bucket[i] holds
	// the count of operations with latency <= LatencyBuckets[i].
	LatencyBuckets [numLatencyBuckets]atomic.Uint64

	StartTime atomic.Int64
	StopTime  atomic.Int64
}

// NewMetrics creates a new, running Metrics instance.
func NewMetrics() *Metrics {
	m := &Metrics{}
	m.StartTime.Store(time.Now().UnixNano())
	return m
}

// RecordTrigger records an accepted (id-matched) trigger.
func (m *Metrics) RecordTrigger() {
	m.Triggers.Add(1)
}

// RecordStaleTrigger records a trigger rejected for a stale id.
func (m *Metrics) RecordStaleTrigger() {
	m.StaleTriggers.Add(1)
}

// RecordCompute records the outcome of a Compute Server exchange,
// including however many retries it took.
func (m *Metrics) RecordCompute(latencyNs uint64, success bool, retries int) {
	if success {
		m.ComputeSuccess.Add(1)
	} else {
		m.ComputeFailure.Add(1)
	}
	if retries > 0 {
		m.RetryCount.Add(uint64(retries))
	}
	m.recordLatency(latencyNs)
}

// RecordInterrupt records a delivered MSI.
func (m *Metrics) RecordInterrupt() {
	m.Interrupts.Add(1)
}

func (m *Metrics) recordLatency(latencyNs uint64) {
	if latencyNs == 0 {
		return
	}
	m.TotalLatencyNs.Add(latencyNs)
	m.OpCount.Add(1)
	for i, bucket := range LatencyBuckets {
		if latencyNs <= bucket {
			m.LatencyBuckets[i].Add(1)
		}
	}
}

// Stop marks the device as stopped for uptime accounting.
func (m *Metrics) Stop() {
	m.StopTime.Store(time.Now().UnixNano())
}

// MetricsSnapshot is a point-in-time copy of Metrics, with derived
// statistics computed once.
type MetricsSnapshot struct {
	Triggers      uint64
	StaleTriggers uint64

	ComputeSuccess uint64
	ComputeFailure uint64
	RetryCount     uint64

	Interrupts uint64

	AvgLatencyNs uint64
	UptimeNs     uint64

	LatencyP50Ns  uint64
	LatencyP99Ns  uint64
	LatencyP999Ns uint64

	LatencyHistogram [numLatencyBuckets]uint64

	ComputeErrorRate float64 // percentage of compute exchanges that failed
}

// Snapshot creates a point-in-time snapshot of metrics.
func (m *Metrics) Snapshot() MetricsSnapshot {
	snap := MetricsSnapshot{
		Triggers:       m.Triggers.Load(),
		StaleTriggers:  m.StaleTriggers.Load(),
		ComputeSuccess: m.ComputeSuccess.Load(),
		ComputeFailure: m.ComputeFailure.Load(),
		RetryCount:     m.RetryCount.Load(),
		Interrupts:     m.Interrupts.Load(),
	}

	totalLatencyNs := m.TotalLatencyNs.Load()
	opCount := m.OpCount.Load()
	if opCount > 0 {
		snap.AvgLatencyNs = totalLatencyNs / opCount
	}

	startTime := m.StartTime.Load()
	stopTime := m.StopTime.Load()
	if stopTime > 0 {
		snap.UptimeNs = uint64(stopTime - startTime)
	} else {
		snap.UptimeNs = uint64(time.Now().UnixNano() - startTime)
	}

	totalCompute := snap.ComputeSuccess + snap.ComputeFailure
	if totalCompute > 0 {
		snap.ComputeErrorRate = float64(snap.ComputeFailure) / float64(totalCompute) * 100.0
	}

	for i := 0; i < numLatencyBuckets; i++ {
		snap.LatencyHistogram[i] = m.LatencyBuckets[i].Load()
	}

	if opCount > 0 {
		snap.LatencyP50Ns = m.calculatePercentile(0.50)
		snap.LatencyP99Ns = m.calculatePercentile(0.99)
		snap.LatencyP999Ns = m.calculatePercentile(0.999)
	}

	return snap
}

// calculatePercentile estimates the latency at the given percentile
// (0.0-1.0) by linear interpolation between histogram buckets.
func (m *Metrics) calculatePercentile(percentile float64) uint64 {
	totalOps := m.OpCount.Load()
	if totalOps == 0 {
		return 0
	}

	targetCount := uint64(float64(totalOps) * percentile)

	prevBucket := uint64(0)
	for i, bucket := range LatencyBuckets {
		bucketCount := m.LatencyBuckets[i].Load()
		if bucketCount >= targetCount {
			prevCount := uint64(0)
			if i > 0 {
				prevCount = m.LatencyBuckets[i-1].Load()
			}
			if bucketCount == prevCount {
				return bucket
			}
			fraction := float64(targetCount-prevCount) / float64(bucketCount-prevCount)
			return prevBucket + uint64(fraction*float64(bucket-prevBucket))
		}
		prevBucket = bucket
	}

	return LatencyBuckets[numLatencyBuckets-1]
}

// Reset resets all metrics counters (useful for testing).
func (m *Metrics) Reset() {
	m.Triggers.Store(0)
	m.StaleTriggers.Store(0)
	m.ComputeSuccess.Store(0)
	m.ComputeFailure.Store(0)
	m.RetryCount.Store(0)
	m.Interrupts.Store(0)
	m.TotalLatencyNs.Store(0)
	m.OpCount.Store(0)
	for i := 0; i < numLatencyBuckets; i++ {
		m.LatencyBuckets[i].Store(0)
	}
	m.StartTime.Store(time.Now().UnixNano())
	m.StopTime.Store(0)
}

// Observer is the accelerator's pluggable metrics-collection
// interface. Its method set matches internal/interfaces.Observer
// structurally, so a *MetricsObserver can be passed directly to
// devicemodel.WithObserver without either package importing the
// other.
type Observer interface {
	ObserveTrigger(success bool)
	ObserveStaleTrigger()
	ObserveCompute(latencyNs uint64, success bool, retries int)
	ObserveInterrupt()
}

// NoOpObserver is a no-op Observer.
type NoOpObserver struct{}

func (NoOpObserver) ObserveTrigger(bool)                 {}
func (NoOpObserver) ObserveStaleTrigger()                 {}
func (NoOpObserver) ObserveCompute(uint64, bool, int)     {}
func (NoOpObserver) ObserveInterrupt()                    {}

// MetricsObserver implements Observer by recording into a Metrics.
type MetricsObserver struct {
	metrics *Metrics
}

// NewMetricsObserver creates an observer that records into m.
func NewMetricsObserver(m *Metrics) *MetricsObserver {
	return &MetricsObserver{metrics: m}
}

func (o *MetricsObserver) ObserveTrigger(success bool) {
	if success {
		o.metrics.RecordTrigger()
	}
}

func (o *MetricsObserver) ObserveStaleTrigger() {
	o.metrics.RecordStaleTrigger()
}

func (o *MetricsObserver) ObserveCompute(latencyNs uint64, success bool, retries int) {
	o.metrics.RecordCompute(latencyNs, success, retries)
}

func (o *MetricsObserver) ObserveInterrupt() {
	o.metrics.RecordInterrupt()
}

var (
	_ Observer = (*MetricsObserver)(nil)
	_ Observer = (*NoOpObserver)(nil)
)
