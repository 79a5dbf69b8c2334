// Package telemetry collects in-process metrics for the LLM summarizer
// path (§4.8): call counts, token counts, latency, and a bounded ring
// of recent failures by category. The only thing written out is the
// snapshot sidecar saved next to the index (SaveSnapshot in persist.go),
// which the CLI's stats surface reads back.
package telemetry

import (
	"sync"
	"time"
)

// FailureRecord is one entry in the recent-failures ring.
type FailureRecord struct {
	Reason string
	Time   time.Time
}

// CircularBuffer is a fixed-capacity FIFO buffer.
type CircularBuffer[T any] struct {
	items    []T
	head     int
	size     int
	capacity int
	mu       sync.RWMutex
}

// NewCircularBuffer creates a buffer with the given capacity.
func NewCircularBuffer[T any](capacity int) *CircularBuffer[T] {
	if capacity <= 0 {
		capacity = 20
	}
	return &CircularBuffer[T]{items: make([]T, capacity), capacity: capacity}
}

// Add appends item, evicting the oldest entry once full.
func (b *CircularBuffer[T]) Add(item T) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.items[b.head] = item
	b.head = (b.head + 1) % b.capacity
	if b.size < b.capacity {
		b.size++
	}
}

// Items returns buffered entries oldest-first.
func (b *CircularBuffer[T]) Items() []T {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.size == 0 {
		return nil
	}
	out := make([]T, b.size)
	if b.size < b.capacity {
		copy(out, b.items[:b.size])
		return out
	}
	copy(out, b.items[b.head:])
	copy(out[b.capacity-b.head:], b.items[:b.head])
	return out
}

// SummarizerSnapshot is an immutable view of collected metrics.
type SummarizerSnapshot struct {
	Calls           int64
	Failures        int64
	TotalTokens     int64
	LatencyMin      time.Duration
	LatencyMax      time.Duration
	LatencyAvg      time.Duration
	RecentFailures  []FailureRecord
}

// SummarizerMetrics accumulates call/latency/failure stats for every
// LLM summarizer invocation, success or fallback.
type SummarizerMetrics struct {
	mu          sync.Mutex
	calls       int64
	failures    int64
	totalTokens int64
	latencySum  time.Duration
	latencyMin  time.Duration
	latencyMax  time.Duration
	recent      *CircularBuffer[FailureRecord]
}

// NewSummarizerMetrics returns an empty collector. recentCapacity bounds
// the ring of remembered failures; <= 0 uses a default of 20.
func NewSummarizerMetrics(recentCapacity int) *SummarizerMetrics {
	return &SummarizerMetrics{recent: NewCircularBuffer[FailureRecord](recentCapacity)}
}

// RecordSuccess records a successful call's latency and token usage.
func (m *SummarizerMetrics) RecordSuccess(latency time.Duration, tokens int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.totalTokens += int64(tokens)
	m.recordLatencyLocked(latency)
}

// RecordFailure records a failed call's latency and failure category,
// adding it to the bounded ring of recent failures.
func (m *SummarizerMetrics) RecordFailure(latency time.Duration, reason string, at time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.failures++
	m.recordLatencyLocked(latency)
	m.recent.Add(FailureRecord{Reason: reason, Time: at})
}

func (m *SummarizerMetrics) recordLatencyLocked(latency time.Duration) {
	m.latencySum += latency
	if m.latencyMin == 0 || latency < m.latencyMin {
		m.latencyMin = latency
	}
	if latency > m.latencyMax {
		m.latencyMax = latency
	}
}

// Snapshot returns the current metrics for reporting.
func (m *SummarizerMetrics) Snapshot() SummarizerSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	var avg time.Duration
	if m.calls > 0 {
		avg = m.latencySum / time.Duration(m.calls)
	}
	return SummarizerSnapshot{
		Calls:          m.calls,
		Failures:       m.failures,
		TotalTokens:    m.totalTokens,
		LatencyMin:     m.latencyMin,
		LatencyMax:     m.latencyMax,
		LatencyAvg:     avg,
		RecentFailures: m.recent.Items(),
	}
}
