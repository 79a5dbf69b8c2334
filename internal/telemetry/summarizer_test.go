package telemetry

import (
	"testing"
	"time"
)

func TestCircularBuffer_EvictsOldestWhenFull(t *testing.T) {
	b := NewCircularBuffer[int](3)
	b.Add(1)
	b.Add(2)
	b.Add(3)
	b.Add(4)

	got := b.Items()
	want := []int{2, 3, 4}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

func TestSummarizerMetrics_TracksCallsAndTokens(t *testing.T) {
	m := NewSummarizerMetrics(5)
	m.RecordSuccess(10*time.Millisecond, 42)
	m.RecordSuccess(20*time.Millisecond, 8)

	snap := m.Snapshot()
	if snap.Calls != 2 {
		t.Errorf("expected 2 calls, got %d", snap.Calls)
	}
	if snap.TotalTokens != 50 {
		t.Errorf("expected 50 tokens, got %d", snap.TotalTokens)
	}
	if snap.LatencyMin != 10*time.Millisecond {
		t.Errorf("expected min latency 10ms, got %v", snap.LatencyMin)
	}
	if snap.LatencyMax != 20*time.Millisecond {
		t.Errorf("expected max latency 20ms, got %v", snap.LatencyMax)
	}
	if snap.LatencyAvg != 15*time.Millisecond {
		t.Errorf("expected avg latency 15ms, got %v", snap.LatencyAvg)
	}
}

func TestSummarizerMetrics_RingBoundsRecentFailures(t *testing.T) {
	m := NewSummarizerMetrics(2)
	now := time.Now()
	m.RecordFailure(time.Millisecond, "network", now)
	m.RecordFailure(time.Millisecond, "parse", now)
	m.RecordFailure(time.Millisecond, "timeout", now)

	snap := m.Snapshot()
	if snap.Failures != 3 {
		t.Errorf("expected 3 total failures, got %d", snap.Failures)
	}
	if len(snap.RecentFailures) != 2 {
		t.Fatalf("expected ring bounded to 2, got %d", len(snap.RecentFailures))
	}
	if snap.RecentFailures[0].Reason != "parse" || snap.RecentFailures[1].Reason != "timeout" {
		t.Errorf("expected oldest-evicted order [parse, timeout], got %+v", snap.RecentFailures)
	}
}
