// internal/metrics/arrival.go
package metrics

import (
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"

	"telemetry-service/internal/model"
)

// Inter-arrival gaps are recorded in microseconds. Gaps above maxGapMicros
// (a stalled link) saturate rather than error.
const (
	minGapMicros = 1
	maxGapMicros = 10_000_000
	sigFigs      = 3
)

type arrivalState struct {
	lifetime *hdrhistogram.Histogram
	interval *hdrhistogram.Histogram
	last     time.Time
}

// Tracker records frame inter-arrival timing per sensor. It keeps a
// lifetime histogram and an interval histogram that the stats publisher
// resets each reporting cycle. Supplementary state with its own lock, kept
// outside the ingest critical section.
type Tracker struct {
	mu   sync.RWMutex
	byID map[model.SensorID]*arrivalState
}

// NewTracker creates an empty arrival tracker
func NewTracker() *Tracker {
	return &Tracker{byID: make(map[model.SensorID]*arrivalState)}
}

// Observe records the arrival of one frame. The first arrival for a sensor
// only anchors the clock; every later one records the gap since the
// previous frame.
func (t *Tracker) Observe(sensor model.SensorID, now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	st, ok := t.byID[sensor]
	if !ok {
		st = &arrivalState{
			lifetime: hdrhistogram.New(minGapMicros, maxGapMicros, sigFigs),
			interval: hdrhistogram.New(minGapMicros, maxGapMicros, sigFigs),
		}
		t.byID[sensor] = st
	}

	if !st.last.IsZero() {
		gap := now.Sub(st.last).Microseconds()
		if gap < minGapMicros {
			gap = minGapMicros
		}
		if gap > maxGapMicros {
			gap = maxGapMicros
		}
		st.lifetime.RecordValue(gap)
		st.interval.RecordValue(gap)
	}
	st.last = now
}

// Snapshot summarizes the lifetime histogram for a sensor, nil before its
// first recorded gap
func (t *Tracker) Snapshot(sensor model.SensorID) *model.ArrivalSnapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()

	st, ok := t.byID[sensor]
	if !ok || st.lifetime.TotalCount() == 0 {
		return nil
	}
	return summarize(st.lifetime)
}

// Interval summarizes gaps recorded since the last ResetIntervals call
func (t *Tracker) Interval(sensor model.SensorID) *model.ArrivalSnapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()

	st, ok := t.byID[sensor]
	if !ok || st.interval.TotalCount() == 0 {
		return nil
	}
	return summarize(st.interval)
}

// ResetIntervals clears every interval histogram. Called by the single
// stats publishing loop at each reporting boundary.
func (t *Tracker) ResetIntervals() {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, st := range t.byID {
		st.interval.Reset()
	}
}

func summarize(h *hdrhistogram.Histogram) *model.ArrivalSnapshot {
	return &model.ArrivalSnapshot{
		Count:  h.TotalCount(),
		MeanMs: h.Mean() / 1000.0,
		P50Ms:  float64(h.ValueAtQuantile(50)) / 1000.0,
		P95Ms:  float64(h.ValueAtQuantile(95)) / 1000.0,
		P99Ms:  float64(h.ValueAtQuantile(99)) / 1000.0,
		MaxMs:  float64(h.Max()) / 1000.0,
	}
}
