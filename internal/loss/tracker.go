// internal/loss/tracker.go
package loss

import (
	"time"

	"telemetry-service/internal/codec"
	"telemetry-service/internal/model"
)

// State is the loss accounting for one sensor. Mutated only through
// Tracker.Observe, under the ingest coordinator's lock; never reset for
// the life of a session.
type State struct {
	Expected  int // next expected sequence, -1 before the first frame
	Received  uint64
	Lost      uint64
	StartedAt time.Time // first frame arrival, zero before it
}

// Tracker follows the 4-bit wrapping sequence counter per sensor and
// accumulates lost-frame counts. It is not safe for concurrent use on its
// own: the caller serializes access.
type Tracker struct {
	states map[model.SensorID]*State
}

// NewTracker creates an empty tracker
func NewTracker() *Tracker {
	return &Tracker{states: make(map[model.SensorID]*State)}
}

// Observe records one arrived sequence number and returns how many frames
// went missing since the previous one. The first observation for a sensor
// counts no loss. A gap of g frames is indistinguishable from g+16k with a
// 4-bit counter; the smaller value is reported, making Lost a lower bound.
func (t *Tracker) Observe(sensor model.SensorID, sequence uint8, now time.Time) uint64 {
	st, ok := t.states[sensor]
	if !ok {
		st = &State{Expected: -1}
		t.states[sensor] = st
	}

	var lostDelta uint64
	if st.Expected < 0 {
		st.StartedAt = now
	} else if int(sequence) != st.Expected {
		lostDelta = uint64((int(sequence) - st.Expected + codec.SequenceModulo) % codec.SequenceModulo)
		st.Lost += lostDelta
	}

	st.Received++
	st.Expected = (int(sequence) + 1) % codec.SequenceModulo
	return lostDelta
}

// Get returns the state for a sensor, or nil before its first frame
func (t *Tracker) Get(sensor model.SensorID) *State {
	return t.states[sensor]
}

// LossRatePercent computes 100*lost/(received+lost), 0.0 when nothing has
// been seen or lost yet
func (s *State) LossRatePercent() float64 {
	total := s.Received + s.Lost
	if total == 0 {
		return 0.0
	}
	return float64(s.Lost) / float64(total) * 100.0
}

// Elapsed returns the session time since the first frame, zero before it
func (s *State) Elapsed(now time.Time) time.Duration {
	if s.StartedAt.IsZero() {
		return 0
	}
	return now.Sub(s.StartedAt)
}
