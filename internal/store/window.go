// internal/store/window.go
package store

import "telemetry-service/internal/model"

// Ring is a fixed-capacity sample buffer that evicts the oldest value on
// overflow. Length never exceeds capacity.
type Ring struct {
	buf   []float64
	head  int // next write position
	count int
}

// NewRing creates a ring holding up to capacity samples
func NewRing(capacity int) *Ring {
	return &Ring{buf: make([]float64, capacity)}
}

// Push appends one sample, evicting the oldest when full
func (r *Ring) Push(v float64) {
	r.buf[r.head] = v
	r.head = (r.head + 1) % len(r.buf)
	if r.count < len(r.buf) {
		r.count++
	}
}

// Len returns the number of samples currently held
func (r *Ring) Len() int {
	return r.count
}

// Snapshot copies the ring into a slice of exactly capacity values, oldest
// first, zero left-padded while fewer than capacity samples were ever
// pushed. Early renders therefore show a full-width trace.
func (r *Ring) Snapshot() []float64 {
	out := make([]float64, len(r.buf))
	start := r.head - r.count
	if start < 0 {
		start += len(r.buf)
	}
	for i := 0; i < r.count; i++ {
		out[len(out)-r.count+i] = r.buf[(start+i)%len(r.buf)]
	}
	return out
}

type channelKey struct {
	sensor  model.SensorID
	channel model.Channel
}

// SampleStore keeps the recent window and the cumulative session log for
// every sensor and channel. It does no locking of its own: all access goes
// through the ingest coordinator's critical section.
type SampleStore struct {
	capacity int
	windows  map[channelKey]*Ring
	logs     map[channelKey][]float64
}

// NewSampleStore creates a store with the given window capacity per channel
func NewSampleStore(capacity int) *SampleStore {
	return &SampleStore{
		capacity: capacity,
		windows:  make(map[channelKey]*Ring),
		logs:     make(map[channelKey][]float64),
	}
}

// Capacity returns the fixed window length
func (s *SampleStore) Capacity() int {
	return s.capacity
}

// Append pushes samples in order into the channel's window and cumulative log
func (s *SampleStore) Append(sensor model.SensorID, channel model.Channel, samples []float64) {
	key := channelKey{sensor, channel}
	ring, ok := s.windows[key]
	if !ok {
		ring = NewRing(s.capacity)
		s.windows[key] = ring
	}
	for _, v := range samples {
		ring.Push(v)
	}
	s.logs[key] = append(s.logs[key], samples...)
}

// Window returns exactly capacity values for the channel, zero left-padded,
// as a fresh copy safe to hold after the lock is released.
func (s *SampleStore) Window(sensor model.SensorID, channel model.Channel) []float64 {
	if ring, ok := s.windows[channelKey{sensor, channel}]; ok {
		return ring.Snapshot()
	}
	return make([]float64, s.capacity)
}

// WindowFill returns how many real samples the channel's window holds
func (s *SampleStore) WindowFill(sensor model.SensorID, channel model.Channel) int {
	if ring, ok := s.windows[channelKey{sensor, channel}]; ok {
		return ring.Len()
	}
	return 0
}

// Cumulative returns the full session log for the channel. The result is a
// read-only view: the store never modifies delivered elements (growth only
// appends past them), and callers must not write into it.
func (s *SampleStore) Cumulative(sensor model.SensorID, channel model.Channel) []float64 {
	return s.logs[channelKey{sensor, channel}]
}

// CumulativeLen returns the session log length for the channel
func (s *SampleStore) CumulativeLen(sensor model.SensorID, channel model.Channel) int {
	return len(s.logs[channelKey{sensor, channel}])
}
