// internal/ingest/coordinator.go
package ingest

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"telemetry-service/internal/codec"
	"telemetry-service/internal/loss"
	"telemetry-service/internal/metrics"
	"telemetry-service/internal/model"
	"telemetry-service/internal/store"
)

// Coordinator is the single mutating entry point of the pipeline. One
// mutex guards the loss tracker and the sample store for every sensor;
// decoding runs outside it and the lock is never held across I/O,
// formatting, or rendering. Ingest may be called from any number of
// delivery goroutines while readers snapshot concurrently.
type Coordinator struct {
	decoder *codec.Decoder
	sensors map[model.SensorID]model.SensorConfig
	ordered []model.SensorConfig
	arrival *metrics.Tracker
	logger  *zap.Logger

	mu      sync.Mutex
	losses  *loss.Tracker
	samples *store.SampleStore

	frames    atomic.Uint64
	malformed atomic.Uint64
	unknown   atomic.Uint64
}

// NewCoordinator wires a pipeline for the registered sensors with the
// given window capacity per channel.
func NewCoordinator(registry *codec.Registry, windowCapacity int, logger *zap.Logger) *Coordinator {
	ordered := registry.Sensors()
	sensors := make(map[model.SensorID]model.SensorConfig, len(ordered))
	for _, s := range ordered {
		sensors[s.ID] = s
	}
	return &Coordinator{
		decoder: codec.NewDecoder(registry),
		sensors: sensors,
		ordered: ordered,
		arrival: metrics.NewTracker(),
		logger:  logger,
		losses:  loss.NewTracker(),
		samples: store.NewSampleStore(windowCapacity),
	}
}

// Ingest consumes one raw payload from the transport. Decode errors are
// absorbed here: the payload is counted and logged, no per-sensor state is
// touched, and nothing propagates to readers.
func (c *Coordinator) Ingest(raw []byte) {
	frame, err := c.decoder.Decode(raw)
	if err != nil {
		if errors.Is(err, codec.ErrUnknownSensor) {
			c.unknown.Add(1)
			c.logger.Debug("Payload from unregistered sensor", zap.Error(err))
		} else {
			c.malformed.Add(1)
			c.logger.Debug("Malformed payload discarded",
				zap.Int("raw_bytes", len(raw)),
				zap.Error(err),
			)
		}
		return
	}

	now := time.Now()
	c.arrival.Observe(frame.Sensor, now)

	c.mu.Lock()
	lostDelta := c.losses.Observe(frame.Sensor, frame.Sequence, now)
	c.samples.Append(frame.Sensor, model.ChannelA, frame.ChannelA)
	c.samples.Append(frame.Sensor, model.ChannelB, frame.ChannelB)
	c.mu.Unlock()

	c.frames.Add(1)
	if lostDelta > 0 {
		c.logger.Warn("Sequence gap detected",
			zap.String("sensor", string(frame.Sensor)),
			zap.Uint64("lost_frames", lostDelta),
			zap.Uint8("sequence", frame.Sequence),
		)
	}
}

// Window returns the fixed-length, zero-padded recent window for the
// channel. The copy is taken under the lock, formatting happens outside.
func (c *Coordinator) Window(sensor model.SensorID, channel model.Channel) ([]float64, bool) {
	if _, ok := c.sensors[sensor]; !ok {
		return nil, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.samples.Window(sensor, channel), true
}

// Cumulative returns the full session log for the channel as a read-only
// view; callers must not write into it.
func (c *Coordinator) Cumulative(sensor model.SensorID, channel model.Channel) ([]float64, bool) {
	if _, ok := c.sensors[sensor]; !ok {
		return nil, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.samples.Cumulative(sensor, channel), true
}

// Stats snapshots loss accounting for one sensor
func (c *Coordinator) Stats(sensor model.SensorID) (model.SensorStats, bool) {
	cfg, ok := c.sensors[sensor]
	if !ok {
		return model.SensorStats{}, false
	}

	now := time.Now()
	stats := model.SensorStats{ID: cfg.ID, Tag: cfg.Tag, Name: cfg.Name}

	c.mu.Lock()
	if st := c.losses.Get(sensor); st != nil {
		stats.Received = st.Received
		stats.Lost = st.Lost
		stats.LossRatePercent = st.LossRatePercent()
		stats.ElapsedSeconds = st.Elapsed(now).Seconds()
	}
	stats.WindowFill = c.samples.WindowFill(sensor, model.ChannelA)
	stats.CumulativeSamples = map[model.Channel]int{
		model.ChannelA: c.samples.CumulativeLen(sensor, model.ChannelA),
		model.ChannelB: c.samples.CumulativeLen(sensor, model.ChannelB),
	}
	c.mu.Unlock()

	stats.Arrival = c.arrival.Snapshot(sensor)
	return stats, true
}

// AllStats snapshots every configured sensor in registration order
func (c *Coordinator) AllStats() []model.SensorStats {
	out := make([]model.SensorStats, 0, len(c.ordered))
	for _, cfg := range c.ordered {
		if stats, ok := c.Stats(cfg.ID); ok {
			out = append(out, stats)
		}
	}
	return out
}

// Sensors returns the configured sensors in registration order
func (c *Coordinator) Sensors() []model.SensorConfig {
	out := make([]model.SensorConfig, len(c.ordered))
	copy(out, c.ordered)
	return out
}

// Arrival exposes the inter-arrival tracker for the stats publisher
func (c *Coordinator) Arrival() *metrics.Tracker {
	return c.arrival
}

// WindowCapacity returns the fixed window length per channel
func (c *Coordinator) WindowCapacity() int {
	return c.samples.Capacity()
}

// Frames returns how many payloads decoded successfully
func (c *Coordinator) Frames() uint64 {
	return c.frames.Load()
}

// Rejects tallies payloads discarded before touching sensor state. Link
// noise is accounted at the bridge and merged by the session service.
func (c *Coordinator) Rejects() model.RejectCounts {
	return model.RejectCounts{
		Malformed:     c.malformed.Load(),
		UnknownSensor: c.unknown.Load(),
	}
}
