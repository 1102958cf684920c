// internal/model/sensor.go
package model

// SensorID identifies one configured sensor (e.g. "emg-a")
type SensorID string

// Channel identifies one of the two signal channels carried by every frame
type Channel string

const (
	ChannelA Channel = "a"
	ChannelB Channel = "b"
)

// Channels lists all channels in frame order
var Channels = []Channel{ChannelA, ChannelB}

// IsValid checks channel value
func (c Channel) IsValid() bool {
	return c == ChannelA || c == ChannelB
}

// SensorConfig describes one sensor known to the decoder.
// The tag is the 3-hex-character prefix embedded in every payload.
type SensorConfig struct {
	ID   SensorID `json:"id" mapstructure:"id"`
	Tag  string   `json:"tag" mapstructure:"tag"`
	Name string   `json:"name" mapstructure:"name"`
}

// SensorStats is the per-sensor loss accounting snapshot exposed to readers.
// LossRatePercent is 100*lost/(received+lost), 0.0 before any frame arrives.
// The 4-bit sequence counter cannot distinguish a gap of g from g+16k, so
// Lost is a lower bound once more than 15 consecutive frames are dropped.
type SensorStats struct {
	ID                SensorID         `json:"id"`
	Tag               string           `json:"tag"`
	Name              string           `json:"name"`
	Received          uint64           `json:"received"`
	Lost              uint64           `json:"lost"`
	LossRatePercent   float64          `json:"loss_rate_percent"`
	ElapsedSeconds    float64          `json:"elapsed_seconds"`
	WindowFill        int              `json:"window_fill"`
	CumulativeSamples map[Channel]int  `json:"cumulative_samples"`
	Arrival           *ArrivalSnapshot `json:"arrival,omitempty"`
}

// ArrivalSnapshot summarizes inter-arrival gaps for one sensor, in milliseconds
type ArrivalSnapshot struct {
	Count  int64   `json:"count"`
	MeanMs float64 `json:"mean_ms"`
	P50Ms  float64 `json:"p50_ms"`
	P95Ms  float64 `json:"p95_ms"`
	P99Ms  float64 `json:"p99_ms"`
	MaxMs  float64 `json:"max_ms"`
}

// RejectCounts tallies payloads discarded before any state was touched
type RejectCounts struct {
	Malformed     uint64 `json:"malformed"`
	UnknownSensor uint64 `json:"unknown_sensor"`
	LinkNoise     uint64 `json:"link_noise"`
}

// Total returns the number of discarded payloads
func (r RejectCounts) Total() uint64 {
	return r.Malformed + r.UnknownSensor + r.LinkNoise
}
