// internal/model/frame.go
package model

// Frame is one decoded telemetry payload. Produced once per valid raw packet,
// never mutated afterward; ChannelA and ChannelB always have equal length.
type Frame struct {
	Sensor   SensorID  `json:"sensor"`
	Tag      string    `json:"tag"`
	Sequence uint8     `json:"sequence"`
	ChannelA []float64 `json:"channel_a"`
	ChannelB []float64 `json:"channel_b"`
}

// SampleCount returns the number of sample groups carried by the frame
func (f *Frame) SampleCount() int {
	return len(f.ChannelA)
}

// Samples returns the sample list for the given channel
func (f *Frame) Samples(c Channel) []float64 {
	if c == ChannelB {
		return f.ChannelB
	}
	return f.ChannelA
}
