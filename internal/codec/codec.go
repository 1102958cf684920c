// internal/codec/codec.go
package codec

import (
	"errors"
	"fmt"
	"strings"

	"telemetry-service/internal/model"
)

// Frame layout, in hex characters over the raw payload: [0:3) sensor tag,
// [3] sequence digit, then up to MaxGroups groups of GroupChars each.
// Within a group, channel A occupies [6:12) and channel B [18:24), both
// 3-byte big-endian unsigned fields.
const (
	TagChars    = 3
	HeaderChars = 4
	GroupChars  = 24
	MaxGroups   = 7

	fieldChars  = 6
	channelAOff = 6
	channelBOff = 18

	// MinFrameChars is one header plus one complete sample group
	MinFrameChars = HeaderChars + GroupChars
)

// SequenceModulo is the period of the wrapping sequence counter
const SequenceModulo = 16

// Decode failures. Both are non-fatal: the caller discards the payload and
// must not touch any per-sensor state.
var (
	ErrMalformedFrame = errors.New("frame too short")
	ErrUnknownSensor  = errors.New("unknown sensor tag")
)

// Registry resolves payload tags to configured sensors. Tags are data, not
// code: supporting another sensor is a configuration change, not a decoder
// change.
type Registry struct {
	byTag   map[string]model.SensorConfig
	ordered []model.SensorConfig
}

// NewRegistry builds a registry from configuration, normalizing tags to
// uppercase and rejecting duplicates.
func NewRegistry(sensors []model.SensorConfig) (*Registry, error) {
	if len(sensors) == 0 {
		return nil, errors.New("no sensors configured")
	}

	r := &Registry{byTag: make(map[string]model.SensorConfig, len(sensors))}
	for _, s := range sensors {
		tag := strings.ToUpper(strings.TrimSpace(s.Tag))
		if len(tag) != TagChars {
			return nil, fmt.Errorf("sensor %s: tag %q must be %d hex characters", s.ID, s.Tag, TagChars)
		}
		for i := 0; i < len(tag); i++ {
			if !isHexChar(tag[i]) {
				return nil, fmt.Errorf("sensor %s: tag %q is not hexadecimal", s.ID, s.Tag)
			}
		}
		if dup, exists := r.byTag[tag]; exists {
			return nil, fmt.Errorf("sensor %s: tag %q already used by %s", s.ID, tag, dup.ID)
		}
		s.Tag = tag
		r.byTag[tag] = s
		r.ordered = append(r.ordered, s)
	}
	return r, nil
}

// Resolve looks up a sensor by its uppercase tag
func (r *Registry) Resolve(tag string) (model.SensorConfig, bool) {
	s, ok := r.byTag[tag]
	return s, ok
}

// Sensors returns the configured sensors in registration order
func (r *Registry) Sensors() []model.SensorConfig {
	out := make([]model.SensorConfig, len(r.ordered))
	copy(out, r.ordered)
	return out
}

// Decoder turns raw payloads into frames. Stateless, safe for concurrent use.
type Decoder struct {
	registry *Registry
}

// NewDecoder creates a decoder over the given sensor registry
func NewDecoder(registry *Registry) *Decoder {
	return &Decoder{registry: registry}
}

// Decode parses one raw payload through its uppercase hex rendering.
// A partial trailing group is dropped silently, anything past the seventh
// group is ignored, and no unit conversion is applied to sample values.
func (d *Decoder) Decode(raw []byte) (*model.Frame, error) {
	text := encodeUpperHex(raw)
	if len(text) < MinFrameChars {
		return nil, fmt.Errorf("%w: %d hex chars, need at least %d", ErrMalformedFrame, len(text), MinFrameChars)
	}

	tag := text[:TagChars]
	sensor, ok := d.registry.Resolve(tag)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSensor, tag)
	}

	groups := (len(text) - HeaderChars) / GroupChars
	if groups > MaxGroups {
		groups = MaxGroups
	}

	frame := &model.Frame{
		Sensor:   sensor.ID,
		Tag:      tag,
		Sequence: hexVal(text[TagChars]),
		ChannelA: make([]float64, 0, groups),
		ChannelB: make([]float64, 0, groups),
	}
	for i := 0; i < groups; i++ {
		group := text[HeaderChars+i*GroupChars : HeaderChars+(i+1)*GroupChars]
		frame.ChannelA = append(frame.ChannelA, parseField(group[channelAOff:channelAOff+fieldChars]))
		frame.ChannelB = append(frame.ChannelB, parseField(group[channelBOff:channelBOff+fieldChars]))
	}
	return frame, nil
}

const upperHex = "0123456789ABCDEF"

func encodeUpperHex(raw []byte) string {
	var b strings.Builder
	b.Grow(len(raw) * 2)
	for _, v := range raw {
		b.WriteByte(upperHex[v>>4])
		b.WriteByte(upperHex[v&0x0F])
	}
	return b.String()
}

// parseField interprets 6 uppercase hex chars as a big-endian unsigned value
func parseField(s string) float64 {
	var v uint32
	for i := 0; i < len(s); i++ {
		v = v<<4 | uint32(hexVal(s[i]))
	}
	return float64(v)
}

func hexVal(c byte) uint8 {
	if c >= 'A' {
		return c - 'A' + 10
	}
	return c - '0'
}

func isHexChar(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'A' && c <= 'F')
}
