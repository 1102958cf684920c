// pkg/link/types.go
package link

import (
	"time"
)

// Kind identifies the transport behind a bridge
type Kind string

const (
	KindSerial Kind = "serial"
	KindTCP    Kind = "tcp"
	KindUSB    Kind = "usb"
	KindReplay Kind = "replay"
)

// IsValid checks whether the kind names a known transport
func (k Kind) IsValid() bool {
	switch k {
	case KindSerial, KindTCP, KindUSB, KindReplay:
		return true
	}
	return false
}

// Stats tracks link activity counters
type Stats struct {
	FramesDelivered uint64    `json:"frames_delivered"`
	BytesRead       uint64    `json:"bytes_read"`
	LinkNoise       uint64    `json:"link_noise"`
	ErrorCount      uint64    `json:"error_count"`
	LastActivity    time.Time `json:"last_activity"`
	IsConnected     bool      `json:"is_connected"`
}
