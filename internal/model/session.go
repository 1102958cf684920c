// internal/model/session.go
package model

import (
	"time"

	"github.com/google/uuid"
)

// SessionState represents the lifecycle state of a capture session
type SessionState string

const (
	SessionStarting SessionState = "STARTING"
	SessionRunning  SessionState = "RUNNING"
	SessionStopped  SessionState = "STOPPED"
)

// Stop reasons recorded on the terminal transition
const (
	StopReasonUser      = "user_request"
	StopReasonTransport = "transport_failure"
	StopReasonShutdown  = "service_shutdown"
)

// SessionInfo describes one capture session. Transitions are one-way:
// STARTING -> RUNNING -> STOPPED, no resume; a new session gets a new ID
// and empty per-sensor state.
type SessionInfo struct {
	ID         uuid.UUID    `json:"id"`
	State      SessionState `json:"state"`
	LinkKind   string       `json:"link_kind"`
	StartedAt  time.Time    `json:"started_at"`
	StoppedAt  *time.Time   `json:"stopped_at,omitempty"`
	StopReason string       `json:"stop_reason,omitempty"`
}

// IsActive reports whether the session still accepts payloads
func (s *SessionInfo) IsActive() bool {
	return s.State == SessionStarting || s.State == SessionRunning
}

// SessionSummary is the end-of-session report built once on stop
type SessionSummary struct {
	Session         SessionInfo   `json:"session"`
	DurationSeconds float64       `json:"duration_seconds"`
	Sensors         []SensorStats `json:"sensors"`
	Rejected        RejectCounts  `json:"rejected"`
	FramesDelivered uint64        `json:"frames_delivered"`
}
