// internal/model/event.go
package model

import (
	"time"

	"github.com/google/uuid"
)

// JSONObject is a free-form JSON payload attached to events
type JSONObject map[string]interface{}

// EventType represents the type of event
type EventType string

const (
	EventSessionStarted EventType = "SESSION_STARTED"
	EventSessionStopped EventType = "SESSION_STOPPED"
	EventSensorStats    EventType = "SENSOR_STATS"
	EventFrameRejected  EventType = "FRAME_REJECTED"
	EventLinkError      EventType = "LINK_ERROR"
	EventScanCompleted  EventType = "SCAN_COMPLETED"
)

// TelemetryEvent represents an event in the system
type TelemetryEvent struct {
	ID        uuid.UUID  `json:"id"`
	EventType EventType  `json:"event_type"`
	Sensor    SensorID   `json:"sensor,omitempty"`
	Data      JSONObject `json:"data"`
	Timestamp time.Time  `json:"timestamp"`
	Source    string     `json:"source"`
	Severity  string     `json:"severity"` // INFO, WARNING, ERROR
}

// Event severities
const (
	SeverityInfo    = "INFO"
	SeverityWarning = "WARNING"
	SeverityError   = "ERROR"
)
