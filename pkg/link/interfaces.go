// pkg/link/interfaces.go
package link

import (
	"context"
)

// PayloadHandler receives one decoded payload per delivered frame.
// Handlers must not retain the slice after returning.
type PayloadHandler func(raw []byte)

// Bridge is the main interface that all telemetry links must implement
type Bridge interface {
	// Connection management
	Open(ctx context.Context) error
	Close() error
	IsOpen() bool

	// Frame delivery
	Listen(ctx context.Context, handler PayloadHandler) error

	// Link information
	Kind() Kind
	Stats() Stats
}
