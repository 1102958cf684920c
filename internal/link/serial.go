// internal/link/serial.go
package link

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.bug.st/serial"
	"go.uber.org/zap"

	"telemetry-service/pkg/link"
)

// SerialBridge implements link.Bridge over a serial port, typically the
// UART side of the wireless receiver dongle.
type SerialBridge struct {
	config *SerialConfig
	port   serial.Port
	logger *zap.Logger
	mutex  sync.RWMutex
	isOpen bool
	stats  link.Stats
}

// NewSerialBridge creates a new serial bridge
func NewSerialBridge(config *SerialConfig, logger *zap.Logger) link.Bridge {
	return &SerialBridge{
		config: config,
		logger: logger.With(
			zap.String("link", "serial"),
			zap.String("port", config.Port),
		),
	}
}

// Open opens the serial port
func (sb *SerialBridge) Open(ctx context.Context) error {
	sb.mutex.Lock()
	defer sb.mutex.Unlock()

	if sb.isOpen {
		return nil
	}

	sb.logger.Info("Opening serial port",
		zap.String("port", sb.config.Port),
		zap.Int("baud_rate", sb.config.BaudRate),
	)

	// Configure serial port mode
	mode := &serial.Mode{
		BaudRate: sb.config.BaudRate,
		DataBits: sb.config.DataBits,
	}

	// Set stop bits
	switch sb.config.StopBits {
	case 2:
		mode.StopBits = serial.TwoStopBits
	default:
		mode.StopBits = serial.OneStopBit
	}

	// Set parity
	switch sb.config.Parity {
	case "odd":
		mode.Parity = serial.OddParity
	case "even":
		mode.Parity = serial.EvenParity
	default:
		mode.Parity = serial.NoParity
	}

	port, err := serial.Open(sb.config.Port, mode)
	if err != nil {
		sb.logger.Error("Failed to open serial port", zap.Error(err))
		return fmt.Errorf("failed to open serial port: %w", err)
	}

	// The read timeout bounds how long Listen takes to notice cancellation
	timeout := sb.config.ReadTimeout
	if timeout <= 0 {
		timeout = 200 * time.Millisecond
	}
	if err := port.SetReadTimeout(timeout); err != nil {
		port.Close()
		return fmt.Errorf("failed to set read timeout: %w", err)
	}

	sb.port = port
	sb.isOpen = true
	sb.stats.IsConnected = true
	sb.stats.LastActivity = time.Now()

	sb.logger.Info("Serial port opened successfully")
	return nil
}

// Close closes the serial port
func (sb *SerialBridge) Close() error {
	sb.mutex.Lock()
	defer sb.mutex.Unlock()

	if !sb.isOpen || sb.port == nil {
		return nil
	}

	if err := sb.port.Close(); err != nil {
		sb.logger.Error("Failed to close serial port", zap.Error(err))
		return fmt.Errorf("failed to close serial port: %w", err)
	}

	sb.port = nil
	sb.isOpen = false
	sb.stats.IsConnected = false

	sb.logger.Info("Serial port closed successfully")
	return nil
}

// IsOpen returns whether the port is open
func (sb *SerialBridge) IsOpen() bool {
	sb.mutex.RLock()
	defer sb.mutex.RUnlock()
	return sb.isOpen && sb.port != nil
}

// Listen reads the port until the context is cancelled or the port fails,
// delivering one raw payload per received hex line.
func (sb *SerialBridge) Listen(ctx context.Context, handler link.PayloadHandler) error {
	sb.mutex.RLock()
	port := sb.port
	open := sb.isOpen
	sb.mutex.RUnlock()

	if !open || port == nil {
		return fmt.Errorf("serial port not open")
	}

	framer := newLineFramer(
		func(raw []byte) {
			sb.mutex.Lock()
			sb.stats.FramesDelivered++
			sb.mutex.Unlock()
			handler(raw)
		},
		func() {
			sb.mutex.Lock()
			sb.stats.LinkNoise++
			sb.mutex.Unlock()
			sb.logger.Debug("Discarded undecodable serial line")
		},
	)

	buffer := make([]byte, 512)
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		n, err := port.Read(buffer)
		if err != nil {
			if ctx.Err() != nil || !sb.IsOpen() {
				return nil
			}
			sb.mutex.Lock()
			sb.stats.ErrorCount++
			sb.mutex.Unlock()
			sb.logger.Error("Serial read failed", zap.Error(err))
			return fmt.Errorf("serial read failed: %w", err)
		}
		if n == 0 {
			// Read timeout expired, poll the context again
			continue
		}

		sb.mutex.Lock()
		sb.stats.BytesRead += uint64(n)
		sb.stats.LastActivity = time.Now()
		sb.mutex.Unlock()

		framer.Feed(buffer[:n])
	}
}

// Kind returns the transport kind
func (sb *SerialBridge) Kind() link.Kind {
	return link.KindSerial
}

// Stats returns a snapshot of link activity counters
func (sb *SerialBridge) Stats() link.Stats {
	sb.mutex.RLock()
	defer sb.mutex.RUnlock()
	return sb.stats
}
