// internal/link/tcp.go
package link

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"

	"telemetry-service/pkg/link"
)

// TCPBridge implements link.Bridge over a TCP stream, for receivers that
// expose their output on a network socket.
type TCPBridge struct {
	config *TCPConfig
	conn   net.Conn
	logger *zap.Logger
	mutex  sync.RWMutex
	isOpen bool
	stats  link.Stats
}

// NewTCPBridge creates a new TCP bridge
func NewTCPBridge(config *TCPConfig, logger *zap.Logger) link.Bridge {
	return &TCPBridge{
		config: config,
		logger: logger.With(
			zap.String("link", "tcp"),
			zap.String("host", config.Host),
			zap.Int("port", config.Port),
		),
	}
}

// Open opens the TCP connection
func (tb *TCPBridge) Open(ctx context.Context) error {
	tb.mutex.Lock()
	defer tb.mutex.Unlock()

	if tb.isOpen {
		return nil
	}

	tb.logger.Info("Opening TCP connection",
		zap.String("host", tb.config.Host),
		zap.Int("port", tb.config.Port),
		zap.Bool("ssl", tb.config.SSL),
	)

	dialTimeout := tb.config.DialTimeout
	if dialTimeout <= 0 {
		dialTimeout = 10 * time.Second
	}

	dialer := &net.Dialer{
		Timeout:   dialTimeout,
		KeepAlive: 30 * time.Second,
	}

	address := fmt.Sprintf("%s:%d", tb.config.Host, tb.config.Port)

	var conn net.Conn
	var err error

	if tb.config.SSL {
		tlsConfig := &tls.Config{
			ServerName: tb.config.Host,
		}
		conn, err = tls.DialWithDialer(dialer, "tcp", address, tlsConfig)
	} else {
		conn, err = dialer.DialContext(ctx, "tcp", address)
	}

	if err != nil {
		tb.logger.Error("Failed to open TCP connection", zap.Error(err))
		return fmt.Errorf("failed to connect to %s: %w", address, err)
	}

	if tcpConn, ok := conn.(*net.TCPConn); ok && tb.config.KeepAlive {
		tcpConn.SetKeepAlive(true)
		tcpConn.SetKeepAlivePeriod(30 * time.Second)
	}

	tb.conn = conn
	tb.isOpen = true
	tb.stats.IsConnected = true
	tb.stats.LastActivity = time.Now()

	tb.logger.Info("TCP connection opened successfully")
	return nil
}

// Close closes the TCP connection
func (tb *TCPBridge) Close() error {
	tb.mutex.Lock()
	defer tb.mutex.Unlock()

	if !tb.isOpen || tb.conn == nil {
		return nil
	}

	if err := tb.conn.Close(); err != nil {
		tb.logger.Error("Failed to close TCP connection", zap.Error(err))
		return fmt.Errorf("failed to close TCP connection: %w", err)
	}

	tb.conn = nil
	tb.isOpen = false
	tb.stats.IsConnected = false

	tb.logger.Info("TCP connection closed successfully")
	return nil
}

// IsOpen returns whether the connection is open
func (tb *TCPBridge) IsOpen() bool {
	tb.mutex.RLock()
	defer tb.mutex.RUnlock()
	return tb.isOpen && tb.conn != nil
}

// Listen reads the stream until the context is cancelled or the peer fails,
// delivering one raw payload per received hex line.
func (tb *TCPBridge) Listen(ctx context.Context, handler link.PayloadHandler) error {
	tb.mutex.RLock()
	conn := tb.conn
	open := tb.isOpen
	tb.mutex.RUnlock()

	if !open || conn == nil {
		return fmt.Errorf("TCP connection not open")
	}

	framer := newLineFramer(
		func(raw []byte) {
			tb.mutex.Lock()
			tb.stats.FramesDelivered++
			tb.mutex.Unlock()
			handler(raw)
		},
		func() {
			tb.mutex.Lock()
			tb.stats.LinkNoise++
			tb.mutex.Unlock()
			tb.logger.Debug("Discarded undecodable TCP line")
		},
	)

	readTimeout := tb.config.ReadTimeout
	if readTimeout <= 0 {
		readTimeout = 200 * time.Millisecond
	}

	buffer := make([]byte, 4096)
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		conn.SetReadDeadline(time.Now().Add(readTimeout))
		n, err := conn.Read(buffer)
		if n > 0 {
			tb.mutex.Lock()
			tb.stats.BytesRead += uint64(n)
			tb.stats.LastActivity = time.Now()
			tb.mutex.Unlock()

			framer.Feed(buffer[:n])
		}
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				// Deadline expired, poll the context again
				continue
			}
			if ctx.Err() != nil || !tb.IsOpen() {
				return nil
			}
			tb.mutex.Lock()
			tb.stats.ErrorCount++
			tb.mutex.Unlock()
			tb.logger.Error("TCP read failed", zap.Error(err))
			return fmt.Errorf("tcp read failed: %w", err)
		}
	}
}

// Kind returns the transport kind
func (tb *TCPBridge) Kind() link.Kind {
	return link.KindTCP
}

// Stats returns a snapshot of link activity counters
func (tb *TCPBridge) Stats() link.Stats {
	tb.mutex.RLock()
	defer tb.mutex.RUnlock()
	return tb.stats
}
