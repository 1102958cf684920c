// internal/discovery/serial/scanner.go
package serial

import (
	"context"
	"fmt"
	"time"

	"go.bug.st/serial"
	"go.uber.org/zap"

	"telemetry-service/internal/discovery"
	"telemetry-service/pkg/link"
)

const probeBufferSize = 4096

// Config for the serial scanner
type Config struct {
	ProbeTimeout time.Duration
	BaudRates    []int
	Tags         []string
	// ActivePort reports the port held by a running session; that port
	// is never probed.
	ActivePort func() string
}

// Scanner sniffs serial ports for receiver frame traffic
type Scanner struct {
	logger *zap.Logger
	config *Config
}

// NewScanner creates a new serial scanner
func NewScanner(logger *zap.Logger, config *Config) *Scanner {
	if config == nil {
		config = &Config{}
	}
	if config.ProbeTimeout <= 0 {
		config.ProbeTimeout = 2 * time.Second
	}
	if len(config.BaudRates) == 0 {
		config.BaudRates = []int{115200, 57600}
	}

	return &Scanner{
		logger: logger.With(zap.String("scanner", "serial")),
		config: config,
	}
}

// Kind returns the transport kind this scanner probes
func (s *Scanner) Kind() link.Kind {
	return link.KindSerial
}

// IsAvailable checks if serial scanning is available
func (s *Scanner) IsAvailable() bool {
	return true
}

// Scan probes every serial port for frame traffic
func (s *Scanner) Scan(ctx context.Context) ([]*discovery.Candidate, error) {
	s.logger.Info("Starting serial port scan")

	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to get serial ports: %w", err)
	}

	if len(ports) == 0 {
		s.logger.Info("No serial ports found")
		return []*discovery.Candidate{}, nil
	}

	s.logger.Info("Found serial ports", zap.Strings("ports", ports))

	activePort := ""
	if s.config.ActivePort != nil {
		activePort = s.config.ActivePort()
	}

	var discovered []*discovery.Candidate
	for _, port := range ports {
		select {
		case <-ctx.Done():
			return discovered, ctx.Err()
		default:
		}

		if port != "" && port == activePort {
			s.logger.Info("Skipping port held by active session", zap.String("port", port))
			continue
		}

		if candidate := s.probePort(ctx, port); candidate != nil {
			discovered = append(discovered, candidate)
		}
	}

	s.logger.Info("Serial scan completed", zap.Int("candidates_found", len(discovered)))
	return discovered, nil
}

// probePort listens briefly at each configured baud rate and grades what it
// hears. A configured sensor tag in the traffic marks the port as a bridge;
// plain hex lines only make it a possible one.
func (s *Scanner) probePort(ctx context.Context, port string) *discovery.Candidate {
	var fallback *discovery.Candidate

	for _, baud := range s.config.BaudRates {
		if ctx.Err() != nil {
			return fallback
		}

		grade, err := s.sniff(ctx, port, baud)
		if err != nil {
			s.logger.Debug("Port probe failed",
				zap.String("port", port),
				zap.Int("baud_rate", baud),
				zap.Error(err),
			)
			continue
		}

		if len(grade.MatchedTags) > 0 {
			return &discovery.Candidate{
				LinkKind: link.KindSerial,
				ConnectionInfo: map[string]interface{}{
					"port":      port,
					"baud_rate": baud,
				},
				Label:       fmt.Sprintf("%s @ %d", port, baud),
				MatchedTags: grade.MatchedTags,
				Confidence:  0.9,
				Location:    port,
			}
		}

		if grade.HexLines > 0 && fallback == nil {
			fallback = &discovery.Candidate{
				LinkKind: link.KindSerial,
				ConnectionInfo: map[string]interface{}{
					"port":      port,
					"baud_rate": baud,
				},
				Label:      fmt.Sprintf("%s @ %d", port, baud),
				Confidence: 0.4,
				Location:   port,
			}
		}
	}

	return fallback
}

// sniff captures traffic from the port for the probe window
func (s *Scanner) sniff(ctx context.Context, portName string, baud int) (*discovery.TrafficGrade, error) {
	port, err := serial.Open(portName, &serial.Mode{BaudRate: baud, DataBits: 8})
	if err != nil {
		return nil, err
	}
	defer port.Close()

	if err := port.SetReadTimeout(100 * time.Millisecond); err != nil {
		return nil, err
	}

	deadline := time.Now().Add(s.config.ProbeTimeout)
	data := make([]byte, 0, probeBufferSize)
	chunk := make([]byte, 256)

	for time.Now().Before(deadline) && len(data) < probeBufferSize {
		if ctx.Err() != nil {
			break
		}

		n, err := port.Read(chunk)
		if err != nil {
			break
		}
		if n > 0 {
			data = append(data, chunk[:n]...)
		}
	}

	return discovery.GradeTraffic(data, s.config.Tags), nil
}
