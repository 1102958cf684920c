// internal/discovery/tcp/scanner.go
package tcp

import (
	"context"
	"net"
	"strconv"
	"time"

	"go.uber.org/zap"

	"telemetry-service/internal/discovery"
	"telemetry-service/pkg/link"
)

const probeBufferSize = 4096

// Config for the TCP scanner
type Config struct {
	Host         string
	Port         int
	ProbeTimeout time.Duration
	DialTimeout  time.Duration
	Tags         []string
	// ActiveEndpoint reports the endpoint held by a running session; that
	// endpoint is never probed.
	ActiveEndpoint func() string
}

// Scanner probes the configured TCP endpoint for receiver frame traffic
type Scanner struct {
	logger *zap.Logger
	config *Config
}

// NewScanner creates a new TCP scanner
func NewScanner(logger *zap.Logger, config *Config) *Scanner {
	if config == nil {
		config = &Config{}
	}
	if config.ProbeTimeout <= 0 {
		config.ProbeTimeout = 2 * time.Second
	}
	if config.DialTimeout <= 0 {
		config.DialTimeout = 3 * time.Second
	}

	return &Scanner{
		logger: logger.With(zap.String("scanner", "tcp")),
		config: config,
	}
}

// Kind returns the transport kind this scanner probes
func (s *Scanner) Kind() link.Kind {
	return link.KindTCP
}

// IsAvailable checks if a TCP endpoint is configured
func (s *Scanner) IsAvailable() bool {
	return s.config.Host != "" && s.config.Port > 0
}

// Scan dials the configured endpoint and grades what it hears. A sensor
// tag in the traffic marks the endpoint as a bridge, plain hex lines only
// make it a possible one.
func (s *Scanner) Scan(ctx context.Context) ([]*discovery.Candidate, error) {
	endpoint := net.JoinHostPort(s.config.Host, strconv.Itoa(s.config.Port))

	if s.config.ActiveEndpoint != nil && endpoint == s.config.ActiveEndpoint() {
		s.logger.Info("Skipping endpoint held by active session", zap.String("endpoint", endpoint))
		return []*discovery.Candidate{}, nil
	}

	s.logger.Info("Starting TCP endpoint probe", zap.String("endpoint", endpoint))

	grade, err := s.sniff(ctx, endpoint)
	if err != nil {
		s.logger.Debug("Endpoint probe failed",
			zap.String("endpoint", endpoint),
			zap.Error(err),
		)
		return []*discovery.Candidate{}, nil
	}

	var discovered []*discovery.Candidate
	switch {
	case len(grade.MatchedTags) > 0:
		discovered = append(discovered, &discovery.Candidate{
			LinkKind: link.KindTCP,
			ConnectionInfo: map[string]interface{}{
				"host": s.config.Host,
				"port": s.config.Port,
			},
			Label:       endpoint,
			MatchedTags: grade.MatchedTags,
			Confidence:  0.9,
			Location:    endpoint,
		})
	case grade.HexLines > 0:
		discovered = append(discovered, &discovery.Candidate{
			LinkKind: link.KindTCP,
			ConnectionInfo: map[string]interface{}{
				"host": s.config.Host,
				"port": s.config.Port,
			},
			Label:      endpoint,
			Confidence: 0.4,
			Location:   endpoint,
		})
	}

	s.logger.Info("TCP scan completed", zap.Int("candidates_found", len(discovered)))
	return discovered, nil
}

// sniff captures traffic from the endpoint for the probe window
func (s *Scanner) sniff(ctx context.Context, endpoint string) (*discovery.TrafficGrade, error) {
	dialer := net.Dialer{Timeout: s.config.DialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", endpoint)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	deadline := time.Now().Add(s.config.ProbeTimeout)
	data := make([]byte, 0, probeBufferSize)
	chunk := make([]byte, 256)

	for time.Now().Before(deadline) && len(data) < probeBufferSize {
		if ctx.Err() != nil {
			break
		}

		conn.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
		n, err := conn.Read(chunk)
		if n > 0 {
			data = append(data, chunk[:n]...)
		}
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			break
		}
	}

	return discovery.GradeTraffic(data, s.config.Tags), nil
}
