// internal/discovery/scanner.go
package discovery

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"telemetry-service/pkg/link"
)

// Scanner probes one transport kind for receiver bridges
type Scanner interface {
	Scan(ctx context.Context) ([]*Candidate, error)
	Kind() link.Kind
	IsAvailable() bool
}

// Candidate represents a probed endpoint that may be a receiver bridge
type Candidate struct {
	LinkKind       link.Kind              `json:"link_kind"`
	ConnectionInfo map[string]interface{} `json:"connection_info"`
	Label          string                 `json:"label"`
	MatchedTags    []string               `json:"matched_tags,omitempty"`
	Confidence     float64                `json:"confidence"` // 0.0-1.0
	SerialNumber   string                 `json:"serial_number,omitempty"`
	Location       string                 `json:"location,omitempty"`
}

// Manager runs all registered scanners
type Manager struct {
	scanners map[link.Kind]Scanner
	logger   *zap.Logger
}

// NewManager creates a new scanner manager
func NewManager(logger *zap.Logger) *Manager {
	return &Manager{
		scanners: make(map[link.Kind]Scanner),
		logger:   logger,
	}
}

// Register registers a bridge scanner
func (m *Manager) Register(scanner Scanner) {
	kind := scanner.Kind()
	m.scanners[kind] = scanner
	m.logger.Info("Scanner registered", zap.String("kind", string(kind)))
}

// ScanAll runs every available scanner, collecting what each one finds
func (m *Manager) ScanAll(ctx context.Context) ([]*Candidate, error) {
	var all []*Candidate

	for kind, scanner := range m.scanners {
		if !scanner.IsAvailable() {
			m.logger.Debug("Scanner not available, skipping", zap.String("kind", string(kind)))
			continue
		}

		candidates, err := scanner.Scan(ctx)
		if err != nil {
			m.logger.Error("Scanner failed", zap.String("kind", string(kind)), zap.Error(err))
			continue
		}

		all = append(all, candidates...)
		m.logger.Info("Scanner completed",
			zap.String("kind", string(kind)),
			zap.Int("candidates_found", len(candidates)),
		)
	}

	return all, nil
}

// ScanByKind runs one scanner
func (m *Manager) ScanByKind(ctx context.Context, kind link.Kind) ([]*Candidate, error) {
	scanner, exists := m.scanners[kind]
	if !exists {
		return nil, fmt.Errorf("no scanner for kind: %s", kind)
	}

	if !scanner.IsAvailable() {
		return nil, fmt.Errorf("scanner not available: %s", kind)
	}

	return scanner.Scan(ctx)
}

// AvailableKinds returns the kinds whose scanners can run right now
func (m *Manager) AvailableKinds() []link.Kind {
	var available []link.Kind
	for kind, scanner := range m.scanners {
		if scanner.IsAvailable() {
			available = append(available, kind)
		}
	}
	return available
}
