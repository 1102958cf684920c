// internal/link/registry.go
package link

import (
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"telemetry-service/internal/model"
	"telemetry-service/pkg/link"
)

// BridgeFactory creates a bridge for one transport kind
type BridgeFactory func(cfg *Config, sensors []model.SensorConfig, logger *zap.Logger) (link.Bridge, error)

// Registry manages bridge registration and creation
type Registry struct {
	factories map[link.Kind]BridgeFactory
	mu        sync.RWMutex
	logger    *zap.Logger
}

// NewRegistry creates a new bridge registry
func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{
		factories: make(map[link.Kind]BridgeFactory),
		logger:    logger,
	}
}

// Register registers a bridge factory for a transport kind
func (r *Registry) Register(kind link.Kind, factory BridgeFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.factories[kind] = factory
	r.logger.Info("Bridge registered", zap.String("kind", string(kind)))
}

// Create builds a bridge for the configured transport kind
func (r *Registry) Create(cfg *Config, sensors []model.SensorConfig) (link.Bridge, error) {
	r.mu.RLock()
	factory, exists := r.factories[cfg.Kind]
	r.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("unsupported link kind: %s", cfg.Kind)
	}

	return factory(cfg, sensors, r.logger)
}

// IsSupported checks whether a transport kind has a registered factory
func (r *Registry) IsSupported(kind link.Kind) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, exists := r.factories[kind]
	return exists
}

// Kinds returns all registered transport kinds
func (r *Registry) Kinds() []link.Kind {
	r.mu.RLock()
	defer r.mu.RUnlock()

	kinds := make([]link.Kind, 0, len(r.factories))
	for kind := range r.factories {
		kinds = append(kinds, kind)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// RegisterDefaultBridges registers all built-in transports
func RegisterDefaultBridges(registry *Registry) {
	registry.Register(link.KindSerial, func(cfg *Config, _ []model.SensorConfig, logger *zap.Logger) (link.Bridge, error) {
		if cfg.Serial.Port == "" {
			return nil, fmt.Errorf("serial port is required")
		}
		return NewSerialBridge(&cfg.Serial, logger), nil
	})

	registry.Register(link.KindTCP, func(cfg *Config, _ []model.SensorConfig, logger *zap.Logger) (link.Bridge, error) {
		if cfg.TCP.Host == "" {
			return nil, fmt.Errorf("TCP host is required")
		}
		if cfg.TCP.Port < 1 || cfg.TCP.Port > 65535 {
			return nil, fmt.Errorf("invalid TCP port: %d", cfg.TCP.Port)
		}
		return NewTCPBridge(&cfg.TCP, logger), nil
	})

	registry.Register(link.KindUSB, func(cfg *Config, _ []model.SensorConfig, logger *zap.Logger) (link.Bridge, error) {
		if cfg.USB.VendorID == "" {
			return nil, fmt.Errorf("USB vendor_id is required")
		}
		if cfg.USB.ProductID == "" {
			return nil, fmt.Errorf("USB product_id is required")
		}
		return NewUSBBridge(&cfg.USB, logger), nil
	})

	registry.Register(link.KindReplay, func(cfg *Config, sensors []model.SensorConfig, logger *zap.Logger) (link.Bridge, error) {
		if cfg.Replay.DropProbability < 0 || cfg.Replay.DropProbability >= 1 {
			return nil, fmt.Errorf("replay drop probability must be in [0, 1)")
		}
		return NewReplayBridge(&cfg.Replay, sensors, logger), nil
	})
}
