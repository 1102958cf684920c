// internal/service/discovery_service.go
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"telemetry-service/internal/config"
	"telemetry-service/internal/discovery"
	"telemetry-service/internal/discovery/serial"
	"telemetry-service/internal/discovery/tcp"
	"telemetry-service/internal/discovery/usb"
	"telemetry-service/internal/model"
	"telemetry-service/internal/utils"
	"telemetry-service/pkg/link"
)

// DiscoveryService runs bridge scans on demand
type DiscoveryService struct {
	manager   *discovery.Manager
	config    *config.Config
	logger    *utils.ServiceLogger
	reporter  *utils.ReportLogger
	eventSink func(model.TelemetryEvent)
}

// NewDiscoveryService creates a new discovery service. activeEndpoint
// reports the port or endpoint a running session holds on the given
// transport so probes leave it alone.
func NewDiscoveryService(cfg *config.Config, logger *zap.Logger, activeEndpoint func(link.Kind) string) *DiscoveryService {
	ds := &DiscoveryService{
		manager:  discovery.NewManager(logger),
		config:   cfg,
		logger:   utils.NewServiceLogger(logger, "discovery-service"),
		reporter: utils.NewReportLogger(logger),
	}

	ds.initializeScanners(activeEndpoint)

	return ds
}

// initializeScanners registers all available scanners
func (ds *DiscoveryService) initializeScanners(activeEndpoint func(link.Kind) string) {
	if activeEndpoint == nil {
		activeEndpoint = func(link.Kind) string { return "" }
	}

	tags := make([]string, 0, len(ds.config.Sensors))
	for _, sensor := range ds.config.Sensors {
		tags = append(tags, sensor.Tag)
	}

	serialScanner := serial.NewScanner(ds.logger.Logger, &serial.Config{
		ProbeTimeout: ds.config.Discovery.ProbeTimeout,
		BaudRates:    ds.config.Discovery.BaudRates,
		Tags:         tags,
		ActivePort:   func() string { return activeEndpoint(link.KindSerial) },
	})
	if serialScanner.IsAvailable() {
		ds.manager.Register(serialScanner)
	}

	tcpScanner := tcp.NewScanner(ds.logger.Logger, &tcp.Config{
		Host:           ds.config.Link.TCP.Host,
		Port:           ds.config.Link.TCP.Port,
		ProbeTimeout:   ds.config.Discovery.ProbeTimeout,
		DialTimeout:    ds.config.Link.TCP.DialTimeout,
		Tags:           tags,
		ActiveEndpoint: func() string { return activeEndpoint(link.KindTCP) },
	})
	if tcpScanner.IsAvailable() {
		ds.manager.Register(tcpScanner)
	}

	if usbScanner := usb.NewScanner(ds.logger.Logger, nil); usbScanner.IsAvailable() {
		ds.manager.Register(usbScanner)
	}

	ds.logger.Info("Discovery scanners initialized",
		zap.Int("available_scanners", len(ds.manager.AvailableKinds())),
	)
}

// SetEventSink registers the callback that receives scan events
func (ds *DiscoveryService) SetEventSink(sink func(model.TelemetryEvent)) {
	ds.eventSink = sink
}

// Scan probes for receiver bridges. An empty kind scans every available
// transport.
func (ds *DiscoveryService) Scan(ctx context.Context, kind link.Kind) ([]*discovery.Candidate, error) {
	startTime := time.Now()

	var candidates []*discovery.Candidate
	var err error
	switch kind {
	case "":
		candidates, err = ds.manager.ScanAll(ctx)
	case link.KindSerial, link.KindTCP, link.KindUSB:
		candidates, err = ds.manager.ScanByKind(ctx, kind)
	default:
		return nil, fmt.Errorf("unsupported scan kind: %s", kind)
	}
	if err != nil {
		return nil, fmt.Errorf("scan failed: %w", err)
	}

	duration := time.Since(startTime)
	scanned := string(kind)
	if scanned == "" {
		scanned = "all"
	}

	ds.reporter.LogScanReport(scanned, len(candidates), duration)
	ds.emitScanCompleted(scanned, len(candidates), duration)

	return candidates, nil
}

// AvailableKinds lists transports whose scanners can run right now
func (ds *DiscoveryService) AvailableKinds() []link.Kind {
	return ds.manager.AvailableKinds()
}

// emitScanCompleted pushes a scan result event to the registered sink
func (ds *DiscoveryService) emitScanCompleted(kind string, found int, duration time.Duration) {
	if ds.eventSink == nil {
		return
	}

	ds.eventSink(model.TelemetryEvent{
		ID:        uuid.New(),
		EventType: model.EventScanCompleted,
		Data: model.JSONObject{
			"kind":        kind,
			"found":       found,
			"duration_ms": duration.Milliseconds(),
		},
		Timestamp: time.Now(),
		Source:    "discovery-service",
		Severity:  model.SeverityInfo,
	})
}
