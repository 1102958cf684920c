// internal/discovery/usb/scanner.go
package usb

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/google/gousb"
	"go.uber.org/zap"

	"telemetry-service/internal/discovery"
	"telemetry-service/pkg/link"
)

// Config for the USB scanner
type Config struct {
	ScanTimeout time.Duration `json:"scan_timeout"`
	EnableDebug bool          `json:"enable_debug"`
}

// Scanner enumerates USB devices against the known bridge silicon table
type Scanner struct {
	logger       *zap.Logger
	knownBridges *BridgeDatabase
	timeout      time.Duration
	config       *Config
}

// NewScanner creates a new USB scanner
func NewScanner(logger *zap.Logger, config *Config) *Scanner {
	if config == nil {
		config = &Config{
			ScanTimeout: 10 * time.Second,
		}
	}
	if config.ScanTimeout <= 0 {
		config.ScanTimeout = 10 * time.Second
	}

	return &Scanner{
		logger:       logger.With(zap.String("scanner", "usb")),
		knownBridges: NewBridgeDatabase(),
		timeout:      config.ScanTimeout,
		config:       config,
	}
}

// Kind returns the transport kind this scanner probes
func (s *Scanner) Kind() link.Kind {
	return link.KindUSB
}

// IsAvailable checks if USB scanning is available on this system
func (s *Scanner) IsAvailable() bool {
	switch runtime.GOOS {
	case "linux", "darwin", "windows":
		return true
	default:
		s.logger.Warn("USB scanning support unknown for OS", zap.String("os", runtime.GOOS))
		return false
	}
}

// Scan enumerates USB devices and reports known bridge silicon
func (s *Scanner) Scan(ctx context.Context) ([]*discovery.Candidate, error) {
	startTime := time.Now()
	s.logger.Info("Starting USB scan",
		zap.Int("known_products", s.knownBridges.GetTotalProductCount()),
	)

	scanCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	usbCtx := gousb.NewContext()
	defer func() {
		if err := usbCtx.Close(); err != nil {
			s.logger.Warn("Failed to close USB context", zap.Error(err))
		}
	}()

	if s.config.EnableDebug {
		usbCtx.Debug(3)
	}

	devices, err := usbCtx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		return s.knownBridges.IsKnownVendor(desc.Vendor)
	})
	defer s.closeAllDevices(devices)
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate USB devices: %w", err)
	}

	var discovered []*discovery.Candidate
	for _, device := range devices {
		if scanCtx.Err() != nil {
			break
		}
		if candidate := s.identifyDevice(device); candidate != nil {
			discovered = append(discovered, candidate)
		}
	}

	sort.Slice(discovered, func(i, j int) bool {
		return discovered[i].Confidence > discovered[j].Confidence
	})

	s.logger.Info("USB scan completed",
		zap.Int("candidates_found", len(discovered)),
		zap.Duration("scan_duration", time.Since(startTime)),
	)

	return discovered, nil
}

// identifyDevice maps one opened device onto the bridge database
func (s *Scanner) identifyDevice(device *gousb.Device) *discovery.Candidate {
	desc := device.Desc
	if desc == nil {
		return nil
	}

	vendorInfo := s.knownBridges.GetVendorInfo(desc.Vendor)
	if vendorInfo == nil {
		return nil
	}

	candidate := &discovery.Candidate{
		LinkKind:       link.KindUSB,
		ConnectionInfo: s.connectionInfo(desc),
		SerialNumber:   s.serialNumber(device),
		Location:       fmt.Sprintf("usb:bus%d-addr%d", desc.Bus, desc.Address),
	}

	productInfo := vendorInfo.GetProductInfo(desc.Product)
	if productInfo == nil {
		// Known vendor, unknown product
		candidate.Label = fmt.Sprintf("%s Unknown-%04X", vendorInfo.Name, uint16(desc.Product))
		candidate.Confidence = 0.5
		return candidate
	}

	candidate.Label = fmt.Sprintf("%s %s", vendorInfo.Name, productInfo.Model)
	candidate.Confidence = productInfo.Confidence
	return candidate
}

// connectionInfo carries what a USB link config needs to open this device
func (s *Scanner) connectionInfo(desc *gousb.DeviceDesc) map[string]interface{} {
	return map[string]interface{}{
		"vendor_id":  fmt.Sprintf("0x%04X", uint16(desc.Vendor)),
		"product_id": fmt.Sprintf("0x%04X", uint16(desc.Product)),
		"bus":        desc.Bus,
		"address":    desc.Address,
	}
}

// serialNumber reads the device serial if the descriptor allows it
func (s *Scanner) serialNumber(device *gousb.Device) string {
	serial, err := device.SerialNumber()
	if err != nil {
		s.logger.Debug("Failed to read USB serial number", zap.Error(err))
		return ""
	}
	return strings.TrimSpace(serial)
}

// closeAllDevices safely closes all opened USB devices
func (s *Scanner) closeAllDevices(devices []*gousb.Device) {
	for i, device := range devices {
		if device == nil {
			continue
		}
		if err := device.Close(); err != nil {
			s.logger.Warn("Failed to close USB device",
				zap.Int("device_index", i),
				zap.Error(err),
			)
		}
	}
}
