// internal/link/usb.go
package link

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/gousb"
	"go.uber.org/zap"

	"telemetry-service/pkg/link"
)

// USBBridge implements link.Bridge over a bulk IN endpoint, for receiver
// dongles that enumerate as raw USB devices instead of serial ports.
type USBBridge struct {
	config  *USBConfig
	ctx     *gousb.Context
	device  *gousb.Device
	intf    *gousb.Interface
	release func()
	inEndpt *gousb.InEndpoint
	logger  *zap.Logger
	mutex   sync.RWMutex
	isOpen  bool
	stats   link.Stats
}

// NewUSBBridge creates a new USB bridge
func NewUSBBridge(config *USBConfig, logger *zap.Logger) link.Bridge {
	return &USBBridge{
		config: config,
		logger: logger.With(
			zap.String("link", "usb"),
			zap.String("vendor_id", config.VendorID),
			zap.String("product_id", config.ProductID),
		),
	}
}

// Open opens the USB device and claims its default interface
func (ub *USBBridge) Open(ctx context.Context) error {
	ub.mutex.Lock()
	defer ub.mutex.Unlock()

	if ub.isOpen {
		return nil
	}

	ub.logger.Info("Opening USB device",
		zap.String("vendor_id", ub.config.VendorID),
		zap.String("product_id", ub.config.ProductID),
		zap.Int("endpoint", ub.config.Endpoint),
	)

	vendorID, err := parseHexID(ub.config.VendorID)
	if err != nil {
		return fmt.Errorf("invalid vendor ID: %w", err)
	}

	productID, err := parseHexID(ub.config.ProductID)
	if err != nil {
		return fmt.Errorf("invalid product ID: %w", err)
	}

	ub.ctx = gousb.NewContext()

	device, err := ub.findAndOpenDevice(vendorID, productID)
	if err != nil {
		ub.ctx.Close()
		ub.ctx = nil
		return fmt.Errorf("failed to find USB device: %w", err)
	}

	intf, done, err := device.DefaultInterface()
	if err != nil {
		device.Close()
		ub.ctx.Close()
		ub.ctx = nil
		return fmt.Errorf("failed to claim interface: %w", err)
	}

	inEndpt, err := intf.InEndpoint(ub.config.Endpoint)
	if err != nil {
		done()
		device.Close()
		ub.ctx.Close()
		ub.ctx = nil
		return fmt.Errorf("failed to get in endpoint: %w", err)
	}

	ub.device = device
	ub.intf = intf
	ub.release = done
	ub.inEndpt = inEndpt
	ub.isOpen = true
	ub.stats.IsConnected = true
	ub.stats.LastActivity = time.Now()

	ub.logger.Info("USB device opened successfully")
	return nil
}

// Close releases the interface and closes the device
func (ub *USBBridge) Close() error {
	ub.mutex.Lock()
	defer ub.mutex.Unlock()

	if !ub.isOpen {
		return nil
	}

	if ub.release != nil {
		ub.release()
		ub.release = nil
	}
	ub.intf = nil

	if ub.device != nil {
		ub.device.Close()
		ub.device = nil
	}

	if ub.ctx != nil {
		ub.ctx.Close()
		ub.ctx = nil
	}

	ub.inEndpt = nil
	ub.isOpen = false
	ub.stats.IsConnected = false

	ub.logger.Info("USB device closed successfully")
	return nil
}

// IsOpen returns whether the device is open
func (ub *USBBridge) IsOpen() bool {
	ub.mutex.RLock()
	defer ub.mutex.RUnlock()
	return ub.isOpen && ub.device != nil && ub.inEndpt != nil
}

// Listen reads the IN endpoint until the context is cancelled or the device
// fails, delivering one raw payload per received hex line.
func (ub *USBBridge) Listen(ctx context.Context, handler link.PayloadHandler) error {
	ub.mutex.RLock()
	inEndpt := ub.inEndpt
	open := ub.isOpen
	ub.mutex.RUnlock()

	if !open || inEndpt == nil {
		return fmt.Errorf("USB device not open")
	}

	framer := newLineFramer(
		func(raw []byte) {
			ub.mutex.Lock()
			ub.stats.FramesDelivered++
			ub.mutex.Unlock()
			handler(raw)
		},
		func() {
			ub.mutex.Lock()
			ub.stats.LinkNoise++
			ub.mutex.Unlock()
			ub.logger.Debug("Discarded undecodable USB line")
		},
	)

	buffer := make([]byte, inEndpt.Desc.MaxPacketSize)
	for {
		n, err := inEndpt.ReadContext(ctx, buffer)
		if err != nil {
			if ctx.Err() != nil || !ub.IsOpen() {
				return nil
			}
			ub.mutex.Lock()
			ub.stats.ErrorCount++
			ub.mutex.Unlock()
			ub.logger.Error("USB read failed", zap.Error(err))
			return fmt.Errorf("usb read failed: %w", err)
		}
		if n == 0 {
			continue
		}

		ub.mutex.Lock()
		ub.stats.BytesRead += uint64(n)
		ub.stats.LastActivity = time.Now()
		ub.mutex.Unlock()

		framer.Feed(buffer[:n])
	}
}

// Kind returns the transport kind
func (ub *USBBridge) Kind() link.Kind {
	return link.KindUSB
}

// Stats returns a snapshot of link activity counters
func (ub *USBBridge) Stats() link.Stats {
	ub.mutex.RLock()
	defer ub.mutex.RUnlock()
	return ub.stats
}

// Helper methods

// parseHexID parses a hex ID string (0x1234 or 1234)
func parseHexID(hexStr string) (gousb.ID, error) {
	if len(hexStr) > 2 && hexStr[:2] == "0x" {
		hexStr = hexStr[2:]
	}

	id, err := strconv.ParseUint(hexStr, 16, 16)
	if err != nil {
		return 0, err
	}

	return gousb.ID(id), nil
}

// findAndOpenDevice finds and opens the USB device by vendor and product ID
func (ub *USBBridge) findAndOpenDevice(vendorID, productID gousb.ID) (*gousb.Device, error) {
	devices, err := ub.ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		return desc.Vendor == vendorID && desc.Product == productID
	})
	if err != nil {
		// OpenDevices can hand back opened devices alongside the error
		for _, device := range devices {
			device.Close()
		}
		return nil, fmt.Errorf("failed to enumerate USB devices: %w", err)
	}

	if len(devices) == 0 {
		return nil, fmt.Errorf("USB device not found (VID: %04X, PID: %04X)", uint16(vendorID), uint16(productID))
	}

	if len(devices) > 1 {
		for i := 1; i < len(devices); i++ {
			devices[i].Close()
		}
		ub.logger.Warn("Multiple matching USB devices found, using first one")
	}

	return devices[0], nil
}
