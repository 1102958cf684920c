// internal/discovery/usb/database.go
package usb

import (
	"github.com/google/gousb"
)

// BridgeDatabase contains known receiver dongle and UART bridge silicon
type BridgeDatabase struct {
	vendors map[gousb.ID]*VendorInfo
}

// VendorInfo contains vendor-specific information
type VendorInfo struct {
	Name     string
	products map[gousb.ID]*ProductInfo
}

// ProductInfo contains product-specific information
type ProductInfo struct {
	Model      string
	Confidence float64
}

// NewBridgeDatabase creates and initializes the bridge database
func NewBridgeDatabase() *BridgeDatabase {
	db := &BridgeDatabase{
		vendors: make(map[gousb.ID]*VendorInfo),
	}
	db.initializeDatabase()
	return db
}

// initializeDatabase populates the known bridge silicon
func (db *BridgeDatabase) initializeDatabase() {
	// Nordic Semiconductor (0x1915): nRF radio dongles
	nordicVendor := &VendorInfo{
		Name:     "Nordic Semiconductor ASA",
		products: make(map[gousb.ID]*ProductInfo),
	}
	nordicVendor.products[0x520F] = &ProductInfo{
		Model:      "nRF52840 Dongle",
		Confidence: 0.9,
	}
	nordicVendor.products[0x521F] = &ProductInfo{
		Model:      "nRF52840 DFU Bootloader",
		Confidence: 0.7,
	}
	db.vendors[0x1915] = nordicVendor

	// Silicon Labs (0x10C4): CP210x UART bridges
	silabsVendor := &VendorInfo{
		Name:     "Silicon Laboratories",
		products: make(map[gousb.ID]*ProductInfo),
	}
	silabsVendor.products[0xEA60] = &ProductInfo{
		Model:      "CP2102/CP2102N UART Bridge",
		Confidence: 0.85,
	}
	silabsVendor.products[0xEA70] = &ProductInfo{
		Model:      "CP2105 Dual UART Bridge",
		Confidence: 0.8,
	}
	db.vendors[0x10C4] = silabsVendor

	// FTDI (0x0403): FT-series UART bridges
	ftdiVendor := &VendorInfo{
		Name:     "Future Technology Devices International",
		products: make(map[gousb.ID]*ProductInfo),
	}
	ftdiVendor.products[0x6001] = &ProductInfo{
		Model:      "FT232R UART Bridge",
		Confidence: 0.85,
	}
	ftdiVendor.products[0x6015] = &ProductInfo{
		Model:      "FT231X UART Bridge",
		Confidence: 0.85,
	}
	db.vendors[0x0403] = ftdiVendor

	// WCH (0x1A86): CH34x UART bridges
	wchVendor := &VendorInfo{
		Name:     "Nanjing Qinheng Microelectronics",
		products: make(map[gousb.ID]*ProductInfo),
	}
	wchVendor.products[0x7523] = &ProductInfo{
		Model:      "CH340 UART Bridge",
		Confidence: 0.8,
	}
	wchVendor.products[0x55D4] = &ProductInfo{
		Model:      "CH9102 UART Bridge",
		Confidence: 0.8,
	}
	db.vendors[0x1A86] = wchVendor
}

// IsKnownVendor checks if a vendor ID is in the database
func (db *BridgeDatabase) IsKnownVendor(vendorID gousb.ID) bool {
	_, exists := db.vendors[vendorID]
	return exists
}

// GetVendorInfo retrieves vendor information
func (db *BridgeDatabase) GetVendorInfo(vendorID gousb.ID) *VendorInfo {
	return db.vendors[vendorID]
}

// GetProductInfo retrieves product information from vendor
func (vi *VendorInfo) GetProductInfo(productID gousb.ID) *ProductInfo {
	return vi.products[productID]
}

// GetTotalProductCount returns total number of known products
func (db *BridgeDatabase) GetTotalProductCount() int {
	total := 0
	for _, vendor := range db.vendors {
		total += len(vendor.products)
	}
	return total
}
