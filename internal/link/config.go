// internal/link/config.go
package link

import (
	"time"

	"telemetry-service/pkg/link"
)

// Config selects and parameterizes the transport behind a session
type Config struct {
	Kind   link.Kind    `mapstructure:"kind" json:"kind"`
	Serial SerialConfig `mapstructure:"serial" json:"serial"`
	TCP    TCPConfig    `mapstructure:"tcp" json:"tcp"`
	USB    USBConfig    `mapstructure:"usb" json:"usb"`
	Replay ReplayConfig `mapstructure:"replay" json:"replay"`
}

// SerialConfig contains serial bridge configuration
type SerialConfig struct {
	Port        string        `mapstructure:"port" json:"port"`
	BaudRate    int           `mapstructure:"baud_rate" json:"baud_rate"`
	DataBits    int           `mapstructure:"data_bits" json:"data_bits"`
	StopBits    int           `mapstructure:"stop_bits" json:"stop_bits"`
	Parity      string        `mapstructure:"parity" json:"parity"`
	ReadTimeout time.Duration `mapstructure:"read_timeout" json:"read_timeout"`
}

// TCPConfig contains TCP bridge configuration
type TCPConfig struct {
	Host        string        `mapstructure:"host" json:"host"`
	Port        int           `mapstructure:"port" json:"port"`
	SSL         bool          `mapstructure:"ssl" json:"ssl"`
	KeepAlive   bool          `mapstructure:"keep_alive" json:"keep_alive"`
	DialTimeout time.Duration `mapstructure:"dial_timeout" json:"dial_timeout"`
	ReadTimeout time.Duration `mapstructure:"read_timeout" json:"read_timeout"`
}

// USBConfig contains USB bridge configuration
type USBConfig struct {
	VendorID  string `mapstructure:"vendor_id" json:"vendor_id"`
	ProductID string `mapstructure:"product_id" json:"product_id"`
	Endpoint  int    `mapstructure:"endpoint" json:"endpoint"`
}

// ReplayConfig contains replay bridge configuration
type ReplayConfig struct {
	SampleRateHz    int     `mapstructure:"sample_rate_hz" json:"sample_rate_hz"`
	GroupsPerFrame  int     `mapstructure:"groups_per_frame" json:"groups_per_frame"`
	DropProbability float64 `mapstructure:"drop_probability" json:"drop_probability"`
	Seed            int64   `mapstructure:"seed" json:"seed"`
}
