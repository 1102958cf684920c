// internal/config/config.go
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"telemetry-service/internal/link"
	"telemetry-service/internal/model"
)

// Config represents the application configuration
type Config struct {
	Server    ServerConfig         `mapstructure:"server"`
	Logging   LoggingConfig        `mapstructure:"logging"`
	Session   SessionConfig        `mapstructure:"session"`
	Sensors   []model.SensorConfig `mapstructure:"sensors"`
	Link      link.Config          `mapstructure:"link"`
	Stream    StreamConfig         `mapstructure:"stream"`
	Console   ConsoleConfig        `mapstructure:"console"`
	Discovery DiscoveryConfig      `mapstructure:"discovery"`
	App       AppConfig            `mapstructure:"app"`
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Host           string        `mapstructure:"host" validate:"required"`
	Port           string        `mapstructure:"port" validate:"required"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	IdleTimeout    time.Duration `mapstructure:"idle_timeout"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
	TLS            TLSConfig     `mapstructure:"tls"`
}

// TLSConfig represents TLS configuration
type TLSConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	CertFile string `mapstructure:"cert_file"`
	KeyFile  string `mapstructure:"key_file"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level      string `mapstructure:"level" validate:"required"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
}

// SessionConfig represents acquisition session configuration
type SessionConfig struct {
	SampleRateHz  int     `mapstructure:"sample_rate_hz"`
	WindowSeconds float64 `mapstructure:"window_seconds"`
	AutoStart     bool    `mapstructure:"auto_start"`
}

// StreamConfig represents websocket streaming configuration
type StreamConfig struct {
	Interval time.Duration `mapstructure:"interval"`
}

// ConsoleConfig represents the terminal live view configuration
type ConsoleConfig struct {
	Enabled bool `mapstructure:"enabled"`
	FPS     int  `mapstructure:"fps"`
}

// DiscoveryConfig represents bridge discovery configuration
type DiscoveryConfig struct {
	ProbeTimeout time.Duration `mapstructure:"probe_timeout"`
	BaudRates    []int         `mapstructure:"baud_rates"`
}

// AppConfig represents application metadata
type AppConfig struct {
	Name        string `mapstructure:"name" validate:"required"`
	Version     string `mapstructure:"version" validate:"required"`
	Environment string `mapstructure:"environment" validate:"required"`
	Debug       bool   `mapstructure:"debug"`
}

// Load loads configuration from file and environment variables
func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath("/etc/telemetry-service")

	// Environment variable support
	viper.SetEnvPrefix("TELEMETRY")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Set defaults
	setDefaults()

	// Read config file, running on defaults when none is present
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	// Validate configuration
	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults() {
	// Server defaults
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", "8084")
	viper.SetDefault("server.read_timeout", "30s")
	viper.SetDefault("server.write_timeout", "30s")
	viper.SetDefault("server.idle_timeout", "120s")
	viper.SetDefault("server.tls.enabled", false)

	// Logging defaults
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.output", "stdout")
	viper.SetDefault("logging.max_size", 100)
	viper.SetDefault("logging.max_backups", 3)
	viper.SetDefault("logging.max_age", 28)
	viper.SetDefault("logging.compress", true)

	// Session defaults
	viper.SetDefault("session.sample_rate_hz", 500)
	viper.SetDefault("session.window_seconds", 2.0)
	viper.SetDefault("session.auto_start", false)

	// Sensor defaults
	viper.SetDefault("sensors", []map[string]interface{}{
		{"id": "emg-a", "tag": "ABE", "name": "EMG2ch_A"},
		{"id": "emg-b", "tag": "ABB", "name": "EMG2ch_B"},
	})

	// Link defaults
	viper.SetDefault("link.kind", "replay")
	viper.SetDefault("link.serial.baud_rate", 115200)
	viper.SetDefault("link.serial.data_bits", 8)
	viper.SetDefault("link.serial.stop_bits", 1)
	viper.SetDefault("link.serial.parity", "none")
	viper.SetDefault("link.serial.read_timeout", "200ms")
	viper.SetDefault("link.tcp.port", 9000)
	viper.SetDefault("link.tcp.ssl", false)
	viper.SetDefault("link.tcp.keep_alive", true)
	viper.SetDefault("link.tcp.dial_timeout", "10s")
	viper.SetDefault("link.tcp.read_timeout", "200ms")
	viper.SetDefault("link.usb.endpoint", 1)
	viper.SetDefault("link.replay.sample_rate_hz", 500)
	viper.SetDefault("link.replay.groups_per_frame", 7)
	viper.SetDefault("link.replay.drop_probability", 0.0)

	// Stream defaults
	viper.SetDefault("stream.interval", "100ms")

	// Console defaults
	viper.SetDefault("console.enabled", false)
	viper.SetDefault("console.fps", 10)

	// Discovery defaults
	viper.SetDefault("discovery.probe_timeout", "2s")
	viper.SetDefault("discovery.baud_rates", []int{115200, 57600})

	// App defaults
	viper.SetDefault("app.name", "telemetry-service")
	viper.SetDefault("app.version", "1.0.0")
	viper.SetDefault("app.environment", "development")
	viper.SetDefault("app.debug", false)
}

// validate validates the configuration
func validate(config *Config) error {
	// Basic validation
	if config.Server.Host == "" {
		return fmt.Errorf("server.host is required")
	}
	if config.Server.Port == "" {
		return fmt.Errorf("server.port is required")
	}

	// Validate session parameters
	if config.Session.SampleRateHz < 1 {
		return fmt.Errorf("session.sample_rate_hz must be positive")
	}
	if config.Session.WindowSeconds <= 0 {
		return fmt.Errorf("session.window_seconds must be positive")
	}

	// Validate sensors
	if len(config.Sensors) == 0 {
		return fmt.Errorf("at least one sensor must be configured")
	}
	seenTags := make(map[string]bool)
	for _, sensor := range config.Sensors {
		if sensor.ID == "" {
			return fmt.Errorf("sensor id is required")
		}
		tag := strings.ToUpper(strings.TrimSpace(sensor.Tag))
		if len(tag) != 3 {
			return fmt.Errorf("sensor %s: tag must be 3 hex characters, got %q", sensor.ID, sensor.Tag)
		}
		if seenTags[tag] {
			return fmt.Errorf("sensor %s: duplicate tag %q", sensor.ID, sensor.Tag)
		}
		seenTags[tag] = true
	}

	// Validate link
	if !config.Link.Kind.IsValid() {
		return fmt.Errorf("link.kind must be one of: serial, tcp, usb, replay")
	}

	// Validate stream
	if config.Stream.Interval <= 0 {
		return fmt.Errorf("stream.interval must be positive")
	}

	// Validate environment
	validEnvs := []string{"development", "staging", "production", "test"}
	isValidEnv := false
	for _, env := range validEnvs {
		if config.App.Environment == env {
			isValidEnv = true
			break
		}
	}
	if !isValidEnv {
		return fmt.Errorf("app.environment must be one of: %v", validEnvs)
	}

	// Validate logging level
	validLevels := []string{"debug", "info", "warn", "error", "fatal"}
	isValidLevel := false
	for _, level := range validLevels {
		if config.Logging.Level == level {
			isValidLevel = true
			break
		}
	}
	if !isValidLevel {
		return fmt.Errorf("logging.level must be one of: %v", validLevels)
	}

	return nil
}

// GetServerAddr returns the server address
func (c *Config) GetServerAddr() string {
	return fmt.Sprintf("%s:%s", c.Server.Host, c.Server.Port)
}

// WindowSize returns the per-channel window capacity in samples
func (c *Config) WindowSize() int {
	size := int(float64(c.Session.SampleRateHz)*c.Session.WindowSeconds + 0.5)
	if size < 1 {
		size = 1
	}
	return size
}

// IsProduction checks if the environment is production
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// IsDevelopment checks if the environment is development
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}

// IsDebugEnabled checks if debug mode is enabled
func (c *Config) IsDebugEnabled() bool {
	return c.App.Debug || c.IsDevelopment()
}
