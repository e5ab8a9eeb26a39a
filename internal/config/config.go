package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dokzlo13/huebridge/internal/device"
	"github.com/dokzlo13/huebridge/internal/ssdp"
)

// Config represents the application configuration
type Config struct {
	Log             LogConfig         `yaml:"log"`
	Bridge          BridgeConfig      `yaml:"bridge"`
	API             APIConfig         `yaml:"api"`
	Discovery       DiscoveryConfig   `yaml:"discovery"`
	MDNS            MDNSConfig        `yaml:"mdns"`
	Devices         []DeviceConfig    `yaml:"devices"`
	EventBus        EventBusConfig    `yaml:"eventbus"`
	MQTT            MQTTConfig        `yaml:"mqtt"`
	Ledger          LedgerConfig      `yaml:"ledger"`
	Healthcheck     HealthcheckConfig `yaml:"healthcheck"`
	Script          string            `yaml:"script"`
	ShutdownTimeout Duration          `yaml:"shutdown_timeout"` // General shutdown timeout for graceful stops
}

// LogConfig contains logging settings
type LogConfig struct {
	Level   string `yaml:"level"`
	Colors  bool   `yaml:"colors"`
	UseJSON bool   `yaml:"json"`
}

// BridgeConfig contains the emulated bridge identity and HTTP listener
type BridgeConfig struct {
	Host        string `yaml:"host"`
	Port        int    `yaml:"port"`
	AdvertiseIP string `yaml:"advertise_ip"` // Overrides the detected local IP
	MAC         string `yaml:"mac"`          // Overrides the detected hardware address
	Username    string `yaml:"username"`     // Token handed out on pairing
	MaxDevices  int    `yaml:"max_devices"`
}

// Addr returns the HTTP listen address
func (c BridgeConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// APIConfig contains Hue API rendering settings
type APIConfig struct {
	LegacySchema bool `yaml:"legacy_schema"`
}

// DiscoveryConfig contains SSDP responder settings
type DiscoveryConfig struct {
	Enabled   *bool  `yaml:"enabled"` // default: true
	Group     string `yaml:"group"`
	Interface string `yaml:"interface"`
}

// IsEnabled returns whether SSDP discovery runs
func (c DiscoveryConfig) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// MDNSConfig contains mDNS advertisement settings
type MDNSConfig struct {
	Enabled bool `yaml:"enabled"`
}

// DeviceConfig declares one emulated light
type DeviceConfig struct {
	Name  string            `yaml:"name"`
	Type  device.Capability `yaml:"type"`
	Value int               `yaml:"value"` // Initial level 0-255
}

// EventBusConfig contains event bus settings
type EventBusConfig struct {
	Workers   int `yaml:"workers"`    // Number of worker goroutines (default: 4)
	QueueSize int `yaml:"queue_size"` // Event queue size (default: 100)
}

// MQTTConfig contains MQTT broker settings
type MQTTConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Host        string `yaml:"host"`
	Port        int    `yaml:"port"`
	ClientID    string `yaml:"client_id"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	TopicPrefix string `yaml:"topic_prefix"`
	QoS         int    `yaml:"qos"`
}

// LedgerConfig contains command ledger settings
type LedgerConfig struct {
	Enabled         bool     `yaml:"enabled"`
	Path            string   `yaml:"path"`
	CleanupInterval Duration `yaml:"cleanup_interval"`
	RetentionDays   int      `yaml:"retention_days"`
}

// HealthcheckConfig contains health check server settings
type HealthcheckConfig struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
}

// Duration is a wrapper around time.Duration for YAML unmarshalling
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse parses configuration from YAML bytes, applying defaults and validation
func Parse(data []byte) (*Config, error) {
	// Expand environment variables
	expanded := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, err
	}

	cfg.setDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (cfg *Config) setDefaults() {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}

	// Bridge defaults
	if cfg.Bridge.Host == "" {
		cfg.Bridge.Host = "0.0.0.0"
	}
	if cfg.Bridge.Port == 0 {
		cfg.Bridge.Port = 80
	}
	if cfg.Bridge.MaxDevices == 0 {
		cfg.Bridge.MaxDevices = device.DefaultCapacity
	}

	if cfg.Discovery.Group == "" {
		cfg.Discovery.Group = ssdp.DefaultGroup
	}

	// MQTT defaults
	if cfg.MQTT.Host == "" {
		cfg.MQTT.Host = "localhost"
	}
	if cfg.MQTT.Port == 0 {
		cfg.MQTT.Port = 1883
	}
	if cfg.MQTT.ClientID == "" {
		cfg.MQTT.ClientID = "huebridge"
	}
	if cfg.MQTT.TopicPrefix == "" {
		cfg.MQTT.TopicPrefix = "huebridge"
	}

	// Ledger defaults
	if cfg.Ledger.Path == "" {
		cfg.Ledger.Path = "./huebridge.sqlite"
	}
	if cfg.Ledger.CleanupInterval == 0 {
		cfg.Ledger.CleanupInterval = Duration(24 * time.Hour)
	}
	if cfg.Ledger.RetentionDays == 0 {
		cfg.Ledger.RetentionDays = 30
	}

	// Healthcheck defaults
	if cfg.Healthcheck.Port == 0 {
		cfg.Healthcheck.Port = 9090
	}
	if cfg.Healthcheck.Host == "" {
		cfg.Healthcheck.Host = "0.0.0.0"
	}

	// General shutdown timeout
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = Duration(5 * time.Second)
	}
}

// Validate checks settings that have no sensible default
func (cfg *Config) Validate() error {
	var errs []error

	if cfg.Bridge.MaxDevices < 1 || cfg.Bridge.MaxDevices > device.MaxCapacity {
		errs = append(errs, fmt.Errorf("bridge.max_devices must be between 1 and %d, got %d",
			device.MaxCapacity, cfg.Bridge.MaxDevices))
	}
	if len(cfg.Devices) > cfg.Bridge.MaxDevices {
		errs = append(errs, fmt.Errorf("%d devices configured, bridge.max_devices is %d",
			len(cfg.Devices), cfg.Bridge.MaxDevices))
	}
	for i, d := range cfg.Devices {
		if strings.TrimSpace(d.Name) == "" {
			errs = append(errs, fmt.Errorf("devices[%d]: name is required", i))
		}
		if d.Value < 0 || d.Value > 255 {
			errs = append(errs, fmt.Errorf("devices[%d]: value must be between 0 and 255, got %d", i, d.Value))
		}
	}
	if !validPort(cfg.Bridge.Port) {
		errs = append(errs, fmt.Errorf("bridge.port %d is out of range", cfg.Bridge.Port))
	}
	if cfg.Healthcheck.Enabled && !validPort(cfg.Healthcheck.Port) {
		errs = append(errs, fmt.Errorf("healthcheck.port %d is out of range", cfg.Healthcheck.Port))
	}
	if cfg.MQTT.Enabled && !validPort(cfg.MQTT.Port) {
		errs = append(errs, fmt.Errorf("mqtt.port %d is out of range", cfg.MQTT.Port))
	}
	if cfg.MQTT.QoS < 0 || cfg.MQTT.QoS > 2 {
		errs = append(errs, fmt.Errorf("mqtt.qos must be 0, 1 or 2, got %d", cfg.MQTT.QoS))
	}

	return errors.Join(errs...)
}

func validPort(p int) bool {
	return p > 0 && p <= 65535
}

// GetShutdownTimeout returns the shutdown timeout
func (cfg *Config) GetShutdownTimeout() time.Duration {
	return cfg.ShutdownTimeout.Duration()
}

// expandEnvVars expands environment variables in the format ${VAR} or ${VAR:default}
func expandEnvVars(input string) string {
	// Match ${VAR} or ${VAR:default}
	re := regexp.MustCompile(`\$\{([^}:]+)(?::([^}]*))?\}`)

	return re.ReplaceAllStringFunc(input, func(match string) string {
		parts := re.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		varName := parts[1]
		defaultVal := ""
		if len(parts) >= 3 {
			defaultVal = parts[2]
		}

		if val := os.Getenv(varName); val != "" {
			return val
		}
		return defaultVal
	})
}
