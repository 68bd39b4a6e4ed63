package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the luke dashboard core.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Gateway   GatewayConfig   `yaml:"gateway"`
	Discovery DiscoveryConfig `yaml:"discovery"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	Panel     PanelConfig     `yaml:"panel"`
	Database  DatabaseConfig  `yaml:"database"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// GatewayConfig describes the CoAP-to-HTTP/WebSocket gateway.
type GatewayConfig struct {
	// Service is the host:port of the gateway's HTTP endpoint.
	Service string `yaml:"coap_service"`

	// CoreRD is the bootstrap descriptor of the discovery resource.
	CoreRD ResourceConfig `yaml:"corerd"`

	// ServiceFile optionally points to the JSON document the gateway writes
	// on startup ({"coap_service": ..., "corerd": {...}}). When set, its
	// values replace Service and CoreRD.
	ServiceFile string `yaml:"service_file"`

	// ReconnectDelayMS is the flat delay before an observation is reopened.
	ReconnectDelayMS int `yaml:"reconnect_delay_ms"`

	// RequestTimeout bounds one GET/POST through the gateway (seconds).
	// 0 means no timeout, matching a browser XHR.
	RequestTimeout int `yaml:"request_timeout"`
}

// ResourceConfig is a link descriptor given in configuration.
type ResourceConfig struct {
	URL    string `yaml:"url" json:"url"`
	Anchor string `yaml:"anchor" json:"anchor"`
}

// ServiceDocument is the static JSON document shared with the browser page.
type ServiceDocument struct {
	Service string         `json:"coap_service"`
	CoreRD  ResourceConfig `json:"corerd"`
}

// DiscoveryConfig contains settings applied to each discovery update.
type DiscoveryConfig struct {
	// AutoLink wires controller -> display -> dino as soon as both ends of a
	// link are known, without waiting for a user drag.
	AutoLink bool `yaml:"auto_link"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// APITimeoutConfig contains HTTP timeout settings.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// WebSocketConfig contains WebSocket server settings.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
}

// PanelConfig controls where the dashboard page is served from.
type PanelConfig struct {
	// Dir serves the page from disk instead of the embedded copy.
	Dir string `yaml:"dir"`
}

// DatabaseConfig contains SQLite settings for the action history.
type DatabaseConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled   bool                `yaml:"enabled"`
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file and applies overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values
//  3. The gateway service file, if gateway.service_file is set
//  4. Environment variables (LUKE_SECTION_KEY)
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If a file cannot be read or parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if cfg.Gateway.ServiceFile != "" {
		doc, err := LoadServiceFile(cfg.Gateway.ServiceFile)
		if err != nil {
			return nil, err
		}
		cfg.Gateway.Service = doc.Service
		cfg.Gateway.CoreRD = doc.CoreRD
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// LoadServiceFile reads the gateway's static JSON service document.
func LoadServiceFile(path string) (ServiceDocument, error) {
	var doc ServiceDocument

	data, err := os.ReadFile(path)
	if err != nil {
		return doc, fmt.Errorf("reading service file: %w", err)
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return doc, fmt.Errorf("parsing service file: %w", err)
	}
	return doc, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Gateway: GatewayConfig{
			Service:          "localhost:5656",
			ReconnectDelayMS: 500,
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8080,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			Path:           "/ws",
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Database: DatabaseConfig{
			Path:        "./data/luke.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "luke-core",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: LUKE_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Gateway
	if v := os.Getenv("LUKE_GATEWAY_SERVICE"); v != "" {
		cfg.Gateway.Service = v
	}
	if v := os.Getenv("LUKE_CORERD_URL"); v != "" {
		cfg.Gateway.CoreRD.URL = v
	}
	if v := os.Getenv("LUKE_CORERD_ANCHOR"); v != "" {
		cfg.Gateway.CoreRD.Anchor = v
	}

	// Database
	if v := os.Getenv("LUKE_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("LUKE_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("LUKE_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("LUKE_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// API
	if v := os.Getenv("LUKE_API_HOST"); v != "" {
		cfg.API.Host = v
	}

	// InfluxDB
	if v := os.Getenv("LUKE_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []string

	if c.Gateway.Service == "" {
		errs = append(errs, "gateway.coap_service is required")
	}
	if c.Gateway.CoreRD.URL == "" {
		errs = append(errs, "gateway.corerd.url is required")
	} else if !isCoAPURL(c.Gateway.CoreRD.URL) {
		errs = append(errs, "gateway.corerd.url must be a coap:// or coaps:// URL")
	}
	if c.Gateway.CoreRD.Anchor == "" {
		errs = append(errs, "gateway.corerd.anchor is required")
	}
	if c.Gateway.ReconnectDelayMS <= 0 {
		errs = append(errs, "gateway.reconnect_delay_ms must be positive")
	}
	if c.Gateway.RequestTimeout < 0 {
		errs = append(errs, "gateway.request_timeout must not be negative")
	}

	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if c.Database.Enabled && c.Database.Path == "" {
		errs = append(errs, "database.path is required when the database is enabled")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if c.InfluxDB.Enabled && c.InfluxDB.URL == "" {
		errs = append(errs, "influxdb.url is required when influxdb is enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

func isCoAPURL(u string) bool {
	return strings.HasPrefix(u, "coap://") || strings.HasPrefix(u, "coaps://")
}

// ServiceDocument returns the JSON document served to the browser page.
func (c *Config) ServiceDocument() ServiceDocument {
	return ServiceDocument{
		Service: c.Gateway.Service,
		CoreRD:  c.Gateway.CoreRD,
	}
}

// ReconnectDelay returns the observation reconnect delay as a Duration.
func (c *Config) ReconnectDelay() time.Duration {
	return time.Duration(c.Gateway.ReconnectDelayMS) * time.Millisecond
}

// RequestTimeout returns the gateway request timeout as a Duration.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.Gateway.RequestTimeout) * time.Second
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}
