package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Store drivers accepted in store.driver.
const (
	StoreDriverHTTP     = "http"
	StoreDriverInfluxDB = "influxdb2"
	StoreDriverSQLite   = "sqlite"
)

// Config is the root configuration structure for SoilSense Core.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	MQTT     MQTTConfig     `yaml:"mqtt"`
	Store    StoreConfig    `yaml:"store"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Sensor   SensorConfig   `yaml:"sensor"`
	Status   StatusConfig   `yaml:"status"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker MQTTBrokerConfig `yaml:"broker"`
	Auth   MQTTAuthConfig   `yaml:"auth"`
	Topic  string           `yaml:"topic"`
	QoS    int              `yaml:"qos"`

	// KeepAlive is the keepalive interval in seconds.
	KeepAlive int `yaml:"keep_alive"`

	// ConnectTimeout bounds the initial CONNECT/CONNACK exchange (seconds).
	ConnectTimeout int `yaml:"connect_timeout"`

	// EventBuffer is the capacity of the client's inbound event queue.
	// When it is full the network side blocks until Poll drains it.
	EventBuffer int `yaml:"event_buffer"`
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

// StoreConfig contains time-series store settings.
type StoreConfig struct {
	// Driver selects the write backend: "http", "influxdb2" or "sqlite".
	Driver string `yaml:"driver"`

	// URL is the write endpoint for the http driver
	// (e.g. http://localhost:8181/api/v3/write_lp?db=soil) or the server
	// base URL for the influxdb2 driver.
	URL   string `yaml:"url"`
	Token string `yaml:"token"`

	// Table is the destination measurement/table name.
	Table string `yaml:"table"`

	// Org and Bucket are used by the influxdb2 driver only.
	Org    string `yaml:"org"`
	Bucket string `yaml:"bucket"`

	// Path is the database file for the sqlite driver.
	Path string `yaml:"path"`

	// Timeout is the per-write request timeout in seconds.
	Timeout int `yaml:"timeout"`

	// MaxRetries bounds write attempts per measurement.
	MaxRetries int `yaml:"max_retries"`
}

// PipelineConfig contains ingestion pipeline settings.
type PipelineConfig struct {
	QueueSize int `yaml:"queue_size"`

	// DrainTimeout bounds how long acknowledged readings are still written
	// after a shutdown signal (seconds).
	DrainTimeout int `yaml:"drain_timeout"`
}

// SensorConfig contains settings for the sensor simulator.
type SensorConfig struct {
	ID       string  `yaml:"id"`
	Location string  `yaml:"location"`
	Unit     string  `yaml:"unit"`
	Seed     float32 `yaml:"seed"`
	Interval int     `yaml:"interval"`
	// Count is the number of readings to publish. 0 means unlimited.
	Count int `yaml:"count"`
}

// StatusConfig contains the HTTP status server settings.
type StatusConfig struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: SOILSENSE_SECTION_KEY
// For example: SOILSENSE_MQTT_HOST, SOILSENSE_STORE_TOKEN
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, fmt.Errorf("applying environment overrides: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "soilsense-sub",
			},
			Topic:          "soil/moisture",
			QoS:            1,
			KeepAlive:      5,
			ConnectTimeout: 10,
			EventBuffer:    10,
		},
		Store: StoreConfig{
			Driver:     StoreDriverHTTP,
			Table:      "soil_moisture_readings",
			Path:       "./data/soilsense.db",
			Timeout:    5,
			MaxRetries: 10,
		},
		Pipeline: PipelineConfig{
			QueueSize:    100,
			DrainTimeout: 10,
		},
		Sensor: SensorConfig{
			ID:       "sensor_01",
			Location: "location_01",
			Unit:     "cb",
			Seed:     30.2,
			Interval: 2,
			Count:    100,
		},
		Status: StatusConfig{
			Enabled: true,
			Host:    "0.0.0.0",
			Port:    9100,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: SOILSENSE_SECTION_KEY
func applyEnvOverrides(cfg *Config) error {
	// MQTT
	if v := os.Getenv("SOILSENSE_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("SOILSENSE_MQTT_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("SOILSENSE_MQTT_PORT %q: %w", v, err)
		}
		cfg.MQTT.Broker.Port = port
	}
	if v := os.Getenv("SOILSENSE_MQTT_CLIENT_ID"); v != "" {
		cfg.MQTT.Broker.ClientID = v
	}
	if v := os.Getenv("SOILSENSE_MQTT_TOPIC"); v != "" {
		cfg.MQTT.Topic = v
	}
	if v := os.Getenv("SOILSENSE_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("SOILSENSE_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// Store
	if v := os.Getenv("SOILSENSE_STORE_URL"); v != "" {
		cfg.Store.URL = v
	}
	if v := os.Getenv("SOILSENSE_STORE_TOKEN"); v != "" {
		cfg.Store.Token = v
	}
	if v := os.Getenv("SOILSENSE_STORE_TABLE"); v != "" {
		cfg.Store.Table = v
	}
	if v := os.Getenv("SOILSENSE_STORE_MAX_RETRIES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("SOILSENSE_STORE_MAX_RETRIES %q: %w", v, err)
		}
		cfg.Store.MaxRetries = n
	}

	// Logging
	if v := os.Getenv("SOILSENSE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	return nil
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of every validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	// MQTT validation
	if c.MQTT.Broker.Host == "" {
		errs = append(errs, "mqtt.broker.host is required")
	}
	if c.MQTT.Broker.Port < 1 || c.MQTT.Broker.Port > 65535 {
		errs = append(errs, "mqtt.broker.port must be between 1 and 65535")
	}
	if c.MQTT.Broker.ClientID == "" {
		errs = append(errs, "mqtt.broker.client_id is required")
	}
	if c.MQTT.Topic == "" {
		errs = append(errs, "mqtt.topic is required")
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.EventBuffer < 1 {
		errs = append(errs, "mqtt.event_buffer must be at least 1")
	}

	// Store validation
	switch c.Store.Driver {
	case StoreDriverHTTP:
		if c.Store.URL == "" {
			errs = append(errs, "store.url is required for the http driver")
		}
	case StoreDriverInfluxDB:
		if c.Store.URL == "" {
			errs = append(errs, "store.url is required for the influxdb2 driver")
		}
		if c.Store.Org == "" || c.Store.Bucket == "" {
			errs = append(errs, "store.org and store.bucket are required for the influxdb2 driver")
		}
	case StoreDriverSQLite:
		if c.Store.Path == "" {
			errs = append(errs, "store.path is required for the sqlite driver")
		}
	default:
		errs = append(errs, fmt.Sprintf("store.driver %q is not one of http, influxdb2, sqlite", c.Store.Driver))
	}
	if c.Store.Table == "" {
		errs = append(errs, "store.table is required")
	}
	if c.Store.MaxRetries < 1 {
		errs = append(errs, "store.max_retries must be at least 1")
	}
	if c.Store.Timeout < 1 {
		errs = append(errs, "store.timeout must be at least 1 second")
	}

	// Pipeline validation
	if c.Pipeline.QueueSize < 1 {
		errs = append(errs, "pipeline.queue_size must be at least 1")
	}
	if c.Pipeline.DrainTimeout < 1 {
		errs = append(errs, "pipeline.drain_timeout must be at least 1 second")
	}

	// Status server validation
	if c.Status.Enabled && (c.Status.Port < 1 || c.Status.Port > 65535) {
		errs = append(errs, "status.port must be between 1 and 65535")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetStoreTimeout returns the per-write store timeout as a Duration.
func (c *Config) GetStoreTimeout() time.Duration {
	return time.Duration(c.Store.Timeout) * time.Second
}

// GetDrainTimeout returns the shutdown drain deadline as a Duration.
func (c *Config) GetDrainTimeout() time.Duration {
	return time.Duration(c.Pipeline.DrainTimeout) * time.Second
}

// GetSensorInterval returns the sensor publish interval as a Duration.
func (c *Config) GetSensorInterval() time.Duration {
	return time.Duration(c.Sensor.Interval) * time.Second
}
