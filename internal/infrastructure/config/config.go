package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the classroom controller.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Site       SiteConfig       `yaml:"site"`
	Automation AutomationConfig `yaml:"automation"`
	Clock      ClockConfig      `yaml:"clock"`
	Serial     SerialConfig     `yaml:"serial"`
	Hardware   HardwareConfig   `yaml:"hardware"`
	Database   DatabaseConfig   `yaml:"database"`
	MQTT       MQTTConfig       `yaml:"mqtt"`
	InfluxDB   InfluxDBConfig   `yaml:"influxdb"`
	API        APIConfig        `yaml:"api"`
	WebSocket  WebSocketConfig  `yaml:"websocket"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// SiteConfig identifies the room node. ID is reported as device_id in
// every status payload.
type SiteConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// AutomationConfig controls the tick scheduler and the deferred shutdown timers.
type AutomationConfig struct {
	// SensorInterval is how often the sensor gateway is polled.
	SensorInterval time.Duration `yaml:"sensor_interval"`

	// EvaluateInterval is how often the occupancy/mode table is evaluated.
	EvaluateInterval time.Duration `yaml:"evaluate_interval"`

	// StatusInterval is how often a status payload is serialised and enqueued.
	StatusInterval time.Duration `yaml:"status_interval"`

	// Resolution is the scheduler tick. Timer deadlines are checked at this granularity.
	Resolution time.Duration `yaml:"resolution"`

	SleepDelay time.Duration `yaml:"sleep_delay"`
	OffDelay   time.Duration `yaml:"off_delay"`
	ACOffDelay time.Duration `yaml:"ac_off_delay"`

	// StartAuto starts the controller in auto mode instead of manual.
	StartAuto bool `yaml:"start_auto"`
}

// ClockConfig controls the simulated room wall clock.
type ClockConfig struct {
	TickInterval time.Duration `yaml:"tick_interval"`
	Step         time.Duration `yaml:"step"`
}

// SerialConfig contains settings for the point-to-point aggregator link.
type SerialConfig struct {
	Enabled     bool          `yaml:"enabled"`
	Device      string        `yaml:"device"`
	Baud        int           `yaml:"baud"`
	ReadTimeout time.Duration `yaml:"read_timeout"`
	ReopenDelay time.Duration `yaml:"reopen_delay"`

	// AckToken, when set, is read back after every transmitted line.
	// Anything else counts as a send failure. There is no retry.
	AckToken   string        `yaml:"ack_token"`
	AckTimeout time.Duration `yaml:"ack_timeout"`

	// MaxLine bounds the inbound line buffer. Longer lines are discarded.
	MaxLine int `yaml:"max_line"`

	// QueueSize bounds the outbound queue. The oldest entry is dropped
	// when a push would exceed it.
	QueueSize int `yaml:"queue_size"`
}

// HardwareConfig selects and configures the actuator and sensor gateways.
type HardwareConfig struct {
	// Simulated replaces the board gateways with an in-memory simulator.
	Simulated bool `yaml:"simulated"`

	// LEDPath is a format string receiving the 1-based light channel number.
	LEDPath string `yaml:"led_path"`

	// SensorFile is a JSON document {temp, humidity, lux, person} kept
	// current by the board's sampler.
	SensorFile string `yaml:"sensor_file"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings for the aggregator mirror.
type MQTTConfig struct {
	Enabled   bool                `yaml:"enabled"`
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
	Topics    MQTTTopicsConfig    `yaml:"topics"`
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

// MQTTReconnectConfig contains MQTT reconnection settings in seconds.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// MQTTTopicsConfig names the topics shared with the aggregator.
type MQTTTopicsConfig struct {
	Status  string `yaml:"status"`
	Control string `yaml:"control"`
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

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`

	// PanelDir, when set to an existing directory, replaces the embedded
	// wall panel assets served under /panel/.
	PanelDir string `yaml:"panel_dir"`
}

// APITimeoutConfig contains HTTP timeout settings in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// WebSocketConfig contains WebSocket server settings.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
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
// Environment variables follow the pattern: CLASSROOM_SECTION_KEY
// For example: CLASSROOM_SERIAL_DEVICE, CLASSROOM_API_PORT
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

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config matching the classroom board deployment.
func defaultConfig() *Config {
	return &Config{
		Site: SiteConfig{
			ID:   "classroom-node-01",
			Name: "Classroom",
		},
		Automation: AutomationConfig{
			SensorInterval:   10 * time.Second,
			EvaluateInterval: 10 * time.Second,
			StatusInterval:   6 * time.Second,
			Resolution:       250 * time.Millisecond,
			SleepDelay:       5 * time.Second,
			OffDelay:         5 * time.Second,
			ACOffDelay:       5 * time.Second,
		},
		Clock: ClockConfig{
			TickInterval: time.Second,
			Step:         10 * time.Minute,
		},
		Serial: SerialConfig{
			Enabled:     true,
			Device:      "/dev/s3c2410_serial0",
			Baud:        115200,
			ReadTimeout: 100 * time.Millisecond,
			ReopenDelay: time.Second,
			AckTimeout:  200 * time.Millisecond,
			MaxLine:     4096,
			QueueSize:   64,
		},
		Hardware: HardwareConfig{
			LEDPath:    "/sys/devices/platform/x210-led/led%d",
			SensorFile: "/tmp/classroom-sensors.json",
		},
		Database: DatabaseConfig{
			Path:        "./data/classroom.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "classroom-node-01",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
			Topics: MQTTTopicsConfig{
				Status:  "dataUpdate",
				Control: "setControl",
			},
		},
		InfluxDB: InfluxDBConfig{
			Bucket:        "classroom",
			BatchSize:     100,
			FlushInterval: 10,
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
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: CLASSROOM_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("CLASSROOM_SITE_ID"); v != "" {
		cfg.Site.ID = v
	}

	// Serial
	if v := os.Getenv("CLASSROOM_SERIAL_DEVICE"); v != "" {
		cfg.Serial.Device = v
	}
	if v := os.Getenv("CLASSROOM_SERIAL_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Serial.Enabled = b
		}
	}

	if v := os.Getenv("CLASSROOM_HARDWARE_SIMULATED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Hardware.Simulated = b
		}
	}

	if v := os.Getenv("CLASSROOM_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("CLASSROOM_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("CLASSROOM_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("CLASSROOM_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// API
	if v := os.Getenv("CLASSROOM_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("CLASSROOM_API_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.API.Port = port
		}
	}

	if v := os.Getenv("CLASSROOM_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of every validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Site.ID == "" {
		errs = append(errs, "site.id is required")
	}

	durations := []struct {
		name  string
		value time.Duration
	}{
		{"automation.sensor_interval", c.Automation.SensorInterval},
		{"automation.evaluate_interval", c.Automation.EvaluateInterval},
		{"automation.status_interval", c.Automation.StatusInterval},
		{"automation.resolution", c.Automation.Resolution},
		{"automation.sleep_delay", c.Automation.SleepDelay},
		{"automation.off_delay", c.Automation.OffDelay},
		{"automation.ac_off_delay", c.Automation.ACOffDelay},
		{"clock.tick_interval", c.Clock.TickInterval},
		{"clock.step", c.Clock.Step},
	}
	for _, d := range durations {
		if d.value <= 0 {
			errs = append(errs, d.name+" must be positive")
		}
	}

	if c.Serial.Enabled {
		if c.Serial.Device == "" {
			errs = append(errs, "serial.device is required when serial is enabled")
		}
		if c.Serial.Baud <= 0 {
			errs = append(errs, "serial.baud must be positive")
		}
		if c.Serial.ReadTimeout <= 0 {
			errs = append(errs, "serial.read_timeout must be positive")
		}
		if c.Serial.MaxLine <= 0 {
			errs = append(errs, "serial.max_line must be positive")
		}
		if c.Serial.QueueSize <= 0 {
			errs = append(errs, "serial.queue_size must be positive")
		}
	}

	if !c.Hardware.Simulated && !strings.Contains(c.Hardware.LEDPath, "%d") {
		errs = append(errs, "hardware.led_path must contain %d for the channel number")
	}

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.Enabled && (c.MQTT.Topics.Status == "" || c.MQTT.Topics.Control == "") {
		errs = append(errs, "mqtt.topics.status and mqtt.topics.control are required when mqtt is enabled")
	}

	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// ReadTimeout returns the HTTP read timeout.
func (a APIConfig) ReadTimeout() time.Duration {
	return time.Duration(a.Timeouts.Read) * time.Second
}

// WriteTimeout returns the HTTP write timeout.
func (a APIConfig) WriteTimeout() time.Duration {
	return time.Duration(a.Timeouts.Write) * time.Second
}

// IdleTimeout returns the HTTP keep-alive idle timeout.
func (a APIConfig) IdleTimeout() time.Duration {
	return time.Duration(a.Timeouts.Idle) * time.Second
}
