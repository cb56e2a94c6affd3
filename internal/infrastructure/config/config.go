package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for Climate Core.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Site      SiteConfig      `yaml:"site"`
	Database  DatabaseConfig  `yaml:"database"`
	Hardware  HardwareConfig  `yaml:"hardware"`
	Monitor   MonitorConfig   `yaml:"monitor"`
	Alerts    AlertsConfig    `yaml:"alerts"`
	Notify    NotifyConfig    `yaml:"notify"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Logging   LoggingConfig   `yaml:"logging"`
	Security  SecurityConfig  `yaml:"security"`
}

// SiteConfig contains site-specific information.
type SiteConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// Hardware driver names.
const (
	DriverSim  = "sim"
	DriverMQTT = "mqtt"
)

// HardwareConfig selects and tunes the sensor/actuator driver.
type HardwareConfig struct {
	// Driver is "sim" (simulated sensors, for bench and development use) or
	// "mqtt" (sensor nodes publishing readings over the broker).
	Driver string `yaml:"driver"`

	// ReadTimeout bounds every sensor read. A timeout counts as a failed read.
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// SensorFreshness is the maximum age of a relayed reading (mqtt driver).
	SensorFreshness time.Duration `yaml:"sensor_freshness"`

	// ReleaseActuatorOff switches an actuator off when its handle is released
	// during reconciliation or shutdown.
	ReleaseActuatorOff bool `yaml:"release_actuator_off"`

	// Sim tunes the simulated driver.
	Sim SimConfig `yaml:"sim"`
}

// SimConfig tunes the simulated hardware driver.
type SimConfig struct {
	BaseTemperature float64 `yaml:"base_temperature"`
	BaseHumidity    float64 `yaml:"base_humidity"`
	FailureRate     float64 `yaml:"failure_rate"`
	Seed            uint64  `yaml:"seed"`
}

// MonitorConfig contains the monitoring loop cadences.
type MonitorConfig struct {
	// ReconcileInterval is how often the unit registry is rebuilt from the store.
	ReconcileInterval time.Duration `yaml:"reconcile_interval"`

	// CycleDelay is the pause after each full sampling pass.
	CycleDelay time.Duration `yaml:"cycle_delay"`

	// UnitSettle is the pause between two unit reads within a pass.
	UnitSettle time.Duration `yaml:"unit_settle"`
}

// AlertsConfig contains alert dispatch settings.
type AlertsConfig struct {
	// RealertInterval suppresses repeated alerts for the same unit inside the
	// interval. Zero alerts on every out-of-range sample.
	RealertInterval time.Duration `yaml:"realert_interval"`
}

// Notification transports.
const (
	TransportSMTP    = "smtp"
	TransportWebhook = "webhook"
	TransportMQTT    = "mqtt"
	TransportLog     = "log"
)

// NotifyConfig selects the outbound notification transport. An empty
// Transport resolves to smtp when a mail server is configured and to log
// otherwise.
type NotifyConfig struct {
	Transport string        `yaml:"transport"`
	SMTP      SMTPConfig    `yaml:"smtp"`
	Webhook   WebhookConfig `yaml:"webhook"`
}

// SMTPConfig contains mail server settings.
type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
	UseTLS   bool   `yaml:"use_tls"`
	UseSSL   bool   `yaml:"use_ssl"`
}

// WebhookConfig contains HTTP webhook notification settings.
type WebhookConfig struct {
	URL     string        `yaml:"url"`
	Token   string        `yaml:"token"`
	Timeout time.Duration `yaml:"timeout"`
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

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	TLS      TLSConfig        `yaml:"tls"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// TLSConfig contains TLS certificate settings.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// APITimeoutConfig contains HTTP timeout settings in seconds.
// The write timeout does not apply to streaming endpoints.
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

// WebSocketConfig contains live feed settings shared by SSE and WebSocket.
type WebSocketConfig struct {
	MaxMessageSize int           `yaml:"max_message_size"`
	PingInterval   int           `yaml:"ping_interval"`
	PongTimeout    int           `yaml:"pong_timeout"`
	FeedInterval   time.Duration `yaml:"feed_interval"`
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

// SecurityConfig contains security settings.
type SecurityConfig struct {
	JWT JWTConfig `yaml:"jwt"`
}

// JWTConfig contains JWT token settings. An empty secret leaves the
// administrative routes unauthenticated.
type JWTConfig struct {
	Secret string `yaml:"secret"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. A .env file next to the working directory, if present
//  4. Environment variables (override file values)
//
// Environment variables follow the pattern CLIMATECORE_SECTION_KEY. The
// MAIL_* variables used by earlier deployments are honoured as well.
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

	// godotenv never overwrites variables already present in the environment.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env file: %w", err)
	}

	applyEnvOverrides(cfg)
	cfg.Notify.resolveTransport()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Site: SiteConfig{
			ID:   "site-001",
			Name: "Climate Core",
		},
		Database: DatabaseConfig{
			Path:        "./data/climatecore.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		Hardware: HardwareConfig{
			Driver:          DriverSim,
			ReadTimeout:     5 * time.Second,
			SensorFreshness: 30 * time.Second,
			Sim: SimConfig{
				BaseTemperature: 22,
				BaseHumidity:    45,
				FailureRate:     0.05,
			},
		},
		Monitor: MonitorConfig{
			ReconcileInterval: 60 * time.Second,
			CycleDelay:        10 * time.Second,
			UnitSettle:        2 * time.Second,
		},
		Notify: NotifyConfig{
			SMTP: SMTPConfig{
				Port:   587,
				UseTLS: true,
			},
			Webhook: WebhookConfig{
				Timeout: 10 * time.Second,
			},
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "climatecore",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 5000,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
			FeedInterval:   5 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
func applyEnvOverrides(cfg *Config) {
	// Database
	if v := os.Getenv("CLIMATECORE_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// Hardware
	if v := os.Getenv("CLIMATECORE_HARDWARE_DRIVER"); v != "" {
		cfg.Hardware.Driver = v
	}

	// MQTT
	if v := os.Getenv("CLIMATECORE_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("CLIMATECORE_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("CLIMATECORE_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// API
	if v := os.Getenv("CLIMATECORE_API_HOST"); v != "" {
		cfg.API.Host = v
	}

	// InfluxDB
	if v := os.Getenv("CLIMATECORE_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Notification transport
	if v := os.Getenv("CLIMATECORE_NOTIFY_TRANSPORT"); v != "" {
		cfg.Notify.Transport = v
	}
	if v := os.Getenv("CLIMATECORE_WEBHOOK_TOKEN"); v != "" {
		cfg.Notify.Webhook.Token = v
	}

	// Mail server, using the MAIL_* names of earlier .env files
	if v := os.Getenv("MAIL_SERVER"); v != "" {
		cfg.Notify.SMTP.Host = v
	}
	if v := os.Getenv("MAIL_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Notify.SMTP.Port = port
		}
	}
	if v := os.Getenv("MAIL_USE_TLS"); v != "" {
		cfg.Notify.SMTP.UseTLS = strings.EqualFold(v, "true")
	}
	if v := os.Getenv("MAIL_USE_SSL"); v != "" {
		cfg.Notify.SMTP.UseSSL = strings.EqualFold(v, "true")
	}
	if v := os.Getenv("MAIL_USERNAME"); v != "" {
		cfg.Notify.SMTP.Username = v
	}
	if v := os.Getenv("MAIL_PASSWORD"); v != "" {
		cfg.Notify.SMTP.Password = v
	}
	if v := os.Getenv("MAIL_DEFAULT_SENDER"); v != "" {
		cfg.Notify.SMTP.From = v
	}

	// Security
	if v := os.Getenv("CLIMATECORE_JWT_SECRET"); v != "" {
		cfg.Security.JWT.Secret = v
	}
}

func (n *NotifyConfig) resolveTransport() {
	if n.Transport != "" {
		return
	}
	if n.SMTP.Host != "" {
		n.Transport = TransportSMTP
		return
	}
	n.Transport = TransportLog
}

// SMTPUnused reports a mail server that is configured while alerts go
// through another transport.
func (n NotifyConfig) SMTPUnused() bool {
	return n.SMTP.Host != "" && n.Transport != TransportSMTP
}

// minJWTSecretLength is the shortest accepted HMAC secret.
const minJWTSecretLength = 32

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of every validation failure, or nil if valid
func (c *Config) Validate() error { //nolint:gocognit,gocyclo // flat list of independent checks
	var errs []string

	if c.Site.ID == "" {
		errs = append(errs, "site.id is required")
	}

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	switch c.Hardware.Driver {
	case DriverSim:
	case DriverMQTT:
		if !c.MQTT.Enabled {
			errs = append(errs, "hardware.driver mqtt requires mqtt.enabled")
		}
	default:
		errs = append(errs, fmt.Sprintf("hardware.driver %q is not one of sim, mqtt", c.Hardware.Driver))
	}
	if c.Hardware.ReadTimeout <= 0 {
		errs = append(errs, "hardware.read_timeout must be positive")
	}
	if c.Hardware.Sim.FailureRate < 0 || c.Hardware.Sim.FailureRate > 1 {
		errs = append(errs, "hardware.sim.failure_rate must be between 0 and 1")
	}

	if c.Monitor.ReconcileInterval <= 0 {
		errs = append(errs, "monitor.reconcile_interval must be positive")
	}
	if c.Monitor.CycleDelay < 0 || c.Monitor.UnitSettle < 0 {
		errs = append(errs, "monitor delays must not be negative")
	}
	if c.Alerts.RealertInterval < 0 {
		errs = append(errs, "alerts.realert_interval must not be negative")
	}

	switch c.Notify.Transport {
	case TransportLog, "":
	case TransportSMTP:
		if c.Notify.SMTP.Host == "" {
			errs = append(errs, "notify.smtp.host is required (set MAIL_SERVER)")
		}
		if c.Notify.SMTP.From == "" {
			errs = append(errs, "notify.smtp.from is required (set MAIL_DEFAULT_SENDER)")
		}
	case TransportWebhook:
		if c.Notify.Webhook.URL == "" {
			errs = append(errs, "notify.webhook.url is required")
		}
	case TransportMQTT:
		if !c.MQTT.Enabled {
			errs = append(errs, "notify.transport mqtt requires mqtt.enabled")
		}
	default:
		errs = append(errs, fmt.Sprintf("notify.transport %q is not one of smtp, webhook, mqtt, log", c.Notify.Transport))
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if c.WebSocket.FeedInterval <= 0 {
		errs = append(errs, "websocket.feed_interval must be positive")
	}

	if c.Security.JWT.Secret != "" && len(c.Security.JWT.Secret) < minJWTSecretLength {
		errs = append(errs, "security.jwt.secret must be at least 32 characters for adequate security")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}
