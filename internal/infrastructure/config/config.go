package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrInvalid wraps every Validate failure.
var ErrInvalid = errors.New("config: invalid")

// Config is the root of configs/config.yaml.
type Config struct {
	Database  DatabaseConfig  `yaml:"database"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	API       APIConfig       `yaml:"api"`
	Gateway   GatewayConfig   `yaml:"gateway"`
	Execution ExecutionConfig `yaml:"execution"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Logging   LoggingConfig   `yaml:"logging"`
	Security  SecurityConfig  `yaml:"security"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
// The broker is only contacted when gateway.transport is "mqtt".
type MQTTConfig struct {
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

// APITimeoutConfig contains HTTP timeout settings (seconds).
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

func (t APITimeoutConfig) ReadTimeout() time.Duration  { return seconds(t.Read) }
func (t APITimeoutConfig) WriteTimeout() time.Duration { return seconds(t.Write) }
func (t APITimeoutConfig) IdleTimeout() time.Duration  { return seconds(t.Idle) }

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// Gateway transports.
const (
	GatewayTransportHTTP = "http"
	GatewayTransportMQTT = "mqtt"
)

// GatewayConfig describes how commands reach the remote device gateway.
type GatewayConfig struct {
	// Transport selects the dispatch channel: "http" (default) or "mqtt".
	Transport string `yaml:"transport"`

	// URL is the base URL of the HTTP gateway. The dispatch request is
	// posted to {URL}/execute-command.
	URL string `yaml:"url"`

	// Token is the bearer credential sent with every HTTP dispatch.
	Token string `yaml:"token"`

	// Timeout bounds a single dispatch, in seconds.
	Timeout int `yaml:"timeout"`

	// TopicPrefix is the root of the MQTT command/response topics.
	TopicPrefix string `yaml:"topic_prefix"`
}

// DefaultGatewayTimeout applies when gateway.timeout is unset.
const DefaultGatewayTimeout = 10 * time.Second

// DispatchTimeout bounds one gateway round trip.
func (g GatewayConfig) DispatchTimeout() time.Duration {
	if g.Timeout <= 0 {
		return DefaultGatewayTimeout
	}
	return seconds(g.Timeout)
}

// ExecutionConfig contains command execution settings.
type ExecutionConfig struct {
	// SerializePerDevice holds a per-device lock for the whole
	// dispatch → reconcile → audit sequence.
	SerializePerDevice bool `yaml:"serialize_per_device"`
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

// JWTConfig contains JWT token settings.
type JWTConfig struct {
	Secret         string `yaml:"secret"`
	AccessTokenTTL int    `yaml:"access_token_ttl"` // minutes
}

// TokenTTL is the lifetime of tokens minted by `pinctl token`.
func (j JWTConfig) TokenTTL() time.Duration {
	return time.Duration(j.AccessTokenTTL) * time.Minute
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

// Load builds a Config from defaults, the YAML file at path and PINCTL_*
// environment variables, in that order, then validates it.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := defaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{Path: "./data/pinctl.db", WALMode: true, BusyTimeout: 5},
		MQTT: MQTTConfig{
			Broker:    MQTTBrokerConfig{Host: "localhost", Port: 1883, ClientID: "pinctl-core"},
			QoS:       1,
			Reconnect: MQTTReconnectConfig{InitialDelay: 1, MaxDelay: 60},
		},
		API: APIConfig{
			Host:     "0.0.0.0",
			Port:     8080,
			Timeouts: APITimeoutConfig{Read: 30, Write: 30, Idle: 60},
		},
		Gateway: GatewayConfig{
			Transport:   GatewayTransportHTTP,
			Timeout:     int(DefaultGatewayTimeout / time.Second),
			TopicPrefix: "pinctl",
		},
		Execution: ExecutionConfig{SerializePerDevice: true},
		InfluxDB:  InfluxDBConfig{Org: "pinctl", Bucket: "executions"},
		Logging:   LoggingConfig{Level: "info", Format: "json", Output: "stdout"},
		Security:  SecurityConfig{JWT: JWTConfig{AccessTokenTTL: 60}},
	}
}

// applyEnvOverrides copies set PINCTL_* variables over file values.
// Integer variables that do not parse are ignored.
func applyEnvOverrides(cfg *Config) {
	strs := map[string]*string{
		"PINCTL_DATABASE_PATH":     &cfg.Database.Path,
		"PINCTL_MQTT_HOST":         &cfg.MQTT.Broker.Host,
		"PINCTL_MQTT_USERNAME":     &cfg.MQTT.Auth.Username,
		"PINCTL_MQTT_PASSWORD":     &cfg.MQTT.Auth.Password,
		"PINCTL_API_HOST":          &cfg.API.Host,
		"PINCTL_GATEWAY_TRANSPORT": &cfg.Gateway.Transport,
		"PINCTL_GATEWAY_URL":       &cfg.Gateway.URL,
		"PINCTL_GATEWAY_TOKEN":     &cfg.Gateway.Token,
		"PINCTL_INFLUXDB_URL":      &cfg.InfluxDB.URL,
		"PINCTL_INFLUXDB_TOKEN":    &cfg.InfluxDB.Token,
		"PINCTL_LOG_LEVEL":         &cfg.Logging.Level,
		"PINCTL_JWT_SECRET":        &cfg.Security.JWT.Secret,
	}
	for key, dst := range strs {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	ints := map[string]*int{
		"PINCTL_MQTT_PORT":       &cfg.MQTT.Broker.Port,
		"PINCTL_API_PORT":        &cfg.API.Port,
		"PINCTL_GATEWAY_TIMEOUT": &cfg.Gateway.Timeout,
	}
	for key, dst := range ints {
		if n, err := strconv.Atoi(os.Getenv(key)); err == nil {
			*dst = n
		}
	}
}

// Validate reports every problem at once, wrapped in ErrInvalid.
func (c *Config) Validate() error {
	var problems []string
	check := func(ok bool, msg string) {
		if !ok {
			problems = append(problems, msg)
		}
	}

	check(c.Database.Path != "", "database.path is required")
	check(c.MQTT.QoS >= 0 && c.MQTT.QoS <= 2, "mqtt.qos must be 0, 1, or 2")
	check(c.API.Port >= 1 && c.API.Port <= 65535, "api.port must be between 1 and 65535")

	switch c.Gateway.Transport {
	case GatewayTransportHTTP:
		check(c.Gateway.URL != "", "gateway.url is required for the http transport")
	case GatewayTransportMQTT:
		check(c.Gateway.TopicPrefix != "", "gateway.topic_prefix is required for the mqtt transport")
	default:
		problems = append(problems, `gateway.transport must be "http" or "mqtt"`)
	}
	check(c.Gateway.Timeout > 0, "gateway.timeout must be positive")

	if c.InfluxDB.Enabled {
		check(c.InfluxDB.URL != "", "influxdb.url is required when influxdb is enabled")
	}

	// Anyone holding the secret can mint tokens that drive physical pins.
	const minJWTSecretLength = 32
	switch {
	case c.Security.JWT.Secret == "":
		problems = append(problems, "security.jwt.secret is required (set PINCTL_JWT_SECRET)")
	case len(c.Security.JWT.Secret) < minJWTSecretLength:
		problems = append(problems, "security.jwt.secret must be at least 32 characters")
	}
	check(c.Security.JWT.AccessTokenTTL > 0, "security.jwt.access_token_ttl must be positive")

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(problems, "; "))
	}
	return nil
}
