package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"shareit/internal/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DriverSQLite = "sqlite3"
	DriverMemory = "memory"
)

type Config struct {
	App        AppConfig        `yaml:"app"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Backup     BackupConfig     `yaml:"backup"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Logging    LoggingConfig    `yaml:"logging"`
	API        APIConfig        `yaml:"api"`
	Booking    BookingConfig    `yaml:"booking"`
	Events     EventsConfig     `yaml:"events"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	Path   string `yaml:"path"`
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

type BackupConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Schedule      string `yaml:"schedule"`
	RetentionDays int    `yaml:"retention_days"`
	StoragePath   string `yaml:"storage_path"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool `yaml:"prometheus_enabled"`
	PrometheusPort    int  `yaml:"prometheus_port"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

type APIConfig struct {
	HTTP      APIHTTPConfig      `yaml:"http"`
	GRPC      APIGRPCConfig      `yaml:"grpc"`
	Auth      APIAuthConfig      `yaml:"auth"`
	RateLimit APIRateLimitConfig `yaml:"rate_limit"`
}

type APIHTTPConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

type APIGRPCConfig struct {
	Enabled    bool         `yaml:"enabled"`
	Port       int          `yaml:"port"`
	Reflection bool         `yaml:"reflection"`
	TLS        APITLSConfig `yaml:"tls"`
}

type APITLSConfig struct {
	Enabled           bool   `yaml:"enabled"`
	CertFile          string `yaml:"cert_file"`
	KeyFile           string `yaml:"key_file"`
	ClientCAFile      string `yaml:"client_ca_file"`
	RequireClientCert bool   `yaml:"require_client_cert"`
}

// APIAuthConfig enables API-key checks when at least one key is configured.
type APIAuthConfig struct {
	Enabled      bool           `yaml:"enabled"`
	HeaderAPIKey string         `yaml:"header_api_key"`
	HeaderExtra  string         `yaml:"header_extra"`
	APIKeys      []APIClientKey `yaml:"api_keys"`
}

type APIClientKey struct {
	Key         string   `yaml:"key"`
	Extra       string   `yaml:"extra"`
	Name        string   `yaml:"name"`
	Permissions []string `yaml:"permissions"`
}

type APIRateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

type BookingConfig struct {
	DefaultPageSize int         `yaml:"default_page_size"`
	WriteQuota      QuotaConfig `yaml:"write_quota"`
}

type QuotaConfig struct {
	Enabled bool `yaml:"enabled"`
	Limit   int  `yaml:"limit"`
	// Window in seconds.
	Window int `yaml:"window"`
}

func (q QuotaConfig) WindowDuration() time.Duration {
	return time.Duration(q.Window) * time.Second
}

type EventsConfig struct {
	AMQPURL       string      `yaml:"amqp_url"`
	Exchange      string      `yaml:"exchange"`
	RoutingPrefix string      `yaml:"routing_prefix"`
	Retry         RetryConfig `yaml:"retry"`
}

type RetryConfig struct {
	MaxRetries     int           `yaml:"max_retries"`
	InitialDelay   time.Duration `yaml:"initial_delay"`
	MaxDelay       time.Duration `yaml:"max_delay"`
	BackoffFactor  float64       `yaml:"backoff_factor"`
	// Jitter is the fraction of each delay randomly added or removed.
	Jitter         float64       `yaml:"jitter"`
	AttemptTimeout time.Duration `yaml:"attempt_timeout"`
}

func Load(configPath string) (*Config, error) {
	// .env is optional; real environment variables win
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	expandedData := []byte(os.ExpandEnv(string(data)))

	var config Config
	if err := yaml.Unmarshal(expandedData, &config); err != nil {
		return nil, err
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) Validate() error {
	switch c.Database.Driver {
	case DriverSQLite:
		if c.Database.Path == "" {
			return errors.New("database path is required")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}

	if c.Booking.DefaultPageSize <= 0 {
		return errors.New("booking.default_page_size must be positive")
	}
	if c.Booking.WriteQuota.Enabled && (c.Booking.WriteQuota.Limit <= 0 || c.Booking.WriteQuota.Window <= 0) {
		return errors.New("booking.write_quota needs a positive limit and window")
	}

	seen := make(map[string]bool, len(c.API.Auth.APIKeys))
	for _, k := range c.API.Auth.APIKeys {
		if strings.TrimSpace(k.Key) == "" {
			return fmt.Errorf("api key %q has an empty key", k.Name)
		}
		if seen[k.Key] {
			return fmt.Errorf("duplicate api key for client %q", k.Name)
		}
		seen[k.Key] = true
	}

	if c.API.GRPC.TLS.Enabled && (c.API.GRPC.TLS.CertFile == "" || c.API.GRPC.TLS.KeyFile == "") {
		return errors.New("grpc tls enabled but cert_file/key_file not set")
	}

	if c.Backup.Enabled && c.Backup.StoragePath == "" {
		return errors.New("backup.storage_path is required when backups are enabled")
	}

	return nil
}

func (c *Config) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "shareit"
	}
	if c.Database.Driver == "" {
		c.Database.Driver = DriverSQLite
	}
	if c.API.GRPC.Port == 0 {
		c.API.GRPC.Port = 9091
	}
	if c.API.HTTP.Port == 0 {
		c.API.HTTP.Port = 9090
	}
	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9100
	}
	// auth follows the presence of keys
	c.API.Auth.Enabled = len(c.API.Auth.APIKeys) > 0
	if c.API.Auth.HeaderAPIKey == "" {
		c.API.Auth.HeaderAPIKey = "x-api-key"
	}
	if c.API.Auth.HeaderExtra == "" {
		c.API.Auth.HeaderExtra = "x-api-extra"
	}

	if c.Booking.DefaultPageSize == 0 {
		c.Booking.DefaultPageSize = models.DefaultPageSize
	}
	if c.Booking.WriteQuota.Limit == 0 {
		c.Booking.WriteQuota.Limit = models.DefaultQuotaLimit
	}
	if c.Booking.WriteQuota.Window == 0 {
		c.Booking.WriteQuota.Window = models.DefaultQuotaWindow
	}

	if c.Events.Exchange == "" {
		c.Events.Exchange = "shareit.events"
	}
	if c.Events.RoutingPrefix == "" {
		c.Events.RoutingPrefix = "shareit"
	}
	if c.Events.Retry.MaxRetries == 0 {
		c.Events.Retry.MaxRetries = 3
	}
	if c.Events.Retry.InitialDelay == 0 {
		c.Events.Retry.InitialDelay = 500 * time.Millisecond
	}
	if c.Events.Retry.MaxDelay == 0 {
		c.Events.Retry.MaxDelay = 10 * time.Second
	}
	if c.Events.Retry.AttemptTimeout == 0 {
		c.Events.Retry.AttemptTimeout = 5 * time.Second
	}
}
