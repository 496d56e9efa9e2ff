package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/platinummonkey/rewind/pkg/observability"
)

// DefaultVersionHeader is the request header carrying the client's API version
const DefaultVersionHeader = "X-API-Version"

// Config holds all application configuration
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Versioning    VersioningConfig    `yaml:"versioning"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            string        `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	MaxBodyBytes    int64         `yaml:"max_body_bytes"`
	CORSOrigins     []string      `yaml:"cors_origins"`
}

// VersioningConfig controls version selection and migration
type VersioningConfig struct {
	Header        string        `yaml:"header"`
	PlanCacheSize int           `yaml:"plan_cache_size"`
	PlanCacheTTL  time.Duration `yaml:"plan_cache_ttl"`
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel       string                   `yaml:"log_level"`
	MetricsEnabled bool                     `yaml:"metrics_enabled"`
	OTel           observability.OTelConfig `yaml:"otel"`
}

// DefaultConfig returns the configuration used when nothing is set
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            "8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			MaxBodyBytes:    1 << 20,
		},
		Versioning: VersioningConfig{
			Header:        DefaultVersionHeader,
			PlanCacheSize: 1024,
			PlanCacheTTL:  0,
		},
		Observability: ObservabilityConfig{
			LogLevel:       "info",
			MetricsEnabled: true,
			OTel: observability.OTelConfig{
				Endpoint:       "localhost:4317",
				ServiceName:    "rewind",
				ServiceVersion: "1.0.0",
				Insecure:       true,
				SampleRatio:    1,
			},
		},
	}
}

// LoadConfig loads configuration from the file named by REWIND_CONFIG_FILE,
// if any, then from environment variables
func LoadConfig() (*Config, error) {
	return Load(os.Getenv("REWIND_CONFIG_FILE"))
}

// Load applies defaults, the YAML file at path (skipped when empty) and
// environment variables, in that order, then validates the result
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	cfg.loadEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) loadEnv() {
	s := &c.Server
	s.Host = getEnv("REWIND_HOST", s.Host)
	s.Port = getEnv("REWIND_PORT", s.Port)
	s.ReadTimeout = getEnvDuration("REWIND_READ_TIMEOUT", s.ReadTimeout)
	s.WriteTimeout = getEnvDuration("REWIND_WRITE_TIMEOUT", s.WriteTimeout)
	s.IdleTimeout = getEnvDuration("REWIND_IDLE_TIMEOUT", s.IdleTimeout)
	s.ShutdownTimeout = getEnvDuration("REWIND_SHUTDOWN_TIMEOUT", s.ShutdownTimeout)
	s.MaxBodyBytes = getEnvInt64("REWIND_MAX_BODY_BYTES", s.MaxBodyBytes)
	if origins := getEnv("REWIND_CORS_ORIGINS", ""); origins != "" {
		s.CORSOrigins = splitList(origins)
	}

	v := &c.Versioning
	v.Header = getEnv("REWIND_VERSION_HEADER", v.Header)
	v.PlanCacheSize = getEnvInt("REWIND_PLAN_CACHE_SIZE", v.PlanCacheSize)
	v.PlanCacheTTL = getEnvDuration("REWIND_PLAN_CACHE_TTL", v.PlanCacheTTL)

	o := &c.Observability
	o.LogLevel = getEnv("REWIND_LOG_LEVEL", o.LogLevel)
	o.MetricsEnabled = getEnvBool("REWIND_METRICS_ENABLED", o.MetricsEnabled)
	o.OTel.Enabled = getEnvBool("REWIND_OTEL_ENABLED", o.OTel.Enabled)
	o.OTel.Endpoint = getEnv("REWIND_OTEL_ENDPOINT", o.OTel.Endpoint)
	o.OTel.ServiceName = getEnv("REWIND_OTEL_SERVICE_NAME", o.OTel.ServiceName)
	o.OTel.ServiceVersion = getEnv("REWIND_OTEL_SERVICE_VERSION", o.OTel.ServiceVersion)
	o.OTel.Insecure = getEnvBool("REWIND_OTEL_INSECURE", o.OTel.Insecure)
	o.OTel.SampleRatio = getEnvFloat("REWIND_OTEL_SAMPLE_RATIO", o.OTel.SampleRatio)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	if port, err := strconv.Atoi(c.Server.Port); err != nil || port < 1 || port > 65535 {
		errs = append(errs, fmt.Errorf("server port must be a number between 1 and 65535, got %q", c.Server.Port))
	}
	if c.Server.ReadTimeout <= 0 || c.Server.WriteTimeout <= 0 {
		errs = append(errs, errors.New("read and write timeouts must be positive"))
	}
	if c.Server.ShutdownTimeout <= 0 {
		errs = append(errs, errors.New("shutdown timeout must be positive"))
	}
	if c.Server.MaxBodyBytes < 0 {
		errs = append(errs, errors.New("max body bytes cannot be negative"))
	}

	if c.Versioning.Header == "" || strings.ContainsAny(c.Versioning.Header, " \t:") {
		errs = append(errs, fmt.Errorf("version header %q is not a valid header name", c.Versioning.Header))
	}
	if c.Versioning.PlanCacheSize < 0 {
		errs = append(errs, errors.New("plan cache size cannot be negative"))
	}

	switch strings.ToLower(c.Observability.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Errorf("invalid log level %q (must be debug, info, warn or error)", c.Observability.LogLevel))
	}

	if otel := c.Observability.OTel; otel.Enabled {
		if otel.Endpoint == "" {
			errs = append(errs, errors.New("OpenTelemetry endpoint is required when OTel is enabled"))
		}
		if otel.ServiceName == "" {
			errs = append(errs, errors.New("OpenTelemetry service name is required when OTel is enabled"))
		}
		if otel.SampleRatio < 0 || otel.SampleRatio > 1 {
			errs = append(errs, fmt.Errorf("OpenTelemetry sample ratio must be within [0, 1], got %v", otel.SampleRatio))
		}
	}

	return errors.Join(errs...)
}

// Addr is the listen address of the HTTP server
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Server.Host, c.Server.Port)
}

// LogLevel returns the parsed log level
func (c *Config) LogLevel() observability.LogLevel {
	return observability.ParseLogLevel(c.Observability.LogLevel)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvInt64 returns an int64 environment variable or a default
func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
