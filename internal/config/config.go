package config

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

// Config holds the service configuration.
type Config struct {
	ListenHost string `mapstructure:"listen_host"`
	ListenPort string `mapstructure:"listen_port"`
	Greeting   string `mapstructure:"greeting"`
	// PrometheusPath exposes the real request instrumentation. Empty disables it.
	PrometheusPath  string        `mapstructure:"prometheus_path"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`

	Logging   LoggingConfig   `mapstructure:"logging"`
	Tracing   TracingConfig   `mapstructure:"tracing"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

// LoggingConfig controls the zap logger. Level is the only setting applied live.
type LoggingConfig struct {
	Level       string `mapstructure:"level"`
	Environment string `mapstructure:"environment"`
}

// TracingConfig controls the OTLP trace exporter.
type TracingConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	ServiceName string `mapstructure:"service_name"`
	Endpoint    string `mapstructure:"endpoint"`
	Insecure    bool   `mapstructure:"insecure"`
}

// RateLimitConfig enables token buckets for the listed routes.
type RateLimitConfig struct {
	RequestsPerSecond int      `mapstructure:"requests_per_second"`
	BurstSize         int      `mapstructure:"burst_size"`
	Routes            []string `mapstructure:"routes"`
}

// probe routes must always answer 200, so they are never rate limited
var probeRoutes = map[string]bool{"/health": true, "/ready": true}

var fixedRoutes = map[string]bool{"/": true, "/health": true, "/ready": true, "/metrics": true, "/error": true}

var validLogLevels = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}

func setDefaults(v *viper.Viper) {
	v.SetDefault("listen_host", "0.0.0.0")
	v.SetDefault("listen_port", "80")
	v.SetDefault("greeting", "Hello, Veriff Observability!")
	v.SetDefault("prometheus_path", "/prometheus")
	v.SetDefault("shutdown_timeout", "10s")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.environment", "production")
	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.service_name", "beacon")
	v.SetDefault("tracing.endpoint", "localhost:4318")
	v.SetDefault("tracing.insecure", true)
	v.SetDefault("rate_limit.requests_per_second", 0)
	v.SetDefault("rate_limit.burst_size", 0)
	v.SetDefault("rate_limit.routes", []string{})
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	cfg, _ := decode(v)
	return cfg
}

// LoadConfig reads the YAML file at path on top of the defaults.
// An empty path yields the defaults.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	cfg, err := decode(v)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// WatchConfig re-reads path whenever it is written and hands the result to
// onChange. Invalid files are reported through the error argument and the
// previous configuration stays in effect on the caller's side.
func WatchConfig(path string, onChange func(*Config, error)) error {
	if path == "" {
		return fmt.Errorf("watch config: empty path")
	}
	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("error reading config file: %w", err)
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		// viper keeps its previous settings when the new file fails to parse,
		// so the file is read again from scratch
		cfg, err := LoadConfig(path)
		if err != nil {
			onChange(nil, err)
			return
		}
		onChange(cfg, nil)
	})
	v.WatchConfig()
	return nil
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	cfg.Logging.Level = strings.ToLower(strings.TrimSpace(cfg.Logging.Level))
	return &cfg, nil
}

// Validate checks the configuration for values the service cannot run with.
func (c *Config) Validate() error {
	port, err := strconv.Atoi(c.ListenPort)
	if err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("%w: listen_port %q", ErrInvalidConfig, c.ListenPort)
	}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("%w: log level %q (must be debug, info, warn, or error)", ErrInvalidConfig, c.Logging.Level)
	}
	if c.PrometheusPath != "" {
		if !strings.HasPrefix(c.PrometheusPath, "/") {
			return fmt.Errorf("%w: prometheus_path %q must start with /", ErrInvalidConfig, c.PrometheusPath)
		}
		if fixedRoutes[c.PrometheusPath] {
			return fmt.Errorf("%w: prometheus_path %q collides with a fixed route", ErrInvalidConfig, c.PrometheusPath)
		}
	}
	if c.Tracing.Enabled && c.Tracing.Endpoint == "" {
		return fmt.Errorf("%w: tracing enabled without endpoint", ErrInvalidConfig)
	}
	if c.RateLimit.RequestsPerSecond < 0 || c.RateLimit.BurstSize < 0 {
		return fmt.Errorf("%w: negative rate limit", ErrInvalidConfig)
	}
	for _, route := range c.RateLimit.Routes {
		if probeRoutes[route] {
			return fmt.Errorf("%w: probe route %s cannot be rate limited", ErrInvalidConfig, route)
		}
	}
	return nil
}

// ListenAddr returns host:port for the listener.
func (c *Config) ListenAddr() string {
	return net.JoinHostPort(c.ListenHost, c.ListenPort)
}
