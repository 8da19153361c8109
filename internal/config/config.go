// Package config loads the healthd YAML configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jonwraymond/probekit/health"
	"github.com/jonwraymond/probekit/observe"
)

// Duration is a time.Duration that unmarshals from a YAML string like "30s".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	d.Duration = dur
	return nil
}

func (d Duration) MarshalYAML() (any, error) {
	return d.String(), nil
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Address         string   `yaml:"address"`
	Route           string   `yaml:"route"`
	LivenessRoute   string   `yaml:"liveness_route"`
	MetricsRoute    string   `yaml:"metrics_route"`
	ShutdownTimeout Duration `yaml:"shutdown_timeout"`
}

// DiscoveryConfig selects where probes come from.
type DiscoveryConfig struct {
	Strategy        string   `yaml:"strategy"`
	Primary         string   `yaml:"primary"`
	PluginDir       string   `yaml:"plugin_dir"`
	OnCollision     string   `yaml:"on_collision"`
	ExcludePackages []string `yaml:"exclude_packages"`
}

// RetryConfig re-runs probes that return an error.
type RetryConfig struct {
	Attempts int      `yaml:"attempts"`
	Delay    Duration `yaml:"delay"`
}

// RunnerConfig bounds probe execution.
type RunnerConfig struct {
	Timeout       Duration            `yaml:"timeout"`
	Timeouts      map[string]Duration `yaml:"timeouts"`
	TimeoutStatus string              `yaml:"timeout_status"`
	FailureStatus string              `yaml:"failure_status"`
	MaxConcurrent int                 `yaml:"max_concurrent"`
	Retry         RetryConfig         `yaml:"retry"`
}

// CacheConfig holds report caching settings.
type CacheConfig struct {
	TTL Duration `yaml:"ttl"`
}

// AuthConfig protects the report endpoint. Values may be secret references.
type AuthConfig struct {
	APIKeys      []string `yaml:"api_keys"`
	APIKeyHeader string   `yaml:"api_key_header"`
	JWTSecret    string   `yaml:"jwt_secret"`
	JWTIssuer    string   `yaml:"jwt_issuer"`
	JWTAudience  string   `yaml:"jwt_audience"`
}

// Enabled reports whether any credential is configured.
func (a AuthConfig) Enabled() bool {
	return len(a.APIKeys) > 0 || a.JWTSecret != ""
}

// ObserveConfig configures logging and telemetry.
type ObserveConfig struct {
	ServiceName     string  `yaml:"service_name"`
	LogLevel        string  `yaml:"log_level"`
	TracingExporter string  `yaml:"tracing_exporter"`
	SamplePct       float64 `yaml:"sample_pct"`
	MetricsExporter string  `yaml:"metrics_exporter"`
}

// Config is the root application configuration.
type Config struct {
	Server    ServerConfig              `yaml:"server"`
	Discovery DiscoveryConfig           `yaml:"discovery"`
	Runner    RunnerConfig              `yaml:"runner"`
	Cache     CacheConfig               `yaml:"cache"`
	Auth      AuthConfig                `yaml:"auth"`
	Secrets   map[string]map[string]any `yaml:"secrets"`
	Observe   ObserveConfig             `yaml:"observe"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads, parses, and validates the config file at path. An empty
// path yields Default.
func Load(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return Parse(data)
}

// Parse parses and validates YAML config data.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Address == "" {
		c.Server.Address = ":8080"
	}
	if c.Server.Route == "" {
		c.Server.Route = health.DefaultRoute
	}
	if c.Server.LivenessRoute == "" {
		c.Server.LivenessRoute = "/healthz"
	}
	if c.Server.MetricsRoute == "" {
		c.Server.MetricsRoute = "/metrics"
	}
	if c.Server.ShutdownTimeout.Duration == 0 {
		c.Server.ShutdownTimeout = Duration{30 * time.Second}
	}
	if c.Observe.ServiceName == "" {
		c.Observe.ServiceName = "healthd"
	}
	if c.Observe.LogLevel == "" {
		c.Observe.LogLevel = "info"
	}
	if c.Observe.SamplePct == 0 {
		c.Observe.SamplePct = 1.0
	}
	if c.Secrets == nil {
		c.Secrets = make(map[string]map[string]any)
	}
	if _, ok := c.Secrets["env"]; !ok {
		c.Secrets["env"] = nil
	}
}

// Validate reports every invalid field, each prefixed with its YAML path.
func (c *Config) Validate() error {
	var errs []error
	field := func(name string, err error) {
		errs = append(errs, fmt.Errorf("%s: %w", name, err))
	}

	if !strings.HasPrefix(c.Server.Route, "/") {
		field("server.route", fmt.Errorf("must start with /, got %q", c.Server.Route))
	}
	if _, err := health.ParseStrategy(c.Discovery.Strategy); err != nil {
		field("discovery.strategy", err)
	}
	if _, err := health.ParseCollisionPolicy(c.Discovery.OnCollision); err != nil {
		field("discovery.on_collision", err)
	}
	if _, err := parseStatus(c.Runner.TimeoutStatus); err != nil {
		field("runner.timeout_status", err)
	}
	if _, err := parseStatus(c.Runner.FailureStatus); err != nil {
		field("runner.failure_status", err)
	}
	if c.Runner.Timeout.Duration < 0 {
		field("runner.timeout", errors.New("must not be negative"))
	}
	for name, d := range c.Runner.Timeouts {
		if d.Duration <= 0 {
			field("runner.timeouts."+name, errors.New("must be positive"))
		}
	}
	if c.Runner.MaxConcurrent < 0 {
		field("runner.max_concurrent", errors.New("must not be negative"))
	}
	if c.Runner.Retry.Attempts < 0 {
		field("runner.retry.attempts", errors.New("must not be negative"))
	}
	if c.Cache.TTL.Duration < 0 {
		field("cache.ttl", errors.New("must not be negative"))
	}
	if !slices.Contains(observe.ValidLogLevels, c.Observe.LogLevel) {
		field("observe.log_level", fmt.Errorf("%w: %q", observe.ErrInvalidLogLevel, c.Observe.LogLevel))
	}
	if !slices.Contains(observe.ValidTracingExporters, c.Observe.TracingExporter) {
		field("observe.tracing_exporter", fmt.Errorf("%w: %q", observe.ErrInvalidTracingExporter, c.Observe.TracingExporter))
	}
	if !slices.Contains(observe.ValidMetricsExporters, c.Observe.MetricsExporter) {
		field("observe.metrics_exporter", fmt.Errorf("%w: %q", observe.ErrInvalidMetricsExporter, c.Observe.MetricsExporter))
	}
	if c.Observe.SamplePct < 0 || c.Observe.SamplePct > 1 {
		field("observe.sample_pct", observe.ErrInvalidSamplePct)
	}

	return errors.Join(errs...)
}

// parseStatus treats the empty string as unset.
func parseStatus(name string) (health.Status, error) {
	if name == "" {
		return health.StatusUnhealthy, nil
	}
	return health.ParseStatus(name)
}
