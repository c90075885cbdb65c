// Package config provides configuration structures and loading logic for the
// resolver and its daemon.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Asenturisk/asentu-browser/pkg/domain"
	"github.com/Asenturisk/asentu-browser/pkg/resolver"
)

// Resolver backends.
const (
	BackendDirect = "direct"
	BackendIPC    = "ipc"
)

// DefaultListen is the daemon address when none is configured.
const DefaultListen = "127.0.0.1:7457"

// Config holds the global configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Resolver  ResolverConfig  `yaml:"resolver"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig holds configuration for the resolver daemon.
type ServerConfig struct {
	// Listen is host:port or unix:///path/to.sock.
	Listen string `yaml:"listen"`
}

// DefaultEndpointTimeout bounds each request the ipc backend sends to the daemon.
const DefaultEndpointTimeout = 10 * time.Second

// ResolverConfig selects and tunes the resolver backend.
type ResolverConfig struct {
	Backend  string `yaml:"backend"`
	Endpoint string `yaml:"endpoint"`
	// EndpointTimeout bounds calls to the daemon (ipc backend only).
	EndpointTimeout time.Duration `yaml:"endpoint_timeout"`
	MappingsURL     string        `yaml:"mappings_url"`
	CacheTTL        time.Duration `yaml:"cache_ttl"`

	// FetchTimeout bounds the remote mapping fetch (direct backend only).
	FetchTimeout time.Duration     `yaml:"fetch_timeout"`
	Fallback     map[string]string `yaml:"fallback"`
}

// TelemetryConfig holds configuration for OpenTelemetry.
type TelemetryConfig struct {
	OTLPEndpoint string `yaml:"otlp_endpoint"`
	Insecure     bool   `yaml:"insecure"`
	ServiceName  string `yaml:"service_name"`
}

// LoggingConfig holds configuration for logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Listen: DefaultListen,
		},
		Resolver: ResolverConfig{
			Backend:         BackendDirect,
			EndpointTimeout: DefaultEndpointTimeout,
			MappingsURL:     resolver.DefaultMappingsURL,
			CacheTTL:        resolver.DefaultTTL,
		},
		Telemetry: TelemetryConfig{
			ServiceName: "asentu",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads configuration from a file and applies environment variable overrides.
// An empty path loads the defaults plus the environment.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		//nolint:gosec // Config file path is controlled by the operator
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func applyEnvOverrides(cfg *Config) error {
	if val := os.Getenv("ASENTU_LISTEN"); val != "" {
		cfg.Server.Listen = val
	}

	if val := os.Getenv("ASENTU_BACKEND"); val != "" {
		cfg.Resolver.Backend = val
	}
	if val := os.Getenv("ASENTU_ENDPOINT"); val != "" {
		cfg.Resolver.Endpoint = val
	}
	if val := os.Getenv("ASENTU_ENDPOINT_TIMEOUT"); val != "" {
		timeout, err := time.ParseDuration(val)
		if err != nil {
			return fmt.Errorf("%w: ASENTU_ENDPOINT_TIMEOUT: %v", domain.ErrConfigInvalid, err)
		}
		cfg.Resolver.EndpointTimeout = timeout
	}
	if val := os.Getenv("ASENTU_MAPPINGS_URL"); val != "" {
		cfg.Resolver.MappingsURL = val
	}
	if val := os.Getenv("ASENTU_CACHE_TTL"); val != "" {
		ttl, err := time.ParseDuration(val)
		if err != nil {
			return fmt.Errorf("%w: ASENTU_CACHE_TTL: %v", domain.ErrConfigInvalid, err)
		}
		cfg.Resolver.CacheTTL = ttl
	}

	if val := os.Getenv("ASENTU_OTLP_ENDPOINT"); val != "" {
		cfg.Telemetry.OTLPEndpoint = val
	}
	if val := os.Getenv("ASENTU_OTLP_INSECURE"); val != "" {
		insecure, err := strconv.ParseBool(val)
		if err != nil {
			return fmt.Errorf("%w: ASENTU_OTLP_INSECURE: %v", domain.ErrConfigInvalid, err)
		}
		cfg.Telemetry.Insecure = insecure
	}

	if val := os.Getenv("ASENTU_LOG_LEVEL"); val != "" {
		cfg.Logging.Level = val
	}

	return nil
}

// Validate performs validation of the entire configuration. Errors wrap
// domain.ErrConfigInvalid.
func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("%w: server configuration: %w", domain.ErrConfigInvalid, err)
	}

	if err := c.Resolver.Validate(); err != nil {
		return fmt.Errorf("%w: resolver configuration: %w", domain.ErrConfigInvalid, err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("%w: logging configuration: %w", domain.ErrConfigInvalid, err)
	}

	return nil
}

// Validate performs validation of server configuration
func (c *ServerConfig) Validate() error {
	if strings.TrimSpace(c.Listen) == "" {
		c.Listen = DefaultListen
	}
	if c.Listen == "unix://" {
		return fmt.Errorf("listen: empty unix socket path")
	}
	return nil
}

// Validate performs validation of resolver configuration
func (c *ResolverConfig) Validate() error {
	c.Backend = strings.ToLower(strings.TrimSpace(c.Backend))
	switch c.Backend {
	case "":
		c.Backend = BackendDirect
	case BackendDirect:
	case BackendIPC:
		if strings.TrimSpace(c.Endpoint) == "" {
			return fmt.Errorf("backend %q requires an endpoint", BackendIPC)
		}
	default:
		return fmt.Errorf("invalid backend %q, supported backends: %s, %s", c.Backend, BackendDirect, BackendIPC)
	}

	if err := validateHTTPURL(c.MappingsURL); err != nil {
		return fmt.Errorf("mappings_url: %w", err)
	}

	if c.CacheTTL <= 0 {
		return fmt.Errorf("cache_ttl must be positive, got %s", c.CacheTTL)
	}
	if c.FetchTimeout < 0 {
		return fmt.Errorf("fetch_timeout must not be negative, got %s", c.FetchTimeout)
	}
	if c.EndpointTimeout < 0 {
		return fmt.Errorf("endpoint_timeout must not be negative, got %s", c.EndpointTimeout)
	}

	for name, target := range c.Fallback {
		if !domain.HasSuffix(name) {
			return fmt.Errorf("fallback key %q must end in %s", name, domain.Suffix)
		}
		if err := validateHTTPURL(target); err != nil {
			return fmt.Errorf("fallback %q: %w", name, err)
		}
	}

	return nil
}

// Validate performs validation of logging configuration
func (c *LoggingConfig) Validate() error {
	if strings.TrimSpace(c.Level) == "" {
		c.Level = "info"
	}

	level := strings.TrimSpace(strings.ToLower(c.Level))
	switch level {
	case "debug", "info", "warn", "error":
		c.Level = level
	default:
		return fmt.Errorf("invalid log level %q, supported levels: debug, info, warn, error", c.Level)
	}

	switch strings.ToLower(c.Format) {
	case "":
		c.Format = "json"
	case "json", "text":
		c.Format = strings.ToLower(c.Format)
	default:
		return fmt.Errorf("invalid log format %q, supported formats: json, text", c.Format)
	}
	return nil
}

// RestartRequired lists the settings that differ between c and next but only
// take effect on restart. The fallback table is the one setting applied live.
func (c *Config) RestartRequired(next *Config) []string {
	var changed []string
	check := func(key string, differs bool) {
		if differs {
			changed = append(changed, key)
		}
	}

	check("server.listen", c.Server.Listen != next.Server.Listen)
	check("resolver.backend", c.Resolver.Backend != next.Resolver.Backend)
	check("resolver.endpoint", c.Resolver.Endpoint != next.Resolver.Endpoint)
	check("resolver.endpoint_timeout", c.Resolver.EndpointTimeout != next.Resolver.EndpointTimeout)
	check("resolver.mappings_url", c.Resolver.MappingsURL != next.Resolver.MappingsURL)
	check("resolver.cache_ttl", c.Resolver.CacheTTL != next.Resolver.CacheTTL)
	check("resolver.fetch_timeout", c.Resolver.FetchTimeout != next.Resolver.FetchTimeout)
	check("telemetry", c.Telemetry != next.Telemetry)
	check("logging.level", c.Logging.Level != next.Logging.Level)
	check("logging.format", c.Logging.Format != next.Logging.Format)

	return changed
}

// FallbackMapping returns the configured fallback table. Nil means use the defaults.
func (c *ResolverConfig) FallbackMapping() domain.Mapping {
	if len(c.Fallback) == 0 {
		return nil
	}
	return domain.Mapping(c.Fallback).Clone()
}

func validateHTTPURL(raw string) error {
	u, err := url.ParseRequestURI(raw)
	if err != nil {
		return fmt.Errorf("invalid url %q: %w", raw, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid url %q: must be an absolute http(s) url", raw)
	}
	return nil
}
