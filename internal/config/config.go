package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/livetemplate/signup/internal/runtime"
	"github.com/livetemplate/signup/internal/security"
	"gopkg.in/yaml.v3"
)

// FileName is the config file looked up in the working directory.
const FileName = "signup.yaml"

// Environment variables that override the file.
const (
	EnvAPIURL        = "SIGNUP_API_URL"
	EnvPort          = "SIGNUP_PORT"
	EnvHost          = "SIGNUP_HOST"
	EnvFailurePolicy = "SIGNUP_FAILURE_POLICY"
	EnvDebug         = "SIGNUP_DEBUG"
)

const (
	defaultSessionTTL = 30 * time.Minute
	defaultAPITimeout = 10 * time.Second
	defaultRateRPS    = 10.0
	defaultRateBurst  = 20
	defaultRateMaxIPs = 10000
	defaultAPIBaseURL = "http://localhost:8080"
	defaultServerHost = "localhost"
	defaultServerPort = 3000
)

// Config represents the signup.yaml configuration file
type Config struct {
	Server ServerConfig `yaml:"server"`
	API    APIConfig    `yaml:"api"`
	Debug  bool         `yaml:"debug"`
}

// ServerConfig contains page server settings
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`

	// SessionTTL is how long a rendered page waits for its websocket
	// before it is discarded (e.g. "30m").
	SessionTTL string `yaml:"session_ttl,omitempty"`

	RateLimit *RateLimitConfig `yaml:"rate_limit,omitempty"`

	// DevAPI mounts the development users API on the page server.
	DevAPI bool `yaml:"dev_api,omitempty"`
}

// RateLimitConfig configures per-IP rate limiting of POST / and /ws
type RateLimitConfig struct {
	RPS    float64 `yaml:"rps,omitempty"`
	Burst  int     `yaml:"burst,omitempty"`
	MaxIPs int     `yaml:"max_ips,omitempty"`
}

// APIConfig points the page at the users API
type APIConfig struct {
	BaseURL       string `yaml:"base_url"`
	Timeout       string `yaml:"timeout,omitempty"`
	FailurePolicy string `yaml:"failure_policy,omitempty"`
}

// Addr returns host:port for net.Listen.
func (c ServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// GetSessionTTL returns the session TTL (default: 30m)
func (c ServerConfig) GetSessionTTL() time.Duration {
	if c.SessionTTL == "" {
		return defaultSessionTTL
	}
	d, err := time.ParseDuration(c.SessionTTL)
	if err != nil || d <= 0 {
		return defaultSessionTTL
	}
	return d
}

// GetRateLimitRPS returns the requests per second allowed per IP (default: 10)
func (c ServerConfig) GetRateLimitRPS() float64 {
	if c.RateLimit == nil || c.RateLimit.RPS <= 0 {
		return defaultRateRPS
	}
	return c.RateLimit.RPS
}

// GetRateLimitBurst returns the burst size (default: 20)
func (c ServerConfig) GetRateLimitBurst() int {
	if c.RateLimit == nil || c.RateLimit.Burst <= 0 {
		return defaultRateBurst
	}
	return c.RateLimit.Burst
}

// GetRateLimitMaxIPs returns how many client IPs are tracked (default: 10000)
func (c ServerConfig) GetRateLimitMaxIPs() int {
	if c.RateLimit == nil || c.RateLimit.MaxIPs <= 0 {
		return defaultRateMaxIPs
	}
	return c.RateLimit.MaxIPs
}

// GetTimeout returns the per-request timeout (default: 10s).
// "0" disables the timeout.
func (c APIConfig) GetTimeout() time.Duration {
	if c.Timeout == "" {
		return defaultAPITimeout
	}
	d, err := time.ParseDuration(c.Timeout)
	if err != nil || d < 0 {
		return defaultAPITimeout
	}
	return d
}

// GetFailurePolicy returns the configured failure policy, stall when unset
// or invalid. Validate reports invalid values.
func (c APIConfig) GetFailurePolicy() runtime.FailurePolicy {
	p, err := runtime.ParseFailurePolicy(c.FailurePolicy)
	if err != nil {
		return runtime.FailureStall
	}
	return p
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: defaultServerHost,
			Port: defaultServerPort,
		},
		API: APIConfig{
			BaseURL: defaultAPIBaseURL,
		},
	}
}

// Validate checks values that would otherwise be silently defaulted.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	if c.API.BaseURL == "" {
		errs = append(errs, errors.New("api.base_url is required"))
	} else if err := security.ValidateBaseURL(c.API.BaseURL); err != nil {
		errs = append(errs, fmt.Errorf("api.base_url: %w", err))
	}
	if _, err := runtime.ParseFailurePolicy(c.API.FailurePolicy); err != nil {
		errs = append(errs, fmt.Errorf("api.failure_policy: %w", err))
	}
	if c.API.Timeout != "" {
		if _, err := time.ParseDuration(c.API.Timeout); err != nil {
			errs = append(errs, fmt.Errorf("api.timeout: %w", err))
		}
	}
	if c.Server.SessionTTL != "" {
		if _, err := time.ParseDuration(c.Server.SessionTTL); err != nil {
			errs = append(errs, fmt.Errorf("server.session_ttl: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Load loads configuration from a YAML file
// If the file doesn't exist, returns the default configuration
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		return DefaultConfig(), nil
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return DefaultConfig(), nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig() // Start with defaults
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// LoadFromDir loads signup.yaml from dir, or the defaults when there is none
func LoadFromDir(dir string) (*Config, error) {
	return Load(filepath.Join(dir, FileName))
}

// LoadDotEnv loads .env files into the process environment. Missing files
// are skipped; variables already set win.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); os.IsNotExist(err) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
	}
	return nil
}

// ApplyEnv overrides the configuration from SIGNUP_* variables.
func (c *Config) ApplyEnv() error {
	return c.applyEnv(os.LookupEnv)
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvAPIURL); ok && v != "" {
		c.API.BaseURL = v
	}
	if v, ok := lookup(EnvHost); ok && v != "" {
		c.Server.Host = v
	}
	if v, ok := lookup(EnvPort); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvPort, err)
		}
		c.Server.Port = port
	}
	if v, ok := lookup(EnvFailurePolicy); ok && v != "" {
		c.API.FailurePolicy = strings.ToLower(v)
	}
	if v, ok := lookup(EnvDebug); ok && v != "" {
		debug, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvDebug, err)
		}
		c.Debug = debug
	}
	return nil
}

// Save writes the configuration to a YAML file
func (c *Config) Save(configPath string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
