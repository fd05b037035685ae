package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the circare navigator configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Auth      AuthConfig      `yaml:"auth"`
	Upstream  UpstreamConfig  `yaml:"upstream"`
	Database  DatabaseConfig  `yaml:"database"`
	Navigator NavigatorConfig `yaml:"navigator"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
	// MaxUploadMB caps multipart reference uploads.
	MaxUploadMB int `yaml:"max_upload_mb"`
}

// UpstreamConfig points at the Arch-Circare search API.
type UpstreamConfig struct {
	BaseURL    string  `yaml:"base_url"`
	Token      string  `yaml:"token"`
	TimeoutSec int     `yaml:"timeout_sec"`
	Retries    int     `yaml:"retries"`
	RateLimit  float64 `yaml:"rate_limit"` // requests per second, 0 = unlimited
	RateBurst  int     `yaml:"rate_burst"`
}

// DatabaseConfig holds session store settings.
type DatabaseConfig struct {
	Driver           string   `yaml:"driver"` // valkey, redis, file, memory (default: memory)
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	Path             string   `yaml:"path"` // file driver only
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
	SessionTTLHours  int      `yaml:"session_ttl_hours"`
}

// NavigatorConfig holds per-session timing.
type NavigatorConfig struct {
	SearchTimeoutSec   int `yaml:"search_timeout_sec"`
	FeedbackDelayMS    int `yaml:"feedback_delay_ms"`
	FeedbackTimeoutSec int `yaml:"feedback_timeout_sec"`
	NotifyTTLMS        int `yaml:"notify_ttl_ms"`
	ViewportWidth      int `yaml:"viewport_width"`
	ViewportHeight     int `yaml:"viewport_height"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 60
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.HTTP.MaxUploadMB <= 0 {
		c.HTTP.MaxUploadMB = 20
	}
	if c.Upstream.TimeoutSec <= 0 {
		c.Upstream.TimeoutSec = 30
	}
	if c.Upstream.Retries < 0 {
		c.Upstream.Retries = 0
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "memory"
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Database.SessionTTLHours <= 0 {
		c.Database.SessionTTLHours = 24 * 7
	}
	if c.Navigator.SearchTimeoutSec <= 0 {
		c.Navigator.SearchTimeoutSec = 30
	}
	if c.Navigator.FeedbackDelayMS <= 0 {
		c.Navigator.FeedbackDelayMS = 800
	}
	if c.Navigator.FeedbackTimeoutSec <= 0 {
		c.Navigator.FeedbackTimeoutSec = 10
	}
	if c.Navigator.NotifyTTLMS <= 0 {
		c.Navigator.NotifyTTLMS = 4000
	}
	if c.Navigator.ViewportWidth <= 0 {
		c.Navigator.ViewportWidth = 420
	}
	if c.Navigator.ViewportHeight <= 0 {
		c.Navigator.ViewportHeight = 260
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if c.Upstream.BaseURL == "" {
		return fmt.Errorf("upstream.base_url is required")
	}
	if u, err := url.Parse(c.Upstream.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("upstream.base_url must be an absolute url, got %q", c.Upstream.BaseURL)
	}
	if c.Upstream.RateLimit < 0 {
		return fmt.Errorf("upstream.rate_limit must be >= 0, got %g", c.Upstream.RateLimit)
	}
	switch c.Database.Driver {
	case "valkey", "redis":
		if len(c.Database.Addrs) == 0 {
			return fmt.Errorf("database.addrs is required for driver %q", c.Database.Driver)
		}
	case "file":
		if c.Database.Path == "" {
			return fmt.Errorf("database.path is required for driver \"file\"")
		}
	case "memory":
	default:
		return fmt.Errorf("database.driver must be one of valkey, redis, file, memory, got %q", c.Database.Driver)
	}
	return nil
}

// SessionTTL is how long an untouched session survives in the store.
func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.Database.SessionTTLHours) * time.Hour
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
