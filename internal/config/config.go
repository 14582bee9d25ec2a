package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the fallsearch service configuration.
type Config struct {
	HTTP    HTTPConfig    `yaml:"http"`
	Storage StorageConfig `yaml:"storage"`
	Rewrite RewriteConfig `yaml:"rewrite"`
	Search  SearchConfig  `yaml:"search"`
	Auth    AuthConfig    `yaml:"auth"`
	Logging LoggingConfig `yaml:"logging"`
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
}

// Storage drivers.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
	DriverValkey   = "valkey"
)

// StorageConfig selects and configures the record storage backend.
type StorageConfig struct {
	Driver string `yaml:"driver"` // memory (default), postgres, redis, valkey
	// Fixtures is a YAML file with record types and records. Loaded by the
	// memory driver, and seeded into redis/valkey when Seed is set.
	Fixtures string `yaml:"fixtures"`
	Seed     bool   `yaml:"seed"`

	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	KeyPrefix        string   `yaml:"key_prefix"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`

	Postgres PostgresConfig `yaml:"postgres"`
}

// PostgresConfig holds connection settings and the tables exposed as record types.
type PostgresConfig struct {
	Host     string        `yaml:"host"`
	Port     int           `yaml:"port"`
	Name     string        `yaml:"name"`
	User     string        `yaml:"user"`
	Password string        `yaml:"password"`
	SSLMode  string        `yaml:"sslmode"`
	Schema   string        `yaml:"schema"`
	Tables   []TableConfig `yaml:"tables"`
}

// TableConfig maps one table onto a record type.
type TableConfig struct {
	Type       string   `yaml:"type"`
	Table      string   `yaml:"table"`
	PK         string   `yaml:"pk"`
	References []string `yaml:"references"`
}

// RewriteConfig holds the query translation fallback settings.
type RewriteConfig struct {
	Enabled     bool    `yaml:"enabled"`
	Provider    string  `yaml:"provider"`
	APIKey      string  `yaml:"api_key"`
	BaseURL     string  `yaml:"base_url"`
	Model       string  `yaml:"model"`
	Temperature float32 `yaml:"temperature"`
	Prompt      string  `yaml:"prompt"` // must contain {query}
	TimeoutSec  int     `yaml:"timeout_sec"`
	// Hardened returns the first pass outcome when the rewrite fails.
	// Nil means true.
	Hardened  *bool           `yaml:"hardened"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Quota     QuotaConfig     `yaml:"quota"`
}

// QuotaConfig caps provider calls per UTC day and month. Counters persist
// in redis/valkey storage; other drivers count in memory only.
type QuotaConfig struct {
	Daily   int64  `yaml:"daily"`   // 0 = unlimited
	Monthly int64  `yaml:"monthly"` // 0 = unlimited
	Action  string `yaml:"action"`  // reject (default), warn
}

// IsHardened reports whether rewrite failures are swallowed.
func (r RewriteConfig) IsHardened() bool {
	return r.Hardened == nil || *r.Hardened
}

// RateLimitConfig bounds calls to the rewrite provider.
type RateLimitConfig struct {
	RPS   float64 `yaml:"rps"` // 0 = unlimited
	Burst int     `yaml:"burst"`
	Wait  bool    `yaml:"wait"` // wait for a token instead of failing fast
}

// SearchConfig holds search executor settings.
type SearchConfig struct {
	TermPolicy string `yaml:"term_policy"` // overwrite (default), conjunctive
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
		c.HTTP.WriteTimeoutSec = 30
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = DriverMemory
	}
	if c.Storage.ReadinessTimeout <= 0 {
		c.Storage.ReadinessTimeout = 10
	}
	if c.Storage.KeyPrefix == "" {
		c.Storage.KeyPrefix = "fallsearch:"
	}
	if c.Rewrite.Provider == "" {
		c.Rewrite.Provider = "openai"
	}
	if c.Rewrite.Model == "" {
		c.Rewrite.Model = "gpt-3.5-turbo"
	}
	if c.Rewrite.Temperature == 0 {
		c.Rewrite.Temperature = 0.9
	}
	if c.Rewrite.TimeoutSec <= 0 {
		c.Rewrite.TimeoutSec = 10
	}
	if c.Rewrite.RateLimit.RPS > 0 && c.Rewrite.RateLimit.Burst <= 0 {
		c.Rewrite.RateLimit.Burst = 1
	}
	if c.Rewrite.Quota.Action == "" {
		c.Rewrite.Quota.Action = "reject"
	}
	if c.Search.TermPolicy == "" {
		c.Search.TermPolicy = "overwrite"
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}

	switch c.Storage.Driver {
	case DriverMemory:
		// fixtures optional: an empty registry is valid
	case DriverRedis, DriverValkey:
		if len(c.Storage.Addrs) == 0 {
			return fmt.Errorf("storage.addrs is required for driver %q", c.Storage.Driver)
		}
		if c.Storage.Seed && c.Storage.Fixtures == "" {
			return fmt.Errorf("storage.fixtures is required when storage.seed is set")
		}
	case DriverPostgres:
		if c.Storage.Postgres.Host == "" {
			return fmt.Errorf("storage.postgres.host is required")
		}
		if len(c.Storage.Postgres.Tables) == 0 {
			return fmt.Errorf("storage.postgres.tables must list at least one table")
		}
		for i, t := range c.Storage.Postgres.Tables {
			if t.Table == "" {
				return fmt.Errorf("storage.postgres.tables[%d].table is required", i)
			}
		}
	default:
		return fmt.Errorf(
			"storage.driver must be one of memory, postgres, redis, valkey, got %q", c.Storage.Driver,
		)
	}

	if c.Rewrite.Enabled {
		if c.Rewrite.APIKey == "" {
			return fmt.Errorf("rewrite.api_key is required when rewrite is enabled")
		}
		if c.Rewrite.Prompt != "" && !strings.Contains(c.Rewrite.Prompt, "{query}") {
			return fmt.Errorf("rewrite.prompt must contain the {query} placeholder")
		}
		if c.Rewrite.RateLimit.RPS < 0 {
			return fmt.Errorf("rewrite.rate_limit.rps must not be negative")
		}
		if c.Rewrite.Quota.Daily < 0 || c.Rewrite.Quota.Monthly < 0 {
			return fmt.Errorf("rewrite.quota limits must not be negative")
		}
		switch c.Rewrite.Quota.Action {
		case "", "reject", "warn":
		default:
			return fmt.Errorf("rewrite.quota.action must be \"reject\" or \"warn\", got %q", c.Rewrite.Quota.Action)
		}
	}

	switch c.Search.TermPolicy {
	case "", "overwrite", "conjunctive":
		// ok
	default:
		return fmt.Errorf(
			"search.term_policy must be \"overwrite\" or \"conjunctive\", got %q", c.Search.TermPolicy,
		)
	}
	return nil
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
