package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const envPrefix = "AE_COLUMNS_"

// envOverlayDefaultTag is a tag no field carries, so env parsing with it
// leaves fields without a set variable untouched
const envOverlayDefaultTag = "envOverlayDefault"

// Config represents the application configuration
type Config struct {
	Dataset   string          `json:"dataset"   env:"DATASET" envDefault:"default"`
	Database  DatabaseConfig  `json:"database"`
	Cache     CacheConfig     `json:"cache"`
	Logging   LoggingConfig   `json:"logging"`
	Debug     DebugConfig     `json:"debug"`
	Analytics AnalyticsConfig `json:"analytics"`
	Server    ServerConfig    `json:"server"`
	Schema    SchemaConfig    `json:"schema"`
}

// DatabaseConfig represents the local mapping database configuration
type DatabaseConfig struct {
	Path           string `json:"path"            env:"DB_PATH"            envDefault:"~/.config/ae-columns/mappings.duckdb"`
	MaxConnections int    `json:"max_connections" env:"DB_MAX_CONNECTIONS" envDefault:"4"`
	QueryTimeout   string `json:"query_timeout"   env:"DB_QUERY_TIMEOUT"   envDefault:"30s"`
}

// CacheConfig represents query result caching configuration
type CacheConfig struct {
	Directory   string `json:"directory"         env:"CACHE_DIR"          envDefault:"~/.cache/ae-columns"`
	Disabled    bool   `json:"disabled"          env:"CACHE_DISABLED"     envDefault:"false"`
	MaxSizeMB   int    `json:"max_size_mb"       env:"CACHE_MAX_SIZE_MB"  envDefault:"100"`
	TTL         string `json:"ttl"               env:"CACHE_TTL"          envDefault:"5m"`
	CleanupFreq string `json:"cleanup_frequency" env:"CACHE_CLEANUP_FREQ" envDefault:"10m"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level     string `json:"level"      env:"LOG_LEVEL"      envDefault:"info"`                                // debug, info, warn, error
	Format    string `json:"format"     env:"LOG_FORMAT"     envDefault:"text"`                                // text, json
	Output    string `json:"output"     env:"LOG_OUTPUT"     envDefault:"stderr"`                              // stdout, stderr, file
	File      string `json:"file"       env:"LOG_FILE"       envDefault:"~/.config/ae-columns/logs/app.log"` // log file path when output is file
	AddSource bool   `json:"add_source" env:"LOG_ADD_SOURCE" envDefault:"false"`
}

// DebugConfig represents debug configuration
type DebugConfig struct {
	Enabled  bool `json:"enabled"   env:"DEBUG"           envDefault:"false"`
	Verbose  bool `json:"verbose"   env:"VERBOSE"         envDefault:"false"`
	TraceAPI bool `json:"trace_api" env:"DEBUG_TRACE_API" envDefault:"false"`
}

// AnalyticsConfig holds the analytics backend endpoint and env-sourced credentials
type AnalyticsConfig struct {
	AccountID string `json:"account_id"          env:"ACCOUNT_ID"`
	APIToken  string `json:"api_token,omitempty" env:"API_TOKEN"`
	BaseURL   string `json:"base_url"            env:"API_BASE_URL" envDefault:"https://api.cloudflare.com/client/v4"`
	Timeout   string `json:"timeout"             env:"API_TIMEOUT"  envDefault:"30s"`
}

// ServerConfig represents the HTTP API configuration
type ServerConfig struct {
	ListenAddr         string   `json:"listen_addr"          env:"LISTEN_ADDR"          envDefault:":8787"`
	CORSAllowedOrigins []string `json:"cors_allowed_origins" env:"CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`
	RateLimitRPS       float64  `json:"rate_limit_rps"       env:"RATE_LIMIT_RPS"       envDefault:"5"`
	RateLimitBurst     int      `json:"rate_limit_burst"     env:"RATE_LIMIT_BURST"     envDefault:"10"`
}

// SchemaConfig describes how many columns of each category the dataset exposes
type SchemaConfig struct {
	Blobs   int `json:"blobs"   env:"SCHEMA_BLOBS"   envDefault:"20"`
	Doubles int `json:"doubles" env:"SCHEMA_DOUBLES" envDefault:"20"`
	Indexes int `json:"indexes" env:"SCHEMA_INDEXES" envDefault:"1"`
}

// DefaultConfig returns a configuration populated only with defaults
func DefaultConfig() *Config {
	cfg := &Config{}
	// An empty environment leaves only the envDefault values.
	_ = env.ParseWithOptions(cfg, env.Options{
		Prefix:      envPrefix,
		Environment: map[string]string{},
	})

	return cfg
}

// LoadConfig loads configuration from file, environment variables, and command-line flags
func LoadConfig() (*Config, error) {
	return LoadConfigWithOverrides(nil)
}

// LoadConfigWithOverrides loads configuration with optional command-line flag overrides
func LoadConfigWithOverrides(flagOverrides map[string]any) (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}

	config := DefaultConfig()

	configPath := getConfigPath()
	if _, err := os.Stat(configPath); err == nil {
		if err := loadConfigFromFile(config, configPath); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	// Defaults were applied above; this pass only copies variables that are set.
	if err := env.ParseWithOptions(config, env.Options{
		Prefix:              envPrefix,
		DefaultValueTagName: envOverlayDefaultTag,
	}); err != nil {
		return nil, fmt.Errorf("failed to parse environment variables: %w", err)
	}

	applyCredentialFallbacks(config)

	if flagOverrides != nil {
		if err := applyFlagOverrides(config, flagOverrides); err != nil {
			return nil, fmt.Errorf("failed to apply flag overrides: %w", err)
		}
	}

	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// loadDotEnv loads a .env file if present; existing environment variables are never overridden
func loadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		return nil
	}

	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}

	return nil
}

// applyCredentialFallbacks fills backend credentials from the provider's conventional variables
func applyCredentialFallbacks(config *Config) {
	if config.Analytics.AccountID == "" {
		config.Analytics.AccountID = os.Getenv("CLOUDFLARE_ACCOUNT_ID")
	}

	if config.Analytics.APIToken == "" {
		config.Analytics.APIToken = os.Getenv("CLOUDFLARE_API_TOKEN")
	}
}

// loadConfigFromFile loads configuration from a JSON file
func loadConfigFromFile(config *Config, configPath string) error {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	var fileConfig Config
	if err := json.Unmarshal(data, &fileConfig); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	mergeConfigs(config, &fileConfig)

	return nil
}

// applyFlagOverrides applies command-line flag overrides to configuration
func applyFlagOverrides(config *Config, overrides map[string]any) error {
	for key, value := range overrides {
		switch key {
		case "dataset":
			if str, ok := value.(string); ok && str != "" {
				config.Dataset = str
			}
		case "db-path":
			if str, ok := value.(string); ok && str != "" {
				config.Database.Path = str
			}
		case "log-level":
			if str, ok := value.(string); ok && str != "" {
				config.Logging.Level = str
			}
		case "verbose":
			if b, ok := value.(bool); ok {
				config.Debug.Verbose = b
			}
		case "debug":
			if b, ok := value.(bool); ok {
				config.Debug.Enabled = b
			}
		case "cache-dir":
			if str, ok := value.(string); ok && str != "" {
				config.Cache.Directory = str
			}
		case "listen-addr":
			if str, ok := value.(string); ok && str != "" {
				config.Server.ListenAddr = str
			}
		default:
			return fmt.Errorf("unknown flag override: %s", key)
		}
	}

	return nil
}

// mergeConfigs merges source configuration into target configuration
func mergeConfigs(target, source *Config) {
	var mergeValues func(t, s reflect.Value)
	mergeValues = func(t, s reflect.Value) {
		if t.Kind() != s.Kind() {
			return
		}

		if t.Kind() == reflect.Struct {
			for i := range s.NumField() {
				mergeValues(t.Field(i), s.Field(i))
			}
		} else if s.Kind() == reflect.Bool {
			t.Set(s)
		} else if !s.IsZero() {
			t.Set(s)
		}
	}

	mergeValues(reflect.ValueOf(target).Elem(), reflect.ValueOf(source).Elem())
}

// validateConfig validates the configuration for common errors
func validateConfig(config *Config) error {
	if strings.TrimSpace(config.Dataset) == "" {
		return fmt.Errorf("dataset name must not be empty")
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(config.Logging.Level)] {
		return fmt.Errorf(
			"invalid log level: %s (must be debug, info, warn, or error)",
			config.Logging.Level,
		)
	}

	validLogFormats := map[string]bool{
		"text": true, "json": true,
	}
	if !validLogFormats[strings.ToLower(config.Logging.Format)] {
		return fmt.Errorf("invalid log format: %s (must be text or json)", config.Logging.Format)
	}

	validLogOutputs := map[string]bool{
		"stdout": true, "stderr": true, "file": true,
	}
	if !validLogOutputs[strings.ToLower(config.Logging.Output)] {
		return fmt.Errorf(
			"invalid log output: %s (must be stdout, stderr, or file)",
			config.Logging.Output,
		)
	}

	durations := map[string]string{
		"database query timeout":  config.Database.QueryTimeout,
		"cache ttl":               config.Cache.TTL,
		"cache cleanup frequency": config.Cache.CleanupFreq,
		"analytics api timeout":   config.Analytics.Timeout,
	}
	for name, value := range durations {
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("invalid %s: %s", name, value)
		}
	}

	if config.Database.MaxConnections <= 0 {
		return fmt.Errorf(
			"database max connections must be positive: %d",
			config.Database.MaxConnections,
		)
	}

	if config.Schema.Blobs < 0 || config.Schema.Doubles < 0 || config.Schema.Indexes < 0 {
		return fmt.Errorf("schema column counts must not be negative")
	}

	if config.Server.RateLimitRPS <= 0 || config.Server.RateLimitBurst <= 0 {
		return fmt.Errorf("server rate limit must be positive")
	}

	return nil
}

// SaveConfig saves configuration to file
func SaveConfig(config *Config) error {
	configPath := getConfigPath()

	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// getConfigPath returns the path to the configuration file
func getConfigPath() string {
	if configPath := os.Getenv(envPrefix + "CONFIG"); configPath != "" {
		return ExpandPath(configPath)
	}

	return filepath.Join(GetConfigDir(), "config.json")
}

// ExpandPath expands ~ to home directory in file paths
func ExpandPath(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return path
	}

	if path == "~" {
		return homeDir
	}

	if strings.HasPrefix(path, "~/") {
		return filepath.Join(homeDir, path[2:])
	}

	return path
}

// ExpandAllPaths expands all paths in the configuration
func (c *Config) ExpandAllPaths() {
	c.Database.Path = ExpandPath(c.Database.Path)
	c.Cache.Directory = ExpandPath(c.Cache.Directory)
	c.Logging.File = ExpandPath(c.Logging.File)
}

// ParsedTimeouts returns the database and backend timeouts as durations.
// validateConfig guarantees both parse.
func (c *Config) ParsedTimeouts() (dbTimeout, apiTimeout time.Duration) {
	dbTimeout, _ = time.ParseDuration(c.Database.QueryTimeout)
	apiTimeout, _ = time.ParseDuration(c.Analytics.Timeout)

	return dbTimeout, apiTimeout
}

// Durations returns the cache TTL and cleanup frequency
func (c CacheConfig) Durations() (ttl, cleanupFreq time.Duration) {
	ttl, _ = time.ParseDuration(c.TTL)
	cleanupFreq, _ = time.ParseDuration(c.CleanupFreq)

	return ttl, cleanupFreq
}

// MaskedToken returns the API token with all but the last four characters hidden
func (a AnalyticsConfig) MaskedToken() string {
	if a.APIToken == "" {
		return "(not set)"
	}

	if len(a.APIToken) <= 4 {
		return "****"
	}

	return strings.Repeat("*", len(a.APIToken)-4) + a.APIToken[len(a.APIToken)-4:]
}

// GetConfigDir returns the configuration directory
func GetConfigDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ".config/ae-columns"
	}

	return filepath.Join(homeDir, ".config", "ae-columns")
}

// EnsureDirectories creates necessary directories for the configuration
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		filepath.Dir(c.Database.Path),
		c.Cache.Directory,
	}

	if c.Logging.Output == "file" {
		dirs = append(dirs, filepath.Dir(c.Logging.File))
	}

	for _, dir := range dirs {
		if dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return fmt.Errorf("failed to create directory %s: %w", dir, err)
			}
		}
	}

	return nil
}
