package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/hoanghai1803/minernews/internal/report"
)

// Config holds all application configuration.
type Config struct {
	AI      AIConfig      `toml:"ai"`
	Reports ReportsConfig `toml:"reports"`
	Feeds   FeedsConfig   `toml:"feeds"`
	Run     RunConfig     `toml:"run"`
	Server  ServerConfig  `toml:"server"`
	Log     LogConfig     `toml:"log"`
}

// AIConfig holds AI provider settings.
type AIConfig struct {
	Provider          string `toml:"provider"`
	APIKey            string `toml:"api_key"`
	Model             string `toml:"model"`
	BaseURL           string `toml:"base_url"`
	TimeoutSeconds    int    `toml:"timeout_seconds"`
	MaxRetries        int    `toml:"max_retries"`
	BackoffSeconds    int    `toml:"backoff_seconds"`
	RequestsPerMinute int    `toml:"requests_per_minute"`
}

// Timeout returns the per-request timeout.
func (c AIConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Backoff returns the base retry delay.
func (c AIConfig) Backoff() time.Duration {
	return time.Duration(c.BackoffSeconds) * time.Second
}

// ReportsConfig holds report output settings.
type ReportsConfig struct {
	Directory                   string `toml:"directory"`
	SlugMaxLength               int    `toml:"slug_max_length"`
	MaxConsecutiveWriteFailures int    `toml:"max_consecutive_write_failures"`
}

// FeedsConfig holds RSS feed settings.
type FeedsConfig struct {
	MaxArticlesPerFeed int      `toml:"max_articles_per_feed"`
	LookbackDays       int      `toml:"lookback_days"`
	Keywords           []string `toml:"keywords"`
	ExtractFullText    bool     `toml:"extract_full_text"`
}

// RunConfig holds settings for a single processing pass.
type RunConfig struct {
	Concurrency int    `toml:"concurrency"`
	MaxArticles int    `toml:"max_articles"`
	LedgerPath  string `toml:"ledger_path"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int `toml:"port"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

const (
	defaultProvider       = "gemini"
	defaultReportsDir     = "reports"
	defaultLedgerPath     = "data/ledger.db"
	defaultSlugMaxLength  = 60
	maxSlugMaxLength      = 200
	defaultWriteFailures  = 3
	defaultTimeoutSeconds = 60
	defaultMaxRetries     = 3
	defaultBackoffSeconds = 2
	defaultRPM            = 10
)

// DefaultKeywords is used when feeds.keywords is not set.
var DefaultKeywords = []string{
	"mining", "miner", "hashrate", "hash rate", "difficulty", "hashprice",
	"asic", "halving", "block reward",
}

var defaultModels = map[string]string{
	"gemini":    "gemini-2.5-flash",
	"anthropic": "claude-haiku-4-5",
	"openai":    "gpt-4o-mini",
}

const defaultConfigContent = `[ai]
provider = "gemini"               # "gemini", "anthropic" or "openai"
api_key = ""                      # Your API key (or set AI_API_KEY / GEMINI_API_KEY)
model = "gemini-2.5-flash"
timeout_seconds = 60
max_retries = 3
backoff_seconds = 2
requests_per_minute = 10

[reports]
directory = "reports"
slug_max_length = 60
max_consecutive_write_failures = 3

[feeds]
max_articles_per_feed = 20
lookback_days = 3
keywords = ["mining", "miner", "hashrate", "hash rate", "difficulty", "hashprice", "asic", "halving", "block reward"]
extract_full_text = false

[run]
concurrency = 1
max_articles = 10
ledger_path = "data/ledger.db"

[server]
port = 8080

[log]
level = "info"                    # debug, info, warn, error
format = "text"                   # text or json
`

// LoadEnvFile loads KEY=VALUE pairs from a .env file into the process
// environment without overriding variables that are already set. A missing
// file is not an error.
func LoadEnvFile(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

// Load reads and parses the TOML config from the given path. If the file does
// not exist, it creates a default config file at that path. Environment
// variables override values from the file with highest priority.
//
// Load does not log: it runs before the configured logger is installed.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		if err := createDefault(path); err != nil {
			return nil, fmt.Errorf("creating default config: %w", err)
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	md, err := toml.Decode(string(data), &cfg)
	if err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Validate explicitly-set values before applying defaults, so that
	// explicitly writing "port = 0" is an error rather than silently
	// being replaced with the default.
	if err := validateExplicit(&cfg, md); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	applyDefaults(&cfg, md)
	applyEnvOverrides(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// createDefault writes the default config content to the given path,
// creating any parent directories as needed.
func createDefault(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(defaultConfigContent), 0o644); err != nil {
		return fmt.Errorf("writing default config: %w", err)
	}
	return nil
}

// validateExplicit checks values that were explicitly set in the TOML file.
// This catches cases like "port = 0" which would otherwise be silently
// replaced by the default value.
func validateExplicit(cfg *Config, md toml.MetaData) error {
	if md.IsDefined("server", "port") {
		if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
			return fmt.Errorf("invalid server.port %d: must be between 1 and 65535", cfg.Server.Port)
		}
	}
	if md.IsDefined("feeds", "lookback_days") && cfg.Feeds.LookbackDays < 1 {
		return fmt.Errorf("invalid feeds.lookback_days %d: must be >= 1", cfg.Feeds.LookbackDays)
	}
	if md.IsDefined("reports", "slug_max_length") && cfg.Reports.SlugMaxLength < 1 {
		return fmt.Errorf("invalid reports.slug_max_length %d: must be >= 1", cfg.Reports.SlugMaxLength)
	}
	if md.IsDefined("run", "concurrency") && cfg.Run.Concurrency < 1 {
		return fmt.Errorf("invalid run.concurrency %d: must be >= 1", cfg.Run.Concurrency)
	}
	if md.IsDefined("run", "max_articles") && cfg.Run.MaxArticles < 1 {
		return fmt.Errorf("invalid run.max_articles %d: must be >= 1", cfg.Run.MaxArticles)
	}
	if md.IsDefined("ai", "timeout_seconds") && cfg.AI.TimeoutSeconds < 1 {
		return fmt.Errorf("invalid ai.timeout_seconds %d: must be >= 1", cfg.AI.TimeoutSeconds)
	}
	return nil
}

// applyDefaults sets default values for any zero-valued fields. Fields
// where zero is meaningful are only defaulted when absent from the file.
func applyDefaults(cfg *Config, md toml.MetaData) {
	if cfg.AI.Provider == "" {
		cfg.AI.Provider = defaultProvider
	}
	if cfg.AI.Model == "" {
		cfg.AI.Model = defaultModels[cfg.AI.Provider]
	}
	if cfg.AI.TimeoutSeconds == 0 {
		cfg.AI.TimeoutSeconds = defaultTimeoutSeconds
	}
	if !md.IsDefined("ai", "max_retries") {
		cfg.AI.MaxRetries = defaultMaxRetries
	}
	if !md.IsDefined("ai", "backoff_seconds") {
		cfg.AI.BackoffSeconds = defaultBackoffSeconds
	}
	if !md.IsDefined("ai", "requests_per_minute") {
		cfg.AI.RequestsPerMinute = defaultRPM
	}

	if cfg.Reports.Directory == "" {
		cfg.Reports.Directory = defaultReportsDir
	}
	if cfg.Reports.SlugMaxLength == 0 {
		cfg.Reports.SlugMaxLength = defaultSlugMaxLength
	}
	if cfg.Reports.MaxConsecutiveWriteFailures == 0 {
		cfg.Reports.MaxConsecutiveWriteFailures = defaultWriteFailures
	}

	if cfg.Feeds.MaxArticlesPerFeed == 0 {
		cfg.Feeds.MaxArticlesPerFeed = 20
	}
	if cfg.Feeds.LookbackDays == 0 {
		cfg.Feeds.LookbackDays = 3
	}
	if !md.IsDefined("feeds", "keywords") {
		cfg.Feeds.Keywords = append([]string(nil), DefaultKeywords...)
	}

	if cfg.Run.Concurrency == 0 {
		cfg.Run.Concurrency = 1
	}
	if cfg.Run.MaxArticles == 0 {
		cfg.Run.MaxArticles = 10
	}
	if cfg.Run.LedgerPath == "" {
		cfg.Run.LedgerPath = defaultLedgerPath
	}

	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}

// applyEnvOverrides applies environment variable overrides. Environment
// variables take highest priority over config file values.
//
// Priority for ai.api_key:
//  1. AI_API_KEY (generic, highest)
//  2. GEMINI_API_KEY, ANTHROPIC_API_KEY or OPENAI_API_KEY, matching the provider
//  3. the config file
func applyEnvOverrides(cfg *Config) {
	// Apply provider-specific env var first (lower priority).
	if name := providerKeyEnv(cfg.AI.Provider); name != "" {
		if v := os.Getenv(name); v != "" {
			cfg.AI.APIKey = v
		}
	}

	// AI_API_KEY overrides everything (highest priority).
	if v := os.Getenv("AI_API_KEY"); v != "" {
		cfg.AI.APIKey = v
	}

	if v := os.Getenv("MINERNEWS_REPORTS_DIR"); v != "" {
		cfg.Reports.Directory = v
	}
	if v := os.Getenv("MINERNEWS_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
}

func providerKeyEnv(provider string) string {
	switch provider {
	case "gemini":
		return "GEMINI_API_KEY"
	case "anthropic":
		return "ANTHROPIC_API_KEY"
	case "openai":
		return "OPENAI_API_KEY"
	}
	return ""
}

// validate checks that configuration values are within acceptable ranges.
// A missing API key is not an error: runs without one are skipped.
func validate(cfg *Config) error {
	if _, ok := defaultModels[cfg.AI.Provider]; !ok {
		return fmt.Errorf("invalid ai.provider %q: must be \"gemini\", \"anthropic\" or \"openai\"", cfg.AI.Provider)
	}

	if cfg.AI.MaxRetries < 0 {
		return fmt.Errorf("invalid ai.max_retries %d: must be >= 0", cfg.AI.MaxRetries)
	}
	if cfg.AI.BackoffSeconds < 0 {
		return fmt.Errorf("invalid ai.backoff_seconds %d: must be >= 0", cfg.AI.BackoffSeconds)
	}
	if cfg.AI.RequestsPerMinute < 0 {
		return fmt.Errorf("invalid ai.requests_per_minute %d: must be >= 0", cfg.AI.RequestsPerMinute)
	}

	if cfg.Reports.SlugMaxLength < report.MinSlugMaxLength || cfg.Reports.SlugMaxLength > maxSlugMaxLength {
		return fmt.Errorf("invalid reports.slug_max_length %d: must be between %d and %d",
			cfg.Reports.SlugMaxLength, report.MinSlugMaxLength, maxSlugMaxLength)
	}
	if cfg.Reports.MaxConsecutiveWriteFailures < 1 {
		return fmt.Errorf("invalid reports.max_consecutive_write_failures %d: must be >= 1", cfg.Reports.MaxConsecutiveWriteFailures)
	}

	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port %d: must be between 1 and 65535", cfg.Server.Port)
	}

	if cfg.Feeds.LookbackDays < 1 {
		return fmt.Errorf("invalid feeds.lookback_days %d: must be >= 1", cfg.Feeds.LookbackDays)
	}

	if cfg.Run.Concurrency < 1 {
		return fmt.Errorf("invalid run.concurrency %d: must be >= 1", cfg.Run.Concurrency)
	}

	switch strings.ToLower(cfg.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log.format %q: must be \"text\" or \"json\"", cfg.Log.Format)
	}

	return nil
}
