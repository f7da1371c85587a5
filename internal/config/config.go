package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	toml "github.com/pelletier/go-toml/v2"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig    `toml:"server"`
	Database  DatabaseConfig  `toml:"database"`
	CORS      CORSConfig      `toml:"cors"`
	Logging   LoggingConfig   `toml:"logging"`
	Nav       NavConfig       `toml:"nav"`
	Quotes    QuoteConfig     `toml:"quotes"`
	Sync      SyncConfig      `toml:"sync"`
	Valuation ValuationConfig `toml:"valuation"`
	Security  SecurityConfig  `toml:"security"`
}

// ServerConfig holds server-specific configuration
type ServerConfig struct {
	Port string `toml:"port"`
	Host string `toml:"host"`
	Addr string `toml:"-"` // Combined host:port for convenience
}

// DatabaseConfig holds database-specific configuration
type DatabaseConfig struct {
	Path string `toml:"path"`
}

// CORSConfig holds CORS-specific configuration
type CORSConfig struct {
	AllowedOrigins []string `toml:"allowed_origins"`
}

// LoggingConfig holds the log level ("debug", "info", "warn", "error").
type LoggingConfig struct {
	Level string `toml:"level"`
}

// NavConfig configures the NAV history source.
type NavConfig struct {
	BaseURL  string   `toml:"base_url"`
	Registry string   `toml:"registry"`
	CacheTTL Duration `toml:"cache_ttl"`
}

// QuoteConfig configures the scraped quote source and its cache.
type QuoteConfig struct {
	BaseURL         string   `toml:"base_url"`
	TTL             Duration `toml:"ttl"`
	RateLimit       int      `toml:"rate_limit"`
	DefaultExchange string   `toml:"default_exchange"`
}

// SyncConfig configures batch synchronisation of lots.
type SyncConfig struct {
	Schedule        string   `toml:"schedule"`
	Concurrency     int      `toml:"concurrency"`
	UpstreamTimeout Duration `toml:"upstream_timeout"`
}

// ValuationConfig configures valuation policy choices.
type ValuationConfig struct {
	// CurrentMonth is "anniversary" or "always".
	CurrentMonth string `toml:"current_month"`
}

// SecurityConfig holds secrets used for data at rest.
type SecurityConfig struct {
	FolioKey string `toml:"folio_key"`
}

// Duration is a time.Duration that reads from TOML strings such as "5m".
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(text), err)
	}
	d.Duration = parsed
	return nil
}

// Load reads configuration from an optional TOML file, environment variables and .env file.
// Environment variables take precedence over the file, which takes precedence over defaults.
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	config := defaults()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := loadFile(path, config); err != nil {
			return nil, err
		}
	}

	if err := applyEnv(config); err != nil {
		return nil, err
	}

	// Combine host and port
	config.Server.Addr = fmt.Sprintf("%s:%s", config.Server.Host, config.Server.Port)

	return config, nil
}

func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port: "5001",
			Host: "localhost",
		},
		Database: DatabaseConfig{
			Path: "./data/portfolio_sync.db",
		},
		CORS: CORSConfig{
			AllowedOrigins: []string{
				"http://localhost:3000",
				"http://localhost",
			},
		},
		Logging: LoggingConfig{Level: "info"},
		Nav: NavConfig{
			BaseURL:  "https://api.mfapi.in",
			Registry: "mf",
			CacheTTL: Duration{6 * time.Hour},
		},
		Quotes: QuoteConfig{
			BaseURL:         "https://www.google.com/finance/quote",
			TTL:             Duration{5 * time.Minute},
			RateLimit:       5,
			DefaultExchange: "NSE",
		},
		Sync: SyncConfig{
			Schedule:        "0 2 * * *",
			Concurrency:     4,
			UpstreamTimeout: Duration{10 * time.Second},
		},
		Valuation: ValuationConfig{CurrentMonth: "anniversary"},
	}
}

func loadFile(path string, config *Config) error {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from operator-controlled env
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := toml.Unmarshal(data, config); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

func applyEnv(config *Config) error {
	config.Server.Port = getEnv("SERVER_PORT", config.Server.Port)
	config.Server.Host = getEnv("SERVER_HOST", config.Server.Host)
	config.Database.Path = getEnv("DB_PATH", config.Database.Path)
	config.Logging.Level = getEnv("LOG_LEVEL", config.Logging.Level)
	config.Nav.BaseURL = getEnv("NAV_BASE_URL", config.Nav.BaseURL)
	config.Nav.Registry = getEnv("NAV_REGISTRY", config.Nav.Registry)
	config.Quotes.BaseURL = getEnv("QUOTE_BASE_URL", config.Quotes.BaseURL)
	config.Quotes.DefaultExchange = getEnv("QUOTE_DEFAULT_EXCHANGE", config.Quotes.DefaultExchange)
	config.Valuation.CurrentMonth = getEnv("VALUATION_CURRENT_MONTH", config.Valuation.CurrentMonth)
	config.Security.FolioKey = getEnv("FOLIO_ENCRYPTION_KEY", config.Security.FolioKey)

	// An explicitly empty SYNC_SCHEDULE disables the scheduler.
	if schedule, ok := os.LookupEnv("SYNC_SCHEDULE"); ok {
		config.Sync.Schedule = schedule
	}

	if origins := os.Getenv("CORS_ALLOWED_ORIGINS"); origins != "" {
		config.CORS.AllowedOrigins = splitList(origins)
	}

	var err error
	if config.Nav.CacheTTL.Duration, err = getDuration("NAV_CACHE_TTL", config.Nav.CacheTTL.Duration); err != nil {
		return err
	}
	if config.Quotes.TTL.Duration, err = getDuration("QUOTE_TTL", config.Quotes.TTL.Duration); err != nil {
		return err
	}
	if config.Sync.UpstreamTimeout.Duration, err = getDuration("UPSTREAM_TIMEOUT", config.Sync.UpstreamTimeout.Duration); err != nil {
		return err
	}
	if config.Quotes.RateLimit, err = getInt("QUOTE_RATE_LIMIT", config.Quotes.RateLimit); err != nil {
		return err
	}
	if config.Sync.Concurrency, err = getInt("SYNC_CONCURRENCY", config.Sync.Concurrency); err != nil {
		return err
	}

	switch config.Valuation.CurrentMonth {
	case "anniversary", "always":
	default:
		return fmt.Errorf("invalid VALUATION_CURRENT_MONTH %q: want anniversary or always", config.Valuation.CurrentMonth)
	}

	return nil
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func getInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s: must be a positive integer", key)
	}
	return n, nil
}

func splitList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
