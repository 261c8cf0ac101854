package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// HTTP Server
	Port     string
	LogLevel string

	// Dune (EVM claims)
	DuneAPIKey         string
	DuneAPIURL         string
	DuneMonthlyQueryID int

	// Solscan (Solana transfers)
	SolscanAPIKey   string
	SolscanAPIURL   string
	TreasuryAddress string
	SolscanPageSize int
	SolscanMaxPages int
	TeamLabelsFile  string

	// Prices
	FluidAPIURL string
	SOLPriceURL string
	PriceTTL    time.Duration

	HTTPTimeout time.Duration

	// Source cache
	CacheBackend   string
	CacheDir       string
	SQLiteDBPath   string
	EVMCacheTTL    time.Duration
	SolanaCacheTTL time.Duration

	// AMQP
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Google Sheets export
	GoogleSpreadsheetID string
	GoogleSheetName     string

	// Worker
	ExportInterval time.Duration
}

const (
	DefaultTreasuryAddress = "Cvnta5ecoiCgNbLEXYm6kvhJMmRv3JM3ksKgTLVPg4hk"
	DefaultDuneQueryID     = 6339248
)

var (
	validBackends  = []string{"file", "sqlite", "memory"}
	validLogLevels = []string{"debug", "info", "warn", "error"}
)

func Load() *Config {
	cfg := &Config{
		Port:     getEnv("PORT", "8081"),
		LogLevel: strings.ToLower(getEnv("LOG_LEVEL", "info")),

		DuneAPIKey:         getEnv("DUNE_API_KEY", ""),
		DuneAPIURL:         getEnv("DUNE_API_URL", "https://api.dune.com/api/v1"),
		DuneMonthlyQueryID: getEnvInt("DUNE_MONTHLY_QUERY_ID", DefaultDuneQueryID),

		SolscanAPIKey:   getEnv("SOLSCAN_API_KEY", ""),
		SolscanAPIURL:   getEnv("SOLSCAN_API_URL", "https://pro-api.solscan.io/v2.0"),
		TreasuryAddress: getEnv("TREASURY_ADDRESS", DefaultTreasuryAddress),
		SolscanPageSize: getEnvInt("SOLSCAN_PAGE_SIZE", 40),
		SolscanMaxPages: getEnvInt("SOLSCAN_MAX_PAGES", 5),
		TeamLabelsFile:  getEnv("TEAM_LABELS_FILE", ""),

		FluidAPIURL: getEnv("FLUID_API_URL", "https://api.fluid.instadapp.io"),
		SOLPriceURL: getEnv("SOL_PRICE_URL", "https://api.solana.fluid.io/v1/borrowing/vaults"),
		PriceTTL:    getEnvDuration("PRICE_TTL", 5*time.Minute),

		HTTPTimeout: getEnvDuration("HTTP_TIMEOUT", 30*time.Second),

		CacheBackend:   getEnv("CACHE_BACKEND", "file"),
		CacheDir:       getEnv("CACHE_DIR", "./cache"),
		SQLiteDBPath:   getEnv("SQLITE_DB_PATH", "./data/fluidspend.db"),
		EVMCacheTTL:    getEnvDuration("EVM_CACHE_TTL", 60*time.Minute),
		SolanaCacheTTL: getEnvDuration("SOLANA_CACHE_TTL", 60*time.Minute),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "fluidspend"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "ledger_refresh"),

		GoogleSpreadsheetID: getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleSheetName:     getEnv("GOOGLE_SHEET_NAME", "Ledger"),

		ExportInterval: getEnvDuration("EXPORT_INTERVAL", time.Hour),
	}

	return cfg
}

// Validate checks the configuration and returns every problem found in one error.
// Missing API keys are not reported here; the source that needs a key fails at fetch time.
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if !oneOf(c.LogLevel, validLogLevels) {
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be one of %v", c.LogLevel, validLogLevels))
	}

	for name, raw := range map[string]string{
		"Dune API URL":    c.DuneAPIURL,
		"Solscan API URL": c.SolscanAPIURL,
		"Fluid API URL":   c.FluidAPIURL,
		"SOL price URL":   c.SOLPriceURL,
	} {
		if msg := checkHTTPURL(name, raw); msg != "" {
			errors = append(errors, msg)
		}
	}

	if c.DuneMonthlyQueryID < 1 {
		errors = append(errors, fmt.Sprintf("invalid Dune query id %d: must be positive", c.DuneMonthlyQueryID))
	}

	if strings.TrimSpace(c.TreasuryAddress) == "" {
		errors = append(errors, "treasury address cannot be empty")
	}
	if c.SolscanPageSize < 1 || c.SolscanPageSize > 100 {
		errors = append(errors, fmt.Sprintf("invalid Solscan page size %d: must be between 1 and 100", c.SolscanPageSize))
	}
	if c.SolscanMaxPages < 1 {
		errors = append(errors, fmt.Sprintf("invalid Solscan max pages %d: must be at least 1", c.SolscanMaxPages))
	}
	if c.TeamLabelsFile != "" {
		if _, err := os.Stat(c.TeamLabelsFile); os.IsNotExist(err) {
			errors = append(errors, fmt.Sprintf("team labels file does not exist: %s", c.TeamLabelsFile))
		}
	}

	if c.HTTPTimeout < time.Second || c.HTTPTimeout > 5*time.Minute {
		errors = append(errors, fmt.Sprintf("invalid HTTP timeout %v: must be between 1s and 5m", c.HTTPTimeout))
	}
	if c.PriceTTL <= 0 {
		errors = append(errors, fmt.Sprintf("invalid price TTL %v: must be positive", c.PriceTTL))
	}
	if c.EVMCacheTTL <= 0 {
		errors = append(errors, fmt.Sprintf("invalid EVM cache TTL %v: must be positive", c.EVMCacheTTL))
	}
	if c.SolanaCacheTTL <= 0 {
		errors = append(errors, fmt.Sprintf("invalid Solana cache TTL %v: must be positive", c.SolanaCacheTTL))
	}

	if !oneOf(c.CacheBackend, validBackends) {
		errors = append(errors, fmt.Sprintf("invalid cache backend '%s': must be one of %v", c.CacheBackend, validBackends))
	}
	switch c.CacheBackend {
	case "file":
		if c.CacheDir == "" {
			errors = append(errors, "cache directory cannot be empty when using file backend")
		}
	case "sqlite":
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else {
			dir := filepath.Dir(c.SQLiteDBPath)
			if dir != "." && dir != "" {
				if _, err := os.Stat(dir); os.IsNotExist(err) {
					if err := os.MkdirAll(dir, 0o755); err != nil {
						errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
					}
				}
			}
		}
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.GoogleSpreadsheetID != "" && c.GoogleSheetName == "" {
		errors = append(errors, "Google Sheet name is required when a spreadsheet ID is set")
	}

	if c.ExportInterval < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid export interval %v: must be at least 1 minute", c.ExportInterval))
	} else if c.ExportInterval > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid export interval %v: must be at most 24 hours", c.ExportInterval))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// AMQPEnabled reports whether refresh messages should be published.
func (c *Config) AMQPEnabled() bool { return c.AMQPURL != "" }

// ExportEnabled reports whether the Sheets export is configured.
func (c *Config) ExportEnabled() bool { return c.GoogleSpreadsheetID != "" }

func checkHTTPURL(name, raw string) string {
	u, err := url.Parse(raw)
	if err != nil || raw == "" {
		return fmt.Sprintf("invalid %s '%s'", name, raw)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Sprintf("invalid %s scheme '%s': must be 'http' or 'https'", name, u.Scheme)
	}
	return ""
}

func oneOf(v string, allowed []string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
