package common

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	LLM      LLMConfig
	Fetch    FetchConfig
	Extract  ExtractConfig
	Matcher  MatcherConfig
	Queue    QueueConfig
	Log      LogConfig

	TaxonomyPath   string
	ReconcileAfter time.Duration
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	Driver           string // postgres | sqlite
	DSN              string
	MaxConns         int32
	MinConns         int32
	MaxConnLifetime  time.Duration
	MaxConnIdleTime  time.Duration
	DialTimeout      time.Duration
	StatementTimeout time.Duration
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	GRPCAddr string
	HTTPAddr string
}

// LLMConfig holds extraction service configuration
type LLMConfig struct {
	Model       string
	APIKey      string
	BaseURL     string
	Temperature float32
	Timeout     time.Duration
}

// FetchConfig bounds document downloads
type FetchConfig struct {
	Timeout  time.Duration
	MaxBytes int64
}

// ExtractConfig bounds text extraction
type ExtractConfig struct {
	MaxPages    int
	MinChars    int
	BudgetChars int
	Watchdog    time.Duration
	Pdftotext   string // optional fallback binary
}

// MatcherConfig holds the placement matcher thresholds
type MatcherConfig struct {
	AcceptThreshold float64
	MediumThreshold float64
	HighThreshold   float64
	ExactHighRatio  float64
}

// QueueConfig sizes the analysis worker pool
type QueueConfig struct {
	Workers    int
	Size       int
	JobTimeout time.Duration
}

// LogConfig selects the slog handler
type LogConfig struct {
	Level  string
	Format string // text | json
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Driver:           strings.ToLower(getEnv("DB_DRIVER", "postgres")),
			DSN:              getEnv("DB_URL", ""),
			MaxConns:         getEnvAsInt32("DB_MAX_CONNS", 20),
			MinConns:         getEnvAsInt32("DB_MIN_CONNS", 5),
			MaxConnLifetime:  getEnvAsDuration("DB_MAX_CONN_LIFETIME", 30*time.Minute),
			MaxConnIdleTime:  getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 5*time.Minute),
			DialTimeout:      getEnvAsDuration("DB_DIAL_TIMEOUT", 3*time.Second),
			StatementTimeout: getEnvAsDuration("DB_STATEMENT_TIMEOUT", 0),
		},
		Server: ServerConfig{
			GRPCAddr: getEnv("GRPC_ADDR", ":8080"),
			HTTPAddr: getEnv("HTTP_ADDR", ":8081"),
		},
		LLM: LLMConfig{
			Model:       getEnv("OPENAI_MODEL", "gpt-4o-mini"),
			APIKey:      getEnv("OPENAI_API_KEY", ""),
			BaseURL:     getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
			Temperature: getEnvAsFloat32("OPENAI_TEMPERATURE", 0.0),
			Timeout:     getEnvAsDuration("OPENAI_TIMEOUT", 60*time.Second),
		},
		Fetch: FetchConfig{
			Timeout:  getEnvAsDuration("FETCH_TIMEOUT", 30*time.Second),
			MaxBytes: int64(getEnvAsInt("FETCH_MAX_BYTES", 25<<20)),
		},
		Extract: ExtractConfig{
			MaxPages:    getEnvAsInt("EXTRACT_MAX_PAGES", 50),
			MinChars:    getEnvAsInt("EXTRACT_MIN_CHARS", 100),
			BudgetChars: getEnvAsInt("EXTRACT_BUDGET_CHARS", 8000),
			Watchdog:    getEnvAsDuration("EXTRACT_WATCHDOG", 45*time.Second),
		},
		Matcher: MatcherConfig{
			AcceptThreshold: getEnvAsFloat64("MATCH_ACCEPT", 0.4),
			MediumThreshold: getEnvAsFloat64("MATCH_MEDIUM", 0.6),
			HighThreshold:   getEnvAsFloat64("MATCH_HIGH", 0.8),
			ExactHighRatio:  getEnvAsFloat64("MATCH_EXACT_HIGH_RATIO", 0.8),
		},
		Queue: QueueConfig{
			Workers:    getEnvAsInt("QUEUE_WORKERS", 4),
			Size:       getEnvAsInt("QUEUE_SIZE", 256),
			JobTimeout: getEnvAsDuration("QUEUE_JOB_TIMEOUT", 5*time.Minute),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "text"),
		},
		TaxonomyPath:   getEnv("TAXONOMY_PATH", ""),
		ReconcileAfter: getEnvAsDuration("RECONCILE_AFTER", 10*time.Minute),
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(floatVal)
		}
	}
	return defaultValue
}

func getEnvAsFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return NewAppError("CONFIG_ERROR", "DB_DRIVER must be postgres or sqlite", ErrInvalidInput)
	}
	if c.Database.DSN == "" {
		return NewAppError("CONFIG_ERROR", "DB_URL is required", ErrInvalidInput)
	}
	if c.LLM.APIKey == "" {
		return NewAppError("CONFIG_ERROR", "OPENAI_API_KEY is required", ErrInvalidInput)
	}
	if c.Server.GRPCAddr == "" && c.Server.HTTPAddr == "" {
		return NewAppError("CONFIG_ERROR", "one of GRPC_ADDR or HTTP_ADDR is required", ErrInvalidInput)
	}
	m := c.Matcher
	if !(0 < m.AcceptThreshold && m.AcceptThreshold <= m.MediumThreshold && m.MediumThreshold <= m.HighThreshold && m.HighThreshold <= 1) {
		return NewAppError("CONFIG_ERROR", "matcher thresholds must satisfy 0 < accept <= medium <= high <= 1", ErrInvalidInput)
	}
	if c.Extract.BudgetChars <= 0 || c.Extract.MaxPages <= 0 {
		return NewAppError("CONFIG_ERROR", "EXTRACT_BUDGET_CHARS and EXTRACT_MAX_PAGES must be positive", ErrInvalidInput)
	}
	return nil
}
