package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"ativosaber/internal/rates"
)

// indexRatePrefix marks env vars that override a rate table entry, e.g. INDEX_RATE_CDI=0.1065.
const indexRatePrefix = "INDEX_RATE_"

// Config holds application configuration
type Config struct {
	// Server
	Env  string
	Port string

	// Database
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// JWT
	JWTSecret         string
	JWTExpirationDur  time.Duration
	RefreshExpiration time.Duration

	// Redis cache; an empty address disables caching
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	CacheTTL      time.Duration

	// Metrics endpoint key; an empty key disables /metrics
	MetricsAPIKey string

	// Rate table overrides keyed by index code
	IndexRates map[rates.Index]decimal.Decimal
}

var appConfig *Config

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if not already loaded
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found")
	}

	// Get values from environment variables with defaults
	config := &Config{
		// Server
		Env:  getEnv("ENV", "development"),
		Port: getEnv("PORT", "8080"),

		// Database
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "ativosaber"),
		DBPassword: getEnv("DB_PASSWORD", "ativosaber"),
		DBName:     getEnv("DB_NAME", "ativosaber"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),

		// JWT
		JWTSecret: getEnv("JWT_SECRET", "fallback-secret-key-for-dev-only"),

		// Redis
		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),

		MetricsAPIKey: getEnv("METRICS_API_KEY", ""),
	}

	config.JWTExpirationDur = getDuration("JWT_EXPIRES_IN", 15*time.Minute)
	config.RefreshExpiration = getDuration("JWT_REFRESH_EXPIRES_IN", 7*24*time.Hour)
	config.CacheTTL = getDuration("CACHE_TTL", 5*time.Minute)

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		log.Printf("Warning: invalid REDIS_DB value, falling back to 0\n")
		redisDB = 0
	}
	config.RedisDB = redisDB

	config.IndexRates = indexRatesFromEnv(os.Environ())

	appConfig = config
	return config, nil
}

// Get returns the application configuration
func Get() *Config {
	if appConfig == nil {
		var err error
		appConfig, err = Load()
		if err != nil {
			log.Fatalf("Failed to load configuration: %v", err)
		}
	}
	return appConfig
}

// RateTable returns the default index table with any configured overrides applied.
func (c *Config) RateTable() *rates.Table {
	return rates.Default().WithOverrides(c.IndexRates)
}

// indexRatesFromEnv collects INDEX_RATE_<CODE> entries. Values are annual
// fractions; malformed values are skipped with a warning.
func indexRatesFromEnv(environ []string) map[rates.Index]decimal.Decimal {
	out := map[rates.Index]decimal.Decimal{}
	for _, kv := range environ {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(key, indexRatePrefix) {
			continue
		}
		code := rates.Index(strings.ToUpper(strings.TrimPrefix(key, indexRatePrefix)))
		if code == "" {
			continue
		}
		rate, err := decimal.NewFromString(strings.TrimSpace(value))
		if err != nil {
			log.Printf("Warning: invalid %s value '%s', ignoring\n", key, value)
			continue
		}
		out[code] = rate
	}
	return out
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		log.Printf("Warning: invalid %s value '%s', falling back to %s\n", key, raw, defaultValue)
		return defaultValue
	}
	return d
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
