package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/zatekoja/cartosante/pkg/secrets"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Typesense TypesenseConfig
	Auth      AuthConfig
	GeoSync   GeoSyncConfig
	Geocoding GeocodingConfig
	Directory DirectoryConfig
	OTEL      OTELConfig
	Log       LogConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host string
	Port int

	// AllowedOrigins is the raw comma-separated CORS origin list.
	AllowedOrigins string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string

	// AutoMigrate applies pending migrations when the API starts.
	AutoMigrate bool
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// TypesenseConfig holds Typesense configuration
type TypesenseConfig struct {
	URL    string
	APIKey string
}

// AuthConfig holds settings for the hosted authentication service.
type AuthConfig struct {
	BaseURL   string
	APIKey    string
	JWTSecret string
}

// GeoSyncConfig points at the remote function that imports external geodata.
type GeoSyncConfig struct {
	FunctionURL string
	APIKey      string
	Timeout     time.Duration
}

// GeocodingConfig enables address geocoding for establishments. An empty
// APIKey disables it.
type GeocodingConfig struct {
	APIKey  string
	BaseURL string
}

// DirectoryConfig tunes the provider directory pipeline.
type DirectoryConfig struct {
	CuratedDatasetPath   string
	DefaultMaxDistanceKm float64
	SourceCacheTTL       time.Duration
	LoadTimeout          time.Duration
	Locale               string

	// SyncSchedule is a cron spec for periodic geodata imports of
	// SyncProvinces. Empty disables the schedule.
	SyncSchedule  string
	SyncProvinces []string
}

// OTELConfig holds OpenTelemetry configuration
type OTELConfig struct {
	ServiceName    string
	ServiceVersion string
	Endpoint       string
	Enabled        bool
}

// LogConfig holds logger configuration
type LogConfig struct {
	Environment string
	Level       string
}

// Load loads configuration from environment variables. A .env file in the
// working directory is read first when present, then the Vault secret named
// by VAULT_PATH when VAULT_ENABLED is set.
func Load() (*Config, error) {
	_ = godotenv.Load()

	vaultCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := secrets.Apply(vaultCtx, secrets.ConfigFromEnv()); err != nil {
		return nil, fmt.Errorf("failed to load secrets from vault: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
			Port: getEnvAsInt("SERVER_PORT", 8080),

			AllowedOrigins: getEnv("ALLOWED_ORIGINS", ""),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			Database: getEnv("DB_NAME", "cartosante"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),

			AutoMigrate: getEnvAsBool("DB_AUTO_MIGRATE", false),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnvAsInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Typesense: TypesenseConfig{
			URL:    getEnv("TYPESENSE_URL", "http://localhost:8108"),
			APIKey: getEnv("TYPESENSE_API_KEY", "xyz"),
		},
		Auth: AuthConfig{
			BaseURL:   getEnv("AUTH_BASE_URL", "http://localhost:9999"),
			APIKey:    getEnv("AUTH_API_KEY", ""),
			JWTSecret: getEnv("AUTH_JWT_SECRET", ""),
		},
		GeoSync: GeoSyncConfig{
			FunctionURL: getEnv("GEOSYNC_FUNCTION_URL", ""),
			APIKey:      getEnv("GEOSYNC_API_KEY", ""),
			Timeout:     getEnvAsDuration("GEOSYNC_TIMEOUT", 2*time.Minute),
		},
		Geocoding: GeocodingConfig{
			APIKey:  getEnv("GOOGLE_MAPS_API_KEY", ""),
			BaseURL: getEnv("GEOCODING_URL", ""),
		},
		Directory: DirectoryConfig{
			CuratedDatasetPath:   getEnv("DIRECTORY_CURATED_DATASET", ""),
			DefaultMaxDistanceKm: getEnvAsFloat("DIRECTORY_DEFAULT_MAX_DISTANCE_KM", 10),
			SourceCacheTTL:       getEnvAsDuration("DIRECTORY_SOURCE_CACHE_TTL", 5*time.Minute),
			LoadTimeout:          getEnvAsDuration("DIRECTORY_LOAD_TIMEOUT", 30*time.Second),
			Locale:               getEnv("DIRECTORY_LOCALE", "fr"),

			SyncSchedule:  getEnv("DIRECTORY_SYNC_SCHEDULE", ""),
			SyncProvinces: getEnvAsList("DIRECTORY_SYNC_PROVINCES"),
		},
		OTEL: OTELConfig{
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "cartosante-directory"),
			ServiceVersion: getEnv("OTEL_SERVICE_VERSION", "1.0.0"),
			Endpoint:       getEnv("OTEL_ENDPOINT", ""),
			Enabled:        getEnvAsBool("OTEL_ENABLED", false),
		},
		Log: LogConfig{
			Environment: getEnv("APP_ENV", "development"),
			Level:       getEnv("LOG_LEVEL", "info"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that would otherwise fail late at runtime.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid SERVER_PORT %d", c.Server.Port)
	}
	if c.Directory.DefaultMaxDistanceKm <= 0 {
		return fmt.Errorf("DIRECTORY_DEFAULT_MAX_DISTANCE_KM must be positive, got %v", c.Directory.DefaultMaxDistanceKm)
	}
	if c.Directory.SourceCacheTTL < 0 {
		return fmt.Errorf("DIRECTORY_SOURCE_CACHE_TTL must not be negative")
	}
	if c.Directory.SyncSchedule != "" && len(c.Directory.SyncProvinces) == 0 {
		return fmt.Errorf("DIRECTORY_SYNC_PROVINCES is required when DIRECTORY_SYNC_SCHEDULE is set")
	}
	if c.GeoSync.Timeout <= 0 {
		return fmt.Errorf("GEOSYNC_TIMEOUT must be positive")
	}
	return nil
}

// DatabaseDSN returns the PostgreSQL connection string
func (c *DatabaseConfig) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// RedisAddr returns the Redis address
func (c *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

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

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsList(key string) []string {
	var out []string
	for _, v := range strings.Split(os.Getenv(key), ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
