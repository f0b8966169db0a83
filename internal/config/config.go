package config

import (
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Storage drivers supported for migrated photos.
const (
	StorageDriverLocal = "local"
	StorageDriverGCS   = "gcs"
)

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	CORS       CORSConfig
	Tokko      TokkoConfig
	Sync       SyncConfig
	Photos     PhotoConfig
	Storage    StorageConfig
	Credential CredentialConfig
	Rates      RatesConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port string
	Env  string
}

// DatabaseConfig holds PostgreSQL connection configuration.
type DatabaseConfig struct {
	Host        string
	Port        string
	Name        string
	User        string
	Password    string
	SSLMode     string
	PoolMin     int
	PoolMax     int
	AutoMigrate bool
}

// CORSConfig holds CORS configuration.
type CORSConfig struct {
	Origins []string
}

// TokkoConfig holds settings for the external property feed API.
type TokkoConfig struct {
	BaseURL          string
	Lang             string
	Timeout          time.Duration
	RateLimit        float64
	RateBurst        int
	PageSize         int
	MaxRetries       int
	LocationCacheTTL time.Duration
}

// SyncConfig holds settings for the sync orchestrator and its runner.
type SyncConfig struct {
	DefaultLimit int
	MaxLimit     int
	Timeout      time.Duration
	LockTTL      time.Duration
	Workers      int
	QueueSize    int
}

// PhotoConfig holds settings for the photo migration batcher.
type PhotoConfig struct {
	BatchSize       int
	Concurrency     int
	MaxBytes        int64
	Timeout         time.Duration
	DownloadTimeout time.Duration
}

// StorageConfig selects and configures the object storage backend.
type StorageConfig struct {
	Driver         string
	LocalDir       string
	PublicURL      string
	GCSBucket      string
	GCSCredentials string
}

// CredentialConfig holds the key used to seal provider credentials at rest.
type CredentialConfig struct {
	Key string
}

// RatesConfig holds exchange-rate provider settings.
type RatesConfig struct {
	PrimaryURL  string
	FallbackURL string
	TTL         time.Duration
	Casa        string
}

// Load reads configuration from environment variables.
// A .env file in the working directory is loaded first when present;
// variables already set in the environment win over it.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()

	// Set defaults for development
	v.SetDefault("PORT", "8080")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_NAME", "tokkosync")
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("DB_POOL_MIN", 2)
	v.SetDefault("DB_POOL_MAX", 10)
	v.SetDefault("DB_AUTO_MIGRATE", false)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000,http://localhost:3001")

	v.SetDefault("TOKKO_BASE_URL", "https://www.tokkobroker.com/api/v1")
	v.SetDefault("TOKKO_LANG", "es_ar")
	v.SetDefault("TOKKO_TIMEOUT", "30s")
	v.SetDefault("TOKKO_RATE_LIMIT", 4.0)
	v.SetDefault("TOKKO_RATE_BURST", 2)
	v.SetDefault("TOKKO_PAGE_SIZE", 20)
	v.SetDefault("TOKKO_MAX_RETRIES", 3)
	v.SetDefault("TOKKO_LOCATION_CACHE_TTL", "24h")

	v.SetDefault("SYNC_DEFAULT_LIMIT", 5)
	v.SetDefault("SYNC_MAX_LIMIT", 500)
	v.SetDefault("SYNC_TIMEOUT", "5m")
	v.SetDefault("SYNC_LOCK_TTL", "10m")
	v.SetDefault("SYNC_WORKERS", 2)
	v.SetDefault("SYNC_QUEUE_SIZE", 16)

	v.SetDefault("PHOTO_BATCH_SIZE", 20)
	v.SetDefault("PHOTO_CONCURRENCY", 4)
	v.SetDefault("PHOTO_MAX_BYTES", 20<<20)
	v.SetDefault("PHOTO_TIMEOUT", "5m")
	v.SetDefault("PHOTO_DOWNLOAD_TIMEOUT", "30s")

	v.SetDefault("STORAGE_DRIVER", StorageDriverLocal)
	v.SetDefault("STORAGE_LOCAL_DIR", "./data/photos")
	v.SetDefault("STORAGE_PUBLIC_URL", "http://localhost:8080/photos")

	v.SetDefault("RATES_PRIMARY_URL", "https://dolarapi.com/v1/dolares")
	v.SetDefault("RATES_FALLBACK_URL", "https://api.bluelytics.com.ar/v2/latest")
	v.SetDefault("RATES_TTL", "10m")
	v.SetDefault("RATES_CASA", "oficial")

	// Bind environment variables
	v.AutomaticEnv()

	cfg := &Config{
		Server: ServerConfig{
			Port: v.GetString("PORT"),
			Env:  v.GetString("ENV"),
		},
		Database: DatabaseConfig{
			Host:        v.GetString("DB_HOST"),
			Port:        v.GetString("DB_PORT"),
			Name:        v.GetString("DB_NAME"),
			User:        v.GetString("DB_USER"),
			Password:    v.GetString("DB_PASSWORD"),
			SSLMode:     v.GetString("DB_SSLMODE"),
			PoolMin:     v.GetInt("DB_POOL_MIN"),
			PoolMax:     v.GetInt("DB_POOL_MAX"),
			AutoMigrate: v.GetBool("DB_AUTO_MIGRATE"),
		},
		CORS: CORSConfig{
			Origins: parseOrigins(v.GetString("CORS_ORIGINS")),
		},
		Tokko: TokkoConfig{
			BaseURL:          strings.TrimRight(v.GetString("TOKKO_BASE_URL"), "/"),
			Lang:             v.GetString("TOKKO_LANG"),
			Timeout:          v.GetDuration("TOKKO_TIMEOUT"),
			RateLimit:        v.GetFloat64("TOKKO_RATE_LIMIT"),
			RateBurst:        v.GetInt("TOKKO_RATE_BURST"),
			PageSize:         v.GetInt("TOKKO_PAGE_SIZE"),
			MaxRetries:       v.GetInt("TOKKO_MAX_RETRIES"),
			LocationCacheTTL: v.GetDuration("TOKKO_LOCATION_CACHE_TTL"),
		},
		Sync: SyncConfig{
			DefaultLimit: v.GetInt("SYNC_DEFAULT_LIMIT"),
			MaxLimit:     v.GetInt("SYNC_MAX_LIMIT"),
			Timeout:      v.GetDuration("SYNC_TIMEOUT"),
			LockTTL:      v.GetDuration("SYNC_LOCK_TTL"),
			Workers:      v.GetInt("SYNC_WORKERS"),
			QueueSize:    v.GetInt("SYNC_QUEUE_SIZE"),
		},
		Photos: PhotoConfig{
			BatchSize:       v.GetInt("PHOTO_BATCH_SIZE"),
			Concurrency:     v.GetInt("PHOTO_CONCURRENCY"),
			MaxBytes:        v.GetInt64("PHOTO_MAX_BYTES"),
			Timeout:         v.GetDuration("PHOTO_TIMEOUT"),
			DownloadTimeout: v.GetDuration("PHOTO_DOWNLOAD_TIMEOUT"),
		},
		Storage: StorageConfig{
			Driver:         strings.ToLower(v.GetString("STORAGE_DRIVER")),
			LocalDir:       v.GetString("STORAGE_LOCAL_DIR"),
			PublicURL:      strings.TrimRight(v.GetString("STORAGE_PUBLIC_URL"), "/"),
			GCSBucket:      v.GetString("GCS_BUCKET"),
			GCSCredentials: v.GetString("GCS_CREDENTIALS_FILE"),
		},
		Credential: CredentialConfig{
			Key: v.GetString("CREDENTIAL_KEY"),
		},
		Rates: RatesConfig{
			PrimaryURL:  v.GetString("RATES_PRIMARY_URL"),
			FallbackURL: v.GetString("RATES_FALLBACK_URL"),
			TTL:         v.GetDuration("RATES_TTL"),
			Casa:        v.GetString("RATES_CASA"),
		},
	}

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that required configuration is present and valid.
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("PORT is required")
	}

	// Validate database config
	if c.Database.Host == "" {
		return fmt.Errorf("DB_HOST is required")
	}
	if c.Database.Port == "" {
		return fmt.Errorf("DB_PORT is required")
	}
	if c.Database.Name == "" {
		return fmt.Errorf("DB_NAME is required")
	}
	if c.Database.User == "" {
		return fmt.Errorf("DB_USER is required")
	}
	if c.Database.Password == "" {
		return fmt.Errorf("DB_PASSWORD is required")
	}
	if c.Database.PoolMin < 0 {
		return fmt.Errorf("DB_POOL_MIN must be non-negative")
	}
	if c.Database.PoolMax < 1 {
		return fmt.Errorf("DB_POOL_MAX must be at least 1")
	}
	if c.Database.PoolMin > c.Database.PoolMax {
		return fmt.Errorf("DB_POOL_MIN must be less than or equal to DB_POOL_MAX")
	}

	if len(c.CORS.Origins) == 0 {
		return fmt.Errorf("CORS_ORIGINS is required")
	}

	// Validate feed client config
	if c.Tokko.BaseURL == "" {
		return fmt.Errorf("TOKKO_BASE_URL is required")
	}
	if c.Tokko.RateLimit <= 0 {
		return fmt.Errorf("TOKKO_RATE_LIMIT must be positive")
	}
	if c.Tokko.RateBurst < 1 {
		return fmt.Errorf("TOKKO_RATE_BURST must be at least 1")
	}
	if c.Tokko.PageSize < 1 || c.Tokko.PageSize > 100 {
		return fmt.Errorf("TOKKO_PAGE_SIZE must be between 1 and 100")
	}
	if c.Tokko.MaxRetries < 0 {
		return fmt.Errorf("TOKKO_MAX_RETRIES must be non-negative")
	}

	// Validate sync config
	if c.Sync.MaxLimit < 1 {
		return fmt.Errorf("SYNC_MAX_LIMIT must be at least 1")
	}
	if c.Sync.DefaultLimit < 1 || c.Sync.DefaultLimit > c.Sync.MaxLimit {
		return fmt.Errorf("SYNC_DEFAULT_LIMIT must be between 1 and SYNC_MAX_LIMIT")
	}
	if c.Sync.Timeout <= 0 {
		return fmt.Errorf("SYNC_TIMEOUT must be positive")
	}
	if c.Sync.LockTTL < c.Sync.Timeout {
		return fmt.Errorf("SYNC_LOCK_TTL must be at least SYNC_TIMEOUT")
	}
	if c.Sync.Workers < 1 {
		return fmt.Errorf("SYNC_WORKERS must be at least 1")
	}
	if c.Sync.QueueSize < 1 {
		return fmt.Errorf("SYNC_QUEUE_SIZE must be at least 1")
	}

	// Validate photo migration config
	if c.Photos.BatchSize < 1 {
		return fmt.Errorf("PHOTO_BATCH_SIZE must be at least 1")
	}
	if c.Photos.Concurrency < 1 {
		return fmt.Errorf("PHOTO_CONCURRENCY must be at least 1")
	}
	if c.Photos.MaxBytes < 1 {
		return fmt.Errorf("PHOTO_MAX_BYTES must be positive")
	}

	switch c.Storage.Driver {
	case StorageDriverLocal:
		if c.Storage.LocalDir == "" {
			return fmt.Errorf("STORAGE_LOCAL_DIR is required for the local storage driver")
		}
		if c.Storage.PublicURL == "" {
			return fmt.Errorf("STORAGE_PUBLIC_URL is required for the local storage driver")
		}
	case StorageDriverGCS:
		if c.Storage.GCSBucket == "" {
			return fmt.Errorf("GCS_BUCKET is required for the gcs storage driver")
		}
	default:
		return fmt.Errorf("STORAGE_DRIVER must be one of %q or %q, got %q",
			StorageDriverLocal, StorageDriverGCS, c.Storage.Driver)
	}

	if c.Credential.Key == "" {
		return fmt.Errorf("CREDENTIAL_KEY is required")
	}
	if key, err := hex.DecodeString(c.Credential.Key); err != nil || len(key) != 32 {
		return fmt.Errorf("CREDENTIAL_KEY must be 64 hex characters")
	}

	if c.Rates.PrimaryURL == "" && c.Rates.FallbackURL == "" {
		return fmt.Errorf("at least one of RATES_PRIMARY_URL or RATES_FALLBACK_URL is required")
	}

	return nil
}

// parseOrigins splits a comma-separated string of origins into a slice.
func parseOrigins(origins string) []string {
	if origins == "" {
		return []string{}
	}

	parts := strings.Split(origins, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
