// Package config loads runtime configuration from environment variables
// with sensible local-development defaults.
package config

import (
	"log"
	"os"
	"strconv"
	"time"
)

// Config carries every runtime setting of the service.
type Config struct {
	Port string

	// Database connection (raw landing tables live here).
	DBHost     string
	DBUser     string
	DBPassword string
	DBName     string
	DBPort     string

	// File source: a Google Drive folder when DriveAPIKey is set, otherwise
	// a local directory rooted at LocalFolderRoot.
	DriveBaseURL    string
	DriveAPIKey     string
	LocalFolderRoot string

	// Feature refresh gateway (PostgREST-style RPC endpoint).
	FeatureRefreshURL string
	FeatureRefreshKey string

	IngestWorkers   int
	DownloadTimeout time.Duration
	UpsertTimeout   time.Duration
}

// Load reads the configuration from the environment.
func Load() Config {
	return Config{
		Port: getEnv("PORT", "8080"),

		DBHost:     getEnv("DB_HOST", "localhost"),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", "postgres"),
		DBName:     getEnv("DB_NAME", "credit_engine"),
		DBPort:     getEnv("DB_PORT", "5432"),

		DriveBaseURL:    getEnv("DRIVE_BASE_URL", "https://www.googleapis.com/drive/v3"),
		DriveAPIKey:     getEnv("DRIVE_API_KEY", ""),
		LocalFolderRoot: getEnv("LOCAL_FOLDER_ROOT", "./data"),

		FeatureRefreshURL: getEnv("FEATURE_REFRESH_URL", "http://localhost:3000"),
		FeatureRefreshKey: getEnv("FEATURE_REFRESH_KEY", ""),

		IngestWorkers:   getEnvInt("INGEST_WORKERS", 4),
		DownloadTimeout: getEnvDuration("DOWNLOAD_TIMEOUT", 30*time.Second),
		UpsertTimeout:   getEnvDuration("UPSERT_TIMEOUT", 30*time.Second),
	}
}

// getEnv reads an environment variable with a fallback value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		log.Printf("Invalid integer for %s: %q, using default %d", key, value, fallback)
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		log.Printf("Invalid duration for %s: %q, using default %s", key, value, fallback)
		return fallback
	}
	return d
}
