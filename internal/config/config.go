package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Sync     SyncConfig
	Gate     GateConfig
}

type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type DatabaseConfig struct {
	Path    string
	LogsDir string
}

type SyncConfig struct {
	BaseURL         string
	APIToken        string
	UploadEvery     time.Duration
	MaxBackoff      time.Duration
	UploadTimeout   time.Duration
	DownloadOnStart bool
}

// GateConfig identifies this scanner. The gate name is exposed to rule
// expressions as the `gate` variable and may be empty.
type GateConfig struct {
	Name      string
	EventSlug string
}

func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", ":8170"),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Database: DatabaseConfig{
			Path:    getEnv("SQLITE_PATH", "gatescan.db"),
			LogsDir: getEnv("LOGS_DIR", "logs"),
		},
		Sync: SyncConfig{
			BaseURL:         getEnv("SYNC_BASE_URL", "http://localhost:8000/api/v1"),
			APIToken:        getEnv("SYNC_API_TOKEN", ""),
			UploadEvery:     time.Duration(getEnvInt("SYNC_UPLOAD_SECONDS", 10)) * time.Second,
			MaxBackoff:      time.Duration(getEnvInt("SYNC_MAX_BACKOFF_SECONDS", 300)) * time.Second,
			UploadTimeout:   time.Duration(getEnvInt("SYNC_UPLOAD_TIMEOUT_SECONDS", 30)) * time.Second,
			DownloadOnStart: getEnvBool("SYNC_DOWNLOAD_ON_START", true),
		},
		Gate: GateConfig{
			Name:      getEnv("GATE_NAME", ""),
			EventSlug: getEnv("EVENT_SLUG", ""),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
