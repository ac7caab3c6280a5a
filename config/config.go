package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Storage  StorageConfig
	App      AppConfig
}

type ServerConfig struct {
	Port string
	// BaseURL is the externally visible origin used to build download
	// links for locally stored files.
	BaseURL string
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	MaxConns int
}

type StorageConfig struct {
	// LocalRoot is the directory for locally stored attachments. It is
	// created once at startup.
	LocalRoot string

	// Google Drive backend. Empty folder ID or credentials path leaves
	// the service in local-only mode.
	DriveFolderID        string
	DriveCredentialsPath string
	DrivePublicRead      bool

	ProbeTimeout time.Duration
	// ProbeInterval throttles live probes; zero probes on every call.
	ProbeInterval time.Duration

	FetchConnectTimeout time.Duration
	FetchTimeout        time.Duration

	SweepSchedule string
	SweepDelete   bool
}

type AppConfig struct {
	Environment string
	LogLevel    string
	Version     string
}

func Load() (*Config, error) {
	// Load .env file if it exists (ignore error in production)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:    getEnv("PORT", "8080"),
			BaseURL: getEnv("BASE_URL", "http://localhost:8080"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			Name:     getEnv("DB_NAME", "kfa"),
			MaxConns: getEnvAsInt("DB_MAX_CONNS", 5),
		},
		Storage: StorageConfig{
			LocalRoot:            getEnv("STORAGE_LOCAL_ROOT", "./data/files"),
			DriveFolderID:        getEnv("DRIVE_FOLDER_ID", ""),
			DriveCredentialsPath: getEnv("DRIVE_CREDENTIALS_PATH", ""),
			DrivePublicRead:      getEnvAsBool("DRIVE_PUBLIC_READ", false),
			ProbeTimeout:         getEnvAsDuration("STORAGE_PROBE_TIMEOUT", 5*time.Second),
			ProbeInterval:        getEnvAsDuration("STORAGE_PROBE_INTERVAL", 0),
			FetchConnectTimeout:  getEnvAsDuration("IMPORT_CONNECT_TIMEOUT", 5*time.Second),
			FetchTimeout:         getEnvAsDuration("IMPORT_TIMEOUT", 30*time.Second),
			SweepSchedule:        getEnv("STORAGE_SWEEP_SCHEDULE", "0 3 * * *"),
			SweepDelete:          getEnvAsBool("STORAGE_SWEEP_DELETE", false),
		},
		App: AppConfig{
			Environment: getEnv("APP_ENV", "development"),
			LogLevel:    getEnv("LOG_LEVEL", "info"),
			Version:     getEnv("APP_VERSION", "1.0.0"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("PORT is required")
	}

	if c.Database.Host == "" {
		return fmt.Errorf("DB_HOST is required")
	}

	if c.Storage.LocalRoot == "" {
		return fmt.Errorf("STORAGE_LOCAL_ROOT is required")
	}

	if c.Database.MaxConns < 1 {
		c.Database.MaxConns = 1
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Printf("Warning: Invalid integer for %s, using default: %d", key, defaultValue)
		return defaultValue
	}

	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		log.Printf("Warning: Invalid boolean for %s, using default: %v", key, defaultValue)
		return defaultValue
	}

	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := time.ParseDuration(valueStr)
	if err != nil {
		log.Printf("Warning: Invalid duration for %s, using default: %s", key, defaultValue)
		return defaultValue
	}

	return value
}
