package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"dataexplorer/internal/errors"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config represents the complete application configuration
type Config struct {
	API       APIConfig
	Workflow  WorkflowConfig
	Storage   StorageConfig
	Preview   PreviewConfig
	Logging   LoggingConfig
	DevServer DevServerConfig
}

// APIConfig holds analysis service connection settings
type APIConfig struct {
	BaseURL     string        `validate:"required,url"`
	HTTPTimeout time.Duration `validate:"gt=0"`
	RateLimit   float64       `validate:"gt=0"`
	RateBurst   int           `validate:"gte=1"`
}

// WorkflowConfig holds orchestration settings
type WorkflowConfig struct {
	StageTimeout     time.Duration `validate:"gt=0"`
	FeatureThreshold float64       `validate:"gte=0"`
}

// StorageConfig holds durable local state settings
type StorageConfig struct {
	StateDir       string `validate:"required"`
	SessionBackend string `validate:"oneof=file sqlite"`
}

// PreviewConfig holds cleaned-table preview settings
type PreviewConfig struct {
	CSVMode string `validate:"oneof=quoted naive"`
	MaxRows int    `validate:"gte=1"`
}

// LoggingConfig holds log verbosity
type LoggingConfig struct {
	Level string `validate:"oneof=ERROR WARN WARNING INFO DEBUG TRACE"`
}

// DevServerConfig holds settings for the reference analysis service
type DevServerConfig struct {
	Port    string `validate:"required,numeric"`
	GinMode string `validate:"oneof=debug release test"`
	DataDir string `validate:"required"`
}

// Load reads configuration from the environment (and an optional .env file) and validates it
func Load() (*Config, error) {
	// A missing .env file is normal; values may come from the real environment.
	_ = godotenv.Load()

	stateDir := getEnvOrDefault("EXPLORER_STATE_DIR", defaultStateDir())

	config := &Config{
		API: APIConfig{
			BaseURL:     strings.TrimRight(getEnvOrDefault("EXPLORER_API_URL", "http://localhost:8000"), "/"),
			HTTPTimeout: getEnvDurationOrDefault("EXPLORER_HTTP_TIMEOUT", 60*time.Second),
			RateLimit:   getEnvFloatOrDefault("EXPLORER_RATE_LIMIT", 10),
			RateBurst:   getEnvIntOrDefault("EXPLORER_RATE_BURST", 5),
		},
		Workflow: WorkflowConfig{
			StageTimeout:     getEnvDurationOrDefault("EXPLORER_STAGE_TIMEOUT", 2*time.Minute),
			FeatureThreshold: getEnvFloatOrDefault("EXPLORER_FEATURE_THRESHOLD", 0.0),
		},
		Storage: StorageConfig{
			StateDir:       stateDir,
			SessionBackend: strings.ToLower(getEnvOrDefault("SESSION_BACKEND", "file")),
		},
		Preview: PreviewConfig{
			CSVMode: strings.ToLower(getEnvOrDefault("PREVIEW_CSV_MODE", "quoted")),
			MaxRows: getEnvIntOrDefault("PREVIEW_MAX_ROWS", 20),
		},
		Logging: LoggingConfig{
			Level: strings.ToUpper(getEnvOrDefault("LOG_LEVEL", "INFO")),
		},
		DevServer: DevServerConfig{
			Port:    getEnvOrDefault("DEVSERVER_PORT", "8000"),
			GinMode: getEnvOrDefault("GIN_MODE", "release"),
			DataDir: getEnvOrDefault("DEVSERVER_DATA_DIR", filepath.Join(stateDir, "cleaned_files")),
		},
	}

	if err := Validate(config); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}

	return config, nil
}

var validate = validator.New()

// Validate checks struct-tag constraints on the configuration
func Validate(config *Config) error {
	if config == nil {
		return errors.ConfigInvalid("configuration is nil")
	}
	if err := validate.Struct(config); err != nil {
		return errors.WithCode(errors.CodeConfigInvalid, err)
	}
	return nil
}

// BlobDir is where the file-backed session repository keeps its blobs
func (c *Config) BlobDir() string {
	return filepath.Join(c.Storage.StateDir, "blobs")
}

// SessionDatabase is the SQLite path for the sqlite session backend
func (c *Config) SessionDatabase() string {
	return filepath.Join(c.Storage.StateDir, "session.db")
}

func defaultStateDir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ".dataexplorer"
	}
	return filepath.Join(home, ".dataexplorer")
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
