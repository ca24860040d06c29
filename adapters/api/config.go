package api

import (
	"fmt"
	"strings"
	"time"
)

// ClientConfig holds connection settings for the analysis service
type ClientConfig struct {
	BaseURL   string        `json:"base_url"`
	Timeout   time.Duration `json:"timeout"`
	RateLimit float64       `json:"rate_limit"` // requests per second
	RateBurst int           `json:"rate_burst"`
}

// DefaultClientConfig returns settings for a service on localhost
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		BaseURL:   "http://localhost:8000",
		Timeout:   60 * time.Second,
		RateLimit: 10,
		RateBurst: 5,
	}
}

// Validate checks if the configuration is valid
func (c ClientConfig) Validate() error {
	if strings.TrimSpace(c.BaseURL) == "" {
		return &ValidationError{Field: "BaseURL", Message: "must not be empty"}
	}
	if c.Timeout <= 0 {
		return &ValidationError{Field: "Timeout", Message: "must be positive"}
	}
	if c.RateLimit <= 0 {
		return &ValidationError{Field: "RateLimit", Message: "must be positive"}
	}
	if c.RateBurst < 1 {
		return &ValidationError{Field: "RateBurst", Message: "must be at least 1"}
	}
	return nil
}

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}
