// Package config provides configuration loading and management utilities
// for s3db deployments. This package includes standard environment variable
// loading, validation, and the configuration patterns shared by the CLI and
// the embedded library.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// EnvConfig provides utilities for loading configuration from environment variables
type EnvConfig struct {
	prefix string // Optional prefix for all environment variables
}

// NewEnvConfig creates a new environment configuration loader
func NewEnvConfig(prefix string) *EnvConfig {
	return &EnvConfig{
		prefix: prefix,
	}
}

// GetString retrieves a string value from environment with optional default
func (ec *EnvConfig) GetString(key, defaultValue string) string {
	fullKey := ec.buildKey(key)
	if value := os.Getenv(fullKey); value != "" {
		return value
	}
	return defaultValue
}

// GetInt retrieves an integer value from environment with optional default
func (ec *EnvConfig) GetInt(key string, defaultValue int) int {
	fullKey := ec.buildKey(key)
	if value := os.Getenv(fullKey); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// GetBool retrieves a boolean value from environment with optional default
func (ec *EnvConfig) GetBool(key string, defaultValue bool) bool {
	fullKey := ec.buildKey(key)
	if value := os.Getenv(fullKey); value != "" {
		boolValue, err := strconv.ParseBool(value)
		if err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// GetDuration retrieves a duration value from environment with optional default
func (ec *EnvConfig) GetDuration(key string, defaultValue time.Duration) time.Duration {
	fullKey := ec.buildKey(key)
	if value := os.Getenv(fullKey); value != "" {
		duration, err := time.ParseDuration(value)
		if err == nil {
			return duration
		}
	}
	return defaultValue
}

// GetStringSlice retrieves a comma-separated string slice from environment
func (ec *EnvConfig) GetStringSlice(key string, defaultValue []string) []string {
	fullKey := ec.buildKey(key)
	if value := os.Getenv(fullKey); value != "" {
		parts := strings.Split(value, ",")
		result := make([]string, 0, len(parts))
		for _, part := range parts {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return defaultValue
}

// buildKey builds the full environment variable key with optional prefix
func (ec *EnvConfig) buildKey(key string) string {
	if ec.prefix != "" {
		return ec.prefix + "_" + key
	}
	return key
}

// StoreConfig contains object-store connection configuration
type StoreConfig struct {
	ConnectionString     string
	MetadataBudget       int
	PartitionConcurrency int
	RequestTimeout       time.Duration
}

// LoadStoreConfig loads object-store configuration from environment
func LoadStoreConfig(prefix string) StoreConfig {
	env := NewEnvConfig(prefix)
	return StoreConfig{
		ConnectionString:     env.GetString("CONNECTION", "memory://default"),
		MetadataBudget:       env.GetInt("METADATA_BUDGET", 2048),
		PartitionConcurrency: env.GetInt("PARTITION_CONCURRENCY", 10),
		RequestTimeout:       env.GetDuration("REQUEST_TIMEOUT", 30*time.Second),
	}
}

// ServiceConfig contains common service configuration
type ServiceConfig struct {
	Name        string
	Version     string
	Environment string
	LogLevel    string
	LogFormat   string
}

// LoadServiceConfig loads service configuration from environment
func LoadServiceConfig(prefix string) ServiceConfig {
	env := NewEnvConfig(prefix)
	return ServiceConfig{
		Name:        env.GetString("NAME", ""),
		Version:     env.GetString("VERSION", "0.0.1"),
		Environment: env.GetString("ENVIRONMENT", "development"),
		LogLevel:    env.GetString("LOG_LEVEL", "info"),
		LogFormat:   env.GetString("LOG_FORMAT", "text"),
	}
}

// Validator provides configuration validation utilities
type Validator struct {
	errors []string
}

// NewValidator creates a new configuration validator
func NewValidator() *Validator {
	return &Validator{
		errors: make([]string, 0),
	}
}

// RequireString validates that a string field is not empty
func (v *Validator) RequireString(field, value string) {
	if value == "" {
		v.errors = append(v.errors, fmt.Sprintf("%s is required", field))
	}
}

// RequireInt validates that an integer field is within range
func (v *Validator) RequireInt(field string, value, min, max int) {
	if value < min || value > max {
		v.errors = append(v.errors, fmt.Sprintf("%s must be between %d and %d", field, min, max))
	}
}

// RequirePositiveInt validates that an integer field is positive
func (v *Validator) RequirePositiveInt(field string, value int) {
	if value <= 0 {
		v.errors = append(v.errors, fmt.Sprintf("%s must be positive", field))
	}
}

// RequireOneOf validates that a value is one of the allowed options
func (v *Validator) RequireOneOf(field, value string, allowed []string) {
	if value == "" {
		v.errors = append(v.errors, fmt.Sprintf("%s is required", field))
		return
	}
	for _, option := range allowed {
		if value == option {
			return
		}
	}
	v.errors = append(v.errors, fmt.Sprintf("%s must be one of: %s", field, strings.Join(allowed, ", ")))
}

// IsValid returns true if there are no validation errors
func (v *Validator) IsValid() bool {
	return len(v.errors) == 0
}

// Errors returns all validation errors
func (v *Validator) Errors() []string {
	return v.errors
}

// ErrorString returns all validation errors as a single string
func (v *Validator) ErrorString() string {
	if len(v.errors) == 0 {
		return ""
	}
	return strings.Join(v.errors, "; ")
}

// Validate runs validation and returns error if invalid
func (v *Validator) Validate() error {
	if !v.IsValid() {
		return fmt.Errorf("configuration validation failed: %s", v.ErrorString())
	}
	return nil
}

// AllConfig contains every configuration section the CLI loads at startup
type AllConfig struct {
	Store   StoreConfig
	Service ServiceConfig
}

// LoadAll loads and validates every configuration section under one prefix
func LoadAll(prefix string) (*AllConfig, error) {
	config := &AllConfig{
		Store:   LoadStoreConfig(prefix),
		Service: LoadServiceConfig(prefix),
	}

	validator := NewValidator()
	validator.RequireString("Store.ConnectionString", config.Store.ConnectionString)
	validator.RequirePositiveInt("Store.MetadataBudget", config.Store.MetadataBudget)
	validator.RequirePositiveInt("Store.PartitionConcurrency", config.Store.PartitionConcurrency)
	validator.RequireOneOf("Service.Environment", config.Service.Environment,
		[]string{"development", "staging", "production"})
	validator.RequireOneOf("Service.LogLevel", config.Service.LogLevel,
		[]string{"debug", "info", "warn", "error"})
	if err := validator.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}
