package config

import (
	"os"
	"strconv"
	"strings"

	"tdadiffusion/domain/diffusion"
	engine "tdadiffusion/internal/diffusion"
	"tdadiffusion/internal/errors"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config represents the complete application configuration
type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	Analysis AnalysisConfig
	LogLevel string `validate:"omitempty,oneof=ERROR WARN WARNING INFO DEBUG TRACE"`
}

// DatabaseConfig holds database connection settings. An empty URL selects
// the in-memory analysis repository.
type DatabaseConfig struct {
	URL string `validate:"omitempty,url"`
}

// Enabled reports whether a PostgreSQL database is configured.
func (d DatabaseConfig) Enabled() bool {
	return d.URL != ""
}

// ServerConfig holds web server settings
type ServerConfig struct {
	Port string `validate:"required,numeric"`
}

// AnalysisConfig holds the engine heuristics and request defaults
type AnalysisConfig struct {
	MinTimeMinutes     float64 `validate:"gte=0"`
	PeakFraction       float64 `validate:"gt=0,lt=1"`
	NoiseThreshold     float64 `validate:"gte=0"`
	DefaultThicknessCM float64 `validate:"gt=0"`
	DefaultMaterial    string  `validate:"required"`
}

var validate = validator.New()

// EngineOptions returns engine heuristics with the configured overrides
func (a AnalysisConfig) EngineOptions() engine.Options {
	opts := engine.DefaultOptions()
	opts.Tail.MinTime = a.MinTimeMinutes
	opts.Tail.PeakFraction = a.PeakFraction
	opts.NoiseThreshold = a.NoiseThreshold
	return opts
}

// Request returns the default request for mode with the configured sample
// thickness and material
func (a AnalysisConfig) Request(mode diffusion.Mode) diffusion.Request {
	req := diffusion.DefaultRequest(mode)
	req.ThicknessCM = a.DefaultThicknessCM
	req.Material = a.DefaultMaterial
	return req
}

// Load reads configuration from environment variables, after merging an
// optional .env file, and validates it
func Load() (*Config, error) {
	// A missing .env is normal outside development.
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnv reads configuration from the process environment only
func FromEnv() (*Config, error) {
	cfg := &Config{
		Database: DatabaseConfig{
			URL: getEnvOrDefault("DATABASE_URL", ""),
		},
		Server: ServerConfig{
			Port: getEnvOrDefault("PORT", "8080"),
		},
		Analysis: AnalysisConfig{
			MinTimeMinutes:     getEnvFloatOrDefault("TDA_MIN_TIME", 60),
			PeakFraction:       getEnvFloatOrDefault("TDA_PEAK_FRACTION", 0.1),
			NoiseThreshold:     getEnvFloatOrDefault("TDA_NOISE_THRESHOLD", 1e-12),
			DefaultThicknessCM: getEnvFloatOrDefault("TDA_DEFAULT_THICKNESS_CM", 0.1),
			DefaultMaterial:    strings.ToLower(getEnvOrDefault("TDA_DEFAULT_MATERIAL", "steel")),
		},
		LogLevel: strings.ToUpper(getEnvOrDefault("LOG_LEVEL", "INFO")),
	}

	if err := validate.Struct(cfg); err != nil {
		return nil, errors.Wrap(errors.ConfigInvalid(err.Error()), "configuration validation failed")
	}
	return cfg, nil
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
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
