package common

import (
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	Data     DataConfig
	Download DownloadConfig
	Convert  ConvertConfig
	Geocode  GeocodeConfig
	LLM      LLMConfig
	Enrich   EnrichConfig
}

// DataConfig locates the durable pipeline state on disk.
type DataConfig struct {
	Root string
}

// DownloadConfig holds stage-1 settings.
type DownloadConfig struct {
	BaseURL string
	Timeout time.Duration
}

// ConvertConfig holds stage-2 settings.
type ConvertConfig struct {
	MarkitdownBin string
	Timeout       time.Duration
}

// GeocodeConfig holds the Places API settings for stage 4.
type GeocodeConfig struct {
	APIKey      string
	CitySuffix  string
	BiasLat     float64
	BiasLon     float64
	BiasRadiusM float64
	Timeout     time.Duration
}

// LLMConfig holds settings for the Claude messages API, used for both
// table extraction (stage 3) and offense categorization (stage 4).
type LLMConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature float32
	Timeout     time.Duration
}

// EnrichConfig bounds stage-4 concurrency.
type EnrichConfig struct {
	Workers int
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Data: DataConfig{
			Root: getEnv("DATA_DIR", "./data"),
		},
		Download: DownloadConfig{
			BaseURL: getEnv("DOWNLOAD_BASE_URL", "https://www.paloalto.gov"),
			Timeout: getEnvAsDuration("DOWNLOAD_TIMEOUT", 60*time.Second),
		},
		Convert: ConvertConfig{
			MarkitdownBin: getEnv("MARKITDOWN_BIN", "markitdown"),
			Timeout:       getEnvAsDuration("CONVERT_TIMEOUT", 2*time.Minute),
		},
		Geocode: GeocodeConfig{
			APIKey:      getEnv("GOOGLE_MAPS_API_KEY", ""),
			CitySuffix:  getEnv("GEOCODE_CITY_SUFFIX", ", Palo Alto, CA"),
			BiasLat:     getEnvAsFloat64("GEOCODE_BIAS_LAT", 37.4419),
			BiasLon:     getEnvAsFloat64("GEOCODE_BIAS_LON", -122.1430),
			BiasRadiusM: getEnvAsFloat64("GEOCODE_BIAS_RADIUS_M", 15000),
			Timeout:     getEnvAsDuration("GEOCODE_TIMEOUT", 15*time.Second),
		},
		LLM: LLMConfig{
			APIKey:      getEnv("ANTHROPIC_API_KEY", ""),
			BaseURL:     getEnv("ANTHROPIC_BASE_URL", "https://api.anthropic.com"),
			Model:       getEnv("CLAUDE_MODEL_ID", "claude-3-5-sonnet-20241022"),
			MaxTokens:   getEnvAsInt("LLM_MAX_TOKENS", 4000),
			Temperature: getEnvAsFloat32("LLM_TEMPERATURE", 0.0),
			Timeout:     getEnvAsDuration("LLM_TIMEOUT", 90*time.Second),
		},
		Enrich: EnrichConfig{
			Workers: getEnvAsInt("ENRICH_WORKERS", 4),
		},
	}
}

// StageDir resolves a stage output directory under the data root.
func (c *Config) StageDir(dirName string) string {
	return filepath.Join(c.Data.Root, dirName)
}

// CacheDir is where the geocode/category cache files live.
func (c *Config) CacheDir() string {
	return filepath.Join(c.Data.Root, "cache")
}

// Helper functions for environment variable parsing
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

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(floatVal)
		}
	}
	return defaultValue
}

func getEnvAsFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// Validate checks the configuration needed to run from startStep onward.
// Stages before startStep are trusted to have already produced their output,
// so their credentials are not required.
func (c *Config) Validate(startStep int) error {
	if c.Data.Root == "" {
		return NewAppError("CONFIG_ERROR", "DATA_DIR is required", ErrInvalidInput)
	}
	if startStep <= 3 && c.LLM.APIKey == "" {
		return NewAppError("CONFIG_ERROR", "ANTHROPIC_API_KEY is required for stages 3-4", ErrInvalidInput)
	}
	if startStep <= 4 {
		if c.Geocode.APIKey == "" {
			return NewAppError("CONFIG_ERROR", "GOOGLE_MAPS_API_KEY is required for stage 4", ErrInvalidInput)
		}
		if c.LLM.APIKey == "" {
			return NewAppError("CONFIG_ERROR", "ANTHROPIC_API_KEY is required for stage 4", ErrInvalidInput)
		}
	}
	if c.Enrich.Workers < 1 {
		return NewAppError("CONFIG_ERROR", "ENRICH_WORKERS must be >= 1", ErrInvalidInput)
	}
	return nil
}
