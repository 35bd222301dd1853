package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig
	Anthropic AnthropicConfig
	Batch     BatchConfig
	Cache     CacheConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port           string   `mapstructure:"port"`
	Environment    string   `mapstructure:"environment"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// AnthropicConfig holds the completion service configuration
type AnthropicConfig struct {
	APIKey    string `mapstructure:"api_key"`
	BaseURL   string `mapstructure:"base_url"`
	Model     string `mapstructure:"model"`
	MaxTokens int    `mapstructure:"max_tokens"`
	Version   string `mapstructure:"version"`
}

// BatchConfig holds the per-file limits and pacing for batch processing
type BatchConfig struct {
	MaxFileBytes int64         `mapstructure:"max_file_bytes"`
	PaceInterval time.Duration `mapstructure:"pace_interval"`
	MaxDimension int           `mapstructure:"max_dimension"`
	JPEGQuality  int           `mapstructure:"jpeg_quality"`
}

// CacheConfig holds cache-related configuration
type CacheConfig struct {
	TTL time.Duration `mapstructure:"ttl"`
}

// Load loads configuration from environment variables and config files
func Load() (*Config, error) {
	v := viper.New()

	// Set config name and paths
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/kaitori-compare/")

	// Environment variable settings
	v.SetEnvPrefix("KAITORI")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Set default values
	setDefaults(v)

	// Read config file (optional - will use env vars if file doesn't exist)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found; using environment variables and defaults
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	// Validate configuration
	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:3000"})

	// Anthropic defaults
	v.SetDefault("anthropic.base_url", "https://api.anthropic.com")
	v.SetDefault("anthropic.model", "claude-sonnet-4-20250514")
	v.SetDefault("anthropic.max_tokens", 2000)
	v.SetDefault("anthropic.version", "2023-06-01")

	// Batch defaults
	v.SetDefault("batch.max_file_bytes", 10*1024*1024) // 10 MiB
	v.SetDefault("batch.pace_interval", "1s")
	v.SetDefault("batch.max_dimension", 1200)
	v.SetDefault("batch.jpeg_quality", 70)

	// Cache defaults
	v.SetDefault("cache.ttl", "24h")
}

// validate validates the configuration
func validate(config *Config) error {
	if config.Anthropic.APIKey == "" {
		return fmt.Errorf("Anthropic API key is required (set KAITORI_ANTHROPIC_API_KEY)")
	}

	if config.Anthropic.MaxTokens <= 0 {
		return fmt.Errorf("anthropic.max_tokens must be positive, got: %d", config.Anthropic.MaxTokens)
	}

	if config.Batch.MaxFileBytes <= 0 {
		return fmt.Errorf("batch.max_file_bytes must be positive, got: %d", config.Batch.MaxFileBytes)
	}

	if config.Batch.MaxDimension <= 0 {
		return fmt.Errorf("batch.max_dimension must be positive, got: %d", config.Batch.MaxDimension)
	}

	if config.Batch.JPEGQuality < 1 || config.Batch.JPEGQuality > 100 {
		return fmt.Errorf("batch.jpeg_quality must be in 1..100, got: %d", config.Batch.JPEGQuality)
	}

	return nil
}
