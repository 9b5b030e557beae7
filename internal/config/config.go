package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App          App          `mapstructure:"app"`
	Similarity   Similarity   `mapstructure:"similarity"`
	Regeneration Regeneration `mapstructure:"regeneration"`
	Embedding    Embedding    `mapstructure:"embedding"`
	Generation   Generation   `mapstructure:"generation"`
}

// App holds general application configuration
type App struct {
	Debug    bool   `mapstructure:"debug"`
	LogLevel string `mapstructure:"log_level"`
	DataDir  string `mapstructure:"data_dir"`
}

// Similarity holds the thresholds and blend weighting for the hybrid checker
type Similarity struct {
	Threshold         float64 `mapstructure:"threshold"`          // Blended-score cutoff, percent (strictly-greater is too similar)
	SemanticThreshold float64 `mapstructure:"semantic_threshold"` // Independent semantic-only cutoff, 0-1
	SemanticWeight    float64 `mapstructure:"semantic_weight"`    // Weight of the semantic signal in the blend, 0-1
	HammingThreshold  int     `mapstructure:"hamming_threshold"`  // Max bit distance for the fingerprint is-similar test
}

// Regeneration holds the retry-loop configuration
type Regeneration struct {
	MaxAttempts    int    `mapstructure:"max_attempts"`
	Enabled        bool   `mapstructure:"enabled"`
	AttemptTimeout string `mapstructure:"attempt_timeout"`
}

// Embedding holds the Gemini embedding configuration
type Embedding struct {
	APIKey        string `mapstructure:"api_key"`
	Model         string `mapstructure:"model"`
	Dimensions    int32  `mapstructure:"dimensions"`
	Timeout       string `mapstructure:"timeout"`
	MaxInputChars int    `mapstructure:"max_input_chars"`
}

// Generation holds the article-generation model configuration
type Generation struct {
	Model       string  `mapstructure:"model"`
	MaxTokens   int32   `mapstructure:"max_tokens"`
	Temperature float32 `mapstructure:"temperature"`
}

var globalConfig *Config

// Load loads the configuration from .env, the config file, and the environment.
func Load(configFile string) (*Config, error) {
	if globalConfig != nil {
		return globalConfig, nil
	}

	// Load .env file if it exists
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			fmt.Printf("Warning: Error loading .env file: %v\n", err)
		}
	}

	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME")
		viper.SetConfigName(".blogsmith")
		viper.SetConfigType("yaml")
	}

	setDefaults()
	bindEnvironmentVariables()

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	globalConfig = config
	return config, nil
}

// Get returns the global configuration, loading it if necessary.
func Get() *Config {
	if globalConfig == nil {
		config, err := Load("")
		if err != nil {
			panic(fmt.Sprintf("Failed to load configuration: %v", err))
		}
		return config
	}
	return globalConfig
}

// Reset clears the cached global configuration. Intended for tests.
func Reset() {
	globalConfig = nil
	viper.Reset()
}

// setDefaults sets default configuration values
func setDefaults() {
	viper.SetDefault("app.debug", false)
	viper.SetDefault("app.log_level", "info")
	viper.SetDefault("app.data_dir", ".blogsmith-cache")

	viper.SetDefault("similarity.threshold", 72.0)
	viper.SetDefault("similarity.semantic_threshold", 0.85)
	viper.SetDefault("similarity.semantic_weight", 0.60)
	viper.SetDefault("similarity.hamming_threshold", 3)

	viper.SetDefault("regeneration.max_attempts", 3)
	viper.SetDefault("regeneration.enabled", true)
	viper.SetDefault("regeneration.attempt_timeout", "2m")

	viper.SetDefault("embedding.model", "gemini-embedding-001")
	viper.SetDefault("embedding.dimensions", 768)
	viper.SetDefault("embedding.timeout", "30s")
	viper.SetDefault("embedding.max_input_chars", 8000)

	viper.SetDefault("generation.model", "gemini-flash-lite-latest")
	viper.SetDefault("generation.max_tokens", 8192)
	viper.SetDefault("generation.temperature", 0.7)
}

// bindEnvironmentVariables sets up flexible environment variable binding
func bindEnvironmentVariables() {
	// Gemini API key - support multiple formats
	bindEnvKeys("embedding.api_key", []string{
		"GEMINI_API_KEY",
		"GOOGLE_GEMINI_API_KEY",
		"GOOGLE_AI_API_KEY",
	})
	bindEnvKeys("similarity.threshold", []string{"SIMILARITY_THRESHOLD"})
	bindEnvKeys("similarity.semantic_threshold", []string{"SEMANTIC_THRESHOLD"})
	bindEnvKeys("regeneration.max_attempts", []string{"MAX_REGENERATION_ATTEMPTS"})
	bindEnvKeys("regeneration.enabled", []string{"ENABLE_REGENERATION"})
}

// bindEnvKeys binds the first set environment variable from the list to the key
func bindEnvKeys(key string, envVars []string) {
	for _, envVar := range envVars {
		if value := os.Getenv(envVar); value != "" {
			viper.Set(key, value)
			return
		}
	}
}

// Validate fails fast on configuration that would misbehave at runtime.
func (c *Config) Validate() error {
	if c.Similarity.Threshold < 0 || c.Similarity.Threshold > 100 {
		return fmt.Errorf("similarity.threshold must be within [0, 100], got %.2f", c.Similarity.Threshold)
	}
	if c.Similarity.SemanticThreshold < 0 || c.Similarity.SemanticThreshold > 1 {
		return fmt.Errorf("similarity.semantic_threshold must be within [0, 1], got %.2f", c.Similarity.SemanticThreshold)
	}
	if c.Similarity.SemanticWeight < 0 || c.Similarity.SemanticWeight > 1 {
		return fmt.Errorf("similarity.semantic_weight must be within [0, 1], got %.2f", c.Similarity.SemanticWeight)
	}
	if c.Similarity.HammingThreshold < 0 || c.Similarity.HammingThreshold > 64 {
		return fmt.Errorf("similarity.hamming_threshold must be within [0, 64], got %d", c.Similarity.HammingThreshold)
	}
	if c.Regeneration.MaxAttempts < 1 {
		return fmt.Errorf("regeneration.max_attempts must be at least 1, got %d", c.Regeneration.MaxAttempts)
	}
	if _, err := time.ParseDuration(c.Regeneration.AttemptTimeout); err != nil {
		return fmt.Errorf("regeneration.attempt_timeout is not a valid duration: %w", err)
	}
	if _, err := time.ParseDuration(c.Embedding.Timeout); err != nil {
		return fmt.Errorf("embedding.timeout is not a valid duration: %w", err)
	}
	if c.Embedding.MaxInputChars < 1 {
		return fmt.Errorf("embedding.max_input_chars must be positive, got %d", c.Embedding.MaxInputChars)
	}
	return nil
}

// AttemptTimeoutDuration returns the parsed per-attempt generation timeout.
func (r Regeneration) AttemptTimeoutDuration() time.Duration {
	d, err := time.ParseDuration(r.AttemptTimeout)
	if err != nil {
		return 2 * time.Minute
	}
	return d
}

// TimeoutDuration returns the parsed per-call embedding timeout.
func (e Embedding) TimeoutDuration() time.Duration {
	d, err := time.ParseDuration(e.Timeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}
