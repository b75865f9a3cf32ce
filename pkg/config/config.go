package config

import (
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for queryscope-engine.
// Configuration can come from YAML file (config.yaml) or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets (datasource passwords) must only come from environment variables.
type Config struct {
	Env     string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	Version string `yaml:"-"` // Set at load time, not from config

	// Retry behavior for query execution
	Retry RetryConfig `yaml:"retry"`

	// Schema-name resolution settings
	Resolver ResolverConfig `yaml:"resolver"`

	// Suggestion engine settings
	Suggest SuggestConfig `yaml:"suggest"`

	// Datasource connection settings
	Datasource DatasourceConfig `yaml:"datasource"`
}

// RetryConfig holds retry and backoff settings for query execution.
type RetryConfig struct {
	MaxRetries int `yaml:"max_retries" env:"RETRY_MAX_RETRIES" env-default:"3"`
	// BaseDelay and MaxDelay accept Go duration strings ("1s", "500ms").
	BaseDelay             time.Duration `yaml:"base_delay" env:"RETRY_BASE_DELAY" env-default:"1s"`
	MaxDelay              time.Duration `yaml:"max_delay" env:"RETRY_MAX_DELAY" env-default:"30s"`
	BackoffFactor         float64       `yaml:"backoff_factor" env:"RETRY_BACKOFF_FACTOR" env-default:"2.0"`
	RefreshOnSchemaError  bool          `yaml:"refresh_on_schema_error" env:"RETRY_REFRESH_ON_SCHEMA_ERROR" env-default:"true"`
	RefreshOnUnknownError bool          `yaml:"refresh_on_unknown_error" env:"RETRY_REFRESH_ON_UNKNOWN_ERROR" env-default:"true"`
}

// ResolverConfig holds fuzzy-resolution settings.
type ResolverConfig struct {
	// FuzzyThreshold is the minimum 0..100 score a resolution candidate
	// needs to be returned.
	FuzzyThreshold int `yaml:"fuzzy_threshold" env:"RESOLVER_FUZZY_THRESHOLD" env-default:"60"`
}

// SuggestConfig holds suggestion engine settings.
type SuggestConfig struct {
	// SimilarityThreshold is the minimum 0..1 similarity for a suggestion.
	SimilarityThreshold float64 `yaml:"similarity_threshold" env:"SUGGEST_SIMILARITY_THRESHOLD" env-default:"0.6"`
	// MaxPerName caps the suggestions returned per missing name.
	MaxPerName int `yaml:"max_per_name" env:"SUGGEST_MAX_PER_NAME" env-default:"3"`
}

// DatasourceConfig holds connection settings for the database the engine
// runs queries against.
type DatasourceConfig struct {
	Type     string `yaml:"type" env:"DATASOURCE_TYPE" env-default:"postgres"` // "postgres" or "mssql"
	Host     string `yaml:"host" env:"DATASOURCE_HOST" env-default:"localhost"`
	Port     int    `yaml:"port" env:"DATASOURCE_PORT" env-default:"5432"`
	User     string `yaml:"user" env:"DATASOURCE_USER" env-default:"queryscope"`
	Password string `yaml:"-" env:"DATASOURCE_PASSWORD"` // Secret - not in YAML
	Database string `yaml:"database" env:"DATASOURCE_DATABASE" env-default:"queryscope"`
	SSLMode  string `yaml:"ssl_mode" env:"DATASOURCE_SSL_MODE" env-default:"disable"`
	// PoolMaxConns is the maximum number of connections in the pool.
	PoolMaxConns int32 `yaml:"pool_max_conns" env:"DATASOURCE_POOL_MAX_CONNS" env-default:"10"`
	// PoolMinConns is the minimum number of connections in the pool.
	PoolMinConns int32 `yaml:"pool_min_conns" env:"DATASOURCE_POOL_MIN_CONNS" env-default:"1"`
}

// Load reads configuration from config.yaml with environment variable
// overrides. The version parameter is injected at build time and set on the
// returned Config. Secrets (DATASOURCE_PASSWORD) must come from environment
// variables (yaml:"-" fields).
func Load(version string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	if err := cleanenv.ReadConfig("config.yaml", cfg); err != nil {
		return nil, fmt.Errorf("failed to read config.yaml: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// validate rejects settings the engine cannot run with.
func (c *Config) validate() error {
	if c.Retry.MaxRetries < 0 {
		return fmt.Errorf("retry.max_retries must be >= 0, got %d", c.Retry.MaxRetries)
	}
	if c.Retry.BaseDelay <= 0 {
		return fmt.Errorf("retry.base_delay must be positive, got %v", c.Retry.BaseDelay)
	}
	if c.Retry.MaxDelay < c.Retry.BaseDelay {
		return fmt.Errorf("retry.max_delay (%v) must be >= retry.base_delay (%v)", c.Retry.MaxDelay, c.Retry.BaseDelay)
	}
	if c.Retry.BackoffFactor < 1.0 {
		return fmt.Errorf("retry.backoff_factor must be >= 1.0, got %g", c.Retry.BackoffFactor)
	}
	if c.Resolver.FuzzyThreshold < 0 || c.Resolver.FuzzyThreshold > 100 {
		return fmt.Errorf("resolver.fuzzy_threshold must be in 0..100, got %d", c.Resolver.FuzzyThreshold)
	}
	if c.Suggest.SimilarityThreshold < 0 || c.Suggest.SimilarityThreshold > 1 {
		return fmt.Errorf("suggest.similarity_threshold must be in 0..1, got %g", c.Suggest.SimilarityThreshold)
	}
	if c.Suggest.MaxPerName <= 0 {
		return fmt.Errorf("suggest.max_per_name must be positive, got %d", c.Suggest.MaxPerName)
	}
	switch c.Datasource.Type {
	case "postgres", "mssql":
	default:
		return fmt.Errorf("datasource.type must be postgres or mssql, got %q", c.Datasource.Type)
	}
	return nil
}

// ConnectionString returns a driver connection string for the datasource.
func (c *DatasourceConfig) ConnectionString() string {
	switch c.Type {
	case "mssql":
		return fmt.Sprintf(
			"server=%s;port=%d;user id=%s;password=%s;database=%s",
			c.Host, c.Port, c.User, c.Password, c.Database,
		)
	default:
		return fmt.Sprintf(
			"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
		)
	}
}
