package config

import (
	"time"

	"github.com/spf13/viper"
)

// Config stores all configuration for the application.
type Config struct {
	ServerPort   string `mapstructure:"SERVER_PORT"`
	PostgresURL  string `mapstructure:"POSTGRES_URL"`
	RedisAddr    string `mapstructure:"REDIS_ADDR"`
	CacheBackend string `mapstructure:"CACHE_BACKEND"` // "memory" or "redis"

	CacheTTLSeconds     int `mapstructure:"CACHE_TTL_SECONDS"`
	FetchTimeoutSeconds int `mapstructure:"FETCH_TIMEOUT_SECONDS"`
	MaxAttempts         int `mapstructure:"MAX_ATTEMPTS"`

	BatchWorkers  int `mapstructure:"BATCH_WORKERS"`
	DetailWorkers int `mapstructure:"DETAIL_WORKERS"`
	MaxBatchSize  int `mapstructure:"MAX_BATCH_SIZE"`

	DomainMaxConcurrent int `mapstructure:"DOMAIN_MAX_CONCURRENT"`
	DomainMinDelayMs    int `mapstructure:"DOMAIN_MIN_DELAY_MS"`
	DomainMaxDelayMs    int `mapstructure:"DOMAIN_MAX_DELAY_MS"`

	HistoryLimitCap int `mapstructure:"HISTORY_LIMIT_CAP"`
}

// Load reads configuration from file or environment variables.
func Load() (*Config, error) {
	viper.SetConfigFile(".env")
	viper.SetConfigType("env")
	viper.AutomaticEnv()

	// Attempt to read the .env file, but don't fail if it's not present.
	// This allows configuration purely through environment variables in production.
	_ = viper.ReadInConfig()

	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("CACHE_BACKEND", "memory")
	viper.SetDefault("CACHE_TTL_SECONDS", 600)
	viper.SetDefault("FETCH_TIMEOUT_SECONDS", 30)
	viper.SetDefault("MAX_ATTEMPTS", 2)
	viper.SetDefault("BATCH_WORKERS", 6)
	viper.SetDefault("DETAIL_WORKERS", 5)
	viper.SetDefault("MAX_BATCH_SIZE", 50)
	viper.SetDefault("DOMAIN_MAX_CONCURRENT", 2)
	viper.SetDefault("DOMAIN_MIN_DELAY_MS", 600)
	viper.SetDefault("DOMAIN_MAX_DELAY_MS", 1200)
	viper.SetDefault("HISTORY_LIMIT_CAP", 100)

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// CacheTTL returns the default cache entry lifetime.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSeconds) * time.Second
}

// FetchTimeout returns the overall per-request transport timeout.
func (c *Config) FetchTimeout() time.Duration {
	return time.Duration(c.FetchTimeoutSeconds) * time.Second
}

// DomainMinDelay returns the lower pacing bound between same-domain requests.
func (c *Config) DomainMinDelay() time.Duration {
	return time.Duration(c.DomainMinDelayMs) * time.Millisecond
}

// DomainMaxDelay returns the upper pacing bound between same-domain requests.
func (c *Config) DomainMaxDelay() time.Duration {
	return time.Duration(c.DomainMaxDelayMs) * time.Millisecond
}
