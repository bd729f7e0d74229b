package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig     `mapstructure:"server"`
	Log       LogConfig        `mapstructure:"log"`
	Dispatch  DispatchConfig   `mapstructure:"dispatch"`
	RateLimit RateLimitConfig  `mapstructure:"rate_limit"`
	Cache     CacheConfig      `mapstructure:"cache"`
	Redis     RedisConfig      `mapstructure:"redis"`
	Database  DatabaseConfig   `mapstructure:"database"`
	Tracing   TracingConfig    `mapstructure:"tracing"`
	Providers []ProviderConfig `mapstructure:"providers"`
}

type ServerConfig struct {
	Port         string        `mapstructure:"port"`
	Env          string        `mapstructure:"env"`
	APIKeys      []string      `mapstructure:"api_keys"`
	CheckUpdates bool          `mapstructure:"check_updates"`
	ShutdownWait time.Duration `mapstructure:"shutdown_wait"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type DispatchConfig struct {
	// Timeout bounds every single provider call unless the provider overrides it.
	Timeout time.Duration `mapstructure:"timeout"`
	// MaxConcurrency caps in-flight provider calls per dispatch. 0 means unlimited.
	MaxConcurrency int `mapstructure:"max_concurrency"`
}

type RateLimitConfig struct {
	Enabled           bool    `mapstructure:"enabled"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

type CacheConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Backend string        `mapstructure:"backend"` // memory, redis
	TTL     time.Duration `mapstructure:"ttl"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type DatabaseConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	DSN     string `mapstructure:"dsn"`
}

type TracingConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	ServiceName string `mapstructure:"service_name"`
}

// ProviderConfig is the static definition of one registry entry.
// The credential itself is never stored here, only the variable holding it.
type ProviderConfig struct {
	ID        string            `mapstructure:"id" validate:"required"`
	Type      string            `mapstructure:"type" validate:"required"`
	Name      string            `mapstructure:"name" validate:"required"`
	Icon      string            `mapstructure:"icon"`
	BaseURL   string            `mapstructure:"base_url" validate:"omitempty,url"`
	Model     string            `mapstructure:"model"`
	APIKeyEnv string            `mapstructure:"api_key_env"`
	MaxTokens int               `mapstructure:"max_tokens" validate:"gte=0"`
	Timeout   time.Duration     `mapstructure:"timeout" validate:"gte=0"`
	Enabled   bool              `mapstructure:"enabled"`
	Config    map[string]string `mapstructure:"config"`
}

// Option returns a free-form vendor setting, or fallback when unset.
func (p ProviderConfig) Option(key, fallback string) string {
	if v, ok := p.Config[key]; ok && v != "" {
		return v
	}
	return fallback
}

var validate = validator.New()

// Validate checks the static shape of a provider entry.
func (p ProviderConfig) Validate() error {
	return validate.Struct(p)
}

// LoadConfig reads configuration from file or environment variables.
// An explicit path wins over CONFIG_FILE, which wins over the search paths.
func LoadConfig(path string) (*Config, error) {
	// Load .env file if present
	_ = godotenv.Load()

	v := viper.New()

	if path == "" {
		path = os.Getenv("CONFIG_FILE")
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}

	if len(cfg.Providers) == 0 {
		cfg.Providers = DefaultProviders()
	}

	for i := range cfg.Providers {
		if cfg.Providers[i].Timeout == 0 {
			cfg.Providers[i].Timeout = cfg.Dispatch.Timeout
		}
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.env", "development")
	v.SetDefault("server.api_keys", []string{})
	v.SetDefault("server.check_updates", false)
	v.SetDefault("server.shutdown_wait", 10*time.Second)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	v.SetDefault("dispatch.timeout", 60*time.Second)
	v.SetDefault("dispatch.max_concurrency", 0)

	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.requests_per_second", 10.0)
	v.SetDefault("rate_limit.burst", 20)

	v.SetDefault("cache.enabled", false)
	v.SetDefault("cache.backend", "memory")
	v.SetDefault("cache.ttl", 10*time.Minute)

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)

	v.SetDefault("database.enabled", true)
	v.SetDefault("database.dsn", "file:polychat.db?cache=shared&mode=rwc&_journal_mode=WAL&_busy_timeout=5000")

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.service_name", "polychat")
}
