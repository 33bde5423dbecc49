package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type DatabaseConfig struct {
	Driver        string `mapstructure:"driver"`
	DSN           string `mapstructure:"dsn"`
	MigrationsURL string `mapstructure:"migrations_url"`
}

type ServerConfig struct {
	Port           string   `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
}

type LifecycleConfig struct {
	Interval            time.Duration `mapstructure:"interval"`
	TargetSize          int           `mapstructure:"target_size"`
	EarlyLockWindow     time.Duration `mapstructure:"early_lock_window"`
	Workers             int           `mapstructure:"workers"`
	AutoGenerateBracket bool          `mapstructure:"auto_generate_bracket"`
	SeedingMethod       string        `mapstructure:"seeding_method"`
}

type NATSConfig struct {
	URL           string `mapstructure:"url"`
	SubjectPrefix string `mapstructure:"subject_prefix"`
}

type Config struct {
	Database  DatabaseConfig  `mapstructure:"database"`
	Server    ServerConfig    `mapstructure:"server"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Lifecycle LifecycleConfig `mapstructure:"lifecycle"`
	NATS      NATSConfig      `mapstructure:"nats"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("database.driver", "sqlite3")
	v.SetDefault("database.dsn", "./cueclub.db")
	v.SetDefault("database.migrations_url", "file://migrations")
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:5173"})
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("lifecycle.interval", 5*time.Minute)
	v.SetDefault("lifecycle.target_size", 16)
	v.SetDefault("lifecycle.early_lock_window", 24*time.Hour)
	v.SetDefault("lifecycle.workers", 4)
	v.SetDefault("lifecycle.auto_generate_bracket", false)
	v.SetDefault("lifecycle.seeding_method", "rating")
	v.SetDefault("nats.url", "")
	v.SetDefault("nats.subject_prefix", "cueclub")
}

// Load reads .env (when present) into the environment, then an optional
// config.yaml from the given paths, then environment overrides such as
// LIFECYCLE_TARGET_SIZE for lifecycle.target_size.
func Load(paths ...string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	for _, p := range paths {
		v.AddConfigPath(p)
	}
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite3", "postgres":
	default:
		return fmt.Errorf("database.driver must be sqlite3 or postgres, got %q", c.Database.Driver)
	}
	if c.Lifecycle.TargetSize < 2 {
		return fmt.Errorf("lifecycle.target_size must be at least 2, got %d", c.Lifecycle.TargetSize)
	}
	if c.Lifecycle.Workers < 1 {
		return fmt.Errorf("lifecycle.workers must be positive, got %d", c.Lifecycle.Workers)
	}
	if c.Lifecycle.Interval <= 0 {
		return fmt.Errorf("lifecycle.interval must be positive, got %s", c.Lifecycle.Interval)
	}
	return nil
}
