// Package config provides configuration loading and validation utilities.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	validator "github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Load reads configuration from YAML files and environment variables, validates it, and returns the resulting Config.
func Load() (*Config, *viper.Viper, error) {
	// missing env files are fine; the environment may already be populated
	_ = godotenv.Load(".env.local", ".env")

	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "development"
	}

	v := viper.New()
	v.SetConfigFile(fmt.Sprintf("./configs/%s.yaml", env))
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, nil, fmt.Errorf("read config: %w", err)
	}

	cfg, err := decode(v)
	if err != nil {
		return nil, nil, err
	}
	cfg.AppEnv = env

	return cfg, v, nil
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.default_language", "en")
	v.SetDefault("app.support_session_ttl", 24*time.Hour)
	v.SetDefault("app.conversation_cache_ttl", time.Hour)
	v.SetDefault("app.idempotency_ttl", 24*time.Hour)
	v.SetDefault("app.shutdown_timeout", 15*time.Second)
	v.SetDefault("app.customer_cache_ttl", 30*time.Minute)
	v.SetDefault("app.order_lock_ttl", 10*time.Second)
	v.SetDefault("app.notification_timeout", 10*time.Second)
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.sslmode", "disable")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("rabbitmq.port", 5672)
	v.SetDefault("rabbitmq.event_exchange", "orders_topic")
	v.SetDefault("rabbitmq.command_queue", "orders.commands")
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "json")
	v.SetDefault("logger.max_size_mb", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age_days", 14)
	v.SetDefault("sentry.sample_rate", 1.0)
	v.SetDefault("locales.dir", "locales")
	v.SetDefault("media.root", "uploads")
	v.SetDefault("jobs.concurrency", 10)
	v.SetDefault("jobs.reminder_cron", "0 */6 * * *")
	v.SetDefault("jobs.reminder_min_age", 12*time.Hour)
	v.SetDefault("ratelimit.enabled", true)
	v.SetDefault("ratelimit.limit", 20)
	v.SetDefault("ratelimit.window", time.Minute)
}
