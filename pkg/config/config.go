package config

import (
	"fmt"
	"net/url"
	"time"
)

// Config holds runtime configuration for the shop bot.
type Config struct {
	AppEnv    string          `mapstructure:"app_env"`
	App       AppConfig       `mapstructure:"app"`
	Postgres  PostgresConfig  `mapstructure:"postgres" validate:"required"`
	Redis     RedisConfig     `mapstructure:"redis" validate:"required"`
	RabbitMQ  RabbitMQConfig  `mapstructure:"rabbitmq"`
	Bots      []BotConfig     `mapstructure:"bots" validate:"required,min=1,dive"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Logger    LoggerConfig    `mapstructure:"logger"`
	Sentry    SentryConfig    `mapstructure:"sentry"`
	Locales   LocalesConfig   `mapstructure:"locales"`
	Media     MediaConfig     `mapstructure:"media"`
	Jobs      JobsConfig      `mapstructure:"jobs"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
}

// AppConfig holds conversation-level settings.
type AppConfig struct {
	DefaultLanguage     string        `mapstructure:"default_language" validate:"omitempty,oneof=en si ta"`
	SupportSessionTTL   time.Duration `mapstructure:"support_session_ttl"`
	ConversationTTL     time.Duration `mapstructure:"conversation_cache_ttl"`
	IdempotencyTTL      time.Duration `mapstructure:"idempotency_ttl"`
	ShutdownTimeout     time.Duration `mapstructure:"shutdown_timeout"`
	MigrationsDir       string        `mapstructure:"migrations_dir"`
	CustomerCacheTTL    time.Duration `mapstructure:"customer_cache_ttl"`
	OrderLockTTL        time.Duration `mapstructure:"order_lock_ttl"`
	NotificationTimeout time.Duration `mapstructure:"notification_timeout"`
}

// PostgresConfig describes the database connection.
type PostgresConfig struct {
	Host     string `mapstructure:"host" validate:"required"`
	Port     int    `mapstructure:"port" validate:"required"`
	User     string `mapstructure:"user" validate:"required"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name" validate:"required"`
	SSLMode  string `mapstructure:"sslmode"`
	MaxConns int32  `mapstructure:"max_conns"`
}

// RedisConfig describes the Redis connection.
type RedisConfig struct {
	Addr     string `mapstructure:"addr" validate:"required"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

// RabbitMQConfig describes the broker used for order events and back-office commands.
type RabbitMQConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	Host          string `mapstructure:"host" validate:"required_if=Enabled true"`
	Port          int    `mapstructure:"port"`
	User          string `mapstructure:"user"`
	Password      string `mapstructure:"password"`
	EventExchange string `mapstructure:"event_exchange"`
	CommandQueue  string `mapstructure:"command_queue"`
}

// BotConfig binds one chat account to one business.
type BotConfig struct {
	BusinessID  int64         `mapstructure:"business_id" validate:"required,gt=0"`
	Token       string        `mapstructure:"token" validate:"required"`
	PollTimeout time.Duration `mapstructure:"poll_timeout"`
	// UpdateTimeout bounds the handling of one update.
	UpdateTimeout time.Duration `mapstructure:"update_timeout"`
}

// HTTPConfig describes the ops server.
type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
}

// LoggerConfig describes log output.
type LoggerConfig struct {
	Level      string `mapstructure:"level" validate:"omitempty,oneof=debug info warn error"`
	Format     string `mapstructure:"format" validate:"omitempty,oneof=json text"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// SentryConfig describes error reporting.
type SentryConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	DSN         string  `mapstructure:"dsn" validate:"required_if=Enabled true"`
	Environment string  `mapstructure:"environment"`
	SampleRate  float64 `mapstructure:"sample_rate"`
}

// LocalesConfig describes the bundled message templates.
type LocalesConfig struct {
	Dir   string `mapstructure:"dir"`
	Watch bool   `mapstructure:"watch"`
}

// MediaConfig describes where receipts are stored.
type MediaConfig struct {
	Root    string `mapstructure:"root"`
	BaseURL string `mapstructure:"base_url"`
}

// JobsConfig describes the background job worker.
type JobsConfig struct {
	Concurrency    int           `mapstructure:"concurrency"`
	ReminderCron   string        `mapstructure:"reminder_cron"`
	ReminderMinAge time.Duration `mapstructure:"reminder_min_age"`
}

// RateLimitConfig describes per-customer inbound limits.
type RateLimitConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Limit   int           `mapstructure:"limit"`
	Window  time.Duration `mapstructure:"window"`
	// Exempt lists conversation addresses that are never limited.
	Exempt []string `mapstructure:"exempt"`
}

// PostgresDSN returns the key=value DSN used by lib/pq.
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Postgres.Host,
		c.Postgres.Port,
		c.Postgres.User,
		c.Postgres.Password,
		c.Postgres.Name,
		c.sslMode(),
	)
}

// PostgresURL returns the URL form used by pgx.
func (c *Config) PostgresURL() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.Postgres.User, c.Postgres.Password),
		Host:     fmt.Sprintf("%s:%d", c.Postgres.Host, c.Postgres.Port),
		Path:     c.Postgres.Name,
		RawQuery: "sslmode=" + c.sslMode(),
	}
	if c.Postgres.MaxConns > 0 {
		u.RawQuery += fmt.Sprintf("&pool_max_conns=%d", c.Postgres.MaxConns)
	}
	return u.String()
}

// RabbitMQURL returns the AMQP connection URL.
func (c *Config) RabbitMQURL() string {
	u := url.URL{
		Scheme: "amqp",
		User:   url.UserPassword(c.RabbitMQ.User, c.RabbitMQ.Password),
		Host:   fmt.Sprintf("%s:%d", c.RabbitMQ.Host, c.RabbitMQ.Port),
		Path:   "/",
	}
	return u.String()
}

func (c *Config) sslMode() string {
	if c.Postgres.SSLMode == "" {
		return "disable"
	}
	return c.Postgres.SSLMode
}
