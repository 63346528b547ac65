package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	SMTP     SMTPConfig     `mapstructure:"smtp"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Security SecurityConfig `mapstructure:"security"`
	Audit    AuditConfig    `mapstructure:"audit"`
}

type ServerConfig struct {
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	// ApexDomain is the bare domain; tenant subdomains hang off it.
	ApexDomain string `mapstructure:"apex_domain"`
	// APIPrefix is the protected route prefix; tenant context is
	// mandatory underneath it.
	APIPrefix string `mapstructure:"api_prefix"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password" envconfig:"DB_PASSWORD"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode"`
}

type RedisConfig struct {
	URL          string        `mapstructure:"url" envconfig:"REDIS_URL"`
	MaxRetries   int           `mapstructure:"max_retries"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
}

type SMTPConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password" envconfig:"SMTP_PASSWORD"`
	From     string `mapstructure:"from"`
}

type AuthConfig struct {
	// RateLimitWindow is the volatile sliding lockout window.
	RateLimitWindow    time.Duration `mapstructure:"rate_limit_window"`
	RateLimitThreshold int           `mapstructure:"rate_limit_threshold"`
	AttemptHistoryCap  int           `mapstructure:"attempt_history_cap"`
	// AccountLockoutDuration arms the durable locked_until column once
	// the durable failure counter reaches the threshold.
	AccountLockoutDuration  time.Duration `mapstructure:"account_lockout_duration"`
	AccountLockoutThreshold int           `mapstructure:"account_lockout_threshold"`
	SessionTimeout          time.Duration `mapstructure:"session_timeout"`
	SessionCookieName       string        `mapstructure:"session_cookie_name"`
	BcryptCost              int           `mapstructure:"bcrypt_cost"`
	ResetTokenSecret        string        `mapstructure:"reset_token_secret" envconfig:"RESET_TOKEN_SECRET"`
	ResetTokenExpiry        time.Duration `mapstructure:"reset_token_expiry"`
}

type SecurityConfig struct {
	AllowedOrigins    []string `mapstructure:"allowed_origins"`
	RequestsPerSecond float64  `mapstructure:"requests_per_second"`
	Burst             int      `mapstructure:"burst"`
}

type AuditConfig struct {
	Retention       time.Duration `mapstructure:"retention"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
	// Channel is the redis channel security events fan out on.
	Channel string `mapstructure:"channel"`
}

func LoadConfig() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/app/config")

	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Secrets come from the environment, never the config file.
	if err := envconfig.Process("", &config.Database); err != nil {
		return nil, fmt.Errorf("failed to process database env: %w", err)
	}
	if err := envconfig.Process("", &config.SMTP); err != nil {
		return nil, fmt.Errorf("failed to process smtp env: %w", err)
	}
	if err := envconfig.Process("", &config.Auth); err != nil {
		return nil, fmt.Errorf("failed to process auth env: %w", err)
	}

	applyDefaults(&config)
	return &config, nil
}

func applyDefaults(c *Config) {
	if c.Server.APIPrefix == "" {
		c.Server.APIPrefix = "/api/v1"
	}
	if c.Auth.RateLimitWindow <= 0 {
		c.Auth.RateLimitWindow = 30 * time.Minute
	}
	if c.Auth.RateLimitThreshold <= 0 {
		c.Auth.RateLimitThreshold = 5
	}
	if c.Auth.AttemptHistoryCap <= 0 {
		c.Auth.AttemptHistoryCap = 20
	}
	if c.Auth.AccountLockoutDuration <= 0 {
		c.Auth.AccountLockoutDuration = 30 * time.Minute
	}
	if c.Auth.AccountLockoutThreshold <= 0 {
		c.Auth.AccountLockoutThreshold = 5
	}
	if c.Auth.SessionTimeout <= 0 {
		c.Auth.SessionTimeout = 30 * time.Minute
	}
	if c.Auth.SessionCookieName == "" {
		c.Auth.SessionCookieName = "clinic_session"
	}
	if c.Auth.BcryptCost <= 0 {
		c.Auth.BcryptCost = 12
	}
	if c.Auth.ResetTokenExpiry <= 0 {
		c.Auth.ResetTokenExpiry = time.Hour
	}
	if c.Audit.Retention <= 0 {
		c.Audit.Retention = 365 * 24 * time.Hour
	}
	if c.Audit.CleanupInterval <= 0 {
		c.Audit.CleanupInterval = 24 * time.Hour
	}
	if c.Audit.Channel == "" {
		c.Audit.Channel = "audit.security"
	}
}
