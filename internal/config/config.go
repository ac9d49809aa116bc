// Package config loads and validates the service configuration using Viper.
//
// Configuration is layered: built-in defaults < YAML config file < environment
// variables. Environment variables use the TNT_ prefix (e.g., TNT_DATABASE_HOST
// overrides database.host in the YAML), so the same binary runs with a
// config.yaml locally and with pure environment variables in containers.
//
// The session signing secret is read separately from TNT_SESSION_SECRET by the
// auth package and never appears in this struct.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Session verification modes
const (
	SessionModeNone = "none"
	SessionModeHTTP = "http"
	SessionModeJWT  = "jwt"
	SessionModeOIDC = "oidc"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Auth          AuthConfig          `mapstructure:"auth"`
	Invitations   InvitationsConfig   `mapstructure:"invitations"`
	Security      SecurityConfig      `mapstructure:"security"`
	Redis         RedisConfig         `mapstructure:"redis"`
	Logging       LoggingConfig       `mapstructure:"logging"`
	Telemetry     TelemetryConfig     `mapstructure:"telemetry"`
	Audit         AuditConfig         `mapstructure:"audit"`
	Notifications NotificationsConfig `mapstructure:"notifications"`
	Jobs          JobsConfig          `mapstructure:"jobs"`
	Billing       BillingConfig       `mapstructure:"billing"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	BaseURL         string        `mapstructure:"base_url"`
	PublicURL       string        `mapstructure:"public_url"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// GetPublicURL returns the URL used in outbound links such as invitation emails.
// When server.public_url is set it is returned as-is; otherwise it falls back to server.base_url.
func (s *ServerConfig) GetPublicURL() string {
	if s.PublicURL != "" {
		return s.PublicURL
	}
	return s.BaseURL
}

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	Host               string `mapstructure:"host"`
	Port               int    `mapstructure:"port"`
	Name               string `mapstructure:"name"`
	User               string `mapstructure:"user"`
	Password           string `mapstructure:"password"`
	SSLMode            string `mapstructure:"ssl_mode"`
	MaxConnections     int    `mapstructure:"max_connections"`
	MinIdleConnections int    `mapstructure:"min_idle_connections"`
}

// AuthConfig holds principal resolution configuration
type AuthConfig struct {
	Session SessionConfig `mapstructure:"session"`
	Tokens  TokensConfig  `mapstructure:"tokens"`
	// TrustedHeaderFallback accepts X-User-Id (or "Bearer <userId>") as the caller
	// identity when no session verifier is configured. Development only.
	TrustedHeaderFallback bool `mapstructure:"trusted_header_fallback"`
}

// SessionConfig selects and configures the session verifier
type SessionConfig struct {
	// Mode is one of none, http, jwt, oidc
	Mode    string        `mapstructure:"mode"`
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
	// CacheTTL caches positive verification results; 0 disables the cache
	CacheTTL  time.Duration `mapstructure:"cache_ttl"`
	CacheSize int           `mapstructure:"cache_size"`
	OIDC      OIDCConfig    `mapstructure:"oidc"`
}

// OIDCConfig holds the ID token verifier configuration
type OIDCConfig struct {
	IssuerURL string `mapstructure:"issuer_url"`
	ClientID  string `mapstructure:"client_id"`
}

// TokensConfig holds API token issuance configuration
type TokensConfig struct {
	Prefix         string `mapstructure:"prefix"`
	DefaultTTLDays int    `mapstructure:"default_ttl_days"`
}

// InvitationsConfig holds invitation lifecycle configuration
type InvitationsConfig struct {
	TTLHours int `mapstructure:"ttl_hours"`
	// RetentionDays is how long expired, never-accepted invitations are kept
	RetentionDays int `mapstructure:"retention_days"`
}

// TTL returns the invitation lifetime
func (c *InvitationsConfig) TTL() time.Duration {
	return time.Duration(c.TTLHours) * time.Hour
}

// SecurityConfig holds security-related configuration
type SecurityConfig struct {
	CORS         CORSConfig         `mapstructure:"cors"`
	RateLimiting RateLimitingConfig `mapstructure:"rate_limiting"`
	TLS          TLSConfig          `mapstructure:"tls"`
}

// CORSConfig holds CORS configuration
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	AllowedMethods []string `mapstructure:"allowed_methods"`
}

// RateLimitingConfig holds rate limiting configuration
type RateLimitingConfig struct {
	Enabled           bool `mapstructure:"enabled"`
	RequestsPerMinute int  `mapstructure:"requests_per_minute"`
	Burst             int  `mapstructure:"burst"`
	// SensitiveRequestsPerMinute applies to invitation accept, token issue and contact
	SensitiveRequestsPerMinute int `mapstructure:"sensitive_requests_per_minute"`
	// Backend is "memory" or "redis"
	Backend string `mapstructure:"backend"`
}

// TLSConfig holds TLS/HTTPS configuration
type TLSConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	CertFile string `mapstructure:"cert_file"`
	KeyFile  string `mapstructure:"key_file"`
}

// RedisConfig holds the optional Redis connection used by the distributed rate limiter
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// TelemetryConfig holds observability configuration
type TelemetryConfig struct {
	ServiceName string        `mapstructure:"service_name"`
	Metrics     MetricsConfig `mapstructure:"metrics"`
}

// MetricsConfig holds Prometheus metrics configuration
type MetricsConfig struct {
	Enabled        bool `mapstructure:"enabled"`
	PrometheusPort int  `mapstructure:"prometheus_port"`
}

// AuditConfig holds activity shipping configuration
type AuditConfig struct {
	// Shippers configures external log shipping of activity entries
	Shippers []AuditShipperConfig `mapstructure:"shippers"`
}

// AuditShipperConfig holds configuration for a single audit shipper
type AuditShipperConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// Type is the shipper type (webhook, file, s3)
	Type    string              `mapstructure:"type"`
	Webhook *AuditWebhookConfig `mapstructure:"webhook"`
	File    *AuditFileConfig    `mapstructure:"file"`
	S3      *AuditS3Config      `mapstructure:"s3"`
}

// AuditWebhookConfig holds webhook shipper configuration
type AuditWebhookConfig struct {
	URL         string            `mapstructure:"url"`
	Headers     map[string]string `mapstructure:"headers"`
	TimeoutSecs int               `mapstructure:"timeout_secs"`
}

// AuditFileConfig holds file shipper configuration
type AuditFileConfig struct {
	Path string `mapstructure:"path"`
}

// AuditS3Config holds S3 archive shipper configuration. Each entry becomes one
// JSON object under Prefix/yyyy/mm/dd/.
type AuditS3Config struct {
	Bucket string `mapstructure:"bucket"`
	Region string `mapstructure:"region"`
	Prefix string `mapstructure:"prefix"`
	// Endpoint is optional, for MinIO and other S3-compatible stores
	Endpoint     string `mapstructure:"endpoint"`
	UsePathStyle bool   `mapstructure:"use_path_style"`
	// Static credentials; empty uses the AWS default credential chain
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
}

// NotificationsConfig holds settings for outbound notification emails
type NotificationsConfig struct {
	// Enabled globally toggles all outbound notification emails. Requires SMTP to be configured.
	Enabled bool       `mapstructure:"enabled"`
	SMTP    SMTPConfig `mapstructure:"smtp"`
	// TokenExpiryWarningDays is how many days before expiry the warning email is sent (default 7)
	TokenExpiryWarningDays int `mapstructure:"token_expiry_warning_days"`
}

// SMTPConfig holds outbound mail server configuration for notification emails
type SMTPConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
	// UseTLS enables STARTTLS (port 587) or implicit TLS (port 465); false = plain SMTP
	UseTLS bool `mapstructure:"use_tls"`
}

// JobsConfig holds cron schedules for background jobs
type JobsConfig struct {
	Enabled                 bool   `mapstructure:"enabled"`
	InvitationPurgeSchedule string `mapstructure:"invitation_purge_schedule"`
	TokenExpirySchedule     string `mapstructure:"token_expiry_schedule"`
}

// BillingConfig holds the placeholder billing provider settings
type BillingConfig struct {
	DefaultCheckoutPlan string `mapstructure:"default_checkout_plan"`
}

// bindEnvVars explicitly binds environment variables to config keys.
// This is necessary because AutomaticEnv() doesn't work well with nested structs during Unmarshal.
func bindEnvVars(v *viper.Viper) error {
	keys := []string{
		// Database
		"database.host",
		"database.port",
		"database.name",
		"database.user",
		"database.password",
		"database.ssl_mode",
		"database.max_connections",
		"database.min_idle_connections",

		// Server
		"server.host",
		"server.port",
		"server.base_url",
		"server.public_url",
		"server.read_timeout",
		"server.write_timeout",
		"server.shutdown_timeout",

		// Auth
		"auth.session.mode",
		"auth.session.url",
		"auth.session.timeout",
		"auth.session.cache_ttl",
		"auth.session.cache_size",
		"auth.session.oidc.issuer_url",
		"auth.session.oidc.client_id",
		"auth.tokens.prefix",
		"auth.tokens.default_ttl_days",
		"auth.trusted_header_fallback",

		// Invitations
		"invitations.ttl_hours",
		"invitations.retention_days",

		// Security
		"security.cors.allowed_origins",
		"security.cors.allowed_methods",
		"security.rate_limiting.enabled",
		"security.rate_limiting.requests_per_minute",
		"security.rate_limiting.burst",
		"security.rate_limiting.sensitive_requests_per_minute",
		"security.rate_limiting.backend",
		"security.tls.enabled",
		"security.tls.cert_file",
		"security.tls.key_file",

		// Redis
		"redis.addr",
		"redis.password",
		"redis.db",

		// Logging
		"logging.level",
		"logging.format",

		// Telemetry
		"telemetry.service_name",
		"telemetry.metrics.enabled",
		"telemetry.metrics.prometheus_port",

		// Notifications / SMTP
		"notifications.enabled",
		"notifications.smtp.host",
		"notifications.smtp.port",
		"notifications.smtp.username",
		"notifications.smtp.password",
		"notifications.smtp.from",
		"notifications.smtp.use_tls",
		"notifications.token_expiry_warning_days",

		// Jobs
		"jobs.enabled",
		"jobs.invitation_purge_schedule",
		"jobs.token_expiry_schedule",

		// Billing
		"billing.default_checkout_plan",
	}
	for _, key := range keys {
		if err := v.BindEnv(key); err != nil {
			return fmt.Errorf("failed to bind env var %q: %w", key, err)
		}
	}
	return nil
}

// newViper builds a viper instance with defaults, file lookup and env binding.
func newViper(configPath string) (*viper.Viper, error) {
	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/tenantry")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found; use defaults and environment variables
	}

	v.SetEnvPrefix("TNT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := bindEnvVars(v); err != nil {
		return nil, err
	}
	return v, nil
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Expand environment variables in sensitive fields
	cfg.Database.Password = expandEnv(cfg.Database.Password)
	cfg.Redis.Password = expandEnv(cfg.Redis.Password)
	cfg.Notifications.SMTP.Password = expandEnv(cfg.Notifications.SMTP.Password)
	for i := range cfg.Audit.Shippers {
		if s3 := cfg.Audit.Shippers[i].S3; s3 != nil {
			s3.AccessKeyID = expandEnv(s3.AccessKeyID)
			s3.SecretAccessKey = expandEnv(s3.SecretAccessKey)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	v, err := newViper(configPath)
	if err != nil {
		return nil, err
	}
	return decode(v)
}

// Watch re-reads the config file whenever it changes and passes the reloaded
// configuration to onChange. Invalid edits are reported to onError and the
// previous configuration stays in effect. Returns false when there is no
// config file to watch.
func Watch(configPath string, onChange func(*Config), onError func(error)) (bool, error) {
	v, err := newViper(configPath)
	if err != nil {
		return false, err
	}
	if v.ConfigFileUsed() == "" {
		return false, nil
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		cfg, err := decode(v)
		if err != nil {
			if onError != nil {
				onError(err)
			}
			return
		}
		onChange(cfg)
	})
	v.WatchConfig()
	return true, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.base_url", "http://localhost:8080")
	v.SetDefault("server.public_url", "")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.shutdown_timeout", "30s")

	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "tenantry")
	v.SetDefault("database.user", "tenantry")
	v.SetDefault("database.ssl_mode", "require")
	v.SetDefault("database.max_connections", 25)
	v.SetDefault("database.min_idle_connections", 5)

	// Auth defaults
	v.SetDefault("auth.session.mode", SessionModeNone)
	v.SetDefault("auth.session.timeout", "5s")
	v.SetDefault("auth.session.cache_ttl", "0s")
	v.SetDefault("auth.session.cache_size", 1024)
	v.SetDefault("auth.tokens.prefix", "tnt")
	v.SetDefault("auth.tokens.default_ttl_days", 365)
	v.SetDefault("auth.trusted_header_fallback", false)

	// Invitation defaults
	v.SetDefault("invitations.ttl_hours", 7*24)
	v.SetDefault("invitations.retention_days", 30)

	// Security defaults
	v.SetDefault("security.cors.allowed_origins", []string{"*"})
	v.SetDefault("security.cors.allowed_methods", []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"})
	v.SetDefault("security.rate_limiting.enabled", true)
	v.SetDefault("security.rate_limiting.requests_per_minute", 120)
	v.SetDefault("security.rate_limiting.burst", 20)
	v.SetDefault("security.rate_limiting.sensitive_requests_per_minute", 10)
	v.SetDefault("security.rate_limiting.backend", "memory")
	v.SetDefault("security.tls.enabled", false)

	// Redis defaults
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.db", 0)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	// Telemetry defaults
	v.SetDefault("telemetry.service_name", "tenantry")
	v.SetDefault("telemetry.metrics.enabled", true)
	v.SetDefault("telemetry.metrics.prometheus_port", 9090)

	// Notifications defaults
	v.SetDefault("notifications.enabled", false)
	v.SetDefault("notifications.smtp.port", 587)
	v.SetDefault("notifications.smtp.use_tls", true)
	v.SetDefault("notifications.token_expiry_warning_days", 7)

	// Jobs defaults
	v.SetDefault("jobs.enabled", true)
	v.SetDefault("jobs.invitation_purge_schedule", "@every 6h")
	v.SetDefault("jobs.token_expiry_schedule", "@daily")

	// Billing defaults
	v.SetDefault("billing.default_checkout_plan", "pro")
}

// expandEnv expands environment variables in the format ${VAR_NAME}
func expandEnv(s string) string {
	return os.ExpandEnv(s)
}

// Validate validates the configuration
func (c *Config) Validate() error {
	// Validate server
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.BaseURL == "" {
		return fmt.Errorf("server.base_url is required")
	}

	// Validate database
	if c.Database.Host == "" {
		return fmt.Errorf("database.host is required")
	}
	if c.Database.Name == "" {
		return fmt.Errorf("database.name is required")
	}
	if c.Database.User == "" {
		return fmt.Errorf("database.user is required")
	}

	// Validate session verifier
	switch c.Auth.Session.Mode {
	case "", SessionModeNone, SessionModeJWT:
	case SessionModeHTTP:
		if c.Auth.Session.URL == "" {
			return fmt.Errorf("auth.session.url is required when session mode is http")
		}
	case SessionModeOIDC:
		if c.Auth.Session.OIDC.IssuerURL == "" {
			return fmt.Errorf("auth.session.oidc.issuer_url is required when session mode is oidc")
		}
		if c.Auth.Session.OIDC.ClientID == "" {
			return fmt.Errorf("auth.session.oidc.client_id is required when session mode is oidc")
		}
	default:
		return fmt.Errorf("invalid auth.session.mode: %s (must be none, http, jwt, or oidc)", c.Auth.Session.Mode)
	}
	if c.Auth.Tokens.DefaultTTLDays < 1 {
		return fmt.Errorf("auth.tokens.default_ttl_days must be positive")
	}

	if c.Invitations.TTLHours < 1 {
		return fmt.Errorf("invitations.ttl_hours must be positive")
	}

	// Validate rate limiter backend
	switch c.Security.RateLimiting.Backend {
	case "", "memory":
	case "redis":
		if c.Redis.Addr == "" {
			return fmt.Errorf("redis.addr is required when the rate limiting backend is redis")
		}
	default:
		return fmt.Errorf("invalid rate limiting backend: %s (must be memory or redis)", c.Security.RateLimiting.Backend)
	}

	// Validate TLS if enabled
	if c.Security.TLS.Enabled {
		if c.Security.TLS.CertFile == "" {
			return fmt.Errorf("security.tls.cert_file is required when TLS is enabled")
		}
		if c.Security.TLS.KeyFile == "" {
			return fmt.Errorf("security.tls.key_file is required when TLS is enabled")
		}
	}

	// Validate audit shippers
	for i, s := range c.Audit.Shippers {
		if !s.Enabled {
			continue
		}
		switch s.Type {
		case "webhook":
			if s.Webhook == nil || s.Webhook.URL == "" {
				return fmt.Errorf("audit.shippers[%d].webhook.url is required", i)
			}
		case "file":
			if s.File == nil || s.File.Path == "" {
				return fmt.Errorf("audit.shippers[%d].file.path is required", i)
			}
		case "s3":
			if s.S3 == nil || s.S3.Bucket == "" {
				return fmt.Errorf("audit.shippers[%d].s3.bucket is required", i)
			}
		default:
			return fmt.Errorf("invalid audit shipper type: %s (must be webhook, file, or s3)", s.Type)
		}
	}

	// Validate logging level
	if !ValidLogLevel(c.Logging.Level) {
		return fmt.Errorf("invalid logging level: %s (must be debug, info, warn, or error)", c.Logging.Level)
	}

	return nil
}

// ValidLogLevel reports whether level is one of debug, info, warn, error
func ValidLogLevel(level string) bool {
	switch level {
	case "debug", "info", "warn", "error":
		return true
	}
	return false
}

// GetDSN returns the PostgreSQL connection string
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// GetAddress returns the server address in host:port format
func (c *ServerConfig) GetAddress() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
