// Package config provides configuration management for the realtime service.
//
// Configuration is loaded from:
// 1. config.yaml file (optional)
// 2. Environment variables (standard names like DATABASE_URL, SERVER_PORT)
// 3. Default values
package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Database drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config is the root configuration structure.
type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Database     DatabaseConfig     `mapstructure:"database"`
	Log          LogConfig          `mapstructure:"log"`
	River        RiverConfig        `mapstructure:"river"`
	Security     SecurityConfig     `mapstructure:"security"`
	Realtime     RealtimeConfig     `mapstructure:"realtime"`
	Notification NotificationConfig `mapstructure:"notification"`
	Worker       WorkerConfig       `mapstructure:"worker"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port             int           `mapstructure:"port"`
	ReadTimeout      time.Duration `mapstructure:"read_timeout"`
	WriteTimeout     time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout  time.Duration `mapstructure:"shutdown_timeout"`
	AllowedOrigins   []string      `mapstructure:"allowed_origins"`
	AllowCredentials bool          `mapstructure:"allow_credentials"`
}

// DefaultAllowedOrigins are the browser origins allowed when none are configured.
var DefaultAllowedOrigins = []string{
	"http://localhost:3000",
	"http://localhost:5173",
}

// EffectiveOrigins returns the configured origins, or DefaultAllowedOrigins
// when none are set. CORS and the websocket origin check share this list.
func (c ServerConfig) EffectiveOrigins() []string {
	if len(c.AllowedOrigins) == 0 {
		return slices.Clone(DefaultAllowedOrigins)
	}
	return slices.Clone(c.AllowedOrigins)
}

// DatabaseConfig selects and configures the notification store backend.
type DatabaseConfig struct {
	Driver string `mapstructure:"driver"`

	URL      string `mapstructure:"url"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	SSLMode  string `mapstructure:"sslmode"`

	SQLitePath string `mapstructure:"sqlite_path"`

	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`

	AutoMigrate bool `mapstructure:"auto_migrate"`
}

// DSN returns the PostgreSQL connection string.
// Priority: DATABASE_URL > constructed from individual fields.
func (c DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	sslmode := c.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, sslmode,
	)
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json or console
}

// RiverConfig contains River Queue settings.
type RiverConfig struct {
	MaxWorkers                  int           `mapstructure:"max_workers"`
	CompletedJobRetentionPeriod time.Duration `mapstructure:"completed_job_retention_period"`
}

// SecurityConfig holds the token signing secrets.
// Handshakes verify against AccessSecret first and fall back to RefreshSecret.
type SecurityConfig struct {
	AccessSecret  string        `mapstructure:"access_secret"`
	RefreshSecret string        `mapstructure:"refresh_secret"`
	Issuer        string        `mapstructure:"issuer"`
	TokenLifetime time.Duration `mapstructure:"token_lifetime"`
}

// RealtimeConfig tunes the delivery core and websocket transport.
type RealtimeConfig struct {
	QueueCapacity     int           `mapstructure:"queue_capacity"`
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval"`
	PingInterval      time.Duration `mapstructure:"ping_interval"`
	PongTimeout       time.Duration `mapstructure:"pong_timeout"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout"`
	SendBuffer        int           `mapstructure:"send_buffer"`
	MaxMessageSize    int64         `mapstructure:"max_message_size"`
	AllowQueryToken   bool          `mapstructure:"allow_query_token"`
}

// NotificationConfig contains notification retention settings.
type NotificationConfig struct {
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
}

// WorkerConfig contains worker pool settings.
type WorkerConfig struct {
	GeneralPoolSize int `mapstructure:"general_pool_size"`
	ConnPoolSize    int `mapstructure:"conn_pool_size"`
}

var (
	bootstrapLoggerOnce sync.Once
	bootstrapLogger     *zap.Logger
)

// Load reads configuration from file and environment variables.
// Nested keys map to env vars without prefix: realtime.queue_capacity → REALTIME_QUEUE_CAPACITY.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/collabhub-realtime")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.ensureSecrets(); err != nil {
		return nil, fmt.Errorf("ensure secrets: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// Validate checks for critical configuration errors.
func (c *Config) Validate() error {
	if len(c.Security.AccessSecret) < 32 {
		return fmt.Errorf("security.access_secret must be at least 32 characters")
	}
	if len(c.Security.RefreshSecret) < 32 {
		return fmt.Errorf("security.refresh_secret must be at least 32 characters")
	}
	switch c.Database.Driver {
	case DriverPostgres, DriverSQLite:
	default:
		return fmt.Errorf("database.driver %q is not supported (want %s or %s)",
			c.Database.Driver, DriverPostgres, DriverSQLite)
	}
	if c.Realtime.QueueCapacity <= 0 {
		return fmt.Errorf("realtime.queue_capacity must be positive")
	}
	if c.Realtime.HeartbeatInterval <= 0 {
		return fmt.Errorf("realtime.heartbeat_interval must be positive")
	}
	if c.Realtime.PingInterval >= c.Realtime.PongTimeout {
		return fmt.Errorf("realtime.ping_interval must be shorter than realtime.pong_timeout")
	}
	return nil
}

// ensureSecrets auto-generates missing signing secrets. Tokens minted with a
// generated secret do not survive a restart.
func (c *Config) ensureSecrets() error {
	if c.Security.AccessSecret == "" {
		secret, err := generateSecureRandomHex(32)
		if err != nil {
			return fmt.Errorf("auto-generate access secret: %w", err)
		}
		c.Security.AccessSecret = secret
		logBootstrapWarn(
			"auto-generated access_secret; set SECURITY_ACCESS_SECRET env var for persistence",
			zap.Int("length", len(secret)),
		)
	}
	if c.Security.RefreshSecret == "" {
		secret, err := generateSecureRandomHex(32)
		if err != nil {
			return fmt.Errorf("auto-generate refresh secret: %w", err)
		}
		c.Security.RefreshSecret = secret
		logBootstrapWarn(
			"auto-generated refresh_secret; set SECURITY_REFRESH_SECRET env var for persistence",
			zap.Int("length", len(secret)),
		)
	}
	return nil
}

func logBootstrapWarn(msg string, fields ...zap.Field) {
	bootstrapLoggerOnce.Do(func() {
		cfg := zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)

		l, err := cfg.Build()
		if err != nil {
			bootstrapLogger = zap.NewNop()
			return
		}
		bootstrapLogger = l
	})

	bootstrapLogger.Warn(msg, fields...)
}

func generateSecureRandomHex(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("crypto/rand: %w", err)
	}
	return hex.EncodeToString(b), nil
}

func setDefaults(v *viper.Viper) {
	// Server
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("server.allowed_origins", []string{})
	v.SetDefault("server.allow_credentials", true)

	// Database
	v.SetDefault("database.driver", DriverPostgres)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "collabhub")
	v.SetDefault("database.password", "")
	v.SetDefault("database.database", "collabhub")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.sqlite_path", "collabhub.db")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("database.max_conn_lifetime", "1h")
	v.SetDefault("database.max_conn_idle_time", "10m")
	v.SetDefault("database.auto_migrate", false)

	// Log
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// River
	v.SetDefault("river.max_workers", 5)
	v.SetDefault("river.completed_job_retention_period", "24h")

	// Security
	v.SetDefault("security.access_secret", "")
	v.SetDefault("security.refresh_secret", "")
	v.SetDefault("security.issuer", "collabhub")
	v.SetDefault("security.token_lifetime", "24h")

	// Realtime
	v.SetDefault("realtime.queue_capacity", 20)
	v.SetDefault("realtime.heartbeat_interval", "30s")
	v.SetDefault("realtime.ping_interval", "25s")
	v.SetDefault("realtime.pong_timeout", "60s")
	v.SetDefault("realtime.write_timeout", "10s")
	v.SetDefault("realtime.send_buffer", 256)
	v.SetDefault("realtime.max_message_size", 65536)
	v.SetDefault("realtime.allow_query_token", true)

	// Notification
	v.SetDefault("notification.cleanup_interval", "1h")

	// Worker pools
	v.SetDefault("worker.general_pool_size", 100)
	v.SetDefault("worker.conn_pool_size", 10000)
}
