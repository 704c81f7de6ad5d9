package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the application configuration
type Config struct {
	Environment        string          `yaml:"environment"`
	ServerPort         int             `yaml:"server_port"`
	LogLevel           string          `yaml:"log_level"`
	Store              string          `yaml:"store"`
	Database           DatabaseConfig  `yaml:"database"`
	RedisURL           string          `yaml:"redis_url"`
	OTLPEndpoint       string          `yaml:"otlp_endpoint"`
	JWTSecret          string          `yaml:"jwt_secret"`
	TokenTTLMinutes    int             `yaml:"token_ttl_minutes"`
	CacheTTLSeconds    int             `yaml:"cache_ttl_seconds"`
	RateLimitPerMinute int             `yaml:"rate_limit_per_minute"`
	OverdueScanMinutes int             `yaml:"overdue_scan_minutes"`
	CORSAllowedOrigins []string        `yaml:"cors_allowed_origins"`
	BootstrapAdmin     BootstrapConfig `yaml:"bootstrap_admin"`
	Flags              map[string]bool `yaml:"flags"`
}

// DatabaseConfig holds Postgres connection settings
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	SSLMode  string `yaml:"sslmode"`

	MaxOpenConns           int  `yaml:"max_open_conns"`
	MaxIdleConns           int  `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int  `yaml:"conn_max_lifetime_minutes"`
	AutoMigrate            bool `yaml:"auto_migrate"`
}

// DSN renders the settings as a postgres:// URL understood by lib/pq
func (d DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   "/" + d.Name,
	}
	if d.Password != "" {
		u.User = url.UserPassword(d.User, d.Password)
	} else if d.User != "" {
		u.User = url.User(d.User)
	}
	if d.SSLMode != "" {
		u.RawQuery = url.Values{"sslmode": {d.SSLMode}}.Encode()
	}
	return u.String()
}

// ConnMaxLifetime returns how long a pooled connection may be reused
func (d DatabaseConfig) ConnMaxLifetime() time.Duration {
	return time.Duration(d.ConnMaxLifetimeMinutes) * time.Minute
}

// BootstrapConfig describes the ADMIN account created on first start
type BootstrapConfig struct {
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
}

// Store backends
const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

// TokenTTL returns the JWT lifetime
func (c *Config) TokenTTL() time.Duration {
	return time.Duration(c.TokenTTLMinutes) * time.Minute
}

// CacheTTL returns the lifetime of cached task views
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSeconds) * time.Second
}

// OverdueScanInterval returns how often the overdue worker runs
func (c *Config) OverdueScanInterval() time.Duration {
	return time.Duration(c.OverdueScanMinutes) * time.Minute
}

func defaults() *Config {
	return &Config{
		Environment: "development",
		ServerPort:  8080,
		LogLevel:    "info",
		Store:       StorePostgres,
		Database: DatabaseConfig{
			Host:    "localhost",
			Port:    5432,
			User:    "teamtasks",
			Name:    "teamtasks",
			SSLMode: "disable",

			MaxOpenConns:           25,
			MaxIdleConns:           5,
			ConnMaxLifetimeMinutes: 5,
			AutoMigrate:            true,
		},
		TokenTTLMinutes:    24 * 60,
		CacheTTLSeconds:    60,
		RateLimitPerMinute: 120,
		OverdueScanMinutes: 15,
		CORSAllowedOrigins: []string{
			"http://localhost:5173",
			"http://localhost:3000",
		},
		BootstrapAdmin: BootstrapConfig{Name: "Administrator"},
	}
}

// Load reads the optional YAML file named by TEAMTASKS_CONFIG, then applies
// environment variable overrides
func Load() (*Config, error) {
	cfg := defaults()

	if path := os.Getenv("TEAMTASKS_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	cfg.Environment = getEnv("ENVIRONMENT", cfg.Environment)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.Store = strings.ToLower(getEnv("STORE", cfg.Store))
	cfg.Database.Host = getEnv("DATABASE_HOST", cfg.Database.Host)
	cfg.Database.User = getEnv("DATABASE_USER", cfg.Database.User)
	cfg.Database.Password = getEnv("DATABASE_PASSWORD", cfg.Database.Password)
	cfg.Database.Name = getEnv("DATABASE_NAME", cfg.Database.Name)
	cfg.Database.SSLMode = getEnv("DATABASE_SSLMODE", cfg.Database.SSLMode)
	if v := os.Getenv("DATABASE_AUTO_MIGRATE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("invalid DATABASE_AUTO_MIGRATE: %w", err)
		}
		cfg.Database.AutoMigrate = b
	}
	cfg.RedisURL = getEnv("REDIS_URL", cfg.RedisURL)
	cfg.OTLPEndpoint = getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", cfg.OTLPEndpoint)
	cfg.JWTSecret = getEnv("JWT_SECRET", cfg.JWTSecret)
	cfg.CORSAllowedOrigins = parseCSVEnv("CORS_ALLOWED_ORIGINS", cfg.CORSAllowedOrigins)
	cfg.BootstrapAdmin.Email = getEnv("BOOTSTRAP_ADMIN_EMAIL", cfg.BootstrapAdmin.Email)
	cfg.BootstrapAdmin.Password = getEnv("BOOTSTRAP_ADMIN_PASSWORD", cfg.BootstrapAdmin.Password)
	cfg.BootstrapAdmin.Name = getEnv("BOOTSTRAP_ADMIN_NAME", cfg.BootstrapAdmin.Name)

	ints := []struct {
		key string
		dst *int
	}{
		{"SERVER_PORT", &cfg.ServerPort},
		{"DATABASE_PORT", &cfg.Database.Port},
		{"DATABASE_MAX_OPEN_CONNS", &cfg.Database.MaxOpenConns},
		{"DATABASE_MAX_IDLE_CONNS", &cfg.Database.MaxIdleConns},
		{"DATABASE_CONN_MAX_LIFETIME_MINUTES", &cfg.Database.ConnMaxLifetimeMinutes},
		{"TOKEN_TTL_MINUTES", &cfg.TokenTTLMinutes},
		{"CACHE_TTL_SECONDS", &cfg.CacheTTLSeconds},
		{"RATE_LIMIT_PER_MINUTE", &cfg.RateLimitPerMinute},
		{"OVERDUE_SCAN_MINUTES", &cfg.OverdueScanMinutes},
	}
	for _, i := range ints {
		if err := getEnvInt(i.key, i.dst); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that would otherwise fail later at start-up
func (c *Config) Validate() error {
	if c.Store != StorePostgres && c.Store != StoreMemory {
		return fmt.Errorf("invalid STORE %q: want %s or %s", c.Store, StorePostgres, StoreMemory)
	}
	if c.ServerPort <= 0 || c.ServerPort > 65535 {
		return fmt.Errorf("invalid SERVER_PORT: %d", c.ServerPort)
	}
	if c.TokenTTLMinutes <= 0 {
		return fmt.Errorf("invalid TOKEN_TTL_MINUTES: %d", c.TokenTTLMinutes)
	}
	if c.Database.MaxOpenConns < 0 || c.Database.MaxIdleConns < 0 {
		return fmt.Errorf("invalid database pool size: open=%d idle=%d", c.Database.MaxOpenConns, c.Database.MaxIdleConns)
	}
	if c.OverdueScanMinutes < 0 {
		return fmt.Errorf("invalid OVERDUE_SCAN_MINUTES: %d", c.OverdueScanMinutes)
	}
	if c.Environment == "production" && c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required in production")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, dst *int) error {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = n
	return nil
}

func parseCSVEnv(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			trimmed := strings.TrimSpace(p)
			if trimmed != "" {
				out = append(out, trimmed)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return defaultValue
}
