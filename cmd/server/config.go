package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/academyreg/handoff/internal/models"
	"github.com/jessevdk/go-flags"
)

// Config holds all configuration options
type Config struct {
	// Server config
	Port          string `long:"port" env:"PORT" default:"3000" description:"Server port"`
	PublicURL     string `long:"public-url" env:"PUBLIC_URL" description:"Public base URL; makes sign-in URLs absolute"`
	SecureCookies bool   `long:"secure-cookies" env:"SECURE_COOKIES" description:"Issue __Secure- session cookies (requires HTTPS)"`
	LogLevel      string `long:"log-level" env:"LOG_LEVEL" default:"info" choice:"debug" choice:"info" choice:"warn" choice:"error" description:"Log level"`
	LogFormat     string `long:"log-format" env:"LOG_FORMAT" default:"text" choice:"text" choice:"json" description:"Log output format"`

	// Secrets
	MobileJWTSecret string `long:"mobile-jwt-secret" env:"MOBILE_JWT_SECRET" required:"true" description:"HMAC secret for mobile bearer tokens"`
	SessionSecret   string `long:"session-secret" env:"SESSION_SECRET" description:"HMAC secret for browser sessions (defaults to the mobile secret)"`

	Handoff struct {
		CodeTTL         time.Duration `long:"code-ttl" env:"CODE_TTL" default:"2m" description:"Lifetime of a handoff code"`
		StoreTimeout    time.Duration `long:"store-timeout" env:"STORE_TIMEOUT" default:"5s" description:"Timeout for code and user store calls"`
		TokenLeeway     time.Duration `long:"token-leeway" env:"TOKEN_LEEWAY" default:"30s" description:"Clock skew allowed when verifying bearer tokens"`
		SessionLifetime time.Duration `long:"session-lifetime" env:"SESSION_LIFETIME" default:"720h" description:"Lifetime of minted browser sessions"`
		AllowedRoles    []string      `long:"allowed-role" env:"ALLOWED_ROLES" env-delim:"," default:"STAFF" default:"TEACHER" default:"ADMIN" description:"Roles allowed to request a handoff code"`
		RateLimit       int           `long:"rate-limit" env:"RATE_LIMIT" default:"10" description:"Code requests per user per window (0 disables, requires redis)"`
		RateWindow      time.Duration `long:"rate-window" env:"RATE_WINDOW" default:"1m" description:"Rate limit window"`
	} `group:"Handoff Options"`

	// Storage config
	CodeStore   string `long:"code-store" env:"CODE_STORE" default:"redis" choice:"memory" choice:"redis" description:"Handoff code storage backend"`
	UserStorage string `long:"user-storage" env:"USER_STORAGE" default:"postgres" choice:"postgres" choice:"filesystem" choice:"s3" choice:"static" description:"User storage backend"`

	// Postgres storage
	Postgres struct {
		DSN string `long:"postgres-dsn" env:"DATABASE_URL" description:"Postgres connection string"`
	} `group:"Postgres Storage Options"`

	// Filesystem storage
	DataPath string `long:"data-path" env:"DATA_PATH" default:"./data" description:"Filesystem storage directory"`

	// Static storage
	UsersFile string `long:"users-file" env:"USERS_FILE" default:"./users.yaml" description:"YAML user directory for static storage"`

	// S3 storage
	S3 struct {
		Endpoint  string `long:"s3-endpoint" env:"S3_ENDPOINT" default:"localhost:9000" description:"S3 endpoint (host:port)"`
		Bucket    string `long:"s3-bucket" env:"S3_BUCKET" default:"academy-users" description:"S3 bucket name"`
		AccessKey string `long:"s3-access-key" env:"S3_ACCESS_KEY" default:"minioadmin" description:"S3 access key"`
		SecretKey string `long:"s3-secret-key" env:"S3_SECRET_KEY" default:"minioadmin" description:"S3 secret key"`
		UseSSL    bool   `long:"s3-use-ssl" env:"S3_USE_SSL" description:"Use SSL for S3 connections"`
	} `group:"S3 Storage Options"`

	// Redis config
	Redis struct {
		Addr      string `long:"redis-addr" env:"REDIS_ADDR" default:"localhost:6379" description:"Redis address"`
		Password  string `long:"redis-password" env:"REDIS_PASSWORD" description:"Redis password"`
		DB        int    `long:"redis-db" env:"REDIS_DB" default:"0" description:"Redis database number"`
		UseScript bool   `long:"redis-use-script" env:"REDIS_USE_SCRIPT" description:"Redeem codes with a Lua script instead of GETDEL (Redis < 6.2)"`
	} `group:"Redis Options"`
}

// LoadConfig parses configuration from environment variables and command line flags
func LoadConfig() (*Config, error) {
	var config Config

	parser := flags.NewParser(&config, flags.Default)
	parser.Usage = "[OPTIONS]"

	if _, err := parser.Parse(); err != nil {
		if flags.WroteHelp(err) {
			os.Exit(0)
		}
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func (c *Config) validate() error {
	if c.Handoff.StoreTimeout >= c.Handoff.CodeTTL {
		return fmt.Errorf("store timeout %s must be shorter than code TTL %s", c.Handoff.StoreTimeout, c.Handoff.CodeTTL)
	}
	if _, err := c.allowedRoles(); err != nil {
		return err
	}
	if c.UserStorage == "postgres" && c.Postgres.DSN == "" {
		return fmt.Errorf("postgres user storage requires --postgres-dsn")
	}
	return nil
}

func (c *Config) allowedRoles() (models.RoleSet, error) {
	roles := make([]models.Role, 0, len(c.Handoff.AllowedRoles))
	for _, name := range c.Handoff.AllowedRoles {
		role := models.Role(strings.ToUpper(strings.TrimSpace(name)))
		if !role.Valid() {
			return nil, fmt.Errorf("unknown role %q in allowed roles", name)
		}
		roles = append(roles, role)
	}
	return models.NewRoleSet(roles...), nil
}

// sessionSecret falls back to the mobile secret, which is what the web app
// did before the two were split.
func (c *Config) sessionSecret() []byte {
	if c.SessionSecret == "" {
		slog.Warn("SESSION_SECRET not set, signing browser sessions with the mobile JWT secret")
		return []byte(c.MobileJWTSecret)
	}
	return []byte(c.SessionSecret)
}

func (c *Config) logLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}
