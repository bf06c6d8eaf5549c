// Package config loads server configuration from flags, the environment, and .env files.
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Ledger backends.
const (
	LedgerSQLite = "sqlite"
	LedgerBadger = "badger"
)

// Config holds the application configuration.
type Config struct {
	App       AppConfig
	Logger    LoggerConfig
	Metadata  MetadataConfig
	Server    ServerConfig
	Auth      AuthConfig
	Lending   LendingConfig
	RateLimit RateLimitConfig
	Upload    UploadConfig
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Environment string
	Version     string
}

// LoggerConfig holds logging configuration.
type LoggerConfig struct {
	Level  string
	Format string // json or pretty; empty picks by environment
}

// MetadataConfig locates on-disk state. Everything the server writes lives under BasePath.
type MetadataConfig struct {
	BasePath string
}

// DatabasePath is the SQLite catalog and account database.
func (m MetadataConfig) DatabasePath() string { return filepath.Join(m.BasePath, "library.db") }

// LedgerPath is the Badger directory used when the ledger backend is badger.
func (m MetadataConfig) LedgerPath() string { return filepath.Join(m.BasePath, "ledger") }

// SearchPath is the bleve index directory.
func (m MetadataConfig) SearchPath() string { return filepath.Join(m.BasePath, "search") }

// CoversPath holds uploaded cover images.
func (m MetadataConfig) CoversPath() string { return filepath.Join(m.BasePath, "covers") }

// KeyPath is the token encryption key file.
func (m MetadataConfig) KeyPath() string { return filepath.Join(m.BasePath, "auth.key") }

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Name               string
	Port               string
	ReadTimeout        time.Duration
	WriteTimeout       time.Duration
	IdleTimeout        time.Duration
	ShutdownTimeout    time.Duration
	AdvertiseMDNS      bool
	CORSAllowedOrigins []string
}

// AuthConfig holds token lifetimes.
type AuthConfig struct {
	AccessTokenDuration  time.Duration
	RefreshTokenDuration time.Duration
}

// LendingConfig configures the ledger and the loan duration policy.
type LendingConfig struct {
	LedgerBackend string
	// PolicyFile, when set, overrides the day counts below and is watched for changes.
	PolicyFile           string
	StandardDays         int
	ExtendedDays         int
	ShortDays            int
	OverdueAuditInterval time.Duration
}

// RateLimitConfig limits unauthenticated auth endpoints per client IP.
type RateLimitConfig struct {
	AuthRPS   float64
	AuthBurst int
}

// UploadConfig limits cover uploads.
type UploadConfig struct {
	MaxSize           int64
	AllowedExtensions []string
}

// LoadConfig loads configuration from the process arguments and environment.
func LoadConfig() (*Config, error) {
	return Load(os.Args[1:])
}

// Load builds a Config with precedence: flags, then environment variables,
// then the .env file (which never overrides the real environment), then defaults.
func Load(args []string) (*Config, error) {
	fs := flag.NewFlagSet("library-server", flag.ContinueOnError)

	env := fs.String("env", "", "Environment (development, staging, production)")
	logLevel := fs.String("log-level", "", "Log level (debug, info, warn, error)")
	logFormat := fs.String("log-format", "", "Log format (json, pretty)")
	metadataPath := fs.String("metadata-path", "", "Directory for the database, ledger, index, and covers")
	serverName := fs.String("server-name", "", "Name advertised to clients")
	serverPort := fs.String("port", "", "Server port (default: 8080)")
	readTimeout := fs.String("read-timeout", "", "HTTP read timeout (default: 15s)")
	writeTimeout := fs.String("write-timeout", "", "HTTP write timeout (default: 15s)")
	idleTimeout := fs.String("idle-timeout", "", "HTTP idle timeout (default: 60s)")
	shutdownTimeout := fs.String("shutdown-timeout", "", "Graceful shutdown timeout (default: 30s)")
	advertiseMDNS := fs.String("advertise-mdns", "", "Advertise via mDNS (default: true)")
	corsOrigins := fs.String("cors-origins", "", "Comma-separated allowed CORS origins")
	accessTokenDuration := fs.String("access-token-duration", "", "Access token lifetime (default: 15m)")
	refreshTokenDuration := fs.String("refresh-token-duration", "", "Refresh token lifetime (default: 720h)")
	ledgerBackend := fs.String("ledger", "", "Loan ledger backend: sqlite or badger")
	policyFile := fs.String("policy-file", "", "JSON file with loan durations per category")
	auditInterval := fs.String("overdue-audit-interval", "", "How often to log overdue loans (default: 1h)")
	envFile := fs.String("env-file", ".env", "Path to .env file")

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("parse flags: %w", err)
	}

	// A missing .env file is normal.
	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load %s: %w", *envFile, err)
	}

	cfg := &Config{
		App: AppConfig{
			Environment: getConfigValue(*env, "ENV", "development"),
			Version:     getConfigValue("", "APP_VERSION", "dev"),
		},
		Logger: LoggerConfig{
			Level:  getConfigValue(*logLevel, "LOG_LEVEL", "info"),
			Format: getConfigValue(*logFormat, "LOG_FORMAT", ""),
		},
		Metadata: MetadataConfig{
			BasePath: getConfigValue(*metadataPath, "METADATA_PATH", ""),
		},
		Server: ServerConfig{
			Name:               getConfigValue(*serverName, "SERVER_NAME", "Library Server"),
			Port:               getConfigValue(*serverPort, "SERVER_PORT", "8080"),
			AdvertiseMDNS:      getBoolConfigValue(*advertiseMDNS, "ADVERTISE_MDNS", true),
			CORSAllowedOrigins: splitList(getConfigValue(*corsOrigins, "CORS_ALLOWED_ORIGINS", "*")),
		},
		Lending: LendingConfig{
			LedgerBackend: strings.ToLower(getConfigValue(*ledgerBackend, "LEDGER_BACKEND", LedgerSQLite)),
			PolicyFile:    getConfigValue(*policyFile, "POLICY_FILE", ""),
			StandardDays:  getIntConfigValue("", "POLICY_STANDARD_DAYS", 10),
			ExtendedDays:  getIntConfigValue("", "POLICY_EXTENDED_DAYS", 5),
			ShortDays:     getIntConfigValue("", "POLICY_SHORT_DAYS", 2),
		},
		RateLimit: RateLimitConfig{
			AuthRPS:   getFloatConfigValue("AUTH_RATE_LIMIT_RPS", 20.0/60.0),
			AuthBurst: getIntConfigValue("", "AUTH_RATE_LIMIT_BURST", 10),
		},
		Upload: UploadConfig{
			MaxSize:           int64(getIntConfigValue("", "MAX_UPLOAD_SIZE", 16<<20)),
			AllowedExtensions: splitList(getConfigValue("", "ALLOWED_EXTENSIONS", "png,jpg,jpeg,gif,webp")),
		},
	}

	durations := []struct {
		flagValue, envKey, def string
		dst                    *time.Duration
	}{
		{*readTimeout, "SERVER_READ_TIMEOUT", "15s", &cfg.Server.ReadTimeout},
		{*writeTimeout, "SERVER_WRITE_TIMEOUT", "15s", &cfg.Server.WriteTimeout},
		{*idleTimeout, "SERVER_IDLE_TIMEOUT", "60s", &cfg.Server.IdleTimeout},
		{*shutdownTimeout, "SERVER_SHUTDOWN_TIMEOUT", "30s", &cfg.Server.ShutdownTimeout},
		{*accessTokenDuration, "ACCESS_TOKEN_DURATION", "15m", &cfg.Auth.AccessTokenDuration},
		{*refreshTokenDuration, "REFRESH_TOKEN_DURATION", "720h", &cfg.Auth.RefreshTokenDuration},
		{*auditInterval, "OVERDUE_AUDIT_INTERVAL", "1h", &cfg.Lending.OverdueAuditInterval},
	}
	for _, d := range durations {
		raw := getConfigValue(d.flagValue, d.envKey, d.def)
		v, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid %s %q: %w", d.envKey, raw, err)
		}
		*d.dst = v
	}

	if err := cfg.expandPaths(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// Validate checks that all config values are present and in range.
func (c *Config) Validate() error {
	switch c.App.Environment {
	case "development", "staging", "production":
	default:
		return fmt.Errorf("invalid environment: %q (must be development, staging, or production)", c.App.Environment)
	}

	switch strings.ToLower(c.Logger.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logger.Level)
	}

	if c.Metadata.BasePath == "" {
		return errors.New("metadata base path cannot be empty after expansion")
	}

	if port, err := strconv.Atoi(c.Server.Port); err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("invalid server port: %q", c.Server.Port)
	}

	switch c.Lending.LedgerBackend {
	case LedgerSQLite, LedgerBadger:
	default:
		return fmt.Errorf("invalid ledger backend: %q (must be sqlite or badger)", c.Lending.LedgerBackend)
	}

	if c.Lending.StandardDays <= 0 || c.Lending.ExtendedDays <= 0 || c.Lending.ShortDays <= 0 {
		return errors.New("loan policy days must be positive")
	}
	if c.Lending.OverdueAuditInterval <= 0 {
		return errors.New("overdue audit interval must be positive")
	}

	if c.Auth.AccessTokenDuration <= 0 || c.Auth.RefreshTokenDuration <= 0 {
		return errors.New("token durations must be positive")
	}
	if c.Auth.RefreshTokenDuration < c.Auth.AccessTokenDuration {
		return errors.New("refresh token duration must not be shorter than access token duration")
	}

	if c.RateLimit.AuthRPS <= 0 || c.RateLimit.AuthBurst <= 0 {
		return errors.New("auth rate limit must be positive")
	}
	if c.Upload.MaxSize <= 0 {
		return errors.New("max upload size must be positive")
	}
	return nil
}

// AllowsExtension reports whether a cover file extension (with or without the dot) may be uploaded.
func (u UploadConfig) AllowsExtension(ext string) bool {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	for _, allowed := range u.AllowedExtensions {
		if ext == allowed {
			return true
		}
	}
	return false
}

func (c *Config) expandPaths() error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}

	base, err := expandPath(c.Metadata.BasePath, filepath.Join(homeDir, "LibraryServer", "data"))
	if err != nil {
		return fmt.Errorf("invalid metadata path: %w", err)
	}
	c.Metadata.BasePath = base

	if c.Lending.PolicyFile != "" {
		if c.Lending.PolicyFile, err = expandPath(c.Lending.PolicyFile, ""); err != nil {
			return fmt.Errorf("invalid policy file path: %w", err)
		}
	}
	return nil
}

// expandPath expands ~ and makes path absolute. An empty path yields defaultPath.
func expandPath(path, defaultPath string) (string, error) {
	if path == "" {
		return defaultPath, nil
	}

	if rest, ok := strings.CutPrefix(path, "~/"); ok {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(homeDir, rest)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path: %w", err)
	}
	return abs, nil
}

// getConfigValue returns the first non-empty value from flag, env var, or default.
func getConfigValue(flagValue, envKey, defaultValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if envValue := os.Getenv(envKey); envValue != "" {
		return envValue
	}
	return defaultValue
}

// getBoolConfigValue accepts "true", "1", and "yes" (any case) as true.
func getBoolConfigValue(flagValue, envKey string, defaultValue bool) bool {
	v := getConfigValue(flagValue, envKey, "")
	if v == "" {
		return defaultValue
	}
	v = strings.ToLower(v)
	return v == "true" || v == "1" || v == "yes"
}

// getIntConfigValue falls back to defaultValue when the value is missing or malformed.
func getIntConfigValue(flagValue, envKey string, defaultValue int) int {
	v, err := strconv.Atoi(getConfigValue(flagValue, envKey, ""))
	if err != nil {
		return defaultValue
	}
	return v
}

func getFloatConfigValue(envKey string, defaultValue float64) float64 {
	v, err := strconv.ParseFloat(os.Getenv(envKey), 64)
	if err != nil {
		return defaultValue
	}
	return v
}

func splitList(s string) []string {
	var out []string
	for part := range strings.SplitSeq(s, ",") {
		if part = strings.TrimSpace(strings.ToLower(part)); part != "" {
			out = append(out, part)
		}
	}
	return out
}
