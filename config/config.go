// Package config loads application settings from a .env file and environment variables.
// Environment variables always take precedence over .env file values.
package config

import (
	"fmt"
	"log"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// DefaultSecretKey is the fallback signing key used when SECRET_KEY is unset.
// It is public and must never be relied on outside local development.
const DefaultSecretKey = "defaultsecretkey"

// Supported database drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
)

// Config holds all application configuration.
type Config struct {
	// Storage backend: sqlite, postgres or mysql.
	DBDriver   string
	SQLitePath string

	// PostgreSQL – either set DatabaseURL directly, or the individual fields.
	DatabaseURL string
	DBUser      string
	DBPass      string
	DBHost      string
	DBPort      string
	DBName      string
	DBSSLMode   string

	MySQLDSN string

	// Signs session cookies and CSRF tokens.
	SecretKey string

	UploadDir     string
	MaxUploadSize string

	// Server
	Debug      bool
	Port       string
	TLSDomains []string

	// Flask database read by cmd/import.
	LegacyDB string
}

// Load reads configuration from a .env file (if present) and then from
// environment variables. Environment variables always win.
func Load() *Config {
	cfg := FromViper(newViper())
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config: %v", err)
	}
	return cfg
}

// FromViper builds a Config from v after applying defaults.
func FromViper(v *viper.Viper) *Config {
	// Defaults
	v.SetDefault("DB_DRIVER", DriverSQLite)
	v.SetDefault("SQLITE_PATH", "barrancos.db")
	v.SetDefault("DB_USER", "barrancos")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_NAME", "barrancos")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("SECRET_KEY", DefaultSecretKey)
	v.SetDefault("UPLOAD_DIR", "static/uploads")
	v.SetDefault("MAX_UPLOAD_SIZE", "8M")
	v.SetDefault("PORT", ":5000")
	v.SetDefault("TLS_DOMAINS", "")
	v.SetDefault("DEBUG", false)

	return &Config{
		DBDriver:      strings.ToLower(strings.TrimSpace(v.GetString("DB_DRIVER"))),
		SQLitePath:    v.GetString("SQLITE_PATH"),
		DatabaseURL:   v.GetString("DATABASE_URL"),
		DBUser:        v.GetString("DB_USER"),
		DBPass:        v.GetString("DB_PASS"),
		DBHost:        v.GetString("DB_HOST"),
		DBPort:        v.GetString("DB_PORT"),
		DBName:        v.GetString("DB_NAME"),
		DBSSLMode:     v.GetString("DB_SSLMODE"),
		MySQLDSN:      v.GetString("MYSQL_DSN"),
		SecretKey:     v.GetString("SECRET_KEY"),
		UploadDir:     v.GetString("UPLOAD_DIR"),
		MaxUploadSize: v.GetString("MAX_UPLOAD_SIZE"),
		Debug:         v.GetBool("DEBUG"),
		Port:          v.GetString("PORT"),
		TLSDomains:    splitTrimmed(v.GetString("TLS_DOMAINS")),
		LegacyDB:      v.GetString("LEGACY_DB"),
	}
}

// PostgresDSN returns the full PostgreSQL connection string.
// DATABASE_URL takes precedence over individual fields.
func (c *Config) PostgresDSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.DBUser,
		c.DBPass,
		c.DBHost,
		c.DBPort,
		c.DBName,
		c.DBSSLMode,
	)
}

// SecretKeyBytes returns the signing key as a byte slice.
func (c *Config) SecretKeyBytes() []byte {
	return []byte(c.SecretKey)
}

// InsecureSecret reports whether the built-in default signing key is in use.
func (c *Config) InsecureSecret() bool {
	return c.SecretKey == DefaultSecretKey
}

// Validate checks that the selected driver has what it needs to connect.
func (c *Config) Validate() error {
	switch c.DBDriver {
	case DriverSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("SQLITE_PATH must be set for driver %q", c.DBDriver)
		}
	case DriverPostgres:
		if c.DatabaseURL == "" && c.DBPass == "" {
			return fmt.Errorf("DATABASE_URL or DB_PASS must be set for driver %q", c.DBDriver)
		}
	case DriverMySQL:
		if c.MySQLDSN == "" {
			return fmt.Errorf("MYSQL_DSN must be set for driver %q", c.DBDriver)
		}
	default:
		return fmt.Errorf("unknown DB_DRIVER %q", c.DBDriver)
	}
	if c.UploadDir == "" {
		return fmt.Errorf("UPLOAD_DIR must be set")
	}
	if c.SecretKey == "" {
		return fmt.Errorf("SECRET_KEY must not be empty")
	}
	return nil
}

func newViper() *viper.Viper {
	// Silently load .env – OK if the file doesn't exist (production uses real env vars).
	if err := godotenv.Load(); err != nil {
		log.Println("config: no .env file found, using environment variables only")
	}

	v := viper.New()
	v.AutomaticEnv()
	return v
}

func splitTrimmed(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
