package config

import (
	"log"
	"os"
	"strconv"
)

// Config carries all process configuration, loaded once at startup.
type Config struct {
	Env  string
	Addr string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	StoreAdapter string // memory, sqlite, postgres
	SQLiteFile   string
	PostgresDSN  string

	SessionSecret    string
	CredentialSecret string

	SMTPHost  string
	SMTPPort  string
	SMTPUser  string
	SMTPPass  string
	MailFrom  string
	MailInbox string

	CaptchaVerifyURL string
	CaptchaSecret    string

	AdminUsername string
	AdminEmail    string
	AdminPassword string
}

// Load reads configuration from the environment. Secrets have no defaults
// and abort startup when missing.
func Load() *Config {
	return &Config{
		Env:  getEnv("ENV", "development"),
		Addr: getEnv("SITE_ADDR", ":8080"),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),

		StoreAdapter: getEnv("STORE_ADAPTER", "sqlite"),
		SQLiteFile:   getEnv("SQLITE_FILE", "siteapi.db"),
		PostgresDSN:  getEnv("STORE_DSN", ""),

		SessionSecret:    mustGetEnv("SESSION_SECRET"),
		CredentialSecret: mustGetEnv("CREDENTIAL_SECRET"),

		SMTPHost:  getEnv("SMTP_HOST", ""),
		SMTPPort:  getEnv("SMTP_PORT", "587"),
		SMTPUser:  getEnv("SMTP_USER", ""),
		SMTPPass:  getEnv("SMTP_PASS", ""),
		MailFrom:  getEnv("MAIL_FROM", "no-reply@volantix.io"),
		MailInbox: getEnv("MAIL_INBOX", "contact@volantix.io"),

		CaptchaVerifyURL: getEnv("CAPTCHA_VERIFY_URL", ""),
		CaptchaSecret:    getEnv("CAPTCHA_SECRET", ""),

		AdminUsername: getEnv("ADMIN_USERNAME", "admin"),
		AdminEmail:    getEnv("ADMIN_EMAIL", "admin@volantix.io"),
		AdminPassword: getEnv("ADMIN_PASSWORD", ""),
	}
}

// IsProduction reports whether the process runs with production hardening
// (Secure cookies, real SMTP).
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func mustGetEnv(key string) string {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		log.Fatalf("missing required environment variable: %s", key)
	}
	return value
}

func getEnvAsInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		log.Fatalf("invalid integer for %s: %q", key, value)
	}
	return parsed
}
