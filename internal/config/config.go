package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the RentDesk server.
type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	HTTP       HTTPConfig
	Notify     NotifyConfig
	Scheduler  SchedulerConfig
	BankImport BankImportConfig
}

type ServerConfig struct {
	Port int
	Env  string
}

type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	URL string
}

type HTTPConfig struct {
	RateLimitPerMinute int
	CORSAllowedOrigins []string
}

type NotifyConfig struct {
	EmailProvider string
	SMSProvider   string
	SendGrid      SendGridConfig
	Twilio        TwilioConfig
	RetentionDays int
}

type SendGridConfig struct {
	APIKey    string
	FromEmail string
	FromName  string
	Sandbox   bool
}

type TwilioConfig struct {
	AccountSID string
	AuthToken  string
	FromPhone  string
}

type SchedulerConfig struct {
	Enabled     bool
	OverdueSpec string
	PurgeSpec   string
}

type BankImportConfig struct {
	MaxBytes            int64
	Strict              bool
	ReconcileWindowDays int
}

var validEmailProviders = map[string]bool{
	"sendgrid": true,
	"log":      true,
}

var validSMSProviders = map[string]bool{
	"twilio": true,
	"log":    true,
}

// Load reads configuration from environment variables and returns a validated Config.
// Returns an error with a descriptive message if any required value is missing or invalid.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port: envInt("RENTDESK_PORT", 8080),
			Env:  envString("RENTDESK_ENV", "development"),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    envInt("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: envDuration("DATABASE_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			URL: os.Getenv("REDIS_URL"),
		},
		HTTP: HTTPConfig{
			RateLimitPerMinute: envInt("RATE_LIMIT_PER_MINUTE", 60),
			CORSAllowedOrigins: envList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
		},
		Notify: NotifyConfig{
			EmailProvider: envString("NOTIFY_EMAIL_PROVIDER", "log"),
			SMSProvider:   envString("NOTIFY_SMS_PROVIDER", "log"),
			SendGrid: SendGridConfig{
				APIKey:    os.Getenv("SENDGRID_API_KEY"),
				FromEmail: os.Getenv("NOTIFY_FROM_EMAIL"),
				FromName:  envString("NOTIFY_FROM_NAME", "RentDesk"),
				Sandbox:   envBool("SENDGRID_SANDBOX", false),
			},
			Twilio: TwilioConfig{
				AccountSID: os.Getenv("TWILIO_ACCOUNT_SID"),
				AuthToken:  os.Getenv("TWILIO_AUTH_TOKEN"),
				FromPhone:  os.Getenv("TWILIO_FROM_PHONE"),
			},
			RetentionDays: envInt("NOTIFICATION_RETENTION_DAYS", 90),
		},
		Scheduler: SchedulerConfig{
			Enabled:     envBool("SCHEDULER_ENABLED", true),
			OverdueSpec: envString("SCHEDULER_OVERDUE_SPEC", "0 6 * * *"),
			PurgeSpec:   envString("SCHEDULER_PURGE_SPEC", "0 3 * * *"),
		},
		BankImport: BankImportConfig{
			MaxBytes:            int64(envInt("BANK_IMPORT_MAX_BYTES", 5<<20)),
			Strict:              envBool("BANK_IMPORT_STRICT", true),
			ReconcileWindowDays: envInt("RECONCILE_WINDOW_DAYS", 3),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Redis.URL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	if c.HTTP.RateLimitPerMinute <= 0 {
		return fmt.Errorf("RATE_LIMIT_PER_MINUTE must be positive, got %d", c.HTTP.RateLimitPerMinute)
	}

	if !validEmailProviders[c.Notify.EmailProvider] {
		return fmt.Errorf("NOTIFY_EMAIL_PROVIDER must be one of sendgrid, log; got %q", c.Notify.EmailProvider)
	}
	if c.Notify.EmailProvider == "sendgrid" {
		if c.Notify.SendGrid.APIKey == "" {
			return fmt.Errorf("SENDGRID_API_KEY is required when NOTIFY_EMAIL_PROVIDER is sendgrid")
		}
		if c.Notify.SendGrid.FromEmail == "" {
			return fmt.Errorf("NOTIFY_FROM_EMAIL is required when NOTIFY_EMAIL_PROVIDER is sendgrid")
		}
	}

	if !validSMSProviders[c.Notify.SMSProvider] {
		return fmt.Errorf("NOTIFY_SMS_PROVIDER must be one of twilio, log; got %q", c.Notify.SMSProvider)
	}
	if c.Notify.SMSProvider == "twilio" {
		t := c.Notify.Twilio
		if t.AccountSID == "" || t.AuthToken == "" || t.FromPhone == "" {
			return fmt.Errorf("TWILIO_ACCOUNT_SID, TWILIO_AUTH_TOKEN and TWILIO_FROM_PHONE are required when NOTIFY_SMS_PROVIDER is twilio")
		}
	}

	if c.Notify.RetentionDays <= 0 {
		return fmt.Errorf("NOTIFICATION_RETENTION_DAYS must be positive, got %d", c.Notify.RetentionDays)
	}

	if c.BankImport.MaxBytes <= 0 {
		return fmt.Errorf("BANK_IMPORT_MAX_BYTES must be positive, got %d", c.BankImport.MaxBytes)
	}
	if c.BankImport.ReconcileWindowDays < 0 {
		return fmt.Errorf("RECONCILE_WINDOW_DAYS must not be negative, got %d", c.BankImport.ReconcileWindowDays)
	}

	return nil
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func envBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}

// envList splits a comma separated value, dropping empty items.
func envList(key string, defaultVal []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return defaultVal
	}
	return out
}
