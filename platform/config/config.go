// Package config provides application configuration loading.
// This is part of the platform layer and contains no business logic.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// =============================================================================
// Module-Specific Config Interfaces (Principle of Least Privilege)
// =============================================================================

// DatabaseConfig provides database connection settings.
type DatabaseConfig interface {
	GetDatabaseURL() string
	GetDatabaseMaxConns() int
}

// StoreConfig selects the persistence backend behind the lead and chat stores.
type StoreConfig interface {
	GetStoreDriver() string
	UsesPostgres() bool
}

// JWTConfig provides JWT validation settings for middleware.
type JWTConfig interface {
	GetJWTAccessSecret() string
}

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
	GetCORSAllowCreds() bool
}

// RealtimeConfig provides settings for push connections.
type RealtimeConfig interface {
	GetHeartbeatInterval() time.Duration
	GetSinkBuffer() int
}

// PresenceConfig provides settings for the presence tracker.
type PresenceConfig interface {
	GetPresenceStaleAfter() time.Duration
	GetPresenceSweepSchedule() string
}

// SchedulerConfig provides settings for the asynq client and worker.
type SchedulerConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
}

// SMTPConfig provides settings for outgoing email.
type SMTPConfig interface {
	GetSMTPHost() string
	GetSMTPPort() int
	GetSMTPUsername() string
	GetSMTPPassword() string
	GetSMTPFromEmail() string
	GetSMTPFromName() string
	IsSMTPEnabled() bool
}

// NotificationConfig provides settings for the notification module.
type NotificationConfig interface {
	GetAppBaseURL() string
}

// LeadsConfig provides settings for the leads module.
type LeadsConfig interface {
	GetPhoneDefaultRegion() string
}

// IntakeConfig provides settings for the public contact form.
type IntakeConfig interface {
	GetIntakeRatePerMinute() int
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env                   string
	HTTPAddr              string
	StoreDriver           string
	DatabaseURL           string
	DatabaseMaxConns      int
	JWTAccessSecret       string
	CORSAllowAll          bool
	CORSOrigins           []string
	CORSAllowCreds        bool
	AppBaseURL            string
	HeartbeatInterval     time.Duration
	SinkBuffer            int
	PresenceStaleAfter    time.Duration
	PresenceSweepSchedule string
	RedisURL              string
	RedisTLSInsecure      bool
	AsynqQueueName        string
	AsynqConcurrency      int
	SMTPHost              string
	SMTPPort              int
	SMTPUsername          string
	SMTPPassword          string
	SMTPFromEmail         string
	SMTPFromName          string
	PhoneDefaultRegion    string
	IntakeRatePerMinute   int
}

// =============================================================================
// Interface Implementations
// =============================================================================

// DatabaseConfig implementation
func (c *Config) GetDatabaseURL() string   { return c.DatabaseURL }
func (c *Config) GetDatabaseMaxConns() int { return c.DatabaseMaxConns }

// StoreConfig implementation
func (c *Config) GetStoreDriver() string { return c.StoreDriver }
func (c *Config) UsesPostgres() bool     { return c.StoreDriver == StoreDriverPostgres }

// JWTConfig implementation
func (c *Config) GetJWTAccessSecret() string { return c.JWTAccessSecret }

// HTTPConfig implementation
func (c *Config) GetHTTPAddr() string      { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool    { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string { return c.CORSOrigins }
func (c *Config) GetCORSAllowCreds() bool  { return c.CORSAllowCreds }

// RealtimeConfig implementation
func (c *Config) GetHeartbeatInterval() time.Duration { return c.HeartbeatInterval }
func (c *Config) GetSinkBuffer() int                  { return c.SinkBuffer }

// PresenceConfig implementation
func (c *Config) GetPresenceStaleAfter() time.Duration { return c.PresenceStaleAfter }
func (c *Config) GetPresenceSweepSchedule() string     { return c.PresenceSweepSchedule }

// SchedulerConfig implementation
func (c *Config) GetRedisURL() string       { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool { return c.RedisTLSInsecure }
func (c *Config) GetAsynqQueueName() string { return c.AsynqQueueName }
func (c *Config) GetAsynqConcurrency() int  { return c.AsynqConcurrency }

// SMTPConfig implementation
func (c *Config) GetSMTPHost() string      { return c.SMTPHost }
func (c *Config) GetSMTPPort() int         { return c.SMTPPort }
func (c *Config) GetSMTPUsername() string  { return c.SMTPUsername }
func (c *Config) GetSMTPPassword() string  { return c.SMTPPassword }
func (c *Config) GetSMTPFromEmail() string { return c.SMTPFromEmail }
func (c *Config) GetSMTPFromName() string  { return c.SMTPFromName }
func (c *Config) IsSMTPEnabled() bool      { return c.SMTPHost != "" && c.SMTPFromEmail != "" }

// NotificationConfig implementation
func (c *Config) GetAppBaseURL() string { return c.AppBaseURL }

// LeadsConfig implementation
func (c *Config) GetPhoneDefaultRegion() string { return c.PhoneDefaultRegion }

// IntakeConfig implementation
func (c *Config) GetIntakeRatePerMinute() int { return c.IntakeRatePerMinute }

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	corsOrigins := splitCSV(getEnv("CORS_ORIGINS", "http://localhost:4200"))
	corsAllowAll := strings.EqualFold(getEnv("CORS_ALLOW_ALL", "false"), "true")
	if containsWildcard(corsOrigins) {
		corsAllowAll = true
	}

	cfg := &Config{
		Env:                   getEnv("APP_ENV", "development"),
		HTTPAddr:              getEnv("HTTP_ADDR", ":8080"),
		StoreDriver:           strings.ToLower(getEnv("STORE_DRIVER", StoreDriverPostgres)),
		DatabaseURL:           getEnv("DATABASE_URL", ""),
		DatabaseMaxConns:      mustInt(getEnv("DATABASE_MAX_CONNS", "25")),
		JWTAccessSecret:       getEnv("JWT_ACCESS_SECRET", ""),
		CORSAllowAll:          corsAllowAll,
		CORSOrigins:           corsOrigins,
		CORSAllowCreds:        strings.EqualFold(getEnv("CORS_ALLOW_CREDENTIALS", "true"), "true"),
		AppBaseURL:            getEnv("APP_BASE_URL", "http://localhost:4200"),
		HeartbeatInterval:     mustDuration(getEnv("REALTIME_HEARTBEAT_INTERVAL", "15s")),
		SinkBuffer:            mustInt(getEnv("REALTIME_SINK_BUFFER", "32")),
		PresenceStaleAfter:    mustDuration(getEnv("PRESENCE_STALE_AFTER", "60s")),
		PresenceSweepSchedule: getEnv("PRESENCE_SWEEP_SCHEDULE", "@every 15s"),
		RedisURL:              getEnv("REDIS_URL", ""),
		RedisTLSInsecure:      strings.EqualFold(getEnv("REDIS_TLS_INSECURE", "false"), "true"),
		AsynqQueueName:        getEnv("ASYNQ_QUEUE", "default"),
		AsynqConcurrency:      mustInt(getEnv("ASYNQ_CONCURRENCY", "10")),
		SMTPHost:              getEnv("SMTP_HOST", ""),
		SMTPPort:              mustInt(getEnv("SMTP_PORT", "587")),
		SMTPUsername:          getEnv("SMTP_USERNAME", ""),
		SMTPPassword:          getEnv("SMTP_PASSWORD", ""),
		SMTPFromEmail:         getEnv("SMTP_FROM_EMAIL", ""),
		SMTPFromName:          getEnv("SMTP_FROM_NAME", "Solar Portal"),
		PhoneDefaultRegion:    strings.ToUpper(getEnv("PHONE_DEFAULT_REGION", "NL")),
		IntakeRatePerMinute:   mustInt(getEnv("INTAKE_RATE_PER_MINUTE", "10")),
	}

	switch cfg.StoreDriver {
	case StoreDriverPostgres:
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required when STORE_DRIVER is postgres")
		}
	case StoreDriverMemory:
	default:
		return nil, fmt.Errorf("unsupported STORE_DRIVER %q", cfg.StoreDriver)
	}
	if cfg.JWTAccessSecret == "" {
		return nil, fmt.Errorf("JWT_ACCESS_SECRET is required")
	}
	if cfg.CORSAllowAll && cfg.CORSAllowCreds {
		return nil, fmt.Errorf("CORS_ALLOW_CREDENTIALS cannot be true when CORS_ALLOW_ALL is true")
	}
	if cfg.HeartbeatInterval <= 0 {
		return nil, fmt.Errorf("REALTIME_HEARTBEAT_INTERVAL must be a positive duration")
	}
	if cfg.PresenceStaleAfter <= cfg.HeartbeatInterval {
		return nil, fmt.Errorf("PRESENCE_STALE_AFTER must be longer than REALTIME_HEARTBEAT_INTERVAL")
	}
	if cfg.SinkBuffer < 1 {
		cfg.SinkBuffer = 32
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func mustDuration(value string) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0
	}
	return d
}

func mustInt(value string) int {
	result, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0
	}
	return result
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	results := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			results = append(results, trimmed)
		}
	}
	return results
}

func containsWildcard(values []string) bool {
	for _, value := range values {
		if value == "*" {
			return true
		}
	}
	return false
}
