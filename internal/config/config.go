package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App          AppConfig
	Postgres     PostgresConfig
	Redis        RedisConfig
	Logger       LoggerConfig
	Auth         AuthConfig
	SLA          SLAConfig
	Escalation   EscalationConfig
	Sweep        SweepConfig
	Notification NotificationConfig
	RateLimit    RateLimitConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	TenantID              string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level  string
	Format string
}

// AuthConfig defines authentication parameters.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
	BcryptCost            int
}

// SLAConfig is the priority to resolution-duration table plus tier
// thresholds. Priorities missing from the table get no deadline and stay
// invisible to SLA escalation.
type SLAConfig struct {
	ResolutionByPriority map[string]time.Duration
	WarningWindow        time.Duration
	CriticalWindow       time.Duration
}

// ResolutionFor returns the resolution duration for a priority, if mapped.
func (s SLAConfig) ResolutionFor(priority string) (time.Duration, bool) {
	d, ok := s.ResolutionByPriority[priority]
	return d, ok
}

// EscalationConfig tunes the inactivity sweeps.
type EscalationConfig struct {
	StuckAssignmentAfter time.Duration
	ReminderAfter        time.Duration
	DedupeTTL            time.Duration
}

// SweepConfig holds cron schedules and the per-run time budget.
type SweepConfig struct {
	SLASchedule        string
	EscalationSchedule string
	RunBudget          time.Duration
}

// NotificationConfig toggles fan-out channels.
type NotificationConfig struct {
	EmailFrom   string
	PushEnabled bool
	ChatMirror  bool
}

// RateLimitConfig tunes the best-effort request limiter.
type RateLimitConfig struct {
	RequestsPerWindow int
	WindowSeconds     int
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	slaTable, err := parseDurationTable(getEnv("SLA_RESOLUTION_HOURS", "critical=4,high=8,medium=24,low=72"))
	if err != nil {
		return nil, fmt.Errorf("invalid SLA_RESOLUTION_HOURS: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "syntoniqa-dispatch"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			TenantID:              getEnv("TENANT_ID", "default"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 480),
			BcryptCost:            getEnvAsInt("AUTH_BCRYPT_COST", 12),
		},
		SLA: SLAConfig{
			ResolutionByPriority: slaTable,
			WarningWindow:        getEnvAsDuration("SLA_WARNING_WINDOW", 6*time.Hour),
			CriticalWindow:       getEnvAsDuration("SLA_CRITICAL_WINDOW", 2*time.Hour),
		},
		Escalation: EscalationConfig{
			StuckAssignmentAfter: getEnvAsDuration("ESCALATION_STUCK_ASSIGNMENT_AFTER", 4*time.Hour),
			ReminderAfter:        getEnvAsDuration("ESCALATION_REMINDER_AFTER", time.Hour),
			DedupeTTL:            getEnvAsDuration("ESCALATION_DEDUPE_TTL", 48*time.Hour),
		},
		Sweep: SweepConfig{
			SLASchedule:        getEnv("SWEEP_SLA_SCHEDULE", "*/15 * * * *"),
			EscalationSchedule: getEnv("SWEEP_ESCALATION_SCHEDULE", "*/15 * * * *"),
			RunBudget:          getEnvAsDuration("SWEEP_RUN_BUDGET", 5*time.Minute),
		},
		Notification: NotificationConfig{
			EmailFrom:   getEnv("NOTIFY_EMAIL_FROM", "noreply@example.com"),
			PushEnabled: getEnvAsBool("NOTIFY_PUSH_ENABLED", false),
			ChatMirror:  getEnvAsBool("NOTIFY_CHAT_MIRROR", false),
		},
		RateLimit: RateLimitConfig{
			RequestsPerWindow: getEnvAsInt("RATE_LIMIT_REQUESTS", 120),
			WindowSeconds:     getEnvAsInt("RATE_LIMIT_WINDOW_SECONDS", 60),
		},
	}

	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// Window returns the limiter window duration.
func (r RateLimitConfig) Window() time.Duration {
	if r.WindowSeconds <= 0 {
		return time.Minute
	}
	return time.Duration(r.WindowSeconds) * time.Second
}

// parseDurationTable parses "priority=hours" pairs, e.g. "high=8,low=72".
func parseDurationTable(raw string) (map[string]time.Duration, error) {
	table := make(map[string]time.Duration)
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		parts := strings.SplitN(pair, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("malformed pair %q", pair)
		}
		hours, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		if err != nil {
			return nil, fmt.Errorf("malformed hours in %q: %w", pair, err)
		}
		table[strings.TrimSpace(parts[0])] = time.Duration(hours * float64(time.Hour))
	}
	return table, nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(val)
	if err != nil {
		return fallback
	}
	return parsed
}
