package config

import (
	"fmt"
	"os"
	"strconv"
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
	Notification NotificationConfig
	Storage      StorageConfig
	SLA          SLAConfig
	Tickets      TicketsConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	MigrationsDir  string
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
	Level string
}

// AuthConfig defines authentication parameters.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
	BcryptCost            int

	// Bootstrap admin is created at startup when the email is set and unknown.
	BootstrapAdminEmail    string
	BootstrapAdminPassword string
}

// NotificationConfig controls the notifier transport.
type NotificationConfig struct {
	NATSURL              string
	ClientName           string
	SubjectPrefix        string
	ReconnectWaitSeconds int
	MaxReconnects        int
	ConnectTimeoutSecs   int
	// AlertRecipient receives SLA alerts for unassigned tickets.
	AlertRecipient string
}

// StorageConfig points at the attachment object store.
type StorageConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// SLAConfig holds per-priority targets in minutes and the breach monitor cadence.
type SLAConfig struct {
	CriticalResponseMinutes   int
	CriticalResolutionMinutes int
	HighResponseMinutes       int
	HighResolutionMinutes     int
	MediumResponseMinutes     int
	MediumResolutionMinutes   int
	LowResponseMinutes        int
	LowResolutionMinutes      int

	MonitorIntervalSeconds int
	MonitorConcurrency     int
	AlertTTLMinutes        int
}

// TicketsConfig holds ticket intake settings.
type TicketsConfig struct {
	AutoAssign      bool
	MaxUploadBytes  int64
	DefaultPageSize int
	MaxPageSize     int
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	maxConns := int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10))
	minConns := int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2))
	runMigrations := getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true)
	connMaxIdle := int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30))
	connMaxLife := int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300))

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "helpdesk-api"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       maxConns,
			MinConns:       minConns,
			RunMigrations:  runMigrations,
			MigrationsDir:  getEnv("POSTGRES_MIGRATIONS_DIR", "migrations"),
			ConnMaxIdleSec: connMaxIdle,
			ConnMaxLifeSec: connMaxLife,
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
			BcryptCost:            getEnvAsInt("AUTH_BCRYPT_COST", 12),

			BootstrapAdminEmail:    os.Getenv("AUTH_BOOTSTRAP_ADMIN_EMAIL"),
			BootstrapAdminPassword: os.Getenv("AUTH_BOOTSTRAP_ADMIN_PASSWORD"),
		},
		Notification: NotificationConfig{
			NATSURL:              os.Getenv("NATS_URL"),
			ClientName:           getEnv("NATS_CLIENT_NAME", "helpdesk-api"),
			SubjectPrefix:        getEnv("NATS_SUBJECT_PREFIX", "helpdesk.notifications"),
			ReconnectWaitSeconds: getEnvAsInt("NATS_RECONNECT_WAIT_SECONDS", 2),
			MaxReconnects:        getEnvAsInt("NATS_MAX_RECONNECTS", 10),
			ConnectTimeoutSecs:   getEnvAsInt("NATS_CONNECT_TIMEOUT_SECONDS", 5),
			AlertRecipient:       getEnv("NOTIFY_ALERT_RECIPIENT", "helpdesk-leads"),
		},
		Storage: StorageConfig{
			Endpoint:  os.Getenv("MINIO_ENDPOINT"),
			AccessKey: os.Getenv("MINIO_ACCESS_KEY"),
			SecretKey: os.Getenv("MINIO_SECRET_KEY"),
			Bucket:    getEnv("MINIO_BUCKET", "helpdesk-attachments"),
			UseSSL:    getEnvAsBool("MINIO_USE_SSL", false),
		},
		SLA: SLAConfig{
			CriticalResponseMinutes:   getEnvAsInt("SLA_CRITICAL_RESPONSE_MINUTES", 30),
			CriticalResolutionMinutes: getEnvAsInt("SLA_CRITICAL_RESOLUTION_MINUTES", 240),
			HighResponseMinutes:       getEnvAsInt("SLA_HIGH_RESPONSE_MINUTES", 60),
			HighResolutionMinutes:     getEnvAsInt("SLA_HIGH_RESOLUTION_MINUTES", 480),
			MediumResponseMinutes:     getEnvAsInt("SLA_MEDIUM_RESPONSE_MINUTES", 240),
			MediumResolutionMinutes:   getEnvAsInt("SLA_MEDIUM_RESOLUTION_MINUTES", 1440),
			LowResponseMinutes:        getEnvAsInt("SLA_LOW_RESPONSE_MINUTES", 480),
			LowResolutionMinutes:      getEnvAsInt("SLA_LOW_RESOLUTION_MINUTES", 2880),
			MonitorIntervalSeconds:    getEnvAsInt("SLA_MONITOR_INTERVAL_SECONDS", 60),
			MonitorConcurrency:        getEnvAsInt("SLA_MONITOR_CONCURRENCY", 8),
			AlertTTLMinutes:           getEnvAsInt("SLA_ALERT_TTL_MINUTES", 24*60),
		},
		Tickets: TicketsConfig{
			AutoAssign:      getEnvAsBool("TICKETS_AUTO_ASSIGN", false),
			MaxUploadBytes:  int64(getEnvAsInt("TICKETS_MAX_UPLOAD_BYTES", 10<<20)),
			DefaultPageSize: getEnvAsInt("TICKETS_DEFAULT_PAGE_SIZE", 20),
			MaxPageSize:     getEnvAsInt("TICKETS_MAX_PAGE_SIZE", 100),
		},
	}

	if cfg.App.Env == "production" && cfg.Auth.JWTSecret == "dev-secret" {
		return nil, fmt.Errorf("AUTH_JWT_SECRET must be set in production")
	}

	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// MonitorInterval returns the breach monitor cadence; zero disables it.
func (s SLAConfig) MonitorInterval() time.Duration {
	if s.MonitorIntervalSeconds <= 0 {
		return 0
	}
	return time.Duration(s.MonitorIntervalSeconds) * time.Second
}

// AlertTTL bounds how long a sent alert suppresses repeats.
func (s SLAConfig) AlertTTL() time.Duration {
	return time.Duration(s.AlertTTLMinutes) * time.Minute
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
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
