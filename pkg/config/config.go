package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/meridiancrm/meridian/pkg/observability"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server ServerConfig

	// Database configuration
	Database DatabaseConfig

	// Redis configuration (optional identity-cache layer)
	Redis RedisConfig

	// Auth configuration
	Auth AuthConfig

	// Scheduled maintenance jobs
	Jobs JobsConfig

	// Observability configuration
	Observability ObservabilityConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// Health/metrics server (separate port for k8s probes)
	HealthPort string
}

// DatabaseConfig holds PostgreSQL connection configuration
type DatabaseConfig struct {
	URL         string
	MaxConns    int
	MinConns    int
	Timeout     time.Duration
	MaxLifetime time.Duration
	MaxIdleTime time.Duration
}

// RedisConfig holds the optional Redis cache configuration.
// When Addr is empty the identity cache runs with the in-process LRU only.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// AuthConfig holds token lifetimes and hashing cost
type AuthConfig struct {
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	BcryptCost      int

	// IdentityCacheTTL bounds how long a resolved identity may be served
	// from cache; it caps the staleness of the active flag.
	IdentityCacheTTL  time.Duration
	IdentityCacheSize int
}

// JobsConfig holds scheduled maintenance job configuration
type JobsConfig struct {
	// Audit export to S3: disabled when Bucket is empty
	AuditExportBucket   string
	AuditExportPrefix   string
	AuditExportRegion   string
	AuditExportSchedule string

	// Read-notification pruning
	NotificationRetention time.Duration
	PruneSchedule         string
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	// Logging
	LogLevel observability.LogLevel

	// Metrics
	MetricsEnabled bool

	// OpenTelemetry
	OTelEnabled        bool
	OTelEndpoint       string
	OTelServiceName    string
	OTelServiceVersion string
	OTelInsecure       bool // Use insecure gRPC connection
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server:        loadServerConfig(),
		Database:      loadDatabaseConfig(),
		Redis:         loadRedisConfig(),
		Auth:          loadAuthConfig(),
		Jobs:          loadJobsConfig(),
		Observability: loadObservabilityConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// loadServerConfig loads server configuration from environment
func loadServerConfig() ServerConfig {
	return ServerConfig{
		Host:            getEnv("MERIDIAN_HOST", "0.0.0.0"),
		Port:            getEnv("MERIDIAN_PORT", "8080"),
		ReadTimeout:     getEnvDuration("MERIDIAN_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDuration("MERIDIAN_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:     getEnvDuration("MERIDIAN_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvDuration("MERIDIAN_SHUTDOWN_TIMEOUT", 30*time.Second),
		HealthPort:      getEnv("MERIDIAN_HEALTH_PORT", "9090"),
	}
}

// loadDatabaseConfig loads database configuration from environment
func loadDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		URL:         getEnv("MERIDIAN_POSTGRES_URL", ""),
		MaxConns:    getEnvInt("MERIDIAN_POSTGRES_MAX_CONNS", 20),
		MinConns:    getEnvInt("MERIDIAN_POSTGRES_MIN_CONNS", 2),
		Timeout:     getEnvDuration("MERIDIAN_POSTGRES_TIMEOUT", 5*time.Second),
		MaxLifetime: getEnvDuration("MERIDIAN_POSTGRES_MAX_LIFETIME", 30*time.Minute),
		MaxIdleTime: getEnvDuration("MERIDIAN_POSTGRES_MAX_IDLE_TIME", 5*time.Minute),
	}
}

// loadRedisConfig loads Redis configuration from environment
func loadRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:     getEnv("MERIDIAN_REDIS_ADDR", ""),
		Password: getEnv("MERIDIAN_REDIS_PASSWORD", ""),
		DB:       getEnvInt("MERIDIAN_REDIS_DB", 0),
	}
}

// loadAuthConfig loads auth configuration from environment
func loadAuthConfig() AuthConfig {
	return AuthConfig{
		AccessTokenTTL:    getEnvDuration("MERIDIAN_ACCESS_TOKEN_TTL", 15*time.Minute),
		RefreshTokenTTL:   getEnvDuration("MERIDIAN_REFRESH_TOKEN_TTL", 168*time.Hour),
		BcryptCost:        getEnvInt("MERIDIAN_BCRYPT_COST", 12),
		IdentityCacheTTL:  getEnvDuration("MERIDIAN_IDENTITY_CACHE_TTL", 30*time.Second),
		IdentityCacheSize: getEnvInt("MERIDIAN_IDENTITY_CACHE_SIZE", 4096),
	}
}

// loadJobsConfig loads scheduled job configuration from environment
func loadJobsConfig() JobsConfig {
	return JobsConfig{
		AuditExportBucket:     getEnv("MERIDIAN_AUDIT_EXPORT_BUCKET", ""),
		AuditExportPrefix:     getEnv("MERIDIAN_AUDIT_EXPORT_PREFIX", "audit"),
		AuditExportRegion:     getEnv("MERIDIAN_AUDIT_EXPORT_REGION", "us-east-1"),
		AuditExportSchedule:   getEnv("MERIDIAN_AUDIT_EXPORT_SCHEDULE", "0 2 * * *"),
		NotificationRetention: getEnvDuration("MERIDIAN_NOTIFICATION_RETENTION", 30*24*time.Hour),
		PruneSchedule:         getEnv("MERIDIAN_PRUNE_SCHEDULE", "30 2 * * *"),
	}
}

// loadObservabilityConfig loads observability configuration from environment
func loadObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:           parseLogLevel(getEnv("MERIDIAN_LOG_LEVEL", "info")),
		MetricsEnabled:     getEnvBool("MERIDIAN_METRICS_ENABLED", true),
		OTelEnabled:        getEnvBool("MERIDIAN_OTEL_ENABLED", false),
		OTelEndpoint:       getEnv("MERIDIAN_OTEL_ENDPOINT", "localhost:4317"),
		OTelServiceName:    getEnv("MERIDIAN_OTEL_SERVICE_NAME", "meridian-crm"),
		OTelServiceVersion: getEnv("MERIDIAN_OTEL_SERVICE_VERSION", "1.0.0"),
		OTelInsecure:       getEnvBool("MERIDIAN_OTEL_INSECURE", true),
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}

	if c.Database.URL == "" {
		return fmt.Errorf("postgres URL is required")
	}

	if c.Auth.AccessTokenTTL <= 0 {
		return fmt.Errorf("access token TTL must be positive")
	}
	if c.Auth.RefreshTokenTTL <= c.Auth.AccessTokenTTL {
		return fmt.Errorf("refresh token TTL must exceed access token TTL")
	}
	if c.Auth.BcryptCost < 10 || c.Auth.BcryptCost > 31 {
		return fmt.Errorf("bcrypt cost must be between 10 and 31")
	}

	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
	}

	return nil
}

// parseLogLevel parses a log level string
func parseLogLevel(level string) observability.LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return observability.DebugLevel
	case "info":
		return observability.InfoLevel
	case "warn", "warning":
		return observability.WarnLevel
	case "error":
		return observability.ErrorLevel
	default:
		return observability.InfoLevel
	}
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
