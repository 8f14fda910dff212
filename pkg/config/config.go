package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/platinummonkey/gatehouse/pkg/observability"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig
	Security      SecurityConfig
	Auth          AuthConfig
	Storage       StorageConfig
	Limits        LimitsConfig
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

// SecurityConfig holds the deployment-wide bypass switches. Both are
// enabled by the mere presence of the variable, whatever its value.
type SecurityConfig struct {
	SkipSecurity bool
	SkipLimits   bool
}

// AuthConfig holds identity verification and session cache settings
type AuthConfig struct {
	OIDCIssuer       string
	OIDCClientID     string
	OIDCClientSecret string

	VerifiedRefresh   time.Duration
	UnverifiedRefresh time.Duration
	VerifyAttempts    int
	VerifyDelay       time.Duration
	VerifyTimeout     time.Duration

	SweepInterval time.Duration
	SweepSchedule string

	// SessionTTLCap bounds how long a session lives in the shared Redis mirror
	SessionTTLCap time.Duration
}

// StorageConfig holds database and cache connection settings
type StorageConfig struct {
	PostgresURL         string
	PostgresReplicaURLs string
	PostgresMaxConns    int
	PostgresMinConns    int
	PostgresTimeout     time.Duration
	ConnMaxLifetime     time.Duration

	RedisURL      string
	RedisPassword string
	RedisDB       int
	RedisPoolSize int
}

// LimitsConfig holds service limits caching settings
type LimitsConfig struct {
	CacheSize int
	CacheTTL  time.Duration

	// SupportWebhookURL receives a Slack-formatted message per exceeded
	// limit; empty means notifications are only logged
	SupportWebhookURL string
	NotifyTimeout     time.Duration
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel       observability.LogLevel
	MetricsEnabled bool

	OTelEnabled        bool
	OTelEndpoint       string
	OTelServiceName    string
	OTelServiceVersion string
	OTelInsecure       bool
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server:        loadServerConfig(),
		Security:      loadSecurityConfig(),
		Auth:          loadAuthConfig(),
		Storage:       loadStorageConfig(),
		Limits:        loadLimitsConfig(),
		Observability: loadObservabilityConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func loadServerConfig() ServerConfig {
	return ServerConfig{
		Host:            getEnv("GATEHOUSE_HOST", "0.0.0.0"),
		Port:            getEnv("GATEHOUSE_PORT", "8080"),
		ReadTimeout:     getEnvDuration("GATEHOUSE_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDuration("GATEHOUSE_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:     getEnvDuration("GATEHOUSE_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvDuration("GATEHOUSE_SHUTDOWN_TIMEOUT", 30*time.Second),
		HealthPort:      getEnv("GATEHOUSE_HEALTH_PORT", "9090"),
	}
}

func loadSecurityConfig() SecurityConfig {
	return SecurityConfig{
		SkipSecurity: envPresent("SKIP_SECURITY"),
		SkipLimits:   envPresent("SKIP_LIMITS"),
	}
}

func loadAuthConfig() AuthConfig {
	return AuthConfig{
		OIDCIssuer:        getEnv("GATEHOUSE_OIDC_ISSUER", ""),
		OIDCClientID:      getEnv("GATEHOUSE_OIDC_CLIENT_ID", ""),
		OIDCClientSecret:  getEnv("GATEHOUSE_OIDC_CLIENT_SECRET", ""),
		VerifiedRefresh:   getEnvDuration("GATEHOUSE_VERIFIED_REFRESH", 10*time.Minute),
		UnverifiedRefresh: getEnvDuration("GATEHOUSE_UNVERIFIED_REFRESH", 10*time.Second),
		VerifyAttempts:    getEnvInt("GATEHOUSE_VERIFY_ATTEMPTS", 3),
		VerifyDelay:       getEnvDuration("GATEHOUSE_VERIFY_DELAY", 500*time.Millisecond),
		VerifyTimeout:     getEnvDuration("GATEHOUSE_VERIFY_TIMEOUT", 5*time.Second),
		SweepInterval:     getEnvDuration("GATEHOUSE_SWEEP_INTERVAL", 60*time.Second),
		SweepSchedule:     getEnv("GATEHOUSE_SWEEP_SCHEDULE", "@every 15s"),
		SessionTTLCap:     getEnvDuration("GATEHOUSE_SESSION_TTL_CAP", time.Hour),
	}
}

func loadStorageConfig() StorageConfig {
	return StorageConfig{
		PostgresURL:         getEnv("GATEHOUSE_POSTGRES_URL", ""),
		PostgresReplicaURLs: getEnv("GATEHOUSE_POSTGRES_REPLICA_URLS", ""),
		PostgresMaxConns:    getEnvInt("GATEHOUSE_POSTGRES_MAX_CONNS", 20),
		PostgresMinConns:    getEnvInt("GATEHOUSE_POSTGRES_MIN_CONNS", 5),
		PostgresTimeout:     getEnvDuration("GATEHOUSE_POSTGRES_TIMEOUT", 10*time.Second),
		ConnMaxLifetime:     getEnvDuration("GATEHOUSE_POSTGRES_CONN_MAX_LIFETIME", 30*time.Minute),
		RedisURL:            getEnv("GATEHOUSE_REDIS_URL", ""),
		RedisPassword:       getEnv("GATEHOUSE_REDIS_PASSWORD", ""),
		RedisDB:             getEnvInt("GATEHOUSE_REDIS_DB", 0),
		RedisPoolSize:       getEnvInt("GATEHOUSE_REDIS_POOL_SIZE", 10),
	}
}

func loadLimitsConfig() LimitsConfig {
	return LimitsConfig{
		CacheSize:         getEnvInt("GATEHOUSE_LIMITS_CACHE_SIZE", 1024),
		CacheTTL:          getEnvDuration("GATEHOUSE_LIMITS_CACHE_TTL", 5*time.Minute),
		SupportWebhookURL: getEnv("GATEHOUSE_SUPPORT_WEBHOOK_URL", ""),
		NotifyTimeout:     getEnvDuration("GATEHOUSE_NOTIFY_TIMEOUT", 30*time.Second),
	}
}

func loadObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:           observability.ParseLogLevel(getEnv("GATEHOUSE_LOG_LEVEL", "info")),
		MetricsEnabled:     getEnvBool("GATEHOUSE_METRICS_ENABLED", true),
		OTelEnabled:        getEnvBool("GATEHOUSE_OTEL_ENABLED", false),
		OTelEndpoint:       getEnv("GATEHOUSE_OTEL_ENDPOINT", "localhost:4317"),
		OTelServiceName:    getEnv("GATEHOUSE_OTEL_SERVICE_NAME", "gatehouse"),
		OTelServiceVersion: getEnv("GATEHOUSE_OTEL_SERVICE_VERSION", "1.0.0"),
		OTelInsecure:       getEnvBool("GATEHOUSE_OTEL_INSECURE", true),
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

	if c.Storage.PostgresURL == "" {
		return fmt.Errorf("postgres URL is required")
	}

	if !c.Security.SkipSecurity && c.Auth.OIDCIssuer == "" {
		return fmt.Errorf("OIDC issuer is required unless SKIP_SECURITY is set")
	}
	if c.Auth.VerifiedRefresh <= 0 || c.Auth.UnverifiedRefresh <= 0 {
		return fmt.Errorf("refresh windows must be positive")
	}
	if c.Auth.VerifyAttempts < 1 {
		return fmt.Errorf("verify attempts must be at least 1, got %d", c.Auth.VerifyAttempts)
	}
	if c.Auth.SweepInterval <= 0 {
		return fmt.Errorf("sweep interval must be positive")
	}
	if c.Auth.SweepSchedule == "" {
		return fmt.Errorf("sweep schedule is required")
	}

	if c.Limits.CacheSize < 1 {
		return fmt.Errorf("limits cache size must be at least 1, got %d", c.Limits.CacheSize)
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

// envPresent reports whether the variable is set at all
func envPresent(key string) bool {
	_, ok := os.LookupEnv(key)
	return ok
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
