package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/gatehouse/pkg/observability"
)

func TestGetEnvHelpers(t *testing.T) {
	t.Setenv("TEST_STRING", "custom")
	t.Setenv("TEST_BOOL_TRUE", "TRUE")
	t.Setenv("TEST_BOOL_ONE", "1")
	t.Setenv("TEST_BOOL_FALSE", "false")
	t.Setenv("TEST_INT", "42")
	t.Setenv("TEST_INT_BAD", "forty-two")
	t.Setenv("TEST_DURATION", "250ms")
	t.Setenv("TEST_DURATION_BAD", "soon")

	assert.Equal(t, "custom", getEnv("TEST_STRING", "default"))
	assert.Equal(t, "default", getEnv("TEST_STRING_UNSET", "default"))

	assert.True(t, getEnvBool("TEST_BOOL_TRUE", false))
	assert.True(t, getEnvBool("TEST_BOOL_ONE", false))
	assert.False(t, getEnvBool("TEST_BOOL_FALSE", true))
	assert.True(t, getEnvBool("TEST_BOOL_UNSET", true))

	assert.Equal(t, 42, getEnvInt("TEST_INT", 10))
	assert.Equal(t, 10, getEnvInt("TEST_INT_BAD", 10))
	assert.Equal(t, 10, getEnvInt("TEST_INT_UNSET", 10))

	assert.Equal(t, 250*time.Millisecond, getEnvDuration("TEST_DURATION", time.Second))
	assert.Equal(t, time.Second, getEnvDuration("TEST_DURATION_BAD", time.Second))
}

func TestEnvPresent(t *testing.T) {
	t.Setenv("TEST_PRESENT_EMPTY", "")
	t.Setenv("TEST_PRESENT_FALSE", "false")

	assert.True(t, envPresent("TEST_PRESENT_EMPTY"))
	assert.True(t, envPresent("TEST_PRESENT_FALSE"))
	assert.False(t, envPresent("TEST_PRESENT_NEVER_SET_ANYWHERE"))
}

func TestLoadAuthConfig_Defaults(t *testing.T) {
	cfg := loadAuthConfig()

	assert.Equal(t, 10*time.Minute, cfg.VerifiedRefresh)
	assert.Equal(t, 10*time.Second, cfg.UnverifiedRefresh)
	assert.Equal(t, 3, cfg.VerifyAttempts)
	assert.Equal(t, 500*time.Millisecond, cfg.VerifyDelay)
	assert.Equal(t, 60*time.Second, cfg.SweepInterval)
	assert.Equal(t, "@every 15s", cfg.SweepSchedule)
}

func TestLoadAuthConfig_Overrides(t *testing.T) {
	t.Setenv("GATEHOUSE_OIDC_ISSUER", "https://issuer.example.com/")
	t.Setenv("GATEHOUSE_VERIFIED_REFRESH", "5m")
	t.Setenv("GATEHOUSE_VERIFY_ATTEMPTS", "5")

	cfg := loadAuthConfig()

	assert.Equal(t, "https://issuer.example.com/", cfg.OIDCIssuer)
	assert.Equal(t, 5*time.Minute, cfg.VerifiedRefresh)
	assert.Equal(t, 5, cfg.VerifyAttempts)
}

func TestLoadSecurityConfig(t *testing.T) {
	t.Setenv("SKIP_SECURITY", "")

	cfg := loadSecurityConfig()
	assert.True(t, cfg.SkipSecurity)
}

func TestLoadObservabilityConfig(t *testing.T) {
	t.Setenv("GATEHOUSE_LOG_LEVEL", "debug")
	t.Setenv("GATEHOUSE_OTEL_ENABLED", "true")

	cfg := loadObservabilityConfig()
	assert.Equal(t, observability.DebugLevel, cfg.LogLevel)
	assert.True(t, cfg.OTelEnabled)
	assert.Equal(t, "gatehouse", cfg.OTelServiceName)
}

func validConfig() *Config {
	return &Config{
		Server: ServerConfig{Port: "8080", HealthPort: "9090"},
		Auth: AuthConfig{
			OIDCIssuer:        "https://issuer.example.com/",
			VerifiedRefresh:   10 * time.Minute,
			UnverifiedRefresh: 10 * time.Second,
			VerifyAttempts:    3,
			SweepInterval:     time.Minute,
			SweepSchedule:     "@every 15s",
		},
		Storage: StorageConfig{PostgresURL: "postgres://localhost/gatehouse"},
		Limits:  LimitsConfig{CacheSize: 16},
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{
			name:    "missing port",
			mutate:  func(c *Config) { c.Server.Port = "" },
			wantErr: "server port is required",
		},
		{
			name:    "same ports",
			mutate:  func(c *Config) { c.Server.HealthPort = "8080" },
			wantErr: "must be different",
		},
		{
			name:    "missing postgres",
			mutate:  func(c *Config) { c.Storage.PostgresURL = "" },
			wantErr: "postgres URL is required",
		},
		{
			name:    "missing issuer",
			mutate:  func(c *Config) { c.Auth.OIDCIssuer = "" },
			wantErr: "OIDC issuer is required",
		},
		{
			name: "missing issuer with security skipped",
			mutate: func(c *Config) {
				c.Auth.OIDCIssuer = ""
				c.Security.SkipSecurity = true
			},
		},
		{
			name:    "zero attempts",
			mutate:  func(c *Config) { c.Auth.VerifyAttempts = 0 },
			wantErr: "verify attempts must be at least 1",
		},
		{
			name:    "zero refresh window",
			mutate:  func(c *Config) { c.Auth.UnverifiedRefresh = 0 },
			wantErr: "refresh windows must be positive",
		},
		{
			name:    "empty sweep schedule",
			mutate:  func(c *Config) { c.Auth.SweepSchedule = "" },
			wantErr: "sweep schedule is required",
		},
		{
			name:    "zero cache size",
			mutate:  func(c *Config) { c.Limits.CacheSize = 0 },
			wantErr: "limits cache size",
		},
		{
			name: "otel without endpoint",
			mutate: func(c *Config) {
				c.Observability.OTelEnabled = true
				c.Observability.OTelServiceName = "gatehouse"
			},
			wantErr: "endpoint is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadConfig(t *testing.T) {
	t.Setenv("GATEHOUSE_POSTGRES_URL", "postgres://localhost/gatehouse")
	t.Setenv("GATEHOUSE_OIDC_ISSUER", "https://issuer.example.com/")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 1024, cfg.Limits.CacheSize)
}

func TestLoadConfig_Invalid(t *testing.T) {
	t.Setenv("GATEHOUSE_POSTGRES_URL", "")

	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "configuration validation failed")
}
