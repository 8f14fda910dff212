// Package config loads gatehouse configuration from environment variables.
//
// Server settings:
//
//	GATEHOUSE_HOST="0.0.0.0"
//	GATEHOUSE_PORT="8080"
//	GATEHOUSE_HEALTH_PORT="9090"
//
// Identity verification and session cache:
//
//	GATEHOUSE_OIDC_ISSUER="https://tenant.example.auth0.com/"
//	GATEHOUSE_VERIFIED_REFRESH="10m"
//	GATEHOUSE_UNVERIFIED_REFRESH="10s"
//	GATEHOUSE_VERIFY_ATTEMPTS="3"
//	GATEHOUSE_VERIFY_DELAY="500ms"
//	GATEHOUSE_SWEEP_INTERVAL="60s"
//	GATEHOUSE_SWEEP_SCHEDULE="@every 15s"
//
// Storage:
//
//	GATEHOUSE_POSTGRES_URL="postgres://gatehouse@localhost/gatehouse?sslmode=disable"
//	GATEHOUSE_REDIS_URL="redis://localhost:6379/0"
//
// Bypass switches, kept under their historical names:
//
//	SKIP_SECURITY   every request runs as the local default user with all roles
//	SKIP_LIMITS     plan limits are never enforced
//
// Both switches are enabled by presence alone.
package config
