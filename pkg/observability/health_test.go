package observability

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthChecker_Check(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	checker := NewHealthChecker(db, client, "test")

	mock.ExpectPing()
	status := checker.Check(context.Background())
	assert.Equal(t, StatusHealthy, status.Status)
	assert.Equal(t, "test", status.Version)
	assert.Equal(t, StatusHealthy, status.Dependencies["redis"].Status)

	mr.Close()
	mock.ExpectPing()
	status = checker.Check(context.Background())
	assert.Equal(t, StatusDegraded, status.Status)
	assert.Equal(t, StatusUnhealthy, status.Dependencies["redis"].Status)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHealthChecker_ReadinessUnhealthy(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectPing().WillReturnError(assert.AnError)

	rec := httptest.NewRecorder()
	NewHealthChecker(db, nil, "").Readiness(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var status HealthStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, StatusUnhealthy, status.Status)
	assert.Equal(t, assert.AnError.Error(), status.Dependencies["database"].Message)
}

func TestHealthChecker_PingFunc(t *testing.T) {
	checker := NewHealthChecker(PingFunc(func(ctx context.Context) error {
		return assert.AnError
	}), nil, "")

	status := checker.Check(context.Background())
	assert.Equal(t, StatusUnhealthy, status.Status)
	assert.Equal(t, assert.AnError.Error(), status.Dependencies["database"].Message)
}
