package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/samobrien878/Williams-Data-Pipline/internal/shared/testutil"
	"github.com/samobrien878/Williams-Data-Pipline/pkg/contracts"
	api "github.com/samobrien878/Williams-Data-Pipline/pkg/contracts/api/v1"
)

// MockHealthService is a mock implementation of HealthServiceInterface
type MockHealthService struct {
	mock.Mock
}

func (m *MockHealthService) HealthCheck(ctx context.Context) api.HealthResponse {
	return m.Called().Get(0).(api.HealthResponse)
}

func (m *MockHealthService) Version() contracts.VersionInfo {
	return m.Called().Get(0).(contracts.VersionInfo)
}

func TestHealthHandler_HealthCheck(t *testing.T) {
	tests := []struct {
		name       string
		status     string
		wantStatus int
	}{
		{"ok", api.StatusOK, http.StatusOK},
		{"degraded still serves", api.StatusDegraded, http.StatusOK},
		{"down", api.StatusDown, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockHealthService)
			svc.On("HealthCheck").Return(api.HealthResponse{
				Status:    tt.status,
				Timestamp: time.Now().UTC(),
				Version:   contracts.Version,
				Components: map[string]api.ComponentHealth{
					"store": {Status: tt.status},
				},
			})
			logger, _ := testutil.NewTestLogger()
			h := NewHealthHandler(svc, logger)

			rec := httptest.NewRecorder()
			h.HealthCheck(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

			assert.Equal(t, tt.wantStatus, rec.Code)
			var body api.HealthResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.status, body.Status)
			assert.Equal(t, tt.status, body.Components["store"].Status)
			svc.AssertExpectations(t)
		})
	}
}

func TestHealthHandler_Version(t *testing.T) {
	svc := new(MockHealthService)
	svc.On("Version").Return(contracts.GetVersionInfo())
	logger, _ := testutil.NewTestLogger()

	rec := httptest.NewRecorder()
	NewHealthHandler(svc, logger).Version(rec, httptest.NewRequest(http.MethodGet, "/api/version", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	var body contracts.VersionInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, contracts.Version, body.Version)
}

func TestMetricsHandler(t *testing.T) {
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("# HELP ingest_files_total Files ingested successfully\n"))
	})

	rec := httptest.NewRecorder()
	NewMetricsHandler(inner).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, rec.Body.String(), "ingest_files_total")

	rec = httptest.NewRecorder()
	NewMetricsHandler(nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}
