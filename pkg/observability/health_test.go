package observability

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ok(context.Context) error { return nil }

func failing(context.Context) error { return errors.New("down") }

func TestHealthChecker_Check(t *testing.T) {
	tests := []struct {
		name   string
		setup  func(h *HealthChecker)
		status string
	}{
		{"no checks", func(h *HealthChecker) {}, StatusHealthy},
		{"all healthy", func(h *HealthChecker) { h.Register("routers", true, ok) }, StatusHealthy},
		{"optional failing", func(h *HealthChecker) {
			h.Register("routers", true, ok)
			h.Register("otel", false, failing)
		}, StatusDegraded},
		{"critical failing", func(h *HealthChecker) {
			h.Register("routers", true, failing)
			h.Register("otel", false, failing)
		}, StatusUnhealthy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHealthChecker("test")
			tt.setup(h)
			got := h.Check(context.Background())
			assert.Equal(t, tt.status, got.Status)
			assert.Equal(t, "test", got.Version)
		})
	}
}

func TestHealthChecker_Readiness(t *testing.T) {
	h := NewHealthChecker("test")
	h.Register("bundle", true, failing)

	rec := httptest.NewRecorder()
	h.Readiness(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var status HealthStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, "down", status.Dependencies["bundle"].Message)

	rec = httptest.NewRecorder()
	h.Liveness(rec, httptest.NewRequest(http.MethodGet, "/livez", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
