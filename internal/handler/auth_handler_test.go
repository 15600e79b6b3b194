package handler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"saas-admin/prometheus"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// A logout that revoked nothing must not move the active tokens gauge,
// otherwise repeated empty logouts drive it negative.
func TestLogoutWithoutRevocationLeavesGauge(t *testing.T) {
	e := echo.New()
	before := testutil.ToFloat64(prometheus.ActiveTokensGauge)

	// No body at all.
	req := httptest.NewRequest(http.MethodPost, "/auth/system/logout", nil)
	rec := httptest.NewRecorder()
	require.NoError(t, SystemLogout(e.NewContext(req, rec)))
	assert.Equal(t, http.StatusOK, rec.Code)

	// A garbage token is not a revocation either.
	req = httptest.NewRequest(http.MethodPost, "/auth/system/logout",
		strings.NewReader(`{"refresh_token":"not-a-token"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec = httptest.NewRecorder()
	require.NoError(t, SystemLogout(e.NewContext(req, rec)))
	assert.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, before, testutil.ToFloat64(prometheus.ActiveTokensGauge))
}
