package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"saas-admin/pkg/config"
	"saas-admin/pkg/jwtutil"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func initJWT(t *testing.T) {
	t.Helper()
	jwtutil.Initialize(&config.JWTConfig{
		System: config.DomainSecrets{AccessSecret: "sa", RefreshSecret: "sr", AccessTTL: time.Hour, RefreshTTL: time.Hour},
		Tenant: config.DomainSecrets{AccessSecret: "ta", RefreshSecret: "tr", AccessTTL: time.Hour, RefreshTTL: time.Hour},
		User:   config.DomainSecrets{AccessSecret: "ua", RefreshSecret: "ur", AccessTTL: time.Hour, RefreshTTL: time.Hour},
	})
}

func doRequest(t *testing.T, mw echo.MiddlewareFunc, token, path, param string) (*httptest.ResponseRecorder, *jwtutil.Claims) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if path != "" {
		c.SetPath(path)
		c.SetParamNames("schemaName")
		c.SetParamValues(param)
	}

	var seen *jwtutil.Claims
	handler := mw(func(c echo.Context) error {
		seen = GetClaims(c)
		return c.NoContent(http.StatusOK)
	})
	require.NoError(t, handler(c))
	return rec, seen
}

func TestRequireDomainMissingToken(t *testing.T) {
	initJWT(t)
	rec, _ := doRequest(t, RequireDomain(jwtutil.DomainSystem), "", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireDomainMalformedHeader(t *testing.T) {
	initJWT(t)
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Token abc")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := RequireDomain(jwtutil.DomainSystem)(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})
	require.NoError(t, handler(c))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireDomainAcceptsOwnToken(t *testing.T) {
	initJWT(t)
	pair, err := jwtutil.GeneratePair(jwtutil.DomainSystem, 9, "root", "", nil, []string{"admin"})
	require.NoError(t, err)

	rec, claims := doRequest(t, RequireDomain(jwtutil.DomainSystem), pair.AccessToken, "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, claims)
	assert.Equal(t, uint(9), claims.UserID)
	assert.Equal(t, "root", claims.Username)
}

func TestRequireDomainRejectsCrossDomainToken(t *testing.T) {
	initJWT(t)
	pair, err := jwtutil.GeneratePair(jwtutil.DomainTenant, 9, "root", "tenant_a", nil, nil)
	require.NoError(t, err)

	rec, claims := doRequest(t, RequireDomain(jwtutil.DomainSystem), pair.AccessToken, "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Nil(t, claims)
}

func TestRequireDomainRejectsRefreshToken(t *testing.T) {
	initJWT(t)
	pair, err := jwtutil.GeneratePair(jwtutil.DomainSystem, 9, "root", "", nil, nil)
	require.NoError(t, err)

	rec, _ := doRequest(t, RequireDomain(jwtutil.DomainSystem), pair.RefreshToken, "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMatchSchemaParam(t *testing.T) {
	initJWT(t)
	pair, err := jwtutil.GeneratePair(jwtutil.DomainUser, 3, "alice", "tenant_a", nil, nil)
	require.NoError(t, err)

	chain := func(next echo.HandlerFunc) echo.HandlerFunc {
		return RequireDomain(jwtutil.DomainUser)(MatchSchemaParam(next))
	}

	// Path matches the token's schema claim.
	rec, claims := doRequest(t, chain, pair.AccessToken, "/auth/user/:schemaName/profile", "tenant_a")
	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, claims)
	assert.Equal(t, "tenant_a", claims.SchemaName)

	// A different tenant's schema in the path must be rejected even though
	// the token itself is valid.
	rec, _ = doRequest(t, chain, pair.AccessToken, "/auth/user/:schemaName/profile", "tenant_b")
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestMatchSchemaParamWithoutClaims(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := MatchSchemaParam(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})
	require.NoError(t, handler(c))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
