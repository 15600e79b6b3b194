package jwtutil

import (
	"testing"
	"time"

	"saas-admin/pkg/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.JWTConfig {
	return &config.JWTConfig{
		System: config.DomainSecrets{
			AccessSecret:  "system-access",
			RefreshSecret: "system-refresh",
			AccessTTL:     time.Hour,
			RefreshTTL:    24 * time.Hour,
		},
		Tenant: config.DomainSecrets{
			AccessSecret:  "tenant-access",
			RefreshSecret: "tenant-refresh",
			AccessTTL:     time.Hour,
			RefreshTTL:    24 * time.Hour,
		},
		User: config.DomainSecrets{
			AccessSecret:  "user-access",
			RefreshSecret: "user-refresh",
			AccessTTL:     time.Hour,
			RefreshTTL:    24 * time.Hour,
		},
	}
}

func TestGeneratePairRoundTrip(t *testing.T) {
	Initialize(testConfig())

	tenantID := uint(7)
	pair, err := GeneratePair(DomainTenant, 42, "admin", "tenant_acme", &tenantID, []string{"tenant_admin"})
	require.NoError(t, err)
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)
	require.NotEmpty(t, pair.RefreshID)

	claims, err := ValidateAccess(DomainTenant, pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, uint(42), claims.UserID)
	assert.Equal(t, "admin", claims.Username)
	assert.Equal(t, "tenant_acme", claims.SchemaName)
	assert.Equal(t, "tenant", claims.Domain)
	require.NotNil(t, claims.TenantID)
	assert.Equal(t, uint(7), *claims.TenantID)
	assert.Equal(t, []string{"tenant_admin"}, claims.Roles)

	refreshClaims, err := ValidateRefresh(DomainTenant, pair.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, pair.RefreshID, refreshClaims.ID)
	assert.Equal(t, "tenant_acme", refreshClaims.SchemaName)
}

func TestDomainSeparation(t *testing.T) {
	Initialize(testConfig())

	// Same subject in both domains; neither token may cross over.
	systemPair, err := GeneratePair(DomainSystem, 1, "admin", "", nil, nil)
	require.NoError(t, err)
	tenantPair, err := GeneratePair(DomainTenant, 1, "admin", "tenant_a", nil, nil)
	require.NoError(t, err)

	_, err = ValidateAccess(DomainTenant, systemPair.AccessToken)
	assert.Error(t, err, "system token must fail tenant verification")
	_, err = ValidateAccess(DomainSystem, tenantPair.AccessToken)
	assert.Error(t, err, "tenant token must fail system verification")
	_, err = ValidateAccess(DomainUser, tenantPair.AccessToken)
	assert.Error(t, err, "tenant token must fail user verification")

	// Each token still verifies in its own domain.
	_, err = ValidateAccess(DomainSystem, systemPair.AccessToken)
	assert.NoError(t, err)
	_, err = ValidateAccess(DomainTenant, tenantPair.AccessToken)
	assert.NoError(t, err)
}

func TestKindSeparation(t *testing.T) {
	Initialize(testConfig())

	pair, err := GeneratePair(DomainSystem, 1, "admin", "", nil, nil)
	require.NoError(t, err)

	_, err = ValidateAccess(DomainSystem, pair.RefreshToken)
	assert.Error(t, err, "refresh token must not pass access validation")
	_, err = ValidateRefresh(DomainSystem, pair.AccessToken)
	assert.Error(t, err, "access token must not pass refresh validation")
}

func TestDomainMismatchWithSharedSecret(t *testing.T) {
	// Even when two domains are misconfigured with the same secret, the
	// embedded domain claim still blocks cross-domain use.
	cfg := testConfig()
	cfg.Tenant.AccessSecret = cfg.System.AccessSecret
	Initialize(cfg)

	pair, err := GeneratePair(DomainSystem, 1, "admin", "", nil, nil)
	require.NoError(t, err)

	_, err = ValidateAccess(DomainTenant, pair.AccessToken)
	assert.ErrorIs(t, err, ErrWrongDomain)
}

func TestExpiredTokenRejected(t *testing.T) {
	cfg := testConfig()
	cfg.System.AccessTTL = -time.Minute
	Initialize(cfg)

	pair, err := GeneratePair(DomainSystem, 1, "admin", "", nil, nil)
	require.NoError(t, err)

	_, err = ValidateAccess(DomainSystem, pair.AccessToken)
	assert.Error(t, err)
}

func TestUninitializedRejected(t *testing.T) {
	Initialize(testConfig())
	pair, err := GeneratePair(DomainSystem, 1, "admin", "", nil, nil)
	require.NoError(t, err)

	cfg = nil
	defer Initialize(testConfig())

	_, err = ValidateAccess(DomainSystem, pair.AccessToken)
	assert.Error(t, err)
	_, err = GeneratePair(DomainSystem, 1, "admin", "", nil, nil)
	assert.Error(t, err)
}
