package auth

import (
	"context"
	"testing"
	"time"

	"saas-admin/internal/apperr"
	"saas-admin/internal/model"
	"saas-admin/pkg/config"
	"saas-admin/pkg/jwtutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// fakeLookup scripts the directory and tenant-schema reads behind the gate
// sequence and records which schemas had their users table read.
type fakeLookup struct {
	tenants   map[string]*model.Tenant
	users     map[string]map[string]*model.TenantUser
	userReads []string
}

func (f *fakeLookup) tenantBySchema(ctx context.Context, db *gorm.DB, schemaName string) (*model.Tenant, error) {
	tenant, ok := f.tenants[schemaName]
	if !ok {
		return nil, &apperr.NotFoundError{Resource: "tenant"}
	}
	return tenant, nil
}

func (f *fakeLookup) userByUsername(ctx context.Context, db *gorm.DB, schemaName, username string) (*model.TenantUser, error) {
	f.userReads = append(f.userReads, schemaName)
	user, ok := f.users[schemaName][username]
	if !ok {
		return nil, &apperr.NotFoundError{Resource: "user"}
	}
	return user, nil
}

func (f *fakeLookup) rolesForUser(ctx context.Context, db *gorm.DB, schemaName string, userID uint) ([]string, error) {
	return []string{"tenant_admin"}, nil
}

func (f *fakeLookup) touchLastLogin(ctx context.Context, db *gorm.DB, schemaName string, userID uint) error {
	return nil
}

func swapStore(t *testing.T, f lookupStore) {
	t.Helper()
	old := store
	store = f
	t.Cleanup(func() { store = old })
}

func hashOf(t *testing.T, password string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(hash)
}

func initJWT(t *testing.T) {
	t.Helper()
	jwtutil.Initialize(&config.JWTConfig{
		System: config.DomainSecrets{AccessSecret: "sa", RefreshSecret: "sr", AccessTTL: time.Hour, RefreshTTL: time.Hour},
		Tenant: config.DomainSecrets{AccessSecret: "ta", RefreshSecret: "tr", AccessTTL: time.Hour, RefreshTTL: time.Hour},
		User:   config.DomainSecrets{AccessSecret: "ua", RefreshSecret: "ur", AccessTTL: time.Hour, RefreshTTL: time.Hour},
	})
}

func TestLoginRequiresCredentials(t *testing.T) {
	for _, domain := range []jwtutil.Domain{jwtutil.DomainSystem, jwtutil.DomainTenant, jwtutil.DomainUser} {
		_, err := Login(context.Background(), nil, domain, "", "secret", "tenant_a")
		var ve *apperr.ValidationError
		require.ErrorAs(t, err, &ve, "domain %s", domain)

		_, err = Login(context.Background(), nil, domain, "admin", "", "tenant_a")
		require.ErrorAs(t, err, &ve, "domain %s", domain)
	}
}

func TestLoginRejectsMalformedSchemaName(t *testing.T) {
	for _, name := range []string{"", "acme; DROP TABLE x", "bad-name", "a.b"} {
		_, err := Login(context.Background(), nil, jwtutil.DomainTenant, "admin", "secret", name)
		var ve *apperr.ValidationError
		require.ErrorAs(t, err, &ve, "schema %q", name)
		assert.Equal(t, "schema_name", ve.Field)
	}
}

func TestRefreshRejectsGarbageToken(t *testing.T) {
	initJWT(t)

	_, err := Refresh(context.Background(), nil, jwtutil.DomainSystem, "not-a-token")
	var ae *apperr.AuthenticationError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, ReasonInvalidToken, ae.Reason)
	assert.Equal(t, "invalid credentials", ae.Error())
}

func TestRefreshRejectsCrossDomainToken(t *testing.T) {
	initJWT(t)

	pair, err := jwtutil.GeneratePair(jwtutil.DomainSystem, 1, "admin", "", nil, nil)
	require.NoError(t, err)

	_, err = Refresh(context.Background(), nil, jwtutil.DomainTenant, pair.RefreshToken)
	var ae *apperr.AuthenticationError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, ReasonInvalidToken, ae.Reason)
}

func TestRefreshRejectsAccessToken(t *testing.T) {
	initJWT(t)

	pair, err := jwtutil.GeneratePair(jwtutil.DomainSystem, 1, "admin", "", nil, nil)
	require.NoError(t, err)

	_, err = Refresh(context.Background(), nil, jwtutil.DomainSystem, pair.AccessToken)
	var ae *apperr.AuthenticationError
	require.ErrorAs(t, err, &ae)
}

func TestLoginBlockedForSuspendedTenant(t *testing.T) {
	initJWT(t)
	f := &fakeLookup{
		tenants: map[string]*model.Tenant{
			"tenant_a": {ID: 1, Name: "Acme", SchemaName: "tenant_a", Status: model.TenantStatusSuspended},
		},
		users: map[string]map[string]*model.TenantUser{
			"tenant_a": {"admin": {ID: 1, Username: "admin", Password: hashOf(t, "secret"), Status: "active"}},
		},
	}
	swapStore(t, f)

	// Correct credentials still fail while the tenant is suspended, with the
	// same client message as any other gate.
	_, err := Login(context.Background(), nil, jwtutil.DomainTenant, "admin", "secret", "tenant_a")
	var ae *apperr.AuthenticationError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, ReasonTenantBlocked, ae.Reason)
	assert.Equal(t, "invalid credentials", ae.Error())

	// The tenant gate fires before any read of the tenant's users table.
	assert.Empty(t, f.userReads)
}

func TestLoginReadsOnlyTheNamedSchema(t *testing.T) {
	initJWT(t)
	f := &fakeLookup{
		tenants: map[string]*model.Tenant{
			"tenant_a": {ID: 1, Name: "Acme", SchemaName: "tenant_a", Status: model.TenantStatusActive},
			"tenant_b": {ID: 2, Name: "Beta", SchemaName: "tenant_b", Status: model.TenantStatusActive},
		},
		users: map[string]map[string]*model.TenantUser{
			"tenant_a": {},
			"tenant_b": {"alice": {ID: 7, Username: "alice", Password: hashOf(t, "secret"), Status: "active"}},
		},
	}
	swapStore(t, f)

	// alice exists only in tenant_b; logging into tenant_a must not find her
	// and must not touch any other tenant's tables.
	_, err := Login(context.Background(), nil, jwtutil.DomainUser, "alice", "secret", "tenant_a")
	var ae *apperr.AuthenticationError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, ReasonUserNotFound, ae.Reason)
	assert.Equal(t, []string{"tenant_a"}, f.userReads)

	// Against her own tenant the login succeeds and the token is pinned to
	// that schema.
	result, err := Login(context.Background(), nil, jwtutil.DomainUser, "alice", "secret", "tenant_b")
	require.NoError(t, err)
	claims, err := jwtutil.ValidateAccess(jwtutil.DomainUser, result.Tokens.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "tenant_b", claims.SchemaName)
	assert.Equal(t, []string{"tenant_a", "tenant_b"}, f.userReads)
}

func TestRefreshBlockedForSuspendedTenant(t *testing.T) {
	initJWT(t)
	f := &fakeLookup{
		tenants: map[string]*model.Tenant{
			"tenant_a": {ID: 1, Name: "Acme", SchemaName: "tenant_a", Status: model.TenantStatusActive},
		},
		users: map[string]map[string]*model.TenantUser{
			"tenant_a": {"admin": {ID: 1, Username: "admin", Password: hashOf(t, "secret"), Status: "active"}},
		},
	}
	swapStore(t, f)

	result, err := Login(context.Background(), nil, jwtutil.DomainTenant, "admin", "secret", "tenant_a")
	require.NoError(t, err)

	// Suspending the tenant cuts off refresh, not just login.
	f.tenants["tenant_a"].Status = model.TenantStatusSuspended
	_, err = Refresh(context.Background(), nil, jwtutil.DomainTenant, result.Tokens.RefreshToken)
	var ae *apperr.AuthenticationError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, ReasonTenantBlocked, ae.Reason)
}

func TestLogoutToleratesGarbage(t *testing.T) {
	initJWT(t)

	// Best-effort: neither call may panic or fail, and neither counts as a
	// revocation.
	assert.False(t, Logout(context.Background(), jwtutil.DomainSystem, "not-a-token"))
	assert.False(t, Logout(context.Background(), jwtutil.DomainTenant, ""))
}

func TestLogoutReportsRealRevocations(t *testing.T) {
	initJWT(t)

	pair, err := jwtutil.GeneratePair(jwtutil.DomainSystem, 1, "admin", "", nil, nil)
	require.NoError(t, err)

	assert.True(t, Logout(context.Background(), jwtutil.DomainSystem, pair.RefreshToken))
	// A token from another domain or of the wrong kind is not a revocation.
	assert.False(t, Logout(context.Background(), jwtutil.DomainTenant, pair.RefreshToken))
	assert.False(t, Logout(context.Background(), jwtutil.DomainSystem, pair.AccessToken))
}

// Every gate failure must read identically to the client, no matter which
// internal reason is attached.
func TestGateFailuresShareOneClientMessage(t *testing.T) {
	reasons := []string{
		ReasonUserNotFound,
		ReasonInvalidPassword,
		ReasonUserBlocked,
		ReasonTenantNotFound,
		ReasonTenantBlocked,
		ReasonInvalidToken,
		ReasonRevokedToken,
	}
	for _, reason := range reasons {
		err := &apperr.AuthenticationError{Reason: reason}
		assert.Equal(t, "invalid credentials", err.Error(), "reason %s", reason)
	}
}
