package auth

import (
	"context"
	"errors"
	"time"

	"saas-admin/internal/apperr"
	"saas-admin/internal/directory"
	"saas-admin/internal/model"
	"saas-admin/internal/schema"
	"saas-admin/internal/tenantstore"
	"saas-admin/pkg/jwtutil"
	"saas-admin/pkg/logger"
	"saas-admin/pkg/session"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// One authenticator serves all three domains. The system domain resolves
// credentials against the global system_users table; tenant and end-user
// domains resolve the schema through the tenant directory first and then read
// <schema>.users. Which gate failed is recorded in the error's internal
// Reason; the client-facing message is identical for all of them.

// Internal failure reasons, for logs and metrics only.
const (
	ReasonUserNotFound    = "user_not_found"
	ReasonInvalidPassword = "invalid_password"
	ReasonUserBlocked     = "user_blocked"
	ReasonTenantNotFound  = "tenant_not_found"
	ReasonTenantBlocked   = "tenant_blocked"
	ReasonInvalidToken    = "invalid_token"
	ReasonRevokedToken    = "revoked_token"
)

// Compared against when no user row exists, so a missing account costs the
// same bcrypt work as a wrong password.
const dummyHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

// lookupStore is the directory and tenant-schema read surface behind the
// gate sequence. The default delegates to the directory and tenantstore
// packages; tests substitute a fake, the same way provision.Conn works.
type lookupStore interface {
	tenantBySchema(ctx context.Context, db *gorm.DB, schemaName string) (*model.Tenant, error)
	userByUsername(ctx context.Context, db *gorm.DB, schemaName, username string) (*model.TenantUser, error)
	rolesForUser(ctx context.Context, db *gorm.DB, schemaName string, userID uint) ([]string, error)
	touchLastLogin(ctx context.Context, db *gorm.DB, schemaName string, userID uint) error
}

type dbLookup struct{}

func (dbLookup) tenantBySchema(ctx context.Context, db *gorm.DB, schemaName string) (*model.Tenant, error) {
	return directory.FindBySchemaName(db.WithContext(ctx), schemaName)
}

func (dbLookup) userByUsername(ctx context.Context, db *gorm.DB, schemaName, username string) (*model.TenantUser, error) {
	return tenantstore.FindUserByUsername(db.WithContext(ctx), schemaName, username)
}

func (dbLookup) rolesForUser(ctx context.Context, db *gorm.DB, schemaName string, userID uint) ([]string, error) {
	return tenantstore.RolesForUser(db.WithContext(ctx), schemaName, userID)
}

func (dbLookup) touchLastLogin(ctx context.Context, db *gorm.DB, schemaName string, userID uint) error {
	return tenantstore.TouchLastLogin(db.WithContext(ctx), schemaName, userID)
}

var store lookupStore = dbLookup{}

// LoginResult carries the issued token pair and the sanitized user record.
type LoginResult struct {
	Tokens *jwtutil.TokenPair
	User   map[string]interface{}
	Tenant *model.Tenant
}

// Login runs the full gate sequence for one login attempt. schemaName is
// ignored for the system domain and required for the others. Every gate
// failure comes back as *apperr.AuthenticationError with the same generic
// client message; infrastructure failures propagate unchanged.
func Login(ctx context.Context, db *gorm.DB, domain jwtutil.Domain, username, password, schemaName string) (*LoginResult, error) {
	if username == "" || password == "" {
		return nil, &apperr.ValidationError{Field: "credentials", Message: "username and password are required"}
	}

	if domain == jwtutil.DomainSystem {
		return loginSystem(ctx, db, username, password)
	}
	return loginSchema(ctx, db, domain, username, password, schemaName)
}

func loginSystem(ctx context.Context, db *gorm.DB, username, password string) (*LoginResult, error) {
	user, err := LookupSystemUser(ctx, db, username)
	if err != nil {
		return nil, err
	}
	if user == nil {
		bcrypt.CompareHashAndPassword([]byte(dummyHash), []byte(password))
		return nil, &apperr.AuthenticationError{Reason: ReasonUserNotFound}
	}
	if user.Status != "active" {
		return nil, &apperr.AuthenticationError{Reason: ReasonUserBlocked}
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, &apperr.AuthenticationError{Reason: ReasonInvalidPassword}
	}

	tokens, err := jwtutil.GeneratePair(jwtutil.DomainSystem, user.ID, user.Username, "", nil, []string{user.Role})
	if err != nil {
		return nil, &apperr.InfrastructureError{Op: "token issuance", Err: err}
	}
	recordSession(ctx, jwtutil.DomainSystem, tokens)

	return &LoginResult{Tokens: tokens, User: user.Sanitized()}, nil
}

func loginSchema(ctx context.Context, db *gorm.DB, domain jwtutil.Domain, username, password, schemaName string) (*LoginResult, error) {
	if !schema.Valid(schemaName) {
		return nil, &apperr.ValidationError{Field: "schema_name", Message: "must match ^[A-Za-z0-9_]+$ and be at most 63 characters"}
	}

	tenant, err := store.tenantBySchema(ctx, db, schemaName)
	if err != nil {
		var nf *apperr.NotFoundError
		if errors.As(err, &nf) {
			bcrypt.CompareHashAndPassword([]byte(dummyHash), []byte(password))
			return nil, &apperr.AuthenticationError{Reason: ReasonTenantNotFound}
		}
		return nil, err
	}
	if !tenant.Usable() {
		return nil, &apperr.AuthenticationError{Reason: ReasonTenantBlocked}
	}

	user, err := store.userByUsername(ctx, db, tenant.SchemaName, username)
	if err != nil {
		var nf *apperr.NotFoundError
		if errors.As(err, &nf) {
			bcrypt.CompareHashAndPassword([]byte(dummyHash), []byte(password))
			return nil, &apperr.AuthenticationError{Reason: ReasonUserNotFound}
		}
		return nil, err
	}
	if user.Status != "active" {
		return nil, &apperr.AuthenticationError{Reason: ReasonUserBlocked}
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, &apperr.AuthenticationError{Reason: ReasonInvalidPassword}
	}

	var roles []string
	if domain == jwtutil.DomainTenant {
		roles, err = store.rolesForUser(ctx, db, tenant.SchemaName, user.ID)
		if err != nil {
			return nil, err
		}
	}

	tenantID := tenant.ID
	tokens, err := jwtutil.GeneratePair(domain, user.ID, user.Username, tenant.SchemaName, &tenantID, roles)
	if err != nil {
		return nil, &apperr.InfrastructureError{Op: "token issuance", Err: err}
	}
	recordSession(ctx, domain, tokens)

	if err := store.touchLastLogin(ctx, db, tenant.SchemaName, user.ID); err != nil {
		logger.GetLogger().Warn("Failed to stamp last_login",
			zap.String("schema", tenant.SchemaName), zap.Uint("user_id", user.ID), zap.Error(err))
	}

	return &LoginResult{Tokens: tokens, User: user.Sanitized(), Tenant: tenant}, nil
}

// Refresh spends a refresh token and issues a fresh pair. The old refresh
// token is revoked so each one is single-use when the session registry is
// enabled. Tenant status is re-checked: a suspension cuts off refresh, not
// just login.
func Refresh(ctx context.Context, db *gorm.DB, domain jwtutil.Domain, refreshToken string) (*LoginResult, error) {
	claims, err := jwtutil.ValidateRefresh(domain, refreshToken)
	if err != nil {
		return nil, &apperr.AuthenticationError{Reason: ReasonInvalidToken}
	}
	if !session.Get().Live(ctx, string(domain), claims.ID) {
		return nil, &apperr.AuthenticationError{Reason: ReasonRevokedToken}
	}

	if domain != jwtutil.DomainSystem {
		tenant, err := store.tenantBySchema(ctx, db, claims.SchemaName)
		if err != nil {
			var nf *apperr.NotFoundError
			if errors.As(err, &nf) {
				return nil, &apperr.AuthenticationError{Reason: ReasonTenantNotFound}
			}
			return nil, err
		}
		if !tenant.Usable() {
			return nil, &apperr.AuthenticationError{Reason: ReasonTenantBlocked}
		}
	}

	tokens, err := jwtutil.GeneratePair(domain, claims.UserID, claims.Username, claims.SchemaName, claims.TenantID, claims.Roles)
	if err != nil {
		return nil, &apperr.InfrastructureError{Op: "token issuance", Err: err}
	}
	session.Get().Revoke(ctx, string(domain), claims.ID)
	recordSession(ctx, domain, tokens)

	return &LoginResult{Tokens: tokens, User: map[string]interface{}{
		"id":       claims.UserID,
		"username": claims.Username,
	}}, nil
}

// Logout revokes the refresh token's registry entry. Best-effort: an
// unparseable token or a disabled registry still reports success. The
// return value says whether a valid token for this domain was revoked, so
// callers tracking active sessions only count real ones.
func Logout(ctx context.Context, domain jwtutil.Domain, refreshToken string) bool {
	claims, err := jwtutil.ValidateRefresh(domain, refreshToken)
	if err != nil {
		return false
	}
	session.Get().Revoke(ctx, string(domain), claims.ID)
	return true
}

// LookupSystemUser returns the system user or nil when absent. Absence is a
// normal outcome, not an error. A missing system_users relation (fresh
// install, migrations not yet run) is also treated as absence, with a
// diagnostic log, so bootstrap tooling can probe safely.
func LookupSystemUser(ctx context.Context, db *gorm.DB, username string) (*model.SystemUser, error) {
	var user model.SystemUser
	err := db.WithContext(ctx).Where("username = ?", username).Take(&user).Error
	if err == nil {
		return &user, nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if !db.Migrator().HasTable(&model.SystemUser{}) {
		logger.GetLogger().Warn("system_users table missing, treating lookup as not found (bootstrap?)",
			zap.Error(err))
		return nil, nil
	}
	return nil, &apperr.InfrastructureError{Op: "system user lookup", Err: err}
}

func recordSession(ctx context.Context, domain jwtutil.Domain, tokens *jwtutil.TokenPair) {
	ttl := time.Until(tokens.RefreshExpiresAt)
	session.Get().Record(ctx, string(domain), tokens.RefreshID, ttl)
}
