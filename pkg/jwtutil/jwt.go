package jwtutil

import (
	"errors"
	"time"

	"saas-admin/pkg/config"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
)

// Domain is one of the three authentication universes. Each domain signs its
// tokens with its own secret pair, so a token minted in one domain can never
// verify in another.
type Domain string

const (
	DomainSystem Domain = "system"
	DomainTenant Domain = "tenant"
	DomainUser   Domain = "user"
)

// Token kinds. Access and refresh tokens use independent secrets and TTLs.
const (
	KindAccess  = "access"
	KindRefresh = "refresh"
)

var (
	ErrWrongDomain = errors.New("token domain mismatch")
	ErrWrongKind   = errors.New("token kind mismatch")
)

var cfg *config.JWTConfig

// Initialize sets the signing configuration. Must be called before any token
// is generated or validated.
func Initialize(c *config.JWTConfig) {
	cfg = c
}

// Claims carried by every token. SchemaName is resolved server-side at
// issuance and is the only tenant identity downstream code may trust.
type Claims struct {
	UserID     uint     `json:"user_id"`
	Username   string   `json:"username"`
	Domain     string   `json:"domain"`
	Kind       string   `json:"kind"`
	SchemaName string   `json:"schema_name,omitempty"`
	TenantID   *uint    `json:"tenant_id,omitempty"`
	Roles      []string `json:"roles,omitempty"`
	jwt.RegisteredClaims
}

// TokenPair is the result of a successful login or refresh. RefreshID is the
// jti of the refresh token, used by the session registry for revocation.
type TokenPair struct {
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token"`
	RefreshID        string    `json:"-"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

func domainConfig(domain Domain) (config.DomainSecrets, error) {
	if cfg == nil {
		return config.DomainSecrets{}, errors.New("jwtutil not initialized")
	}
	switch domain {
	case DomainSystem:
		return cfg.System, nil
	case DomainTenant:
		return cfg.Tenant, nil
	case DomainUser:
		return cfg.User, nil
	default:
		return config.DomainSecrets{}, errors.New("unknown token domain")
	}
}

func secretFor(domain Domain, kind string) ([]byte, error) {
	s, err := domainConfig(domain)
	if err != nil {
		return nil, err
	}
	if kind == KindRefresh {
		return []byte(s.RefreshSecret), nil
	}
	return []byte(s.AccessSecret), nil
}

func sign(domain Domain, kind string, base Claims, ttl time.Duration) (signed, jti string, expires time.Time, err error) {
	secret, err := secretFor(domain, kind)
	if err != nil {
		return "", "", time.Time{}, err
	}
	now := time.Now()
	expires = now.Add(ttl)
	jti = uuid.New().String()
	claims := base
	claims.Domain = string(domain)
	claims.Kind = kind
	claims.RegisteredClaims = jwt.RegisteredClaims{
		ID:        jti,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expires),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err = token.SignedString(secret)
	return signed, jti, expires, err
}

// GeneratePair mints an access and refresh token together. Either both are
// issued or neither.
func GeneratePair(domain Domain, userID uint, username, schemaName string, tenantID *uint, roles []string) (*TokenPair, error) {
	dc, err := domainConfig(domain)
	if err != nil {
		return nil, err
	}

	base := Claims{
		UserID:     userID,
		Username:   username,
		SchemaName: schemaName,
		TenantID:   tenantID,
		Roles:      roles,
	}

	access, _, accessExp, err := sign(domain, KindAccess, base, dc.AccessTTL)
	if err != nil {
		return nil, err
	}
	refresh, refreshID, refreshExp, err := sign(domain, KindRefresh, base, dc.RefreshTTL)
	if err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		RefreshID:        refreshID,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
	}, nil
}

// Validate parses tokenString against the secret for (domain, kind) and
// rejects tokens whose embedded domain or kind disagrees with the
// verification path, even if the signature happens to check out.
func Validate(domain Domain, kind string, tokenString string) (*Claims, error) {
	secret, err := secretFor(domain, kind)
	if err != nil {
		return nil, err
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return secret, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, jwt.ErrSignatureInvalid
	}
	if claims.Domain != string(domain) {
		return nil, ErrWrongDomain
	}
	if claims.Kind != kind {
		return nil, ErrWrongKind
	}
	return claims, nil
}

// ValidateAccess verifies an access token for the given domain.
func ValidateAccess(domain Domain, tokenString string) (*Claims, error) {
	return Validate(domain, KindAccess, tokenString)
}

// ValidateRefresh verifies a refresh token for the given domain.
func ValidateRefresh(domain Domain, tokenString string) (*Claims, error) {
	return Validate(domain, KindRefresh, tokenString)
}
