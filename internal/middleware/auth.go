package middleware

import (
	"net/http"
	"strings"

	"saas-admin/pkg/jwtutil"
	"saas-admin/pkg/logger"
	"saas-admin/prometheus"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

const claimsKey = "claims"

// RequireDomain validates the bearer token against exactly one domain's
// access secret. A token minted for another domain fails here even before
// its claims are looked at, because each domain signs with its own secret.
// The verified claims are the only place downstream handlers may read tenant
// identity from; client-supplied tenant headers are never consulted.
func RequireDomain(domain jwtutil.Domain) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			log := logger.FromContext(c)

			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				log.Error("Missing Authorization header")
				prometheus.RecordAuthError("missing_token")
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing authorization token"})
			}

			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
				log.Error("Invalid Authorization header format")
				prometheus.RecordAuthError("invalid_auth_format")
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid authorization format, expected Bearer token"})
			}

			claims, err := jwtutil.ValidateAccess(domain, parts[1])
			if err != nil {
				log.Error("Invalid access token", zap.String("domain", string(domain)), zap.Error(err))
				prometheus.RecordAuthError("invalid_token")
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid or expired token"})
			}

			c.Set(claimsKey, claims)
			return next(c)
		}
	}
}

// MatchSchemaParam rejects requests whose :schemaName path parameter differs
// from the schema embedded in the verified token. The path parameter routes
// the request; authorization comes from the token alone.
func MatchSchemaParam(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		claims := GetClaims(c)
		if claims == nil {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing authorization token"})
		}
		if c.Param("schemaName") != claims.SchemaName {
			logger.FromContext(c).Error("Schema path parameter does not match token claim",
				zap.String("param", c.Param("schemaName")),
				zap.String("claim", claims.SchemaName))
			prometheus.RecordAuthError("schema_mismatch")
			return c.JSON(http.StatusForbidden, echo.Map{"error": "access denied"})
		}
		return next(c)
	}
}

// GetClaims returns the verified token claims stored by RequireDomain, or
// nil if the request did not pass it.
func GetClaims(c echo.Context) *jwtutil.Claims {
	claims, _ := c.Get(claimsKey).(*jwtutil.Claims)
	return claims
}
