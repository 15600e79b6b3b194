package handler

import (
	"errors"
	"net/http"

	"saas-admin/internal/apperr"
	"saas-admin/internal/auth"
	"saas-admin/internal/middleware"
	"saas-admin/internal/tenantstore"
	"saas-admin/pkg/database"
	"saas-admin/pkg/jwtutil"
	"saas-admin/pkg/logger"
	"saas-admin/prometheus"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type loginRequest struct {
	Username   string `json:"username"`
	Password   string `json:"password"`
	SchemaName string `json:"schema_name"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// respondError translates taxonomy errors into client responses. Internal
// reasons (which login gate failed, infrastructure detail) go to the logs
// only; the client sees the generic message.
func respondError(c echo.Context, err error, op string) error {
	log := logger.FromContext(c)

	var ae *apperr.AuthenticationError
	if errors.As(err, &ae) {
		log.Warn("Authentication failed", zap.String("op", op), zap.String("reason", ae.Reason))
		prometheus.RecordAuthError(ae.Reason)
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": ae.Error()})
	}

	status := apperr.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		log.Error("Request failed", zap.String("op", op), zap.Error(err))
	} else {
		log.Warn("Request rejected", zap.String("op", op), zap.Error(err))
	}
	return c.JSON(status, echo.Map{"error": apperr.ClientMessage(err)})
}

func loginResponse(result *auth.LoginResult) echo.Map {
	resp := echo.Map{
		"access_token":  result.Tokens.AccessToken,
		"refresh_token": result.Tokens.RefreshToken,
		"expires_at":    result.Tokens.AccessExpiresAt,
		"user":          result.User,
	}
	if result.Tenant != nil {
		resp["tenant"] = echo.Map{
			"id":          result.Tenant.ID,
			"name":        result.Tenant.Name,
			"schema_name": result.Tenant.SchemaName,
		}
	}
	return resp
}

func handleLogin(c echo.Context, domain jwtutil.Domain, schemaName string) error {
	log := logger.FromContext(c)
	prometheus.RecordLogin(string(domain))

	var req loginRequest
	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse login request", zap.Error(err))
		prometheus.RecordAuthError("invalid_request")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	if schemaName == "" {
		schemaName = req.SchemaName
	}

	result, err := auth.Login(c.Request().Context(), database.GetDB(), domain, req.Username, req.Password, schemaName)
	if err != nil {
		return respondError(c, err, "login")
	}

	prometheus.IncreaseActiveTokens()
	log.Info("Login succeeded",
		zap.String("domain", string(domain)),
		zap.String("username", req.Username),
		zap.String("schema", schemaName))
	return c.JSON(http.StatusOK, loginResponse(result))
}

func handleRefresh(c echo.Context, domain jwtutil.Domain) error {
	log := logger.FromContext(c)
	prometheus.RecordRefresh(string(domain))

	var req refreshRequest
	if err := c.Bind(&req); err != nil || req.RefreshToken == "" {
		log.Error("Failed to parse refresh request", zap.Error(err))
		prometheus.RecordAuthError("invalid_request")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "refresh_token is required"})
	}

	result, err := auth.Refresh(c.Request().Context(), database.GetDB(), domain, req.RefreshToken)
	if err != nil {
		return respondError(c, err, "refresh")
	}
	return c.JSON(http.StatusOK, loginResponse(result))
}

func handleLogout(c echo.Context, domain jwtutil.Domain) error {
	var req refreshRequest
	// Logout succeeds even without a parsable body or token.
	_ = c.Bind(&req)
	if req.RefreshToken != "" && auth.Logout(c.Request().Context(), domain, req.RefreshToken) {
		// Only a real revocation moves the gauge; a bodyless or garbage
		// logout must not drive it negative.
		prometheus.DecreaseActiveTokens()
	}
	logger.FromContext(c).Info("Logout", zap.String("domain", string(domain)))
	return c.JSON(http.StatusOK, echo.Map{"message": "logged out"})
}

// SystemLogin authenticates a system administrator against the global
// system_users table. No schema is involved.
func SystemLogin(c echo.Context) error {
	return handleLogin(c, jwtutil.DomainSystem, "")
}

// TenantLogin authenticates a tenant administrator. The schema name comes
// from the request body and is resolved through the tenant directory.
func TenantLogin(c echo.Context) error {
	return handleLogin(c, jwtutil.DomainTenant, "")
}

// UserLogin authenticates an end user of one tenant. The schema name is a
// path parameter here.
func UserLogin(c echo.Context) error {
	return handleLogin(c, jwtutil.DomainUser, c.Param("schemaName"))
}

func SystemRefresh(c echo.Context) error { return handleRefresh(c, jwtutil.DomainSystem) }
func TenantRefresh(c echo.Context) error { return handleRefresh(c, jwtutil.DomainTenant) }
func UserRefresh(c echo.Context) error   { return handleRefresh(c, jwtutil.DomainUser) }

func SystemLogout(c echo.Context) error { return handleLogout(c, jwtutil.DomainSystem) }
func TenantLogout(c echo.Context) error { return handleLogout(c, jwtutil.DomainTenant) }
func UserLogout(c echo.Context) error   { return handleLogout(c, jwtutil.DomainUser) }

// SystemProfile returns the authenticated system administrator's record.
func SystemProfile(c echo.Context) error {
	claims := middleware.GetClaims(c)
	user, err := auth.LookupSystemUser(c.Request().Context(), database.GetDB(), claims.Username)
	if err != nil {
		return respondError(c, err, "system profile")
	}
	if user == nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
	}
	return c.JSON(http.StatusOK, echo.Map{"user": user.Sanitized()})
}

// TenantProfile returns the authenticated tenant administrator's record from
// the schema embedded in the token.
func TenantProfile(c echo.Context) error {
	claims := middleware.GetClaims(c)
	user, err := tenantstore.FindUserByID(database.GetDB(), claims.SchemaName, claims.UserID)
	if err != nil {
		return respondError(c, err, "tenant profile")
	}
	return c.JSON(http.StatusOK, echo.Map{
		"user":        user.Sanitized(),
		"schema_name": claims.SchemaName,
		"roles":       claims.Roles,
	})
}

// UserProfile returns the authenticated end user's record. The schema comes
// from the token; MatchSchemaParam has already checked the path agrees.
func UserProfile(c echo.Context) error {
	claims := middleware.GetClaims(c)
	user, err := tenantstore.FindUserByID(database.GetDB(), claims.SchemaName, claims.UserID)
	if err != nil {
		return respondError(c, err, "user profile")
	}
	return c.JSON(http.StatusOK, echo.Map{"user": user.Sanitized()})
}

// UpdateUserProfile applies name/email changes to the authenticated end
// user's row.
func UpdateUserProfile(c echo.Context) error {
	log := logger.FromContext(c)
	claims := middleware.GetClaims(c)

	var req struct {
		Email     *string `json:"email"`
		FirstName *string `json:"first_name"`
		LastName  *string `json:"last_name"`
	}
	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse profile update", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	updates := map[string]interface{}{}
	if req.Email != nil {
		updates["email"] = *req.Email
	}
	if req.FirstName != nil {
		updates["first_name"] = *req.FirstName
	}
	if req.LastName != nil {
		updates["last_name"] = *req.LastName
	}

	user, err := tenantstore.UpdateUser(database.GetDB(), claims.SchemaName, claims.UserID, updates)
	if err != nil {
		return respondError(c, err, "profile update")
	}
	log.Info("Profile updated", zap.String("schema", claims.SchemaName), zap.Uint("user_id", claims.UserID))
	return c.JSON(http.StatusOK, echo.Map{"user": user.Sanitized()})
}

// ChangePassword verifies the current password before storing a new hash.
func ChangePassword(c echo.Context) error {
	log := logger.FromContext(c)
	claims := middleware.GetClaims(c)

	var req struct {
		CurrentPassword string `json:"current_password"`
		NewPassword     string `json:"new_password"`
	}
	if err := c.Bind(&req); err != nil || req.CurrentPassword == "" || req.NewPassword == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "current_password and new_password are required"})
	}

	user, err := tenantstore.FindUserByID(database.GetDB(), claims.SchemaName, claims.UserID)
	if err != nil {
		return respondError(c, err, "password change")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.CurrentPassword)); err != nil {
		prometheus.RecordAuthError(auth.ReasonInvalidPassword)
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		log.Error("Failed to hash password", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal server error"})
	}
	if err := tenantstore.SetPassword(database.GetDB(), claims.SchemaName, claims.UserID, string(hash)); err != nil {
		return respondError(c, err, "password change")
	}

	log.Info("Password changed", zap.String("schema", claims.SchemaName), zap.Uint("user_id", claims.UserID))
	return c.JSON(http.StatusOK, echo.Map{"message": "password changed"})
}

// UpdatePreferences stores the end user's opaque preferences document.
func UpdatePreferences(c echo.Context) error {
	claims := middleware.GetClaims(c)

	var req struct {
		Preferences string `json:"preferences"`
	}
	if err := c.Bind(&req); err != nil || req.Preferences == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "preferences is required"})
	}

	user, err := tenantstore.UpdateUser(database.GetDB(), claims.SchemaName, claims.UserID,
		map[string]interface{}{"preferences": req.Preferences})
	if err != nil {
		return respondError(c, err, "preferences update")
	}
	return c.JSON(http.StatusOK, echo.Map{"user": user.Sanitized()})
}

// MetricsHandler serves the Prometheus scrape endpoint.
func MetricsHandler(c echo.Context) error {
	handler := prometheus.GetPrometheusHandler()
	handler.ServeHTTP(c.Response(), c.Request())
	return nil
}
