package handler

import (
	"net/http"
	"strconv"
	"time"

	"saas-admin/internal/middleware"
	"saas-admin/internal/model"
	"saas-admin/internal/tenantstore"
	"saas-admin/pkg/database"
	"saas-admin/pkg/logger"
	"saas-admin/prometheus"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// Tenant-admin user management. Every handler takes its schema from the
// verified tenant-domain token; nothing here reads a tenant hint from the
// client.

// ListTenantUsers returns a page of users in the caller's schema.
func ListTenantUsers(c echo.Context) error {
	claims := middleware.GetClaims(c)

	page := intQuery(c, "page", 1)
	perPage := intQuery(c, "per_page", 20)

	defer prometheus.TrackDBOperation("query")(time.Now())
	users, total, err := tenantstore.ListUsers(database.GetDB(), claims.SchemaName, page, perPage)
	if err != nil {
		return respondError(c, err, "tenant user list")
	}

	items := make([]map[string]interface{}, 0, len(users))
	for i := range users {
		items = append(items, users[i].Sanitized())
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items, "total": total})
}

// CreateTenantUser adds a user row to the caller's schema.
func CreateTenantUser(c echo.Context) error {
	log := logger.FromContext(c)
	claims := middleware.GetClaims(c)

	var req struct {
		Username  string `json:"username"`
		Email     string `json:"email"`
		Password  string `json:"password"`
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
	}
	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse user creation request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	if req.Username == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "username and password are required"})
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		log.Error("Failed to hash password", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal server error"})
	}

	user := model.TenantUser{
		Username:  req.Username,
		Email:     req.Email,
		Password:  string(hash),
		FirstName: req.FirstName,
		LastName:  req.LastName,
	}

	defer prometheus.TrackDBOperation("insert")(time.Now())
	if err := tenantstore.CreateUser(database.GetDB(), claims.SchemaName, &user); err != nil {
		return respondError(c, err, "tenant user create")
	}

	log.Info("Tenant user created",
		zap.String("schema", claims.SchemaName),
		zap.String("username", user.Username))
	return c.JSON(http.StatusCreated, echo.Map{"user": user.Sanitized()})
}

// DeleteTenantUser removes a user from the caller's schema; role
// assignments cascade.
func DeleteTenantUser(c echo.Context) error {
	log := logger.FromContext(c)
	claims := middleware.GetClaims(c)

	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid user id"})
	}
	if id == claims.UserID {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "cannot delete your own account"})
	}

	defer prometheus.TrackDBOperation("delete")(time.Now())
	if err := tenantstore.DeleteUser(database.GetDB(), claims.SchemaName, id); err != nil {
		return respondError(c, err, "tenant user delete")
	}

	log.Info("Tenant user deleted", zap.String("schema", claims.SchemaName), zap.Uint("user_id", id))
	return c.JSON(http.StatusOK, echo.Map{"message": "user deleted"})
}

// ListTenantRoles returns the roles defined in the caller's schema.
func ListTenantRoles(c echo.Context) error {
	claims := middleware.GetClaims(c)

	roles, err := tenantstore.ListRoles(database.GetDB(), claims.SchemaName)
	if err != nil {
		return respondError(c, err, "tenant role list")
	}
	return c.JSON(http.StatusOK, echo.Map{"items": roles})
}

// SetTenantUserRoles replaces a user's role assignments.
func SetTenantUserRoles(c echo.Context) error {
	log := logger.FromContext(c)
	claims := middleware.GetClaims(c)

	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid user id"})
	}

	var req struct {
		RoleIDs []uint `json:"role_ids"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	if err := tenantstore.SetUserRoles(database.GetDB(), claims.SchemaName, id, req.RoleIDs); err != nil {
		return respondError(c, err, "tenant role assignment")
	}

	log.Info("Tenant user roles updated",
		zap.String("schema", claims.SchemaName),
		zap.Uint("user_id", id),
		zap.Int("roles", len(req.RoleIDs)))
	return c.JSON(http.StatusOK, echo.Map{"message": "roles updated"})
}

func intQuery(c echo.Context, name string, def int) int {
	n, err := strconv.Atoi(c.QueryParam(name))
	if err != nil || n < 1 {
		return def
	}
	return n
}
