package handler

import (
	"net/http"
	"strconv"
	"time"

	"saas-admin/internal/directory"
	"saas-admin/internal/model"
	"saas-admin/internal/provision"
	"saas-admin/pkg/database"
	"saas-admin/pkg/logger"
	"saas-admin/prometheus"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

var provisioner *provision.Provisioner

// SetProvisioner injects the schema provisioner at startup.
func SetProvisioner(p *provision.Provisioner) {
	provisioner = p
}

func pathID(c echo.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

// LookupTenant is the unauthenticated tenant-discovery endpoint: given a
// schema or domain name hint it answers whether the tenant exists and which
// canonical schema name to use for the subsequent login call. This is the
// only place a client-supplied tenant hint is honored; it grants no access.
func LookupTenant(c echo.Context) error {
	hint := c.QueryParam("name")
	if hint == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "name query parameter is required"})
	}

	tenant, err := directory.Lookup(database.GetDB(), hint)
	if err != nil {
		return respondError(c, err, "tenant lookup")
	}
	return c.JSON(http.StatusOK, echo.Map{
		"exists":      true,
		"schema_name": tenant.SchemaName,
		"name":        tenant.Name,
		"status":      tenant.Status,
	})
}

// ListTenants returns a filtered page of the tenant directory.
func ListTenants(c echo.Context) error {
	page, _ := strconv.Atoi(c.QueryParam("page"))
	perPage, _ := strconv.Atoi(c.QueryParam("per_page"))
	filter := directory.ListFilter{
		Status: c.QueryParam("status"),
		Search: c.QueryParam("search"),
	}

	defer prometheus.TrackDBOperation("query")(time.Now())
	tenants, total, err := directory.List(database.GetDB(), filter, page, perPage)
	if err != nil {
		return respondError(c, err, "tenant list")
	}
	return c.JSON(http.StatusOK, echo.Map{"items": tenants, "total": total})
}

// GetTenant returns one directory row.
func GetTenant(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid tenant id"})
	}
	tenant, err := directory.FindByID(database.GetDB(), id)
	if err != nil {
		return respondError(c, err, "tenant get")
	}
	return c.JSON(http.StatusOK, tenant)
}

// CreateTenant inserts a directory row. Provisioning the schema is a
// separate explicit call unless provision=true is passed.
func CreateTenant(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordTenantOperation("create")

	var req struct {
		Name       string `json:"name"`
		Domain     string `json:"domain"`
		SchemaName string `json:"schema_name"`
		PackageID  *uint  `json:"package_id"`
		Provision  bool   `json:"provision"`
	}
	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse tenant creation request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	tenant := model.Tenant{
		Name:       req.Name,
		Domain:     req.Domain,
		SchemaName: req.SchemaName,
		PackageID:  req.PackageID,
		Status:     model.TenantStatusActive,
	}

	defer prometheus.TrackDBOperation("insert")(time.Now())
	if err := directory.Create(database.GetDB(), &tenant); err != nil {
		return respondError(c, err, "tenant create")
	}
	log.Info("Tenant created",
		zap.Uint("id", tenant.ID),
		zap.String("schema", tenant.SchemaName))

	resp := echo.Map{"tenant": tenant}
	if req.Provision {
		result, err := provisioner.Provision(c.Request().Context(), tenant.SchemaName)
		if err != nil {
			// The directory row exists; the caller can retry provisioning.
			log.Error("Provisioning after create failed", zap.String("schema", tenant.SchemaName), zap.Error(err))
			prometheus.RecordProvision("failed")
			resp["provisioned"] = false
			return c.JSON(http.StatusCreated, resp)
		}
		prometheus.RecordProvision(outcomeLabel(result))
		resp["provisioned"] = true
	}

	if count, err := directory.CountActive(database.GetDB()); err == nil {
		prometheus.UpdateActiveTenants(count)
	}
	return c.JSON(http.StatusCreated, resp)
}

// UpdateTenant applies partial changes; the schema name is immutable.
func UpdateTenant(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordTenantOperation("update")

	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid tenant id"})
	}

	updates := map[string]interface{}{}
	if err := c.Bind(&updates); err != nil {
		log.Error("Failed to parse tenant update request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	defer prometheus.TrackDBOperation("update")(time.Now())
	tenant, err := directory.Update(database.GetDB(), id, updates)
	if err != nil {
		return respondError(c, err, "tenant update")
	}

	log.Info("Tenant updated", zap.Uint("id", id))
	if count, err := directory.CountActive(database.GetDB()); err == nil {
		prometheus.UpdateActiveTenants(count)
	}
	return c.JSON(http.StatusOK, tenant)
}

// DeleteTenant removes the directory row. The schema itself is left in
// place; dropping it is an operational step outside this API.
func DeleteTenant(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordTenantOperation("delete")

	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid tenant id"})
	}

	defer prometheus.TrackDBOperation("delete")(time.Now())
	if err := directory.Delete(database.GetDB(), id); err != nil {
		return respondError(c, err, "tenant delete")
	}

	log.Info("Tenant deleted", zap.Uint("id", id))
	return c.JSON(http.StatusOK, echo.Map{"message": "tenant deleted"})
}

func outcomeLabel(result provision.Result) string {
	if result.Created {
		return "created"
	}
	return "exists"
}

// ProvisionTenant creates and seeds the tenant's schema. Idempotent: a
// second call reports created=false and changes nothing.
func ProvisionTenant(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordTenantOperation("provision")

	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid tenant id"})
	}
	tenant, err := directory.FindByID(database.GetDB(), id)
	if err != nil {
		return respondError(c, err, "tenant provision")
	}

	start := time.Now()
	result, err := provisioner.Provision(c.Request().Context(), tenant.SchemaName)
	prometheus.ProvisionDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		log.Error("Provisioning failed", zap.String("schema", tenant.SchemaName), zap.Error(err))
		prometheus.RecordProvision("failed")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "provisioning failed, safe to retry"})
	}

	prometheus.RecordProvision(outcomeLabel(result))
	log.Info("Provisioning finished",
		zap.String("schema", tenant.SchemaName),
		zap.Bool("created", result.Created))
	return c.JSON(http.StatusOK, echo.Map{"created": result.Created, "schema_name": tenant.SchemaName})
}
