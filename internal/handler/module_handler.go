package handler

import (
	"errors"
	"net/http"
	"time"

	"saas-admin/internal/directory"
	"saas-admin/internal/model"
	"saas-admin/pkg/database"
	"saas-admin/pkg/logger"
	"saas-admin/prometheus"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Global module catalog CRUD plus per-tenant activation. Activation rows are
// keyed by schema name, the sharding key; the numeric tenant id is stored
// alongside for display only.

func ListModules(c echo.Context) error {
	var modules []model.Module
	query := database.GetDB().Model(&model.Module{})
	if status := c.QueryParam("status"); status != "" {
		query = query.Where("status = ?", status)
	}
	if err := query.Order("id").Find(&modules).Error; err != nil {
		logger.FromContext(c).Error("Failed to list modules", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal server error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": modules, "total": len(modules)})
}

func GetModule(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid module id"})
	}
	var mod model.Module
	if err := database.GetDB().First(&mod, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "module not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal server error"})
	}
	return c.JSON(http.StatusOK, mod)
}

func CreateModule(c echo.Context) error {
	log := logger.FromContext(c)

	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	if req.Name == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "name is required"})
	}

	mod := model.Module{Name: req.Name, Description: req.Description, Status: "active"}
	if err := database.GetDB().Create(&mod).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "module with this name already exists"})
		}
		log.Error("Failed to create module", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal server error"})
	}

	log.Info("Module created", zap.Uint("id", mod.ID), zap.String("name", mod.Name))
	return c.JSON(http.StatusCreated, mod)
}

func UpdateModule(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid module id"})
	}

	updates := map[string]interface{}{}
	if err := c.Bind(&updates); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	delete(updates, "id")

	var mod model.Module
	if err := database.GetDB().First(&mod, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "module not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal server error"})
	}
	if len(updates) > 0 {
		if err := database.GetDB().Model(&mod).Updates(updates).Error; err != nil {
			logger.FromContext(c).Error("Failed to update module", zap.Error(err))
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal server error"})
		}
	}
	return c.JSON(http.StatusOK, mod)
}

func DeleteModule(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid module id"})
	}
	result := database.GetDB().Delete(&model.Module{}, id)
	if result.Error != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal server error"})
	}
	if result.RowsAffected == 0 {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "module not found"})
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "module deleted"})
}

// ListTenantModules returns the activation rows for one tenant, resolved by
// the tenant's schema name.
func ListTenantModules(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid tenant id"})
	}
	tenant, err := directory.FindByID(database.GetDB(), id)
	if err != nil {
		return respondError(c, err, "tenant module list")
	}

	var activations []model.TenantModule
	err = database.GetDB().
		Preload("Module").
		Where("schema_name = ?", tenant.SchemaName).
		Order("module_id").
		Find(&activations).Error
	if err != nil {
		logger.FromContext(c).Error("Failed to list tenant modules", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal server error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": activations, "schema_name": tenant.SchemaName})
}

// ActivateTenantModule upserts the (schema, module) activation row: created
// if absent, otherwise status/settings are updated in place.
func ActivateTenantModule(c echo.Context) error {
	log := logger.FromContext(c)

	tenantID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid tenant id"})
	}
	moduleID, ok := pathID(c, "moduleId")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid module id"})
	}

	var req struct {
		Status   string `json:"status"`
		Settings string `json:"settings"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	if req.Status == "" {
		req.Status = "active"
	}

	tenant, err := directory.FindByID(database.GetDB(), tenantID)
	if err != nil {
		return respondError(c, err, "module activation")
	}
	var mod model.Module
	if err := database.GetDB().First(&mod, moduleID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "module not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal server error"})
	}

	defer prometheus.TrackDBOperation("upsert")(time.Now())

	var activation model.TenantModule
	result := database.GetDB().
		Where("schema_name = ? AND module_id = ?", tenant.SchemaName, moduleID).
		Take(&activation)
	if result.Error == nil {
		updates := map[string]interface{}{"status": req.Status}
		if req.Settings != "" {
			updates["settings"] = req.Settings
		}
		if err := database.GetDB().Model(&activation).Updates(updates).Error; err != nil {
			log.Error("Failed to update module activation", zap.Error(err))
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal server error"})
		}
		log.Info("Module activation updated",
			zap.String("schema", tenant.SchemaName), zap.Uint("module_id", moduleID))
		return c.JSON(http.StatusOK, activation)
	}
	if !errors.Is(result.Error, gorm.ErrRecordNotFound) {
		log.Error("Failed to look up module activation", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal server error"})
	}

	activation = model.TenantModule{
		SchemaName: tenant.SchemaName,
		ModuleID:   moduleID,
		TenantID:   tenant.ID,
		Status:     req.Status,
		Settings:   req.Settings,
	}
	if activation.Settings == "" {
		activation.Settings = "{}"
	}
	if err := database.GetDB().Create(&activation).Error; err != nil {
		log.Error("Failed to create module activation", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal server error"})
	}

	log.Info("Module activated",
		zap.String("schema", tenant.SchemaName), zap.Uint("module_id", moduleID))
	return c.JSON(http.StatusCreated, activation)
}
