package handler

import (
	"errors"
	"net/http"
	"time"

	"saas-admin/internal/model"
	"saas-admin/pkg/database"
	"saas-admin/pkg/logger"
	"saas-admin/prometheus"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Subscription package CRUD, system domain only.

func ListPackages(c echo.Context) error {
	var packages []model.Package
	query := database.GetDB().Model(&model.Package{})
	if status := c.QueryParam("status"); status != "" {
		query = query.Where("status = ?", status)
	}
	if err := query.Order("id").Find(&packages).Error; err != nil {
		logger.FromContext(c).Error("Failed to list packages", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal server error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": packages, "total": len(packages)})
}

func GetPackage(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid package id"})
	}
	var pkg model.Package
	if err := database.GetDB().First(&pkg, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "package not found"})
		}
		logger.FromContext(c).Error("Failed to load package", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal server error"})
	}
	return c.JSON(http.StatusOK, pkg)
}

func CreatePackage(c echo.Context) error {
	log := logger.FromContext(c)

	var req struct {
		Name        string  `json:"name"`
		Description string  `json:"description"`
		Price       float64 `json:"price"`
		MaxUsers    int     `json:"max_users"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	if req.Name == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "name is required"})
	}

	pkg := model.Package{
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		MaxUsers:    req.MaxUsers,
		Status:      "active",
	}

	defer prometheus.TrackDBOperation("insert")(time.Now())
	if err := database.GetDB().Create(&pkg).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "package with this name already exists"})
		}
		log.Error("Failed to create package", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal server error"})
	}

	log.Info("Package created", zap.Uint("id", pkg.ID), zap.String("name", pkg.Name))
	return c.JSON(http.StatusCreated, pkg)
}

func UpdatePackage(c echo.Context) error {
	log := logger.FromContext(c)

	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid package id"})
	}

	updates := map[string]interface{}{}
	if err := c.Bind(&updates); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	delete(updates, "id")

	var pkg model.Package
	if err := database.GetDB().First(&pkg, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "package not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal server error"})
	}

	if len(updates) > 0 {
		if err := database.GetDB().Model(&pkg).Updates(updates).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return c.JSON(http.StatusConflict, echo.Map{"error": "package with this name already exists"})
			}
			log.Error("Failed to update package", zap.Error(err))
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal server error"})
		}
	}

	log.Info("Package updated", zap.Uint("id", id))
	return c.JSON(http.StatusOK, pkg)
}

func DeletePackage(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid package id"})
	}

	result := database.GetDB().Delete(&model.Package{}, id)
	if result.Error != nil {
		logger.FromContext(c).Error("Failed to delete package", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal server error"})
	}
	if result.RowsAffected == 0 {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "package not found"})
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "package deleted"})
}
