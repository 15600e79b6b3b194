package directory

import (
	"errors"

	"saas-admin/internal/apperr"
	"saas-admin/internal/model"
	"saas-admin/internal/schema"

	"gorm.io/gorm"
)

// The tenant directory is the single source of truth for "does this tenant
// exist and is it usable". It only ever touches the global tenants table;
// provisioning a schema is a separate explicit step.

// ListFilter narrows List results.
type ListFilter struct {
	Status string
	Search string
}

// FindBySchemaName looks a tenant up by its schema name.
func FindBySchemaName(db *gorm.DB, name string) (*model.Tenant, error) {
	if !schema.Valid(name) {
		return nil, &apperr.ValidationError{Field: "schema_name", Message: "must match ^[A-Za-z0-9_]+$ and be at most 63 characters"}
	}
	var tenant model.Tenant
	if err := db.Where("schema_name = ?", name).First(&tenant).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &apperr.NotFoundError{Resource: "tenant"}
		}
		return nil, &apperr.InfrastructureError{Op: "tenant lookup", Err: err}
	}
	return &tenant, nil
}

// FindByID looks a tenant up by its numeric id.
func FindByID(db *gorm.DB, id uint) (*model.Tenant, error) {
	var tenant model.Tenant
	if err := db.First(&tenant, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &apperr.NotFoundError{Resource: "tenant"}
		}
		return nil, &apperr.InfrastructureError{Op: "tenant lookup", Err: err}
	}
	return &tenant, nil
}

// Lookup resolves a client-supplied hint to a tenant by schema name first,
// then by public domain. This backs the unauthenticated discovery endpoint
// only; authenticated requests resolve their tenant from token claims.
func Lookup(db *gorm.DB, hint string) (*model.Tenant, error) {
	if schema.Valid(hint) {
		if tenant, err := FindBySchemaName(db, hint); err == nil {
			return tenant, nil
		} else {
			var nf *apperr.NotFoundError
			if !errors.As(err, &nf) {
				return nil, err
			}
		}
	}
	var tenant model.Tenant
	if err := db.Where("domain = ?", hint).First(&tenant).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &apperr.NotFoundError{Resource: "tenant"}
		}
		return nil, &apperr.InfrastructureError{Op: "tenant lookup", Err: err}
	}
	return &tenant, nil
}

// Create inserts a new directory row. Duplicate schema_name or domain is a
// conflict. No schema is provisioned here.
func Create(db *gorm.DB, tenant *model.Tenant) error {
	if tenant.Name == "" {
		return &apperr.ValidationError{Field: "name", Message: "is required"}
	}
	if !schema.Valid(tenant.SchemaName) {
		return &apperr.ValidationError{Field: "schema_name", Message: "must match ^[A-Za-z0-9_]+$ and be at most 63 characters"}
	}
	if tenant.Status == "" {
		tenant.Status = model.TenantStatusActive
	}

	var count int64
	if err := db.Model(&model.Tenant{}).
		Where("schema_name = ? OR domain = ?", tenant.SchemaName, tenant.Domain).
		Count(&count).Error; err != nil {
		return &apperr.InfrastructureError{Op: "tenant create", Err: err}
	}
	if count > 0 {
		return &apperr.ConflictError{Resource: "tenant", Field: "schema_name or domain"}
	}

	if err := db.Create(tenant).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return &apperr.ConflictError{Resource: "tenant", Field: "schema_name or domain"}
		}
		return &apperr.InfrastructureError{Op: "tenant create", Err: err}
	}
	return nil
}

// Update applies partial field changes. The schema name is immutable once
// set, so it is stripped from the update set.
func Update(db *gorm.DB, id uint, updates map[string]interface{}) (*model.Tenant, error) {
	delete(updates, "schema_name")
	delete(updates, "id")

	if status, ok := updates["status"].(string); ok {
		switch status {
		case model.TenantStatusActive, model.TenantStatusInactive, model.TenantStatusSuspended:
		default:
			return nil, &apperr.ValidationError{Field: "status", Message: "must be active, inactive or suspended"}
		}
	}

	tenant, err := FindByID(db, id)
	if err != nil {
		return nil, err
	}

	if len(updates) > 0 {
		if err := db.Model(tenant).Updates(updates).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return nil, &apperr.ConflictError{Resource: "tenant", Field: "domain"}
			}
			return nil, &apperr.InfrastructureError{Op: "tenant update", Err: err}
		}
	}
	return tenant, nil
}

// Delete removes the directory row. Dropping the tenant's schema is a
// separate operational step and is never done here.
func Delete(db *gorm.DB, id uint) error {
	result := db.Delete(&model.Tenant{}, id)
	if result.Error != nil {
		return &apperr.InfrastructureError{Op: "tenant delete", Err: result.Error}
	}
	if result.RowsAffected == 0 {
		return &apperr.NotFoundError{Resource: "tenant"}
	}
	return nil
}

// List returns a page of tenants plus the unpaged total.
func List(db *gorm.DB, filter ListFilter, page, perPage int) ([]model.Tenant, int64, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}

	query := db.Model(&model.Tenant{})
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Search != "" {
		like := "%" + filter.Search + "%"
		query = query.Where("name ILIKE ? OR domain ILIKE ? OR schema_name ILIKE ?", like, like, like)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, &apperr.InfrastructureError{Op: "tenant list", Err: err}
	}

	var tenants []model.Tenant
	if err := query.Order("id").
		Offset((page - 1) * perPage).
		Limit(perPage).
		Find(&tenants).Error; err != nil {
		return nil, 0, &apperr.InfrastructureError{Op: "tenant list", Err: err}
	}
	return tenants, total, nil
}

// CountActive returns the number of active tenants, used for the metrics
// gauge.
func CountActive(db *gorm.DB) (int64, error) {
	var count int64
	err := db.Model(&model.Tenant{}).Where("status = ?", model.TenantStatusActive).Count(&count).Error
	return count, err
}
