package model

import (
	"time"
)

// Module is a globally cataloged feature unit (CRM, HRM, analytics, ...).
// Existence is global; activation per tenant is a TenantModule row.
type Module struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	Name        string    `json:"name" gorm:"type:varchar(100);uniqueIndex;not null"`
	Description string    `json:"description" gorm:"type:text"`
	Status      string    `json:"status" gorm:"type:varchar(20);default:'active'"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TenantModule records a module being enabled for one tenant, with
// tenant-specific settings overriding the module defaults. Rows are keyed by
// (schema_name, module_id); schema name is the sharding key, the numeric
// tenant id is carried for display only and never used as a filter.
type TenantModule struct {
	ID         uint      `json:"id" gorm:"primaryKey"`
	SchemaName string    `json:"schema_name" gorm:"type:varchar(63);uniqueIndex:idx_tenant_module;not null"`
	ModuleID   uint      `json:"module_id" gorm:"uniqueIndex:idx_tenant_module;not null"`
	TenantID   uint      `json:"tenant_id" gorm:"index"`
	Status     string    `json:"status" gorm:"type:varchar(20);default:'active'"`
	Settings   string    `json:"settings" gorm:"type:jsonb;default:'{}'"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`

	Module Module `json:"module,omitempty" gorm:"foreignKey:ModuleID"`
}
