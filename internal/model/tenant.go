package model

import (
	"time"
)

// Tenant status values. Suspended and inactive tenants keep their data but
// block new logins.
const (
	TenantStatusActive    = "active"
	TenantStatusInactive  = "inactive"
	TenantStatusSuspended = "suspended"
)

// Tenant is the directory row for one isolated customer environment. The
// schema_name column is the sharding key: it is the only value ever used to
// build a schema-qualified SQL identifier, and it is immutable once the
// schema has been provisioned.
type Tenant struct {
	ID         uint      `json:"id" gorm:"primaryKey"`
	Name       string    `json:"name" gorm:"type:varchar(100);not null"`
	Domain     string    `json:"domain" gorm:"type:varchar(100);uniqueIndex"`
	SchemaName string    `json:"schema_name" gorm:"type:varchar(63);uniqueIndex;not null"`
	Status     string    `json:"status" gorm:"type:varchar(20);default:'active'"`
	PackageID  *uint     `json:"package_id,omitempty" gorm:"index"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`

	Package *Package `json:"package,omitempty" gorm:"foreignKey:PackageID"`
}

// Usable reports whether logins against this tenant are allowed.
func (t *Tenant) Usable() bool {
	return t.Status == TenantStatusActive
}
