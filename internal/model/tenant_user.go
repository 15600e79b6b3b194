package model

import (
	"time"
)

// TenantUser is a user row inside a tenant's own schema (<schema>.users).
// It deliberately carries no static GORM table binding: every query against
// it goes through a schema-qualified Table() reference resolved at request
// time, so usernames are unique per schema, not globally.
type TenantUser struct {
	ID          uint       `json:"id" gorm:"primaryKey"`
	Username    string     `json:"username"`
	Email       string     `json:"email"`
	Password    string     `json:"-"`
	FirstName   string     `json:"first_name"`
	LastName    string     `json:"last_name"`
	Status      string     `json:"status"`
	Preferences string     `json:"preferences"`
	LastLogin   *time.Time `json:"last_login,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Sanitized returns a copy safe to serialize in API responses.
func (u *TenantUser) Sanitized() map[string]interface{} {
	return map[string]interface{}{
		"id":         u.ID,
		"username":   u.Username,
		"email":      u.Email,
		"first_name": u.FirstName,
		"last_name":  u.LastName,
		"status":     u.Status,
		"last_login": u.LastLogin,
	}
}

// Role is a role row inside a tenant's schema. Permissions is an opaque JSON
// document of permission key -> boolean.
type Role struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Permissions string    `json:"permissions"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// UserRole is the join row between <schema>.users and <schema>.roles.
type UserRole struct {
	UserID uint `json:"user_id" gorm:"primaryKey"`
	RoleID uint `json:"role_id" gorm:"primaryKey"`
}
