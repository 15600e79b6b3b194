package tenantstore

import (
	"errors"
	"time"

	"saas-admin/internal/apperr"
	"saas-admin/internal/model"
	"saas-admin/internal/schema"

	"gorm.io/gorm"
)

// Package tenantstore reads and writes the tables inside one tenant's schema
// (<schema>.users, <schema>.roles, <schema>.user_roles). Every function takes
// the schema name explicitly; there is no ambient tenant state. The schema
// name must come from a verified token claim or the tenant directory, and is
// re-checked against the allow-list before it reaches a query.

func usersTable(schemaName string) string {
	return schema.Qualify(schemaName, "users")
}

func rolesTable(schemaName string) string {
	return schema.Qualify(schemaName, "roles")
}

func userRolesTable(schemaName string) string {
	return schema.Qualify(schemaName, "user_roles")
}

func checkSchema(schemaName string) error {
	if !schema.Valid(schemaName) {
		return &apperr.ValidationError{Field: "schema_name", Message: "must match ^[A-Za-z0-9_]+$ and be at most 63 characters"}
	}
	return nil
}

// FindUserByUsername returns the user row for username within the schema.
func FindUserByUsername(db *gorm.DB, schemaName, username string) (*model.TenantUser, error) {
	if err := checkSchema(schemaName); err != nil {
		return nil, err
	}
	var user model.TenantUser
	err := db.Table(usersTable(schemaName)).Where("username = ?", username).Take(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &apperr.NotFoundError{Resource: "user"}
		}
		return nil, &apperr.InfrastructureError{Op: "user lookup", Err: err}
	}
	return &user, nil
}

// FindUserByID returns the user row for id within the schema.
func FindUserByID(db *gorm.DB, schemaName string, id uint) (*model.TenantUser, error) {
	if err := checkSchema(schemaName); err != nil {
		return nil, err
	}
	var user model.TenantUser
	err := db.Table(usersTable(schemaName)).Where("id = ?", id).Take(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &apperr.NotFoundError{Resource: "user"}
		}
		return nil, &apperr.InfrastructureError{Op: "user lookup", Err: err}
	}
	return &user, nil
}

// ListUsers returns a page of users in the schema plus the unpaged total.
func ListUsers(db *gorm.DB, schemaName string, page, perPage int) ([]model.TenantUser, int64, error) {
	if err := checkSchema(schemaName); err != nil {
		return nil, 0, err
	}
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}

	var total int64
	if err := db.Table(usersTable(schemaName)).Count(&total).Error; err != nil {
		return nil, 0, &apperr.InfrastructureError{Op: "user list", Err: err}
	}

	var users []model.TenantUser
	err := db.Table(usersTable(schemaName)).
		Order("id").
		Offset((page - 1) * perPage).
		Limit(perPage).
		Find(&users).Error
	if err != nil {
		return nil, 0, &apperr.InfrastructureError{Op: "user list", Err: err}
	}
	return users, total, nil
}

// CreateUser inserts a user row. Usernames are unique within the schema
// only; the same username may exist in another tenant's schema.
func CreateUser(db *gorm.DB, schemaName string, user *model.TenantUser) error {
	if err := checkSchema(schemaName); err != nil {
		return err
	}
	if user.Username == "" {
		return &apperr.ValidationError{Field: "username", Message: "is required"}
	}

	var count int64
	if err := db.Table(usersTable(schemaName)).Where("username = ?", user.Username).Count(&count).Error; err != nil {
		return &apperr.InfrastructureError{Op: "user create", Err: err}
	}
	if count > 0 {
		return &apperr.ConflictError{Resource: "user", Field: "username"}
	}

	if user.Status == "" {
		user.Status = "active"
	}
	if user.Preferences == "" {
		user.Preferences = "{}"
	}
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now

	if err := db.Table(usersTable(schemaName)).Create(user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return &apperr.ConflictError{Resource: "user", Field: "username"}
		}
		return &apperr.InfrastructureError{Op: "user create", Err: err}
	}
	return nil
}

// UpdateUser applies partial field changes to a user row.
func UpdateUser(db *gorm.DB, schemaName string, id uint, updates map[string]interface{}) (*model.TenantUser, error) {
	if err := checkSchema(schemaName); err != nil {
		return nil, err
	}
	delete(updates, "id")
	delete(updates, "username")
	delete(updates, "password")
	updates["updated_at"] = time.Now()

	result := db.Table(usersTable(schemaName)).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return nil, &apperr.InfrastructureError{Op: "user update", Err: result.Error}
	}
	if result.RowsAffected == 0 {
		return nil, &apperr.NotFoundError{Resource: "user"}
	}
	return FindUserByID(db, schemaName, id)
}

// SetPassword replaces a user's password hash.
func SetPassword(db *gorm.DB, schemaName string, id uint, hash string) error {
	if err := checkSchema(schemaName); err != nil {
		return err
	}
	result := db.Table(usersTable(schemaName)).Where("id = ?", id).Updates(map[string]interface{}{
		"password":   hash,
		"updated_at": time.Now(),
	})
	if result.Error != nil {
		return &apperr.InfrastructureError{Op: "password update", Err: result.Error}
	}
	if result.RowsAffected == 0 {
		return &apperr.NotFoundError{Resource: "user"}
	}
	return nil
}

// TouchLastLogin stamps last_login. Failures are reported so the caller can
// log them, but a login should not fail over this.
func TouchLastLogin(db *gorm.DB, schemaName string, id uint) error {
	if err := checkSchema(schemaName); err != nil {
		return err
	}
	return db.Table(usersTable(schemaName)).Where("id = ?", id).
		Update("last_login", time.Now()).Error
}

// DeleteUser removes a user row. Role assignments cascade via the join
// table's foreign keys.
func DeleteUser(db *gorm.DB, schemaName string, id uint) error {
	if err := checkSchema(schemaName); err != nil {
		return err
	}
	result := db.Table(usersTable(schemaName)).Where("id = ?", id).Delete(&model.TenantUser{})
	if result.Error != nil {
		return &apperr.InfrastructureError{Op: "user delete", Err: result.Error}
	}
	if result.RowsAffected == 0 {
		return &apperr.NotFoundError{Resource: "user"}
	}
	return nil
}

// ListRoles returns all roles defined in the schema.
func ListRoles(db *gorm.DB, schemaName string) ([]model.Role, error) {
	if err := checkSchema(schemaName); err != nil {
		return nil, err
	}
	var roles []model.Role
	if err := db.Table(rolesTable(schemaName)).Order("id").Find(&roles).Error; err != nil {
		return nil, &apperr.InfrastructureError{Op: "role list", Err: err}
	}
	return roles, nil
}

// RolesForUser returns the role names assigned to a user, used for token
// claims.
func RolesForUser(db *gorm.DB, schemaName string, userID uint) ([]string, error) {
	if err := checkSchema(schemaName); err != nil {
		return nil, err
	}
	var names []string
	err := db.Table(rolesTable(schemaName)+" AS r").
		Joins("JOIN "+userRolesTable(schemaName)+" AS ur ON ur.role_id = r.id").
		Where("ur.user_id = ?", userID).
		Order("r.id").
		Pluck("r.name", &names).Error
	if err != nil {
		return nil, &apperr.InfrastructureError{Op: "role lookup", Err: err}
	}
	return names, nil
}

// SetUserRoles replaces a user's role assignments with the given role ids.
func SetUserRoles(db *gorm.DB, schemaName string, userID uint, roleIDs []uint) error {
	if err := checkSchema(schemaName); err != nil {
		return err
	}
	if _, err := FindUserByID(db, schemaName, userID); err != nil {
		return err
	}

	return db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Table(userRolesTable(schemaName)).Where("user_id = ?", userID).Delete(&model.UserRole{}).Error; err != nil {
			return &apperr.InfrastructureError{Op: "role assignment", Err: err}
		}
		for _, roleID := range roleIDs {
			var count int64
			if err := tx.Table(rolesTable(schemaName)).Where("id = ?", roleID).Count(&count).Error; err != nil {
				return &apperr.InfrastructureError{Op: "role assignment", Err: err}
			}
			if count == 0 {
				return &apperr.NotFoundError{Resource: "role"}
			}
			assignment := model.UserRole{UserID: userID, RoleID: roleID}
			if err := tx.Table(userRolesTable(schemaName)).Create(&assignment).Error; err != nil {
				return &apperr.InfrastructureError{Op: "role assignment", Err: err}
			}
		}
		return nil
	})
}
