package tenantstore

import (
	"testing"

	"saas-admin/internal/apperr"
	"saas-admin/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Every entry point must refuse a schema name that fails the allow-list
// before any query is built from it.
func TestSchemaGate(t *testing.T) {
	bad := "tenant_a; DROP TABLE users"

	var ve *apperr.ValidationError

	_, err := FindUserByUsername(nil, bad, "admin")
	require.ErrorAs(t, err, &ve)

	_, err = FindUserByID(nil, bad, 1)
	require.ErrorAs(t, err, &ve)

	_, _, err = ListUsers(nil, bad, 1, 20)
	require.ErrorAs(t, err, &ve)

	err = CreateUser(nil, bad, &model.TenantUser{Username: "x"})
	require.ErrorAs(t, err, &ve)

	_, err = UpdateUser(nil, bad, 1, map[string]interface{}{})
	require.ErrorAs(t, err, &ve)

	err = SetPassword(nil, bad, 1, "hash")
	require.ErrorAs(t, err, &ve)

	err = DeleteUser(nil, bad, 1)
	require.ErrorAs(t, err, &ve)

	_, err = ListRoles(nil, bad)
	require.ErrorAs(t, err, &ve)

	_, err = RolesForUser(nil, bad, 1)
	require.ErrorAs(t, err, &ve)

	err = SetUserRoles(nil, bad, 1, nil)
	require.ErrorAs(t, err, &ve)

	err = TouchLastLogin(nil, bad, 1)
	require.ErrorAs(t, err, &ve)
}

func TestTableQualification(t *testing.T) {
	assert.Equal(t, `"tenant_a"."users"`, usersTable("tenant_a"))
	assert.Equal(t, `"tenant_a"."roles"`, rolesTable("tenant_a"))
	assert.Equal(t, `"tenant_a"."user_roles"`, userRolesTable("tenant_a"))

	// Two tenants never share a qualified table reference.
	assert.NotEqual(t, usersTable("tenant_a"), usersTable("tenant_b"))
}

func TestCreateUserRequiresUsername(t *testing.T) {
	err := CreateUser(nil, "tenant_a", &model.TenantUser{})
	var ve *apperr.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "username", ve.Field)
}
