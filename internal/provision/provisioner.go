package provision

import (
	"context"
	"database/sql"
	"fmt"

	"saas-admin/internal/apperr"
	"saas-admin/internal/schema"

	"golang.org/x/crypto/bcrypt"
)

// Provisioning step names, reported inside ProvisioningError so a failed run
// can be diagnosed. Every step is individually idempotent: re-invoking
// Provision after a partial failure converges on the same final state.
const (
	StepValidate     = "validate"
	StepCheckSchema  = "check_schema"
	StepCreateSchema = "create_schema"
	StepCreateTables = "create_tables"
	StepSeedRole     = "seed_role"
	StepSeedAdmin    = "seed_admin"
	StepAssignRole   = "assign_role"
)

// DefaultRoleName is the elevated role seeded into every new schema.
const DefaultRoleName = "tenant_admin"

const defaultRolePermissions = `{"is_admin": true}`

// Row is the subset of *sql.Row the provisioner scans from.
type Row interface {
	Scan(dest ...interface{}) error
}

// Conn is the narrow database surface the provisioner runs on. *sql.DB is
// adapted to it via NewConn; tests substitute a fake.
type Conn interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) Row
}

type sqlConn struct {
	db *sql.DB
}

func (c sqlConn) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	return c.db.ExecContext(ctx, query, args...)
}

func (c sqlConn) QueryRowContext(ctx context.Context, query string, args ...interface{}) Row {
	return c.db.QueryRowContext(ctx, query, args...)
}

// NewConn adapts a *sql.DB to the Conn interface.
func NewConn(db *sql.DB) Conn {
	return sqlConn{db: db}
}

// Result reports whether the run created the schema or found it already
// provisioned.
type Result struct {
	Created bool `json:"created"`
}

// Provisioner creates and seeds tenant schemas.
type Provisioner struct {
	conn          Conn
	adminUsername string
	adminHash     string
}

// New returns a provisioner seeding adminUsername with the given bcrypt hash
// into every schema it creates. Hash once with HashSeedPassword and reuse.
func New(conn Conn, adminUsername, adminHash string) *Provisioner {
	return &Provisioner{conn: conn, adminUsername: adminUsername, adminHash: adminHash}
}

// HashSeedPassword bcrypt-hashes the configured seed admin password.
func HashSeedPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// Provision creates the tenant schema, its three tables, and the seeded
// admin role/user/assignment. Safe to call on an already provisioned schema:
// every statement runs again but is a no-op, and the run reports
// Created: false. Running the statements unconditionally is what lets a
// retry after a partial failure finish the remaining steps instead of
// stopping at the existence probe.
//
// Two callers racing on the same name is an accepted risk: the check below is
// not held under a lock, but every statement is itself idempotent
// (IF NOT EXISTS / ON CONFLICT DO NOTHING), so racing runs converge.
func (p *Provisioner) Provision(ctx context.Context, schemaName string) (Result, error) {
	if !schema.Valid(schemaName) {
		return Result{}, &apperr.ValidationError{Field: "schema_name", Message: "must match ^[A-Za-z0-9_]+$ and be at most 63 characters"}
	}

	// The probe only decides what the result reports, never whether the
	// steps below run.
	exists, err := p.schemaExists(ctx, schemaName)
	if err != nil {
		return Result{}, &apperr.ProvisioningError{Step: StepCheckSchema, Err: err}
	}

	if _, err := p.conn.ExecContext(ctx, fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %q", schemaName)); err != nil {
		return Result{}, &apperr.ProvisioningError{Step: StepCreateSchema, Err: err}
	}

	for _, ddl := range tableDDL(schemaName) {
		if _, err := p.conn.ExecContext(ctx, ddl); err != nil {
			return Result{}, &apperr.ProvisioningError{Step: StepCreateTables, Err: err}
		}
	}

	seedRole := fmt.Sprintf(`INSERT INTO %s (name, description, permissions, created_at, updated_at)
		VALUES ($1, $2, $3::jsonb, now(), now())
		ON CONFLICT (name) DO NOTHING`, schema.Qualify(schemaName, "roles"))
	if _, err := p.conn.ExecContext(ctx, seedRole, DefaultRoleName, "Default tenant administrator role", defaultRolePermissions); err != nil {
		return Result{}, &apperr.ProvisioningError{Step: StepSeedRole, Err: err}
	}

	seedAdmin := fmt.Sprintf(`INSERT INTO %s (username, email, password, status, created_at, updated_at)
		VALUES ($1, $2, $3, 'active', now(), now())
		ON CONFLICT (username) DO NOTHING`, schema.Qualify(schemaName, "users"))
	if _, err := p.conn.ExecContext(ctx, seedAdmin, p.adminUsername, p.adminUsername+"@"+schemaName+".local", p.adminHash); err != nil {
		return Result{}, &apperr.ProvisioningError{Step: StepSeedAdmin, Err: err}
	}

	assignRole := fmt.Sprintf(`INSERT INTO %s (user_id, role_id)
		SELECT u.id, r.id FROM %s u, %s r WHERE u.username = $1 AND r.name = $2
		ON CONFLICT DO NOTHING`,
		schema.Qualify(schemaName, "user_roles"),
		schema.Qualify(schemaName, "users"),
		schema.Qualify(schemaName, "roles"))
	if _, err := p.conn.ExecContext(ctx, assignRole, p.adminUsername, DefaultRoleName); err != nil {
		return Result{}, &apperr.ProvisioningError{Step: StepAssignRole, Err: err}
	}

	return Result{Created: !exists}, nil
}

func (p *Provisioner) schemaExists(ctx context.Context, schemaName string) (bool, error) {
	var exists bool
	row := p.conn.QueryRowContext(ctx,
		"SELECT EXISTS (SELECT 1 FROM information_schema.schemata WHERE schema_name = $1)", schemaName)
	if err := row.Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

// tableDDL returns the per-schema table definitions in creation order: users
// and roles before the join table that references both.
func tableDDL(schemaName string) []string {
	users := schema.Qualify(schemaName, "users")
	roles := schema.Qualify(schemaName, "roles")
	userRoles := schema.Qualify(schemaName, "user_roles")

	return []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id BIGSERIAL PRIMARY KEY,
			username VARCHAR(100) NOT NULL UNIQUE,
			email VARCHAR(100) UNIQUE,
			password VARCHAR(255) NOT NULL,
			first_name VARCHAR(100) DEFAULT '',
			last_name VARCHAR(100) DEFAULT '',
			status VARCHAR(20) NOT NULL DEFAULT 'active',
			preferences JSONB NOT NULL DEFAULT '{}',
			last_login TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`, users),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id BIGSERIAL PRIMARY KEY,
			name VARCHAR(100) NOT NULL UNIQUE,
			description TEXT DEFAULT '',
			permissions JSONB NOT NULL DEFAULT '{}',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`, roles),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			user_id BIGINT NOT NULL REFERENCES %s(id) ON DELETE CASCADE,
			role_id BIGINT NOT NULL REFERENCES %s(id) ON DELETE CASCADE,
			PRIMARY KEY (user_id, role_id)
		)`, userRoles, users, roles),
	}
}
