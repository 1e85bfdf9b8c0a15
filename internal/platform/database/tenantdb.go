package database

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"strings"

	"traction/internal/platform/auth"
)

// TenantDB is the storage-side enforcement point. It is built per request
// from validated claims and is the only handle the domain repositories ever
// receive, so even a repository that forgets its tenant filter cannot touch
// another tenant's rows:
//
//   - the trusted tenant id is bound by TenantDB itself as the named
//     parameter :tenant_id; callers cannot supply it
//   - statements touching a tenant-scoped table are rejected outright when
//     they lack the :tenant_id predicate (reads) or column (inserts)
//   - mutating verbs require role >= editor, re-checked here independently
//     of the router's role gate
//
// Statement convention: :tenant_id must be the last parameter of every
// statement. SQLite assigns parameter positions in order of appearance, so a
// named parameter before a positional one would shift the bindings.
type TenantDB struct {
	db       *sql.DB
	tenantID string
	role     auth.Role
}

var (
	ErrUnscopedStatement = errors.New("statement on tenant-scoped table lacks :tenant_id")
	ErrTenantOverride    = errors.New("caller-supplied tenant_id binding rejected")
	ErrWriteForbidden    = errors.New("role does not permit writes")
)

var scopedTables = regexp.MustCompile(`(?i)\b(companies|contacts|contact_emails|company_contacts|programs|program_enrollments|commitments|company_milestones|milestone_history|staged_meetings|interactions|interaction_contacts|interaction_companies)\b`)

func Scope(db *sql.DB, claims *auth.Claims) *TenantDB {
	return &TenantDB{db: db, tenantID: claims.TenantID, role: claims.Role}
}

func (t *TenantDB) TenantID() string {
	return t.tenantID
}

func (t *TenantDB) Role() auth.Role {
	return t.role
}

func guard(query string, args []interface{}, role auth.Role) error {
	if !scopedTables.MatchString(query) {
		return nil
	}
	verb := firstWord(query)
	if verb == "INSERT" || verb == "UPDATE" || verb == "DELETE" {
		if !role.AtLeast(auth.RoleEditor) {
			return ErrWriteForbidden
		}
	}
	if !strings.Contains(query, ":tenant_id") {
		return ErrUnscopedStatement
	}
	for _, a := range args {
		if n, ok := a.(sql.NamedArg); ok && n.Name == "tenant_id" {
			return ErrTenantOverride
		}
	}
	return nil
}

func firstWord(query string) string {
	fields := strings.Fields(query)
	if len(fields) == 0 {
		return ""
	}
	return strings.ToUpper(fields[0])
}

// withTenant binds the trusted tenant id. Statements on global tables carry
// no :tenant_id placeholder and get no extra argument; the driver checks the
// parameter count.
func withTenant(query string, args []interface{}, tenantID string) []interface{} {
	if strings.Contains(query, ":tenant_id") {
		return append(args, sql.Named("tenant_id", tenantID))
	}
	return args
}

func (t *TenantDB) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	if err := guard(query, args, t.role); err != nil {
		return nil, err
	}
	return t.db.ExecContext(ctx, query, withTenant(query, args, t.tenantID)...)
}

func (t *TenantDB) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	if err := guard(query, args, t.role); err != nil {
		return nil, err
	}
	return t.db.QueryContext(ctx, query, withTenant(query, args, t.tenantID)...)
}

func (t *TenantDB) QueryRowContext(ctx context.Context, query string, args ...interface{}) (*sql.Row, error) {
	if err := guard(query, args, t.role); err != nil {
		return nil, err
	}
	return t.db.QueryRowContext(ctx, query, withTenant(query, args, t.tenantID)...), nil
}

// WithTx runs fn inside a transaction whose statements pass through the same
// guard. Rolls back on error or panic.
func (t *TenantDB) WithTx(ctx context.Context, fn func(tx *TenantTx) error) error {
	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := fn(&TenantTx{tx: tx, tenantID: t.tenantID, role: t.role}); err != nil {
		return err
	}
	return tx.Commit()
}

type TenantTx struct {
	tx       *sql.Tx
	tenantID string
	role     auth.Role
}

func (t *TenantTx) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	if err := guard(query, args, t.role); err != nil {
		return nil, err
	}
	return t.tx.ExecContext(ctx, query, withTenant(query, args, t.tenantID)...)
}

func (t *TenantTx) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	if err := guard(query, args, t.role); err != nil {
		return nil, err
	}
	return t.tx.QueryContext(ctx, query, withTenant(query, args, t.tenantID)...)
}

func (t *TenantTx) QueryRowContext(ctx context.Context, query string, args ...interface{}) (*sql.Row, error) {
	if err := guard(query, args, t.role); err != nil {
		return nil, err
	}
	return t.tx.QueryRowContext(ctx, query, withTenant(query, args, t.tenantID)...), nil
}
