package database

import (
	"context"
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"traction/internal/platform/auth"
)

func setupTestDB(t *testing.T) *sql.DB {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open db: %v", err)
	}

	_, err = db.Exec(`
	CREATE TABLE companies (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		business_name TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE TABLE milestone_tracks (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		slug TEXT NOT NULL UNIQUE,
		created_at INTEGER NOT NULL
	);
	`)
	if err != nil {
		t.Fatalf("Failed to create tables: %v", err)
	}
	return db
}

func editorClaims(tenantID string) *auth.Claims {
	return &auth.Claims{UserID: "usr_1", TenantID: tenantID, Role: auth.RoleEditor}
}

func TestTenantDB_RejectsUnscopedStatement(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	tdb := Scope(db, editorClaims("org_1"))

	_, err := tdb.QueryContext(context.Background(), `SELECT id FROM companies`)
	if err != ErrUnscopedStatement {
		t.Errorf("Expected ErrUnscopedStatement, got %v", err)
	}

	_, err = tdb.ExecContext(context.Background(), `DELETE FROM companies WHERE id = ?`, "cmp_1")
	if err != ErrUnscopedStatement {
		t.Errorf("Expected ErrUnscopedStatement for unscoped delete, got %v", err)
	}
}

func TestTenantDB_RejectsTenantOverride(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	tdb := Scope(db, editorClaims("org_1"))

	_, err := tdb.QueryContext(context.Background(),
		`SELECT id FROM companies WHERE tenant_id = :tenant_id`,
		sql.Named("tenant_id", "org_2"))
	if err != ErrTenantOverride {
		t.Errorf("Expected ErrTenantOverride, got %v", err)
	}
}

func TestTenantDB_ViewerCannotWrite(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	viewer := Scope(db, &auth.Claims{UserID: "usr_2", TenantID: "org_1", Role: auth.RoleViewer})

	_, err := viewer.ExecContext(context.Background(),
		`INSERT INTO companies (id, business_name, created_at, tenant_id) VALUES (?, ?, ?, :tenant_id)`,
		"cmp_1", "Acme", 1)
	if err != ErrWriteForbidden {
		t.Errorf("Expected ErrWriteForbidden, got %v", err)
	}

	// Reads still work for a viewer.
	row, err := viewer.QueryRowContext(context.Background(),
		`SELECT COUNT(*) FROM companies WHERE tenant_id = :tenant_id`)
	if err != nil {
		t.Fatalf("Viewer read failed: %v", err)
	}
	var n int
	if err := row.Scan(&n); err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
}

func TestTenantDB_CrossTenantInvisible(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	t1 := Scope(db, editorClaims("org_1"))
	t2 := Scope(db, editorClaims("org_2"))
	ctx := context.Background()

	_, err := t1.ExecContext(ctx,
		`INSERT INTO companies (id, business_name, created_at, tenant_id) VALUES (?, ?, ?, :tenant_id)`,
		"cmp_1", "Acme", 1)
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	row, err := t2.QueryRowContext(ctx,
		`SELECT business_name FROM companies WHERE id = ? AND tenant_id = :tenant_id`, "cmp_1")
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	var name string
	if err := row.Scan(&name); err != sql.ErrNoRows {
		t.Errorf("Expected ErrNoRows for cross-tenant read, got %v (name=%q)", err, name)
	}

	// The owner still sees it.
	row, err = t1.QueryRowContext(ctx,
		`SELECT business_name FROM companies WHERE id = ? AND tenant_id = :tenant_id`, "cmp_1")
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if err := row.Scan(&name); err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if name != "Acme" {
		t.Errorf("Expected Acme, got %s", name)
	}
}

func TestTenantDB_GlobalTablePassesThrough(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	tdb := Scope(db, editorClaims("org_1"))
	ctx := context.Background()

	if _, err := db.Exec(`INSERT INTO milestone_tracks (id, name, slug, created_at) VALUES (?, ?, ?, ?)`,
		"trk_1", "Software", "software", 1); err != nil {
		t.Fatalf("Seed failed: %v", err)
	}

	row, err := tdb.QueryRowContext(ctx, `SELECT name FROM milestone_tracks WHERE slug = ?`, "software")
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	var name string
	if err := row.Scan(&name); err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if name != "Software" {
		t.Errorf("Expected Software, got %s", name)
	}
}

func TestTenantDB_WithTxRollsBackOnError(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	tdb := Scope(db, editorClaims("org_1"))
	ctx := context.Background()

	err := tdb.WithTx(ctx, func(tx *TenantTx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO companies (id, business_name, created_at, tenant_id) VALUES (?, ?, ?, :tenant_id)`,
			"cmp_tx", "Rollback Co", 1); err != nil {
			return err
		}
		return sql.ErrTxDone // any error forces the rollback
	})
	if err == nil {
		t.Fatal("Expected error from WithTx")
	}

	row, err := tdb.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM companies WHERE tenant_id = :tenant_id`)
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	var n int
	if err := row.Scan(&n); err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if n != 0 {
		t.Errorf("Expected rollback to leave 0 rows, got %d", n)
	}
}
