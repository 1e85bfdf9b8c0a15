package contacts

import (
	"context"
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"traction/internal/pkg/errors"
	"traction/internal/platform/auth"
	"traction/internal/platform/database"
)

func setupTestDB(t *testing.T) *sql.DB {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open db: %v", err)
	}

	_, err = db.Exec(`
	CREATE TABLE contacts (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		first_name TEXT NOT NULL DEFAULT '',
		last_name TEXT NOT NULL DEFAULT '',
		title TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE TABLE contact_emails (
		id TEXT PRIMARY KEY,
		contact_id TEXT NOT NULL,
		email TEXT NOT NULL,
		email_type TEXT NOT NULL CHECK (email_type IN ('work', 'personal', 'other')),
		is_primary INTEGER NOT NULL DEFAULT 0,
		is_verified INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL,
		tenant_id TEXT NOT NULL,
		UNIQUE (contact_id, email)
	);
	CREATE UNIQUE INDEX idx_contact_emails_primary ON contact_emails (contact_id) WHERE is_primary = 1;
	CREATE TABLE company_contacts (
		company_id TEXT NOT NULL,
		contact_id TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		tenant_id TEXT NOT NULL,
		PRIMARY KEY (company_id, contact_id)
	);
	`)
	if err != nil {
		t.Fatalf("Failed to create tables: %v", err)
	}
	return db
}

func scopedRepo(db *sql.DB, tenantID string) *Repository {
	return NewRepository(database.Scope(db, &auth.Claims{UserID: "usr_1", TenantID: tenantID, Role: auth.RoleEditor}))
}

func TestRepository_AddEmailValidation(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	repo := scopedRepo(db, "org_1")
	ctx := context.Background()

	contact, err := repo.Create(ctx, &Input{FirstName: "Ada", LastName: "Lovelace"})
	if err != nil {
		t.Fatalf("Failed to create contact: %v", err)
	}

	if _, err := repo.AddEmail(ctx, contact.ID, "not-an-email", "work", false); errors.KindOf(err) != errors.KindValidation {
		t.Errorf("Expected validation error for bad format, got %v", err)
	}
	if _, err := repo.AddEmail(ctx, contact.ID, "ada@example.com", "corporate", false); errors.KindOf(err) != errors.KindValidation {
		t.Errorf("Expected validation error for bad type, got %v", err)
	}
}

func TestRepository_DuplicateEmailRejected(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	repo := scopedRepo(db, "org_1")
	ctx := context.Background()

	contact, err := repo.Create(ctx, &Input{FirstName: "Ada"})
	if err != nil {
		t.Fatalf("Failed to create contact: %v", err)
	}

	if _, err := repo.AddEmail(ctx, contact.ID, "ada@example.com", "work", true); err != nil {
		t.Fatalf("AddEmail failed: %v", err)
	}

	// Same address again, case-insensitive.
	if _, err := repo.AddEmail(ctx, contact.ID, "ADA@Example.com", "personal", false); errors.KindOf(err) != errors.KindDuplicate {
		t.Errorf("Expected duplicate for same address, got %v", err)
	}

	// A second primary is rejected by the partial unique index.
	if _, err := repo.AddEmail(ctx, contact.ID, "ada2@example.com", "work", true); errors.KindOf(err) != errors.KindDuplicate {
		t.Errorf("Expected duplicate for second primary, got %v", err)
	}
}

func TestRepository_SetPrimary(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	repo := scopedRepo(db, "org_1")
	ctx := context.Background()

	contact, err := repo.Create(ctx, &Input{FirstName: "Ada"})
	if err != nil {
		t.Fatalf("Failed to create contact: %v", err)
	}

	first, err := repo.AddEmail(ctx, contact.ID, "first@example.com", "work", true)
	if err != nil {
		t.Fatalf("AddEmail failed: %v", err)
	}
	second, err := repo.AddEmail(ctx, contact.ID, "second@example.com", "personal", false)
	if err != nil {
		t.Fatalf("AddEmail failed: %v", err)
	}

	if err := repo.SetPrimary(ctx, contact.ID, second.ID); err != nil {
		t.Fatalf("SetPrimary failed: %v", err)
	}

	emails, err := repo.ListEmails(ctx, contact.ID)
	if err != nil {
		t.Fatalf("ListEmails failed: %v", err)
	}
	primaries := 0
	for _, e := range emails {
		if e.IsPrimary {
			primaries++
			if e.ID != second.ID {
				t.Errorf("Expected %s to be primary, got %s", second.ID, e.ID)
			}
		}
	}
	if primaries != 1 {
		t.Errorf("Expected exactly one primary, got %d", primaries)
	}

	if err := repo.SetPrimary(ctx, contact.ID, "eml_missing"); errors.KindOf(err) != errors.KindNotFound {
		t.Errorf("Expected not found for unknown email, got %v", err)
	}
	_ = first
}

func TestRepository_MatchByEmails(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	repo := scopedRepo(db, "org_1")
	other := scopedRepo(db, "org_2")
	ctx := context.Background()

	contact, err := repo.Create(ctx, &Input{FirstName: "Ada"})
	if err != nil {
		t.Fatalf("Failed to create contact: %v", err)
	}
	if _, err := repo.AddEmail(ctx, contact.ID, "ada@example.com", "work", true); err != nil {
		t.Fatalf("AddEmail failed: %v", err)
	}

	matches, err := repo.MatchByEmails(ctx, []string{"ADA@example.com", "unknown@example.com"})
	if err != nil {
		t.Fatalf("MatchByEmails failed: %v", err)
	}
	if len(matches) != 1 || matches["ada@example.com"] != contact.ID {
		t.Errorf("Unexpected matches: %v", matches)
	}

	// The address is invisible to another tenant.
	crossMatches, err := other.MatchByEmails(ctx, []string{"ada@example.com"})
	if err != nil {
		t.Fatalf("MatchByEmails failed: %v", err)
	}
	if len(crossMatches) != 0 {
		t.Errorf("Expected no cross-tenant matches, got %v", crossMatches)
	}
}

func TestRepository_DeleteCascades(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	repo := scopedRepo(db, "org_1")
	ctx := context.Background()

	contact, err := repo.Create(ctx, &Input{FirstName: "Ada"})
	if err != nil {
		t.Fatalf("Failed to create contact: %v", err)
	}
	if _, err := repo.AddEmail(ctx, contact.ID, "ada@example.com", "work", true); err != nil {
		t.Fatalf("AddEmail failed: %v", err)
	}
	if _, err := db.Exec(`INSERT INTO company_contacts (company_id, contact_id, created_at, tenant_id) VALUES ('cmp_1', ?, 1, 'org_1')`, contact.ID); err != nil {
		t.Fatalf("Seed link failed: %v", err)
	}

	if err := repo.Delete(ctx, contact.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	var emails, links int
	db.QueryRow(`SELECT COUNT(*) FROM contact_emails WHERE contact_id = ?`, contact.ID).Scan(&emails)
	db.QueryRow(`SELECT COUNT(*) FROM company_contacts WHERE contact_id = ?`, contact.ID).Scan(&links)
	if emails != 0 || links != 0 {
		t.Errorf("Expected cascade delete, got %d emails and %d links", emails, links)
	}
}
