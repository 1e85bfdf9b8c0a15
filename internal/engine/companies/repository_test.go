package companies

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
	CREATE TABLE companies (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		business_name TEXT NOT NULL,
		website TEXT NOT NULL DEFAULT '',
		industry TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE TABLE contacts (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		first_name TEXT NOT NULL DEFAULT '',
		last_name TEXT NOT NULL DEFAULT '',
		title TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
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

func TestRepository_CreateAndGet(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	repo := scopedRepo(db, "org_1")
	ctx := context.Background()

	company, err := repo.Create(ctx, &Input{BusinessName: "Acme Robotics", Industry: "robotics"})
	if err != nil {
		t.Fatalf("Failed to create company: %v", err)
	}
	if company.TenantID != "org_1" {
		t.Errorf("Expected tenant org_1, got %s", company.TenantID)
	}

	fetched, err := repo.GetByID(ctx, company.ID)
	if err != nil {
		t.Fatalf("Failed to get company: %v", err)
	}
	if fetched == nil || fetched.BusinessName != "Acme Robotics" {
		t.Errorf("Unexpected fetch result: %+v", fetched)
	}
}

func TestRepository_ValidationRejected(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	repo := scopedRepo(db, "org_1")

	_, err := repo.Create(context.Background(), &Input{BusinessName: "  "})
	if errors.KindOf(err) != errors.KindValidation {
		t.Errorf("Expected validation error, got %v", err)
	}
}

func TestRepository_TenantIsolation(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	t1 := scopedRepo(db, "org_1")
	t2 := scopedRepo(db, "org_2")
	ctx := context.Background()

	company, err := t1.Create(ctx, &Input{BusinessName: "Tenant One Co"})
	if err != nil {
		t.Fatalf("Failed to create company: %v", err)
	}

	// Another tenant sees nothing, not an error.
	fetched, err := t2.GetByID(ctx, company.ID)
	if err != nil {
		t.Fatalf("Cross-tenant get failed: %v", err)
	}
	if fetched != nil {
		t.Errorf("Expected nil for cross-tenant get, got %+v", fetched)
	}

	// Update and delete behave like the row does not exist.
	if _, err := t2.Update(ctx, company.ID, &Input{BusinessName: "Hijacked"}); errors.KindOf(err) != errors.KindNotFound {
		t.Errorf("Expected not found on cross-tenant update, got %v", err)
	}
	if err := t2.Delete(ctx, company.ID); errors.KindOf(err) != errors.KindNotFound {
		t.Errorf("Expected not found on cross-tenant delete, got %v", err)
	}

	list, err := t2.List(ctx, Filter{})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(list) != 0 {
		t.Errorf("Expected empty list for other tenant, got %d rows", len(list))
	}
}

func TestRepository_ListFilters(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	repo := scopedRepo(db, "org_1")
	ctx := context.Background()

	for _, in := range []*Input{
		{BusinessName: "Alpha Widgets", Industry: "manufacturing"},
		{BusinessName: "Beta Software", Industry: "software"},
		{BusinessName: "Alpha Analytics", Industry: "software"},
	} {
		if _, err := repo.Create(ctx, in); err != nil {
			t.Fatalf("Failed to create company: %v", err)
		}
	}

	byQuery, err := repo.List(ctx, Filter{Query: "Alpha"})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(byQuery) != 2 {
		t.Errorf("Expected 2 matches for Alpha, got %d", len(byQuery))
	}

	byIndustry, err := repo.List(ctx, Filter{Industry: "software"})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(byIndustry) != 2 {
		t.Errorf("Expected 2 software companies, got %d", len(byIndustry))
	}

	paged, err := repo.List(ctx, Filter{Limit: 1, Offset: 1})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(paged) != 1 {
		t.Errorf("Expected 1 row with limit 1, got %d", len(paged))
	}
}

func TestRepository_LinkContact(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	repo := scopedRepo(db, "org_1")
	ctx := context.Background()

	company, err := repo.Create(ctx, &Input{BusinessName: "Acme"})
	if err != nil {
		t.Fatalf("Failed to create company: %v", err)
	}

	if _, err := db.Exec(`INSERT INTO contacts (id, tenant_id, created_at, updated_at) VALUES ('cnt_1', 'org_1', 1, 1)`); err != nil {
		t.Fatalf("Seed contact failed: %v", err)
	}
	if _, err := db.Exec(`INSERT INTO contacts (id, tenant_id, created_at, updated_at) VALUES ('cnt_other', 'org_2', 1, 1)`); err != nil {
		t.Fatalf("Seed contact failed: %v", err)
	}

	if err := repo.LinkContact(ctx, company.ID, "cnt_1"); err != nil {
		t.Fatalf("LinkContact failed: %v", err)
	}

	// A contact in another tenant cannot be linked.
	if err := repo.LinkContact(ctx, company.ID, "cnt_other"); errors.KindOf(err) != errors.KindNotFound {
		t.Errorf("Expected not found for cross-tenant contact, got %v", err)
	}

	ids, err := repo.ListContactIDs(ctx, company.ID)
	if err != nil {
		t.Fatalf("ListContactIDs failed: %v", err)
	}
	if len(ids) != 1 || ids[0] != "cnt_1" {
		t.Errorf("Unexpected contact ids: %v", ids)
	}

	companyIDs, err := repo.CompaniesForContacts(ctx, []string{"cnt_1", "cnt_1"})
	if err != nil {
		t.Fatalf("CompaniesForContacts failed: %v", err)
	}
	if len(companyIDs) != 1 || companyIDs[0] != company.ID {
		t.Errorf("Unexpected company ids: %v", companyIDs)
	}

	if err := repo.UnlinkContact(ctx, company.ID, "cnt_1"); err != nil {
		t.Fatalf("UnlinkContact failed: %v", err)
	}
	if err := repo.UnlinkContact(ctx, company.ID, "cnt_1"); errors.KindOf(err) != errors.KindNotFound {
		t.Errorf("Expected not found for repeated unlink, got %v", err)
	}
}
