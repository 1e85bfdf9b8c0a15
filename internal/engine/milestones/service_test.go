package milestones

import (
	"context"
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"traction/internal/pkg/errors"
	"traction/internal/platform/auth"
	"traction/internal/platform/database"
	"traction/internal/platform/models"
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
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE TABLE milestone_tracks (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		slug TEXT NOT NULL UNIQUE,
		created_at INTEGER NOT NULL
	);
	CREATE TABLE milestone_definitions (
		id TEXT PRIMARY KEY,
		track_id TEXT NOT NULL,
		name TEXT NOT NULL,
		order_position INTEGER NOT NULL,
		evidence_description TEXT NOT NULL DEFAULT '',
		objective_signal TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL,
		UNIQUE (track_id, order_position)
	);
	CREATE TABLE company_milestones (
		company_id TEXT NOT NULL,
		milestone_definition_id TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'in_progress',
		completed_at INTEGER,
		is_verified INTEGER NOT NULL DEFAULT 0,
		notes TEXT NOT NULL DEFAULT '',
		updated_at INTEGER NOT NULL,
		tenant_id TEXT NOT NULL,
		PRIMARY KEY (company_id, tenant_id)
	);
	CREATE TABLE milestone_history (
		id TEXT PRIMARY KEY,
		company_id TEXT NOT NULL,
		from_milestone_id TEXT,
		to_milestone_id TEXT NOT NULL,
		changed_at INTEGER NOT NULL,
		changed_by TEXT NOT NULL,
		metadata TEXT NOT NULL DEFAULT '{}',
		tenant_id TEXT NOT NULL
	);
	`)
	if err != nil {
		t.Fatalf("Failed to create tables: %v", err)
	}

	seed := `
	INSERT INTO companies (id, tenant_id, business_name, created_at, updated_at) VALUES ('cmp_1', 'org_1', 'Acme', 1, 1);
	INSERT INTO milestone_tracks (id, name, slug, created_at) VALUES ('trk_sw', 'Software', 'software', 1);
	INSERT INTO milestone_definitions (id, track_id, name, order_position, created_at) VALUES
		('mdef_0', 'trk_sw', 'Problem validated', 0, 1),
		('mdef_1', 'trk_sw', 'Prototype demoed', 1, 1),
		('mdef_2', 'trk_sw', 'First pilot customer', 2, 1),
		('mdef_3', 'trk_sw', 'First paying customer', 3, 1);
	`
	if _, err := db.Exec(seed); err != nil {
		t.Fatalf("Seed failed: %v", err)
	}
	return db
}

func testService(db *sql.DB, tenantID string) (*Service, *Repository, *database.TenantDB) {
	tdb := database.Scope(db, &auth.Claims{UserID: "usr_1", TenantID: tenantID, Role: auth.RoleEditor})
	repo := NewRepository(tdb)
	return NewService(tdb, repo), repo, tdb
}

func enabledSettings() *models.TenantSettings {
	return &models.TenantSettings{
		OrganizationID:    "org_1",
		MilestoneTracking: true,
		EnabledTracks:     []string{"software"},
	}
}

func TestService_FirstChangeFromNull(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	svc, repo, tdb := testService(db, "org_1")
	ctx := context.Background()

	current, err := svc.SetCurrent(ctx, enabledSettings(), "cmp_1", "mdef_0", "usr_1", ProgressOptions{})
	if err != nil {
		t.Fatalf("SetCurrent failed: %v", err)
	}
	if current.DefinitionID != "mdef_0" || current.Status != "in_progress" {
		t.Errorf("Unexpected current milestone: %+v", current)
	}

	history, err := repo.ListHistory(ctx, "cmp_1")
	if err != nil {
		t.Fatalf("ListHistory failed: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("Expected 1 history row, got %d", len(history))
	}
	if history[0].FromMilestoneID != nil {
		t.Errorf("Expected first change from null, got %v", *history[0].FromMilestoneID)
	}
	if history[0].ToMilestoneID != "mdef_0" {
		t.Errorf("Expected transition to mdef_0, got %s", history[0].ToMilestoneID)
	}

	got, err := repo.GetCurrent(ctx, tdb, "cmp_1")
	if err != nil {
		t.Fatalf("GetCurrent failed: %v", err)
	}
	if got == nil || got.DefinitionID != "mdef_0" {
		t.Errorf("Unexpected stored current: %+v", got)
	}
}

func TestService_HistoryChains(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	svc, repo, _ := testService(db, "org_1")
	ctx := context.Background()

	steps := []string{"mdef_0", "mdef_1", "mdef_2"}
	for _, defID := range steps {
		if _, err := svc.SetCurrent(ctx, enabledSettings(), "cmp_1", defID, "usr_1", ProgressOptions{}); err != nil {
			t.Fatalf("SetCurrent(%s) failed: %v", defID, err)
		}
	}

	history, err := repo.ListHistory(ctx, "cmp_1")
	if err != nil {
		t.Fatalf("ListHistory failed: %v", err)
	}
	if len(history) != len(steps) {
		t.Fatalf("Expected %d history rows, got %d", len(steps), len(history))
	}

	// Each row's from must equal the previous row's to.
	for i, h := range history {
		if i == 0 {
			if h.FromMilestoneID != nil {
				t.Errorf("Row 0: expected from null, got %v", *h.FromMilestoneID)
			}
			continue
		}
		if h.FromMilestoneID == nil || *h.FromMilestoneID != history[i-1].ToMilestoneID {
			t.Errorf("Row %d: broken chain, from=%v prev to=%s", i, h.FromMilestoneID, history[i-1].ToMilestoneID)
		}
	}
}

func TestService_BackfillPrior(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	svc, repo, _ := testService(db, "org_1")
	ctx := context.Background()

	// Jump straight to position 3 with backfill: positions 0..2 each get a
	// chained row, then the final transition.
	if _, err := svc.SetCurrent(ctx, enabledSettings(), "cmp_1", "mdef_3", "usr_1", ProgressOptions{BackfillPrior: true}); err != nil {
		t.Fatalf("SetCurrent failed: %v", err)
	}

	history, err := repo.ListHistory(ctx, "cmp_1")
	if err != nil {
		t.Fatalf("ListHistory failed: %v", err)
	}
	if len(history) != 4 {
		t.Fatalf("Expected 4 history rows, got %d", len(history))
	}

	wantTo := []string{"mdef_0", "mdef_1", "mdef_2", "mdef_3"}
	for i, h := range history {
		if h.ToMilestoneID != wantTo[i] {
			t.Errorf("Row %d: expected to=%s, got %s", i, wantTo[i], h.ToMilestoneID)
		}
		if i > 0 && (h.FromMilestoneID == nil || *h.FromMilestoneID != wantTo[i-1]) {
			t.Errorf("Row %d: broken backfill chain", i)
		}
	}
	for i := 0; i < 3; i++ {
		if history[i].Metadata != `{"backfilled":true}` {
			t.Errorf("Row %d: expected backfill metadata, got %s", i, history[i].Metadata)
		}
	}
	if history[3].Metadata != "{}" {
		t.Errorf("Final row should not be marked backfilled, got %s", history[3].Metadata)
	}
}

func TestService_MarkCompleted(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	svc, _, _ := testService(db, "org_1")

	current, err := svc.SetCurrent(context.Background(), enabledSettings(), "cmp_1", "mdef_0", "usr_1",
		ProgressOptions{MarkCompleted: true, Verified: true, Notes: "demo went well"})
	if err != nil {
		t.Fatalf("SetCurrent failed: %v", err)
	}
	if current.Status != "completed" || current.CompletedAt == nil {
		t.Errorf("Expected completed milestone, got %+v", current)
	}
	if !current.IsVerified || current.Notes != "demo went well" {
		t.Errorf("Expected verification fields preserved, got %+v", current)
	}
}

func TestService_DisabledTrackRejected(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	svc, _, _ := testService(db, "org_1")
	ctx := context.Background()

	disabled := &models.TenantSettings{OrganizationID: "org_1", MilestoneTracking: true}
	if _, err := svc.SetCurrent(ctx, disabled, "cmp_1", "mdef_0", "usr_1", ProgressOptions{}); errors.KindOf(err) != errors.KindNotConfigured {
		t.Errorf("Expected not configured for disabled track, got %v", err)
	}

	trackingOff := &models.TenantSettings{OrganizationID: "org_1", EnabledTracks: []string{"software"}}
	if _, err := svc.SetCurrent(ctx, trackingOff, "cmp_1", "mdef_0", "usr_1", ProgressOptions{}); errors.KindOf(err) != errors.KindNotConfigured {
		t.Errorf("Expected not configured when tracking is off, got %v", err)
	}
}

func TestService_UnknownCompanyAndDefinition(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	svc, _, _ := testService(db, "org_1")
	ctx := context.Background()

	if _, err := svc.SetCurrent(ctx, enabledSettings(), "cmp_1", "mdef_missing", "usr_1", ProgressOptions{}); errors.KindOf(err) != errors.KindNotFound {
		t.Errorf("Expected not found for unknown definition, got %v", err)
	}
	if _, err := svc.SetCurrent(ctx, enabledSettings(), "cmp_missing", "mdef_0", "usr_1", ProgressOptions{}); errors.KindOf(err) != errors.KindNotFound {
		t.Errorf("Expected not found for unknown company, got %v", err)
	}

	// A company in another tenant is just as invisible.
	other, _, _ := testService(db, "org_2")
	if _, err := other.SetCurrent(ctx, enabledSettings(), "cmp_1", "mdef_0", "usr_1", ProgressOptions{}); errors.KindOf(err) != errors.KindNotFound {
		t.Errorf("Expected not found for cross-tenant company, got %v", err)
	}
}
