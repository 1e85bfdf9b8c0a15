package meetings

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"traction/internal/engine/companies"
	"traction/internal/engine/contacts"
	"traction/internal/pkg/errors"
	"traction/internal/platform/auth"
	"traction/internal/platform/database"
	"traction/internal/platform/models"
	"traction/internal/platform/repositories"
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
	CREATE TABLE contact_emails (
		id TEXT PRIMARY KEY,
		contact_id TEXT NOT NULL,
		email TEXT NOT NULL,
		email_type TEXT NOT NULL,
		is_primary INTEGER NOT NULL DEFAULT 0,
		is_verified INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL,
		tenant_id TEXT NOT NULL
	);
	CREATE TABLE company_contacts (
		company_id TEXT NOT NULL,
		contact_id TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		tenant_id TEXT NOT NULL,
		PRIMARY KEY (company_id, contact_id)
	);
	CREATE TABLE tenant_settings (
		organization_id TEXT PRIMARY KEY,
		feature_fireflies INTEGER NOT NULL DEFAULT 0,
		feature_ai INTEGER NOT NULL DEFAULT 0,
		ai_features TEXT NOT NULL DEFAULT '{}',
		milestone_tracking INTEGER NOT NULL DEFAULT 0,
		enabled_tracks TEXT NOT NULL DEFAULT '[]',
		fireflies_secret_id TEXT NOT NULL DEFAULT '',
		ai_secret_id TEXT NOT NULL DEFAULT '',
		sync_start_date INTEGER,
		last_sync_at INTEGER,
		updated_at INTEGER NOT NULL DEFAULT 0
	);
	CREATE TABLE staged_meetings (
		id TEXT PRIMARY KEY,
		fireflies_transcript_id TEXT NOT NULL,
		title TEXT NOT NULL DEFAULT '',
		meeting_date INTEGER NOT NULL DEFAULT 0,
		participants TEXT NOT NULL DEFAULT '[]',
		match_type TEXT NOT NULL DEFAULT 'none',
		matched_contact_ids TEXT NOT NULL DEFAULT '[]',
		import_status TEXT NOT NULL,
		imported_to_interaction_id TEXT,
		excluded_at INTEGER,
		excluded_by TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL,
		tenant_id TEXT NOT NULL,
		UNIQUE (tenant_id, fireflies_transcript_id)
	);
	CREATE TABLE interactions (
		id TEXT PRIMARY KEY,
		fireflies_transcript_id TEXT NOT NULL,
		title TEXT NOT NULL DEFAULT '',
		occurred_at INTEGER NOT NULL DEFAULT 0,
		transcript TEXT NOT NULL DEFAULT '',
		summary TEXT NOT NULL DEFAULT '',
		created_by TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		tenant_id TEXT NOT NULL,
		UNIQUE (tenant_id, fireflies_transcript_id)
	);
	CREATE TABLE interaction_contacts (
		interaction_id TEXT NOT NULL,
		contact_id TEXT NOT NULL,
		tenant_id TEXT NOT NULL,
		PRIMARY KEY (interaction_id, contact_id)
	);
	CREATE TABLE interaction_companies (
		interaction_id TEXT NOT NULL,
		company_id TEXT NOT NULL,
		tenant_id TEXT NOT NULL,
		PRIMARY KEY (interaction_id, company_id)
	);
	`)
	if err != nil {
		t.Fatalf("Failed to create tables: %v", err)
	}

	if _, err := db.Exec(`INSERT INTO tenant_settings (organization_id, feature_fireflies) VALUES ('org_1', 1)`); err != nil {
		t.Fatalf("Seed settings failed: %v", err)
	}
	return db
}

type fakeProvider struct {
	meetings      []ProviderMeeting
	transcripts   map[string]*ProviderTranscript
	transcriptErr error
	listCalls     int
}

func (f *fakeProvider) ListMeetings(ctx context.Context, from, to time.Time) ([]ProviderMeeting, error) {
	f.listCalls++
	return f.meetings, nil
}

func (f *fakeProvider) GetTranscript(ctx context.Context, id string) (*ProviderTranscript, error) {
	if f.transcriptErr != nil {
		return nil, f.transcriptErr
	}
	tr, ok := f.transcripts[id]
	if !ok {
		return nil, errors.NotFound("transcript")
	}
	return tr, nil
}

func testService(t *testing.T, db *sql.DB, provider Provider) (*Service, *Repository) {
	tdb := database.Scope(db, &auth.Claims{UserID: "usr_1", TenantID: "org_1", Role: auth.RoleEditor})
	repo := NewRepository(tdb)
	svc := NewService(
		tdb,
		repo,
		contacts.NewRepository(tdb),
		companies.NewRepository(tdb),
		repositories.NewSettingsRepository(db),
		provider,
		90*24*time.Hour,
	)
	return svc, repo
}

func enabledSettings() *models.TenantSettings {
	return &models.TenantSettings{OrganizationID: "org_1", FeatureFireflies: true}
}

func TestService_SyncDisabled(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	svc, _ := testService(t, db, &fakeProvider{})

	_, err := svc.Sync(context.Background(), &models.TenantSettings{OrganizationID: "org_1"})
	if errors.KindOf(err) != errors.KindNotConfigured {
		t.Errorf("Expected not configured, got %v", err)
	}
}

func TestService_SyncStagesAndDedupes(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	provider := &fakeProvider{
		meetings: []ProviderMeeting{
			{TranscriptID: "ff_1", Title: "Kickoff", Date: 1000, ParticipantEmails: []string{"ada@example.com", "stranger@example.com"}},
			{TranscriptID: "ff_2", Title: "Followup", Date: 2000, ParticipantEmails: []string{"stranger@example.com"}},
		},
	}
	svc, repo := testService(t, db, provider)
	ctx := context.Background()

	// A known contact so ff_1 matches by email.
	if _, err := db.Exec(`INSERT INTO contacts (id, tenant_id, created_at, updated_at) VALUES ('cnt_1', 'org_1', 1, 1)`); err != nil {
		t.Fatalf("Seed contact failed: %v", err)
	}
	if _, err := db.Exec(`INSERT INTO contact_emails (id, contact_id, email, email_type, created_at, tenant_id) VALUES ('eml_1', 'cnt_1', 'ada@example.com', 'work', 1, 'org_1')`); err != nil {
		t.Fatalf("Seed email failed: %v", err)
	}

	result, err := svc.Sync(ctx, enabledSettings())
	if err != nil {
		t.Fatalf("Sync failed: %v", err)
	}
	if result.Fetched != 2 || result.Staged != 2 || result.Skipped != 0 {
		t.Errorf("Unexpected sync result: %+v", result)
	}

	staged, err := repo.ListStaged(ctx, ImportStatusPending)
	if err != nil {
		t.Fatalf("ListStaged failed: %v", err)
	}
	if len(staged) != 2 {
		t.Fatalf("Expected 2 staged meetings, got %d", len(staged))
	}
	// Listed newest first by meeting date.
	if staged[0].FirefliesTranscriptID != "ff_2" {
		t.Errorf("Expected ff_2 first, got %s", staged[0].FirefliesTranscriptID)
	}
	if staged[1].MatchType != "email" || len(staged[1].MatchedContactIDs) != 1 || staged[1].MatchedContactIDs[0] != "cnt_1" {
		t.Errorf("Expected email match on ff_1, got %+v", staged[1])
	}
	if staged[0].MatchType != "none" {
		t.Errorf("Expected no match on ff_2, got %s", staged[0].MatchType)
	}

	// last_sync_at recorded because meetings were fetched.
	var lastSync sql.NullInt64
	db.QueryRow(`SELECT last_sync_at FROM tenant_settings WHERE organization_id = 'org_1'`).Scan(&lastSync)
	if !lastSync.Valid {
		t.Error("Expected last_sync_at to be set")
	}

	// A second run fetches the same meetings and skips them all.
	again, err := svc.Sync(ctx, enabledSettings())
	if err != nil {
		t.Fatalf("Second sync failed: %v", err)
	}
	if again.Staged != 0 || again.Skipped != 2 {
		t.Errorf("Expected second sync to skip everything, got %+v", again)
	}
}

func TestService_SyncEmptyFetchKeepsWatermark(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	svc, _ := testService(t, db, &fakeProvider{})

	if _, err := svc.Sync(context.Background(), enabledSettings()); err != nil {
		t.Fatalf("Sync failed: %v", err)
	}

	var lastSync sql.NullInt64
	db.QueryRow(`SELECT last_sync_at FROM tenant_settings WHERE organization_id = 'org_1'`).Scan(&lastSync)
	if lastSync.Valid {
		t.Error("Expected last_sync_at untouched when nothing was fetched")
	}
}

func TestService_PromoteImportsAndLinks(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	provider := &fakeProvider{
		meetings: []ProviderMeeting{
			{TranscriptID: "ff_1", Title: "Kickoff", Date: 1000, ParticipantEmails: []string{"ada@example.com"}},
		},
		transcripts: map[string]*ProviderTranscript{
			"ff_1": {TranscriptID: "ff_1", Title: "Kickoff", Date: 1000, Text: "Ada: hello\n", Summary: "intro call"},
		},
	}
	svc, repo := testService(t, db, provider)
	ctx := context.Background()

	// Contact linked to a company for transitive linkage.
	seed := `
	INSERT INTO contacts (id, tenant_id, created_at, updated_at) VALUES ('cnt_1', 'org_1', 1, 1);
	INSERT INTO contact_emails (id, contact_id, email, email_type, created_at, tenant_id) VALUES ('eml_1', 'cnt_1', 'ada@example.com', 'work', 1, 'org_1');
	INSERT INTO companies (id, tenant_id, business_name, created_at, updated_at) VALUES ('cmp_1', 'org_1', 'Acme', 1, 1);
	INSERT INTO company_contacts (company_id, contact_id, created_at, tenant_id) VALUES ('cmp_1', 'cnt_1', 1, 'org_1');
	`
	if _, err := db.Exec(seed); err != nil {
		t.Fatalf("Seed failed: %v", err)
	}

	if _, err := svc.Sync(ctx, enabledSettings()); err != nil {
		t.Fatalf("Sync failed: %v", err)
	}
	staged, _ := repo.ListStaged(ctx, ImportStatusPending)
	if len(staged) != 1 {
		t.Fatalf("Expected 1 staged meeting, got %d", len(staged))
	}

	results, imported := svc.Promote(ctx, []string{staged[0].ID}, "usr_1")
	if imported != 1 {
		t.Fatalf("Expected 1 import, got %d (results: %+v)", imported, results)
	}
	if results[0].InteractionID == "" {
		t.Fatal("Expected interaction id in result")
	}

	interaction, err := repo.GetInteraction(ctx, results[0].InteractionID)
	if err != nil || interaction == nil {
		t.Fatalf("GetInteraction failed: %v", err)
	}
	if interaction.Transcript != "Ada: hello\n" || interaction.Summary != "intro call" {
		t.Errorf("Unexpected interaction content: %+v", interaction)
	}

	var contactLinks, companyLinks int
	db.QueryRow(`SELECT COUNT(*) FROM interaction_contacts WHERE interaction_id = ?`, interaction.ID).Scan(&contactLinks)
	db.QueryRow(`SELECT COUNT(*) FROM interaction_companies WHERE interaction_id = ?`, interaction.ID).Scan(&companyLinks)
	if contactLinks != 1 || companyLinks != 1 {
		t.Errorf("Expected 1 contact and 1 company link, got %d and %d", contactLinks, companyLinks)
	}

	// The staged row is now terminal.
	resolved, _ := repo.GetStaged(ctx, staged[0].ID)
	if resolved.ImportStatus != ImportStatusImported {
		t.Errorf("Expected imported status, got %s", resolved.ImportStatus)
	}
	if resolved.ImportedInteractionID == nil || *resolved.ImportedInteractionID != interaction.ID {
		t.Errorf("Expected staged row to reference the interaction")
	}

	// Re-promoting reports failure without creating a second interaction.
	_, imported = svc.Promote(ctx, []string{staged[0].ID}, "usr_1")
	if imported != 0 {
		t.Error("Expected re-promotion to import nothing")
	}
}

func TestService_PromoteTranscriptFailureLeavesPending(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	provider := &fakeProvider{
		meetings: []ProviderMeeting{
			{TranscriptID: "ff_1", Title: "Kickoff", Date: 1000},
		},
		transcriptErr: errors.External("provider down"),
	}
	svc, repo := testService(t, db, provider)
	ctx := context.Background()

	if _, err := svc.Sync(ctx, enabledSettings()); err != nil {
		t.Fatalf("Sync failed: %v", err)
	}
	staged, _ := repo.ListStaged(ctx, ImportStatusPending)

	results, imported := svc.Promote(ctx, []string{staged[0].ID}, "usr_1")
	if imported != 0 || results[0].Error == "" {
		t.Errorf("Expected failed promotion, got %+v", results)
	}

	// The row stays pending and a later retry succeeds.
	provider.transcriptErr = nil
	provider.transcripts = map[string]*ProviderTranscript{
		"ff_1": {TranscriptID: "ff_1", Title: "Kickoff", Date: 1000, Text: "hello"},
	}
	_, imported = svc.Promote(ctx, []string{staged[0].ID}, "usr_1")
	if imported != 1 {
		t.Error("Expected retry to succeed")
	}
}

func TestService_PromoteBatchIsolation(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	provider := &fakeProvider{
		meetings: []ProviderMeeting{
			{TranscriptID: "ff_ok", Title: "Good", Date: 1000},
			{TranscriptID: "ff_bad", Title: "Bad", Date: 2000},
		},
		transcripts: map[string]*ProviderTranscript{
			"ff_ok": {TranscriptID: "ff_ok", Title: "Good", Date: 1000, Text: "hello"},
		},
	}
	svc, repo := testService(t, db, provider)
	ctx := context.Background()

	if _, err := svc.Sync(ctx, enabledSettings()); err != nil {
		t.Fatalf("Sync failed: %v", err)
	}
	staged, _ := repo.ListStaged(ctx, "")
	if len(staged) != 2 {
		t.Fatalf("Expected 2 staged meetings, got %d", len(staged))
	}

	ids := []string{staged[0].ID, staged[1].ID, "stg_missing"}
	results, imported := svc.Promote(ctx, ids, "usr_1")
	if imported != 1 {
		t.Errorf("Expected exactly 1 import, got %d", imported)
	}
	if len(results) != 3 {
		t.Fatalf("Expected 3 results, got %d", len(results))
	}
	failures := 0
	for _, res := range results {
		if !res.Imported {
			failures++
			if res.Error == "" {
				t.Errorf("Failed item missing error: %+v", res)
			}
		}
	}
	if failures != 2 {
		t.Errorf("Expected 2 failures, got %d", failures)
	}
}

func TestService_ExcludeAndUndo(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	provider := &fakeProvider{
		meetings: []ProviderMeeting{{TranscriptID: "ff_1", Title: "Kickoff", Date: 1000}},
	}
	svc, repo := testService(t, db, provider)
	ctx := context.Background()

	if _, err := svc.Sync(ctx, enabledSettings()); err != nil {
		t.Fatalf("Sync failed: %v", err)
	}
	staged, _ := repo.ListStaged(ctx, ImportStatusPending)
	id := staged[0].ID

	if err := svc.Exclude(ctx, id, "usr_1"); err != nil {
		t.Fatalf("Exclude failed: %v", err)
	}
	excluded, _ := repo.GetStaged(ctx, id)
	if excluded.ImportStatus != ImportStatusExcluded || excluded.ExcludedAt == nil || excluded.ExcludedBy != "usr_1" {
		t.Errorf("Unexpected excluded row: %+v", excluded)
	}

	// Excluded meetings cannot be promoted.
	_, imported := svc.Promote(ctx, []string{id}, "usr_1")
	if imported != 0 {
		t.Error("Expected excluded meeting not to import")
	}

	// Excluding again is not found; only pending rows qualify.
	if err := svc.Exclude(ctx, id, "usr_1"); errors.KindOf(err) != errors.KindNotFound {
		t.Errorf("Expected not found for double exclude, got %v", err)
	}

	if err := svc.UndoExclude(ctx, id); err != nil {
		t.Fatalf("UndoExclude failed: %v", err)
	}
	restored, _ := repo.GetStaged(ctx, id)
	if restored.ImportStatus != ImportStatusPending || restored.ExcludedAt != nil || restored.ExcludedBy != "" {
		t.Errorf("Unexpected restored row: %+v", restored)
	}

	if err := svc.UndoExclude(ctx, id); errors.KindOf(err) != errors.KindNotFound {
		t.Errorf("Expected not found for undo on pending row, got %v", err)
	}
}
