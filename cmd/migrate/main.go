package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"traction/internal/pkg/logger"
	"traction/internal/platform/config"
	"traction/internal/platform/database"
)

var statements = []string{
	`CREATE TABLE IF NOT EXISTS organizations (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		slug TEXT NOT NULL UNIQUE,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL,
		deleted_at INTEGER
	)`,

	`CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		email TEXT NOT NULL UNIQUE,
		email_verified INTEGER NOT NULL DEFAULT 0,
		password_hash TEXT NOT NULL,
		full_name TEXT NOT NULL DEFAULT '',
		last_login_at INTEGER,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL,
		deleted_at INTEGER
	)`,

	`CREATE TABLE IF NOT EXISTS memberships (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES users(id),
		organization_id TEXT NOT NULL REFERENCES organizations(id),
		role TEXT NOT NULL CHECK (role IN ('viewer', 'editor', 'admin', 'owner')),
		created_at INTEGER NOT NULL,
		UNIQUE (user_id, organization_id)
	)`,

	`CREATE TABLE IF NOT EXISTS invitations (
		id TEXT PRIMARY KEY,
		organization_id TEXT NOT NULL REFERENCES organizations(id),
		email TEXT NOT NULL,
		role TEXT NOT NULL CHECK (role IN ('viewer', 'editor', 'admin')),
		token TEXT NOT NULL UNIQUE,
		invited_by TEXT NOT NULL,
		expires_at INTEGER NOT NULL,
		accepted_at INTEGER,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_invitations_pending
		ON invitations (organization_id, email) WHERE accepted_at IS NULL`,

	`CREATE TABLE IF NOT EXISTS tenant_settings (
		organization_id TEXT PRIMARY KEY REFERENCES organizations(id),
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
	)`,

	`CREATE TABLE IF NOT EXISTS secrets (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		ciphertext BLOB NOT NULL,
		nonce BLOB NOT NULL,
		created_at INTEGER NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS audit_logs (
		id TEXT PRIMARY KEY,
		organization_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		action TEXT NOT NULL,
		resource_type TEXT NOT NULL,
		resource_id TEXT NOT NULL DEFAULT '',
		metadata TEXT NOT NULL DEFAULT '{}',
		created_at INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_audit_logs_org ON audit_logs (organization_id, created_at)`,

	`CREATE TABLE IF NOT EXISTS milestone_tracks (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		slug TEXT NOT NULL UNIQUE,
		created_at INTEGER NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS milestone_definitions (
		id TEXT PRIMARY KEY,
		track_id TEXT NOT NULL REFERENCES milestone_tracks(id),
		name TEXT NOT NULL,
		order_position INTEGER NOT NULL,
		evidence_description TEXT NOT NULL DEFAULT '',
		objective_signal TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL,
		UNIQUE (track_id, order_position)
	)`,

	`CREATE TABLE IF NOT EXISTS companies (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		business_name TEXT NOT NULL,
		website TEXT NOT NULL DEFAULT '',
		industry TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_companies_tenant ON companies (tenant_id)`,

	`CREATE TABLE IF NOT EXISTS contacts (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		first_name TEXT NOT NULL DEFAULT '',
		last_name TEXT NOT NULL DEFAULT '',
		title TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_contacts_tenant ON contacts (tenant_id)`,

	`CREATE TABLE IF NOT EXISTS contact_emails (
		id TEXT PRIMARY KEY,
		contact_id TEXT NOT NULL REFERENCES contacts(id),
		email TEXT NOT NULL,
		email_type TEXT NOT NULL CHECK (email_type IN ('work', 'personal', 'other')),
		is_primary INTEGER NOT NULL DEFAULT 0,
		is_verified INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL,
		tenant_id TEXT NOT NULL,
		UNIQUE (contact_id, email)
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_contact_emails_primary
		ON contact_emails (contact_id) WHERE is_primary = 1`,
	`CREATE INDEX IF NOT EXISTS idx_contact_emails_lookup ON contact_emails (tenant_id, email)`,

	`CREATE TABLE IF NOT EXISTS company_contacts (
		company_id TEXT NOT NULL REFERENCES companies(id),
		contact_id TEXT NOT NULL REFERENCES contacts(id),
		created_at INTEGER NOT NULL,
		tenant_id TEXT NOT NULL,
		PRIMARY KEY (company_id, contact_id)
	)`,

	`CREATE TABLE IF NOT EXISTS programs (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		starts_at INTEGER,
		ends_at INTEGER,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS program_enrollments (
		id TEXT PRIMARY KEY,
		program_id TEXT NOT NULL REFERENCES programs(id),
		company_id TEXT NOT NULL REFERENCES companies(id),
		status TEXT NOT NULL DEFAULT 'active',
		created_at INTEGER NOT NULL,
		tenant_id TEXT NOT NULL,
		UNIQUE (program_id, company_id)
	)`,

	`CREATE TABLE IF NOT EXISTS commitments (
		id TEXT PRIMARY KEY,
		company_id TEXT NOT NULL REFERENCES companies(id),
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL CHECK (status IN ('open', 'completed', 'not_completed', 'cancelled')),
		due_date INTEGER,
		completed_at INTEGER,
		completion_notes TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL,
		tenant_id TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_commitments_company ON commitments (tenant_id, company_id)`,

	`CREATE TABLE IF NOT EXISTS company_milestones (
		company_id TEXT NOT NULL REFERENCES companies(id),
		milestone_definition_id TEXT NOT NULL REFERENCES milestone_definitions(id),
		status TEXT NOT NULL DEFAULT 'in_progress',
		completed_at INTEGER,
		is_verified INTEGER NOT NULL DEFAULT 0,
		notes TEXT NOT NULL DEFAULT '',
		updated_at INTEGER NOT NULL,
		tenant_id TEXT NOT NULL,
		PRIMARY KEY (company_id, tenant_id)
	)`,

	`CREATE TABLE IF NOT EXISTS milestone_history (
		id TEXT PRIMARY KEY,
		company_id TEXT NOT NULL REFERENCES companies(id),
		from_milestone_id TEXT,
		to_milestone_id TEXT NOT NULL,
		changed_at INTEGER NOT NULL,
		changed_by TEXT NOT NULL,
		metadata TEXT NOT NULL DEFAULT '{}',
		tenant_id TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_milestone_history_company ON milestone_history (tenant_id, company_id, changed_at)`,

	`CREATE TABLE IF NOT EXISTS staged_meetings (
		id TEXT PRIMARY KEY,
		fireflies_transcript_id TEXT NOT NULL,
		title TEXT NOT NULL DEFAULT '',
		meeting_date INTEGER NOT NULL DEFAULT 0,
		participants TEXT NOT NULL DEFAULT '[]',
		match_type TEXT NOT NULL DEFAULT 'none',
		matched_contact_ids TEXT NOT NULL DEFAULT '[]',
		import_status TEXT NOT NULL CHECK (import_status IN ('pending', 'imported', 'excluded')),
		imported_to_interaction_id TEXT,
		excluded_at INTEGER,
		excluded_by TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL,
		tenant_id TEXT NOT NULL,
		UNIQUE (tenant_id, fireflies_transcript_id)
	)`,

	`CREATE TABLE IF NOT EXISTS interactions (
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
	)`,

	`CREATE TABLE IF NOT EXISTS interaction_contacts (
		interaction_id TEXT NOT NULL REFERENCES interactions(id),
		contact_id TEXT NOT NULL REFERENCES contacts(id),
		tenant_id TEXT NOT NULL,
		PRIMARY KEY (interaction_id, contact_id)
	)`,

	`CREATE TABLE IF NOT EXISTS interaction_companies (
		interaction_id TEXT NOT NULL REFERENCES interactions(id),
		company_id TEXT NOT NULL REFERENCES companies(id),
		tenant_id TEXT NOT NULL,
		PRIMARY KEY (interaction_id, company_id)
	)`,
}

// seedTracks installs the default milestone catalog. Tracks are global; which
// ones a tenant sees is controlled by its settings.
var seedTracks = map[string][]string{
	"software": {
		"Problem validated",
		"Prototype demoed",
		"First pilot customer",
		"First paying customer",
		"Repeatable sales",
	},
	"hardware": {
		"Concept validated",
		"Breadboard prototype",
		"Works-like prototype",
		"Design for manufacture",
		"First production run",
	},
}

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	seed := flag.Bool("seed", false, "seed the default milestone catalog")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.Logging)

	db, err := database.Open(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open database")
	}
	defer db.Close()

	for _, stmt := range statements {
		if _, err := db.Exec(stmt); err != nil {
			log.Fatal().Err(err).Str("statement", stmt).Msg("migration failed")
		}
	}
	log.Info().Int("statements", len(statements)).Msg("migrations applied")

	if *seed {
		now := time.Now().Unix()
		for slug, names := range seedTracks {
			trackID := "trk_" + uuid.NewString()
			res, err := db.Exec(`INSERT OR IGNORE INTO milestone_tracks (id, name, slug, created_at) VALUES (?, ?, ?, ?)`,
				trackID, titleCase(slug), slug, now)
			if err != nil {
				log.Fatal().Err(err).Str("track", slug).Msg("seed failed")
			}
			if n, _ := res.RowsAffected(); n == 0 {
				continue
			}
			for i, name := range names {
				if _, err := db.Exec(`INSERT INTO milestone_definitions (id, track_id, name, order_position, created_at) VALUES (?, ?, ?, ?, ?)`,
					"mdef_"+uuid.NewString(), trackID, name, i, now); err != nil {
					log.Fatal().Err(err).Str("definition", name).Msg("seed failed")
				}
			}
		}
		log.Info().Msg("milestone catalog seeded")
	}
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return string(s[0]-'a'+'A') + s[1:]
}
