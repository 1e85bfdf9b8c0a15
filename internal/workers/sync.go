package workers

import (
	"context"
	"database/sql"
	"time"

	"github.com/rs/zerolog/log"
	"traction/internal/engine/companies"
	"traction/internal/engine/contacts"
	"traction/internal/engine/meetings"
	"traction/internal/platform/auth"
	"traction/internal/platform/config"
	"traction/internal/platform/database"
	"traction/internal/platform/repositories"
	"traction/internal/platform/secrets"
)

// SyncWorker periodically runs the meeting import sync for every organization
// with the integration enabled. Each organization is processed independently;
// one failing tenant never blocks the rest.
type SyncWorker struct {
	db           *sql.DB
	orgRepo      *repositories.OrganizationRepository
	settingsRepo *repositories.SettingsRepository
	secrets      *secrets.Store
	fireflies    config.FirefliesConfig
	interval     time.Duration
}

func NewSyncWorker(db *sql.DB, orgRepo *repositories.OrganizationRepository,
	settingsRepo *repositories.SettingsRepository, secretStore *secrets.Store,
	firefliesCfg config.FirefliesConfig, interval time.Duration) *SyncWorker {
	if interval <= 0 {
		interval = time.Hour
	}
	return &SyncWorker{
		db:           db,
		orgRepo:      orgRepo,
		settingsRepo: settingsRepo,
		secrets:      secretStore,
		fireflies:    firefliesCfg,
		interval:     interval,
	}
}

func (w *SyncWorker) Run(ctx context.Context) {
	log.Info().Dur("interval", w.interval).Msg("meeting sync worker started")

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.runOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("meeting sync worker stopping")
			return
		case <-ticker.C:
			w.runOnce(ctx)
		}
	}
}

func (w *SyncWorker) runOnce(ctx context.Context) {
	orgs, err := w.orgRepo.ListActive()
	if err != nil {
		log.Error().Err(err).Msg("failed to list organizations for sync")
		return
	}

	for _, org := range orgs {
		if ctx.Err() != nil {
			return
		}
		if err := w.syncOrganization(ctx, org.ID); err != nil {
			log.Warn().Err(err).Str("organization_id", org.ID).Msg("meeting sync failed")
		}
	}
}

func (w *SyncWorker) syncOrganization(ctx context.Context, orgID string) error {
	settings, err := w.settingsRepo.Get(orgID)
	if err != nil {
		return err
	}
	if !settings.FeatureFireflies || settings.FirefliesSecretID == "" {
		return nil
	}

	// The worker acts as a system admin within each tenant; the scoped handle
	// and the secret read both require it.
	claims := &auth.Claims{UserID: "system", TenantID: orgID, Role: auth.RoleAdmin}

	apiKey, err := w.secrets.Read(claims, settings.FirefliesSecretID)
	if err != nil {
		return err
	}
	provider := meetings.NewFirefliesClient(w.fireflies.BaseURL, apiKey, w.fireflies.RequestTimeout)

	tdb := database.Scope(w.db, claims)
	svc := meetings.NewService(
		tdb,
		meetings.NewRepository(tdb),
		contacts.NewRepository(tdb),
		companies.NewRepository(tdb),
		w.settingsRepo,
		provider,
		w.fireflies.DefaultLookback,
	)

	result, err := svc.Sync(ctx, settings)
	if err != nil {
		return err
	}

	log.Info().Str("organization_id", orgID).
		Int("fetched", result.Fetched).
		Int("staged", result.Staged).
		Int("skipped", result.Skipped).
		Msg("meeting sync completed")
	return nil
}
