package repositories

import (
	"database/sql"
	"encoding/json"
	"time"

	"traction/internal/platform/models"
)

type SettingsRepository struct {
	db *sql.DB
}

func NewSettingsRepository(db *sql.DB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

// Get loads the feature flags for an organization. A missing row yields the
// zero-value settings (all features off) rather than an error, so a tenant
// that never configured anything behaves like one with everything disabled.
func (r *SettingsRepository) Get(orgID string) (*models.TenantSettings, error) {
	s := &models.TenantSettings{OrganizationID: orgID}
	var aiFeatures, enabledTracks []byte
	err := r.db.QueryRow(`
		SELECT feature_fireflies, feature_ai, ai_features, milestone_tracking, enabled_tracks,
		       fireflies_secret_id, ai_secret_id, sync_start_date, last_sync_at, updated_at
		FROM tenant_settings WHERE organization_id = ?
	`, orgID).Scan(&s.FeatureFireflies, &s.FeatureAI, &aiFeatures, &s.MilestoneTracking, &enabledTracks,
		&s.FirefliesSecretID, &s.AISecretID, &s.SyncStartDate, &s.LastSyncAt, &s.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return s, nil
		}
		return nil, err
	}

	if len(aiFeatures) > 0 {
		json.Unmarshal(aiFeatures, &s.AIFeatures)
	}
	if len(enabledTracks) > 0 {
		json.Unmarshal(enabledTracks, &s.EnabledTracks)
	}
	return s, nil
}

func (r *SettingsRepository) Upsert(s *models.TenantSettings) error {
	aiFeatures, _ := json.Marshal(s.AIFeatures)
	enabledTracks, _ := json.Marshal(s.EnabledTracks)
	s.UpdatedAt = time.Now().Unix()

	_, err := r.db.Exec(`
		INSERT INTO tenant_settings (organization_id, feature_fireflies, feature_ai, ai_features,
			milestone_tracking, enabled_tracks, fireflies_secret_id, ai_secret_id, sync_start_date, last_sync_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(organization_id) DO UPDATE SET
			feature_fireflies = excluded.feature_fireflies,
			feature_ai = excluded.feature_ai,
			ai_features = excluded.ai_features,
			milestone_tracking = excluded.milestone_tracking,
			enabled_tracks = excluded.enabled_tracks,
			fireflies_secret_id = excluded.fireflies_secret_id,
			ai_secret_id = excluded.ai_secret_id,
			sync_start_date = excluded.sync_start_date,
			updated_at = excluded.updated_at
	`, s.OrganizationID, s.FeatureFireflies, s.FeatureAI, string(aiFeatures),
		s.MilestoneTracking, string(enabledTracks), s.FirefliesSecretID, s.AISecretID,
		s.SyncStartDate, s.LastSyncAt, s.UpdatedAt)
	return err
}

// UpdateLastSync records the high-water mark for the meeting import sync.
// Called only when a run actually fetched meetings.
func (r *SettingsRepository) UpdateLastSync(orgID string, at int64) error {
	_, err := r.db.Exec(`
		UPDATE tenant_settings SET last_sync_at = ?, updated_at = ? WHERE organization_id = ?
	`, at, time.Now().Unix(), orgID)
	return err
}
