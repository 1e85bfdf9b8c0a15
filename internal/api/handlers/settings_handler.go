package handlers

import (
	"net/http"
	"strings"

	"traction/internal/pkg/errors"
	"traction/internal/platform/audit"
	"traction/internal/platform/repositories"
	"traction/internal/platform/secrets"
)

type SettingsHandler struct {
	settingsRepo *repositories.SettingsRepository
	secrets      *secrets.Store
	audit        *audit.Logger
}

func NewSettingsHandler(settingsRepo *repositories.SettingsRepository, secretStore *secrets.Store, auditLog *audit.Logger) *SettingsHandler {
	return &SettingsHandler{
		settingsRepo: settingsRepo,
		secrets:      secretStore,
		audit:        auditLog,
	}
}

func (h *SettingsHandler) Get(w http.ResponseWriter, r *http.Request) {
	tc := tenantFrom(r)
	writeJSON(w, http.StatusOK, tc.Settings)
}

type settingsUpdateRequest struct {
	FeatureFireflies  *bool           `json:"feature_fireflies,omitempty"`
	FeatureAI         *bool           `json:"feature_ai_integration,omitempty"`
	AIFeatures        map[string]bool `json:"ai_features,omitempty"`
	MilestoneTracking *bool           `json:"milestone_tracking,omitempty"`
	EnabledTracks     []string        `json:"enabled_tracks,omitempty"`
	SyncStartDate     *int64          `json:"sync_start_date,omitempty"`
}

// Update applies feature flag changes. Secret references and the sync
// high-water mark are never writable through this endpoint.
func (h *SettingsHandler) Update(w http.ResponseWriter, r *http.Request) {
	tc := tenantFrom(r)

	var req settingsUpdateRequest
	if err := decode(r, &req); err != nil {
		errors.Write(w, err)
		return
	}

	settings := *tc.Settings
	if req.FeatureFireflies != nil {
		settings.FeatureFireflies = *req.FeatureFireflies
	}
	if req.FeatureAI != nil {
		settings.FeatureAI = *req.FeatureAI
	}
	if req.AIFeatures != nil {
		settings.AIFeatures = req.AIFeatures
	}
	if req.MilestoneTracking != nil {
		settings.MilestoneTracking = *req.MilestoneTracking
	}
	if req.EnabledTracks != nil {
		settings.EnabledTracks = req.EnabledTracks
	}
	if req.SyncStartDate != nil {
		settings.SyncStartDate = req.SyncStartDate
	}

	if err := h.settingsRepo.Upsert(&settings); err != nil {
		errors.Write(w, err)
		return
	}

	h.audit.Log(tc.Claims, "settings.update", "tenant_settings", tc.Org.ID, nil)
	writeJSON(w, http.StatusOK, &settings)
}

type integrationRequest struct {
	APIKey string `json:"api_key"`
}

// ConfigureFireflies stores the per-tenant API key in the encrypted secret
// store and enables the integration. A previously stored key is replaced.
func (h *SettingsHandler) ConfigureFireflies(w http.ResponseWriter, r *http.Request) {
	tc := tenantFrom(r)

	var req integrationRequest
	if err := decode(r, &req); err != nil {
		errors.Write(w, err)
		return
	}
	if strings.TrimSpace(req.APIKey) == "" {
		errors.Write(w, errors.Validation("api_key", "api key is required"))
		return
	}

	secretID, err := h.secrets.Create(req.APIKey, "fireflies_api_key", "Fireflies API key for "+tc.Org.Slug)
	if err != nil {
		errors.Write(w, err)
		return
	}

	settings := *tc.Settings
	oldSecretID := settings.FirefliesSecretID
	settings.FirefliesSecretID = secretID
	settings.FeatureFireflies = true

	if err := h.settingsRepo.Upsert(&settings); err != nil {
		errors.Write(w, err)
		return
	}
	if oldSecretID != "" {
		h.secrets.Delete(oldSecretID)
	}

	h.audit.Log(tc.Claims, "settings.configure_fireflies", "tenant_settings", tc.Org.ID, nil)
	writeJSON(w, http.StatusOK, &settings)
}

type aiIntegrationRequest struct {
	APIKey   string          `json:"api_key"`
	Features map[string]bool `json:"features,omitempty"`
}

func (h *SettingsHandler) ConfigureAI(w http.ResponseWriter, r *http.Request) {
	tc := tenantFrom(r)

	var req aiIntegrationRequest
	if err := decode(r, &req); err != nil {
		errors.Write(w, err)
		return
	}
	if strings.TrimSpace(req.APIKey) == "" {
		errors.Write(w, errors.Validation("api_key", "api key is required"))
		return
	}

	secretID, err := h.secrets.Create(req.APIKey, "ai_api_key", "AI provider key for "+tc.Org.Slug)
	if err != nil {
		errors.Write(w, err)
		return
	}

	settings := *tc.Settings
	oldSecretID := settings.AISecretID
	settings.AISecretID = secretID
	settings.FeatureAI = true
	if req.Features != nil {
		settings.AIFeatures = req.Features
	}

	if err := h.settingsRepo.Upsert(&settings); err != nil {
		errors.Write(w, err)
		return
	}
	if oldSecretID != "" {
		h.secrets.Delete(oldSecretID)
	}

	h.audit.Log(tc.Claims, "settings.configure_ai", "tenant_settings", tc.Org.ID, nil)
	writeJSON(w, http.StatusOK, &settings)
}
