package handlers

import (
	"net/http"

	"traction/internal/api/middleware"
	"traction/internal/engine/ai"
	"traction/internal/engine/companies"
	"traction/internal/engine/contacts"
	"traction/internal/engine/meetings"
	"traction/internal/pkg/errors"
	"traction/internal/platform/audit"
	"traction/internal/platform/config"
	"traction/internal/platform/repositories"
	"traction/internal/platform/secrets"
)

type MeetingHandler struct {
	settingsRepo *repositories.SettingsRepository
	secrets      *secrets.Store
	analyzer     *ai.Analyzer
	audit        *audit.Logger
	fireflies    config.FirefliesConfig
}

func NewMeetingHandler(settingsRepo *repositories.SettingsRepository, secretStore *secrets.Store,
	analyzer *ai.Analyzer, auditLog *audit.Logger, firefliesCfg config.FirefliesConfig) *MeetingHandler {
	return &MeetingHandler{
		settingsRepo: settingsRepo,
		secrets:      secretStore,
		analyzer:     analyzer,
		audit:        auditLog,
		fireflies:    firefliesCfg,
	}
}

// provider builds a Fireflies client from the tenant's stored API key. The
// secret read re-checks the caller's role, so this only works on admin-gated
// routes.
func (h *MeetingHandler) provider(tc *middleware.TenantContext) (meetings.Provider, error) {
	if tc.Settings.FirefliesSecretID == "" {
		return nil, errors.NotConfigured("fireflies API key has not been configured")
	}
	apiKey, err := h.secrets.Read(tc.Claims, tc.Settings.FirefliesSecretID)
	if err != nil {
		return nil, err
	}
	return meetings.NewFirefliesClient(h.fireflies.BaseURL, apiKey, h.fireflies.RequestTimeout), nil
}

func (h *MeetingHandler) service(tc *middleware.TenantContext, provider meetings.Provider) *meetings.Service {
	return meetings.NewService(
		tc.DB,
		meetings.NewRepository(tc.DB),
		contacts.NewRepository(tc.DB),
		companies.NewRepository(tc.DB),
		h.settingsRepo,
		provider,
		h.fireflies.DefaultLookback,
	)
}

func (h *MeetingHandler) Sync(w http.ResponseWriter, r *http.Request) {
	tc := tenantFrom(r)

	provider, err := h.provider(tc)
	if err != nil {
		errors.Write(w, err)
		return
	}

	result, err := h.service(tc, provider).Sync(r.Context(), tc.Settings)
	if err != nil {
		errors.Write(w, err)
		return
	}

	h.audit.Log(tc.Claims, "meetings.sync", "staged_meeting", "",
		map[string]interface{}{"fetched": result.Fetched, "staged": result.Staged, "skipped": result.Skipped})
	writeJSON(w, http.StatusOK, result)
}

func (h *MeetingHandler) ListStaged(w http.ResponseWriter, r *http.Request) {
	tc := tenantFrom(r)
	repo := meetings.NewRepository(tc.DB)

	staged, err := repo.ListStaged(r.Context(), r.URL.Query().Get("status"))
	if err != nil {
		errors.Write(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"staged_meetings": staged})
}

type importRequest struct {
	StagedIDs []string `json:"staged_ids"`
}

// Import promotes the selected staged meetings. Outcomes are per-item; a
// failed item stays pending and the response reports it alongside successes.
func (h *MeetingHandler) Import(w http.ResponseWriter, r *http.Request) {
	tc := tenantFrom(r)

	var req importRequest
	if err := decode(r, &req); err != nil {
		errors.Write(w, err)
		return
	}
	if len(req.StagedIDs) == 0 {
		errors.Write(w, errors.Validation("staged_ids", "at least one staged meeting is required"))
		return
	}

	provider, err := h.provider(tc)
	if err != nil {
		errors.Write(w, err)
		return
	}

	results, imported := h.service(tc, provider).Promote(r.Context(), req.StagedIDs, tc.Claims.UserID)

	h.audit.Log(tc.Claims, "meetings.import", "staged_meeting", "",
		map[string]interface{}{"requested": len(req.StagedIDs), "imported": imported})

	status := http.StatusOK
	if imported < len(req.StagedIDs) {
		status = http.StatusMultiStatus
	}
	writeJSON(w, status, map[string]interface{}{"results": results, "imported": imported})
}

func (h *MeetingHandler) Exclude(w http.ResponseWriter, r *http.Request) {
	tc := tenantFrom(r)
	repo := meetings.NewRepository(tc.DB)
	id := param(r, "staged_id")

	if err := repo.Exclude(r.Context(), id, tc.Claims.UserID); err != nil {
		errors.Write(w, err)
		return
	}

	h.audit.Log(tc.Claims, "meetings.exclude", "staged_meeting", id, nil)
	w.WriteHeader(http.StatusNoContent)
}

func (h *MeetingHandler) UndoExclude(w http.ResponseWriter, r *http.Request) {
	tc := tenantFrom(r)
	repo := meetings.NewRepository(tc.DB)
	id := param(r, "staged_id")

	if err := repo.UndoExclude(r.Context(), id); err != nil {
		errors.Write(w, err)
		return
	}

	h.audit.Log(tc.Claims, "meetings.undo_exclude", "staged_meeting", id, nil)
	w.WriteHeader(http.StatusNoContent)
}

func (h *MeetingHandler) ListInteractions(w http.ResponseWriter, r *http.Request) {
	tc := tenantFrom(r)
	repo := meetings.NewRepository(tc.DB)

	interactions, err := repo.ListInteractions(r.Context())
	if err != nil {
		errors.Write(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"interactions": interactions})
}

func (h *MeetingHandler) GetInteraction(w http.ResponseWriter, r *http.Request) {
	tc := tenantFrom(r)
	repo := meetings.NewRepository(tc.DB)

	interaction, err := repo.GetInteraction(r.Context(), param(r, "interaction_id"))
	if err != nil {
		errors.Write(w, err)
		return
	}
	if interaction == nil {
		errors.Write(w, errors.NotFound("interaction"))
		return
	}
	writeJSON(w, http.StatusOK, interaction)
}

// GetInsights analyzes an imported interaction. The analyzer always produces
// a result; a disabled or failing AI provider degrades to the heuristic.
func (h *MeetingHandler) GetInsights(w http.ResponseWriter, r *http.Request) {
	tc := tenantFrom(r)
	repo := meetings.NewRepository(tc.DB)

	interaction, err := repo.GetInteraction(r.Context(), param(r, "interaction_id"))
	if err != nil {
		errors.Write(w, err)
		return
	}
	if interaction == nil {
		errors.Write(w, errors.NotFound("interaction"))
		return
	}

	insights := h.analyzer.AnalyzeMeeting(r.Context(), tc.Settings, interaction)
	writeJSON(w, http.StatusOK, insights)
}
