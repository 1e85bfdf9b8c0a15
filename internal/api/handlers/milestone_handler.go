package handlers

import (
	"net/http"

	"traction/internal/engine/milestones"
	"traction/internal/pkg/errors"
	"traction/internal/platform/audit"
)

type MilestoneHandler struct {
	audit *audit.Logger
}

func NewMilestoneHandler(auditLog *audit.Logger) *MilestoneHandler {
	return &MilestoneHandler{audit: auditLog}
}

// ListTracks returns the catalog tracks the tenant has enabled. Tracks exist
// globally; visibility is a per-tenant flag.
func (h *MilestoneHandler) ListTracks(w http.ResponseWriter, r *http.Request) {
	tc := tenantFrom(r)
	if !tc.Settings.MilestoneTracking {
		errors.Write(w, errors.NotConfigured("milestone tracking is not enabled for this organization"))
		return
	}

	repo := milestones.NewRepository(tc.DB)
	tracks, err := repo.ListTracks(r.Context())
	if err != nil {
		errors.Write(w, err)
		return
	}

	enabled := make([]*milestones.Track, 0, len(tracks))
	for _, t := range tracks {
		if tc.Settings.TrackEnabled(t.Slug) {
			enabled = append(enabled, t)
		}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"tracks": enabled})
}

func (h *MilestoneHandler) ListDefinitions(w http.ResponseWriter, r *http.Request) {
	tc := tenantFrom(r)
	repo := milestones.NewRepository(tc.DB)

	defs, err := repo.ListDefinitions(r.Context(), param(r, "track_id"))
	if err != nil {
		errors.Write(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"definitions": defs})
}

func (h *MilestoneHandler) GetCurrent(w http.ResponseWriter, r *http.Request) {
	tc := tenantFrom(r)
	repo := milestones.NewRepository(tc.DB)

	current, err := repo.GetCurrent(r.Context(), tc.DB, param(r, "company_id"))
	if err != nil {
		errors.Write(w, err)
		return
	}
	if current == nil {
		errors.Write(w, errors.NotFound("milestone"))
		return
	}
	writeJSON(w, http.StatusOK, current)
}

type setMilestoneRequest struct {
	DefinitionID string `json:"milestone_definition_id"`
	milestones.ProgressOptions
}

func (h *MilestoneHandler) SetCurrent(w http.ResponseWriter, r *http.Request) {
	tc := tenantFrom(r)
	repo := milestones.NewRepository(tc.DB)
	svc := milestones.NewService(tc.DB, repo)
	companyID := param(r, "company_id")

	var req setMilestoneRequest
	if err := decode(r, &req); err != nil {
		errors.Write(w, err)
		return
	}
	if req.DefinitionID == "" {
		errors.Write(w, errors.Validation("milestone_definition_id", "milestone definition is required"))
		return
	}

	current, err := svc.SetCurrent(r.Context(), tc.Settings, companyID, req.DefinitionID, tc.Claims.UserID, req.ProgressOptions)
	if err != nil {
		errors.Write(w, err)
		return
	}

	h.audit.Log(tc.Claims, "milestone.set_current", "company", companyID,
		map[string]interface{}{"milestone_definition_id": req.DefinitionID})
	writeJSON(w, http.StatusOK, current)
}

func (h *MilestoneHandler) History(w http.ResponseWriter, r *http.Request) {
	tc := tenantFrom(r)
	repo := milestones.NewRepository(tc.DB)

	history, err := repo.ListHistory(r.Context(), param(r, "company_id"))
	if err != nil {
		errors.Write(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"history": history})
}
