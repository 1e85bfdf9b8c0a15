package handlers

import (
	"net/http"
	"strings"

	"traction/internal/pkg/errors"
	"traction/internal/platform/audit"
	"traction/internal/platform/auth"
	"traction/internal/platform/repositories"
)

type OrgHandler struct {
	orgRepo        *repositories.OrganizationRepository
	userRepo       *repositories.UserRepository
	membershipRepo *repositories.MembershipRepository
	audit          *audit.Logger
}

func NewOrgHandler(orgRepo *repositories.OrganizationRepository, userRepo *repositories.UserRepository,
	membershipRepo *repositories.MembershipRepository, auditLog *audit.Logger) *OrgHandler {
	return &OrgHandler{
		orgRepo:        orgRepo,
		userRepo:       userRepo,
		membershipRepo: membershipRepo,
		audit:          auditLog,
	}
}

func (h *OrgHandler) GetCurrent(w http.ResponseWriter, r *http.Request) {
	tc := tenantFrom(r)
	writeJSON(w, http.StatusOK, tc.Org)
}

type orgUpdateRequest struct {
	Name string `json:"name"`
}

func (h *OrgHandler) Update(w http.ResponseWriter, r *http.Request) {
	tc := tenantFrom(r)

	var req orgUpdateRequest
	if err := decode(r, &req); err != nil {
		errors.Write(w, err)
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		errors.Write(w, errors.Validation("name", "name is required"))
		return
	}

	tc.Org.Name = req.Name
	if err := h.orgRepo.Update(tc.Org); err != nil {
		errors.Write(w, err)
		return
	}

	h.audit.Log(tc.Claims, "organization.update", "organization", tc.Org.ID, nil)
	writeJSON(w, http.StatusOK, tc.Org)
}

type memberResponse struct {
	UserID   string    `json:"user_id"`
	Email    string    `json:"email"`
	FullName string    `json:"full_name"`
	Role     auth.Role `json:"role"`
	JoinedAt int64     `json:"joined_at"`
}

func (h *OrgHandler) ListMembers(w http.ResponseWriter, r *http.Request) {
	tc := tenantFrom(r)

	memberships, err := h.membershipRepo.ListByOrganization(tc.Org.ID)
	if err != nil {
		errors.Write(w, err)
		return
	}

	members := make([]memberResponse, 0, len(memberships))
	for _, m := range memberships {
		member := memberResponse{UserID: m.UserID, Role: m.Role, JoinedAt: m.CreatedAt}
		if user, err := h.userRepo.GetByID(m.UserID); err == nil && user != nil {
			member.Email = user.Email
			member.FullName = user.FullName
		}
		members = append(members, member)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"members": members})
}

type roleUpdateRequest struct {
	Role auth.Role `json:"role"`
}

func (h *OrgHandler) UpdateMemberRole(w http.ResponseWriter, r *http.Request) {
	tc := tenantFrom(r)
	userID := param(r, "user_id")

	var req roleUpdateRequest
	if err := decode(r, &req); err != nil {
		errors.Write(w, err)
		return
	}
	if !req.Role.Valid() {
		errors.Write(w, errors.Validation("role", "must be one of: viewer, editor, admin, owner"))
		return
	}
	if userID == tc.Claims.UserID {
		errors.Write(w, errors.Validation("user_id", "cannot change your own role"))
		return
	}

	membership, err := h.membershipRepo.Get(userID, tc.Org.ID)
	if err != nil {
		errors.Write(w, err)
		return
	}
	if membership == nil {
		errors.Write(w, errors.NotFound("membership"))
		return
	}

	if membership.Role == auth.RoleOwner && req.Role != auth.RoleOwner {
		last, err := h.lastOwner(tc.Org.ID)
		if err != nil {
			errors.Write(w, err)
			return
		}
		if last {
			errors.Write(w, errors.Constraint("organization must retain at least one owner"))
			return
		}
	}

	if err := h.membershipRepo.UpdateRole(userID, tc.Org.ID, string(req.Role)); err != nil {
		errors.Write(w, err)
		return
	}

	h.audit.Log(tc.Claims, "membership.update_role", "membership", membership.ID,
		map[string]interface{}{"user_id": userID, "role": req.Role})
	writeJSON(w, http.StatusOK, map[string]interface{}{"user_id": userID, "role": req.Role})
}

func (h *OrgHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	tc := tenantFrom(r)
	userID := param(r, "user_id")

	if userID == tc.Claims.UserID {
		errors.Write(w, errors.Validation("user_id", "cannot remove yourself"))
		return
	}

	membership, err := h.membershipRepo.Get(userID, tc.Org.ID)
	if err != nil {
		errors.Write(w, err)
		return
	}
	if membership == nil {
		errors.Write(w, errors.NotFound("membership"))
		return
	}

	if membership.Role == auth.RoleOwner {
		last, err := h.lastOwner(tc.Org.ID)
		if err != nil {
			errors.Write(w, err)
			return
		}
		if last {
			errors.Write(w, errors.Constraint("organization must retain at least one owner"))
			return
		}
	}

	if err := h.membershipRepo.Delete(userID, tc.Org.ID); err != nil {
		errors.Write(w, err)
		return
	}

	h.audit.Log(tc.Claims, "membership.remove", "membership", membership.ID,
		map[string]interface{}{"user_id": userID})
	w.WriteHeader(http.StatusNoContent)
}

func (h *OrgHandler) lastOwner(orgID string) (bool, error) {
	memberships, err := h.membershipRepo.ListByOrganization(orgID)
	if err != nil {
		return false, err
	}
	owners := 0
	for _, m := range memberships {
		if m.Role == auth.RoleOwner {
			owners++
		}
	}
	return owners <= 1, nil
}
