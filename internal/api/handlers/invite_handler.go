package handlers

import (
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"
	qrcode "github.com/skip2/go-qrcode"
	"golang.org/x/crypto/bcrypt"
	"traction/internal/pkg/errors"
	"traction/internal/pkg/validator"
	"traction/internal/platform/audit"
	"traction/internal/platform/auth"
	"traction/internal/platform/config"
	"traction/internal/platform/models"
	"traction/internal/platform/repositories"
)

type InviteHandler struct {
	inviteRepo     *repositories.InvitationRepository
	userRepo       *repositories.UserRepository
	membershipRepo *repositories.MembershipRepository
	orgRepo        *repositories.OrganizationRepository
	tokenSvc       *auth.TokenService
	audit          *audit.Logger
	config         config.InvitesConfig
}

func NewInviteHandler(inviteRepo *repositories.InvitationRepository, userRepo *repositories.UserRepository,
	membershipRepo *repositories.MembershipRepository, orgRepo *repositories.OrganizationRepository,
	tokenSvc *auth.TokenService, auditLog *audit.Logger, cfg config.InvitesConfig) *InviteHandler {
	return &InviteHandler{
		inviteRepo:     inviteRepo,
		userRepo:       userRepo,
		membershipRepo: membershipRepo,
		orgRepo:        orgRepo,
		tokenSvc:       tokenSvc,
		audit:          auditLog,
		config:         cfg,
	}
}

type createInviteRequest struct {
	Email string    `json:"email"`
	Role  auth.Role `json:"role"`
}

func (h *InviteHandler) Create(w http.ResponseWriter, r *http.Request) {
	tc := tenantFrom(r)

	var req createInviteRequest
	if err := decode(r, &req); err != nil {
		errors.Write(w, err)
		return
	}

	req.Email = validator.NormalizeEmail(req.Email)
	if err := validator.ValidateEmail(req.Email); err != nil {
		errors.Write(w, err)
		return
	}
	if !req.Role.Valid() || req.Role == auth.RoleOwner {
		errors.Write(w, errors.Validation("role", "must be one of: viewer, editor, admin"))
		return
	}

	token, err := inviteToken()
	if err != nil {
		errors.Write(w, err)
		return
	}

	now := time.Now().Unix()
	inv := &models.Invitation{
		ID:             "inv_" + uuid.NewString(),
		OrganizationID: tc.Org.ID,
		Email:          req.Email,
		Role:           req.Role,
		Token:          token,
		InvitedBy:      tc.Claims.UserID,
		ExpiresAt:      repositories.AcceptDeadline(h.config.TTL),
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := h.inviteRepo.Create(inv); err != nil {
		errors.Write(w, err)
		return
	}

	h.audit.Log(tc.Claims, "invitation.create", "invitation", inv.ID,
		map[string]interface{}{"email": inv.Email, "role": inv.Role})
	writeJSON(w, http.StatusCreated, inv)
}

func (h *InviteHandler) List(w http.ResponseWriter, r *http.Request) {
	tc := tenantFrom(r)

	invs, err := h.inviteRepo.ListByOrganization(tc.Org.ID)
	if err != nil {
		errors.Write(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"invitations": invs})
}

func (h *InviteHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	tc := tenantFrom(r)
	id := param(r, "invitation_id")

	if err := h.inviteRepo.Delete(id, tc.Org.ID); err != nil {
		errors.Write(w, err)
		return
	}

	h.audit.Log(tc.Claims, "invitation.revoke", "invitation", id, nil)
	w.WriteHeader(http.StatusNoContent)
}

type acceptInviteRequest struct {
	Token    string `json:"token"`
	FullName string `json:"full_name,omitempty"`
	Password string `json:"password,omitempty"`
}

// Accept redeems an invitation token. An unknown email gets a new account
// from the supplied credentials; an existing user just gains the membership.
// The invitation is consumed and the membership created in one transaction.
func (h *InviteHandler) Accept(w http.ResponseWriter, r *http.Request) {
	var req acceptInviteRequest
	if err := decode(r, &req); err != nil {
		errors.Write(w, err)
		return
	}

	inv, err := h.inviteRepo.GetByToken(req.Token)
	if err != nil {
		errors.Write(w, err)
		return
	}
	if inv == nil {
		errors.Write(w, errors.NotFound("invitation"))
		return
	}
	if !inv.Pending() {
		errors.Write(w, errors.Duplicate("invitation has already been accepted"))
		return
	}
	if time.Now().Unix() > inv.ExpiresAt {
		errors.Write(w, errors.Validation("token", "invitation has expired"))
		return
	}

	user, err := h.userRepo.GetByEmail(inv.Email)
	if err != nil {
		errors.Write(w, err)
		return
	}

	now := time.Now().Unix()
	tx, err := h.inviteRepo.BeginTx()
	if err != nil {
		errors.Write(w, err)
		return
	}
	defer tx.Rollback()

	if user == nil {
		if len(req.Password) < 8 {
			errors.Write(w, errors.Validation("password", "must be at least 8 characters"))
			return
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			errors.Write(w, err)
			return
		}
		user = &models.User{
			ID:           "usr_" + uuid.NewString(),
			Email:        inv.Email,
			PasswordHash: string(hash),
			FullName:     req.FullName,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := h.userRepo.CreateTx(tx, user); err != nil {
			errors.Write(w, errors.FromDB(err))
			return
		}
	}

	membership := &models.Membership{
		ID:             "mem_" + uuid.NewString(),
		UserID:         user.ID,
		OrganizationID: inv.OrganizationID,
		Role:           inv.Role,
		CreatedAt:      now,
	}
	if err := h.membershipRepo.CreateTx(tx, membership); err != nil {
		if translated := errors.FromDB(err); errors.KindOf(translated) == errors.KindDuplicate {
			errors.Write(w, errors.Duplicate("already a member of this organization"))
			return
		}
		errors.Write(w, err)
		return
	}
	if err := h.inviteRepo.MarkAcceptedTx(tx, inv.ID, now); err != nil {
		errors.Write(w, err)
		return
	}
	if err := tx.Commit(); err != nil {
		errors.Write(w, err)
		return
	}

	org, err := h.orgRepo.GetByID(inv.OrganizationID)
	if err != nil || org == nil {
		errors.Write(w, errors.Internal("organization lookup failed"))
		return
	}

	access, err := h.tokenSvc.GenerateAccessToken(user.ID, org.ID, inv.Role, user.Email)
	if err != nil {
		errors.Write(w, err)
		return
	}
	refresh, err := h.tokenSvc.GenerateRefreshToken(user.ID)
	if err != nil {
		errors.Write(w, err)
		return
	}

	writeJSON(w, http.StatusOK, &tokenResponse{
		AccessToken:  access,
		RefreshToken: refresh,
		User:         user,
		Organization: org,
	})
}

// GetQRCode renders the invitation accept link as a PNG QR code.
func (h *InviteHandler) GetQRCode(w http.ResponseWriter, r *http.Request) {
	tc := tenantFrom(r)
	id := param(r, "invitation_id")

	inv, err := h.inviteRepo.GetByID(id, tc.Org.ID)
	if err != nil {
		errors.Write(w, err)
		return
	}
	if inv == nil {
		errors.Write(w, errors.NotFound("invitation"))
		return
	}

	size := 512
	if s := r.URL.Query().Get("size"); s != "" {
		parsed, err := strconv.Atoi(s)
		if err != nil || parsed < 128 || parsed > 2048 {
			errors.Write(w, errors.Validation("size", "must be an integer between 128 and 2048"))
			return
		}
		size = parsed
	}

	acceptURL := h.config.AcceptBaseURL + "?token=" + url.QueryEscape(inv.Token)
	png, err := qrcode.Encode(acceptURL, qrcode.Medium, size)
	if err != nil {
		errors.Write(w, err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	w.Write(png)
}

func inviteToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
