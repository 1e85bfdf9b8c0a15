package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"traction/internal/pkg/errors"
	"traction/internal/pkg/validator"
	"traction/internal/platform/auth"
	"traction/internal/platform/models"
	"traction/internal/platform/repositories"
)

type AuthHandler struct {
	orgRepo        *repositories.OrganizationRepository
	userRepo       *repositories.UserRepository
	membershipRepo *repositories.MembershipRepository
	settingsRepo   *repositories.SettingsRepository
	tokenSvc       *auth.TokenService
}

func NewAuthHandler(orgRepo *repositories.OrganizationRepository, userRepo *repositories.UserRepository,
	membershipRepo *repositories.MembershipRepository, settingsRepo *repositories.SettingsRepository,
	tokenSvc *auth.TokenService) *AuthHandler {
	return &AuthHandler{
		orgRepo:        orgRepo,
		userRepo:       userRepo,
		membershipRepo: membershipRepo,
		settingsRepo:   settingsRepo,
		tokenSvc:       tokenSvc,
	}
}

type signupRequest struct {
	Email            string `json:"email"`
	Password         string `json:"password"`
	FullName         string `json:"full_name"`
	OrganizationName string `json:"organization_name"`
	OrganizationSlug string `json:"organization_slug,omitempty"`
}

type tokenResponse struct {
	AccessToken  string               `json:"access_token"`
	RefreshToken string               `json:"refresh_token,omitempty"`
	User         *models.User         `json:"user,omitempty"`
	Organization *models.Organization `json:"organization,omitempty"`
}

// Signup creates the organization, its first user and the owner membership in
// one transaction, then issues tokens scoped to the new organization.
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := decode(r, &req); err != nil {
		errors.Write(w, err)
		return
	}

	req.Email = validator.NormalizeEmail(req.Email)
	if err := validator.ValidateEmail(req.Email); err != nil {
		errors.Write(w, err)
		return
	}
	if len(req.Password) < 8 {
		errors.Write(w, errors.Validation("password", "must be at least 8 characters"))
		return
	}
	if strings.TrimSpace(req.OrganizationName) == "" {
		errors.Write(w, errors.Validation("organization_name", "organization name is required"))
		return
	}

	existing, err := h.userRepo.GetByEmail(req.Email)
	if err != nil {
		errors.Write(w, err)
		return
	}
	if existing != nil {
		errors.Write(w, errors.Duplicate("an account with this email already exists"))
		return
	}

	slug := req.OrganizationSlug
	if slug == "" {
		slug = slugify(req.OrganizationName)
	}
	if taken, err := h.orgRepo.GetBySlug(slug); err != nil {
		errors.Write(w, err)
		return
	} else if taken != nil {
		errors.Write(w, errors.Duplicate("an organization with this slug already exists"))
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		errors.Write(w, err)
		return
	}

	now := time.Now().Unix()
	org := &models.Organization{
		ID:        "org_" + uuid.NewString(),
		Name:      req.OrganizationName,
		Slug:      slug,
		CreatedAt: now,
		UpdatedAt: now,
	}
	user := &models.User{
		ID:           "usr_" + uuid.NewString(),
		Email:        req.Email,
		PasswordHash: string(hash),
		FullName:     req.FullName,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	membership := &models.Membership{
		ID:             "mem_" + uuid.NewString(),
		UserID:         user.ID,
		OrganizationID: org.ID,
		Role:           auth.RoleOwner,
		CreatedAt:      now,
	}

	tx, err := h.orgRepo.BeginTx()
	if err != nil {
		errors.Write(w, err)
		return
	}
	defer tx.Rollback()

	if err := h.orgRepo.CreateTx(tx, org); err != nil {
		errors.Write(w, errors.FromDB(err))
		return
	}
	if err := h.userRepo.CreateTx(tx, user); err != nil {
		errors.Write(w, errors.FromDB(err))
		return
	}
	if err := h.membershipRepo.CreateTx(tx, membership); err != nil {
		errors.Write(w, errors.FromDB(err))
		return
	}
	if err := tx.Commit(); err != nil {
		errors.Write(w, err)
		return
	}

	// Seed the settings row so later flag updates and sync watermarks have a
	// row to update.
	if err := h.settingsRepo.Upsert(&models.TenantSettings{OrganizationID: org.ID}); err != nil {
		errors.Write(w, err)
		return
	}

	resp, err := h.issueTokens(user, org, auth.RoleOwner)
	if err != nil {
		errors.Write(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

type loginRequest struct {
	Email            string `json:"email"`
	Password         string `json:"password"`
	OrganizationSlug string `json:"organization_slug,omitempty"`
}

// Login verifies credentials and issues tokens for one of the user's
// organizations. Without an explicit slug the first membership wins.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decode(r, &req); err != nil {
		errors.Write(w, err)
		return
	}

	user, err := h.userRepo.GetByEmail(validator.NormalizeEmail(req.Email))
	if err != nil {
		errors.Write(w, err)
		return
	}
	if user == nil || user.DeletedAt != nil {
		errors.Write(w, errors.Unauthenticated())
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		errors.Write(w, errors.Unauthenticated())
		return
	}

	memberships, err := h.membershipRepo.ListByUser(user.ID)
	if err != nil {
		errors.Write(w, err)
		return
	}
	if len(memberships) == 0 {
		errors.Write(w, errors.Forbidden("no organization membership"))
		return
	}

	selected := memberships[0]
	if req.OrganizationSlug != "" {
		selected = nil
		for _, m := range memberships {
			if m.Organization != nil && m.Organization.Slug == req.OrganizationSlug {
				selected = m
				break
			}
		}
		if selected == nil {
			errors.Write(w, errors.Forbidden("no membership in the requested organization"))
			return
		}
	}

	h.userRepo.UpdateLastLogin(user.ID, time.Now().Unix())

	resp, err := h.issueTokens(user, selected.Organization, selected.Role)
	if err != nil {
		errors.Write(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

type refreshRequest struct {
	RefreshToken   string `json:"refresh_token"`
	OrganizationID string `json:"organization_id,omitempty"`
}

func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decode(r, &req); err != nil {
		errors.Write(w, err)
		return
	}

	userID, err := h.tokenSvc.ValidateRefreshToken(req.RefreshToken)
	if err != nil {
		errors.Write(w, errors.Unauthenticated())
		return
	}

	user, err := h.userRepo.GetByID(userID)
	if err != nil {
		errors.Write(w, err)
		return
	}
	if user == nil || user.DeletedAt != nil {
		errors.Write(w, errors.Unauthenticated())
		return
	}

	memberships, err := h.membershipRepo.ListByUser(user.ID)
	if err != nil {
		errors.Write(w, err)
		return
	}
	if len(memberships) == 0 {
		errors.Write(w, errors.Forbidden("no organization membership"))
		return
	}

	selected := memberships[0]
	if req.OrganizationID != "" {
		selected = nil
		for _, m := range memberships {
			if m.OrganizationID == req.OrganizationID {
				selected = m
				break
			}
		}
		if selected == nil {
			errors.Write(w, errors.Forbidden("no membership in the requested organization"))
			return
		}
	}

	resp, err := h.issueTokens(user, selected.Organization, selected.Role)
	if err != nil {
		errors.Write(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

type switchRequest struct {
	OrganizationID string `json:"organization_id"`
}

// SwitchOrganization re-issues tokens for another organization the caller
// belongs to. The membership is resolved fresh so a revoked membership cannot
// be traded for a new token.
func (h *AuthHandler) SwitchOrganization(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r)
	if claims == nil {
		errors.Write(w, errors.Unauthenticated())
		return
	}

	var req switchRequest
	if err := decode(r, &req); err != nil {
		errors.Write(w, err)
		return
	}

	membership, err := h.membershipRepo.Get(claims.UserID, req.OrganizationID)
	if err != nil {
		errors.Write(w, err)
		return
	}
	if membership == nil {
		errors.Write(w, errors.Forbidden("no membership in the requested organization"))
		return
	}

	user, err := h.userRepo.GetByID(claims.UserID)
	if err != nil {
		errors.Write(w, err)
		return
	}
	if user == nil {
		errors.Write(w, errors.Unauthenticated())
		return
	}

	org, err := h.orgRepo.GetByID(req.OrganizationID)
	if err != nil {
		errors.Write(w, err)
		return
	}
	if org == nil {
		errors.Write(w, errors.Forbidden("organization not found"))
		return
	}

	resp, err := h.issueTokens(user, org, membership.Role)
	if err != nil {
		errors.Write(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *AuthHandler) issueTokens(user *models.User, org *models.Organization, role auth.Role) (*tokenResponse, error) {
	access, err := h.tokenSvc.GenerateAccessToken(user.ID, org.ID, role, user.Email)
	if err != nil {
		return nil, err
	}
	refresh, err := h.tokenSvc.GenerateRefreshToken(user.ID)
	if err != nil {
		return nil, err
	}
	return &tokenResponse{
		AccessToken:  access,
		RefreshToken: refresh,
		User:         user,
		Organization: org,
	}, nil
}

func slugify(name string) string {
	var sb strings.Builder
	lastDash := true
	for _, r := range strings.ToLower(name) {
		switch {
		case 'a' <= r && r <= 'z' || '0' <= r && r <= '9':
			sb.WriteRune(r)
			lastDash = false
		case !lastDash:
			sb.WriteByte('-')
			lastDash = true
		}
	}
	return strings.Trim(sb.String(), "-")
}
