package models

import "traction/internal/platform/auth"

type Organization struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Slug      string `json:"slug"`
	CreatedAt int64  `json:"created_at"`
	UpdatedAt int64  `json:"updated_at"`
	DeletedAt *int64 `json:"deleted_at,omitempty"`
}

type User struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	PasswordHash  string `json:"-"`
	FullName      string `json:"full_name"`
	LastLoginAt   *int64 `json:"last_login_at,omitempty"`
	CreatedAt     int64  `json:"created_at"`
	UpdatedAt     int64  `json:"updated_at"`
	DeletedAt     *int64 `json:"deleted_at,omitempty"`
}

// Membership links a user to an organization with a role. A user may hold
// memberships in several organizations, one row each.
type Membership struct {
	ID             string    `json:"id"`
	UserID         string    `json:"user_id"`
	OrganizationID string    `json:"organization_id"`
	Role           auth.Role `json:"role"`
	CreatedAt      int64     `json:"created_at"`

	Organization *Organization `json:"organization,omitempty"`
}

type Invitation struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organization_id"`
	Email          string    `json:"email"`
	Role           auth.Role `json:"role"`
	Token          string    `json:"token"`
	InvitedBy      string    `json:"invited_by"`
	ExpiresAt      int64     `json:"expires_at"`
	AcceptedAt     *int64    `json:"accepted_at,omitempty"`
	CreatedAt      int64     `json:"created_at"`
	UpdatedAt      int64     `json:"updated_at"`
}

func (i *Invitation) Pending() bool {
	return i.AcceptedAt == nil
}

// TenantSettings holds the per-organization feature flags and integration
// references. Secret values live in the encrypted secret store; only the
// reference ids are kept here.
type TenantSettings struct {
	OrganizationID     string          `json:"organization_id"`
	FeatureFireflies   bool            `json:"feature_fireflies"`
	FeatureAI          bool            `json:"feature_ai_integration"`
	AIFeatures         map[string]bool `json:"ai_features"`
	MilestoneTracking  bool            `json:"milestone_tracking"`
	EnabledTracks      []string        `json:"enabled_tracks"`
	FirefliesSecretID  string          `json:"fireflies_secret_id,omitempty"`
	AISecretID         string          `json:"ai_secret_id,omitempty"`
	SyncStartDate      *int64          `json:"sync_start_date,omitempty"`
	LastSyncAt         *int64          `json:"last_sync_at,omitempty"`
	UpdatedAt          int64           `json:"updated_at"`
}

func (s *TenantSettings) AIFeatureEnabled(name string) bool {
	return s.FeatureAI && s.AIFeatures[name]
}

func (s *TenantSettings) TrackEnabled(slug string) bool {
	if !s.MilestoneTracking {
		return false
	}
	for _, t := range s.EnabledTracks {
		if t == slug {
			return true
		}
	}
	return false
}
