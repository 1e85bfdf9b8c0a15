package contacts

import (
	"strings"

	"traction/internal/pkg/errors"
)

type Contact struct {
	ID        string `json:"id"`
	TenantID  string `json:"tenant_id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Title     string `json:"title,omitempty"`
	CreatedAt int64  `json:"created_at"`
	UpdatedAt int64  `json:"updated_at"`

	Emails []*Email `json:"emails,omitempty"`
}

// Email is one address on a contact. At most one row per contact carries
// is_primary, enforced by a partial unique index and surfaced as a Duplicate
// outcome when violated.
type Email struct {
	ID         string `json:"id"`
	ContactID  string `json:"contact_id"`
	Email      string `json:"email"`
	EmailType  string `json:"email_type"`
	IsPrimary  bool   `json:"is_primary"`
	IsVerified bool   `json:"is_verified"`
	CreatedAt  int64  `json:"created_at"`
}

type Input struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Title     string `json:"title,omitempty"`
}

func (in *Input) Validate() error {
	if strings.TrimSpace(in.FirstName) == "" && strings.TrimSpace(in.LastName) == "" {
		return errors.Validation("first_name", "a first or last name is required")
	}
	return nil
}

type Filter struct {
	Query  string
	Limit  int
	Offset int
}
