package programs

import (
	"strings"

	"traction/internal/pkg/errors"
)

type Program struct {
	ID          string `json:"id"`
	TenantID    string `json:"tenant_id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	StartsAt    *int64 `json:"starts_at,omitempty"`
	EndsAt      *int64 `json:"ends_at,omitempty"`
	CreatedAt   int64  `json:"created_at"`
	UpdatedAt   int64  `json:"updated_at"`
}

type Input struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	StartsAt    *int64 `json:"starts_at,omitempty"`
	EndsAt      *int64 `json:"ends_at,omitempty"`
}

func (in *Input) Validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return errors.Validation("name", "name is required")
	}
	if in.StartsAt != nil && in.EndsAt != nil && *in.EndsAt < *in.StartsAt {
		return errors.Validation("ends_at", "must not be before starts_at")
	}
	return nil
}

type Enrollment struct {
	ID        string `json:"id"`
	TenantID  string `json:"tenant_id"`
	ProgramID string `json:"program_id"`
	CompanyID string `json:"company_id"`
	Status    string `json:"status"`
	CreatedAt int64  `json:"created_at"`
}

// EnrollResult is the per-item outcome of a bulk enrollment. One company
// failing never aborts the rest of the batch.
type EnrollResult struct {
	CompanyID string `json:"company_id"`
	Enrolled  bool   `json:"enrolled"`
	Error     string `json:"error,omitempty"`
}
