package companies

import (
	"strings"

	"traction/internal/pkg/errors"
)

type Company struct {
	ID           string `json:"id"`
	TenantID     string `json:"tenant_id"`
	BusinessName string `json:"business_name"`
	Website      string `json:"website,omitempty"`
	Industry     string `json:"industry,omitempty"`
	Description  string `json:"description,omitempty"`
	CreatedAt    int64  `json:"created_at"`
	UpdatedAt    int64  `json:"updated_at"`
}

type Input struct {
	BusinessName string `json:"business_name"`
	Website      string `json:"website,omitempty"`
	Industry     string `json:"industry,omitempty"`
	Description  string `json:"description,omitempty"`
}

func (in *Input) Validate() error {
	if strings.TrimSpace(in.BusinessName) == "" {
		return errors.Validation("business_name", "business name is required")
	}
	if len(in.BusinessName) > 255 {
		return errors.Validation("business_name", "must be at most 255 characters")
	}
	return nil
}

type Filter struct {
	Query    string
	Industry string
	Limit    int
	Offset   int
}
