package commitments

import (
	"strings"

	"traction/internal/pkg/errors"
)

type Status string

const (
	StatusOpen         Status = "open"
	StatusCompleted    Status = "completed"
	StatusNotCompleted Status = "not_completed"
	StatusCancelled    Status = "cancelled"
)

var validStatuses = map[Status]bool{
	StatusOpen:         true,
	StatusCompleted:    true,
	StatusNotCompleted: true,
	StatusCancelled:    true,
}

func (s Status) Valid() bool {
	return validStatuses[s]
}

// Closed reports whether the status is terminal-shaped. Closed commitments
// may still be reopened by explicit user action.
func (s Status) Closed() bool {
	return s == StatusCompleted || s == StatusNotCompleted || s == StatusCancelled
}

type Commitment struct {
	ID              string `json:"id"`
	TenantID        string `json:"tenant_id"`
	CompanyID       string `json:"company_id"`
	Title           string `json:"title"`
	Description     string `json:"description,omitempty"`
	Status          Status `json:"status"`
	DueDate         *int64 `json:"due_date,omitempty"`
	CompletedAt     *int64 `json:"completed_at,omitempty"`
	CompletionNotes string `json:"completion_notes,omitempty"`
	CreatedAt       int64  `json:"created_at"`
	UpdatedAt       int64  `json:"updated_at"`
}

type Input struct {
	CompanyID   string `json:"company_id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	DueDate     *int64 `json:"due_date,omitempty"`
}

func (in *Input) Validate() error {
	if strings.TrimSpace(in.CompanyID) == "" {
		return errors.Validation("company_id", "company is required")
	}
	if strings.TrimSpace(in.Title) == "" {
		return errors.Validation("title", "title is required")
	}
	return nil
}

type StatusChange struct {
	Status      Status `json:"status"`
	CompletedAt *int64 `json:"completed_at,omitempty"`
	Notes       string `json:"notes,omitempty"`
}
