package milestones

// Track is an ordered progression framework (e.g. "software", "hardware").
// Tracks and their definitions are a shared catalog, not tenant rows; which
// tracks a tenant sees is gated by its feature flags.
type Track struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Slug      string `json:"slug"`
	CreatedAt int64  `json:"created_at"`
}

type Definition struct {
	ID                  string `json:"id"`
	TrackID             string `json:"track_id"`
	Name                string `json:"name"`
	OrderPosition       int    `json:"order_position"`
	EvidenceDescription string `json:"evidence_description,omitempty"`
	ObjectiveSignal     string `json:"objective_signal,omitempty"`
	CreatedAt           int64  `json:"created_at"`
}

// CompanyMilestone is the single current row per company, overwritten on
// progression. The history table is the durable record.
type CompanyMilestone struct {
	CompanyID    string `json:"company_id"`
	TenantID     string `json:"tenant_id"`
	DefinitionID string `json:"milestone_definition_id"`
	Status       string `json:"status"`
	CompletedAt  *int64 `json:"completed_at,omitempty"`
	IsVerified   bool   `json:"is_verified"`
	Notes        string `json:"notes,omitempty"`
	UpdatedAt    int64  `json:"updated_at"`
}

// HistoryEntry rows are append-only: written once per milestone change and
// never updated or deleted.
type HistoryEntry struct {
	ID              string  `json:"id"`
	TenantID        string  `json:"tenant_id"`
	CompanyID       string  `json:"company_id"`
	FromMilestoneID *string `json:"from_milestone_id"`
	ToMilestoneID   string  `json:"to_milestone_id"`
	ChangedAt       int64   `json:"changed_at"`
	ChangedBy       string  `json:"changed_by"`
	Metadata        string  `json:"metadata,omitempty"`
}

type ProgressOptions struct {
	// BackfillPrior marks every earlier definition in the track as passed
	// through, one history row each, before the final transition.
	BackfillPrior bool   `json:"backfill_prior"`
	MarkCompleted bool   `json:"mark_completed"`
	Verified      bool   `json:"verified"`
	Notes         string `json:"notes,omitempty"`
}
