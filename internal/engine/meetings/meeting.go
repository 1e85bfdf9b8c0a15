package meetings

import (
	"context"
	"time"
)

// Import statuses for a staged meeting. pending may move to imported or
// excluded; excluded may be undone back to pending; imported is terminal in
// this pipeline.
const (
	ImportStatusPending  = "pending"
	ImportStatusImported = "imported"
	ImportStatusExcluded = "excluded"
)

// StagedMeeting is an externally-sourced meeting held in the review queue.
// (tenant_id, fireflies_transcript_id) is unique across staged meetings and
// interactions, so a meeting is never staged twice.
type StagedMeeting struct {
	ID                     string   `json:"id"`
	TenantID               string   `json:"tenant_id"`
	FirefliesTranscriptID  string   `json:"fireflies_transcript_id"`
	Title                  string   `json:"title"`
	MeetingDate            int64    `json:"meeting_date"`
	Participants           []string `json:"participants"`
	MatchType              string   `json:"match_type"`
	MatchedContactIDs      []string `json:"matched_contact_ids,omitempty"`
	ImportStatus           string   `json:"import_status"`
	ImportedInteractionID  *string  `json:"imported_to_interaction_id,omitempty"`
	ExcludedAt             *int64   `json:"excluded_at,omitempty"`
	ExcludedBy             string   `json:"excluded_by,omitempty"`
	CreatedAt              int64    `json:"created_at"`
}

// Interaction is the permanent record created by promoting a staged meeting.
// It carries the same transcript id for idempotency.
type Interaction struct {
	ID                    string `json:"id"`
	TenantID              string `json:"tenant_id"`
	FirefliesTranscriptID string `json:"fireflies_transcript_id"`
	Title                 string `json:"title"`
	OccurredAt            int64  `json:"occurred_at"`
	Transcript            string `json:"transcript,omitempty"`
	Summary               string `json:"summary,omitempty"`
	CreatedBy             string `json:"created_by"`
	CreatedAt             int64  `json:"created_at"`
}

type SyncResult struct {
	Fetched int `json:"fetched"`
	Staged  int `json:"staged"`
	Skipped int `json:"skipped"`
}

// PromoteResult is the per-item outcome of a batch import. One item failing
// never rolls back the others.
type PromoteResult struct {
	StagedID      string `json:"staged_id"`
	Imported      bool   `json:"imported"`
	InteractionID string `json:"interaction_id,omitempty"`
	Error         string `json:"error,omitempty"`
}

type ProviderMeeting struct {
	TranscriptID      string
	Title             string
	Date              int64
	ParticipantEmails []string
}

type ProviderTranscript struct {
	TranscriptID      string
	Title             string
	Date              int64
	Text              string
	Summary           string
	ParticipantEmails []string
}

// Provider is the external transcription service. ListMeetings is the cheap
// metadata call used during staging; GetTranscript is the heavy call made
// lazily at promotion time only.
type Provider interface {
	ListMeetings(ctx context.Context, from, to time.Time) ([]ProviderMeeting, error)
	GetTranscript(ctx context.Context, id string) (*ProviderTranscript, error)
}
