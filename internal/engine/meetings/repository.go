package meetings

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"traction/internal/pkg/errors"
	"traction/internal/platform/database"
)

type Repository struct {
	db *database.TenantDB
}

func NewRepository(db *database.TenantDB) *Repository {
	return &Repository{db: db}
}

// TranscriptExists is the sync dedup check: true when the transcript id is
// already staged or already imported for this tenant.
func (r *Repository) TranscriptExists(ctx context.Context, transcriptID string) (bool, error) {
	row, err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM staged_meetings WHERE fireflies_transcript_id = ?1 AND tenant_id = :tenant_id
		) OR EXISTS(
			SELECT 1 FROM interactions WHERE fireflies_transcript_id = ?1 AND tenant_id = :tenant_id
		)
	`, transcriptID)
	if err != nil {
		return false, err
	}
	var exists bool
	if err := row.Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

func (r *Repository) Stage(ctx context.Context, m *StagedMeeting) error {
	participants, _ := json.Marshal(m.Participants)
	matched, _ := json.Marshal(m.MatchedContactIDs)

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO staged_meetings (id, fireflies_transcript_id, title, meeting_date, participants,
			match_type, matched_contact_ids, import_status, created_at, tenant_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, :tenant_id)
	`, m.ID, m.FirefliesTranscriptID, m.Title, m.MeetingDate, string(participants),
		m.MatchType, string(matched), m.ImportStatus, m.CreatedAt)
	return errors.FromDB(err)
}

func (r *Repository) GetStaged(ctx context.Context, id string) (*StagedMeeting, error) {
	row, err := r.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, fireflies_transcript_id, title, meeting_date, participants,
		       match_type, matched_contact_ids, import_status, imported_to_interaction_id,
		       excluded_at, excluded_by, created_at
		FROM staged_meetings WHERE id = ? AND tenant_id = :tenant_id
	`, id)
	if err != nil {
		return nil, err
	}
	m, err := scanStaged(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return m, nil
}

func (r *Repository) ListStaged(ctx context.Context, status string) ([]*StagedMeeting, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, tenant_id, fireflies_transcript_id, title, meeting_date, participants,
		       match_type, matched_contact_ids, import_status, imported_to_interaction_id,
		       excluded_at, excluded_by, created_at
		FROM staged_meetings WHERE (? = '' OR import_status = ?) AND tenant_id = :tenant_id
		ORDER BY meeting_date DESC
	`, status, status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var meetings []*StagedMeeting
	for rows.Next() {
		m, err := scanStaged(rows)
		if err != nil {
			return nil, err
		}
		meetings = append(meetings, m)
	}
	return meetings, rows.Err()
}

// Exclude moves a pending staged meeting out of the review queue.
func (r *Repository) Exclude(ctx context.Context, id, actor string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE staged_meetings SET import_status = ?, excluded_at = ?, excluded_by = ?
		WHERE id = ? AND import_status = 'pending' AND tenant_id = :tenant_id
	`, ImportStatusExcluded, time.Now().Unix(), actor, id)
	if err != nil {
		return errors.FromDB(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return errors.NotFound("pending staged meeting")
	}
	return nil
}

// UndoExclude returns an excluded staged meeting to pending.
func (r *Repository) UndoExclude(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE staged_meetings SET import_status = ?, excluded_at = NULL, excluded_by = ''
		WHERE id = ? AND import_status = 'excluded' AND tenant_id = :tenant_id
	`, ImportStatusPending, id)
	if err != nil {
		return errors.FromDB(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return errors.NotFound("excluded staged meeting")
	}
	return nil
}

func (r *Repository) GetInteraction(ctx context.Context, id string) (*Interaction, error) {
	row, err := r.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, fireflies_transcript_id, title, occurred_at, transcript, summary, created_by, created_at
		FROM interactions WHERE id = ? AND tenant_id = :tenant_id
	`, id)
	if err != nil {
		return nil, err
	}
	i := &Interaction{}
	err = row.Scan(&i.ID, &i.TenantID, &i.FirefliesTranscriptID, &i.Title, &i.OccurredAt, &i.Transcript, &i.Summary, &i.CreatedBy, &i.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return i, nil
}

func (r *Repository) ListInteractions(ctx context.Context) ([]*Interaction, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, tenant_id, fireflies_transcript_id, title, occurred_at, transcript, summary, created_by, created_at
		FROM interactions WHERE tenant_id = :tenant_id ORDER BY occurred_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var interactions []*Interaction
	for rows.Next() {
		i := &Interaction{}
		if err := rows.Scan(&i.ID, &i.TenantID, &i.FirefliesTranscriptID, &i.Title, &i.OccurredAt, &i.Transcript, &i.Summary, &i.CreatedBy, &i.CreatedAt); err != nil {
			return nil, err
		}
		interactions = append(interactions, i)
	}
	return interactions, rows.Err()
}

// promoteStaged writes the permanent interaction, links contacts/companies
// and marks the staged row imported, all in one transaction.
func (r *Repository) promoteStaged(ctx context.Context, staged *StagedMeeting, interaction *Interaction, contactIDs, companyIDs []string) error {
	return r.db.WithTx(ctx, func(tx *database.TenantTx) error {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO interactions (id, fireflies_transcript_id, title, occurred_at, transcript, summary, created_by, created_at, tenant_id)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, :tenant_id)
		`, interaction.ID, interaction.FirefliesTranscriptID, interaction.Title, interaction.OccurredAt,
			interaction.Transcript, interaction.Summary, interaction.CreatedBy, interaction.CreatedAt); err != nil {
			return errors.FromDB(err)
		}

		for _, contactID := range contactIDs {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO interaction_contacts (interaction_id, contact_id, tenant_id)
				VALUES (?, ?, :tenant_id)
			`, interaction.ID, contactID); err != nil {
				return errors.FromDB(err)
			}
		}
		for _, companyID := range companyIDs {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO interaction_companies (interaction_id, company_id, tenant_id)
				VALUES (?, ?, :tenant_id)
			`, interaction.ID, companyID); err != nil {
				return errors.FromDB(err)
			}
		}

		res, err := tx.ExecContext(ctx, `
			UPDATE staged_meetings SET import_status = ?, imported_to_interaction_id = ?
			WHERE id = ? AND import_status = 'pending' AND tenant_id = :tenant_id
		`, ImportStatusImported, interaction.ID, staged.ID)
		if err != nil {
			return errors.FromDB(err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return errors.Duplicate("staged meeting already resolved")
		}
		return nil
	})
}

func newStagedID() string {
	return "stg_" + uuid.NewString()
}

func scanStaged(s interface {
	Scan(dest ...interface{}) error
}) (*StagedMeeting, error) {
	var m StagedMeeting
	var participants, matched []byte
	err := s.Scan(
		&m.ID,
		&m.TenantID,
		&m.FirefliesTranscriptID,
		&m.Title,
		&m.MeetingDate,
		&participants,
		&m.MatchType,
		&matched,
		&m.ImportStatus,
		&m.ImportedInteractionID,
		&m.ExcludedAt,
		&m.ExcludedBy,
		&m.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(participants) > 0 {
		json.Unmarshal(participants, &m.Participants)
	}
	if len(matched) > 0 {
		json.Unmarshal(matched, &m.MatchedContactIDs)
	}
	return &m, nil
}
