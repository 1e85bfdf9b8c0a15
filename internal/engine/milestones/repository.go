package milestones

import (
	"context"
	"database/sql"

	"traction/internal/platform/database"
)

type Repository struct {
	db *database.TenantDB
}

func NewRepository(db *database.TenantDB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) ListTracks(ctx context.Context) ([]*Track, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, slug, created_at FROM milestone_tracks ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tracks []*Track
	for rows.Next() {
		t := &Track{}
		if err := rows.Scan(&t.ID, &t.Name, &t.Slug, &t.CreatedAt); err != nil {
			return nil, err
		}
		tracks = append(tracks, t)
	}
	return tracks, rows.Err()
}

func (r *Repository) GetTrackBySlug(ctx context.Context, slug string) (*Track, error) {
	row, err := r.db.QueryRowContext(ctx, `
		SELECT id, name, slug, created_at FROM milestone_tracks WHERE slug = ?
	`, slug)
	if err != nil {
		return nil, err
	}
	t := &Track{}
	if err := row.Scan(&t.ID, &t.Name, &t.Slug, &t.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return t, nil
}

func (r *Repository) GetDefinition(ctx context.Context, id string) (*Definition, error) {
	row, err := r.db.QueryRowContext(ctx, `
		SELECT id, track_id, name, order_position, evidence_description, objective_signal, created_at
		FROM milestone_definitions WHERE id = ?
	`, id)
	if err != nil {
		return nil, err
	}
	return scanDefinition(row)
}

func (r *Repository) ListDefinitions(ctx context.Context, trackID string) ([]*Definition, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, track_id, name, order_position, evidence_description, objective_signal, created_at
		FROM milestone_definitions WHERE track_id = ? ORDER BY order_position ASC
	`, trackID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var defs []*Definition
	for rows.Next() {
		d := &Definition{}
		if err := rows.Scan(&d.ID, &d.TrackID, &d.Name, &d.OrderPosition, &d.EvidenceDescription, &d.ObjectiveSignal, &d.CreatedAt); err != nil {
			return nil, err
		}
		defs = append(defs, d)
	}
	return defs, rows.Err()
}

func (r *Repository) GetCurrent(ctx context.Context, q database.Querier, companyID string) (*CompanyMilestone, error) {
	row, err := q.QueryRowContext(ctx, `
		SELECT company_id, tenant_id, milestone_definition_id, status, completed_at, is_verified, notes, updated_at
		FROM company_milestones WHERE company_id = ? AND tenant_id = :tenant_id
	`, companyID)
	if err != nil {
		return nil, err
	}
	cm := &CompanyMilestone{}
	err = row.Scan(&cm.CompanyID, &cm.TenantID, &cm.DefinitionID, &cm.Status, &cm.CompletedAt, &cm.IsVerified, &cm.Notes, &cm.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return cm, nil
}

func (r *Repository) upsertCurrent(ctx context.Context, tx *database.TenantTx, cm *CompanyMilestone) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO company_milestones (company_id, milestone_definition_id, status, completed_at, is_verified, notes, updated_at, tenant_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, :tenant_id)
		ON CONFLICT(company_id, tenant_id) DO UPDATE SET
			milestone_definition_id = excluded.milestone_definition_id,
			status = excluded.status,
			completed_at = excluded.completed_at,
			is_verified = excluded.is_verified,
			notes = excluded.notes,
			updated_at = excluded.updated_at
	`, cm.CompanyID, cm.DefinitionID, cm.Status, cm.CompletedAt, cm.IsVerified, cm.Notes, cm.UpdatedAt)
	return err
}

func (r *Repository) appendHistory(ctx context.Context, tx *database.TenantTx, h *HistoryEntry) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO milestone_history (id, company_id, from_milestone_id, to_milestone_id, changed_at, changed_by, metadata, tenant_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, :tenant_id)
	`, h.ID, h.CompanyID, h.FromMilestoneID, h.ToMilestoneID, h.ChangedAt, h.ChangedBy, h.Metadata)
	return err
}

func (r *Repository) ListHistory(ctx context.Context, companyID string) ([]*HistoryEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, tenant_id, company_id, from_milestone_id, to_milestone_id, changed_at, changed_by, metadata
		FROM milestone_history WHERE company_id = ? AND tenant_id = :tenant_id
		ORDER BY changed_at ASC, rowid ASC
	`, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*HistoryEntry
	for rows.Next() {
		h := &HistoryEntry{}
		if err := rows.Scan(&h.ID, &h.TenantID, &h.CompanyID, &h.FromMilestoneID, &h.ToMilestoneID, &h.ChangedAt, &h.ChangedBy, &h.Metadata); err != nil {
			return nil, err
		}
		entries = append(entries, h)
	}
	return entries, rows.Err()
}

func scanDefinition(s interface {
	Scan(dest ...interface{}) error
}) (*Definition, error) {
	d := &Definition{}
	err := s.Scan(&d.ID, &d.TrackID, &d.Name, &d.OrderPosition, &d.EvidenceDescription, &d.ObjectiveSignal, &d.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return d, nil
}
