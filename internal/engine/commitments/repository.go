package commitments

import (
	"context"
	"database/sql"
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

func (r *Repository) Create(ctx context.Context, in *Input) (*Commitment, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	row, err := r.db.QueryRowContext(ctx, `
		SELECT id FROM companies WHERE id = ? AND tenant_id = :tenant_id
	`, in.CompanyID)
	if err != nil {
		return nil, err
	}
	var companyID string
	if err := row.Scan(&companyID); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("company")
		}
		return nil, err
	}

	now := time.Now().Unix()
	c := &Commitment{
		ID:          "com_" + uuid.NewString(),
		TenantID:    r.db.TenantID(),
		CompanyID:   in.CompanyID,
		Title:       in.Title,
		Description: in.Description,
		Status:      StatusOpen,
		DueDate:     in.DueDate,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO commitments (id, company_id, title, description, status, due_date, completed_at, completion_notes, created_at, updated_at, tenant_id)
		VALUES (?, ?, ?, ?, ?, ?, NULL, '', ?, ?, :tenant_id)
	`, c.ID, c.CompanyID, c.Title, c.Description, c.Status, c.DueDate, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return nil, errors.FromDB(err)
	}
	return c, nil
}

func (r *Repository) GetByID(ctx context.Context, id string) (*Commitment, error) {
	row, err := r.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, company_id, title, description, status, due_date, completed_at, completion_notes, created_at, updated_at
		FROM commitments WHERE id = ? AND tenant_id = :tenant_id
	`, id)
	if err != nil {
		return nil, err
	}
	c, err := scanCommitment(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return c, nil
}

func (r *Repository) ListByCompany(ctx context.Context, companyID string) ([]*Commitment, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, tenant_id, company_id, title, description, status, due_date, completed_at, completion_notes, created_at, updated_at
		FROM commitments WHERE company_id = ? AND tenant_id = :tenant_id
		ORDER BY created_at DESC
	`, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var commitments []*Commitment
	for rows.Next() {
		c, err := scanCommitment(rows)
		if err != nil {
			return nil, err
		}
		commitments = append(commitments, c)
	}
	return commitments, rows.Err()
}

func (r *Repository) Update(ctx context.Context, id string, in *Input) (*Commitment, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	res, err := r.db.ExecContext(ctx, `
		UPDATE commitments SET title = ?, description = ?, due_date = ?, updated_at = ?
		WHERE id = ? AND tenant_id = :tenant_id
	`, in.Title, in.Description, in.DueDate, time.Now().Unix(), id)
	if err != nil {
		return nil, errors.FromDB(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, errors.NotFound("commitment")
	}
	return r.GetByID(ctx, id)
}

// SetStatus applies a transition. Any status may follow any other; moving
// into a closed status stamps completed_at (caller value or now) and notes,
// moving back to open clears both.
func (r *Repository) SetStatus(ctx context.Context, id string, change StatusChange) (*Commitment, error) {
	if !change.Status.Valid() {
		return nil, errors.Validation("status", "must be one of: open, completed, not_completed, cancelled")
	}

	current, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, errors.NotFound("commitment")
	}

	var completedAt *int64
	notes := ""
	if change.Status.Closed() {
		if change.CompletedAt != nil {
			completedAt = change.CompletedAt
		} else {
			now := time.Now().Unix()
			completedAt = &now
		}
		notes = change.Notes
	}

	_, err = r.db.ExecContext(ctx, `
		UPDATE commitments SET status = ?, completed_at = ?, completion_notes = ?, updated_at = ?
		WHERE id = ? AND tenant_id = :tenant_id
	`, change.Status, completedAt, notes, time.Now().Unix(), id)
	if err != nil {
		return nil, errors.FromDB(err)
	}
	return r.GetByID(ctx, id)
}

func (r *Repository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM commitments WHERE id = ? AND tenant_id = :tenant_id
	`, id)
	if err != nil {
		return errors.FromDB(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return errors.NotFound("commitment")
	}
	return nil
}

func scanCommitment(s interface {
	Scan(dest ...interface{}) error
}) (*Commitment, error) {
	var c Commitment
	err := s.Scan(
		&c.ID,
		&c.TenantID,
		&c.CompanyID,
		&c.Title,
		&c.Description,
		&c.Status,
		&c.DueDate,
		&c.CompletedAt,
		&c.CompletionNotes,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}
