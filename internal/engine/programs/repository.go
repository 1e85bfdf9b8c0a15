package programs

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

func (r *Repository) Create(ctx context.Context, in *Input) (*Program, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	now := time.Now().Unix()
	p := &Program{
		ID:          "prg_" + uuid.NewString(),
		TenantID:    r.db.TenantID(),
		Name:        in.Name,
		Description: in.Description,
		StartsAt:    in.StartsAt,
		EndsAt:      in.EndsAt,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO programs (id, name, description, starts_at, ends_at, created_at, updated_at, tenant_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, :tenant_id)
	`, p.ID, p.Name, p.Description, p.StartsAt, p.EndsAt, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return nil, errors.FromDB(err)
	}
	return p, nil
}

func (r *Repository) GetByID(ctx context.Context, id string) (*Program, error) {
	row, err := r.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, name, description, starts_at, ends_at, created_at, updated_at
		FROM programs WHERE id = ? AND tenant_id = :tenant_id
	`, id)
	if err != nil {
		return nil, err
	}
	p := &Program{}
	err = row.Scan(&p.ID, &p.TenantID, &p.Name, &p.Description, &p.StartsAt, &p.EndsAt, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return p, nil
}

func (r *Repository) List(ctx context.Context) ([]*Program, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, tenant_id, name, description, starts_at, ends_at, created_at, updated_at
		FROM programs WHERE tenant_id = :tenant_id ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var programs []*Program
	for rows.Next() {
		p := &Program{}
		if err := rows.Scan(&p.ID, &p.TenantID, &p.Name, &p.Description, &p.StartsAt, &p.EndsAt, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		programs = append(programs, p)
	}
	return programs, rows.Err()
}

func (r *Repository) Update(ctx context.Context, id string, in *Input) (*Program, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	res, err := r.db.ExecContext(ctx, `
		UPDATE programs SET name = ?, description = ?, starts_at = ?, ends_at = ?, updated_at = ?
		WHERE id = ? AND tenant_id = :tenant_id
	`, in.Name, in.Description, in.StartsAt, in.EndsAt, time.Now().Unix(), id)
	if err != nil {
		return nil, errors.FromDB(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, errors.NotFound("program")
	}
	return r.GetByID(ctx, id)
}

func (r *Repository) Delete(ctx context.Context, id string) error {
	return r.db.WithTx(ctx, func(tx *database.TenantTx) error {
		if _, err := tx.ExecContext(ctx, `
			DELETE FROM program_enrollments WHERE program_id = ? AND tenant_id = :tenant_id
		`, id); err != nil {
			return errors.FromDB(err)
		}
		res, err := tx.ExecContext(ctx, `
			DELETE FROM programs WHERE id = ? AND tenant_id = :tenant_id
		`, id)
		if err != nil {
			return errors.FromDB(err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return errors.NotFound("program")
		}
		return nil
	})
}

// Enroll adds one company to a program. Duplicate enrollments are rejected
// by the unique (program_id, company_id) index.
func (r *Repository) Enroll(ctx context.Context, programID, companyID string) (*Enrollment, error) {
	row, err := r.db.QueryRowContext(ctx, `
		SELECT id FROM companies WHERE id = ? AND tenant_id = :tenant_id
	`, companyID)
	if err != nil {
		return nil, err
	}
	var id string
	if err := row.Scan(&id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("company")
		}
		return nil, err
	}

	e := &Enrollment{
		ID:        "enr_" + uuid.NewString(),
		TenantID:  r.db.TenantID(),
		ProgramID: programID,
		CompanyID: companyID,
		Status:    "active",
		CreatedAt: time.Now().Unix(),
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO program_enrollments (id, program_id, company_id, status, created_at, tenant_id)
		VALUES (?, ?, ?, ?, ?, :tenant_id)
	`, e.ID, e.ProgramID, e.CompanyID, e.Status, e.CreatedAt)
	if err != nil {
		return nil, errors.FromDB(err)
	}
	return e, nil
}

// BulkEnroll processes companies sequentially, collecting per-item outcomes
// instead of aborting on the first failure.
func (r *Repository) BulkEnroll(ctx context.Context, programID string, companyIDs []string) ([]EnrollResult, int) {
	results := make([]EnrollResult, 0, len(companyIDs))
	enrolled := 0
	for _, companyID := range companyIDs {
		_, err := r.Enroll(ctx, programID, companyID)
		res := EnrollResult{CompanyID: companyID, Enrolled: err == nil}
		if err != nil {
			res.Error = err.Error()
		} else {
			enrolled++
		}
		results = append(results, res)
	}
	return results, enrolled
}

func (r *Repository) ListEnrollments(ctx context.Context, programID string) ([]*Enrollment, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, tenant_id, program_id, company_id, status, created_at
		FROM program_enrollments WHERE program_id = ? AND tenant_id = :tenant_id
		ORDER BY created_at ASC
	`, programID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var enrollments []*Enrollment
	for rows.Next() {
		e := &Enrollment{}
		if err := rows.Scan(&e.ID, &e.TenantID, &e.ProgramID, &e.CompanyID, &e.Status, &e.CreatedAt); err != nil {
			return nil, err
		}
		enrollments = append(enrollments, e)
	}
	return enrollments, rows.Err()
}
