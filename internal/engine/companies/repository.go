package companies

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"traction/internal/pkg/errors"
	"traction/internal/platform/database"
)

// Repository is tenant-scoped: every statement carries the :tenant_id
// predicate and the TenantDB wrapper binds the trusted value itself. A row
// belonging to another tenant is indistinguishable from a missing row.
type Repository struct {
	db *database.TenantDB
}

func NewRepository(db *database.TenantDB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Create(ctx context.Context, in *Input) (*Company, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	now := time.Now().Unix()
	c := &Company{
		ID:           "cmp_" + uuid.NewString(),
		TenantID:     r.db.TenantID(),
		BusinessName: in.BusinessName,
		Website:      in.Website,
		Industry:     in.Industry,
		Description:  in.Description,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO companies (id, business_name, website, industry, description, created_at, updated_at, tenant_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, :tenant_id)
	`, c.ID, c.BusinessName, c.Website, c.Industry, c.Description, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return nil, errors.FromDB(err)
	}
	return c, nil
}

func (r *Repository) GetByID(ctx context.Context, id string) (*Company, error) {
	row, err := r.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, business_name, website, industry, description, created_at, updated_at
		FROM companies WHERE id = ? AND tenant_id = :tenant_id
	`, id)
	if err != nil {
		return nil, err
	}
	c, err := scanCompany(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return c, nil
}

func (r *Repository) Update(ctx context.Context, id string, in *Input) (*Company, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	res, err := r.db.ExecContext(ctx, `
		UPDATE companies SET business_name = ?, website = ?, industry = ?, description = ?, updated_at = ?
		WHERE id = ? AND tenant_id = :tenant_id
	`, in.BusinessName, in.Website, in.Industry, in.Description, time.Now().Unix(), id)
	if err != nil {
		return nil, errors.FromDB(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, errors.NotFound("company")
	}
	return r.GetByID(ctx, id)
}

func (r *Repository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM companies WHERE id = ? AND tenant_id = :tenant_id
	`, id)
	if err != nil {
		return errors.FromDB(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return errors.NotFound("company")
	}
	return nil
}

func (r *Repository) List(ctx context.Context, f Filter) ([]*Company, error) {
	limit := f.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}

	// LIMIT/OFFSET are inlined: :tenant_id must stay the last bound
	// parameter and they are sanitized integers anyway.
	query := fmt.Sprintf(`
		SELECT id, tenant_id, business_name, website, industry, description, created_at, updated_at
		FROM companies WHERE (? = '' OR business_name LIKE '%%' || ? || '%%')
		AND (? = '' OR industry = ?)
		AND tenant_id = :tenant_id
		ORDER BY business_name ASC LIMIT %d OFFSET %d
	`, limit, offset)
	rows, err := r.db.QueryContext(ctx, query, f.Query, f.Query, f.Industry, f.Industry)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var companies []*Company
	for rows.Next() {
		c, err := scanCompany(rows)
		if err != nil {
			return nil, err
		}
		companies = append(companies, c)
	}
	return companies, rows.Err()
}

// LinkContact attaches a contact to a company. Both sides are verified to be
// reachable under the current tenant before the link row is written.
func (r *Repository) LinkContact(ctx context.Context, companyID, contactID string) error {
	company, err := r.GetByID(ctx, companyID)
	if err != nil {
		return err
	}
	if company == nil {
		return errors.NotFound("company")
	}

	row, err := r.db.QueryRowContext(ctx, `
		SELECT id FROM contacts WHERE id = ? AND tenant_id = :tenant_id
	`, contactID)
	if err != nil {
		return err
	}
	var id string
	if err := row.Scan(&id); err != nil {
		if err == sql.ErrNoRows {
			return errors.NotFound("contact")
		}
		return err
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO company_contacts (company_id, contact_id, created_at, tenant_id)
		VALUES (?, ?, ?, :tenant_id)
	`, companyID, contactID, time.Now().Unix())
	return errors.FromDB(err)
}

func (r *Repository) UnlinkContact(ctx context.Context, companyID, contactID string) error {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM company_contacts WHERE company_id = ? AND contact_id = ? AND tenant_id = :tenant_id
	`, companyID, contactID)
	if err != nil {
		return errors.FromDB(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return errors.NotFound("link")
	}
	return nil
}

func (r *Repository) ListContactIDs(ctx context.Context, companyID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT contact_id FROM company_contacts WHERE company_id = ? AND tenant_id = :tenant_id
	`, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// CompaniesForContacts resolves the company ids linked to any of the given
// contacts. Used by the meeting promotion step for transitive linkage.
func (r *Repository) CompaniesForContacts(ctx context.Context, contactIDs []string) ([]string, error) {
	seen := map[string]bool{}
	var out []string
	for _, contactID := range contactIDs {
		rows, err := r.db.QueryContext(ctx, `
			SELECT company_id FROM company_contacts WHERE contact_id = ? AND tenant_id = :tenant_id
		`, contactID)
		if err != nil {
			return nil, err
		}
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return nil, err
			}
			if !seen[id] {
				seen[id] = true
				out = append(out, id)
			}
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, err
		}
		rows.Close()
	}
	return out, nil
}

func scanCompany(s interface {
	Scan(dest ...interface{}) error
}) (*Company, error) {
	var c Company
	err := s.Scan(
		&c.ID,
		&c.TenantID,
		&c.BusinessName,
		&c.Website,
		&c.Industry,
		&c.Description,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}
