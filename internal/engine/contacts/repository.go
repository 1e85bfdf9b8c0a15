package contacts

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"traction/internal/pkg/errors"
	"traction/internal/pkg/validator"
	"traction/internal/platform/database"
)

type Repository struct {
	db *database.TenantDB
}

func NewRepository(db *database.TenantDB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Create(ctx context.Context, in *Input) (*Contact, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	now := time.Now().Unix()
	c := &Contact{
		ID:        "cnt_" + uuid.NewString(),
		TenantID:  r.db.TenantID(),
		FirstName: in.FirstName,
		LastName:  in.LastName,
		Title:     in.Title,
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO contacts (id, first_name, last_name, title, created_at, updated_at, tenant_id)
		VALUES (?, ?, ?, ?, ?, ?, :tenant_id)
	`, c.ID, c.FirstName, c.LastName, c.Title, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return nil, errors.FromDB(err)
	}
	return c, nil
}

func (r *Repository) GetByID(ctx context.Context, id string) (*Contact, error) {
	row, err := r.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, first_name, last_name, title, created_at, updated_at
		FROM contacts WHERE id = ? AND tenant_id = :tenant_id
	`, id)
	if err != nil {
		return nil, err
	}
	c := &Contact{}
	err = row.Scan(&c.ID, &c.TenantID, &c.FirstName, &c.LastName, &c.Title, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	emails, err := r.ListEmails(ctx, id)
	if err != nil {
		return nil, err
	}
	c.Emails = emails
	return c, nil
}

func (r *Repository) Update(ctx context.Context, id string, in *Input) (*Contact, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	res, err := r.db.ExecContext(ctx, `
		UPDATE contacts SET first_name = ?, last_name = ?, title = ?, updated_at = ?
		WHERE id = ? AND tenant_id = :tenant_id
	`, in.FirstName, in.LastName, in.Title, time.Now().Unix(), id)
	if err != nil {
		return nil, errors.FromDB(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, errors.NotFound("contact")
	}
	return r.GetByID(ctx, id)
}

func (r *Repository) Delete(ctx context.Context, id string) error {
	return r.db.WithTx(ctx, func(tx *database.TenantTx) error {
		if _, err := tx.ExecContext(ctx, `
			DELETE FROM contact_emails WHERE contact_id = ? AND tenant_id = :tenant_id
		`, id); err != nil {
			return errors.FromDB(err)
		}
		if _, err := tx.ExecContext(ctx, `
			DELETE FROM company_contacts WHERE contact_id = ? AND tenant_id = :tenant_id
		`, id); err != nil {
			return errors.FromDB(err)
		}
		res, err := tx.ExecContext(ctx, `
			DELETE FROM contacts WHERE id = ? AND tenant_id = :tenant_id
		`, id)
		if err != nil {
			return errors.FromDB(err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return errors.NotFound("contact")
		}
		return nil
	})
}

func (r *Repository) List(ctx context.Context, f Filter) ([]*Contact, error) {
	limit := f.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`
		SELECT id, tenant_id, first_name, last_name, title, created_at, updated_at
		FROM contacts
		WHERE (? = '' OR first_name LIKE '%%' || ? || '%%' OR last_name LIKE '%%' || ? || '%%')
		AND tenant_id = :tenant_id
		ORDER BY last_name, first_name LIMIT %d OFFSET %d
	`, limit, offset)
	rows, err := r.db.QueryContext(ctx, query, f.Query, f.Query, f.Query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var contacts []*Contact
	for rows.Next() {
		c := &Contact{}
		if err := rows.Scan(&c.ID, &c.TenantID, &c.FirstName, &c.LastName, &c.Title, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		contacts = append(contacts, c)
	}
	return contacts, rows.Err()
}

func (r *Repository) ListEmails(ctx context.Context, contactID string) ([]*Email, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, contact_id, email, email_type, is_primary, is_verified, created_at
		FROM contact_emails WHERE contact_id = ? AND tenant_id = :tenant_id
		ORDER BY is_primary DESC, created_at ASC
	`, contactID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var emails []*Email
	for rows.Next() {
		e := &Email{}
		if err := rows.Scan(&e.ID, &e.ContactID, &e.Email, &e.EmailType, &e.IsPrimary, &e.IsVerified, &e.CreatedAt); err != nil {
			return nil, err
		}
		emails = append(emails, e)
	}
	return emails, rows.Err()
}

// AddEmail validates format and type before touching storage. Duplicate
// addresses per contact and a second primary both surface as Duplicate via
// the unique indexes.
func (r *Repository) AddEmail(ctx context.Context, contactID, email, emailType string, isPrimary bool) (*Email, error) {
	email = validator.NormalizeEmail(email)
	if err := validator.ValidateEmail(email); err != nil {
		return nil, err
	}
	if err := validator.ValidateEmailType(emailType); err != nil {
		return nil, err
	}

	contact, err := r.GetByID(ctx, contactID)
	if err != nil {
		return nil, err
	}
	if contact == nil {
		return nil, errors.NotFound("contact")
	}

	e := &Email{
		ID:        "eml_" + uuid.NewString(),
		ContactID: contactID,
		Email:     email,
		EmailType: emailType,
		IsPrimary: isPrimary,
		CreatedAt: time.Now().Unix(),
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO contact_emails (id, contact_id, email, email_type, is_primary, is_verified, created_at, tenant_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, :tenant_id)
	`, e.ID, e.ContactID, e.Email, e.EmailType, e.IsPrimary, e.IsVerified, e.CreatedAt)
	if err != nil {
		return nil, errors.FromDB(err)
	}
	return e, nil
}

// SetPrimary demotes the current primary and promotes the given email in one
// transaction, leaving exactly one primary row.
func (r *Repository) SetPrimary(ctx context.Context, contactID, emailID string) error {
	return r.db.WithTx(ctx, func(tx *database.TenantTx) error {
		row, err := tx.QueryRowContext(ctx, `
			SELECT id FROM contact_emails WHERE id = ? AND contact_id = ? AND tenant_id = :tenant_id
		`, emailID, contactID)
		if err != nil {
			return err
		}
		var id string
		if err := row.Scan(&id); err != nil {
			if err == sql.ErrNoRows {
				return errors.NotFound("email")
			}
			return err
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE contact_emails SET is_primary = 0 WHERE contact_id = ? AND is_primary = 1 AND tenant_id = :tenant_id
		`, contactID); err != nil {
			return errors.FromDB(err)
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE contact_emails SET is_primary = 1 WHERE id = ? AND tenant_id = :tenant_id
		`, emailID); err != nil {
			return errors.FromDB(err)
		}
		return nil
	})
}

func (r *Repository) DeleteEmail(ctx context.Context, contactID, emailID string) error {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM contact_emails WHERE id = ? AND contact_id = ? AND tenant_id = :tenant_id
	`, emailID, contactID)
	if err != nil {
		return errors.FromDB(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return errors.NotFound("email")
	}
	return nil
}

// MatchByEmails maps addresses to contact ids within the current tenant.
// Unknown addresses are simply absent from the result.
func (r *Repository) MatchByEmails(ctx context.Context, emails []string) (map[string]string, error) {
	matches := make(map[string]string)
	for _, email := range emails {
		normalized := validator.NormalizeEmail(email)
		row, err := r.db.QueryRowContext(ctx, `
			SELECT contact_id FROM contact_emails WHERE email = ? AND tenant_id = :tenant_id
		`, normalized)
		if err != nil {
			return nil, err
		}
		var contactID string
		if err := row.Scan(&contactID); err != nil {
			if err == sql.ErrNoRows {
				continue
			}
			return nil, err
		}
		matches[normalized] = contactID
	}
	return matches, nil
}
