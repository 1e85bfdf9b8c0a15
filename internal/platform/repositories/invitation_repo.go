package repositories

import (
	"database/sql"
	"time"

	"traction/internal/pkg/errors"
	"traction/internal/platform/models"
)

type InvitationRepository struct {
	db *sql.DB
}

func NewInvitationRepository(db *sql.DB) *InvitationRepository {
	return &InvitationRepository{db: db}
}

// Create inserts a pending invitation. The partial unique index on
// (organization_id, email) WHERE accepted_at IS NULL makes a second pending
// invitation to the same address fail; that failure is translated to a
// Duplicate outcome here.
func (r *InvitationRepository) Create(inv *models.Invitation) error {
	_, err := r.db.Exec(`
		INSERT INTO invitations (id, organization_id, email, role, token, invited_by, expires_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, inv.ID, inv.OrganizationID, inv.Email, inv.Role, inv.Token, inv.InvitedBy, inv.ExpiresAt, inv.CreatedAt, inv.UpdatedAt)
	if err != nil {
		if translated := errors.FromDB(err); errors.KindOf(translated) == errors.KindDuplicate {
			return errors.Duplicate("a pending invitation for this email already exists")
		}
		return err
	}
	return nil
}

func (r *InvitationRepository) GetByToken(token string) (*models.Invitation, error) {
	return r.scanOne(r.db.QueryRow(`
		SELECT id, organization_id, email, role, token, invited_by, expires_at, accepted_at, created_at, updated_at
		FROM invitations WHERE token = ?
	`, token))
}

func (r *InvitationRepository) GetByID(id, orgID string) (*models.Invitation, error) {
	return r.scanOne(r.db.QueryRow(`
		SELECT id, organization_id, email, role, token, invited_by, expires_at, accepted_at, created_at, updated_at
		FROM invitations WHERE id = ? AND organization_id = ?
	`, id, orgID))
}

func (r *InvitationRepository) ListByOrganization(orgID string) ([]*models.Invitation, error) {
	rows, err := r.db.Query(`
		SELECT id, organization_id, email, role, token, invited_by, expires_at, accepted_at, created_at, updated_at
		FROM invitations WHERE organization_id = ? ORDER BY created_at DESC
	`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var invs []*models.Invitation
	for rows.Next() {
		inv := &models.Invitation{}
		if err := rows.Scan(&inv.ID, &inv.OrganizationID, &inv.Email, &inv.Role, &inv.Token,
			&inv.InvitedBy, &inv.ExpiresAt, &inv.AcceptedAt, &inv.CreatedAt, &inv.UpdatedAt); err != nil {
			return nil, err
		}
		invs = append(invs, inv)
	}
	return invs, rows.Err()
}

func (r *InvitationRepository) MarkAcceptedTx(tx *sql.Tx, id string, at int64) error {
	_, err := tx.Exec(`
		UPDATE invitations SET accepted_at = ?, updated_at = ? WHERE id = ? AND accepted_at IS NULL
	`, at, at, id)
	return err
}

func (r *InvitationRepository) Delete(id, orgID string) error {
	res, err := r.db.Exec(`DELETE FROM invitations WHERE id = ? AND organization_id = ? AND accepted_at IS NULL`, id, orgID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return errors.NotFound("invitation")
	}
	return nil
}

func (r *InvitationRepository) BeginTx() (*sql.Tx, error) {
	return r.db.Begin()
}

func (r *InvitationRepository) scanOne(row *sql.Row) (*models.Invitation, error) {
	inv := &models.Invitation{}
	err := row.Scan(&inv.ID, &inv.OrganizationID, &inv.Email, &inv.Role, &inv.Token,
		&inv.InvitedBy, &inv.ExpiresAt, &inv.AcceptedAt, &inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return inv, nil
}

// AcceptDeadline returns the default expiry for a new invitation.
func AcceptDeadline(ttl time.Duration) int64 {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return time.Now().Add(ttl).Unix()
}
