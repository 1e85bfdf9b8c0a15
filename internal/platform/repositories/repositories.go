package repositories

import (
	"database/sql"
	"time"

	"traction/internal/platform/models"
)

type OrganizationRepository struct {
	db *sql.DB
}

func NewOrganizationRepository(db *sql.DB) *OrganizationRepository {
	return &OrganizationRepository{db: db}
}

func (r *OrganizationRepository) BeginTx() (*sql.Tx, error) {
	return r.db.Begin()
}

func (r *OrganizationRepository) CreateTx(tx *sql.Tx, org *models.Organization) error {
	_, err := tx.Exec(`
		INSERT INTO organizations (id, name, slug, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`, org.ID, org.Name, org.Slug, org.CreatedAt, org.UpdatedAt)
	return err
}

func (r *OrganizationRepository) Create(org *models.Organization) error {
	_, err := r.db.Exec(`
		INSERT INTO organizations (id, name, slug, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`, org.ID, org.Name, org.Slug, org.CreatedAt, org.UpdatedAt)
	return err
}

func (r *OrganizationRepository) GetByID(id string) (*models.Organization, error) {
	org := &models.Organization{}
	err := r.db.QueryRow(`
		SELECT id, name, slug, created_at, updated_at, deleted_at
		FROM organizations WHERE id = ? AND deleted_at IS NULL
	`, id).Scan(&org.ID, &org.Name, &org.Slug, &org.CreatedAt, &org.UpdatedAt, &org.DeletedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return org, nil
}

func (r *OrganizationRepository) GetBySlug(slug string) (*models.Organization, error) {
	org := &models.Organization{}
	err := r.db.QueryRow(`
		SELECT id, name, slug, created_at, updated_at, deleted_at
		FROM organizations WHERE slug = ? AND deleted_at IS NULL
	`, slug).Scan(&org.ID, &org.Name, &org.Slug, &org.CreatedAt, &org.UpdatedAt, &org.DeletedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return org, nil
}

func (r *OrganizationRepository) Update(org *models.Organization) error {
	_, err := r.db.Exec(`
		UPDATE organizations SET name = ?, updated_at = ? WHERE id = ?
	`, org.Name, time.Now().Unix(), org.ID)
	return err
}

func (r *OrganizationRepository) ListActive() ([]*models.Organization, error) {
	rows, err := r.db.Query(`
		SELECT id, name, slug, created_at, updated_at, deleted_at
		FROM organizations WHERE deleted_at IS NULL
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orgs []*models.Organization
	for rows.Next() {
		org := &models.Organization{}
		if err := rows.Scan(&org.ID, &org.Name, &org.Slug, &org.CreatedAt, &org.UpdatedAt, &org.DeletedAt); err != nil {
			return nil, err
		}
		orgs = append(orgs, org)
	}
	return orgs, rows.Err()
}

type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) CreateTx(tx *sql.Tx, user *models.User) error {
	_, err := tx.Exec(`
		INSERT INTO users (id, email, email_verified, password_hash, full_name, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, user.ID, user.Email, user.EmailVerified, user.PasswordHash, user.FullName, user.CreatedAt, user.UpdatedAt)
	return err
}

func (r *UserRepository) Create(user *models.User) error {
	_, err := r.db.Exec(`
		INSERT INTO users (id, email, email_verified, password_hash, full_name, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, user.ID, user.Email, user.EmailVerified, user.PasswordHash, user.FullName, user.CreatedAt, user.UpdatedAt)
	return err
}

func (r *UserRepository) GetByID(id string) (*models.User, error) {
	user := &models.User{}
	err := r.db.QueryRow(`
		SELECT id, email, email_verified, password_hash, full_name, last_login_at, created_at, updated_at, deleted_at
		FROM users WHERE id = ?
	`, id).Scan(&user.ID, &user.Email, &user.EmailVerified, &user.PasswordHash, &user.FullName, &user.LastLoginAt, &user.CreatedAt, &user.UpdatedAt, &user.DeletedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return user, nil
}

func (r *UserRepository) GetByEmail(email string) (*models.User, error) {
	user := &models.User{}
	err := r.db.QueryRow(`
		SELECT id, email, email_verified, password_hash, full_name, last_login_at, created_at, updated_at, deleted_at
		FROM users WHERE email = ?
	`, email).Scan(&user.ID, &user.Email, &user.EmailVerified, &user.PasswordHash, &user.FullName, &user.LastLoginAt, &user.CreatedAt, &user.UpdatedAt, &user.DeletedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return user, nil
}

func (r *UserRepository) UpdateLastLogin(userID string, timestamp int64) error {
	_, err := r.db.Exec(`UPDATE users SET last_login_at = ? WHERE id = ?`, timestamp, userID)
	return err
}

type MembershipRepository struct {
	db *sql.DB
}

func NewMembershipRepository(db *sql.DB) *MembershipRepository {
	return &MembershipRepository{db: db}
}

func (r *MembershipRepository) Create(m *models.Membership) error {
	_, err := r.db.Exec(`
		INSERT INTO memberships (id, user_id, organization_id, role, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, m.ID, m.UserID, m.OrganizationID, m.Role, m.CreatedAt)
	return err
}

func (r *MembershipRepository) CreateTx(tx *sql.Tx, m *models.Membership) error {
	_, err := tx.Exec(`
		INSERT INTO memberships (id, user_id, organization_id, role, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, m.ID, m.UserID, m.OrganizationID, m.Role, m.CreatedAt)
	return err
}

func (r *MembershipRepository) Get(userID, orgID string) (*models.Membership, error) {
	m := &models.Membership{}
	err := r.db.QueryRow(`
		SELECT id, user_id, organization_id, role, created_at
		FROM memberships WHERE user_id = ? AND organization_id = ?
	`, userID, orgID).Scan(&m.ID, &m.UserID, &m.OrganizationID, &m.Role, &m.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return m, nil
}

func (r *MembershipRepository) ListByUser(userID string) ([]*models.Membership, error) {
	rows, err := r.db.Query(`
		SELECT m.id, m.user_id, m.organization_id, m.role, m.created_at,
		       o.id, o.name, o.slug, o.created_at, o.updated_at
		FROM memberships m
		JOIN organizations o ON o.id = m.organization_id AND o.deleted_at IS NULL
		WHERE m.user_id = ?
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var memberships []*models.Membership
	for rows.Next() {
		m := &models.Membership{Organization: &models.Organization{}}
		o := m.Organization
		if err := rows.Scan(&m.ID, &m.UserID, &m.OrganizationID, &m.Role, &m.CreatedAt,
			&o.ID, &o.Name, &o.Slug, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, err
		}
		memberships = append(memberships, m)
	}
	return memberships, rows.Err()
}

func (r *MembershipRepository) ListByOrganization(orgID string) ([]*models.Membership, error) {
	rows, err := r.db.Query(`
		SELECT id, user_id, organization_id, role, created_at
		FROM memberships WHERE organization_id = ?
	`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var memberships []*models.Membership
	for rows.Next() {
		m := &models.Membership{}
		if err := rows.Scan(&m.ID, &m.UserID, &m.OrganizationID, &m.Role, &m.CreatedAt); err != nil {
			return nil, err
		}
		memberships = append(memberships, m)
	}
	return memberships, rows.Err()
}

func (r *MembershipRepository) UpdateRole(userID, orgID string, role string) error {
	_, err := r.db.Exec(`
		UPDATE memberships SET role = ? WHERE user_id = ? AND organization_id = ?
	`, role, userID, orgID)
	return err
}

func (r *MembershipRepository) Delete(userID, orgID string) error {
	_, err := r.db.Exec(`
		DELETE FROM memberships WHERE user_id = ? AND organization_id = ?
	`, userID, orgID)
	return err
}
