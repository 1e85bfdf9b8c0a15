package secrets

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"traction/internal/pkg/errors"
	"traction/internal/platform/auth"
)

// Store keeps third-party API keys encrypted at rest. Rows hold only
// ciphertext; tenant configuration references secrets by the generated id.
type Store struct {
	db  *sql.DB
	key []byte
}

func NewStore(db *sql.DB, hexKey string) (*Store, error) {
	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("secrets: decode encryption key: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("secrets: encryption key must be 32 bytes, got %d", len(key))
	}
	return &Store{db: db, key: key}, nil
}

func (s *Store) Create(value, name, description string) (string, error) {
	ciphertext, nonce, err := s.seal([]byte(value))
	if err != nil {
		return "", err
	}

	id := "sec_" + uuid.NewString()
	_, err = s.db.Exec(`
		INSERT INTO secrets (id, name, description, ciphertext, nonce, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, id, name, description, ciphertext, nonce, time.Now().Unix())
	if err != nil {
		return "", err
	}
	return id, nil
}

// Read decrypts a stored secret. Requires an admin-level caller; the role is
// checked here, at retrieval time, not just at the route.
func (s *Store) Read(claims *auth.Claims, id string) (string, error) {
	if !claims.Role.AtLeast(auth.RoleAdmin) {
		return "", errors.Forbidden("reading secrets requires admin role")
	}

	var ciphertext, nonce []byte
	err := s.db.QueryRow(`SELECT ciphertext, nonce FROM secrets WHERE id = ?`, id).Scan(&ciphertext, &nonce)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", errors.NotFound("secret")
		}
		return "", err
	}

	plaintext, err := s.open(ciphertext, nonce)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}

func (s *Store) Delete(id string) error {
	_, err := s.db.Exec(`DELETE FROM secrets WHERE id = ?`, id)
	return err
}

func (s *Store) seal(plaintext []byte) (ciphertext, nonce []byte, err error) {
	block, err := aes.NewCipher(s.key)
	if err != nil {
		return nil, nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, nil, err
	}
	nonce = make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, nil, err
	}
	return gcm.Seal(nil, nonce, plaintext, nil), nonce, nil
}

func (s *Store) open(ciphertext, nonce []byte) ([]byte, error) {
	block, err := aes.NewCipher(s.key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return gcm.Open(nil, nonce, ciphertext, nil)
}
