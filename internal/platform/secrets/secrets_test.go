package secrets

import (
	"database/sql"
	"strings"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"traction/internal/pkg/errors"
	"traction/internal/platform/auth"
)

const testKey = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

func setupTestDB(t *testing.T) *sql.DB {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open db: %v", err)
	}

	_, err = db.Exec(`
	CREATE TABLE secrets (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		ciphertext BLOB NOT NULL,
		nonce BLOB NOT NULL,
		created_at INTEGER NOT NULL
	);
	`)
	if err != nil {
		t.Fatalf("Failed to create tables: %v", err)
	}
	return db
}

func adminClaims() *auth.Claims {
	return &auth.Claims{UserID: "usr_1", TenantID: "org_1", Role: auth.RoleAdmin}
}

func TestStore_Roundtrip(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	store, err := NewStore(db, testKey)
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}

	id, err := store.Create("ff-api-key-12345", "fireflies", "transcription key")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if !strings.HasPrefix(id, "sec_") {
		t.Errorf("Unexpected secret id: %s", id)
	}

	// The row must not hold the plaintext.
	var ciphertext []byte
	db.QueryRow(`SELECT ciphertext FROM secrets WHERE id = ?`, id).Scan(&ciphertext)
	if strings.Contains(string(ciphertext), "ff-api-key") {
		t.Error("Plaintext leaked into storage")
	}

	value, err := store.Read(adminClaims(), id)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if value != "ff-api-key-12345" {
		t.Errorf("Expected decrypted value, got %q", value)
	}
}

func TestStore_ReadRequiresAdmin(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	store, err := NewStore(db, testKey)
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	id, err := store.Create("value", "key", "")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	for _, role := range []auth.Role{auth.RoleViewer, auth.RoleEditor} {
		claims := &auth.Claims{UserID: "usr_2", TenantID: "org_1", Role: role}
		if _, err := store.Read(claims, id); errors.KindOf(err) != errors.KindForbidden {
			t.Errorf("Role %s: expected forbidden, got %v", role, err)
		}
	}

	owner := &auth.Claims{UserID: "usr_3", TenantID: "org_1", Role: auth.RoleOwner}
	if _, err := store.Read(owner, id); err != nil {
		t.Errorf("Owner read failed: %v", err)
	}
}

func TestStore_ReadMissing(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	store, err := NewStore(db, testKey)
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}

	if _, err := store.Read(adminClaims(), "sec_missing"); errors.KindOf(err) != errors.KindNotFound {
		t.Errorf("Expected not found, got %v", err)
	}
}

func TestStore_Delete(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	store, err := NewStore(db, testKey)
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	id, err := store.Create("value", "key", "")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if err := store.Delete(id); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := store.Read(adminClaims(), id); errors.KindOf(err) != errors.KindNotFound {
		t.Errorf("Expected not found after delete, got %v", err)
	}
}

func TestNewStore_BadKey(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	if _, err := NewStore(db, "not-hex"); err == nil {
		t.Error("Expected error for non-hex key")
	}
	if _, err := NewStore(db, "aabbcc"); err == nil {
		t.Error("Expected error for short key")
	}
}
