package audit

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"traction/internal/platform/auth"
)

type Entry struct {
	ID             string                 `json:"id"`
	OrganizationID string                 `json:"organization_id"`
	UserID         string                 `json:"user_id"`
	Action         string                 `json:"action"`
	ResourceType   string                 `json:"resource_type"`
	ResourceID     string                 `json:"resource_id"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt      int64                  `json:"created_at"`
}

// Logger appends audit rows for mutating operations. Failures are logged and
// swallowed; an audit hiccup must not fail the operation it describes.
type Logger struct {
	db *sql.DB
}

func NewLogger(db *sql.DB) *Logger {
	return &Logger{db: db}
}

func (l *Logger) Log(claims *auth.Claims, action, resourceType, resourceID string, metadata map[string]interface{}) {
	entry := Entry{
		ID:             "aud_" + uuid.NewString(),
		OrganizationID: claims.TenantID,
		UserID:         claims.UserID,
		Action:         action,
		ResourceType:   resourceType,
		ResourceID:     resourceID,
		Metadata:       metadata,
		CreatedAt:      time.Now().Unix(),
	}

	metaJSON, _ := json.Marshal(entry.Metadata)
	_, err := l.db.Exec(`
		INSERT INTO audit_logs (id, organization_id, user_id, action, resource_type, resource_id, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, entry.ID, entry.OrganizationID, entry.UserID, entry.Action, entry.ResourceType, entry.ResourceID, string(metaJSON), entry.CreatedAt)
	if err != nil {
		log.Error().Err(err).Str("action", action).Msg("failed to write audit log")
	}
}

func (l *Logger) List(orgID string, limit, offset int) ([]*Entry, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := l.db.Query(`
		SELECT id, organization_id, user_id, action, resource_type, resource_id, metadata, created_at
		FROM audit_logs WHERE organization_id = ?
		ORDER BY created_at DESC LIMIT ? OFFSET ?
	`, orgID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		e := &Entry{}
		var metaRaw []byte
		if err := rows.Scan(&e.ID, &e.OrganizationID, &e.UserID, &e.Action, &e.ResourceType, &e.ResourceID, &metaRaw, &e.CreatedAt); err != nil {
			return nil, err
		}
		if len(metaRaw) > 0 {
			json.Unmarshal(metaRaw, &e.Metadata)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
