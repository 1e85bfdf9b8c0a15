package database

import (
	"database/sql"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"traction/internal/platform/config"
)

// Open connects to the shared database. The driver is chosen from the DSN:
// postgres:// DSNs use lib/pq, everything else is treated as sqlite.
func Open(cfg config.DatabaseConfig) (*sql.DB, error) {
	driver := "sqlite3"
	dsn := cfg.DSN
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		driver = "postgres"
	}
	if driver == "sqlite3" && strings.HasPrefix(dsn, "file:") {
		dsn = dsn[5:]
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(cfg.MaxConnections)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		return nil, err
	}

	return db, nil
}
