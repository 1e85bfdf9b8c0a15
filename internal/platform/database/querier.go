package database

import (
	"context"
	"database/sql"
)

// Querier is satisfied by both TenantDB and TenantTx so repositories can run
// the same statements inside or outside a transaction.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) (*sql.Row, error)
}
