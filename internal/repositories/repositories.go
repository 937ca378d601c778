// package repositories provides persistence layer implementations backed by sqlx.
package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// Open wraps an existing connection for use with the repositories.
func Open(db *sql.DB) *sqlx.DB {
	return sqlx.NewDb(db, "sqlite3")
}

// NextSequence atomically increments and returns the next sequence number for the given table.
func NextSequence(ctx context.Context, tx *sqlx.Tx, table string) (int64, error) {
	sequenceTable := table + "_sequence"

	if _, err := tx.ExecContext(ctx, fmt.Sprintf("UPDATE %s SET value = value + 1 WHERE id = 1", sequenceTable)); err != nil {
		return 0, fmt.Errorf("failed to increment sequence: %w", err)
	}

	var sequence int64
	if err := tx.GetContext(ctx, &sequence, fmt.Sprintf("SELECT value FROM %s WHERE id = 1", sequenceTable)); err != nil {
		return 0, fmt.Errorf("failed to get sequence value: %w", err)
	}
	return sequence, nil
}
