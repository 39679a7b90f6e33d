package settings

import (
	"context"
	"fmt"
	"time"

	"rereminder/internal/database"
)

// SQLiteBackend stores settings in the settings table.
type SQLiteBackend struct {
	db *database.DB
}

func NewSQLiteBackend(db *database.DB) *SQLiteBackend {
	return &SQLiteBackend{db: db}
}

func (b *SQLiteBackend) GetAll(ctx context.Context) (map[string]string, error) {
	rows, err := b.db.QueryContext(ctx, `SELECT key, value FROM settings`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	values := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, err
		}
		values[key] = value
	}
	return values, rows.Err()
}

func (b *SQLiteBackend) SetMany(ctx context.Context, values map[string]string) error {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck

	now := time.Now()
	for key, value := range values {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO settings (key, value, updated_at)
			VALUES (?, ?, ?)
			ON CONFLICT(key) DO UPDATE SET
				value = excluded.value,
				updated_at = excluded.updated_at`,
			key, value, now)
		if err != nil {
			return fmt.Errorf("upsert %s: %w", key, err)
		}
	}
	return tx.Commit()
}

func (b *SQLiteBackend) Ping(ctx context.Context) error {
	return b.db.Ping(ctx)
}

// Close is a no-op; the database is owned by the caller.
func (b *SQLiteBackend) Close() error { return nil }
