package recordstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

const schema = `
	CREATE TABLE IF NOT EXISTS record_collections (
		name       TEXT PRIMARY KEY,
		data       TEXT NOT NULL,
		version    BIGINT NOT NULL DEFAULT 0,
		updated_at TIMESTAMP NOT NULL
	)
`

// SQLStore keeps each collection as one row. It works with the postgres and sqlite3 drivers.
type SQLStore struct {
	db     *sqlx.DB
	logger *slog.Logger
	owned  bool
}

// NewSQLStore uses an already connected database and creates the table if needed
func NewSQLStore(ctx context.Context, db *sqlx.DB, logger *slog.Logger) (*SQLStore, error) {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return nil, fmt.Errorf("failed to create record_collections table: %w", err)
	}

	logger.Info("SQL record store ready",
		slog.String("driver", db.DriverName()),
	)

	return &SQLStore{db: db, logger: logger}, nil
}

// OpenSQLite opens (or creates) a sqlite database file. Use ":memory:" for a throwaway store.
func OpenSQLite(ctx context.Context, path string, logger *slog.Logger) (*SQLStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create sqlite directory: %w", err)
		}
	}

	db, err := sqlx.Connect("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database %s: %w", path, err)
	}

	// sqlite allows one writer; a single connection also keeps :memory: databases shared
	db.SetMaxOpenConns(1)

	store, err := NewSQLStore(ctx, db, logger)
	if err != nil {
		db.Close()
		return nil, err
	}
	store.owned = true

	return store, nil
}

// Load reads the collection row; a missing row is version 0
func (s *SQLStore) Load(ctx context.Context, name string) (Document, error) {
	var row struct {
		Data    string `db:"data"`
		Version int64  `db:"version"`
	}

	query := s.db.Rebind(`SELECT data, version FROM record_collections WHERE name = ?`)
	err := s.db.GetContext(ctx, &row, query, name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Document{}, nil
		}
		return Document{}, fmt.Errorf("failed to load collection %s: %w", name, err)
	}

	return Document{Data: []byte(row.Data), Version: row.Version}, nil
}

// Replace upserts the collection row and bumps its version
func (s *SQLStore) Replace(ctx context.Context, name string, data []byte) error {
	query := s.db.Rebind(`
		INSERT INTO record_collections (name, data, version, updated_at)
		VALUES (?, ?, 1, ?)
		ON CONFLICT (name) DO UPDATE
		SET data = excluded.data,
		    version = record_collections.version + 1,
		    updated_at = excluded.updated_at
	`)

	if _, err := s.db.ExecContext(ctx, query, name, string(data), time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to replace collection %s: %w", name, err)
	}

	return nil
}

// CompareAndReplace updates the row only while it is still at version.
// Version 0 inserts and conflicts if the row already exists.
func (s *SQLStore) CompareAndReplace(ctx context.Context, name string, data []byte, version int64) error {
	var (
		result sql.Result
		err    error
	)

	now := time.Now().UTC()
	if version == 0 {
		query := s.db.Rebind(`
			INSERT INTO record_collections (name, data, version, updated_at)
			VALUES (?, ?, 1, ?)
			ON CONFLICT (name) DO NOTHING
		`)
		result, err = s.db.ExecContext(ctx, query, name, string(data), now)
	} else {
		query := s.db.Rebind(`
			UPDATE record_collections
			SET data = ?, version = version + 1, updated_at = ?
			WHERE name = ? AND version = ?
		`)
		result, err = s.db.ExecContext(ctx, query, string(data), now, name, version)
	}
	if err != nil {
		return fmt.Errorf("failed to replace collection %s: %w", name, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrVersionConflict
	}

	return nil
}

// Close closes the database only if the store opened it
func (s *SQLStore) Close() error {
	if !s.owned {
		return nil
	}
	return s.db.Close()
}
