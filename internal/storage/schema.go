package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Schema version tracking
const currentSchemaVersion = 1

// initializeSchema creates any missing tables and records the schema version.
func (db *DB) initializeSchema() error {
	version, err := db.getSchemaVersion()
	if err != nil {
		return err
	}
	if version > currentSchemaVersion {
		return fmt.Errorf("database schema version %d is newer than supported version %d", version, currentSchemaVersion)
	}
	if version == currentSchemaVersion {
		db.logger.Debug("Database schema is up to date", "version", version)
		return nil
	}

	return db.WithTx(context.Background(), func(tx *sql.Tx) error {
		for _, stmt := range schemaStatements {
			if _, err := tx.Exec(stmt); err != nil {
				return fmt.Errorf("failed to create schema: %w", err)
			}
		}
		if err := setSchemaVersion(tx, currentSchemaVersion); err != nil {
			return err
		}
		db.logger.Info("Database schema initialized", "version", currentSchemaVersion)
		return nil
	})
}

// getSchemaVersion gets the current schema version, or 0 for a new database.
func (db *DB) getSchemaVersion() (int, error) {
	ctx := context.Background()
	var tableName string
	err := db.QueryRow(ctx, `
		SELECT name FROM sqlite_master
		WHERE type='table' AND name='schema_version'
	`).Scan(&tableName)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	var version int
	err = db.QueryRow(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return version, nil
}

// setSchemaVersion sets the schema version
func setSchemaVersion(tx *sql.Tx, version int) error {
	if _, err := tx.Exec("DELETE FROM schema_version"); err != nil {
		return err
	}
	_, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", version)
	return err
}

// exportTables lists the data tables in the order they are cleared.
var exportTables = []string{"file_users", "bursts", "coupling_edges", "files", "users", "scan_metadata"}

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS scan_metadata (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS users (
		id    INTEGER PRIMARY KEY,
		name  TEXT NOT NULL,
		email TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS files (
		path          TEXT PRIMARY KEY,
		age_in_days   INTEGER NOT NULL,
		last_update   INTEGER NOT NULL,
		creation_date INTEGER,
		user_count    INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS file_users (
		path    TEXT NOT NULL REFERENCES files(path),
		user_id INTEGER NOT NULL REFERENCES users(id),
		PRIMARY KEY (path, user_id)
	)`,
	`CREATE TABLE IF NOT EXISTS bursts (
		path         TEXT NOT NULL REFERENCES files(path),
		seq          INTEGER NOT NULL,
		first_change INTEGER NOT NULL,
		last_change  INTEGER NOT NULL,
		commit_count INTEGER NOT NULL,
		users        TEXT NOT NULL,
		PRIMARY KEY (path, seq)
	)`,
	`CREATE TABLE IF NOT EXISTS coupling_edges (
		from_path          TEXT NOT NULL,
		to_path            TEXT NOT NULL,
		ratio              REAL NOT NULL,
		shared_buckets     INTEGER NOT NULL,
		active_buckets     INTEGER NOT NULL,
		last_shared_period INTEGER NOT NULL,
		PRIMARY KEY (from_path, to_path)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_coupling_edges_to ON coupling_edges(to_path)`,
	`CREATE INDEX IF NOT EXISTS idx_file_users_user ON file_users(user_id)`,
}
