package database

import (
	"database/sql"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"

	"github.com/prudhvinik1/fieldsync/internal/logging"
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var localSchema string

// Local schema versions:
// 1 - beneficiaries, children, sync_queue
// 2 - beneficiaries.updated_at, sync_queue (data_id, data_type) index
const LocalSchemaVersion = 2

// InMemory opens a private in-memory store. Used by tests.
const InMemory = ":memory:"

var localTables = []string{"sync_queue", "children", "beneficiaries"}

// NewSQLite opens the on-device store at path, creating the parent directory
// if needed, and brings the schema to LocalSchemaVersion.
func NewSQLite(path string) (*sql.DB, error) {
	if path != InMemory {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open local store: %w", err)
	}

	// One connection serializes writers and keeps an in-memory store alive.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to local store: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	if err := migrateLocal(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate local store: %w", err)
	}

	logging.Debug("local store opened", logging.Fields{"path": path, "schema_version": LocalSchemaVersion})
	return db, nil
}

func migrateLocal(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}

	switch {
	case version == 0:
		if _, err := db.Exec(localSchema); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	case version == LocalSchemaVersion:
		return nil
	case version > 0 && version < LocalSchemaVersion:
		if version < 2 {
			if err := migrateToV2(db); err != nil {
				return err
			}
		}
		// Fill in any table or index a partial older store is missing.
		if _, err := db.Exec(localSchema); err != nil {
			return fmt.Errorf("complete schema: %w", err)
		}
	default:
		if err := rebuildLocal(db, version); err != nil {
			return err
		}
	}

	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", LocalSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return nil
}

func migrateToV2(db *sql.DB) error {
	stmts := []string{
		"ALTER TABLE beneficiaries ADD COLUMN updated_at INTEGER NOT NULL DEFAULT 0",
		"UPDATE beneficiaries SET updated_at = created_at",
		"CREATE INDEX IF NOT EXISTS idx_sync_queue_data ON sync_queue(data_id, data_type)",
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate to v2: %w", err)
		}
	}
	return nil
}

// rebuildLocal drops every table and recreates the current schema. Only used
// for versions this build does not know how to migrate.
func rebuildLocal(db *sql.DB, from int) error {
	var lost int
	if err := db.QueryRow("SELECT COUNT(*) FROM beneficiaries WHERE is_synced = 0").Scan(&lost); err != nil {
		lost = -1
	}
	logging.Warn("unknown local schema version, rebuilding", logging.Fields{
		"from_version":     from,
		"to_version":       LocalSchemaVersion,
		"unsynced_dropped": lost,
	})

	for _, table := range localTables {
		if _, err := db.Exec("DROP TABLE IF EXISTS " + table); err != nil {
			return fmt.Errorf("drop %s: %w", table, err)
		}
	}
	if _, err := db.Exec(localSchema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}
