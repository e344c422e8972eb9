package store

import (
	"database/sql"
	"fmt"
	"log"
	"time"
)

// Migration is one forward schema step
type Migration struct {
	Version     int
	Description string
	Up          func(*sql.Tx) error
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Create schema_version table",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
				CREATE TABLE IF NOT EXISTS schema_version (
					version INTEGER PRIMARY KEY,
					description TEXT NOT NULL,
					applied_at INTEGER NOT NULL
				)
			`)
			return err
		},
	},
	{
		Version:     2,
		Description: "Create attempts table",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
				CREATE TABLE IF NOT EXISTS attempts (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					session_id TEXT NOT NULL,
					pair TEXT NOT NULL,
					center_x INTEGER NOT NULL,
					center_y INTEGER NOT NULL,
					min_x INTEGER NOT NULL,
					min_y INTEGER NOT NULL,
					max_x INTEGER NOT NULL,
					max_y INTEGER NOT NULL,
					score REAL NOT NULL,
					quality TEXT NOT NULL,
					found INTEGER NOT NULL DEFAULT 0,
					created_at INTEGER NOT NULL
				)
			`)
			return err
		},
	},
	{
		Version:     3,
		Description: "Index attempts by session and pair",
		Up: func(tx *sql.Tx) error {
			if _, err := tx.Exec(`CREATE INDEX IF NOT EXISTS idx_attempts_session ON attempts(session_id, created_at)`); err != nil {
				return err
			}
			_, err := tx.Exec(`CREATE INDEX IF NOT EXISTS idx_attempts_pair ON attempts(pair)`)
			return err
		},
	},
}

// Version returns the latest applied schema version, 0 on a fresh database.
func (s *Store) Version() (int, error) {
	var exists bool
	err := s.conn.QueryRow(`
		SELECT COUNT(*) > 0 FROM sqlite_master
		WHERE type='table' AND name='schema_version'
	`).Scan(&exists)
	if err != nil {
		return 0, err
	}
	if !exists {
		return 0, nil
	}

	var version int
	err = s.conn.QueryRow(`SELECT COALESCE(MAX(version), 0) FROM schema_version`).Scan(&version)
	return version, err
}

func (s *Store) migrate() error {
	current, err := s.Version()
	if err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}

	for _, m := range migrations {
		if m.Version <= current {
			continue
		}
		err := s.execTx(func(tx *sql.Tx) error {
			if err := m.Up(tx); err != nil {
				return fmt.Errorf("migration %d failed: %w", m.Version, err)
			}
			_, err := tx.Exec(`
				INSERT INTO schema_version (version, description, applied_at)
				VALUES (?, ?, ?)
			`, m.Version, m.Description, time.Now().UnixMilli())
			return err
		})
		if err != nil {
			return err
		}
		log.Printf("Applied migration %d: %s\n", m.Version, m.Description)
	}
	return nil
}
