package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// migration is one schema step. Steps run in order, each in its own
// transaction, and are recorded in the migrations table.
type migration struct {
	version     int
	description string
	statements  []string
}

var migrations = []migration{
	{1, "clients and request log", allSchemas},
	{2, "client filter indexes", []string{
		"CREATE INDEX IF NOT EXISTS idx_clients_legal_issue ON clients(legal_issue)",
		"CREATE INDEX IF NOT EXISTS idx_clients_age ON clients(age)",
	}},
	{3, "request cost", []string{
		"ALTER TABLE ai_requests ADD COLUMN cost_usd REAL NOT NULL DEFAULT 0.0",
	}},
}

// latestVersion is the schema version a fully migrated database reports.
func latestVersion() int {
	return migrations[len(migrations)-1].version
}

// Migrate applies the pending steps. A migrated database is left alone.
func (s *Store) Migrate() error {
	if _, err := s.writer.Exec(schemaMigrations); err != nil {
		return fmt.Errorf("store: create migrations table: %w", err)
	}

	current, err := s.SchemaVersion()
	if err != nil {
		return fmt.Errorf("store: read migration version: %w", err)
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		if err := s.applyMigration(m); err != nil {
			return fmt.Errorf("store: migration v%d (%s): %w", m.version, m.description, err)
		}
	}
	return nil
}

// SchemaVersion returns the highest applied migration, 0 on a new file.
func (s *Store) SchemaVersion() (int, error) {
	var version int
	err := s.writer.QueryRow("SELECT COALESCE(MAX(version), 0) FROM migrations").Scan(&version)
	return version, err
}

func (s *Store) applyMigration(m migration) (err error) {
	tx, err := s.writer.Begin()
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = execAll(tx, m.statements); err != nil {
		return err
	}
	if _, err = tx.Exec(
		"INSERT INTO migrations (version, applied_at) VALUES (?, ?)",
		m.version, time.Now().UTC().Format(time.RFC3339),
	); err != nil {
		return err
	}
	return tx.Commit()
}

func execAll(tx *sql.Tx, statements []string) error {
	for _, stmt := range statements {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("exec %q: %w", firstLine(stmt), err)
		}
	}
	return nil
}

func firstLine(stmt string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(stmt), "\n")
	return line
}
