package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

// Store is the SQLite persistence layer for client records and the
// assistant request log. Writes go through a single-connection writer
// handle; reads use a separate query_only pool.
type Store struct {
	writer    *sql.DB
	reader    *sql.DB
	path      string
	closeOnce sync.Once
}

const (
	dsnPragmas = "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)"
	// readerPragmas make the read pool reject writes.
	readerPragmas = dsnPragmas + "&_pragma=query_only(ON)"

	readerConns = 4
)

// Open opens (or creates) the database at path and applies any pending
// migrations. The parent directory is created if missing.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("store: create directory %s: %w", dir, err)
	}

	// SQLite allows one writer at a time, so the writer pool has exactly one
	// connection.
	writer, err := openPool(path+dsnPragmas, 1)
	if err != nil {
		return nil, fmt.Errorf("store: writer: %w", err)
	}
	reader, err := openPool(path+readerPragmas, readerConns)
	if err != nil {
		writer.Close()
		return nil, fmt.Errorf("store: reader: %w", err)
	}

	s := &Store{writer: writer, reader: reader, path: path}
	if err := s.Migrate(); err != nil {
		s.Close()
		return nil, fmt.Errorf("store: migrate: %w", err)
	}
	return s, nil
}

func openPool(dsn string, conns int) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(conns)
	db.SetMaxIdleConns(conns)
	db.SetConnMaxLifetime(0)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// Close closes both connection pools. It is safe to call more than once.
func (s *Store) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = errors.Join(s.writer.Close(), s.reader.Close())
	})
	return err
}

// Writer returns the writer database handle.
func (s *Store) Writer() *sql.DB {
	return s.writer
}

// Reader returns the reader database handle.
func (s *Store) Reader() *sql.DB {
	return s.reader
}

// Path returns the filesystem path of the database.
func (s *Store) Path() string {
	return s.path
}

// Ping verifies that both connection pools are alive.
func (s *Store) Ping() error {
	for name, db := range map[string]*sql.DB{"writer": s.writer, "reader": s.reader} {
		if err := db.Ping(); err != nil {
			return fmt.Errorf("store: %s ping: %w", name, err)
		}
	}
	return nil
}

// Prune deletes request log rows older than retentionDays and returns the
// number of rows removed. Client records are never pruned.
func (s *Store) Prune(retentionDays int) (int64, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays).Format(time.RFC3339)

	result, err := s.writer.Exec("DELETE FROM ai_requests WHERE timestamp < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("store: prune: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("store: prune rows affected: %w", err)
	}
	return n, nil
}
