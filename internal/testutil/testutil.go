package testutil

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/allaspectsdev/legalsmart/internal/config"
	"github.com/allaspectsdev/legalsmart/internal/store"
)

// NewTestStore creates a SQLite store in a temporary directory.
// The store is automatically closed when the test completes.
func NewTestStore(t *testing.T) *store.Store {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "test.db")
	st, err := store.Open(dbPath)
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

// NewSeededStore returns a test store holding clients, in order.
func NewSeededStore(t *testing.T, clients []store.NewClient) *store.Store {
	t.Helper()
	st := NewTestStore(t)
	for _, c := range clients {
		if _, err := st.AddClient(context.Background(), c); err != nil {
			t.Fatalf("failed to seed client %q: %v", c.Name, err)
		}
	}
	return st
}

// NewTestConfig returns a minimal valid config for testing.
func NewTestConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Server.DataDir = t.TempDir()
	return cfg
}

// WriteFile writes content to a file in the given directory.
func WriteFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("failed to create directory: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}
	return path
}
