package store

import (
	"context"
	"fmt"
)

// SampleClients are inserted by SeedSampleClients into an empty database.
var SampleClients = []NewClient{
	{Name: "David Levi", Age: 42, LegalIssue: "Real Estate"},
	{Name: "Noa Cohen", Age: 35, LegalIssue: "Family"},
	{Name: "Itamar Ben-Ari", Age: 60, LegalIssue: "Wills and Inheritance"},
	{Name: "Yael Mizrahi", Age: 29, LegalIssue: "Contracts"},
	{Name: "Avi Dahan", Age: 45, LegalIssue: "Criminal"},
	{Name: "Rina Azulay", Age: 38, LegalIssue: "Family"},
	{Name: "Daniel Kadosh", Age: 50, LegalIssue: "Wills and Inheritance"},
	{Name: "Lior Avrahami", Age: 33, LegalIssue: "Real Estate"},
	{Name: "Maya Segal", Age: 41, LegalIssue: "Family"},
	{Name: "Eliad Shlomo", Age: 28, LegalIssue: "Contracts"},
}

// SeedSampleClients inserts SampleClients in one transaction when the
// clients table is empty. It returns the number of rows inserted.
func (s *Store) SeedSampleClients(ctx context.Context) (int, error) {
	tx, err := s.writer.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("store: seed begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var existing int
	if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM clients").Scan(&existing); err != nil {
		return 0, fmt.Errorf("store: seed count: %w", err)
	}
	if existing > 0 {
		return 0, nil
	}

	stmt, err := tx.PrepareContext(ctx, "INSERT INTO clients (name, age, legal_issue) VALUES (?, ?, ?)")
	if err != nil {
		return 0, fmt.Errorf("store: seed prepare: %w", err)
	}
	defer stmt.Close()

	for _, c := range SampleClients {
		if _, err := stmt.ExecContext(ctx, c.Name, c.Age, c.LegalIssue); err != nil {
			return 0, fmt.Errorf("store: seed insert %q: %w", c.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("store: seed commit: %w", err)
	}
	return len(SampleClients), nil
}
