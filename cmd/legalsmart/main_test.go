package main

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/zalando/go-keyring"
)

func TestMain(m *testing.M) {
	keyring.MockInit()
	os.Exit(m.Run())
}

// writeConfig points the data directory at a temp dir.
func writeConfig(t *testing.T, extra string) string {
	t.Helper()
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("LEGALSMART_KEY_ANTHROPIC", "")
	dir := t.TempDir()
	path := filepath.Join(dir, "legalsmart.toml")
	content := "[server]\ndata_dir = \"" + filepath.ToSlash(dir) + "\"\n" +
		"[assistant]\ntoken_estimator = \"heuristic\"\n" + extra
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

// ---------------------------------------------------------------------------
// Clients
// ---------------------------------------------------------------------------

func TestClients_SeedListFilter(t *testing.T) {
	cfg := writeConfig(t, "[database]\nseed_samples = false\n")

	out, err := run(t, "", "-c", cfg, "clients", "seed")
	if err != nil {
		t.Fatalf("clients seed: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Seeded") {
		t.Errorf("seed output: got %q", out)
	}

	out, err = run(t, "", "-c", cfg, "clients", "seed")
	if err != nil {
		t.Fatalf("second seed: %v", err)
	}
	if !strings.Contains(out, "nothing seeded") {
		t.Errorf("second seed output: got %q", out)
	}

	out, err = run(t, "", "-c", cfg, "clients", "list", "--min-age", "200")
	if err != nil {
		t.Fatalf("clients list: %v", err)
	}
	if !strings.Contains(out, "No clients found.") {
		t.Errorf("empty filter output: got %q", out)
	}
}

func TestClients_AddAndDelete(t *testing.T) {
	cfg := writeConfig(t, "[database]\nseed_samples = false\n")

	out, err := run(t, "", "-c", cfg, "clients", "add", "--name", "Noa Cohen", "--age", "34", "--issue", "Family Law")
	if err != nil {
		t.Fatalf("clients add: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Client 1 added.") {
		t.Errorf("add output: got %q", out)
	}

	out, err = run(t, "", "-c", cfg, "clients", "list")
	if err != nil {
		t.Fatalf("clients list: %v", err)
	}
	if !strings.Contains(out, "Noa Cohen") || !strings.Contains(out, "LEGAL ISSUE") {
		t.Errorf("list output: got %q", out)
	}

	if _, err := run(t, "", "-c", cfg, "clients", "add", "--name", "", "--age", "34", "--issue", "x"); err == nil {
		t.Error("expected validation error for blank name")
	}

	if _, err := run(t, "", "-c", cfg, "clients", "delete", "1"); err != nil {
		t.Fatalf("clients delete: %v", err)
	}
	if _, err := run(t, "", "-c", cfg, "clients", "delete", "1"); err == nil {
		t.Error("expected not-found error deleting a missing client")
	}
}

// ---------------------------------------------------------------------------
// Export and assistant
// ---------------------------------------------------------------------------

func TestExport_CSVToFile(t *testing.T) {
	cfg := writeConfig(t, "")
	outPath := filepath.Join(t.TempDir(), "clients.csv")

	if out, err := run(t, "", "-c", cfg, "export", "--format", "csv", "-o", outPath, "--max-age", "200"); err != nil {
		t.Fatalf("export: %v\n%s", err, out)
	}
	f, err := os.Open(outPath)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(rows) < 2 {
		t.Fatalf("rows: got %d, want header plus sample clients", len(rows))
	}
	if strings.Join(rows[0], ",") != "id,name,age,legal_issue" {
		t.Errorf("header: got %v", rows[0])
	}
}

func TestExport_BadFormat(t *testing.T) {
	cfg := writeConfig(t, "")
	if _, err := run(t, "", "-c", cfg, "export", "--format", "pdf"); err == nil {
		t.Error("expected error for unsupported format")
	}
}

func TestAnalyze_WithoutKeyUsesSummary(t *testing.T) {
	cfg := writeConfig(t, "")
	out, err := run(t, "", "-c", cfg, "analyze")
	if err != nil {
		t.Fatalf("analyze: %v\n%s", err, out)
	}
	if !strings.Contains(out, "AI service is not configured") {
		t.Errorf("expected notice about missing AI service, got %q", out)
	}
	if !strings.Contains(out, "Total clients:") {
		t.Errorf("expected local summary, got %q", out)
	}
}

func TestAsk_BlankQuestion(t *testing.T) {
	cfg := writeConfig(t, "")
	if _, err := run(t, "", "-c", cfg, "ask", "  "); err == nil {
		t.Error("expected error for blank question")
	}
}

func TestSummary(t *testing.T) {
	cfg := writeConfig(t, "")
	out, err := run(t, "", "-c", cfg, "summary")
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if !strings.Contains(out, "Legal area distribution") {
		t.Errorf("summary output: got %q", out)
	}
}

// ---------------------------------------------------------------------------
// Keys and config
// ---------------------------------------------------------------------------

func TestKeys_SetListDelete(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("LEGALSMART_KEY_ANTHROPIC", "")

	if out, err := run(t, "sk-ant-test\n", "keys", "set"); err != nil {
		t.Fatalf("keys set: %v\n%s", err, out)
	}
	out, err := run(t, "", "keys", "list")
	if err != nil {
		t.Fatalf("keys list: %v", err)
	}
	if !strings.Contains(out, "anthropic: keychain") {
		t.Errorf("keys list: got %q", out)
	}
	if _, err := run(t, "", "keys", "delete"); err != nil {
		t.Fatalf("keys delete: %v", err)
	}
	out, _ = run(t, "", "keys", "list")
	if !strings.Contains(out, "anthropic: not configured") {
		t.Errorf("keys list after delete: got %q", out)
	}
}

func TestInitConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "legalsmart.toml")
	out, err := run(t, "", "init-config", "--path", path)
	if err != nil {
		t.Fatalf("init-config: %v", err)
	}
	if !strings.Contains(out, "Config written to") {
		t.Errorf("first run: got %q", out)
	}
	out, _ = run(t, "", "init-config", "--path", path)
	if !strings.Contains(out, "already exists") {
		t.Errorf("second run: got %q", out)
	}
}

func TestVersion(t *testing.T) {
	out, err := run(t, "", "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.HasPrefix(out, "legalsmart ") {
		t.Errorf("version: got %q", out)
	}
}
