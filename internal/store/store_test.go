package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func openCoreTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	st, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func intPtr(v int) *int { return &v }

func TestOpen_Close(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	st, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	if st.Path() != path {
		t.Errorf("Path: got %q, want %q", st.Path(), path)
	}
	if st.Writer() == nil {
		t.Error("Writer is nil")
	}
	if st.Reader() == nil {
		t.Error("Reader is nil")
	}

	if err := st.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := st.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}

func TestOpen_CreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "deep", "test.db")
	st, err := Open(path)
	if err != nil {
		t.Fatalf("Open with nested dir: %v", err)
	}
	st.Close()
}

func TestPing(t *testing.T) {
	st := openCoreTestStore(t)
	if err := st.Ping(); err != nil {
		t.Fatalf("Ping: %v", err)
	}
}

func TestMigrate_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	st, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	want := latestVersion()
	v, err := st.SchemaVersion()
	if err != nil {
		t.Fatalf("SchemaVersion: %v", err)
	}
	if v != want {
		t.Errorf("SchemaVersion: got %d, want %d", v, want)
	}
	st.Close()

	st, err = Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer st.Close()
	if err := st.Migrate(); err != nil {
		t.Fatalf("Migrate again: %v", err)
	}
	v, _ = st.SchemaVersion()
	if v != want {
		t.Errorf("SchemaVersion after reopen: got %d, want %d", v, want)
	}
}

// ---------------------------------------------------------------------------
// Clients
// ---------------------------------------------------------------------------

func TestAddClient_ListIncludesExactlyOne(t *testing.T) {
	st := openCoreTestStore(t)
	ctx := context.Background()

	if _, err := st.AddClient(ctx, NewClient{Name: "Noa Cohen", Age: 35, LegalIssue: "Family"}); err != nil {
		t.Fatalf("AddClient: %v", err)
	}
	id, err := st.AddClient(ctx, NewClient{Name: "  Avi Dahan ", Age: 45, LegalIssue: " Criminal"})
	if err != nil {
		t.Fatalf("AddClient: %v", err)
	}

	clients, err := st.ListClients(ctx, ClientFilter{})
	if err != nil {
		t.Fatalf("ListClients: %v", err)
	}
	if len(clients) != 2 {
		t.Fatalf("len: got %d, want 2", len(clients))
	}

	matches := 0
	for _, c := range clients {
		if c.ID == id {
			matches++
			if c.Name != "Avi Dahan" || c.Age != 45 || c.LegalIssue != "Criminal" {
				t.Errorf("stored client: got %+v", c)
			}
		}
	}
	if matches != 1 {
		t.Errorf("records with new id: got %d, want 1", matches)
	}
	if clients[0].ID >= clients[1].ID {
		t.Errorf("ListClients not ordered by id: %d, %d", clients[0].ID, clients[1].ID)
	}
}

func TestAddClient_Validation(t *testing.T) {
	tests := []struct {
		name   string
		input  NewClient
		fields []string
	}{
		{"empty name", NewClient{Name: "", Age: 30, LegalIssue: "Family"}, []string{"name"}},
		{"blank name", NewClient{Name: "   ", Age: 30, LegalIssue: "Family"}, []string{"name"}},
		{"zero age", NewClient{Name: "A", Age: 0, LegalIssue: "Family"}, []string{"age"}},
		{"negative age", NewClient{Name: "A", Age: -4, LegalIssue: "Family"}, []string{"age"}},
		{"age too large", NewClient{Name: "A", Age: MaxClientAge + 1, LegalIssue: "Family"}, []string{"age"}},
		{"blank legal issue", NewClient{Name: "A", Age: 30, LegalIssue: "\t"}, []string{"legal_issue"}},
		{"everything wrong", NewClient{}, []string{"name", "age", "legal_issue"}},
	}

	st := openCoreTestStore(t)
	ctx := context.Background()

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := st.AddClient(ctx, tt.input)
			if !errors.Is(err, ErrInvalidClient) {
				t.Fatalf("error: got %v, want ErrInvalidClient", err)
			}
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("error is not *ValidationError: %T", err)
			}
			if len(ve.Problems) != len(tt.fields) {
				t.Fatalf("problems: got %+v, want fields %v", ve.Problems, tt.fields)
			}
			for i, f := range tt.fields {
				if ve.Problems[i].Field != f {
					t.Errorf("problem %d field: got %q, want %q", i, ve.Problems[i].Field, f)
				}
			}
		})
	}

	n, err := st.CountClients(ctx)
	if err != nil {
		t.Fatalf("CountClients: %v", err)
	}
	if n != 0 {
		t.Errorf("invalid input was written: count %d", n)
	}
}

func TestAddClient_AgeBoundsAccepted(t *testing.T) {
	st := openCoreTestStore(t)
	ctx := context.Background()
	for _, age := range []int{MinClientAge, MaxClientAge} {
		if _, err := st.AddClient(ctx, NewClient{Name: "Edge", Age: age, LegalIssue: "Contracts"}); err != nil {
			t.Errorf("AddClient age %d: %v", age, err)
		}
	}
}

func seedAges(t *testing.T, st *Store, ages []int, issues []string) {
	t.Helper()
	for i, age := range ages {
		c := NewClient{
			Name:       "Client " + string(rune('A'+i)),
			Age:        age,
			LegalIssue: issues[i%len(issues)],
		}
		if _, err := st.AddClient(context.Background(), c); err != nil {
			t.Fatalf("AddClient: %v", err)
		}
	}
}

func TestListClients_AgeRange(t *testing.T) {
	st := openCoreTestStore(t)
	ages := []int{25, 28, 30, 33, 37, 40, 45, 50, 51, 55, 60, 65, 70}
	seedAges(t, st, ages, []string{"Family"})

	got, err := st.ListClients(context.Background(), ClientFilter{MinAge: intPtr(30), MaxAge: intPtr(50)})
	if err != nil {
		t.Fatalf("ListClients: %v", err)
	}

	var want []int
	for _, a := range ages {
		if a >= 30 && a <= 50 {
			want = append(want, a)
		}
	}
	if len(got) != len(want) {
		t.Fatalf("len: got %d, want %d", len(got), len(want))
	}
	for i, c := range got {
		if c.Age != want[i] {
			t.Errorf("client %d age: got %d, want %d", i, c.Age, want[i])
		}
	}
}

func TestListClients_Filters(t *testing.T) {
	st := openCoreTestStore(t)
	ctx := context.Background()
	if _, err := st.SeedSampleClients(ctx); err != nil {
		t.Fatalf("SeedSampleClients: %v", err)
	}

	tests := []struct {
		name   string
		filter ClientFilter
		want   []string
	}{
		{"name substring ignores case", ClientFilter{NameContains: "LEVI"}, []string{"David Levi"}},
		{"name substring middle", ClientFilter{NameContains: "av"}, []string{"David Levi", "Avi Dahan", "Lior Avrahami"}},
		{"issue exact", ClientFilter{LegalIssue: "family"}, []string{"Noa Cohen", "Rina Azulay", "Maya Segal"}},
		{"issue exact is not substring", ClientFilter{LegalIssue: "Fam"}, nil},
		{"issue substring", ClientFilter{LegalIssueContains: "inherit"}, []string{"Itamar Ben-Ari", "Daniel Kadosh"}},
		{"composed with AND", ClientFilter{LegalIssue: "Family", MinAge: intPtr(36)}, []string{"Rina Azulay", "Maya Segal"}},
		{"max only", ClientFilter{MaxAge: intPtr(29)}, []string{"Yael Mizrahi", "Eliad Shlomo"}},
		{"no match", ClientFilter{NameContains: "zzz"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := st.ListClients(ctx, tt.filter)
			if err != nil {
				t.Fatalf("ListClients: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("len: got %d (%+v), want %d", len(got), got, len(tt.want))
			}
			for i, c := range got {
				if c.Name != tt.want[i] {
					t.Errorf("client %d: got %q, want %q", i, c.Name, tt.want[i])
				}
			}
		})
	}
}

func TestGetClient(t *testing.T) {
	st := openCoreTestStore(t)
	ctx := context.Background()
	id, err := st.AddClient(ctx, NewClient{Name: "Maya Segal", Age: 41, LegalIssue: "Family"})
	if err != nil {
		t.Fatalf("AddClient: %v", err)
	}

	c, err := st.GetClient(ctx, id)
	if err != nil {
		t.Fatalf("GetClient: %v", err)
	}
	if c.Name != "Maya Segal" || c.Age != 41 {
		t.Errorf("GetClient: got %+v", c)
	}

	if _, err := st.GetClient(ctx, id+100); !errors.Is(err, ErrClientNotFound) {
		t.Errorf("GetClient missing: got %v, want ErrClientNotFound", err)
	}
}

func TestDeleteClient(t *testing.T) {
	st := openCoreTestStore(t)
	ctx := context.Background()
	id, _ := st.AddClient(ctx, NewClient{Name: "A", Age: 30, LegalIssue: "Family"})
	_, _ = st.AddClient(ctx, NewClient{Name: "B", Age: 31, LegalIssue: "Family"})

	if err := st.DeleteClient(ctx, id+50); !errors.Is(err, ErrClientNotFound) {
		t.Fatalf("DeleteClient missing: got %v, want ErrClientNotFound", err)
	}
	if n, _ := st.CountClients(ctx); n != 2 {
		t.Errorf("count after missing delete: got %d, want 2", n)
	}

	if err := st.DeleteClient(ctx, id); err != nil {
		t.Fatalf("DeleteClient: %v", err)
	}
	if _, err := st.GetClient(ctx, id); !errors.Is(err, ErrClientNotFound) {
		t.Errorf("deleted client still readable: %v", err)
	}
	if err := st.DeleteClient(ctx, id); !errors.Is(err, ErrClientNotFound) {
		t.Errorf("second delete: got %v, want ErrClientNotFound", err)
	}
}

func TestSeedSampleClients(t *testing.T) {
	st := openCoreTestStore(t)
	ctx := context.Background()

	n, err := st.SeedSampleClients(ctx)
	if err != nil {
		t.Fatalf("SeedSampleClients: %v", err)
	}
	if n != len(SampleClients) {
		t.Errorf("inserted: got %d, want %d", n, len(SampleClients))
	}

	n, err = st.SeedSampleClients(ctx)
	if err != nil {
		t.Fatalf("second SeedSampleClients: %v", err)
	}
	if n != 0 {
		t.Errorf("second seed inserted %d rows", n)
	}

	issues, err := st.LegalIssues(ctx)
	if err != nil {
		t.Fatalf("LegalIssues: %v", err)
	}
	want := []string{"Contracts", "Criminal", "Family", "Real Estate", "Wills and Inheritance"}
	if len(issues) != len(want) {
		t.Fatalf("LegalIssues: got %v, want %v", issues, want)
	}
	for i := range want {
		if issues[i] != want[i] {
			t.Errorf("issue %d: got %q, want %q", i, issues[i], want[i])
		}
	}
}

// ---------------------------------------------------------------------------
// Request log
// ---------------------------------------------------------------------------

func TestInsertRequest_ListAndStats(t *testing.T) {
	st := openCoreTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	logs := []RequestLog{
		{ID: "r1", Timestamp: now.Add(-3 * time.Minute).Format(time.RFC3339), Model: "sonnet", Source: SourceLive, Attempts: 2, TokensIn: 100, LatencyMs: 300, CostUSD: 0.01},
		{ID: "r2", Timestamp: now.Add(-2 * time.Minute).Format(time.RFC3339), Model: "sonnet", Source: SourceCache, TokensIn: 100},
		{ID: "r3", Timestamp: now.Add(-1 * time.Minute).Format(time.RFC3339), Model: "sonnet", Source: SourceFallback, Attempts: 12, ErrorMessage: "all models unavailable"},
		{ID: "r4", Timestamp: now.Format(time.RFC3339), Source: SourceThrottled},
	}
	for i := range logs {
		if err := st.InsertRequest(ctx, &logs[i]); err != nil {
			t.Fatalf("InsertRequest %s: %v", logs[i].ID, err)
		}
	}

	page, err := st.ListRequests(ctx, 2, 0)
	if err != nil {
		t.Fatalf("ListRequests: %v", err)
	}
	if len(page) != 2 {
		t.Fatalf("page len: got %d, want 2", len(page))
	}
	if page[0].ID != "r4" || page[1].ID != "r3" {
		t.Errorf("order: got %s, %s; want r4, r3", page[0].ID, page[1].ID)
	}
	if page[1].ErrorMessage != "all models unavailable" {
		t.Errorf("ErrorMessage: got %q", page[1].ErrorMessage)
	}

	stats, err := st.GetRequestStats(ctx, now.Add(-time.Hour))
	if err != nil {
		t.Fatalf("GetRequestStats: %v", err)
	}
	if stats.TotalRequests != 4 {
		t.Errorf("TotalRequests: got %d, want 4", stats.TotalRequests)
	}
	if stats.Live != 1 || stats.CacheHits != 1 || stats.Fallbacks != 1 || stats.Throttled != 1 {
		t.Errorf("source counts: got %+v", stats)
	}
	if stats.TotalTokensIn != 200 {
		t.Errorf("TotalTokensIn: got %d, want 200", stats.TotalTokensIn)
	}
	if stats.AvgLiveLatency != 300 {
		t.Errorf("AvgLiveLatency: got %v, want 300", stats.AvgLiveLatency)
	}
}

func TestPrune(t *testing.T) {
	st := openCoreTestStore(t)
	ctx := context.Background()
	old := time.Now().UTC().AddDate(0, 0, -60).Format(time.RFC3339)
	recent := time.Now().UTC().Format(time.RFC3339)

	_ = st.InsertRequest(ctx, &RequestLog{ID: "old", Timestamp: old, Source: SourceLive})
	_ = st.InsertRequest(ctx, &RequestLog{ID: "new", Timestamp: recent, Source: SourceLive})
	_, _ = st.AddClient(ctx, NewClient{Name: "Kept", Age: 40, LegalIssue: "Family"})

	n, err := st.Prune(30)
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if n != 1 {
		t.Errorf("pruned: got %d, want 1", n)
	}
	if c, _ := st.CountClients(ctx); c != 1 {
		t.Errorf("clients after prune: got %d, want 1", c)
	}
}
