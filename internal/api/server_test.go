package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"

	"github.com/allaspectsdev/legalsmart/internal/assistant"
	"github.com/allaspectsdev/legalsmart/internal/llm"
	"github.com/allaspectsdev/legalsmart/internal/metrics"
	"github.com/allaspectsdev/legalsmart/internal/store"
	"github.com/allaspectsdev/legalsmart/internal/testutil"
)

type testServer struct {
	srv    *Server
	store  *store.Store
	caller *testutil.FakeCaller
}

func setupServer(t *testing.T, mutate func(*assistant.Options)) *testServer {
	t.Helper()

	st := testutil.NewSeededStore(t, testutil.ThirteenClients())
	caller := testutil.NewFakeCaller()
	sleeps := &testutil.Sleeps{}
	collector := metrics.NewCollector()

	opts := assistant.DefaultOptions()
	if mutate != nil {
		mutate(&opts)
	}
	reg, err := assistant.NewRegistry(8, opts, assistant.Deps{
		Caller:   caller,
		Clients:  st,
		Requests: st,
		Metrics:  collector,
		Logger:   zerolog.Nop(),
		Sleep:    sleeps.Sleep,
	})
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	srv := NewServer(Deps{
		Store:     st,
		Sessions:  reg,
		Collector: collector,
		Breakers:  llm.NewBreakerRegistry(5, time.Minute, 1),
		Logger:    zerolog.Nop(),
		Now:       func() time.Time { return time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC) },
	}, Options{Addr: ":0"})
	return &testServer{srv: srv, store: st, caller: caller}
}

func (ts *testServer) do(t *testing.T, method, path, session string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encoding body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if session != "" {
		req.Header.Set(SessionHeader, session)
	}
	w := httptest.NewRecorder()
	ts.srv.Router().ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("json.Unmarshal: %v (body %q)", err, w.Body.String())
	}
}

// ---------------------------------------------------------------------------
// Health and metrics
// ---------------------------------------------------------------------------

func TestHealth(t *testing.T) {
	ts := setupServer(t, nil)
	w := ts.do(t, "GET", "/health", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d", w.Code, http.StatusOK)
	}
	var body map[string]interface{}
	decode(t, w, &body)
	if body["status"] != "ok" {
		t.Errorf("status: got %v, want ok", body["status"])
	}
	if body["ai_enabled"] != true {
		t.Errorf("ai_enabled: got %v, want true", body["ai_enabled"])
	}
}

func TestMetricsEndpoint(t *testing.T) {
	ts := setupServer(t, nil)
	ts.do(t, "GET", "/api/stats", "", nil)

	w := ts.do(t, "GET", "/metrics", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d", w.Code, http.StatusOK)
	}
	for _, name := range []string{"legalsmart_sessions 1", "legalsmart_throttled_total"} {
		if !strings.Contains(w.Body.String(), name) {
			t.Errorf("metrics output missing %q", name)
		}
	}
}

// ---------------------------------------------------------------------------
// Clients
// ---------------------------------------------------------------------------

type clientList struct {
	Clients []store.Client `json:"clients"`
	Count   int            `json:"count"`
}

func TestListClients_AgeFilter(t *testing.T) {
	ts := setupServer(t, nil)
	w := ts.do(t, "GET", "/api/clients?min_age=30&max_age=50", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d", w.Code, http.StatusOK)
	}
	var got clientList
	decode(t, w, &got)
	if got.Count != 6 || len(got.Clients) != 6 {
		t.Fatalf("count: got %d (%d rows), want 6", got.Count, len(got.Clients))
	}
	for _, c := range got.Clients {
		if c.Age < 30 || c.Age > 50 {
			t.Errorf("client %d age %d outside [30, 50]", c.ID, c.Age)
		}
	}
}

func TestListClients_IssueFilter(t *testing.T) {
	ts := setupServer(t, nil)
	w := ts.do(t, "GET", "/api/clients?legal_issue=family+law", "", nil)
	var got clientList
	decode(t, w, &got)
	if got.Count != 4 {
		t.Errorf("count: got %d, want 4", got.Count)
	}
}

func TestListClients_BadAge(t *testing.T) {
	ts := setupServer(t, nil)
	w := ts.do(t, "GET", "/api/clients?min_age=thirty", "", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestAddClient(t *testing.T) {
	ts := setupServer(t, nil)
	w := ts.do(t, "POST", "/api/clients", "", store.NewClient{
		Name: "  Dana Levi ", Age: 41, LegalIssue: "Labor Law",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("status: got %d, want %d (body %s)", w.Code, http.StatusCreated, w.Body.String())
	}
	var c store.Client
	decode(t, w, &c)
	if c.ID == 0 || c.Name != "Dana Levi" || c.Age != 41 {
		t.Errorf("created client: got %+v", c)
	}
	if loc := w.Header().Get("Location"); !strings.HasSuffix(loc, "/api/clients/14") {
		t.Errorf("Location: got %q", loc)
	}

	w = ts.do(t, "GET", "/api/clients/14", "", nil)
	if w.Code != http.StatusOK {
		t.Errorf("get created client: got %d, want %d", w.Code, http.StatusOK)
	}
}

func TestAddClient_Invalid(t *testing.T) {
	ts := setupServer(t, nil)
	w := ts.do(t, "POST", "/api/clients", "", store.NewClient{Name: " ", Age: 0, LegalIssue: ""})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want %d", w.Code, http.StatusBadRequest)
	}
	var body struct {
		Problems []map[string]string `json:"problems"`
	}
	decode(t, w, &body)
	if len(body.Problems) != 3 {
		t.Errorf("problems: got %d, want 3 (%v)", len(body.Problems), body.Problems)
	}

	n, err := ts.store.CountClients(t.Context())
	if err != nil {
		t.Fatalf("CountClients: %v", err)
	}
	if n != 13 {
		t.Errorf("clients after rejected add: got %d, want 13", n)
	}
}

func TestAddClient_UnknownField(t *testing.T) {
	ts := setupServer(t, nil)
	w := ts.do(t, "POST", "/api/clients", "", map[string]interface{}{"name": "A", "age": 30, "legal_issue": "X", "email": "a@b"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestDeleteClient(t *testing.T) {
	ts := setupServer(t, nil)
	if w := ts.do(t, "DELETE", "/api/clients/1", "", nil); w.Code != http.StatusNoContent {
		t.Fatalf("delete: got %d, want %d", w.Code, http.StatusNoContent)
	}
	if w := ts.do(t, "DELETE", "/api/clients/1", "", nil); w.Code != http.StatusNotFound {
		t.Errorf("second delete: got %d, want %d", w.Code, http.StatusNotFound)
	}
	if w := ts.do(t, "GET", "/api/clients/1", "", nil); w.Code != http.StatusNotFound {
		t.Errorf("get deleted: got %d, want %d", w.Code, http.StatusNotFound)
	}
	if w := ts.do(t, "DELETE", "/api/clients/abc", "", nil); w.Code != http.StatusBadRequest {
		t.Errorf("bad id: got %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestLegalIssues(t *testing.T) {
	ts := setupServer(t, nil)
	w := ts.do(t, "GET", "/api/legal-issues", "", nil)
	var body struct {
		LegalIssues []string `json:"legal_issues"`
	}
	decode(t, w, &body)
	if len(body.LegalIssues) != 4 {
		t.Errorf("legal issues: got %v, want 4 entries", body.LegalIssues)
	}
}

// ---------------------------------------------------------------------------
// Export
// ---------------------------------------------------------------------------

func TestExportCSV(t *testing.T) {
	ts := setupServer(t, nil)
	w := ts.do(t, "GET", "/api/clients/export.csv?max_age=28", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d", w.Code, http.StatusOK)
	}
	want := `attachment; filename="legal_clients_20250301_093000.csv"`
	if got := w.Header().Get("Content-Disposition"); got != want {
		t.Errorf("Content-Disposition: got %q, want %q", got, want)
	}
	lines := strings.Split(strings.TrimSpace(w.Body.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("csv lines: got %d, want 3 (%q)", len(lines), w.Body.String())
	}
	if lines[0] != "id,name,age,legal_issue" {
		t.Errorf("header: got %q", lines[0])
	}
}

func TestExportXLSX(t *testing.T) {
	ts := setupServer(t, nil)
	w := ts.do(t, "GET", "/api/clients/export.xlsx", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d", w.Code, http.StatusOK)
	}
	f, err := excelize.OpenReader(w.Body)
	if err != nil {
		t.Fatalf("excelize.OpenReader: %v", err)
	}
	defer f.Close()
	rows, err := f.GetRows("Clients")
	if err != nil {
		t.Fatalf("GetRows: %v", err)
	}
	if len(rows) != 14 {
		t.Errorf("rows: got %d, want 14", len(rows))
	}
}

// ---------------------------------------------------------------------------
// Assistant
// ---------------------------------------------------------------------------

func TestAsk_CacheThenThrottle(t *testing.T) {
	ts := setupServer(t, func(o *assistant.Options) { o.RequestsPerMinute = 2 })
	ts.caller.Script(llm.ModelSonnet, llm.Success("Most clients are in family law."))
	q := map[string]string{"question": "Which area is busiest?"}

	w := ts.do(t, "POST", "/api/assistant/ask", "", q)
	if w.Code != http.StatusOK {
		t.Fatalf("first ask: got %d, want %d (body %s)", w.Code, http.StatusOK, w.Body.String())
	}
	session := w.Header().Get(SessionHeader)
	if session == "" {
		t.Fatal("no session id issued")
	}
	var first assistant.Answer
	decode(t, w, &first)
	if first.Source != assistant.SourceLive {
		t.Errorf("first source: got %q, want %q", first.Source, assistant.SourceLive)
	}

	w = ts.do(t, "POST", "/api/assistant/ask", session, q)
	var second assistant.Answer
	decode(t, w, &second)
	if second.Source != assistant.SourceCache || second.Text != first.Text {
		t.Errorf("second answer: got source %q text %q", second.Source, second.Text)
	}
	if got := w.Header().Get(SessionHeader); got != session {
		t.Errorf("session header: got %q, want %q", got, session)
	}

	w = ts.do(t, "POST", "/api/assistant/ask", session, q)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("third ask: got %d, want %d", w.Code, http.StatusTooManyRequests)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Error("Retry-After header missing")
	}
	if n := ts.caller.CallCount(); n != 1 {
		t.Errorf("model calls: got %d, want 1", n)
	}
}

func TestAsk_SessionsAreIsolated(t *testing.T) {
	ts := setupServer(t, func(o *assistant.Options) { o.RequestsPerMinute = 1 })
	ts.caller.Script(llm.ModelSonnet, llm.Success("ok"))
	q := map[string]string{"question": "How many clients?"}

	if w := ts.do(t, "POST", "/api/assistant/ask", "", q); w.Code != http.StatusOK {
		t.Fatalf("session A: got %d, want %d", w.Code, http.StatusOK)
	}
	if w := ts.do(t, "POST", "/api/assistant/ask", "", q); w.Code != http.StatusOK {
		t.Errorf("session B: got %d, want %d", w.Code, http.StatusOK)
	}
}

func TestAsk_BlankQuestion(t *testing.T) {
	ts := setupServer(t, nil)
	w := ts.do(t, "POST", "/api/assistant/ask", "", map[string]string{"question": "   "})
	if w.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want %d", w.Code, http.StatusBadRequest)
	}
	if ts.caller.CallCount() != 0 {
		t.Errorf("model calls: got %d, want 0", ts.caller.CallCount())
	}
}

func TestAsk_UnknownModel(t *testing.T) {
	ts := setupServer(t, nil)
	w := ts.do(t, "POST", "/api/assistant/ask", "", map[string]string{"question": "hi", "model": "gpt"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestAnalyze_FallsBackToSummary(t *testing.T) {
	ts := setupServer(t, nil)
	ts.caller.Default = llm.Fatal("invalid api key")

	w := ts.do(t, "POST", "/api/assistant/analyze", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d", w.Code, http.StatusOK)
	}
	var ans assistant.Answer
	decode(t, w, &ans)
	if ans.Source != assistant.SourceFallback {
		t.Errorf("source: got %q, want %q", ans.Source, assistant.SourceFallback)
	}
	if !strings.Contains(ans.Text, "13") {
		t.Errorf("fallback text should mention the client count: %q", ans.Text)
	}
	if got := len(ts.caller.ModelsCalled()); got != len(llm.Models()) {
		t.Errorf("models tried: got %d, want %d", got, len(llm.Models()))
	}
}

func TestAnalyze_ChunkedEmptyBody(t *testing.T) {
	ts := setupServer(t, nil)

	// A body of unknown length, as sent with Transfer-Encoding: chunked.
	req := httptest.NewRequest("POST", "/api/assistant/analyze", struct{ io.Reader }{strings.NewReader("")})
	if req.ContentLength != -1 {
		t.Fatalf("ContentLength: got %d, want -1", req.ContentLength)
	}
	w := httptest.NewRecorder()
	ts.srv.Router().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d (body %q)", w.Code, http.StatusOK, w.Body.String())
	}
}

func TestSummary(t *testing.T) {
	ts := setupServer(t, nil)
	w := ts.do(t, "GET", "/api/assistant/summary", "", nil)
	var body struct {
		Summary assistant.Summary `json:"summary"`
		Text    string            `json:"text"`
	}
	decode(t, w, &body)
	if body.Summary.TotalClients != 13 {
		t.Errorf("TotalClients: got %d, want 13", body.Summary.TotalClients)
	}
	if body.Text == "" {
		t.Error("summary text is empty")
	}
	if ts.caller.CallCount() != 0 {
		t.Errorf("model calls: got %d, want 0", ts.caller.CallCount())
	}
}

func TestStatsAndClearCache(t *testing.T) {
	ts := setupServer(t, nil)
	ts.caller.Script(llm.ModelSonnet, llm.Success("answer"))
	w := ts.do(t, "POST", "/api/assistant/ask", "", map[string]string{"question": "q"})
	session := w.Header().Get(SessionHeader)

	w = ts.do(t, "GET", "/api/stats", session, nil)
	var stats struct {
		Session      assistant.SessionStats `json:"session"`
		Assistant    metrics.Stats          `json:"assistant"`
		TotalClients int                    `json:"total_clients"`
	}
	decode(t, w, &stats)
	if stats.Session.Cache.Entries != 1 {
		t.Errorf("cache entries: got %d, want 1", stats.Session.Cache.Entries)
	}
	if stats.Session.RecentRequests != 1 {
		t.Errorf("recent requests: got %d, want 1", stats.Session.RecentRequests)
	}
	if stats.Assistant.LiveAnswers != 1 {
		t.Errorf("live answers: got %d, want 1", stats.Assistant.LiveAnswers)
	}
	if stats.TotalClients != 13 {
		t.Errorf("total clients: got %d, want 13", stats.TotalClients)
	}

	ts.do(t, "POST", "/api/cache/clear", session, nil)
	w = ts.do(t, "GET", "/api/stats", session, nil)
	decode(t, w, &stats)
	if stats.Session.Cache.Entries != 0 {
		t.Errorf("cache entries after clear: got %d, want 0", stats.Session.Cache.Entries)
	}
}

func TestModels(t *testing.T) {
	ts := setupServer(t, nil)
	w := ts.do(t, "GET", "/api/models", "", nil)
	var body struct {
		Models []modelView `json:"models"`
	}
	decode(t, w, &body)
	if len(body.Models) != 4 {
		t.Fatalf("models: got %d, want 4", len(body.Models))
	}
	if body.Models[0].Key != "opus" || !body.Models[1].Default {
		t.Errorf("models: got %+v", body.Models)
	}
	if body.Models[0].Breaker != "closed" {
		t.Errorf("breaker: got %q, want closed", body.Models[0].Breaker)
	}
}

func TestListRequests(t *testing.T) {
	ts := setupServer(t, nil)
	ts.caller.Script(llm.ModelSonnet, llm.Success("answer"))
	ts.do(t, "POST", "/api/assistant/ask", "", map[string]string{"question": "q"})

	w := ts.do(t, "GET", "/api/requests?limit=10", "", nil)
	var body struct {
		Requests []store.RequestLog `json:"requests"`
		Limit    int                `json:"limit"`
	}
	decode(t, w, &body)
	if len(body.Requests) != 1 {
		t.Fatalf("requests: got %d, want 1", len(body.Requests))
	}
	if body.Requests[0].Source != store.SourceLive || body.Requests[0].Kind != assistant.KindQuestion {
		t.Errorf("request: got %+v", body.Requests[0])
	}
	if body.Limit != 10 {
		t.Errorf("limit: got %d, want 10", body.Limit)
	}
}
