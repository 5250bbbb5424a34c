package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"teamapp/internal/auth"
	"teamapp/internal/commission"
	"teamapp/internal/core"
	"teamapp/internal/recurrence"
	"teamapp/internal/services"
	"teamapp/internal/storage"
)

const (
	masterKey  = "master-key-0001"
	partnerKey = "partner-key-0002"
)

var epoch = time.Date(2025, 1, 15, 9, 0, 0, 0, time.UTC)

func testKeys() []auth.Key {
	return []auth.Key{
		{
			ID: 1, Secret: masterKey, Name: "Master key", Active: true,
			AllowedUsers: []string{"antoi"},
			Permissions:  auth.Permissions{Admin: true, Read: true, Write: true, Delete: true},
		},
		{
			ID: 2, Secret: partnerKey, Name: "Partner", Active: true,
			AllowedUsers: []string{"antoi", "miinéki"},
			Permissions:  auth.Permissions{Read: true, Write: true},
		},
	}
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	store, err := storage.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })

	clock := func() time.Time { return epoch }
	c := services.NewCollections(store)
	c.SetClock(clock)
	commissions := services.NewCommissionService(c.Commissions)
	commissions.SetClock(clock)
	expenses := services.NewExpenseService(c.Expenses, recurrence.NewEngine(recurrence.Fixed(epoch)), nil)
	summary := services.NewSummaryService(c, expenses)
	summary.SetClock(clock)

	srv := NewServer(":0", Deps{
		Auth:        auth.NewService(testKeys(), auth.Config{}),
		Agents:      services.NewAgentService(c.Agents),
		Commissions: commissions,
		Expenses:    expenses,
		Summary:     summary,
		Store:       store,
	}, Options{RateLimitPerMinute: 1000})
	t.Cleanup(func() { srv.Shutdown(context.Background()) })
	return srv
}

type request struct {
	method string
	path   string
	body   any
	key    string
	cookie *http.Cookie
	remote string
}

func do(t *testing.T, srv *Server, req request) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	if req.body != nil {
		if s, ok := req.body.(string); ok {
			body.WriteString(s)
		} else if err := json.NewEncoder(&body).Encode(req.body); err != nil {
			t.Fatal(err)
		}
	}
	r := httptest.NewRequest(req.method, req.path, &body)
	r.Header.Set("Content-Type", "application/json")
	if req.key != "" {
		r.Header.Set("Authorization", "Bearer "+req.key)
	}
	if req.cookie != nil {
		r.AddCookie(req.cookie)
	}
	r.RemoteAddr = "192.0.2.10:5000"
	if req.remote != "" {
		r.RemoteAddr = req.remote
	}
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, r)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func expectStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("status = %d, want %d (body %s)", rec.Code, want, rec.Body.String())
	}
}

func TestHealthAndReady(t *testing.T) {
	srv := newTestServer(t)

	for _, path := range []string{"/healthz", "/readyz"} {
		rec := do(t, srv, request{method: http.MethodGet, path: path})
		expectStatus(t, rec, http.StatusOK)
		if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
			t.Errorf("%s: security headers missing", path)
		}
		if rec.Header().Get("X-Request-ID") == "" {
			t.Errorf("%s: request id missing", path)
		}
	}

	bare := NewServer(":0", Deps{Auth: auth.NewService(nil, auth.Config{})}, Options{})
	defer bare.Shutdown(context.Background())
	rec := do(t, bare, request{method: http.MethodGet, path: "/readyz"})
	expectStatus(t, rec, http.StatusServiceUnavailable)
}

func TestAuthRequired(t *testing.T) {
	srv := newTestServer(t)

	tests := []struct {
		name string
		key  string
		want int
	}{
		{"no credentials", "", http.StatusUnauthorized},
		{"unknown key", "not-a-real-key", http.StatusUnauthorized},
		{"valid key", partnerKey, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, srv, request{method: http.MethodGet, path: "/api/summary", key: tt.key})
			expectStatus(t, rec, tt.want)
		})
	}

	rec := do(t, srv, request{method: http.MethodGet, path: "/api/nothing-here", key: partnerKey})
	expectStatus(t, rec, http.StatusNotFound)
}

func TestLoginSessionLifecycle(t *testing.T) {
	srv := newTestServer(t)

	rec := do(t, srv, request{method: http.MethodPost, path: "/api/auth/login", body: map[string]any{"key": "short"}})
	expectStatus(t, rec, http.StatusBadRequest)

	rec = do(t, srv, request{method: http.MethodPost, path: "/api/auth/login", body: map[string]any{"key": "wrong-key-value"}})
	expectStatus(t, rec, http.StatusUnauthorized)

	rec = do(t, srv, request{method: http.MethodPost, path: "/api/auth/login", body: `{"key":`})
	expectStatus(t, rec, http.StatusBadRequest)

	rec = do(t, srv, request{
		method: http.MethodPost,
		path:   "/api/auth/login",
		body:   map[string]any{"key": partnerKey, "rememberMe": true},
	})
	expectStatus(t, rec, http.StatusOK)

	type loginResponse struct {
		Success bool `json:"success"`
		User    struct {
			Username    string           `json:"username"`
			Permissions auth.Permissions `json:"permissions"`
			SessionID   string           `json:"sessionId"`
		} `json:"user"`
	}
	got := decode[loginResponse](t, rec)
	if !got.Success || got.User.Username != "miinéki" || !got.User.Permissions.Write {
		t.Errorf("login response = %+v", got)
	}
	if len(got.User.SessionID) != 64 {
		t.Errorf("sessionId = %q, want 64 hex chars", got.User.SessionID)
	}

	var cookie *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == auth.SessionCookieName {
			cookie = c
		}
	}
	if cookie == nil || cookie.Value != got.User.SessionID || !cookie.HttpOnly {
		t.Fatalf("session cookie = %+v", cookie)
	}

	rec = do(t, srv, request{method: http.MethodGet, path: "/api/auth/verify", cookie: cookie})
	expectStatus(t, rec, http.StatusOK)
	rec = do(t, srv, request{method: http.MethodGet, path: "/api/summary", cookie: cookie})
	expectStatus(t, rec, http.StatusOK)

	rec = do(t, srv, request{method: http.MethodPost, path: "/api/auth/logout", cookie: cookie})
	expectStatus(t, rec, http.StatusOK)
	cleared := rec.Result().Cookies()
	if len(cleared) != 1 || cleared[0].MaxAge >= 0 {
		t.Errorf("logout cookies = %+v, want an expired session cookie", cleared)
	}

	rec = do(t, srv, request{method: http.MethodGet, path: "/api/auth/verify", cookie: cookie})
	expectStatus(t, rec, http.StatusUnauthorized)
}

func TestLoginLockout(t *testing.T) {
	srv := newTestServer(t)
	bad := request{method: http.MethodPost, path: "/api/auth/login", body: map[string]any{"key": "wrong-key-value"}, remote: "198.51.100.4:1"}

	for i := 0; i < 5; i++ {
		expectStatus(t, do(t, srv, bad), http.StatusUnauthorized)
	}
	expectStatus(t, do(t, srv, bad), http.StatusTooManyRequests)

	good := request{method: http.MethodPost, path: "/api/auth/login", body: map[string]any{"key": masterKey}, remote: "198.51.100.4:1"}
	expectStatus(t, do(t, srv, good), http.StatusTooManyRequests)

	good.remote = "198.51.100.5:1"
	expectStatus(t, do(t, srv, good), http.StatusOK)
}

func TestKeyAdministration(t *testing.T) {
	srv := newTestServer(t)

	rec := do(t, srv, request{method: http.MethodGet, path: "/api/auth/keys", key: partnerKey})
	expectStatus(t, rec, http.StatusForbidden)

	rec = do(t, srv, request{method: http.MethodGet, path: "/api/auth/keys", key: masterKey})
	expectStatus(t, rec, http.StatusOK)
	if strings.Contains(rec.Body.String(), masterKey) {
		t.Error("key listing leaked a secret")
	}
	listing := decode[struct {
		Keys      []auth.KeyInfo `json:"keys"`
		TotalKeys int            `json:"totalKeys"`
	}](t, rec)
	if listing.TotalKeys != 2 || len(listing.Keys) != 2 {
		t.Errorf("listing = %+v", listing)
	}

	rec = do(t, srv, request{
		method: http.MethodPost,
		path:   "/api/auth/keys/generate",
		key:    masterKey,
		body:   map[string]any{"name": "Guest", "allowedUsers": []string{"guest"}},
	})
	expectStatus(t, rec, http.StatusCreated)
	gen := decode[struct {
		Key auth.GeneratedKey `json:"key"`
	}](t, rec)
	if gen.Key.ID != 3 || gen.Key.EnvVariables["AUTH_KEY_3"] != gen.Key.Key {
		t.Errorf("generated = %+v", gen.Key)
	}

	rec = do(t, srv, request{method: http.MethodPost, path: "/api/auth/keys/generate", key: masterKey, body: map[string]any{"name": ""}})
	expectStatus(t, rec, http.StatusBadRequest)

	rec = do(t, srv, request{method: http.MethodPut, path: "/api/auth/keys/1/toggle", key: masterKey})
	expectStatus(t, rec, http.StatusNotImplemented)
	rec = do(t, srv, request{method: http.MethodPut, path: "/api/auth/keys/abc/toggle", key: masterKey})
	expectStatus(t, rec, http.StatusBadRequest)
}

func TestAgentsAPI(t *testing.T) {
	srv := newTestServer(t)
	post := func(body any) *httptest.ResponseRecorder {
		return do(t, srv, request{method: http.MethodPost, path: "/api/agents", key: partnerKey, body: body})
	}

	expectStatus(t, post(map[string]any{"pseudo": " "}), http.StatusBadRequest)

	rec := post(map[string]any{"pseudo": "Nova", "roles": []string{"dev"}})
	expectStatus(t, rec, http.StatusCreated)
	nova := decode[core.Agent](t, rec)
	expectStatus(t, post(map[string]any{"pseudo": "Guest", "inTeam": false}), http.StatusCreated)

	tests := []struct {
		query string
		code  int
		count int
	}{
		{"", http.StatusOK, 2},
		{"?active=true", http.StatusOK, 1},
		{"?inTeam=false", http.StatusOK, 1},
		{"?active=maybe", http.StatusBadRequest, 0},
	}
	for _, tt := range tests {
		t.Run("list"+tt.query, func(t *testing.T) {
			rec := do(t, srv, request{method: http.MethodGet, path: "/api/agents" + tt.query, key: partnerKey})
			expectStatus(t, rec, tt.code)
			if tt.code == http.StatusOK {
				if got := decode[[]core.Agent](t, rec); len(got) != tt.count {
					t.Errorf("got %d agents, want %d", len(got), tt.count)
				}
			}
		})
	}

	rec = do(t, srv, request{method: http.MethodGet, path: "/api/agents/list", key: partnerKey})
	expectStatus(t, rec, http.StatusOK)
	if refs := decode[[]services.AgentRef](t, rec); len(refs) != 1 || refs[0].Pseudo != "Nova" {
		t.Errorf("refs = %+v", refs)
	}

	rec = do(t, srv, request{method: http.MethodPut, path: "/api/agents/1", key: partnerKey, body: map[string]any{"pseudo": "Nova", "discord": "nova#1"}})
	expectStatus(t, rec, http.StatusOK)
	if got := decode[core.Agent](t, rec); got.Discord != "nova#1" || got.ID != nova.ID {
		t.Errorf("updated = %+v", got)
	}

	expectStatus(t, do(t, srv, request{method: http.MethodGet, path: "/api/agents/42", key: partnerKey}), http.StatusNotFound)
	expectStatus(t, do(t, srv, request{method: http.MethodDelete, path: "/api/agents/1", key: partnerKey}), http.StatusOK)
	expectStatus(t, do(t, srv, request{method: http.MethodGet, path: "/api/agents/1", key: partnerKey}), http.StatusNotFound)
}

func TestCommissionLedgerAPI(t *testing.T) {
	srv := newTestServer(t)
	call := func(method, path string, body any) *httptest.ResponseRecorder {
		return do(t, srv, request{method: method, path: path, key: masterKey, body: body})
	}

	rec := call(http.MethodPost, "/api/commissions", map[string]any{"client": "Studio Nord", "project": "", "price": 1000})
	expectStatus(t, rec, http.StatusBadRequest)

	rec = call(http.MethodPost, "/api/commissions", map[string]any{
		"client":   "Studio Nord",
		"project":  "Website",
		"price":    1000,
		"deadline": "2025-01-01",
		"status":   "en_cours",
		"participants": []map[string]any{
			{"agentId": 1, "pseudo": "antoi", "percentage": 60, "taxRate": 20},
			{"agentId": 2, "pseudo": "miinéki", "percentage": 40},
		},
	})
	expectStatus(t, rec, http.StatusCreated)
	c := decode[core.Commission](t, rec)
	if c.Status != core.InProgress {
		t.Errorf("status = %s, want in_progress", c.Status)
	}

	rec = call(http.MethodPost, "/api/commissions/1/deposit/payments", map[string]any{"amount": 200, "paidAt": "2025-01-02"})
	expectStatus(t, rec, http.StatusCreated)

	rec = call(http.MethodPost, "/api/commissions/1/settlements", map[string]any{"amount": "900"})
	expectStatus(t, rec, http.StatusBadRequest)
	over := decode[struct {
		Error     string     `json:"error"`
		Remaining core.Money `json:"remaining"`
	}](t, rec)
	if over.Remaining.String() != "800.00" || !strings.Contains(over.Error, "800") {
		t.Errorf("overpayment body = %+v", over)
	}

	rec = call(http.MethodPost, "/api/commissions/1/settlements", map[string]any{"amount": 800, "method": "transfer"})
	expectStatus(t, rec, http.StatusCreated)
	ledger := decode[services.LedgerResult](t, rec)
	if ledger.Summary.Status != commission.FullyPaid || ledger.Commission.Status != core.Completed {
		t.Errorf("ledger = %+v", ledger.Summary)
	}

	rec = call(http.MethodGet, "/api/commissions/1/finances", nil)
	expectStatus(t, rec, http.StatusOK)
	fin := decode[services.Finances](t, rec)
	if len(fin.Payouts) != 2 || fin.Payouts[0].Net.String() != "480.00" {
		t.Errorf("payouts = %+v", fin.Payouts)
	}

	expectStatus(t, call(http.MethodDelete, "/api/commissions/1/settlements/5", nil), http.StatusNotFound)
	expectStatus(t, call(http.MethodDelete, "/api/commissions/1/settlements/x", nil), http.StatusBadRequest)
	rec = call(http.MethodDelete, "/api/commissions/1/settlements/0", nil)
	expectStatus(t, rec, http.StatusOK)
	if got := decode[services.LedgerResult](t, rec); got.Commission.Status != core.InProgress {
		t.Errorf("status after removal = %s", got.Commission.Status)
	}

	rec = call(http.MethodGet, "/api/commissions/1/suggestions", nil)
	expectStatus(t, rec, http.StatusOK)
	if got := decode[[]commission.Suggestion](t, rec); len(got) == 0 || got[0].Status != core.Overdue {
		t.Errorf("suggestions = %+v", got)
	}

	expectStatus(t, call(http.MethodPut, "/api/commissions/1/status", map[string]any{"status": "done"}), http.StatusBadRequest)
	rec = call(http.MethodPut, "/api/commissions/1/status", map[string]any{"status": "en_retard"})
	expectStatus(t, rec, http.StatusOK)

	rec = call(http.MethodPost, "/api/commissions/1/comments", map[string]any{"text": "Client called"})
	expectStatus(t, rec, http.StatusCreated)
	if got := decode[core.Commission](t, rec); len(got.Comments) != 1 || got.Comments[0].Author != "antoi" {
		t.Errorf("comments = %+v", got.Comments)
	}

	expectStatus(t, call(http.MethodDelete, "/api/commissions/1", nil), http.StatusOK)
	expectStatus(t, call(http.MethodGet, "/api/commissions/1", nil), http.StatusNotFound)
}

func TestExpensesAPI(t *testing.T) {
	srv := newTestServer(t)
	call := func(method, path string, body any) *httptest.ResponseRecorder {
		return do(t, srv, request{method: method, path: path, key: partnerKey, body: body})
	}

	rec := call(http.MethodPost, "/api/templates", map[string]any{
		"label": "Hosting", "amount": 49.99, "category": "infra", "frequency": "mensuel", "nextDueAt": "2025-01-01",
	})
	expectStatus(t, rec, http.StatusCreated)
	tmpl := decode[core.Template](t, rec)
	expectStatus(t, call(http.MethodPost, "/api/templates", map[string]any{"label": "x", "amount": 1, "frequency": "daily", "nextDueAt": "2025-01-01"}), http.StatusBadRequest)

	for i := 0; i < 2; i++ {
		rec = call(http.MethodGet, "/api/expenses", nil)
		expectStatus(t, rec, http.StatusOK)
		doc := decode[core.ExpensesDoc](t, rec)
		if len(doc.Expenses) != 1 || doc.Metadata.TotalExpenses != 1 {
			t.Fatalf("read %d: expenses = %+v", i, doc.Expenses)
		}
		if id := doc.Expenses[0].SourceTemplateID; id == nil || *id != tmpl.ID {
			t.Errorf("sourceTemplateId = %v, want %d", id, tmpl.ID)
		}
	}

	rec = call(http.MethodPost, "/api/templates/generate", nil)
	expectStatus(t, rec, http.StatusOK)
	gen := decode[services.GenerateResult](t, rec)
	if gen.Created != 0 || gen.TotalExpenses != 1 {
		t.Errorf("generate = %+v", gen)
	}

	rec = call(http.MethodPost, "/api/expenses", map[string]any{
		"label": "Lunch", "amount": "30", "status": "past", "occursAt": "2025-01-03", "comment": "team lunch",
	})
	expectStatus(t, rec, http.StatusCreated)
	lunch := decode[core.Expense](t, rec)
	if len(lunch.Comments) != 1 || lunch.Comments[0].Author != "miinéki" {
		t.Errorf("comments = %+v", lunch.Comments)
	}
	expectStatus(t, call(http.MethodPost, "/api/expenses", map[string]any{"label": "x", "amount": 1, "status": "soon", "occursAt": "2025-01-03"}), http.StatusBadRequest)

	expectStatus(t, call(http.MethodGet, "/api/expenses?status=bogus", nil), http.StatusBadRequest)
	rec = call(http.MethodGet, "/api/expenses?status=passé", nil)
	expectStatus(t, rec, http.StatusOK)
	for _, e := range decode[core.ExpensesDoc](t, rec).Expenses {
		if e.Status != core.StatusPast {
			t.Errorf("filter returned %s expense", e.Status)
		}
	}

	rec = call(http.MethodPost, "/api/templates/1/instantiate", nil)
	expectStatus(t, rec, http.StatusCreated)
	if got := decode[core.Expense](t, rec); got.Status != core.StatusUpcoming {
		t.Errorf("instantiated status = %s, want upcoming", got.Status)
	}

	rec = call(http.MethodPost, "/api/expenses/2/comments", map[string]any{"text": "receipt attached", "author": "antoi"})
	expectStatus(t, rec, http.StatusCreated)
	if got := decode[core.Expense](t, rec); got.Comments[len(got.Comments)-1].Author != "antoi" {
		t.Errorf("explicit author ignored: %+v", got.Comments)
	}

	expectStatus(t, call(http.MethodDelete, "/api/expenses/2", nil), http.StatusOK)
	expectStatus(t, call(http.MethodGet, "/api/expenses/2", nil), http.StatusNotFound)
	expectStatus(t, call(http.MethodDelete, "/api/templates/1", nil), http.StatusOK)
	expectStatus(t, call(http.MethodGet, "/api/templates/1", nil), http.StatusNotFound)
}

func TestRateLimit(t *testing.T) {
	srv := newTestServer(t)
	limited := NewServer(":0", srv.deps, Options{RateLimitPerMinute: 2})
	defer limited.Shutdown(context.Background())

	for i := 0; i < 2; i++ {
		expectStatus(t, do(t, limited, request{method: http.MethodGet, path: "/healthz"}), http.StatusOK)
	}
	rec := do(t, limited, request{method: http.MethodGet, path: "/healthz"})
	expectStatus(t, rec, http.StatusTooManyRequests)
	if rec.Header().Get("Retry-After") == "" {
		t.Error("Retry-After missing")
	}
	if got := decode[map[string]string](t, rec); got["error"] == "" {
		t.Errorf("body = %v, want JSON error", got)
	}
}
