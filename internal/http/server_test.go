package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"assofin/internal/core"
	"assofin/internal/log"
	"assofin/internal/memory"
	"assofin/internal/middleware/ratelimit"
	"assofin/internal/services"

	"github.com/xuri/excelize/v2"
)

type testEnv struct {
	srv     *Server
	store   *memory.Store
	account core.Account
	courses core.Category
	dons    core.Category
}

func newTestEnv(t *testing.T, opts ...func(*Deps)) *testEnv {
	t.Helper()
	ctx := context.Background()
	store := memory.New()

	account, err := store.CreateAccount(ctx, core.Account{Name: "Banque", Type: core.AccountBank})
	if err != nil {
		t.Fatal(err)
	}
	courses, err := store.CreateCategory(ctx, core.Category{Name: "Courses", Type: core.Expense})
	if err != nil {
		t.Fatal(err)
	}
	dons, err := store.CreateCategory(ctx, core.Category{Name: "Dons", Type: core.Income})
	if err != nil {
		t.Fatal(err)
	}

	cfg := log.DefaultConfig()
	cfg.Output = io.Discard
	logger := log.New(cfg)

	reports := services.NewReportService(store, nil)
	transactions := services.NewTransactionService(store, nil, reports)
	deps := Deps{
		Accounts:     services.NewAccountService(store, reports),
		Categories:   services.NewCategoryService(store, reports),
		Transactions: transactions,
		Rules:        services.NewRuleService(store),
		Categorize:   services.NewCategorizationService(store, nil, reports),
		Imports:      services.NewImportService(transactions),
		Reports:      reports,
		Logger:       logger,
		RateLimit:    ratelimit.Config{RequestsPerMinute: 1000},
	}
	for _, opt := range opts {
		opt(&deps)
	}
	srv := NewServer(":0", deps)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })

	return &testEnv{srv: srv, store: store, account: account, courses: courses, dons: dons}
}

func (e *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	e.srv.Handler.ServeHTTP(rec, req)
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

func TestHealthAndReady(t *testing.T) {
	failing := false
	env := newTestEnv(t, func(d *Deps) {
		d.Ready = []ReadinessCheck{{Name: "store", Check: func(context.Context) error {
			if failing {
				return errors.New("down")
			}
			return nil
		}}}
	})

	if rec := env.do(t, http.MethodGet, "/healthz", ""); rec.Code != http.StatusOK {
		t.Fatalf("healthz = %d", rec.Code)
	}
	if rec := env.do(t, http.MethodGet, "/readyz", ""); rec.Code != http.StatusOK {
		t.Fatalf("readyz = %d", rec.Code)
	}

	failing = true
	rec := env.do(t, http.MethodGet, "/readyz", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("readyz with failing check = %d", rec.Code)
	}
	body := decode[map[string]any](t, rec)
	if body["status"] != "not_ready" {
		t.Errorf("status = %v", body["status"])
	}
}

func TestCreateTransactionAutoCategorizes(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/rules",
		`{"category_id":"`+env.courses.ID+`","keywords":["carrefour","leclerc"],"transaction_type":"expense","priority":5}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create rule = %d %s", rec.Code, rec.Body)
	}

	rec = env.do(t, http.MethodPost, "/api/transactions",
		`{"account_id":"`+env.account.ID+`","amount":"42,50","type":"expense","description":"CB CARREFOUR 12/03","date":"2024-03-12"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create transaction = %d %s", rec.Code, rec.Body)
	}
	tx := decode[transactionView](t, rec)
	if tx.CategoryID == nil || *tx.CategoryID != env.courses.ID {
		t.Errorf("category = %v, want %s", tx.CategoryID, env.courses.ID)
	}
	if tx.Amount != "42.50" || tx.Date != "2024-03-12" {
		t.Errorf("amount/date = %s %s", tx.Amount, tx.Date)
	}

	rec = env.do(t, http.MethodGet, "/api/transactions/"+tx.ID, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("get transaction = %d", rec.Code)
	}

	rec = env.do(t, http.MethodGet, "/api/accounts", "")
	accounts := decode[[]accountView](t, rec)
	if len(accounts) != 1 || accounts[0].Balance != "-42.50" {
		t.Errorf("accounts = %+v", accounts)
	}
}

func TestCreateTransactionErrors(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name string
		body string
		want int
	}{
		{"malformed json", `{"amount":`, http.StatusBadRequest},
		{"unknown field", `{"account_id":"` + env.account.ID + `","amount":"1","type":"expense","foo":1}`, http.StatusBadRequest},
		{"negative amount", `{"account_id":"` + env.account.ID + `","amount":"-3","type":"expense"}`, http.StatusUnprocessableEntity},
		{"bad type", `{"account_id":"` + env.account.ID + `","amount":"3","type":"transfer"}`, http.StatusUnprocessableEntity},
		{"bad date", `{"account_id":"` + env.account.ID + `","amount":"3","type":"expense","date":"12/03/2024"}`, http.StatusUnprocessableEntity},
		{"category of other type", `{"account_id":"` + env.account.ID + `","amount":"3","type":"expense","category_id":"` + env.dons.ID + `"}`, http.StatusUnprocessableEntity},
		{"unknown account", `{"account_id":"nope","amount":"3","type":"expense"}`, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/api/transactions", tt.body)
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tt.want, rec.Body)
			}
			if body := decode[errorBody](t, rec); body.Error == "" {
				t.Error("empty error message")
			}
		})
	}
}

func TestUpdateAndDeleteTransaction(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/transactions",
		`{"account_id":"`+env.account.ID+`","amount":"10","type":"expense","category_id":"`+env.courses.ID+`","description":"marché"}`)
	tx := decode[transactionView](t, rec)

	rec = env.do(t, http.MethodPatch, "/api/transactions/"+tx.ID, `{"category_id":"","amount":"12.00"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("patch = %d %s", rec.Code, rec.Body)
	}
	updated := decode[transactionView](t, rec)
	if updated.CategoryID != nil || updated.Amount != "12.00" {
		t.Errorf("updated = %+v", updated)
	}

	rec = env.do(t, http.MethodGet, "/api/transactions?uncategorized=true", "")
	if list := decode[[]transactionView](t, rec); len(list) != 1 {
		t.Errorf("uncategorized = %d, want 1", len(list))
	}

	if rec := env.do(t, http.MethodDelete, "/api/transactions/"+tx.ID, ""); rec.Code != http.StatusNoContent {
		t.Fatalf("delete = %d", rec.Code)
	}
	if rec := env.do(t, http.MethodGet, "/api/transactions/"+tx.ID, ""); rec.Code != http.StatusNotFound {
		t.Errorf("get after delete = %d", rec.Code)
	}
}

func TestListTransactionsRejectsBadQuery(t *testing.T) {
	env := newTestEnv(t)
	for _, q := range []string{"limit=0", "limit=abc", "type=other", "since=yesterday"} {
		if rec := env.do(t, http.MethodGet, "/api/transactions?"+q, ""); rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d", q, rec.Code)
		}
	}
}

func TestCategorizeEndpoint(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	for _, desc := range []string{"Don de Mme Martin", "Courses Lidl", ""} {
		if _, err := env.store.CreateTransaction(ctx, core.Transaction{
			AccountID: env.account.ID, Amount: core.Money{Cents: 500}, Type: core.Income,
			Description: desc, Date: core.NewDate(2024, 5, 1),
		}); err != nil {
			t.Fatal(err)
		}
	}
	env.do(t, http.MethodPost, "/api/rules",
		`{"category_id":"`+env.dons.ID+`","keywords":"don, cotisation","transaction_type":"income"}`)

	rec := env.do(t, http.MethodPost, "/api/categorize", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("categorize = %d %s", rec.Code, rec.Body)
	}
	got := decode[categorizeView](t, rec)
	if got.Candidates != 3 || got.Updated != 1 || got.Skipped != 1 || got.Unmatched != 1 {
		t.Errorf("result = %+v", got.Result)
	}
	if got.Message != "1 transaction categorized" {
		t.Errorf("message = %q", got.Message)
	}

	rec = env.do(t, http.MethodPost, "/api/categorize?async=true", `{"transaction_ids":["x"]}`)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("async without broker = %d", rec.Code)
	}
}

func TestRulesCRUD(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/rules",
		`{"category_id":"`+env.courses.ID+`","keywords":"edf","transaction_type":"income"}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("type mismatch = %d", rec.Code)
	}
	rec = env.do(t, http.MethodPost, "/api/rules",
		`{"category_id":"`+env.courses.ID+`","keywords":"edf","transaction_type":"expense","priority":11}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("priority out of range = %d", rec.Code)
	}

	rec = env.do(t, http.MethodPost, "/api/rules",
		`{"category_id":"`+env.courses.ID+`","keywords":"edf","transaction_type":"expense"}`)
	rule := decode[ruleView](t, rec)
	if rule.Priority != core.MinPriority {
		t.Errorf("default priority = %d", rule.Priority)
	}

	rec = env.do(t, http.MethodGet, "/api/rules", "")
	if rules := decode[[]ruleView](t, rec); len(rules) != 1 || rules[0].CategoryName != "Courses" {
		t.Errorf("rules = %+v", rules)
	}
	if rec := env.do(t, http.MethodDelete, "/api/rules/"+rule.ID, ""); rec.Code != http.StatusNoContent {
		t.Errorf("delete = %d", rec.Code)
	}
	if rec := env.do(t, http.MethodDelete, "/api/rules/"+rule.ID, ""); rec.Code != http.StatusNotFound {
		t.Errorf("second delete = %d", rec.Code)
	}
}

func TestAccountsAndCategories(t *testing.T) {
	env := newTestEnv(t)

	if rec := env.do(t, http.MethodPost, "/api/accounts", `{"name":"Caisse","type":"cash"}`); rec.Code != http.StatusCreated {
		t.Fatalf("create account = %d %s", rec.Code, rec.Body)
	}
	if rec := env.do(t, http.MethodPost, "/api/accounts", `{"name":"Caisse","type":"crypto"}`); rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("bad account type = %d", rec.Code)
	}
	rec := env.do(t, http.MethodGet, "/api/accounts/balances", "")
	if b := decode[balancesView](t, rec); b.Total != "0.00" {
		t.Errorf("total = %s", b.Total)
	}

	rec = env.do(t, http.MethodGet, "/api/categories?type=income", "")
	if cats := decode[[]categoryView](t, rec); len(cats) != 1 || cats[0].Name != "Dons" {
		t.Errorf("income categories = %+v", cats)
	}
	if rec := env.do(t, http.MethodDelete, "/api/categories/"+env.dons.ID, ""); rec.Code != http.StatusNoContent {
		t.Errorf("delete category = %d", rec.Code)
	}
}

func TestReportEndpoint(t *testing.T) {
	env := newTestEnv(t)
	if rec := env.do(t, http.MethodGet, "/api/reports?days=-1", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("negative days = %d", rec.Code)
	}
	rec := env.do(t, http.MethodGet, "/api/reports?days=7", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("report = %d %s", rec.Code, rec.Body)
	}
	rep := decode[reportView](t, rec)
	if rep.Days != 7 || rep.Stats.TransactionCount != 0 || rep.TotalAssets != "0.00" {
		t.Errorf("report = %+v", rep)
	}
}

func multipartUpload(t *testing.T, fields map[string]string, file []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatal(err)
		}
	}
	if file != nil {
		fw, err := mw.CreateFormFile("file", "releve.xlsx")
		if err != nil {
			t.Fatal(err)
		}
		if _, err := fw.Write(file); err != nil {
			t.Fatal(err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	return &buf, mw.FormDataContentType()
}

func statement(t *testing.T) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	rows := [][]any{
		{"Date", "Libellé", "Montant"},
		{"2024-04-02", "Don association", "150"},
		{"2024-04-03", "Courses Lidl", "-23,40"},
	}
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow("Sheet1", cell, &row); err != nil {
			t.Fatal(err)
		}
	}
	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestImportEndpoints(t *testing.T) {
	env := newTestEnv(t)
	data := statement(t)

	body, ct := multipartUpload(t, nil, data)
	req := httptest.NewRequest(http.MethodPost, "/api/import/preview", body)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()
	env.srv.Handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("preview = %d %s", rec.Code, rec.Body)
	}
	if p := decode[previewView](t, rec); len(p.Rows) != 2 || p.Rows[1].Type != "expense" {
		t.Errorf("preview = %+v", p)
	}

	body, ct = multipartUpload(t, map[string]string{"account_id": env.account.ID}, data)
	req = httptest.NewRequest(http.MethodPost, "/api/import", body)
	req.Header.Set("Content-Type", ct)
	rec = httptest.NewRecorder()
	env.srv.Handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("import = %d %s", rec.Code, rec.Body)
	}
	if res := decode[services.ImportResult](t, rec); res.Imported != 2 {
		t.Errorf("import = %+v", res)
	}

	body, ct = multipartUpload(t, map[string]string{"account_id": env.account.ID}, nil)
	req = httptest.NewRequest(http.MethodPost, "/api/import", body)
	req.Header.Set("Content-Type", ct)
	rec = httptest.NewRecorder()
	env.srv.Handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing file = %d", rec.Code)
	}

	rec = env.do(t, http.MethodGet, "/api/import/template", "")
	if rec.Code != http.StatusOK || rec.Header().Get("Content-Type") != xlsxContentType {
		t.Fatalf("template = %d %s", rec.Code, rec.Header().Get("Content-Type"))
	}
	if _, err := excelize.OpenReader(rec.Body); err != nil {
		t.Errorf("template is not a workbook: %v", err)
	}
}

func TestRoutingAndHeaders(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/nothing", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown route = %d", rec.Code)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("missing request id")
	}
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("missing security headers")
	}
	if rec := env.do(t, http.MethodPut, "/api/accounts", `{}`); rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("wrong method = %d", rec.Code)
	}
}

func TestWritesAreRateLimited(t *testing.T) {
	env := newTestEnv(t, func(d *Deps) { d.RateLimit = ratelimit.Config{RequestsPerMinute: 1} })

	if rec := env.do(t, http.MethodPost, "/api/accounts", `{"name":"Caisse","type":"cash"}`); rec.Code != http.StatusCreated {
		t.Fatalf("first write = %d", rec.Code)
	}
	rec := env.do(t, http.MethodPost, "/api/accounts", `{"name":"Livret","type":"bank"}`)
	if rec.Code != http.StatusTooManyRequests || rec.Header().Get("Retry-After") == "" {
		t.Errorf("second write = %d", rec.Code)
	}
	if rec := env.do(t, http.MethodGet, "/api/accounts", ""); rec.Code != http.StatusOK {
		t.Errorf("read after limit = %d", rec.Code)
	}
}
