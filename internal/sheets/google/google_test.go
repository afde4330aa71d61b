package google

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"assofin/internal/core"
	"assofin/internal/sheets"

	goption "google.golang.org/api/option"
)

// fakeSheets serves the handful of Values endpoints the client uses.
type fakeSheets struct {
	mu      sync.Mutex
	columnA [][]any
	calls   []string
	bodies  []string
}

func (f *fakeSheets) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	body, _ := io.ReadAll(r.Body)
	path := r.URL.Path
	w.Header().Set("Content-Type", "application/json")

	switch {
	case r.Method == http.MethodGet && strings.Contains(path, "/values/"):
		f.calls = append(f.calls, "get")
		_ = json.NewEncoder(w).Encode(map[string]any{"values": f.columnA})
	case r.Method == http.MethodPost && strings.HasSuffix(path, ":append"):
		f.calls = append(f.calls, "append")
		f.bodies = append(f.bodies, string(body))
		_ = json.NewEncoder(w).Encode(map[string]any{"updates": map[string]any{"updatedRange": "Transactions!A5:G5"}})
	case r.Method == http.MethodPost && strings.HasSuffix(path, ":clear"):
		f.calls = append(f.calls, "clear "+path[strings.LastIndex(path, "/")+1:])
		_ = json.NewEncoder(w).Encode(map[string]any{})
	case r.Method == http.MethodPut:
		f.calls = append(f.calls, "update "+path[strings.LastIndex(path, "/")+1:])
		f.bodies = append(f.bodies, string(body))
		_ = json.NewEncoder(w).Encode(map[string]any{})
	default:
		http.Error(w, "unexpected "+r.Method+" "+path, http.StatusNotFound)
	}
}

func newTestClient(t *testing.T, f *fakeSheets) *Client {
	t.Helper()
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	c, err := newClient(context.Background(),
		Config{SpreadsheetID: "sheet-id", SheetName: "Transactions"},
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithoutAuthentication(),
		goption.WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatalf("newClient: %v", err)
	}
	return c
}

func row() sheets.LedgerRow {
	return sheets.NewLedgerRow(core.Transaction{
		ID: "tx-2", Type: core.Expense, Amount: core.Money{Cents: 2340},
		Description: "CB CARREFOUR", Date: core.NewDate(2024, 4, 2),
	}, "Banque", "Courses")
}

func TestUpsertAppendsNewRow(t *testing.T) {
	f := &fakeSheets{columnA: [][]any{{"ID"}, {"tx-1"}}}
	c := newTestClient(t, f)

	ref, err := c.Upsert(context.Background(), row())
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if ref != "Transactions!A5:G5" {
		t.Fatalf("ref = %q", ref)
	}
	if strings.Join(f.calls, ",") != "get,append" {
		t.Fatalf("calls = %v", f.calls)
	}
	if !strings.Contains(f.bodies[0], "CB CARREFOUR") || !strings.Contains(f.bodies[0], "-23.4") {
		t.Fatalf("append body = %s", f.bodies[0])
	}
}

func TestUpsertRewritesExistingRow(t *testing.T) {
	f := &fakeSheets{columnA: [][]any{{"ID"}, {"tx-1"}, {"tx-2"}}}
	c := newTestClient(t, f)

	ref, err := c.Upsert(context.Background(), row())
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if ref != "Transactions!A3:G3" {
		t.Fatalf("ref = %q", ref)
	}
	if len(f.calls) != 2 || f.calls[1] != "update Transactions!A3:G3" {
		t.Fatalf("calls = %v", f.calls)
	}
}

func TestUpsertWritesHeaderOnEmptySheet(t *testing.T) {
	f := &fakeSheets{}
	c := newTestClient(t, f)

	if _, err := c.Upsert(context.Background(), row()); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	want := "get,update Transactions!A1:G1,append"
	if strings.Join(f.calls, ",") != want {
		t.Fatalf("calls = %v, want %s", f.calls, want)
	}
	if !strings.Contains(f.bodies[0], "Catégorie") {
		t.Fatalf("header body = %s", f.bodies[0])
	}
}

func TestDelete(t *testing.T) {
	f := &fakeSheets{columnA: [][]any{{"ID"}, {"tx-1"}, {}, {"tx-2"}}}
	c := newTestClient(t, f)

	if err := c.Delete(context.Background(), "tx-2"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if f.calls[len(f.calls)-1] != "clear Transactions!A4:G4:clear" {
		t.Fatalf("calls = %v", f.calls)
	}

	f.calls = nil
	if err := c.Delete(context.Background(), "unknown"); err != nil {
		t.Fatalf("Delete unknown: %v", err)
	}
	if strings.Join(f.calls, ",") != "get" {
		t.Fatalf("calls = %v", f.calls)
	}
}

func TestRowOfSkipsHeader(t *testing.T) {
	ids := []string{"ID", "a", "", "b"}
	tests := []struct {
		id   string
		want int
	}{
		{"a", 2},
		{"b", 4},
		{"ID", 0},
		{"zzz", 0},
	}
	for _, tt := range tests {
		if got := rowOf(ids, tt.id); got != tt.want {
			t.Errorf("rowOf(%q) = %d, want %d", tt.id, got, tt.want)
		}
	}
}

func TestNewValidatesConfig(t *testing.T) {
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")
	ctx := context.Background()

	if _, err := New(ctx, Config{SheetName: "T"}); err == nil {
		t.Fatal("expected missing spreadsheet error")
	}
	if _, err := New(ctx, Config{SpreadsheetID: "x"}); err == nil {
		t.Fatal("expected missing sheet name error")
	}
	_, err := New(ctx, Config{SpreadsheetID: "x", SheetName: "T"})
	if err == nil || !strings.Contains(err.Error(), "missing service account credentials") {
		t.Fatalf("expected credentials error, got %v", err)
	}
	_, err = New(ctx, Config{SpreadsheetID: "x", SheetName: "T", ServiceAccountFile: filepath.Join(t.TempDir(), "none.json")})
	if err == nil || !strings.Contains(err.Error(), "read service account file") {
		t.Fatalf("expected read error, got %v", err)
	}
}

func TestCredentialsJSONPrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sa.json")
	if err := os.WriteFile(path, []byte(`{"from":"file"}`), 0o600); err != nil {
		t.Fatal(err)
	}

	got, err := credentialsJSON(Config{ServiceAccountJSON: `{"from":"inline"}`, ServiceAccountFile: path})
	if err != nil || string(got) != `{"from":"inline"}` {
		t.Fatalf("inline = %s, %v", got, err)
	}
	got, err = credentialsJSON(Config{ServiceAccountFile: path})
	if err != nil || string(got) != `{"from":"file"}` {
		t.Fatalf("file = %s, %v", got, err)
	}
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", path)
	got, err = credentialsJSON(Config{})
	if err != nil || string(got) != `{"from":"file"}` {
		t.Fatalf("env = %s, %v", got, err)
	}
}
