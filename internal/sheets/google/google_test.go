package google

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"fluidspend/internal/core"
	"fluidspend/internal/ledger"
)

func sampleLedger() (ledger.Ledger, core.Summary) {
	records := []core.ExpenseRecord{
		{Month: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), Chain: "ethereum", Source: core.SourceEVM, Token: "FLUID",
			TokenAmount: decimal.NewFromInt(1000), USDValue: decimal.NewFromInt(300), NumTransactions: 10},
		{Month: time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC), Chain: "solana", Source: core.SourceSolana, Token: "JUP",
			TokenAmount: decimal.RequireFromString("2500.5"), USDValue: decimal.RequireFromString("1875.375"), NumTransactions: 2},
	}
	l := ledger.Ledger{
		Records:     records,
		FluidPrice:  decimal.RequireFromString("0.30"),
		Notes:       []string{"No non-USDC outflows found"},
		GeneratedAt: time.Date(2024, 5, 20, 8, 0, 0, 0, time.UTC),
	}
	return l, ledger.Summarize(records)
}

func TestLedgerRows(t *testing.T) {
	l, s := sampleLedger()
	rows := LedgerRows(l, s)

	if len(rows) != 1+2+1+8+1 {
		t.Fatalf("unexpected row count %d", len(rows))
	}
	if rows[0][0] != "Month" || len(rows[0]) != 7 {
		t.Fatalf("unexpected header %v", rows[0])
	}
	if rows[1][0] != "2024-05" || rows[1][5] != "300.00" || rows[1][6] != int64(10) {
		t.Fatalf("unexpected first record row %v", rows[1])
	}
	if rows[2][4] != "2500.5" || rows[2][5] != "1875.38" {
		t.Fatalf("unexpected second record row %v", rows[2])
	}
	if len(rows[3]) != 0 {
		t.Fatalf("expected blank separator row, got %v", rows[3])
	}
	if rows[4][0] != "Total USD" || rows[4][1] != "2175.38" {
		t.Fatalf("unexpected total row %v", rows[4])
	}
	if rows[5][1] != "2024-05" {
		t.Fatalf("unexpected current month %v", rows[5])
	}
	last := rows[len(rows)-1]
	if last[0] != "Note" || last[1] != "No non-USDC outflows found" {
		t.Fatalf("unexpected note row %v", last)
	}
}

func TestLedgerRowsEmpty(t *testing.T) {
	rows := LedgerRows(ledger.Ledger{}, ledger.Summarize(nil))
	if len(rows) != 1+1+8 {
		t.Fatalf("unexpected row count %d", len(rows))
	}
	if rows[2][1] != "0.00" || rows[3][1] != "" {
		t.Fatalf("empty summary must render zeros and no month: %v %v", rows[2], rows[3])
	}
}

type sheetsRecorder struct {
	mu      sync.Mutex
	methods []string
	paths   []string
	values  [][]any
	fail    bool
}

func (rec *sheetsRecorder) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	rec.methods = append(rec.methods, r.Method)
	rec.paths = append(rec.paths, r.URL.Path)
	if rec.fail {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":{"code":403,"message":"The caller does not have permission"}}`))
		return
	}
	if r.Method == http.MethodPut {
		var body struct {
			Values [][]any `json:"values"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		rec.values = body.Values
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{}`))
}

func newTestClient(t *testing.T, rec *sheetsRecorder) *Client {
	t.Helper()
	srv := httptest.NewServer(rec)
	t.Cleanup(srv.Close)
	svc, err := gsheet.NewService(context.Background(),
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithHTTPClient(srv.Client()),
		goption.WithoutAuthentication())
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return NewWithService(svc, "sheet-123", "")
}

func TestWriteLedgerClearsThenUpdates(t *testing.T) {
	rec := &sheetsRecorder{}
	c := newTestClient(t, rec)
	l, s := sampleLedger()

	if err := c.WriteLedger(context.Background(), l, s); err != nil {
		t.Fatalf("WriteLedger: %v", err)
	}
	if len(rec.methods) != 2 || rec.methods[0] != http.MethodPost || rec.methods[1] != http.MethodPut {
		t.Fatalf("expected clear then update, got %v", rec.methods)
	}
	if !strings.HasSuffix(rec.paths[0], ":clear") || !strings.Contains(rec.paths[0], "sheet-123") {
		t.Fatalf("unexpected clear path %s", rec.paths[0])
	}
	if !strings.Contains(rec.paths[1], "Ledger!A1") {
		t.Fatalf("update must target the default tab, got %s", rec.paths[1])
	}
	if len(rec.values) != len(LedgerRows(l, s)) {
		t.Fatalf("expected %d rows sent, got %d", len(LedgerRows(l, s)), len(rec.values))
	}
}

func TestWriteLedgerUpstreamError(t *testing.T) {
	c := newTestClient(t, &sheetsRecorder{fail: true})
	l, s := sampleLedger()
	err := c.WriteLedger(context.Background(), l, s)
	if err == nil || !strings.Contains(err.Error(), "clear Ledger!A:G") {
		t.Fatalf("expected clear failure, got %v", err)
	}
}

func TestWriteLedgerUninitialized(t *testing.T) {
	c := &Client{spreadsheetID: "x", sheetName: DefaultSheetName}
	if err := c.WriteLedger(context.Background(), ledger.Ledger{}, core.Summary{}); err == nil {
		t.Fatal("expected error without a service")
	}
}

func TestNewRequiresSpreadsheetAndCredentials(t *testing.T) {
	t.Setenv("GOOGLE_SERVICE_ACCOUNT_JSON", "")
	t.Setenv("GOOGLE_SERVICE_ACCOUNT_FILE", "")
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")

	if _, err := New(context.Background(), "  ", ""); !errors.Is(err, core.ErrConfig) {
		t.Fatalf("expected ErrConfig for missing spreadsheet, got %v", err)
	}
	if _, err := New(context.Background(), "sheet-123", ""); !errors.Is(err, core.ErrConfig) {
		t.Fatalf("expected ErrConfig for missing credentials, got %v", err)
	}

	t.Setenv("GOOGLE_SERVICE_ACCOUNT_FILE", "/nonexistent/sa.json")
	if _, err := New(context.Background(), "sheet-123", ""); err == nil || !strings.Contains(err.Error(), "read service account file") {
		t.Fatalf("expected file read error, got %v", err)
	}
}
