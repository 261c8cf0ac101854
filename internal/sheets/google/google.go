package google

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"fluidspend/internal/core"
	"fluidspend/internal/ledger"
	"fluidspend/internal/log"
	ports "fluidspend/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// DefaultSheetName is the tab the ledger is exported to.
const DefaultSheetName = "Ledger"

var ledgerHeader = []any{"Month", "Chain", "Source", "Token", "Token Amount", "USD Value", "Transactions"}

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string
	logger        *log.Logger
}

// Ensure interface conformance
var _ ports.LedgerWriter = (*Client)(nil)

// New creates a Sheets client authenticated with service account credentials
// from the environment.
func New(ctx context.Context, spreadsheetID, sheetName string) (*Client, error) {
	spreadsheetID = strings.TrimSpace(spreadsheetID)
	if spreadsheetID == "" {
		return nil, fmt.Errorf("%w: missing GOOGLE_SPREADSHEET_ID", core.ErrConfig)
	}
	svc, err := newSheetsService(ctx)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return NewWithService(svc, spreadsheetID, sheetName), nil
}

// NewWithService wraps an existing service, e.g. one pointed at a test server.
func NewWithService(svc *gsheet.Service, spreadsheetID, sheetName string) *Client {
	sheetName = strings.TrimSpace(sheetName)
	if sheetName == "" {
		sheetName = DefaultSheetName
	}
	return &Client{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		sheetName:     sheetName,
		logger:        log.ForComponent(log.ComponentSheets),
	}
}

// newSheetsService initializes a Sheets Service using Service Account credentials.
// Uses GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS.
func newSheetsService(ctx context.Context) (*gsheet.Service, error) {
	serviceAccountJSON := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"))
	serviceAccountFile := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))
	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var credentialsJSON []byte
	var err error

	switch {
	case serviceAccountJSON != "":
		credentialsJSON = []byte(serviceAccountJSON)
	case serviceAccountFile != "":
		credentialsJSON, err = os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
	default:
		return nil, fmt.Errorf("%w: missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)", core.ErrConfig)
	}

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return service, nil
}

// WriteLedger clears the ledger tab and rewrites it: a header row, one row per
// record, a blank row, then the summary block.
func (c *Client) WriteLedger(ctx context.Context, l ledger.Ledger, s core.Summary) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}

	clearRange := fmt.Sprintf("%s!A:G", c.sheetName)
	_, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, clearRange, &gsheet.ClearValuesRequest{}).
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("clear %s: %w", clearRange, err)
	}

	rows := LedgerRows(l, s)
	rng := fmt.Sprintf("%s!A1", c.sheetName)
	_, err = c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, &gsheet.ValueRange{Values: rows}).
		ValueInputOption("USER_ENTERED").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("update %s: %w", rng, err)
	}

	c.logger.InfoContext(ctx, "Exported ledger to Google Sheets",
		log.FieldOperation, log.OpExport,
		log.FieldRecords, len(l.Records),
		"sheet", c.sheetName,
		"rows", len(rows))
	return nil
}

// LedgerRows renders the sheet contents. Amounts are written as plain decimal
// strings so the sheet parses them without float rounding.
func LedgerRows(l ledger.Ledger, s core.Summary) [][]any {
	rows := make([][]any, 0, len(l.Records)+12)
	rows = append(rows, ledgerHeader)
	for _, r := range l.Records {
		rows = append(rows, []any{
			r.Month.Format("2006-01"),
			r.Chain,
			r.Source.String(),
			r.Token,
			r.TokenAmount.String(),
			r.USDValue.StringFixed(2),
			r.NumTransactions,
		})
	}

	currentMonth := ""
	if !s.CurrentMonth.IsZero() {
		currentMonth = s.CurrentMonth.Format("2006-01")
	}
	rows = append(rows,
		[]any{},
		[]any{"Total USD", s.TotalUSD.StringFixed(2)},
		[]any{"Current Month", currentMonth},
		[]any{"Current Month USD", s.CurrentMonthUSD.StringFixed(2)},
		[]any{"EVM Total USD", s.EVMTotalUSD.StringFixed(2)},
		[]any{"Solana Total USD", s.SolanaTotalUSD.StringFixed(2)},
		[]any{"Total Transactions", s.TotalTransactions},
		[]any{"FLUID Price", l.FluidPrice.String()},
		[]any{"Generated At", l.GeneratedAt.UTC().Format(time.RFC3339)},
	)
	for _, n := range l.Notes {
		rows = append(rows, []any{"Note", n})
	}
	return rows
}
