package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"teamapp/internal/core"
	ports "teamapp/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

const defaultRowCacheTTL = 2 * time.Minute

// Config selects the spreadsheet and the service account used to write it.
type Config struct {
	SpreadsheetID      string
	SheetName          string
	ServiceAccountJSON string
	ServiceAccountFile string
}

// Exporter appends expense rows to a Google Sheet.
type Exporter struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string

	// The row count is cached so a burst of exports does not re-read column A
	// for every row.
	mu                 sync.Mutex
	cachedRowCount     int
	cacheExpiresAt     time.Time
	cacheValidDuration time.Duration
}

var _ ports.ExpenseExporter = (*Exporter)(nil)

func New(ctx context.Context, cfg Config) (*Exporter, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	sheetName := strings.TrimSpace(cfg.SheetName)
	if sheetName == "" {
		sheetName = "Expenses"
	}

	svc, err := newSheetsService(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}

	return &Exporter{
		svc:                svc,
		spreadsheetID:      cfg.SpreadsheetID,
		sheetName:          sheetName,
		cacheValidDuration: defaultRowCacheTTL,
	}, nil
}

func credentialsJSON(cfg Config) ([]byte, error) {
	file := strings.TrimSpace(cfg.ServiceAccountFile)
	if cfg.ServiceAccountJSON == "" && file == "" {
		file = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	switch {
	case strings.TrimSpace(cfg.ServiceAccountJSON) != "":
		return []byte(cfg.ServiceAccountJSON), nil
	case file != "":
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return data, nil
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
}

func newSheetsService(ctx context.Context, cfg Config) (*gsheet.Service, error) {
	creds, err := credentialsJSON(cfg)
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "Creating Google Sheets service with Service Account",
		"credentials_size", len(creds),
		"scope", gsheet.SpreadsheetsScope)

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(creds),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return service, nil
}

// InvalidateRowCache forces the next export to re-read the sheet size.
func (c *Exporter) InvalidateRowCache() {
	c.mu.Lock()
	c.cacheExpiresAt = time.Time{}
	c.mu.Unlock()
}

// nextRow returns the first empty row and reserves it. Caller must hold mu.
func (c *Exporter) nextRow(ctx context.Context) (int, error) {
	if time.Now().Before(c.cacheExpiresAt) {
		c.cachedRowCount++
		return c.cachedRowCount, nil
	}

	rng := fmt.Sprintf("%s!A:A", c.sheetName)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("failed to get sheet dimensions for %s: %w", c.sheetName, err)
	}

	rows := len(resp.Values)
	if rows == 0 {
		if err := c.writeRow(ctx, 1, toAny(ports.Columns)); err != nil {
			return 0, err
		}
		rows = 1
	}
	c.cachedRowCount = rows + 1
	c.cacheExpiresAt = time.Now().Add(c.cacheValidDuration)
	return c.cachedRowCount, nil
}

func (c *Exporter) writeRow(ctx context.Context, row int, values []any) error {
	last := 'A' + rune(len(values)-1)
	rng := fmt.Sprintf("%s!A%d:%c%d", c.sheetName, row, last, row)
	vr := &gsheet.ValueRange{Values: [][]any{values}}

	_, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, vr).
		ValueInputOption("USER_ENTERED").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to update %s: %w", rng, err)
	}
	return nil
}

// Export writes the expense on the next free row.
func (c *Exporter) Export(ctx context.Context, e core.Expense) (string, error) {
	if err := e.Validate(); err != nil {
		return "", fmt.Errorf("validation failed: %w", err)
	}
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	row, err := c.nextRow(ctx)
	if err != nil {
		return "", err
	}
	if err := c.writeRow(ctx, row, ports.Row(e)); err != nil {
		// Someone else may have written to the sheet; re-read next time.
		c.cacheExpiresAt = time.Time{}
		return "", err
	}

	ref := fmt.Sprintf("%s!A%d", c.sheetName, row)
	slog.InfoContext(ctx, "Exported expense to sheet", "expense_id", e.ID, "row_ref", ref)
	return ref, nil
}

func toAny(in []string) []any {
	out := make([]any, len(in))
	for i, v := range in {
		out[i] = v
	}
	return out
}
