package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/shopspring/decimal"
	"google.golang.org/api/googleapi"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"cashflow/internal/core"
	ports "cashflow/internal/sheets"
)

// DefaultSheetPrefix names the per-year totals sheet, e.g. "2025 Totals".
const DefaultSheetPrefix = "Totals"

var monthNames = []string{"Jan", "Feb", "Mar", "Apr", "May", "Jun", "Jul", "Aug", "Sep", "Oct", "Nov", "Dec"}

var header = []any{"Month", "Income", "Expense", "Net"}

var _ ports.TotalsExporter = (*Client)(nil)

type Config struct {
	SpreadsheetID      string
	ServiceAccountJSON string
	ServiceAccountFile string
	SheetPrefix        string
}

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	prefix        string

	mu    sync.Mutex
	known map[string]bool // sheet titles seen in the spreadsheet
}

// New creates a Sheets client authenticated with a service account.
func New(ctx context.Context, cfg Config) (*Client, error) {
	spreadsheetID := strings.TrimSpace(cfg.SpreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	svc, err := newSheetsService(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return newClient(svc, spreadsheetID, cfg.SheetPrefix), nil
}

func newClient(svc *gsheet.Service, spreadsheetID, prefix string) *Client {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = DefaultSheetPrefix
	}
	return &Client{svc: svc, spreadsheetID: spreadsheetID, prefix: prefix, known: map[string]bool{}}
}

// credentials returns the service account key, inline JSON first, then the
// configured file, then GOOGLE_APPLICATION_CREDENTIALS.
func credentials(cfg Config) ([]byte, error) {
	inline := strings.TrimSpace(cfg.ServiceAccountJSON)
	file := strings.TrimSpace(cfg.ServiceAccountFile)
	if inline == "" && file == "" {
		file = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}
	switch {
	case inline != "":
		return []byte(inline), nil
	case file != "":
		b, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return b, nil
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
}

func newSheetsService(ctx context.Context, cfg Config) (*gsheet.Service, error) {
	creds, err := credentials(cfg)
	if err != nil {
		return nil, err
	}
	slog.InfoContext(ctx, "Creating Google Sheets service with Service Account",
		"credentials_size", len(creds),
		"scope", gsheet.SpreadsheetsScope)

	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(creds),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return svc, nil
}

// SheetName is the totals sheet of year.
func (c *Client) SheetName(year int) string {
	return yearPrefixedName(c.prefix, year)
}

// WriteMonthlyTotals overwrites the year's totals sheet, creating it on
// first export. Months missing from totals are written as blank rows.
func (c *Client) WriteMonthlyTotals(ctx context.Context, year int, totals []core.MonthTotal) (string, error) {
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}
	name := c.SheetName(year)
	if err := c.ensureSheet(ctx, name); err != nil {
		return "", err
	}

	rng := fmt.Sprintf("%s!A1:D%d", name, len(monthNames)+1)
	vr := &gsheet.ValueRange{Values: totalsValues(totals)}
	_, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, vr).
		ValueInputOption("USER_ENTERED").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to update %s: %w", rng, err)
	}
	slog.InfoContext(ctx, "Monthly totals exported", "sheet", name, "months", len(totals))
	return rng, nil
}

// ReadMonthlyTotals reads back the year's sheet. A missing sheet reads as
// no totals.
func (c *Client) ReadMonthlyTotals(ctx context.Context, year int) ([]core.MonthTotal, error) {
	if c.svc == nil {
		return nil, errors.New("sheets service not initialized")
	}
	rng := fmt.Sprintf("%s!A2:D%d", c.SheetName(year), len(monthNames)+1)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if isMissingRange(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}
	return parseTotals(resp.Values, year)
}

func (c *Client) ensureSheet(ctx context.Context, name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.known[name] {
		return nil
	}

	ss, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Fields("sheets.properties.title").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("read spreadsheet %s: %w", c.spreadsheetID, err)
	}
	for _, sh := range ss.Sheets {
		if sh.Properties != nil {
			c.known[sh.Properties.Title] = true
		}
	}
	if c.known[name] {
		return nil
	}

	req := &gsheet.BatchUpdateSpreadsheetRequest{Requests: []*gsheet.Request{{
		AddSheet: &gsheet.AddSheetRequest{Properties: &gsheet.SheetProperties{Title: name}},
	}}}
	if _, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("add sheet %s: %w", name, err)
	}
	c.known[name] = true
	slog.InfoContext(ctx, "Totals sheet created", "sheet", name)
	return nil
}

func isMissingRange(err error) bool {
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && gerr.Code == http.StatusBadRequest &&
		strings.Contains(gerr.Message, "Unable to parse range")
}

// totalsValues renders the header and one row per calendar month.
func totalsValues(totals []core.MonthTotal) [][]any {
	byMonth := make(map[int]core.MonthTotal, len(totals))
	for _, t := range totals {
		byMonth[t.Month] = t
	}
	out := make([][]any, 0, len(monthNames)+1)
	out = append(out, header)
	for i, name := range monthNames {
		t, ok := byMonth[i+1]
		if !ok {
			out = append(out, []any{name, "", "", ""})
			continue
		}
		out = append(out, []any{
			name,
			t.Income.Decimal().StringFixed(2),
			t.Expense.Decimal().StringFixed(2),
			core.FormatCents(t.Net()),
		})
	}
	return out
}

// parseTotals converts rows below the header back into totals. Rows with
// an unknown month label or blank amounts are skipped.
func parseTotals(values [][]any, year int) ([]core.MonthTotal, error) {
	var out []core.MonthTotal
	for _, row := range values {
		cols := toStrings(row)
		month := indexOf(monthNames, safeGet(cols, 0)) + 1
		if month == 0 {
			continue
		}
		incStr, expStr := safeGet(cols, 1), safeGet(cols, 2)
		if incStr == "" && expStr == "" {
			continue
		}
		income, err := parseCents(incStr)
		if err != nil {
			return nil, fmt.Errorf("%s income: %w", monthNames[month-1], err)
		}
		expense, err := parseCents(expStr)
		if err != nil {
			return nil, fmt.Errorf("%s expense: %w", monthNames[month-1], err)
		}
		out = append(out, core.MonthTotal{
			Year:    year,
			Month:   month,
			Income:  core.Money{Cents: income},
			Expense: core.Money{Cents: expense},
		})
	}
	return out, nil
}

// parseCents accepts the formatted cell values Sheets returns: decimal
// comma or dot, optional currency sign and thousands separators.
func parseCents(s string) (int64, error) {
	s = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(s), "€"))
	if s == "" {
		return 0, nil
	}
	if strings.Contains(s, ",") && strings.Contains(s, ".") {
		s = strings.ReplaceAll(s, ".", "")
	}
	s = strings.ReplaceAll(s, ",", ".")
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("parse amount %q: %w", s, err)
	}
	return d.Shift(2).Round(0).IntPart(), nil
}

func toStrings(in []any) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}

// yearPrefixedName returns "<year> <base>" unless base already starts with a 4-digit year.
func yearPrefixedName(base string, year int) string {
	base = strings.TrimSpace(base)
	if base == "" {
		return strconv.Itoa(year)
	}
	if len(base) >= 5 {
		if y, err := strconv.Atoi(base[0:4]); err == nil && base[4] == ' ' && y > 1900 && y < 3000 {
			return base
		}
	}
	return fmt.Sprintf("%d %s", year, base)
}

func indexOf(arr []string, target string) int {
	for i, v := range arr {
		if strings.EqualFold(strings.TrimSpace(v), strings.TrimSpace(target)) {
			return i
		}
	}
	return -1
}

func safeGet(arr []string, idx int) string {
	if idx < 0 || idx >= len(arr) {
		return ""
	}
	return arr[idx]
}
