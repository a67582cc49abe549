package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/oauth2"
	goauth "golang.org/x/oauth2/google"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"shgbook/internal/core"
	"shgbook/internal/log"
	ports "shgbook/internal/sheets"
)

// Client writes and reads year ledgers as month tabs of one spreadsheet.
type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	maxAmount     int64
	logger        *log.Logger
}

var (
	_ ports.LedgerWriter = (*Client)(nil)
	_ ports.LedgerReader = (*Client)(nil)
)

// Credentials holds the OAuth client and the token saved by oauth-init.
// Inline JSON wins over the file path.
type Credentials struct {
	ClientJSON string
	ClientFile string
	TokenJSON  string
	TokenFile  string
}

// Options configures New.
type Options struct {
	SpreadsheetID string
	Credentials   Credentials
	MaxAmount     int64
	Logger        *log.Logger
}

// New creates a Sheets client authorized with a stored OAuth token.
func New(ctx context.Context, opts Options) (*Client, error) {
	if strings.TrimSpace(opts.SpreadsheetID) == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	svc, err := newSheetsService(ctx, opts.Credentials)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return NewWithService(svc, opts.SpreadsheetID, opts.MaxAmount, opts.Logger), nil
}

// NewWithService wraps an existing service, e.g. one pointed at a test endpoint.
func NewWithService(svc *gsheet.Service, spreadsheetID string, maxAmount int64, logger *log.Logger) *Client {
	if logger == nil {
		logger = log.Discard()
	}
	if maxAmount <= 0 {
		maxAmount = core.DefaultMaxAmount
	}
	return &Client{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		maxAmount:     maxAmount,
		logger:        logger.WithComponent(log.ComponentSheets),
	}
}

func newSheetsService(ctx context.Context, creds Credentials) (*gsheet.Service, error) {
	clientJSON, err := readSecret(creds.ClientJSON, creds.ClientFile)
	if err != nil {
		return nil, fmt.Errorf("read oauth client: %w", err)
	}
	if clientJSON == nil {
		return nil, errors.New("missing oauth client (set GOOGLE_OAUTH_CLIENT_JSON or GOOGLE_OAUTH_CLIENT_FILE)")
	}
	tokenJSON, err := readSecret(creds.TokenJSON, creds.TokenFile)
	if err != nil {
		return nil, fmt.Errorf("read oauth token: %w", err)
	}
	if tokenJSON == nil {
		return nil, errors.New("missing oauth token (set GOOGLE_OAUTH_TOKEN_JSON or GOOGLE_OAUTH_TOKEN_FILE)")
	}

	cfg, err := goauth.ConfigFromJSON(clientJSON, gsheet.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("oauth config: %w", err)
	}
	var tok oauth2.Token
	if err := json.Unmarshal(tokenJSON, &tok); err != nil {
		return nil, fmt.Errorf("decode oauth token: %w", err)
	}

	// The token source refreshes through the pooled transport.
	ctx = context.WithValue(ctx, oauth2.HTTPClient, newHTTPClientWithPooling())
	return gsheet.NewService(ctx, goption.WithHTTPClient(cfg.Client(ctx, &tok)))
}

func readSecret(inline, path string) ([]byte, error) {
	if s := strings.TrimSpace(inline); s != "" {
		return []byte(s), nil
	}
	if path = strings.TrimSpace(path); path == "" {
		return nil, nil
	}
	return os.ReadFile(path)
}

// newHTTPClientWithPooling creates an HTTP client for the Sheets API with
// connection pooling and bounded timeouts.
func newHTTPClientWithPooling() *http.Client {
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		MaxIdleConns:          20,
		MaxIdleConnsPerHost:   10,
		MaxConnsPerHost:       20,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		ExpectContinueTimeout: time.Second,
		ForceAttemptHTTP2:     true,
	}
	return &http.Client{Transport: transport, Timeout: 60 * time.Second}
}

// ExportYear writes the twelve month tabs of the book's year, creating any
// that are missing, and returns the spreadsheet reference.
func (c *Client) ExportYear(ctx context.Context, book ports.Book) (string, error) {
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}
	if len(book.Year.Months) != core.MonthsPerYear {
		return "", core.Invalid("Year %d must have %d months", book.Year.Year, core.MonthsPerYear)
	}
	year := book.Year.Year

	existing, err := c.sheetTitles(ctx)
	if err != nil {
		return "", err
	}
	if missing := missingSheets(existing, year); len(missing) > 0 {
		reqs := make([]*gsheet.Request, 0, len(missing))
		for _, title := range missing {
			reqs = append(reqs, &gsheet.Request{
				AddSheet: &gsheet.AddSheetRequest{Properties: &gsheet.SheetProperties{Title: title}},
			})
		}
		_, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, &gsheet.BatchUpdateSpreadsheetRequest{Requests: reqs}).
			Context(ctx).Do()
		if err != nil {
			return "", fmt.Errorf("add sheets for %d: %w", year, err)
		}
		c.logger.InfoContext(ctx, "Created month sheets", "year", year, "count", len(missing))
	}

	clear := make([]string, 0, core.MonthsPerYear)
	data := make([]*gsheet.ValueRange, 0, core.MonthsPerYear)
	for i := range core.MonthsPerYear {
		name := ports.SheetName(year, i)
		clear = append(clear, quote(name))
		data = append(data, &gsheet.ValueRange{
			Range:  quote(name) + "!A1",
			Values: ports.MonthRows(book, i),
		})
	}
	if _, err := c.svc.Spreadsheets.Values.BatchClear(c.spreadsheetID, &gsheet.BatchClearValuesRequest{Ranges: clear}).
		Context(ctx).Do(); err != nil {
		return "", fmt.Errorf("clear sheets for %d: %w", year, err)
	}
	if _, err := c.svc.Spreadsheets.Values.BatchUpdate(c.spreadsheetID, &gsheet.BatchUpdateValuesRequest{
		ValueInputOption: "RAW",
		Data:             data,
	}).Context(ctx).Do(); err != nil {
		return "", fmt.Errorf("write sheets for %d: %w", year, err)
	}

	ref := fmt.Sprintf("%s!%s:%s", c.spreadsheetID, quote(ports.SheetName(year, 0)), quote(ports.SheetName(year, core.MonthsPerYear-1)))
	return ref, nil
}

// ImportYear reads the raw inputs of every month tab present for year.
// Months without a tab are left out of the result.
func (c *Client) ImportYear(ctx context.Context, year int) ([]core.MonthInput, error) {
	if c.svc == nil {
		return nil, errors.New("sheets service not initialized")
	}
	if err := core.ValidateYear(year); err != nil {
		return nil, err
	}
	existing, err := c.sheetTitles(ctx)
	if err != nil {
		return nil, err
	}

	var (
		ranges  []string
		indexes []int
	)
	for i := range core.MonthsPerYear {
		name := ports.SheetName(year, i)
		if _, ok := existing[name]; ok {
			ranges = append(ranges, fmt.Sprintf("%s!A1:%s", quote(name), ports.LastColumn()))
			indexes = append(indexes, i)
		}
	}
	if len(ranges) == 0 {
		return nil, core.NotFound("No sheets found for year %d", year)
	}

	resp, err := c.svc.Spreadsheets.Values.BatchGet(c.spreadsheetID).
		Ranges(ranges...).
		ValueRenderOption("UNFORMATTED_VALUE").
		Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read sheets for %d: %w", year, err)
	}
	if len(resp.ValueRanges) != len(ranges) {
		return nil, fmt.Errorf("read sheets for %d: expected %d ranges, got %d", year, len(ranges), len(resp.ValueRanges))
	}

	out := make([]core.MonthInput, 0, len(ranges))
	for k, vr := range resp.ValueRanges {
		in, err := ports.ParseMonthRows(indexes[k], vr.Values, c.maxAmount)
		if err != nil {
			return nil, err
		}
		out = append(out, in)
	}
	return out, nil
}

func (c *Client) sheetTitles(ctx context.Context) (map[string]struct{}, error) {
	ss, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Fields("sheets.properties.title").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read spreadsheet %s: %w", c.spreadsheetID, err)
	}
	titles := make(map[string]struct{}, len(ss.Sheets))
	for _, s := range ss.Sheets {
		if s.Properties != nil {
			titles[s.Properties.Title] = struct{}{}
		}
	}
	return titles, nil
}

func missingSheets(existing map[string]struct{}, year int) []string {
	var out []string
	for i := range core.MonthsPerYear {
		name := ports.SheetName(year, i)
		if _, ok := existing[name]; !ok {
			out = append(out, name)
		}
	}
	return out
}

// quote wraps a sheet title for A1 notation.
func quote(title string) string {
	return "'" + strings.ReplaceAll(title, "'", "''") + "'"
}
