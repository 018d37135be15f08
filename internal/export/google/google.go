// Package google writes reports to a Google Sheets spreadsheet through
// an OAuth user credential.
package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"golang.org/x/oauth2"
	goauth "golang.org/x/oauth2/google"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"gestionale/internal/export"
)

// Options configures the Sheets writer. The OAuth client and token can
// each come from inline JSON or from a file; inline wins.
type Options struct {
	SpreadsheetID   string
	SheetBase       string
	OAuthClientJSON string
	OAuthClientFile string
	OAuthTokenJSON  string
	OAuthTokenFile  string
}

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetBase     string
}

var _ export.Writer = (*Client)(nil)

func New(ctx context.Context, opts Options) (*Client, error) {
	if strings.TrimSpace(opts.SpreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet ID")
	}
	base := strings.TrimSpace(opts.SheetBase)
	if base == "" {
		base = "Report"
	}

	svc, err := newSheetsService(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}

	return &Client{
		svc:           svc,
		spreadsheetID: opts.SpreadsheetID,
		sheetBase:     base,
	}, nil
}

func newSheetsService(ctx context.Context, opts Options) (*gsheet.Service, error) {
	clientJSON, err := readCredential(opts.OAuthClientJSON, opts.OAuthClientFile)
	if err != nil {
		return nil, fmt.Errorf("oauth client: %w", err)
	}
	tokenJSON, err := readCredential(opts.OAuthTokenJSON, opts.OAuthTokenFile)
	if err != nil {
		return nil, fmt.Errorf("oauth token: %w", err)
	}

	cfg, err := goauth.ConfigFromJSON(clientJSON, gsheet.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("parse oauth client: %w", err)
	}
	var tok oauth2.Token
	if err := json.Unmarshal(tokenJSON, &tok); err != nil {
		return nil, fmt.Errorf("parse oauth token: %w", err)
	}

	svc, err := gsheet.NewService(ctx, goption.WithHTTPClient(cfg.Client(ctx, &tok)))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	slog.InfoContext(ctx, "Google Sheets service created")
	return svc, nil
}

func readCredential(inline, file string) ([]byte, error) {
	inline = strings.TrimSpace(inline)
	if inline != "" {
		return []byte(inline), nil
	}
	file = strings.TrimSpace(file)
	if file == "" {
		return nil, errors.New("no inline JSON and no file configured")
	}
	b, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", file, err)
	}
	return b, nil
}

// WriteReport clears the report's sheet and rewrites it whole: header
// first, then the data rows. The sheet must already exist.
func (c *Client) WriteReport(ctx context.Context, r export.Report) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}

	name := sheetName(c.sheetBase, r.Model, r.Year)
	clearRange := fmt.Sprintf("%s!A:Z", name)
	if _, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, clearRange, &gsheet.ClearValuesRequest{}).
		Context(ctx).Do(); err != nil {
		return fmt.Errorf("clear %s: %w", clearRange, err)
	}

	vr := &gsheet.ValueRange{Values: reportValues(r)}
	writeRange := fmt.Sprintf("%s!A1", name)
	if _, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, writeRange, vr).
		ValueInputOption("USER_ENTERED").Context(ctx).Do(); err != nil {
		return fmt.Errorf("write %s: %w", writeRange, err)
	}

	slog.InfoContext(ctx, "Report written to sheet",
		"sheet", name, "model", r.Model, "year", r.Year, "rows", len(r.Rows))
	return nil
}

// sheetName builds "<base> <model> <year>", e.g. "Report annual 2026".
func sheetName(base, model string, year int) string {
	return fmt.Sprintf("%s %s %d", base, model, year)
}

func reportValues(r export.Report) [][]any {
	values := make([][]any, 0, len(r.Rows)+1)
	head := make([]any, len(r.Header))
	for i, h := range r.Header {
		head[i] = h
	}
	values = append(values, head)
	values = append(values, r.Rows...)
	return values
}
