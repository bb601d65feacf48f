// Package google mirrors journal entries into a Google Sheets tab using a
// service account.
package google

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"condivise/internal/log"
	ports "condivise/internal/sheets"
)

// Config selects the spreadsheet, tab and credentials. Inline JSON wins
// over the file. A user OAuth token is used when no service account is
// given.
type Config struct {
	SpreadsheetID   string
	SheetName       string
	CredentialsJSON string
	CredentialsFile string

	OAuthClientJSON string
	OAuthClientFile string
	OAuthTokenFile  string
}

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string
	logger        *log.Logger
}

var _ ports.JournalWriter = (*Client)(nil)

// New builds a Sheets client. Extra options are appended after the
// credentials, so tests can point it at a local endpoint.
func New(ctx context.Context, cfg Config, logger *log.Logger, opts ...goption.ClientOption) (*Client, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	creds, err := credentialsOption(ctx, cfg)
	if err != nil {
		return nil, err
	}
	all := append([]goption.ClientOption{creds, goption.WithScopes(gsheet.SpreadsheetsScope)}, opts...)
	svc, err := gsheet.NewService(ctx, all...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return newClient(svc, cfg, logger), nil
}

func newClient(svc *gsheet.Service, cfg Config, logger *log.Logger) *Client {
	sheet := strings.TrimSpace(cfg.SheetName)
	if sheet == "" {
		sheet = "Journal"
	}
	if logger == nil {
		logger = log.Discard()
	}
	return &Client{
		svc:           svc,
		spreadsheetID: cfg.SpreadsheetID,
		sheetName:     sheet,
		logger:        logger.WithComponent(log.ComponentSheets),
	}
}

func credentialsOption(ctx context.Context, cfg Config) (goption.ClientOption, error) {
	switch {
	case strings.TrimSpace(cfg.CredentialsJSON) != "":
		return goption.WithCredentialsJSON([]byte(cfg.CredentialsJSON)), nil
	case strings.TrimSpace(cfg.CredentialsFile) != "":
		raw, err := os.ReadFile(cfg.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return goption.WithCredentialsJSON(raw), nil
	case strings.TrimSpace(cfg.OAuthTokenFile) != "":
		return oauthOption(ctx, cfg)
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE or GOOGLE_OAUTH_TOKEN_FILE)")
	}
}

// journalRange covers every journal column so Append finds the table end.
func (c *Client) journalRange() string {
	last := rune('A' + len(ports.Header) - 1)
	return fmt.Sprintf("%s!A:%c", quoteSheet(c.sheetName), last)
}

// quoteSheet wraps names containing spaces the way A1 notation requires.
func quoteSheet(name string) string {
	if strings.ContainsAny(name, " '!") {
		return "'" + strings.ReplaceAll(name, "'", "''") + "'"
	}
	return name
}

func toValues(cells []string) []interface{} {
	out := make([]interface{}, len(cells))
	for i, v := range cells {
		out[i] = v
	}
	return out
}

// EnsureHeader writes the header row when the journal tab is empty.
func (c *Client) EnsureHeader(ctx context.Context) error {
	rng := fmt.Sprintf("%s!A1:A1", quoteSheet(c.sheetName))
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("read journal header: %w", err)
	}
	if len(resp.Values) > 0 {
		return nil
	}
	vr := &gsheet.ValueRange{Values: [][]interface{}{toValues(ports.Header)}}
	_, err = c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, vr).
		ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("write journal header: %w", err)
	}
	c.logger.InfoContext(ctx, "Journal header written", "sheet", c.sheetName)
	return nil
}

// AppendJournal adds one row below the last journal entry.
func (c *Client) AppendJournal(ctx context.Context, entry ports.JournalEntry) error {
	vr := &gsheet.ValueRange{Values: [][]interface{}{toValues(entry.Row())}}
	resp, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, c.journalRange(), vr).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("append journal row: %w", err)
	}
	ref := ""
	if resp.Updates != nil {
		ref = resp.Updates.UpdatedRange
	}
	c.logger.InfoContext(ctx, "Journal row appended",
		log.FieldMessageID, entry.MessageID,
		log.FieldExpenseID, entry.Expense.ID,
		log.FieldSheetsRef, ref)
	return nil
}
